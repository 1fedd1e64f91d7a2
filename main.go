package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/fang"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"serial-plotter.klederson.com/internal/app"
	"serial-plotter.klederson.com/internal/config"
	"serial-plotter.klederson.com/internal/transport"
)

var (
	flagCom     string
	flagPlots   int
	flagSamples int
	flagConfig  string
	flagDemo    bool
	flagLog     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "serial-plotter",
		Short: "Live plotter for delimited serial and BLE data",
		Long: `serial-plotter reads delimited numeric lines from a serial port or a
Bluetooth LE UART device, plots each channel live in the terminal and can
log the values to CSV.

Addresses starting with "Address " (for example "Address AA:BB:CC:DD:EE:FF")
connect over BLE, anything else is opened as a serial port at 115200 baud.
Use --demo to plot synthetic data without hardware.`,
		Version:      config.AppVersion,
		RunE:         run,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVar(&flagCom, "com", "", "Serial port or \"Address <mac>\" to connect to")
	rootCmd.Flags().IntVar(&flagPlots, "plots", 0, "Number of channels to plot")
	rootCmd.Flags().IntVar(&flagSamples, "samples", 0, "Samples kept per channel")
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "JSON config file")
	rootCmd.PersistentFlags().BoolVar(&flagDemo, "demo", false, "Use a synthetic device instead of real hardware")
	rootCmd.PersistentFlags().StringVar(&flagLog, "log", "", "Write diagnostics to this file")

	rootCmd.AddCommand(launchCmd(), scanCmd(), portsCmd())

	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}

// openLog returns a file logger for --log, or a no-op logger. The TUI owns
// the terminal so nothing is logged to stderr.
func openLog() (zerolog.Logger, func(), error) {
	if flagLog == "" {
		return zerolog.Nop(), func() {}, nil
	}
	f, err := os.OpenFile(flagLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), func() {}, fmt.Errorf("opening log file: %w", err)
	}
	log := zerolog.New(f).With().Timestamp().Logger()
	return log, func() { _ = f.Close() }, nil
}

func dialerFor(cfg config.Config, log zerolog.Logger) transport.Dialer {
	if flagDemo {
		return transport.DemoDialer(cfg.Plots, cfg.Delimiter)
	}
	return transport.Dialer{
		Serial: transport.SerialDialer(log),
		BLE:    transport.BLEDialer(log),
	}
}

func run(cmd *cobra.Command, args []string) error {
	log, closeLog, err := openLog()
	if err != nil {
		return err
	}
	defer closeLog()

	var ov config.Overrides
	if cmd.Flags().Changed("com") {
		ov.Com = &flagCom
	}
	if cmd.Flags().Changed("plots") {
		ov.Plots = &flagPlots
	}
	if cmd.Flags().Changed("samples") {
		ov.Samples = &flagSamples
	}

	cfg, missing, loadErr := config.Resolve(flagConfig, ov)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	var notes []string
	if loadErr != nil {
		log.Warn().Err(loadErr).Msg("using default configuration")
		notes = append(notes, fmt.Sprintf("Using default configuration: %v", loadErr))
	}
	if len(missing) > 0 {
		notes = append(notes, "Missing keys filled with defaults: "+strings.Join(missing, ", "))
	}
	if flagDemo {
		notes = append(notes, "Demo mode: connecting opens a synthetic device")
	}

	model := app.New(cfg, dialerFor(cfg, log), log, notes)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	model.Attach(p)

	_, err = p.Run()
	return err
}
