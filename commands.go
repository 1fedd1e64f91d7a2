package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"serial-plotter.klederson.com/internal/config"
	"serial-plotter.klederson.com/internal/launcher"
	"serial-plotter.klederson.com/internal/transport"
)

func launchCmd() *cobra.Command {
	paths := make([]string, config.MaxInstances)

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Run up to four plotters side by side",
		Long: `launch tiles up to four plotter instances in one terminal. Connect,
CSV logging and restart act on all instances at once, so the CSV files
of several devices start at the same moment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, closeLog, err := openLog()
			if err != nil {
				return err
			}
			defer closeLog()

			dialer := func(cfg config.Config) transport.Dialer {
				return dialerFor(cfg, log)
			}
			model := launcher.New(paths, dialer, log)
			defer model.Close()

			p := tea.NewProgram(model, tea.WithAltScreen())
			model.Attach(p)

			_, err = p.Run()
			return err
		},
	}
	for i := range paths {
		cmd.Flags().StringVar(&paths[i], fmt.Sprintf("config%d", i+1), "", fmt.Sprintf("Config file for instance %d", i+1))
	}
	return cmd
}

func scanCmd() *cobra.Command {
	var timeout = config.ScanTimeout

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List nearby BLE devices",
		Long: `scan listens for BLE advertisements and prints one line per device.
The first column can be passed to --com as is.

Requires sudo or CAP_NET_ADMIN on Linux.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, closeLog, err := openLog()
			if err != nil {
				return err
			}
			defer closeLog()

			found, err := transport.Scan(cmd.Context(), timeout, log)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, "No devices found")
				return nil
			}
			for _, p := range found {
				fmt.Fprintf(out, "%-30s %-24s %4d dBm\n", p.Target(), p.DisplayName(), p.RSSI)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", config.ScanTimeout, "How long to listen")
	return cmd
}

func portsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := transport.ListPorts()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ports) == 0 {
				fmt.Fprintln(out, "No serial ports found")
				return nil
			}
			for _, p := range ports {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	}
}
