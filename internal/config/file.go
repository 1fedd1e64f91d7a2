package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

// Channel describes one plotted data series.
type Channel struct {
	Label       string   `json:"label"`
	Color       string   `json:"color"`
	Offset      float64  `json:"offset"`
	ScaleFactor float64  `json:"scale_factor"`
	Min         *float64 `json:"min"`
	Max         *float64 `json:"max"`
}

// UnmarshalJSON keeps scale_factor at 1 when the key is absent so older
// config files without it still plot unscaled values.
func (c *Channel) UnmarshalJSON(b []byte) error {
	type plain Channel
	p := plain{ScaleFactor: 1}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*c = Channel(p)
	return nil
}

// FixedRange returns the configured Y range when both bounds are set.
func (c Channel) FixedRange() (lo, hi float64, ok bool) {
	if c.Min == nil || c.Max == nil {
		return 0, 0, false
	}
	return *c.Min, *c.Max, true
}

// Config is the effective session configuration. It is built once by
// Resolve and passed by value afterwards.
type Config struct {
	Title             string    `json:"title"`
	Background        string    `json:"background"`
	Foreground        string    `json:"foreground"`
	FrameColor        *string   `json:"framecolor"`
	Com               string    `json:"com"`
	Plots             int       `json:"plots"`
	Samples           int       `json:"samples"`
	Refresh           int       `json:"refresh"`
	Delimiter         string    `json:"delimiter"`
	AutoscaleInterval int       `json:"autoscaleinterval"`
	CSVPath           string    `json:"csvpath"`
	CmdConnect        string    `json:"cmdconnect,omitempty"`
	CmdStartWriteCSV  string    `json:"cmdstartwritecsv,omitempty"`
	CmdStopWriteCSV   string    `json:"cmdstopwritecsv,omitempty"`
	Channels          []Channel `json:"channels"`
}

var defaultChannels = []Channel{
	{Label: "Channel 1", Color: "#FF00FF", ScaleFactor: 1},
	{Label: "Channel 2", Color: "#FF0000", ScaleFactor: 1},
	{Label: "Channel 3", Color: "#00FF00", ScaleFactor: 1},
	{Label: "Channel 4", Color: "#0000FF", ScaleFactor: 1},
	{Label: "Channel 5", Color: "#FFFF00", ScaleFactor: 1},
	{Label: "Channel 6", Color: "#00FFFF", ScaleFactor: 1},
}

// Default returns the built-in configuration.
func Default() Config {
	chans := make([]Channel, len(defaultChannels))
	copy(chans, defaultChannels)
	return Config{
		Title:             "Liveplot of serial data",
		Background:        "k",
		Foreground:        "w",
		Com:               "COM3",
		Plots:             3,
		Samples:           500,
		Refresh:           40,
		Delimiter:         ";",
		AutoscaleInterval: 150,
		CSVPath:           "<home>/Documents/data_<date>_<time>.csv",
		Channels:          chans,
	}
}

// Load reads a JSON config file over the defaults. Keys missing from the
// file keep their default values and are returned in missing. On any error
// the full default configuration is returned alongside the error.
func Load(path string) (cfg Config, missing []string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), nil, fmt.Errorf("reading config %q: %w", path, err)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return Default(), nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	cfg = Default()
	cfg.Channels = nil
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default(), nil, fmt.Errorf("parsing config %q: %w", path, err)
	}

	if _, ok := keys["channels"]; !ok {
		cfg.Channels = Default().Channels
	}

	for _, k := range knownKeys {
		if _, ok := keys[k]; !ok {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)

	cfg.backfillChannels()
	return cfg, missing, nil
}

var knownKeys = []string{
	"title", "background", "foreground", "framecolor", "com", "plots",
	"samples", "refresh", "delimiter", "autoscaleinterval", "csvpath",
	"channels",
}

// backfillChannels fills empty labels/colors from the defaults and appends
// generated channels until there is one per plot.
func (c *Config) backfillChannels() {
	for i := range c.Channels {
		def := defaultChannel(i)
		if c.Channels[i].Label == "" {
			c.Channels[i].Label = def.Label
		}
		if c.Channels[i].Color == "" {
			c.Channels[i].Color = def.Color
		}
	}
	for len(c.Channels) < c.Plots {
		c.Channels = append(c.Channels, defaultChannel(len(c.Channels)))
	}
}

func defaultChannel(i int) Channel {
	if i < len(defaultChannels) {
		return defaultChannels[i]
	}
	return Channel{
		Label:       fmt.Sprintf("Channel %d", i+1),
		Color:       defaultChannels[i%len(defaultChannels)].Color,
		ScaleFactor: 1,
	}
}

// Overrides carries command line values that take precedence over the file.
type Overrides struct {
	Com     *string
	Plots   *int
	Samples *int
}

// Resolve merges defaults, the config file (if path is set) and CLI
// overrides, in that order. A file that cannot be loaded is reported in
// loadErr and the defaults are used instead; loadErr is never fatal.
func Resolve(path string, ov Overrides) (cfg Config, missing []string, loadErr error) {
	cfg = Default()
	if path != "" {
		cfg, missing, loadErr = Load(path)
	}

	if ov.Com != nil {
		cfg.Com = *ov.Com
	}
	if ov.Plots != nil {
		cfg.Plots = *ov.Plots
	}
	if ov.Samples != nil {
		cfg.Samples = *ov.Samples
	}
	cfg.backfillChannels()
	return cfg, missing, loadErr
}

// Validate checks the values the buffers and parser depend on.
func (c Config) Validate() error {
	var errs []error
	if c.Plots < 1 {
		errs = append(errs, fmt.Errorf("plots must be >= 1, got %d", c.Plots))
	}
	if c.Samples < 1 {
		errs = append(errs, fmt.Errorf("samples must be >= 1, got %d", c.Samples))
	}
	if c.Refresh <= 0 {
		errs = append(errs, fmt.Errorf("refresh must be > 0 ms, got %d", c.Refresh))
	}
	if c.Delimiter == "" {
		errs = append(errs, errors.New("delimiter must not be empty"))
	}
	if c.AutoscaleInterval < 0 {
		errs = append(errs, fmt.Errorf("autoscaleinterval must be >= 0, got %d", c.AutoscaleInterval))
	}
	if len(c.Channels) < c.Plots {
		errs = append(errs, fmt.Errorf("%d channels configured for %d plots", len(c.Channels), c.Plots))
	}
	return errors.Join(errs...)
}

// Labels returns the labels of the plotted channels.
func (c Config) Labels() []string {
	labels := make([]string, c.Plots)
	for i := range labels {
		labels[i] = c.Channels[i].Label
	}
	return labels
}

// JSON returns the configuration as indented JSON for display.
func (c Config) JSON() string {
	b, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return err.Error()
	}
	return string(b)
}
