package ingest

import (
	"time"

	"github.com/rs/zerolog"

	"serial-plotter.klederson.com/internal/config"
	"serial-plotter.klederson.com/internal/plot"
)

// Controller feeds received lines through the parser into the channel
// buffers and the optional CSV log. It is not safe for concurrent use; all
// calls happen on the program's update loop.
type Controller struct {
	parser *Parser
	set    *plot.ChannelSet
	term   *Terminal
	labels []string
	csv    *CSVLog
	raw    bool
	log    zerolog.Logger

	rows    int
	skipped int
}

// NewController creates buffers sized from cfg and writes non-data lines
// to term.
func NewController(cfg config.Config, term *Terminal, log zerolog.Logger) *Controller {
	return &Controller{
		parser: NewParser(cfg),
		set:    plot.NewChannelSet(cfg.Plots, cfg.Samples),
		term:   term,
		labels: cfg.Labels(),
		log:    log,
	}
}

// OnLine ingests one raw line. Data rows are written to every channel at
// the shared cursor and appended to the CSV log; anything else goes to the
// terminal and leaves the buffers and cursor untouched.
func (c *Controller) OnLine(raw string) Result {
	res := c.parser.Parse(raw)
	if c.raw {
		c.term.Append(res.Line)
	}

	if !res.Data {
		c.skipped++
		c.term.Append(res.Line)
		return res
	}

	if err := c.set.Write(res.Values); err != nil {
		// parser and buffers are sized from the same config
		c.log.Error().Err(err).Msg("buffer write")
		return res
	}
	c.rows++

	if c.csv != nil {
		if err := c.csv.Append(res.Values); err != nil {
			c.term.Notef("Error writing to %s: %v", c.csv.Path(), err)
			c.log.Error().Err(err).Str("file", c.csv.Path()).Msg("csv append failed, logging stopped")
			c.closeLog()
		}
	}
	return res
}

// Restart moves the shared cursor back to 0.
func (c *Controller) Restart() {
	c.set.Restart()
	c.log.Debug().Msg("cursor restarted")
}

// StartLog opens a CSV file named by expanding tmpl. It is a no-op
// returning started=false when a log is already open. On failure the error
// is reported to the terminal and logging stays off.
func (c *Controller) StartLog(tmpl string, now time.Time, home string) (started bool, err error) {
	if c.csv != nil {
		return false, nil
	}

	filename := config.CSVFilename(tmpl, now, home)
	l, err := CreateCSV(filename, c.labels)
	if err != nil {
		c.term.Notef("Error writing to %s: %v", filename, err)
		c.log.Warn().Err(err).Str("file", filename).Msg("csv open failed")
		return false, err
	}

	c.csv = l
	c.term.Notef("Writing data to %s", filename)
	c.log.Info().Str("file", filename).Msg("csv logging started")
	return true, nil
}

// StopLog closes the CSV file. It returns stopped=false when no log was open.
func (c *Controller) StopLog() (stopped bool, err error) {
	if c.csv == nil {
		return false, nil
	}
	rows := c.csv.Rows()
	err = c.closeLog()
	c.term.Notef("Stopped writing to CSV")
	c.log.Info().Int("rows", rows).Msg("csv logging stopped")
	return true, err
}

func (c *Controller) closeLog() error {
	if c.csv == nil {
		return nil
	}
	err := c.csv.Close()
	c.csv = nil
	return err
}

// Logging reports whether a CSV log is open.
func (c *Controller) Logging() bool {
	return c.csv != nil
}

// LogPath returns the open CSV file name, or "".
func (c *Controller) LogPath() string {
	if c.csv == nil {
		return ""
	}
	return c.csv.Path()
}

// SetRaw toggles echoing every received line to the terminal.
func (c *Controller) SetRaw(on bool) {
	c.raw = on
}

// Raw reports whether raw echo is on.
func (c *Controller) Raw() bool {
	return c.raw
}

// Buffers exposes the channel buffers for rendering.
func (c *Controller) Buffers() *plot.ChannelSet {
	return c.set
}

// Stats returns the number of data rows and skipped lines seen.
func (c *Controller) Stats() (rows, skipped int) {
	return c.rows, c.skipped
}

// Close releases the CSV log if one is open. Safe to call repeatedly.
func (c *Controller) Close() error {
	return c.closeLog()
}
