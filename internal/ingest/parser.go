package ingest

import (
	"errors"
	"strconv"
	"strings"

	"serial-plotter.klederson.com/internal/config"
)

// Result is the outcome of parsing one input line. Data is false for lines
// that are not sample rows (boot banners, prompts, short or non-numeric
// rows); Values is nil in that case.
type Result struct {
	Values []float64
	Data   bool
	Line   string // input with trailing CR/LF removed
}

// Parser turns delimited text lines into scaled channel values.
type Parser struct {
	delim   string
	offsets []float64
	scales  []float64
}

// NewParser builds a parser for the first cfg.Plots channels.
func NewParser(cfg config.Config) *Parser {
	p := &Parser{
		delim:   cfg.Delimiter,
		offsets: make([]float64, cfg.Plots),
		scales:  make([]float64, cfg.Plots),
	}
	for i := 0; i < cfg.Plots; i++ {
		p.offsets[i] = cfg.Channels[i].Offset
		p.scales[i] = cfg.Channels[i].ScaleFactor
	}
	return p
}

// Channels returns the number of values a data line yields.
func (p *Parser) Channels() int {
	return len(p.offsets)
}

// Parse splits line on the delimiter and converts the first Channels()
// tokens with value = (raw - offset) * scale. Tokens past that are ignored.
func (p *Parser) Parse(line string) Result {
	trimmed := strings.TrimRight(line, "\r\n")
	res := Result{Line: trimmed}

	tokens := strings.Split(trimmed, p.delim)
	if len(tokens) < len(p.offsets) {
		return res
	}

	values := make([]float64, len(p.offsets))
	for i := range values {
		raw, err := strconv.ParseFloat(strings.TrimSpace(tokens[i]), 64)
		// out of range tokens parse to ±Inf or 0, which are kept
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return res
		}
		values[i] = (raw - p.offsets[i]) * p.scales[i]
	}

	res.Values = values
	res.Data = true
	return res
}
