package ingest

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// CSVLog appends parsed rows to a ';' separated file.
type CSVLog struct {
	path string
	f    *os.File
	w    *csv.Writer
	rows int
}

// CreateCSV creates (truncating) path and writes the label header.
func CreateCSV(path string, labels []string) (*CSVLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating csv: %w", err)
	}

	w := csv.NewWriter(f)
	w.Comma = ';'
	l := &CSVLog{path: path, f: f, w: w}

	if err := l.write(labels); err != nil {
		_ = f.Close()
		return nil, err
	}
	return l, nil
}

// Append writes one row of values.
func (l *CSVLog) Append(values []float64) error {
	record := make([]string, len(values))
	for i, v := range values {
		record[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if err := l.write(record); err != nil {
		return err
	}
	l.rows++
	return nil
}

func (l *CSVLog) write(record []string) error {
	if err := l.w.Write(record); err != nil {
		return fmt.Errorf("writing csv row: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}

// Path returns the file name.
func (l *CSVLog) Path() string {
	return l.path
}

// Rows returns the number of data rows written (header excluded).
func (l *CSVLog) Rows() int {
	return l.rows
}

// Close flushes and closes the file.
func (l *CSVLog) Close() error {
	l.w.Flush()
	werr := l.w.Error()
	cerr := l.f.Close()
	if werr != nil {
		return werr
	}
	return cerr
}
