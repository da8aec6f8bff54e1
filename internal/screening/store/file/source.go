// Package file reads raw datasets from local files.
package file

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// NullToken marks a missing value, as in PostgreSQL's COPY text format.
const NullToken = `\N`

// Format selects how the file is parsed.
type Format string

const (
	// FormatLines treats every line as one record, blank lines included.
	FormatLines Format = "lines"
	// FormatCSV reads one column of a CSV file. encoding/csv skips lines that
	// are completely empty; an empty field ("" or a bare comma) is a blank record.
	FormatCSV Format = "csv"
)

// Source loads raw records from a file on every Load call.
type Source struct {
	path   string
	format Format
	column string
	open   func(string) (io.ReadCloser, error)
}

type Option func(*Source)

// WithColumn picks the CSV column by header name. Without it the first
// column is read and the first row is treated as data.
func WithColumn(name string) Option {
	return func(s *Source) {
		s.column = strings.TrimSpace(name)
	}
}

// WithOpener replaces os.Open, for tests.
func WithOpener(open func(string) (io.ReadCloser, error)) Option {
	return func(s *Source) {
		if open != nil {
			s.open = open
		}
	}
}

func NewSource(path string, format Format, opts ...Option) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("input path is required")
	}
	switch format {
	case "":
		format = FormatLines
	case FormatLines, FormatCSV:
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
	s := &Source{
		path:   path,
		format: format,
		open: func(p string) (io.ReadCloser, error) {
			return os.Open(p)
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *Source) Load(ctx context.Context) ([]*string, error) {
	f, err := s.open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	if s.format == FormatCSV {
		return s.readCSV(ctx, f)
	}
	return readLines(ctx, f)
}

func readLines(ctx context.Context, r io.Reader) ([]*string, error) {
	var out []*string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, toRecord(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	return out, nil
}

func (s *Source) readCSV(ctx context.Context, r io.Reader) ([]*string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	index := 0
	if s.column != "" {
		header, err := reader.Read()
		if err != nil {
			return nil, fmt.Errorf("read csv header: %w", err)
		}
		index = -1
		for i, name := range header {
			if strings.EqualFold(strings.TrimSpace(name), s.column) {
				index = i
				break
			}
		}
		if index < 0 {
			return nil, fmt.Errorf("column %q not found in csv header", s.column)
		}
	}

	var out []*string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if index >= len(row) {
			out = append(out, nil)
			continue
		}
		out = append(out, toRecord(row[index]))
	}
	return out, nil
}

func toRecord(value string) *string {
	if value == NullToken {
		return nil
	}
	return &value
}
