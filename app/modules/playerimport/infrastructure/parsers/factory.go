package parsers

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrRowLimitExceeded is returned as soon as a file holds more data rows than allowed.
var ErrRowLimitExceeded = errors.New("row limit exceeded")

// ErrUnsupportedFileType is returned for extensions no parser handles.
var ErrUnsupportedFileType = errors.New("unsupported file type")

// Table is a parsed vendor export: the header row and the data rows beneath it.
type Table struct {
	Header []string
	Rows   [][]string
}

// Limits bounds what a parser will read.
type Limits struct {
	// MaxRows is the maximum number of data rows. Zero disables the check.
	MaxRows int
}

// Parser defines the interface for vendor export parsers.
type Parser interface {
	Parse(data []byte, limits Limits) (*Table, error)
}

// ParserFactory defines the interface for creating parsers.
type ParserFactory interface {
	GetParser(filename string) (Parser, error)
}

// Factory creates the appropriate parser based on file extension.
type Factory struct{}

// NewFactory creates a new parser factory.
func NewFactory() *Factory {
	return &Factory{}
}

// GetParser returns the parser for filename.
func (f *Factory) GetParser(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".csv", ".txt":
		return NewCSVParser(), nil
	case ".tsv":
		return &CSVParser{Delimiter: '\t'}, nil
	case ".xlsx":
		return NewXLSXParser(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
}

// addRow appends a data row unless it is blank, enforcing the row ceiling.
func (t *Table) addRow(record []string, limits Limits) error {
	if isBlank(record) {
		return nil
	}
	if limits.MaxRows > 0 && len(t.Rows) >= limits.MaxRows {
		return fmt.Errorf("%w: more than %d rows", ErrRowLimitExceeded, limits.MaxRows)
	}
	row := make([]string, len(record))
	copy(row, record)
	t.Rows = append(t.Rows, row)
	return nil
}

// setHeader records the header row, rejecting one without any named column.
func (t *Table) setHeader(record []string) error {
	header := make([]string, len(record))
	for i, h := range record {
		header[i] = strings.TrimSpace(h)
	}
	if isBlank(header) {
		return errors.New("header row has no column names")
	}
	t.Header = header
	return nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
