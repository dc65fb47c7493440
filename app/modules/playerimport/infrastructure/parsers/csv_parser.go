package parsers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CSVParser parses delimited text exports.
type CSVParser struct {
	// Delimiter forces a field separator. Zero means detect it from the data.
	Delimiter rune
}

// NewCSVParser creates a CSV parser that detects its delimiter.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse reads the header row and every non-blank data row.
func (p *CSVParser) Parse(data []byte, limits Limits) (*Table, error) {
	cleaned, detected, err := preprocessCSVData(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(cleaned))
	reader.Comma = detected
	if p.Delimiter != 0 {
		reader.Comma = p.Delimiter
	}
	reader.FieldsPerRecord = -1

	table := &Table{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		if table.Header == nil {
			if isBlank(record) {
				continue
			}
			if err := table.setHeader(record); err != nil {
				return nil, err
			}
			continue
		}

		if err := table.addRow(record, limits); err != nil {
			return nil, err
		}
	}

	if table.Header == nil {
		return nil, errors.New("CSV file has no header row")
	}
	return table, nil
}
