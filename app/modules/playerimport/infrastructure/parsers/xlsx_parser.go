package parsers

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXParser parses the first worksheet of an XLSX workbook.
type XLSXParser struct{}

// NewXLSXParser creates a new XLSX parser.
func NewXLSXParser() *XLSXParser {
	return &XLSXParser{}
}

// Parse streams rows from the first sheet so an oversized workbook stops at the row ceiling.
func (p *XLSXParser) Parse(data []byte, limits Limits) (table *Table, err error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "zip: not a valid zip file") {
			return nil, fmt.Errorf("failed to open XLSX file: %w. (Hint: If this is a CSV file, please ensure it has a .csv extension)", err)
		}
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("XLSX file has no sheets")
	}
	sheetName := sheets[0]

	rows, err := f.Rows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close sheet %q: %w", sheetName, cerr)
		}
	}()

	table = &Table{}
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row in sheet %q: %w", sheetName, err)
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
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("failed to iterate sheet %q: %w", sheetName, err)
	}

	if table.Header == nil {
		return nil, fmt.Errorf("sheet %q is empty", sheetName)
	}
	return table, nil
}
