package parsers

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestFactory_GetParser(t *testing.T) {
	factory := NewFactory()
	tests := []struct {
		name     string
		filename string
		want     string
		wantErr  bool
	}{
		{name: "csv file", filename: "players.csv", want: "csv"},
		{name: "upper case csv", filename: "PLAYERS.CSV", want: "csv"},
		{name: "txt export", filename: "export.txt", want: "csv"},
		{name: "tsv file", filename: "players.tsv", want: "csv"},
		{name: "xlsx file", filename: "players.xlsx", want: "xlsx"},
		{name: "legacy xls", filename: "players.xls", wantErr: true},
		{name: "no extension", filename: "players", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser, err := factory.GetParser(tt.filename)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedFileType)
				return
			}
			require.NoError(t, err)
			switch tt.want {
			case "csv":
				_, ok := parser.(*CSVParser)
				require.True(t, ok)
			case "xlsx":
				_, ok := parser.(*XLSXParser)
				require.True(t, ok)
			default:
				t.Fatalf("unexpected parser type %q", tt.want)
			}
		})
	}
}

func TestCSVParser_Parse(t *testing.T) {
	tests := []struct {
		name       string
		parser     *CSVParser
		data       string
		limits     Limits
		wantErr    error
		wantAnyErr bool
		wantHeader []string
		wantRows   int
	}{
		{
			name:       "comma separated",
			parser:     NewCSVParser(),
			data:       "Email,Phone,Name\na@example.com,,Ann\nb@example.com,7025550100,Bo\n",
			wantHeader: []string{"Email", "Phone", "Name"},
			wantRows:   2,
		},
		{
			name:       "bom and crlf",
			parser:     NewCSVParser(),
			data:       "\xEF\xBB\xBFEmail,Name\r\na@example.com,Ann\r\n",
			wantHeader: []string{"Email", "Name"},
			wantRows:   1,
		},
		{
			name:       "tab detected",
			parser:     NewCSVParser(),
			data:       "Email\tName\na@example.com\tAnn, Jr\n",
			wantHeader: []string{"Email", "Name"},
			wantRows:   1,
		},
		{
			name:       "semicolon detected",
			parser:     NewCSVParser(),
			data:       "Email;Name\na@example.com;Ann\n",
			wantHeader: []string{"Email", "Name"},
			wantRows:   1,
		},
		{
			name:       "blank rows skipped",
			parser:     NewCSVParser(),
			data:       "\nEmail,Name\n,\na@example.com,Ann\n\n",
			wantHeader: []string{"Email", "Name"},
			wantRows:   1,
		},
		{
			name:       "ragged rows kept for classification",
			parser:     NewCSVParser(),
			data:       "Email,Name\na@example.com,Ann,extra\nb@example.com\n",
			wantHeader: []string{"Email", "Name"},
			wantRows:   2,
		},
		{
			name:       "header only",
			parser:     NewCSVParser(),
			data:       "Email,Name\n",
			wantHeader: []string{"Email", "Name"},
			wantRows:   0,
		},
		{
			name:       "at row limit",
			parser:     NewCSVParser(),
			data:       "Email\na@x.io\nb@x.io\n",
			limits:     Limits{MaxRows: 2},
			wantHeader: []string{"Email"},
			wantRows:   2,
		},
		{
			name:    "over row limit",
			parser:  NewCSVParser(),
			data:    "Email\na@x.io\nb@x.io\nc@x.io\n",
			limits:  Limits{MaxRows: 2},
			wantErr: ErrRowLimitExceeded,
		},
		{
			name:       "empty file",
			parser:     NewCSVParser(),
			data:       "  \n",
			wantAnyErr: true,
		},
		{
			name:       "unterminated quote",
			parser:     NewCSVParser(),
			data:       "Email,Name\n\"a@example.com,Ann\n",
			wantAnyErr: true,
		},
		{
			name:       "forced delimiter",
			parser:     &CSVParser{Delimiter: '\t'},
			data:       "Email\tName\na@example.com\tAnn\n",
			wantHeader: []string{"Email", "Name"},
			wantRows:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := tt.parser.Parse([]byte(tt.data), tt.limits)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			if tt.wantAnyErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHeader, table.Header)
			assert.Len(t, table.Rows, tt.wantRows)
		})
	}
}

func TestCSVParser_TenThousandRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("Email\n")
	for i := 0; i < 10000; i++ {
		fmt.Fprintf(&b, "p%d@example.com\n", i)
	}

	table, err := NewCSVParser().Parse([]byte(b.String()), Limits{MaxRows: 10000})
	require.NoError(t, err)
	assert.Len(t, table.Rows, 10000)

	b.WriteString("one-more@example.com\n")
	_, err = NewCSVParser().Parse([]byte(b.String()), Limits{MaxRows: 10000})
	assert.ErrorIs(t, err, ErrRowLimitExceeded)
}

func TestXLSXParser_Parse(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"Email", "Phone", "Player Name"},
		{"a@example.com", "", "Ann"},
		{},
		{"", "702-555-0100", "Bo"},
	})

	table, err := NewXLSXParser().Parse(data, Limits{MaxRows: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"Email", "Phone", "Player Name"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "a@example.com", table.Rows[0][0])
	assert.Equal(t, "702-555-0100", table.Rows[1][1])
}

func TestXLSXParser_RowLimit(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"Email"},
		{"a@example.com"},
		{"b@example.com"},
	})

	_, err := NewXLSXParser().Parse(data, Limits{MaxRows: 1})
	assert.ErrorIs(t, err, ErrRowLimitExceeded)
}

func TestXLSXParser_NotAWorkbook(t *testing.T) {
	_, err := NewXLSXParser().Parse([]byte("Email\na@example.com\n"), Limits{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open XLSX file")
}

func buildWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}
