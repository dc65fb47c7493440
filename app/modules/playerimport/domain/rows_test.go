package importdomain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"(702) 555-0100":   "7025550100",
		" +1 702 555 0100": "+17025550100",
		"ext.":             "",
		"":                 "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizePhone(in), in)
	}
}

func TestNormalizePlayer(t *testing.T) {
	p := NormalizePlayer(map[CanonicalField]string{
		FieldEmail:     "  Ann.Lee@Example.COM ",
		FieldFirstName: "  Ann ",
		FieldLastName:  "Lee  ",
	})

	assert.Equal(t, "ann.lee@example.com", p.Email)
	assert.Equal(t, "Ann Lee", p.FullName)
	assert.True(t, p.EmailWellFormed)
	assert.Equal(t, []string{"email:ann.lee@example.com"}, p.IdentityKeys())
}

func TestRowClassifier_Classify(t *testing.T) {
	batchID := uuid.New()
	header := []string{"Email", "Phone", "Name"}
	mapping := ColumnMapping{FieldEmail: "email", FieldPhone: "phone", FieldFullName: "name"}

	records := [][]string{
		{"first@example.com", "", "First Player"},
		{"FIRST@example.com ", "", "Same Email"},
		{"", "", "Nobody"},
		{"", "702-555-0100", "Phone Only"},
		{"other@example.com", "(702) 555 0100", "Shares Phone"},
		{"not-an-email", "", "Bad Syntax"},
		{"x@example.com", "1", "Too", "Many"},
		{"short@example.com"},
		{"trailing@example.com", "", "Trailing Comma", "", " "},
		{"", "", "No Identity", "Extra"},
	}

	c, err := NewRowClassifier(batchID, header, mapping)
	require.NoError(t, err)

	var rows []StagedRow
	for i, rec := range records {
		rows = append(rows, c.Classify(i, rec))
	}

	want := []Validity{
		ValidityValid,
		ValidityDuplicate,
		ValidityInvalid,
		ValidityValid,
		ValidityDuplicate,
		ValidityValid,
		ValidityValid,
		ValidityValid,
		ValidityValid,
		ValidityInvalid,
	}
	for i, r := range rows {
		assert.Equal(t, want[i], r.Validity(), "row %d", i)
		assert.Equal(t, i, r.RowIndex)
		assert.Equal(t, batchID, r.BatchID)
	}

	dup, ok := rows[1].Outcome.(DuplicateRow)
	require.True(t, ok)
	assert.Equal(t, 0, dup.FirstRowIndex)
	assert.Equal(t, "email:first@example.com", dup.Key)
	assert.Equal(t, RejectDuplicateIdentity, rows[1].RejectReason().Code)

	assert.Equal(t, RejectMissingIdentity, rows[2].RejectReason().Code)
	require.NotNil(t, rows[6].ShapeIssue)
	assert.Equal(t, RejectRowShape, rows[6].ShapeIssue.Code)
	assert.Nil(t, rows[6].RejectReason())
	assert.Nil(t, rows[8].ShapeIssue)
	require.NotNil(t, rows[9].ShapeIssue)
	assert.Equal(t, RejectMissingIdentity, rows[9].RejectReason().Code)

	counts := CountRows(rows)
	assert.Equal(t, 2, counts.ShapeErrors)
	assert.Equal(t, 2, counts.Invalid)

	malformed, ok := rows[5].Normalized()
	require.True(t, ok)
	assert.False(t, malformed.EmailWellFormed)
	assert.Nil(t, rows[5].RejectReason())

	assert.Equal(t, map[string]string{"Email": "short@example.com", "Phone": "", "Name": ""}, rows[7].RawFields)
}

func TestRowClassifier_TrailingDelimiters(t *testing.T) {
	c, err := NewRowClassifier(uuid.New(), []string{"Email", "Name"}, ColumnMapping{FieldEmail: "Email", FieldFullName: "Name"})
	require.NoError(t, err)

	row := c.Classify(0, []string{"a@example.com", "Ann", ""})

	assert.Equal(t, ValidityValid, row.Validity())
	assert.Nil(t, row.ShapeIssue)
	assert.Nil(t, row.RejectReason())
	assert.Equal(t, map[string]string{"Email": "a@example.com", "Name": "Ann"}, row.RawFields)
}

func TestRowClassifier_InvalidCheckedBeforeDuplicate(t *testing.T) {
	c, err := NewRowClassifier(uuid.New(), []string{"email", "phone"}, ColumnMapping{FieldEmail: "email", FieldPhone: "phone"})
	require.NoError(t, err)

	first := c.Classify(0, []string{"", ""})
	second := c.Classify(1, []string{"", ""})

	assert.Equal(t, ValidityInvalid, first.Validity())
	assert.Equal(t, ValidityInvalid, second.Validity())
}

func TestNewRowClassifier_MissingHeaders(t *testing.T) {
	_, err := NewRowClassifier(uuid.New(), []string{"Name", "Phone"}, ColumnMapping{FieldEmail: "Email", FieldPhone: "phone"})

	var missing *MissingHeadersError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"Email"}, missing.Headers)
}

func TestThreeRowScenarioReport(t *testing.T) {
	c, err := NewRowClassifier(uuid.New(), []string{"email", "phone"}, ColumnMapping{FieldEmail: "email", FieldPhone: "phone"})
	require.NoError(t, err)

	rows := []StagedRow{
		c.Classify(0, []string{"unique@example.com", ""}),
		c.Classify(1, []string{"unique@example.com", ""}),
		c.Classify(2, []string{"", ""}),
	}

	report := BuildIngestionReport(nil, CountRows(rows))
	assert.Equal(t, IngestionReport{TotalRows: 3, ValidRows: 1, DuplicateRows: 1, InvalidRows: 1}, report)
}
