package importdomain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validity classifies a staged row.
type Validity string

const (
	ValidityValid     Validity = "valid"
	ValidityInvalid   Validity = "invalid"
	ValidityDuplicate Validity = "duplicate"
)

// ParseValidity converts a stored or requested value into a Validity.
func ParseValidity(s string) (Validity, error) {
	switch v := Validity(strings.ToLower(strings.TrimSpace(s))); v {
	case ValidityValid, ValidityInvalid, ValidityDuplicate:
		return v, nil
	}
	return "", fmt.Errorf("unknown row validity %q", s)
}

// RejectCode explains why a row was not staged as valid.
type RejectCode string

const (
	RejectMissingIdentity   RejectCode = "MISSING_IDENTITY"
	RejectDuplicateIdentity RejectCode = "DUPLICATE_IDENTITY"
	RejectRowShape          RejectCode = "ROW_SHAPE"
)

// RejectReason is the structured rejection attached to invalid and duplicate rows.
type RejectReason struct {
	Code   RejectCode `json:"code"`
	Detail string     `json:"detail"`
}

// RowOutcome is the classification of a single row. Exactly one of ValidRow, InvalidRow
// or DuplicateRow.
type RowOutcome interface {
	Validity() Validity
	isRowOutcome()
}

// ValidRow carries the normalized identity that will be merged.
type ValidRow struct {
	Player NormalizedPlayer
}

// InvalidRow is a row that cannot be merged.
type InvalidRow struct {
	Reason RejectReason
}

// DuplicateRow repeats an identity already claimed by an earlier row of the same batch.
type DuplicateRow struct {
	Key           string
	FirstRowIndex int
}

func (ValidRow) Validity() Validity     { return ValidityValid }
func (InvalidRow) Validity() Validity   { return ValidityInvalid }
func (DuplicateRow) Validity() Validity { return ValidityDuplicate }

func (ValidRow) isRowOutcome()     {}
func (InvalidRow) isRowOutcome()   {}
func (DuplicateRow) isRowOutcome() {}

// Reason returns the rejection for a duplicate row.
func (d DuplicateRow) Reason() RejectReason {
	return RejectReason{
		Code:   RejectDuplicateIdentity,
		Detail: fmt.Sprintf("%s already used by row %d", d.Key, d.FirstRowIndex),
	}
}

// StagedRow is one classified source row held in staging. ShapeIssue records a cell layout
// problem; it is counted as a parse error but does not change the outcome.
type StagedRow struct {
	BatchID    uuid.UUID
	RowIndex   int
	RawFields  map[string]string
	Outcome    RowOutcome
	ShapeIssue *RejectReason
}

// Validity returns the row's classification.
func (r StagedRow) Validity() Validity {
	if r.Outcome == nil {
		return ValidityInvalid
	}
	return r.Outcome.Validity()
}

// Normalized returns the identity of a valid row.
func (r StagedRow) Normalized() (NormalizedPlayer, bool) {
	if v, ok := r.Outcome.(ValidRow); ok {
		return v.Player, true
	}
	return NormalizedPlayer{}, false
}

// RejectReason returns the rejection for invalid and duplicate rows, nil for valid ones.
func (r StagedRow) RejectReason() *RejectReason {
	switch o := r.Outcome.(type) {
	case InvalidRow:
		reason := o.Reason
		return &reason
	case DuplicateRow:
		reason := o.Reason()
		return &reason
	}
	return nil
}

// MissingHeadersError reports mapped headers absent from the file header row.
type MissingHeadersError struct {
	Headers []string
}

func (e *MissingHeadersError) Error() string {
	return "mapped headers not found in file: " + strings.Join(e.Headers, ", ")
}

// RowClassifier normalizes and classifies rows of one file in source order. It is not safe
// for concurrent use; duplicate detection depends on rows arriving in order.
type RowClassifier struct {
	batchID uuid.UUID
	header  []string
	columns map[CanonicalField]int
	seen    map[string]int
}

// NewRowClassifier resolves the mapping against the file header row.
func NewRowClassifier(batchID uuid.UUID, header []string, m ColumnMapping) (*RowClassifier, error) {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := HeaderKey(h)
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	columns := make(map[CanonicalField]int, len(m))
	var missing []string
	for _, field := range m.sortedFields() {
		idx, ok := positions[HeaderKey(m[field])]
		if !ok {
			missing = append(missing, m[field])
			continue
		}
		columns[field] = idx
	}
	if len(missing) > 0 {
		return nil, &MissingHeadersError{Headers: missing}
	}

	return &RowClassifier{
		batchID: batchID,
		header:  header,
		columns: columns,
		seen:    make(map[string]int),
	}, nil
}

// Classify turns one data row into a StagedRow. Rows must be passed in source order.
func (c *RowClassifier) Classify(rowIndex int, record []string) StagedRow {
	row := StagedRow{
		BatchID:   c.batchID,
		RowIndex:  rowIndex,
		RawFields: c.rawFields(record),
	}

	record = trimTrailingEmpty(record, len(c.header))
	if len(record) > len(c.header) {
		row.ShapeIssue = &RejectReason{
			Code:   RejectRowShape,
			Detail: fmt.Sprintf("row has %d cells, header has %d", len(record), len(c.header)),
		}
	}

	values := make(map[CanonicalField]string, len(c.columns))
	for field, idx := range c.columns {
		if idx < len(record) {
			values[field] = record[idx]
		}
	}
	player := NormalizePlayer(values)

	if !player.HasIdentity() {
		row.Outcome = InvalidRow{Reason: RejectReason{
			Code:   RejectMissingIdentity,
			Detail: "row has neither an email nor a phone",
		}}
		return row
	}

	keys := player.IdentityKeys()
	for _, key := range keys {
		if first, ok := c.seen[key]; ok {
			row.Outcome = DuplicateRow{Key: key, FirstRowIndex: first}
			return row
		}
	}
	for _, key := range keys {
		c.seen[key] = rowIndex
	}

	row.Outcome = ValidRow{Player: player}
	return row
}

// trimTrailingEmpty drops blank cells past the header width, left behind by trailing
// delimiters.
func trimTrailingEmpty(record []string, width int) []string {
	end := len(record)
	for end > width && strings.TrimSpace(record[end-1]) == "" {
		end--
	}
	return record[:end]
}

func (c *RowClassifier) rawFields(record []string) map[string]string {
	raw := make(map[string]string, len(c.header))
	for i, h := range c.header {
		if _, dup := raw[h]; dup {
			continue
		}
		if i < len(record) {
			raw[h] = record[i]
		} else {
			raw[h] = ""
		}
	}
	return raw
}
