package importdomain

import "time"

// IngestionReport summarizes a staged batch. It is always derived from the staged rows and
// the batch timestamps, never stored.
type IngestionReport struct {
	TotalRows     int   `json:"total_rows"`
	ValidRows     int   `json:"valid_rows"`
	InvalidRows   int   `json:"invalid_rows"`
	DuplicateRows int   `json:"duplicate_rows"`
	ParseErrors   int   `json:"parse_errors"`
	DurationMs    int64 `json:"duration_ms"`
}

// RowCounts are the aggregates a report is built from.
type RowCounts struct {
	Valid     int
	Invalid   int
	Duplicate int
	// ShapeErrors counts rows, of any validity, with more cells than the header.
	ShapeErrors int
}

// Total is the number of staged rows.
func (c RowCounts) Total() int { return c.Valid + c.Invalid + c.Duplicate }

// CountRows aggregates staged rows.
func CountRows(rows []StagedRow) RowCounts {
	var c RowCounts
	for _, r := range rows {
		switch r.Validity() {
		case ValidityValid:
			c.Valid++
		case ValidityDuplicate:
			c.Duplicate++
		default:
			c.Invalid++
		}
		if r.ShapeIssue != nil {
			c.ShapeErrors++
		}
	}
	return c
}

// BuildIngestionReport assembles the report for a batch from its row counts.
func BuildIngestionReport(b *Batch, counts RowCounts) IngestionReport {
	report := IngestionReport{
		TotalRows:     counts.Total(),
		ValidRows:     counts.Valid,
		InvalidRows:   counts.Invalid,
		DuplicateRows: counts.Duplicate,
		ParseErrors:   counts.ShapeErrors,
	}
	if b != nil && b.ParseStartedAt != nil && b.StagedAt != nil {
		report.DurationMs = durationMs(*b.ParseStartedAt, *b.StagedAt)
	}
	return report
}

func durationMs(start, end time.Time) int64 {
	if end.Before(start) {
		return 0
	}
	return end.Sub(start).Milliseconds()
}
