package importdomain

import (
	"fmt"
	"sort"
	"strings"
)

// CanonicalField is one of the fixed player attributes a source header can map onto.
type CanonicalField string

const (
	FieldEmail     CanonicalField = "email"
	FieldPhone     CanonicalField = "phone"
	FieldFirstName CanonicalField = "first_name"
	FieldLastName  CanonicalField = "last_name"
	FieldFullName  CanonicalField = "full_name"
)

// CanonicalFields lists the mappable fields in display order.
var CanonicalFields = []CanonicalField{
	FieldEmail,
	FieldPhone,
	FieldFirstName,
	FieldLastName,
	FieldFullName,
}

// IsCanonical reports whether f is a known canonical field.
func (f CanonicalField) IsCanonical() bool {
	for _, c := range CanonicalFields {
		if c == f {
			return true
		}
	}
	return false
}

// ColumnMapping maps a canonical field to the source header holding its value.
type ColumnMapping map[CanonicalField]string

// MappingError lists every problem found in a column mapping.
type MappingError struct {
	Problems []string
}

func (e *MappingError) Error() string {
	return "invalid column mapping: " + strings.Join(e.Problems, "; ")
}

// ValidateMapping checks a client-declared mapping. It is used both for the upload wizard
// preview and before a batch is created.
func ValidateMapping(m ColumnMapping) error {
	var problems []string

	if len(m) == 0 {
		return &MappingError{Problems: []string{"mapping is empty"}}
	}

	usedBy := make(map[string]CanonicalField, len(m))
	for _, field := range m.sortedFields() {
		header := m[field]
		if !field.IsCanonical() {
			problems = append(problems, fmt.Sprintf("unknown field %q", field))
			continue
		}
		key := HeaderKey(header)
		if key == "" {
			problems = append(problems, fmt.Sprintf("field %q has no source header", field))
			continue
		}
		if other, taken := usedBy[key]; taken {
			problems = append(problems, fmt.Sprintf("header %q is mapped to both %q and %q", header, other, field))
			continue
		}
		usedBy[key] = field
	}

	if !m.mapsIdentity() {
		problems = append(problems, "at least one of email or phone must be mapped")
	}

	if len(problems) > 0 {
		return &MappingError{Problems: problems}
	}
	return nil
}

// Equal reports whether both mappings resolve the same fields to the same headers.
func (m ColumnMapping) Equal(other ColumnMapping) bool {
	if len(m) != len(other) {
		return false
	}
	for field, header := range m {
		h, ok := other[field]
		if !ok || HeaderKey(h) != HeaderKey(header) {
			return false
		}
	}
	return true
}

// ToStrings returns the mapping keyed by plain strings for serialization.
func (m ColumnMapping) ToStrings() map[string]string {
	out := make(map[string]string, len(m))
	for field, header := range m {
		out[string(field)] = header
	}
	return out
}

// MappingFromStrings converts a serialized mapping back into a ColumnMapping.
func MappingFromStrings(in map[string]string) ColumnMapping {
	out := make(ColumnMapping, len(in))
	for field, header := range in {
		out[CanonicalField(field)] = header
	}
	return out
}

func (m ColumnMapping) mapsIdentity() bool {
	return HeaderKey(m[FieldEmail]) != "" || HeaderKey(m[FieldPhone]) != ""
}

func (m ColumnMapping) sortedFields() []CanonicalField {
	fields := make([]CanonicalField, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// HeaderKey normalizes a header for comparison: case-insensitive, ignoring surrounding
// whitespace and the separators vendors use interchangeably.
func HeaderKey(header string) string {
	k := strings.ToLower(strings.TrimSpace(header))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(k)
}
