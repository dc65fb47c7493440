package importdomain

import (
	"net/mail"
	"strings"
	"unicode"
)

// NormalizedPlayer is the canonical view of one row's identity fields.
type NormalizedPlayer struct {
	Email           string `json:"email,omitempty"`
	Phone           string `json:"phone,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	FullName        string `json:"full_name,omitempty"`
	EmailWellFormed bool   `json:"email_well_formed"`
}

// HasIdentity reports whether the row carries an email or a phone.
func (p NormalizedPlayer) HasIdentity() bool {
	return p.Email != "" || p.Phone != ""
}

// IdentityKeys returns the keys used for in-batch duplicate detection.
func (p NormalizedPlayer) IdentityKeys() []string {
	keys := make([]string, 0, 2)
	if p.Email != "" {
		keys = append(keys, "email:"+p.Email)
	}
	if p.Phone != "" {
		keys = append(keys, "phone:"+p.Phone)
	}
	return keys
}

// DisplayName picks the best available name for a new player record.
func (p NormalizedPlayer) DisplayName() string {
	switch {
	case p.FullName != "":
		return p.FullName
	case p.Email != "":
		return p.Email
	default:
		return p.Phone
	}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// IsWellFormedEmail reports whether email is a bare RFC 5322 address.
func IsWellFormedEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// NormalizePhone keeps digits only, preserving a leading plus sign.
func NormalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(raw, "+") {
		return "+" + digits
	}
	return digits
}

// NormalizeName trims and collapses internal whitespace.
func NormalizeName(raw string) string {
	return strings.Join(strings.FieldsFunc(raw, unicode.IsSpace), " ")
}

// NormalizePlayer builds the canonical identity from values already resolved by field.
func NormalizePlayer(values map[CanonicalField]string) NormalizedPlayer {
	p := NormalizedPlayer{
		Email:     NormalizeEmail(values[FieldEmail]),
		Phone:     NormalizePhone(values[FieldPhone]),
		FirstName: NormalizeName(values[FieldFirstName]),
		LastName:  NormalizeName(values[FieldLastName]),
		FullName:  NormalizeName(values[FieldFullName]),
	}
	if p.FullName == "" {
		p.FullName = NormalizeName(p.FirstName + " " + p.LastName)
	}
	p.EmailWellFormed = IsWellFormedEmail(p.Email)
	return p
}
