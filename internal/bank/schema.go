package bank

import (
	"strings"
	"time"

	"github.com/guppyfunds/guppy-consumer/internal/model"
)

// FieldType selects the coercion rule applied to a column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldDate
	FieldAmount
)

// Field describes one column of a bank's CSV layout.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
	Key      bool // participates in the fingerprint
	Fold     bool // lowercase and trim before fingerprinting
}

// Signature describes how a bank's export is recognized from its first line.
// Header tokens match case-insensitively, exact or prefix. LeadingDate covers
// headerless exports whose first line is already data.
type Signature struct {
	FieldCount   int
	HeaderTokens []string
	LeadingDate  bool
}

// Schema is one bank variant's full contract: detection signature, column
// layout, date format, and target collection.
type Schema struct {
	Bank       model.Bank
	Collection string
	HasHeader  bool
	DateFormat string
	Signature  Signature
	Fields     []Field
}

// Matches reports whether the first CSV line fits this schema's signature.
// It inspects the given cells only and never touches the rest of the payload.
func (s Schema) Matches(cells []string) bool {
	if len(cells) != s.Signature.FieldCount {
		return false
	}
	for _, tok := range s.Signature.HeaderTokens {
		if !hasToken(cells, tok) {
			return false
		}
	}
	if s.Signature.LeadingDate {
		if _, err := time.Parse(s.DateFormat, strings.TrimSpace(cells[0])); err != nil {
			return false
		}
	}
	return true
}

func hasToken(cells []string, token string) bool {
	want := strings.ToLower(token)
	for _, c := range cells {
		got := strings.ToLower(strings.TrimSpace(c))
		if got == want || strings.HasPrefix(got, want) {
			return true
		}
	}
	return false
}
