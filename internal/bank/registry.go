package bank

import "github.com/guppyfunds/guppy-consumer/internal/model"

// usDateFormat covers both supported banks (MM/DD/YYYY).
const usDateFormat = "01/02/2006"

// Registry returns the ordered table of supported bank schemas. Order is a
// contract: detection tries candidates front to back and the first match
// wins. Adding a bank means appending an entry, never editing existing ones.
func Registry() []Schema {
	return []Schema{amexSchema(), wellsFargoSchema()}
}

// Lookup returns the schema for a bank.
func Lookup(b model.Bank) (Schema, bool) {
	for _, s := range Registry() {
		if s.Bank == b {
			return s, true
		}
	}
	return Schema{}, false
}

// amexSchema covers Amex card exports: 13 named columns with a header line.
// The fingerprint key is date|amount|reference; the reference is Amex's own
// transaction ID, so it anchors duplicate detection.
func amexSchema() Schema {
	return Schema{
		Bank:       model.BankAmex,
		Collection: "amex_raw",
		HasHeader:  true,
		DateFormat: usDateFormat,
		Signature: Signature{
			FieldCount:   13,
			HeaderTokens: []string{"Card Member", "Reference"},
		},
		Fields: []Field{
			{Name: "date", Type: FieldDate, Required: true, Key: true},
			{Name: "description", Type: FieldText, Required: true},
			{Name: "card_member", Type: FieldText, Required: true},
			{Name: "account_number", Type: FieldText, Required: true},
			{Name: "amount", Type: FieldAmount, Required: true, Key: true},
			{Name: "extended_details", Type: FieldText},
			{Name: "appears_on_statement_as", Type: FieldText},
			{Name: "address", Type: FieldText},
			{Name: "city_state", Type: FieldText},
			{Name: "zip_code", Type: FieldText},
			{Name: "country", Type: FieldText},
			{Name: "reference", Type: FieldText, Key: true},
			{Name: "category", Type: FieldText},
		},
	}
}

// wellsFargoSchema covers Wells Fargo exports: headerless, exactly 5 quoted
// columns, first cell a MM/DD/YYYY date. Wells rows carry no transaction ID,
// so the fingerprint falls back to date|amount|description with the
// description case-folded.
func wellsFargoSchema() Schema {
	return Schema{
		Bank:       model.BankWellsFargo,
		Collection: "wells_raw",
		HasHeader:  false,
		DateFormat: usDateFormat,
		Signature: Signature{
			FieldCount:  5,
			LeadingDate: true,
		},
		Fields: []Field{
			{Name: "date", Type: FieldDate, Required: true, Key: true},
			{Name: "amount", Type: FieldAmount, Required: true, Key: true},
			{Name: "status", Type: FieldText},
			{Name: "memo", Type: FieldText},
			{Name: "description", Type: FieldText, Required: true, Key: true, Fold: true},
		},
	}
}
