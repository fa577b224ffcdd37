package model

// RawUpload is an immutable CSV payload handed to the pipeline exactly once.
type RawUpload struct {
	Data     []byte
	Encoding string // declared text encoding; "" means UTF-8 with Latin-1 fallback
}

// Size returns the payload size in bytes.
func (u RawUpload) Size() int { return len(u.Data) }

// FieldValue is one canonicalized field of a parsed record, in schema order.
type FieldValue struct {
	Name  string
	Value string
}

// Record is a validated row ready for fingerprinting and persistence.
// Fields keep the declared schema order; Hash is set once, before any
// persistence attempt, and never recomputed.
type Record struct {
	Bank   Bank
	Hash   string
	Fields []FieldValue
}

// Field returns the value for name, or "" when the record has no such field.
func (r Record) Field(name string) string {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

// Document returns the persisted document form of the record. The hash and
// the creation timestamp are storage metadata, not document content.
func (r Record) Document() map[string]string {
	doc := make(map[string]string, len(r.Fields)+1)
	for _, f := range r.Fields {
		doc[f.Name] = f.Value
	}
	doc["bank_type"] = r.Bank.String()
	return doc
}
