package parse

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/guppyfunds/guppy-consumer/internal/bank"
	"github.com/guppyfunds/guppy-consumer/internal/model"
)

// RowError is a row-scoped parse failure. It never aborts the batch; the
// pipeline records it and moves on to the next row.
type RowError struct {
	Row    int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// ParseRow validates one data row against the schema and produces a Record.
// The field count is checked before any per-field coercion; a mismatch fails
// the whole row. Amounts parse as fixed-point decimals, dates strictly with
// the bank's format string.
func ParseRow(s bank.Schema, row int, cells []string) (model.Record, error) {
	if len(cells) != len(s.Fields) {
		return model.Record{}, &RowError{
			Row:    row,
			Reason: fmt.Sprintf("expected %d fields, got %d", len(s.Fields), len(cells)),
		}
	}

	fields := make([]model.FieldValue, len(s.Fields))
	for i, f := range s.Fields {
		val, err := coerce(f, strings.TrimSpace(cells[i]), s.DateFormat)
		if err != nil {
			return model.Record{}, &RowError{
				Row:    row,
				Reason: fmt.Sprintf("field %q: %v", f.Name, err),
			}
		}
		fields[i] = model.FieldValue{Name: f.Name, Value: val}
	}

	return model.Record{Bank: s.Bank, Fields: fields}, nil
}

// coerce applies the field's typing rule and returns the canonical string
// form: dates reformatted with the bank's format, amounts via decimal.
func coerce(f bank.Field, raw, dateFormat string) (string, error) {
	if raw == "" {
		if f.Required {
			return "", errors.New("value is required")
		}
		return "", nil
	}

	switch f.Type {
	case bank.FieldDate:
		t, err := time.Parse(dateFormat, raw)
		if err != nil {
			return "", fmt.Errorf("unparseable date %q", raw)
		}
		return t.Format(dateFormat), nil
	case bank.FieldAmount:
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return "", fmt.Errorf("non-numeric amount %q", raw)
		}
		return d.String(), nil
	default:
		return raw, nil
	}
}
