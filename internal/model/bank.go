package model

import (
	"encoding/json"
	"fmt"
)

// Bank identifies a supported CSV source format. The set is closed: adding
// a bank means adding a constant here and a schema to the registry.
type Bank int

const (
	BankUnknown Bank = iota
	BankAmex
	BankWellsFargo
)

// String returns the wire name of the bank ("amex", "wells_fargo").
func (b Bank) String() string {
	switch b {
	case BankAmex:
		return "amex"
	case BankWellsFargo:
		return "wells_fargo"
	default:
		return "unknown"
	}
}

// BankFromString maps a wire name back to a Bank. Anything unrecognized is
// BankUnknown.
func BankFromString(s string) Bank {
	switch s {
	case "amex":
		return BankAmex
	case "wells_fargo":
		return BankWellsFargo
	default:
		return BankUnknown
	}
}

// MarshalJSON encodes the bank as its wire name.
func (b Bank) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", b.String())), nil
}

// UnmarshalJSON decodes a wire name.
func (b *Bank) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*b = BankFromString(s)
	return nil
}
