// Package fingerprint computes the content digest used as the duplicate
// detection key for ingested records.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/guppyfunds/guppy-consumer/internal/bank"
	"github.com/guppyfunds/guppy-consumer/internal/model"
)

// delimiter joins key fields in the canonical serialization.
const delimiter = "|"

// Compute returns the record's fingerprint: a SHA-256 hex digest over the
// schema's key fields in declared order, joined with a fixed delimiter.
// Identical field values always yield an identical digest regardless of
// process or insertion order. Storage metadata (raw_hash, created_at) never
// participates.
func Compute(s bank.Schema, rec model.Record) string {
	parts := make([]string, 0, len(s.Fields))
	for i, f := range s.Fields {
		if !f.Key {
			continue
		}
		v := rec.Fields[i].Value
		if f.Fold {
			v = strings.ToLower(strings.TrimSpace(v))
		}
		parts = append(parts, v)
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, delimiter)))
	return hex.EncodeToString(sum[:])
}

// Stamp computes and assigns fingerprints for a batch, in place. Each
// record is fingerprinted exactly once, before any persistence attempt.
func Stamp(s bank.Schema, recs []model.Record) {
	for i := range recs {
		recs[i].Hash = Compute(s, recs[i])
	}
}
