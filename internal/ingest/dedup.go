package ingest

import "github.com/guppyfunds/guppy-consumer/internal/model"

// Candidate pairs a fingerprinted record with its source data-row index.
type Candidate struct {
	Row    int
	Record model.Record
}

// Dedup partitions candidates into fresh and duplicate, preserving input
// order within each partition. A candidate is a duplicate when its
// fingerprint is already persisted or when an earlier candidate in the same
// batch produced the same fingerprint; only the first occurrence is fresh.
func Dedup(cands []Candidate, existing map[string]struct{}) (fresh, dups []Candidate) {
	seen := make(map[string]struct{}, len(cands))
	for _, c := range cands {
		h := c.Record.Hash
		if _, stored := existing[h]; stored {
			dups = append(dups, c)
			continue
		}
		if _, inBatch := seen[h]; inBatch {
			dups = append(dups, c)
			continue
		}
		seen[h] = struct{}{}
		fresh = append(fresh, c)
	}
	return fresh, dups
}
