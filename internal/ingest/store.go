package ingest

import (
	"context"

	"github.com/guppyfunds/guppy-consumer/internal/model"
)

// InsertStatus is the per-record outcome of a batch insert.
type InsertStatus int

const (
	InsertOK InsertStatus = iota
	// InsertDuplicate means the store's uniqueness constraint rejected the
	// record: another upload won the check-then-act race. A duplicate
	// outcome, never a fault.
	InsertDuplicate
	InsertError
)

// InsertOutcome reports what happened to one record of a batch insert.
type InsertOutcome struct {
	Status InsertStatus
	Reason string
}

// Store is the persistence capability the pipeline depends on. Both calls
// are scoped by bank and route to that bank's collection. Implementations
// must enforce a uniqueness constraint on the fingerprint; that constraint,
// not the in-memory filter, is the final guard against concurrent
// overlapping uploads.
type Store interface {
	// ExistingHashes returns which of the given fingerprints are already
	// persisted, in a single batched lookup.
	ExistingHashes(ctx context.Context, b model.Bank, hashes []string) (map[string]struct{}, error)

	// InsertRecords persists the batch and returns one outcome per record,
	// in input order. A returned error means the whole batch failed.
	InsertRecords(ctx context.Context, b model.Bank, recs []model.Record) ([]InsertOutcome, error)
}
