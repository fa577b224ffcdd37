package store

import (
	"context"
	"sync"

	"github.com/guppyfunds/guppy-consumer/internal/ingest"
	"github.com/guppyfunds/guppy-consumer/internal/model"
)

// Memory is an in-process Store used by tests. It enforces the same
// fingerprint uniqueness the Postgres adapter does, so pipeline behavior is
// identical against either.
type Memory struct {
	mu   sync.Mutex
	recs map[model.Bank]map[string]model.Record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{recs: make(map[model.Bank]map[string]model.Record)}
}

// ExistingHashes returns which fingerprints are already stored for the bank.
func (m *Memory) ExistingHashes(_ context.Context, b model.Bank, hashes []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := make(map[string]struct{})
	for _, h := range hashes {
		if _, ok := m.recs[b][h]; ok {
			existing[h] = struct{}{}
		}
	}
	return existing, nil
}

// InsertRecords stores the batch, reporting a duplicate outcome for any
// fingerprint already present.
func (m *Memory) InsertRecords(_ context.Context, b model.Bank, recs []model.Record) ([]ingest.InsertOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recs[b] == nil {
		m.recs[b] = make(map[string]model.Record)
	}
	outcomes := make([]ingest.InsertOutcome, len(recs))
	for i, rec := range recs {
		if _, ok := m.recs[b][rec.Hash]; ok {
			outcomes[i] = ingest.InsertOutcome{Status: ingest.InsertDuplicate}
			continue
		}
		m.recs[b][rec.Hash] = rec
		outcomes[i] = ingest.InsertOutcome{Status: ingest.InsertOK}
	}
	return outcomes, nil
}

// Count returns the number of stored records for the bank.
func (m *Memory) Count(_ context.Context, b model.Bank) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.recs[b])), nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

// Get returns a stored record by fingerprint.
func (m *Memory) Get(b model.Bank, hash string) (model.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[b][hash]
	return rec, ok
}
