// Package store persists ingested records, one collection per bank, with a
// uniqueness constraint on the fingerprint as the final duplicate guard.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guppyfunds/guppy-consumer/internal/bank"
	"github.com/guppyfunds/guppy-consumer/internal/ingest"
	"github.com/guppyfunds/guppy-consumer/internal/model"
)

// uniqueViolation is the SQLSTATE for a unique constraint hit.
const uniqueViolation = "23505"

// Config holds connection settings for the Postgres store. Empty table
// names fall back to the registry's collection names.
type Config struct {
	URL        string
	AmexTable  string
	WellsTable string
}

// Postgres stores records in one table per bank collection. Documents are
// kept as JSONB; raw_hash and created_at are columns, with created_at
// assigned by the database at insert time.
type Postgres struct {
	pool   *pgxpool.Pool
	tables map[model.Bank]string
	logger *slog.Logger
}

// NewPostgres connects a pool and verifies it with a ping.
func NewPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	tables := make(map[model.Bank]string)
	for _, s := range bank.Registry() {
		tables[s.Bank] = s.Collection
	}
	if cfg.AmexTable != "" {
		tables[model.BankAmex] = cfg.AmexTable
	}
	if cfg.WellsTable != "" {
		tables[model.BankWellsFargo] = cfg.WellsTable
	}

	return &Postgres{pool: pool, tables: tables, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

// EnsureSchema creates the per-bank tables, the unique fingerprint index
// that backs duplicate detection, and the created_at index for
// chronological queries.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	for _, tbl := range s.tables {
		stmts := []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				raw_hash TEXT NOT NULL,
				doc JSONB NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`, tbl),
			fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s_raw_hash_idx ON %s (raw_hash)", tbl, tbl),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_created_at_idx ON %s (created_at)", tbl, tbl),
		}
		for _, stmt := range stmts {
			if _, err := s.pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensuring schema for %s: %w", tbl, err)
			}
		}
	}
	s.logger.Info("storage schema ensured", "tables", len(s.tables))
	return nil
}

func (s *Postgres) table(b model.Bank) (string, error) {
	tbl, ok := s.tables[b]
	if !ok {
		return "", fmt.Errorf("no collection for bank %q", b)
	}
	return tbl, nil
}

// ExistingHashes returns which of the given fingerprints are already stored
// for the bank, using a single batched query.
func (s *Postgres) ExistingHashes(ctx context.Context, b model.Bank, hashes []string) (map[string]struct{}, error) {
	tbl, err := s.table(b)
	if err != nil {
		return nil, err
	}
	if len(hashes) == 0 {
		return map[string]struct{}{}, nil
	}

	rows, err := s.pool.Query(ctx,
		fmt.Sprintf("SELECT raw_hash FROM %s WHERE raw_hash = ANY($1)", tbl), hashes)
	if err != nil {
		return nil, fmt.Errorf("querying existing hashes: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scanning hash: %w", err)
		}
		existing[h] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading existing hashes: %w", err)
	}
	return existing, nil
}

// InsertRecords bulk-inserts the batch with one outcome per record. The
// unique index turns a late-arriving twin into an InsertDuplicate outcome
// instead of a stored copy or a batch failure.
func (s *Postgres) InsertRecords(ctx context.Context, b model.Bank, recs []model.Record) ([]ingest.InsertOutcome, error) {
	tbl, err := s.table(b)
	if err != nil {
		return nil, err
	}

	batch := &pgx.Batch{}
	stmt := fmt.Sprintf("INSERT INTO %s (raw_hash, doc) VALUES ($1, $2) ON CONFLICT (raw_hash) DO NOTHING", tbl)
	for _, rec := range recs {
		doc, err := json.Marshal(rec.Document())
		if err != nil {
			return nil, fmt.Errorf("encoding document: %w", err)
		}
		batch.Queue(stmt, rec.Hash, doc)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	outcomes := make([]ingest.InsertOutcome, len(recs))
	for i := range recs {
		tag, err := results.Exec()
		switch {
		case err != nil:
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				outcomes[i] = ingest.InsertOutcome{Status: ingest.InsertDuplicate}
				continue
			}
			s.logger.Error("record insert failed", "bank", b.String(), "error", err)
			outcomes[i] = ingest.InsertOutcome{Status: ingest.InsertError, Reason: err.Error()}
		case tag.RowsAffected() == 0:
			// ON CONFLICT DO NOTHING swallowed a concurrent twin.
			outcomes[i] = ingest.InsertOutcome{Status: ingest.InsertDuplicate}
		default:
			outcomes[i] = ingest.InsertOutcome{Status: ingest.InsertOK}
		}
	}
	return outcomes, nil
}

// Count returns the number of documents in the bank's collection.
func (s *Postgres) Count(ctx context.Context, b model.Bank) (int64, error) {
	tbl, err := s.table(b)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", tbl)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", tbl, err)
	}
	return n, nil
}

// Ping checks database connectivity.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
