// Package ingest runs the upload pipeline: detect the bank format, parse
// and validate every row, fingerprint, deduplicate against the store, and
// bulk-persist what is new. Each upload yields exactly one IngestionReport
// accounting for every input row.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guppyfunds/guppy-consumer/internal/bank"
	"github.com/guppyfunds/guppy-consumer/internal/fingerprint"
	"github.com/guppyfunds/guppy-consumer/internal/model"
	"github.com/guppyfunds/guppy-consumer/internal/parse"
)

// ErrEmptyUpload means the payload contained no CSV lines at all.
var ErrEmptyUpload = errors.New("empty upload")

// Pipeline processes one upload at a time, sequentially through its stages.
// Concurrent uploads may share a Pipeline; there is no mutable state beyond
// the store itself.
type Pipeline struct {
	store  Store
	logger *slog.Logger
	dryRun bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDryRun stops the pipeline after parsing and fingerprinting. No store
// call is made; rows that parsed cleanly are reported with status "parsed".
func WithDryRun() Option {
	return func(p *Pipeline) { p.dryRun = true }
}

// New creates a Pipeline over the given store.
func New(store Store, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{store: store, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Ingest runs one upload end to end and always returns a report, even when
// the upload is rejected or the store goes away mid-flight. Row-scoped
// failures never propagate past their row.
func (p *Pipeline) Ingest(ctx context.Context, upload model.RawUpload) *model.IngestionReport {
	start := time.Now()
	report := &model.IngestionReport{UploadID: uuid.New(), Bank: model.BankUnknown}
	finish := func() *model.IngestionReport {
		report.DurationMS = time.Since(start).Milliseconds()
		return report
	}

	text, err := parse.Decode(upload)
	if err != nil {
		p.logger.Warn("upload rejected", "upload_id", report.UploadID, "reason", err)
		report.Error = err.Error()
		return finish()
	}

	rows := parse.ReadRows(strings.NewReader(text))
	if len(rows) == 0 {
		report.Error = ErrEmptyUpload.Error()
		return finish()
	}

	// Detection inspects the first line only.
	if rows[0].Err != nil {
		report.Error = bank.ErrUnrecognizedFormat.Error()
		return finish()
	}
	schema, err := bank.Detect(rows[0].Fields)
	if err != nil {
		p.logger.Warn("upload rejected", "upload_id", report.UploadID, "reason", err)
		report.Error = err.Error()
		return finish()
	}
	report.Bank = schema.Bank
	p.logger.Info("bank detected", "upload_id", report.UploadID, "bank", schema.Bank.String(), "size_bytes", upload.Size())

	data := rows
	if schema.HasHeader {
		data = rows[1:]
	}
	report.RowsTotal = len(data)
	diags := make([]model.RowDiagnostic, len(data))

	// Parse and fingerprint every row independently.
	var cands []Candidate
	for i, row := range data {
		if row.Err != nil {
			p.failRow(report, diags, i, row.Err.Error())
			continue
		}
		rec, err := parse.ParseRow(schema, i, row.Fields)
		if err != nil {
			p.failRow(report, diags, i, parseReason(err))
			continue
		}
		rec.Hash = fingerprint.Compute(schema, rec)
		report.ParsedOK++
		diags[i] = model.RowDiagnostic{RowIndex: i, Status: model.RowParsed}
		cands = append(cands, Candidate{Row: i, Record: rec})
	}
	report.Diagnostics = diags

	if p.dryRun || len(cands) == 0 {
		p.logSummary(report)
		return finish()
	}

	// One batched existence check for the whole upload.
	hashes := make([]string, len(cands))
	for i, c := range cands {
		hashes[i] = c.Record.Hash
	}
	existing, err := p.store.ExistingHashes(ctx, schema.Bank, hashes)
	if err != nil {
		p.logger.Error("existence check failed", "upload_id", report.UploadID, "error", err)
		p.failPending(report, diags, cands, "store unavailable: "+err.Error())
		report.Error = err.Error()
		return finish()
	}

	fresh, dups := Dedup(cands, existing)
	for _, c := range dups {
		report.Duplicates++
		diags[c.Row] = model.RowDiagnostic{RowIndex: c.Row, Status: model.RowDuplicate}
	}

	if len(fresh) > 0 {
		p.persist(ctx, schema.Bank, report, diags, fresh)
	}

	p.logSummary(report)
	return finish()
}

// persist bulk-inserts the fresh records and maps per-record outcomes back
// onto their rows. A whole-batch failure marks every pending record
// insert_failed rather than dropping it.
func (p *Pipeline) persist(ctx context.Context, b model.Bank, report *model.IngestionReport, diags []model.RowDiagnostic, fresh []Candidate) {
	recs := make([]model.Record, len(fresh))
	for i, c := range fresh {
		recs[i] = c.Record
	}

	outcomes, err := p.store.InsertRecords(ctx, b, recs)
	if err != nil {
		p.logger.Error("bulk insert failed", "upload_id", report.UploadID, "error", err)
		p.failPending(report, diags, fresh, "store unavailable: "+err.Error())
		report.Error = err.Error()
		return
	}

	for i, out := range outcomes {
		row := fresh[i].Row
		switch out.Status {
		case InsertOK:
			report.Inserted++
			diags[row] = model.RowDiagnostic{RowIndex: row, Status: model.RowInserted}
		case InsertDuplicate:
			// Lost the check-then-act race to a concurrent upload.
			report.Duplicates++
			diags[row] = model.RowDiagnostic{RowIndex: row, Status: model.RowDuplicate, Reason: "fingerprint already stored"}
		default:
			report.InsertFailed++
			diags[row] = model.RowDiagnostic{RowIndex: row, Status: model.RowInsertFailed, Reason: out.Reason}
		}
	}
}

func (p *Pipeline) failRow(report *model.IngestionReport, diags []model.RowDiagnostic, i int, reason string) {
	report.ParseFailed++
	diags[i] = model.RowDiagnostic{RowIndex: i, Status: model.RowParseFailed, Reason: reason}
	p.logger.Debug("row rejected", "upload_id", report.UploadID, "row", i, "reason", reason)
}

// failPending marks every still-pending candidate insert_failed so the
// report accounts for all rows even on an upload-fatal store fault.
func (p *Pipeline) failPending(report *model.IngestionReport, diags []model.RowDiagnostic, cands []Candidate, reason string) {
	for _, c := range cands {
		report.InsertFailed++
		diags[c.Row] = model.RowDiagnostic{RowIndex: c.Row, Status: model.RowInsertFailed, Reason: reason}
	}
}

func (p *Pipeline) logSummary(report *model.IngestionReport) {
	p.logger.Info("upload processed",
		"upload_id", report.UploadID,
		"bank", report.Bank.String(),
		"rows_total", report.RowsTotal,
		"parsed_ok", report.ParsedOK,
		"parse_failed", report.ParseFailed,
		"duplicates", report.Duplicates,
		"inserted", report.Inserted,
		"insert_failed", report.InsertFailed,
	)
}

func parseReason(err error) string {
	var re *parse.RowError
	if errors.As(err, &re) {
		return re.Reason
	}
	return err.Error()
}
