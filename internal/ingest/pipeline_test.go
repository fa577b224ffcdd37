package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guppyfunds/guppy-consumer/internal/ingest"
	"github.com/guppyfunds/guppy-consumer/internal/model"
	"github.com/guppyfunds/guppy-consumer/internal/store"
)

const amexHeader = "Date,Description,Card Member,Account #,Amount,Extended Details,Appears On Your Statement As,Address,City/State,Zip Code,Country,Reference,Category"

func amexRow(date, desc, amount, ref string) string {
	return fmt.Sprintf("%s,%s,JOHN DOE,-11111,%s,,,,,,,%s,", date, desc, amount, ref)
}

func amexCSV(rows ...string) []byte {
	return []byte(amexHeader + "\n" + strings.Join(rows, "\n") + "\n")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// spyStore wraps a Memory store, counting calls and optionally injecting
// failures.
type spyStore struct {
	inner       *store.Memory
	existsCalls int
	insertCalls int
	existsErr   error
	insertErr   error
}

func newSpyStore() *spyStore {
	return &spyStore{inner: store.NewMemory()}
}

func (s *spyStore) ExistingHashes(ctx context.Context, b model.Bank, hashes []string) (map[string]struct{}, error) {
	s.existsCalls++
	if s.existsErr != nil {
		return nil, s.existsErr
	}
	return s.inner.ExistingHashes(ctx, b, hashes)
}

func (s *spyStore) InsertRecords(ctx context.Context, b model.Bank, recs []model.Record) ([]ingest.InsertOutcome, error) {
	s.insertCalls++
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	return s.inner.InsertRecords(ctx, b, recs)
}

func assertInvariants(t *testing.T, r *model.IngestionReport) {
	t.Helper()
	assert.Equal(t, r.RowsTotal, r.ParsedOK+r.ParseFailed, "rows_total == parsed_ok + parse_failed")
	assert.Equal(t, r.ParsedOK, r.Duplicates+r.Inserted+r.InsertFailed, "parsed_ok == duplicates + inserted + insert_failed")
	assert.Len(t, r.Diagnostics, r.RowsTotal)
	for i, d := range r.Diagnostics {
		assert.Equal(t, i, d.RowIndex, "diagnostics keep row order")
	}
}

func TestIngest_AmexHappyPathWithOneBadRow(t *testing.T) {
	payload := amexCSV(
		amexRow("07/03/2025", "UBER TRIP", "24.50", "R001"),
		amexRow("07/04/2025", "COFFEE", "6.75", "R002"),
		amexRow("07/05/2025", "BOOKS", "not-a-number", "R003"),
		amexRow("07/06/2025", "GROCERIES", "88.12", "R004"),
	)

	st := newSpyStore()
	p := ingest.New(st, quietLogger())
	report := p.Ingest(context.Background(), model.RawUpload{Data: payload})

	assert.Equal(t, model.BankAmex, report.Bank)
	assert.Equal(t, 4, report.RowsTotal)
	assert.Equal(t, 3, report.ParsedOK)
	assert.Equal(t, 1, report.ParseFailed)
	assert.Equal(t, 0, report.Duplicates)
	assert.Equal(t, 3, report.Inserted)
	assert.Equal(t, 0, report.InsertFailed)
	assert.Empty(t, report.Error)
	assertInvariants(t, report)

	assert.Equal(t, model.RowInserted, report.Diagnostics[0].Status)
	assert.Equal(t, model.RowParseFailed, report.Diagnostics[2].Status)
	assert.Contains(t, report.Diagnostics[2].Reason, "non-numeric amount")

	assert.Equal(t, 1, st.existsCalls, "one batched existence check per upload")
	assert.Equal(t, 1, st.insertCalls)
}

func TestIngest_Idempotent(t *testing.T) {
	payload := amexCSV(
		amexRow("07/03/2025", "UBER TRIP", "24.50", "R001"),
		amexRow("07/04/2025", "COFFEE", "6.75", "R002"),
	)

	st := newSpyStore()
	p := ingest.New(st, quietLogger())

	first := p.Ingest(context.Background(), model.RawUpload{Data: payload})
	require.Equal(t, 2, first.Inserted)

	second := p.Ingest(context.Background(), model.RawUpload{Data: payload})
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, second.ParsedOK, second.Duplicates)
	assertInvariants(t, second)
}

func TestIngest_SameRowTwiceInOneBatch(t *testing.T) {
	row := amexRow("07/03/2025", "UBER TRIP", "24.50", "R001")
	payload := amexCSV(row, row)

	st := newSpyStore()
	p := ingest.New(st, quietLogger())
	report := p.Ingest(context.Background(), model.RawUpload{Data: payload})

	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, model.RowInserted, report.Diagnostics[0].Status, "first occurrence is authoritative")
	assert.Equal(t, model.RowDuplicate, report.Diagnostics[1].Status)
	assertInvariants(t, report)

	ctx := context.Background()
	n, err := st.inner.Count(ctx, model.BankAmex)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "at most one stored copy per fingerprint")
}

func TestIngest_WellsFargoHeaderless(t *testing.T) {
	payload := []byte(strings.Join([]string{
		`"06/06/2025","-30.00","*","","PURCHASE AUTHORIZED ON 06/05 COSTCO WHSE"`,
		`"06/07/2025","1250.00","*","","DIRECT DEPOSIT PAYROLL"`,
	}, "\n") + "\n")

	st := newSpyStore()
	p := ingest.New(st, quietLogger())
	report := p.Ingest(context.Background(), model.RawUpload{Data: payload})

	assert.Equal(t, model.BankWellsFargo, report.Bank)
	assert.Equal(t, 2, report.RowsTotal, "headerless: every line is a data row")
	assert.Equal(t, 2, report.Inserted)
	assertInvariants(t, report)
}

func TestIngest_UnrecognizedFormatMakesNoStoreCalls(t *testing.T) {
	payload := []byte("Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #\nDEBIT,01/03/2025,x,-4.00,ACH_DEBIT,100.00,\n")

	st := newSpyStore()
	p := ingest.New(st, quietLogger())
	report := p.Ingest(context.Background(), model.RawUpload{Data: payload})

	assert.True(t, report.Rejected())
	assert.Equal(t, model.BankUnknown, report.Bank)
	assert.Equal(t, 0, report.RowsTotal)
	assert.Contains(t, report.Error, "unrecognized bank format")
	assert.Equal(t, 0, st.existsCalls)
	assert.Equal(t, 0, st.insertCalls)
}

func TestIngest_EmptyUploadRejected(t *testing.T) {
	st := newSpyStore()
	p := ingest.New(st, quietLogger())
	report := p.Ingest(context.Background(), model.RawUpload{Data: nil})

	assert.True(t, report.Rejected())
	assert.Equal(t, "empty upload", report.Error)
	assert.Equal(t, 0, st.existsCalls)
}

func TestIngest_SomeHashesAlreadyStored(t *testing.T) {
	rows := []string{
		amexRow("07/01/2025", "A", "1.00", "R001"),
		amexRow("07/02/2025", "B", "2.00", "R002"),
		amexRow("07/03/2025", "C", "3.00", "R003"),
		amexRow("07/04/2025", "D", "4.00", "R004"),
		amexRow("07/05/2025", "E", "5.00", "R005"),
	}

	st := newSpyStore()
	p := ingest.New(st, quietLogger())

	// Seed the store with the first two rows.
	seed := p.Ingest(context.Background(), model.RawUpload{Data: amexCSV(rows[0], rows[1])})
	require.Equal(t, 2, seed.Inserted)

	report := p.Ingest(context.Background(), model.RawUpload{Data: amexCSV(rows...)})
	assert.Equal(t, 2, report.Duplicates)
	assert.Equal(t, 3, report.Inserted)
	assertInvariants(t, report)
}

func TestIngest_StoreDownOnExistenceCheck(t *testing.T) {
	st := newSpyStore()
	st.existsErr = errors.New("connection refused")
	p := ingest.New(st, quietLogger())

	report := p.Ingest(context.Background(), model.RawUpload{Data: amexCSV(
		amexRow("07/03/2025", "UBER TRIP", "24.50", "R001"),
		amexRow("07/04/2025", "COFFEE", "6.75", "R002"),
	)})

	assert.Equal(t, 2, report.InsertFailed, "pending records are accounted, not dropped")
	assert.Equal(t, 0, report.Inserted)
	assert.Equal(t, "connection refused", report.Error)
	assert.Equal(t, 0, st.insertCalls)
	assertInvariants(t, report)
	for _, d := range report.Diagnostics {
		assert.Equal(t, model.RowInsertFailed, d.Status)
		assert.Contains(t, d.Reason, "store unavailable")
	}
}

func TestIngest_StoreDownOnInsert(t *testing.T) {
	st := newSpyStore()
	st.insertErr = errors.New("connection reset")
	p := ingest.New(st, quietLogger())

	report := p.Ingest(context.Background(), model.RawUpload{Data: amexCSV(
		amexRow("07/03/2025", "UBER TRIP", "24.50", "R001"),
	)})

	assert.Equal(t, 1, report.InsertFailed)
	assert.Equal(t, "connection reset", report.Error)
	assertInvariants(t, report)
}

// racingStore reports no existing hashes but rejects every insert with a
// duplicate outcome, simulating a concurrent upload winning the
// check-then-act window.
type racingStore struct{}

func (racingStore) ExistingHashes(context.Context, model.Bank, []string) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (racingStore) InsertRecords(_ context.Context, _ model.Bank, recs []model.Record) ([]ingest.InsertOutcome, error) {
	outcomes := make([]ingest.InsertOutcome, len(recs))
	for i := range outcomes {
		outcomes[i] = ingest.InsertOutcome{Status: ingest.InsertDuplicate}
	}
	return outcomes, nil
}

func TestIngest_LateUniquenessViolationIsDuplicate(t *testing.T) {
	p := ingest.New(racingStore{}, quietLogger())
	report := p.Ingest(context.Background(), model.RawUpload{Data: amexCSV(
		amexRow("07/03/2025", "UBER TRIP", "24.50", "R001"),
	)})

	assert.Equal(t, 0, report.Inserted)
	assert.Equal(t, 0, report.InsertFailed, "a lost race is a duplicate, not a fault")
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, model.RowDuplicate, report.Diagnostics[0].Status)
	assertInvariants(t, report)
}

func TestIngest_DryRunSkipsStore(t *testing.T) {
	st := newSpyStore()
	p := ingest.New(st, quietLogger(), ingest.WithDryRun())

	report := p.Ingest(context.Background(), model.RawUpload{Data: amexCSV(
		amexRow("07/03/2025", "UBER TRIP", "24.50", "R001"),
		amexRow("07/04/2025", "COFFEE", "bad", "R002"),
	)})

	assert.Equal(t, 2, report.RowsTotal)
	assert.Equal(t, 1, report.ParsedOK)
	assert.Equal(t, 0, report.Inserted)
	assert.Equal(t, model.RowParsed, report.Diagnostics[0].Status)
	assert.Equal(t, model.RowParseFailed, report.Diagnostics[1].Status)
	assert.Equal(t, 0, st.existsCalls)
	assert.Equal(t, 0, st.insertCalls)
}

func TestIngest_Latin1PayloadAccepted(t *testing.T) {
	// CAFÉ with a Latin-1 encoded É in the description.
	row := []byte(`"06/06/2025","-8.00","*","","CAF`)
	row = append(row, 0xC9)
	row = append(row, []byte(` PURCHASE"`+"\n")...)

	st := newSpyStore()
	p := ingest.New(st, quietLogger())
	report := p.Ingest(context.Background(), model.RawUpload{Data: row})

	assert.Equal(t, model.BankWellsFargo, report.Bank)
	assert.Equal(t, 1, report.Inserted)
}
