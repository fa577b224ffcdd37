package model

import "github.com/google/uuid"

// RowStatus is the terminal outcome of one input row.
type RowStatus string

const (
	RowParsed       RowStatus = "parsed"
	RowParseFailed  RowStatus = "parse_failed"
	RowDuplicate    RowStatus = "duplicate"
	RowInserted     RowStatus = "inserted"
	RowInsertFailed RowStatus = "insert_failed"
)

// RowDiagnostic records what happened to a single data row. RowIndex is
// 0-based over data rows; the header line is not a row.
type RowDiagnostic struct {
	RowIndex int       `json:"row_index"`
	Status   RowStatus `json:"status"`
	Reason   string    `json:"reason,omitempty"`
}

/// IngestionReport is the sole contract of an upload: aggregate counts plus
// the ordered per-row diagnostics. It is built once per upload and owned by
// the caller after return.
//
// Counts always satisfy RowsTotal == ParsedOK + ParseFailed and
// ParsedOK == Duplicates + Inserted + InsertFailed for completed uploads.
type IngestionReport struct {
	UploadID     uuid.UUID       `json:"upload_id"`
	Bank         Bank            `json:"bank_type"`
	RowsTotal    int             `json:"rows_total"`
	ParsedOK     int             `json:"parsed_ok"`
	ParseFailed  int             `json:"parse_failed"`
	Duplicates   int             `json:"duplicates"`
	Inserted     int             `json:"inserted"`
	InsertFailed int             `json:"insert_failed"`
	DurationMS   int64           `json:"duration_ms"`
	Error        string          `json:"error,omitempty"` // upload-level rejection reason
	Diagnostics  []RowDiagnostic `json:"diagnostics"`
}

// Rejected reports whether the upload was turned away before any row was
// processed.
func (r *IngestionReport) Rejected() bool {
	return r.Error != "" && r.RowsTotal == 0
}
