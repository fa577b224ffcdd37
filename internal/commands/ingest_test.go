package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guppyfunds/guppy-consumer/internal/model"
)

func TestRunIngestDryRun(t *testing.T) {
	var out bytes.Buffer

	err := runIngest(context.Background(), &out, "no-such-config.yaml",
		filepath.Join("..", "..", "testdata", "amex.csv"), "", true)
	require.NoError(t, err)

	var report model.IngestionReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))

	assert.Equal(t, model.BankAmex, report.Bank)
	assert.Equal(t, 3, report.RowsTotal)
	assert.Equal(t, 3, report.ParsedOK)
	assert.Equal(t, 0, report.Inserted)
	for _, d := range report.Diagnostics {
		assert.Equal(t, model.RowParsed, d.Status)
	}
}

func TestRunIngestWellsDryRun(t *testing.T) {
	var out bytes.Buffer

	err := runIngest(context.Background(), &out, "no-such-config.yaml",
		filepath.Join("..", "..", "testdata", "wells_fargo.csv"), "", true)
	require.NoError(t, err)

	var report model.IngestionReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))

	assert.Equal(t, model.BankWellsFargo, report.Bank)
	assert.Equal(t, report.RowsTotal, report.ParsedOK)
}

func TestRunIngestRejectedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chase.csv")
	require.NoError(t, os.WriteFile(path, []byte("Posting Date,Amount\n01/02/2025,1.00\n"), 0o644))

	var out bytes.Buffer
	err := runIngest(context.Background(), &out, "no-such-config.yaml", path, "", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload rejected")
}

func TestRunIngestMissingFile(t *testing.T) {
	var out bytes.Buffer
	err := runIngest(context.Background(), &out, "no-such-config.yaml", "does-not-exist.csv", "", true)
	require.Error(t, err)
}

func TestRootCommandWiring(t *testing.T) {
	root := NewRootCommand()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["ingest"])
}
