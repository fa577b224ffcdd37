// Package api exposes the ingestion pipeline over HTTP: upload, health,
// collection stats, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guppyfunds/guppy-consumer/internal/bank"
	"github.com/guppyfunds/guppy-consumer/internal/ingest"
	"github.com/guppyfunds/guppy-consumer/internal/model"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guppy_uploads_total",
		Help: "Uploads processed, labeled by bank and outcome",
	}, []string{"bank", "outcome"})

	rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "guppy_rows_total",
		Help: "Row outcomes across all uploads",
	}, []string{"bank", "status"})

	uploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guppy_upload_duration_seconds",
		Help:    "Upload processing latency",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"bank"})
)

// StatsStore is the read-side capability for health and stats endpoints.
type StatsStore interface {
	Count(ctx context.Context, b model.Bank) (int64, error)
	Ping(ctx context.Context) error
}

// Handler wires the pipeline and store into HTTP endpoints.
type Handler struct {
	pipeline  *ingest.Pipeline
	store     StatsStore
	logger    *slog.Logger
	maxUpload int64
}

// NewHandler creates a Handler. maxUploadMB bounds the accepted payload size.
func NewHandler(p *ingest.Pipeline, s StatsStore, logger *slog.Logger, maxUploadMB int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	return &Handler{
		pipeline:  p,
		store:     s,
		logger:    logger,
		maxUpload: int64(maxUploadMB) << 20,
	}
}

// Router builds the route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.Health).Methods("GET")

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/upload", h.Upload).Methods("POST")
	v1.HandleFunc("/collections/stats", h.Stats).Methods("GET")
	return r
}

// Upload accepts a multipart CSV file, runs the pipeline, and returns the
// IngestionReport. A rejected upload (unknown format, bad encoding) is 422;
// a store fault mid-upload is 502 with the best-effort report attached.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		respondError(w, http.StatusBadRequest, "only CSV files are supported")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "upload too large or unreadable")
		return
	}

	h.logger.Info("upload received", "filename", header.Filename, "size_bytes", len(data))

	upload := model.RawUpload{
		Data:     data,
		Encoding: r.FormValue("encoding"),
	}
	report := h.pipeline.Ingest(r.Context(), upload)
	observe(report)

	switch {
	case report.Rejected():
		respondJSON(w, http.StatusUnprocessableEntity, report)
	case report.Error != "":
		respondJSON(w, http.StatusBadGateway, report)
	default:
		respondJSON(w, http.StatusOK, report)
	}
}

// Health reports store connectivity and collection accessibility.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	connected := true
	accessible := true

	if err := h.store.Ping(r.Context()); err != nil {
		status, connected, accessible = "unhealthy", false, false
	} else {
		for _, s := range bank.Registry() {
			if _, err := h.store.Count(r.Context(), s.Bank); err != nil {
				status, accessible = "degraded", false
				break
			}
		}
	}

	code := http.StatusOK
	if !connected {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]any{
		"status":                 status,
		"database_connected":     connected,
		"collections_accessible": accessible,
	})
}

// Stats returns document counts per bank collection.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	type collStats struct {
		Collection string `json:"collection"`
		Documents  int64  `json:"documents"`
	}

	out := make(map[string]collStats)
	for _, s := range bank.Registry() {
		n, err := h.store.Count(r.Context(), s.Bank)
		if err != nil {
			h.logger.Error("collection stats failed", "bank", s.Bank.String(), "error", err)
			respondError(w, http.StatusInternalServerError, "collection stats unavailable")
			return
		}
		out[s.Bank.String()] = collStats{Collection: s.Collection, Documents: n}
	}
	respondJSON(w, http.StatusOK, out)
}

func observe(report *model.IngestionReport) {
	b := report.Bank.String()

	outcome := "ok"
	if report.Error != "" {
		outcome = "rejected"
	}
	uploadsTotal.WithLabelValues(b, outcome).Inc()
	uploadDuration.WithLabelValues(b).Observe(float64(report.DurationMS) / 1000)

	rowsTotal.WithLabelValues(b, string(model.RowParseFailed)).Add(float64(report.ParseFailed))
	rowsTotal.WithLabelValues(b, string(model.RowDuplicate)).Add(float64(report.Duplicates))
	rowsTotal.WithLabelValues(b, string(model.RowInserted)).Add(float64(report.Inserted))
	rowsTotal.WithLabelValues(b, string(model.RowInsertFailed)).Add(float64(report.InsertFailed))
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, map[string]string{"error": message})
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
