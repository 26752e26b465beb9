package handlers

import (
	"bytes"
	"net/http"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/export"
	"github.com/anstrom/netsweep/internal/logging"
)

// HistoryHandler serves stored scans.
type HistoryHandler struct {
	store  HistoryStore
	logger *logging.Logger
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(store HistoryStore, logger *logging.Logger) *HistoryHandler {
	return &HistoryHandler{
		store:  store,
		logger: logger.WithComponent("history-handler"),
	}
}

// List handles GET /api/history, newest first.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.store.List(r.Context())
	if err != nil {
		handleStoreError(w, r, h.logger, "list", err)
		return
	}
	if records == nil {
		records = []*db.ScanRecord{}
	}
	writeJSON(w, r, http.StatusOK, records)
}

// Get handles GET /api/history/{scanId}.
func (h *HistoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseScanID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		handleStoreError(w, r, h.logger, "get", err)
		return
	}
	writeJSON(w, r, http.StatusOK, record)
}

// Delete handles DELETE /api/history/{scanId}.
func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseScanID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.DeleteByID(r.Context(), id); err != nil {
		handleStoreError(w, r, h.logger, "delete", err)
		return
	}

	writeJSON(w, r, http.StatusOK, StatusResponse{Status: statusSuccess})
}

// ExportCSV handles GET /api/export/csv/{scanId}. The document is rendered
// in full before any header is sent so failures can still produce a 500.
func (h *HistoryHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	id, err := parseScanID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		handleStoreError(w, r, h.logger, "export", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, record); err != nil {
		h.logger.Error("Failed to render CSV export", "scan_id", id, "error", err)
		writeError(w, r, http.StatusInternalServerError, msgInternalError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+export.Filename(id))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
