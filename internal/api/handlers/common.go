// Package handlers provides HTTP request handlers for the netsweep API.
// This file contains the store and scanner contracts the handlers depend on
// and the response helpers shared by every endpoint.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/anstrom/netsweep/internal/api/middleware"
	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/scanning"
)

// ScanStreamer produces the event sequence of one scan.
type ScanStreamer interface {
	Stream(ctx context.Context, target string) iter.Seq[scanning.Event]
}

// HistoryStore persists completed scans.
type HistoryStore interface {
	Append(ctx context.Context, target string, timestamp time.Time, results []scanning.HostResult) (*db.ScanRecord, error)
	List(ctx context.Context) ([]*db.ScanRecord, error)
	GetByID(ctx context.Context, id int64) (*db.ScanRecord, error)
	DeleteByID(ctx context.Context, id int64) error
}

// DatabasePinger interface for health checks.
type DatabasePinger interface {
	Ping(ctx context.Context) error
}

// StatusResponse is the body of simple success and error replies.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

const (
	statusSuccess = "success"
	statusError   = "error"

	msgScanNotFound  = "Scan not found"
	msgInternalError = "Internal server error"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log error but don't try to write another response
		logging.Error("Failed to encode JSON response",
			"request_id", middleware.GetRequestID(r),
			"error", err)
	}
}

// writeError writes {"status":"error","message":...}.
func writeError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	writeJSON(w, r, statusCode, StatusResponse{Status: statusError, Message: message})
}

// parseJSON decodes a size-limited request body into dest.
func parseJSON(r *http.Request, dest interface{}, maxSize int64) error {
	if r.Body == nil {
		return fmt.Errorf("request body is empty")
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxSize))
	if err := decoder.Decode(dest); err != nil {
		if err == io.EOF {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// parseScanID reads the scanId path variable.
func parseScanID(r *http.Request) (int64, error) {
	raw, ok := mux.Vars(r)["scanId"]
	if !ok {
		return 0, fmt.Errorf("scan id not provided")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid scan id: %s", raw)
	}
	return id, nil
}

// handleStoreError maps a store failure onto a 404 or 500 reply. Store
// details stay in the log.
func handleStoreError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, op string, err error) {
	if errors.IsNotFound(err) {
		writeError(w, r, http.StatusNotFound, msgScanNotFound)
		return
	}

	logger.ErrorStore("History operation failed", err,
		"operation", op,
		"request_id", middleware.GetRequestID(r))
	writeError(w, r, http.StatusInternalServerError, msgInternalError)
}
