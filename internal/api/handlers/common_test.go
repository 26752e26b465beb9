package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netsweep/internal/db"
	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/scanning"
)

// MockStore is a mock implementation of HistoryStore and DatabasePinger.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Append(
	ctx context.Context,
	target string,
	timestamp time.Time,
	results []scanning.HostResult,
) (*db.ScanRecord, error) {
	args := m.Called(ctx, target, timestamp, results)
	record, _ := args.Get(0).(*db.ScanRecord)
	return record, args.Error(1)
}

func (m *MockStore) List(ctx context.Context) ([]*db.ScanRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]*db.ScanRecord)
	return records, args.Error(1)
}

func (m *MockStore) GetByID(ctx context.Context, id int64) (*db.ScanRecord, error) {
	args := m.Called(ctx, id)
	record, _ := args.Get(0).(*db.ScanRecord)
	return record, args.Error(1)
}

func (m *MockStore) DeleteByID(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func createTestLogger() *logging.Logger {
	return logging.NewWithWriter(&bytes.Buffer{}, logging.DefaultConfig())
}

func withScanID(r *http.Request, id string) *http.Request {
	return mux.SetURLVars(r, map[string]string{"scanId": id})
}

func sshRecord(id int64) *db.ScanRecord {
	return &db.ScanRecord{
		ID:        id,
		Target:    "10.0.0.5",
		Timestamp: time.Date(2026, 5, 4, 13, 37, 0, 0, time.UTC),
		Results: []scanning.HostResult{{
			Host:  "10.0.0.5",
			State: scanning.HostStateUp,
			Protocols: []scanning.ProtocolBlock{{
				Protocol: "tcp",
				Ports: []scanning.PortRecord{
					{Port: 22, State: "open", Service: "ssh", Version: "OpenSSH 8.2"},
				},
			}},
		}},
	}
}

func TestParseScanID(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		want    int64
		wantErr bool
	}{
		{"valid", map[string]string{"scanId": "42"}, 42, false},
		{"zero", map[string]string{"scanId": "0"}, 0, true},
		{"not a number", map[string]string{"scanId": "abc"}, 0, true},
		{"overflow", map[string]string{"scanId": "99999999999999999999"}, 0, true},
		{"missing", map[string]string{}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", http.NoBody), tt.vars)
			got, err := parseScanID(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseJSON(t *testing.T) {
	var req ScanRequest

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"target":"10.0.0.5"}`))
	require.NoError(t, parseJSON(r, &req, 1024))
	assert.Equal(t, "10.0.0.5", req.Target)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	assert.ErrorContains(t, parseJSON(r, &req, 1024), "empty")

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"target":`))
	assert.ErrorContains(t, parseJSON(r, &req, 1024), "invalid JSON")

	long := `{"target":"` + strings.Repeat("a", 100) + `"}`
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(long))
	assert.Error(t, parseJSON(r, &req, 16))
}

func TestHandleStoreError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"not found", errors.ErrNotFound("Scan 7"), http.StatusNotFound, msgScanNotFound},
		{"query failure", errors.NewDatabaseError(errors.CodeDatabaseQuery, "Database operation failed: list"),
			http.StatusInternalServerError, msgInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleStoreError(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody), createTestLogger(), "get", tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.JSONEq(t, `{"status":"error","message":`+strconv.Quote(tt.wantBody)+`}`, rec.Body.String())
		})
	}
}
