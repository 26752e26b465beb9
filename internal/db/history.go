package db

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/metrics"
	"github.com/anstrom/netsweep/internal/scanning"
)

// TimestampLayout is the stored timestamp format. It is fixed width and
// always UTC, so text ordering equals chronological ordering.
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTimestamp renders t in the stored layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a stored timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// ScanRecord is one persisted, completed scan.
type ScanRecord struct {
	ID        int64                 `json:"id"`
	Target    string                `json:"target"`
	Timestamp time.Time             `json:"timestamp"`
	Results   []scanning.HostResult `json:"results"`
}

// scanHistoryRow is the storage shape of a ScanRecord.
type scanHistoryRow struct {
	ID         int64  `db:"id"`
	Target     string `db:"target"`
	Timestamp  string `db:"timestamp"`
	ResultJSON string `db:"result_json"`
}

func (r *scanHistoryRow) record() (*ScanRecord, error) {
	ts, err := ParseTimestamp(r.Timestamp)
	if err != nil {
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseQuery,
			fmt.Sprintf("Scan %d has a malformed timestamp", r.ID), err)
	}

	results := []scanning.HostResult{}
	if err := json.Unmarshal([]byte(r.ResultJSON), &results); err != nil {
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseQuery,
			fmt.Sprintf("Scan %d has a malformed result payload", r.ID), err)
	}
	if results == nil {
		results = []scanning.HostResult{}
	}

	return &ScanRecord{ID: r.ID, Target: r.Target, Timestamp: ts, Results: results}, nil
}

// HistoryRepository persists completed scans. Writes are serialised so
// concurrent appends never interleave.
type HistoryRepository struct {
	db      *DB
	mu      sync.Mutex
	metrics metrics.Collector
	logger  *logging.Logger
}

// HistoryOption customizes a HistoryRepository.
type HistoryOption func(*HistoryRepository)

// WithHistoryMetrics sets the metrics collector.
func WithHistoryMetrics(c metrics.Collector) HistoryOption {
	return func(r *HistoryRepository) {
		r.metrics = c
	}
}

// WithHistoryLogger sets the repository logger.
func WithHistoryLogger(l *logging.Logger) HistoryOption {
	return func(r *HistoryRepository) {
		r.logger = l
	}
}

// NewHistoryRepository creates a repository on db.
func NewHistoryRepository(db *DB, opts ...HistoryOption) *HistoryRepository {
	r := &HistoryRepository{
		db:      db,
		metrics: metrics.Nop{},
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *HistoryRepository) observe(op string, start time.Time, err error) {
	r.metrics.StoreOperation(op, time.Since(start), err)
}

// Append stores a completed scan and returns it with its assigned id.
func (r *HistoryRepository) Append(
	ctx context.Context, target string, timestamp time.Time, results []scanning.HostResult,
) (rec *ScanRecord, err error) {
	start := time.Now()
	defer func() { r.observe("append", start, err) }()

	if results == nil {
		results = []scanning.HostResult{}
	}
	payload, err := json.Marshal(results)
	if err != nil {
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseQuery, "Failed to encode scan results", err)
	}
	timestamp = timestamp.UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, sanitizeDBError("begin append", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := r.db.Rebind(`
		INSERT INTO scan_history (target, timestamp, result_json)
		VALUES (?, ?, ?)
		RETURNING id`)

	var id int64
	if err := tx.QueryRowxContext(ctx, query, target, FormatTimestamp(timestamp), string(payload)).Scan(&id); err != nil {
		return nil, sanitizeDBError("append scan", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, sanitizeDBError("commit append", err)
	}

	r.logger.InfoStore("Scan saved", "scan_id", id, "target", target, "hosts", len(results))
	return &ScanRecord{ID: id, Target: target, Timestamp: timestamp, Results: results}, nil
}

// List returns every stored scan, newest first. Scans sharing a timestamp
// are ordered by descending id.
func (r *HistoryRepository) List(ctx context.Context) (records []*ScanRecord, err error) {
	start := time.Now()
	defer func() { r.observe("list", start, err) }()

	var rows []scanHistoryRow
	query := `SELECT id, target, timestamp, result_json FROM scan_history ORDER BY timestamp DESC, id DESC`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, sanitizeDBError("list scans", err)
	}

	records = make([]*ScanRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// GetByID returns the scan with id, or a NOT_FOUND error.
func (r *HistoryRepository) GetByID(ctx context.Context, id int64) (rec *ScanRecord, err error) {
	start := time.Now()
	defer func() { r.observe("get", start, err) }()

	var row scanHistoryRow
	query := r.db.Rebind(`SELECT id, target, timestamp, result_json FROM scan_history WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.IsNotFound(sanitizeDBError("get scan", err)) {
			return nil, errors.ErrNotFound(fmt.Sprintf("Scan %d", id))
		}
		return nil, sanitizeDBError("get scan", err)
	}
	return row.record()
}

// DeleteByID removes the scan with id. Deleting an id that does not exist
// returns a NOT_FOUND error and changes nothing.
func (r *HistoryRepository) DeleteByID(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { r.observe("delete", start, err) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return sanitizeDBError("begin delete", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM scan_history WHERE id = ?`), id)
	if err != nil {
		return sanitizeDBError("delete scan", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return sanitizeDBError("delete scan", err)
	}
	if affected == 0 {
		return errors.ErrNotFound(fmt.Sprintf("Scan %d", id))
	}
	if err := tx.Commit(); err != nil {
		return sanitizeDBError("commit delete", err)
	}

	r.logger.InfoStore("Scan deleted", "scan_id", id)
	return nil
}

// Ping verifies the store is reachable.
func (r *HistoryRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return sanitizeDBError("ping", err)
	}
	return nil
}
