package db

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/netsweep/internal/errors"
	metricsmocks "github.com/anstrom/netsweep/internal/metrics/mocks"
	"github.com/anstrom/netsweep/internal/scanning"
)

func sampleResults() []scanning.HostResult {
	return []scanning.HostResult{{
		Host:     "10.0.0.5",
		Hostname: "",
		State:    scanning.HostStateUp,
		Protocols: []scanning.ProtocolBlock{{
			Protocol: "tcp",
			Ports: []scanning.PortRecord{
				{Port: 22, State: "open", Service: "ssh", Version: "OpenSSH 8.2"},
			},
		}},
	}}
}

func newSQLiteRepository(t *testing.T) *HistoryRepository {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), "data", "history.db")

	database, err := ConnectAndMigrate(context.Background(), &cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	return NewHistoryRepository(database)
}

func newMockRepository(t *testing.T) (*HistoryRepository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = mockDB.Close()
	})

	database := &DB{DB: sqlx.NewDb(mockDB, DriverSQLite), driver: DriverSQLite}
	return NewHistoryRepository(database), mock
}

func TestHistory_RoundTrip(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	ts := time.Date(2026, 3, 14, 15, 9, 26, 535897932, time.UTC)
	saved, err := repo.Append(ctx, "10.0.0.5", ts, sampleResults())
	require.NoError(t, err)
	assert.Positive(t, saved.ID)

	got, err := repo.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, "10.0.0.5", got.Target)
	assert.True(t, ts.Equal(got.Timestamp), "timestamp %s != %s", got.Timestamp, ts)
	assert.Equal(t, sampleResults(), got.Results)
}

func TestHistory_AppendNormalisesTimestampToUTC(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	zone := time.FixedZone("CEST", 2*60*60)
	local := time.Date(2026, 6, 1, 12, 0, 0, 0, zone)

	saved, err := repo.Append(ctx, "10.0.0.0/24", local, nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, saved.Timestamp.Location())
	assert.NotNil(t, saved.Results)

	got, err := repo.GetByID(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Timestamp.Hour())
	assert.Empty(t, got.Results)
	assert.NotNil(t, got.Results)
}

func TestHistory_ListOrdering(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first, err := repo.Append(ctx, "a", base, nil)
	require.NoError(t, err)
	second, err := repo.Append(ctx, "b", base.Add(time.Hour), nil)
	require.NoError(t, err)
	third, err := repo.Append(ctx, "c", base.Add(time.Hour), nil)
	require.NoError(t, err)
	// Earlier timestamp inserted last still sorts last.
	fourth, err := repo.Append(ctx, "d", base.Add(-time.Hour), nil)
	require.NoError(t, err)

	records, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 4)

	ids := []int64{records[0].ID, records[1].ID, records[2].ID, records[3].ID}
	assert.Equal(t, []int64{third.ID, second.ID, first.ID, fourth.ID}, ids)
}

func TestHistory_ListEmpty(t *testing.T) {
	repo := newSQLiteRepository(t)

	records, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestHistory_GetUnknown(t *testing.T) {
	repo := newSQLiteRepository(t)

	_, err := repo.GetByID(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	assert.Contains(t, err.Error(), "Scan 42 not found")
}

func TestHistory_Delete(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	keep, err := repo.Append(ctx, "keep", time.Now(), sampleResults())
	require.NoError(t, err)
	drop, err := repo.Append(ctx, "drop", time.Now(), sampleResults())
	require.NoError(t, err)

	require.NoError(t, repo.DeleteByID(ctx, drop.ID))

	_, err = repo.GetByID(ctx, drop.ID)
	assert.True(t, errors.IsNotFound(err))

	records, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, keep.ID, records[0].ID)
}

func TestHistory_DeleteUnknownChangesNothing(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	_, err := repo.Append(ctx, "10.0.0.5", time.Now(), sampleResults())
	require.NoError(t, err)

	err = repo.DeleteByID(ctx, 9999)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	records, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestHistory_ConcurrentAppendsGetDistinctIDs(t *testing.T) {
	repo := newSQLiteRepository(t)
	ctx := context.Background()

	const writers = 10
	ids := make([]int64, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := repo.Append(ctx, fmt.Sprintf("10.0.2.%d", i), time.Now(), sampleResults())
			if assert.NoError(t, err) {
				ids[i] = rec.ID
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, writers)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}

	records, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, writers)
}

func TestHistory_Ping(t *testing.T) {
	repo := newSQLiteRepository(t)
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestHistory_AppendWithMock(t *testing.T) {
	repo, mock := newMockRepository(t)
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO scan_history (target, timestamp, result_json)")).
		WithArgs("10.0.0.5", "2026-01-02T03:04:05.000000000Z", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	rec, err := repo.Append(context.Background(), "10.0.0.5", ts, sampleResults())
	require.NoError(t, err)
	assert.Equal(t, int64(7), rec.ID)
	assert.Equal(t, ts, rec.Timestamp)
}

func TestHistory_AppendFailureRollsBack(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO scan_history")).
		WillReturnError(fmt.Errorf("disk I/O error"))
	mock.ExpectRollback()

	_, err := repo.Append(context.Background(), "10.0.0.5", time.Now(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDatabaseQuery))
	assert.True(t, errors.IsStore(err))
	assert.NotContains(t, err.Error(), "disk I/O")
}

func TestHistory_DeleteUnknownWithMock(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM scan_history WHERE id = ?")).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.DeleteByID(context.Background(), 99)
	assert.True(t, errors.IsNotFound(err))
}

func TestHistory_CorruptPayload(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, target, timestamp, result_json FROM scan_history WHERE id = ?")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "target", "timestamp", "result_json"}).
			AddRow(3, "10.0.0.5", "2026-01-02T03:04:05.000000000Z", "{not json"))

	_, err := repo.GetByID(context.Background(), 3)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDatabaseQuery))
	assert.Contains(t, err.Error(), "malformed result payload")
}

func TestHistory_RecordsStoreMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	collector := metricsmocks.NewMockCollector(ctrl)

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	database := &DB{DB: sqlx.NewDb(mockDB, DriverSQLite), driver: DriverSQLite}
	repo := NewHistoryRepository(database, WithHistoryMetrics(collector))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, target, timestamp, result_json FROM scan_history ORDER BY")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "target", "timestamp", "result_json"}))

	collector.EXPECT().StoreOperation("list", gomock.Any(), nil)

	_, err = repo.List(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
