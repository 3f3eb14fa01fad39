package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"codeexec/internal/common/cache"
	"codeexec/internal/common/db"
	"codeexec/internal/execution/sandbox/result"
	appErr "codeexec/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type fakeResult struct{}

func (fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (fakeResult) RowsAffected() (int64, error) { return 1, nil }

type fakeRow struct {
	values []interface{}
	err    error
}

func (r fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case **string:
			s := r.values[i].(string)
			*p = &s
		case *[]byte:
			*p = r.values[i].([]byte)
		case *int64:
			*p = r.values[i].(int64)
		case *float64:
			*p = r.values[i].(float64)
		default:
			return errors.New("unsupported scan destination")
		}
	}
	return nil
}

// fakeDB stores executions rows keyed by job id.
type fakeDB struct {
	rows    map[string][]interface{}
	execErr error
	queries int
	ddl     int
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: map[string][]interface{}{}}
}

func (f *fakeDB) Exec(ctx context.Context, query string, args ...interface{}) (db.Result, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	if strings.Contains(query, "CREATE TABLE") {
		f.ddl++
		return fakeResult{}, nil
	}
	// job_id, language, outcome, stdout, error_detail, peak, time, created_at
	f.rows[args[0].(string)] = args[:7]
	return fakeResult{}, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, query string, args ...interface{}) db.Row {
	f.queries++
	row, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: sql.ErrNoRows}
	}
	return fakeRow{values: row}
}

func (f *fakeDB) Ping(ctx context.Context) error { return nil }
func (f *fakeDB) Close() error                   { return nil }

func newMySQLRepository(t *testing.T, database db.Database, withCache bool) *MySQLResultRepository {
	t.Helper()
	var cached *ResultRepository
	if withCache {
		mr := miniredis.RunT(t)
		c, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
		if err != nil {
			t.Fatalf("new cache failed: %v", err)
		}
		cached, err = NewResultRepository(c, "", time.Hour)
		if err != nil {
			t.Fatalf("new cache repository failed: %v", err)
		}
		t.Cleanup(func() {
			_ = cached.Close()
			_ = c.Close()
		})
	}
	repo, err := NewMySQLResultRepository(database, cached)
	if err != nil {
		t.Fatalf("new mysql repository failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestMySQLResultRepositorySaveGet(t *testing.T) {
	fdb := newFakeDB()
	repo := newMySQLRepository(t, fdb, false)
	ctx := context.Background()
	want := result.ExecutionResult{
		JobID:        "job-1",
		Language:     "python",
		Stdout:       strings.Repeat("42\n", 500),
		PeakMemoryKB: 9000,
		ExecTimeMs:   31.5,
		Outcome:      result.OutcomeAccepted,
	}
	if err := repo.EnsureSchema(ctx); err != nil || fdb.ddl != 1 {
		t.Fatalf("EnsureSchema = %v, ddl = %d", err, fdb.ddl)
	}
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if stored := fdb.rows["job-1"][3].([]byte); len(stored) >= len(want.Stdout) {
		t.Fatalf("stdout not compressed: %d bytes", len(stored))
	}
	got, err := repo.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != want {
		t.Fatalf("Get = %+v, want %+v", got, want)
	}
}

func TestMySQLResultRepositoryNotFound(t *testing.T) {
	repo := newMySQLRepository(t, newFakeDB(), false)
	_, err := repo.Get(context.Background(), "missing")
	if !appErr.Is(err, appErr.ExecutionNotFound) {
		t.Fatalf("expected ExecutionNotFound, got %v", err)
	}
	if _, err := repo.Get(context.Background(), ""); appErr.GetCode(err) != appErr.ValidationFailed {
		t.Fatalf("expected ValidationFailed, got %v", err)
	}
}

func TestMySQLResultRepositoryReadsThroughCache(t *testing.T) {
	fdb := newFakeDB()
	repo := newMySQLRepository(t, fdb, true)
	ctx := context.Background()
	res := result.ExecutionResult{JobID: "job-2", Language: "cpp", Outcome: result.OutcomeRuntimeError, ErrorDetail: "boom"}
	if err := repo.Save(ctx, res); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		got, err := repo.Get(ctx, "job-2")
		if err != nil || got != res {
			t.Fatalf("Get = %+v, %v", got, err)
		}
	}
	if fdb.queries != 0 {
		t.Fatalf("database queried %d times, want cache hits only", fdb.queries)
	}
}

func TestMySQLResultRepositoryExecError(t *testing.T) {
	fdb := newFakeDB()
	fdb.execErr = errors.New("connection refused")
	repo := newMySQLRepository(t, fdb, false)
	err := repo.Save(context.Background(), result.ExecutionResult{JobID: "job-3"})
	if appErr.GetCode(err) != appErr.ExecutionStoreError {
		t.Fatalf("expected ExecutionStoreError, got %v", err)
	}
	if _, err := NewMySQLResultRepository(nil, nil); appErr.GetCode(err) != appErr.DatabaseError {
		t.Fatalf("expected DatabaseError for nil db, got %v", err)
	}
}
