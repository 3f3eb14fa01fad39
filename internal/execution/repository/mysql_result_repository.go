package repository

import (
	"context"
	"time"

	"codeexec/internal/common/db"
	"codeexec/internal/execution/sandbox/result"
	appErr "codeexec/pkg/errors"
	"codeexec/pkg/utils/logger"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

const executionsTableDDL = `CREATE TABLE IF NOT EXISTS executions (
	job_id         VARCHAR(64)  NOT NULL PRIMARY KEY,
	language       VARCHAR(32)  NOT NULL,
	outcome        VARCHAR(32)  NOT NULL,
	stdout         MEDIUMBLOB   NULL,
	error_detail   TEXT         NULL,
	peak_memory_kb BIGINT       NOT NULL DEFAULT 0,
	exec_time_ms   DOUBLE       NOT NULL DEFAULT 0,
	created_at     DATETIME(3)  NOT NULL,
	KEY idx_executions_created_at (created_at)
)`

// MySQLResultRepository keeps results in MySQL with an optional
// read-through cache in front of it.
type MySQLResultRepository struct {
	db      db.Database
	cache   *ResultRepository
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	now     func() time.Time
}

// NewMySQLResultRepository creates a repository. cache may be nil.
func NewMySQLResultRepository(database db.Database, cache *ResultRepository) (*MySQLResultRepository, error) {
	if database == nil {
		return nil, appErr.New(appErr.DatabaseError).WithMessage("database is not initialized")
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "create zstd encoder failed")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		return nil, appErr.Wrapf(err, appErr.InternalServerError, "create zstd decoder failed")
	}
	return &MySQLResultRepository{
		db:      database,
		cache:   cache,
		encoder: enc,
		decoder: dec,
		now:     time.Now,
	}, nil
}

// EnsureSchema creates the executions table when missing.
func (r *MySQLResultRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, executionsTableDDL); err != nil {
		return appErr.Wrapf(err, appErr.DatabaseError, "create executions table failed")
	}
	return nil
}

// Save upserts a result row, then refreshes the cache.
func (r *MySQLResultRepository) Save(ctx context.Context, res result.ExecutionResult) error {
	if res.JobID == "" {
		return appErr.ValidationError("jobId", "required")
	}
	query := `
		INSERT INTO executions (job_id, language, outcome, stdout, error_detail, peak_memory_kb, exec_time_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			language = VALUES(language),
			outcome = VALUES(outcome),
			stdout = VALUES(stdout),
			error_detail = VALUES(error_detail),
			peak_memory_kb = VALUES(peak_memory_kb),
			exec_time_ms = VALUES(exec_time_ms)
	`
	stdout := r.encoder.EncodeAll([]byte(res.Stdout), nil)
	if _, err := r.db.Exec(ctx, query,
		res.JobID,
		res.Language,
		string(res.Outcome),
		stdout,
		res.ErrorDetail,
		res.PeakMemoryKB,
		res.ExecTimeMs,
		r.now().UTC(),
	); err != nil {
		return appErr.Wrapf(err, appErr.ExecutionStoreError, "insert execution failed")
	}
	r.fillCache(ctx, res)
	return nil
}

// Get loads a result, preferring the cache.
func (r *MySQLResultRepository) Get(ctx context.Context, jobID string) (result.ExecutionResult, error) {
	if jobID == "" {
		return result.ExecutionResult{}, appErr.ValidationError("jobId", "required")
	}
	if r.cache != nil {
		res, err := r.cache.Get(ctx, jobID)
		if err == nil {
			return res, nil
		}
		if !appErr.Is(err, appErr.ExecutionNotFound) {
			logger.Warn(ctx, "result cache read failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}

	query := `
		SELECT job_id, language, outcome, stdout, error_detail, peak_memory_kb, exec_time_ms
		FROM executions
		WHERE job_id = ?
	`
	var (
		res     result.ExecutionResult
		outcome string
		stdout  []byte
		detail  *string
	)
	err := r.db.QueryRow(ctx, query, jobID).Scan(
		&res.JobID,
		&res.Language,
		&outcome,
		&stdout,
		&detail,
		&res.PeakMemoryKB,
		&res.ExecTimeMs,
	)
	if err != nil {
		if db.IsNoRows(err) {
			return result.ExecutionResult{}, appErr.New(appErr.ExecutionNotFound)
		}
		return result.ExecutionResult{}, appErr.Wrapf(err, appErr.ExecutionStoreError, "query execution failed")
	}
	res.Outcome = result.Outcome(outcome)
	if detail != nil {
		res.ErrorDetail = *detail
	}
	if len(stdout) > 0 {
		data, err := r.decoder.DecodeAll(stdout, nil)
		if err != nil {
			return result.ExecutionResult{}, appErr.Wrapf(err, appErr.ExecutionStoreError, "decompress stdout failed")
		}
		res.Stdout = string(data)
	}
	r.fillCache(ctx, res)
	return res, nil
}

func (r *MySQLResultRepository) fillCache(ctx context.Context, res result.ExecutionResult) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Save(ctx, res); err != nil {
		logger.Warn(ctx, "result cache write failed", zap.String("job_id", res.JobID), zap.Error(err))
	}
}

// Close releases codec resources. The database and cache are owned by the caller.
func (r *MySQLResultRepository) Close() error {
	r.decoder.Close()
	return r.encoder.Close()
}
