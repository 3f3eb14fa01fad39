package repository

import (
	"context"
	"encoding/json"
	"time"

	"codeexec/internal/common/cache"
	"codeexec/internal/execution/sandbox/result"
	appErr "codeexec/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

const DefaultKeyPrefix = "codeexec:result:"

// ResultRepository keeps finished execution results for later lookup.
// Payloads are zstd compressed JSON since stdout can be large.
type ResultRepository struct {
	cache     cache.Cache
	keyPrefix string
	TTL       time.Duration
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
}

// NewResultRepository creates a repository. An empty prefix uses DefaultKeyPrefix.
func NewResultRepository(cacheClient cache.Cache, keyPrefix string, ttl time.Duration) (*ResultRepository, error) {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
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
	return &ResultRepository{
		cache:     cacheClient,
		keyPrefix: keyPrefix,
		TTL:       ttl,
		encoder:   enc,
		decoder:   dec,
	}, nil
}

// Save persists a result under its job id.
func (r *ResultRepository) Save(ctx context.Context, res result.ExecutionResult) error {
	if res.JobID == "" {
		return appErr.ValidationError("jobId", "required")
	}
	if r.cache == nil {
		return appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	data, err := json.Marshal(res)
	if err != nil {
		return appErr.Wrapf(err, appErr.ExecutionStoreError, "marshal result failed")
	}
	payload := r.encoder.EncodeAll(data, nil)
	if err := r.cache.Set(ctx, r.keyPrefix+res.JobID, payload, cache.JitterTTL(r.TTL)); err != nil {
		return appErr.Wrapf(err, appErr.ExecutionStoreError, "store result failed")
	}
	return nil
}

// Get loads a result by job id.
func (r *ResultRepository) Get(ctx context.Context, jobID string) (result.ExecutionResult, error) {
	if jobID == "" {
		return result.ExecutionResult{}, appErr.ValidationError("jobId", "required")
	}
	if r.cache == nil {
		return result.ExecutionResult{}, appErr.New(appErr.CacheError).WithMessage("cache client is not initialized")
	}
	val, err := r.cache.Get(ctx, r.keyPrefix+jobID)
	if err != nil {
		return result.ExecutionResult{}, appErr.Wrapf(err, appErr.ExecutionStoreError, "load result failed")
	}
	if val == "" {
		return result.ExecutionResult{}, appErr.New(appErr.ExecutionNotFound)
	}
	data, err := r.decoder.DecodeAll([]byte(val), nil)
	if err != nil {
		return result.ExecutionResult{}, appErr.Wrapf(err, appErr.ExecutionStoreError, "decompress result failed")
	}
	var res result.ExecutionResult
	if err := json.Unmarshal(data, &res); err != nil {
		return result.ExecutionResult{}, appErr.Wrapf(err, appErr.ExecutionStoreError, "decode result failed")
	}
	return res, nil
}

// Close releases the codec resources.
func (r *ResultRepository) Close() error {
	r.decoder.Close()
	return r.encoder.Close()
}
