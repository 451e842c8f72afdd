package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

const runCacheKeyPrefix = "run:"

// CacheRepository is the key/value store behind the run cache.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CacheService memoizes finished timetable runs by input fingerprint.
// A disabled or nil service always misses. Store failures are logged and never fail a run.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs the run cache.
func NewCacheService(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: ttl, logger: logger, enabled: enabled}
}

// Enabled reports whether lookups can hit.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// LookupRun returns the cached result for fingerprint, if any.
func (s *CacheService) LookupRun(ctx context.Context, fingerprint string) (*models.TimetableResult, bool) {
	if !s.Enabled() {
		return nil, false
	}
	start := time.Now()
	var cached models.TimetableResult
	err := s.repo.Get(ctx, runCacheKeyPrefix+fingerprint, &cached)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("run cache lookup failed", zap.String("fingerprint", fingerprint), zap.Error(err))
		}
		return nil, false
	}
	return &cached, true
}

// StoreRun caches result under its fingerprint. Runs without a fingerprint are skipped.
func (s *CacheService) StoreRun(ctx context.Context, result models.TimetableResult) {
	if !s.Enabled() || result.Run.Fingerprint == "" {
		return
	}
	start := time.Now()
	err := s.repo.Set(ctx, runCacheKeyPrefix+result.Run.Fingerprint, result, s.ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("run cache store failed", zap.String("run_id", result.Run.ID), zap.Error(err))
	}
}
