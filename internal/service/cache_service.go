package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/elbaschool/admissions-api/internal/models"
	appErrors "github.com/elbaschool/admissions-api/pkg/errors"
)

const statsKeyPrefix = "admissions:stats"

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService provides cache-aside access to approval statistics. All
// operations degrade gracefully: a cache failure is logged, never surfaced.
type CacheService struct {
	repo    cacheStore
	metrics *MetricsService
	logger  *zap.Logger
	ttl     time.Duration
	enabled bool
}

// CacheOption customises the cache service.
type CacheOption func(*CacheService)

// WithCacheMetrics attaches hit and miss counters.
func WithCacheMetrics(m *MetricsService) CacheOption {
	return func(s *CacheService) {
		s.metrics = m
	}
}

// NewCacheService constructs the cache service.
func NewCacheService(repo cacheStore, logger *zap.Logger, ttl time.Duration, enabled bool, opts ...CacheOption) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	svc := &CacheService{repo: repo, logger: logger, ttl: ttl, enabled: enabled}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// GetStats returns cached statistics or appErrors.ErrCacheMiss.
func (s *CacheService) GetStats(ctx context.Context, from, to *time.Time) (*models.ApprovalStats, error) {
	if !s.enabled || s.repo == nil {
		return nil, appErrors.ErrCacheMiss
	}
	var stats models.ApprovalStats
	if err := s.repo.Get(ctx, statsKey(from, to), &stats); err != nil {
		s.metrics.RecordCacheOperation(false)
		if err != appErrors.ErrCacheMiss {
			s.logger.Warn("stats cache read failed", zap.Error(err))
			return nil, appErrors.ErrCacheMiss
		}
		return nil, err
	}
	s.metrics.RecordCacheOperation(true)
	return &stats, nil
}

// SetStats caches a statistics payload for the configured TTL.
func (s *CacheService) SetStats(ctx context.Context, from, to *time.Time, stats *models.ApprovalStats) {
	if !s.enabled || s.repo == nil || stats == nil {
		return
	}
	if err := s.repo.Set(ctx, statsKey(from, to), stats, s.ttl); err != nil {
		s.logger.Warn("stats cache write failed", zap.Error(err))
	}
}

// InvalidateStats drops every cached statistics window. Called after each
// review decision so reads never serve stale counts beyond the TTL.
func (s *CacheService) InvalidateStats(ctx context.Context) {
	if !s.enabled || s.repo == nil {
		return
	}
	if err := s.repo.DeleteByPattern(ctx, statsKeyPrefix+":*"); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

func statsKey(from, to *time.Time) string {
	fromPart, toPart := "all", "all"
	if from != nil {
		fromPart = from.UTC().Format("20060102")
	}
	if to != nil {
		toPart = to.UTC().Format("20060102")
	}
	return fmt.Sprintf("%s:%s:%s", statsKeyPrefix, fromPart, toPart)
}
