package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
)

const cacheNamespace = "compass"

// Cache key groups invalidated together on writes.
const (
	CacheGroupCourses  = "courses"
	CacheGroupBatches  = "batches"
	CacheGroupFaculty  = "faculty"
	CacheGroupSettings = "settings"
	// CacheGroupDashboard entries expire by TTL only.
	CacheGroupDashboard = "dashboard"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService fronts public, read-mostly listings. Failures never fail the request.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Key builds a namespaced key such as compass:courses:public.
func (s *CacheService) Key(group string, parts ...string) string {
	return strings.Join(append([]string{cacheNamespace, group}, parts...), ":")
}

// Get attempts to retrieve a cached entry. It returns true on a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Set stores the value, logging instead of failing.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) {
	if !s.Enabled() {
		return
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, s.defaultTTL)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every key of a group.
func (s *CacheService) Invalidate(ctx context.Context, group string) {
	if !s.Enabled() {
		return
	}
	pattern := s.Key(group, "*")
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

// Cached returns the cached value under key or loads, stores and returns a fresh one.
// The bool reports a cache hit.
func Cached[T any](ctx context.Context, cache *CacheService, key string, load func() (T, error)) (T, bool, error) {
	var out T
	if cache.Get(ctx, key, &out) {
		return out, true, nil
	}
	out, err := load()
	if err != nil {
		return out, false, err
	}
	cache.Set(ctx, key, out)
	return out, false, nil
}
