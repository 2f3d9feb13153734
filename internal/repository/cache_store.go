package repository

import (
	"context"
	"errors"
	"time"

	"WattWise/internal/domain/models"
	domrepo "WattWise/internal/domain/repository"
	"WattWise/pkg/cache"
)

const (
	resultKeyPrefix  = "forecast:result"
	summaryKeyPrefix = "forecast:summary"
)

// CacheStore keeps the latest result and summary per city in a cache.Service.
type CacheStore struct {
	c   cache.Service
	ttl time.Duration
}

var (
	_ domrepo.ForecastStore = (*CacheStore)(nil)
	_ domrepo.SummaryStore  = (*CacheStore)(nil)
)

func NewCacheStore(c cache.Service, ttl time.Duration) *CacheStore {
	return &CacheStore{c: c, ttl: ttl}
}

func (s *CacheStore) SaveResult(ctx context.Context, r models.ForecastResult) error {
	return s.c.Set(ctx, cache.GenerateKey(resultKeyPrefix, r.City), r, s.ttl)
}

func (s *CacheStore) LatestResult(ctx context.Context, city string) (models.ForecastResult, error) {
	var r models.ForecastResult
	err := s.c.Get(ctx, cache.GenerateKey(resultKeyPrefix, city), &r)
	return r, notFound(err)
}

func (s *CacheStore) SaveSummary(ctx context.Context, sum models.Summary) error {
	return s.c.Set(ctx, cache.GenerateKey(summaryKeyPrefix, sum.City), sum, s.ttl)
}

func (s *CacheStore) GetSummary(ctx context.Context, city string) (models.Summary, error) {
	var sum models.Summary
	err := s.c.Get(ctx, cache.GenerateKey(summaryKeyPrefix, city), &sum)
	return sum, notFound(err)
}

func notFound(err error) error {
	if errors.Is(err, cache.ErrCacheMiss) {
		return domrepo.ErrNotFound
	}
	return err
}

// ReadThroughStore serves reads from a fast store and falls back to a durable
// one, warming the fast store on the way out. Writes go to both.
type ReadThroughStore struct {
	fast    *CacheStore
	durable interface {
		domrepo.ForecastStore
		domrepo.SummaryStore
	}
}

var (
	_ domrepo.ForecastStore = (*ReadThroughStore)(nil)
	_ domrepo.SummaryStore  = (*ReadThroughStore)(nil)
)

func NewReadThroughStore(fast *CacheStore, durable interface {
	domrepo.ForecastStore
	domrepo.SummaryStore
}) *ReadThroughStore {
	return &ReadThroughStore{fast: fast, durable: durable}
}

func (s *ReadThroughStore) SaveResult(ctx context.Context, r models.ForecastResult) error {
	if err := s.durable.SaveResult(ctx, r); err != nil {
		return err
	}
	return s.fast.SaveResult(ctx, r)
}

func (s *ReadThroughStore) LatestResult(ctx context.Context, city string) (models.ForecastResult, error) {
	if r, err := s.fast.LatestResult(ctx, city); err == nil {
		return r, nil
	}
	r, err := s.durable.LatestResult(ctx, city)
	if err != nil {
		return r, err
	}
	_ = s.fast.SaveResult(ctx, r)
	return r, nil
}

func (s *ReadThroughStore) SaveSummary(ctx context.Context, sum models.Summary) error {
	if err := s.durable.SaveSummary(ctx, sum); err != nil {
		return err
	}
	return s.fast.SaveSummary(ctx, sum)
}

func (s *ReadThroughStore) GetSummary(ctx context.Context, city string) (models.Summary, error) {
	if sum, err := s.fast.GetSummary(ctx, city); err == nil {
		return sum, nil
	}
	sum, err := s.durable.GetSummary(ctx, city)
	if err != nil {
		return sum, err
	}
	_ = s.fast.SaveSummary(ctx, sum)
	return sum, nil
}
