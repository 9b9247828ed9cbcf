package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"materials/internal/analytics"
	"materials/internal/cache"
	"materials/internal/core"
	applog "materials/internal/log"
	"materials/internal/metrics"
)

// RecordStore is the persistence the service needs.
type RecordStore interface {
	CreateRecord(ctx context.Context, rec core.MaterialRecord) (core.MaterialRecord, error)
	GetRecord(ctx context.Context, id int64) (core.MaterialRecord, error)
	ListRecords(ctx context.Context, f core.RecordFilter) ([]core.MaterialRecord, error)
	RecentRecords(ctx context.Context, limit int) ([]core.MaterialRecord, error)
	Overview(ctx context.Context) (core.Overview, error)
	FilterOptions(ctx context.Context) (core.FilterOptions, error)
	Ping(ctx context.Context) error
}

// SyncPublisher announces new records to the spreadsheet mirror.
type SyncPublisher interface {
	PublishRecordSync(ctx context.Context, id int64) error
}

const (
	dashboardCacheSize = 64
	dashboardCacheTTL  = 5 * time.Minute
)

// RecordService validates and stores records, and serves the read models
// used by the web pages.
type RecordService struct {
	store     RecordStore
	publisher SyncPublisher
	metrics   *metrics.Metrics
	dashboard *cache.LRUCache[analytics.Dashboard]
	now       func() time.Time

	// generation is bumped on every insert and is part of each dashboard
	// cache key, so a build that raced an insert is never served again.
	generation atomic.Uint64
}

// Option configures a RecordService.
type Option func(*RecordService)

// WithPublisher enables the spreadsheet mirror.
func WithPublisher(p SyncPublisher) Option {
	return func(s *RecordService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *RecordService) { s.metrics = m }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *RecordService) { s.now = now }
}

func NewRecordService(store RecordStore, opts ...Option) *RecordService {
	s := &RecordService{
		store:     store,
		dashboard: cache.NewLRUCache[analytics.Dashboard](dashboardCacheSize, dashboardCacheTTL),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DashboardCache exposes the cache so it can be registered for periodic cleanup.
func (s *RecordService) DashboardCache() cache.Cleaner {
	return s.dashboard
}

// CreateRecord normalises, derives the total, validates and stores rec.
// Any client-supplied TotalCost is ignored. Validation failures are returned
// as core.ValidationErrors and nothing is written.
func (s *RecordService) CreateRecord(ctx context.Context, rec core.MaterialRecord) (core.MaterialRecord, error) {
	rec.ID = 0
	rec.Normalize()
	// On failure Validate reports the offending field.
	_ = rec.ComputeTotal()
	if err := rec.Validate(); err != nil {
		return core.MaterialRecord{}, err
	}
	rec.CreatedAt = s.now().UTC()

	saved, err := s.store.CreateRecord(ctx, rec)
	if err != nil {
		return core.MaterialRecord{}, fmt.Errorf("save record: %w", err)
	}

	s.generation.Add(1)
	s.dashboard.Purge()
	s.metrics.RecordCreated()

	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogRecordCreated(ctx, saved.ID, saved.MaterialName, saved.SiteLocation, saved.TotalCost.Cents)

	if err := s.publishSync(ctx, saved.ID); err != nil {
		// The record is stored; the worker sweep picks it up later.
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to publish sync message",
			applog.FieldRecordID, saved.ID,
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeInternal,
			applog.FieldComponent, applog.ComponentAMQP)
	}

	return saved, nil
}

func (s *RecordService) publishSync(ctx context.Context, id int64) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishRecordSync(ctx, id)
}

func (s *RecordService) GetRecord(ctx context.Context, id int64) (core.MaterialRecord, error) {
	return s.store.GetRecord(ctx, id)
}

func (s *RecordService) ListRecords(ctx context.Context, f core.RecordFilter) ([]core.MaterialRecord, error) {
	return s.store.ListRecords(ctx, f)
}

func (s *RecordService) RecentRecords(ctx context.Context, limit int) ([]core.MaterialRecord, error) {
	return s.store.RecentRecords(ctx, limit)
}

func (s *RecordService) Overview(ctx context.Context) (core.Overview, error) {
	return s.store.Overview(ctx)
}

func (s *RecordService) FilterOptions(ctx context.Context) (core.FilterOptions, error) {
	return s.store.FilterOptions(ctx)
}

// Dashboard aggregates the records matching f. Results are cached per
// filter until the next insert.
func (s *RecordService) Dashboard(ctx context.Context, f core.RecordFilter) (analytics.Dashboard, error) {
	// Order and limit do not change aggregates.
	f.SortBy, f.Ascending, f.Limit = core.SortDateUsed, true, 0
	key := fmt.Sprintf("%d|%s", s.generation.Load(), f.Key())

	if d, ok := s.dashboard.Get(key); ok {
		return d, nil
	}

	records, err := s.store.ListRecords(ctx, f)
	if err != nil {
		return analytics.Dashboard{}, fmt.Errorf("load dashboard records: %w", err)
	}
	d := analytics.Build(records)
	s.dashboard.Set(key, d)
	return d, nil
}

// Ping checks the store for readiness probes.
func (s *RecordService) Ping(ctx context.Context) error {
	if s.store == nil {
		return errors.New("record store not configured")
	}
	return s.store.Ping(ctx)
}
