package repository

import (
	"context"
	"errors"
	"time"

	"SearchInsight/internal/domain/models"
)

// ErrNotConfigured is returned when an optional backend is not wired.
var ErrNotConfigured = errors.New("backend not configured")

// SearchAnalytics is the upstream source of performance rows.
type SearchAnalytics interface {
	Query(ctx context.Context, q models.AnalyticsQuery) ([]models.PerformanceRow, error)
	Sites(ctx context.Context) ([]string, error)
	Invalidate(ctx context.Context, site string) error
}

// PerformanceStore keeps daily snapshots and serves historical series.
type PerformanceStore interface {
	Init(ctx context.Context) error
	StoreSnapshot(ctx context.Context, snap *models.Snapshot) error
	DailySeries(ctx context.Context, site string, dim Dimension, key string, from, to time.Time, metric Metric) ([]models.TrendPoint, error)
	Health(ctx context.Context) error
	Close() error
}

// Publisher ships snapshots and reports to downstream consumers.
type Publisher interface {
	PublishSnapshot(ctx context.Context, snap *models.Snapshot) error
	PublishReport(ctx context.Context, report *models.InsightReport) error
	Close() error
}

type Metrics interface {
	RecordRowsFetched(site string, n int)
	RecordSnapshotStored(backend, site string)
	RecordRecommendations(kind string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
