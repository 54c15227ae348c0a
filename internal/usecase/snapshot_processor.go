package usecase

import (
	"context"
	"fmt"
	"time"

	"SearchInsight/internal/domain/models"
	domrepo "SearchInsight/internal/domain/repository"
	applogger "SearchInsight/pkg/logger"
)

const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// SnapshotProcessor routes collected snapshots to the configured backend.
type SnapshotProcessor struct {
	pub     domrepo.Publisher
	store   domrepo.PerformanceStore
	metrics domrepo.Metrics
	backend string
	l       *applogger.Logger
}

func NewSnapshotProcessor(
	pub domrepo.Publisher,
	store domrepo.PerformanceStore,
	metrics domrepo.Metrics,
	backend string,
	l *applogger.Logger,
) *SnapshotProcessor {
	if l == nil {
		l = applogger.Nop()
	}
	return &SnapshotProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
		l:       l.Component("snapshot_processor"),
	}
}

// Backend returns the configured backend name.
func (p *SnapshotProcessor) Backend() string { return p.backend }

// Process stores or publishes one snapshot. The none backend accepts and
// discards it.
func (p *SnapshotProcessor) Process(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot is nil")
	}

	start := time.Now()
	var err error

	switch p.backend {
	case BackendKafka:
		if p.pub == nil {
			err = domrepo.ErrNotConfigured
			break
		}
		err = p.pub.PublishSnapshot(ctx, snap)
	case BackendClickHouse:
		if p.store == nil {
			err = domrepo.ErrNotConfigured
			break
		}
		err = p.store.StoreSnapshot(ctx, snap)
	case BackendNone, "":
		p.l.Debug("snapshot discarded",
			applogger.String("site", snap.Site),
			applogger.String("date", snap.Date),
			applogger.Int("rows", len(snap.Rows)))
		return nil
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.recordError("process")
		return fmt.Errorf("process snapshot %s/%s: %w", snap.Site, snap.Date, err)
	}

	if p.metrics != nil {
		p.metrics.RecordSnapshotStored(p.backend, snap.Site)
		p.metrics.RecordLatency("process_snapshot", time.Since(start).Seconds())
	}
	p.l.Info("snapshot processed",
		applogger.String("backend", p.backend),
		applogger.String("site", snap.Site),
		applogger.String("date", snap.Date),
		applogger.Int("rows", len(snap.Rows)),
		applogger.Duration("duration_ms", time.Since(start)))
	return nil
}

// Close releases the backends.
func (p *SnapshotProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}

func (p *SnapshotProcessor) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}
