package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SearchInsight/internal/domain/models"
	domrepo "SearchInsight/internal/domain/repository"
	"SearchInsight/pkg/util"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, snap *models.Snapshot) error
}

// SnapshotPipeline sits between the collector and the processor. It
// validates snapshots, drops repeats of a site/day already delivered, and
// buffers snapshots when the backend is unavailable.
type SnapshotPipeline struct {
	proc       Proc
	metrics    domrepo.Metrics
	bufSize    int
	maxBackoff time.Duration
	bufCh      chan *models.Snapshot
	stopCh     chan struct{}
	done       chan struct{}
	started    bool
	mu         sync.Mutex
	delivered  map[string]struct{}
	inflight   map[string]struct{}
}

type PipelineOption func(*SnapshotPipeline)

// WithBufferSize sets how many snapshots are held while downstream fails.
func WithBufferSize(n int) PipelineOption {
	return func(p *SnapshotPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithMaxBackoff caps the retry delay of buffered snapshots.
func WithMaxBackoff(d time.Duration) PipelineOption {
	return func(p *SnapshotPipeline) {
		if d > 0 {
			p.maxBackoff = d
		}
	}
}

func NewSnapshotPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *SnapshotPipeline {
	p := &SnapshotPipeline{
		proc:       proc,
		metrics:    metrics,
		bufSize:    64,
		maxBackoff: 30 * time.Second,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		delivered:  make(map[string]struct{}),
		inflight:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Snapshot, p.bufSize)
	return p
}

// Start launches the background retry of buffered snapshots.
func (p *SnapshotPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		backoff := time.Second
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case s := <-p.bufCh:
				if !p.claim(s) {
					continue
				}
				if err := p.proc.Process(ctx, s); err != nil {
					p.release(s, false)
					p.recordError("pipeline_flush")
					if backoff < p.maxBackoff {
						backoff *= 2
						if backoff > p.maxBackoff {
							backoff = p.maxBackoff
						}
					}
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						return
					case <-ctx.Done():
						return
					}
					p.buffer(s)
					continue
				}
				backoff = time.Second
				p.release(s, true)
			}
		}
	}()
}

// Stop halts the retry loop. Snapshots still buffered are dropped.
func (p *SnapshotPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.done
}

// Buffered reports how many snapshots wait for retry.
func (p *SnapshotPipeline) Buffered() int { return len(p.bufCh) }

// Process validates and forwards a snapshot. On downstream failure the
// snapshot is buffered for retry and the error is returned. A site/day that
// was delivered or is being delivered is skipped.
func (p *SnapshotPipeline) Process(ctx context.Context, s *models.Snapshot) error {
	if err := validateSnapshot(s); err != nil {
		p.recordError("pipeline_validate")
		return err
	}
	if !p.claim(s) {
		return nil
	}

	start := time.Now()
	if err := p.proc.Process(ctx, s); err != nil {
		p.release(s, false)
		p.recordError("pipeline_process")
		p.buffer(s)
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.release(s, true)
	if p.metrics != nil {
		p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	}
	return nil
}

func (p *SnapshotPipeline) buffer(s *models.Snapshot) {
	select {
	case p.bufCh <- s:
	default:
		p.recordError("pipeline_buffer_full")
	}
}

func snapshotKey(s *models.Snapshot) string { return s.Site + "|" + s.Date }

// claim reserves a site/day for delivery. It fails when the pair was already
// delivered or another path is delivering it.
func (p *SnapshotPipeline) claim(s *models.Snapshot) bool {
	k := snapshotKey(s)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.delivered[k]; ok {
		return false
	}
	if _, ok := p.inflight[k]; ok {
		return false
	}
	p.inflight[k] = struct{}{}
	return true
}

func (p *SnapshotPipeline) release(s *models.Snapshot, delivered bool) {
	k := snapshotKey(s)
	p.mu.Lock()
	delete(p.inflight, k)
	if delivered {
		p.delivered[k] = struct{}{}
	}
	p.mu.Unlock()
}

// Forget allows a site/day to be delivered again, e.g. after a backfill.
func (p *SnapshotPipeline) Forget(site, date string) {
	p.mu.Lock()
	delete(p.delivered, site+"|"+date)
	p.mu.Unlock()
}

func (p *SnapshotPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

func validateSnapshot(s *models.Snapshot) error {
	if s == nil {
		return fmt.Errorf("snapshot nil")
	}
	if s.Site == "" {
		return fmt.Errorf("site empty")
	}
	if _, ok := util.ParseDate(s.Date); !ok {
		return fmt.Errorf("date invalid: %q", s.Date)
	}
	for i, r := range s.Rows {
		if r.Clicks < 0 || r.Impressions < 0 || r.Position < 0 {
			return fmt.Errorf("row %d: negative metric", i)
		}
	}
	return nil
}
