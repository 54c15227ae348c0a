package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"SearchInsight/internal/domain/models"
	domrepo "SearchInsight/internal/domain/repository"
	applogger "SearchInsight/pkg/logger"
	"SearchInsight/pkg/queue"
	"SearchInsight/pkg/util"
)

// JobCollectSite is the queue message type for one site/day collection.
const JobCollectSite = "collect_site"

// SnapshotSink accepts collected snapshots.
type SnapshotSink interface {
	Process(ctx context.Context, snap *models.Snapshot) error
}

// CollectRequest is the payload of a collect_site job.
type CollectRequest struct {
	Site string `json:"site"`
	Date string `json:"date"`
}

type CollectorConfig struct {
	Sites    []string
	Interval time.Duration
	LagDays  int
}

// SnapshotCollector periodically pulls the latest finalized day for each
// site. With a queue it only enqueues work; otherwise it collects inline.
type SnapshotCollector struct {
	source  domrepo.SearchAnalytics
	sink    SnapshotSink
	jobs    queue.Publisher
	metrics domrepo.Metrics
	cfg     CollectorConfig
	now     func() time.Time
	l       *applogger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSnapshotCollector(source domrepo.SearchAnalytics, sink SnapshotSink, jobs queue.Publisher, metrics domrepo.Metrics, cfg CollectorConfig, l *applogger.Logger) *SnapshotCollector {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.LagDays < 0 {
		cfg.LagDays = 0
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &SnapshotCollector{
		source:  source,
		sink:    sink,
		jobs:    jobs,
		metrics: metrics,
		cfg:     cfg,
		now:     time.Now,
		l:       l.Component("collector"),
	}
}

// Start runs a collection immediately and then on every interval until
// Stop or ctx cancellation.
func (c *SnapshotCollector) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		return fmt.Errorf("collector already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.loop(ctx, c.done)
	c.l.Info("collector started",
		applogger.Strings("sites", c.cfg.Sites),
		applogger.Duration("interval", c.cfg.Interval),
		applogger.Bool("queued", c.jobs != nil))
	return nil
}

func (c *SnapshotCollector) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	c.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runOnce(ctx)
		}
	}
}

func (c *SnapshotCollector) runOnce(ctx context.Context) {
	if err := c.CollectOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.l.Warn("collection round had failures", applogger.Error(err))
	}
}

// Stop cancels the loop and waits for the current round to end.
func (c *SnapshotCollector) Stop() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.l.Info("collector stopped")
}

// TargetDate is the most recent day Search Console has finalized.
func (c *SnapshotCollector) TargetDate() string {
	return util.FormatDate(c.now().UTC().AddDate(0, 0, -c.cfg.LagDays))
}

// CollectOnce dispatches one round for every configured site, or every
// site the credentials can see when none are configured. Per-site failures
// are joined; other sites still run.
func (c *SnapshotCollector) CollectOnce(ctx context.Context) error {
	sites, err := c.sites(ctx)
	if err != nil {
		c.recordError("collect")
		return err
	}
	date := c.TargetDate()
	var errs []error
	for _, site := range sites {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var err error
		if c.jobs != nil {
			err = c.jobs.Enqueue(ctx, JobCollectSite, CollectRequest{Site: site, Date: date})
		} else {
			err = c.Collect(ctx, site, date)
		}
		if err != nil {
			c.recordError("collect")
			errs = append(errs, fmt.Errorf("%s: %w", site, err))
		}
	}
	return errors.Join(errs...)
}

// Collect fetches one site/day and hands the snapshot to the sink.
func (c *SnapshotCollector) Collect(ctx context.Context, site, date string) error {
	if _, ok := util.ParseDate(date); !ok {
		return fmt.Errorf("invalid date %q", date)
	}
	rows, err := c.source.Query(ctx, models.AnalyticsQuery{
		SiteURL:   site,
		StartDate: date,
		EndDate:   date,
		Dimensions: []string{
			string(domrepo.DimQuery),
			string(domrepo.DimPage),
			string(domrepo.DimDevice),
			string(domrepo.DimCountry),
		},
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", date, err)
	}
	for i := range rows {
		rows[i].Date = date
	}

	snap := &models.Snapshot{Site: site, Date: date, Rows: rows, CollectedAt: c.now().UTC()}
	if err := c.sink.Process(ctx, snap); err != nil {
		return err
	}
	c.l.Debug("site collected",
		applogger.String("site", site),
		applogger.String("date", date),
		applogger.Int("rows", len(rows)))
	return nil
}

func (c *SnapshotCollector) sites(ctx context.Context) ([]string, error) {
	if len(c.cfg.Sites) > 0 {
		return c.cfg.Sites, nil
	}
	sites, err := c.source.Sites(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	return sites, nil
}

func (c *SnapshotCollector) recordError(kind string) {
	if c.metrics != nil {
		c.metrics.RecordError(kind)
	}
}

// CollectSiteJob consumes collect_site messages from the queue.
type CollectSiteJob struct {
	collector *SnapshotCollector
}

func NewCollectSiteJob(c *SnapshotCollector) *CollectSiteJob {
	return &CollectSiteJob{collector: c}
}

func (j *CollectSiteJob) Name() string { return "collect-site" }
func (j *CollectSiteJob) Type() string { return JobCollectSite }

func (j *CollectSiteJob) Handle(ctx context.Context, payload json.RawMessage) error {
	req, err := queue.Decode[CollectRequest](payload)
	if err != nil {
		return err
	}
	if req.Site == "" {
		return fmt.Errorf("collect job without site")
	}
	return j.collector.Collect(ctx, req.Site, req.Date)
}
