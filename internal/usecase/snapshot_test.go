package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"SearchInsight/internal/domain/models"
	domrepo "SearchInsight/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotProcessor_Routes(t *testing.T) {
	snap := &models.Snapshot{Site: site, Date: "2024-03-28", Rows: reportRows()}
	ctx := context.Background()

	t.Run("kafka", func(t *testing.T) {
		pub, m := &fakePublisher{}, newFakeMetrics()
		p := NewSnapshotProcessor(pub, nil, m, BackendKafka, nil)
		require.NoError(t, p.Process(ctx, snap))
		assert.Len(t, pub.snapshots, 1)
		assert.Equal(t, 1, m.stored)
	})

	t.Run("clickhouse", func(t *testing.T) {
		store := &fakeStore{}
		p := NewSnapshotProcessor(nil, store, nil, BackendClickHouse, nil)
		require.NoError(t, p.Process(ctx, snap))
		assert.Len(t, store.stored, 1)
		p.Close()
		assert.True(t, store.closed)
	})

	t.Run("none", func(t *testing.T) {
		m := newFakeMetrics()
		p := NewSnapshotProcessor(nil, nil, m, BackendNone, nil)
		require.NoError(t, p.Process(ctx, snap))
		assert.Equal(t, 0, m.stored)
	})

	t.Run("missing backend", func(t *testing.T) {
		m := newFakeMetrics()
		p := NewSnapshotProcessor(nil, nil, m, BackendKafka, nil)
		err := p.Process(ctx, snap)
		assert.ErrorIs(t, err, domrepo.ErrNotConfigured)
		assert.Equal(t, 1, m.errors["process"])
	})

	t.Run("unknown", func(t *testing.T) {
		p := NewSnapshotProcessor(nil, nil, nil, "s3", nil)
		assert.Error(t, p.Process(ctx, snap))
		assert.Error(t, p.Process(ctx, nil))
	})

	t.Run("backend error", func(t *testing.T) {
		store := &fakeStore{err: errors.New("insert failed")}
		p := NewSnapshotProcessor(nil, store, nil, BackendClickHouse, nil)
		assert.ErrorContains(t, p.Process(ctx, snap), "insert failed")
	})
}

type sinkFunc func(context.Context, *models.Snapshot) error

func (f sinkFunc) Process(ctx context.Context, s *models.Snapshot) error { return f(ctx, s) }

type recordingSink struct {
	mu    sync.Mutex
	snaps []*models.Snapshot
}

func (r *recordingSink) Process(_ context.Context, s *models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func newCollector(src *fakeSource, sink SnapshotSink, jobs *fakeEnqueuer, sites ...string) *SnapshotCollector {
	var pub interface {
		Enqueue(context.Context, string, interface{}) error
	}
	if jobs != nil {
		pub = jobs
	}
	c := NewSnapshotCollector(src, sink, pub, nil, CollectorConfig{Sites: sites, Interval: time.Hour, LagDays: 3}, nil)
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestSnapshotCollector_CollectDirect(t *testing.T) {
	src := &fakeSource{rows: reportRows()}
	sink := &recordingSink{}
	c := newCollector(src, sink, nil, "sc-domain:a.com", "sc-domain:b.com")

	assert.Equal(t, "2024-03-28", c.TargetDate())
	require.NoError(t, c.CollectOnce(context.Background()))
	require.Equal(t, 2, sink.count())

	s := sink.snaps[0]
	assert.Equal(t, "sc-domain:a.com", s.Site)
	assert.Equal(t, "2024-03-28", s.Date)
	assert.Equal(t, fixedNow, s.CollectedAt)
	for _, r := range s.Rows {
		assert.Equal(t, "2024-03-28", r.Date)
	}

	q := src.recorded()[0]
	assert.Equal(t, "2024-03-28", q.StartDate)
	assert.Equal(t, "2024-03-28", q.EndDate)
	assert.Equal(t, []string{"query", "page", "device", "country"}, q.Dimensions)
}

func TestSnapshotCollector_ContinuesAfterFailure(t *testing.T) {
	src := &fakeSource{rows: reportRows()}
	calls := 0
	sink := sinkFunc(func(_ context.Context, s *models.Snapshot) error {
		calls++
		if s.Site == "sc-domain:a.com" {
			return errors.New("backend down")
		}
		return nil
	})
	c := newCollector(src, sink, nil, "sc-domain:a.com", "sc-domain:b.com")

	err := c.CollectOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sc-domain:a.com")
	assert.NotContains(t, err.Error(), "sc-domain:b.com")
	assert.Equal(t, 2, calls)
}

func TestSnapshotCollector_DiscoversSites(t *testing.T) {
	src := &fakeSource{rows: reportRows(), sites: []string{"sc-domain:a.com", "https://b.com/"}}
	sink := &recordingSink{}
	c := newCollector(src, sink, nil)

	require.NoError(t, c.CollectOnce(context.Background()))
	require.Equal(t, 2, sink.count())
	assert.Equal(t, "https://b.com/", sink.snaps[1].Site)

	src.sitesErr = errors.New("forbidden")
	err := c.CollectOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list sites")
}

func TestSnapshotCollector_QueueDispatch(t *testing.T) {
	src := &fakeSource{rows: reportRows()}
	sink := &recordingSink{}
	jobs := &fakeEnqueuer{}
	c := newCollector(src, sink, jobs, "sc-domain:a.com")

	require.NoError(t, c.CollectOnce(context.Background()))
	assert.Equal(t, 0, sink.count())
	assert.Empty(t, src.recorded())
	require.Len(t, jobs.msgs, 1)
	assert.Equal(t, CollectRequest{Site: "sc-domain:a.com", Date: "2024-03-28"}, jobs.msgs[0])

	job := NewCollectSiteJob(c)
	assert.Equal(t, JobCollectSite, job.Type())
	raw, err := json.Marshal(jobs.msgs[0])
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), raw))
	assert.Equal(t, 1, sink.count())

	assert.Error(t, job.Handle(context.Background(), json.RawMessage(`{"date":"2024-03-28"}`)))
	assert.Error(t, job.Handle(context.Background(), json.RawMessage(`{"site":"x","date":"soon"}`)))
}

func TestSnapshotCollector_StartStop(t *testing.T) {
	src := &fakeSource{rows: reportRows()}
	sink := &recordingSink{}
	c := newCollector(src, sink, nil, "sc-domain:a.com")

	require.NoError(t, c.Start(context.Background()))
	assert.Error(t, c.Start(context.Background()))
	assert.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	c.Stop()
	c.Stop()
}
