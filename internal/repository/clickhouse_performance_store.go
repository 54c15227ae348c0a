package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"SearchInsight/internal/domain/models"
	domrepo "SearchInsight/internal/domain/repository"
	applogger "SearchInsight/pkg/logger"
	"SearchInsight/pkg/util"
)

const insertChunk = 2000

// CHPerformanceStore implements PerformanceStore backed by ClickHouse.
type CHPerformanceStore struct {
	db       *sql.DB
	database string
	table    string
	l        *applogger.Logger
}

func NewCHPerformanceStore(db *sql.DB, database string) *CHPerformanceStore {
	if database == "" {
		database = "searchinsight"
	}
	return &CHPerformanceStore{
		db:       db,
		database: database,
		table:    database + ".performance_daily",
		l:        applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (s *CHPerformanceStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l.Component("clickhouse_store")
	}
}

// Schema returns the idempotent DDL for the store.
func (s *CHPerformanceStore) Schema() []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", s.database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    site         LowCardinality(String),
    date         Date,
    query        String,
    page         String,
    device       LowCardinality(String),
    country      LowCardinality(String),
    clicks       Float64,
    impressions  Float64,
    ctr          Float64,
    position     Float64,
    collected_at DateTime
) ENGINE = ReplacingMergeTree(collected_at)
PARTITION BY toYYYYMM(date)
ORDER BY (site, date, query, page, device, country)`, s.table),
	}
}

func (s *CHPerformanceStore) Init(ctx context.Context) error {
	for _, stmt := range s.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// StoreSnapshot inserts every row of snap with multi-row VALUES chunks.
// Re-collecting a day replaces earlier rows at merge time.
func (s *CHPerformanceStore) StoreSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil || len(snap.Rows) == 0 {
		return nil
	}
	day, ok := util.ParseDate(snap.Date)
	if !ok {
		return fmt.Errorf("store snapshot: invalid date %q", snap.Date)
	}
	collected := snap.CollectedAt
	if collected.IsZero() {
		collected = time.Now().UTC()
	}

	start := time.Now()
	for from := 0; from < len(snap.Rows); from += insertChunk {
		to := from + insertChunk
		if to > len(snap.Rows) {
			to = len(snap.Rows)
		}
		chunk := snap.Rows[from:to]

		values := make([]string, 0, len(chunk))
		args := make([]interface{}, 0, len(chunk)*11)
		for _, r := range chunk {
			rowDay := day
			if d, ok := util.ParseDate(r.Date); ok {
				rowDay = d
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, snap.Site, rowDay, r.Query, r.Page, r.Device, r.Country,
				r.Clicks, r.Impressions, r.CTR, r.Position, collected)
		}
		q := fmt.Sprintf("INSERT INTO %s (site, date, query, page, device, country, clicks, impressions, ctr, position, collected_at) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert error",
				applogger.String("site", snap.Site),
				applogger.String("date", snap.Date),
				applogger.Int("rows", len(chunk)),
				applogger.Error(err),
			)
			return fmt.Errorf("store snapshot: %w", err)
		}
	}

	s.l.Info("snapshot stored",
		applogger.String("site", snap.Site),
		applogger.String("date", snap.Date),
		applogger.Int("rows", len(snap.Rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// DailySeries aggregates metric per day for one query or page.
func (s *CHPerformanceStore) DailySeries(ctx context.Context, site string, dim domrepo.Dimension, key string, from, to time.Time, metric domrepo.Metric) ([]models.TrendPoint, error) {
	col, err := columnFor(dim)
	if err != nil {
		return nil, err
	}
	agg := aggregateFor(metric)

	q := fmt.Sprintf(`
        SELECT date, %s AS value
        FROM %s FINAL
        WHERE site = ? AND %s = ? AND date >= ? AND date <= ?
        GROUP BY date
        ORDER BY date ASC
    `, agg, s.table, col)

	rows, err := s.db.QueryContext(ctx, q, site, key, from, to)
	if err != nil {
		s.l.Error("clickhouse daily_series query error",
			applogger.String("site", site),
			applogger.String("dimension", string(dim)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("daily series: %w", err)
	}
	defer rows.Close()

	out := make([]models.TrendPoint, 0, 32)
	for rows.Next() {
		var (
			day   time.Time
			value float64
		)
		if err := rows.Scan(&day, &value); err != nil {
			return nil, fmt.Errorf("scan series point: %w", err)
		}
		out = append(out, models.TrendPoint{Date: util.FormatDate(day), Value: value})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHPerformanceStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *CHPerformanceStore) Close() error { return nil }

func columnFor(dim domrepo.Dimension) (string, error) {
	switch dim {
	case domrepo.DimQuery:
		return "query", nil
	case domrepo.DimPage:
		return "page", nil
	default:
		return "", fmt.Errorf("unsupported series dimension: %s", dim)
	}
}

func aggregateFor(m domrepo.Metric) string {
	switch m {
	case domrepo.MetricImpressions:
		return "sum(impressions)"
	case domrepo.MetricCTR:
		return "if(sum(impressions) > 0, sum(clicks) / sum(impressions), 0)"
	case domrepo.MetricPosition:
		return "if(sum(impressions) > 0, sum(position * impressions) / sum(impressions), avg(position))"
	default:
		return "sum(clicks)"
	}
}
