package repository

import (
	"context"
	"fmt"
	"time"

	"SearchInsight/internal/domain/models"
	pkgkafka "SearchInsight/pkg/kafka"
)

// rowMessage is one snapshot row on the wire.
type rowMessage struct {
	Site        string    `json:"site"`
	Date        string    `json:"date"`
	Query       string    `json:"query,omitempty"`
	Page        string    `json:"page,omitempty"`
	Device      string    `json:"device,omitempty"`
	Country     string    `json:"country,omitempty"`
	Clicks      float64   `json:"clicks"`
	Impressions float64   `json:"impressions"`
	CTR         float64   `json:"ctr"`
	Position    float64   `json:"position"`
	CollectedAt time.Time `json:"collected_at"`
}

type producer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaPublisher implements Publisher for Kafka. Messages are keyed by site
// so a site's rows stay ordered within one partition.
type KafkaPublisher struct {
	producer    producer
	topic       string
	reportTopic string
	batchSize   int
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(p *pkgkafka.Producer, topic, reportTopic string, batchSize int) *KafkaPublisher {
	return newKafkaPublisher(p, topic, reportTopic, batchSize)
}

func newKafkaPublisher(p producer, topic, reportTopic string, batchSize int) *KafkaPublisher {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &KafkaPublisher{producer: p, topic: topic, reportTopic: reportTopic, batchSize: batchSize}
}

func (p *KafkaPublisher) PublishSnapshot(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil || len(snap.Rows) == 0 {
		return nil
	}
	key := []byte(snap.Site)
	batch := make([]pkgkafka.Message, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.producer.PublishBatch(ctx, p.topic, batch); err != nil {
			return fmt.Errorf("publish snapshot %s %s: %w", snap.Site, snap.Date, err)
		}
		batch = batch[:0]
		return nil
	}

	for _, r := range snap.Rows {
		date := r.Date
		if date == "" {
			date = snap.Date
		}
		batch = append(batch, pkgkafka.Message{Key: key, Value: rowMessage{
			Site:        snap.Site,
			Date:        date,
			Query:       r.Query,
			Page:        r.Page,
			Device:      r.Device,
			Country:     r.Country,
			Clicks:      r.Clicks,
			Impressions: r.Impressions,
			CTR:         r.CTR,
			Position:    r.Position,
			CollectedAt: snap.CollectedAt,
		}})
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

func (p *KafkaPublisher) PublishReport(ctx context.Context, report *models.InsightReport) error {
	if report == nil {
		return nil
	}
	if p.reportTopic == "" {
		return nil
	}
	if err := p.producer.Publish(ctx, p.reportTopic, []byte(report.Site), report); err != nil {
		return fmt.Errorf("publish report %s: %w", report.Site, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
