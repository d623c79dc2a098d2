// Package events moves booking lifecycle events from the event_logs outbox
// to Kafka. Writes to the outbox happen with the booking state change; the
// relay drains unpublished rows afterwards, giving at-least-once delivery
// without external calls anywhere near the booking critical section.
package events

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Relay struct {
	pool      *pgxpool.Pool
	logger    *zap.Logger
	brokers   []string
	pollEvery time.Duration
	batchSize int
}

type RelayConfig struct {
	Brokers   []string
	PollEvery time.Duration
	BatchSize int
}

func NewRelay(pool *pgxpool.Pool, logger *zap.Logger, cfg RelayConfig) *Relay {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	return &Relay{
		pool:      pool,
		logger:    logger,
		brokers:   cfg.Brokers,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
	}
}

// Run polls the outbox until the context is cancelled. The topic name
// equals the event type; the booking id keys the message so one booking's
// events stay ordered within a partition.
func (r *Relay) Run(ctx context.Context) {
	if len(r.brokers) == 0 {
		r.logger.Warn("event relay disabled: no kafka brokers configured")
		return
	}

	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  r.brokers,
		Balancer: &kafka.Hash{},
	})
	defer writer.Close()

	ticker := time.NewTicker(r.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.publishBatch(ctx, writer); err != nil {
				r.logger.Error("outbox publish failed", zap.Error(err))
			}
		}
	}
}

type record struct {
	id        int64
	eventType string
	bookingID *uuid.UUID
	payload   []byte
}

// publishBatch fetches and marks rows inside one transaction. SKIP LOCKED
// lets several relay instances drain the outbox side by side without
// publishing the same row twice.
func (r *Relay) publishBatch(ctx context.Context, writer *kafka.Writer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := fetchUnpublished(ctx, tx, r.batchSize)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return tx.Commit(ctx)
	}

	for _, rec := range records {
		msg := kafka.Message{
			Topic: rec.eventType,
			Value: rec.payload,
			Headers: []kafka.Header{
				{Key: "event_id", Value: []byte(strconv.FormatInt(rec.id, 10))},
				{Key: "event_type", Value: []byte(rec.eventType)},
			},
		}
		if rec.bookingID != nil {
			msg.Key = []byte(rec.bookingID.String())
		}

		if err := writer.WriteMessages(ctx, msg); err != nil {
			return err
		}
	}

	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.id)
	}
	if err := markPublished(ctx, tx, ids); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func fetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]record, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_type, booking_id, payload
		FROM event_logs
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []record
	for rows.Next() {
		var rec record
		if err := rows.Scan(&rec.id, &rec.eventType, &rec.bookingID, &rec.payload); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func markPublished(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE event_logs
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}
