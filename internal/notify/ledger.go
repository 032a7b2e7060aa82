package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Ledger помнит, по каким бронированиям письмо уже ушло.
type Ledger interface {
	WasSent(ctx context.Context, bookingID uuid.UUID) (bool, error)
	MarkSent(ctx context.Context, bookingID uuid.UUID) error
}

// RedisLedger хранит отметки в Redis с TTL.
type RedisLedger struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisLedger создаёт RedisLedger. ttl <= 0 — 7 дней.
func NewRedisLedger(client *redis.Client, ttl time.Duration) *RedisLedger {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisLedger{
		client: client,
		ttl:    ttl,
		prefix: "carpooling:notify:sent:",
	}
}

func (l *RedisLedger) key(bookingID uuid.UUID) string {
	return l.prefix + bookingID.String()
}

// WasSent проверяет наличие отметки.
func (l *RedisLedger) WasSent(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	_, err := l.client.Get(ctx, l.key(bookingID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ledger get: %w", err)
	}
	return true, nil
}

// MarkSent ставит отметку. Повторная отметка TTL не продлевает.
func (l *RedisLedger) MarkSent(ctx context.Context, bookingID uuid.UUID) error {
	if err := l.client.SetNX(ctx, l.key(bookingID), time.Now().UTC().Format(time.RFC3339), l.ttl).Err(); err != nil {
		return fmt.Errorf("ledger set: %w", err)
	}
	return nil
}

var _ Ledger = (*RedisLedger)(nil)
