// Package idempotency защищает неидемпотентные запросы от повторного выполнения.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrDuplicate возвращается, если запрос с таким ключом уже выполняется или выполнен.
var ErrDuplicate = errors.New("duplicate idempotency key")

// Guard хранит ключи идемпотентности в Redis.
type Guard struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewGuard создаёт Guard. Ключ живёт ttl с момента захвата.
func NewGuard(rdb *redis.Client, ttl time.Duration) *Guard {
	return &Guard{rdb: rdb, ttl: ttl}
}

// Key строит ключ Redis для пользователя и клиентского ключа.
func Key(userID int64, clientKey string) string {
	return fmt.Sprintf("idempotent-key:%d:%s", userID, clientKey)
}

// Acquire захватывает ключ. Если Guard не настроен или ключ пуст, проверка пропускается.
func (g *Guard) Acquire(ctx context.Context, userID int64, clientKey string) error {
	if g == nil || g.rdb == nil || clientKey == "" {
		return nil
	}

	ok, err := g.rdb.SetNX(ctx, Key(userID, clientKey), "processing", g.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire idempotency key: %w", err)
	}
	if !ok {
		return ErrDuplicate
	}
	return nil
}

// Release освобождает ключ, чтобы клиент мог повторить неудавшийся запрос.
func (g *Guard) Release(ctx context.Context, userID int64, clientKey string) error {
	if g == nil || g.rdb == nil || clientKey == "" {
		return nil
	}

	if err := g.rdb.Del(ctx, Key(userID, clientKey)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis.
func (g *Guard) Ping(ctx context.Context) error {
	if g == nil || g.rdb == nil {
		return nil
	}
	return g.rdb.Ping(ctx).Err()
}

// Close закрывает соединение с Redis.
func (g *Guard) Close() error {
	if g == nil || g.rdb == nil {
		return nil
	}
	return g.rdb.Close()
}
