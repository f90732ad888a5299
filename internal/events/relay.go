package events

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jrkim-kr/vibe-coding-study-sub000/internal/model"
)

// Store - доступ к outbox событий заказов.
type Store interface {
	FetchPendingEvents(ctx context.Context, limit int) ([]model.OrderEvent, error)
	MarkEventsPublished(ctx context.Context, ids []string) error
}

// Relay периодически переносит события из outbox в Publisher.
// Доставка «хотя бы один раз»: событие помечается только после успешной публикации.
type Relay struct {
	store     Store
	publisher Publisher
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
}

// NewRelay создаёт фоновый ретранслятор событий.
func NewRelay(store Store, publisher Publisher, logger *zap.Logger, interval time.Duration, batchSize int) *Relay {
	return &Relay{
		store:     store,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run обрабатывает outbox до отмены контекста.
func (r *Relay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				r.logger.Warn("order event relay failed", zap.Error(err))
			}
		}
	}
}

// ProcessBatch публикует одну порцию событий и возвращает их количество.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	pending, err := r.store.FetchPendingEvents(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch pending events: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	if err := r.publisher.Publish(ctx, pending); err != nil {
		return 0, fmt.Errorf("publish events: %w", err)
	}

	ids := make([]string, 0, len(pending))
	for _, e := range pending {
		ids = append(ids, e.ID)
	}

	if err := r.store.MarkEventsPublished(ctx, ids); err != nil {
		return 0, fmt.Errorf("mark events published: %w", err)
	}

	return len(pending), nil
}
