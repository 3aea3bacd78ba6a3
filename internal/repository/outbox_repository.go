package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
)

type OutboxRepository interface {
	Create(ctx context.Context, ev model.OutboxEvent) error
	ListPending(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []int64, at time.Time) error
}
