package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
	Save(ctx context.Context, item model.OrderItem) error
}
