package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page       int
	Limit      int
	Status     string
	CustomerID *int64
	From       *time.Time
	To         *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	//行ロック付きで取得（同じ注文への更新を直列化）
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)
	FindByCode(ctx context.Context, code string) (model.Order, error)
	//チェックアウトセッションから作られた注文
	FindByCheckoutSession(ctx context.Context, sessionID string) (model.Order, bool, error)
	ListByCustomerID(ctx context.Context, customerID int64, page int, limit int) ([]model.Order, int64, error)
	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)

	Create(ctx context.Context, order model.Order) (int64, error)
	Save(ctx context.Context, order model.Order) error
}
