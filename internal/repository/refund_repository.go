package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
)

type RefundRepository interface {
	Create(ctx context.Context, req model.RefundRequest) (int64, error)
	CreateItems(ctx context.Context, requestID int64, items []model.RefundItem) error
	CreateEvidences(ctx context.Context, requestID int64, urls []string) error

	FindByID(ctx context.Context, requestID int64) (model.RefundRequest, error)
	FindByIDForUpdate(ctx context.Context, requestID int64) (model.RefundRequest, error)
	//PENDING/APPROVEDの申請
	FindActiveByOrderID(ctx context.Context, orderID int64) (model.RefundRequest, bool, error)
	ListByOrderID(ctx context.Context, orderID int64) ([]model.RefundRequest, error)
	Save(ctx context.Context, req model.RefundRequest) error

	ListItems(ctx context.Context, requestID int64) ([]model.RefundItem, error)
	ListEvidences(ctx context.Context, requestID int64) ([]model.RefundEvidence, error)
	//指定ステータスの申請に属する未入庫の明細
	ListUnrestockedItemsByOrder(ctx context.Context, orderID int64, statuses []model.RefundStatus) ([]model.RefundItem, error)
	MarkItemRestocked(ctx context.Context, itemID int64, at time.Time) error
}
