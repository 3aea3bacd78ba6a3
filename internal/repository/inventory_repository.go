package repository

import (
	"bookstore/internal/domain/model"
	"context"
)

type InventoryRepository interface {
	// 在庫の現在値を設定
	SetStock(ctx context.Context, bookID int64, newStock int64) error

	// 在庫が足りるときだけ減算
	DecreaseStockIfEnough(ctx context.Context, bookID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセル・返品入庫）
	IncreaseStock(ctx context.Context, bookID int64, qty int64) error

	// 販売数
	IncreaseSold(ctx context.Context, bookID int64, qty int64) error
	DecreaseSoldIfEnough(ctx context.Context, bookID int64, qty int64) (bool, error)

	// flash sale offer側の在庫・販売数
	DecreaseOfferStockIfEnough(ctx context.Context, offerID int64, qty int64) (bool, error)
	IncreaseOfferStock(ctx context.Context, offerID int64, qty int64) error
	IncreaseOfferSold(ctx context.Context, offerID int64, qty int64) error
	DecreaseOfferSoldIfEnough(ctx context.Context, offerID int64, qty int64) (bool, error)

	// 処理中数量（注文明細 + 未入庫の返金明細）を毎回集計する
	InFlightForBook(ctx context.Context, bookID int64, statuses []model.OrderStatus) (int64, error)
	InFlightForOffer(ctx context.Context, offerID int64, statuses []model.OrderStatus) (int64, error)

	// 調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
