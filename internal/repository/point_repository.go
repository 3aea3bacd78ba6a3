package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

type PointRepository interface {
	CreateEntry(ctx context.Context, entry model.PointLedgerEntry) error
	FindEarnEntry(ctx context.Context, orderID int64) (model.PointLedgerEntry, bool, error)
	//注文に紐づく台帳の合計（残っている付与ポイント）
	SumByOrder(ctx context.Context, orderID int64) (int64, error)
	//会員の残高を増減。allowNegative=falseなら0で止める
	AdjustBalance(ctx context.Context, customerID int64, delta int64, allowNegative bool) error
}
