package usecase

import (
	"context"
	"errors"
	"fmt"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"github.com/shopspring/decimal"
)

// ポイント台帳。付与は注文ごとに1回、控除は付与済みの残りを超えない
type PointLedger struct {
	earnRate      decimal.Decimal
	allowNegative bool
}

func NewPointLedger(earnRate decimal.Decimal, allowNegative bool) *PointLedger {
	return &PointLedger{earnRate: earnRate, allowNegative: allowNegative}
}

// floor(total * rate)
func (l *PointLedger) pointsFor(total decimal.Decimal) int64 {
	return total.Mul(l.earnRate).Floor().IntPart()
}

func (l *PointLedger) earn(ctx context.Context, r repo.TxRepos, o model.Order) (int64, error) {
	_, found, err := r.Points().FindEarnEntry(ctx, o.ID)
	if err != nil {
		return 0, dbError(err)
	}
	if found {
		return 0, nil
	}

	pts := l.pointsFor(o.TotalAmount)
	if pts <= 0 {
		return 0, nil
	}
	err = r.Points().CreateEntry(ctx, model.PointLedgerEntry{
		CustomerID: o.CustomerID,
		OrderID:    o.ID,
		Kind:       model.PointEntryEarn,
		Points:     pts,
		Reason:     fmt.Sprintf("order %s delivered", o.Code),
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return 0, nil
	}
	if err != nil {
		return 0, dbError(err)
	}
	if err := r.Points().AdjustBalance(ctx, o.CustomerID, pts, l.allowNegative); err != nil {
		return 0, dbError(err)
	}
	return pts, nil
}

// 返金額 / 元の支払額 * 付与ポイント（切り捨て、残りが上限）
func (l *PointLedger) deductProportional(ctx context.Context, r repo.TxRepos, o model.Order, refunded decimal.Decimal, refundID *int64) (int64, error) {
	earned, found, err := r.Points().FindEarnEntry(ctx, o.ID)
	if err != nil {
		return 0, dbError(err)
	}
	if !found || !o.TotalAmount.IsPositive() || !refunded.IsPositive() {
		return 0, nil
	}

	// 先に掛けてから割る
	pts := refunded.Mul(decimal.NewFromInt(earned.Points)).Div(o.TotalAmount).Floor().IntPart()
	return l.deduct(ctx, r, o, pts, refundID, fmt.Sprintf("partial refund of order %s", o.Code))
}

// 注文に残っている付与ポイントを全部戻す（全額返金・付与後キャンセル）
func (l *PointLedger) deductRemaining(ctx context.Context, r repo.TxRepos, o model.Order, refundID *int64, reason string) (int64, error) {
	net, err := r.Points().SumByOrder(ctx, o.ID)
	if err != nil {
		return 0, dbError(err)
	}
	return l.deduct(ctx, r, o, net, refundID, reason)
}

func (l *PointLedger) deduct(ctx context.Context, r repo.TxRepos, o model.Order, pts int64, refundID *int64, reason string) (int64, error) {
	net, err := r.Points().SumByOrder(ctx, o.ID)
	if err != nil {
		return 0, dbError(err)
	}
	if pts > net {
		pts = net
	}
	if pts <= 0 {
		return 0, nil
	}

	if err := r.Points().CreateEntry(ctx, model.PointLedgerEntry{
		CustomerID:      o.CustomerID,
		OrderID:         o.ID,
		RefundRequestID: refundID,
		Kind:            model.PointEntryDeduct,
		Points:          -pts,
		Reason:          reason,
	}); err != nil {
		return 0, dbError(err)
	}
	if err := r.Points().AdjustBalance(ctx, o.CustomerID, -pts, l.allowNegative); err != nil {
		return 0, dbError(err)
	}
	return pts, nil
}
