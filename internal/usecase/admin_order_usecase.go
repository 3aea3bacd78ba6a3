package usecase

import (
	"context"
	"net/http"
	"strings"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
)

type AdminOrderUsecase struct {
	tx      repo.TransactionManager
	machine *OrderStateMachine
}

func NewAdminOrderUsecase(tx repo.TransactionManager, machine *OrderStateMachine) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, machine: machine}
}

type AdminUpdateOrderStatusInput struct {
	Status string
	// 画面に表示していたステータス（照合用）
	CurrentStatus string
	Reason        string
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (OrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	if f.Status != "" && !model.OrderStatus(f.Status).IsValid() {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	out := OrderListOutput{Page: f.Page, Limit: f.Limit}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return dbError(err)
		}
		out.Total = total
		out.Items, err = loadOrderOutputs(ctx, r, orders)
		return err
	})
	if err != nil {
		return OrderListOutput{}, dbError(err)
	}
	return out, nil
}

// スタッフ向けの注文詳細
func (u *AdminOrderUsecase) Get(ctx context.Context, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return dbError(err)
		}
		out, err = loadOrderOutput(ctx, r, o)
		return err
	})
	if err != nil {
		return OrderOutput{}, dbError(err)
	}
	return out, nil
}

// ステータス更新（副作用は状態機械側）
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorUserID int64, orderID int64, in AdminUpdateOrderStatusInput) (OrderOutput, error) {
	newStatus := model.OrderStatus(strings.ToUpper(strings.TrimSpace(in.Status)))
	if !newStatus.IsValid() {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	current := model.OrderStatus(strings.ToUpper(strings.TrimSpace(in.CurrentStatus)))
	if current != "" && !current.IsValid() {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid current status")
	}

	return u.machine.Transition(ctx, TransitionInput{
		OrderID:        orderID,
		Status:         newStatus,
		ActorID:        actorUserID,
		ExpectedStatus: current,
		Reason:         in.Reason,
	})
}
