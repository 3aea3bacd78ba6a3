package usecase

import (
	"fmt"
	"net/http"

	"bookstore/internal/domain/model"
)

type transitionSet map[model.OrderStatus]struct{}

func newTransitionSet(statuses ...model.OrderStatus) transitionSet {
	set := make(transitionSet, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return set
}

// 許可する遷移（これ以外はすべて InvalidTransition）
var orderStateTransitions = map[model.OrderStatus]transitionSet{
	model.OrderStatusPending: newTransitionSet(
		model.OrderStatusConfirmed,
		model.OrderStatusCanceled,
	),
	model.OrderStatusConfirmed: newTransitionSet(
		model.OrderStatusShipped,
		model.OrderStatusCanceled,
	),
	model.OrderStatusShipped: newTransitionSet(
		model.OrderStatusDelivered,
		model.OrderStatusCanceled,
		model.OrderStatusDeliveryFailed,
	),
	model.OrderStatusDelivered: newTransitionSet(
		model.OrderStatusGoodsReturnedToWarehouse,
		model.OrderStatusPartiallyRefunded,
		model.OrderStatusRefundRequested,
	),
	model.OrderStatusDeliveryFailed: newTransitionSet(
		model.OrderStatusRedelivering,
		model.OrderStatusReturningToWarehouse,
	),
	model.OrderStatusRedelivering: newTransitionSet(
		model.OrderStatusDelivered,
		model.OrderStatusDeliveryFailed,
	),
	model.OrderStatusReturningToWarehouse: newTransitionSet(
		model.OrderStatusCanceled,
	),
	model.OrderStatusCanceled: newTransitionSet(
		model.OrderStatusRefunding,
	),
	model.OrderStatusGoodsReturnedToWarehouse: newTransitionSet(
		model.OrderStatusRefunding,
		model.OrderStatusRefunded,
		model.OrderStatusPartiallyRefunded,
	),
	model.OrderStatusRefunding: newTransitionSet(
		model.OrderStatusGoodsReturnedToWarehouse,
		model.OrderStatusRefunded,
	),
	model.OrderStatusPartiallyRefunded: newTransitionSet(
		model.OrderStatusGoodsReturnedToWarehouse,
		model.OrderStatusRefunding,
		model.OrderStatusRefundRequested,
	),
	model.OrderStatusRefunded: newTransitionSet(
		model.OrderStatusGoodsReturnedToWarehouse,
	),
	model.OrderStatusRefundRequested: newTransitionSet(
		model.OrderStatusAwaitingGoodsReturn,
		model.OrderStatusDelivered,
	),
	model.OrderStatusAwaitingGoodsReturn: newTransitionSet(
		model.OrderStatusGoodsReceivedFromCustomer,
		model.OrderStatusGoodsReturnedToWarehouse,
	),
	model.OrderStatusGoodsReceivedFromCustomer: newTransitionSet(
		model.OrderStatusGoodsReturnedToWarehouse,
	),
}

// 返金フローだけが動かす遷移（スタッフの直接操作では不可）
var refundWorkflowTransitions = map[model.OrderStatus]transitionSet{
	model.OrderStatusDelivered:                newTransitionSet(model.OrderStatusRefundRequested),
	model.OrderStatusPartiallyRefunded:        newTransitionSet(model.OrderStatusRefundRequested),
	model.OrderStatusRefundRequested:          newTransitionSet(model.OrderStatusAwaitingGoodsReturn, model.OrderStatusDelivered),
	model.OrderStatusGoodsReturnedToWarehouse: newTransitionSet(model.OrderStatusRefunded, model.OrderStatusPartiallyRefunded),
}

func CanTransition(from, to model.OrderStatus) bool {
	next, ok := orderStateTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

func isRefundWorkflowTransition(from, to model.OrderStatus) bool {
	next, ok := refundWorkflowTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

func invalidTransition(from, to model.OrderStatus) error {
	return &HTTPError{
		Status:  http.StatusConflict,
		Message: fmt.Sprintf("cannot change status from %s to %s", from, to),
		Code:    "INVALID_TRANSITION",
		Kind:    ErrInvalidTransition,
	}
}
