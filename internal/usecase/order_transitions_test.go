package usecase

import (
	"testing"

	"bookstore/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition_Table(t *testing.T) {
	allowed := map[model.OrderStatus][]model.OrderStatus{
		model.OrderStatusPending:                   {model.OrderStatusConfirmed, model.OrderStatusCanceled},
		model.OrderStatusConfirmed:                 {model.OrderStatusShipped, model.OrderStatusCanceled},
		model.OrderStatusShipped:                   {model.OrderStatusDelivered, model.OrderStatusCanceled, model.OrderStatusDeliveryFailed},
		model.OrderStatusDelivered:                 {model.OrderStatusGoodsReturnedToWarehouse, model.OrderStatusPartiallyRefunded, model.OrderStatusRefundRequested},
		model.OrderStatusDeliveryFailed:            {model.OrderStatusRedelivering, model.OrderStatusReturningToWarehouse},
		model.OrderStatusRedelivering:              {model.OrderStatusDelivered, model.OrderStatusDeliveryFailed},
		model.OrderStatusReturningToWarehouse:      {model.OrderStatusCanceled},
		model.OrderStatusCanceled:                  {model.OrderStatusRefunding},
		model.OrderStatusGoodsReturnedToWarehouse:  {model.OrderStatusRefunding, model.OrderStatusRefunded, model.OrderStatusPartiallyRefunded},
		model.OrderStatusRefunding:                 {model.OrderStatusGoodsReturnedToWarehouse, model.OrderStatusRefunded},
		model.OrderStatusPartiallyRefunded:         {model.OrderStatusGoodsReturnedToWarehouse, model.OrderStatusRefunding, model.OrderStatusRefundRequested},
		model.OrderStatusRefunded:                  {model.OrderStatusGoodsReturnedToWarehouse},
		model.OrderStatusRefundRequested:           {model.OrderStatusAwaitingGoodsReturn, model.OrderStatusDelivered},
		model.OrderStatusAwaitingGoodsReturn:       {model.OrderStatusGoodsReceivedFromCustomer, model.OrderStatusGoodsReturnedToWarehouse},
		model.OrderStatusGoodsReceivedFromCustomer: {model.OrderStatusGoodsReturnedToWarehouse},
	}

	for _, from := range model.AllOrderStatuses {
		want := map[model.OrderStatus]bool{}
		for _, to := range allowed[from] {
			want[to] = true
		}
		for _, to := range model.AllOrderStatuses {
			assert.Equal(t, want[to], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	assert.False(t, CanTransition("LOST", model.OrderStatusConfirmed))
	assert.False(t, CanTransition(model.OrderStatusPending, "LOST"))
}

// 返金フロー専用の遷移は必ず遷移表にも含まれる
func TestRefundWorkflowTransitions_AreSubsetOfTable(t *testing.T) {
	for from, next := range refundWorkflowTransitions {
		for to := range next {
			assert.True(t, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}
