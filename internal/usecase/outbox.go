package usecase

import (
	"context"
	"encoding/json"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
)

// outboxのイベント種別
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventRefundUpdated      = "refund.updated"
)

type orderStatusChangedEvent struct {
	OrderID   int64             `json:"order_id"`
	OrderCode string            `json:"order_code"`
	From      model.OrderStatus `json:"from"`
	To        model.OrderStatus `json:"to"`
	ActorID   int64             `json:"actor_id"`
}

type refundUpdatedEvent struct {
	RefundRequestID int64              `json:"refund_request_id"`
	OrderID         int64              `json:"order_id"`
	Status          model.RefundStatus `json:"status"`
	Amount          string             `json:"amount"`
}

// 同じトランザクションでoutboxへ書く（送信はrelayが行う）
func emitEvent(ctx context.Context, r repo.TxRepos, topic string, key string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return dbError(r.Outbox().Create(ctx, model.OutboxEvent{
		Topic:   topic,
		Key:     key,
		Payload: string(b),
		Status:  model.OutboxStatusPending,
	}))
}
