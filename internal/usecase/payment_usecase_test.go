package usecase

import (
	"context"
	"errors"
	"testing"

	"bookstore/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayment_SuccessConfirmsPendingOrder(t *testing.T) {
	f := newFixture(t)
	o := f.placePending(t, 2)

	res, err := f.payments.HandleNotification(context.Background(), PaymentNotification{OrderCode: o.Code, Success: true, ResponseCode: "00"})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, o.ID, res.OrderID)
	assert.Equal(t, model.OrderStatusConfirmed, res.Status)
	assert.Equal(t, model.OrderStatusConfirmed, f.store.Order(o.ID).Status)

	// 再送は何もしない
	res, err = f.payments.HandleNotification(context.Background(), PaymentNotification{OrderCode: o.Code, Success: true, ResponseCode: "00"})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, model.OrderStatusConfirmed, res.Status)
	assert.Len(t, f.store.AuditLogs(), 1)
}

func TestPayment_FailureCancelsAndReleasesStock(t *testing.T) {
	f := newFixture(t)
	o := f.placePending(t, 4)
	require.Equal(t, int64(6), f.store.Book(f.bookID).StockQuantity)

	res, err := f.payments.HandleNotification(context.Background(), PaymentNotification{OrderCode: o.Code, Success: false, ResponseCode: "24"})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, model.OrderStatusCanceled, res.Status)

	order := f.store.Order(o.ID)
	assert.Equal(t, "payment failed: 24", order.CancelReason)
	assert.False(t, order.StockHeld)
	assert.Equal(t, int64(10), f.store.Book(f.bookID).StockQuantity)
}

// 確定後に遅れて届いた失敗通知は無視
func TestPayment_LateFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	o := f.placePending(t, 1)
	f.move(t, o.ID, model.OrderStatusConfirmed, model.OrderStatusShipped)

	res, err := f.payments.HandleNotification(context.Background(), PaymentNotification{OrderCode: o.Code, Success: false, ResponseCode: "51"})
	require.NoError(t, err)
	assert.False(t, res.Applied)
	assert.Equal(t, model.OrderStatusShipped, res.Status)
	assert.Equal(t, model.OrderStatusShipped, f.store.Order(o.ID).Status)
	assert.Equal(t, int64(9), f.store.Book(f.bookID).StockQuantity)
}

func TestPayment_UnknownOrder(t *testing.T) {
	f := newFixture(t)

	_, err := f.payments.HandleNotification(context.Background(), PaymentNotification{OrderCode: "ORD-NOPE", Success: true})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = f.payments.HandleNotification(context.Background(), PaymentNotification{OrderCode: "  ", Success: true})
	assert.True(t, errors.Is(err, ErrValidation))
}
