package usecase

import (
	"context"
	"errors"
	"testing"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminOrder_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	o := f.placePending(t, 1)
	ctx := context.Background()

	out, err := f.admin.UpdateStatus(ctx, f.staffID, o.ID, AdminUpdateOrderStatusInput{Status: " confirmed ", CurrentStatus: "pending"})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, out.Status)

	_, err = f.admin.UpdateStatus(ctx, f.staffID, o.ID, AdminUpdateOrderStatusInput{Status: "LOST"})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.admin.UpdateStatus(ctx, f.staffID, o.ID, AdminUpdateOrderStatusInput{Status: "SHIPPED", CurrentStatus: "SOMEWHERE"})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = f.admin.UpdateStatus(ctx, f.staffID, o.ID, AdminUpdateOrderStatusInput{Status: "REFUNDED"})
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, model.OrderStatusConfirmed, f.store.Order(o.ID).Status)
}

func TestAdminOrder_ListAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.placePending(t, 1)
	f.placeDelivered(t, 1)
	other := f.store.PutUser(model.User{Email: "other@example.com", Role: model.RoleCustomer, IsActive: true})
	_, err := f.checkout.PlaceOrder(ctx, other, f.counterInput(model.PaymentMethodOnline, 1))
	require.NoError(t, err)

	all, err := f.admin.List(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	assert.Len(t, all.Items, 3)

	delivered, err := f.admin.List(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 20, Status: "DELIVERED"})
	require.NoError(t, err)
	require.Len(t, delivered.Items, 1)
	assert.Equal(t, model.OrderStatusDelivered, delivered.Items[0].Status)

	mine, err := f.admin.List(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 20, CustomerID: &other})
	require.NoError(t, err)
	assert.Equal(t, int64(1), mine.Total)

	_, err = f.admin.List(ctx, repo.AdminOrderListFilter{Page: 0, Limit: 20})
	assert.True(t, errors.Is(err, ErrValidation))
	_, err = f.admin.List(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 101})
	assert.True(t, errors.Is(err, ErrValidation))
	_, err = f.admin.List(ctx, repo.AdminOrderListFilter{Page: 1, Limit: 20, Status: "LOST"})
	assert.True(t, errors.Is(err, ErrValidation))

	got, err := f.admin.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Code, got.Code)
	require.Len(t, got.Items, 1)
	assert.True(t, dec("100").Equal(got.Items[0].LineTotal))

	_, err = f.admin.Get(ctx, 99999)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestOrder_CustomerViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placePending(t, 2)
	f.placePending(t, 1)

	list, err := f.orders.ListMyOrders(ctx, f.customerID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Total)
	assert.Len(t, list.Items, 1)

	detail, err := f.orders.GetMyOrderDetail(ctx, f.customerID, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.Code, detail.Code)
	assert.Equal(t, int64(2), detail.Items[0].Quantity)

	// 他人の注文は見えない
	_, err = f.orders.GetMyOrderDetail(ctx, f.staffID, o.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = f.orders.ListMyOrders(ctx, 0, 1, 10)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	_, err = f.orders.ListMyOrders(ctx, f.customerID, 1, 0)
	assert.True(t, errors.Is(err, ErrValidation))
}
