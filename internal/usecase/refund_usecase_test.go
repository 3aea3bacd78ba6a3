package usecase

import (
	"context"
	"errors"
	"testing"

	"bookstore/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) firstItemID(t *testing.T, orderID int64) int64 {
	t.Helper()
	items := f.store.OrderItems(orderID)
	require.NotEmpty(t, items)
	return items[0].ID
}

func (f *fixture) requestPartial(t *testing.T, orderID int64, qty int64) RefundOutput {
	t.Helper()
	out, err := f.refunds.RequestRefund(context.Background(), f.customerID, RequestRefundInput{
		OrderID: orderID,
		Type:    model.RefundTypePartial,
		Items:   []RefundItemInput{{OrderItemID: f.firstItemID(t, orderID), Quantity: qty}},
		Reason:  "cover damaged",
	})
	require.NoError(t, err)
	return out
}

// 1冊だけ部分返金：在庫8・販売数2・ポイントf(100)控除
func TestRefund_PartialScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeDelivered(t, 3)
	require.Equal(t, int64(30), f.pointsOf(f.customerID))

	req := f.requestPartial(t, o.ID, 1)
	assert.Equal(t, model.RefundStatusPending, req.Status)
	assert.True(t, dec("100").Equal(req.TotalRefundAmount))
	require.Len(t, req.Items, 1)
	assert.Equal(t, int64(1), req.Items[0].Quantity)
	assert.Equal(t, model.OrderStatusRefundRequested, f.store.Order(o.ID).Status)

	approved, err := f.refunds.Approve(ctx, f.adminID, req.ID, "photos look fine")
	require.NoError(t, err)
	assert.Equal(t, model.RefundStatusApproved, approved.Status)
	require.NotNil(t, approved.AdminID)
	assert.Equal(t, f.adminID, *approved.AdminID)
	assert.Equal(t, model.OrderStatusAwaitingGoodsReturn, f.store.Order(o.ID).Status)
	assert.Equal(t, int64(7), f.store.Book(f.bookID).StockQuantity, "approval does not touch inventory")

	f.move(t, o.ID, model.OrderStatusGoodsReceivedFromCustomer, model.OrderStatusGoodsReturnedToWarehouse)
	book := f.store.Book(f.bookID)
	assert.Equal(t, int64(8), book.StockQuantity)
	assert.Equal(t, int64(2), book.SoldCount)

	settled, err := f.refunds.Settle(ctx, f.adminID, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RefundStatusCompleted, settled.Status)
	assert.NotNil(t, settled.CompletedAt)

	order := f.store.Order(o.ID)
	assert.Equal(t, model.OrderStatusPartiallyRefunded, order.Status)
	assert.True(t, dec("100").Equal(order.RefundedAmount))
	assert.Equal(t, int64(20), f.pointsOf(f.customerID))
	assert.Equal(t, int64(20), sumPoints(f.store.PointEntries(o.ID)))

	items := f.store.OrderItems(o.ID)
	assert.Equal(t, int64(1), items[0].RefundedQuantity)
	assert.Equal(t, int64(1), items[0].ReturnedQuantity)
}

// 2回目の部分返金は前回分を二重に入庫しない
func TestRefund_SecondPartialRestocksOnlyItsOwnItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeDelivered(t, 3)

	first := f.requestPartial(t, o.ID, 1)
	_, err := f.refunds.Approve(ctx, f.adminID, first.ID, "")
	require.NoError(t, err)
	f.move(t, o.ID, model.OrderStatusGoodsReturnedToWarehouse)
	_, err = f.refunds.Settle(ctx, f.adminID, first.ID)
	require.NoError(t, err)
	require.Equal(t, int64(8), f.store.Book(f.bookID).StockQuantity)

	second := f.requestPartial(t, o.ID, 2)
	assert.True(t, dec("200").Equal(second.TotalRefundAmount))
	_, err = f.refunds.Approve(ctx, f.adminID, second.ID, "")
	require.NoError(t, err)
	f.move(t, o.ID, model.OrderStatusGoodsReturnedToWarehouse)

	book := f.store.Book(f.bookID)
	assert.Equal(t, int64(10), book.StockQuantity)
	assert.Equal(t, int64(0), book.SoldCount)

	_, err = f.refunds.Settle(ctx, f.adminID, second.ID)
	require.NoError(t, err)

	order := f.store.Order(o.ID)
	assert.Equal(t, model.OrderStatusRefunded, order.Status)
	assert.True(t, dec("300").Equal(order.RefundedAmount))
	assert.Equal(t, int64(0), f.pointsOf(f.customerID))
}

func TestRefund_SettleBeforeGoodsReturnIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeDelivered(t, 3)
	req := f.requestPartial(t, o.ID, 1)

	_, err := f.refunds.Settle(ctx, f.adminID, req.ID)
	assert.True(t, errors.Is(err, ErrInvalidState), "pending request cannot settle")

	_, err = f.refunds.Approve(ctx, f.adminID, req.ID, "")
	require.NoError(t, err)

	_, err = f.refunds.Settle(ctx, f.adminID, req.ID)
	assert.True(t, errors.Is(err, ErrInvalidState), "goods not back yet")
	assert.Equal(t, model.RefundStatusApproved, f.store.RefundRequest(req.ID).Status)
	assert.Equal(t, model.OrderStatusAwaitingGoodsReturn, f.store.Order(o.ID).Status)
}

func TestRefund_ActiveRequestBlocksAnother(t *testing.T) {
	f := newFixture(t)
	o := f.placeDelivered(t, 3)
	f.requestPartial(t, o.ID, 1)

	_, err := f.refunds.RequestRefund(context.Background(), f.customerID, RequestRefundInput{
		OrderID: o.ID, Type: model.RefundTypeFull, Reason: "changed mind",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrActiveRefundExists))
}

func TestRefund_RejectReturnsOrderToDelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeDelivered(t, 3)
	req := f.requestPartial(t, o.ID, 1)

	_, err := f.refunds.Reject(ctx, f.adminID, req.ID, model.RefundRejectOther, "")
	assert.True(t, errors.Is(err, ErrValidation), "OTHER needs a note")

	_, err = f.refunds.Reject(ctx, f.adminID, req.ID, "BECAUSE", "")
	assert.True(t, errors.Is(err, ErrValidation))

	rejected, err := f.refunds.Reject(ctx, f.adminID, req.ID, model.RefundRejectOutsideReturnWindow, "")
	require.NoError(t, err)
	assert.Equal(t, model.RefundStatusRejected, rejected.Status)
	assert.Equal(t, model.RefundRejectOutsideReturnWindow, rejected.RejectReasonCode)

	assert.Equal(t, model.OrderStatusDelivered, f.store.Order(o.ID).Status)
	assert.Equal(t, int64(3), f.store.Book(f.bookID).SoldCount, "delivery side effects are not repeated")
	assert.Equal(t, int64(30), f.pointsOf(f.customerID))

	// 却下後は新しい申請ができる
	again := f.requestPartial(t, o.ID, 1)
	assert.Equal(t, model.RefundStatusPending, again.Status)
}

func TestRefund_RequestValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeDelivered(t, 3)
	itemID := f.firstItemID(t, o.ID)

	cases := []struct {
		name       string
		customerID int64
		in         RequestRefundInput
		wantKind   error
	}{
		{
			name:       "unknown type",
			customerID: f.customerID,
			in:         RequestRefundInput{OrderID: o.ID, Type: "SOME", Reason: "x"},
			wantKind:   ErrValidation,
		},
		{
			name:       "partial without items",
			customerID: f.customerID,
			in:         RequestRefundInput{OrderID: o.ID, Type: model.RefundTypePartial, Reason: "x"},
			wantKind:   ErrValidation,
		},
		{
			name:       "missing reason",
			customerID: f.customerID,
			in:         RequestRefundInput{OrderID: o.ID, Type: model.RefundTypeFull, Reason: "  "},
			wantKind:   ErrValidation,
		},
		{
			name:       "quantity above remaining",
			customerID: f.customerID,
			in: RequestRefundInput{OrderID: o.ID, Type: model.RefundTypePartial, Reason: "x",
				Items: []RefundItemInput{{OrderItemID: itemID, Quantity: 4}}},
			wantKind: ErrValidation,
		},
		{
			name:       "zero quantity",
			customerID: f.customerID,
			in: RequestRefundInput{OrderID: o.ID, Type: model.RefundTypePartial, Reason: "x",
				Items: []RefundItemInput{{OrderItemID: itemID, Quantity: 0}}},
			wantKind: ErrValidation,
		},
		{
			name:       "item listed twice",
			customerID: f.customerID,
			in: RequestRefundInput{OrderID: o.ID, Type: model.RefundTypePartial, Reason: "x",
				Items: []RefundItemInput{{OrderItemID: itemID, Quantity: 1}, {OrderItemID: itemID, Quantity: 1}}},
			wantKind: ErrValidation,
		},
		{
			name:       "item from another order",
			customerID: f.customerID,
			in: RequestRefundInput{OrderID: o.ID, Type: model.RefundTypePartial, Reason: "x",
				Items: []RefundItemInput{{OrderItemID: 99999, Quantity: 1}}},
			wantKind: ErrValidation,
		},
		{
			name:       "evidence must be http",
			customerID: f.customerID,
			in: RequestRefundInput{OrderID: o.ID, Type: model.RefundTypeFull, Reason: "x",
				EvidenceURLs: []string{"javascript:alert(1)"}},
			wantKind: ErrValidation,
		},
		{
			name:       "someone else's order",
			customerID: f.staffID,
			in:         RequestRefundInput{OrderID: o.ID, Type: model.RefundTypeFull, Reason: "x"},
			wantKind:   ErrNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.refunds.RequestRefund(ctx, tc.customerID, tc.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.wantKind), "got %v", err)
		})
	}

	assert.Equal(t, model.OrderStatusDelivered, f.store.Order(o.ID).Status)
}

func TestRefund_OrderNotDelivered(t *testing.T) {
	f := newFixture(t)
	o := f.placePending(t, 1)

	_, err := f.refunds.RequestRefund(context.Background(), f.customerID, RequestRefundInput{
		OrderID: o.ID, Type: model.RefundTypeFull, Reason: "late",
	})
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestRefund_EvidenceAndQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeDelivered(t, 2)

	req, err := f.refunds.RequestRefund(ctx, f.customerID, RequestRefundInput{
		OrderID:      o.ID,
		Type:         model.RefundTypeFull,
		Reason:       "pages missing",
		EvidenceURLs: []string{"https://img.example.com/1.jpg", " https://img.example.com/2.jpg "},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example.com/1.jpg", "https://img.example.com/2.jpg"}, req.EvidenceURLs)

	list, err := f.refunds.ListForOrder(ctx, f.customerID, o.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, req.ID, list[0].ID)

	_, err = f.refunds.ListForOrder(ctx, f.staffID, o.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	adminList, err := f.refunds.ListForOrderAdmin(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, adminList, 1)

	got, err := f.refunds.Get(ctx, 0, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RefundTypeFull, got.Type)

	_, err = f.refunds.Get(ctx, f.staffID, req.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRefund_ReasonAndNotesKeepPlainSymbols(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeDelivered(t, 1)

	req, err := f.refunds.RequestRefund(ctx, f.customerID, RequestRefundInput{
		OrderID: o.ID,
		Type:    model.RefundTypeFull,
		Reason:  "pages 10 < 20 missing & torn <script>x()</script>",
	})
	require.NoError(t, err)
	assert.Equal(t, "pages 10 < 20 missing & torn", f.store.RefundRequest(req.ID).Reason)

	_, err = f.refunds.Approve(ctx, f.adminID, req.ID, "customer's photos & receipt ok")
	require.NoError(t, err)
	assert.Equal(t, "customer's photos & receipt ok", f.store.RefundRequest(req.ID).AdminNotes)
}
