package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bookstore/internal/config"
	"bookstore/internal/domain/model"
	"bookstore/internal/platform/logger"
	repo "bookstore/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// 最初のfailures回は処理を流した上で衝突を返す（書き込みは捨てられる）
type conflictingTx struct {
	inner    repo.TransactionManager
	failures int
	calls    int
}

func (c *conflictingTx) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	c.calls++
	if c.calls > c.failures {
		return c.inner.WithinTx(ctx, fn)
	}
	return c.inner.WithinTx(ctx, func(r repo.TxRepos) error {
		if err := fn(r); err != nil {
			return err
		}
		return fmt.Errorf("%w: deadlock detected", repo.ErrConflict)
	})
}

// fixtureと同じストアを、衝突を起こすTxManager越しに使う
func (f *fixture) withConflicts(failures int) (*conflictingTx, *OrderStateMachine, *CheckoutUsecase) {
	clock := func() time.Time { return testNow }
	tx := &conflictingTx{inner: f.store, failures: failures}
	machine := NewOrderStateMachine(OrderStateMachineDeps{
		Tx:        tx,
		Inventory: NewInventoryLedger(config.DefaultInFlightStatuses),
		Vouchers:  NewVoucherCalculator(clock),
		Points:    NewPointLedger(dec("0.1"), false),
		Logger:    zap.NewNop(),
		Clock:     clock,
	})
	checkout := NewCheckoutUsecase(CheckoutDeps{
		Tx:       tx,
		Machine:  machine,
		Shipping: FlatShippingFee{Fee: dec("30")},
	})
	return tx, machine, checkout
}

func countAudits(f *fixture, orderID int64) int {
	var n int
	for _, a := range f.store.AuditLogs() {
		if a.ResourceType == model.AuditResourceOrder && a.ResourceID == orderID {
			n++
		}
	}
	return n
}

func TestLifecycle_RetriesOnceOnConflict(t *testing.T) {
	f := newFixture(t)
	o := f.placePending(t, 3)
	f.move(t, o.ID, model.OrderStatusConfirmed, model.OrderStatusShipped)
	auditsBefore := countAudits(f, o.ID)
	eventsBefore := len(f.store.OutboxEvents())

	tx, machine, _ := f.withConflicts(1)
	out, err := machine.Transition(context.Background(), TransitionInput{
		OrderID: o.ID, Status: model.OrderStatusDelivered, ActorID: f.staffID,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, tx.calls)
	assert.Equal(t, model.OrderStatusDelivered, out.Status)

	// 失敗した1回目の副作用は残らない
	assert.Equal(t, int64(3), f.store.Book(f.bookID).SoldCount)
	assert.Equal(t, int64(30), f.pointsOf(f.customerID))
	assert.Len(t, f.store.PointEntries(o.ID), 1)
	assert.Equal(t, auditsBefore+1, countAudits(f, o.ID))
	assert.Len(t, f.store.OutboxEvents(), eventsBefore+1)
}

func TestLifecycle_SecondConflictIsReturned(t *testing.T) {
	f := newFixture(t)
	o := f.placePending(t, 1)

	tx, machine, _ := f.withConflicts(2)
	_, err := machine.Transition(context.Background(), TransitionInput{
		OrderID: o.ID, Status: model.OrderStatusConfirmed, ActorID: f.staffID,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConcurrencyConflict))
	assert.Equal(t, 2, tx.calls)
	assert.Equal(t, model.OrderStatusPending, f.store.Order(o.ID).Status)
}

func TestCheckout_PlaceOrderRetriesOnceOnConflict(t *testing.T) {
	f := newFixture(t)

	tx, _, checkout := f.withConflicts(1)
	out, err := checkout.PlaceOrder(context.Background(), f.customerID, f.counterInput(model.PaymentMethodCash, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, tx.calls)
	assert.Equal(t, model.OrderStatusConfirmed, out.Order.Status)

	assert.Len(t, f.store.Orders(), 1)
	assert.Equal(t, int64(8), f.store.Book(f.bookID).StockQuantity)
}

// 販売数が足りない返品入庫は不変条件違反で、遷移ごと巻き戻る
func TestLifecycle_SoldCountBelowZeroRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.placeDelivered(t, 3)

	req := f.requestPartial(t, o.ID, 2)
	_, err := f.refunds.Approve(ctx, f.adminID, req.ID, "")
	require.NoError(t, err)
	f.move(t, o.ID, model.OrderStatusGoodsReceivedFromCustomer)

	book := f.store.Book(f.bookID)
	book.SoldCount = 1
	f.store.PutBook(book)
	auditsBefore := countAudits(f, o.ID)

	_, err = f.machine.Transition(ctx, TransitionInput{
		OrderID: o.ID, Status: model.OrderStatusGoodsReturnedToWarehouse, ActorID: f.staffID,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvariantViolation))
	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, 500, he.Status)

	assert.Equal(t, model.OrderStatusGoodsReceivedFromCustomer, f.store.Order(o.ID).Status)
	after := f.store.Book(f.bookID)
	assert.Equal(t, int64(7), after.StockQuantity)
	assert.Equal(t, int64(1), after.SoldCount)
	assert.Equal(t, auditsBefore, countAudits(f, o.ID))

	detail, err := f.refunds.Get(ctx, f.customerID, req.ID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.Nil(t, detail.Items[0].RestockedAt)
	assert.Equal(t, int64(0), f.store.OrderItems(o.ID)[0].ReturnedQuantity)
}

// 配達完了以外は同じステータスへの遷移を受け付けない
func TestLifecycle_SameStatusIsInvalidExceptDelivered(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.placePending(t, 1)
	_, err := f.machine.Transition(ctx, TransitionInput{
		OrderID: pending.ID, Status: model.OrderStatusPending, ActorID: f.staffID,
	})
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	canceled := f.placePending(t, 1)
	f.move(t, canceled.ID, model.OrderStatusCanceled)
	eventsBefore := len(f.store.OutboxEvents())
	_, err = f.machine.Transition(ctx, TransitionInput{
		OrderID: canceled.ID, Status: model.OrderStatusCanceled, ActorID: f.staffID,
	})
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Len(t, f.store.OutboxEvents(), eventsBefore)
	// PENDINGの1冊分だけ確保されたまま
	assert.Equal(t, int64(9), f.store.Book(f.bookID).StockQuantity)
}

// 精算時の不変条件違反は申請の注文IDつきで記録され、何も書き込まれない
func TestRefund_SettleInvariantViolationLogsOrder(t *testing.T) {
	f := newFixture(t)
	o := f.placeDelivered(t, 2)
	req := f.requestPartial(t, o.ID, 1)
	_, err := f.refunds.Approve(context.Background(), f.adminID, req.ID, "")
	require.NoError(t, err)
	f.move(t, o.ID, model.OrderStatusGoodsReceivedFromCustomer, model.OrderStatusGoodsReturnedToWarehouse)

	// 明細を返金済みにしておく
	require.NoError(t, f.store.WithinTx(context.Background(), func(r repo.TxRepos) error {
		items, err := r.OrderItems().ListByOrderID(context.Background(), o.ID)
		if err != nil {
			return err
		}
		items[0].RefundedQuantity = items[0].Quantity
		return r.OrderItems().Save(context.Background(), items[0])
	}))

	core, logs := observer.New(zap.ErrorLevel)
	ctx := logger.WithLogger(context.Background(), zap.New(core))

	_, err = f.refunds.Settle(ctx, f.adminID, req.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvariantViolation))
	assert.Equal(t, model.RefundStatusApproved, f.store.RefundRequest(req.ID).Status)
	assert.Equal(t, model.OrderStatusGoodsReturnedToWarehouse, f.store.Order(o.ID).Status)

	entries := logs.FilterMessage("order_invariant_violation").All()
	require.Len(t, entries, 1)
	assert.Equal(t, o.ID, entries[0].ContextMap()["order_id"])
}

func TestRefund_DecisionAuditIsJSON(t *testing.T) {
	f := newFixture(t)
	o := f.placeDelivered(t, 1)
	req := f.requestPartial(t, o.ID, 1)
	_, err := f.refunds.Approve(context.Background(), f.adminID, req.ID, "")
	require.NoError(t, err)

	var found bool
	for _, a := range f.store.AuditLogs() {
		if a.ResourceType == model.AuditResourceRefund && a.ResourceID == req.ID {
			found = true
			assert.JSONEq(t, `{"status":"PENDING"}`, a.BeforeJSON)
			assert.JSONEq(t, `{"status":"APPROVED"}`, a.AfterJSON)
		}
	}
	assert.True(t, found)
}
