package usecase

import (
	"context"
	"testing"
	"time"

	"bookstore/internal/config"
	"bookstore/internal/domain/model"
	"bookstore/internal/infra/memory"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// メモリストアの上に組み立てた一式
type fixture struct {
	store     *memory.Store
	machine   *OrderStateMachine
	checkout  *CheckoutUsecase
	refunds   *RefundUsecase
	payments  *PaymentUsecase
	admin     *AdminOrderUsecase
	orders    *OrderUsecase
	inventory *InventoryUsecase

	customerID int64
	staffID    int64
	adminID    int64
	bookID     int64
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	earnRate    decimal.Decimal
	shippingFee decimal.Decimal
}

func withShippingFee(fee string) fixtureOption {
	return func(c *fixtureConfig) { c.shippingFee = dec(fee) }
}

// 付与率0.1、書籍P（単価100・在庫10）
func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	fc := fixtureConfig{earnRate: dec("0.1"), shippingFee: dec("30")}
	for _, o := range opts {
		o(&fc)
	}

	clock := func() time.Time { return testNow }
	st := memory.NewStore()
	st.SetClock(clock)

	ledger := NewInventoryLedger(config.DefaultInFlightStatuses)
	vouchers := NewVoucherCalculator(clock)
	points := NewPointLedger(fc.earnRate, false)
	machine := NewOrderStateMachine(OrderStateMachineDeps{
		Tx:        st,
		Inventory: ledger,
		Vouchers:  vouchers,
		Points:    points,
		Logger:    zap.NewNop(),
		Clock:     clock,
	})

	f := &fixture{
		store:   st,
		machine: machine,
		checkout: NewCheckoutUsecase(CheckoutDeps{
			Tx:       st,
			Machine:  machine,
			Shipping: FlatShippingFee{Fee: fc.shippingFee},
		}),
		refunds:   NewRefundUsecase(st, machine, points, zap.NewNop(), nil),
		payments:  NewPaymentUsecase(st, machine, zap.NewNop()),
		admin:     NewAdminOrderUsecase(st, machine),
		orders:    NewOrderUsecase(st),
		inventory: NewInventoryUsecase(st, ledger),
	}

	f.customerID = st.PutUser(model.User{Email: "reader@example.com", Role: model.RoleCustomer, IsActive: true})
	f.staffID = st.PutUser(model.User{Email: "staff@example.com", Role: model.RoleStaff, IsActive: true})
	f.adminID = st.PutUser(model.User{Email: "admin@example.com", Role: model.RoleAdmin, IsActive: true})
	f.bookID = st.PutBook(model.Book{Title: "Go in Practice", Price: dec("100"), StockQuantity: 10, IsActive: true})
	return f
}

func (f *fixture) counterInput(payment model.PaymentMethod, qty int64) CheckoutInput {
	staff := f.staffID
	return CheckoutInput{
		SessionID:     uuid.NewString(),
		OrderType:     model.OrderTypeCounter,
		PaymentMethod: payment,
		StaffID:       &staff,
		Lines:         []CheckoutLineInput{{BookID: f.bookID, Quantity: qty}},
	}
}

func (f *fixture) onlineInput(qty int64, codes ...string) CheckoutInput {
	return CheckoutInput{
		SessionID:     uuid.NewString(),
		OrderType:     model.OrderTypeOnline,
		PaymentMethod: model.PaymentMethodCOD,
		Address: ShippingAddress{
			RecipientName: "Aoi Tanaka",
			Phone:         "090-0000-0000",
			AddressLine:   "1-2-3 Shibuya, Tokyo",
		},
		Lines:        []CheckoutLineInput{{BookID: f.bookID, Quantity: qty}},
		VoucherCodes: codes,
	}
}

// 店頭・オンライン決済（PENDINGのまま、送料0）
func (f *fixture) placePending(t *testing.T, qty int64) OrderOutput {
	t.Helper()
	out, err := f.checkout.PlaceOrder(context.Background(), f.customerID, f.counterInput(model.PaymentMethodOnline, qty))
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusPending, out.Order.Status)
	return out.Order
}

func (f *fixture) move(t *testing.T, orderID int64, statuses ...model.OrderStatus) OrderOutput {
	t.Helper()
	var out OrderOutput
	for _, s := range statuses {
		var err error
		out, err = f.machine.Transition(context.Background(), TransitionInput{OrderID: orderID, Status: s, ActorID: f.staffID})
		require.NoError(t, err, "transition to %s", s)
		require.Equal(t, s, out.Status)
	}
	return out
}

func (f *fixture) placeDelivered(t *testing.T, qty int64) OrderOutput {
	t.Helper()
	o := f.placePending(t, qty)
	return f.move(t, o.ID, model.OrderStatusConfirmed, model.OrderStatusShipped, model.OrderStatusDelivered)
}

func (f *fixture) pointsOf(userID int64) int64 {
	return f.store.User(userID).LoyaltyPoints
}

func sumPoints(entries []model.PointLedgerEntry) int64 {
	var n int64
	for _, e := range entries {
		n += e.Points
	}
	return n
}
