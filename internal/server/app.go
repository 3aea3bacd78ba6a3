package server

import (
	"time"

	"bookstore/internal/config"
	"bookstore/internal/handler"
	"bookstore/internal/platform/telemetry"
	"bookstore/internal/repository"
	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Appはストア実装に依存しない組み立て結果
type App struct {
	Echo     *echo.Echo
	Machine  *usecase.OrderStateMachine
	Checkout *usecase.CheckoutUsecase
	Refunds  *usecase.RefundUsecase
	Payments *usecase.PaymentUsecase
}

type Options struct {
	Clock   func() time.Time
	Metrics *telemetry.Metrics
}

// NewAppはusecaseとhandlerを組み立ててルートを登録する
func NewApp(cfg config.Config, tx repository.TransactionManager, userRepo repository.UserRepository, log *zap.Logger, opts Options) *App {
	if log == nil {
		log = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	ledger := usecase.NewInventoryLedger(cfg.InFlightStatuses)
	vouchers := usecase.NewVoucherCalculator(clock)
	points := usecase.NewPointLedger(cfg.PointsEarnRate, cfg.PointsAllowNegativeBalance)

	machine := usecase.NewOrderStateMachine(usecase.OrderStateMachineDeps{
		Tx:        tx,
		Inventory: ledger,
		Vouchers:  vouchers,
		Points:    points,
		Logger:    log,
		Metrics:   opts.Metrics,
		Clock:     clock,
	})
	checkoutUC := usecase.NewCheckoutUsecase(usecase.CheckoutDeps{
		Tx:       tx,
		Machine:  machine,
		Shipping: usecase.FlatShippingFee{Fee: cfg.ShippingFlatFee},
		Logger:   log,
		Metrics:  opts.Metrics,
	})
	orderUC := usecase.NewOrderUsecase(tx)
	adminOrderUC := usecase.NewAdminOrderUsecase(tx, machine)
	refundUC := usecase.NewRefundUsecase(tx, machine, points, log, opts.Metrics)
	paymentUC := usecase.NewPaymentUsecase(tx, machine, log)
	inventoryUC := usecase.NewInventoryUsecase(tx, ledger)

	e := New(log)
	RegisterRoutes(e, cfg, userRepo, Handlers{
		Checkout:     handler.NewCheckoutHandler(checkoutUC),
		Orders:       handler.NewOrderHandler(orderUC, refundUC),
		AdminOrders:  handler.NewAdminOrderHandler(adminOrderUC, refundUC),
		AdminRefunds: handler.NewAdminRefundHandler(refundUC),
		Inventory:    handler.NewInventoryHandler(inventoryUC),
		Payments:     handler.NewPaymentHandler(paymentUC, cfg),
	})

	return &App{
		Echo:     e,
		Machine:  machine,
		Checkout: checkoutUC,
		Refunds:  refundUC,
		Payments: paymentUC,
	}
}
