package server

import (
	"net/http"

	"bookstore/internal/config"
	"bookstore/internal/handler"
	"bookstore/internal/repository"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Checkout     *handler.CheckoutHandler
	Orders       *handler.OrderHandler
	AdminOrders  *handler.AdminOrderHandler
	AdminRefunds *handler.AdminRefundHandler
	Inventory    *handler.InventoryHandler
	Payments     *handler.PaymentHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository, h Handlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	h.Checkout.RegisterRoutes(e, cfg, userRepo)
	h.Orders.RegisterRoutes(e, cfg, userRepo)
	h.AdminOrders.RegisterRoutes(e, cfg, userRepo)
	h.AdminRefunds.RegisterRoutes(e, cfg, userRepo)
	h.Inventory.RegisterRoutes(e, cfg, userRepo)

	//決済通知はJWTではなく署名で認証する
	h.Payments.RegisterRoutes(e)
}
