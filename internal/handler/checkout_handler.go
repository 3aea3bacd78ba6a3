package handler

import (
	"net/http"

	"bookstore/internal/config"
	"bookstore/internal/domain/model"
	"bookstore/internal/middleware"
	"bookstore/internal/repository"
	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

const HeaderCheckoutSession = "X-Checkout-Session"

type CheckoutHandler struct {
	uc *usecase.CheckoutUsecase
}

func NewCheckoutHandler(uc *usecase.CheckoutUsecase) *CheckoutHandler {
	return &CheckoutHandler{uc: uc}
}

// 住所はアドレス帳サービスで解決済みの値を受け取る
type CheckoutRequest struct {
	OrderType     string                      `json:"order_type"`
	PaymentMethod string                      `json:"payment_method"`
	CustomerID    int64                       `json:"customer_id"`
	Address       usecase.ShippingAddress     `json:"address"`
	Lines         []usecase.CheckoutLineInput `json:"lines"`
	VoucherCodes  []string                    `json:"voucher_codes"`
}

func (h *CheckoutHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/checkout")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.POST("/sessions", h.newSession)
	g.POST("/preview", h.preview)
	g.POST("/orders", h.create)
}

func (h *CheckoutHandler) newSession(c echo.Context) error {
	if _, ok := getUserIDFromContext(c); !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}
	return c.JSON(http.StatusCreated, h.uc.NewSession(c.Request().Context()))
}

// 店頭販売はスタッフが顧客IDを指定して作る。
// 失敗時は返すべきステータスとメッセージを返す
func (h *CheckoutHandler) bind(c echo.Context) (int64, usecase.CheckoutInput, int, string) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return 0, usecase.CheckoutInput{}, http.StatusUnauthorized, "unauthorized"
	}

	var req CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return 0, usecase.CheckoutInput{}, http.StatusBadRequest, "invalid body"
	}

	in := usecase.CheckoutInput{
		//二重送信防止のセッションはヘッダーから受け取る
		SessionID:     c.Request().Header.Get(HeaderCheckoutSession),
		OrderType:     model.OrderType(req.OrderType),
		PaymentMethod: model.PaymentMethod(req.PaymentMethod),
		Address:       req.Address,
		Lines:         req.Lines,
		VoucherCodes:  req.VoucherCodes,
	}

	customerID := userID
	if in.OrderType == model.OrderTypeCounter {
		role, _ := c.Get(middleware.CtxUserRoleKey).(string)
		if model.Role(role) != model.RoleStaff && model.Role(role) != model.RoleAdmin {
			return 0, usecase.CheckoutInput{}, http.StatusForbidden, "staff only"
		}
		if req.CustomerID <= 0 {
			return 0, usecase.CheckoutInput{}, http.StatusBadRequest, "customer_id required"
		}
		staffID := userID
		in.StaffID = &staffID
		customerID = req.CustomerID
	}
	return customerID, in, 0, ""
}

func (h *CheckoutHandler) preview(c echo.Context) error {
	customerID, in, status, msg := h.bind(c)
	if status != 0 {
		return c.JSON(status, ErrorResponse{Error: msg})
	}

	out, err := h.uc.PreviewOrder(c.Request().Context(), customerID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) create(c echo.Context) error {
	customerID, in, status, msg := h.bind(c)
	if status != 0 {
		return c.JSON(status, ErrorResponse{Error: msg})
	}

	out, err := h.uc.PlaceOrder(c.Request().Context(), customerID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}
