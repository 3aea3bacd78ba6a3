package handler

import (
	"net/http"
	"strconv"
	"time"

	"bookstore/internal/config"
	"bookstore/internal/middleware"
	"bookstore/internal/repository"
	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /admin/orders スタッフ・管理者向け
type AdminOrderHandler struct {
	uc       *usecase.AdminOrderUsecase
	refundUC *usecase.RefundUsecase
}

func NewAdminOrderHandler(uc *usecase.AdminOrderUsecase, refundUC *usecase.RefundUsecase) *AdminOrderHandler {
	return &AdminOrderHandler{uc: uc, refundUC: refundUC}
}

type OrderStatusUpdateRequest struct {
	Status string `json:"status"`
	// 画面に出ていたステータス（任意・照合のみ）
	CurrentStatus string `json:"current_status"`
	Reason        string `json:"reason"`
}

func (h *AdminOrderHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	admin := e.Group("/admin/orders")
	admin.Use(middleware.AuthJWT(cfg))
	admin.Use(middleware.TokenVersionGuard(userRepo))
	admin.Use(middleware.StaffRoleGuard())

	admin.GET("", h.list)
	admin.GET("/:id", h.detail)
	admin.PUT("/:id/status", h.updateStatus)
	admin.GET("/:id/refunds", h.listRefunds)
}

func (h *AdminOrderHandler) list(c echo.Context) error {
	page, limit, ok := parsePaging(c, 50)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid paging"})
	}

	status := c.QueryParam("status")

	var customerID *int64
	if v := c.QueryParam("customer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid customer_id"})
		}
		customerID = &id
	}

	var fromPtr *time.Time
	if v := c.QueryParam("from"); v != "" {
		tm, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from"})
		}
		fromPtr = &tm
	}

	var toPtr *time.Time
	if v := c.QueryParam("to"); v != "" {
		tm, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to"})
		}
		toPtr = &tm
	}

	out, err := h.uc.List(c.Request().Context(), repository.AdminOrderListFilter{
		Page:       page,
		Limit:      limit,
		Status:     status,
		CustomerID: customerID,
		From:       fromPtr,
		To:         toPtr,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) detail(c echo.Context) error {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.Get(c.Request().Context(), orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) updateStatus(c echo.Context) error {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req OrderStatusUpdateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	// 操作したスタッフID（監査ログ用）
	actorID, ok := getUserIDFromContext(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
	}

	out, err := h.uc.UpdateStatus(
		c.Request().Context(),
		actorID,
		orderID,
		usecase.AdminUpdateOrderStatusInput{
			Status:        req.Status,
			CurrentStatus: req.CurrentStatus,
			Reason:        req.Reason,
		},
	)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *AdminOrderHandler) listRefunds(c echo.Context) error {
	orderID, ok := parseIDParam(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.refundUC.ListForOrderAdmin(c.Request().Context(), orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
