package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"bookstore/internal/config"
	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

const (
	HeaderPaymentSignature = "X-Payment-Signature"
	headerStripeSignature  = "Stripe-Signature"
	maxCallbackBodyBytes   = 64 << 10

	stripeEventPaymentSucceeded = "payment_intent.succeeded"
	stripeEventPaymentFailed    = "payment_intent.payment_failed"
	stripeMetadataOrderCode     = "order_code"
)

// 決済ゲートウェイからのコールバック（認証はJWTではなく署名）
type PaymentHandler struct {
	uc            *usecase.PaymentUsecase
	notifySecret  []byte
	webhookSecret string
}

func NewPaymentHandler(uc *usecase.PaymentUsecase, cfg config.Config) *PaymentHandler {
	return &PaymentHandler{
		uc:            uc,
		notifySecret:  []byte(cfg.PaymentNotifySecret),
		webhookSecret: cfg.StripeWebhookSecret,
	}
}

func (h *PaymentHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/payments/notify", h.notify)
	e.POST("/payments/stripe/webhook", h.stripeWebhook)
}

func readCallbackBody(c echo.Context) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxCallbackBodyBytes))
	if err != nil || len(body) == 0 {
		return nil, false
	}
	return body, true
}

// 署名 = hex(HMAC-SHA256(secret, body))
func (h *PaymentHandler) validSignature(body []byte, signature string) bool {
	if len(h.notifySecret) == 0 {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.notifySecret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func (h *PaymentHandler) notify(c echo.Context) error {
	body, ok := readCallbackBody(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if !h.validSignature(body, c.Request().Header.Get(HeaderPaymentSignature)) {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid signature"})
	}

	var n usecase.PaymentNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.HandleNotification(c.Request().Context(), n)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) stripeWebhook(c echo.Context) error {
	body, ok := readCallbackBody(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if h.webhookSecret == "" {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid signature"})
	}

	event, err := webhook.ConstructEventWithOptions(body, c.Request().Header.Get(headerStripeSignature), h.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid signature"})
	}

	var n usecase.PaymentNotification
	switch string(event.Type) {
	case stripeEventPaymentSucceeded:
		n.Success = true
	case stripeEventPaymentFailed:
		n.Success = false
	default:
		//対象外のイベントは受け取るだけ
		return c.JSON(http.StatusOK, SuccessResponse{Message: "ignored"})
	}

	var pi stripe.PaymentIntent
	if event.Data == nil || json.Unmarshal(event.Data.Raw, &pi) != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid payload"})
	}
	n.OrderCode = pi.Metadata[stripeMetadataOrderCode]
	if n.OrderCode == "" {
		return c.JSON(http.StatusOK, SuccessResponse{Message: "ignored"})
	}
	if !n.Success && pi.LastPaymentError != nil {
		n.ResponseCode = string(pi.LastPaymentError.Code)
	}

	out, err := h.uc.HandleNotification(c.Request().Context(), n)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
