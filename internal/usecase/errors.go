package usecase

import (
	"errors"
	"fmt"
	"net/http"

	repo "bookstore/internal/repository"
)

// エラー種別。HTTPError.Kind に入れて errors.Is で判定する
var (
	ErrValidation              = errors.New("validation error")
	ErrNotFound                = errors.New("not found")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrForbidden               = errors.New("forbidden")
	ErrInvalidTransition       = errors.New("invalid transition")
	ErrInvalidState            = errors.New("invalid state")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrVoucherRejected         = errors.New("voucher rejected")
	ErrActiveRefundExists      = errors.New("active refund exists")
	ErrCheckoutSessionConsumed = errors.New("checkout session already consumed")
	ErrConcurrencyConflict     = errors.New("concurrency conflict")
	ErrInvariantViolation      = errors.New("invariant violation")
	ErrInternal                = errors.New("internal error")
)

// バウチャー却下理由
const (
	VoucherTooMany            = "TOO_MANY_VOUCHERS"
	VoucherNotFound           = "NOT_FOUND"
	VoucherExpired            = "EXPIRED"
	VoucherNotYetActive       = "NOT_YET_ACTIVE"
	VoucherDisabled           = "DISABLED"
	VoucherUsageExhausted     = "USAGE_EXHAUSTED"
	VoucherBelowMinimumOrder  = "BELOW_MINIMUM_ORDER"
	VoucherNotForCounterSales = "NOT_APPLICABLE_TO_COUNTER_SALE"
)

type HTTPError struct {
	Status  int
	Message string
	// 機械向けの理由コード（バウチャー却下など）
	Code string
	Kind error
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Kind
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
		Kind:    kindForStatus(status),
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func kindForStatus(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrValidation
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusInternalServerError:
		return ErrInternal
	}
	return nil
}

func statusForKind(kind error) int {
	switch kind {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrVoucherRejected:
		return http.StatusUnprocessableEntity
	case ErrInvalidTransition, ErrInvalidState, ErrInsufficientStock,
		ErrActiveRefundExists, ErrCheckoutSessionConsumed, ErrConcurrencyConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func newKindError(kind error, message string) error {
	return &HTTPError{Status: statusForKind(kind), Message: message, Kind: kind}
}

func validationError(message string) error {
	return newKindError(ErrValidation, message)
}

func voucherRejected(code string, message string) error {
	return &HTTPError{
		Status:  http.StatusUnprocessableEntity,
		Message: message,
		Code:    code,
		Kind:    ErrVoucherRejected,
	}
}

// リポジトリのエラーを usecase のエラーへ
func dbError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsHTTPError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, repo.ErrConflict):
		return newKindError(ErrConcurrencyConflict, "concurrent update, please retry")
	}
	return &HTTPError{Status: http.StatusInternalServerError, Message: "db error", Kind: fmt.Errorf("%w: %v", ErrInternal, err)}
}

// 同時更新の衝突は一度だけやり直す
func retryOnConflict(fn func() error) error {
	err := fn()
	if err != nil && (errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, repo.ErrConflict)) {
		err = fn()
	}
	return err
}
