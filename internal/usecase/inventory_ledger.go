package usecase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
)

// 在庫台帳。手元在庫は条件付きUPDATEでだけ動かし、処理中数量は毎回集計する。
type InventoryLedger struct {
	inFlightStatuses []model.OrderStatus
}

func NewInventoryLedger(inFlightStatuses []model.OrderStatus) *InventoryLedger {
	return &InventoryLedger{inFlightStatuses: inFlightStatuses}
}

type AvailabilityOutput struct {
	BookID    int64  `json:"book_id"`
	OfferID   *int64 `json:"offer_id,omitempty"`
	OnHand    int64  `json:"on_hand"`
	InFlight  int64  `json:"in_flight"`
	Available int64  `json:"available"`
}

func newAvailability(bookID int64, offerID *int64, onHand, inFlight int64) AvailabilityOutput {
	available := onHand - inFlight
	if available < 0 {
		available = 0
	}
	return AvailabilityOutput{BookID: bookID, OfferID: offerID, OnHand: onHand, InFlight: inFlight, Available: available}
}

func (l *InventoryLedger) availableForBook(ctx context.Context, r repo.TxRepos, bookID int64) (AvailabilityOutput, error) {
	b, err := r.Books().FindByID(ctx, bookID)
	if err != nil {
		return AvailabilityOutput{}, dbError(err)
	}
	inFlight, err := r.Inventory().InFlightForBook(ctx, bookID, l.inFlightStatuses)
	if err != nil {
		return AvailabilityOutput{}, dbError(err)
	}
	return newAvailability(bookID, nil, b.StockQuantity, inFlight), nil
}

func (l *InventoryLedger) availableForOffer(ctx context.Context, r repo.TxRepos, offerID int64) (AvailabilityOutput, error) {
	o, err := r.FlashSales().FindOfferByID(ctx, offerID)
	if err != nil {
		return AvailabilityOutput{}, dbError(err)
	}
	inFlight, err := r.Inventory().InFlightForOffer(ctx, offerID, l.inFlightStatuses)
	if err != nil {
		return AvailabilityOutput{}, dbError(err)
	}
	id := o.ID
	return newAvailability(o.BookID, &id, o.StockQuantity, inFlight), nil
}

func insufficientStock(bookID int64) error {
	return &HTTPError{
		Status:  http.StatusConflict,
		Message: fmt.Sprintf("insufficient stock for book %d", bookID),
		Code:    "INSUFFICIENT_STOCK",
		Kind:    ErrInsufficientStock,
	}
}

// 1明細ぶんの在庫を確保（offer付きならofferと書籍の両方）
func (l *InventoryLedger) reserveLine(ctx context.Context, r repo.TxRepos, bookID int64, offerID *int64, qty int64) error {
	if offerID != nil {
		ok, err := r.Inventory().DecreaseOfferStockIfEnough(ctx, *offerID, qty)
		if err != nil {
			return dbError(err)
		}
		if !ok {
			return insufficientStock(bookID)
		}
	}
	ok, err := r.Inventory().DecreaseStockIfEnough(ctx, bookID, qty)
	if err != nil {
		return dbError(err)
	}
	if !ok {
		return insufficientStock(bookID)
	}
	return nil
}

func (l *InventoryLedger) reserve(ctx context.Context, r repo.TxRepos, items []model.OrderItem) error {
	for _, it := range items {
		if err := l.reserveLine(ctx, r, it.BookID, it.FlashSaleOfferID, it.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (l *InventoryLedger) restock(ctx context.Context, r repo.TxRepos, bookID int64, offerID *int64, qty int64) error {
	if offerID != nil {
		if err := r.Inventory().IncreaseOfferStock(ctx, *offerID, qty); err != nil {
			return dbError(err)
		}
	}
	if err := r.Inventory().IncreaseStock(ctx, bookID, qty); err != nil {
		return dbError(err)
	}
	return nil
}

// 作成時に確保した在庫を戻す。販売数には触れない
func (l *InventoryLedger) release(ctx context.Context, r repo.TxRepos, items []model.OrderItem) error {
	for _, it := range items {
		if err := l.restock(ctx, r, it.BookID, it.FlashSaleOfferID, it.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// 配達完了で販売数を加算
func (l *InventoryLedger) recordSold(ctx context.Context, r repo.TxRepos, items []model.OrderItem) error {
	for _, it := range items {
		if err := r.Inventory().IncreaseSold(ctx, it.BookID, it.Quantity); err != nil {
			return dbError(err)
		}
		if it.FlashSaleOfferID != nil {
			if err := r.Inventory().IncreaseOfferSold(ctx, *it.FlashSaleOfferID, it.Quantity); err != nil {
				return dbError(err)
			}
		}
	}
	return nil
}

func soldBelowZero(what string, id int64) error {
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Message: "internal error",
		Kind:    fmt.Errorf("%w: sold count of %s %d would go below zero", ErrInvariantViolation, what, id),
	}
}

// 返品入庫。承認済み・完了済みの申請のうち未入庫の明細だけを戻す。
// 販売数の減算は配達完了済みの注文だけ
func (l *InventoryLedger) restockReturned(ctx context.Context, r repo.TxRepos, o model.Order, now time.Time) ([]model.RefundItem, error) {
	items, err := r.Refunds().ListUnrestockedItemsByOrder(ctx, o.ID, []model.RefundStatus{
		model.RefundStatusApproved,
		model.RefundStatusCompleted,
	})
	if err != nil {
		return nil, dbError(err)
	}

	orderItems, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return nil, dbError(err)
	}
	byID := make(map[int64]model.OrderItem, len(orderItems))
	for _, it := range orderItems {
		byID[it.ID] = it
	}

	for _, ri := range items {
		if err := l.restock(ctx, r, ri.BookID, ri.FlashSaleOfferID, ri.Quantity); err != nil {
			return nil, err
		}

		if o.DeliveredAt != nil {
			ok, err := r.Inventory().DecreaseSoldIfEnough(ctx, ri.BookID, ri.Quantity)
			if err != nil {
				return nil, dbError(err)
			}
			if !ok {
				return nil, soldBelowZero("book", ri.BookID)
			}
			if ri.FlashSaleOfferID != nil {
				ok, err := r.Inventory().DecreaseOfferSoldIfEnough(ctx, *ri.FlashSaleOfferID, ri.Quantity)
				if err != nil {
					return nil, dbError(err)
				}
				if !ok {
					return nil, soldBelowZero("offer", *ri.FlashSaleOfferID)
				}
			}
		}

		if err := r.Refunds().MarkItemRestocked(ctx, ri.ID, now); err != nil {
			return nil, dbError(err)
		}

		oi, ok := byID[ri.OrderItemID]
		if !ok {
			return nil, &HTTPError{Status: http.StatusInternalServerError, Message: "internal error",
				Kind: fmt.Errorf("%w: refund item %d points at missing order item %d", ErrInvariantViolation, ri.ID, ri.OrderItemID)}
		}
		oi.ReturnedQuantity += ri.Quantity
		if oi.ReturnedQuantity > oi.Quantity {
			return nil, &HTTPError{Status: http.StatusInternalServerError, Message: "internal error",
				Kind: fmt.Errorf("%w: order item %d returned more than ordered", ErrInvariantViolation, oi.ID)}
		}
		if err := r.OrderItems().Save(ctx, oi); err != nil {
			return nil, dbError(err)
		}
		byID[oi.ID] = oi
	}
	return items, nil
}
