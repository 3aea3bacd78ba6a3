package memory

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
)

type inventoryRepo struct {
	t   *tables
	now func() time.Time
}

func (r *inventoryRepo) updateBook(bookID int64, fn func(b *model.Book) bool) (bool, error) {
	b, ok := r.t.books[bookID]
	if !ok {
		return false, repo.ErrNotFound
	}
	if !fn(&b) {
		return false, nil
	}
	b.UpdatedAt = r.now()
	r.t.books[bookID] = b
	return true, nil
}

func (r *inventoryRepo) updateOffer(offerID int64, fn func(o *model.FlashSaleOffer) bool) (bool, error) {
	o, ok := r.t.offers[offerID]
	if !ok {
		return false, repo.ErrNotFound
	}
	if !fn(&o) {
		return false, nil
	}
	o.UpdatedAt = r.now()
	r.t.offers[offerID] = o
	return true, nil
}

func (r *inventoryRepo) SetStock(ctx context.Context, bookID int64, newStock int64) error {
	_, err := r.updateBook(bookID, func(b *model.Book) bool {
		b.StockQuantity = newStock
		return true
	})
	return err
}

func (r *inventoryRepo) DecreaseStockIfEnough(ctx context.Context, bookID int64, qty int64) (bool, error) {
	ok, err := r.updateBook(bookID, func(b *model.Book) bool {
		if b.StockQuantity < qty {
			return false
		}
		b.StockQuantity -= qty
		return true
	})
	if err == repo.ErrNotFound {
		return false, nil
	}
	return ok, err
}

func (r *inventoryRepo) IncreaseStock(ctx context.Context, bookID int64, qty int64) error {
	_, err := r.updateBook(bookID, func(b *model.Book) bool {
		b.StockQuantity += qty
		return true
	})
	return err
}

func (r *inventoryRepo) IncreaseSold(ctx context.Context, bookID int64, qty int64) error {
	_, err := r.updateBook(bookID, func(b *model.Book) bool {
		b.SoldCount += qty
		return true
	})
	return err
}

func (r *inventoryRepo) DecreaseSoldIfEnough(ctx context.Context, bookID int64, qty int64) (bool, error) {
	return r.updateBook(bookID, func(b *model.Book) bool {
		if b.SoldCount < qty {
			return false
		}
		b.SoldCount -= qty
		return true
	})
}

func (r *inventoryRepo) DecreaseOfferStockIfEnough(ctx context.Context, offerID int64, qty int64) (bool, error) {
	ok, err := r.updateOffer(offerID, func(o *model.FlashSaleOffer) bool {
		if o.StockQuantity < qty {
			return false
		}
		o.StockQuantity -= qty
		return true
	})
	if err == repo.ErrNotFound {
		return false, nil
	}
	return ok, err
}

func (r *inventoryRepo) IncreaseOfferStock(ctx context.Context, offerID int64, qty int64) error {
	_, err := r.updateOffer(offerID, func(o *model.FlashSaleOffer) bool {
		o.StockQuantity += qty
		return true
	})
	return err
}

func (r *inventoryRepo) IncreaseOfferSold(ctx context.Context, offerID int64, qty int64) error {
	_, err := r.updateOffer(offerID, func(o *model.FlashSaleOffer) bool {
		o.SoldCount += qty
		return true
	})
	return err
}

func (r *inventoryRepo) DecreaseOfferSoldIfEnough(ctx context.Context, offerID int64, qty int64) (bool, error) {
	return r.updateOffer(offerID, func(o *model.FlashSaleOffer) bool {
		if o.SoldCount < qty {
			return false
		}
		o.SoldCount -= qty
		return true
	})
}

func (r *inventoryRepo) inFlight(statuses []model.OrderStatus, match func(bookID int64, offerID *int64) bool) int64 {
	inStatus := map[model.OrderStatus]bool{}
	for _, s := range statuses {
		inStatus[s] = true
	}

	var total int64
	for _, it := range r.t.orderItems {
		o, ok := r.t.orders[it.OrderID]
		if !ok || !inStatus[o.Status] {
			continue
		}
		if match(it.BookID, it.FlashSaleOfferID) {
			total += it.Quantity
		}
	}
	for _, it := range r.t.refundItems {
		req, ok := r.t.refunds[it.RefundRequestID]
		if !ok || !req.Status.IsActive() || it.RestockedAt != nil {
			continue
		}
		if match(it.BookID, it.FlashSaleOfferID) {
			total += it.Quantity
		}
	}
	return total
}

func (r *inventoryRepo) InFlightForBook(ctx context.Context, bookID int64, statuses []model.OrderStatus) (int64, error) {
	return r.inFlight(statuses, func(b int64, _ *int64) bool { return b == bookID }), nil
}

func (r *inventoryRepo) InFlightForOffer(ctx context.Context, offerID int64, statuses []model.OrderStatus) (int64, error) {
	return r.inFlight(statuses, func(_ int64, o *int64) bool { return o != nil && *o == offerID }), nil
}

func (r *inventoryRepo) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	adj.ID = r.t.nextID()
	if adj.CreatedAt.IsZero() {
		adj.CreatedAt = r.now()
	}
	r.t.adjustments[adj.ID] = adj
	return nil
}
