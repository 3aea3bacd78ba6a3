package memory

import (
	"context"
	"sort"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
)

type bookRepo struct {
	t *tables
}

func (r *bookRepo) FindByID(ctx context.Context, bookID int64) (model.Book, error) {
	b, ok := r.t.books[bookID]
	if !ok {
		return model.Book{}, repo.ErrNotFound
	}
	return b, nil
}

type flashSaleRepo struct {
	t *tables
}

func (r *flashSaleRepo) FindOfferByID(ctx context.Context, offerID int64) (model.FlashSaleOffer, error) {
	o, ok := r.t.offers[offerID]
	if !ok {
		return model.FlashSaleOffer{}, repo.ErrNotFound
	}
	return o, nil
}

func (r *flashSaleRepo) ListOpenOffersForBook(ctx context.Context, bookID int64, now time.Time) ([]model.FlashSaleOffer, error) {
	offers := sortedValues(r.t.offers, func(o model.FlashSaleOffer) bool {
		if o.BookID != bookID {
			return false
		}
		c, ok := r.t.campaigns[o.CampaignID]
		return ok && c.OpenAt(now)
	})
	sort.SliceStable(offers, func(i, j int) bool {
		return offers[i].FlashPrice.LessThan(offers[j].FlashPrice)
	})
	return offers, nil
}
