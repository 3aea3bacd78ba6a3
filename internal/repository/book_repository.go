package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
)

type BookRepository interface {
	FindByID(ctx context.Context, bookID int64) (model.Book, error)
}

type FlashSaleRepository interface {
	FindOfferByID(ctx context.Context, offerID int64) (model.FlashSaleOffer, error)
	//期間中キャンペーンのofferを価格の安い順で返す
	ListOpenOffersForBook(ctx context.Context, bookID int64, now time.Time) ([]model.FlashSaleOffer, error)
}
