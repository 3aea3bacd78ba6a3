package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"

	"gorm.io/gorm"
)

type BookGormRepository struct {
	db *gorm.DB
}

func NewBookGormRepository(db *gorm.DB) *BookGormRepository {
	return &BookGormRepository{db: db}
}

func (r *BookGormRepository) FindByID(ctx context.Context, bookID int64) (model.Book, error) {
	var b model.Book
	if err := r.db.WithContext(ctx).Where("id = ?", bookID).First(&b).Error; err != nil {
		return model.Book{}, mapDBError(err)
	}
	return b, nil
}

type FlashSaleGormRepository struct {
	db *gorm.DB
}

func NewFlashSaleGormRepository(db *gorm.DB) *FlashSaleGormRepository {
	return &FlashSaleGormRepository{db: db}
}

func (r *FlashSaleGormRepository) FindOfferByID(ctx context.Context, offerID int64) (model.FlashSaleOffer, error) {
	var o model.FlashSaleOffer
	if err := r.db.WithContext(ctx).Where("id = ?", offerID).First(&o).Error; err != nil {
		return model.FlashSaleOffer{}, mapDBError(err)
	}
	return o, nil
}

func (r *FlashSaleGormRepository) ListOpenOffersForBook(ctx context.Context, bookID int64, now time.Time) ([]model.FlashSaleOffer, error) {
	var offers []model.FlashSaleOffer
	err := r.db.WithContext(ctx).
		Model(&model.FlashSaleOffer{}).
		Joins("JOIN flash_sale_campaigns c ON c.id = flash_sale_offers.campaign_id").
		Where("flash_sale_offers.book_id = ?", bookID).
		Where("c.is_active = ? AND c.starts_at <= ? AND c.ends_at > ?", true, now, now).
		Order("flash_sale_offers.flash_price ASC, flash_sale_offers.id ASC").
		Find(&offers).Error
	if err != nil {
		return nil, mapDBError(err)
	}
	return offers, nil
}
