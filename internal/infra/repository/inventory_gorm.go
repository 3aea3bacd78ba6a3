package repository

import (
	"context"

	"bookstore/internal/domain/model"

	"gorm.io/gorm"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// 在庫の現在値を設定
func (r *InventoryGormRepository) SetStock(ctx context.Context, bookID int64, newStock int64) error {
	return mustAffect(r.db.WithContext(ctx).
		Model(&model.Book{}).
		Where("id = ?", bookID).
		Update("stock_quantity", newStock))
}

// 在庫が足りるときだけ減らす
func (r *InventoryGormRepository) DecreaseStockIfEnough(ctx context.Context, bookID int64, qty int64) (bool, error) {
	return affected(r.db.WithContext(ctx).
		Model(&model.Book{}).
		Where("id = ? AND stock_quantity >= ?", bookID, qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty)))
}

// 在庫戻し
func (r *InventoryGormRepository) IncreaseStock(ctx context.Context, bookID int64, qty int64) error {
	return mustAffect(r.db.WithContext(ctx).
		Model(&model.Book{}).
		Where("id = ?", bookID).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", qty)))
}

func (r *InventoryGormRepository) IncreaseSold(ctx context.Context, bookID int64, qty int64) error {
	return mustAffect(r.db.WithContext(ctx).
		Model(&model.Book{}).
		Where("id = ?", bookID).
		Update("sold_count", gorm.Expr("sold_count + ?", qty)))
}

func (r *InventoryGormRepository) DecreaseSoldIfEnough(ctx context.Context, bookID int64, qty int64) (bool, error) {
	return affected(r.db.WithContext(ctx).
		Model(&model.Book{}).
		Where("id = ? AND sold_count >= ?", bookID, qty).
		Update("sold_count", gorm.Expr("sold_count - ?", qty)))
}

func (r *InventoryGormRepository) DecreaseOfferStockIfEnough(ctx context.Context, offerID int64, qty int64) (bool, error) {
	return affected(r.db.WithContext(ctx).
		Model(&model.FlashSaleOffer{}).
		Where("id = ? AND stock_quantity >= ?", offerID, qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty)))
}

func (r *InventoryGormRepository) IncreaseOfferStock(ctx context.Context, offerID int64, qty int64) error {
	return mustAffect(r.db.WithContext(ctx).
		Model(&model.FlashSaleOffer{}).
		Where("id = ?", offerID).
		Update("stock_quantity", gorm.Expr("stock_quantity + ?", qty)))
}

func (r *InventoryGormRepository) IncreaseOfferSold(ctx context.Context, offerID int64, qty int64) error {
	return mustAffect(r.db.WithContext(ctx).
		Model(&model.FlashSaleOffer{}).
		Where("id = ?", offerID).
		Update("sold_count", gorm.Expr("sold_count + ?", qty)))
}

func (r *InventoryGormRepository) DecreaseOfferSoldIfEnough(ctx context.Context, offerID int64, qty int64) (bool, error) {
	return affected(r.db.WithContext(ctx).
		Model(&model.FlashSaleOffer{}).
		Where("id = ? AND sold_count >= ?", offerID, qty).
		Update("sold_count", gorm.Expr("sold_count - ?", qty)))
}

var activeRefundStatuses = []model.RefundStatus{model.RefundStatusPending, model.RefundStatusApproved}

// column は "book_id" か "flash_sale_offer_id"
func (r *InventoryGormRepository) inFlight(ctx context.Context, column string, id int64, statuses []model.OrderStatus) (int64, error) {
	var ordered int64
	if len(statuses) > 0 {
		err := r.db.WithContext(ctx).
			Table("order_items AS oi").
			Joins("JOIN orders o ON o.id = oi.order_id").
			Where("oi."+column+" = ? AND o.status IN ?", id, statuses).
			Select("COALESCE(SUM(oi.quantity), 0)").
			Scan(&ordered).Error
		if err != nil {
			return 0, mapDBError(err)
		}
	}

	var refunding int64
	err := r.db.WithContext(ctx).
		Table("refund_items AS ri").
		Joins("JOIN refund_requests rr ON rr.id = ri.refund_request_id").
		Where("ri."+column+" = ? AND rr.status IN ? AND ri.restocked_at IS NULL", id, activeRefundStatuses).
		Select("COALESCE(SUM(ri.quantity), 0)").
		Scan(&refunding).Error
	if err != nil {
		return 0, mapDBError(err)
	}
	return ordered + refunding, nil
}

func (r *InventoryGormRepository) InFlightForBook(ctx context.Context, bookID int64, statuses []model.OrderStatus) (int64, error) {
	return r.inFlight(ctx, "book_id", bookID, statuses)
}

func (r *InventoryGormRepository) InFlightForOffer(ctx context.Context, offerID int64, statuses []model.OrderStatus) (int64, error) {
	return r.inFlight(ctx, "flash_sale_offer_id", offerID, statuses)
}

// 調整履歴作成
func (r *InventoryGormRepository) CreateAdjustment(ctx context.Context, adj model.InventoryAdjustment) error {
	return mapDBError(r.db.WithContext(ctx).Create(&adj).Error)
}
