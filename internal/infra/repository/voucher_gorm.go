package repository

import (
	"context"

	"bookstore/internal/domain/model"

	"gorm.io/gorm"
)

type VoucherGormRepository struct {
	db *gorm.DB
}

func NewVoucherGormRepository(db *gorm.DB) *VoucherGormRepository {
	return &VoucherGormRepository{db: db}
}

func (r *VoucherGormRepository) FindByCode(ctx context.Context, code string) (model.Voucher, error) {
	var v model.Voucher
	if err := r.db.WithContext(ctx).Where("UPPER(code) = UPPER(?)", code).First(&v).Error; err != nil {
		return model.Voucher{}, mapDBError(err)
	}
	return v, nil
}

func (r *VoucherGormRepository) CountUsageByCustomer(ctx context.Context, voucherID int64, customerID int64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.VoucherUsage{}).
		Where("voucher_id = ? AND customer_id = ?", voucherID, customerID).
		Count(&n).Error
	return n, mapDBError(err)
}

// 上限に達していなければ+1
func (r *VoucherGormRepository) IncrementUsedIfAvailable(ctx context.Context, voucherID int64) (bool, error) {
	return affected(r.db.WithContext(ctx).
		Model(&model.Voucher{}).
		Where("id = ? AND used_count < usage_limit", voucherID).
		Update("used_count", gorm.Expr("used_count + 1")))
}

func (r *VoucherGormRepository) DecrementUsed(ctx context.Context, voucherID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Voucher{}).
		Where("id = ? AND used_count > 0", voucherID).
		Update("used_count", gorm.Expr("used_count - 1"))
	return mapDBError(res.Error)
}

func (r *VoucherGormRepository) CreateUsage(ctx context.Context, usage model.VoucherUsage) error {
	return mapDBError(r.db.WithContext(ctx).Create(&usage).Error)
}

func (r *VoucherGormRepository) ListUsageByOrder(ctx context.Context, orderID int64) ([]model.VoucherUsage, error) {
	var usages []model.VoucherUsage
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&usages).Error
	return usages, mapDBError(err)
}

func (r *VoucherGormRepository) DeleteUsageByOrder(ctx context.Context, orderID int64) error {
	return mapDBError(r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&model.VoucherUsage{}).Error)
}
