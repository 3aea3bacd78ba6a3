package repository

import (
	"context"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

type PointGormRepository struct {
	db *gorm.DB
}

func NewPointGormRepository(db *gorm.DB) *PointGormRepository {
	return &PointGormRepository{db: db}
}

// EARNは注文ごとに1行（部分ユニークインデックス）
func (r *PointGormRepository) CreateEntry(ctx context.Context, entry model.PointLedgerEntry) error {
	return mapDBError(r.db.WithContext(ctx).Create(&entry).Error)
}

func (r *PointGormRepository) FindEarnEntry(ctx context.Context, orderID int64) (model.PointLedgerEntry, bool, error) {
	var e model.PointLedgerEntry
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND kind = ?", orderID, model.PointEntryEarn).
		First(&e).Error
	if err != nil {
		err = mapDBError(err)
		if err == repo.ErrNotFound {
			return model.PointLedgerEntry{}, false, nil
		}
		return model.PointLedgerEntry{}, false, err
	}
	return e, true, nil
}

func (r *PointGormRepository) SumByOrder(ctx context.Context, orderID int64) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&model.PointLedgerEntry{}).
		Where("order_id = ?", orderID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&sum).Error
	return sum, mapDBError(err)
}

func (r *PointGormRepository) AdjustBalance(ctx context.Context, customerID int64, delta int64, allowNegative bool) error {
	expr := gorm.Expr("loyalty_points + ?", delta)
	if delta < 0 && !allowNegative {
		expr = gorm.Expr("GREATEST(loyalty_points + ?, 0)", delta)
	}
	return mustAffect(r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", customerID).
		Update("loyalty_points", expr))
}
