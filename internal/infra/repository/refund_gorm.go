package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RefundGormRepository struct {
	db *gorm.DB
}

func NewRefundGormRepository(db *gorm.DB) *RefundGormRepository {
	return &RefundGormRepository{db: db}
}

// 未完了の申請は部分ユニークインデックスで1件に制限（重複はErrDuplicate）
func (r *RefundGormRepository) Create(ctx context.Context, req model.RefundRequest) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&req).Error; err != nil {
		return 0, mapDBError(err)
	}
	return req.ID, nil
}

func (r *RefundGormRepository) CreateItems(ctx context.Context, requestID int64, items []model.RefundItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].RefundRequestID = requestID
	}
	return mapDBError(r.db.WithContext(ctx).Create(&items).Error)
}

func (r *RefundGormRepository) CreateEvidences(ctx context.Context, requestID int64, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	rows := make([]model.RefundEvidence, 0, len(urls))
	for _, u := range urls {
		rows = append(rows, model.RefundEvidence{RefundRequestID: requestID, URL: u})
	}
	return mapDBError(r.db.WithContext(ctx).Create(&rows).Error)
}

func (r *RefundGormRepository) FindByID(ctx context.Context, requestID int64) (model.RefundRequest, error) {
	var req model.RefundRequest
	if err := r.db.WithContext(ctx).Where("id = ?", requestID).First(&req).Error; err != nil {
		return model.RefundRequest{}, mapDBError(err)
	}
	return req, nil
}

func (r *RefundGormRepository) FindByIDForUpdate(ctx context.Context, requestID int64) (model.RefundRequest, error) {
	var req model.RefundRequest
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", requestID).
		First(&req).Error
	if err != nil {
		return model.RefundRequest{}, mapDBError(err)
	}
	return req, nil
}

func (r *RefundGormRepository) FindActiveByOrderID(ctx context.Context, orderID int64) (model.RefundRequest, bool, error) {
	var req model.RefundRequest
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, activeRefundStatuses).
		Order("id asc").
		First(&req).Error
	if err != nil {
		err = mapDBError(err)
		if err == repo.ErrNotFound {
			return model.RefundRequest{}, false, nil
		}
		return model.RefundRequest{}, false, err
	}
	return req, true, nil
}

func (r *RefundGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.RefundRequest, error) {
	var reqs []model.RefundRequest
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id asc").Find(&reqs).Error
	return reqs, mapDBError(err)
}

func (r *RefundGormRepository) Save(ctx context.Context, req model.RefundRequest) error {
	return mustAffect(r.db.WithContext(ctx).Save(&req))
}

func (r *RefundGormRepository) ListItems(ctx context.Context, requestID int64) ([]model.RefundItem, error) {
	var items []model.RefundItem
	err := r.db.WithContext(ctx).Where("refund_request_id = ?", requestID).Order("id asc").Find(&items).Error
	return items, mapDBError(err)
}

func (r *RefundGormRepository) ListEvidences(ctx context.Context, requestID int64) ([]model.RefundEvidence, error) {
	var rows []model.RefundEvidence
	err := r.db.WithContext(ctx).Where("refund_request_id = ?", requestID).Order("id asc").Find(&rows).Error
	return rows, mapDBError(err)
}

func (r *RefundGormRepository) ListUnrestockedItemsByOrder(ctx context.Context, orderID int64, statuses []model.RefundStatus) ([]model.RefundItem, error) {
	var items []model.RefundItem
	err := r.db.WithContext(ctx).
		Model(&model.RefundItem{}).
		Joins("JOIN refund_requests rr ON rr.id = refund_items.refund_request_id").
		Where("refund_items.order_id = ? AND refund_items.restocked_at IS NULL AND rr.status IN ?", orderID, statuses).
		Order("refund_items.id asc").
		Find(&items).Error
	return items, mapDBError(err)
}

func (r *RefundGormRepository) MarkItemRestocked(ctx context.Context, itemID int64, at time.Time) error {
	return mustAffect(r.db.WithContext(ctx).
		Model(&model.RefundItem{}).
		Where("id = ? AND restocked_at IS NULL", itemID).
		Update("restocked_at", at))
}
