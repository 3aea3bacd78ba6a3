package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OutboxGormRepository struct {
	db *gorm.DB
}

func NewOutboxGormRepository(db *gorm.DB) *OutboxGormRepository {
	return &OutboxGormRepository{db: db}
}

func (r *OutboxGormRepository) Create(ctx context.Context, ev model.OutboxEvent) error {
	if ev.Status == "" {
		ev.Status = model.OutboxStatusPending
	}
	return mapDBError(r.db.WithContext(ctx).Create(&ev).Error)
}

// 複数のrelayが同じ行を取らないように SKIP LOCKED
func (r *OutboxGormRepository) ListPending(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", model.OutboxStatusPending).
		Order("id asc").
		Limit(limit).
		Find(&events).Error
	return events, mapDBError(err)
}

func (r *OutboxGormRepository) MarkPublished(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"status": model.OutboxStatusPublished, "published_at": at})
	return mapDBError(res.Error)
}
