package memory

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
)

type pointRepo struct {
	t   *tables
	now func() time.Time
}

func (r *pointRepo) CreateEntry(ctx context.Context, entry model.PointLedgerEntry) error {
	if entry.Kind == model.PointEntryEarn {
		if _, found, _ := r.FindEarnEntry(ctx, entry.OrderID); found {
			return repo.ErrDuplicate
		}
	}
	entry.ID = r.t.nextID()
	entry.CreatedAt = r.now()
	r.t.points[entry.ID] = entry
	return nil
}

func (r *pointRepo) FindEarnEntry(ctx context.Context, orderID int64) (model.PointLedgerEntry, bool, error) {
	for _, e := range r.t.points {
		if e.OrderID == orderID && e.Kind == model.PointEntryEarn {
			return e, true, nil
		}
	}
	return model.PointLedgerEntry{}, false, nil
}

func (r *pointRepo) SumByOrder(ctx context.Context, orderID int64) (int64, error) {
	var sum int64
	for _, e := range r.t.points {
		if e.OrderID == orderID {
			sum += e.Points
		}
	}
	return sum, nil
}

func (r *pointRepo) AdjustBalance(ctx context.Context, customerID int64, delta int64, allowNegative bool) error {
	u, ok := r.t.users[customerID]
	if !ok {
		return repo.ErrNotFound
	}
	u.LoyaltyPoints += delta
	if !allowNegative && u.LoyaltyPoints < 0 {
		u.LoyaltyPoints = 0
	}
	r.t.users[customerID] = u
	return nil
}

type auditRepo struct {
	t *tables
}

func (r *auditRepo) Create(ctx context.Context, log model.AuditLog) error {
	log.ID = r.t.nextID()
	r.t.audits[log.ID] = log
	return nil
}

func (r *auditRepo) List(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	logs := sortedValues(r.t.audits, func(l model.AuditLog) bool {
		if f.ActorUserID != nil && l.ActorUserID != *f.ActorUserID {
			return false
		}
		if f.Action != nil && l.Action != *f.Action {
			return false
		}
		if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
			return false
		}
		if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
			return false
		}
		return true
	})
	//新しい順
	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return page(logs[min(f.Offset, len(logs)):], 1, limit), nil
}

type outboxRepo struct {
	t   *tables
	now func() time.Time
}

func (r *outboxRepo) Create(ctx context.Context, ev model.OutboxEvent) error {
	ev.ID = r.t.nextID()
	if ev.Status == "" {
		ev.Status = model.OutboxStatusPending
	}
	ev.CreatedAt = r.now()
	r.t.outbox[ev.ID] = ev
	return nil
}

func (r *outboxRepo) ListPending(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	pending := sortedValues(r.t.outbox, func(ev model.OutboxEvent) bool { return ev.Status == model.OutboxStatusPending })
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *outboxRepo) MarkPublished(ctx context.Context, ids []int64, at time.Time) error {
	for _, id := range ids {
		ev, ok := r.t.outbox[id]
		if !ok {
			continue
		}
		ev.Status = model.OutboxStatusPublished
		ev.PublishedAt = &at
		r.t.outbox[id] = ev
	}
	return nil
}
