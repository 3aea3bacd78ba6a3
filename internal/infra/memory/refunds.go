package memory

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
)

type refundRepo struct {
	t   *tables
	now func() time.Time
}

func (r *refundRepo) Create(ctx context.Context, req model.RefundRequest) (int64, error) {
	if req.Status.IsActive() {
		for _, other := range r.t.refunds {
			if other.OrderID == req.OrderID && other.Status.IsActive() {
				return 0, repo.ErrDuplicate
			}
		}
	}
	req.ID = r.t.nextID()
	now := r.now()
	req.CreatedAt = now
	req.UpdatedAt = now
	r.t.refunds[req.ID] = req
	return req.ID, nil
}

func (r *refundRepo) CreateItems(ctx context.Context, requestID int64, items []model.RefundItem) error {
	for _, it := range items {
		it.ID = r.t.nextID()
		it.RefundRequestID = requestID
		it.CreatedAt = r.now()
		r.t.refundItems[it.ID] = it
	}
	return nil
}

func (r *refundRepo) CreateEvidences(ctx context.Context, requestID int64, urls []string) error {
	for _, u := range urls {
		id := r.t.nextID()
		r.t.evidences[id] = model.RefundEvidence{ID: id, RefundRequestID: requestID, URL: u, CreatedAt: r.now()}
	}
	return nil
}

func (r *refundRepo) FindByID(ctx context.Context, requestID int64) (model.RefundRequest, error) {
	req, ok := r.t.refunds[requestID]
	if !ok {
		return model.RefundRequest{}, repo.ErrNotFound
	}
	return req, nil
}

func (r *refundRepo) FindByIDForUpdate(ctx context.Context, requestID int64) (model.RefundRequest, error) {
	return r.FindByID(ctx, requestID)
}

func (r *refundRepo) FindActiveByOrderID(ctx context.Context, orderID int64) (model.RefundRequest, bool, error) {
	for _, req := range sortedValues(r.t.refunds, nil) {
		if req.OrderID == orderID && req.Status.IsActive() {
			return req, true, nil
		}
	}
	return model.RefundRequest{}, false, nil
}

func (r *refundRepo) ListByOrderID(ctx context.Context, orderID int64) ([]model.RefundRequest, error) {
	return sortedValues(r.t.refunds, func(req model.RefundRequest) bool { return req.OrderID == orderID }), nil
}

func (r *refundRepo) Save(ctx context.Context, req model.RefundRequest) error {
	if _, ok := r.t.refunds[req.ID]; !ok {
		return repo.ErrNotFound
	}
	req.UpdatedAt = r.now()
	r.t.refunds[req.ID] = req
	return nil
}

func (r *refundRepo) ListItems(ctx context.Context, requestID int64) ([]model.RefundItem, error) {
	return sortedValues(r.t.refundItems, func(it model.RefundItem) bool { return it.RefundRequestID == requestID }), nil
}

func (r *refundRepo) ListEvidences(ctx context.Context, requestID int64) ([]model.RefundEvidence, error) {
	return sortedValues(r.t.evidences, func(e model.RefundEvidence) bool { return e.RefundRequestID == requestID }), nil
}

func (r *refundRepo) ListUnrestockedItemsByOrder(ctx context.Context, orderID int64, statuses []model.RefundStatus) ([]model.RefundItem, error) {
	want := map[model.RefundStatus]bool{}
	for _, s := range statuses {
		want[s] = true
	}
	return sortedValues(r.t.refundItems, func(it model.RefundItem) bool {
		if it.OrderID != orderID || it.RestockedAt != nil {
			return false
		}
		req, ok := r.t.refunds[it.RefundRequestID]
		return ok && want[req.Status]
	}), nil
}

func (r *refundRepo) MarkItemRestocked(ctx context.Context, itemID int64, at time.Time) error {
	it, ok := r.t.refundItems[itemID]
	if !ok {
		return repo.ErrNotFound
	}
	it.RestockedAt = &at
	r.t.refundItems[itemID] = it
	return nil
}
