package memory

import (
	"context"
	"strings"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
)

type voucherRepo struct {
	t   *tables
	now func() time.Time
}

func (r *voucherRepo) FindByCode(ctx context.Context, code string) (model.Voucher, error) {
	for _, v := range r.t.vouchers {
		if strings.EqualFold(v.Code, code) {
			return v, nil
		}
	}
	return model.Voucher{}, repo.ErrNotFound
}

func (r *voucherRepo) CountUsageByCustomer(ctx context.Context, voucherID int64, customerID int64) (int64, error) {
	var n int64
	for _, u := range r.t.voucherUsages {
		if u.VoucherID == voucherID && u.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

func (r *voucherRepo) IncrementUsedIfAvailable(ctx context.Context, voucherID int64) (bool, error) {
	v, ok := r.t.vouchers[voucherID]
	if !ok || v.UsedCount >= v.UsageLimit {
		return false, nil
	}
	v.UsedCount++
	r.t.vouchers[voucherID] = v
	return true, nil
}

func (r *voucherRepo) DecrementUsed(ctx context.Context, voucherID int64) error {
	v, ok := r.t.vouchers[voucherID]
	if !ok {
		return repo.ErrNotFound
	}
	if v.UsedCount > 0 {
		v.UsedCount--
	}
	r.t.vouchers[voucherID] = v
	return nil
}

func (r *voucherRepo) CreateUsage(ctx context.Context, usage model.VoucherUsage) error {
	usage.ID = r.t.nextID()
	usage.CreatedAt = r.now()
	r.t.voucherUsages[usage.ID] = usage
	return nil
}

func (r *voucherRepo) ListUsageByOrder(ctx context.Context, orderID int64) ([]model.VoucherUsage, error) {
	return sortedValues(r.t.voucherUsages, func(u model.VoucherUsage) bool { return u.OrderID == orderID }), nil
}

func (r *voucherRepo) DeleteUsageByOrder(ctx context.Context, orderID int64) error {
	for id, u := range r.t.voucherUsages {
		if u.OrderID == orderID {
			delete(r.t.voucherUsages, id)
		}
	}
	return nil
}
