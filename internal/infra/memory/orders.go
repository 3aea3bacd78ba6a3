package memory

import (
	"context"
	"sort"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
)

type orderRepo struct {
	t   *tables
	now func() time.Time
}

func (r *orderRepo) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	o, ok := r.t.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

// トランザクション全体が直列なのでロックは不要
func (r *orderRepo) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r *orderRepo) FindByCode(ctx context.Context, code string) (model.Order, error) {
	for _, o := range r.t.orders {
		if o.Code == code {
			return o, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (r *orderRepo) FindByCheckoutSession(ctx context.Context, sessionID string) (model.Order, bool, error) {
	for _, o := range r.t.orders {
		if o.CheckoutSessionID == sessionID {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

func page[V any](items []V, page int, limit int) []V {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		return []V{}
	}
	start := (page - 1) * limit
	if start >= len(items) {
		return []V{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func newestFirst(orders []model.Order) []model.Order {
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders
}

func (r *orderRepo) ListByCustomerID(ctx context.Context, customerID int64, p int, limit int) ([]model.Order, int64, error) {
	all := newestFirst(sortedValues(r.t.orders, func(o model.Order) bool { return o.CustomerID == customerID }))
	return page(all, p, limit), int64(len(all)), nil
}

func (r *orderRepo) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	all := newestFirst(sortedValues(r.t.orders, func(o model.Order) bool {
		if f.Status != "" && string(o.Status) != f.Status {
			return false
		}
		if f.CustomerID != nil && o.CustomerID != *f.CustomerID {
			return false
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			return false
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			return false
		}
		return true
	}))
	return page(all, f.Page, f.Limit), int64(len(all)), nil
}

func (r *orderRepo) Create(ctx context.Context, order model.Order) (int64, error) {
	for _, o := range r.t.orders {
		if o.CheckoutSessionID == order.CheckoutSessionID || o.Code == order.Code {
			return 0, repo.ErrDuplicate
		}
	}
	order.ID = r.t.nextID()
	now := r.now()
	order.CreatedAt = now
	order.UpdatedAt = now
	r.t.orders[order.ID] = order
	return order.ID, nil
}

func (r *orderRepo) Save(ctx context.Context, order model.Order) error {
	if _, ok := r.t.orders[order.ID]; !ok {
		return repo.ErrNotFound
	}
	order.UpdatedAt = r.now()
	r.t.orders[order.ID] = order
	return nil
}

type orderItemRepo struct {
	t   *tables
	now func() time.Time
}

func (r *orderItemRepo) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	for _, it := range items {
		it.ID = r.t.nextID()
		it.OrderID = orderID
		it.CreatedAt = r.now()
		r.t.orderItems[it.ID] = it
	}
	return nil
}

func (r *orderItemRepo) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return sortedValues(r.t.orderItems, func(it model.OrderItem) bool { return it.OrderID == orderID }), nil
}

func (r *orderItemRepo) Save(ctx context.Context, item model.OrderItem) error {
	if _, ok := r.t.orderItems[item.ID]; !ok {
		return repo.ErrNotFound
	}
	r.t.orderItems[item.ID] = item
	return nil
}
