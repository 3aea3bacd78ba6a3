package memory

import (
	"time"

	"bookstore/internal/domain/model"
)

// 初期データ投入と状態確認（テスト・ローカル起動用）

func (s *Store) write(fn func(t *tables)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

func (s *Store) read(fn func(t *tables)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

// SetClockは時刻の取得元を差し替える
func (s *Store) SetClock(now func() time.Time) {
	s.write(func(t *tables) { s.now = now })
}

func (s *Store) PutBook(b model.Book) int64 {
	s.write(func(t *tables) {
		if b.ID == 0 {
			b.ID = t.nextID()
		}
		t.books[b.ID] = b
	})
	return b.ID
}

func (s *Store) PutCampaign(c model.FlashSaleCampaign) int64 {
	s.write(func(t *tables) {
		if c.ID == 0 {
			c.ID = t.nextID()
		}
		t.campaigns[c.ID] = c
	})
	return c.ID
}

func (s *Store) PutOffer(o model.FlashSaleOffer) int64 {
	s.write(func(t *tables) {
		if o.ID == 0 {
			o.ID = t.nextID()
		}
		t.offers[o.ID] = o
	})
	return o.ID
}

func (s *Store) PutVoucher(v model.Voucher) int64 {
	s.write(func(t *tables) {
		if v.ID == 0 {
			v.ID = t.nextID()
		}
		t.vouchers[v.ID] = v
	})
	return v.ID
}

func (s *Store) PutUser(u model.User) int64 {
	s.write(func(t *tables) {
		if u.ID == 0 {
			u.ID = t.nextID()
		}
		t.users[u.ID] = u
	})
	return u.ID
}

func (s *Store) Book(id int64) (b model.Book) {
	s.read(func(t *tables) { b = t.books[id] })
	return b
}

func (s *Store) Offer(id int64) (o model.FlashSaleOffer) {
	s.read(func(t *tables) { o = t.offers[id] })
	return o
}

func (s *Store) Voucher(id int64) (v model.Voucher) {
	s.read(func(t *tables) { v = t.vouchers[id] })
	return v
}

func (s *Store) User(id int64) (u model.User) {
	s.read(func(t *tables) { u = t.users[id] })
	return u
}

func (s *Store) Order(id int64) (o model.Order) {
	s.read(func(t *tables) { o = t.orders[id] })
	return o
}

func (s *Store) Orders() (out []model.Order) {
	s.read(func(t *tables) { out = sortedValues(t.orders, nil) })
	return out
}

func (s *Store) OrderItems(orderID int64) (out []model.OrderItem) {
	s.read(func(t *tables) {
		out = sortedValues(t.orderItems, func(it model.OrderItem) bool { return it.OrderID == orderID })
	})
	return out
}

func (s *Store) RefundRequest(id int64) (r model.RefundRequest) {
	s.read(func(t *tables) { r = t.refunds[id] })
	return r
}

func (s *Store) PointEntries(orderID int64) (out []model.PointLedgerEntry) {
	s.read(func(t *tables) {
		out = sortedValues(t.points, func(e model.PointLedgerEntry) bool { return e.OrderID == orderID })
	})
	return out
}

func (s *Store) VoucherUsages(orderID int64) (out []model.VoucherUsage) {
	s.read(func(t *tables) {
		out = sortedValues(t.voucherUsages, func(u model.VoucherUsage) bool { return u.OrderID == orderID })
	})
	return out
}

func (s *Store) AuditLogs() (out []model.AuditLog) {
	s.read(func(t *tables) { out = sortedValues(t.audits, nil) })
	return out
}

func (s *Store) OutboxEvents() (out []model.OutboxEvent) {
	s.read(func(t *tables) { out = sortedValues(t.outbox, nil) })
	return out
}
