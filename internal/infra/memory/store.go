// Package memory はTxReposのメモリ実装。
// トランザクションは全体ロック + スナップショットで表現する（失敗したら捨てる）。
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
)

type tables struct {
	books         map[int64]model.Book
	campaigns     map[int64]model.FlashSaleCampaign
	offers        map[int64]model.FlashSaleOffer
	orders        map[int64]model.Order
	orderItems    map[int64]model.OrderItem
	vouchers      map[int64]model.Voucher
	voucherUsages map[int64]model.VoucherUsage
	refunds       map[int64]model.RefundRequest
	refundItems   map[int64]model.RefundItem
	evidences     map[int64]model.RefundEvidence
	points        map[int64]model.PointLedgerEntry
	users         map[int64]model.User
	audits        map[int64]model.AuditLog
	adjustments   map[int64]model.InventoryAdjustment
	outbox        map[int64]model.OutboxEvent
	seq           int64
}

func newTables() *tables {
	return &tables{
		books:         map[int64]model.Book{},
		campaigns:     map[int64]model.FlashSaleCampaign{},
		offers:        map[int64]model.FlashSaleOffer{},
		orders:        map[int64]model.Order{},
		orderItems:    map[int64]model.OrderItem{},
		vouchers:      map[int64]model.Voucher{},
		voucherUsages: map[int64]model.VoucherUsage{},
		refunds:       map[int64]model.RefundRequest{},
		refundItems:   map[int64]model.RefundItem{},
		evidences:     map[int64]model.RefundEvidence{},
		points:        map[int64]model.PointLedgerEntry{},
		users:         map[int64]model.User{},
		audits:        map[int64]model.AuditLog{},
		adjustments:   map[int64]model.InventoryAdjustment{},
		outbox:        map[int64]model.OutboxEvent{},
	}
}

func cloneMap[V any](src map[int64]V) map[int64]V {
	dst := make(map[int64]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (t *tables) clone() *tables {
	return &tables{
		books:         cloneMap(t.books),
		campaigns:     cloneMap(t.campaigns),
		offers:        cloneMap(t.offers),
		orders:        cloneMap(t.orders),
		orderItems:    cloneMap(t.orderItems),
		vouchers:      cloneMap(t.vouchers),
		voucherUsages: cloneMap(t.voucherUsages),
		refunds:       cloneMap(t.refunds),
		refundItems:   cloneMap(t.refundItems),
		evidences:     cloneMap(t.evidences),
		points:        cloneMap(t.points),
		users:         cloneMap(t.users),
		audits:        cloneMap(t.audits),
		adjustments:   cloneMap(t.adjustments),
		outbox:        cloneMap(t.outbox),
		seq:           t.seq,
	}
}

func (t *tables) nextID() int64 {
	t.seq++
	return t.seq
}

// IDの昇順に並べた値
func sortedValues[V any](m map[int64]V, keep func(V) bool) []V {
	keys := make([]int64, 0, len(m))
	for k, v := range m {
		if keep == nil || keep(v) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

type Store struct {
	mu   sync.Mutex
	data *tables
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{data: newTables(), now: time.Now}
}

// WithinTxはfnを排他的に実行し、エラーなら変更を丸ごと捨てる。
func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.data.clone()
	if err := fn(newTxRepos(working, s.now)); err != nil {
		return err
	}
	s.data = working
	return nil
}

// Usersはミドルウェアの照合用
func (s *Store) Users() repo.UserRepository {
	return &userRepo{s: s}
}

type userRepo struct {
	s *Store
}

func (r *userRepo) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.data.users[userID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &u, nil
}

type txRepos struct {
	t   *tables
	now func() time.Time
}

func newTxRepos(t *tables, now func() time.Time) *txRepos {
	return &txRepos{t: t, now: now}
}

func (r *txRepos) Orders() repo.OrderRepository         { return &orderRepo{t: r.t, now: r.now} }
func (r *txRepos) OrderItems() repo.OrderItemRepository { return &orderItemRepo{t: r.t, now: r.now} }
func (r *txRepos) Books() repo.BookRepository           { return &bookRepo{t: r.t} }
func (r *txRepos) FlashSales() repo.FlashSaleRepository { return &flashSaleRepo{t: r.t} }
func (r *txRepos) Inventory() repo.InventoryRepository  { return &inventoryRepo{t: r.t, now: r.now} }
func (r *txRepos) Vouchers() repo.VoucherRepository     { return &voucherRepo{t: r.t, now: r.now} }
func (r *txRepos) Refunds() repo.RefundRepository       { return &refundRepo{t: r.t, now: r.now} }
func (r *txRepos) Points() repo.PointRepository         { return &pointRepo{t: r.t, now: r.now} }
func (r *txRepos) AuditLogs() repo.AuditLogRepository   { return &auditRepo{t: r.t} }
func (r *txRepos) Outbox() repo.OutboxRepository        { return &outboxRepo{t: r.t, now: r.now} }

var _ repo.TransactionManager = (*Store)(nil)
