package repository

import (
	"context"

	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	books      repo.BookRepository
	flashSales repo.FlashSaleRepository
	inventory  repo.InventoryRepository
	vouchers   repo.VoucherRepository
	refunds    repo.RefundRepository
	points     repo.PointRepository
	auditLogs  repo.AuditLogRepository
	outbox     repo.OutboxRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository         { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository { return r.orderItems }
func (r *txReposGorm) Books() repo.BookRepository           { return r.books }
func (r *txReposGorm) FlashSales() repo.FlashSaleRepository { return r.flashSales }
func (r *txReposGorm) Inventory() repo.InventoryRepository  { return r.inventory }
func (r *txReposGorm) Vouchers() repo.VoucherRepository     { return r.vouchers }
func (r *txReposGorm) Refunds() repo.RefundRepository       { return r.refunds }
func (r *txReposGorm) Points() repo.PointRepository         { return r.points }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository   { return r.auditLogs }
func (r *txReposGorm) Outbox() repo.OutboxRepository        { return r.outbox }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	err := tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			orders:     NewOrderGormRepository(tx),
			orderItems: NewOrderItemGormRepository(tx),
			books:      NewBookGormRepository(tx),
			flashSales: NewFlashSaleGormRepository(tx),
			inventory:  NewInventoryGormRepository(tx),
			vouchers:   NewVoucherGormRepository(tx),
			refunds:    NewRefundGormRepository(tx),
			points:     NewPointGormRepository(tx),
			auditLogs:  NewAuditLogGormRepository(tx),
			outbox:     NewOutboxGormRepository(tx),
		}
		return fn(r)
	})
	// commit時の直列化失敗も拾う
	return mapDBError(err)
}
