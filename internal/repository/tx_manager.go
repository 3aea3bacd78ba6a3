package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	Books() BookRepository
	FlashSales() FlashSaleRepository
	Inventory() InventoryRepository
	Vouchers() VoucherRepository
	Refunds() RefundRepository
	Points() PointRepository
	AuditLogs() AuditLogRepository
	Outbox() OutboxRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}
