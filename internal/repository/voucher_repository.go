package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

type VoucherRepository interface {
	FindByCode(ctx context.Context, code string) (model.Voucher, error)
	CountUsageByCustomer(ctx context.Context, voucherID int64, customerID int64) (int64, error)

	// used_count < usage_limit のときだけ+1
	IncrementUsedIfAvailable(ctx context.Context, voucherID int64) (bool, error)
	DecrementUsed(ctx context.Context, voucherID int64) error

	CreateUsage(ctx context.Context, usage model.VoucherUsage) error
	ListUsageByOrder(ctx context.Context, orderID int64) ([]model.VoucherUsage, error)
	DeleteUsageByOrder(ctx context.Context, orderID int64) error
}
