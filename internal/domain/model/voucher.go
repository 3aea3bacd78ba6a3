package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type VoucherCategory string

const (
	VoucherCategoryProduct  VoucherCategory = "PRODUCT"
	VoucherCategoryShipping VoucherCategory = "SHIPPING"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

type Voucher struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Code         string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"code"`
	Category     VoucherCategory `gorm:"type:varchar(20);not null" json:"category"`
	DiscountType DiscountType    `gorm:"type:varchar(20);not null" json:"discount_type"`
	// 割合なら 10 = 10%、固定額なら金額
	DiscountValue decimal.Decimal  `gorm:"type:numeric(12,2);not null" json:"discount_value"`
	MaxDiscount   *decimal.Decimal `gorm:"type:numeric(12,2)" json:"max_discount,omitempty"`
	MinOrderValue decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0" json:"min_order_value"`
	UsageLimit    int64            `gorm:"not null" json:"usage_limit"`
	UsedCount     int64            `gorm:"not null;default:0;check:used_count <= usage_limit" json:"used_count"`
	// 0なら無制限
	UsageLimitPerUser int64     `gorm:"not null;default:0" json:"usage_limit_per_user"`
	StartsAt          time.Time `gorm:"not null" json:"starts_at"`
	EndsAt            time.Time `gorm:"not null" json:"ends_at"`
	IsActive          bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 利用履歴（1注文1バウチャー1行）
type VoucherUsage struct {
	ID             int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	VoucherID      int64           `gorm:"not null;index" json:"voucher_id"`
	CustomerID     int64           `gorm:"not null;index" json:"customer_id"`
	OrderID        int64           `gorm:"not null;index" json:"order_id"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount_amount"`
	CreatedAt      time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
