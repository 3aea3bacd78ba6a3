package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文明細。単価は作成時に固定し、以後は再計算しない
type OrderItem struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID          int64           `gorm:"not null;index" json:"order_id"`
	BookID           int64           `gorm:"not null;index" json:"book_id"`
	FlashSaleOfferID *int64          `gorm:"index" json:"flash_sale_offer_id,omitempty"`
	TitleSnapshot    string          `gorm:"type:varchar(255);not null" json:"title_snapshot"`
	UnitPrice        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Quantity         int64           `gorm:"not null;check:quantity > 0" json:"quantity"`
	// 返金精算済みの数量
	RefundedQuantity int64 `gorm:"not null;default:0" json:"refunded_quantity"`
	// 倉庫に戻した数量
	ReturnedQuantity int64     `gorm:"not null;default:0" json:"returned_quantity"`
	CreatedAt        time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

// まだ返金できる数量
func (it OrderItem) RemainingQuantity() int64 {
	return it.Quantity - it.RefundedQuantity
}

func (it OrderItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity))
}
