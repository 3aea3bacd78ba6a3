package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 書籍（在庫と販売数を持つ）
type Book struct {
	ID    int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Title string          `gorm:"type:varchar(255);not null" json:"title"`
	Price decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	// 直接値引き価格（nilなら通常価格）
	DiscountPrice *decimal.Decimal `gorm:"type:numeric(12,2)" json:"discount_price,omitempty"`
	// 手元在庫。注文作成時に減らし、キャンセル/返品入庫で戻す
	StockQuantity int64 `gorm:"not null;default:0" json:"stock_quantity"`
	// 配達完了した累計数
	SoldCount int64          `gorm:"not null;default:0" json:"sold_count"`
	IsActive  bool           `gorm:"not null;default:false" json:"is_active"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// 販売価格（直接値引きがあればそちらを優先）
func (b Book) EffectivePrice() decimal.Decimal {
	if b.DiscountPrice != nil && b.DiscountPrice.LessThan(b.Price) {
		return *b.DiscountPrice
	}
	return b.Price
}
