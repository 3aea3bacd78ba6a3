package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type FlashSaleCampaign struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	StartsAt  time.Time `gorm:"not null;index" json:"starts_at"`
	EndsAt    time.Time `gorm:"not null;index" json:"ends_at"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

// 期間内かつ有効か
func (c FlashSaleCampaign) OpenAt(now time.Time) bool {
	return c.IsActive && !now.Before(c.StartsAt) && now.Before(c.EndsAt)
}

// キャンペーン価格の枠。書籍とは別に在庫と販売数を持つ
type FlashSaleOffer struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CampaignID    int64           `gorm:"not null;index" json:"campaign_id"`
	BookID        int64           `gorm:"not null;index" json:"book_id"`
	FlashPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"flash_price"`
	StockQuantity int64           `gorm:"not null;default:0" json:"stock_quantity"`
	SoldCount     int64           `gorm:"not null;default:0" json:"sold_count"`
	CreatedAt     time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
