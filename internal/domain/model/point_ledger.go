package model

import "time"

type PointEntryKind string

const (
	PointEntryEarn   PointEntryKind = "EARN"
	PointEntryDeduct PointEntryKind = "DEDUCT"
)

// ポイント台帳。注文ごとの合計が残りの付与ポイントになる
type PointLedgerEntry struct {
	ID              int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID      int64          `gorm:"not null;index" json:"customer_id"`
	OrderID         int64          `gorm:"not null;index" json:"order_id"`
	RefundRequestID *int64         `json:"refund_request_id,omitempty"`
	Kind            PointEntryKind `gorm:"type:varchar(20);not null" json:"kind"`
	// 付与は正、控除は負
	Points    int64     `gorm:"not null" json:"points"`
	Reason    string    `gorm:"type:varchar(255);not null" json:"reason"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
