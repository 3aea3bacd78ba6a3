package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type RefundType string

const (
	RefundTypeFull    RefundType = "FULL"
	RefundTypePartial RefundType = "PARTIAL"
)

type RefundStatus string

const (
	RefundStatusPending   RefundStatus = "PENDING"
	RefundStatusApproved  RefundStatus = "APPROVED"
	RefundStatusRejected  RefundStatus = "REJECTED"
	RefundStatusCompleted RefundStatus = "COMPLETED"
)

// 未完了（同じ注文に同時に1件まで）
func (s RefundStatus) IsActive() bool {
	return s == RefundStatusPending || s == RefundStatusApproved
}

// 却下理由コード
type RefundRejectReason string

const (
	RefundRejectInsufficientEvidence RefundRejectReason = "INSUFFICIENT_EVIDENCE"
	RefundRejectOutsideReturnWindow  RefundRejectReason = "OUTSIDE_RETURN_WINDOW"
	RefundRejectDamagedByCustomer    RefundRejectReason = "DAMAGED_BY_CUSTOMER"
	RefundRejectNotEligible          RefundRejectReason = "NOT_ELIGIBLE"
	RefundRejectOther                RefundRejectReason = "OTHER"
)

func (r RefundRejectReason) IsValid() bool {
	switch r {
	case RefundRejectInsufficientEvidence, RefundRejectOutsideReturnWindow,
		RefundRejectDamagedByCustomer, RefundRejectNotEligible, RefundRejectOther:
		return true
	}
	return false
}

type RefundRequest struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID           int64           `gorm:"not null;index" json:"order_id"`
	CustomerID        int64           `gorm:"not null;index" json:"customer_id"`
	Type              RefundType      `gorm:"type:varchar(20);not null" json:"type"`
	Status            RefundStatus    `gorm:"type:varchar(20);not null;index" json:"status"`
	Reason            string          `gorm:"type:text;not null" json:"reason"`
	TotalRefundAmount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_refund_amount"`

	AdminID          *int64             `json:"admin_id,omitempty"`
	AdminNotes       string             `gorm:"type:text" json:"admin_notes,omitempty"`
	RejectReasonCode RefundRejectReason `gorm:"type:varchar(40)" json:"reject_reason_code,omitempty"`
	RejectNote       string             `gorm:"type:text" json:"reject_note,omitempty"`

	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 返金明細。FULLのときも残数量ぶんを作る
type RefundItem struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	RefundRequestID  int64           `gorm:"not null;index" json:"refund_request_id"`
	OrderID          int64           `gorm:"not null;index" json:"order_id"`
	OrderItemID      int64           `gorm:"not null;index" json:"order_item_id"`
	BookID           int64           `gorm:"not null;index" json:"book_id"`
	FlashSaleOfferID *int64          `gorm:"index" json:"flash_sale_offer_id,omitempty"`
	Quantity         int64           `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPrice        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Amount           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	// 倉庫へ戻した時刻（nilならまだ）
	RestockedAt *time.Time `json:"restocked_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
}

type RefundEvidence struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RefundRequestID int64     `gorm:"not null;index" json:"refund_request_id"`
	URL             string    `gorm:"type:text;not null" json:"url"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
