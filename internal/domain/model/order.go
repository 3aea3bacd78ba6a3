package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending                   OrderStatus = "PENDING"
	OrderStatusConfirmed                 OrderStatus = "CONFIRMED"
	OrderStatusShipped                   OrderStatus = "SHIPPED"
	OrderStatusDelivered                 OrderStatus = "DELIVERED"
	OrderStatusDeliveryFailed            OrderStatus = "DELIVERY_FAILED"
	OrderStatusRedelivering              OrderStatus = "REDELIVERING"
	OrderStatusReturningToWarehouse      OrderStatus = "RETURNING_TO_WAREHOUSE"
	OrderStatusCanceled                  OrderStatus = "CANCELED"
	OrderStatusRefundRequested           OrderStatus = "REFUND_REQUESTED"
	OrderStatusAwaitingGoodsReturn       OrderStatus = "AWAITING_GOODS_RETURN"
	OrderStatusRefunding                 OrderStatus = "REFUNDING"
	OrderStatusGoodsReceivedFromCustomer OrderStatus = "GOODS_RECEIVED_FROM_CUSTOMER"
	OrderStatusGoodsReturnedToWarehouse  OrderStatus = "GOODS_RETURNED_TO_WAREHOUSE"
	OrderStatusPartiallyRefunded         OrderStatus = "PARTIALLY_REFUNDED"
	OrderStatusRefunded                  OrderStatus = "REFUNDED"
)

var AllOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusDeliveryFailed,
	OrderStatusRedelivering,
	OrderStatusReturningToWarehouse,
	OrderStatusCanceled,
	OrderStatusRefundRequested,
	OrderStatusAwaitingGoodsReturn,
	OrderStatusRefunding,
	OrderStatusGoodsReceivedFromCustomer,
	OrderStatusGoodsReturnedToWarehouse,
	OrderStatusPartiallyRefunded,
	OrderStatusRefunded,
}

func (s OrderStatus) IsValid() bool {
	for _, v := range AllOrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

type OrderType string

const (
	OrderTypeOnline  OrderType = "ONLINE"
	OrderTypeCounter OrderType = "COUNTER"
)

type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "COD"
	PaymentMethodOnline PaymentMethod = "ONLINE"
	PaymentMethodCash   PaymentMethod = "CASH"
)

type Order struct {
	ID                int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Code              string        `gorm:"type:varchar(40);not null;uniqueIndex" json:"code"`
	CustomerID        int64         `gorm:"not null;index" json:"customer_id"`
	StaffID           *int64        `gorm:"index" json:"staff_id,omitempty"`
	CheckoutSessionID string        `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`
	OrderType         OrderType     `gorm:"type:varchar(20);not null" json:"order_type"`
	PaymentMethod     PaymentMethod `gorm:"type:varchar(20);not null" json:"payment_method"`

	// 配送先（注文時点のスナップショット）
	RecipientName string `gorm:"type:varchar(255)" json:"recipient_name"`
	Phone         string `gorm:"type:varchar(50)" json:"phone"`
	AddressLine   string `gorm:"type:text" json:"address_line"`

	Subtotal         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"subtotal"`
	ShippingFee      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping_fee"`
	ProductDiscount  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"product_discount"`
	ShippingDiscount decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping_discount"`
	TotalAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null;check:total_amount >= 0" json:"total_amount"`
	RefundedAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"refunded_amount"`

	ProductVoucherID  *int64 `json:"product_voucher_id,omitempty"`
	ShippingVoucherID *int64 `json:"shipping_voucher_id,omitempty"`

	Status OrderStatus `gorm:"type:varchar(40);not null;index" json:"status"`
	// 作成時に確保した在庫をまだ持っているか
	StockHeld bool `gorm:"not null;default:false" json:"-"`
	// 初回配達完了時刻（販売数とポイントの二重計上ガード）
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	CancelReason string     `gorm:"type:text" json:"cancel_reason,omitempty"`

	CreatedBy int64     `gorm:"not null" json:"created_by"`
	UpdatedBy int64     `gorm:"not null" json:"updated_by"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
