package usecase

import (
	"context"
	"net/http"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"github.com/shopspring/decimal"
)

// 顧客向けの注文参照
type OrderUsecase struct {
	tx repo.TransactionManager
}

func NewOrderUsecase(tx repo.TransactionManager) *OrderUsecase {
	return &OrderUsecase{tx: tx}
}

type OrderItemOutput struct {
	ID               int64           `json:"id"`
	BookID           int64           `json:"book_id"`
	FlashSaleOfferID *int64          `json:"flash_sale_offer_id,omitempty"`
	Title            string          `json:"title"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Quantity         int64           `json:"quantity"`
	RefundedQuantity int64           `json:"refunded_quantity"`
	ReturnedQuantity int64           `json:"returned_quantity"`
	LineTotal        decimal.Decimal `json:"line_total"`
}

type OrderOutput struct {
	ID               int64               `json:"id"`
	Code             string              `json:"code"`
	CustomerID       int64               `json:"customer_id"`
	StaffID          *int64              `json:"staff_id,omitempty"`
	OrderType        model.OrderType     `json:"order_type"`
	PaymentMethod    model.PaymentMethod `json:"payment_method"`
	Status           model.OrderStatus   `json:"status"`
	RecipientName    string              `json:"recipient_name,omitempty"`
	Phone            string              `json:"phone,omitempty"`
	AddressLine      string              `json:"address_line,omitempty"`
	Subtotal         decimal.Decimal     `json:"subtotal"`
	ShippingFee      decimal.Decimal     `json:"shipping_fee"`
	ProductDiscount  decimal.Decimal     `json:"product_discount"`
	ShippingDiscount decimal.Decimal     `json:"shipping_discount"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	RefundedAmount   decimal.Decimal     `json:"refunded_amount"`
	CancelReason     string              `json:"cancel_reason,omitempty"`
	DeliveredAt      *time.Time          `json:"delivered_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	Items            []OrderItemOutput   `json:"items"`
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, customerID int64, page int, limit int) (OrderListOutput, error) {
	if customerID <= 0 {
		return OrderListOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if page < 1 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}

	out := OrderListOutput{Page: page, Limit: limit}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByCustomerID(ctx, customerID, page, limit)
		if err != nil {
			return dbError(err)
		}
		out.Total = total
		out.Items, err = loadOrderOutputs(ctx, r, orders)
		return err
	})
	if err != nil {
		return OrderListOutput{}, dbError(err)
	}
	return out, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, customerID int64, orderID int64) (OrderOutput, error) {
	if customerID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return dbError(err)
		}
		if o.CustomerID != customerID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		out, err = loadOrderOutput(ctx, r, o)
		return err
	})
	if err != nil {
		return OrderOutput{}, dbError(err)
	}
	return out, nil
}

func loadOrderOutput(ctx context.Context, r repo.TxRepos, o model.Order) (OrderOutput, error) {
	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return OrderOutput{}, dbError(err)
	}
	return toOrderOutput(o, items), nil
}

func loadOrderOutputs(ctx context.Context, r repo.TxRepos, orders []model.Order) ([]OrderOutput, error) {
	outs := make([]OrderOutput, 0, len(orders))
	for _, o := range orders {
		out, err := loadOrderOutput(ctx, r, o)
		if err != nil {
			return nil, err
		}
		outs = append(outs, out)
	}
	return outs, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ID:               it.ID,
			BookID:           it.BookID,
			FlashSaleOfferID: it.FlashSaleOfferID,
			Title:            it.TitleSnapshot,
			UnitPrice:        it.UnitPrice,
			Quantity:         it.Quantity,
			RefundedQuantity: it.RefundedQuantity,
			ReturnedQuantity: it.ReturnedQuantity,
			LineTotal:        it.LineTotal(),
		})
	}

	return OrderOutput{
		ID:               o.ID,
		Code:             o.Code,
		CustomerID:       o.CustomerID,
		StaffID:          o.StaffID,
		OrderType:        o.OrderType,
		PaymentMethod:    o.PaymentMethod,
		Status:           o.Status,
		RecipientName:    o.RecipientName,
		Phone:            o.Phone,
		AddressLine:      o.AddressLine,
		Subtotal:         o.Subtotal,
		ShippingFee:      o.ShippingFee,
		ProductDiscount:  o.ProductDiscount,
		ShippingDiscount: o.ShippingDiscount,
		TotalAmount:      o.TotalAmount,
		RefundedAmount:   o.RefundedAmount,
		CancelReason:     o.CancelReason,
		DeliveredAt:      o.DeliveredAt,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		Items:            outItems,
	}
}
