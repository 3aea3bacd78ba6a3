package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"github.com/shopspring/decimal"
)

const maxVouchersPerOrder = 2

var hundred = decimal.NewFromInt(100)

// 最大2枚（商品1・送料1）のバウチャーを検証して割引額を出す
type VoucherCalculator struct {
	clock func() time.Time
}

func NewVoucherCalculator(clock func() time.Time) *VoucherCalculator {
	if clock == nil {
		clock = time.Now
	}
	return &VoucherCalculator{clock: clock}
}

type VoucherQuoteInput struct {
	CustomerID  int64
	OrderType   model.OrderType
	Subtotal    decimal.Decimal
	ShippingFee decimal.Decimal
	Codes       []string
}

type AppliedVoucher struct {
	VoucherID         int64                 `json:"voucher_id"`
	Code              string                `json:"code"`
	Category          model.VoucherCategory `json:"category"`
	Discount          decimal.Decimal       `json:"discount"`
	UsageLimitPerUser int64                 `json:"-"`
}

type VoucherQuote struct {
	Product          *AppliedVoucher `json:"product_voucher,omitempty"`
	Shipping         *AppliedVoucher `json:"shipping_voucher,omitempty"`
	ProductDiscount  decimal.Decimal `json:"product_discount"`
	ShippingDiscount decimal.Decimal `json:"shipping_discount"`
	Total            decimal.Decimal `json:"total"`
}

func (q VoucherQuote) applied() []*AppliedVoucher {
	var out []*AppliedVoucher
	if q.Product != nil {
		out = append(out, q.Product)
	}
	if q.Shipping != nil {
		out = append(out, q.Shipping)
	}
	return out
}

func normalizeVoucherCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (c *VoucherCalculator) Quote(ctx context.Context, vouchers repo.VoucherRepository, in VoucherQuoteInput) (VoucherQuote, error) {
	codes := normalizeVoucherCodes(in.Codes)
	if len(codes) > maxVouchersPerOrder {
		return VoucherQuote{}, voucherRejected(VoucherTooMany, "at most 2 vouchers can be applied")
	}

	q := VoucherQuote{ProductDiscount: decimal.Zero, ShippingDiscount: decimal.Zero}
	now := c.clock()
	for _, code := range codes {
		v, err := vouchers.FindByCode(ctx, code)
		if errors.Is(err, repo.ErrNotFound) {
			return VoucherQuote{}, voucherRejected(VoucherNotFound, fmt.Sprintf("voucher %s not found", code))
		}
		if err != nil {
			return VoucherQuote{}, dbError(err)
		}

		if (v.Category == model.VoucherCategoryProduct && q.Product != nil) ||
			(v.Category == model.VoucherCategoryShipping && q.Shipping != nil) {
			return VoucherQuote{}, voucherRejected(VoucherTooMany, "only one voucher per category can be applied")
		}

		used, err := vouchers.CountUsageByCustomer(ctx, v.ID, in.CustomerID)
		if err != nil {
			return VoucherQuote{}, dbError(err)
		}
		if err := validateVoucher(v, in, used, now); err != nil {
			return VoucherQuote{}, err
		}

		applied := &AppliedVoucher{
			VoucherID:         v.ID,
			Code:              v.Code,
			Category:          v.Category,
			Discount:          voucherDiscount(v, in.Subtotal, in.ShippingFee),
			UsageLimitPerUser: v.UsageLimitPerUser,
		}
		switch v.Category {
		case model.VoucherCategoryProduct:
			q.Product = applied
			q.ProductDiscount = applied.Discount
		case model.VoucherCategoryShipping:
			q.Shipping = applied
			q.ShippingDiscount = applied.Discount
		default:
			return VoucherQuote{}, voucherRejected(VoucherDisabled, fmt.Sprintf("voucher %s has unknown category", v.Code))
		}
	}

	q.Total = orderTotal(in.Subtotal, in.ShippingFee, q.ProductDiscount, q.ShippingDiscount)
	return q, nil
}

func validateVoucher(v model.Voucher, in VoucherQuoteInput, usedByCustomer int64, now time.Time) error {
	switch {
	case now.After(v.EndsAt):
		return voucherRejected(VoucherExpired, fmt.Sprintf("voucher %s has expired", v.Code))
	case now.Before(v.StartsAt):
		return voucherRejected(VoucherNotYetActive, fmt.Sprintf("voucher %s is not active yet", v.Code))
	case !v.IsActive:
		return voucherRejected(VoucherDisabled, fmt.Sprintf("voucher %s is disabled", v.Code))
	case v.UsedCount >= v.UsageLimit:
		return voucherRejected(VoucherUsageExhausted, fmt.Sprintf("voucher %s has been used up", v.Code))
	case v.UsageLimitPerUser > 0 && usedByCustomer >= v.UsageLimitPerUser:
		return voucherRejected(VoucherUsageExhausted, fmt.Sprintf("voucher %s usage limit per customer reached", v.Code))
	case in.Subtotal.LessThan(v.MinOrderValue):
		return voucherRejected(VoucherBelowMinimumOrder, fmt.Sprintf("voucher %s requires a minimum order of %s", v.Code, v.MinOrderValue.StringFixed(2)))
	case v.Category == model.VoucherCategoryShipping && (in.OrderType == model.OrderTypeCounter || !in.ShippingFee.IsPositive()):
		return voucherRejected(VoucherNotForCounterSales, fmt.Sprintf("voucher %s needs a shipping fee", v.Code))
	}
	return nil
}

// 割引額。割合は小数第2位で四捨五入、上限と対象額を超えない
func voucherDiscount(v model.Voucher, subtotal, shippingFee decimal.Decimal) decimal.Decimal {
	base := subtotal
	if v.Category == model.VoucherCategoryShipping {
		base = shippingFee
	}

	var d decimal.Decimal
	switch v.DiscountType {
	case model.DiscountTypePercentage:
		d = base.Mul(v.DiscountValue).Div(hundred).Round(2)
	default:
		d = v.DiscountValue
	}

	if v.MaxDiscount != nil && d.GreaterThan(*v.MaxDiscount) {
		d = *v.MaxDiscount
	}
	if d.GreaterThan(base) {
		d = base
	}
	if d.IsNegative() {
		d = decimal.Zero
	}
	return d
}

// 小計 + 送料 - 割引（0未満にしない）
func orderTotal(subtotal, shippingFee, productDiscount, shippingDiscount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(shippingFee).Sub(productDiscount).Sub(shippingDiscount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// 注文作成後に利用数を加算（同じトランザクション内）
func (c *VoucherCalculator) recordUsage(ctx context.Context, vouchers repo.VoucherRepository, customerID, orderID int64, q VoucherQuote) error {
	for _, a := range q.applied() {
		ok, err := vouchers.IncrementUsedIfAvailable(ctx, a.VoucherID)
		if err != nil {
			return dbError(err)
		}
		if !ok {
			return voucherRejected(VoucherUsageExhausted, fmt.Sprintf("voucher %s has been used up", a.Code))
		}

		// 加算で行ロックを取った後に数え直す
		if a.UsageLimitPerUser > 0 {
			used, err := vouchers.CountUsageByCustomer(ctx, a.VoucherID, customerID)
			if err != nil {
				return dbError(err)
			}
			if used >= a.UsageLimitPerUser {
				return voucherRejected(VoucherUsageExhausted, fmt.Sprintf("voucher %s usage limit per customer reached", a.Code))
			}
		}

		if err := vouchers.CreateUsage(ctx, model.VoucherUsage{
			VoucherID:      a.VoucherID,
			CustomerID:     customerID,
			OrderID:        orderID,
			DiscountAmount: a.Discount,
		}); err != nil {
			return dbError(err)
		}
	}
	return nil
}

// 利用数を戻す（利用履歴を消すので2回目は何もしない）
func (c *VoucherCalculator) releaseUsage(ctx context.Context, vouchers repo.VoucherRepository, orderID int64) (int, error) {
	usages, err := vouchers.ListUsageByOrder(ctx, orderID)
	if err != nil {
		return 0, dbError(err)
	}
	for _, u := range usages {
		if err := vouchers.DecrementUsed(ctx, u.VoucherID); err != nil {
			return 0, dbError(err)
		}
	}
	if len(usages) > 0 {
		if err := vouchers.DeleteUsageByOrder(ctx, orderID); err != nil {
			return 0, dbError(err)
		}
	}
	return len(usages), nil
}
