package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// =====================
// VoucherRepository モック
// =====================

type VoucherRepoMock struct{ mock.Mock }

func (m *VoucherRepoMock) FindByCode(ctx context.Context, code string) (model.Voucher, error) {
	args := m.Called(ctx, code)
	v, _ := args.Get(0).(model.Voucher)
	return v, args.Error(1)
}

func (m *VoucherRepoMock) CountUsageByCustomer(ctx context.Context, voucherID int64, customerID int64) (int64, error) {
	args := m.Called(ctx, voucherID, customerID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *VoucherRepoMock) IncrementUsedIfAvailable(ctx context.Context, voucherID int64) (bool, error) {
	args := m.Called(ctx, voucherID)
	return args.Bool(0), args.Error(1)
}

func (m *VoucherRepoMock) DecrementUsed(ctx context.Context, voucherID int64) error {
	return m.Called(ctx, voucherID).Error(0)
}

func (m *VoucherRepoMock) CreateUsage(ctx context.Context, usage model.VoucherUsage) error {
	return m.Called(ctx, usage).Error(0)
}

func (m *VoucherRepoMock) ListUsageByOrder(ctx context.Context, orderID int64) ([]model.VoucherUsage, error) {
	args := m.Called(ctx, orderID)
	u, _ := args.Get(0).([]model.VoucherUsage)
	return u, args.Error(1)
}

func (m *VoucherRepoMock) DeleteUsageByOrder(ctx context.Context, orderID int64) error {
	return m.Called(ctx, orderID).Error(0)
}

var _ repo.VoucherRepository = (*VoucherRepoMock)(nil)

func activeVoucher(id int64, code string, cat model.VoucherCategory, typ model.DiscountType, value string) model.Voucher {
	return model.Voucher{
		ID:            id,
		Code:          code,
		Category:      cat,
		DiscountType:  typ,
		DiscountValue: dec(value),
		MinOrderValue: decimal.Zero,
		UsageLimit:    100,
		StartsAt:      testNow.Add(-24 * time.Hour),
		EndsAt:        testNow.Add(24 * time.Hour),
		IsActive:      true,
	}
}

func ptrDec(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func requireVoucherCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVoucherRejected), "want voucher rejection, got %v", err)
	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, code, he.Code)
}

// =====================
// 割引額（純粋関数）
// =====================

func TestVoucherDiscount(t *testing.T) {
	cases := []struct {
		name     string
		voucher  model.Voucher
		subtotal string
		shipping string
		want     string
	}{
		{
			name:     "percentage rounds half up to 2 decimals",
			voucher:  activeVoucher(1, "P", model.VoucherCategoryProduct, model.DiscountTypePercentage, "15"),
			subtotal: "33.30", shipping: "0",
			want: "5", // 4.995
		},
		{
			name: "percentage capped by max discount",
			voucher: func() model.Voucher {
				v := activeVoucher(1, "P", model.VoucherCategoryProduct, model.DiscountTypePercentage, "50")
				v.MaxDiscount = ptrDec("20")
				return v
			}(),
			subtotal: "100", shipping: "0",
			want: "20",
		},
		{
			name:     "fixed never exceeds subtotal",
			voucher:  activeVoucher(1, "F", model.VoucherCategoryProduct, model.DiscountTypeFixed, "500"),
			subtotal: "120", shipping: "30",
			want: "120",
		},
		{
			name:     "shipping voucher discounts the fee only",
			voucher:  activeVoucher(2, "S", model.VoucherCategoryShipping, model.DiscountTypeFixed, "50"),
			subtotal: "1000", shipping: "30",
			want: "30",
		},
		{
			name: "shipping percentage capped",
			voucher: func() model.Voucher {
				v := activeVoucher(2, "S", model.VoucherCategoryShipping, model.DiscountTypePercentage, "100")
				v.MaxDiscount = ptrDec("10")
				return v
			}(),
			subtotal: "1000", shipping: "30",
			want: "10",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := voucherDiscount(tc.voucher, dec(tc.subtotal), dec(tc.shipping))
			assert.True(t, dec(tc.want).Equal(got), "want %s got %s", tc.want, got)
		})
	}
}

func TestOrderTotal_NeverNegative(t *testing.T) {
	assert.True(t, orderTotal(dec("100"), dec("30"), dec("100"), dec("30")).IsZero())
	assert.True(t, orderTotal(dec("100"), dec("30"), dec("150"), dec("30")).IsZero())
	assert.True(t, dec("110").Equal(orderTotal(dec("100"), dec("30"), dec("10"), dec("10"))))
}

// =====================
// Quote
// =====================

func TestVoucherQuote_ProductAndShipping(t *testing.T) {
	ctx := context.Background()
	vouchers := new(VoucherRepoMock)
	vouchers.On("FindByCode", mock.Anything, "BOOK10").Return(activeVoucher(1, "BOOK10", model.VoucherCategoryProduct, model.DiscountTypePercentage, "10"), nil)
	vouchers.On("FindByCode", mock.Anything, "FREESHIP").Return(activeVoucher(2, "FREESHIP", model.VoucherCategoryShipping, model.DiscountTypeFixed, "30"), nil)
	vouchers.On("CountUsageByCustomer", mock.Anything, mock.Anything, int64(7)).Return(int64(0), nil)

	calc := NewVoucherCalculator(func() time.Time { return testNow })
	q, err := calc.Quote(ctx, vouchers, VoucherQuoteInput{
		CustomerID:  7,
		OrderType:   model.OrderTypeOnline,
		Subtotal:    dec("300"),
		ShippingFee: dec("30"),
		Codes:       []string{" book10 ", "freeship"},
	})
	require.NoError(t, err)

	require.NotNil(t, q.Product)
	require.NotNil(t, q.Shipping)
	assert.True(t, dec("30").Equal(q.ProductDiscount))
	assert.True(t, dec("30").Equal(q.ShippingDiscount))
	assert.True(t, dec("270").Equal(q.Total))
	vouchers.AssertExpectations(t)
}

func TestVoucherQuote_NoCodes(t *testing.T) {
	vouchers := new(VoucherRepoMock)
	calc := NewVoucherCalculator(func() time.Time { return testNow })

	q, err := calc.Quote(context.Background(), vouchers, VoucherQuoteInput{Subtotal: dec("50"), ShippingFee: dec("30")})
	require.NoError(t, err)
	assert.Nil(t, q.Product)
	assert.True(t, dec("80").Equal(q.Total))
	vouchers.AssertNotCalled(t, "FindByCode", mock.Anything, mock.Anything)
}

func TestVoucherQuote_TooMany(t *testing.T) {
	vouchers := new(VoucherRepoMock)
	calc := NewVoucherCalculator(func() time.Time { return testNow })

	_, err := calc.Quote(context.Background(), vouchers, VoucherQuoteInput{
		Subtotal: dec("100"),
		Codes:    []string{"A", "B", "C"},
	})
	requireVoucherCode(t, err, VoucherTooMany)
	vouchers.AssertNotCalled(t, "FindByCode", mock.Anything, mock.Anything)
}

func TestVoucherQuote_SameCategoryTwice(t *testing.T) {
	vouchers := new(VoucherRepoMock)
	vouchers.On("FindByCode", mock.Anything, "A").Return(activeVoucher(1, "A", model.VoucherCategoryProduct, model.DiscountTypeFixed, "5"), nil)
	vouchers.On("FindByCode", mock.Anything, "B").Return(activeVoucher(2, "B", model.VoucherCategoryProduct, model.DiscountTypeFixed, "5"), nil)
	vouchers.On("CountUsageByCustomer", mock.Anything, mock.Anything, mock.Anything).Return(int64(0), nil)

	calc := NewVoucherCalculator(func() time.Time { return testNow })
	_, err := calc.Quote(context.Background(), vouchers, VoucherQuoteInput{
		OrderType: model.OrderTypeOnline,
		Subtotal:  dec("100"),
		Codes:     []string{"A", "B"},
	})
	requireVoucherCode(t, err, VoucherTooMany)
}

func TestVoucherQuote_Rejections(t *testing.T) {
	cases := []struct {
		name      string
		voucher   func(v model.Voucher) model.Voucher
		used      int64
		orderType model.OrderType
		shipping  string
		category  model.VoucherCategory
		wantCode  string
	}{
		{
			name:     "expired",
			voucher:  func(v model.Voucher) model.Voucher { v.EndsAt = testNow.Add(-time.Minute); return v },
			wantCode: VoucherExpired,
		},
		{
			name:     "not yet active",
			voucher:  func(v model.Voucher) model.Voucher { v.StartsAt = testNow.Add(time.Hour); return v },
			wantCode: VoucherNotYetActive,
		},
		{
			name:     "disabled",
			voucher:  func(v model.Voucher) model.Voucher { v.IsActive = false; return v },
			wantCode: VoucherDisabled,
		},
		{
			name:     "global usage exhausted",
			voucher:  func(v model.Voucher) model.Voucher { v.UsedCount = v.UsageLimit; return v },
			wantCode: VoucherUsageExhausted,
		},
		{
			name:     "per customer usage exhausted",
			voucher:  func(v model.Voucher) model.Voucher { v.UsageLimitPerUser = 1; return v },
			used:     1,
			wantCode: VoucherUsageExhausted,
		},
		{
			name:     "below minimum order",
			voucher:  func(v model.Voucher) model.Voucher { v.MinOrderValue = dec("500"); return v },
			wantCode: VoucherBelowMinimumOrder,
		},
		{
			name:      "shipping voucher on counter sale",
			voucher:   func(v model.Voucher) model.Voucher { return v },
			category:  model.VoucherCategoryShipping,
			orderType: model.OrderTypeCounter,
			shipping:  "0",
			wantCode:  VoucherNotForCounterSales,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cat := tc.category
			if cat == "" {
				cat = model.VoucherCategoryProduct
			}
			orderType := tc.orderType
			if orderType == "" {
				orderType = model.OrderTypeOnline
			}
			shipping := tc.shipping
			if shipping == "" {
				shipping = "30"
			}

			v := tc.voucher(activeVoucher(1, "CODE", cat, model.DiscountTypeFixed, "10"))
			vouchers := new(VoucherRepoMock)
			vouchers.On("FindByCode", mock.Anything, "CODE").Return(v, nil)
			vouchers.On("CountUsageByCustomer", mock.Anything, int64(1), int64(7)).Return(tc.used, nil)

			calc := NewVoucherCalculator(func() time.Time { return testNow })
			_, err := calc.Quote(context.Background(), vouchers, VoucherQuoteInput{
				CustomerID:  7,
				OrderType:   orderType,
				Subtotal:    dec("100"),
				ShippingFee: dec(shipping),
				Codes:       []string{"CODE"},
			})
			requireVoucherCode(t, err, tc.wantCode)
		})
	}
}

func TestVoucherQuote_UnknownCode(t *testing.T) {
	vouchers := new(VoucherRepoMock)
	vouchers.On("FindByCode", mock.Anything, "NOPE").Return(model.Voucher{}, repo.ErrNotFound)

	calc := NewVoucherCalculator(func() time.Time { return testNow })
	_, err := calc.Quote(context.Background(), vouchers, VoucherQuoteInput{Subtotal: dec("100"), Codes: []string{"nope"}})
	requireVoucherCode(t, err, VoucherNotFound)
}

// =====================
// 利用数の加算・戻し
// =====================

func TestVoucherRecordUsage_ExhaustedAtCommit(t *testing.T) {
	vouchers := new(VoucherRepoMock)
	vouchers.On("IncrementUsedIfAvailable", mock.Anything, int64(1)).Return(false, nil)

	calc := NewVoucherCalculator(nil)
	err := calc.recordUsage(context.Background(), vouchers, 7, 99, VoucherQuote{
		Product: &AppliedVoucher{VoucherID: 1, Code: "BOOK10", Discount: dec("10")},
	})
	requireVoucherCode(t, err, VoucherUsageExhausted)
	vouchers.AssertNotCalled(t, "CreateUsage", mock.Anything, mock.Anything)
}

func TestVoucherReleaseUsage_Idempotent(t *testing.T) {
	ctx := context.Background()
	vouchers := new(VoucherRepoMock)
	vouchers.On("ListUsageByOrder", mock.Anything, int64(99)).Return([]model.VoucherUsage{{VoucherID: 1, OrderID: 99}}, nil).Once()
	vouchers.On("DecrementUsed", mock.Anything, int64(1)).Return(nil).Once()
	vouchers.On("DeleteUsageByOrder", mock.Anything, int64(99)).Return(nil).Once()
	vouchers.On("ListUsageByOrder", mock.Anything, int64(99)).Return([]model.VoucherUsage{}, nil).Once()

	calc := NewVoucherCalculator(nil)
	n, err := calc.releaseUsage(ctx, vouchers, 99)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = calc.releaseUsage(ctx, vouchers, 99)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	vouchers.AssertExpectations(t)
}
