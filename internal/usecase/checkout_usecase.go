package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/platform/logger"
	"bookstore/internal/platform/telemetry"
	repo "bookstore/internal/repository"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	maxCheckoutLines    = 50
	maxLineQuantity     = 99
	orderCodePrefix     = "ORD-"
	maxAddressLineRunes = 500
)

// 送料の見積もり
type ShippingFeeQuoter interface {
	Quote(ctx context.Context, orderType model.OrderType, addr ShippingAddress) (decimal.Decimal, error)
}

// 全国一律送料。店頭販売は0
type FlatShippingFee struct {
	Fee decimal.Decimal
}

func (f FlatShippingFee) Quote(ctx context.Context, orderType model.OrderType, addr ShippingAddress) (decimal.Decimal, error) {
	if orderType == model.OrderTypeCounter {
		return decimal.Zero, nil
	}
	return f.Fee, nil
}

type CheckoutDeps struct {
	Tx       repo.TransactionManager
	Machine  *OrderStateMachine
	Shipping ShippingFeeQuoter
	Logger   *zap.Logger
	Metrics  *telemetry.Metrics
}

type CheckoutUsecase struct {
	tx       repo.TransactionManager
	machine  *OrderStateMachine
	shipping ShippingFeeQuoter
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	sessions *keyedMutex
	newCode  func() string
}

func NewCheckoutUsecase(d CheckoutDeps) *CheckoutUsecase {
	u := &CheckoutUsecase{
		tx:       d.Tx,
		machine:  d.Machine,
		shipping: d.Shipping,
		logger:   d.Logger,
		metrics:  d.Metrics,
		sessions: newKeyedMutex(),
		newCode:  func() string { return orderCodePrefix + ulid.Make().String() },
	}
	if u.logger == nil {
		u.logger = zap.NewNop()
	}
	if u.shipping == nil {
		u.shipping = FlatShippingFee{}
	}
	return u
}

// 住所は呼び出し側で解決済みのものを受け取る
type ShippingAddress struct {
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"phone"`
	AddressLine   string `json:"address_line"`
}

type CheckoutLineInput struct {
	BookID   int64 `json:"book_id"`
	Quantity int64 `json:"quantity"`
	// 画面に出していた単価。差分表示にだけ使う
	ClientUnitPrice *decimal.Decimal `json:"client_unit_price,omitempty"`
}

type CheckoutInput struct {
	SessionID     string
	OrderType     model.OrderType
	PaymentMethod model.PaymentMethod
	StaffID       *int64
	Address       ShippingAddress
	Lines         []CheckoutLineInput
	VoucherCodes  []string
}

type PricedLine struct {
	BookID           int64           `json:"book_id"`
	FlashSaleOfferID *int64          `json:"flash_sale_offer_id,omitempty"`
	Title            string          `json:"title"`
	Quantity         int64           `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	LineTotal        decimal.Decimal `json:"line_total"`
}

type PriceChange struct {
	BookID      int64           `json:"book_id"`
	ClientPrice decimal.Decimal `json:"client_price"`
	ServerPrice decimal.Decimal `json:"server_price"`
}

type CheckoutPreview struct {
	Lines        []PricedLine    `json:"lines"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingFee  decimal.Decimal `json:"shipping_fee"`
	Vouchers     VoucherQuote    `json:"vouchers"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	PriceChanges []PriceChange   `json:"price_changes"`
}

type CheckoutOutput struct {
	Order        OrderOutput   `json:"order"`
	PriceChanges []PriceChange `json:"price_changes"`
}

type CheckoutSessionOutput struct {
	SessionID string `json:"session_id"`
}

func sessionConsumed() error {
	return &HTTPError{
		Status:  http.StatusConflict,
		Message: "checkout session already used",
		Code:    "CHECKOUT_SESSION_CONSUMED",
		Kind:    ErrCheckoutSessionConsumed,
	}
}

// 新しいチェックアウトセッションを払い出す
func (u *CheckoutUsecase) NewSession(ctx context.Context) CheckoutSessionOutput {
	return CheckoutSessionOutput{SessionID: uuid.NewString()}
}

func validateCheckout(customerID int64, in *CheckoutInput, requireSession bool) error {
	if customerID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if requireSession {
		if _, err := uuid.Parse(strings.TrimSpace(in.SessionID)); err != nil {
			return validationError("invalid checkout session")
		}
		in.SessionID = strings.ToLower(strings.TrimSpace(in.SessionID))
	}

	switch in.OrderType {
	case model.OrderTypeOnline:
		if in.PaymentMethod != model.PaymentMethodCOD && in.PaymentMethod != model.PaymentMethodOnline {
			return validationError("online orders are paid by COD or ONLINE")
		}
		in.Address.RecipientName = sanitizeText(in.Address.RecipientName, 255)
		in.Address.Phone = strings.TrimSpace(in.Address.Phone)
		in.Address.AddressLine = sanitizeText(in.Address.AddressLine, maxAddressLineRunes)
		if in.Address.RecipientName == "" || in.Address.Phone == "" || in.Address.AddressLine == "" {
			return validationError("shipping address required")
		}
	case model.OrderTypeCounter:
		if in.PaymentMethod != model.PaymentMethodCash && in.PaymentMethod != model.PaymentMethodOnline {
			return validationError("counter orders are paid by CASH or ONLINE")
		}
		if in.StaffID == nil || *in.StaffID <= 0 {
			return validationError("staff id required for counter orders")
		}
	default:
		return validationError("invalid order type")
	}

	if len(in.Lines) == 0 {
		return validationError("at least one line required")
	}
	if len(in.Lines) > maxCheckoutLines {
		return validationError(fmt.Sprintf("at most %d lines", maxCheckoutLines))
	}
	seen := make(map[int64]struct{}, len(in.Lines))
	for _, l := range in.Lines {
		if l.BookID <= 0 {
			return validationError("invalid book id")
		}
		if l.Quantity < 1 || l.Quantity > maxLineQuantity {
			return validationError(fmt.Sprintf("quantity must be between 1 and %d", maxLineQuantity))
		}
		if _, dup := seen[l.BookID]; dup {
			return validationError(fmt.Sprintf("book %d listed twice", l.BookID))
		}
		seen[l.BookID] = struct{}{}
	}
	return nil
}

// 価格はすべてサーバ側で決め直す。クライアントの単価は信用しない
func (u *CheckoutUsecase) priceLines(ctx context.Context, r repo.TxRepos, lines []CheckoutLineInput, now time.Time) ([]PricedLine, []PriceChange, decimal.Decimal, error) {
	priced := make([]PricedLine, 0, len(lines))
	changes := make([]PriceChange, 0)
	subtotal := decimal.Zero

	for _, l := range lines {
		b, err := r.Books().FindByID(ctx, l.BookID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, decimal.Zero, validationError(fmt.Sprintf("book %d not found", l.BookID))
		}
		if err != nil {
			return nil, nil, decimal.Zero, dbError(err)
		}
		if !b.IsActive {
			return nil, nil, decimal.Zero, validationError(fmt.Sprintf("book %d is not on sale", l.BookID))
		}

		line := PricedLine{
			BookID:    b.ID,
			Title:     b.Title,
			Quantity:  l.Quantity,
			UnitPrice: b.EffectivePrice(),
		}

		// 期間中のofferで在庫が足りる一番安いもの
		offers, err := r.FlashSales().ListOpenOffersForBook(ctx, b.ID, now)
		if err != nil {
			return nil, nil, decimal.Zero, dbError(err)
		}
		for _, of := range offers {
			if of.StockQuantity >= l.Quantity && of.FlashPrice.LessThan(line.UnitPrice) {
				id := of.ID
				line.FlashSaleOfferID = &id
				line.UnitPrice = of.FlashPrice
				break
			}
		}

		line.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity))
		subtotal = subtotal.Add(line.LineTotal)
		priced = append(priced, line)

		if l.ClientUnitPrice != nil && !l.ClientUnitPrice.Equal(line.UnitPrice) {
			changes = append(changes, PriceChange{BookID: b.ID, ClientPrice: *l.ClientUnitPrice, ServerPrice: line.UnitPrice})
		}
	}
	return priced, changes, subtotal, nil
}

func (u *CheckoutUsecase) quote(ctx context.Context, r repo.TxRepos, customerID int64, in CheckoutInput, now time.Time) (CheckoutPreview, error) {
	lines, changes, subtotal, err := u.priceLines(ctx, r, in.Lines, now)
	if err != nil {
		return CheckoutPreview{}, err
	}
	fee, err := u.shipping.Quote(ctx, in.OrderType, in.Address)
	if err != nil {
		return CheckoutPreview{}, err
	}
	vq, err := u.machine.vouchers.Quote(ctx, r.Vouchers(), VoucherQuoteInput{
		CustomerID:  customerID,
		OrderType:   in.OrderType,
		Subtotal:    subtotal,
		ShippingFee: fee,
		Codes:       in.VoucherCodes,
	})
	if err != nil {
		return CheckoutPreview{}, err
	}
	return CheckoutPreview{
		Lines:        lines,
		Subtotal:     subtotal,
		ShippingFee:  fee,
		Vouchers:     vq,
		TotalAmount:  vq.Total,
		PriceChanges: changes,
	}, nil
}

// 確保も保存もしない見積もり
func (u *CheckoutUsecase) PreviewOrder(ctx context.Context, customerID int64, in CheckoutInput) (CheckoutPreview, error) {
	if err := validateCheckout(customerID, &in, false); err != nil {
		return CheckoutPreview{}, err
	}
	var out CheckoutPreview
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		out, err = u.quote(ctx, r, customerID, in, u.machine.clock())
		return err
	})
	if err != nil {
		return CheckoutPreview{}, dbError(err)
	}
	return out, nil
}

// 注文作成。1セッションから作れる注文は1件だけ
func (u *CheckoutUsecase) PlaceOrder(ctx context.Context, customerID int64, in CheckoutInput) (CheckoutOutput, error) {
	if err := validateCheckout(customerID, &in, true); err != nil {
		return CheckoutOutput{}, err
	}

	unlock := u.sessions.Lock(in.SessionID)
	defer unlock()

	ctx, span := telemetry.Tracer().Start(ctx, "Checkout.PlaceOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.type", string(in.OrderType)))

	log := logger.FromContext(ctx, u.logger)

	var (
		out     CheckoutOutput
		changes []statusChange
	)
	err := retryOnConflict(func() error {
		changes = nil
		return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			if _, found, err := r.Orders().FindByCheckoutSession(ctx, in.SessionID); err != nil {
				return dbError(err)
			} else if found {
				return sessionConsumed()
			}

			now := u.machine.clock()
			p, err := u.quote(ctx, r, customerID, in, now)
			if err != nil {
				return err
			}

			// 在庫確保（条件付き減算）
			for _, l := range p.Lines {
				if err := u.machine.inventory.reserveLine(ctx, r, l.BookID, l.FlashSaleOfferID, l.Quantity); err != nil {
					return err
				}
			}

			actor := customerID
			if in.StaffID != nil {
				actor = *in.StaffID
			}
			o := model.Order{
				Code:              u.newCode(),
				CustomerID:        customerID,
				StaffID:           in.StaffID,
				CheckoutSessionID: in.SessionID,
				OrderType:         in.OrderType,
				PaymentMethod:     in.PaymentMethod,
				RecipientName:     in.Address.RecipientName,
				Phone:             in.Address.Phone,
				AddressLine:       in.Address.AddressLine,
				Subtotal:          p.Subtotal,
				ShippingFee:       p.ShippingFee,
				ProductDiscount:   p.Vouchers.ProductDiscount,
				ShippingDiscount:  p.Vouchers.ShippingDiscount,
				TotalAmount:       p.TotalAmount,
				RefundedAmount:    decimal.Zero,
				Status:            model.OrderStatusPending,
				StockHeld:         true,
				CreatedBy:         actor,
				UpdatedBy:         actor,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if p.Vouchers.Product != nil {
				id := p.Vouchers.Product.VoucherID
				o.ProductVoucherID = &id
			}
			if p.Vouchers.Shipping != nil {
				id := p.Vouchers.Shipping.VoucherID
				o.ShippingVoucherID = &id
			}

			o.ID, err = r.Orders().Create(ctx, o)
			if errors.Is(err, repo.ErrDuplicate) {
				return sessionConsumed()
			}
			if err != nil {
				return dbError(err)
			}

			items := make([]model.OrderItem, 0, len(p.Lines))
			for _, l := range p.Lines {
				items = append(items, model.OrderItem{
					OrderID:          o.ID,
					BookID:           l.BookID,
					FlashSaleOfferID: l.FlashSaleOfferID,
					TitleSnapshot:    l.Title,
					UnitPrice:        l.UnitPrice,
					Quantity:         l.Quantity,
					CreatedAt:        now,
				})
			}
			if err := r.OrderItems().CreateBulk(ctx, o.ID, items); err != nil {
				return dbError(err)
			}

			// 注文が作られた後で利用数を加算
			if err := u.machine.vouchers.recordUsage(ctx, r.Vouchers(), customerID, o.ID, p.Vouchers); err != nil {
				return err
			}

			if err := emitEvent(ctx, r, EventOrderCreated, o.Code, toOrderOutput(o, items)); err != nil {
				return err
			}

			// 店頭の現金払いはその場で確定
			if o.OrderType == model.OrderTypeCounter && o.PaymentMethod == model.PaymentMethodCash {
				var c statusChange
				o, c, err = u.machine.advance(ctx, r, o, model.OrderStatusConfirmed, actor, transitionOptions{})
				if err != nil {
					return err
				}
				changes = append(changes, c)
			}

			order, err := loadOrderOutput(ctx, r, o)
			if err != nil {
				return err
			}
			out = CheckoutOutput{Order: order, PriceChanges: p.PriceChanges}
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		return CheckoutOutput{}, dbError(err)
	}

	log.Info("order_created",
		zap.Int64("order_id", out.Order.ID),
		zap.String("order_code", out.Order.Code),
		zap.Int64("customer_id", customerID),
		zap.String("total", out.Order.TotalAmount.StringFixed(2)),
	)
	if len(out.PriceChanges) > 0 {
		log.Info("checkout_price_changed",
			zap.Int64("order_id", out.Order.ID),
			zap.Int("lines", len(out.PriceChanges)),
		)
	}
	u.metrics.RecordOrderCreated(ctx, string(in.OrderType))
	u.machine.committed(ctx, changes...)
	return out, nil
}
