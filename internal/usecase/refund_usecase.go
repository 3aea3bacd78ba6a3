package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/platform/logger"
	"bookstore/internal/platform/telemetry"
	repo "bookstore/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxRefundReasonRunes = 1000
	maxRefundEvidences   = 5
)

type RefundUsecase struct {
	tx      repo.TransactionManager
	machine *OrderStateMachine
	points  *PointLedger
	logger  *zap.Logger
	metrics *telemetry.Metrics
	clock   func() time.Time
}

func NewRefundUsecase(tx repo.TransactionManager, machine *OrderStateMachine, points *PointLedger, log *zap.Logger, metrics *telemetry.Metrics) *RefundUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &RefundUsecase{tx: tx, machine: machine, points: points, logger: log, metrics: metrics, clock: machine.clock}
}

type RefundItemInput struct {
	OrderItemID int64 `json:"order_item_id"`
	Quantity    int64 `json:"quantity"`
}

type RequestRefundInput struct {
	OrderID      int64
	Type         model.RefundType
	Items        []RefundItemInput
	Reason       string
	EvidenceURLs []string
}

type RefundItemOutput struct {
	ID          int64           `json:"id"`
	OrderItemID int64           `json:"order_item_id"`
	BookID      int64           `json:"book_id"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
	RestockedAt *time.Time      `json:"restocked_at,omitempty"`
}

type RefundOutput struct {
	ID                int64                    `json:"id"`
	OrderID           int64                    `json:"order_id"`
	CustomerID        int64                    `json:"customer_id"`
	Type              model.RefundType         `json:"type"`
	Status            model.RefundStatus       `json:"status"`
	Reason            string                   `json:"reason"`
	TotalRefundAmount decimal.Decimal          `json:"total_refund_amount"`
	AdminID           *int64                   `json:"admin_id,omitempty"`
	AdminNotes        string                   `json:"admin_notes,omitempty"`
	RejectReasonCode  model.RefundRejectReason `json:"reject_reason_code,omitempty"`
	RejectNote        string                   `json:"reject_note,omitempty"`
	ApprovedAt        *time.Time               `json:"approved_at,omitempty"`
	RejectedAt        *time.Time               `json:"rejected_at,omitempty"`
	CompletedAt       *time.Time               `json:"completed_at,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
	Items             []RefundItemOutput       `json:"items"`
	EvidenceURLs      []string                 `json:"evidence_urls"`
}

func refundStateError(msg string) error {
	return &HTTPError{Status: http.StatusConflict, Message: msg, Code: "INVALID_STATE", Kind: ErrInvalidState}
}

func activeRefundExists(orderID int64) error {
	return &HTTPError{
		Status:  http.StatusConflict,
		Message: fmt.Sprintf("order %d already has an open refund request", orderID),
		Code:    "ACTIVE_REFUND_EXISTS",
		Kind:    ErrActiveRefundExists,
	}
}

func normalizeEvidenceURLs(urls []string) ([]string, error) {
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, validationError("invalid evidence url")
		}
		out = append(out, u.String())
	}
	if len(out) > maxRefundEvidences {
		return nil, validationError(fmt.Sprintf("at most %d evidence urls", maxRefundEvidences))
	}
	return out, nil
}

// 顧客の返金申請
func (u *RefundUsecase) RequestRefund(ctx context.Context, customerID int64, in RequestRefundInput) (RefundOutput, error) {
	if customerID <= 0 {
		return RefundOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.OrderID <= 0 {
		return RefundOutput{}, validationError("invalid order id")
	}
	if in.Type != model.RefundTypeFull && in.Type != model.RefundTypePartial {
		return RefundOutput{}, validationError("type must be FULL or PARTIAL")
	}
	if in.Type == model.RefundTypePartial && len(in.Items) == 0 {
		return RefundOutput{}, validationError("items required for partial refund")
	}
	reason := sanitizeText(in.Reason, maxRefundReasonRunes)
	if reason == "" {
		return RefundOutput{}, validationError("reason required")
	}
	evidences, err := normalizeEvidenceURLs(in.EvidenceURLs)
	if err != nil {
		return RefundOutput{}, err
	}

	var (
		out    RefundOutput
		change statusChange
	)
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, in.OrderID)
		if err != nil {
			return dbError(err)
		}
		if o.CustomerID != customerID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		if _, found, err := r.Refunds().FindActiveByOrderID(ctx, o.ID); err != nil {
			return dbError(err)
		} else if found {
			return activeRefundExists(o.ID)
		}

		if o.Status != model.OrderStatusDelivered && o.Status != model.OrderStatusPartiallyRefunded {
			return refundStateError(fmt.Sprintf("order in %s cannot be refunded", o.Status))
		}

		orderItems, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return dbError(err)
		}

		items, amount, err := buildRefundItems(o, orderItems, in)
		if err != nil {
			return err
		}

		now := u.clock()
		req := model.RefundRequest{
			OrderID:           o.ID,
			CustomerID:        customerID,
			Type:              in.Type,
			Status:            model.RefundStatusPending,
			Reason:            reason,
			TotalRefundAmount: amount,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		id, err := r.Refunds().Create(ctx, req)
		if errors.Is(err, repo.ErrDuplicate) {
			return activeRefundExists(o.ID)
		}
		if err != nil {
			return dbError(err)
		}
		req.ID = id

		if err := r.Refunds().CreateItems(ctx, id, items); err != nil {
			return dbError(err)
		}
		if len(evidences) > 0 {
			if err := r.Refunds().CreateEvidences(ctx, id, evidences); err != nil {
				return dbError(err)
			}
		}

		_, change, err = u.machine.advance(ctx, r, o, model.OrderStatusRefundRequested, customerID, transitionOptions{refundID: &id})
		if err != nil {
			return err
		}

		if err := emitRefundUpdated(ctx, r, o, req); err != nil {
			return err
		}
		out, err = loadRefundOutput(ctx, r, req)
		return err
	})
	if err != nil {
		return RefundOutput{}, dbError(err)
	}

	u.committed(ctx, out, change)
	return out, nil
}

// 申請明細を作る。FULLは全明細の残数量
func buildRefundItems(o model.Order, orderItems []model.OrderItem, in RequestRefundInput) ([]model.RefundItem, decimal.Decimal, error) {
	byID := make(map[int64]model.OrderItem, len(orderItems))
	for _, it := range orderItems {
		byID[it.ID] = it
	}

	remainingAmount := o.TotalAmount.Sub(o.RefundedAmount)
	if !remainingAmount.IsPositive() {
		return nil, decimal.Zero, refundStateError("nothing left to refund")
	}

	var items []model.RefundItem
	addLine := func(it model.OrderItem, qty int64) {
		items = append(items, model.RefundItem{
			OrderID:          o.ID,
			OrderItemID:      it.ID,
			BookID:           it.BookID,
			FlashSaleOfferID: it.FlashSaleOfferID,
			Quantity:         qty,
			UnitPrice:        it.UnitPrice,
			Amount:           it.UnitPrice.Mul(decimal.NewFromInt(qty)),
		})
	}

	if in.Type == model.RefundTypeFull {
		for _, it := range orderItems {
			if rem := it.RemainingQuantity(); rem > 0 {
				addLine(it, rem)
			}
		}
		if len(items) == 0 {
			return nil, decimal.Zero, refundStateError("nothing left to refund")
		}
		return items, remainingAmount, nil
	}

	seen := make(map[int64]struct{}, len(in.Items))
	amount := decimal.Zero
	for _, ri := range in.Items {
		it, ok := byID[ri.OrderItemID]
		if !ok {
			return nil, decimal.Zero, validationError(fmt.Sprintf("order item %d not in order", ri.OrderItemID))
		}
		if _, dup := seen[it.ID]; dup {
			return nil, decimal.Zero, validationError(fmt.Sprintf("order item %d listed twice", it.ID))
		}
		seen[it.ID] = struct{}{}
		if ri.Quantity < 1 || ri.Quantity > it.RemainingQuantity() {
			return nil, decimal.Zero, validationError(fmt.Sprintf("refund quantity for order item %d must be between 1 and %d", it.ID, it.RemainingQuantity()))
		}
		addLine(it, ri.Quantity)
		amount = amount.Add(items[len(items)-1].Amount)
	}

	// 割引後の支払額を超えない
	if amount.GreaterThan(remainingAmount) {
		amount = remainingAmount
	}
	return items, amount, nil
}

// 承認。在庫はまだ動かさない
func (u *RefundUsecase) Approve(ctx context.Context, adminID int64, requestID int64, notes string) (RefundOutput, error) {
	notes = sanitizeText(notes, maxRefundReasonRunes)
	return u.decide(ctx, adminID, requestID, func(ctx context.Context, r repo.TxRepos, req *model.RefundRequest, o model.Order, now time.Time) (statusChange, error) {
		if req.Status != model.RefundStatusPending {
			return statusChange{}, refundStateError(fmt.Sprintf("refund request is %s, not PENDING", req.Status))
		}
		req.Status = model.RefundStatusApproved
		req.AdminNotes = notes
		req.ApprovedAt = &now

		_, change, err := u.machine.advance(ctx, r, o, model.OrderStatusAwaitingGoodsReturn, adminID, transitionOptions{refundID: &req.ID})
		return change, err
	})
}

// 却下。注文はDELIVEREDへ戻る（配達時の副作用は繰り返さない）
func (u *RefundUsecase) Reject(ctx context.Context, adminID int64, requestID int64, code model.RefundRejectReason, note string) (RefundOutput, error) {
	if !code.IsValid() {
		return RefundOutput{}, validationError("invalid reject reason")
	}
	note = sanitizeText(note, maxRefundReasonRunes)
	if code == model.RefundRejectOther && note == "" {
		return RefundOutput{}, validationError("note required for OTHER")
	}
	return u.decide(ctx, adminID, requestID, func(ctx context.Context, r repo.TxRepos, req *model.RefundRequest, o model.Order, now time.Time) (statusChange, error) {
		if req.Status != model.RefundStatusPending {
			return statusChange{}, refundStateError(fmt.Sprintf("refund request is %s, not PENDING", req.Status))
		}
		req.Status = model.RefundStatusRejected
		req.RejectReasonCode = code
		req.RejectNote = note
		req.RejectedAt = &now

		_, change, err := u.machine.advance(ctx, r, o, model.OrderStatusDelivered, adminID, transitionOptions{refundID: &req.ID})
		return change, err
	})
}

// 精算。商品が倉庫に戻った後だけ
func (u *RefundUsecase) Settle(ctx context.Context, adminID int64, requestID int64) (RefundOutput, error) {
	return u.decide(ctx, adminID, requestID, func(ctx context.Context, r repo.TxRepos, req *model.RefundRequest, o model.Order, now time.Time) (statusChange, error) {
		if req.Status != model.RefundStatusApproved {
			return statusChange{}, refundStateError(fmt.Sprintf("refund request is %s, not APPROVED", req.Status))
		}
		if o.Status != model.OrderStatusGoodsReturnedToWarehouse {
			return statusChange{}, refundStateError(fmt.Sprintf("order is %s, goods must be back in the warehouse before settlement", o.Status))
		}

		refundItems, err := r.Refunds().ListItems(ctx, req.ID)
		if err != nil {
			return statusChange{}, dbError(err)
		}
		orderItems, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return statusChange{}, dbError(err)
		}
		byID := make(map[int64]model.OrderItem, len(orderItems))
		for _, it := range orderItems {
			byID[it.ID] = it
		}

		for _, ri := range refundItems {
			it, ok := byID[ri.OrderItemID]
			if !ok || it.RefundedQuantity+ri.Quantity > it.Quantity {
				return statusChange{}, &HTTPError{Status: http.StatusInternalServerError, Message: "internal error",
					Kind: fmt.Errorf("%w: refund item %d exceeds ordered quantity", ErrInvariantViolation, ri.ID)}
			}
			it.RefundedQuantity += ri.Quantity
			if err := r.OrderItems().Save(ctx, it); err != nil {
				return statusChange{}, dbError(err)
			}
			byID[it.ID] = it
		}

		o.RefundedAmount = o.RefundedAmount.Add(req.TotalRefundAmount)
		if o.RefundedAmount.GreaterThan(o.TotalAmount) {
			return statusChange{}, &HTTPError{Status: http.StatusInternalServerError, Message: "internal error",
				Kind: fmt.Errorf("%w: order %d refunded more than paid", ErrInvariantViolation, o.ID)}
		}

		fully := true
		for _, it := range byID {
			if it.RemainingQuantity() > 0 {
				fully = false
				break
			}
		}

		req.Status = model.RefundStatusCompleted
		req.CompletedAt = &now

		to := model.OrderStatusRefunded
		if !fully {
			to = model.OrderStatusPartiallyRefunded
			if _, err := u.points.deductProportional(ctx, r, o, req.TotalRefundAmount, &req.ID); err != nil {
				return statusChange{}, err
			}
		}
		_, change, err := u.machine.advance(ctx, r, o, to, adminID, transitionOptions{refundID: &req.ID})
		return change, err
	})
}

type refundDecision func(ctx context.Context, r repo.TxRepos, req *model.RefundRequest, o model.Order, now time.Time) (statusChange, error)

func (u *RefundUsecase) decide(ctx context.Context, adminID int64, requestID int64, fn refundDecision) (RefundOutput, error) {
	if adminID <= 0 {
		return RefundOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if requestID <= 0 {
		return RefundOutput{}, validationError("invalid id")
	}

	var (
		out     RefundOutput
		change  statusChange
		orderID int64
	)
	err := retryOnConflict(func() error {
		change = statusChange{}
		return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			req, err := r.Refunds().FindByIDForUpdate(ctx, requestID)
			if err != nil {
				return dbError(err)
			}
			orderID = req.OrderID
			o, err := r.Orders().FindByIDForUpdate(ctx, req.OrderID)
			if err != nil {
				return dbError(err)
			}

			now := u.clock()
			beforeStatus := req.Status
			change, err = fn(ctx, r, &req, o, now)
			if err != nil {
				return err
			}
			req.AdminID = &adminID
			req.UpdatedAt = now
			if err := r.Refunds().Save(ctx, req); err != nil {
				return dbError(err)
			}

			before, _ := json.Marshal(map[string]string{"status": string(beforeStatus)})
			after, _ := json.Marshal(map[string]string{"status": string(req.Status)})
			if err := r.AuditLogs().Create(ctx, model.AuditLog{
				ActorUserID:  adminID,
				Action:       model.AuditActionRefundDecision,
				ResourceType: model.AuditResourceRefund,
				ResourceID:   req.ID,
				BeforeJSON:   string(before),
				AfterJSON:    string(after),
				CreatedAt:    now,
			}); err != nil {
				return dbError(err)
			}

			if err := emitRefundUpdated(ctx, r, o, req); err != nil {
				return err
			}
			out, err = loadRefundOutput(ctx, r, req)
			return err
		})
	})
	if err != nil {
		u.machine.logFailure(ctx, err, orderID)
		return RefundOutput{}, dbError(err)
	}

	u.committed(ctx, out, change)
	return out, nil
}

func (u *RefundUsecase) committed(ctx context.Context, out RefundOutput, change statusChange) {
	logger.FromContext(ctx, u.logger).Info("refund_request_updated",
		zap.Int64("refund_request_id", out.ID),
		zap.Int64("order_id", out.OrderID),
		zap.String("status", string(out.Status)),
		zap.String("amount", out.TotalRefundAmount.StringFixed(2)),
	)
	u.metrics.RecordRefund(ctx, string(out.Status))
	if change.orderID != 0 {
		u.machine.committed(ctx, change)
	}
}

// 顧客向け：自分の注文の申請一覧
func (u *RefundUsecase) ListForOrder(ctx context.Context, customerID int64, orderID int64) ([]RefundOutput, error) {
	if customerID <= 0 {
		return nil, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return u.list(ctx, orderID, func(o model.Order) bool { return o.CustomerID == customerID })
}

// 管理者向け
func (u *RefundUsecase) ListForOrderAdmin(ctx context.Context, orderID int64) ([]RefundOutput, error) {
	return u.list(ctx, orderID, func(model.Order) bool { return true })
}

func (u *RefundUsecase) list(ctx context.Context, orderID int64, visible func(model.Order) bool) ([]RefundOutput, error) {
	if orderID <= 0 {
		return nil, validationError("invalid order id")
	}
	var outs []RefundOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return dbError(err)
		}
		if !visible(o) {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		reqs, err := r.Refunds().ListByOrderID(ctx, orderID)
		if err != nil {
			return dbError(err)
		}
		outs = make([]RefundOutput, 0, len(reqs))
		for _, req := range reqs {
			out, err := loadRefundOutput(ctx, r, req)
			if err != nil {
				return err
			}
			outs = append(outs, out)
		}
		return nil
	})
	if err != nil {
		return nil, dbError(err)
	}
	return outs, nil
}

// customerID が0なら管理者として見る
func (u *RefundUsecase) Get(ctx context.Context, customerID int64, requestID int64) (RefundOutput, error) {
	if requestID <= 0 {
		return RefundOutput{}, validationError("invalid id")
	}
	var out RefundOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		req, err := r.Refunds().FindByID(ctx, requestID)
		if err != nil {
			return dbError(err)
		}
		if customerID != 0 && req.CustomerID != customerID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		out, err = loadRefundOutput(ctx, r, req)
		return err
	})
	if err != nil {
		return RefundOutput{}, dbError(err)
	}
	return out, nil
}

func emitRefundUpdated(ctx context.Context, r repo.TxRepos, o model.Order, req model.RefundRequest) error {
	return emitEvent(ctx, r, EventRefundUpdated, o.Code, refundUpdatedEvent{
		RefundRequestID: req.ID,
		OrderID:         o.ID,
		Status:          req.Status,
		Amount:          req.TotalRefundAmount.StringFixed(2),
	})
}

func loadRefundOutput(ctx context.Context, r repo.TxRepos, req model.RefundRequest) (RefundOutput, error) {
	items, err := r.Refunds().ListItems(ctx, req.ID)
	if err != nil {
		return RefundOutput{}, dbError(err)
	}
	evidences, err := r.Refunds().ListEvidences(ctx, req.ID)
	if err != nil {
		return RefundOutput{}, dbError(err)
	}

	out := RefundOutput{
		ID:                req.ID,
		OrderID:           req.OrderID,
		CustomerID:        req.CustomerID,
		Type:              req.Type,
		Status:            req.Status,
		Reason:            req.Reason,
		TotalRefundAmount: req.TotalRefundAmount,
		AdminID:           req.AdminID,
		AdminNotes:        req.AdminNotes,
		RejectReasonCode:  req.RejectReasonCode,
		RejectNote:        req.RejectNote,
		ApprovedAt:        req.ApprovedAt,
		RejectedAt:        req.RejectedAt,
		CompletedAt:       req.CompletedAt,
		CreatedAt:         req.CreatedAt,
		Items:             make([]RefundItemOutput, 0, len(items)),
		EvidenceURLs:      make([]string, 0, len(evidences)),
	}
	for _, it := range items {
		out.Items = append(out.Items, RefundItemOutput{
			ID:          it.ID,
			OrderItemID: it.OrderItemID,
			BookID:      it.BookID,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Amount:      it.Amount,
			RestockedAt: it.RestockedAt,
		})
	}
	for _, e := range evidences {
		out.EvidenceURLs = append(out.EvidenceURLs, e.URL)
	}
	return out, nil
}
