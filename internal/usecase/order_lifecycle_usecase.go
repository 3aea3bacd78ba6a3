package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/platform/logger"
	"bookstore/internal/platform/telemetry"
	repo "bookstore/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// 決済通知など、人ではない操作者
const SystemActorID int64 = 0

type OrderStateMachineDeps struct {
	Tx        repo.TransactionManager
	Inventory *InventoryLedger
	Vouchers  *VoucherCalculator
	Points    *PointLedger
	Logger    *zap.Logger
	Metrics   *telemetry.Metrics
	Clock     func() time.Time
}

// 注文ステータスの唯一の書き手。副作用は全部ステータス更新と同じトランザクションで行う
type OrderStateMachine struct {
	tx        repo.TransactionManager
	inventory *InventoryLedger
	vouchers  *VoucherCalculator
	points    *PointLedger
	logger    *zap.Logger
	metrics   *telemetry.Metrics
	clock     func() time.Time
}

func NewOrderStateMachine(d OrderStateMachineDeps) *OrderStateMachine {
	m := &OrderStateMachine{
		tx:        d.Tx,
		inventory: d.Inventory,
		vouchers:  d.Vouchers,
		points:    d.Points,
		logger:    d.Logger,
		metrics:   d.Metrics,
		clock:     d.Clock,
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.clock == nil {
		m.clock = time.Now
	}
	return m
}

type TransitionInput struct {
	OrderID int64
	Status  model.OrderStatus
	ActorID int64
	// 呼び出し側が思っている現在値。照合してログに出すだけ
	ExpectedStatus model.OrderStatus
	Reason         string

	// 設定時、現在値がこれ以外なら何もしない（決済通知の重複など）
	onlyFrom model.OrderStatus
}

type transitionOptions struct {
	reason   string
	refundID *int64
}

// コミット後にログとメトリクスへ流す記録
type statusChange struct {
	orderID int64
	code    string
	from    model.OrderStatus
	to      model.OrderStatus
	actorID int64
}

// スタッフ・管理者による遷移
func (m *OrderStateMachine) Transition(ctx context.Context, in TransitionInput) (OrderOutput, error) {
	if in.ActorID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	out, _, err := m.transition(ctx, in)
	return out, err
}

// 戻り値のboolはステータスが変わったかどうか
func (m *OrderStateMachine) transition(ctx context.Context, in TransitionInput) (OrderOutput, bool, error) {
	if in.OrderID <= 0 {
		return OrderOutput{}, false, validationError("invalid id")
	}
	if !in.Status.IsValid() {
		return OrderOutput{}, false, validationError("invalid status")
	}

	ctx, span := telemetry.Tracer().Start(ctx, "OrderStateMachine.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.id", in.OrderID),
		attribute.String("order.status.to", string(in.Status)),
	)

	log := logger.FromContext(ctx, m.logger)

	var (
		out    OrderOutput
		change *statusChange
	)
	err := retryOnConflict(func() error {
		change = nil
		return m.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			o, err := r.Orders().FindByIDForUpdate(ctx, in.OrderID)
			if err != nil {
				return dbError(err)
			}

			if in.ExpectedStatus != "" && in.ExpectedStatus != o.Status {
				log.Warn("order_status_hint_mismatch",
					zap.Int64("order_id", o.ID),
					zap.String("expected", string(in.ExpectedStatus)),
					zap.String("actual", string(o.Status)),
				)
			}

			// 配達完了の二重送信と、決済通知の対象外ステータスは副作用なしで成功
			if (o.Status == model.OrderStatusDelivered && in.Status == model.OrderStatusDelivered) ||
				(in.onlyFrom != "" && o.Status != in.onlyFrom) {
				out, err = loadOrderOutput(ctx, r, o)
				return err
			}

			if isRefundWorkflowTransition(o.Status, in.Status) {
				return invalidTransition(o.Status, in.Status)
			}

			o, c, err := m.advance(ctx, r, o, in.Status, in.ActorID, transitionOptions{reason: in.Reason})
			if err != nil {
				return err
			}
			change = &c

			out, err = loadOrderOutput(ctx, r, o)
			return err
		})
	})
	if err != nil {
		m.logFailure(ctx, err, in.OrderID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return OrderOutput{}, false, dbError(err)
	}

	if change == nil {
		return out, false, nil
	}
	m.committed(ctx, *change)
	return out, true, nil
}

// 遷移表の確認つきで適用する（返金フローやチェックアウトからも使う）
func (m *OrderStateMachine) advance(ctx context.Context, r repo.TxRepos, o model.Order, to model.OrderStatus, actorID int64, opts transitionOptions) (model.Order, statusChange, error) {
	if !CanTransition(o.Status, to) {
		return o, statusChange{}, invalidTransition(o.Status, to)
	}
	return m.apply(ctx, r, o, to, actorID, opts)
}

func (m *OrderStateMachine) apply(ctx context.Context, r repo.TxRepos, o model.Order, to model.OrderStatus, actorID int64, opts transitionOptions) (model.Order, statusChange, error) {
	from := o.Status
	now := m.clock()

	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return o, statusChange{}, dbError(err)
	}

	switch to {
	case model.OrderStatusDelivered:
		// 販売数とポイントは初回の配達完了だけ
		if o.DeliveredAt == nil {
			if err := m.inventory.recordSold(ctx, r, items); err != nil {
				return o, statusChange{}, err
			}
			o.DeliveredAt = &now
			if _, err := m.points.earn(ctx, r, o); err != nil {
				return o, statusChange{}, err
			}
		}
		o.StockHeld = false

	case model.OrderStatusDeliveryFailed:
		if o.StockHeld {
			if err := m.inventory.release(ctx, r, items); err != nil {
				return o, statusChange{}, err
			}
			o.StockHeld = false
		}

	case model.OrderStatusRedelivering:
		if !o.StockHeld {
			if err := m.inventory.reserve(ctx, r, items); err != nil {
				return o, statusChange{}, err
			}
			o.StockHeld = true
		}

	case model.OrderStatusCanceled:
		if o.StockHeld {
			if err := m.inventory.release(ctx, r, items); err != nil {
				return o, statusChange{}, err
			}
			o.StockHeld = false
		}
		// バウチャーの利用数はキャンセルでは戻さない
		if _, err := m.points.deductRemaining(ctx, r, o, nil, "order "+o.Code+" canceled"); err != nil {
			return o, statusChange{}, err
		}
		if reason := sanitizeText(opts.reason, 500); reason != "" {
			o.CancelReason = reason
		}

	case model.OrderStatusGoodsReturnedToWarehouse:
		if _, err := m.inventory.restockReturned(ctx, r, o, now); err != nil {
			return o, statusChange{}, err
		}
		if _, err := m.vouchers.releaseUsage(ctx, r.Vouchers(), o.ID); err != nil {
			return o, statusChange{}, err
		}

	case model.OrderStatusRefunded:
		if _, err := m.points.deductRemaining(ctx, r, o, opts.refundID, "order "+o.Code+" refunded"); err != nil {
			return o, statusChange{}, err
		}
	}

	o.Status = to
	o.UpdatedBy = actorID
	o.UpdatedAt = now
	if err := r.Orders().Save(ctx, o); err != nil {
		return o, statusChange{}, dbError(err)
	}

	before, _ := json.Marshal(map[string]string{"status": string(from)})
	after, _ := json.Marshal(map[string]string{"status": string(to)})
	if err := r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       model.AuditActionUpdateOrderStatus,
		ResourceType: model.AuditResourceOrder,
		ResourceID:   o.ID,
		BeforeJSON:   string(before),
		AfterJSON:    string(after),
		CreatedAt:    now,
	}); err != nil {
		return o, statusChange{}, dbError(err)
	}

	if err := emitEvent(ctx, r, EventOrderStatusChanged, o.Code, orderStatusChangedEvent{
		OrderID:   o.ID,
		OrderCode: o.Code,
		From:      from,
		To:        to,
		ActorID:   actorID,
	}); err != nil {
		return o, statusChange{}, err
	}

	return o, statusChange{orderID: o.ID, code: o.Code, from: from, to: to, actorID: actorID}, nil
}

func (m *OrderStateMachine) committed(ctx context.Context, changes ...statusChange) {
	log := logger.FromContext(ctx, m.logger)
	for _, c := range changes {
		log.Info("order_status_changed",
			zap.Int64("order_id", c.orderID),
			zap.String("order_code", c.code),
			zap.String("from", string(c.from)),
			zap.String("to", string(c.to)),
			zap.Int64("actor_id", c.actorID),
		)
		m.metrics.RecordTransition(ctx, string(c.from), string(c.to))
	}
}

// 不変条件違反は握りつぶさずエラーログへ
func (m *OrderStateMachine) logFailure(ctx context.Context, err error, orderID int64) {
	if errors.Is(err, ErrInvariantViolation) {
		logger.FromContext(ctx, m.logger).Error("order_invariant_violation",
			zap.Int64("order_id", orderID),
			zap.Error(errors.Unwrap(err)),
		)
	}
}
