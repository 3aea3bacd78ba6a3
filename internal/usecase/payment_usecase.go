package usecase

import (
	"context"
	"strings"

	"bookstore/internal/domain/model"
	"bookstore/internal/platform/logger"
	repo "bookstore/internal/repository"

	"go.uber.org/zap"
)

// 決済ゲートウェイからの結果通知を注文の遷移に変える
type PaymentUsecase struct {
	tx      repo.TransactionManager
	machine *OrderStateMachine
	logger  *zap.Logger
}

func NewPaymentUsecase(tx repo.TransactionManager, machine *OrderStateMachine, log *zap.Logger) *PaymentUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentUsecase{tx: tx, machine: machine, logger: log}
}

type PaymentNotification struct {
	OrderCode    string `json:"order_code"`
	Success      bool   `json:"success"`
	ResponseCode string `json:"response_code"`
}

type PaymentResult struct {
	OrderID int64             `json:"order_id"`
	Status  model.OrderStatus `json:"status"`
	// falseなら既に処理済みで何もしていない
	Applied bool `json:"applied"`
}

// 成功はCONFIRMED、失敗はCANCELED。PENDINGでなくなった注文はそのまま受け付ける
func (u *PaymentUsecase) HandleNotification(ctx context.Context, n PaymentNotification) (PaymentResult, error) {
	code := strings.TrimSpace(n.OrderCode)
	if code == "" {
		return PaymentResult{}, validationError("order code required")
	}

	var orderID int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByCode(ctx, code)
		if err != nil {
			return dbError(err)
		}
		orderID = o.ID
		return nil
	})
	if err != nil {
		return PaymentResult{}, dbError(err)
	}

	in := TransitionInput{
		OrderID:  orderID,
		Status:   model.OrderStatusConfirmed,
		ActorID:  SystemActorID,
		onlyFrom: model.OrderStatusPending,
	}
	if !n.Success {
		in.Status = model.OrderStatusCanceled
		in.Reason = "payment failed: " + sanitizeText(n.ResponseCode, 50)
	}

	out, applied, err := u.machine.transition(ctx, in)
	if err != nil {
		return PaymentResult{}, err
	}

	log := logger.FromContext(ctx, u.logger)
	if !applied {
		log.Info("payment_notification_ignored",
			zap.String("order_code", code),
			zap.String("status", string(out.Status)),
			zap.Bool("success", n.Success),
		)
	} else {
		log.Info("payment_notification_applied",
			zap.String("order_code", code),
			zap.Bool("success", n.Success),
			zap.String("response_code", n.ResponseCode),
		)
	}
	return PaymentResult{OrderID: orderID, Status: out.Status, Applied: applied}, nil
}
