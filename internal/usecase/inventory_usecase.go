package usecase

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"
)

type InventoryUsecase struct {
	tx     repo.TransactionManager
	ledger *InventoryLedger
	clock  func() time.Time
}

func NewInventoryUsecase(tx repo.TransactionManager, ledger *InventoryLedger) *InventoryUsecase {
	return &InventoryUsecase{tx: tx, ledger: ledger, clock: time.Now}
}

// 書籍の販売可能数
func (u *InventoryUsecase) AvailableQuantity(ctx context.Context, bookID int64) (AvailabilityOutput, error) {
	if bookID <= 0 {
		return AvailabilityOutput{}, NewHTTPError(http.StatusBadRequest, "invalid book id")
	}
	var out AvailabilityOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		out, err = u.ledger.availableForBook(ctx, r, bookID)
		return err
	})
	return out, dbError(err)
}

// flash sale offer の販売可能数
func (u *InventoryUsecase) AvailableOfferQuantity(ctx context.Context, offerID int64) (AvailabilityOutput, error) {
	if offerID <= 0 {
		return AvailabilityOutput{}, NewHTTPError(http.StatusBadRequest, "invalid offer id")
	}
	var out AvailabilityOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		out, err = u.ledger.availableForOffer(ctx, r, offerID)
		return err
	})
	return out, dbError(err)
}

// 棚卸しなどによる在庫の直接調整
func (u *InventoryUsecase) AdjustStock(ctx context.Context, adminUserID int64, bookID int64, newStock int64, reason string) error {
	if adminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if bookID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid book id")
	}
	if newStock < 0 {
		return NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return NewHTTPError(http.StatusBadRequest, "reason required")
	}

	return dbError(u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//変更前の在庫（before）
		b, err := r.Books().FindByID(ctx, bookID)
		if err != nil {
			return dbError(err)
		}

		if err := r.Inventory().SetStock(ctx, bookID, newStock); err != nil {
			return dbError(err)
		}

		//履歴を作成（差分）
		now := u.clock()
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			BookID:      bookID,
			AdminUserID: adminUserID,
			Delta:       newStock - b.StockQuantity,
			Reason:      reason,
			CreatedAt:   now,
		}); err != nil {
			return dbError(err)
		}

		//監査ログを作成（在庫更新）
		return dbError(r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionUpdateStock,
			ResourceType: model.AuditResourceBook,
			ResourceID:   bookID,
			BeforeJSON:   fmt.Sprintf(`{"stock_quantity":%d}`, b.StockQuantity),
			AfterJSON:    fmt.Sprintf(`{"stock_quantity":%d}`, newStock),
			CreatedAt:    now,
		}))
	}))
}
