package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestWithinTx_RollbackOnError(t *testing.T) {
	s := NewStore()
	id := s.PutBook(model.Book{Title: "B", Price: decimal.NewFromInt(10), StockQuantity: 5, IsActive: true})

	err := s.WithinTx(context.Background(), func(r repo.TxRepos) error {
		ok, err := r.Inventory().DecreaseStockIfEnough(context.Background(), id, 3)
		require.NoError(t, err)
		require.True(t, ok)
		_, err = r.Orders().Create(context.Background(), model.Order{Code: "ORD-1", CheckoutSessionID: "s1"})
		require.NoError(t, err)
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, int64(5), s.Book(id).StockQuantity)
	assert.Empty(t, s.Orders())

	require.NoError(t, s.WithinTx(context.Background(), func(r repo.TxRepos) error {
		_, err := r.Inventory().DecreaseStockIfEnough(context.Background(), id, 3)
		return err
	}))
	assert.Equal(t, int64(2), s.Book(id).StockQuantity)
}

func TestWithinTx_CanceledContext(t *testing.T) {
	s := NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestInventory_ConditionalDecrements(t *testing.T) {
	s := NewStore()
	book := s.PutBook(model.Book{Title: "B", Price: decimal.NewFromInt(10), StockQuantity: 2, SoldCount: 1})
	offer := s.PutOffer(model.FlashSaleOffer{BookID: book, FlashPrice: decimal.NewFromInt(5), StockQuantity: 1})
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(r repo.TxRepos) error {
		inv := r.Inventory()

		ok, err := inv.DecreaseStockIfEnough(ctx, book, 3)
		require.NoError(t, err)
		assert.False(t, ok, "more than on hand")

		ok, err = inv.DecreaseStockIfEnough(ctx, 404, 1)
		require.NoError(t, err)
		assert.False(t, ok, "unknown book")

		ok, err = inv.DecreaseSoldIfEnough(ctx, book, 2)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = inv.DecreaseOfferStockIfEnough(ctx, offer, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = inv.DecreaseOfferStockIfEnough(ctx, offer, 1)
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))

	assert.Equal(t, int64(2), s.Book(book).StockQuantity)
	assert.Equal(t, int64(1), s.Book(book).SoldCount)
	assert.Equal(t, int64(0), s.Offer(offer).StockQuantity)
}

func TestOrders_UniqueCheckoutSession(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := r.Orders().Create(ctx, model.Order{Code: "ORD-1", CheckoutSessionID: "s1"})
		return err
	}))

	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		_, err := r.Orders().Create(ctx, model.Order{Code: "ORD-2", CheckoutSessionID: "s1"})
		return err
	})
	assert.ErrorIs(t, err, repo.ErrDuplicate)

	require.NoError(t, s.WithinTx(ctx, func(r repo.TxRepos) error {
		o, found, err := r.Orders().FindByCheckoutSession(ctx, "s1")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "ORD-1", o.Code)
		return nil
	}))
}

func TestPoints_AdjustBalance(t *testing.T) {
	s := NewStore()
	user := s.PutUser(model.User{Email: "a@example.com", Role: model.RoleCustomer, LoyaltyPoints: 5})
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Points().AdjustBalance(ctx, user, -8, false)
	}))
	assert.Equal(t, int64(0), s.User(user).LoyaltyPoints)

	require.NoError(t, s.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Points().AdjustBalance(ctx, user, -3, true)
	}))
	assert.Equal(t, int64(-3), s.User(user).LoyaltyPoints)

	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Points().AdjustBalance(ctx, 999, 1, false)
	})
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

// 付与は1注文1回まで
func TestPoints_SingleEarnEntryPerOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	entry := model.PointLedgerEntry{CustomerID: 1, OrderID: 7, Kind: model.PointEntryEarn, Points: 10, Reason: "earn"}

	require.NoError(t, s.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Points().CreateEntry(ctx, entry)
	}))
	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Points().CreateEntry(ctx, entry)
	})
	assert.ErrorIs(t, err, repo.ErrDuplicate)
	assert.Len(t, s.PointEntries(7), 1)
}

func TestOutbox_PendingAndPublished(t *testing.T) {
	s := NewStore()
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s.SetClock(func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, s.WithinTx(ctx, func(r repo.TxRepos) error {
		for _, key := range []string{"a", "b", "c"} {
			if err := r.Outbox().Create(ctx, model.OutboxEvent{Topic: "order.created", Key: key, Payload: "{}"}); err != nil {
				return err
			}
		}
		return nil
	}))

	var ids []int64
	require.NoError(t, s.WithinTx(ctx, func(r repo.TxRepos) error {
		pending, err := r.Outbox().ListPending(ctx, 2)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "a", pending[0].Key)
		for _, ev := range pending {
			ids = append(ids, ev.ID)
		}
		return r.Outbox().MarkPublished(ctx, ids, now)
	}))

	events := s.OutboxEvents()
	require.Len(t, events, 3)
	assert.Equal(t, model.OutboxStatusPublished, events[0].Status)
	require.NotNil(t, events[0].PublishedAt)
	assert.Equal(t, now, *events[0].PublishedAt)
	assert.Equal(t, model.OutboxStatusPending, events[2].Status)
	assert.Equal(t, now, events[2].CreatedAt)
}
