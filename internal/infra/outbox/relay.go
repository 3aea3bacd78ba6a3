// Package outbox forwards rows written to outbox_events to Kafka.
package outbox

import (
	"context"
	"errors"
	"time"

	repo "bookstore/internal/repository"

	"go.uber.org/zap"
)

type Relay struct {
	tx        repo.TransactionManager
	publisher Publisher
	batchSize int
	interval  time.Duration
	logger    *zap.Logger
	clock     func() time.Time
}

func NewRelay(tx repo.TransactionManager, publisher Publisher, batchSize int, interval time.Duration, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Relay{
		tx:        tx,
		publisher: publisher,
		batchSize: batchSize,
		interval:  interval,
		logger:    log,
		clock:     time.Now,
	}
}

// RunOnce は1バッチ送って送信済みにする。送信に失敗したら行はPENDINGのまま
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	sent := 0
	err := r.tx.WithinTx(ctx, func(txr repo.TxRepos) error {
		events, err := txr.Outbox().ListPending(ctx, r.batchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		if err := r.publisher.Publish(ctx, events); err != nil {
			return err
		}

		ids := make([]int64, 0, len(events))
		for _, ev := range events {
			ids = append(ids, ev.ID)
		}
		if err := txr.Outbox().MarkPublished(ctx, ids, r.clock()); err != nil {
			return err
		}
		sent = len(events)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return sent, nil
}

// Run はctxが終わるまでポーリングする
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		// 溜まっている間は待たずに続ける
		for {
			n, err := r.RunOnce(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				r.logger.Warn("outbox_publish_failed", zap.Error(err))
				break
			}
			if n > 0 {
				r.logger.Debug("outbox_published", zap.Int("count", n))
			}
			if n < r.batchSize {
				break
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
