// Package reclaimer sweeps electronic orders whose payment window has lapsed,
// returning their reserved stock to the sellable pool. At most one sweep runs
// across the whole deployment at any moment.
package reclaimer

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vudinh158/laptop-NEW-sub001/internal/database"
	"github.com/vudinh158/laptop-NEW-sub001/internal/events"
	"github.com/vudinh158/laptop-NEW-sub001/internal/models"
	"github.com/vudinh158/laptop-NEW-sub001/internal/store"
)

const batchLimit = 100

type Reclaimer struct {
	db       *sql.DB
	log      *slog.Logger
	producer *events.Producer
	lockKey  int64
	interval time.Duration

	cron *cron.Cron
}

func New(db *sql.DB, log *slog.Logger, producer *events.Producer, lockKey int64, interval time.Duration) *Reclaimer {
	return &Reclaimer{
		db:       db,
		log:      log,
		producer: producer,
		lockKey:  lockKey,
		interval: interval,
	}
}

// Start schedules RunOnce on the configured interval and returns immediately.
// Stop blocks until an in-flight sweep finishes.
func (r *Reclaimer) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc("@every "+r.interval.String(), func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Error("reservation sweep failed", "err", err)
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	r.cron = c
	return nil
}

func (r *Reclaimer) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// RunOnce performs a single sweep. The session-level advisory lock keeps
// overlapping schedulers, and replicas of this process, from sweeping
// concurrently; a holder that dies takes its session with it, so the lock can
// never be orphaned.
func (r *Reclaimer) RunOnce(ctx context.Context) (int, error) {
	lock, acquired, err := database.TryAdvisoryLock(ctx, r.db, r.lockKey)
	if err != nil {
		return 0, err
	}
	if !acquired {
		r.log.Debug("sweep already running elsewhere, skipping")
		return 0, nil
	}
	defer func() {
		if err := lock.Unlock(context.WithoutCancel(ctx)); err != nil {
			r.log.Error("advisory lock release failed", "err", err)
		}
	}()

	now := time.Now().UTC()
	ids, err := store.ExpiredReservationIDs(ctx, r.db, now, batchLimit)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	reclaimed := 0
	for _, id := range ids {
		ok, err := r.reclaimOrder(ctx, id, now)
		if err != nil {
			// One stuck order must not stall the rest of the batch.
			r.log.Error("reclaim failed, deferring to next sweep", "order_id", id, "err", err)
			continue
		}
		if ok {
			reclaimed++
		}
	}

	if reclaimed > 0 {
		r.log.Info("reservation sweep complete", "candidates", len(ids), "reclaimed", reclaimed)
	}
	return reclaimed, nil
}

// reclaimOrder cancels one expired order in its own transaction. The SKIP
// LOCKED re-read makes the whole operation a no-op when a payment callback
// or a user cancellation got there first, and the NOWAIT unit locks defer the
// order rather than queueing behind a live checkout.
func (r *Reclaimer) reclaimOrder(ctx context.Context, orderID int64, now time.Time) (bool, error) {
	var reclaimed bool

	err := database.WithTransaction(ctx, r.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		order, found, err := store.LockExpiredOrder(ctx, tx, orderID, now)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}

		lines, err := store.LinesForOrderTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			if _, err := store.LockUnit(ctx, tx, line.SKUID); err != nil {
				return err
			}
			if err := store.RestoreStock(ctx, tx, line.SKUID, line.Quantity); err != nil {
				return err
			}
		}

		if _, err := store.MarkPaymentFailedIfPending(ctx, tx, orderID); err != nil {
			return err
		}
		if err := store.TransitionOrder(ctx, tx, orderID, order.Status, models.OrderStatusCancelled, true); err != nil {
			return err
		}

		reclaimed = true
		return nil
	})
	if err != nil {
		// A unit held by a checkout in flight: roll the whole order over to
		// the next sweep instead of waiting on the lock.
		if errors.Is(err, database.ErrLockTimeout) {
			r.log.Debug("inventory row contended, deferring order", "order_id", orderID)
			return false, nil
		}
		return false, err
	}

	if reclaimed {
		if r.producer != nil {
			r.producer.Emit(events.TopicOrderCancelled, events.TypeOrderCancelled, orderID, events.OrderCancelledPayload{
				OrderID: orderID,
				Reason:  "reservation_expired",
			})
		}
		r.log.Info("expired reservation reclaimed", "order_id", orderID)
	}
	return reclaimed, nil
}
