// Package sweeper expires counter offers whose response deadline has passed
// and closes threads that ran out of rounds.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/app/repository"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/env"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/negotiation"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/outbox"
)

// LeaseName guards the expiry sweep so only one instance runs it at a time.
const LeaseName = "negotiation-expiry-sweep"

type Config struct {
	Interval  time.Duration
	LeaseTTL  time.Duration
	Backend   string
	BatchSize int
}

func LoadConfig() Config {
	return Config{
		Interval:  env.GetEnvDuration("SWEEP_INTERVAL", 6*time.Hour),
		LeaseTTL:  env.GetEnvDuration("SWEEP_LEASE_TTL", 10*time.Minute),
		Backend:   env.GetEnv("SWEEP_LOCK", LeaseBackendDB),
		BatchSize: env.GetEnvInt("SWEEP_BATCH_SIZE", 500),
	}
}

// Result is the outcome of one sweep.
type Result struct {
	Success             bool   `json:"success"`
	Skipped             bool   `json:"skipped,omitempty"`
	ExpiredCount        int    `json:"expiredCount"`
	ThreadsExpiredCount int    `json:"threadsExpiredCount"`
	FailedCount         int    `json:"failedCount"`
	Message             string `json:"message"`
}

type Sweeper struct {
	db         *gorm.DB
	locker     Locker
	dispatcher outbox.Dispatcher
	cfg        Config
	now        func() time.Time
}

// New creates a sweeper. dispatcher may be nil.
func New(db *gorm.DB, locker Locker, dispatcher outbox.Dispatcher, cfg Config) *Sweeper {
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Sweeper{
		db:         db,
		locker:     locker,
		dispatcher: dispatcher,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run takes the lease and sweeps. When another instance holds the lease it
// returns a skipped result without touching any rows.
func (s *Sweeper) Run(ctx context.Context) (*Result, error) {
	lock, ok, err := s.locker.TryLock(ctx, LeaseName, s.cfg.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire %s lease: %w", LeaseName, err)
	}
	if !ok {
		log.Infof("[Sweeper] Lease %s held elsewhere, skipping", LeaseName)
		return &Result{Success: true, Skipped: true, Message: "Sweep already running elsewhere"}, nil
	}
	defer func() {
		if err := lock.Unlock(context.Background()); err != nil {
			log.Warnf("[Sweeper] Failed to release lease %s: %v", LeaseName, err)
		}
	}()
	return s.Sweep(ctx)
}

// Sweep expires every overdue pending offer, reading them in batches of
// BatchSize. Each offer is handled in its own transaction; a failure is
// counted once and the sweep moves on.
func (s *Sweeper) Sweep(ctx context.Context) (*Result, error) {
	now := s.now()
	offers := repository.NewOfferRepository(s.db.WithContext(ctx))
	res := &Result{Success: true}
	failed := make(map[string]bool)
	seen := 0

	for {
		batch, err := offers.ListOverdue(now, s.cfg.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("list overdue offers: %w", err)
		}
		seen += len(batch)

		progressed := false
		for i := range batch {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			offer := &batch[i]
			if failed[offer.ID] {
				continue
			}
			expired, threadExpired, err := s.expire(ctx, offer)
			if err != nil {
				failed[offer.ID] = true
				res.FailedCount++
				log.Errorf("[Sweeper] Failed to expire offer %s: %v", offer.ID, err)
				continue
			}
			progressed = true
			if expired {
				res.ExpiredCount++
			}
			if threadExpired {
				res.ThreadsExpiredCount++
			}
		}

		// Failed offers stay pending and head every later batch, so a batch
		// without progress ends the sweep.
		if len(batch) < s.cfg.BatchSize || !progressed {
			break
		}
	}

	if seen == 0 {
		res.Message = "No expired offers found"
		return res, nil
	}
	res.Message = fmt.Sprintf("Expired %d offer(s) and %d thread(s)", res.ExpiredCount, res.ThreadsExpiredCount)
	log.Infof("[Sweeper] %s, %d failed", res.Message, res.FailedCount)
	return res, nil
}

func (s *Sweeper) expire(ctx context.Context, offer *models.CounterOffer) (expired, threadExpired bool, err error) {
	var events []*models.OutboxEvent
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		rows, err := repos.Offer.Transition(offer.ID, models.OfferStatusPending, models.OfferStatusExpired, nil)
		if err != nil {
			return err
		}
		if rows == 0 {
			// Answered or expired by someone else since the listing.
			return nil
		}
		expired = true

		thread, err := repos.Thread.GetByID(offer.ThreadID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Sweeper] Offer %s references missing thread %s", offer.ID, offer.ThreadID)
			return nil
		}
		if err != nil {
			return err
		}
		if !thread.IsActive() {
			return nil
		}

		if thread.RoundsExhausted() {
			closed, err := repos.Thread.Close(thread.ID, models.ThreadStatusExpired, nil)
			if err != nil {
				return err
			}
			if closed == 1 {
				threadExpired = true
				if events, err = negotiation.ExpiredNotifications(thread); err != nil {
					return err
				}
			}
		} else {
			ev, err := negotiation.OfferExpiredNotification(thread, offer)
			if err != nil {
				return err
			}
			events = []*models.OutboxEvent{ev}
		}
		return outbox.Write(tx, events...)
	})
	if err != nil {
		return false, false, err
	}
	if s.dispatcher != nil && len(events) > 0 {
		s.dispatcher.Dispatch(ctx, outbox.IDs(events)...)
	}
	return expired, threadExpired, nil
}
