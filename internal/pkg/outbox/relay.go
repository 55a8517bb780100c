package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/app/repository"
)

const (
	DefaultMaxAttempts = 5
	DefaultBackoffStep = time.Minute
	DefaultLockFor     = 2 * time.Minute
	DefaultBatchSize   = 100
)

// ErrNoHandler is recorded on events whose topic has no registered handler.
var ErrNoHandler = errors.New("no handler registered for topic")

// Handler materialises one event. It must be idempotent: an event can be
// delivered more than once when a relay dies between handling and marking.
type Handler func(ctx context.Context, db *gorm.DB, ev *models.OutboxEvent) error

// Dispatcher is what services call right after committing events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ids ...string)
}

// Result counts what a Drain or Dispatch call did.
type Result struct {
	Dispatched int `json:"dispatched"`
	Retried    int `json:"retried"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

func (r *Result) add(o Result) {
	r.Dispatched += o.Dispatched
	r.Retried += o.Retried
	r.Failed += o.Failed
	r.Skipped += o.Skipped
}

// Relay claims pending events and runs their handlers.
type Relay struct {
	db          *gorm.DB
	mu          sync.RWMutex
	handlers    map[string]Handler
	maxAttempts int
	backoffStep time.Duration
	lockFor     time.Duration
	batchSize   int
	now         func() time.Time
}

// NewRelay creates a relay with default retry policy.
func NewRelay(db *gorm.DB) *Relay {
	return &Relay{
		db:          db,
		handlers:    make(map[string]Handler),
		maxAttempts: DefaultMaxAttempts,
		backoffStep: DefaultBackoffStep,
		lockFor:     DefaultLockFor,
		batchSize:   DefaultBatchSize,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Register installs h for topic, replacing any previous handler.
func (r *Relay) Register(topic string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[topic] = h
}

func (r *Relay) handler(topic string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[topic]
	return h, ok
}

// Dispatch processes the given events immediately. Anything it cannot
// finish is left for the next Drain.
func (r *Relay) Dispatch(ctx context.Context, ids ...string) {
	var res Result
	for _, id := range ids {
		res.add(r.process(ctx, id))
	}
	if res.Retried > 0 || res.Failed > 0 {
		log.Warnf("[Outbox] Inline dispatch: %d dispatched, %d retried, %d failed", res.Dispatched, res.Retried, res.Failed)
	}
}

// Drain processes due events in id order until none are left or ctx ends.
func (r *Relay) Drain(ctx context.Context) (Result, error) {
	var total Result
	repo := repository.NewOutboxRepository(r.db.WithContext(ctx))
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		ids, err := repo.DueIDs(r.now(), r.batchSize)
		if err != nil {
			return total, fmt.Errorf("list due outbox events: %w", err)
		}
		if len(ids) == 0 {
			return total, nil
		}
		var batch Result
		for _, id := range ids {
			batch.add(r.process(ctx, id))
		}
		total.add(batch)
		// Everything in the batch was either skipped or pushed into the
		// future; another lap would spin on the same rows.
		if len(ids) < r.batchSize || batch.Dispatched+batch.Retried+batch.Failed == 0 {
			return total, nil
		}
	}
}

func (r *Relay) process(ctx context.Context, id string) Result {
	db := r.db.WithContext(ctx)
	repo := repository.NewOutboxRepository(db)
	now := r.now()

	claimed, err := repo.Claim(id, now, now.Add(r.lockFor))
	if err != nil {
		log.Errorf("[Outbox] Claim %s failed: %v", id, err)
		return Result{Skipped: 1}
	}
	if claimed == 0 {
		return Result{Skipped: 1}
	}

	ev, err := repo.GetByID(id)
	if err != nil {
		log.Errorf("[Outbox] Load %s failed: %v", id, err)
		return Result{Skipped: 1}
	}

	herr := r.handle(ctx, db, ev)
	if herr == nil {
		if err := repo.MarkDispatched(id, r.now()); err != nil {
			log.Errorf("[Outbox] Mark %s dispatched failed: %v", id, err)
		}
		return Result{Dispatched: 1}
	}

	attempts := ev.Attempts + 1
	if attempts >= r.maxAttempts {
		log.Errorf("[Outbox] Event %s (%s) failed permanently after %d attempts: %v", id, ev.Topic, attempts, herr)
		if err := repo.MarkFailed(id, attempts, herr.Error()); err != nil {
			log.Errorf("[Outbox] Mark %s failed: %v", id, err)
		}
		return Result{Failed: 1}
	}

	next := r.now().Add(time.Duration(attempts) * r.backoffStep)
	log.Warnf("[Outbox] Event %s (%s) attempt %d failed, retry at %s: %v", id, ev.Topic, attempts, next.Format(time.RFC3339), herr)
	if err := repo.MarkRetry(id, attempts, next, herr.Error()); err != nil {
		log.Errorf("[Outbox] Mark %s for retry failed: %v", id, err)
	}
	return Result{Retried: 1}
}

func (r *Relay) handle(ctx context.Context, db *gorm.DB, ev *models.OutboxEvent) (err error) {
	h, ok := r.handler(ev.Topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, ev.Topic)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h(ctx, db, ev)
}

// Stats reports event counts per status.
func (r *Relay) Stats(ctx context.Context) (map[string]int64, error) {
	return repository.NewOutboxRepository(r.db.WithContext(ctx)).CountByStatus()
}
