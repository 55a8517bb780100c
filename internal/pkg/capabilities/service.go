package capabilities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/entitlements"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/env"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/jobqueue"
)

const (
	BackendDB    = "db"
	BackendRedis = "redis"

	RefreshLazy       = "lazy"
	RefreshBackground = "background"

	DefaultTTL = time.Hour
)

var ErrUnknownScope = errors.New("unknown capability scope")

type Config struct {
	Backend string
	Refresh string
	TTL     time.Duration
}

func LoadConfig() Config {
	return Config{
		Backend: env.GetEnv("CAPABILITY_CACHE", BackendDB),
		Refresh: env.GetEnv("CAPABILITY_REFRESH", RefreshLazy),
		TTL:     env.GetEnvDuration("CAPABILITY_TTL", DefaultTTL),
	}
}

// Result is a snapshot plus whether it came from the cache.
type Result struct {
	Snapshot
	Cached bool `json:"cached"`
}

// Service answers capability questions from the cache, recomputing when
// the cached snapshot is stale.
type Service struct {
	db      *gorm.DB
	store   Store
	ttl     time.Duration
	refresh string
	jobs    jobqueue.Enqueuer
	group   singleflight.Group
	now     func() time.Time
}

// NewService creates a capability service. jobs is only used by the
// background refresh strategy and may be nil.
func NewService(db *gorm.DB, store Store, cfg Config, jobs jobqueue.Enqueuer) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Refresh != RefreshBackground {
		cfg.Refresh = RefreshLazy
	}
	return &Service{
		db:      db,
		store:   store,
		ttl:     cfg.TTL,
		refresh: cfg.Refresh,
		jobs:    jobs,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Refresh recomputes the snapshot and writes it to the cache. A failed
// cache write is logged, not returned. Concurrent calls for one user share a
// single computation that outlives any one caller's cancellation.
func (s *Service) Refresh(ctx context.Context, userID string) (*Snapshot, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(userID, func() (interface{}, error) {
		snap, err := s.resolve(shared, userID)
		if err != nil {
			return nil, err
		}
		entry := &Entry{Value: *snap, ComputedAt: s.now(), TTL: s.ttl}
		if err := s.store.Save(shared, userID, entry); err != nil {
			log.Warnf("[Capabilities] Cache write for %s failed: %v", userID, err)
		}
		return snap, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, fmt.Errorf("resolve capabilities for %s: %w", userID, r.Err)
		}
		return r.Val.(*Snapshot), nil
	}
}

// Invalidate drops the cached snapshot so the next read recomputes it.
func (s *Service) Invalidate(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, userID)
}

// GetCapabilities returns the cached snapshot when fresh. A stale snapshot
// is recomputed inline (lazy) or served while a refresh job is queued
// (background).
func (s *Service) GetCapabilities(ctx context.Context, userID string) (*Result, error) {
	entry, err := s.store.Load(ctx, userID)
	switch {
	case err == nil:
		if entry.Fresh(s.now()) {
			return &Result{Snapshot: entry.Value, Cached: true}, nil
		}
		if s.refresh == RefreshBackground && s.jobs != nil {
			_, qerr := s.jobs.EnqueueJob(ctx, jobqueue.JobTypeRefreshCapabilities,
				jobqueue.RefreshCapabilitiesPayload{UserID: userID}.ToMap())
			if qerr == nil {
				return &Result{Snapshot: entry.Value, Cached: true}, nil
			}
			log.Warnf("[Capabilities] Queue refresh for %s failed, resolving inline: %v", userID, qerr)
		}
	case !errors.Is(err, ErrCacheMiss):
		log.Warnf("[Capabilities] Cache read for %s failed: %v", userID, err)
	}

	snap, err := s.Refresh(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Result{Snapshot: *snap, Cached: false}, nil
}

// GetUserTier returns the user's tier in scope, free when nothing resolved.
func (s *Service) GetUserTier(ctx context.Context, userID, scopeCode string) (string, error) {
	scope, ok := entitlements.Lookup(scopeCode)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownScope, scopeCode)
	}
	res, err := s.GetCapabilities(ctx, userID)
	if err != nil {
		return "", err
	}
	if sc := res.Scope(scope.Key); sc != nil && sc.Tier != "" {
		return sc.Tier, nil
	}
	return scope.Tiers[0], nil
}

// GetCapabilityLimit looks key up in every scope's limits, then included
// counters. Missing keys are 0.
func (s *Service) GetCapabilityLimit(ctx context.Context, userID, key string) (float64, error) {
	res, err := s.GetCapabilities(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, scope := range entitlements.Scopes() {
		sc := res.Scope(scope.Key)
		if sc == nil {
			continue
		}
		if v, ok := sc.Limits[key]; ok {
			return v, nil
		}
		if v, ok := sc.Included[key]; ok {
			return v, nil
		}
	}
	return 0, nil
}

// HasFeature reports a boolean feature flag from any scope.
func (s *Service) HasFeature(ctx context.Context, userID, key string) (bool, error) {
	res, err := s.GetCapabilities(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, scope := range entitlements.Scopes() {
		if sc := res.Scope(scope.Key); sc != nil {
			if v, ok := sc.Features[key]; ok {
				return v, nil
			}
		}
	}
	return false, nil
}

// Processor handles refresh_capabilities jobs.
func (s *Service) Processor() jobqueue.Processor {
	return func(ctx context.Context, job *jobqueue.Job) error {
		p, err := jobqueue.RefreshCapabilitiesPayloadFromMap(job.Payload)
		if err != nil {
			return err
		}
		if p.UserID == "" {
			return errors.New("refresh payload missing user_id")
		}
		_, err = s.Refresh(ctx, p.UserID)
		return err
	}
}
