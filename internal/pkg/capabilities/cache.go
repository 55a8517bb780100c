package capabilities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JobMwaura/zintra-sub007/app/models"
)

// ErrCacheMiss is returned by a Store that holds nothing for the user.
var ErrCacheMiss = errors.New("capability cache miss")

// Cached is a value stamped with the time it was computed and how long it
// stays fresh.
type Cached[T any] struct {
	Value      T             `json:"value"`
	ComputedAt time.Time     `json:"computed_at"`
	TTL        time.Duration `json:"ttl"`
}

// Fresh reports whether the value is younger than its TTL at now.
func (c Cached[T]) Fresh(now time.Time) bool {
	return now.Sub(c.ComputedAt) < c.TTL
}

// Age is how old the value is at now.
func (c Cached[T]) Age(now time.Time) time.Duration {
	return now.Sub(c.ComputedAt)
}

// Entry is what the stores persist.
type Entry = Cached[Snapshot]

// Store persists one Entry per user.
type Store interface {
	Load(ctx context.Context, userID string) (*Entry, error)
	Save(ctx context.Context, userID string, e *Entry) error
	Delete(ctx context.Context, userID string) error
}

// GormStore keeps entries in user_capabilities_cache. The table has no TTL
// column, so loads stamp the store's ttl onto the entry.
type GormStore struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewGormStore(db *gorm.DB, ttl time.Duration) *GormStore {
	return &GormStore{db: db, ttl: ttl}
}

func (s *GormStore) Load(ctx context.Context, userID string) (*Entry, error) {
	var row models.UserCapabilitiesCache
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	e := &Entry{ComputedAt: row.UpdatedAt, TTL: s.ttl}
	if err := json.Unmarshal(row.Capabilities, &e.Value.Capabilities); err != nil {
		return nil, fmt.Errorf("decode cached capabilities: %w", err)
	}
	if err := json.Unmarshal(row.Source, &e.Value.Sources); err != nil {
		return nil, fmt.Errorf("decode cached sources: %w", err)
	}
	return e, nil
}

func (s *GormStore) Save(ctx context.Context, userID string, e *Entry) error {
	caps, err := json.Marshal(e.Value.Capabilities)
	if err != nil {
		return err
	}
	src, err := json.Marshal(e.Value.Sources)
	if err != nil {
		return err
	}
	row := models.UserCapabilitiesCache{
		UserID:       userID,
		Capabilities: datatypes.JSON(caps),
		Source:       datatypes.JSON(src),
		UpdatedAt:    e.ComputedAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"capabilities", "source", "updated_at"}),
	}).Create(&row).Error
}

func (s *GormStore) Delete(ctx context.Context, userID string) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.UserCapabilitiesCache{}).Error
}

// RedisStore keeps entries as JSON strings. Keys outlive the TTL by
// retention so the background strategy still has something stale to serve.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

func NewRedisStore(client *redis.Client, retention time.Duration) *RedisStore {
	return &RedisStore{client: client, prefix: "capabilities:", retention: retention}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

func (s *RedisStore) Load(ctx context.Context, userID string) (*Entry, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode cached capabilities: %w", err)
	}
	return &e, nil
}

func (s *RedisStore) Save(ctx context.Context, userID string, e *Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(userID), raw, s.retention).Err()
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	return s.client.Del(ctx, s.key(userID)).Err()
}
