package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JobMwaura/zintra-sub007/app/models"
)

const (
	LeaseBackendDB    = "db"
	LeaseBackendRedis = "redis"
)

// Locker hands out named leases. TryLock never blocks: when the lease is
// held elsewhere it returns ok=false.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (lock Lock, ok bool, err error)
}

// Lock is a held lease.
type Lock interface {
	Unlock(ctx context.Context) error
}

// DBLocker keeps leases as rows in scheduler_leases.
type DBLocker struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDBLocker(db *gorm.DB) *DBLocker {
	return &DBLocker{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (l *DBLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (Lock, bool, error) {
	token := uuid.NewString()
	now := l.now()
	db := l.db.WithContext(ctx)

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.SchedulerLease{
		Name:      name,
		Holder:    token,
		ExpiresAt: now.Add(ttl),
	})
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return &dbLock{locker: l, name: name, token: token}, true, nil
	}

	res = db.Model(&models.SchedulerLease{}).
		Where("name = ? AND (holder = '' OR expires_at < ?)", name, now).
		Updates(map[string]interface{}{"holder": token, "expires_at": now.Add(ttl)})
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, false, nil
	}
	return &dbLock{locker: l, name: name, token: token}, true, nil
}

// LastRun reports when the named lease was last released after a run.
func (l *DBLocker) LastRun(ctx context.Context, name string) (*time.Time, error) {
	var lease models.SchedulerLease
	err := l.db.WithContext(ctx).Where("name = ?", name).First(&lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lease.LastRunAt, nil
}

type dbLock struct {
	locker *DBLocker
	name   string
	token  string
}

// Unlock frees the lease and stamps last_run_at. A lease that expired and
// was taken over is left alone.
func (k *dbLock) Unlock(ctx context.Context) error {
	now := k.locker.now()
	return k.locker.db.WithContext(ctx).Model(&models.SchedulerLease{}).
		Where("name = ? AND holder = ?", k.name, k.token).
		Updates(map[string]interface{}{"holder": "", "expires_at": now, "last_run_at": now}).Error
}

// RedisLocker keeps leases as keys set with NX and a random token.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, prefix: "lease:"}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (Lock, bool, error) {
	token := uuid.NewString()
	key := l.prefix + name
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLock{client: l.client, key: key, token: token}, true, nil
}

type redisLock struct {
	client *redis.Client
	key    string
	token  string
}

func (k *redisLock) Unlock(ctx context.Context) error {
	return releaseScript.Run(ctx, k.client, []string{k.key}, k.token).Err()
}
