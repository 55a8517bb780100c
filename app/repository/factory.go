package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Factory hands out repositories bound to one database handle.
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

func NewFactory(db *gorm.DB) *Factory {
	return &Factory{db: db}
}

func (f *Factory) DB() *gorm.DB {
	return f.db
}

// Shared returns the repository set built lazily on first use. The set is
// not bound to a request context.
func (f *Factory) Shared() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// ForContext returns a fresh repository set whose queries carry ctx.
func (f *Factory) ForContext(ctx context.Context) *Repositories {
	return NewRepositories(f.db.WithContext(ctx))
}

func (f *Factory) GetNotificationRepository() NotificationRepository {
	return f.Shared().Notification
}

var (
	globalFactory *Factory
	factoryOnce   sync.Once
)

// InitializeFactory sets the process-wide factory. Later calls are no-ops.
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory panics when InitializeFactory has not run.
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("repository: factory used before InitializeFactory")
	}
	return globalFactory
}
