package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/env"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

var DB *gorm.DB

// GetDB returns the process-wide connection set up by SetupDatabase.
func GetDB() *gorm.DB {
	return DB
}

// SetupDatabase connects using DB_DRIVER and migrates all models. It panics
// after maxRetries failed attempts.
func SetupDatabase() {
	driver := env.GetEnv("DB_DRIVER", DriverPostgres)
	dsn := DSNFromEnv(driver)

	var err error
	for i := 0; i < maxRetries; i++ {
		DB, err = Open(driver, dsn)
		if err == nil {
			if err = AutoMigrate(DB); err != nil {
				panic(fmt.Errorf("auto migrate: %w", err))
			}
			log.Printf("Connected to %s database %s", driver, env.GetEnv("DB_NAME", ""))
			return
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			log.Printf("Retrying in %v...", retryDelay)
			time.Sleep(retryDelay)
		}
	}

	panic(err)
}

// DSNFromEnv builds the driver specific connection string from DB_* variables.
func DSNFromEnv(driver string) string {
	switch driver {
	case DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			env.GetEnv("DB_USER", ""),
			env.GetEnv("DB_PASSWORD", ""),
			env.GetEnv("DB_HOST", "127.0.0.1"),
			env.GetEnv("DB_PORT", "3306"),
			env.GetEnv("DB_NAME", ""),
		)
	case DriverSQLite:
		return env.GetEnv("DB_NAME", "zintra.db")
	default:
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			env.GetEnv("DB_HOST", "127.0.0.1"),
			env.GetEnv("DB_USER", ""),
			env.GetEnv("DB_PASSWORD", ""),
			env.GetEnv("DB_NAME", ""),
			env.GetEnv("DB_PORT", "5432"),
			env.GetEnv("DB_SSLMODE", "disable"),
		)
	}
}

// Open returns a gorm handle for the given driver without migrating.
func Open(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}
	if !env.IsDev() {
		cfg.Logger = logger.Default.LogMode(logger.Warn)
	}

	switch driver {
	case DriverMySQL:
		return gorm.Open(mysql.New(mysql.Config{
			DSN:                       dsn,
			DefaultStringSize:         256,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), cfg)
	case DriverSQLite:
		return gorm.Open(sqlite.Open(dsn), cfg)
	case DriverPostgres:
		return gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

// Models lists every table owned by the service in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.NegotiationThread{},
		&models.CounterOffer{},
		&models.QuoteRevision{},
		&models.NegotiationQA{},
		&models.JobOrder{},
		&models.Notification{},
		&models.OutboxEvent{},
		&models.UserProfile{},
		&models.AdminUser{},
		&models.SchedulerLease{},
		&models.UserCapabilitiesCache{},
		&models.BillingProduct{},
		&models.BillingEntitlement{},
		&models.BillingPass{},
		&models.BillingPassPurchase{},
		&models.BillingIncludedUsage{},
		&models.BillingSubscription{},
		&models.BillingWebhookEvent{},
		&models.BillingPlanMapping{},
		&models.VendorSubscription{},
		&models.PaymentLog{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
