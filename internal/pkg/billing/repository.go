package billing

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/JobMwaura/zintra-sub007/app/models"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	FindActivePlanMapping(provider, providerPlanRef string) (*models.BillingPlanMapping, error)
	GetActiveProductByCode(code string) (*models.BillingProduct, error)
	GetProductByID(id string) (*models.BillingProduct, error)
	ListActiveProducts() ([]models.BillingProduct, error)
	ListEntitlements(productID string) ([]models.BillingEntitlement, error)

	CreatePurchase(p *models.BillingPassPurchase) error
	GetPurchaseByCheckoutID(checkoutID string) (*models.BillingPassPurchase, error)
	// UpdatePurchase applies updates only while the purchase is still in
	// fromStatus and returns the number of rows changed.
	UpdatePurchase(id, fromStatus string, updates map[string]interface{}) (int64, error)
	ListPurchases(userID string, limit int) ([]models.BillingPassPurchase, error)

	CancelActivePassesInScope(userID, scope string) (int64, error)
	CreatePass(p *models.BillingPass) error
	ListActivePasses(userID string, now time.Time) ([]models.BillingPass, error)
	InitIncludedUsage(u *models.BillingIncludedUsage) error
	GetIncludedUsage(userID, metricKey string, now time.Time) (*models.BillingIncludedUsage, error)
	// IncrementIncludedUsage bumps metric_value by one while it stays under
	// limit. Zero rows means the allowance is used up.
	IncrementIncludedUsage(id uint, limit int64) (int64, error)

	UpsertSubscription(sub *models.BillingSubscription) error
	ListSubscriptionsByUser(userID string) ([]models.BillingSubscription, error)

	GetVendorSubscriptionByOrder(orderID string) (*models.VendorSubscription, error)
	UpdateVendorSubscription(id string, updates map[string]interface{}) error
	DeletePendingVendorSubscription(id string) (int64, error)

	CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindActivePlanMapping(provider, providerPlanRef string) (*models.BillingPlanMapping, error) {
	var m models.BillingPlanMapping
	err := r.db.
		Where("provider = ? AND provider_plan_ref = ? AND is_active = ?", provider, providerPlanRef, true).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *gormRepository) GetActiveProductByCode(code string) (*models.BillingProduct, error) {
	var p models.BillingProduct
	if err := r.db.Where("product_code = ? AND active = ?", code, true).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetProductByID(id string) (*models.BillingProduct, error) {
	var p models.BillingProduct
	if err := r.db.Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) ListActiveProducts() ([]models.BillingProduct, error) {
	var products []models.BillingProduct
	err := r.db.Preload("Entitlements", func(db *gorm.DB) *gorm.DB {
		return db.Order("capability_key ASC")
	}).Where("active = ?", true).Order("price_kes ASC").Order("product_code ASC").Find(&products).Error
	return products, err
}

func (r *gormRepository) ListEntitlements(productID string) ([]models.BillingEntitlement, error) {
	var ents []models.BillingEntitlement
	err := r.db.Where("product_id = ?", productID).Order("id ASC").Find(&ents).Error
	return ents, err
}

func (r *gormRepository) CreatePurchase(p *models.BillingPassPurchase) error {
	return r.db.Create(p).Error
}

func (r *gormRepository) GetPurchaseByCheckoutID(checkoutID string) (*models.BillingPassPurchase, error) {
	var p models.BillingPassPurchase
	if err := r.db.Where("provider_checkout_id = ?", checkoutID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) UpdatePurchase(id, fromStatus string, updates map[string]interface{}) (int64, error) {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.Model(&models.BillingPassPurchase{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *gormRepository) ListPurchases(userID string, limit int) ([]models.BillingPassPurchase, error) {
	var purchases []models.BillingPassPurchase
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Limit(limit).Find(&purchases).Error
	return purchases, err
}

func (r *gormRepository) CancelActivePassesInScope(userID, scope string) (int64, error) {
	sameScope := r.db.Model(&models.BillingProduct{}).Select("id").Where("scope = ?", scope)
	res := r.db.Model(&models.BillingPass{}).
		Where("user_id = ? AND status = ? AND product_id IN (?)", userID, models.PassStatusActive, sameScope).
		Updates(map[string]interface{}{"status": models.PassStatusCancelled, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *gormRepository) CreatePass(p *models.BillingPass) error {
	return r.db.Omit("Product").Create(p).Error
}

func (r *gormRepository) ListActivePasses(userID string, now time.Time) ([]models.BillingPass, error) {
	var passes []models.BillingPass
	err := r.db.Preload("Product").
		Where("user_id = ? AND status = ? AND ends_at >= ?", userID, models.PassStatusActive, now).
		Order("ends_at DESC").
		Find(&passes).Error
	return passes, err
}

func (r *gormRepository) InitIncludedUsage(u *models.BillingIncludedUsage) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
			{Name: "product_id"},
			{Name: "period_start"},
			{Name: "metric_key"},
		},
		DoNothing: true,
	}).Create(u).Error
}

func (r *gormRepository) GetIncludedUsage(userID, metricKey string, now time.Time) (*models.BillingIncludedUsage, error) {
	var u models.BillingIncludedUsage
	err := r.db.Where("user_id = ? AND metric_key = ? AND period_start <= ? AND period_end >= ?", userID, metricKey, now, now).
		Order("period_start DESC").
		First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) IncrementIncludedUsage(id uint, limit int64) (int64, error) {
	res := r.db.Model(&models.BillingIncludedUsage{}).
		Where("id = ? AND metric_value < ?", id, limit).
		Updates(map[string]interface{}{
			"metric_value": gorm.Expr("metric_value + 1"),
			"updated_at":   time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *gormRepository) UpsertSubscription(sub *models.BillingSubscription) error {
	if err := r.db.Omit("Product").Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_subscription_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"product_id",
			"status",
			"current_period_start",
			"current_period_end",
			"raw_payload_json",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("provider = ? AND provider_subscription_id = ?", sub.Provider, sub.ProviderSubscriptionID).
		First(sub).Error
}

func (r *gormRepository) ListSubscriptionsByUser(userID string) ([]models.BillingSubscription, error) {
	var subs []models.BillingSubscription
	err := r.db.Preload("Product").Where("user_id = ?", userID).Order("created_at DESC").Find(&subs).Error
	return subs, err
}

func (r *gormRepository) GetVendorSubscriptionByOrder(orderID string) (*models.VendorSubscription, error) {
	var s models.VendorSubscription
	if err := r.db.Where("pesapal_order_id = ?", orderID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *gormRepository) UpdateVendorSubscription(id string, updates map[string]interface{}) error {
	return r.db.Model(&models.VendorSubscription{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) DeletePendingVendorSubscription(id string) (int64, error) {
	res := r.db.Where("id = ? AND status = ?", id, models.VendorSubscriptionPendingPayment).
		Delete(&models.VendorSubscription{})
	return res.RowsAffected, res.Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
