package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/capabilities"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/paymentlog"
)

const (
	defaultPassDays         = 30
	vendorSubscriptionDays  = 30
	recentPurchaseLimit     = 5
	purchaseHistoryMaxLimit = 100
)

// CapabilityInvalidator drops a user's cached capability snapshot.
type CapabilityInvalidator interface {
	Invalidate(ctx context.Context, userID string) error
}

// Deps are the outside collaborators of the billing service. Any of them may
// be nil; the matching feature then degrades as documented on each method.
type Deps struct {
	Mpesa         STKPusher
	Pesapal       PaymentStatusClient
	PesapalSecret string
	Capabilities  CapabilityInvalidator
	PaymentLogs   paymentlog.Sink
}

// Service implements pass purchases, payment callbacks and the billing
// read models.
type Service struct {
	db   *gorm.DB
	deps Deps
	now  func() time.Time
}

// NewService creates a billing service.
func NewService(db *gorm.DB, deps Deps) *Service {
	return &Service{
		db:   db,
		deps: deps,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) repo(ctx context.Context) Repository {
	return NewRepository(s.db.WithContext(ctx))
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.deps.Capabilities == nil || userID == "" {
		return
	}
	if err := s.deps.Capabilities.Invalidate(ctx, userID); err != nil {
		log.Warnf("[Billing] Capability cache invalidation for %s failed: %v", userID, err)
	}
}

// ResolveMappedProduct finds the product a provider plan reference stands
// for. Mapped references win; otherwise the reference is tried as a
// product code.
func (s *Service) ResolveMappedProduct(ctx context.Context, provider, providerPlanRef string) (*models.BillingProduct, error) {
	return s.resolveWith(s.repo(ctx), provider, providerPlanRef)
}

func (s *Service) resolveWith(repo Repository, provider, providerPlanRef string) (*models.BillingProduct, error) {
	p := normalizeProvider(provider)
	ref := strings.TrimSpace(providerPlanRef)
	if p == "" || ref == "" {
		return nil, errors.New("provider and provider plan ref are required")
	}

	code := ref
	m, err := repo.FindActivePlanMapping(p, ref)
	switch {
	case err == nil:
		code = m.ProductCode
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}
	return repo.GetActiveProductByCode(code)
}

// RecordWebhookEvent persists webhook payloads idempotently.
func (s *Service) RecordWebhookEvent(ctx context.Context, in WebhookEventInput) (bool, *models.BillingWebhookEvent, error) {
	provider := normalizeProvider(in.Provider)
	if provider == "" {
		return false, nil, errors.New("provider is required")
	}
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.BillingWebhookEvent{
		Provider:        provider,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return s.repo(ctx).CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (s *Service) MarkWebhookProcessed(ctx context.Context, webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return s.repo(ctx).MarkWebhookProcessed(webhookEventID, errMsg)
}

// ExpirePasses closes passes past their end date.
func (s *Service) ExpirePasses(ctx context.Context) (int64, error) {
	return capabilities.ExpirePasses(ctx, s.db, s.now())
}

// ListProducts returns the active catalog with entitlements.
func (s *Service) ListProducts(ctx context.Context) (*ProductCatalog, error) {
	products, err := s.repo(ctx).ListActiveProducts()
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	grouped := map[string][]models.BillingProduct{
		models.ScopeMarketplaceVendor: {},
		models.ScopeZCCEmployer:       {},
	}
	for _, p := range products {
		grouped[p.Scope] = append(grouped[p.Scope], p)
	}
	return &ProductCatalog{Products: products, Grouped: grouped}, nil
}

// ListPurchases returns the user's pass purchases, newest first.
func (s *Service) ListPurchases(ctx context.Context, userID string, limit int) ([]models.BillingPassPurchase, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > purchaseHistoryMaxLimit {
		limit = purchaseHistoryMaxLimit
	}
	return s.repo(ctx).ListPurchases(userID, limit)
}
