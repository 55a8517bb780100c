package capabilities

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/JobMwaura/zintra-sub007/app/models"
	"github.com/JobMwaura/zintra-sub007/internal/pkg/entitlements"
)

type candidate struct {
	scope   entitlements.Scope
	rank    int
	tier    string
	product models.BillingProduct
	source  Source
}

// ExpirePasses marks active passes whose end has passed as expired.
func ExpirePasses(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Model(&models.BillingPass{}).
		Where("status = ? AND ends_at < ?", models.PassStatusActive, now).
		Updates(map[string]interface{}{"status": models.PassStatusExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}

// resolve computes a fresh snapshot from the billing tables.
func (s *Service) resolve(ctx context.Context, userID string) (*Snapshot, error) {
	now := s.now()
	db := s.db.WithContext(ctx)

	if n, err := ExpirePasses(ctx, s.db, now); err != nil {
		log.Warnf("[Capabilities] Expire passes failed: %v", err)
	} else if n > 0 {
		log.Infof("[Capabilities] Expired %d pass(es)", n)
	}

	var passes []models.BillingPass
	if err := db.Preload("Product").
		Where("user_id = ? AND status = ? AND ends_at >= ?", userID, models.PassStatusActive, now).
		Order("starts_at ASC").Order("id ASC").
		Find(&passes).Error; err != nil {
		return nil, fmt.Errorf("load passes: %w", err)
	}

	var subs []models.BillingSubscription
	if err := db.Preload("Product").
		Where("user_id = ? AND status IN ?", userID, []string{models.BillingStatusActive, models.BillingStatusTrialing}).
		Order("id ASC").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("load subscriptions: %w", err)
	}

	var all []candidate
	for _, p := range passes {
		id, ends := p.ID, p.EndsAt
		if c, ok := newCandidate(p.Product, Source{SourceType: SourcePass, SourceID: &id, EndsAt: &ends}); ok {
			all = append(all, c)
		}
	}
	for _, sub := range subs {
		id := strconv.FormatUint(uint64(sub.ID), 10)
		if c, ok := newCandidate(sub.Product, Source{SourceType: SourceSubscription, SourceID: &id, EndsAt: sub.CurrentPeriodEnd}); ok {
			all = append(all, c)
		}
	}

	best := map[string]candidate{}
	for _, c := range all {
		if cur, ok := best[c.scope.Code]; !ok || c.rank > cur.rank {
			best[c.scope.Code] = c
		}
	}

	var free []models.BillingProduct
	if err := db.Where("tier = ? AND active = ?", models.TierFree, true).
		Order("product_code ASC").
		Find(&free).Error; err != nil {
		return nil, fmt.Errorf("load free products: %w", err)
	}
	for _, fp := range free {
		scope, ok := entitlements.Lookup(fp.Scope)
		if !ok {
			continue
		}
		if _, taken := best[scope.Code]; taken {
			continue
		}
		best[scope.Code] = candidate{
			scope:   scope,
			tier:    models.TierFree,
			product: fp,
			source:  Source{SourceType: SourceFree, ProductCode: fp.ProductCode},
		}
	}

	productIDs := make([]string, 0, len(best))
	for _, c := range best {
		productIDs = append(productIDs, c.product.ID)
	}
	var rows []models.BillingEntitlement
	if len(productIDs) > 0 {
		if err := db.Where("product_id IN ?", productIDs).Order("id ASC").Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("load entitlements: %w", err)
		}
	}
	byProduct := map[string][]models.BillingEntitlement{}
	for _, r := range rows {
		byProduct[r.ProductID] = append(byProduct[r.ProductID], r)
	}

	snap := &Snapshot{
		Capabilities: map[string]*ScopeCapabilities{},
		Sources:      map[string]Source{},
	}
	for _, scope := range entitlements.Scopes() {
		c, ok := best[scope.Code]
		if !ok {
			continue
		}
		sc := newScopeCapabilities(scope.Role, c.tier)
		for _, ent := range byProduct[c.product.ID] {
			kind, v := entitlements.Classify(ent.CapabilityKey, ent.CapabilityValue.Data())
			switch kind {
			case entitlements.KindLimit:
				sc.Limits[ent.CapabilityKey] = v.(float64)
			case entitlements.KindIncluded:
				sc.Included[ent.CapabilityKey] = v.(float64)
			case entitlements.KindFeature:
				sc.Features[ent.CapabilityKey] = v.(bool)
			}
		}
		snap.Capabilities[scope.Key] = sc
		snap.Sources[scope.Key] = c.source
	}
	return snap, nil
}

func newCandidate(product models.BillingProduct, src Source) (candidate, bool) {
	scope, ok := entitlements.Lookup(product.Scope)
	if !ok {
		log.Warnf("[Capabilities] Product %s has unknown scope %q", product.ProductCode, product.Scope)
		return candidate{}, false
	}
	src.ProductCode = product.ProductCode
	return candidate{
		scope:   scope,
		rank:    scope.Rank(product.Tier),
		tier:    scope.Normalize(product.Tier),
		product: product,
		source:  src,
	}, true
}
