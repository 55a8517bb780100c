package entitlements

import (
	"strings"

	"github.com/JobMwaura/zintra-sub007/app/models"
)

// Scope is one capability scope with its tier ladder, lowest first.
type Scope struct {
	Code  string
	Key   string
	Role  string
	Tiers []string
}

var scopes = []Scope{
	{
		Code:  models.ScopeMarketplaceVendor,
		Key:   "marketplace",
		Role:  "vendor",
		Tiers: []string{models.TierFree, "pro", "premium"},
	},
	{
		Code:  models.ScopeZCCEmployer,
		Key:   "zcc",
		Role:  "employer",
		Tiers: []string{models.TierFree, "standard", "premium", "diamond"},
	},
}

// Scopes returns every known scope in snapshot order.
func Scopes() []Scope {
	out := make([]Scope, len(scopes))
	copy(out, scopes)
	return out
}

// Lookup finds a scope by its billing_products.scope code.
func Lookup(code string) (Scope, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, s := range scopes {
		if s.Code == code {
			return s, true
		}
	}
	return Scope{}, false
}

// Rank returns the position of tier in the ladder. Unknown tiers rank as
// free.
func (s Scope) Rank(tier string) int {
	tier = strings.ToLower(strings.TrimSpace(tier))
	for i, t := range s.Tiers {
		if t == tier {
			return i
		}
	}
	return 0
}

// Normalize maps tier onto the ladder, falling back to free.
func (s Scope) Normalize(tier string) string {
	return s.Tiers[s.Rank(tier)]
}

// Kind says where a resolved entitlement value lands in a snapshot.
type Kind int

const (
	KindIgnored Kind = iota
	KindLimit
	KindIncluded
	KindFeature
)

// Classify sorts an entitlement into limits, included usage or feature
// flags. Numbers go by key name, booleans are features, strings carry no
// capability.
func Classify(key string, v models.CapabilityValue) (Kind, any) {
	typ := strings.ToLower(v.Type)
	if typ == "" {
		switch v.Value.(type) {
		case bool:
			typ = "boolean"
		case float64, float32, int, int64, int32:
			typ = "number"
		}
	}

	switch typ {
	case "number":
		n, ok := toFloat(v.Value)
		if !ok {
			return KindIgnored, nil
		}
		switch {
		case strings.Contains(key, "max_"):
			return KindLimit, n
		case strings.Contains(key, "included"):
			return KindIncluded, n
		default:
			return KindLimit, n
		}
	case "boolean":
		b, ok := v.Value.(bool)
		if !ok {
			return KindIgnored, nil
		}
		return KindFeature, b
	}
	return KindIgnored, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
