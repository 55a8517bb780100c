// Package capabilities resolves what a user may do from their subscriptions,
// prepaid passes and the free tier, and caches the result per user.
package capabilities

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	SourcePass         = "pass"
	SourceSubscription = "subscription"
	SourceFree         = "free"
)

// ScopeCapabilities is the resolved state of one scope. It serialises as
// {"<role>": {"tier": ...}, "limits": {...}, "included": {...}, "features": {...}}.
type ScopeCapabilities struct {
	Role     string
	Tier     string
	Limits   map[string]float64
	Included map[string]float64
	Features map[string]bool
}

type tierHolder struct {
	Tier string `json:"tier"`
}

func newScopeCapabilities(role, tier string) *ScopeCapabilities {
	return &ScopeCapabilities{
		Role:     role,
		Tier:     tier,
		Limits:   map[string]float64{},
		Included: map[string]float64{},
		Features: map[string]bool{},
	}
}

func (s ScopeCapabilities) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"limits":   nonNil(s.Limits),
		"included": nonNil(s.Included),
		"features": nonNilBool(s.Features),
	}
	if s.Role != "" {
		out[s.Role] = tierHolder{Tier: s.Tier}
	}
	return json.Marshal(out)
}

func (s *ScopeCapabilities) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ScopeCapabilities{}
	for key, val := range raw {
		var err error
		switch key {
		case "limits":
			err = json.Unmarshal(val, &s.Limits)
		case "included":
			err = json.Unmarshal(val, &s.Included)
		case "features":
			err = json.Unmarshal(val, &s.Features)
		default:
			var th tierHolder
			if json.Unmarshal(val, &th) == nil && th.Tier != "" {
				s.Role, s.Tier = key, th.Tier
			}
		}
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
	}
	return nil
}

func nonNil(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}

func nonNilBool(m map[string]bool) map[string]bool {
	if m == nil {
		return map[string]bool{}
	}
	return m
}

// Source records which row produced a scope's tier.
type Source struct {
	SourceType  string     `json:"source_type"`
	SourceID    *string    `json:"source_id"`
	ProductCode string     `json:"product_code"`
	EndsAt      *time.Time `json:"ends_at"`
}

// Snapshot is the merged capability state of one user, keyed by scope key
// ("marketplace", "zcc").
type Snapshot struct {
	Capabilities map[string]*ScopeCapabilities `json:"capabilities"`
	Sources      map[string]Source             `json:"sources"`
}

// Scope returns the resolved scope for key, or nil.
func (s *Snapshot) Scope(key string) *ScopeCapabilities {
	if s == nil || s.Capabilities == nil {
		return nil
	}
	return s.Capabilities[key]
}
