package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JobMwaura/zintra-sub007/app/models"
)

func TestRank(t *testing.T) {
	vendor, ok := Lookup(models.ScopeMarketplaceVendor)
	require.True(t, ok)
	employer, ok := Lookup("ZCC_EMPLOYER")
	require.True(t, ok)

	tests := []struct {
		scope Scope
		tier  string
		want  int
	}{
		{vendor, "free", 0},
		{vendor, "pro", 1},
		{vendor, "premium", 2},
		{vendor, "diamond", 0},
		{employer, "standard", 1},
		{employer, "Premium", 2},
		{employer, "diamond", 3},
		{employer, "pro", 0},
		{employer, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.scope.Key+"/"+tt.tier, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scope.Rank(tt.tier))
		})
	}

	assert.Equal(t, "free", vendor.Normalize("gold"))
	assert.Equal(t, "premium", vendor.Normalize(" PREMIUM "))
}

func TestLookupUnknown(t *testing.T) {
	_, ok := Lookup("candidate")
	assert.False(t, ok)
	assert.Len(t, Scopes(), 2)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    models.CapabilityValue
		wantKind Kind
		want     any
	}{
		{"max limit", "zcc.posts.job.max_active", models.CapabilityValue{Type: "number", Value: float64(10)}, KindLimit, float64(10)},
		{"included", "zcc.unlocks.contact.included", models.CapabilityValue{Type: "number", Value: float64(5)}, KindIncluded, float64(5)},
		{"other number", "marketplace.photos.per_listing", models.CapabilityValue{Type: "number", Value: 12}, KindLimit, float64(12)},
		{"feature", "zcc.search.filters", models.CapabilityValue{Type: "boolean", Value: true}, KindFeature, true},
		{"untyped bool", "marketplace.badge", models.CapabilityValue{Value: false}, KindFeature, false},
		{"string ignored", "zcc.tier", models.CapabilityValue{Type: "string", Value: "pro"}, KindIgnored, nil},
		{"bad number", "zcc.max_seats", models.CapabilityValue{Type: "number", Value: "ten"}, KindIgnored, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, v := Classify(tt.key, tt.value)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.want, v)
		})
	}
}
