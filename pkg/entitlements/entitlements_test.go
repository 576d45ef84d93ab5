package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForTier(t *testing.T) {
	tests := []struct {
		tier             Tier
		wantPermits      int
		wantPartiesLimit int
		wantStorage      int64
	}{
		{TierFree, 2, 5, 100 << 20},
		{TierPro, 20, 15, 1 << 30},
		{TierBusiness, 200, 50, 10 << 30},
		{TierUnlimited, Unlimited, Unlimited, Unlimited},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			e := ForTier(tt.tier)
			assert.Equal(t, tt.tier, e.Tier)
			assert.Equal(t, tt.wantPermits, e.MaxActivePermits)
			assert.Equal(t, tt.wantPartiesLimit, e.MaxPartiesPerPermit)
			assert.Equal(t, tt.wantStorage, e.MaxStorageBytes)
		})
	}
}

func TestForTier_UnknownDegradesToFree(t *testing.T) {
	e := ForTier(Tier("enterprise-legacy"))
	assert.Equal(t, ForTier(TierFree).MaxActivePermits, e.MaxActivePermits)
}

func TestAllows(t *testing.T) {
	assert.True(t, Allows(5, 4))
	assert.False(t, Allows(5, 5))
	assert.False(t, Allows(5, 6))
	assert.True(t, Allows(Unlimited, 1000000))
}

func TestAllowsBytes(t *testing.T) {
	assert.True(t, AllowsBytes(100<<20, (100<<20)-1))
	assert.False(t, AllowsBytes(100<<20, 100<<20))
	assert.True(t, AllowsBytes(Unlimited, 1<<40))
}
