// Package entitlements exposes plan-derived usage limits as constant data.
// Billing enforcement happens upstream; this package only answers what a
// given plan tier allows.
package entitlements

// Tier names a billing plan
type Tier string

const (
	TierFree      Tier = "free"
	TierPro       Tier = "pro"
	TierBusiness  Tier = "business"
	TierUnlimited Tier = "unlimited"
)

// Unlimited marks a limit with no cap
const Unlimited = -1

// Entitlements is the set of limits a plan grants
type Entitlements struct {
	Tier                  Tier  `json:"tier"`
	MaxActivePermits      int   `json:"max_active_permits"`
	MaxPartiesPerPermit   int   `json:"max_parties_per_permit"`
	MaxDocumentsPerPermit int   `json:"max_documents_per_permit"`
	MaxStorageBytes       int64 `json:"max_storage_bytes"`
}

var tierEntitlements = map[Tier]Entitlements{
	TierFree: {
		Tier:                  TierFree,
		MaxActivePermits:      2,
		MaxPartiesPerPermit:   5,
		MaxDocumentsPerPermit: 25,
		MaxStorageBytes:       100 << 20,
	},
	TierPro: {
		Tier:                  TierPro,
		MaxActivePermits:      20,
		MaxPartiesPerPermit:   15,
		MaxDocumentsPerPermit: 250,
		MaxStorageBytes:       1 << 30,
	},
	TierBusiness: {
		Tier:                  TierBusiness,
		MaxActivePermits:      200,
		MaxPartiesPerPermit:   50,
		MaxDocumentsPerPermit: 1000,
		MaxStorageBytes:       10 << 30,
	},
	TierUnlimited: {
		Tier:                  TierUnlimited,
		MaxActivePermits:      Unlimited,
		MaxPartiesPerPermit:   Unlimited,
		MaxDocumentsPerPermit: Unlimited,
		MaxStorageBytes:       Unlimited,
	},
}

// ForTier returns the entitlements for a tier. Unknown tiers degrade to
// the free plan's limits.
func ForTier(tier Tier) Entitlements {
	if e, ok := tierEntitlements[tier]; ok {
		return e
	}
	return tierEntitlements[TierFree]
}

// Allows reports whether a limit permits one more item given the current
// count.
func Allows(limit, current int) bool {
	return limit == Unlimited || current < limit
}

// AllowsBytes reports whether a byte limit permits another upload given
// the bytes already stored.
func AllowsBytes(limit, current int64) bool {
	return limit == Unlimited || current < limit
}
