package metering

import "strings"

// PlanTier identifies a subscription tier
type PlanTier string

const (
	// PlanTierStarter is the entry-level tier and the fail-open default
	PlanTierStarter PlanTier = "starter"

	// PlanTierCore is the mid tier
	PlanTierCore PlanTier = "core"

	// PlanTierScale is the top tier
	PlanTierScale PlanTier = "scale"
)

// String returns the string representation of PlanTier
func (t PlanTier) String() string {
	return string(t)
}

// Entitlement describes the monthly allotment granted by a plan tier
type Entitlement struct {
	CallMinutes  int64 // Included voice-call minutes per billing period
	SMSCount     int64 // Included SMS messages per billing period
	GraceSeconds int64 // Call overage buffer before a hard pause
}

// CallCapSeconds returns the included call capacity in seconds
func (e Entitlement) CallCapSeconds() int64 {
	return e.CallMinutes * 60
}

// PlanCatalog maps plan tiers to their entitlements.
// It is a pure, static mapping; billing-period state lives on the ledger.
type PlanCatalog struct {
	entitlements map[PlanTier]Entitlement
}

// NewPlanCatalog creates a catalog with the standard tier entitlements
func NewPlanCatalog() *PlanCatalog {
	return &PlanCatalog{
		entitlements: map[PlanTier]Entitlement{
			PlanTierStarter: {CallMinutes: 60, SMSCount: 150, GraceSeconds: 300},
			PlanTierCore:    {CallMinutes: 150, SMSCount: 250, GraceSeconds: 600},
			PlanTierScale:   {CallMinutes: 400, SMSCount: 1000, GraceSeconds: 1200},
		},
	}
}

// tierKeywords is checked in order, highest tier first, so variant billing
// labels like "scale_annual" or "core-monthly-v2" resolve to the right tier.
var tierKeywords = []PlanTier{PlanTierScale, PlanTierCore, PlanTierStarter}

// ResolveTier maps a raw plan label from the billing provider to a tier.
// Unknown or empty labels resolve to the lowest tier rather than failing,
// so missing subscription data never hard-blocks a tenant.
func (c *PlanCatalog) ResolveTier(label string) PlanTier {
	normalized := strings.ToLower(strings.TrimSpace(label))
	for _, tier := range tierKeywords {
		if strings.Contains(normalized, string(tier)) {
			return tier
		}
	}
	return PlanTierStarter
}

// Entitlement returns the entitlement for a raw plan label
func (c *PlanCatalog) Entitlement(label string) Entitlement {
	return c.entitlements[c.ResolveTier(label)]
}
