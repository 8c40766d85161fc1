package quota

import (
	"strings"
	"time"

	"github.com/j-veylop/antigravity-quota-history/internal/models"
)

// SubscriptionTier represents the user's subscription level.
type SubscriptionTier string

const (
	TierUltra      SubscriptionTier = "Ultra"
	TierPro        SubscriptionTier = "Pro"
	TierBusiness   SubscriptionTier = "Business"
	TierEnterprise SubscriptionTier = "Enterprise"
	TierFree       SubscriptionTier = "Free"
	TierUnknown    SubscriptionTier = "Unknown"
)

// TierThreshold is the reset time threshold for tier detection.
// Paid tiers reset within a few hours, free tiers daily.
const TierThreshold = 6 * time.Hour

// tierIDs maps loadCodeAssist tier ids to tiers.
var tierIDs = map[string]SubscriptionTier{
	"gemini_code_assist_premium":                  TierUltra,
	"cloudaicompanion_gemini_code_assist_premium": TierUltra,
	"g1-pro-tier":                   TierPro,
	"gemini_code_assist_business":   TierBusiness,
	"gemini_code_assist_enterprise": TierEnterprise,
	"free-tier":                     TierFree,
}

// TierFromID maps a tier id reported by the API. Unknown ids give TierUnknown.
func TierFromID(id string) SubscriptionTier {
	if tier, ok := tierIDs[strings.ToLower(id)]; ok {
		return tier
	}
	return TierUnknown
}

// detectTierFromReset guesses the tier from how far away a reset is.
func detectTierFromReset(resetAt *int64, now time.Time) SubscriptionTier {
	if resetAt == nil {
		return TierUnknown
	}

	duration := time.Unix(*resetAt, 0).Sub(now)
	if duration < 0 {
		return TierUnknown
	}
	if duration <= TierThreshold {
		return TierPro
	}
	return TierFree
}

// ResolveTier prefers the reported tier id and falls back to the reset
// cadence of the resources. If any resource looks paid, the account is paid.
func ResolveTier(tierID string, resources []models.ResourceQuota, now time.Time) SubscriptionTier {
	if tier := TierFromID(tierID); tier != TierUnknown {
		return tier
	}

	result := TierUnknown
	for i := range resources {
		switch detectTierFromReset(resources[i].ResetAt, now) {
		case TierPro:
			return TierPro
		case TierFree:
			result = TierFree
		}
	}
	return result
}
