package plans

import "strings"

// Tier constants (single source of truth)
const (
	TierNone      = "none"
	TierEstudante = "estudante"
	TierPlatina   = "platina"
	TierMagistral = "magistral"
)

// NormalizeTier maps an arbitrary tier string to a catalog tier.
// Provider payloads occasionally carry display names or mixed case.
func NormalizeTier(s string) string {
	tier := strings.ToLower(strings.TrimSpace(s))
	switch tier {
	case TierEstudante, TierPlatina, TierMagistral:
		return tier
	case "":
		return TierNone
	}
	// Unknown values are kept as-is: they are display/history only and a
	// provider-side rename must not drop a paying user's tier.
	return tier
}
