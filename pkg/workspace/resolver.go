package workspace

import (
	"strings"

	"github.com/openclaw/clawspace/pkg/types/workspaces"
)

// DefaultPremiumTiers are the tiers that get an independent skills copy
var DefaultPremiumTiers = []string{"premium", "enterprise"}

// Resolver decides the initial skills strategy of a new session
type Resolver struct {
	premium map[string]bool
}

// NewResolver creates a resolver treating the given tiers as premium.
// With no tiers, DefaultPremiumTiers is used.
func NewResolver(premiumTiers ...string) *Resolver {
	if len(premiumTiers) == 0 {
		premiumTiers = DefaultPremiumTiers
	}
	r := &Resolver{premium: make(map[string]bool, len(premiumTiers))}
	for _, tier := range premiumTiers {
		r.premium[strings.ToLower(strings.TrimSpace(tier))] = true
	}
	return r
}

// IsPremium reports whether tier is a premium-class tier
func (r *Resolver) IsPremium(tier string) bool {
	return r.premium[strings.ToLower(strings.TrimSpace(tier))]
}

// Resolve returns StrategyCopy when the session was explicitly marked, has a
// premium tier, requested custom skills or requires isolation, in that order,
// and StrategySymlink otherwise. It must only be used for sessions that do not
// have a record yet.
func (r *Resolver) Resolve(sessionID string, profile workspaces.Profile, marked map[string]bool) workspaces.Strategy {
	switch {
	case marked[sessionID]:
		return workspaces.StrategyCopy
	case r.IsPremium(profile.Tier):
		return workspaces.StrategyCopy
	case profile.CustomSkills:
		return workspaces.StrategyCopy
	case profile.RequiresIsolation:
		return workspaces.StrategyCopy
	default:
		return workspaces.StrategySymlink
	}
}
