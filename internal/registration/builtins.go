package registration

import (
	"github.com/medsim/diagnosis-gateway/internal/frontdoor/agents"
	"github.com/medsim/diagnosis-gateway/internal/frontdoor/health"
	"github.com/medsim/diagnosis-gateway/internal/frontdoor/users"
	"github.com/medsim/diagnosis-gateway/internal/provider"
)

// RegisterBuiltins registers built-in providers and frontdoors explicitly.
// This replaces init-based side effects and is intended to be called from
// the runtime and tests before wiring registries.
func RegisterBuiltins() {
	RegisterProviderBuiltins()
	RegisterFrontdoorBuiltins()
}

// RegisterProviderBuiltins registers built-in providers only.
func RegisterProviderBuiltins() {
	provider.RegisterBuiltins()
}

// RegisterFrontdoorBuiltins registers built-in frontdoors only.
func RegisterFrontdoorBuiltins() {
	health.RegisterFrontdoor()
	users.RegisterFrontdoor()
	agents.RegisterFrontdoor()
}
