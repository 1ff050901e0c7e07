// Package registry compiles the agent routing table from configuration.
// The table is built once at process start and read-only afterward; routing
// is deterministic for identical scenario and configuration.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Strob0t/TestForge/internal/domain/agent"
	"github.com/Strob0t/TestForge/internal/domain/scenario"
)

var (
	ErrNoAgents          = errors.New("registry: no agents configured")
	ErrDuplicateAgent    = errors.New("registry: duplicate agent key")
	ErrAgentKeyRequired  = errors.New("registry: agent key is required")
	ErrQueueRequired     = errors.New("registry: agent queue name is required")
	ErrInvalidTier       = errors.New("registry: invalid complexity tier")
	ErrDanglingAlias     = errors.New("registry: alias targets an unregistered agent")
	ErrDanglingTierRoute = errors.New("registry: tier route targets an unregistered agent")
	ErrDefaultMissing    = errors.New("registry: default agent is missing or unregistered")
)

// Options carries the routing configuration the registry is compiled from.
type Options struct {
	Agents       []agent.Definition
	Aliases      map[string]string
	TierRoutes   map[string]string
	DefaultAgent string
}

// Registry is the compiled routing table.
type Registry struct {
	agents     map[string]agent.Definition
	aliases    map[string]string
	tierRoutes map[agent.Tier]string
	defaultKey string
}

// New validates the routing configuration and compiles the table. Every
// referenced agent must be registered and the default catch-all must exist:
// these are startup configuration errors, fatal by design, never deferred
// to a runtime fallback.
func New(opts Options) (*Registry, error) {
	if len(opts.Agents) == 0 {
		return nil, ErrNoAgents
	}

	agents := make(map[string]agent.Definition, len(opts.Agents))
	for i, def := range opts.Agents {
		if def.Key == "" {
			return nil, fmt.Errorf("agent %d: %w", i, ErrAgentKeyRequired)
		}
		if _, exists := agents[def.Key]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateAgent, def.Key)
		}
		if def.QueueName == "" {
			return nil, fmt.Errorf("agent %q: %w", def.Key, ErrQueueRequired)
		}
		if def.ComplexityTier != "" && !agent.ValidTier(string(def.ComplexityTier)) {
			return nil, fmt.Errorf("agent %q tier %q: %w", def.Key, def.ComplexityTier, ErrInvalidTier)
		}
		if def.StoreKeyPrefix == "" {
			def.StoreKeyPrefix = def.Key
		}
		agents[def.Key] = def
	}

	aliases := make(map[string]string, len(opts.Aliases))
	for alias, target := range opts.Aliases {
		if _, ok := agents[target]; !ok {
			return nil, fmt.Errorf("%w: alias %q -> %q", ErrDanglingAlias, alias, target)
		}
		aliases[alias] = target
	}

	tierRoutes := make(map[agent.Tier]string, len(opts.TierRoutes))
	for tier, target := range opts.TierRoutes {
		if !agent.ValidTier(tier) {
			return nil, fmt.Errorf("tier route %q: %w", tier, ErrInvalidTier)
		}
		if _, ok := agents[target]; !ok {
			return nil, fmt.Errorf("%w: tier %q -> %q", ErrDanglingTierRoute, tier, target)
		}
		tierRoutes[agent.Tier(tier)] = target
	}

	if opts.DefaultAgent == "" {
		return nil, ErrDefaultMissing
	}
	if _, ok := agents[opts.DefaultAgent]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrDefaultMissing, opts.DefaultAgent)
	}

	return &Registry{
		agents:     agents,
		aliases:    aliases,
		tierRoutes: tierRoutes,
		defaultKey: opts.DefaultAgent,
	}, nil
}

// Get returns the definition for an agent key.
func (r *Registry) Get(key string) (agent.Definition, bool) {
	def, ok := r.agents[key]
	return def, ok
}

// Agents returns all definitions sorted by key.
func (r *Registry) Agents() []agent.Definition {
	out := make([]agent.Definition, 0, len(r.agents))
	for _, def := range r.agents {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Default returns the catch-all agent definition.
func (r *Registry) Default() agent.Definition {
	return r.agents[r.defaultKey]
}

// AgentForTier resolves a complexity tier to its routed agent. Unrouted or
// empty tiers land on the default catch-all, which construction guarantees
// to exist.
func (r *Registry) AgentForTier(tier agent.Tier) agent.Definition {
	if key, ok := r.tierRoutes[tier]; ok {
		return r.agents[key]
	}
	return r.agents[r.defaultKey]
}

// RouteScenario resolves the target agent for a scenario: the assignment
// alias first, then the assignment as a raw agent key, then the complexity
// tier. It always resolves; construction already validated every route.
func (r *Registry) RouteScenario(sc scenario.Scenario) agent.Definition {
	if sc.AssignedTo != "" {
		if target, ok := r.aliases[sc.AssignedTo]; ok {
			return r.agents[target]
		}
		if def, ok := r.agents[sc.AssignedTo]; ok {
			return def
		}
	}
	return r.AgentForTier(sc.Priority)
}
