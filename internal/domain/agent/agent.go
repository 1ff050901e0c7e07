// Package agent defines the worker-class definitions the routing table is built from.
package agent

// Tier is the coarse complexity classification used for default routing
// when a scenario carries no explicit assignment.
type Tier string

const (
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

// ValidTier reports whether t is a known complexity tier.
func ValidTier(t string) bool {
	switch Tier(t) {
	case TierLow, TierMedium, TierHigh, TierCritical:
		return true
	}
	return false
}

// Definition describes one worker class. The set of definitions is fixed
// after registry load; instances are immutable and safe to share.
type Definition struct {
	Key            string   `json:"agent_key" yaml:"key"`
	DisplayName    string   `json:"display_name" yaml:"name"`
	Role           string   `json:"role" yaml:"role"`
	ToolNames      []string `json:"tool_names" yaml:"tools"`
	ComplexityTier Tier     `json:"complexity_tier" yaml:"tier"`
	QueueName      string   `json:"queue_name" yaml:"queue"`
	StoreKeyPrefix string   `json:"store_key_prefix" yaml:"store_prefix"`
}
