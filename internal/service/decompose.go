package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Strob0t/TestForge/internal/config"
	"github.com/Strob0t/TestForge/internal/domain/agent"
	"github.com/Strob0t/TestForge/internal/domain/requirements"
	"github.com/Strob0t/TestForge/internal/domain/scenario"
	"github.com/Strob0t/TestForge/internal/domain/session"
	"github.com/Strob0t/TestForge/internal/port/provider"
)

// Plan sources, recorded on every TestPlan so reports show how it was built.
const (
	PlanSourceCatalog = "catalog"
	PlanSourceLLM     = "llm"
)

// maxPlanScenarios caps any single plan. A runaway model proposing hundreds
// of scenarios must not flood the worker queues.
const maxPlanScenarios = 12

// Decomposer turns a requirements submission into a test plan. Implementations
// must be deterministic enough to re-plan safely: identical input may not
// yield identical scenarios (the llm mode is generative), but scenario ids
// are always derived from the session id plus ordinal.
type Decomposer interface {
	Decompose(ctx context.Context, sessionID string, req requirements.Requirements) (*session.TestPlan, error)
}

// ChatClient is the slice of the provider gateway the llm decomposer uses.
type ChatClient interface {
	ChatCompletion(ctx context.Context, req provider.ChatRequest, providerName string) (*provider.Completion, error)
}

// NewDecomposer builds the decomposer selected by configuration: the catalog
// decomposer by default, the llm decomposer when mode is "llm". The llm
// decomposer keeps the catalog as its fallback, so planning never depends on
// a model being reachable.
func NewDecomposer(cfg config.Decompose, chat ChatClient) Decomposer {
	catalog := &CatalogDecomposer{}
	if cfg.Mode == "llm" && chat != nil {
		return &LLMDecomposer{chat: chat, cfg: cfg, fallback: catalog}
	}
	return catalog
}

// archetype is one catalog entry: a scenario template tagged with the
// result category the verification engine scores it under, the complexity
// tier used for default routing, and an optional worker assignment.
type archetype struct {
	name       string
	category   string
	priority   agent.Tier
	assignedTo string
}

// planCatalog maps a requirements category onto its scenario archetypes. The
// slices are ordered; scenario ids and delegation order follow them.
var planCatalog = map[string][]archetype{
	requirements.CategoryWebApp: {
		{"Homepage availability", "content", agent.TierLow, "junior"},
		{"Navigation and layout integrity", "layout", agent.TierLow, "junior"},
		{"Core user flows", "functionality", agent.TierHigh, "senior"},
		{"Page load responsiveness", "performance", agent.TierMedium, "performance"},
		{"Accessibility and usability review", "ux", agent.TierHigh, "senior"},
	},
	requirements.CategoryAPI: {
		{"Endpoint availability", "contract", agent.TierLow, "junior"},
		{"Response contract integrity", "contract", agent.TierHigh, "senior"},
		{"Error handling under invalid input", "functionality", agent.TierHigh, "senior"},
		{"Latency under sequential load", "performance", agent.TierMedium, "performance"},
	},
	requirements.CategoryMobile: {
		{"Mobile viewport rendering", "layout", agent.TierLow, "junior"},
		{"Backend availability", "functionality", agent.TierLow, "junior"},
		{"Interaction latency", "performance", agent.TierMedium, "performance"},
		{"Mobile user experience review", "ux", agent.TierHigh, "senior"},
	},
	requirements.CategoryDefault: {
		{"Smoke availability check", "functionality", agent.TierLow, "junior"},
		{"Content sanity scan", "content", agent.TierLow, "junior"},
		{"Baseline responsiveness", "performance", agent.TierMedium, "performance"},
		{"Expert quality review", "ux", agent.TierHigh, "senior"},
	},
}

// CatalogDecomposer maps the requirements category onto a fixed scenario
// catalog. It is fully deterministic and never fails, which makes it both
// the default planner and the fallback for the llm mode.
type CatalogDecomposer struct{}

// Decompose builds the plan for the submission's category. Unknown
// categories were already normalized to the default catalog entry.
func (d *CatalogDecomposer) Decompose(_ context.Context, sessionID string, req requirements.Requirements) (*session.TestPlan, error) {
	archetypes, ok := planCatalog[requirements.NormalizeCategory(req.Category)]
	if !ok {
		archetypes = planCatalog[requirements.CategoryDefault]
	}

	scenarios := make([]scenario.Scenario, 0, len(archetypes))
	for i, a := range archetypes {
		scenarios = append(scenarios, scenario.Scenario{
			ID:         scenarioID(sessionID, i+1),
			Name:       a.name,
			Category:   a.category,
			Priority:   a.priority,
			AssignedTo: a.assignedTo,
		})
	}
	return &session.TestPlan{
		Scenarios: scenarios,
		Source:    PlanSourceCatalog,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// LLMDecomposer asks the provider gateway to propose scenarios from the
// requirement text. Any failure falls back to the catalog: a missing model
// degrades plan quality, never availability.
type LLMDecomposer struct {
	chat     ChatClient
	cfg      config.Decompose
	fallback Decomposer
}

const decomposeSystemPrompt = `You are a senior QA lead. Decompose the given product requirements into test scenarios.
Reply with a JSON array only, no prose. Each element:
{"name": string, "category": one of layout|content|functionality|contract|performance|ux|accessibility|security, "priority": one of low|medium|high|critical, "assigned_to": optional worker hint such as junior|performance|senior}.
Propose between 3 and 8 scenarios.`

func (d *LLMDecomposer) Decompose(ctx context.Context, sessionID string, req requirements.Requirements) (*session.TestPlan, error) {
	plan, err := d.propose(ctx, sessionID, req)
	if err != nil {
		slog.Warn("llm decomposition failed, using catalog",
			"session_id", sessionID,
			"error", err,
		)
		return d.fallback.Decompose(ctx, sessionID, req)
	}
	return plan, nil
}

func (d *LLMDecomposer) propose(ctx context.Context, sessionID string, req requirements.Requirements) (*session.TestPlan, error) {
	var user strings.Builder
	fmt.Fprintf(&user, "Requirements (%s):\n%s\n", req.Category, req.Text)
	if req.BusinessGoals != "" {
		fmt.Fprintf(&user, "\nBusiness goals: %s\n", req.BusinessGoals)
	}

	comp, err := d.chat.ChatCompletion(ctx, provider.ChatRequest{
		Model: d.cfg.Model,
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: decomposeSystemPrompt},
			{Role: provider.RoleUser, Content: user.String()},
		},
		MaxTokens: d.cfg.MaxTokens,
	}, "")
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	scenarios, err := parsePlanReply(sessionID, comp.Content)
	if err != nil {
		return nil, err
	}
	return &session.TestPlan{
		Scenarios: scenarios,
		Source:    PlanSourceLLM,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// planReplyScenario is the JSON shape the model is instructed to emit.
type planReplyScenario struct {
	Name       string `json:"name"`
	Category   string `json:"category"`
	Priority   string `json:"priority"`
	AssignedTo string `json:"assigned_to"`
}

// parsePlanReply extracts the scenario array from a model reply. Models
// wrap JSON in prose and code fences often enough that the parser cuts the
// outermost array out of the text instead of unmarshalling it whole.
func parsePlanReply(sessionID, content string) ([]scenario.Scenario, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON array in model reply")
	}

	var proposals []planReplyScenario
	if err := json.Unmarshal([]byte(content[start:end+1]), &proposals); err != nil {
		return nil, fmt.Errorf("parse model reply: %w", err)
	}
	if len(proposals) > maxPlanScenarios {
		proposals = proposals[:maxPlanScenarios]
	}

	scenarios := make([]scenario.Scenario, 0, len(proposals))
	for _, p := range proposals {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		tier := agent.Tier(strings.ToLower(strings.TrimSpace(p.Priority)))
		if tier != "" && !agent.ValidTier(string(tier)) {
			tier = ""
		}
		scenarios = append(scenarios, scenario.Scenario{
			ID:         scenarioID(sessionID, len(scenarios)+1),
			Name:       name,
			Category:   strings.ToLower(strings.TrimSpace(p.Category)),
			Priority:   tier,
			AssignedTo: strings.TrimSpace(p.AssignedTo),
		})
	}
	if len(scenarios) == 0 {
		return nil, errors.New("model proposed no usable scenarios")
	}
	return scenarios, nil
}

// scenarioID derives a stable scenario id from the session id and the
// scenario's ordinal within the plan. Ids stay colon- and dot-free; both
// the store key layout and the cache tier depend on that.
func scenarioID(sessionID string, n int) string {
	head := sessionID
	if len(head) > 8 {
		head = head[:8]
	}
	return fmt.Sprintf("scn-%s-%d", head, n)
}
