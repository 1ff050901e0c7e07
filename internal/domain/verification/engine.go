package verification

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Strob0t/TestForge/internal/domain/scenario"
)

// Engine scores a session's results against the fixed criterion set.
// Construct once and share; it is stateless and safe for concurrent use.
type Engine struct {
	weights      Weights
	recThreshold float64
}

// NewEngine builds an engine. Invalid weights fall back to the defaults and
// an out-of-range recommendation threshold falls back to 0.7.
func NewEngine(weights Weights, recThreshold float64) *Engine {
	if !weights.Valid() {
		weights = DefaultWeights()
	}
	if recThreshold <= 0 || recThreshold > 1 {
		recThreshold = 0.7
	}
	return &Engine{weights: weights, recThreshold: recThreshold}
}

// Input is everything verification needs: the terminal scenario results,
// the free-text business goals, and how many scenarios the plan called for.
type Input struct {
	Results       []scenario.Result
	BusinessGoals string
	PlannedCount  int
}

type catStats struct {
	sum    float64
	n      int
	issues int
}

// snapshot is the precomputed view of one evaluation run. Evaluators read
// it, never the raw input, so every criterion sees identical evidence.
type snapshot struct {
	byCategory    map[string]catStats
	categories    map[string]bool
	completed     int
	total         int
	passRate      float64
	coverage      float64
	alignment     float64
	hasObjectives bool
}

func (s *snapshot) categoryMean(cats ...string) (float64, int) {
	var sum float64
	var n int
	for _, c := range cats {
		st := s.byCategory[c]
		sum += st.sum
		n += st.n
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

func (s *snapshot) categoryIssues(cats ...string) int {
	total := 0
	for _, c := range cats {
		total += s.byCategory[c].issues
	}
	return total
}

type evaluator struct {
	name string
	fn   func(*Engine, *snapshot) (float64, error)
}

// criteria fixes both the evaluator set and its order. Order is part of the
// contract: criterion rows and recommendations follow it.
var criteria = []evaluator{
	{"layout", (*Engine).evalLayout},
	{"functionality", (*Engine).evalFunctionality},
	{"performance", (*Engine).evalPerformance},
	{"user_experience", (*Engine).evalUserExperience},
	{"business_logic", (*Engine).evalBusinessLogic},
}

// CriteriaCount returns how many criterion evaluators are configured.
func CriteriaCount() int { return len(criteria) }

// Evaluate runs every criterion evaluator over the input and assembles the
// verdict. A failing evaluator is excluded from the overall mean, not
// scored zero; CriteriaCount on the result records how many contributed.
func (e *Engine) Evaluate(in Input) Result {
	snap := buildSnapshot(in)

	defs := extractObjectives(in.BusinessGoals)
	objectives, covered := coverObjectives(defs, snap.categories)
	if len(defs) > 0 {
		snap.alignment = float64(covered) / float64(len(defs))
		snap.hasObjectives = true
	}

	rows := make([]CriterionScore, 0, len(criteria))
	var sum float64
	contributed := 0
	for _, c := range criteria {
		score, err := c.fn(e, snap)
		if err != nil {
			rows = append(rows, CriterionScore{Name: c.name, Error: err.Error()})
			continue
		}
		score = clamp01(score)
		rows = append(rows, CriterionScore{Name: c.name, Score: score})
		sum += score
		contributed++
	}

	overall := 0.0
	if contributed > 0 {
		overall = sum / float64(contributed)
	}

	return Result{
		OverallScore:      overall,
		CriteriaCount:     contributed,
		Criteria:          rows,
		ConfidenceLevel:   ConfidenceFor(overall, snap.coverage),
		BusinessAlignment: snap.alignment,
		Objectives:        objectives,
		Recommendations:   e.recommend(rows, snap),
		PassRate:          snap.passRate,
		TestCoverage:      snap.coverage,
		EvaluatedAt:       time.Now().UTC(),
	}
}

func buildSnapshot(in Input) *snapshot {
	s := &snapshot{
		byCategory: make(map[string]catStats),
		categories: make(map[string]bool),
		total:      len(in.Results),
	}
	for _, r := range in.Results {
		cat := strings.ToLower(strings.TrimSpace(r.Category))
		if cat == "" {
			cat = "functionality"
		}
		st := s.byCategory[cat]
		st.sum += clamp01(r.OverallScore)
		st.n++
		st.issues += len(r.Issues)
		s.byCategory[cat] = st
		s.categories[cat] = true
		if r.Status == scenario.StatusCompleted {
			s.completed++
		}
	}
	if s.total > 0 {
		s.passRate = float64(s.completed) / float64(s.total)
	}
	if in.PlannedCount > 0 {
		s.coverage = clamp01(float64(s.total) / float64(in.PlannedCount))
	}
	return s
}

func (e *Engine) evalLayout(s *snapshot) (float64, error) {
	mean, n := s.categoryMean("layout", "content")
	if n == 0 {
		return 0, errors.New("no layout or content results")
	}
	return mean * e.weights.Layout, nil
}

func (e *Engine) evalFunctionality(s *snapshot) (float64, error) {
	mean, n := s.categoryMean("functionality", "contract")
	if n == 0 {
		return 0, errors.New("no functional results")
	}
	return mean * e.weights.Functionality, nil
}

func (e *Engine) evalPerformance(s *snapshot) (float64, error) {
	mean, n := s.categoryMean("performance")
	if n == 0 {
		return 0, errors.New("no performance results")
	}
	return mean * e.weights.Performance, nil
}

func (e *Engine) evalUserExperience(s *snapshot) (float64, error) {
	mean, n := s.categoryMean("ux", "accessibility")
	if n == 0 {
		return 0, errors.New("no user-experience results")
	}
	// Reported issues drag the score down: 0.05 per issue averaged over the
	// contributing results, capped at 0.25.
	penalty := 0.05 * float64(s.categoryIssues("ux", "accessibility")) / float64(n)
	if penalty > 0.25 {
		penalty = 0.25
	}
	return mean*e.weights.UserExperience - penalty, nil
}

func (e *Engine) evalBusinessLogic(s *snapshot) (float64, error) {
	if !s.hasObjectives {
		return 0, errors.New("no business objectives extracted from goals")
	}
	return s.alignment * e.weights.BusinessLogic, nil
}

var criterionAdvice = map[string]string{
	"layout":          "Address layout and content defects: structural checks scored below threshold.",
	"functionality":   "Stabilize failing functional scenarios before release.",
	"performance":     "Profile slow endpoints: performance checks scored below threshold.",
	"user_experience": "Resolve the reported usability issues to reduce UX friction.",
	"business_logic":  "Add scenarios covering the unmet business objectives.",
}

// recommend emits per-criterion advice in declared criterion order for any
// score under the threshold, then global advice keyed off pass rate and
// coverage. Output is fully determined by its inputs.
func (e *Engine) recommend(rows []CriterionScore, s *snapshot) []string {
	recs := make([]string, 0, 4)
	for _, row := range rows {
		if row.Error != "" {
			continue
		}
		if row.Score < e.recThreshold {
			if advice, ok := criterionAdvice[row.Name]; ok {
				recs = append(recs, advice)
			}
		}
	}
	if s.passRate < 0.5 {
		recs = append(recs, "Over half of the executed scenarios failed; triage regressions before release.")
	}
	if s.coverage < 0.6 {
		recs = append(recs, fmt.Sprintf("Only %.0f%% of planned scenarios produced results; re-delegate the missing ones.", s.coverage*100))
	}
	if len(recs) == 0 {
		recs = append(recs, "All criteria meet their thresholds; no corrective action required.")
	}
	return recs
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
