// Package verification implements fuzzy multi-criterion scoring of a
// session's scenario results: a weighted, confidence-qualified verdict
// instead of a binary pass/fail.
package verification

import "time"

// Confidence qualifies how much the overall score can be trusted given the
// achieved test coverage.
type Confidence string

const (
	ConfidenceVeryHigh Confidence = "very_high"
	ConfidenceHigh     Confidence = "high"
	ConfidenceMedium   Confidence = "medium"
	ConfidenceLow      Confidence = "low"
	ConfidenceVeryLow  Confidence = "very_low"
)

// ConfidenceFor maps (overall score, test coverage) onto a confidence level
// through an ordered first-match table. The ranges overlap on purpose:
// evaluation order carries the semantics, so the cases must not be
// rearranged.
func ConfidenceFor(score, coverage float64) Confidence {
	switch {
	case score > 0.9 && coverage > 0.8:
		return ConfidenceVeryHigh
	case score > 0.8 && coverage > 0.7:
		return ConfidenceHigh
	case score > 0.7 && coverage > 0.6:
		return ConfidenceMedium
	case score > 0.6:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// CriterionScore is one evaluator's contribution. An evaluator that could
// not produce a score records the reason in Error and is excluded from the
// overall mean rather than counted as zero.
type CriterionScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Error string  `json:"error,omitempty"`
}

// Objective is one keyword-extracted business objective and whether any
// test-result category intersects its mapped category set.
type Objective struct {
	Name    string `json:"name"`
	Covered bool   `json:"covered"`
}

// Result is the verification verdict for a session. Written once per
// session; re-running verification overwrites it idempotently.
type Result struct {
	OverallScore      float64          `json:"overall_score"`
	CriteriaCount     int              `json:"criteria_count"`
	Criteria          []CriterionScore `json:"criteria"`
	ConfidenceLevel   Confidence       `json:"confidence_level"`
	BusinessAlignment float64          `json:"business_alignment"`
	Objectives        []Objective      `json:"objectives,omitempty"`
	Recommendations   []string         `json:"recommendations"`
	PassRate          float64          `json:"pass_rate"`
	TestCoverage      float64          `json:"test_coverage"`
	EvaluatedAt       time.Time        `json:"evaluated_at"`
}

// Weights are the per-criterion base factors. They are configuration, not
// literals: deployments tune them per product without rebuilding.
type Weights struct {
	Layout         float64 `json:"layout" yaml:"layout"`
	Functionality  float64 `json:"functionality" yaml:"functionality"`
	Performance    float64 `json:"performance" yaml:"performance"`
	UserExperience float64 `json:"user_experience" yaml:"user_experience"`
	BusinessLogic  float64 `json:"business_logic" yaml:"business_logic"`
}

// DefaultWeights returns the stock per-criterion factors.
func DefaultWeights() Weights {
	return Weights{
		Layout:         0.85,
		Functionality:  0.90,
		Performance:    0.80,
		UserExperience: 0.75,
		BusinessLogic:  0.85,
	}
}

// Valid reports whether every weight is in (0, 1].
func (w Weights) Valid() bool {
	for _, v := range []float64{w.Layout, w.Functionality, w.Performance, w.UserExperience, w.BusinessLogic} {
		if v <= 0 || v > 1 {
			return false
		}
	}
	return true
}
