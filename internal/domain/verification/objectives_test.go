package verification_test

import (
	"testing"

	"github.com/Strob0t/TestForge/internal/domain/scenario"
	"github.com/Strob0t/TestForge/internal/domain/verification"
)

// Extraction is exercised through Evaluate: the Objectives rows expose what
// was pulled out of the goals text.
func TestObjectiveExtraction(t *testing.T) {
	eng := verification.NewEngine(verification.DefaultWeights(), 0.7)
	base := []scenario.Result{
		{ScenarioID: "s1", Category: "functionality", Status: scenario.StatusCompleted, OverallScore: 1},
	}

	cases := []struct {
		name  string
		goals string
		want  []string
	}{
		{
			name:  "spec example",
			goals: "maximize revenue and customer satisfaction",
			want:  []string{"customer_satisfaction", "revenue"},
		},
		{
			name:  "punctuation and case",
			goals: "Security, TRUST & retention!",
			want:  []string{"retention", "security"},
		},
		{
			name:  "word boundaries respected",
			goals: "resales talk about horsepower",
			want:  nil,
		},
		{
			name:  "duplicate phrases collapse",
			goals: "sales, more sales, and revenue",
			want:  []string{"revenue"},
		},
		{
			name:  "empty goals",
			goals: "",
			want:  nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := eng.Evaluate(verification.Input{Results: base, BusinessGoals: tc.goals, PlannedCount: 1})

			got := make(map[string]bool, len(res.Objectives))
			for _, obj := range res.Objectives {
				got[obj.Name] = true
			}
			if len(got) != len(tc.want) {
				t.Fatalf("extracted %d objectives %v, want %d %v", len(got), res.Objectives, len(tc.want), tc.want)
			}
			for _, name := range tc.want {
				if !got[name] {
					t.Errorf("objective %q not extracted from %q", name, tc.goals)
				}
			}
		})
	}
}

func TestObjectiveCoverage_AlignmentFraction(t *testing.T) {
	eng := verification.NewEngine(verification.DefaultWeights(), 0.7)

	// ux evidence covers customer_satisfaction; security has no evidence.
	res := eng.Evaluate(verification.Input{
		Results: []scenario.Result{
			{ScenarioID: "s1", Category: "ux", Status: scenario.StatusCompleted, OverallScore: 0.9},
		},
		BusinessGoals: "customer satisfaction and security",
		PlannedCount:  1,
	})

	if res.BusinessAlignment != 0.5 {
		t.Fatalf("business_alignment = %f, want 0.5", res.BusinessAlignment)
	}
	for _, obj := range res.Objectives {
		switch obj.Name {
		case "customer_satisfaction":
			if !obj.Covered {
				t.Error("customer_satisfaction should be covered by ux evidence")
			}
		case "security":
			if obj.Covered {
				t.Error("security should not be covered without security evidence")
			}
		}
	}
}
