package verification

import "strings"

// objectiveDef maps a goal phrase onto an objective name and the set of
// test-result categories that count as evidence for it. Multi-word phrases
// sit before their single-word cousins so the longest match wins; table
// order also fixes extraction order, keeping reports deterministic.
type objectiveDef struct {
	phrase     string
	name       string
	categories []string
}

var objectiveDefs = []objectiveDef{
	{"customer satisfaction", "customer_satisfaction", []string{"ux", "performance", "content"}},
	{"user satisfaction", "customer_satisfaction", []string{"ux", "performance", "content"}},
	{"user experience", "customer_satisfaction", []string{"ux", "performance", "content"}},
	{"revenue", "revenue", []string{"functionality", "performance", "contract"}},
	{"sales", "revenue", []string{"functionality", "performance", "contract"}},
	{"conversion", "conversion", []string{"functionality", "ux"}},
	{"engagement", "engagement", []string{"ux", "content"}},
	{"retention", "retention", []string{"ux", "performance"}},
	{"security", "security", []string{"security"}},
	{"trust", "security", []string{"security", "content"}},
	{"compliance", "compliance", []string{"security", "content"}},
	{"performance", "performance", []string{"performance"}},
	{"speed", "performance", []string{"performance"}},
	{"accessibility", "accessibility", []string{"ux", "content"}},
	{"growth", "growth", []string{"functionality", "content"}},
}

// extractObjectives pulls business objectives out of free-text goals by
// keyword matching against the fixed table. Matching is word-bounded, so
// "resales" does not trigger "sales". Duplicate objective names collapse to
// the first occurrence.
func extractObjectives(goals string) []objectiveDef {
	normalized := normalizeGoals(goals)
	if normalized == "" {
		return nil
	}

	seen := make(map[string]bool)
	var out []objectiveDef
	for _, def := range objectiveDefs {
		if seen[def.name] {
			continue
		}
		if strings.Contains(normalized, " "+def.phrase+" ") {
			seen[def.name] = true
			out = append(out, def)
		}
	}
	return out
}

// normalizeGoals lowercases the text, strips punctuation to spaces, and
// pads the ends so phrase matches are word-bounded.
func normalizeGoals(goals string) string {
	var b strings.Builder
	b.Grow(len(goals) + 2)
	b.WriteByte(' ')
	for _, r := range strings.ToLower(goals) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	b.WriteByte(' ')
	collapsed := strings.Join(strings.Fields(b.String()), " ")
	if collapsed == "" {
		return ""
	}
	return " " + collapsed + " "
}

// coverObjectives marks each objective covered when any observed category
// intersects its category set and returns the covered count.
func coverObjectives(defs []objectiveDef, observed map[string]bool) ([]Objective, int) {
	out := make([]Objective, 0, len(defs))
	covered := 0
	for _, def := range defs {
		obj := Objective{Name: def.name}
		for _, cat := range def.categories {
			if observed[cat] {
				obj.Covered = true
				covered++
				break
			}
		}
		out = append(out, obj)
	}
	return out, covered
}
