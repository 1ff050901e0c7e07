package checks

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Strob0t/TestForge/internal/port/check"
	"github.com/Strob0t/TestForge/internal/port/provider"
)

const judgeMaxTokens = 512

const judgeSystemPrompt = "You are a senior QA reviewer. Score how well a deployed " +
	"target satisfies its requirements. Reply with exactly one line " +
	"'SCORE: <0-100>' followed by one line per defect found, each " +
	"starting with 'ISSUE: '."

var judgeScoreRe = regexp.MustCompile(`(?m)^\s*SCORE:\s*(\d{1,3})`)

// llmJudge asks the provider gateway to review the scenario against
// the session requirements and converts the model's 0-100 verdict
// into a score.
type llmJudge struct {
	chat check.ChatClient
}

func newLLMJudge(deps check.Deps) (check.Check, error) {
	if deps.Chat == nil {
		return nil, fmt.Errorf("llm_judge: chat client is required")
	}
	return &llmJudge{chat: deps.Chat}, nil
}

func (c *llmJudge) Name() string { return "llm_judge" }

func (c *llmJudge) Run(ctx context.Context, in check.Input) (check.ScoreResult, error) {
	prompt := fmt.Sprintf("Requirements:\n%s\n\nScenario: %s (%s)\nTarget: %s",
		in.Requirements, in.Scenario.Name, in.Scenario.Category, in.TargetURL)

	comp, err := c.chat.ChatCompletion(ctx, provider.ChatRequest{
		Messages: []provider.Message{
			{Role: provider.RoleSystem, Content: judgeSystemPrompt},
			{Role: provider.RoleUser, Content: prompt},
		},
		MaxTokens: judgeMaxTokens,
	}, "")
	if err != nil {
		return check.ScoreResult{}, fmt.Errorf("llm_judge: %w", err)
	}

	score, err := parseJudgeScore(comp.Content)
	if err != nil {
		return check.ScoreResult{}, fmt.Errorf("llm_judge: %w", err)
	}

	detail := fmt.Sprintf("model %s scored %d/100", comp.Model, score)
	if comp.FallbackUsed != "" {
		detail += fmt.Sprintf(" (via fallback %s)", comp.FallbackUsed)
	}

	return check.ScoreResult{
		Score:  float64(score) / 100,
		Detail: detail,
		Issues: parseJudgeIssues(comp.Content),
	}, nil
}

// parseJudgeScore extracts the 0-100 verdict, clamping overshoot.
func parseJudgeScore(reply string) (int, error) {
	m := judgeScoreRe.FindStringSubmatch(reply)
	if m == nil {
		return 0, fmt.Errorf("no score in model reply")
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("parse score %q: %w", m[1], err)
	}
	if n > 100 {
		n = 100
	}
	return n, nil
}

func parseJudgeIssues(reply string) []string {
	var issues []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(line, "ISSUE:"); ok {
			if rest = strings.TrimSpace(rest); rest != "" {
				issues = append(issues, rest)
			}
		}
	}
	return issues
}
