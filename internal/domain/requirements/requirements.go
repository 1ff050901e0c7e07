// Package requirements defines the requirements submission that opens a session.
package requirements

import (
	"errors"
	"strings"
	"time"
)

// Known requirement categories. The category selects the decomposition
// catalog; anything unrecognized falls back to CategoryDefault.
const (
	CategoryWebApp  = "web_app"
	CategoryAPI     = "api"
	CategoryMobile  = "mobile"
	CategoryDefault = "default"
)

var ErrTextRequired = errors.New("requirements text is required")

// Requirements is the free-text work submission plus the hints the
// orchestrator needs to build and judge a test plan.
type Requirements struct {
	Text          string    `json:"text"`
	Category      string    `json:"category"`
	BusinessGoals string    `json:"business_goals,omitempty"`
	TargetURL     string    `json:"target_url,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// Validate checks the submission and normalizes the category in place.
func (r *Requirements) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrTextRequired
	}
	r.Category = NormalizeCategory(r.Category)
	return nil
}

// NormalizeCategory lowercases c and maps common spellings onto the known
// set; unknown values become CategoryDefault.
func NormalizeCategory(c string) string {
	switch strings.ToLower(strings.TrimSpace(c)) {
	case "web", "webapp", "web_app", "website":
		return CategoryWebApp
	case "api", "rest", "service":
		return CategoryAPI
	case "mobile", "ios", "android":
		return CategoryMobile
	default:
		return CategoryDefault
	}
}
