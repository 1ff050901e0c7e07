package scenario

import (
	"errors"
	"fmt"

	"github.com/Strob0t/TestForge/internal/domain/agent"
)

var (
	ErrIDRequired      = errors.New("scenario id is required")
	ErrNameRequired    = errors.New("scenario name is required")
	ErrInvalidPriority = errors.New("invalid priority: must be low, medium, high, or critical")
)

// Validate checks the scenario for structural correctness. An empty
// priority is allowed and is filled with the routing default downstream.
func (s *Scenario) Validate() error {
	if s.ID == "" {
		return ErrIDRequired
	}
	if s.Name == "" {
		return ErrNameRequired
	}
	if s.Priority != "" && !agent.ValidTier(string(s.Priority)) {
		return fmt.Errorf("scenario %s: %w", s.ID, ErrInvalidPriority)
	}
	return nil
}
