// api/models/funnel.go
package models

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrInvalidFunnelDefinition tags every stage-structure validation failure
// so callers can distinguish bad definitions from storage errors.
var ErrInvalidFunnelDefinition = errors.New("invalid funnel definition")

// MaxFunnelStages is a product rule, not an engineering limit: reports and
// charts are designed around at most 5 stages.
const MaxFunnelStages = 5

// Stage is one step in a funnel, bound to a triggering event type.
type Stage struct {
	Order     int    `json:"order" binding:"required"`
	Name      string `json:"name" binding:"required"`
	EventType string `json:"event_type" binding:"required"`
}

// Funnel is an ordered sequence of stages a user is expected to progress
// through. Consumed read-only by the analytics engine.
type Funnel struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Stages      []Stage   `json:"stages"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the stage structure: at least one stage, at most
// MaxFunnelStages, and orders forming a contiguous 1-based sequence.
// Stage event types need not be distinct.
func (f *Funnel) Validate() error {
	if len(f.Stages) == 0 {
		return fmt.Errorf("%w: funnel must have at least one stage", ErrInvalidFunnelDefinition)
	}
	if len(f.Stages) > MaxFunnelStages {
		return fmt.Errorf("%w: funnel cannot have more than %d stages", ErrInvalidFunnelDefinition, MaxFunnelStages)
	}

	orders := make([]int, len(f.Stages))
	for i, s := range f.Stages {
		if s.Name == "" {
			return fmt.Errorf("%w: stage %d has no name", ErrInvalidFunnelDefinition, i+1)
		}
		if s.EventType == "" {
			return fmt.Errorf("%w: stage %q has no event type", ErrInvalidFunnelDefinition, s.Name)
		}
		orders[i] = s.Order
	}
	sort.Ints(orders)
	for i, o := range orders {
		if o != i+1 {
			return fmt.Errorf("%w: stage orders must be sequential starting at 1, got %v", ErrInvalidFunnelDefinition, orders)
		}
	}
	return nil
}

// OrderedStages returns the stages sorted by their order field. The engine
// relies on positional indexing, so callers must not assume the stored slice
// is already sorted.
func (f *Funnel) OrderedStages() []Stage {
	stages := make([]Stage, len(f.Stages))
	copy(stages, f.Stages)
	sort.Slice(stages, func(i, j int) bool { return stages[i].Order < stages[j].Order })
	return stages
}

// EventTypes returns the distinct event types bound to the funnel's stages,
// in stage order.
func (f *Funnel) EventTypes() []string {
	seen := make(map[string]bool, len(f.Stages))
	var types []string
	for _, s := range f.OrderedStages() {
		if !seen[s.EventType] {
			seen[s.EventType] = true
			types = append(types, s.EventType)
		}
	}
	return types
}

// CreateFunnelRequest is the funnel creation payload.
type CreateFunnelRequest struct {
	ProjectID   string  `json:"project_id" binding:"required"`
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Stages      []Stage `json:"stages" binding:"required"`
}

// UpdateFunnelRequest is the funnel update payload.
type UpdateFunnelRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Stages      []Stage `json:"stages" binding:"required"`
}
