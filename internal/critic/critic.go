// Package critic holds the committee's review strategies. Each critic
// inspects a proposal and returns a critique: structured issues, proposed
// fixes, its own metrics snapshot, and an approve verdict. Critics never
// mutate the proposal they are given; fixes are applied by the orchestrator.
package critic

import (
	"context"

	"github.com/tablestakes/brigade/internal/plan"
)

// Critic reviews a proposal. Implementations must be deterministic given
// identical arguments.
type Critic interface {
	ID() string
	Name() string
	Critique(ctx context.Context, p *plan.Proposal, in *plan.Inputs, cc *plan.Context) (*plan.Critique, error)
}

// Planner produces the seed proposal for a run. The returned proposal must
// already satisfy the demand-summary invariants.
type Planner interface {
	ID() string
	Name() string
	Plan(ctx context.Context, in *plan.Inputs, cc *plan.Context) (*plan.Proposal, plan.Metrics, error)
}
