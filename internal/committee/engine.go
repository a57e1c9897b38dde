// Package committee sequences the purchasing committee pipeline: planner
// seeds a proposal, each critic reviews and patches it in turn, and the
// final decision is resolved from hard constraints, blocking issues, quorum,
// and escalation thresholds. Every intermediate snapshot is recorded in the
// audit trail.
package committee

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/tablestakes/brigade/internal/checksum"
	"github.com/tablestakes/brigade/internal/critic"
	"github.com/tablestakes/brigade/internal/metrics"
	"github.com/tablestakes/brigade/internal/patch"
	"github.com/tablestakes/brigade/internal/plan"
)

// Issue codes raised by the orchestrator itself
const (
	CodePatchNotApplied = "patch_not_applied"
	CodeCriticTimeout   = "critic_timeout"
)

// AuditEntry is a complete, independently cloned snapshot of one pipeline
// stage. SnapshotSHA256 hashes the proposal's canonical JSON so a replayed
// trail can be verified.
type AuditEntry struct {
	Proposal       *plan.Proposal  `json:"proposal"`
	Critiques      []plan.Critique `json:"critiques"`
	Metrics        plan.Metrics    `json:"metrics"`
	Status         plan.Status     `json:"status"`
	Timestamp      time.Time       `json:"timestamp"`
	SnapshotSHA256 string          `json:"snapshot_sha256"`
}

// Decision bundles the terminal state of a run
type Decision struct {
	Status          plan.Status               `json:"status"`
	FinalProposal   *plan.Proposal            `json:"final_proposal"`
	Metrics         plan.Metrics              `json:"metrics"`
	Critiques       []plan.Critique           `json:"critiques"`
	HardConstraints plan.HardConstraintResult `json:"hard_constraints"`
}

// RunResult is everything a caller needs to render, diff, and replay a run
type RunResult struct {
	RunID           string         `json:"run_id"`
	Context         *plan.Context  `json:"context"`
	InitialProposal *plan.Proposal `json:"initial_proposal"`
	Decision        Decision       `json:"decision"`
	Audit           []AuditEntry   `json:"audit"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     time.Time      `json:"completed_at"`
}

// Engine orchestrates one committee run at a time. It holds no mutable
// state, so concurrent runs on separate inputs are safe.
type Engine struct {
	planner critic.Planner
	risk    critic.Critic
	history critic.Critic
	logger  *slog.Logger
}

// NewEngine creates an engine with the given strategies. A nil history critic
// disables the third seat even in triple mode.
func NewEngine(planner critic.Planner, risk critic.Critic, history critic.Critic, logger *slog.Logger) *Engine {
	return &Engine{
		planner: planner,
		risk:    risk,
		history: history,
		logger:  logger,
	}
}

// Run executes the full pipeline: Planning -> RiskReview -> [HistoryReview]
// -> Resolved. A single linear pass, no retry; re-review means a fresh run.
func (e *Engine) Run(ctx context.Context, in *plan.Inputs, cc *plan.Context) (*RunResult, error) {
	runID := fmt.Sprintf("run-%s-%s", time.Now().UTC().Format("20060102-150405"), uuid.New().String()[:8])
	startedAt := time.Now().UTC()

	e.logger.Info("starting committee run", "run_id", runID, "mode", cc.Mode)

	planCtx, cancel := e.stageContext(ctx, cc)
	initial, plannerMetrics, err := e.planner.Plan(planCtx, in, cc)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("planner failed: %w", err)
	}

	working := initial.Clone()
	critiques := []plan.Critique{{
		AgentID:   e.planner.ID(),
		AgentName: e.planner.Name(),
		Issues:    []plan.Issue{},
		Fixes:     plan.PatchList{},
		Metrics:   plannerMetrics,
		Approve:   true,
	}}

	audit := []AuditEntry{e.makeEntry(initial, nil, plannerMetrics, plan.StatusApproved)}

	if cc.Mode != plan.ModeSingle {
		working, critiques, audit, err = e.reviewStage(ctx, e.risk, working, in, cc, critiques, audit)
		if err != nil {
			return nil, err
		}

		if cc.Mode == plan.ModeTriple && cc.Policy.UseHistoryAgent && e.history != nil {
			working, critiques, audit, err = e.reviewStage(ctx, e.history, working, in, cc, critiques, audit)
			if err != nil {
				return nil, err
			}
		}
	}

	finalMetrics := metrics.Compute(working, cc)
	hard := metrics.EvaluateHardConstraints(working, finalMetrics, cc)
	status := resolveStatus(cc, critiques, plannerMetrics, finalMetrics, hard)

	audit = append(audit, e.makeEntry(working, nil, finalMetrics, status))

	e.logger.Info("committee run resolved",
		"run_id", runID,
		"status", status,
		"critics", len(critiques),
		"total_spend", finalMetrics.TotalSpend,
		"score", finalMetrics.Score)

	return &RunResult{
		RunID:           runID,
		Context:         cc,
		InitialProposal: initial,
		Decision: Decision{
			Status:          status,
			FinalProposal:   working,
			Metrics:         finalMetrics,
			Critiques:       critiques,
			HardConstraints: hard,
		},
		Audit:       audit,
		StartedAt:   startedAt,
		CompletedAt: time.Now().UTC(),
	}, nil
}

// reviewStage runs one critic, applies its fixes, and records the stage in
// the audit trail. Skipped fixes surface as non-blocking info issues so
// audit consumers can see dropped patches.
func (e *Engine) reviewStage(
	ctx context.Context,
	c critic.Critic,
	working *plan.Proposal,
	in *plan.Inputs,
	cc *plan.Context,
	critiques []plan.Critique,
	audit []AuditEntry,
) (*plan.Proposal, []plan.Critique, []AuditEntry, error) {
	e.logger.Info("stage: critique", "agent", c.ID())

	critique, err := e.invoke(ctx, c, working, in, cc)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s critique failed: %w", c.ID(), err)
	}
	if critique == nil {
		return working, critiques, audit, nil
	}

	next, skipped := patch.Apply(working, critique.Fixes, cc)
	for _, s := range skipped {
		e.logger.Warn("patch not applied", "agent", c.ID(), "patch", plan.Describe(s.Patch), "reason", s.Reason)
		critique.Issues = append(critique.Issues, plan.Issue{
			ID:       fmt.Sprintf("%s-%s-%d", CodePatchNotApplied, c.ID(), len(critique.Issues)),
			Code:     CodePatchNotApplied,
			Message:  fmt.Sprintf("fix %s was not applied: %s", plan.Describe(s.Patch), s.Reason),
			Severity: plan.SeverityInfo,
			Blocking: false,
		})
	}

	critiques = append(critiques, *critique)

	stageMetrics := metrics.Compute(next, cc)
	stageStatus := plan.StatusApproved
	if !critique.Approve {
		stageStatus = plan.StatusNeedsHumanReview
	}
	audit = append(audit, e.makeEntry(next, []plan.Critique{*critique}, stageMetrics, stageStatus))

	return next, critiques, audit, nil
}

// invoke calls a critic under the policy timeout. A timed-out critic yields
// a synthetic rejecting critique rather than an undefined hang; any other
// failure propagates and aborts the run with no partial result.
func (e *Engine) invoke(ctx context.Context, c critic.Critic, p *plan.Proposal, in *plan.Inputs, cc *plan.Context) (*plan.Critique, error) {
	stageCtx, cancel := e.stageContext(ctx, cc)
	defer cancel()

	critique, err := c.Critique(stageCtx, p, in, cc)
	if err == nil {
		return critique, nil
	}

	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		e.logger.Warn("critic timed out", "agent", c.ID(), "timeout", cc.Policy.CriticTimeout)
		return &plan.Critique{
			AgentID:   c.ID(),
			AgentName: c.Name(),
			Issues: []plan.Issue{{
				ID:       CodeCriticTimeout + "-" + c.ID(),
				Code:     CodeCriticTimeout,
				Message:  fmt.Sprintf("%s did not respond within %s", c.Name(), cc.Policy.CriticTimeout),
				Severity: plan.SeverityCritical,
				Blocking: true,
			}},
			Fixes:   plan.PatchList{},
			Metrics: metrics.Compute(p, cc),
			Approve: false,
		}, nil
	}

	return nil, err
}

func (e *Engine) stageContext(ctx context.Context, cc *plan.Context) (context.Context, context.CancelFunc) {
	if cc.Policy.CriticTimeout > 0 {
		return context.WithTimeout(ctx, cc.Policy.CriticTimeout)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) makeEntry(p *plan.Proposal, critiques []plan.Critique, m plan.Metrics, status plan.Status) AuditEntry {
	snapshot := p.Clone()

	sha, err := checksum.SHA256JSON(snapshot)
	if err != nil {
		// Proposal types always marshal; treat a failure as an empty hash
		// rather than aborting the run.
		e.logger.Warn("failed to hash proposal snapshot", "error", err)
		sha = ""
	}

	return AuditEntry{
		Proposal:       snapshot,
		Critiques:      critiques,
		Metrics:        m,
		Status:         status,
		Timestamp:      time.Now().UTC(),
		SnapshotSHA256: sha,
	}
}

// resolveStatus applies the decision rules in precedence order: hard
// constraints, blocking issues, quorum, escalation thresholds.
func resolveStatus(
	cc *plan.Context,
	critiques []plan.Critique,
	initial, final plan.Metrics,
	hard plan.HardConstraintResult,
) plan.Status {
	if !hard.Passed {
		return plan.StatusBlocked
	}

	for i := range critiques {
		if critiques[i].HasBlockingIssue() {
			return plan.StatusNeedsHumanReview
		}
	}

	totalCritics := 2
	if cc.Mode == plan.ModeTriple {
		totalCritics = 3
	}
	required := requiredApprovals(totalCritics, cc.Policy.Quorum)
	approvals := 0
	for i := range critiques {
		if critiques[i].Approve {
			approvals++
		}
	}
	if approvals < required {
		return plan.StatusNeedsHumanReview
	}

	if cc.Policy.EscalateSpendDeltaPct > 0 {
		spendDelta := math.Abs(final.TotalSpend-initial.TotalSpend) / math.Max(initial.TotalSpend, 1)
		if spendDelta >= cc.Policy.EscalateSpendDeltaPct {
			return plan.StatusNeedsHumanReview
		}
	}

	if cc.Policy.EscalateDisagreementScore > 0 {
		if math.Abs(final.Score-initial.Score) >= cc.Policy.EscalateDisagreementScore {
			return plan.StatusNeedsHumanReview
		}
	}

	return plan.StatusApproved
}

// quorumTolerance absorbs decimal quorum fractions: 0.67 must behave as
// two-thirds, so 3 x 0.67 = 2.01 still requires 2 approvals, not 3.
const quorumTolerance = 0.02

func requiredApprovals(totalCritics int, quorum float64) int {
	return int(math.Ceil(float64(totalCritics)*quorum - quorumTolerance))
}
