package plan

import (
	"time"
)

// Weights are the per-dimension multipliers for the composite score
type Weights struct {
	Cost     float64 `json:"cost"`
	Stockout float64 `json:"stockout"`
	Waste    float64 `json:"waste"`
	Shelf    float64 `json:"shelf"`
	QC       float64 `json:"qc"`
	Labor    float64 `json:"labor"`
}

// Constraints are the hard-gate thresholds and the over-order buffer used by
// the demand shortage heuristic
type Constraints struct {
	MaxUnderOrderRisk float64 `json:"max_under_order_risk"`
	EnforceShelfLife  bool    `json:"enforce_shelf_life"`
	MinShelfLifeHours float64 `json:"min_shelf_life_hours"`
	EnforceT24Lock    bool    `json:"enforce_t24_lock"`
	T24LockHours      float64 `json:"t24_lock_hours"`
	OverOrderBuffer   float64 `json:"over_order_buffer"`
}

// Policy is the operator-tunable committee configuration
type Policy struct {
	Weights                   Weights       `json:"weights"`
	Constraints               Constraints   `json:"constraints"`
	Quorum                    float64       `json:"quorum"`
	EscalateSpendDeltaPct     float64       `json:"escalate_spend_delta_pct"`
	EscalateDisagreementScore float64       `json:"escalate_disagreement_score"`
	TargetWastePct            float64       `json:"target_waste_pct"`
	UseHistoryAgent           bool          `json:"use_history_agent"`
	CriticTimeout             time.Duration `json:"critic_timeout,omitempty"`
}

// Context carries the mode, policy, and optional service date for one run
type Context struct {
	Mode        Mode   `json:"mode"`
	Policy      Policy `json:"policy"`
	ServiceDate string `json:"service_date,omitempty"`
}

// ServiceTime parses the service date. Accepts a date ("2006-01-02") or an
// RFC3339 timestamp. Returns the zero time when unset or unparsable, in which
// case T-24 lock checks are skipped.
func (c *Context) ServiceTime() time.Time {
	if c.ServiceDate == "" {
		return time.Time{}
	}
	if t, err := time.Parse("2006-01-02", c.ServiceDate); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, c.ServiceDate); err == nil {
		return t
	}
	return time.Time{}
}

// InT24Window reports whether a prep task starts inside the lock window
// before the service date. Always false when T-24 lock is off or no service
// date is set.
func (c *Context) InT24Window(task *PrepTask) bool {
	if !c.Policy.Constraints.EnforceT24Lock {
		return false
	}
	service := c.ServiceTime()
	if service.IsZero() {
		return false
	}
	windowStart := service.Add(-time.Duration(c.Policy.Constraints.T24LockHours * float64(time.Hour)))
	return !task.StartAt.Before(windowStart) && !task.StartAt.After(service)
}
