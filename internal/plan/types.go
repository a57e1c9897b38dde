package plan

import (
	"time"
)

// Severity classifies how serious a critique issue is
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Status is the resolved state of a committee run
type Status string

const (
	StatusApproved         Status = "approved"
	StatusNeedsHumanReview Status = "needs_human_review"
	StatusBlocked          Status = "blocked"
)

// Mode selects how many critics review a proposal
type Mode string

const (
	// ModeSingle runs the planner only.
	ModeSingle Mode = "single"
	// ModeDual adds the risk critic.
	ModeDual Mode = "dual"
	// ModeTriple adds the history critic on top of risk, when
	// policy.use_history_agent is set.
	ModeTriple Mode = "triple"
)

// DemandPlanItem is one ingredient's demand plan. RequiredQty, OnHandQty,
// UnderOrderRisk, ShelfLifeHours, and WasteCostPerUnit are inputs; every
// other quantity is derived and must only change through a patch followed by
// RecalcDemandSummaries.
type DemandPlanItem struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Unit               string   `json:"unit"`
	RequiredQty        float64  `json:"required_qty"`
	OnHandQty          float64  `json:"on_hand_qty"`
	RecommendedQty     float64  `json:"recommended_qty"`
	PlannedPurchaseQty float64  `json:"planned_purchase_qty"`
	OverageQty         float64  `json:"overage_qty"`
	ProjectedWasteQty  float64  `json:"projected_waste_qty"`
	ProjectedWasteCost float64  `json:"projected_waste_cost"`
	UnderOrderRisk     float64  `json:"under_order_risk"`
	AdjustedRisk       float64  `json:"adjusted_risk"`
	ShelfLifeHours     *float64 `json:"shelf_life_hours,omitempty"`
	WasteCostPerUnit   float64  `json:"waste_cost_per_unit"`
}

// PurchaseOrderLine is a single SKU line on a purchase order
type PurchaseOrderLine struct {
	ID       string  `json:"id"`
	ItemID   string  `json:"item_id"`
	Qty      float64 `json:"qty"`
	UnitCost float64 `json:"unit_cost"`
}

// PurchaseOrder groups lines for one supplier order. Lines with qty <= 0 and
// orders with no lines are removed during sanitization.
type PurchaseOrder struct {
	ID    string              `json:"id"`
	Lines []PurchaseOrderLine `json:"lines"`
}

// QualityGate is a QC checkpoint with a 0-1 risk score
type QualityGate struct {
	ID        string  `json:"id"`
	RiskScore float64 `json:"risk_score"`
}

// PrepTask is a scheduled prep block with a labor overtime risk
type PrepTask struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	StartAt      time.Time `json:"start_at"`
	EndAt        time.Time `json:"end_at"`
	LaborHours   float64   `json:"labor_hours"`
	OvertimeRisk float64   `json:"overtime_risk"`
}

// Proposal is the unit of critique and mutation: a complete purchasing and
// production plan snapshot. Pipeline stages never mutate a proposal in place;
// they clone, patch, and append the new snapshot to the audit trail.
type Proposal struct {
	Demand         []DemandPlanItem `json:"demand"`
	PurchaseOrders []PurchaseOrder  `json:"purchase_orders"`
	Quality        []QualityGate    `json:"quality"`
	PrepTasks      []PrepTask       `json:"prep_tasks"`
	Notes          []string         `json:"notes"`
}

// Clone returns a deep, independent copy of the proposal
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}

	next := &Proposal{
		Demand:         make([]DemandPlanItem, len(p.Demand)),
		PurchaseOrders: make([]PurchaseOrder, len(p.PurchaseOrders)),
		Quality:        make([]QualityGate, len(p.Quality)),
		PrepTasks:      make([]PrepTask, len(p.PrepTasks)),
		Notes:          make([]string, len(p.Notes)),
	}

	for i, d := range p.Demand {
		if d.ShelfLifeHours != nil {
			hours := *d.ShelfLifeHours
			d.ShelfLifeHours = &hours
		}
		next.Demand[i] = d
	}

	for i, po := range p.PurchaseOrders {
		lines := make([]PurchaseOrderLine, len(po.Lines))
		copy(lines, po.Lines)
		po.Lines = lines
		next.PurchaseOrders[i] = po
	}

	copy(next.Quality, p.Quality)
	copy(next.PrepTasks, p.PrepTasks)
	copy(next.Notes, p.Notes)

	return next
}

// FindPurchaseLine locates a purchase order and line by id. Returns nil, nil
// when either is missing.
func (p *Proposal) FindPurchaseLine(orderID, lineID string) (*PurchaseOrder, *PurchaseOrderLine) {
	for i := range p.PurchaseOrders {
		if p.PurchaseOrders[i].ID != orderID {
			continue
		}
		po := &p.PurchaseOrders[i]
		for j := range po.Lines {
			if po.Lines[j].ID == lineID {
				return po, &po.Lines[j]
			}
		}
		return po, nil
	}
	return nil, nil
}

// FindDemand locates a demand item by id, or nil
func (p *Proposal) FindDemand(id string) *DemandPlanItem {
	for i := range p.Demand {
		if p.Demand[i].ID == id {
			return &p.Demand[i]
		}
	}
	return nil
}

// FindPrepTask locates a prep task by id, or nil
func (p *Proposal) FindPrepTask(id string) *PrepTask {
	for i := range p.PrepTasks {
		if p.PrepTasks[i].ID == id {
			return &p.PrepTasks[i]
		}
	}
	return nil
}

// PurchasedQty sums the purchased quantity across all order lines for an item
func (p *Proposal) PurchasedQty(itemID string) float64 {
	var total float64
	for _, po := range p.PurchaseOrders {
		for _, line := range po.Lines {
			if line.ItemID == itemID {
				total += line.Qty
			}
		}
	}
	return total
}

// Issue is a structured finding raised by a critic
type Issue struct {
	ID          string   `json:"id"`
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	Blocking    bool     `json:"blocking"`
	AffectedIDs []string `json:"affected_ids,omitempty"`
}

// Metrics is the quantitative summary of a proposal snapshot. Score is the
// weighted composite; lower is better.
type Metrics struct {
	TotalSpend          float64 `json:"total_spend"`
	StockoutProbability float64 `json:"stockout_probability"`
	ProjectedWasteCost  float64 `json:"projected_waste_cost"`
	ProjectedWasteQty   float64 `json:"projected_waste_qty"`
	ShelfLifeViolations int     `json:"shelf_life_violations"`
	QualityRisk         float64 `json:"quality_risk"`
	OvertimeHours       float64 `json:"overtime_hours"`
	Score               float64 `json:"score"`
}

// HardConstraintResult records non-negotiable rule violations. Any violation
// forces the run to blocked regardless of critic approvals.
type HardConstraintResult struct {
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations"`
}

// Critique is one critic's verdict on a proposal
type Critique struct {
	AgentID   string    `json:"agent_id"`
	AgentName string    `json:"agent_name"`
	Issues    []Issue   `json:"issues"`
	Fixes     PatchList `json:"fixes"`
	Metrics   Metrics   `json:"metrics"`
	Approve   bool      `json:"approve"`
}

// HasBlockingIssue reports whether any issue in the critique is blocking
func (c *Critique) HasBlockingIssue() bool {
	for _, issue := range c.Issues {
		if issue.Blocking {
			return true
		}
	}
	return false
}

// Clamp01 clamps a probability-like value into [0, 1]
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
