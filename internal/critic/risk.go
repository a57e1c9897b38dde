package critic

import (
	"context"
	"fmt"
	"math"

	"github.com/tablestakes/brigade/internal/metrics"
	"github.com/tablestakes/brigade/internal/plan"
)

// Issue codes raised by the risk critic
const (
	CodeUnderOrder    = "under_order"
	CodeRiskThreshold = "risk_threshold"
	CodeShelfLife     = "shelf_life"
	CodeWasteTrim     = "waste_trim"
	CodeQCRisk        = "qc_risk"
	CodeT24Labor      = "t24_labor"
)

// wasteFloor is the absolute waste volume below which trim warnings are not
// worth raising
const wasteFloor = 0.5

// RiskAgent is the mandatory second critic. It checks every demand item
// against the buffered requirement, the risk ceiling, shelf life, and the
// waste target, then surveys QC gates and the T-24 labor window.
type RiskAgent struct{}

// NewRiskAgent returns the risk critic
func NewRiskAgent() *RiskAgent {
	return &RiskAgent{}
}

func (a *RiskAgent) ID() string   { return "risk" }
func (a *RiskAgent) Name() string { return "Risk Review" }

// Critique evaluates the proposal as given. Metrics and hard constraints are
// computed on the unpatched proposal; the verdict is approve only when no
// blocking issue was raised and hard constraints pass.
func (a *RiskAgent) Critique(ctx context.Context, p *plan.Proposal, in *plan.Inputs, cc *plan.Context) (*plan.Critique, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cons := cc.Policy.Constraints
	var issues []plan.Issue
	var fixes plan.PatchList

	for i := range p.Demand {
		d := &p.Demand[i]
		buffered := d.RequiredQty * (1 + cons.OverOrderBuffer)

		if d.RecommendedQty < buffered {
			shortfall := buffered - d.RecommendedQty
			issues = append(issues, plan.Issue{
				ID:          "risk-under-order-" + d.ID,
				Code:        CodeUnderOrder,
				Message:     fmt.Sprintf("%s covers %.2f %s of a %.2f buffered minimum", d.Name, d.RecommendedQty, d.Unit, buffered),
				Severity:    plan.SeverityCritical,
				Blocking:    true,
				AffectedIDs: []string{d.ID},
			})
			fixes = append(fixes, raisePurchase(p, d, shortfall, buffered,
				fmt.Sprintf("cover %s shortfall of %.2f %s", d.Name, shortfall, d.Unit)))
		}

		if d.AdjustedRisk > cons.MaxUnderOrderRisk {
			target := d.RequiredQty * (1 + cons.MaxUnderOrderRisk + 0.1)
			issues = append(issues, plan.Issue{
				ID:          "risk-threshold-" + d.ID,
				Code:        CodeRiskThreshold,
				Message:     fmt.Sprintf("%s adjusted risk %.2f exceeds limit %.2f", d.Name, d.AdjustedRisk, cons.MaxUnderOrderRisk),
				Severity:    plan.SeverityCritical,
				Blocking:    true,
				AffectedIDs: []string{d.ID},
			})
			maxRisk := cons.MaxUnderOrderRisk
			fixes = append(fixes, plan.AdjustDemandRecommendation{
				DemandID:          d.ID,
				NewRecommendedQty: target,
				NewUnderOrderRisk: &maxRisk,
				Reason:            fmt.Sprintf("bring %s under the %.2f risk ceiling", d.Name, maxRisk),
			})
		}

		if cons.EnforceShelfLife && d.ShelfLifeHours != nil && *d.ShelfLifeHours < cons.MinShelfLifeHours {
			issues = append(issues, plan.Issue{
				ID:          "risk-shelf-life-" + d.ID,
				Code:        CodeShelfLife,
				Message:     fmt.Sprintf("%s shelf life %.0fh is below the %.0fh minimum", d.Name, *d.ShelfLifeHours, cons.MinShelfLifeHours),
				Severity:    plan.SeverityCritical,
				Blocking:    true,
				AffectedIDs: []string{d.ID},
			})
			// No auto-fix: quantity changes cannot extend shelf life.
		}

		if d.RecommendedQty > 0 {
			wasteRatio := d.ProjectedWasteQty / d.RecommendedQty
			if wasteRatio > 1.5*cc.Policy.TargetWastePct && d.ProjectedWasteQty > wasteFloor {
				issues = append(issues, plan.Issue{
					ID:          "risk-waste-" + d.ID,
					Code:        CodeWasteTrim,
					Message:     fmt.Sprintf("%s projects %.2f %s waste (%.0f%% of recommendation)", d.Name, d.ProjectedWasteQty, d.Unit, wasteRatio*100),
					Severity:    plan.SeverityWarning,
					Blocking:    false,
					AffectedIDs: []string{d.ID},
				})
				fixes = append(fixes, trimPurchase(p, d, buffered,
					fmt.Sprintf("trim %s to the buffered minimum", d.Name)))
			}
		}
	}

	var riskyGates []string
	for _, q := range p.Quality {
		if q.RiskScore > 0.75 {
			riskyGates = append(riskyGates, q.ID)
		}
	}
	if len(riskyGates) > 0 {
		issues = append(issues, plan.Issue{
			ID:          "risk-qc",
			Code:        CodeQCRisk,
			Message:     fmt.Sprintf("%d quality gate(s) carry risk above 0.75", len(riskyGates)),
			Severity:    plan.SeverityWarning,
			Blocking:    false,
			AffectedIDs: riskyGates,
		})
	}

	for i := range p.PrepTasks {
		task := &p.PrepTasks[i]
		if cc.InT24Window(task) && task.OvertimeRisk > 0.25 {
			issues = append(issues, plan.Issue{
				ID:          "risk-t24-" + task.ID,
				Code:        CodeT24Labor,
				Message:     fmt.Sprintf("prep task %q sits inside the T-24 lock window with overtime risk %.2f", task.Title, task.OvertimeRisk),
				Severity:    plan.SeverityWarning,
				Blocking:    false,
				AffectedIDs: []string{task.ID},
			})
		}
	}

	m := metrics.Compute(p, cc)
	hc := metrics.EvaluateHardConstraints(p, m, cc)

	critique := &plan.Critique{
		AgentID:   a.ID(),
		AgentName: a.Name(),
		Issues:    issues,
		Fixes:     fixes,
		Metrics:   m,
		Approve:   !hasBlocking(issues) && hc.Passed,
	}
	return critique, nil
}

// raisePurchase proposes raising the item's first purchase line by the
// shortfall, or raising the demand recommendation when no line exists.
func raisePurchase(p *plan.Proposal, d *plan.DemandPlanItem, shortfall, buffered float64, reason string) plan.Patch {
	if orderID, line := lineForItem(p, d.ID); line != nil {
		return plan.AdjustPurchaseOrderQuantity{
			PurchaseOrderID: orderID,
			LineID:          line.ID,
			NewQty:          line.Qty + shortfall,
			Reason:          reason,
		}
	}
	return plan.AdjustDemandRecommendation{
		DemandID:          d.ID,
		NewRecommendedQty: buffered,
		Reason:            reason,
	}
}

// trimPurchase proposes cutting the item's first purchase line down to the
// buffered minimum, never below the requirement.
func trimPurchase(p *plan.Proposal, d *plan.DemandPlanItem, buffered float64, reason string) plan.Patch {
	if orderID, line := lineForItem(p, d.ID); line != nil {
		excess := d.RecommendedQty - buffered
		return plan.AdjustPurchaseOrderQuantity{
			PurchaseOrderID: orderID,
			LineID:          line.ID,
			NewQty:          math.Max(line.Qty-excess, 0),
			Reason:          reason,
		}
	}
	return plan.AdjustDemandRecommendation{
		DemandID:          d.ID,
		NewRecommendedQty: buffered,
		Reason:            reason,
	}
}

func lineForItem(p *plan.Proposal, itemID string) (string, *plan.PurchaseOrderLine) {
	for i := range p.PurchaseOrders {
		po := &p.PurchaseOrders[i]
		for j := range po.Lines {
			if po.Lines[j].ItemID == itemID {
				return po.ID, &po.Lines[j]
			}
		}
	}
	return "", nil
}

func hasBlocking(issues []plan.Issue) bool {
	for _, issue := range issues {
		if issue.Blocking {
			return true
		}
	}
	return false
}
