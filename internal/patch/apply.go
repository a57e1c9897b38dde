// Package patch applies critic fixes to a proposal and re-derives every
// dependent quantity so the proposal stays internally consistent. It is the
// single source of truth for demand-derived fields.
package patch

import (
	"math"

	"github.com/tablestakes/brigade/internal/plan"
)

// Skipped records a patch that referenced a nonexistent order, line, or task
// and was dropped without mutating the proposal.
type Skipped struct {
	Patch  plan.Patch
	Reason string
}

// Apply applies patches in list order, sanitizes purchase orders, and
// recalculates demand summaries. An empty patch list returns the original
// proposal untouched, same pointer, no clone. Patches with unresolvable
// references are skipped and reported; they never mutate the proposal.
func Apply(p *plan.Proposal, patches []plan.Patch, cc *plan.Context) (*plan.Proposal, []Skipped) {
	if len(patches) == 0 {
		return p, nil
	}

	next := p.Clone()
	var skipped []Skipped

	for _, pt := range patches {
		switch v := pt.(type) {
		case plan.AdjustPurchaseOrderQuantity:
			_, line := next.FindPurchaseLine(v.PurchaseOrderID, v.LineID)
			if line == nil {
				skipped = append(skipped, Skipped{Patch: pt, Reason: "purchase order line not found"})
				continue
			}
			line.Qty = math.Max(0, v.NewQty)

		case plan.AdjustDemandRecommendation:
			d := next.FindDemand(v.DemandID)
			if d == nil {
				skipped = append(skipped, Skipped{Patch: pt, Reason: "demand item not found"})
				continue
			}
			d.RecommendedQty = math.Max(d.RequiredQty, v.NewRecommendedQty)
			d.PlannedPurchaseQty = math.Max(d.RecommendedQty-d.OnHandQty, 0)
			d.OverageQty = math.Max(d.RecommendedQty-d.RequiredQty, 0)
			d.ProjectedWasteQty = d.OverageQty
			d.ProjectedWasteCost = d.OverageQty * d.WasteCostPerUnit
			if v.NewUnderOrderRisk != nil {
				d.AdjustedRisk = plan.Clamp01(*v.NewUnderOrderRisk)
			}

		case plan.AddNote:
			next.Notes = append(next.Notes, v.Note)

		case plan.UpdatePrepTaskWindow:
			task := next.FindPrepTask(v.TaskID)
			if task == nil {
				skipped = append(skipped, Skipped{Patch: pt, Reason: "prep task not found"})
				continue
			}
			task.StartAt = v.StartAt
			task.EndAt = v.EndAt
		}
	}

	SanitizePurchaseOrders(next)
	RecalcDemandSummaries(next, cc)

	return next, skipped
}

// SanitizePurchaseOrders drops zero and negative quantity lines, then drops
// orders left with no lines.
func SanitizePurchaseOrders(p *plan.Proposal) {
	orders := p.PurchaseOrders[:0]
	for _, po := range p.PurchaseOrders {
		lines := po.Lines[:0]
		for _, line := range po.Lines {
			if line.Qty > 0 {
				lines = append(lines, line)
			}
		}
		po.Lines = lines
		if len(po.Lines) > 0 {
			orders = append(orders, po)
		}
	}
	p.PurchaseOrders = orders
}

// RecalcDemandSummaries re-derives every demand item's recommendation,
// overage, waste projection, and adjusted risk from the current purchase
// orders. Risk follows the shortage heuristic: with no shortfall against the
// buffered requirement, risk halves from baseline; otherwise it grows with
// the shortfall relative to the requirement.
func RecalcDemandSummaries(p *plan.Proposal, cc *plan.Context) {
	buffer := cc.Policy.Constraints.OverOrderBuffer

	for i := range p.Demand {
		d := &p.Demand[i]

		purchased := p.PurchasedQty(d.ID)
		d.PlannedPurchaseQty = purchased
		d.RecommendedQty = d.OnHandQty + purchased
		d.OverageQty = math.Max(d.RecommendedQty-d.RequiredQty, 0)
		d.ProjectedWasteQty = d.OverageQty
		d.ProjectedWasteCost = d.OverageQty * d.WasteCostPerUnit

		shortfall := math.Max(d.RequiredQty*(1+buffer)-d.RecommendedQty, 0)
		if shortfall == 0 {
			d.AdjustedRisk = plan.Clamp01(d.UnderOrderRisk / 2)
		} else {
			d.AdjustedRisk = plan.Clamp01(d.UnderOrderRisk + shortfall/(d.RequiredQty+1))
		}
	}
}
