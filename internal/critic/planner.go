package critic

import (
	"context"
	"fmt"
	"math"

	"github.com/tablestakes/brigade/internal/metrics"
	"github.com/tablestakes/brigade/internal/patch"
	"github.com/tablestakes/brigade/internal/plan"
)

// HeuristicPlanner builds the seed proposal by topping every forecast item up
// to its buffered requirement, on top of whatever the caller's existing
// purchase orders already cover. It is one pluggable strategy; any Planner
// implementation can replace it.
type HeuristicPlanner struct{}

// NewHeuristicPlanner returns the default planner strategy
func NewHeuristicPlanner() *HeuristicPlanner {
	return &HeuristicPlanner{}
}

func (p *HeuristicPlanner) ID() string   { return "planner" }
func (p *HeuristicPlanner) Name() string { return "Heuristic Planner" }

// Plan assembles the proposal from raw inputs. Forecast order is preserved,
// so identical inputs produce an identical proposal.
func (p *HeuristicPlanner) Plan(ctx context.Context, in *plan.Inputs, cc *plan.Context) (*plan.Proposal, plan.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, plan.Metrics{}, err
	}
	if len(in.Forecast) == 0 {
		return nil, plan.Metrics{}, fmt.Errorf("planner: forecast is empty")
	}

	buffer := cc.Policy.Constraints.OverOrderBuffer

	proposal := &plan.Proposal{
		Demand:         make([]plan.DemandPlanItem, 0, len(in.Forecast)),
		PurchaseOrders: clonePurchaseOrders(in.PurchaseOrders),
		Quality:        append([]plan.QualityGate(nil), in.Quality...),
		PrepTasks:      append([]plan.PrepTask(nil), in.PrepTasks...),
		Notes:          []string{},
	}

	seedOrder := plan.PurchaseOrder{ID: "po-committee-seed"}

	for _, item := range in.Forecast {
		onHand := in.OnHand(item)
		proposal.Demand = append(proposal.Demand, plan.DemandPlanItem{
			ID:               item.ID,
			Name:             item.Name,
			Unit:             item.Unit,
			RequiredQty:      item.RequiredQty,
			OnHandQty:        onHand,
			UnderOrderRisk:   plan.Clamp01(item.UnderOrderRisk),
			ShelfLifeHours:   item.ShelfLifeHours,
			WasteCostPerUnit: item.WasteCostPerUnit,
		})

		// Top up to the buffered requirement beyond on-hand stock and
		// pre-existing commitments.
		committed := purchasedIn(in.PurchaseOrders, item.ID)
		need := math.Max(item.RequiredQty*(1+buffer)-onHand-committed, 0)
		if need > 0 {
			seedOrder.Lines = append(seedOrder.Lines, plan.PurchaseOrderLine{
				ID:       "line-seed-" + item.ID,
				ItemID:   item.ID,
				Qty:      need,
				UnitCost: item.UnitCost,
			})
		}
	}

	if len(seedOrder.Lines) > 0 {
		proposal.PurchaseOrders = append(proposal.PurchaseOrders, seedOrder)
	}

	patch.SanitizePurchaseOrders(proposal)
	patch.RecalcDemandSummaries(proposal, cc)

	return proposal, metrics.Compute(proposal, cc), nil
}

func clonePurchaseOrders(orders []plan.PurchaseOrder) []plan.PurchaseOrder {
	out := make([]plan.PurchaseOrder, len(orders))
	for i, po := range orders {
		po.Lines = append([]plan.PurchaseOrderLine(nil), po.Lines...)
		out[i] = po
	}
	return out
}

func purchasedIn(orders []plan.PurchaseOrder, itemID string) float64 {
	var total float64
	for _, po := range orders {
		for _, line := range po.Lines {
			if line.ItemID == itemID {
				total += line.Qty
			}
		}
	}
	return total
}
