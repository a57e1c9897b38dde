package critic

import (
	"context"
	"fmt"

	"github.com/tablestakes/brigade/internal/metrics"
	"github.com/tablestakes/brigade/internal/plan"
)

// Issue codes raised by the history critic
const (
	CodeHistoricalWaste    = "historical_waste"
	CodeHistoricalStockout = "historical_stockout"
)

// riskMargin is how close to the risk ceiling an item with past stockouts
// must be before the history critic flags it
const riskMargin = 0.05

// HistoryAgent is the optional third critic. It reasons over past order
// outcomes instead of live constraints: chronic over-orderers get trimmed,
// items with stockout history get a closer look at their risk headroom.
type HistoryAgent struct{}

// NewHistoryAgent returns the history critic
func NewHistoryAgent() *HistoryAgent {
	return &HistoryAgent{}
}

func (a *HistoryAgent) ID() string   { return "history" }
func (a *HistoryAgent) Name() string { return "Order History Review" }

type itemHistory struct {
	ordered   float64
	wasted    float64
	stockouts int
}

// Critique reviews the proposal against the caller's order history. With no
// history supplied it returns an empty approving critique.
func (a *HistoryAgent) Critique(ctx context.Context, p *plan.Proposal, in *plan.Inputs, cc *plan.Context) (*plan.Critique, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byItem := make(map[string]*itemHistory)
	for _, rec := range in.History {
		h := byItem[rec.ItemID]
		if h == nil {
			h = &itemHistory{}
			byItem[rec.ItemID] = h
		}
		h.ordered += rec.OrderedQty
		h.wasted += rec.WastedQty
		if rec.StockedOut {
			h.stockouts++
		}
	}

	cons := cc.Policy.Constraints
	var issues []plan.Issue
	var fixes plan.PatchList

	for i := range p.Demand {
		d := &p.Demand[i]
		h := byItem[d.ID]
		if h == nil {
			continue
		}

		buffered := d.RequiredQty * (1 + cons.OverOrderBuffer)

		if h.ordered > 0 && d.RecommendedQty > 0 {
			histWasteRatio := h.wasted / h.ordered
			overageRatio := d.OverageQty / d.RecommendedQty
			if overageRatio > cc.Policy.TargetWastePct && overageRatio > histWasteRatio && d.OverageQty > wasteFloor {
				issues = append(issues, plan.Issue{
					ID:          "history-waste-" + d.ID,
					Code:        CodeHistoricalWaste,
					Message:     fmt.Sprintf("%s overage %.0f%% exceeds both the waste target and its historical %.0f%% waste rate", d.Name, overageRatio*100, histWasteRatio*100),
					Severity:    plan.SeverityWarning,
					Blocking:    false,
					AffectedIDs: []string{d.ID},
				})
				fixes = append(fixes, trimPurchase(p, d, buffered,
					fmt.Sprintf("%s has not historically consumed this overage", d.Name)))
			}
		}

		if h.stockouts > 0 && d.AdjustedRisk > cons.MaxUnderOrderRisk-riskMargin {
			issues = append(issues, plan.Issue{
				ID:          "history-stockout-" + d.ID,
				Code:        CodeHistoricalStockout,
				Message:     fmt.Sprintf("%s stocked out %d time(s) before and sits at %.2f risk against a %.2f ceiling", d.Name, h.stockouts, d.AdjustedRisk, cons.MaxUnderOrderRisk),
				Severity:    plan.SeverityWarning,
				Blocking:    false,
				AffectedIDs: []string{d.ID},
			})
		}
	}

	critique := &plan.Critique{
		AgentID:   a.ID(),
		AgentName: a.Name(),
		Issues:    issues,
		Fixes:     fixes,
		Metrics:   metrics.Compute(p, cc),
		Approve:   !hasBlocking(issues),
	}
	return critique, nil
}
