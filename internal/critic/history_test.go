package critic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tablestakes/brigade/internal/plan"
)

func historyProposal() *plan.Proposal {
	return &plan.Proposal{
		Demand: []plan.DemandPlanItem{
			{
				ID: "cream", Name: "Heavy Cream", Unit: "l",
				RequiredQty: 10, OnHandQty: 0,
				RecommendedQty: 20, PlannedPurchaseQty: 20,
				OverageQty: 10, ProjectedWasteQty: 10, ProjectedWasteCost: 30,
				UnderOrderRisk: 0.2, AdjustedRisk: 0.1,
				WasteCostPerUnit: 3,
			},
		},
		PurchaseOrders: []plan.PurchaseOrder{
			{ID: "po-1", Lines: []plan.PurchaseOrderLine{
				{ID: "l-1", ItemID: "cream", Qty: 20, UnitCost: 2.8},
			}},
		},
	}
}

func TestHistoryAgentEmptyHistoryApproves(t *testing.T) {
	agent := NewHistoryAgent()

	critique, err := agent.Critique(context.Background(), historyProposal(), &plan.Inputs{}, riskContext())
	require.NoError(t, err)
	require.True(t, critique.Approve)
	require.Empty(t, critique.Issues)
	require.Empty(t, critique.Fixes)
}

func TestHistoryAgentTrimsChronicOverOrder(t *testing.T) {
	agent := NewHistoryAgent()
	in := &plan.Inputs{
		History: []plan.OrderOutcome{
			{ItemID: "cream", OrderedQty: 50, ConsumedQty: 49, WastedQty: 1},
			{ItemID: "cream", OrderedQty: 50, ConsumedQty: 49, WastedQty: 1},
		},
	}

	critique, err := agent.Critique(context.Background(), historyProposal(), in, riskContext())
	require.NoError(t, err)
	require.Len(t, critique.Issues, 1)
	require.Equal(t, CodeHistoricalWaste, critique.Issues[0].Code)
	require.False(t, critique.Issues[0].Blocking)
	require.True(t, critique.Approve)

	require.Len(t, critique.Fixes, 1)
	trim, ok := critique.Fixes[0].(plan.AdjustPurchaseOrderQuantity)
	require.True(t, ok)
	require.InDelta(t, 11.0, trim.NewQty, 1e-9)
}

func TestHistoryAgentToleratesOverageMatchingHistory(t *testing.T) {
	agent := NewHistoryAgent()
	// Past orders wasted more than the current overage ratio, so the
	// overage is in character and no trim is proposed.
	in := &plan.Inputs{
		History: []plan.OrderOutcome{
			{ItemID: "cream", OrderedQty: 50, ConsumedQty: 20, WastedQty: 30},
		},
	}

	critique, err := agent.Critique(context.Background(), historyProposal(), in, riskContext())
	require.NoError(t, err)
	require.Empty(t, critique.Issues)
	require.True(t, critique.Approve)
}

func TestHistoryAgentFlagsRepeatStockouts(t *testing.T) {
	agent := NewHistoryAgent()
	p := historyProposal()
	p.Demand[0].OverageQty = 0
	p.Demand[0].ProjectedWasteQty = 0
	p.Demand[0].AdjustedRisk = 0.28
	in := &plan.Inputs{
		History: []plan.OrderOutcome{
			{ItemID: "cream", OrderedQty: 10, ConsumedQty: 10, StockedOut: true},
			{ItemID: "cream", OrderedQty: 12, ConsumedQty: 12, StockedOut: true},
		},
	}

	critique, err := agent.Critique(context.Background(), p, in, riskContext())
	require.NoError(t, err)
	require.Len(t, critique.Issues, 1)
	require.Equal(t, CodeHistoricalStockout, critique.Issues[0].Code)
	require.False(t, critique.Issues[0].Blocking)
	require.Contains(t, critique.Issues[0].Message, "2 time(s)")
}

func TestHistoryAgentIgnoresItemsWithoutHistory(t *testing.T) {
	agent := NewHistoryAgent()
	in := &plan.Inputs{
		History: []plan.OrderOutcome{
			{ItemID: "something-else", OrderedQty: 100, WastedQty: 90, StockedOut: true},
		},
	}

	critique, err := agent.Critique(context.Background(), historyProposal(), in, riskContext())
	require.NoError(t, err)
	require.Empty(t, critique.Issues)
	require.True(t, critique.Approve)
}
