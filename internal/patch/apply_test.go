package patch

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/tablestakes/brigade/internal/plan"
)

func testContext() *plan.Context {
	return &plan.Context{
		Mode: plan.ModeDual,
		Policy: plan.Policy{
			Constraints: plan.Constraints{OverOrderBuffer: 0.1, MaxUnderOrderRisk: 0.3},
		},
	}
}

func testProposal() *plan.Proposal {
	return &plan.Proposal{
		Demand: []plan.DemandPlanItem{
			{
				ID: "tomato", Name: "Roma Tomato", Unit: "kg",
				RequiredQty: 100, OnHandQty: 0,
				UnderOrderRisk: 0.5, WasteCostPerUnit: 2.5,
			},
		},
		PurchaseOrders: []plan.PurchaseOrder{
			{
				ID: "po-1",
				Lines: []plan.PurchaseOrderLine{
					{ID: "l-1", ItemID: "tomato", Qty: 70, UnitCost: 3},
				},
			},
		},
		PrepTasks: []plan.PrepTask{
			{ID: "task-1", Title: "Prep", LaborHours: 4},
		},
		Notes: []string{},
	}
}

func TestApplyEmptyReturnsSameReference(t *testing.T) {
	p := testProposal()
	next, skipped := Apply(p, nil, testContext())
	if next != p {
		t.Error("empty patch list must return the same proposal, not a clone")
	}
	if skipped != nil {
		t.Errorf("skipped = %v, want nil", skipped)
	}
}

func TestApplyDoesNotMutateOriginal(t *testing.T) {
	p := testProposal()
	patches := []plan.Patch{
		plan.AdjustPurchaseOrderQuantity{PurchaseOrderID: "po-1", LineID: "l-1", NewQty: 110},
	}

	next, _ := Apply(p, patches, testContext())
	if next == p {
		t.Fatal("Apply with patches must clone")
	}
	if p.PurchaseOrders[0].Lines[0].Qty != 70 {
		t.Errorf("original line qty mutated to %v", p.PurchaseOrders[0].Lines[0].Qty)
	}
	if next.PurchaseOrders[0].Lines[0].Qty != 110 {
		t.Errorf("patched line qty = %v, want 110", next.PurchaseOrders[0].Lines[0].Qty)
	}
}

func TestApplyRecalculatesDemand(t *testing.T) {
	p := testProposal()
	patches := []plan.Patch{
		plan.AdjustPurchaseOrderQuantity{PurchaseOrderID: "po-1", LineID: "l-1", NewQty: 110},
	}

	next, _ := Apply(p, patches, testContext())
	d := next.Demand[0]

	if d.RecommendedQty != 110 {
		t.Errorf("RecommendedQty = %v, want 110", d.RecommendedQty)
	}
	if d.RecommendedQty != d.OnHandQty+d.PlannedPurchaseQty {
		t.Errorf("invariant broken: recommended %v != onHand %v + planned %v",
			d.RecommendedQty, d.OnHandQty, d.PlannedPurchaseQty)
	}
	if d.ProjectedWasteQty != 10 {
		t.Errorf("ProjectedWasteQty = %v, want 10", d.ProjectedWasteQty)
	}
	if d.ProjectedWasteCost != 25 {
		t.Errorf("ProjectedWasteCost = %v, want 25", d.ProjectedWasteCost)
	}
	// Buffered requirement met: risk halves from the 0.5 baseline
	if d.AdjustedRisk != 0.25 {
		t.Errorf("AdjustedRisk = %v, want 0.25", d.AdjustedRisk)
	}
}

func TestApplyShortfallRaisesRisk(t *testing.T) {
	p := testProposal()
	patches := []plan.Patch{
		plan.AdjustPurchaseOrderQuantity{PurchaseOrderID: "po-1", LineID: "l-1", NewQty: 90},
	}

	next, _ := Apply(p, patches, testContext())
	d := next.Demand[0]

	// shortfall = 110 - 90 = 20, risk = 0.5 + 20/101
	want := 0.5 + 20.0/101.0
	if d.AdjustedRisk != want {
		t.Errorf("AdjustedRisk = %v, want %v", d.AdjustedRisk, want)
	}
}

func TestApplySkipsUnresolvableReferences(t *testing.T) {
	p := testProposal()
	patches := []plan.Patch{
		plan.AdjustPurchaseOrderQuantity{PurchaseOrderID: "po-missing", LineID: "l-1", NewQty: 1},
		plan.AdjustPurchaseOrderQuantity{PurchaseOrderID: "po-1", LineID: "l-missing", NewQty: 1},
		plan.AdjustDemandRecommendation{DemandID: "missing", NewRecommendedQty: 50},
		plan.UpdatePrepTaskWindow{TaskID: "missing"},
		plan.AddNote{Note: "valid"},
	}

	next, skipped := Apply(p, patches, testContext())

	if len(skipped) != 4 {
		t.Fatalf("skipped %d patches, want 4", len(skipped))
	}
	if next.PurchaseOrders[0].Lines[0].Qty != 70 {
		t.Errorf("line qty changed by skipped patch: %v", next.PurchaseOrders[0].Lines[0].Qty)
	}
	if len(next.Notes) != 1 || next.Notes[0] != "valid" {
		t.Errorf("valid patch in the same batch should still apply: %v", next.Notes)
	}
}

func TestApplyDemandRecommendationFloorsAtRequired(t *testing.T) {
	p := testProposal()
	p.PurchaseOrders = nil
	patches := []plan.Patch{
		plan.AdjustDemandRecommendation{DemandID: "tomato", NewRecommendedQty: 40},
		plan.AddNote{Note: "trim attempt"},
	}

	next, skipped := Apply(p, patches, testContext())
	if len(skipped) != 0 {
		t.Fatalf("unexpected skips: %v", skipped)
	}
	// With no purchase orders the recalc derives everything from on-hand
	d := next.Demand[0]
	if d.RecommendedQty != d.OnHandQty+d.PlannedPurchaseQty {
		t.Errorf("invariant broken after demand patch: %+v", d)
	}
}

func TestApplyClampsNewRisk(t *testing.T) {
	risk := 1.8
	p := testProposal()
	patches := []plan.Patch{
		plan.AdjustDemandRecommendation{DemandID: "tomato", NewRecommendedQty: 120, NewUnderOrderRisk: &risk},
	}

	next, _ := Apply(p, patches, testContext())
	// The recalc pass afterwards recomputes risk from the shortage heuristic,
	// so check the clamp through a proposal with matching purchases.
	if next.Demand[0].AdjustedRisk < 0 || next.Demand[0].AdjustedRisk > 1 {
		t.Errorf("AdjustedRisk = %v, want within [0,1]", next.Demand[0].AdjustedRisk)
	}
}

func TestApplyUpdatesPrepTaskWindow(t *testing.T) {
	p := testProposal()
	start := time.Date(2026, 9, 1, 5, 0, 0, 0, time.UTC)
	end := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	next, skipped := Apply(p, []plan.Patch{
		plan.UpdatePrepTaskWindow{TaskID: "task-1", StartAt: start, EndAt: end},
	}, testContext())

	if len(skipped) != 0 {
		t.Fatalf("unexpected skips: %v", skipped)
	}
	if !next.PrepTasks[0].StartAt.Equal(start) || !next.PrepTasks[0].EndAt.Equal(end) {
		t.Errorf("task window not updated: %+v", next.PrepTasks[0])
	}
}

func TestSanitizeDropsEmptyLinesAndOrders(t *testing.T) {
	p := testProposal()
	p.PurchaseOrders = append(p.PurchaseOrders, plan.PurchaseOrder{
		ID: "po-2",
		Lines: []plan.PurchaseOrderLine{
			{ID: "l-2", ItemID: "tomato", Qty: 0, UnitCost: 3},
			{ID: "l-3", ItemID: "tomato", Qty: -4, UnitCost: 3},
		},
	})

	next, _ := Apply(p, []plan.Patch{plan.AddNote{Note: "n"}}, testContext())

	if len(next.PurchaseOrders) != 1 {
		t.Fatalf("orders = %d, want 1 (empty order dropped)", len(next.PurchaseOrders))
	}
	for _, po := range next.PurchaseOrders {
		for _, line := range po.Lines {
			if line.Qty <= 0 {
				t.Errorf("line %s kept with qty %v", line.ID, line.Qty)
			}
		}
	}
}

func TestApplyZeroQuantityRemovesLine(t *testing.T) {
	p := testProposal()
	next, _ := Apply(p, []plan.Patch{
		plan.AdjustPurchaseOrderQuantity{PurchaseOrderID: "po-1", LineID: "l-1", NewQty: -5},
	}, testContext())

	if len(next.PurchaseOrders) != 0 {
		t.Errorf("order with only a zeroed line should be removed, got %v", next.PurchaseOrders)
	}
}

func TestApplyIsDeterministic(t *testing.T) {
	patches := []plan.Patch{
		plan.AdjustPurchaseOrderQuantity{PurchaseOrderID: "po-1", LineID: "l-1", NewQty: 95},
		plan.AddNote{Note: "pass"},
	}

	first, _ := Apply(testProposal(), patches, testContext())
	second, _ := Apply(testProposal(), patches, testContext())

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal first: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal second: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("Apply is not deterministic for identical inputs")
	}
}
