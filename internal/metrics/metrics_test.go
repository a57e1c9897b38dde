package metrics

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/tablestakes/brigade/internal/plan"
)

func testContext() *plan.Context {
	return &plan.Context{
		Mode:        plan.ModeDual,
		ServiceDate: "2026-09-01",
		Policy: plan.Policy{
			Weights: plan.Weights{Cost: 0.25, Stockout: 0.30, Waste: 0.20, Shelf: 0.10, QC: 0.10, Labor: 0.05},
			Constraints: plan.Constraints{
				MaxUnderOrderRisk: 0.35,
				EnforceShelfLife:  true,
				MinShelfLifeHours: 48,
				EnforceT24Lock:    true,
				T24LockHours:      24,
				OverOrderBuffer:   0.1,
			},
			TargetWastePct: 0.08,
		},
	}
}

func testProposal() *plan.Proposal {
	shortShelf := 12.0
	return &plan.Proposal{
		Demand: []plan.DemandPlanItem{
			{
				ID: "tomato", Name: "Roma Tomato", Unit: "kg",
				RequiredQty: 100, OnHandQty: 0, RecommendedQty: 110,
				PlannedPurchaseQty: 110, OverageQty: 10,
				ProjectedWasteQty: 10, ProjectedWasteCost: 25,
				AdjustedRisk: 0.2, WasteCostPerUnit: 2.5,
			},
			{
				ID: "basil", Name: "Fresh Basil", Unit: "kg",
				RequiredQty: 10, OnHandQty: 2, RecommendedQty: 11,
				PlannedPurchaseQty: 9, OverageQty: 1,
				ProjectedWasteQty: 1, ProjectedWasteCost: 8,
				AdjustedRisk: 0.45, ShelfLifeHours: &shortShelf, WasteCostPerUnit: 8,
			},
		},
		PurchaseOrders: []plan.PurchaseOrder{
			{
				ID: "po-1",
				Lines: []plan.PurchaseOrderLine{
					{ID: "l-1", ItemID: "tomato", Qty: 110, UnitCost: 3},
					{ID: "l-2", ItemID: "basil", Qty: 9, UnitCost: 10},
				},
			},
		},
		Quality: []plan.QualityGate{
			{ID: "qc-1", RiskScore: 0.8},
			{ID: "qc-2", RiskScore: 0.2},
		},
		PrepTasks: []plan.PrepTask{
			{
				ID: "task-1", Title: "Sauce prep",
				StartAt:    time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
				EndAt:      time.Date(2026, 8, 31, 18, 0, 0, 0, time.UTC),
				LaborHours: 6, OvertimeRisk: 0.5,
			},
		},
	}
}

func TestCompute(t *testing.T) {
	p := testProposal()
	m := Compute(p, testContext())

	wantSpend := 110*3.0 + 9*10.0
	if m.TotalSpend != wantSpend {
		t.Errorf("TotalSpend = %v, want %v", m.TotalSpend, wantSpend)
	}
	if m.ProjectedWasteQty != 11 {
		t.Errorf("ProjectedWasteQty = %v, want 11", m.ProjectedWasteQty)
	}
	if m.ProjectedWasteCost != 33 {
		t.Errorf("ProjectedWasteCost = %v, want 33", m.ProjectedWasteCost)
	}
	if m.StockoutProbability != 0.45 {
		t.Errorf("StockoutProbability = %v, want 0.45", m.StockoutProbability)
	}
	if m.ShelfLifeViolations != 1 {
		t.Errorf("ShelfLifeViolations = %v, want 1", m.ShelfLifeViolations)
	}
	if m.QualityRisk != 0.5 {
		t.Errorf("QualityRisk = %v, want 0.5", m.QualityRisk)
	}
	if m.OvertimeHours != 3 {
		t.Errorf("OvertimeHours = %v, want 3", m.OvertimeHours)
	}
	if m.Score <= 0 {
		t.Errorf("Score = %v, want > 0", m.Score)
	}
}

func TestComputeEmptyProposal(t *testing.T) {
	m := Compute(&plan.Proposal{}, testContext())
	if m.TotalSpend != 0 || m.StockoutProbability != 0 || m.QualityRisk != 0 {
		t.Errorf("empty proposal metrics not zero: %+v", m)
	}
}

func TestComputeClampsStockout(t *testing.T) {
	p := &plan.Proposal{
		Demand: []plan.DemandPlanItem{{ID: "x", AdjustedRisk: 1.7}},
	}
	m := Compute(p, testContext())
	if m.StockoutProbability != 1 {
		t.Errorf("StockoutProbability = %v, want clamped to 1", m.StockoutProbability)
	}
}

func TestScoreIsLowerForLessRiskyProposal(t *testing.T) {
	cc := testContext()
	risky := testProposal()
	safe := testProposal()
	safe.Demand[1].AdjustedRisk = 0.05
	safe.Demand[1].ShelfLifeHours = nil
	safe.Quality[0].RiskScore = 0.1

	if Compute(safe, cc).Score >= Compute(risky, cc).Score {
		t.Error("safer proposal should score lower")
	}
}

func TestEvaluateHardConstraints(t *testing.T) {
	cc := testContext()
	p := testProposal()
	m := Compute(p, cc)

	result := EvaluateHardConstraints(p, m, cc)
	if result.Passed {
		t.Fatal("expected hard constraint failures")
	}

	joined := strings.Join(result.Violations, "\n")
	if !strings.Contains(joined, "stockout probability") {
		t.Errorf("missing stockout violation in %q", joined)
	}
	if !strings.Contains(joined, "Fresh Basil") {
		t.Errorf("shelf-life violation should name the offending item, got %q", joined)
	}
	if !strings.Contains(joined, "Sauce prep") {
		t.Errorf("missing T-24 violation in %q", joined)
	}
}

func TestEvaluateHardConstraintsPass(t *testing.T) {
	cc := testContext()
	p := testProposal()
	p.Demand[1].AdjustedRisk = 0.1
	p.Demand[1].ShelfLifeHours = nil
	p.PrepTasks[0].OvertimeRisk = 0.1

	m := Compute(p, cc)
	result := EvaluateHardConstraints(p, m, cc)
	if !result.Passed {
		t.Errorf("expected pass, got violations %v", result.Violations)
	}
	if len(result.Violations) != 0 {
		t.Errorf("Violations = %v, want empty", result.Violations)
	}
}

func TestEvaluateHardConstraintsDisabledGates(t *testing.T) {
	cc := testContext()
	cc.Policy.Constraints.EnforceShelfLife = false
	cc.Policy.Constraints.EnforceT24Lock = false

	p := testProposal()
	p.Demand[1].AdjustedRisk = 0.1

	m := Compute(p, cc)
	if m.ShelfLifeViolations != 0 {
		t.Errorf("ShelfLifeViolations = %v, want 0 when not enforced", m.ShelfLifeViolations)
	}

	result := EvaluateHardConstraints(p, m, cc)
	if !result.Passed {
		t.Errorf("expected pass with gates disabled, got %v", result.Violations)
	}
}

func TestBaselineSpendFallsBackToWasteCost(t *testing.T) {
	cc := testContext()
	p := &plan.Proposal{
		Demand: []plan.DemandPlanItem{
			{ID: "x", RequiredQty: 10, WasteCostPerUnit: 2},
		},
	}
	// No purchase lines: cost norm divides by required x waste cost = 20
	m := Compute(p, cc)
	if m.TotalSpend != 0 {
		t.Fatalf("TotalSpend = %v, want 0", m.TotalSpend)
	}
	if math.IsNaN(m.Score) || math.IsInf(m.Score, 0) {
		t.Errorf("Score = %v, want finite", m.Score)
	}
}
