// Package metrics computes the quantitative summary of a proposal snapshot
// and evaluates hard constraints. Both functions are pure: same proposal and
// context, same result.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tablestakes/brigade/internal/plan"
)

// Compute derives the metrics for a proposal snapshot. The composite score
// normalizes each dimension to a comparable range and combines them through
// the policy weights; lower is better.
func Compute(p *plan.Proposal, cc *plan.Context) plan.Metrics {
	m := plan.Metrics{}

	for _, po := range p.PurchaseOrders {
		for _, line := range po.Lines {
			m.TotalSpend += line.Qty * line.UnitCost
		}
	}

	for _, d := range p.Demand {
		m.ProjectedWasteQty += d.ProjectedWasteQty
		m.ProjectedWasteCost += d.ProjectedWasteCost
		if d.AdjustedRisk > m.StockoutProbability {
			m.StockoutProbability = d.AdjustedRisk
		}
		if cc.Policy.Constraints.EnforceShelfLife &&
			d.ShelfLifeHours != nil &&
			*d.ShelfLifeHours < cc.Policy.Constraints.MinShelfLifeHours {
			m.ShelfLifeViolations++
		}
	}
	m.StockoutProbability = plan.Clamp01(m.StockoutProbability)

	if len(p.Quality) > 0 {
		var sum float64
		for _, q := range p.Quality {
			sum += q.RiskScore
		}
		m.QualityRisk = sum / float64(len(p.Quality))
	}

	var totalLaborHours float64
	for _, t := range p.PrepTasks {
		m.OvertimeHours += t.OvertimeRisk * t.LaborHours
		totalLaborHours += t.LaborHours
	}

	m.Score = score(p, &m, totalLaborHours, cc)
	return m
}

func score(p *plan.Proposal, m *plan.Metrics, totalLaborHours float64, cc *plan.Context) float64 {
	w := cc.Policy.Weights

	costNorm := m.TotalSpend / math.Max(baselineSpend(p), 1)
	wasteNorm := m.ProjectedWasteCost / math.Max(m.TotalSpend, 1)
	shelfNorm := 0.0
	if m.ShelfLifeViolations > 0 {
		shelfNorm = 1.0
	}
	laborNorm := m.OvertimeHours / math.Max(totalLaborHours, 1)

	return w.Cost*costNorm +
		w.Stockout*m.StockoutProbability +
		w.Waste*wasteNorm +
		w.Shelf*shelfNorm +
		w.QC*m.QualityRisk +
		w.Labor*laborNorm
}

// baselineSpend estimates what the required quantities alone would cost,
// using each item's spend-weighted unit cost from its purchase lines and
// falling back to the waste cost per unit for items with no lines.
func baselineSpend(p *plan.Proposal) float64 {
	var baseline float64
	for _, d := range p.Demand {
		var lineSpend, lineQty float64
		for _, po := range p.PurchaseOrders {
			for _, line := range po.Lines {
				if line.ItemID == d.ID {
					lineSpend += line.Qty * line.UnitCost
					lineQty += line.Qty
				}
			}
		}

		unitCost := d.WasteCostPerUnit
		if lineQty > 0 {
			unitCost = lineSpend / lineQty
		}
		baseline += d.RequiredQty * unitCost
	}
	return baseline
}

// EvaluateHardConstraints checks the non-negotiable gates. Violations are
// recorded as structured strings, never raised as errors; any violation
// forces the run to blocked.
func EvaluateHardConstraints(p *plan.Proposal, m plan.Metrics, cc *plan.Context) plan.HardConstraintResult {
	cons := cc.Policy.Constraints
	violations := make([]string, 0)

	if m.StockoutProbability > cons.MaxUnderOrderRisk {
		violations = append(violations, fmt.Sprintf(
			"stockout probability %.2f exceeds maximum %.2f",
			m.StockoutProbability, cons.MaxUnderOrderRisk))
	}

	if cons.EnforceShelfLife {
		var offenders []string
		for _, d := range p.Demand {
			if d.ShelfLifeHours != nil && *d.ShelfLifeHours < cons.MinShelfLifeHours {
				offenders = append(offenders, d.Name)
			}
		}
		if len(offenders) > 0 {
			sort.Strings(offenders)
			violations = append(violations, fmt.Sprintf(
				"shelf life below %.0fh minimum: %s",
				cons.MinShelfLifeHours, strings.Join(offenders, ", ")))
		}
	}

	if cons.EnforceT24Lock {
		for i := range p.PrepTasks {
			task := &p.PrepTasks[i]
			if cc.InT24Window(task) && task.OvertimeRisk > 0.25 {
				violations = append(violations, fmt.Sprintf(
					"prep task %q starts inside the T-%.0f lock window with overtime risk %.2f",
					task.Title, cons.T24LockHours, task.OvertimeRisk))
			}
		}
	}

	return plan.HardConstraintResult{
		Passed:     len(violations) == 0,
		Violations: violations,
	}
}
