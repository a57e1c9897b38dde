package transcript

import (
	"fmt"
	"strings"

	"github.com/tablestakes/brigade/internal/committee"
	"github.com/tablestakes/brigade/internal/plan"
)

// Formatter renders committee records for console output
type Formatter struct{}

// NewFormatter creates a new transcript formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// FormatCritique formats one critic's verdict with its issues and fixes
func (f *Formatter) FormatCritique(c *plan.Critique) string {
	verdict := "approve"
	if !c.Approve {
		verdict = "reject"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s (%d issue(s), %d fix(es))",
		c.AgentID, c.AgentName, verdict, len(c.Issues), len(c.Fixes))

	for _, issue := range c.Issues {
		fmt.Fprintf(&b, "\n  %s %s", f.severityTag(issue), issue.Message)
	}
	for _, fix := range c.Fixes {
		fmt.Fprintf(&b, "\n  fix: %s", plan.Describe(fix))
	}

	return b.String()
}

// FormatEntry formats one audit snapshot line
func (f *Formatter) FormatEntry(seq int, entry *committee.AuditEntry) string {
	stage := "stage"
	if len(entry.Critiques) > 0 {
		stage = entry.Critiques[0].AgentID
	}
	return fmt.Sprintf("[audit %d] %s: status=%s spend=%.2f waste=%.2f score=%.3f",
		seq, stage, entry.Status, entry.Metrics.TotalSpend,
		entry.Metrics.ProjectedWasteCost, entry.Metrics.Score)
}

// FormatDecision formats the terminal decision with any hard-constraint
// violations
func (f *Formatter) FormatDecision(d *committee.Decision) string {
	var b strings.Builder
	fmt.Fprintf(&b, "decision: %s (spend=%.2f score=%.3f stockout=%.2f)",
		d.Status, d.Metrics.TotalSpend, d.Metrics.Score, d.Metrics.StockoutProbability)

	if !d.HardConstraints.Passed {
		for _, v := range d.HardConstraints.Violations {
			fmt.Fprintf(&b, "\n  violation: %s", v)
		}
	}

	return b.String()
}

func (f *Formatter) severityTag(issue plan.Issue) string {
	tag := strings.ToUpper(string(issue.Severity))
	if issue.Blocking {
		return fmt.Sprintf("[%s/BLOCKING]", tag)
	}
	return fmt.Sprintf("[%s]", tag)
}
