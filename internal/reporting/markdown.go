package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Capital Stack Report: %s\n\n", r.ProjectName))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s` | Budget: %s | Scenarios: %d\n\n", r.RunID, r.Budget, len(r.Scenarios)))

	// Tax credit
	if c := r.Claim; c != nil {
		sb.WriteString("## Tax Credit\n\n")
		sb.WriteString(fmt.Sprintf("Jurisdictions: %s\n\n", strings.Join(c.Jurisdictions, ", ")))
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Qualifying Spend | %s |\n", c.QualifyingSpend))
		sb.WriteString(fmt.Sprintf("| Effective Rate | %s%% |\n", c.EffectiveRatePct))
		sb.WriteString(fmt.Sprintf("| Stacking Cap Applied | %t |\n", c.Capped))
		sb.WriteString(fmt.Sprintf("| Gross Credit | %s |\n", c.GrossCredit))
		sb.WriteString("\n")

		sb.WriteString("| Option | Kind | Rate | Net | Delay |\n")
		sb.WriteString("|--------|------|------|-----|-------|\n")
		for _, q := range c.Options {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s%% | %s | %d |\n", q.Name, q.Kind, q.RatePct, q.Net, q.DelayPeriods))
		}
		sb.WriteString("\n")
	}

	// Drawdown
	if len(r.Drawdown) > 0 {
		sb.WriteString("## Drawdown\n\n")
		sb.WriteString("| Period | Draw |\n")
		sb.WriteString("|--------|------|\n")
		for i, draw := range r.Drawdown {
			sb.WriteString(fmt.Sprintf("| %d | %s |\n", i, draw))
		}
		sb.WriteString("\n")
	}

	// Ranking
	sb.WriteString("## Ranked Scenarios\n\n")
	if len(r.Scenarios) > 0 {
		sb.WriteString("| Rank | Template | Strategic | Class | Ownership | Control | Financial | Fixed Paid | Fixed Owed | Unrecouped | P(recoup) |\n")
		sb.WriteString("|------|----------|-----------|-------|-----------|---------|-----------|------------|------------|------------|-----------|\n")
		for _, s := range r.Scenarios {
			class := "-"
			if s.StrategicClass != "" {
				class = string(s.StrategicClass)
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %.2f | %s | %.2f | %.2f | %.2f | %s | %s | %d | %s |\n",
				s.Rank, s.Template, s.Strategic, class, s.Ownership, s.Control, s.Financial,
				s.FixedPaid, s.FixedEntitlement, s.Unrecouped, formatProbability(s.RecoupmentProbability)))
		}
	} else {
		sb.WriteString("No scenarios evaluated.\n")
	}
	sb.WriteString("\n")

	// Tranche totals, grouped by scenario
	sb.WriteString("## Tranche Totals\n\n")
	current := ""
	for _, t := range r.Tranches {
		if t.Template != current {
			if current != "" {
				sb.WriteString("\n")
			}
			current = t.Template
			sb.WriteString(fmt.Sprintf("### %s\n\n", t.Template))
			sb.WriteString("| Tranche | Type | Entitlement | Paid | Unrecouped |\n")
			sb.WriteString("|---------|------|-------------|------|------------|\n")
		}
		kind := "fixed"
		if t.Backend {
			kind = "backend"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n", t.Tranche, kind, t.Entitlement, t.Paid, t.Unrecouped))
	}
	if len(r.Tranches) == 0 {
		sb.WriteString("No tranche data available.\n")
	}
	sb.WriteString("\n")

	// Warnings
	if len(r.Warnings) > 0 {
		sb.WriteString("## Warnings\n\n")
		for _, w := range r.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func formatProbability(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *p)
}
