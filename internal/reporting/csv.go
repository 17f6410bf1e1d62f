package reporting

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// RenderScenariosCSV renders the ranked scenario summary as CSV.
func RenderScenariosCSV(rows []ScenarioRow) (string, error) {
	records := [][]string{{
		"rank", "template", "scenario_id",
		"strategic_score", "ownership_score", "control_score", "financial_score",
		"total_distributed", "fixed_paid", "fixed_entitlement", "unrecouped_tranches",
		"recoupment_probability",
	}}
	for _, s := range rows {
		prob := ""
		if s.RecoupmentProbability != nil {
			prob = strconv.FormatFloat(*s.RecoupmentProbability, 'f', 6, 64)
		}
		records = append(records, []string{
			strconv.Itoa(s.Rank), s.Template, s.ScenarioID,
			formatScore(s.Strategic), formatScore(s.Ownership), formatScore(s.Control), formatScore(s.Financial),
			s.TotalDistributed.String(), s.FixedPaid.String(), s.FixedEntitlement.String(), strconv.Itoa(s.Unrecouped),
			prob,
		})
	}
	return writeCSV(records)
}

// RenderPayoutsCSV renders per-period tranche payouts as CSV.
func RenderPayoutsCSV(rows []PayoutRow) (string, error) {
	records := [][]string{{
		"template", "scenario_id", "period", "tranche", "backend", "paid", "outstanding_after",
	}}
	for _, p := range rows {
		records = append(records, []string{
			p.Template, p.ScenarioID, strconv.Itoa(p.Period), p.Tranche, strconv.FormatBool(p.Backend),
			p.Paid.String(), p.OutstandingAfter.String(),
		})
	}
	return writeCSV(records)
}

func writeCSV(records [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	return buf.String(), nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
