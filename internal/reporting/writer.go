package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"capital-stack-lab/internal/observability"
)

// Output file names.
const (
	ReportFile    = "CAPITAL_STACK_REPORT.md"
	HTMLFile      = "CAPITAL_STACK_REPORT.html"
	ScenariosFile = "scenarios.csv"
	PayoutsFile   = "tranche_payouts.csv"
)

// WriteFiles renders r into dir and returns the written paths.
// metrics may be nil.
func WriteFiles(dir string, r *Report, metrics *observability.Metrics) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	markdown := RenderMarkdown(r)
	html, err := RenderHTML("Capital Stack Report: "+r.ProjectName, markdown)
	if err != nil {
		return nil, err
	}
	scenarios, err := RenderScenariosCSV(r.Scenarios)
	if err != nil {
		return nil, err
	}
	payouts, err := RenderPayoutsCSV(r.Payouts)
	if err != nil {
		return nil, err
	}

	files := []struct {
		name    string
		content string
	}{
		{ReportFile, markdown},
		{HTMLFile, html},
		{ScenariosFile, scenarios},
		{PayoutsFile, payouts},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte(f.content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.name, err)
		}
		paths = append(paths, path)
	}

	if metrics != nil {
		metrics.ReportsGenerated.Inc()
	}
	return paths, nil
}
