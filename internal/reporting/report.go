// Package reporting renders pipeline runs as Markdown and CSV.
package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
)

// Report is one pipeline run laid out for rendering.
type Report struct {
	GeneratedAt time.Time
	RunID       string
	ProjectName string
	Budget      decimal.Decimal

	// Claim and Drawdown are only known for a live run; a report rebuilt
	// from storage leaves them nil.
	Claim    *domain.TaxCreditClaim
	Drawdown []decimal.Decimal

	Scenarios []ScenarioRow // rank order
	Tranches  []TrancheRow  // scenario rank, then tranche input order
	Payouts   []PayoutRow   // scenario rank, then period, then tranche order
	Warnings  []string
}

// ScenarioRow is the summary line of one ranked scenario.
type ScenarioRow struct {
	Rank       int
	Template   string
	ScenarioID string

	Ownership      float64
	Control        float64
	Financial      float64
	Strategic      float64
	StrategicClass domain.ScoreClass // empty when rebuilt from storage

	TotalDistributed decimal.Decimal
	FixedPaid        decimal.Decimal
	FixedEntitlement decimal.Decimal
	Unrecouped       int

	RecoupmentProbability *float64
}

// TrancheRow is what one tranche received over the whole run.
type TrancheRow struct {
	Template    string
	Tranche     string
	Backend     bool
	Entitlement decimal.Decimal
	Paid        decimal.Decimal
	Unrecouped  decimal.Decimal
}

// PayoutRow is one tranche's payment in one period.
type PayoutRow struct {
	Template         string
	ScenarioID       string
	Period           int
	Tranche          string
	Backend          bool
	Paid             decimal.Decimal
	OutstandingAfter decimal.Decimal
}
