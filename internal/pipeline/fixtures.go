package pipeline

import (
	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
)

// SampleProject returns a demonstration project: a 20M feature shot in
// Ontario with the federal credit, and a ten-period revenue forecast that
// front-loads theatrical and pre-sale receipts.
func SampleProject() domain.Project {
	forecast := []string{
		"0", "0", "1500000", "4500000", "6000000",
		"5000000", "3500000", "2500000", "1500000", "1000000",
	}
	amounts := make([]decimal.Decimal, len(forecast))
	for i, s := range forecast {
		amounts[i] = decimal.RequireFromString(s)
	}

	return domain.Project{
		Name:              "northern-lights",
		Budget:            decimal.NewFromInt(20000000),
		QualifyingSpend:   decimal.NewFromInt(16000000),
		Jurisdictions:     []string{"ca-fed", "ca-on"},
		Revenue:           domain.NewCashFlowTimeline(amounts...),
		ProductionPeriods: 12,
	}
}
