// Package rules builds and loads the BusinessRules configuration value.
package rules

import (
	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
)

// DefaultVersion identifies the built-in rule set.
const DefaultVersion = "default-2026.1"

// Template names of the built-in rule set.
const (
	TemplateDebtHeavy          = "debt_heavy"
	TemplateEquityHeavy        = "equity_heavy"
	TemplateBalanced           = "balanced"
	TemplatePresaleFocused     = "presale_focused"
	TemplateIncentiveMaximized = "incentive_maximized"
)

// Monetization option names of the built-in rule set.
const (
	OptionDirect     = "direct"
	OptionBankLoan   = "bank_loan"
	OptionBrokerSale = "broker_sale"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Default returns a fresh copy of the built-in rules. Callers may modify the
// copy before validating it; the engines never modify rules.
func Default() *domain.BusinessRules {
	stackingCap := d("40")

	return &domain.BusinessRules{
		Version:        DefaultVersion,
		MonetaryPlaces: domain.DefaultMonetaryPlaces,

		Jurisdictions: []domain.Jurisdiction{
			{ID: "ca-fed", Name: "Canada CPTC", Level: "federal", CaptureRatePct: d("25")},
			{ID: "ca-on", Name: "Ontario OFTTC", Level: "regional", CaptureRatePct: d("21.5")},
			{ID: "ca-bc", Name: "British Columbia FIBC", Level: "regional", CaptureRatePct: d("36")},
			{ID: "us-ga", Name: "Georgia FTC", Level: "regional", CaptureRatePct: d("30")},
			{ID: "us-nm", Name: "New Mexico FPTC", Level: "regional", CaptureRatePct: d("25")},
			{ID: "uk", Name: "UK AVEC", Level: "federal", CaptureRatePct: d("34")},
			{ID: "ie", Name: "Ireland Section 481", Level: "federal", CaptureRatePct: d("32")},
		},

		Incentives: domain.IncentiveRules{
			StackingCapPct: &stackingCap,
			Options: []domain.MonetizationOption{
				{Name: OptionDirect, Kind: domain.MonetizationDirect, RatePct: d("100"), DelayPeriods: 6},
				{Name: OptionBankLoan, Kind: domain.MonetizationAdvance, RatePct: d("85"), DelayPeriods: 0},
				{Name: OptionBrokerSale, Kind: domain.MonetizationSale, RatePct: d("80"), DelayPeriods: 0},
			},
		},

		Drawdown: domain.DrawdownRules{
			Steepness: 10,
			Midpoint:  0.5,
			Periods:   12,
		},

		DealTerms: map[domain.DealKind]domain.DealTerms{
			domain.DealKindTaxCreditLoan: {
				Priority:           1,
				PreferredReturnPct: d("8"),
			},
			domain.DealKindPresale: {
				Priority:           2,
				PreferredReturnPct: d("0"),
				ApprovalRights:     []domain.ApprovalRight{domain.ApprovalDistribution},
			},
			domain.DealKindStreamer: {
				Priority:           2,
				PreferredReturnPct: d("0"),
				OwnershipFactorPct: d("100"),
				Participates:       true,
				ApprovalRights: []domain.ApprovalRight{
					domain.ApprovalDistribution, domain.ApprovalMarketing, domain.ApprovalFinalCut,
				},
			},
			domain.DealKindGapLoan: {
				Priority:           3,
				PreferredReturnPct: d("12"),
				ApprovalRights:     []domain.ApprovalRight{domain.ApprovalBudget},
			},
			domain.DealKindEquity: {
				Priority:           4,
				PreferredReturnPct: d("20"),
				OwnershipFactorPct: d("50"),
				Participates:       true,
				BackendCapMultiple: d("3"),
				OverageSplitPct:    d("50"),
				ApprovalRights:     []domain.ApprovalRight{domain.ApprovalCast, domain.ApprovalBudget},
			},
		},

		Templates: []domain.ScenarioTemplate{
			{
				Name:            TemplateDebtHeavy,
				EquityPct:       d("20"),
				GapLoanPct:      d("35"),
				PresalePct:      d("20"),
				StreamerPct:     d("0"),
				IncentivePct:    d("25"),
				IncentiveOption: OptionBankLoan,
			},
			{
				Name:            TemplateEquityHeavy,
				EquityPct:       d("70"),
				GapLoanPct:      d("0"),
				PresalePct:      d("10"),
				StreamerPct:     d("0"),
				IncentivePct:    d("20"),
				IncentiveOption: OptionDirect,
			},
			{
				Name:            TemplateBalanced,
				EquityPct:       d("40"),
				GapLoanPct:      d("15"),
				PresalePct:      d("20"),
				StreamerPct:     d("0"),
				IncentivePct:    d("25"),
				IncentiveOption: OptionBankLoan,
			},
			{
				Name:            TemplatePresaleFocused,
				EquityPct:       d("25"),
				GapLoanPct:      d("10"),
				PresalePct:      d("40"),
				StreamerPct:     d("0"),
				IncentivePct:    d("25"),
				IncentiveOption: OptionBankLoan,
			},
			{
				Name:            TemplateIncentiveMaximized,
				EquityPct:       d("30"),
				GapLoanPct:      d("10"),
				PresalePct:      d("15"),
				StreamerPct:     d("10"),
				IncentivePct:    d("35"),
				IncentiveOption: OptionBrokerSale,
			},
		},

		Scoring: domain.ScoringRules{
			StrongThreshold: 70,
			WeakThreshold:   50,
			OwnershipWeight: 0.4,
			ControlWeight:   0.3,
			FinancialWeight: 0.3,
			ApprovalWeights: map[domain.ApprovalRight]float64{
				domain.ApprovalFinalCut:     35,
				domain.ApprovalBudget:       20,
				domain.ApprovalCast:         20,
				domain.ApprovalDistribution: 15,
				domain.ApprovalMarketing:    10,
			},
			ApprovalMaterialityPct: 10,
		},

		Simulation: domain.SimulationRules{
			Seed:              20260101,
			MaxIterations:     5000,
			MinIterations:     200,
			Tolerance:         0.01,
			RevenueVolatility: 0.35,
		},

		MaxParallelScenarios: 4,
	}
}
