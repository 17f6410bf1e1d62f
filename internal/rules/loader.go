package rules

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"capital-stack-lab/internal/domain"
)

// file is the YAML layout of a rules file. Every section is optional; a
// missing section keeps the built-in default. Money and percentages are
// strings so they parse exactly.
type file struct {
	Version              string                   `yaml:"version"`
	MonetaryPlaces       *int32                   `yaml:"monetary_places"`
	Jurisdictions        []jurisdictionFile       `yaml:"jurisdictions"`
	Incentives           *incentivesFile          `yaml:"incentives"`
	Drawdown             *drawdownFile            `yaml:"drawdown"`
	DealTerms            map[string]dealTermsFile `yaml:"deal_terms"`
	Templates            []templateFile           `yaml:"templates"`
	Scoring              *scoringFile             `yaml:"scoring"`
	Simulation           *simulationFile          `yaml:"simulation"`
	MaxParallelScenarios *int                     `yaml:"max_parallel_scenarios"`
}

type jurisdictionFile struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Level          string `yaml:"level"`
	CaptureRatePct string `yaml:"capture_rate_pct"`
}

type incentivesFile struct {
	StackingCapPct string       `yaml:"stacking_cap_pct"` // empty = no cap
	Options        []optionFile `yaml:"options"`
}

type optionFile struct {
	Name         string `yaml:"name"`
	Kind         string `yaml:"kind"`
	RatePct      string `yaml:"rate_pct"`
	DelayPeriods int    `yaml:"delay_periods"`
}

type drawdownFile struct {
	Steepness float64 `yaml:"steepness"`
	Midpoint  float64 `yaml:"midpoint"`
	Periods   int     `yaml:"periods"`
}

type dealTermsFile struct {
	Priority           int      `yaml:"priority"`
	PreferredReturnPct string   `yaml:"preferred_return_pct"`
	OwnershipFactorPct string   `yaml:"ownership_factor_pct"`
	Participates       bool     `yaml:"participates"`
	BackendCapMultiple string   `yaml:"backend_cap_multiple"`
	OverageSplitPct    string   `yaml:"overage_split_pct"`
	ApprovalRights     []string `yaml:"approval_rights"`
}

type templateFile struct {
	Name            string `yaml:"name"`
	EquityPct       string `yaml:"equity_pct"`
	GapLoanPct      string `yaml:"gap_loan_pct"`
	PresalePct      string `yaml:"presale_pct"`
	StreamerPct     string `yaml:"streamer_pct"`
	IncentivePct    string `yaml:"incentive_pct"`
	IncentiveOption string `yaml:"incentive_option"`
}

type scoringFile struct {
	StrongThreshold        float64            `yaml:"strong_threshold"`
	WeakThreshold          float64            `yaml:"weak_threshold"`
	OwnershipWeight        float64            `yaml:"ownership_weight"`
	ControlWeight          float64            `yaml:"control_weight"`
	FinancialWeight        float64            `yaml:"financial_weight"`
	ApprovalWeights        map[string]float64 `yaml:"approval_weights"`
	ApprovalMaterialityPct float64            `yaml:"approval_materiality_pct"`
}

type simulationFile struct {
	Seed              uint64  `yaml:"seed"`
	MaxIterations     int     `yaml:"max_iterations"`
	MinIterations     int     `yaml:"min_iterations"`
	Tolerance         float64 `yaml:"tolerance"`
	RevenueVolatility float64 `yaml:"revenue_volatility"`
}

// Load reads a YAML rules file, overlays it on the defaults and validates the result.
func Load(path string) (*domain.BusinessRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load rules %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes YAML rules, overlays them on the defaults and validates the result.
func Parse(data []byte) (*domain.BusinessRules, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode rules yaml: %w", err)
	}

	r := Default()
	p := &parser{}
	f.apply(r, p)
	if p.err != nil {
		return nil, p.err
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// parser keeps the first decimal parse error.
type parser struct {
	err error
}

func (p *parser) dec(field, s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	v, err := decimal.NewFromString(s)
	if err != nil && p.err == nil {
		p.err = domain.NewValidationError(field, "not a decimal: %q", s)
	}
	return v
}

func (f *file) apply(r *domain.BusinessRules, p *parser) {
	if f.Version != "" {
		r.Version = f.Version
	}
	if f.MonetaryPlaces != nil {
		r.MonetaryPlaces = *f.MonetaryPlaces
	}
	if f.MaxParallelScenarios != nil {
		r.MaxParallelScenarios = *f.MaxParallelScenarios
	}

	if f.Jurisdictions != nil {
		r.Jurisdictions = make([]domain.Jurisdiction, 0, len(f.Jurisdictions))
		for _, j := range f.Jurisdictions {
			r.Jurisdictions = append(r.Jurisdictions, domain.Jurisdiction{
				ID:             j.ID,
				Name:           j.Name,
				Level:          j.Level,
				CaptureRatePct: p.dec("jurisdictions."+j.ID+".capture_rate_pct", j.CaptureRatePct),
			})
		}
	}

	if inc := f.Incentives; inc != nil {
		r.Incentives.StackingCapPct = nil
		if inc.StackingCapPct != "" {
			v := p.dec("incentives.stacking_cap_pct", inc.StackingCapPct)
			r.Incentives.StackingCapPct = &v
		}
		if inc.Options != nil {
			r.Incentives.Options = make([]domain.MonetizationOption, 0, len(inc.Options))
			for _, o := range inc.Options {
				r.Incentives.Options = append(r.Incentives.Options, domain.MonetizationOption{
					Name:         o.Name,
					Kind:         domain.MonetizationKind(o.Kind),
					RatePct:      p.dec("incentives.options."+o.Name+".rate_pct", o.RatePct),
					DelayPeriods: o.DelayPeriods,
				})
			}
		}
	}

	if dd := f.Drawdown; dd != nil {
		r.Drawdown = domain.DrawdownRules{Steepness: dd.Steepness, Midpoint: dd.Midpoint, Periods: dd.Periods}
	}

	for kind, t := range f.DealTerms {
		field := "deal_terms." + kind
		rights := make([]domain.ApprovalRight, len(t.ApprovalRights))
		for i, right := range t.ApprovalRights {
			rights[i] = domain.ApprovalRight(right)
		}
		r.DealTerms[domain.DealKind(kind)] = domain.DealTerms{
			Priority:           t.Priority,
			PreferredReturnPct: p.dec(field+".preferred_return_pct", t.PreferredReturnPct),
			OwnershipFactorPct: p.dec(field+".ownership_factor_pct", t.OwnershipFactorPct),
			Participates:       t.Participates,
			BackendCapMultiple: p.dec(field+".backend_cap_multiple", t.BackendCapMultiple),
			OverageSplitPct:    p.dec(field+".overage_split_pct", t.OverageSplitPct),
			ApprovalRights:     rights,
		}
	}

	if f.Templates != nil {
		r.Templates = make([]domain.ScenarioTemplate, 0, len(f.Templates))
		for _, t := range f.Templates {
			field := "templates." + t.Name
			r.Templates = append(r.Templates, domain.ScenarioTemplate{
				Name:            t.Name,
				EquityPct:       p.dec(field+".equity_pct", t.EquityPct),
				GapLoanPct:      p.dec(field+".gap_loan_pct", t.GapLoanPct),
				PresalePct:      p.dec(field+".presale_pct", t.PresalePct),
				StreamerPct:     p.dec(field+".streamer_pct", t.StreamerPct),
				IncentivePct:    p.dec(field+".incentive_pct", t.IncentivePct),
				IncentiveOption: t.IncentiveOption,
			})
		}
	}

	if s := f.Scoring; s != nil {
		weights := make(map[domain.ApprovalRight]float64, len(s.ApprovalWeights))
		for right, w := range s.ApprovalWeights {
			weights[domain.ApprovalRight(right)] = w
		}
		if len(weights) == 0 {
			weights = r.Scoring.ApprovalWeights
		}
		r.Scoring = domain.ScoringRules{
			StrongThreshold:        s.StrongThreshold,
			WeakThreshold:          s.WeakThreshold,
			OwnershipWeight:        s.OwnershipWeight,
			ControlWeight:          s.ControlWeight,
			FinancialWeight:        s.FinancialWeight,
			ApprovalWeights:        weights,
			ApprovalMaterialityPct: s.ApprovalMaterialityPct,
		}
	}

	if s := f.Simulation; s != nil {
		r.Simulation = domain.SimulationRules{
			Seed:              s.Seed,
			MaxIterations:     s.MaxIterations,
			MinIterations:     s.MinIterations,
			Tolerance:         s.Tolerance,
			RevenueVolatility: s.RevenueVolatility,
		}
	}
}
