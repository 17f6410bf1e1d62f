package incentive

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/rules"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCalculate_MonetizationQuotes(t *testing.T) {
	claim, err := Calculate(rules.Default(), domain.IncentiveRequest{
		Budget:        d("20000000"),
		Jurisdictions: []string{"ca-fed"},
	})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if !claim.GrossCredit.Equal(d("5000000")) {
		t.Fatalf("expected gross 5000000, got %s", claim.GrossCredit)
	}

	want := map[string]string{
		rules.OptionDirect:     "5000000",
		rules.OptionBankLoan:   "4250000",
		rules.OptionBrokerSale: "4000000",
	}
	got := claim.OptionMap()
	if len(got) != len(want) {
		t.Fatalf("expected %d options, got %d", len(want), len(got))
	}
	for name, w := range want {
		if !got[name].Equal(d(w)) {
			t.Errorf("%s: expected %s, got %s", name, w, got[name])
		}
	}

	// Configuration order is preserved.
	if claim.Options[0].Name != rules.OptionDirect || claim.Options[2].Name != rules.OptionBrokerSale {
		t.Errorf("unexpected option order: %+v", claim.Options)
	}
	if claim.Selected != "" {
		t.Errorf("calculator must not select, got %q", claim.Selected)
	}
}

func TestCalculate_StackingCap(t *testing.T) {
	claim, err := Calculate(rules.Default(), domain.IncentiveRequest{
		Budget:        d("20000000"),
		Jurisdictions: []string{"ca-fed", "ca-bc"}, // 25 + 36 = 61
	})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if !claim.Capped {
		t.Error("expected capped claim")
	}
	if !claim.EffectiveRatePct.Equal(d("40")) {
		t.Errorf("expected 40%% effective rate, got %s", claim.EffectiveRatePct)
	}
	if !claim.GrossCredit.Equal(d("8000000")) {
		t.Errorf("expected gross 8000000, got %s", claim.GrossCredit)
	}
}

func TestCalculate_RequestCapOverridesRules(t *testing.T) {
	noCap := d("100")
	claim, err := Calculate(rules.Default(), domain.IncentiveRequest{
		Budget:         d("1000"),
		Jurisdictions:  []string{"ca-fed", "ca-on"},
		StackingCapPct: &noCap,
	})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if claim.Capped {
		t.Error("46.5% is under a 100% cap")
	}
	if !claim.GrossCredit.Equal(d("465")) {
		t.Errorf("expected gross 465, got %s", claim.GrossCredit)
	}
}

func TestCalculate_QualifyingSpendAndFloor(t *testing.T) {
	claim, err := Calculate(rules.Default(), domain.IncentiveRequest{
		Budget:          d("1000"),
		QualifyingSpend: d("333.33"),
		Jurisdictions:   []string{"ca-on"}, // 21.5%
	})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	// 333.33 x 0.215 = 71.66595, floored to cents.
	if !claim.GrossCredit.Equal(d("71.66")) {
		t.Errorf("expected 71.66, got %s", claim.GrossCredit)
	}
	q, _ := claim.Option(rules.OptionBankLoan)
	if !q.Net.Equal(d("60.91")) { // 71.66 x 0.85 = 60.911
		t.Errorf("expected bank loan 60.91, got %s", q.Net)
	}
}

func TestCalculate_Select(t *testing.T) {
	claim, err := Calculate(rules.Default(), domain.IncentiveRequest{
		Budget:        d("20000000"),
		Jurisdictions: []string{"ca-fed"},
	})
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	selected, err := claim.Select(rules.OptionBankLoan)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if selected.Selected != rules.OptionBankLoan || !selected.NetRealizable.Equal(d("4250000")) {
		t.Errorf("unexpected selection: %s %s", selected.Selected, selected.NetRealizable)
	}
	if claim.Selected != "" {
		t.Error("Select must not modify the original claim")
	}

	if _, err := claim.Select("nope"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for unknown option, got %v", err)
	}
}

func TestCalculate_Validation(t *testing.T) {
	badCap := d("101")
	badRate := rules.Default()
	badRate.Jurisdictions[0].CaptureRatePct = d("120")

	tests := []struct {
		name  string
		rules *domain.BusinessRules
		req   domain.IncentiveRequest
	}{
		{"zero budget", rules.Default(), domain.IncentiveRequest{Budget: d("0"), Jurisdictions: []string{"uk"}}},
		{"negative budget", rules.Default(), domain.IncentiveRequest{Budget: d("-1"), Jurisdictions: []string{"uk"}}},
		{"qualifying above budget", rules.Default(), domain.IncentiveRequest{Budget: d("10"), QualifyingSpend: d("11"), Jurisdictions: []string{"uk"}}},
		{"no jurisdictions", rules.Default(), domain.IncentiveRequest{Budget: d("10")}},
		{"unknown jurisdiction", rules.Default(), domain.IncentiveRequest{Budget: d("10"), Jurisdictions: []string{"atlantis"}}},
		{"duplicate jurisdiction", rules.Default(), domain.IncentiveRequest{Budget: d("10"), Jurisdictions: []string{"uk", "uk"}}},
		{"cap above 100", rules.Default(), domain.IncentiveRequest{Budget: d("10"), Jurisdictions: []string{"uk"}, StackingCapPct: &badCap}},
		{"configured rate above 100", badRate, domain.IncentiveRequest{Budget: d("10"), Jurisdictions: []string{"ca-fed"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(tt.rules, tt.req)
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}
