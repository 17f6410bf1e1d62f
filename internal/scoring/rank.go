package scoring

import (
	"sort"

	"capital-stack-lab/internal/domain"
)

// Rank returns the scenarios ordered by strategic score, highest first, with
// Rank set from 1. Equal scores keep their input (template) order. The input
// slice is not modified.
func Rank(results []domain.ScenarioResult) ([]domain.ScenarioResult, error) {
	ranked := make([]domain.ScenarioResult, len(results))
	copy(ranked, results)

	for _, r := range ranked {
		if r.Scores == nil {
			return nil, domain.NewValidationError("scenario."+r.Template.Name, "scenario has not been scored")
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Scores.Strategic.Value > ranked[j].Scores.Strategic.Value
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}
