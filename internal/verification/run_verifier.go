package verification

import (
	"context"
	"errors"
	"fmt"

	"capital-stack-lab/internal/domain"
	"capital-stack-lab/internal/pipeline"
	"capital-stack-lab/internal/storage"
)

// ErrRunNotFound is returned when a run has no stored records.
var ErrRunNotFound = errors.New("run not found")

// RunVerifier compares a stored run against a replayed pipeline result.
type RunVerifier struct {
	recordStore storage.ScenarioRecordStore
	payoutStore storage.PayoutStore // optional
}

// NewRunVerifier creates a new RunVerifier. payouts may be nil to skip
// payout comparison.
func NewRunVerifier(records storage.ScenarioRecordStore, payouts storage.PayoutStore) *RunVerifier {
	return &RunVerifier{recordStore: records, payoutStore: payouts}
}

// VerifyRun loads every stored scenario of runID and compares it with the
// same scenario in replay. A scenario missing from either side diverges.
func (v *RunVerifier) VerifyRun(ctx context.Context, runID string, replay *pipeline.RunResult) (*VerificationReport, error) {
	stored, err := v.recordStore.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load stored run: %w", err)
	}
	if len(stored) == 0 {
		return nil, ErrRunNotFound
	}

	replayed := make(map[string]*domain.ScenarioResult, len(replay.Scenarios))
	for i := range replay.Scenarios {
		replayed[replay.Scenarios[i].ScenarioID] = &replay.Scenarios[i]
	}

	report := &VerificationReport{
		RunID:   runID,
		Results: make([]VerificationResult, 0, len(stored)),
	}
	seen := make(map[string]bool, len(stored))

	for _, rec := range stored {
		seen[rec.ScenarioID] = true
		result := VerificationResult{
			ScenarioID:      rec.ScenarioID,
			TemplateName:    rec.TemplateName,
			StoredStrategic: rec.StrategicScore,
		}

		res, ok := replayed[rec.ScenarioID]
		if !ok {
			result.Divergences = []FieldDivergence{{Field: "Scenario", Expected: rec.TemplateName, Actual: nil}}
			report.add(result)
			continue
		}

		// Replayed records take the stored run id so identity fields line up.
		replayedRec := pipeline.BuildRecord(runID, replay.Project.Name, res, rec.CreatedAt)
		result.ReplayedStrategic = replayedRec.StrategicScore
		result.Divergences = CompareScenarioRecords(rec, replayedRec)

		if v.payoutStore != nil {
			points, err := v.payoutStore.GetByScenario(ctx, runID, rec.ScenarioID)
			if err != nil {
				return nil, fmt.Errorf("load payouts for %s: %w", rec.ScenarioID, err)
			}
			result.Divergences = append(result.Divergences, ComparePayouts(points, pipeline.BuildPayouts(runID, res))...)
		}
		report.add(result)
	}

	for _, res := range replay.Scenarios {
		if seen[res.ScenarioID] {
			continue
		}
		report.add(VerificationResult{
			ScenarioID:        res.ScenarioID,
			TemplateName:      res.Template.Name,
			ReplayedStrategic: res.Scores.Strategic.Value,
			Divergences:       []FieldDivergence{{Field: "Scenario", Expected: nil, Actual: res.Template.Name}},
		})
	}
	return report, nil
}

func (r *VerificationReport) add(result VerificationResult) {
	result.Match = len(result.Divergences) == 0
	r.Results = append(r.Results, result)
	r.TotalScenarios++
	if result.Match {
		r.MatchedScenarios++
	} else {
		r.DivergentScenarios++
	}
}
