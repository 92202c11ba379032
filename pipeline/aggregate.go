package pipeline

import (
	"github.com/khaledhikmat/nsfw-go/model"
)

// Aggregate folds per-unit scores into one verdict. The aggregate nsfw score
// is the maximum across successful units: one flagged frame marks the whole
// input, and averaging would dilute it in a long video. Failed units stay in
// the report but not in the numbers. Zero successful units is
// ErrNoUsableUnits, which is not the same thing as a safe verdict.
func Aggregate(scores []model.UnitScore, truncated bool, threshold float64) (model.Verdict, error) {
	verdict := model.Verdict{
		UnitScores:     scores,
		UnitsAttempted: len(scores),
		Truncated:      truncated,
	}

	succeeded := 0
	maxNsfw := 0.0
	for _, s := range scores {
		if s.Failed() {
			verdict.UnitsFailed++
			continue
		}
		succeeded++
		if s.Nsfw > maxNsfw {
			maxNsfw = s.Nsfw
		}
	}

	if succeeded == 0 {
		return verdict, model.ErrNoUsableUnits
	}

	verdict.Nsfw = maxNsfw
	verdict.Normal = 1 - maxNsfw
	// strictly greater than: a score exactly at the threshold is safe
	verdict.IsNsfw = maxNsfw > threshold

	return verdict, nil
}
