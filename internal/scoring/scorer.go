package scoring

import (
	"encoding/json"
	"fmt"
)

// CapReason names the ceiling rule that shaped a final score.
type CapReason string

const (
	CapNone                  CapReason = ""
	CapIntegrityIncomplete   CapReason = "integrity_incomplete_cap_70"
	CapNoAchievement         CapReason = "no_achievement_cap_85"
	CapHighScoreRequiresBoth CapReason = "high_score_requires_both_cap_89"
)

// MarshalJSON encodes CapNone as null.
func (c CapReason) MarshalJSON() ([]byte, error) {
	if c == CapNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

func (c *CapReason) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = CapNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCapReason(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCapReason converts a stored string back into a CapReason.
func ParseCapReason(s string) (CapReason, error) {
	switch CapReason(s) {
	case CapNone, CapIntegrityIncomplete, CapNoAchievement, CapHighScoreRequiresBoth:
		return CapReason(s), nil
	}
	return CapNone, fmt.Errorf("unknown cap reason %q", s)
}

// ScoreResult is the output of the eligibility formula for one evaluation.
type ScoreResult struct {
	FinalScore float64           `json:"final_score"`
	CapApplied CapReason         `json:"cap_applied"`
	IsValid    bool              `json:"is_valid"`
	Components []ComponentResult `json:"components"`
}

// Score runs the canonical eligibility formula. It is pure and safe for
// concurrent use.
//
// Rules are evaluated in a fixed order:
//
//	integrity incomplete -> partial score, ceiling 70, core values ignored
//	no innovation and no award -> ceiling 85
//	total >= 90 without both innovation and award -> ceiling 89
//
// A result carries at most one cap reason. The integrity cap is reported
// whenever its branch runs; the other two only when they lower the score.
// Non-finite sub-scores count as the default and mark the result invalid.
func Score(in ScoreInputs) ScoreResult {
	valid := in.CoreValues.Finite()

	integrity := IntegrityComponent(in)
	achievement := AchievementComponent(in)
	skp := SKPComponent(in)

	if !in.Integrity.Perfect() {
		partial := integrity.Points + skp.Points + achievement.Points
		partial = clamp(partial, 0, IntegrityIncompleteCeiling)
		return ScoreResult{
			FinalScore: clamp(partial, 0, 100),
			CapApplied: CapIntegrityIncomplete,
			IsValid:    valid,
			Components: []ComponentResult{
				integrity,
				achievement,
				skp,
				{Name: "core_values", Max: DefaultMaxima().CoreValues, Reason: "not consulted: integrity incomplete"},
			},
		}
	}

	coreValues := CoreValuesComponent(in)
	total := integrity.Points + achievement.Points + skp.Points + coreValues.Points

	reason := CapNone
	if in.Achievement.None() && total > NoAchievementCeiling {
		total = NoAchievementCeiling
		reason = CapNoAchievement
	}
	if total >= HighScoreThreshold && !in.Achievement.Both() {
		total = HighScoreCeiling
		if reason == CapNone {
			reason = CapHighScoreRequiresBoth
		}
	}

	return ScoreResult{
		FinalScore: clamp(total, 0, 100),
		CapApplied: reason,
		IsValid:    valid,
		Components: []ComponentResult{integrity, achievement, skp, coreValues},
	}
}

// ScoreRecord validates a boundary record and scores it. Structurally invalid
// records are still scored with defaults but reported with IsValid=false.
func ScoreRecord(r RecordInput) ScoreResult {
	in, valid := r.Inputs()
	result := Score(in)
	result.IsValid = result.IsValid && valid
	return result
}
