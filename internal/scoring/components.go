package scoring

import "math"

// ComponentResult captures one component's contribution to the total score.
type ComponentResult struct {
	Name      string  `json:"name"`
	Points    float64 `json:"points"`
	Max       float64 `json:"max"`
	Consulted bool    `json:"consulted"`
	Reason    string  `json:"reason"`
}

// --- Component calculators ---

// IntegrityComponent awards 10 points per satisfied integrity flag.
func IntegrityComponent(in ScoreInputs) ComponentResult {
	points := 0.0
	for _, ok := range []bool{
		in.Integrity.FreeOfFindings,
		in.Integrity.NoDisciplinaryPunishment,
		in.Integrity.NotUnderDisciplinaryReview,
	} {
		if ok {
			points += pointsPerIntegrityFlag
		}
	}
	reason := "all integrity criteria met"
	if !in.Integrity.Perfect() {
		reason = "integrity incomplete"
	}
	return ComponentResult{Name: "integrity", Points: points, Max: DefaultMaxima().Integrity, Consulted: true, Reason: reason}
}

// AchievementComponent is binary presence only: 20 for innovation, 10 for an award.
func AchievementComponent(in ScoreInputs) ComponentResult {
	points := 0.0
	if in.Achievement.HasInnovation {
		points += pointsInnovation
	}
	if in.Achievement.HasAward {
		points += pointsAward
	}
	var reason string
	switch {
	case in.Achievement.Both():
		reason = "innovation and award"
	case in.Achievement.HasInnovation:
		reason = "innovation only"
	case in.Achievement.HasAward:
		reason = "award only"
	default:
		reason = "no achievement evidence"
	}
	return ComponentResult{Name: "achievement", Points: points, Max: DefaultMaxima().Achievement, Consulted: true, Reason: reason}
}

// SKPComponent awards 10 points per satisfied SKP flag.
func SKPComponent(in ScoreInputs) ComponentResult {
	points := 0.0
	if in.SKP.LastTwoYearsGood {
		points += pointsPerSKPFlag
	}
	if in.SKP.ShowsImprovement {
		points += pointsPerSKPFlag
	}
	return ComponentResult{Name: "skp", Points: points, Max: DefaultMaxima().SKP, Consulted: true, Reason: "from skp flags"}
}

// CoreValuesComponent scales the mean of the seven sub-scores onto 20 points.
// Values are not range-checked here; only the final score is clamped.
func CoreValuesComponent(in ScoreInputs) ComponentResult {
	values := in.CoreValues.Values()
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	max := DefaultMaxima().CoreValues

	reason := "from sub-scores"
	for _, p := range in.CoreValues.pointers() {
		if p == nil || !isFinite(*p) {
			reason = "from sub-scores (missing values defaulted)"
			break
		}
	}
	return ComponentResult{Name: "core_values", Points: mean / 100 * max, Max: max, Consulted: true, Reason: reason}
}

// clamp bounds v to [min, max]. NaN maps to min.
func clamp(v, min, max float64) float64 {
	if math.IsNaN(v) || v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
