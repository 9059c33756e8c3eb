package scoring

import "math"

// DefaultCoreValueScore is substituted for any missing core-value sub-score.
const DefaultCoreValueScore = 70.0

// CoreValueCount is the number of sub-scores consumed by the canonical formula.
const CoreValueCount = 7

// IntegrityFlags are the three disciplinary and audit-cleanliness criteria.
type IntegrityFlags struct {
	FreeOfFindings             bool `json:"free_of_findings"`
	NoDisciplinaryPunishment   bool `json:"no_disciplinary_punishment"`
	NotUnderDisciplinaryReview bool `json:"not_under_disciplinary_review"`
}

// Perfect reports whether all three integrity flags are set.
func (f IntegrityFlags) Perfect() bool {
	return f.FreeOfFindings && f.NoDisciplinaryPunishment && f.NotUnderDisciplinaryReview
}

// AchievementFlags carry innovation/award presence. Evidence is stored for
// reviewers only; the formula reads the booleans.
type AchievementFlags struct {
	HasInnovation      bool   `json:"has_innovation"`
	HasAward           bool   `json:"has_award"`
	InnovationEvidence string `json:"innovation_evidence,omitempty"`
	AwardEvidence      string `json:"award_evidence,omitempty"`
}

// Both reports whether innovation and award are both present.
func (f AchievementFlags) Both() bool {
	return f.HasInnovation && f.HasAward
}

// None reports whether neither innovation nor award is present.
func (f AchievementFlags) None() bool {
	return !f.HasInnovation && !f.HasAward
}

type SKPFlags struct {
	LastTwoYearsGood bool `json:"last_two_years_good"`
	ShowsImprovement bool `json:"shows_improvement"`
}

// CoreValues holds the seven canonical BerAKHLAK sub-scores on a 1–100 scale.
// A nil entry is missing and counts as DefaultCoreValueScore.
type CoreValues struct {
	Performance   *float64 `json:"performance"`
	Inspirational *float64 `json:"inspirational"`
	Communication *float64 `json:"communication"`
	Collaboration *float64 `json:"collaboration"`
	Leadership    *float64 `json:"leadership"`
	TrackRecord   *float64 `json:"track_record"`
	Integrity     *float64 `json:"integrity"`
}

// Values returns the sub-scores in canonical order with defaults applied.
// Non-finite entries count as missing.
func (c CoreValues) Values() [CoreValueCount]float64 {
	raw := c.pointers()
	var out [CoreValueCount]float64
	for i, p := range raw {
		if p == nil || !isFinite(*p) {
			out[i] = DefaultCoreValueScore
			continue
		}
		out[i] = *p
	}
	return out
}

// Finite reports whether every present sub-score is a finite number.
func (c CoreValues) Finite() bool {
	for _, p := range c.pointers() {
		if p != nil && !isFinite(*p) {
			return false
		}
	}
	return true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Slice returns the raw sub-scores in canonical order; missing entries are nil.
func (c CoreValues) Slice() []*float64 {
	p := c.pointers()
	return p[:]
}

func (c CoreValues) pointers() [CoreValueCount]*float64 {
	return [CoreValueCount]*float64{
		c.Performance, c.Inspirational, c.Communication, c.Collaboration,
		c.Leadership, c.TrackRecord, c.Integrity,
	}
}

// CoreValuesFromSlice maps a positional slice (canonical order) onto CoreValues.
// Short slices leave the tail missing; extra entries are ignored.
func CoreValuesFromSlice(values []*float64) CoreValues {
	var padded [CoreValueCount]*float64
	copy(padded[:], values)
	return CoreValues{
		Performance:   padded[0],
		Inspirational: padded[1],
		Communication: padded[2],
		Collaboration: padded[3],
		Leadership:    padded[4],
		TrackRecord:   padded[5],
		Integrity:     padded[6],
	}
}

// FormScores are the nine ratings collected by the evaluator form.
type FormScores struct {
	Performance      *float64 `json:"performance"`
	InnovationImpact *float64 `json:"innovation_impact"`
	Achievement      *float64 `json:"achievement"`
	Inspirational    *float64 `json:"inspirational"`
	Communication    *float64 `json:"communication"`
	Collaboration    *float64 `json:"collaboration"`
	Leadership       *float64 `json:"leadership"`
	TrackRecord      *float64 `json:"track_record"`
	Integrity        *float64 `json:"integrity"`
}

// Canonical projects the form onto the seven sub-scores the formula consumes.
// InnovationImpact and Achievement are dropped: the achievement component
// already scores innovation and award presence.
func (f FormScores) Canonical() CoreValues {
	return CoreValues{
		Performance:   f.Performance,
		Inspirational: f.Inspirational,
		Communication: f.Communication,
		Collaboration: f.Collaboration,
		Leadership:    f.Leadership,
		TrackRecord:   f.TrackRecord,
		Integrity:     f.Integrity,
	}
}

// ScoreInputs is everything the eligibility formula reads for one
// (subject, evaluator, year) evaluation.
type ScoreInputs struct {
	Integrity   IntegrityFlags   `json:"integrity"`
	Achievement AchievementFlags `json:"achievement"`
	SKP         SKPFlags         `json:"skp"`
	CoreValues  CoreValues       `json:"core_values"`
}

// RecordInput is the boundary shape received from callers and the
// persistence layer. CoreValues is positional in canonical order.
type RecordInput struct {
	ID          string           `json:"id,omitempty"`
	Integrity   IntegrityFlags   `json:"integrity"`
	Achievement AchievementFlags `json:"achievement"`
	SKP         SKPFlags         `json:"skp"`
	CoreValues  []*float64       `json:"core_values"`
	StoredScore *float64         `json:"stored_score,omitempty"`
}

// Inputs converts the record into ScoreInputs. The second return is false when
// the record is structurally invalid: more than CoreValueCount values, or a
// non-finite value. Non-finite values are replaced by the default.
func (r RecordInput) Inputs() (ScoreInputs, bool) {
	valid := len(r.CoreValues) <= CoreValueCount
	values := make([]*float64, 0, CoreValueCount)
	for i, v := range r.CoreValues {
		if i >= CoreValueCount {
			break
		}
		if v != nil && !isFinite(*v) {
			valid = false
			v = nil
		}
		values = append(values, v)
	}
	return ScoreInputs{
		Integrity:   r.Integrity,
		Achievement: r.Achievement,
		SKP:         r.SKP,
		CoreValues:  CoreValuesFromSlice(values),
	}, valid
}
