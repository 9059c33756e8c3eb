package scoring

import (
	"fmt"
	"math"
)

// ComponentMaxima defines the points each component can contribute.
// The four maxima must sum to 100.
type ComponentMaxima struct {
	Integrity   float64
	Achievement float64
	SKP         float64
	CoreValues  float64
}

// Point values for the binary criteria.
const (
	pointsPerIntegrityFlag = 10.0
	pointsInnovation       = 20.0
	pointsAward            = 10.0
	pointsPerSKPFlag       = 10.0
)

// Ceilings applied by the capping rules.
const (
	IntegrityIncompleteCeiling = 70.0
	NoAchievementCeiling       = 85.0
	HighScoreThreshold         = 90.0
	HighScoreCeiling           = 89.0
)

// DefaultMaxima returns the canonical 30/30/20/20 split.
func DefaultMaxima() ComponentMaxima {
	return ComponentMaxima{
		Integrity:   3 * pointsPerIntegrityFlag,
		Achievement: pointsInnovation + pointsAward,
		SKP:         2 * pointsPerSKPFlag,
		CoreValues:  20,
	}
}

// Sum returns the total of all maxima.
func (m ComponentMaxima) Sum() float64 {
	return m.Integrity + m.Achievement + m.SKP + m.CoreValues
}

// Validate checks that maxima sum to 100 and none are negative.
func (m ComponentMaxima) Validate() error {
	if math.Abs(m.Sum()-100) > 0.001 {
		return fmt.Errorf("component maxima sum to %.4f, must sum to 100", m.Sum())
	}
	for _, v := range []float64{m.Integrity, m.Achievement, m.SKP, m.CoreValues} {
		if v < 0 {
			return fmt.Errorf("negative component maximum: %f", v)
		}
	}
	return nil
}
