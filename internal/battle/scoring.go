// internal/battle/scoring.go
package battle

import "time"

const (
	BasePoints = 100
	FastBonus  = 50 // under half the round limit
	QuickBonus = 25 // under three quarters of the round limit
	fastRatio  = 0.5
	quickRatio = 0.75
)

// ScorePoints returns the base and speed bonus for a submission. Only correct answers
// score, so the total is always 0, 100, 125 or 150. Time past the limit still scores
// the base points.
func ScorePoints(correct bool, timeTaken time.Duration, roundTimeLimitSec int) (base, bonus int) {
	if !correct {
		return 0, 0
	}
	if roundTimeLimitSec <= 0 {
		return BasePoints, 0
	}
	ratio := timeTaken.Seconds() / float64(roundTimeLimitSec)
	switch {
	case ratio < fastRatio:
		return BasePoints, FastBonus
	case ratio < quickRatio:
		return BasePoints, QuickBonus
	}
	return BasePoints, 0
}
