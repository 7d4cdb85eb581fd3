// Package scoring turns an answer into the points it is worth.
package scoring

// MaxPoints is awarded for a correct answer given instantly.
const MaxPoints = 1000

// MsPerPoint is how many elapsed milliseconds cost one point.
const MsPerPoint = 20

// Increment returns the speed-weighted points for one answer. Wrong answers
// score nothing and slow correct answers bottom out at zero.
func Increment(isCorrect bool, timeTakenMs int64) int {
	if !isCorrect {
		return 0
	}
	if timeTakenMs < 0 {
		timeTakenMs = 0
	}
	penalty := timeTakenMs / MsPerPoint
	if penalty >= MaxPoints {
		return 0
	}
	return MaxPoints - int(penalty)
}
