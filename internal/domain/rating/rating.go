// Package rating implements the pure rating transfer for a best-of-five
// match. Given two team ratings and a final set score it returns the new
// ratings; the transfer is exactly zero-sum and has no side effects.
package rating

import (
	"fmt"
	"math"
)

// Default engine constants.
const (
	defaultDeltaScale  = 8.0  // multiplier on the rating gap before the CDF
	defaultMatchWeight = 50.0 // weight of one match
	defaultPointScale  = 8.0  // divisor turning weighted SSV into points
	minTransfer        = 0.01 // smallest visible move for either side
	outcomeCount       = 6
)

// cutpoints partition the shifted rating-gap axis into the six possible
// best-of-five outcomes, from "A wins 3-0" through "B wins 3-0".
var cutpoints = [5]float64{-1.060, -0.394, 0, 0.394, 1.060}

// setScoreVariants encodes the margin of each outcome from team A's
// perspective, same order as the cutpoint partition.
var setScoreVariants = [outcomeCount]float64{2, 1.5, 1, -1, -1.5, -2}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithMatchWeight overrides the per-match weight.
func WithMatchWeight(w float64) Option {
	return func(e *Engine) {
		if w > 0 {
			e.matchWeight = w
		}
	}
}

// WithDeltaScale overrides the rating-gap scaling constant.
func WithDeltaScale(k float64) Option {
	return func(e *Engine) {
		if k > 0 {
			e.deltaScale = k
		}
	}
}

// Engine computes rating transfers. The zero value is not usable; construct
// with New.
type Engine struct {
	deltaScale  float64
	matchWeight float64
	pointScale  float64
}

// New creates an Engine with the default constants.
func New(opts ...Option) *Engine {
	e := &Engine{
		deltaScale:  defaultDeltaScale,
		matchWeight: defaultMatchWeight,
		pointScale:  defaultPointScale,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidateScore checks that (setsA, setsB) is a completed best-of-five
// result: both in [0,3], exactly one side at 3.
func ValidateScore(setsA, setsB int) error {
	switch {
	case setsA < 0 || setsA > 3 || setsB < 0 || setsB > 3:
		return fmt.Errorf("%w: sets out of range: %d-%d", ErrInvalidScore, setsA, setsB)
	case setsA == 3 && setsB == 3:
		return fmt.Errorf("%w: both sides at three sets: %d-%d", ErrInvalidScore, setsA, setsB)
	case setsA != 3 && setsB != 3:
		return fmt.Errorf("%w: no side at three sets: %d-%d", ErrInvalidScore, setsA, setsB)
	}
	return nil
}

// Apply computes the zero-sum rating transfer for one match and returns the
// new ratings of team A and team B. It returns ErrInvalidScore when the set
// score is not a completed best-of-five result; no other error is possible.
func (e *Engine) Apply(ratingA, ratingB float64, setsA, setsB int) (float64, float64, error) {
	if err := ValidateScore(setsA, setsB); err != nil {
		return 0, 0, err
	}

	delta := e.deltaScale * (ratingA - ratingB) / 1000

	probs := outcomeProbabilities(delta)

	// Expected match result: probability-weighted average margin.
	var emr float64
	for i, p := range probs {
		emr += p * setScoreVariants[i]
	}

	actual := setScoreVariants[outcomeIndex(setsA, setsB)]
	points := (actual - emr) * e.matchWeight / e.pointScale

	// A winner always gains and a loser always loses, visibly. Clamp the
	// transfer to the minimum increment in the direction implied by the
	// result.
	if setsA == 3 {
		if points < minTransfer {
			points = minTransfer
		}
	} else {
		if points > -minTransfer {
			points = -minTransfer
		}
	}

	return ratingA + points, ratingB - points, nil
}

// outcomeProbabilities derives the six mutually exclusive outcome
// probabilities as successive differences of the standard-normal CDF
// evaluated at each shifted cutpoint. Negative differences are clamped to
// zero and the mass renormalized; a non-positive raw sum falls back to a
// uniform distribution.
func outcomeProbabilities(delta float64) [outcomeCount]float64 {
	var cdf [5]float64
	for i, c := range cutpoints {
		cdf[i] = stdNormCDF(c + delta)
	}

	probs := [outcomeCount]float64{
		cdf[0],
		cdf[1] - cdf[0],
		cdf[2] - cdf[1],
		cdf[3] - cdf[2],
		cdf[4] - cdf[3],
		1 - cdf[4],
	}

	var sum float64
	for i, p := range probs {
		if p < 0 {
			probs[i] = 0
			continue
		}
		sum += p
	}
	if sum <= 0 {
		for i := range probs {
			probs[i] = 1.0 / outcomeCount
		}
		return probs
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// outcomeIndex maps a valid set score to its slot in the outcome tables.
func outcomeIndex(setsA, setsB int) int {
	if setsA == 3 {
		return setsB // 3-0, 3-1, 3-2
	}
	return 5 - setsA // 2-3, 1-3, 0-3
}

// stdNormCDF is the standard-normal cumulative distribution function.
func stdNormCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}
