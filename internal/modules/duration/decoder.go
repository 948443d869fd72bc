// README: Decoder converts a log1p-scale model output back into seconds and a minutes/seconds split.
package duration

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNonFinite  = errors.New("model output is not a finite number")
	ErrOutOfRange = errors.New("model output is outside the plausible trip duration range")
)

// MaxSeconds caps a decoded duration at one week; anything longer is a broken model or input.
const MaxSeconds = 7 * 24 * 3600

// splitTolerance is the relative distance to the next whole second treated as
// float noise from expm1(log1p(x)), so 60.0 does not split as 0m59s.
const splitTolerance = 1e-12

// Result is a decoded prediction.
type Result struct {
	LogDuration     float64 `json:"log_duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	Minutes         int     `json:"minutes"`
	Seconds         int     `json:"seconds"`
	// Degenerate is set when the model produced a negative duration that was clamped to 0.
	Degenerate bool `json:"degenerate"`
}

// Decode inverts log1p. A negative duration is clamped to 0 and flagged; NaN or +Inf fail.
func Decode(logDuration float64) (Result, error) {
	if math.IsNaN(logDuration) || math.IsInf(logDuration, 1) {
		return Result{}, fmt.Errorf("%w: %v", ErrNonFinite, logDuration)
	}

	secs := math.Expm1(logDuration)
	res := Result{LogDuration: logDuration}
	if math.IsInf(secs, 1) {
		return Result{}, fmt.Errorf("%w: expm1(%v) overflows", ErrNonFinite, logDuration)
	}
	if secs > MaxSeconds {
		return Result{}, fmt.Errorf("%w: %.0f seconds exceeds %d", ErrOutOfRange, secs, MaxSeconds)
	}
	if secs < 0 {
		secs = 0
		res.Degenerate = true
	}
	res.DurationSeconds = secs

	whole := wholeSeconds(secs)
	res.Minutes = int(whole / 60)
	res.Seconds = int(whole % 60)
	return res, nil
}

func wholeSeconds(secs float64) int64 {
	next := math.Ceil(secs)
	if next-secs > 0 && next-secs <= splitTolerance*math.Max(1, secs) {
		return int64(next)
	}
	return int64(math.Floor(secs))
}

// Encode is the training-time transform, log(1+seconds).
func Encode(seconds float64) float64 {
	return math.Log1p(seconds)
}

// RoundedSeconds is the total duration rounded to the nearest second.
func (r Result) RoundedSeconds() int64 {
	return int64(math.Round(r.DurationSeconds))
}
