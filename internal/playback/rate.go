package playback

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	// MinRate is the slowest supported speech rate.
	MinRate = 0.5
	// MaxRate is the fastest supported speech rate.
	MaxRate = 2.0
	// DefaultRate is normal speed.
	DefaultRate = 1.0
)

// ErrRateOutOfRange is returned when a rate is outside [MinRate, MaxRate].
var ErrRateOutOfRange = errors.New("rate must be between 0.5 and 2.0")

var rateSteps = []float64{0.5, 0.75, 1.0, 1.25, 1.5, 1.75, 2.0}

// ValidateRate checks that r is a usable speech rate.
func ValidateRate(r float64) error {
	if r < MinRate || r > MaxRate {
		return fmt.Errorf("%w: %.2f", ErrRateOutOfRange, r)
	}
	return nil
}

// Faster returns the next rate step above r.
func Faster(r float64) float64 {
	for _, step := range rateSteps {
		if step > r {
			return step
		}
	}
	return r
}

// Slower returns the next rate step below r.
func Slower(r float64) float64 {
	for i := len(rateSteps) - 1; i >= 0; i-- {
		if rateSteps[i] < r {
			return rateSteps[i]
		}
	}
	return r
}

// RateLabel returns a human-readable rate.
func RateLabel(r float64) string {
	switch r {
	case 0.5:
		return "0.5x (Half Speed)"
	case 1.0:
		return "1.0x (Normal)"
	case 2.0:
		return "2.0x (Double Speed)"
	default:
		return strconv.FormatFloat(r, 'f', -1, 64) + "x"
	}
}
