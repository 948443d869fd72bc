// README: Deriver turns one validated form submission into the engineered feature set.
package features

import (
	"fmt"
	"math"
)

const (
	maxHour  = 23
	minMonth = 1
	maxMonth = 12
)

// Validate rejects inputs outside the domain the form widgets guarantee.
func Validate(r RawInputs) error {
	if math.IsNaN(r.DistanceKm) || math.IsInf(r.DistanceKm, 0) || r.DistanceKm <= 0 {
		return fmt.Errorf("%w: distance_km must be greater than 0, got %v", ErrInvalidInput, r.DistanceKm)
	}
	if r.PickupHour < 0 || r.PickupHour > maxHour {
		return fmt.Errorf("%w: pickup_hour must be within [0,23], got %d", ErrInvalidInput, r.PickupHour)
	}
	if r.PickupWeekday < Monday || r.PickupWeekday > Sunday {
		return fmt.Errorf("%w: pickup_weekday %d is not a weekday", ErrInvalidInput, int(r.PickupWeekday))
	}
	if r.PickupMonth < minMonth || r.PickupMonth > maxMonth {
		return fmt.Errorf("%w: pickup_month must be within [1,12], got %d", ErrInvalidInput, r.PickupMonth)
	}
	return nil
}

// TimeOfDayFor buckets a pickup hour. The hour must already be validated.
func TimeOfDayFor(hour int) TimeOfDay {
	switch {
	case hour <= 5:
		return Night
	case hour <= 11:
		return Morning
	case hour <= 17:
		return Afternoon
	default:
		return Evening
	}
}

// DistanceBinFor buckets a trip distance in km. Upper bounds are inclusive.
func DistanceBinFor(km float64) DistanceBin {
	switch {
	case km <= 2:
		return Short
	case km <= 5:
		return Medium
	case km <= 10:
		return Long
	default:
		return VeryLong
	}
}

// Derive builds the 14-key feature set for r.
func Derive(r RawInputs) (Features, error) {
	if err := Validate(r); err != nil {
		return nil, err
	}

	f := make(Features, 14)
	f[NameDistanceKm] = r.DistanceKm
	f[NamePickupHour] = float64(r.PickupHour)
	f[NamePickupWeekday] = float64(r.PickupWeekday)
	f[NamePickupMonth] = float64(r.PickupMonth)
	f[NameStoreAndForward] = boolToFloat(r.StoreAndForward)
	f[NameIsWeekend] = boolToFloat(r.PickupWeekday.IsWeekend())

	tod := TimeOfDayFor(r.PickupHour)
	for _, t := range TimesOfDay {
		f[t.FeatureName()] = boolToFloat(t == tod)
	}

	bin := DistanceBinFor(r.DistanceKm)
	for _, b := range DistanceBins {
		f[b.FeatureName()] = boolToFloat(b == bin)
	}
	return f, nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
