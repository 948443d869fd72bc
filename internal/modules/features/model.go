// README: Raw ride inputs, engineered feature set and the bucket definitions the model was trained on.
package features

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrSchemaMismatch = errors.New("feature schema mismatch")
)

// Weekday is the ordinal used at training time: Monday=0 ... Sunday=6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func (d Weekday) String() string {
	if d < Monday || d > Sunday {
		return "Weekday(" + strconv.Itoa(int(d)) + ")"
	}
	return weekdayNames[d]
}

// IsWeekend reports whether d is Saturday or Sunday.
func (d Weekday) IsWeekend() bool {
	return d == Saturday || d == Sunday
}

// WeekdayNames returns the full weekday names in ordinal order.
func WeekdayNames() []string {
	out := make([]string, len(weekdayNames))
	copy(out, weekdayNames[:])
	return out
}

// ParseWeekday accepts full ("Wednesday") or three-letter ("Wed") names, case-insensitive.
func ParseWeekday(s string) (Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 3 {
		return 0, false
	}
	for i, name := range weekdayNames {
		full := strings.ToLower(name)
		if s == full || s == full[:3] {
			return Weekday(i), true
		}
	}
	return 0, false
}

func (d Weekday) MarshalText() ([]byte, error) {
	if d < Monday || d > Sunday {
		return nil, fmt.Errorf("%w: weekday %d out of range", ErrInvalidInput, int(d))
	}
	return []byte(d.String()), nil
}

func (d *Weekday) UnmarshalText(b []byte) error {
	v, ok := ParseWeekday(string(b))
	if !ok {
		return fmt.Errorf("%w: unknown weekday %q", ErrInvalidInput, string(b))
	}
	*d = v
	return nil
}

// RawInputs is one form submission. It is never mutated after construction.
type RawInputs struct {
	DistanceKm      float64 `json:"distance_km"`
	PickupHour      int     `json:"pickup_hour"`
	PickupWeekday   Weekday `json:"pickup_weekday"`
	PickupMonth     int     `json:"pickup_month"`
	StoreAndForward bool    `json:"store_and_fwd"`
}

// Flag returns the store-and-forward flag as it appears on the form ("Y" or "N").
func (r RawInputs) Flag() string {
	if r.StoreAndForward {
		return "Y"
	}
	return "N"
}

// ParseFlag maps "Y"/"N" (case-insensitive) to a bool.
func ParseFlag(s string) (bool, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Y":
		return true, true
	case "N":
		return false, true
	}
	return false, false
}

// Base feature names.
const (
	NameDistanceKm      = "distance_km"
	NamePickupHour      = "pickup_hour"
	NamePickupWeekday   = "pickup_weekday"
	NamePickupMonth     = "pickup_month"
	NameStoreAndForward = "store_and_fwd_flag"
	NameIsWeekend       = "is_weekend"

	timeOfDayPrefix   = "time_of_day_"
	distanceBinPrefix = "distance_bin_"
)

type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	Night     TimeOfDay = "night"
)

// TimesOfDay lists the one-hot group in the order the indicators are emitted.
var TimesOfDay = []TimeOfDay{Morning, Afternoon, Evening, Night}

type DistanceBin string

const (
	Short    DistanceBin = "short"
	Medium   DistanceBin = "medium"
	Long     DistanceBin = "long"
	VeryLong DistanceBin = "very_long"
)

var DistanceBins = []DistanceBin{Short, Medium, Long, VeryLong}

func (t TimeOfDay) FeatureName() string   { return timeOfDayPrefix + string(t) }
func (b DistanceBin) FeatureName() string { return distanceBinPrefix + string(b) }

// Names returns every feature name Derive can emit, in emission order.
func Names() []string {
	names := []string{
		NameDistanceKm,
		NamePickupHour,
		NamePickupWeekday,
		NamePickupMonth,
		NameStoreAndForward,
		NameIsWeekend,
	}
	for _, t := range TimesOfDay {
		names = append(names, t.FeatureName())
	}
	for _, b := range DistanceBins {
		names = append(names, b.FeatureName())
	}
	return names
}

// Features maps feature name to value. Indicators are 0 or 1, continuous values are raw.
type Features map[string]float64

// Feature is a single named value, used when order matters for display.
type Feature struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Ordered returns the derived features in emission order followed by any other keys sorted by name.
func (f Features) Ordered() []Feature {
	out := make([]Feature, 0, len(f))
	seen := make(map[string]struct{}, len(f))
	for _, name := range Names() {
		if v, ok := f[name]; ok {
			out = append(out, Feature{Name: name, Value: v})
			seen[name] = struct{}{}
		}
	}
	var rest []string
	for name := range f {
		if _, ok := seen[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, Feature{Name: name, Value: f[name]})
	}
	return out
}
