package medication

import (
	"fmt"
)

// doseCount is the fixed number of doses per day for non-custom rules
var doseCount = map[Frequency]int{
	FrequencyEvery4Hours: 4,
	FrequencyEvery8Hours: 3,
	FrequencyTwiceDaily:  2,
}

// spacing in minutes between consecutive doses for non-custom rules
var doseSpacing = map[Frequency]int{
	FrequencyEvery4Hours: 4 * 60,
	FrequencyEvery8Hours: 8 * 60,
	FrequencyTwiceDaily:  12 * 60,
}

// Valid reports whether f is one of the known rules
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyEvery4Hours, FrequencyEvery8Hours, FrequencyTwiceDaily, FrequencyCustom:
		return true
	}
	return false
}

// Count returns the number of daily doses for f. customCount is only used
// for FrequencyCustom.
func (f Frequency) Count(customCount int) int {
	if f == FrequencyCustom {
		return customCount
	}
	return doseCount[f]
}

// Resolve derives the daily dose times for a frequency rule, starting at
// firstDose and wrapping past midnight. For custom rules, dose k is offset
// floor(k*1440/n) minutes from the first dose so the rounding never
// accumulates.
//
//	Resolve(FrequencyEvery8Hours, "22:00", 0) // ["22:00" "06:00" "14:00"]
func Resolve(freq Frequency, firstDose string, customCount int) ([]string, error) {
	hour, minute, err := ParseClock(firstDose)
	if err != nil {
		return nil, err
	}
	start := hour*60 + minute

	var offsets []int
	switch freq {
	case FrequencyEvery4Hours, FrequencyEvery8Hours, FrequencyTwiceDaily:
		n, step := doseCount[freq], doseSpacing[freq]
		for k := 0; k < n; k++ {
			offsets = append(offsets, k*step)
		}
	case FrequencyCustom:
		if customCount < 1 || customCount > minutesPerDay {
			return nil, fmt.Errorf("custom dose count %d out of range 1..%d", customCount, minutesPerDay)
		}
		for k := 0; k < customCount; k++ {
			offsets = append(offsets, k*minutesPerDay/customCount)
		}
	default:
		return nil, fmt.Errorf("unknown frequency %q", freq)
	}

	times := make([]string, 0, len(offsets))
	for _, off := range offsets {
		times = append(times, FormatClock(start+off))
	}
	return times, nil
}
