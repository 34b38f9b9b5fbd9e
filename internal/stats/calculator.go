package stats

import (
	"math"
	"time"
)

const (
	// paceWindow bounds the instantaneous-pace snapshot history.
	paceWindow = 10 * time.Second
	// minPaceSpan guards the pace quotient against near-zero denominators.
	minPaceSpan = time.Second

	// runningMET is the fallback calorie coefficient when heart rate is unknown.
	runningMET = 9.8
)

type snapshot struct {
	at        time.Time
	distanceM float64
}

// Calculator derives RunningStats from accumulated distance and elapsed time.
// It owns the trailing snapshot window for instantaneous pace. Not safe for
// concurrent use; the lifecycle serializes updates.
type Calculator struct {
	profile Profile
	window  []snapshot
}

func NewCalculator(profile Profile) *Calculator {
	if profile.WeightKg <= 0 {
		profile = DefaultProfile()
	}
	return &Calculator{profile: profile}
}

// Update appends a snapshot, prunes the window, and returns the full stat set.
func (c *Calculator) Update(now time.Time, distanceM float64, elapsed time.Duration, heartRate, cadence *int) RunningStats {
	c.window = append(c.window, snapshot{at: now, distanceM: distanceM})
	cutoff := now.Add(-paceWindow)
	for len(c.window) > 0 && c.window[0].at.Before(cutoff) {
		c.window = c.window[1:]
	}

	calories := c.Calories(elapsed, heartRate)
	return RunningStats{
		HeartRateBpm: heartRate,
		CadenceSpm:   cadence,
		AveragePace:  AveragePace(elapsed, distanceM),
		InstantPace:  c.instantPace(),
		SpeedKmh:     SpeedKmh(elapsed, distanceM),
		Calories:     &calories,
	}
}

// AveragePace is floor(elapsed seconds per kilometer), zero at zero distance.
func AveragePace(elapsed time.Duration, distanceM float64) Pace {
	if distanceM <= 0 {
		return Pace{}
	}
	secPerKm := int(math.Floor(elapsed.Seconds() / (distanceM / 1000)))
	return Pace{Minutes: secPerKm / 60, Seconds: secPerKm % 60}
}

// SpeedKmh is the run-wide average speed.
func SpeedKmh(elapsed time.Duration, distanceM float64) float64 {
	hours := elapsed.Hours()
	if hours <= 0 {
		return 0
	}
	return distanceM / 1000 / hours
}

// instantPace reads the trailing window. Reported as zero whenever fewer than
// two snapshots remain, the distance delta is non-positive, or the span is
// shorter than a second.
func (c *Calculator) instantPace() Pace {
	if len(c.window) < 2 {
		return Pace{}
	}
	oldest := c.window[0]
	newest := c.window[len(c.window)-1]

	span := newest.at.Sub(oldest.at)
	distanceKm := (newest.distanceM - oldest.distanceM) / 1000
	if distanceKm <= 0 || span < minPaceSpan {
		return Pace{}
	}

	secPerKm := int(math.Floor(span.Seconds() / distanceKm))
	return Pace{Minutes: secPerKm / 60, Seconds: secPerKm % 60}
}

// Calories selects exactly one formula: the Keytel heart-rate regression when
// a reading is present, the MET estimate otherwise. Never negative.
func (c *Calculator) Calories(elapsed time.Duration, heartRate *int) float64 {
	if heartRate != nil {
		return KeytelCalories(c.profile, elapsed, *heartRate)
	}
	return MetCalories(c.profile.WeightKg, elapsed)
}

// KeytelCalories implements the Keytel et al. regression with sex-specific
// coefficients over heart rate, body weight, age and duration.
func KeytelCalories(p Profile, elapsed time.Duration, heartRate int) float64 {
	minutes := elapsed.Minutes()
	hr := float64(heartRate)
	age := float64(p.Age)

	var perMinute float64
	if p.Sex == SexFemale {
		perMinute = (-20.4022 + 0.4472*hr - 0.1263*p.WeightKg + 0.074*age) / 4.184
	} else {
		perMinute = (-55.0969 + 0.6309*hr + 0.1988*p.WeightKg + 0.2017*age) / 4.184
	}
	return math.Max(0, perMinute*minutes)
}

// MetCalories is the heart-rate-free fallback.
func MetCalories(weightKg float64, elapsed time.Duration) float64 {
	return math.Max(0, runningMET*weightKg*elapsed.Hours())
}
