package stats

// Pace is minutes and seconds per kilometer.
type Pace struct {
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// RunningStats is the live metric set for an active run. Heart rate, cadence
// and calories are pointers: when no source can supply them the absence is
// reported as such, never as zero.
type RunningStats struct {
	HeartRateBpm *int     `json:"heart_rate_bpm,omitempty"`
	CadenceSpm   *int     `json:"cadence_spm,omitempty"`
	AveragePace  Pace     `json:"average_pace"`
	InstantPace  Pace     `json:"instant_pace"`
	SpeedKmh     float64  `json:"speed_kmh"`
	Calories     *float64 `json:"calories,omitempty"`
}

// Profile feeds the calorie regression. Defaults apply until the profile
// service supplies stored values.
type Profile struct {
	WeightKg float64 `json:"weight_kg"`
	Age      int     `json:"age"`
	Sex      string  `json:"sex"`
}

const (
	SexMale   = "male"
	SexFemale = "female"
)

// DefaultProfile returns the assumed profile for users without stored data.
func DefaultProfile() Profile {
	return Profile{WeightKg: 70, Age: 30, Sex: SexMale}
}
