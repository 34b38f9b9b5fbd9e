package gps

// Sample is one raw location fix as delivered by a device.
type Sample struct {
	Lat         float64  `json:"lat"`
	Lon         float64  `json:"lon"`
	TimestampMs int64    `json:"timestamp_ms"`
	SpeedMps    *float64 `json:"speed_mps,omitempty"`
	AccuracyM   *float64 `json:"accuracy_m,omitempty"`
}

// FilterConfig holds the validation thresholds for incoming fixes.
type FilterConfig struct {
	// MaxAccuracyM rejects fixes whose reported horizontal accuracy is worse.
	MaxAccuracyM float64 `mapstructure:"GPS_MAX_ACCURACY_M"`

	// MinDistanceM is the smallest movement counted toward distance.
	MinDistanceM float64 `mapstructure:"GPS_MIN_DISTANCE_M"`

	// MaxSpeedKmh is the teleport guard: derived speeds above it are GPS glitches.
	MaxSpeedKmh float64 `mapstructure:"GPS_MAX_SPEED_KMH"`

	// StationarySpeedMps and StationaryRadiusM together classify jitter while standing still.
	StationarySpeedMps float64 `mapstructure:"GPS_STATIONARY_SPEED_MPS"`
	StationaryRadiusM  float64 `mapstructure:"GPS_STATIONARY_RADIUS_M"`

	// MaxDeltaSeconds is the largest gap bridged between two fixes; beyond it the
	// next fix starts a new baseline.
	MaxDeltaSeconds float64 `mapstructure:"GPS_MAX_DELTA_SECONDS"`
}

// DefaultFilterConfig returns the production thresholds.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		MaxAccuracyM:       25,
		MinDistanceM:       3,
		MaxSpeedKmh:        36,
		StationarySpeedMps: 0.8,
		StationaryRadiusM:  6,
		MaxDeltaSeconds:    15,
	}
}

// Reason tags why a fix was accepted or rejected.
type Reason string

const (
	ReasonOK                Reason = "OK"
	ReasonInvalidCoordinate Reason = "INVALID_COORDINATE"
	ReasonInvalidTimestamp  Reason = "INVALID_TIMESTAMP"
	ReasonLowAccuracy       Reason = "LOW_ACCURACY"
	ReasonNoPreviousSample  Reason = "NO_PREVIOUS_SAMPLE"
	ReasonTimeGapTooLarge   Reason = "TIME_GAP_TOO_LARGE"
	ReasonSpeedTooFast      Reason = "SPEED_TOO_FAST"
	ReasonStationary        Reason = "STATIONARY"
	ReasonDistanceBelowMin  Reason = "DISTANCE_BELOW_MIN"
)

// Result reports acceptance per consumer: cumulative distance, the recorded
// path, and the instantaneous-pace window each decide independently.
// ForDistance implies ForPath and ForPace.
type Result struct {
	ForDistance   bool    `json:"for_distance"`
	ForPath       bool    `json:"for_path"`
	ForPace       bool    `json:"for_pace"`
	DistanceM     float64 `json:"distance_m"`
	FusedSpeedMps float64 `json:"fused_speed_mps"`
	Reason        Reason  `json:"reason"`
}
