package sensor

import (
	"context"
	"time"
)

// Metric identifies what a source is asked to monitor.
type Metric string

const (
	MetricHeartRate Metric = "heart_rate"
	MetricCadence   Metric = "cadence"
)

// SourceKind tags which physical source produced a value.
type SourceKind string

const (
	SourceWatch    SourceKind = "watch"
	SourceWearable SourceKind = "wearable"
	SourcePhone    SourceKind = "phone"
	SourceNone     SourceKind = "none"
)

// Reading is one callback-delivered sensor event: either a value or an
// explicit no-data signal from a source that cannot produce any reading.
type Reading struct {
	Value  int  `json:"value"`
	NoData bool `json:"no_data"`
}

// Result pairs a value with the source that produced it. Source is SourceNone
// when every tier has been exhausted.
type Result struct {
	Value  int        `json:"value"`
	Source SourceKind `json:"source"`
}

// Source is the capability trait a physical sensor integration implements.
// The resolver is platform-agnostic and simply iterates implementations in
// priority order.
type Source interface {
	Kind() SourceKind
	// Available reports whether the source is reachable/installed. Checked at
	// resolver construction and on explicit refresh, not per sample.
	Available(ctx context.Context) bool
	// Start begins delivering readings for one metric until Stop.
	Start(metric Metric, deliver func(Reading)) error
	Stop(metric Metric)
	// CalorieEstimate returns the device's own calorie figure when it has one.
	CalorieEstimate(distanceM float64, duration time.Duration, weightKg float64, heartRate *int) (float64, bool)
}
