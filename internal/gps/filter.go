package gps

import (
	"math"

	"backend-runpulse/internal/shared/geo"
)

// Evaluate validates one fix against the previously accepted fix. It is pure:
// the caller owns the baseline and decides whether the result replaces it.
// Checks run in order and stop at the first failure.
func Evaluate(prev *Sample, cur Sample, cfg FilterConfig) Result {
	if !finite(cur.Lat) || !finite(cur.Lon) {
		return rejected(ReasonInvalidCoordinate)
	}
	if cur.TimestampMs <= 0 {
		return rejected(ReasonInvalidTimestamp)
	}
	if cur.AccuracyM != nil && *cur.AccuracyM > cfg.MaxAccuracyM {
		return rejected(ReasonLowAccuracy)
	}

	if prev == nil {
		// First fix only establishes the baseline.
		return Result{ForPath: true, Reason: ReasonNoPreviousSample}
	}

	elapsed := float64(cur.TimestampMs-prev.TimestampMs) / 1000
	if !finite(elapsed) || elapsed <= 0 {
		return rejected(ReasonInvalidTimestamp)
	}
	if elapsed > cfg.MaxDeltaSeconds {
		return rejected(ReasonTimeGapTooLarge)
	}

	distance := geo.HaversineM(prev.Lat, prev.Lon, cur.Lat, cur.Lon)
	distanceSpeed := distance / elapsed

	fused := distanceSpeed
	validation := distanceSpeed
	if cur.SpeedMps != nil && *cur.SpeedMps > 0 {
		fused = (*cur.SpeedMps + distanceSpeed) / 2
		validation = math.Max(*cur.SpeedMps, distanceSpeed)
	}
	if validation*3.6 > cfg.MaxSpeedKmh {
		return rejected(ReasonSpeedTooFast)
	}

	// Stationary fixes keep the pace window alive but never move the counter.
	motionSpeed := distanceSpeed
	if cur.SpeedMps != nil {
		motionSpeed = *cur.SpeedMps
	}
	if motionSpeed < cfg.StationarySpeedMps && distance <= cfg.StationaryRadiusM {
		return Result{ForPace: true, DistanceM: distance, FusedSpeedMps: fused, Reason: ReasonStationary}
	}

	if distance < cfg.MinDistanceM {
		return Result{ForPace: true, DistanceM: distance, FusedSpeedMps: fused, Reason: ReasonDistanceBelowMin}
	}

	return Result{
		ForDistance:   true,
		ForPath:       true,
		ForPace:       true,
		DistanceM:     distance,
		FusedSpeedMps: fused,
		Reason:        ReasonOK,
	}
}

// AdvancesBaseline reports whether the evaluated fix should replace the
// caller's previous sample. Rejected glitches keep the old anchor so jitter
// around a standstill cannot drift the counter; a fix after a long gap starts
// a fresh baseline instead of bridging it.
func AdvancesBaseline(r Result) bool {
	switch r.Reason {
	case ReasonOK, ReasonNoPreviousSample, ReasonTimeGapTooLarge:
		return true
	}
	return false
}

func rejected(reason Reason) Result {
	return Result{Reason: reason}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
