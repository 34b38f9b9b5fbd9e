package run

import (
	"errors"
	"time"

	"backend-runpulse/internal/segment"
	"backend-runpulse/internal/stats"
)

// State is the lifecycle position of a run instance. Finished is terminal;
// Reset discards the instance back to Idle.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateFinished State = "finished"
)

var (
	// ErrNoLocationPermission is fatal to start; the caller redirects to a
	// permission flow.
	ErrNoLocationPermission = errors.New("location permission required")
	// ErrAlreadyRunning: starting while a run is active is a caller error.
	ErrAlreadyRunning = errors.New("run already active")
	// ErrNotRunning guards pause/resume/ingest against the wrong state.
	ErrNotRunning = errors.New("no active run")
	// ErrFinished guards operations on a terminal run instance.
	ErrFinished = errors.New("run already finished")
)

// FinalRecord is the assembled result handed to the completion service when a
// run ends.
type FinalRecord struct {
	RunID      string             `json:"run_id"`
	UserID     string             `json:"user_id"`
	DistanceM  float64            `json:"distance_m"`
	DurationS  float64            `json:"duration_s"`
	PausedS    float64            `json:"paused_s"`
	StartedAt  time.Time          `json:"started_at"`
	EndedAt    time.Time          `json:"ended_at"`
	Stats      stats.RunningStats `json:"stats"`
	Segments   []segment.Segment  `json:"segments"`
	Submitted  bool               `json:"submitted"`
	LocalRunID bool               `json:"local_run_id"`
}

// ServerRecord carries the authoritative reward data computed server-side on
// completion, never locally.
type ServerRecord struct {
	RunID     string    `json:"run_id"`
	Points    int       `json:"points"`
	DistanceM float64   `json:"distance_m"`
	EndedAt   time.Time `json:"ended_at"`
}

// SegmentUpload is the fire-and-forget payload for segment submission, queued
// on failure.
type SegmentUpload struct {
	RunID    string            `json:"run_id"`
	Segments []segment.Segment `json:"segments"`
}
