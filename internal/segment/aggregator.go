package segment

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultThresholdM closes a segment once this much validated distance accumulates.
const DefaultThresholdM = 10.0

// Location is one accepted fix attributed to a segment.
type Location struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// Segment is one finished ~10 m slice of a run, the unit of upload
// granularity. Immutable once created; ordinals are never reused.
type Segment struct {
	ID           int64      `json:"id"`
	DistanceM    float64    `json:"distance_m"`
	DurationSec  float64    `json:"duration_sec"`
	StartedAt    time.Time  `json:"started_at"`
	HeartRateBpm *int       `json:"heart_rate_bpm,omitempty"`
	CadenceSpm   *int       `json:"cadence_spm,omitempty"`
	CalorieShare float64    `json:"calorie_share"`
	Locations    []Location `json:"locations"`
}

// Snapshot carries the stat values attributed to a segment at close time.
// TotalCalories is the run-wide figure; each close splits it evenly across
// every segment closed so far, an intentionally approximate attribution.
type Snapshot struct {
	HeartRateBpm  *int
	CadenceSpm    *int
	TotalCalories float64
}

// Aggregator partitions accepted distance deltas into append-only segments.
// The ordinal counter is atomic so interleaved delta delivery can never skip
// or duplicate an ID.
type Aggregator struct {
	mu     sync.Mutex
	nextID atomic.Int64

	segments []Segment

	openDistance  float64
	openLocations []Location
	openStart     time.Time

	now func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{now: time.Now}
}

// Initialize resets the segment list and the open accumulator. Called once per
// run start.
func (a *Aggregator) Initialize() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID.Store(0)
	a.segments = nil
	a.openDistance = 0
	a.openLocations = nil
	a.openStart = a.now()
}

// ProcessDelta adds one accepted distance delta and its locations to the open
// accumulator, closing a segment when the threshold is reached. Returns true
// when a segment was created so the caller can react.
func (a *Aggregator) ProcessDelta(deltaM float64, locations []Location, thresholdM float64, snap Snapshot) bool {
	if deltaM <= 0 {
		return false
	}
	if thresholdM <= 0 {
		thresholdM = DefaultThresholdM
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.openDistance += deltaM
	a.openLocations = append(a.openLocations, locations...)
	created := false
	// Overflow past the threshold stays buffered for the next segment.
	for a.openDistance >= thresholdM {
		a.closeSegment(thresholdM, snap)
		created = true
	}
	return created
}

// Finalize flushes any non-zero remainder as a last, sub-threshold segment so
// segment totals always match accepted distance. Returns the segment or nil.
func (a *Aggregator) Finalize(snap Snapshot) *Segment {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.openDistance <= 0 {
		return nil
	}
	a.closeSegment(a.openDistance, snap)
	seg := a.segments[len(a.segments)-1]
	return &seg
}

// closeSegment must be called with the mutex held.
func (a *Aggregator) closeSegment(distanceM float64, snap Snapshot) {
	now := a.now()

	// A single delta can span several thresholds; give each closed segment a
	// slice of the buffered fixes proportional to its share of the distance.
	locs := a.openLocations
	if n := len(a.openLocations); n > 0 && a.openDistance > distanceM {
		take := int(math.Round(float64(n) * distanceM / a.openDistance))
		if take > n {
			take = n
		}
		locs = a.openLocations[:take]
		a.openLocations = a.openLocations[take:]
	} else {
		a.openLocations = nil
	}

	seg := Segment{
		ID:           a.nextID.Add(1),
		DistanceM:    distanceM,
		DurationSec:  now.Sub(a.openStart).Seconds(),
		StartedAt:    a.openStart,
		HeartRateBpm: snap.HeartRateBpm,
		CadenceSpm:   snap.CadenceSpm,
		Locations:    locs,
	}
	a.segments = append(a.segments, seg)

	// Even split of calories-so-far across all segments, including this one.
	share := snap.TotalCalories / float64(len(a.segments))
	for i := range a.segments {
		a.segments[i].CalorieShare = share
	}

	a.openDistance -= distanceM
	a.openStart = now
}

// Segments returns a copy of the closed segments in creation order.
func (a *Aggregator) Segments() []Segment {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Segment, len(a.segments))
	copy(out, a.segments)
	return out
}

// OpenDistanceM reports the distance buffered in the still-open segment.
func (a *Aggregator) OpenDistanceM() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.openDistance
}

// TotalDistanceM is the sum of closed segments plus the open accumulator.
func (a *Aggregator) TotalDistanceM() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := a.openDistance
	for _, seg := range a.segments {
		total += seg.DistanceM
	}
	return total
}
