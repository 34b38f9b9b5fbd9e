package sensor

import (
	"context"
	"log"
	"sync"
	"time"
)

// Resolver picks which source supplies each metric, falling through the
// priority order one tier per no-data event. Each metric falls back
// independently; a higher tier is never re-queried within a monitoring
// session once it has reported no data.
type Resolver struct {
	mu        sync.Mutex
	sources   []Source
	available map[SourceKind]bool
	active    map[Metric]int // index into sources; -1 when exhausted
	callbacks map[Metric]func(Result)
}

// NewResolver checks availability once for every source, in the given
// priority order (highest first).
func NewResolver(ctx context.Context, sources ...Source) *Resolver {
	r := &Resolver{
		sources:   sources,
		available: map[SourceKind]bool{},
		active:    map[Metric]int{},
		callbacks: map[Metric]func(Result){},
	}
	r.RefreshAvailability(ctx)
	return r
}

// RefreshAvailability re-runs the reachability checks on demand.
func (r *Resolver) RefreshAvailability(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, src := range r.sources {
		r.available[src.Kind()] = src.Available(ctx)
	}
}

// StartMonitoring starts the highest-priority available source for the metric.
// No-data events advance to the next tier without caller involvement; when all
// tiers exhaust, onData receives a SourceNone result and the resolver stays
// exhausted until monitoring is restarted.
func (r *Resolver) StartMonitoring(metric Metric, onData func(Result)) {
	r.mu.Lock()
	r.callbacks[metric] = onData
	r.mu.Unlock()
	r.startFrom(metric, 0)
}

// StopMonitoring tears down whichever source is active for the metric and
// clears the active-source record.
func (r *Resolver) StopMonitoring(metric Metric) {
	r.mu.Lock()
	idx, ok := r.active[metric]
	delete(r.active, metric)
	delete(r.callbacks, metric)
	r.mu.Unlock()

	if ok && idx >= 0 && idx < len(r.sources) {
		r.sources[idx].Stop(metric)
	}
}

// ActiveSource reports which source currently serves the metric.
func (r *Resolver) ActiveSource(metric Metric) SourceKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, ok := r.active[metric]
	if !ok || idx < 0 || idx >= len(r.sources) {
		return SourceNone
	}
	return r.sources[idx].Kind()
}

// Calories resolves a device-reported calorie estimate: wearable first, then
// the phone health service. Returns false when neither has one, leaving the
// caller to fall back to its own formula.
func (r *Resolver) Calories(distanceM float64, duration time.Duration, weightKg float64, heartRate *int) (float64, SourceKind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, kind := range []SourceKind{SourceWearable, SourcePhone} {
		for _, src := range r.sources {
			if src.Kind() != kind || !r.available[kind] {
				continue
			}
			if kcal, ok := src.CalorieEstimate(distanceM, duration, weightKg, heartRate); ok {
				return kcal, kind, true
			}
		}
	}
	return 0, SourceNone, false
}

// startFrom walks the priority list beginning at index from, starting the
// first available source and wiring its readings through handleReading.
func (r *Resolver) startFrom(metric Metric, from int) {
	r.mu.Lock()
	idx := -1
	for i := from; i < len(r.sources); i++ {
		if r.available[r.sources[i].Kind()] {
			idx = i
			break
		}
	}
	r.active[metric] = idx
	onData := r.callbacks[metric]
	r.mu.Unlock()

	if idx < 0 {
		if onData != nil {
			onData(Result{Source: SourceNone})
		}
		return
	}

	src := r.sources[idx]
	err := src.Start(metric, func(reading Reading) {
		r.handleReading(metric, idx, reading)
	})
	if err != nil {
		log.Printf("sensor %s start failed for %s: %v", src.Kind(), metric, err)
		r.startFrom(metric, idx+1)
	}
}

func (r *Resolver) handleReading(metric Metric, idx int, reading Reading) {
	r.mu.Lock()
	active, ok := r.active[metric]
	onData := r.callbacks[metric]
	r.mu.Unlock()

	// A stale callback from an already-replaced or stopped source.
	if !ok || active != idx {
		return
	}

	if reading.NoData {
		r.sources[idx].Stop(metric)
		r.startFrom(metric, idx+1)
		return
	}
	if onData != nil {
		onData(Result{Value: reading.Value, Source: r.sources[idx].Kind()})
	}
}
