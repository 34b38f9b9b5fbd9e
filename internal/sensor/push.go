package sensor

import (
	"context"
	"sync"
	"time"
)

// PushSource adapts externally pushed device readings (HTTP-delivered in this
// backend) to the Source interface. One instance per physical source per run.
type PushSource struct {
	kind      SourceKind
	reachable bool

	mu       sync.Mutex
	handlers map[Metric]func(Reading)
	calories *float64
}

func NewPushSource(kind SourceKind, reachable bool) *PushSource {
	return &PushSource{
		kind:      kind,
		reachable: reachable,
		handlers:  map[Metric]func(Reading){},
	}
}

func (s *PushSource) Kind() SourceKind { return s.kind }

func (s *PushSource) Available(_ context.Context) bool { return s.reachable }

func (s *PushSource) Start(metric Metric, deliver func(Reading)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[metric] = deliver
	return nil
}

func (s *PushSource) Stop(metric Metric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, metric)
}

// Push forwards one device reading to whoever is monitoring the metric.
// Readings for unmonitored metrics are dropped.
func (s *PushSource) Push(metric Metric, reading Reading) {
	s.mu.Lock()
	deliver := s.handlers[metric]
	s.mu.Unlock()
	if deliver != nil {
		deliver(reading)
	}
}

// SetCalories records the device's own calorie figure for this run.
func (s *PushSource) SetCalories(kcal float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calories = &kcal
}

func (s *PushSource) CalorieEstimate(_ float64, _ time.Duration, _ float64, _ *int) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calories == nil {
		return 0, false
	}
	return *s.calories, true
}
