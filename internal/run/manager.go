package run

import (
	"context"
	"errors"
	"sync"

	"backend-runpulse/internal/gps"
	"backend-runpulse/internal/sensor"
	"backend-runpulse/internal/sidestore"
	"backend-runpulse/internal/stats"
)

// ErrUnknownRun is returned for operations on a run this instance does not own.
var ErrUnknownRun = errors.New("unknown run")

// ProfileResolver supplies the calorie profile for a user.
type ProfileResolver interface {
	StatsProfile(ctx context.Context, userID string) stats.Profile
}

// DeviceFlags are the reachability booleans reported by the client at start:
// the permission/availability checks themselves happen on the device.
type DeviceFlags struct {
	Watch    bool `json:"watch"`
	Wearable bool `json:"wearable"`
	Phone    bool `json:"phone"`
}

// StartRequest is the full set of start conditions.
type StartRequest struct {
	StartOptions
	Devices DeviceFlags `json:"devices"`
}

// activeRun bundles one lifecycle with its per-run push plumbing.
type activeRun struct {
	lifecycle *Lifecycle
	resolver  *sensor.Resolver
	sources   map[sensor.SourceKind]*sensor.PushSource
	steps     *PushStepCounter
}

// Manager owns the active lifecycles, one per run, and wires each new run's
// collaborators together. Sensor data arrives over HTTP and is pushed through
// the per-run sources.
type Manager struct {
	mu   sync.Mutex
	runs map[string]*activeRun

	cfg      Config
	records  RecordService
	queue    RetryQueue
	hub      Broadcaster
	store    *sidestore.Store
	profiles ProfileResolver
}

func NewManager(cfg Config, records RecordService, queue RetryQueue, hub Broadcaster, store *sidestore.Store, profiles ProfileResolver) *Manager {
	return &Manager{
		runs:     map[string]*activeRun{},
		cfg:      cfg,
		records:  records,
		queue:    queue,
		hub:      hub,
		store:    store,
		profiles: profiles,
	}
}

// Start builds a fresh lifecycle with its own resolver and push sources, then
// starts it.
func (m *Manager) Start(ctx context.Context, userID string, req StartRequest) (string, error) {
	sources := map[sensor.SourceKind]*sensor.PushSource{
		sensor.SourceWatch:    sensor.NewPushSource(sensor.SourceWatch, req.Devices.Watch),
		sensor.SourceWearable: sensor.NewPushSource(sensor.SourceWearable, req.Devices.Wearable),
		sensor.SourcePhone:    sensor.NewPushSource(sensor.SourcePhone, req.Devices.Phone),
	}
	resolver := sensor.NewResolver(ctx,
		sources[sensor.SourceWatch],
		sources[sensor.SourceWearable],
		sources[sensor.SourcePhone],
	)
	steps := &PushStepCounter{}

	var profile stats.Profile
	if m.profiles != nil {
		profile = m.profiles.StatsProfile(ctx, userID)
	}

	// The factory closure runs during Start, after lc is assigned.
	var lc *Lifecycle
	lc = NewLifecycle(m.cfg, Deps{
		Records:  m.records,
		Queue:    m.queue,
		Resolver: resolver,
		Steps:    steps,
		Hub:      m.hub,
		Profile:  profile,
		PollerFactory: func(runID string) SamplePoller {
			return sidestore.NewPoller(m.store, runID, m.cfg.PollInterval, func(s gps.Sample) {
				_, _ = lc.Ingest(s)
			})
		},
	})

	runID, err := lc.Start(ctx, userID, req.StartOptions)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.runs[runID] = &activeRun{lifecycle: lc, resolver: resolver, sources: sources, steps: steps}
	m.mu.Unlock()
	return runID, nil
}

// Lifecycle returns the lifecycle owning runID.
func (m *Manager) Lifecycle(runID string) (*Lifecycle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active, ok := m.runs[runID]
	if !ok {
		return nil, ErrUnknownRun
	}
	return active.lifecycle, nil
}

// PushReading forwards one device sensor reading into the run's source chain.
func (m *Manager) PushReading(runID string, kind sensor.SourceKind, metric sensor.Metric, reading sensor.Reading) error {
	m.mu.Lock()
	active, ok := m.runs[runID]
	m.mu.Unlock()
	if !ok {
		return ErrUnknownRun
	}
	src, ok := active.sources[kind]
	if !ok {
		return ErrUnknownRun
	}
	src.Push(metric, reading)
	return nil
}

// PushCalories records a device-reported calorie figure for the run.
func (m *Manager) PushCalories(runID string, kind sensor.SourceKind, kcal float64) error {
	m.mu.Lock()
	active, ok := m.runs[runID]
	m.mu.Unlock()
	if !ok {
		return ErrUnknownRun
	}
	src, ok := active.sources[kind]
	if !ok {
		return ErrUnknownRun
	}
	src.SetCalories(kcal)
	return nil
}

// PushSteps forwards a pedometer update.
func (m *Manager) PushSteps(runID string, totalSteps, cadenceSpm int) error {
	m.mu.Lock()
	active, ok := m.runs[runID]
	m.mu.Unlock()
	if !ok {
		return ErrUnknownRun
	}
	active.steps.Push(totalSteps, cadenceSpm)
	return nil
}

// StoreSample buffers a background-mode fix in the durable side store. The
// run's poller drains it on the next tick.
func (m *Manager) StoreSample(ctx context.Context, runID string, sample gps.Sample) error {
	m.mu.Lock()
	_, ok := m.runs[runID]
	m.mu.Unlock()
	if !ok {
		return ErrUnknownRun
	}
	if m.store == nil {
		return errors.New("side store unavailable")
	}
	return m.store.Write(ctx, runID, sample)
}

// Reset discards the run and frees its slot.
func (m *Manager) Reset(runID string) error {
	m.mu.Lock()
	active, ok := m.runs[runID]
	delete(m.runs, runID)
	m.mu.Unlock()
	if !ok {
		return ErrUnknownRun
	}
	active.lifecycle.Reset()
	return nil
}

// PushStepCounter adapts HTTP-delivered pedometer updates to the StepCounter
// interface.
type PushStepCounter struct {
	mu      sync.Mutex
	deliver func(totalSteps, cadenceSpm int)
}

func (p *PushStepCounter) Start(deliver func(totalSteps, cadenceSpm int)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliver = deliver
	return nil
}

func (p *PushStepCounter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deliver = nil
}

func (p *PushStepCounter) Push(totalSteps, cadenceSpm int) {
	p.mu.Lock()
	deliver := p.deliver
	p.mu.Unlock()
	if deliver != nil {
		deliver(totalSteps, cadenceSpm)
	}
}
