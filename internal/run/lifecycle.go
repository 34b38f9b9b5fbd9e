package run

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"backend-runpulse/internal/gps"
	"backend-runpulse/internal/segment"
	"backend-runpulse/internal/sensor"
	"backend-runpulse/internal/stats"

	"github.com/google/uuid"
)

// RecordService registers runs and accepts final records. The server record
// carries reward data computed upstream, never locally.
type RecordService interface {
	StartRun(ctx context.Context, userID string) (string, error)
	EndRun(ctx context.Context, rec FinalRecord) (ServerRecord, error)
	UploadSegments(ctx context.Context, runID string, segs []segment.Segment) error
}

// RetryQueue receives failed submissions for later retry.
type RetryQueue interface {
	Enqueue(ctx context.Context, kind string, payload any) error
}

// Broadcaster pushes live stat updates to stream subscribers.
type Broadcaster interface {
	Broadcast(runID string, payload []byte)
}

// StepCounter is the device pedometer: best-effort, non-fatal when absent.
type StepCounter interface {
	Start(deliver func(totalSteps, cadenceSpm int)) error
	Stop()
}

// SamplePoller drives background-mode ingestion off the durable side store.
type SamplePoller interface {
	Start()
	Stop()
}

// Config bundles the engine thresholds.
type Config struct {
	Filter             gps.FilterConfig
	SegmentThresholdM  float64
	MinSubmitDistanceM float64
	PollInterval       time.Duration
}

func DefaultConfig() Config {
	return Config{
		Filter:             gps.DefaultFilterConfig(),
		SegmentThresholdM:  segment.DefaultThresholdM,
		MinSubmitDistanceM: 10,
		PollInterval:       time.Second,
	}
}

// Deps are the external collaborators a lifecycle talks to. Everything is an
// interface so tests can substitute fakes without global state.
type Deps struct {
	Records  RecordService
	Queue    RetryQueue
	Resolver *sensor.Resolver
	Steps    StepCounter
	Hub      Broadcaster
	// PollerFactory builds the side-store poller once the run ID is known.
	// Only consulted in background mode.
	PollerFactory func(runID string) SamplePoller
	Profile       stats.Profile
}

// StartOptions are the caller-supplied conditions at run start.
type StartOptions struct {
	HasLocationPermission bool `json:"has_location_permission"`
	// Background selects 1 Hz side-store polling instead of direct push.
	Background bool `json:"background"`
}

// Lifecycle is the state machine for one run instance. All mutable state is
// owned here and updated only through its methods; samples are processed one
// at a time under the mutex.
type Lifecycle struct {
	mu   sync.Mutex
	cfg  Config
	deps Deps

	state  State
	runID  string
	userID string
	local  bool

	startedAt   time.Time
	pausedAt    time.Time
	pausedTotal time.Duration

	background bool
	foreground bool
	poller     SamplePoller

	prev      *gps.Sample
	distanceM float64

	agg  *segment.Aggregator
	calc *stats.Calculator

	heartRate   *int
	cadence     *int
	stepCadence *int
	lastStats   stats.RunningStats

	now func() time.Time
}

func NewLifecycle(cfg Config, deps Deps) *Lifecycle {
	if cfg.Filter == (gps.FilterConfig{}) {
		cfg.Filter = gps.DefaultFilterConfig()
	}
	if cfg.SegmentThresholdM <= 0 {
		cfg.SegmentThresholdM = segment.DefaultThresholdM
	}
	if cfg.MinSubmitDistanceM <= 0 {
		cfg.MinSubmitDistanceM = 10
	}
	return &Lifecycle{cfg: cfg, deps: deps, state: StateIdle, now: time.Now}
}

// Start transitions Idle → Running. Missing location permission is fatal;
// registration failure is not: the run continues locally with a placeholder
// identifier.
func (l *Lifecycle) Start(ctx context.Context, userID string, opts StartOptions) (string, error) {
	if !opts.HasLocationPermission {
		return "", ErrNoLocationPermission
	}

	l.mu.Lock()
	if l.state != StateIdle {
		l.mu.Unlock()
		return "", ErrAlreadyRunning
	}

	runID, err := l.deps.Records.StartRun(ctx, userID)
	if err != nil {
		runID = "local-" + uuid.NewString()
		l.local = true
		log.Printf("run registration failed, continuing with %s: %v", runID, err)
	}

	l.state = StateRunning
	l.runID = runID
	l.userID = userID
	l.startedAt = l.now()
	l.pausedTotal = 0
	l.distanceM = 0
	l.prev = nil
	l.agg = segment.NewAggregator()
	l.agg.Initialize()
	l.calc = stats.NewCalculator(l.deps.Profile)
	l.lastStats = stats.RunningStats{}
	l.heartRate = nil
	l.cadence = nil
	l.stepCadence = nil

	l.background = opts.Background
	l.foreground = true
	if opts.Background && l.deps.PollerFactory != nil {
		l.poller = l.deps.PollerFactory(runID)
		l.poller.Start()
	}

	l.mu.Unlock()

	// Sensor attachment happens outside the lock: an exhausted resolver
	// reports none synchronously through callbacks that take it again.
	if l.deps.Steps != nil {
		if err := l.deps.Steps.Start(l.pushSteps); err != nil {
			log.Printf("step counter unavailable: %v", err)
		}
	}
	if l.deps.Resolver != nil {
		l.deps.Resolver.StartMonitoring(sensor.MetricHeartRate, l.onHeartRate)
		l.deps.Resolver.StartMonitoring(sensor.MetricCadence, l.onCadence)
	}

	return runID, nil
}

// Ingest processes one raw fix: filter, accumulate, recompute stats,
// broadcast. Samples are serialized; each is fully processed before the next.
func (l *Lifecycle) Ingest(sample gps.Sample) (gps.Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateRunning {
		return gps.Result{}, ErrNotRunning
	}

	res := gps.Evaluate(l.prev, sample, l.cfg.Filter)
	if gps.AdvancesBaseline(res) {
		s := sample
		l.prev = &s
	}

	if res.ForDistance {
		l.distanceM += res.DistanceM
		loc := segment.Location{Lat: sample.Lat, Lon: sample.Lon, TimestampMs: sample.TimestampMs}
		l.agg.ProcessDelta(res.DistanceM, []segment.Location{loc}, l.cfg.SegmentThresholdM, l.snapshotLocked())
	}

	if res.ForPace {
		now := l.now()
		l.lastStats = l.calc.Update(now, l.distanceM, l.activeElapsedLocked(now), l.heartRate, l.effectiveCadenceLocked())
		l.overlayDeviceCaloriesLocked(now)
		l.broadcastLocked()
	}

	return res, nil
}

// Pause freezes ingestion and step counting without resetting stats.
func (l *Lifecycle) Pause() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateRunning {
		return ErrNotRunning
	}
	l.state = StatePaused
	l.pausedAt = l.now()
	if l.poller != nil {
		l.poller.Stop()
	}
	if l.deps.Steps != nil {
		l.deps.Steps.Stop()
	}
	return nil
}

// Resume accumulates the paused span and restarts ingestion.
func (l *Lifecycle) Resume() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StatePaused {
		return ErrNotRunning
	}
	l.pausedTotal += l.now().Sub(l.pausedAt)
	l.state = StateRunning
	if l.poller != nil && l.foreground {
		l.poller.Start()
	}
	if l.deps.Steps != nil {
		if err := l.deps.Steps.Start(l.pushSteps); err != nil {
			log.Printf("step counter unavailable: %v", err)
		}
	}
	return nil
}

// SetForeground mirrors the host app's foreground state. Background-mode
// polling only runs while the app is foregrounded; the side store keeps
// recording regardless.
func (l *Lifecycle) SetForeground(fg bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.foreground = fg
	if l.poller == nil || l.state != StateRunning {
		return
	}
	if fg {
		l.poller.Start()
	} else {
		l.poller.Stop()
	}
}

// End finalizes the run and transitions to Finished. Runs shorter than the
// minimum distance skip submission entirely; otherwise the final record and
// segments are submitted asynchronously, with failures routed to the retry
// queue. The transition never waits on submission.
func (l *Lifecycle) End(ctx context.Context) (FinalRecord, error) {
	l.mu.Lock()
	if l.state != StateRunning && l.state != StatePaused {
		l.mu.Unlock()
		if l.state == StateFinished {
			return FinalRecord{}, ErrFinished
		}
		return FinalRecord{}, ErrNotRunning
	}

	now := l.now()
	if l.state == StatePaused {
		l.pausedTotal += now.Sub(l.pausedAt)
	}
	l.state = StateFinished

	if l.poller != nil {
		l.poller.Stop()
	}
	if l.deps.Steps != nil {
		l.deps.Steps.Stop()
	}
	if l.deps.Resolver != nil {
		l.deps.Resolver.StopMonitoring(sensor.MetricHeartRate)
		l.deps.Resolver.StopMonitoring(sensor.MetricCadence)
	}

	l.agg.Finalize(l.snapshotLocked())

	rec := FinalRecord{
		RunID:      l.runID,
		UserID:     l.userID,
		DistanceM:  l.distanceM,
		DurationS:  l.activeElapsedLocked(now).Seconds(),
		PausedS:    l.pausedTotal.Seconds(),
		StartedAt:  l.startedAt,
		EndedAt:    now,
		Stats:      l.lastStats,
		Segments:   l.agg.Segments(),
		LocalRunID: l.local,
	}

	submit := rec.DistanceM >= l.cfg.MinSubmitDistanceM
	rec.Submitted = submit
	l.mu.Unlock()

	if submit {
		go l.submitRecord(rec)
		go l.submitSegments(rec)
	}
	return rec, nil
}

// Reset discards all run state and returns to Idle.
func (l *Lifecycle) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.poller != nil {
		l.poller.Stop()
		l.poller = nil
	}
	if l.deps.Steps != nil {
		l.deps.Steps.Stop()
	}
	if l.deps.Resolver != nil && (l.state == StateRunning || l.state == StatePaused) {
		l.deps.Resolver.StopMonitoring(sensor.MetricHeartRate)
		l.deps.Resolver.StopMonitoring(sensor.MetricCadence)
	}

	l.state = StateIdle
	l.runID = ""
	l.userID = ""
	l.local = false
	l.prev = nil
	l.distanceM = 0
	l.pausedTotal = 0
	l.agg = nil
	l.calc = nil
	l.lastStats = stats.RunningStats{}
	l.heartRate = nil
	l.cadence = nil
	l.stepCadence = nil
}

func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lifecycle) RunID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runID
}

func (l *Lifecycle) DistanceM() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.distanceM
}

func (l *Lifecycle) Elapsed() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeElapsedLocked(l.now())
}

func (l *Lifecycle) Stats() stats.RunningStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastStats
}

func (l *Lifecycle) Segments() []segment.Segment {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.agg == nil {
		return nil
	}
	return l.agg.Segments()
}

func (l *Lifecycle) submitRecord(rec FinalRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := l.deps.Records.EndRun(ctx, rec); err != nil {
		log.Printf("run %s completion failed, queueing: %v", rec.RunID, err)
		if qErr := l.deps.Queue.Enqueue(ctx, "record", rec); qErr != nil {
			log.Printf("offline enqueue failed for run %s: %v", rec.RunID, qErr)
		}
	}
}

func (l *Lifecycle) submitSegments(rec FinalRecord) {
	if len(rec.Segments) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := l.deps.Records.UploadSegments(ctx, rec.RunID, rec.Segments); err != nil {
		log.Printf("segment upload failed for run %s, queueing: %v", rec.RunID, err)
		payload := SegmentUpload{RunID: rec.RunID, Segments: rec.Segments}
		if qErr := l.deps.Queue.Enqueue(ctx, "segments", payload); qErr != nil {
			log.Printf("offline enqueue failed for run %s segments: %v", rec.RunID, qErr)
		}
	}
}

func (l *Lifecycle) onHeartRate(res sensor.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if res.Source == sensor.SourceNone {
		l.heartRate = nil
		return
	}
	v := res.Value
	l.heartRate = &v
}

func (l *Lifecycle) onCadence(res sensor.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if res.Source == sensor.SourceNone {
		l.cadence = nil
		return
	}
	v := res.Value
	l.cadence = &v
}

func (l *Lifecycle) pushSteps(totalSteps, cadenceSpm int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	v := cadenceSpm
	l.stepCadence = &v
}

// effectiveCadenceLocked prefers the resolver's cadence source, then the
// pedometer-derived steps-per-minute.
func (l *Lifecycle) effectiveCadenceLocked() *int {
	if l.cadence != nil {
		return l.cadence
	}
	return l.stepCadence
}

func (l *Lifecycle) activeElapsedLocked(now time.Time) time.Duration {
	if l.startedAt.IsZero() {
		return 0
	}
	end := now
	if l.state == StatePaused {
		end = l.pausedAt
	}
	return end.Sub(l.startedAt) - l.pausedTotal
}

func (l *Lifecycle) snapshotLocked() segment.Snapshot {
	var total float64
	if l.lastStats.Calories != nil {
		total = *l.lastStats.Calories
	}
	return segment.Snapshot{
		HeartRateBpm:  l.heartRate,
		CadenceSpm:    l.effectiveCadenceLocked(),
		TotalCalories: total,
	}
}

// overlayDeviceCaloriesLocked applies the device calorie priority: a
// wearable- or phone-reported figure outranks the locally computed one.
func (l *Lifecycle) overlayDeviceCaloriesLocked(now time.Time) {
	if l.deps.Resolver == nil {
		return
	}
	kcal, _, ok := l.deps.Resolver.Calories(l.distanceM, l.activeElapsedLocked(now), l.deps.Profile.WeightKg, l.heartRate)
	if ok {
		l.lastStats.Calories = &kcal
	}
}

func (l *Lifecycle) broadcastLocked() {
	if l.deps.Hub == nil {
		return
	}
	payload, err := json.Marshal(l.lastStats)
	if err != nil {
		return
	}
	l.deps.Hub.Broadcast(l.runID, payload)
}
