package sidestore

import (
	"context"
	"log"
	"sync"
	"time"

	"backend-runpulse/internal/gps"
)

// DefaultPollInterval is the fixed cadence of the background-mode drain.
const DefaultPollInterval = time.Second

// Poller drains the side store on a fixed timer while the host app is
// foregrounded. It is torn down entirely when the app backgrounds; the store
// itself keeps recording during that window.
type Poller struct {
	store    *Store
	runID    string
	interval time.Duration
	deliver  func(gps.Sample)

	mu   sync.Mutex
	stop chan struct{}
}

func NewPoller(store *Store, runID string, interval time.Duration, deliver func(gps.Sample)) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{store: store, runID: runID, interval: interval, deliver: deliver}
}

// Start launches the polling loop. A no-op when already running.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	go p.loop(p.stop)
}

// Stop tears the loop down. A no-op when not running.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return
	}
	close(p.stop)
	p.stop = nil
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

func (p *Poller) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.drainOnce()
		}
	}
}

func (p *Poller) drainOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	samples, err := p.store.Drain(ctx, p.runID)
	if err != nil {
		log.Printf("side store drain failed for run %s: %v", p.runID, err)
		return
	}
	for _, sample := range samples {
		p.deliver(sample)
	}
}
