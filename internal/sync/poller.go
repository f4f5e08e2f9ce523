package sync

import (
	"context"
	gosync "sync"
	"time"

	"go.uber.org/zap"
)

// State represents the current state of the background sync loop.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateError
)

// Status is a snapshot of the poller's condition.
type Status struct {
	State    State
	LastSync time.Time
	Err      error
}

// Event is emitted after each completed cycle.
type Event struct {
	When time.Time
	Err  error
}

// SyncFunc runs one sync cycle. The poller stays decoupled from the
// collection store by invoking the cycle through this hook.
type SyncFunc func(ctx context.Context) error

// Poller drives periodic sync cycles in the background and accepts
// manual triggers between ticks.
type Poller struct {
	run      SyncFunc
	interval time.Duration
	log      *zap.Logger

	events    chan Event
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu      gosync.Mutex
	status  Status
	started bool
}

// NewPoller creates a poller that invokes run every interval.
func NewPoller(run SyncFunc, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Poller{
		run:       run,
		interval:  interval,
		log:       log,
		events:    make(chan Event, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the polling goroutine. Calling Start twice is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	go p.loop()
}

// Stop halts the polling goroutine.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	close(p.stopCh)
	p.started = false
}

// TriggerNow requests an immediate cycle. Coalesced when one is already
// queued.
func (p *Poller) TriggerNow() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// Events returns the channel of completed-cycle events. Events are
// dropped rather than blocking the loop when no one is listening.
func (p *Poller) Events() <-chan Event {
	return p.events
}

// Status returns a snapshot of the poller's current condition.
func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial cycle right away so a fresh launch converges quickly.
	p.cycle()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.cycle()
		case <-p.triggerCh:
			p.cycle()
		}
	}
}

func (p *Poller) cycle() {
	p.setState(StateRunning, nil)

	err := p.run(context.Background())
	if err != nil {
		p.log.Warn("sync cycle finished with errors", zap.Error(err))
		p.setState(StateError, err)
	} else {
		p.setState(StateIdle, nil)
	}

	select {
	case p.events <- Event{When: time.Now(), Err: err}:
	default:
	}
}

func (p *Poller) setState(s State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.State = s
	p.status.Err = err
	if s == StateIdle && err == nil {
		p.status.LastSync = time.Now()
	}
}
