// Package breaker guards calls to the remote complaint store.
//
// A Breaker starts Closed. Failures open it; while Open no calls are admitted.
// With a zero Cooldown an Open breaker stays open until Reset. With a positive
// Cooldown, the first Allow after the cooldown moves it to HalfOpen and admits
// a single probe whose outcome closes or re-opens the breaker.
package breaker

import (
	"log/slog"
	"sync"
	"time"
)

type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds the breaker tunables
type Config struct {
	MaxFailures int           `yaml:"max_failures"` // consecutive failures before opening
	Cooldown    time.Duration `yaml:"cooldown"`     // 0 keeps the breaker open until Reset
}

type Breaker struct {
	name   string
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       State
	recentFails int
	openedAt    time.Time
	lastErr     error
	onChange    func(from, to State)
}

// New creates a closed breaker
func New(name string, cfg Config, logger *slog.Logger) *Breaker {
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		logger: logger.With("breaker", name),
		now:    time.Now,
		state:  Closed,
	}
	b.logger.Debug("breaker_created", "max_failures", cfg.MaxFailures, "cooldown", cfg.Cooldown.String())
	return b
}

// WithClock overrides the time source; used by tests
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
	return b
}

// OnStateChange registers a hook invoked after every transition.
// The hook runs without the breaker lock held.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Allow reports whether a call may be issued now
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	switch b.state {
	case Closed:
		b.mu.Unlock()
		return true
	case Open:
		if b.cfg.Cooldown <= 0 || b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			b.mu.Unlock()
			return false
		}
		fails := b.recentFails
		hook := b.transition(HalfOpen)
		b.mu.Unlock()
		b.logger.Info("breaker_probe_start", "previous_failures", fails)
		hook()
		return true
	default:
		// a probe is already in flight
		b.mu.Unlock()
		return false
	}
}

// Success records a successful call
func (b *Breaker) Success() {
	b.mu.Lock()
	b.recentFails = 0
	b.lastErr = nil
	if b.state == Closed {
		b.mu.Unlock()
		return
	}
	hook := b.transition(Closed)
	b.mu.Unlock()
	b.logger.Info("breaker_closed")
	hook()
}

// Failure records a failed call and opens the breaker when the threshold is hit
func (b *Breaker) Failure(err error) {
	b.mu.Lock()
	b.recentFails++
	b.lastErr = err
	fails := b.recentFails
	if b.state == Open || (b.state == Closed && fails < b.cfg.MaxFailures) {
		b.mu.Unlock()
		b.logger.Warn("operation_failure", "failures", fails, "error", errString(err))
		return
	}
	b.openedAt = b.now()
	hook := b.transition(Open)
	b.mu.Unlock()
	b.logger.Error("breaker_opened", "failures", fails, "error", errString(err))
	hook()
}

// Reset closes the breaker and forgets past failures
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.recentFails = 0
	b.lastErr = nil
	if b.state == Closed {
		b.mu.Unlock()
		return
	}
	hook := b.transition(Closed)
	b.mu.Unlock()
	b.logger.Info("breaker_reset")
	hook()
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// LastError returns the error that caused the most recent failure
func (b *Breaker) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// transition must be called with b.mu held; the returned func fires the hook
func (b *Breaker) transition(to State) func() {
	from := b.state
	b.state = to
	fn := b.onChange
	return func() {
		if fn != nil && from != to {
			fn(from, to)
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
