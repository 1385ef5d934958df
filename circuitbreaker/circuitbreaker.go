package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"lyrics-sync-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // requests flow normally
	StateOpen                  // requests are rejected until the cooldown passes
	StateHalfOpen              // a single probe request is in flight
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen is returned by Execute when the call was not attempted
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config holds circuit breaker configuration
type Config struct {
	Name            string
	Threshold       int           // consecutive failures before opening
	Cooldown        time.Duration // time spent open before a probe is let through
	HalfOpenTimeout time.Duration // how long a probe may take before the circuit re-opens

	// OnStateChange, when set, is called after every transition with the lock released
	OnStateChange func(name string, from, to State)

	// Clock overrides time.Now, for tests
	Clock func() time.Time
}

// CircuitBreaker guards calls to an upstream that may be failing
type CircuitBreaker struct {
	mu sync.RWMutex

	name            string
	threshold       int
	cooldown        time.Duration
	halfOpenTimeout time.Duration
	onStateChange   func(name string, from, to State)
	now             func() time.Time

	state         State
	failures      int
	openedAt      time.Time
	halfOpenStart time.Time
}

// Snapshot is a point-in-time view used by the ops endpoints
type Snapshot struct {
	Name           string    `json:"name"`
	State          string    `json:"state"`
	Failures       int       `json:"failures"`
	Threshold      int       `json:"threshold"`
	OpenedAt       time.Time `json:"openedAt"`
	RetryInSeconds float64   `json:"retryInSeconds"`
}

// New creates a circuit breaker in the closed state
func New(cfg Config) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.HalfOpenTimeout <= 0 {
		cfg.HalfOpenTimeout = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &CircuitBreaker{
		name:            cfg.Name,
		threshold:       cfg.Threshold,
		cooldown:        cfg.Cooldown,
		halfOpenTimeout: cfg.HalfOpenTimeout,
		onStateChange:   cfg.OnStateChange,
		now:             cfg.Clock,
		state:           StateClosed,
	}
}

// Name returns the breaker name
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// Allow reports whether a request may proceed.
// After the cooldown exactly one caller is let through as a probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	allowed, from, to := cb.allowLocked()
	cb.mu.Unlock()

	cb.notify(from, to)
	return allowed
}

func (cb *CircuitBreaker) allowLocked() (bool, State, State) {
	now := cb.now()

	switch cb.state {
	case StateOpen:
		if now.Sub(cb.openedAt) < cb.cooldown {
			return false, cb.state, cb.state
		}
		cb.halfOpenStart = now
		log.Infof("%s Cooldown passed, transitioning to HALF-OPEN", logcolors.CircuitBreakerPrefix(cb.name))
		return true, cb.setState(StateHalfOpen), StateHalfOpen

	case StateHalfOpen:
		if now.Sub(cb.halfOpenStart) >= cb.halfOpenTimeout {
			cb.openedAt = now
			log.Warnf("%s Probe timed out, transitioning back to OPEN", logcolors.CircuitBreakerPrefix(cb.name))
			return false, cb.setState(StateOpen), StateOpen
		}
		return false, cb.state, cb.state

	default:
		return true, cb.state, cb.state
	}
}

// RecordSuccess records a successful request
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	from := cb.state
	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.setState(StateClosed)
		log.Infof("%s Probe succeeded, transitioning to CLOSED", logcolors.CircuitBreakerPrefix(cb.name))
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// RecordFailure records a failed request
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	from := cb.state
	now := cb.now()
	cb.failures++

	switch {
	case cb.state == StateHalfOpen:
		cb.openedAt = now
		cb.setState(StateOpen)
		log.Warnf("%s Probe failed, transitioning back to OPEN", logcolors.CircuitBreakerPrefix(cb.name))
	case cb.state == StateClosed && cb.failures >= cb.threshold:
		cb.openedAt = now
		cb.setState(StateOpen)
		log.Warnf("%s Threshold reached (%d failures), transitioning to OPEN (cooldown: %v)",
			logcolors.CircuitBreakerPrefix(cb.name), cb.failures, cb.cooldown)
	case cb.state == StateOpen:
		cb.openedAt = now
	}
	to := cb.state
	cb.mu.Unlock()

	cb.notify(from, to)
}

// Execute runs fn if the circuit allows it and records the outcome.
// Errors for which countsAsFailure returns false (e.g. "not found") are
// passed through without tripping the breaker.
func (cb *CircuitBreaker) Execute(fn func() error, countsAsFailure func(error) bool) error {
	if !cb.Allow() {
		return ErrCircuitOpen
	}

	err := fn()
	if err != nil && (countsAsFailure == nil || countsAsFailure(err)) {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return err
}

// Reset forces the circuit closed
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.setState(StateClosed)
	cb.failures = 0
	cb.openedAt = time.Time{}
	cb.halfOpenStart = time.Time{}
	cb.mu.Unlock()

	log.Infof("%s Manually reset to CLOSED", logcolors.CircuitBreakerPrefix(cb.name))
	cb.notify(from, StateClosed)
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Failures returns the consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// IsOpen reports whether requests are currently being rejected outright
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// TimeUntilRetry returns the remaining cooldown (open) or probe timeout (half-open)
func (cb *CircuitBreaker) TimeUntilRetry() time.Duration {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.timeUntilRetryLocked()
}

func (cb *CircuitBreaker) timeUntilRetryLocked() time.Duration {
	var remaining time.Duration
	switch cb.state {
	case StateOpen:
		remaining = cb.cooldown - cb.now().Sub(cb.openedAt)
	case StateHalfOpen:
		remaining = cb.halfOpenTimeout - cb.now().Sub(cb.halfOpenStart)
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Snapshot returns the breaker state for reporting
func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return Snapshot{
		Name:           cb.name,
		State:          cb.state.String(),
		Failures:       cb.failures,
		Threshold:      cb.threshold,
		OpenedAt:       cb.openedAt,
		RetryInSeconds: cb.timeUntilRetryLocked().Seconds(),
	}
}

// setState must be called with the lock held; it returns the previous state
func (cb *CircuitBreaker) setState(to State) State {
	from := cb.state
	cb.state = to
	return from
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}
