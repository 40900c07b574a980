package infra

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute while the breaker is tripped.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerConfig tunes the SMTP alert breaker. Zero values fall back
// to the defaults from DefaultCBConfig.
type CircuitBreakerConfig struct {
	// FailureThreshold is how many consecutive send failures trip the breaker.
	FailureThreshold int
	// SuccessThreshold is how many consecutive probe successes re-close it.
	SuccessThreshold int
	// OpenTimeout is how long the breaker fast-fails before allowing a probe.
	OpenTimeout time.Duration
}

func DefaultCBConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      time.Minute,
	}
}

// CircuitBreaker guards the alert mailer against a dead SMTP relay. While
// tripped, Execute fails immediately instead of burning a worker on a
// connection timeout; after OpenTimeout a single probe call is let through.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu        sync.Mutex
	failures  int
	successes int
	// openUntil is nonzero while the breaker is tripped. A call arriving
	// after this deadline runs as the probe.
	openUntil time.Time
	probing   bool
}

func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCBConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	return &CircuitBreaker{cfg: cfg}
}

// Execute runs fn unless the breaker is tripped, in which case it returns
// ErrCircuitOpen without calling fn. The job queue's retry handling treats
// that like any other failure, so alerts are not lost while the relay is down.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err)
	return err
}

// Tripped reports whether calls are currently being fast-failed.
func (cb *CircuitBreaker) Tripped() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return !cb.openUntil.IsZero() && time.Now().Before(cb.openUntil)
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.openUntil.IsZero() {
		return true
	}
	if time.Now().Before(cb.openUntil) {
		return false
	}
	// Deadline passed: this call becomes the probe.
	cb.probing = true
	cb.successes = 0
	return true
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		if cb.probing {
			// Probe failed, stay open for another window.
			cb.openUntil = time.Now().Add(cb.cfg.OpenTimeout)
			cb.probing = false
			return
		}
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.openUntil = time.Now().Add(cb.cfg.OpenTimeout)
			cb.failures = 0
		}
		return
	}

	if cb.probing {
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.openUntil = time.Time{}
			cb.probing = false
			cb.successes = 0
		}
		return
	}
	cb.failures = 0
}
