// Package breaker provides a per-service circuit-breaker registry that
// short-circuits calls to failing dependencies for a cool-down period.
package breaker

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultThreshold is the failure count at which a breaker opens.
	DefaultThreshold = 5
	// DefaultCooldown is how long an open breaker rejects calls before
	// admitting a half-open probe.
	DefaultCooldown = 300 * time.Second
)

// Service names with breakers in the hybrid pipeline.
const (
	ServiceRAGSearch = "rag_search"
	ServiceWebSearch = "web_search"
	ServiceLLM       = "llm"
)

// State is a snapshot of one service's breaker.
type State struct {
	Failures      int       `json:"failures"`
	LastFailureTS time.Time `json:"lastFailureTs"`
	Open          bool      `json:"open"`
}

type entry struct {
	failures    int
	lastFailure time.Time
	open        bool
}

// Registry tracks failure counts per service under a single lock. Critical
// sections are O(1) and hold no I/O.
type Registry struct {
	mu        sync.Mutex
	services  map[string]*entry
	threshold int
	cooldown  time.Duration
	nowFunc   func() time.Time
}

// New creates a Registry with the given threshold and cooldown. Zero values
// select the defaults.
func New(threshold int, cooldown time.Duration) *Registry {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Registry{
		services:  make(map[string]*entry),
		threshold: threshold,
		cooldown:  cooldown,
		nowFunc:   time.Now,
	}
}

func (r *Registry) get(service string) *entry {
	e, ok := r.services[service]
	if !ok {
		e = &entry{}
		r.services[service] = e
	}
	return e
}

// Allow reports whether a call to the service may proceed. When the
// cool-down has elapsed the failure count resets and one half-open probe is
// admitted.
func (r *Registry) Allow(service string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.get(service)
	if e.failures < r.threshold {
		return true
	}
	if r.nowFunc().Sub(e.lastFailure) < r.cooldown {
		e.open = true
		return false
	}

	// Cool-down elapsed: reset and admit a probe.
	e.failures = 0
	e.open = false
	slog.Info("circuit breaker half-open, admitting probe", "service", service)
	return true
}

// RecordFailure increments the service's failure count.
func (r *Registry) RecordFailure(service string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.get(service)
	e.failures++
	e.lastFailure = r.nowFunc()
	if e.failures >= r.threshold {
		e.open = true
		slog.Warn("circuit breaker open", "service", service, "failures", e.failures)
	}
}

// RecordSuccess decrements the service's failure count (floor 0) and closes
// the breaker once it reaches zero.
func (r *Registry) RecordSuccess(service string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.get(service)
	if e.failures > 0 {
		e.failures--
	}
	if e.failures == 0 {
		e.open = false
	}
}

// Decay lowers every service's failure count by one. Called opportunistically
// by the orchestrator so long-lived processes recover from old failure bursts.
func (r *Registry) Decay() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for service, e := range r.services {
		if e.failures > 0 {
			e.failures--
			slog.Debug("circuit breaker failure count decayed", "service", service, "failures", e.failures)
		}
		if e.failures == 0 {
			e.open = false
		}
	}
}

// Snapshot returns the current state of every tracked breaker, for logging.
func (r *Registry) Snapshot() map[string]State {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]State, len(r.services))
	for name, e := range r.services {
		out[name] = State{Failures: e.failures, LastFailureTS: e.lastFailure, Open: e.open}
	}
	return out
}
