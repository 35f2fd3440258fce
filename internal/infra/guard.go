package infra

import (
	"log/slog"
	"sync"
	"time"
)

// GuardState represents the upstream guard state.
type GuardState int

const (
	GuardClosed   GuardState = iota // upstream healthy, requests flow
	GuardOpen                       // upstream failing, fail fast
	GuardHalfOpen                   // probing recovery
)

func (s GuardState) String() string {
	switch s {
	case GuardClosed:
		return "CLOSED"
	case GuardOpen:
		return "OPEN"
	case GuardHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Guard fails fast against a dead upstream. Once a batch run has burned
// its retry budget several times in a row there is no point hammering the
// API for the remaining profiles; the guard opens and later lets a single
// probe through.
type Guard struct {
	name string
	mu   sync.RWMutex

	state        GuardState
	failureCount int
	lastFailure  time.Time

	failureThreshold int           // consecutive failures before opening
	probeAfter       time.Duration // open duration before a half-open probe
}

// NewGuard creates a guard that opens after failureThreshold consecutive
// failures and allows a probe after probeAfter.
func NewGuard(name string, failureThreshold int, probeAfter time.Duration) *Guard {
	return &Guard{
		name:             name,
		state:            GuardClosed,
		failureThreshold: failureThreshold,
		probeAfter:       probeAfter,
	}
}

// Allow reports whether a request should proceed.
func (g *Guard) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case GuardClosed:
		return true

	case GuardOpen:
		if time.Since(g.lastFailure) > g.probeAfter {
			g.state = GuardHalfOpen
			slog.Info("Upstream guard half-open, probing", slog.String("name", g.name))
			return true
		}
		return false

	case GuardHalfOpen:
		return true

	default:
		return false
	}
}

// RecordSuccess resets the failure streak; a successful half-open probe
// closes the guard.
func (g *Guard) RecordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == GuardHalfOpen {
		slog.Info("Upstream guard closed (recovered)", slog.String("name", g.name))
	}
	g.state = GuardClosed
	g.failureCount = 0
}

// RecordFailure counts a failed operation; the streak opens the guard,
// and a failed probe re-opens it immediately.
func (g *Guard) RecordFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lastFailure = time.Now()

	switch g.state {
	case GuardClosed:
		g.failureCount++
		if g.failureCount >= g.failureThreshold {
			g.state = GuardOpen
			slog.Warn("Upstream guard open",
				slog.String("name", g.name),
				slog.Int("failures", g.failureCount))
		}

	case GuardHalfOpen:
		g.state = GuardOpen
		slog.Warn("Upstream guard open (probe failed)", slog.String("name", g.name))
	}
}

// State returns the current state (for logging/tests).
func (g *Guard) State() GuardState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}
