package analytics

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JastejS28/AlphaSharp/internal/events"
)

// HealthTracker remembers how the analytics upstream has been behaving.
// Free-tier hosting spins the upstream down when idle, so a failing or slow
// first request usually means a cold start rather than an outage. isWarm
// latches true on the first success and never goes back: later failures
// raise consecutiveFailures but do not re-enter the cold state.
type HealthTracker struct {
	mu                  sync.Mutex
	isWarm              bool
	consecutiveFailures int
	lastCheck           time.Time
	lastError           string

	bus *events.Bus
	log zerolog.Logger
}

// HealthStatus is a point-in-time snapshot of the tracker.
type HealthStatus struct {
	IsWarm              bool          `json:"is_warm"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastCheck           time.Time     `json:"last_check"`
	TimeSinceLastCheck  time.Duration `json:"time_since_last_check"`
	LastError           string        `json:"last_error,omitempty"`
}

func NewHealthTracker(bus *events.Bus, log zerolog.Logger) *HealthTracker {
	return &HealthTracker{
		bus: bus,
		log: log.With().Str("component", "health_tracker").Logger(),
	}
}

// RecordOutcome folds one upstream request result into the tracker state.
func (t *HealthTracker) RecordOutcome(success bool, err error) {
	t.mu.Lock()
	t.lastCheck = time.Now()

	if success {
		wasCold := !t.isWarm
		t.isWarm = true
		t.consecutiveFailures = 0
		t.lastError = ""
		t.mu.Unlock()

		if wasCold {
			t.log.Info().Msg("Analytics upstream is warm")
			if t.bus != nil {
				t.bus.Emit(events.UpstreamStatusChanged, map[string]interface{}{
					"is_warm": true,
				})
			}
		}
		return
	}

	t.consecutiveFailures++
	if err != nil {
		t.lastError = err.Error()
	}
	failures := t.consecutiveFailures
	warm := t.isWarm
	t.mu.Unlock()

	t.log.Warn().
		Err(err).
		Int("consecutive_failures", failures).
		Bool("is_warm", warm).
		Msg("Analytics upstream request failed")
}

// Status returns the current snapshot. TimeSinceLastCheck is zero when no
// request has been recorded yet.
func (t *HealthTracker) Status() HealthStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := HealthStatus{
		IsWarm:              t.isWarm,
		ConsecutiveFailures: t.consecutiveFailures,
		LastCheck:           t.lastCheck,
		LastError:           t.lastError,
	}
	if !t.lastCheck.IsZero() {
		status.TimeSinceLastCheck = time.Since(t.lastCheck)
	}
	return status
}

// IsWarm reports whether the upstream has answered at least one request.
func (t *HealthTracker) IsWarm() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.isWarm
}
