package scheduler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/JastejS28/AlphaSharp/internal/config"
)

// Pinger is the upstream surface the keep-alive job needs.
type Pinger interface {
	HealthCheck(ctx context.Context) (json.RawMessage, error)
}

// KeepAliveJob pings the analytics upstream on a schedule so free-tier
// hosting does not spin it down mid-session. Pings only run during US
// market hours; outside the window the job is a no-op.
type KeepAliveJob struct {
	pinger Pinger
	cfg    config.KeepAliveConfig
	loc    *time.Location
	log    zerolog.Logger
}

func NewKeepAliveJob(pinger Pinger, cfg config.KeepAliveConfig, log zerolog.Logger) *KeepAliveJob {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", cfg.Timezone).Msg("Unknown timezone, falling back to UTC")
		loc = time.UTC
	}

	return &KeepAliveJob{
		pinger: pinger,
		cfg:    cfg,
		loc:    loc,
		log:    log.With().Str("job", "keep_alive").Logger(),
	}
}

func (j *KeepAliveJob) Name() string { return "keep_alive" }

// InWindow reports whether t falls inside the configured market-hours
// window: weekdays, StartHour inclusive to EndHour exclusive, in the
// configured timezone.
func (j *KeepAliveJob) InWindow(t time.Time) bool {
	local := t.In(j.loc)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	hour := local.Hour()
	return hour >= j.cfg.StartHour && hour < j.cfg.EndHour
}

// Run executes one scheduled ping. Ping failures are logged and swallowed:
// a failed keep-alive must never surface as a job error, the next tick
// simply tries again.
func (j *KeepAliveJob) Run() error {
	if !j.cfg.Enabled {
		return nil
	}

	if !j.InWindow(time.Now()) {
		j.log.Debug().Msg("Outside market hours, skipping keep-alive ping")
		return nil
	}

	j.ping()
	return nil
}

// Trigger pings immediately, ignoring the market-hours window. Used by the
// manual trigger endpoint.
func (j *KeepAliveJob) Trigger() error {
	j.log.Info().Msg("Manual keep-alive trigger")
	return j.ping()
}

func (j *KeepAliveJob) ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if _, err := j.pinger.HealthCheck(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Keep-alive ping failed")
		return err
	}

	j.log.Info().Msg("Keep-alive ping successful")
	return nil
}

// StartInitialPing fires one ping shortly after startup, without waiting
// for the first scheduled tick.
func (j *KeepAliveJob) StartInitialPing(delay time.Duration) {
	if !j.cfg.Enabled {
		return
	}

	go func() {
		time.Sleep(delay)
		j.log.Info().Msg("Initial keep-alive ping")
		if j.InWindow(time.Now()) {
			j.ping()
		}
	}()
}
