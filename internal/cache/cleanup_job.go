package cache

import (
	"github.com/rs/zerolog"
)

// CleanupJob removes expired entries from both cache domains. SQLite has no
// TTL index, so this scheduled sweep is the primary eviction mechanism;
// readers already treat expired rows as absent, so the sweep only reclaims
// space.
type CleanupJob struct {
	repo *Repository
	log  zerolog.Logger
}

// NewCleanupJob creates a new cache cleanup job.
func NewCleanupJob(repo *Repository, log zerolog.Logger) *CleanupJob {
	return &CleanupJob{
		repo: repo,
		log:  log.With().Str("job", "cache_cleanup").Logger(),
	}
}

// Run executes the cleanup job.
func (j *CleanupJob) Run() error {
	stockDeleted, regimeDeleted, err := j.repo.DeleteExpired()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to delete expired cache entries")
		return err
	}

	if stockDeleted > 0 || regimeDeleted > 0 {
		j.log.Info().
			Int64("stock_deleted", stockDeleted).
			Int64("regime_deleted", regimeDeleted).
			Msg("Cleaned up expired cache entries")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *CleanupJob) Name() string {
	return "cache_cleanup"
}
