package infrastructure

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Purger deletes inbox entries older than a retention window
type Purger interface {
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)
}

// InboxPurgeJob periodically trims the inbox so it does not grow forever
type InboxPurgeJob struct {
	purger    Purger
	schedule  string
	retention time.Duration
	cron      *cron.Cron
	logger    zerolog.Logger
}

// NewInboxPurgeJob creates a purge job running on a cron schedule with seconds
func NewInboxPurgeJob(purger Purger, schedule string, retention time.Duration, logger zerolog.Logger) *InboxPurgeJob {
	return &InboxPurgeJob{
		purger:    purger,
		schedule:  schedule,
		retention: retention,
		cron:      cron.New(cron.WithSeconds()),
		logger:    logger.With().Str("component", "inbox_purge_job").Logger(),
	}
}

// Start registers the purge and starts the scheduler
func (j *InboxPurgeJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		return err
	}

	j.cron.Start()
	j.logger.Info().Str("schedule", j.schedule).Dur("retention", j.retention).Msg("inbox purge job started")
	return nil
}

func (j *InboxPurgeJob) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := j.purger.Purge(ctx, j.retention)
	if err != nil {
		j.logger.Error().Err(err).Msg("inbox purge failed")
		return
	}
	j.logger.Debug().Int64("deleted", deleted).Msg("inbox purged")
}

// Stop stops the scheduler and waits for a running purge
func (j *InboxPurgeJob) Stop() {
	<-j.cron.Stop().Done()
	j.logger.Info().Msg("inbox purge job stopped")
}
