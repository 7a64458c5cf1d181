package job

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"office-service/internal/repository"
)

// PresenceCleanupJob prunes stale offline rows from the presence mirror so
// the roster's last-seen data does not grow without bound.
type PresenceCleanupJob struct {
	repo      *repository.PresenceRepository
	retention time.Duration
	logger    *zap.Logger
}

func NewPresenceCleanupJob(repo *repository.PresenceRepository, retention time.Duration, logger *zap.Logger) *PresenceCleanupJob {
	return &PresenceCleanupJob{
		repo:      repo,
		retention: retention,
		logger:    logger,
	}
}

// Run executes one cleanup pass.
func (j *PresenceCleanupJob) Run() {
	deleted, err := j.repo.DeleteStaleOffline(j.retention)
	if err != nil {
		j.logger.Error("Failed to clean up stale presence rows", zap.Error(err))
		return
	}
	if deleted > 0 {
		j.logger.Info("Cleaned up stale presence rows", zap.Int64("deleted", deleted))
	}
}

// Schedule registers the job on the given cron runner.
func (j *PresenceCleanupJob) Schedule(c *cron.Cron, spec string) error {
	_, err := c.AddJob(spec, j)
	return err
}
