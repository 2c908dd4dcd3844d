package jobs

import (
	"time"

	"log/slog"

	"pagetrail/internal/config"
	"pagetrail/internal/database"
	"pagetrail/internal/tracking"
)

// ReaperJob closes sessions whose visitors went away without a
// session_end beacon.
type ReaperJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewReaperJob(dbManager *database.DBManager, logger *slog.Logger, cfg *config.Config) *ReaperJob {
	return &ReaperJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run closes every active session idle past the configured timeout.
func (j *ReaperJob) Run() error {
	timeout := time.Duration(j.cfg.SessionTimeoutSeconds) * time.Second

	closed, err := tracking.CloseIdleSessions(j.dbManager, j.logger, timeout)
	if err != nil {
		j.logger.Error("Failed to close idle sessions", slog.Any("error", err))
		return err
	}

	if closed > 0 {
		j.logger.Debug("Session reaper finished",
			slog.Int64("closed", closed),
			slog.Duration("timeout", timeout))
	}
	return nil
}
