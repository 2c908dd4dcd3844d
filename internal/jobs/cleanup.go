package jobs

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"pagetrail/internal/config"
	"pagetrail/internal/database"
	"pagetrail/internal/tracking"
)

// CleanupJob handles deletion of tracking data past the retention period
type CleanupJob struct {
	dbManager *database.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewCleanupJob(dbManager *database.DBManager, logger *slog.Logger, cfg *config.Config) *CleanupJob {
	return &CleanupJob{
		dbManager: dbManager,
		logger:    logger,
		cfg:       cfg,
	}
}

// Run removes sessions and page views older than the retention period.
// This helps with GDPR data minimization and reduces storage usage.
func (j *CleanupJob) Run() error {
	retentionDays := j.cfg.TrackingRetentionDays
	db := j.dbManager.GetConnection()
	cutoffDate := time.Now().UTC().AddDate(0, 0, -retentionDays)

	j.logger.Info("Starting cleanup of old tracking data",
		slog.Int("retention_days", retentionDays),
		slog.Time("cutoff_date", cutoffDate))

	deletedViews, err := j.deleteInBatches(db, "page views", func(batch *gorm.DB) *gorm.DB {
		return batch.Where("timestamp < ?", cutoffDate).Delete(&tracking.PageView{})
	})
	if err != nil {
		return err
	}

	deletedSessions, err := j.deleteInBatches(db, "sessions", func(batch *gorm.DB) *gorm.DB {
		return batch.Where("is_active = 0 AND start_time < ?", cutoffDate).Delete(&tracking.VisitorSession{})
	})
	if err != nil {
		return err
	}

	if deletedViews > 0 || deletedSessions > 0 {
		j.logger.Info("Cleaned up old tracking data",
			slog.Int64("deleted_page_views", deletedViews),
			slog.Int64("deleted_sessions", deletedSessions),
			slog.Int("retention_days", retentionDays))
	}

	return nil
}

// deleteInBatches deletes matching rows in chunks to avoid locking the
// database for too long.
func (j *CleanupJob) deleteInBatches(db *gorm.DB, what string, deleteBatch func(*gorm.DB) *gorm.DB) (int64, error) {
	const batchSize = 1000
	totalDeleted := int64(0)

	for {
		result := deleteBatch(db.Limit(batchSize))
		if result.Error != nil {
			j.logger.Error("Failed to delete old tracking data",
				slog.String("what", what),
				slog.Any("error", result.Error),
				slog.Int64("deleted_so_far", totalDeleted))
			return totalDeleted, result.Error
		}

		totalDeleted += result.RowsAffected

		if result.RowsAffected < int64(batchSize) {
			break
		}

		// Small delay between batches to prevent database lock contention
		time.Sleep(100 * time.Millisecond)
	}

	return totalDeleted, nil
}
