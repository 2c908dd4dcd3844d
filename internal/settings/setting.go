// Package settings holds runtime configuration stored in the database,
// editable without a restart. Currently that is the excluded-IPs list
// honored by tracking ingestion.
package settings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge/cache"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// KeyExcludedIPs is the comma-separated list of client IPs whose traffic
// is acknowledged but never stored.
const KeyExcludedIPs = "excluded_ips"

// Setting represents a configuration item in the database
type Setting struct {
	ID        uint      `gorm:"primaryKey"`
	Key       string    `gorm:"uniqueIndex;not null"`
	Value     string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:milli"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:milli"`
}

var excludedIPsCache *cache.Cache[string, []string]

// SetupDefaultSettings initializes default settings in the database
func SetupDefaultSettings(dbConn *gorm.DB) error {
	defaults := []Setting{
		{Key: KeyExcludedIPs, Value: ""},
	}
	err := sqlite.PerformWrite(slog.Default(), dbConn, func(tx *gorm.DB) error {
		for _, setting := range defaults {
			err := tx.Exec(`
                INSERT INTO settings (key, value, created_at, updated_at)
                VALUES (?, ?, ?, ?)
                ON CONFLICT(key) DO NOTHING
            `, setting.Key, setting.Value, time.Now().UTC(), time.Now().UTC()).Error
			if err != nil {
				slog.Default().Error("Failed to upsert setting", slog.String("key", setting.Key), slog.Any("error", err))
				return fmt.Errorf("failed to upsert setting %s: %w", setting.Key, err)
			}
		}
		return nil
	})

	loadCache(dbConn, slog.Default())

	return err
}

// IsIPExcluded reports whether an IP is on the excluded list. The list is
// cached with a short TTL so ingestion does not hit the database on every
// beacon.
func IsIPExcluded(ip string) (bool, error) {
	if excludedIPsCache == nil {
		return false, nil
	}

	excludedIPs, err := excludedIPsCache.Get(KeyExcludedIPs)
	if err != nil {
		return false, fmt.Errorf("failed to check excluded IPs: %w", err)
	}

	for _, excludedIP := range excludedIPs {
		if excludedIP != "" && excludedIP == ip {
			return true, nil
		}
	}
	return false, nil
}

// GetSetting retrieves a setting value from the database
func GetSetting(dbConn *gorm.DB, key string) (string, error) {
	var setting Setting
	result := dbConn.Where("key = ?", key).First(&setting)

	if result.Error != nil {
		return "", result.Error
	}

	return setting.Value, nil
}

// UpdateSetting updates a setting in the database, creating it if it does
// not exist yet, and refreshes the cache.
func UpdateSetting(dbConn *gorm.DB, key string, value string) error {
	err := sqlite.PerformWrite(slog.Default(), dbConn, func(tx *gorm.DB) error {
		result := tx.Model(&Setting{}).Where("key = ?", key).Update("value", value)
		if result.Error != nil {
			return fmt.Errorf("failed to update setting: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			setting := Setting{Key: key, Value: value}
			if err := tx.Create(&setting).Error; err != nil {
				return fmt.Errorf("failed to create setting: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if excludedIPsCache != nil {
		excludedIPsCache.Clear()
	}
	loadCache(dbConn, slog.Default())

	return nil
}

func loadCache(dbConn *gorm.DB, logger *slog.Logger) {
	fetchFunc := func(key string) ([]string, error) {
		var value string
		err := dbConn.WithContext(context.Background()).Raw("SELECT value FROM settings WHERE key = ? LIMIT 1", key).Scan(&value).Error
		if err != nil {
			return nil, err
		}
		excludedIPs := strings.Split(value, ",")
		for i, ip := range excludedIPs {
			excludedIPs[i] = strings.TrimSpace(ip)
		}
		return excludedIPs, nil
	}
	excludedIPsCache = cache.NewCache[string, []string](logger, 5*time.Minute, fetchFunc)
}
