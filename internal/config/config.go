// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName                    string   `mapstructure:"appname"`
	AppPort                    string   `mapstructure:"appport"`
	Environment                string   `mapstructure:"environment"`
	LogLevel                   LogLevel `mapstructure:"loglevel"`
	PrivateKey                 string   `mapstructure:"privatekey"`
	SessionTimeoutSeconds      int      `mapstructure:"sessiontimeoutseconds"`
	LoginSessionTimeoutSeconds int      `mapstructure:"loginsessiontimeoutseconds"`
	VisitorCookieMaxAgeDays    int      `mapstructure:"visitorcookiemaxagedays"`
	CSRFContextKey             string   `mapstructure:"-"`
	AdminEmail                 string   `mapstructure:"adminemail"`
	Domain                     string   `mapstructure:"domain"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	GeoDBPath             string `mapstructure:"geodbpath"`
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`

	// Data retention settings
	TrackingRetentionDays int `mapstructure:"trackingretentiondays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		// Set defaults
		v.SetDefault("appname", "pagetrail")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", "88888888888888888888888888888888")
		v.SetDefault("sessiontimeoutseconds", 1800)
		v.SetDefault("loginsessiontimeoutseconds", 604800) // 1 week
		v.SetDefault("visitorcookiemaxagedays", 365)
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-City.mmdb")
		v.SetDefault("publicdir", "web/public")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("jobintervalseconds", 60)
		v.SetDefault("trackingretentiondays", 180)

		// Bind environment variables
		v.BindEnv("appname", "PAGETRAIL_APP_NAME")
		v.BindEnv("appport", "PAGETRAIL_APP_PORT")
		v.BindEnv("environment", "PAGETRAIL_ENV")
		v.BindEnv("loglevel", "PAGETRAIL_LOG_LEVEL")
		v.BindEnv("privatekey", "PAGETRAIL_PRIVATE_KEY")
		v.BindEnv("sessiontimeoutseconds", "PAGETRAIL_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("loginsessiontimeoutseconds", "PAGETRAIL_LOGIN_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("visitorcookiemaxagedays", "PAGETRAIL_VISITOR_COOKIE_MAX_AGE_DAYS")
		v.BindEnv("adminemail", "PAGETRAIL_ADMIN_EMAIL")
		v.BindEnv("domain", "PAGETRAIL_DOMAIN")
		v.BindEnv("storagepath", "PAGETRAIL_STORAGE_PATH")
		v.BindEnv("geodbpath", "PAGETRAIL_GEO_DB_PATH")
		v.BindEnv("publicdir", "PAGETRAIL_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "PAGETRAIL_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "PAGETRAIL_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "PAGETRAIL_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "PAGETRAIL_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "PAGETRAIL_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "PAGETRAIL_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "PAGETRAIL_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "PAGETRAIL_DB_MAX_IDLE_CONNS")
		v.BindEnv("jobintervalseconds", "PAGETRAIL_JOB_INTERVAL_SECONDS")
		v.BindEnv("trackingretentiondays", "PAGETRAIL_TRACKING_RETENTION_DAYS")

		cfg = &Config{
			CSRFContextKey: "csrf",
		}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		// Validate
		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		// Set derived values
		cfg.DatabaseName = cfg.GetDatabasePath()

		// Validate private key - in production, must be explicitly set (not empty, not default)
		defaultKey := "88888888888888888888888888888888"
		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultKey {
			log.Fatal("Production requires a unique PAGETRAIL_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	validDBTypes := map[string]bool{
		SQLiteDatabase: true,
	}
	if !validDBTypes[c.DatabaseType] {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	if c.SessionTimeoutSeconds <= 0 {
		return fmt.Errorf("session timeout must be positive: %d", c.SessionTimeoutSeconds)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetSessionTimeout returns the visitor session timeout in seconds.
// A visitor session is closed after this much inactivity; the session
// cookie slides on the same window.
func (c *Config) GetSessionTimeout() int {
	return c.SessionTimeoutSeconds
}

// GetLoginSessionTimeout returns the login session timeout in seconds.
// Used for admin login cookie duration.
func (c *Config) GetLoginSessionTimeout() int {
	return c.LoginSessionTimeoutSeconds
}

// GetVisitorCookieMaxAge returns the visitor identity cookie lifetime in seconds.
func (c *Config) GetVisitorCookieMaxAge() int {
	return c.VisitorCookieMaxAgeDays * 24 * 60 * 60
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1 (required for E2E test stability)
// - Development/Production: 10 (allows concurrent reads for parallel stats queries)
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}

	if c.Environment == Test {
		return 1 // Required for E2E test stability
	}

	return 10 // Higher concurrency for development and production
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment
// If explicitly set via env var, uses that value. Otherwise:
// - Test: 1 (matches MaxOpenConns for test stability)
// - Development/Production: 5 (keep half the connections warm for reuse)
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}

	if c.Environment == Test {
		return 1 // Matches MaxOpenConns for test stability
	}

	return 5 // Keep half the pool warm for development and production
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
