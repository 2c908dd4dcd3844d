// Package geoip resolves client IP addresses to a country, region, and
// city using a local GeoLite2 City database. The database is optional;
// without it every lookup returns Unknown values.
package geoip

import (
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"github.com/pariz/gountries"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"pagetrail/internal/config"
)

// UnknownLocation is the value used when a dimension cannot be resolved.
const UnknownLocation = "Unknown"

// Location is the geographic classification of a client IP address.
type Location struct {
	Country string
	Region  string
	City    string
}

var (
	geoDB  *geoip2.Reader
	once   sync.Once
	mu     sync.RWMutex
	logger *slog.Logger
)

// InitLogger sets the logger for the geoip package.
func InitLogger(l *slog.Logger) {
	logger = l
}

// InitGeoDB initializes the GeoLite2 City database.
// Returns nil if the database is not configured or not found (GeoIP is optional).
func InitGeoDB() *geoip2.Reader {
	cfg := config.GetConfig()
	if cfg.GeoDBPath == "" {
		if logger != nil {
			logger.Debug("GeoIP database path not configured - GeoIP features disabled")
		}
		return nil
	}

	if _, err := os.Stat(cfg.GeoDBPath); os.IsNotExist(err) {
		if logger != nil {
			logger.Info("GeoLite2 database not found - GeoIP features disabled",
				slog.String("path", cfg.GeoDBPath),
				slog.String("hint", "Download from https://www.maxmind.com/en/geolite2/signup"))
		}
		return nil
	} else if err != nil {
		if logger != nil {
			logger.Warn("Error checking GeoLite2 database file",
				slog.String("path", cfg.GeoDBPath),
				slog.Any("error", err))
		}
		return nil
	}

	db, err := geoip2.Open(cfg.GeoDBPath)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to open GeoLite2 database",
				slog.String("path", cfg.GeoDBPath),
				slog.Any("error", err))
		}
		return nil
	}

	if logger != nil {
		logger.Info("GeoLite2 database initialized",
			slog.String("path", cfg.GeoDBPath))
	}
	return db
}

// GetGeoDB returns the GeoLite2 database reader, initializing it if necessary.
func GetGeoDB() *geoip2.Reader {
	once.Do(func() {
		mu.Lock()
		geoDB = InitGeoDB()
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return geoDB
}

// ReloadGeoDB reloads the GeoLite2 database from disk.
// Call this after downloading a new database file.
func ReloadGeoDB() {
	mu.Lock()
	defer mu.Unlock()

	if geoDB != nil {
		geoDB.Close()
	}

	geoDB = InitGeoDB()

	if geoDB != nil && logger != nil {
		logger.Info("GeoLite2 database reloaded")
	}
}

// LookupLocation resolves an IP address to country/region/city.
// Lookups are best effort: any failure yields Unknown values rather than
// an error, since location never blocks session tracking.
func LookupLocation(ipAddress string) Location {
	loc := Location{
		Country: UnknownLocation,
		Region:  UnknownLocation,
		City:    UnknownLocation,
	}

	db := GetGeoDB()
	if db == nil {
		return loc
	}

	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return loc
	}

	record, err := db.City(ip)
	if err != nil {
		if logger != nil {
			logger.Debug("GeoIP lookup failed", slog.Any("error", err))
		}
		return loc
	}

	if record.Country.IsoCode != "" {
		loc.Country = CountryName(record.Country.IsoCode)
	}
	if len(record.Subdivisions) > 0 && record.Subdivisions[0].Names["en"] != "" {
		loc.Region = record.Subdivisions[0].Names["en"]
	}
	if record.City.Names["en"] != "" {
		loc.City = record.City.Names["en"]
	}

	return loc
}

var (
	countryQuery = gountries.New()
	titleCaser   = cases.Title(language.English)
)

// CountryName resolves an ISO 3166-1 alpha-2 code to a display name.
// Unrecognized codes fall back to the code itself.
func CountryName(isoCode string) string {
	country, err := countryQuery.FindCountryByAlpha(strings.ToUpper(isoCode))
	if err != nil {
		return isoCode
	}

	name := country.Name.Common
	if name == "" {
		name = country.Name.Official
	}
	if name == "" {
		return isoCode
	}
	return titleCaser.String(name)
}
