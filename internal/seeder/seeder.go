// Package seeder generates realistic development data by replaying
// visitor journeys through the tracking pipeline.
package seeder

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge"

	"pagetrail/internal/tracking"
	"pagetrail/internal/users"
	"pagetrail/internal/visitors"
)

// Seeder handles the data seeding process.
type Seeder struct {
	DBManager    cartridge.DBManager
	Logger       *slog.Logger
	SessionCount int
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, logger *slog.Logger, sessionCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:    dbManager,
		Logger:       logger,
		SessionCount: sessionCount,
	}
}

// journeyTemplates are typical reading paths through a blog.
var journeyTemplates = [][]string{
	{"/"},
	{"/", "/posts/welcome"},
	{"/", "/posts/welcome", "/posts/second-thoughts"},
	{"/posts/how-to-brew-coffee"},
	{"/posts/how-to-brew-coffee", "/posts/grinder-comparison", "/about"},
	{"/", "/archive", "/posts/year-in-review"},
	{"/", "/about", "/contact"},
	{"/posts/year-in-review", "/posts/welcome"},
	{"/", "/posts/second-thoughts", "/posts/how-to-brew-coffee", "/archive"},
	{"/archive", "/posts/grinder-comparison"},
}

// pageTitles maps seeded paths to display titles.
var pageTitles = map[string]string{
	"/":                         "Home",
	"/about":                    "About",
	"/contact":                  "Contact",
	"/archive":                  "Archive",
	"/posts/welcome":            "Welcome to the Blog",
	"/posts/second-thoughts":    "Second Thoughts",
	"/posts/how-to-brew-coffee": "How to Brew Coffee",
	"/posts/grinder-comparison": "Grinder Comparison",
	"/posts/year-in-review":     "Year in Review",
}

// Run executes the seeding process
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Starting database seeding...", slog.Int("sessionCount", s.SessionCount))

	if err := s.seedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := s.seedSessions(ctx); err != nil {
		return fmt.Errorf("failed to seed sessions: %w", err)
	}

	s.Logger.Info("Seeding completed successfully", slog.Duration("elapsed", time.Since(start)))
	return nil
}

// seedAdminUser ensures the default admin user exists
func (s *Seeder) seedAdminUser() error {
	db := s.DBManager.GetConnection()

	if _, err := users.FindByEmail(db, "admin@example.com"); err == nil {
		s.Logger.Info("Admin user already exists")
		return nil
	}

	s.Logger.Info("Creating admin user")
	return users.CreateAdminUser(db, "admin@example.com", "password")
}

// seedSessions replays visitor journeys through the tracking functions so
// seeded data goes through the same classification as real traffic.
func (s *Seeder) seedSessions(ctx context.Context) error {
	ipPool := generateIPPool(100)
	userAgents := getUserAgents()
	referrers := getReferrers()

	// Returning visitors reuse an identity from this pool.
	visitorPool := make([]string, 40)
	for i := range visitorPool {
		visitorPool[i] = visitors.NewVisitorID()
	}

	created := 0
	for i := 0; i < s.SessionCount; i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		journey := journeyTemplates[rand.IntN(len(journeyTemplates))]

		isNewVisitor := rand.Float64() < 0.6
		visitorID := visitors.NewVisitorID()
		if !isNewVisitor {
			visitorID = visitorPool[rand.IntN(len(visitorPool))]
		}

		input := &tracking.StartSessionInput{
			VisitorID:    visitorID,
			SessionID:    visitors.NewSessionID(),
			IsNewVisitor: isNewVisitor,
			EntryPage:    journey[0],
			Referrer:     referrers[rand.IntN(len(referrers))],
			UserAgent:    userAgents[rand.IntN(len(userAgents))],
			IPAddress:    ipPool[rand.IntN(len(ipPool))],
		}

		// A slice of campaign traffic
		if rand.Float64() < 0.15 {
			input.UTMSource = "newsletter"
			input.UTMMedium = "email"
			input.UTMCampaign = "weekly_digest"
		}

		session, err := tracking.StartSession(s.DBManager, s.Logger, input)
		if err != nil {
			s.Logger.Error("Failed to start seeded session", slog.Any("error", err))
			continue
		}

		for _, path := range journey {
			view := &tracking.PageViewInput{
				SessionID: session.SessionID,
				Path:      path,
				Title:     pageTitles[path],
				PostSlug:  postSlugFor(path),
			}
			if _, err := tracking.RecordPageView(s.DBManager, s.Logger, view); err != nil {
				s.Logger.Error("Failed to record seeded page view", slog.Any("error", err))
				continue
			}

			exit := &tracking.PageExitInput{
				SessionID:   session.SessionID,
				Path:        path,
				TimeOnPage:  rand.IntN(280) + 10,
				ScrollDepth: rand.IntN(101),
			}
			if err := tracking.RecordPageExit(s.DBManager, s.Logger, exit); err != nil {
				s.Logger.Error("Failed to record seeded page exit", slog.Any("error", err))
			}
		}

		// Most visitors leave without a session_end beacon; close the rest
		// explicitly like the reaper would.
		if rand.Float64() < 0.5 {
			if err := tracking.EndSession(s.DBManager, s.Logger, session.SessionID); err != nil {
				s.Logger.Error("Failed to end seeded session", slog.Any("error", err))
			}
		}

		// Spread sessions over the last 30 days
		startTime := time.Now().UTC().Add(-time.Duration(rand.IntN(30*24*60*60)) * time.Second)
		db := s.DBManager.GetConnection()
		db.Model(&tracking.VisitorSession{}).
			Where("session_id = ?", session.SessionID).
			UpdateColumns(map[string]interface{}{
				"start_time": startTime,
				"updated_at": startTime,
			})
		db.Model(&tracking.PageView{}).
			Where("session_id = ?", session.SessionID).
			UpdateColumn("timestamp", startTime)

		created++
	}

	s.Logger.Info("Generated visitor sessions", slog.Int("sessions", created))
	return nil
}

func postSlugFor(path string) string {
	if strings.HasPrefix(path, "/posts/") {
		return strings.TrimPrefix(path, "/posts/")
	}
	return ""
}

// generateIPPool creates a pool of unique IPv4 addresses
func generateIPPool(count int) []string {
	seen := make(map[string]bool)
	var ips []string
	for len(ips) < count {
		ip := fmt.Sprintf("%d.%d.%d.%d", rand.IntN(255)+1, rand.IntN(256), rand.IntN(256), rand.IntN(256))
		if !seen[ip] {
			seen[ip] = true
			ips = append(ips, ip)
		}
	}
	return ips
}

// getUserAgents returns a list of common user agent strings
func getUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Safari/605.1.15",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 16_1_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Mobile/15E148 Safari/605.1",
		"Mozilla/5.0 (Linux; Android 13; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Mobile Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36",
		"Mozilla/5.0 (iPad; CPU OS 16_1_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.1 Mobile/15E148 Safari/605.1",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/118.0",
	}
}

// getReferrers returns a list of common referrer URLs
func getReferrers() []string {
	return []string{
		"", // Direct visit
		"https://www.google.com/",
		"https://www.bing.com/",
		"https://duckduckgo.com/",
		"https://news.ycombinator.com/",
		"https://www.reddit.com/r/programming",
		"https://twitter.com/",
		"https://github.com/",
		"https://some-other-blog.com/blogroll",
	}
}
