package tracking

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"log/slog"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"pagetrail/internal/pkg/geoip"
	"pagetrail/internal/pkg/referrers"
	"pagetrail/internal/pkg/useragent"
)

// ErrNoActiveSession is returned when a page view or exit arrives for a
// session that was never started or has already been closed.
var ErrNoActiveSession = errors.New("no active session")

// OnlineWindow is how recently a session must have been active to count
// as online.
const OnlineWindow = 5 * time.Minute

// StartSessionInput carries everything needed to open a session. The
// user agent, referrer, UTM parameters, and IP address are classified
// here; the raw IP is never stored.
type StartSessionInput struct {
	VisitorID    string
	SessionID    string
	IsNewVisitor bool
	EntryPage    string
	Referrer     string
	UTMSource    string
	UTMMedium    string
	UTMCampaign  string
	UTMTerm      string
	UTMContent   string
	UserAgent    string
	IPAddress    string
}

// PageViewInput records one page load on an active session.
type PageViewInput struct {
	SessionID string
	Path      string
	Title     string
	PostSlug  string
}

// PageExitInput backfills engagement data when the visitor leaves a page.
type PageExitInput struct {
	SessionID   string
	Path        string
	TimeOnPage  int
	ScrollDepth int
}

// StartSession opens a new session with its dimensions classified from
// the request. Any still-active session with the same session identifier
// is closed first, so a session id has at most one active session.
func StartSession(dbManager cartridge.DBManager, logger *slog.Logger, input *StartSessionInput) (*VisitorSession, error) {
	if input.VisitorID == "" || input.SessionID == "" {
		return nil, fmt.Errorf("visitor id and session id are required")
	}

	ua := useragent.Classify(input.UserAgent)
	location := geoip.LookupLocation(input.IPAddress)
	referrerHost := hostnameOf(input.Referrer)

	now := time.Now().UTC()
	session := &VisitorSession{
		VisitorID:       input.VisitorID,
		SessionID:       input.SessionID,
		StartTime:       now,
		PageViews:       0,
		Bounced:         true,
		TrafficSource:   referrers.ClassifyTrafficSource(input.UTMSource, input.UTMMedium, referrerHost),
		Referrer:        referrerHost,
		UTMSource:       input.UTMSource,
		UTMMedium:       input.UTMMedium,
		UTMCampaign:     input.UTMCampaign,
		UTMTerm:         input.UTMTerm,
		UTMContent:      input.UTMContent,
		Country:         location.Country,
		Region:          location.Region,
		City:            location.City,
		DeviceType:      ua.DeviceType,
		Browser:         ua.Browser,
		OperatingSystem: ua.OperatingSystem,
		EntryPage:       input.EntryPage,
		ExitPage:        input.EntryPage,
		IsNewVisitor:    input.IsNewVisitor,
		IsActive:        true,
	}

	db := dbManager.GetConnection()
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		// Close any leftover active session for this id before opening
		// the new one.
		res := tx.Model(&VisitorSession{}).
			Where("session_id = ? AND is_active = ?", input.SessionID, true).
			Updates(map[string]interface{}{
				"is_active": false,
				"end_time":  now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			// Reusing a session id means creating a second row would
			// violate the unique index; keep one row per session id.
			return tx.Model(&VisitorSession{}).
				Where("session_id = ?", input.SessionID).
				Updates(map[string]interface{}{
					"start_time": now,
					"end_time":   nil,
					"is_active":  true,
					"page_views": 0,
					"bounced":    true,
					"duration":   0,
					"entry_page": input.EntryPage,
					"exit_page":  input.EntryPage,
				}).Error
		}
		return tx.Create(session).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	logger.Debug("Started visitor session",
		slog.String("sessionId", session.SessionID),
		slog.String("trafficSource", session.TrafficSource),
		slog.Bool("isNewVisitor", session.IsNewVisitor))

	return session, nil
}

// FindActiveSession returns the active session for a session id.
func FindActiveSession(db *gorm.DB, sessionID string) (*VisitorSession, error) {
	var session VisitorSession
	err := db.Where("session_id = ? AND is_active = ?", sessionID, true).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, err
	}
	return &session, nil
}

// RecordPageView appends a page view to an active session and updates the
// session's counters: the view count, the bounce flag (a session bounces
// while it has at most one view), and the exit page.
//
// The read-modify-write on the session is intentionally unguarded between
// requests: concurrent views of one session may under-count, which is
// acceptable for analytics and keeps each beacon to a single write.
func RecordPageView(dbManager cartridge.DBManager, logger *slog.Logger, input *PageViewInput) (*VisitorSession, error) {
	db := dbManager.GetConnection()

	session, err := FindActiveSession(db, input.SessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	view := &PageView{
		VisitorID:        session.VisitorID,
		SessionID:        session.SessionID,
		VisitorSessionID: session.ID,
		Path:             input.Path,
		Title:            input.Title,
		PostSlug:         input.PostSlug,
		InternalReferrer: previousPath(session, input.Path),
		Timestamp:        now,
	}

	session.PageViews++
	session.Bounced = session.PageViews <= 1
	session.ExitPage = input.Path
	session.UpdatedAt = now

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		if err := tx.Create(view).Error; err != nil {
			return err
		}
		return tx.Model(&VisitorSession{}).
			Where("id = ?", session.ID).
			Updates(map[string]interface{}{
				"page_views": session.PageViews,
				"bounced":    session.Bounced,
				"exit_page":  session.ExitPage,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record page view: %w", err)
	}

	return session, nil
}

// previousPath is the internal referrer for a new view: the path of the
// last page seen in this session, empty for the first view and when the
// visitor reloads the same page.
func previousPath(session *VisitorSession, path string) string {
	if session.PageViews == 0 || session.ExitPage == path {
		return ""
	}
	return session.ExitPage
}

// RecordPageExit backfills time on page and scroll depth on the most
// recent view of the given path that has not been filled yet. Exits are
// best effort: an unmatched exit is dropped silently since beacons are
// unreliable by nature.
func RecordPageExit(dbManager cartridge.DBManager, logger *slog.Logger, input *PageExitInput) error {
	db := dbManager.GetConnection()

	var view PageView
	err := db.Where("session_id = ? AND path = ? AND time_on_page = 0", input.SessionID, input.Path).
		Order("timestamp DESC").
		First(&view).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Debug("Page exit without matching view",
				slog.String("sessionId", input.SessionID),
				slog.String("path", input.Path))
			return nil
		}
		return err
	}

	if input.TimeOnPage < 0 {
		input.TimeOnPage = 0
	}
	if input.ScrollDepth < 0 {
		input.ScrollDepth = 0
	}
	if input.ScrollDepth > 100 {
		input.ScrollDepth = 100
	}

	return sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Model(&PageView{}).
			Where("id = ?", view.ID).
			Updates(map[string]interface{}{
				"time_on_page": input.TimeOnPage,
				"scroll_depth": input.ScrollDepth,
			}).Error
	})
}

// EndSession closes an active session, computing its duration from the
// session start. Ending an already-closed or unknown session is a no-op
// so the endpoint stays idempotent for repeated beacons.
func EndSession(dbManager cartridge.DBManager, logger *slog.Logger, sessionID string) error {
	db := dbManager.GetConnection()

	session, err := FindActiveSession(db, sessionID)
	if err != nil {
		if errors.Is(err, ErrNoActiveSession) {
			logger.Debug("Session end for inactive session", slog.String("sessionId", sessionID))
			return nil
		}
		return err
	}

	now := time.Now().UTC()
	duration := int(now.Sub(session.StartTime).Seconds())
	if duration < 0 {
		duration = 0
	}

	err = sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		return tx.Model(&VisitorSession{}).
			Where("id = ? AND is_active = ?", session.ID, true).
			Updates(map[string]interface{}{
				"is_active": false,
				"end_time":  now,
				"duration":  duration,
			}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	logger.Debug("Ended visitor session",
		slog.String("sessionId", sessionID),
		slog.Int("duration", duration),
		slog.Int("pageViews", session.PageViews))

	return nil
}

// CloseIdleSessions closes every active session with no activity since
// the cutoff, using the last activity as the end time. Run periodically
// by the session reaper.
func CloseIdleSessions(dbManager cartridge.DBManager, logger *slog.Logger, timeout time.Duration) (int64, error) {
	db := dbManager.GetConnection()
	cutoff := time.Now().UTC().Add(-timeout)

	var closed int64
	err := sqlite.PerformWrite(logger, db, func(tx *gorm.DB) error {
		res := tx.Exec(`
            UPDATE visitor_sessions
            SET is_active = 0,
                end_time = updated_at,
                duration = CAST((JULIANDAY(updated_at) - JULIANDAY(start_time)) * 86400 AS INTEGER)
            WHERE is_active = 1 AND updated_at < ?
        `, cutoff)
		closed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to close idle sessions: %w", err)
	}

	if closed > 0 {
		logger.Info("Closed idle sessions", slog.Int64("count", closed))
	}

	return closed, nil
}

// CountOnlineSessions counts active sessions that saw activity inside
// the online window. A visitor with two open tabs counts twice.
func CountOnlineSessions(db *gorm.DB) (int64, error) {
	cutoff := time.Now().UTC().Add(-OnlineWindow)

	var result struct {
		Count int64
	}
	err := db.Raw(`
        SELECT COUNT(*) AS count
        FROM visitor_sessions
        WHERE is_active = 1 AND updated_at >= ?
    `, cutoff).Scan(&result).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count online sessions: %w", err)
	}

	return result.Count, nil
}

// hostnameOf extracts the hostname from a referrer URL. Bare hostnames
// are returned as-is.
func hostnameOf(referrer string) string {
	if referrer == "" {
		return ""
	}
	parsed, err := url.Parse(referrer)
	if err != nil {
		return ""
	}
	if parsed.Hostname() != "" {
		return parsed.Hostname()
	}
	return referrer
}
