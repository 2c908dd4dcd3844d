package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"

	"pagetrail/internal/config"
	"pagetrail/internal/settings"
	"pagetrail/internal/tracking"
	"pagetrail/internal/visitors"
)

const (
	// VisitorCookieName identifies the browser across sessions, for a year.
	VisitorCookieName = "pagetrail_vid"
	// SessionCookieName identifies the current session, with a sliding
	// inactivity window.
	SessionCookieName = "pagetrail_sid"

	errInvalidRequest = "Invalid request"
)

// Beacon actions accepted by the track endpoint.
const (
	ActionSessionStart = "session_start"
	ActionPageView     = "page_view"
	ActionPageExit     = "page_exit"
	ActionSessionEnd   = "session_end"
)

// TrackData is the per-action payload of a tracking request.
type TrackData struct {
	Path        string `json:"path"`
	Title       string `json:"title"`
	PostSlug    string `json:"postSlug"`
	Referrer    string `json:"referrer"`
	UTMSource   string `json:"utmSource"`
	UTMMedium   string `json:"utmMedium"`
	UTMCampaign string `json:"utmCampaign"`
	UTMTerm     string `json:"utmTerm"`
	UTMContent  string `json:"utmContent"`
	TimeOnPage  int    `json:"timeOnPage"`
	ScrollDepth int    `json:"scrollDepth"`
}

// TrackRequest is the envelope for every beacon.
type TrackRequest struct {
	Action string    `json:"action"`
	Data   TrackData `json:"data"`
}

// TrackPublicAPIHandler handles POST /x/api/v1/track for all four beacon
// actions. Identity travels in HTTP-only cookies, never in the payload.
func TrackPublicAPIHandler(ctx *cartridge.Context) error {
	var params TrackRequest
	if err := ctx.BodyParser(&params); err != nil {
		ctx.Logger.Debug("Failed to parse track request", slog.Any("error", err))
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": errInvalidRequest,
			"code":  "INVALID_REQUEST",
		})
	}

	clientIP := getClientIP(ctx.Ctx)
	if excluded, err := settings.IsIPExcluded(clientIP); err == nil && excluded {
		// Excluded traffic is acknowledged but never stored.
		ctx.Logger.Debug("Dropping tracking request from excluded IP")
		return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
			"status": http.StatusAccepted,
		})
	}

	switch params.Action {
	case ActionSessionStart:
		return handleSessionStart(ctx, &params.Data, clientIP)
	case ActionPageView:
		return handlePageView(ctx, &params.Data)
	case ActionPageExit:
		return handlePageExit(ctx, &params.Data)
	case ActionSessionEnd:
		return handleSessionEnd(ctx)
	default:
		return ctx.Status(http.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown action",
			"code":  "UNKNOWN_ACTION",
		})
	}
}

func handleSessionStart(ctx *cartridge.Context, data *TrackData, clientIP string) error {
	cfg := ctx.Config.(*config.Config)

	visitorID := ctx.Cookies(VisitorCookieName)
	isNewVisitor := visitorID == ""
	if isNewVisitor {
		visitorID = visitors.NewVisitorID()
	}
	sessionID := visitors.NewSessionID()

	userAgent := ctx.Get("User-Agent")
	if forwardedUA := ctx.Get("X-Forwarded-User-Agent"); forwardedUA != "" {
		userAgent = forwardedUA
	}

	input := &tracking.StartSessionInput{
		VisitorID:    visitorID,
		SessionID:    sessionID,
		IsNewVisitor: isNewVisitor,
		EntryPage:    data.Path,
		Referrer:     data.Referrer,
		UTMSource:    data.UTMSource,
		UTMMedium:    data.UTMMedium,
		UTMCampaign:  data.UTMCampaign,
		UTMTerm:      data.UTMTerm,
		UTMContent:   data.UTMContent,
		UserAgent:    userAgent,
		IPAddress:    clientIP,
	}

	if _, err := tracking.StartSession(ctx.DBManager, ctx.Logger, input); err != nil {
		return trackingStoreError(ctx, "session_start", err)
	}

	setVisitorCookie(ctx, cfg, visitorID)
	setSessionCookie(ctx, cfg, sessionID)

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"status": http.StatusAccepted,
	})
}

func handlePageView(ctx *cartridge.Context, data *TrackData) error {
	sessionID := ctx.Cookies(SessionCookieName)
	if sessionID == "" {
		return noActiveSession(ctx)
	}

	input := &tracking.PageViewInput{
		SessionID: sessionID,
		Path:      data.Path,
		Title:     data.Title,
		PostSlug:  data.PostSlug,
	}

	if _, err := tracking.RecordPageView(ctx.DBManager, ctx.Logger, input); err != nil {
		if errors.Is(err, tracking.ErrNoActiveSession) {
			return noActiveSession(ctx)
		}
		return trackingStoreError(ctx, "page_view", err)
	}

	// Sliding session window: every view extends the cookie.
	cfg := ctx.Config.(*config.Config)
	setSessionCookie(ctx, cfg, sessionID)

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"status": http.StatusAccepted,
	})
}

func handlePageExit(ctx *cartridge.Context, data *TrackData) error {
	sessionID := ctx.Cookies(SessionCookieName)
	if sessionID != "" {
		input := &tracking.PageExitInput{
			SessionID:   sessionID,
			Path:        data.Path,
			TimeOnPage:  data.TimeOnPage,
			ScrollDepth: data.ScrollDepth,
		}
		if err := tracking.RecordPageExit(ctx.DBManager, ctx.Logger, input); err != nil {
			return trackingStoreError(ctx, "page_exit", err)
		}
	}

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"status": http.StatusAccepted,
	})
}

func handleSessionEnd(ctx *cartridge.Context) error {
	sessionID := ctx.Cookies(SessionCookieName)
	if sessionID != "" {
		if err := tracking.EndSession(ctx.DBManager, ctx.Logger, sessionID); err != nil {
			return trackingStoreError(ctx, "session_end", err)
		}
		ctx.ClearCookie(SessionCookieName)
	}

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{
		"status": http.StatusAccepted,
	})
}

// TrackBeaconHandler handles POST /x/api/v1/track/beacon, sent via
// navigator.sendBeacon on page unload. Beacons always get 202: the
// browser has already navigated away and nobody is listening for errors.
func TrackBeaconHandler(ctx *cartridge.Context) error {
	// sendBeacon posts as text/plain, so parse the raw body.
	var params TrackRequest
	if err := json.Unmarshal(ctx.Body(), &params); err != nil {
		ctx.Logger.Debug("Failed to parse beacon request", slog.Any("error", err))
		return ctx.SendStatus(http.StatusAccepted)
	}

	clientIP := getClientIP(ctx.Ctx)
	if excluded, err := settings.IsIPExcluded(clientIP); err == nil && excluded {
		return ctx.SendStatus(http.StatusAccepted)
	}

	sessionID := ctx.Cookies(SessionCookieName)
	if sessionID == "" {
		return ctx.SendStatus(http.StatusAccepted)
	}

	switch params.Action {
	case ActionPageExit:
		input := &tracking.PageExitInput{
			SessionID:   sessionID,
			Path:        params.Data.Path,
			TimeOnPage:  params.Data.TimeOnPage,
			ScrollDepth: params.Data.ScrollDepth,
		}
		if err := tracking.RecordPageExit(ctx.DBManager, ctx.Logger, input); err != nil {
			ctx.Logger.Error("Failed to record beacon page exit", slog.Any("error", err))
		}
	case ActionSessionEnd:
		if err := tracking.EndSession(ctx.DBManager, ctx.Logger, sessionID); err != nil {
			ctx.Logger.Error("Failed to end session from beacon", slog.Any("error", err))
		}
	default:
		ctx.Logger.Debug("Ignoring beacon action", slog.String("action", params.Action))
	}

	return ctx.SendStatus(http.StatusAccepted)
}

// GetTrackingStatusHandler reports whether the caller currently has
// visitor and session cookies, plus a human-readable alias derived from
// the visitor id.
func GetTrackingStatusHandler(ctx *cartridge.Context) error {
	visitorID := ctx.Cookies(VisitorCookieName)
	sessionID := ctx.Cookies(SessionCookieName)

	response := fiber.Map{
		"hasVisitor": visitorID != "",
		"hasSession": sessionID != "",
	}
	if visitorID != "" {
		response["visitorAlias"] = visitors.Alias(visitorID)
	}

	return ctx.Status(http.StatusOK).JSON(response)
}

func noActiveSession(ctx *cartridge.Context) error {
	return ctx.Status(http.StatusNotFound).JSON(fiber.Map{
		"error": "No active session",
		"code":  "NO_ACTIVE_SESSION",
	})
}

func trackingStoreError(ctx *cartridge.Context, action string, err error) error {
	ctx.Logger.Error("Failed to store tracking data",
		slog.String("action", action),
		slog.Any("error", err))

	if strings.Contains(err.Error(), "database is locked") || strings.Contains(err.Error(), "busy") {
		return ctx.Status(599).JSON(fiber.Map{}) // custom status code
	}

	return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to store tracking data",
		"code":  "TRACKING_ERROR",
	})
}

func setVisitorCookie(ctx *cartridge.Context, cfg *config.Config, visitorID string) {
	ctx.Cookie(&fiber.Cookie{
		Name:     VisitorCookieName,
		Value:    visitorID,
		MaxAge:   cfg.GetVisitorCookieMaxAge(),
		HTTPOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
}

func setSessionCookie(ctx *cartridge.Context, cfg *config.Config, sessionID string) {
	ctx.Cookie(&fiber.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		MaxAge:   cfg.SessionTimeoutSeconds,
		HTTPOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
		Path:     "/",
	})
}
