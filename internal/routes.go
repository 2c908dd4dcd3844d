package internal

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/karloscodes/cartridge"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	v1 "pagetrail/api/v1"
	"pagetrail/internal/config"
	"pagetrail/internal/http"
	"pagetrail/internal/http/middleware"
)

// publicCORSConfig is shared by every public endpoint. Tracking requests
// arrive from arbitrary blog domains, so CORS is permissive.
var publicCORSConfig = &cors.Config{
	AllowOrigins:     "*",
	AllowMethods:     "POST,GET,OPTIONS",
	AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Referrer, User-Agent",
	AllowCredentials: false,
}

// SetupSession configures login session management on the server.
func SetupSession(srv *cartridge.Server) {
	cfg := config.GetConfig()
	sessionMgr := cartridge.NewSessionManager(cartridge.SessionConfig{
		CookieName: cfg.AppName + "_session",
		Secret:     cfg.GetSessionSecret(),
		TTL:        time.Duration(cfg.GetLoginSessionTimeout()) * time.Second,
		Secure:     cfg.IsProduction(),
		LoginPath:  "/login",
	})
	srv.SetSession(sessionMgr)
}

// MountAppRoutes mounts all application routes using cartridge's route API
func MountAppRoutes(srv *cartridge.Server) {
	SetupSession(srv)
	MountAppRoutesWithoutSession(srv)
}

// MountAppRoutesWithoutSession mounts routes without setting up session.
// Used by tests and embedders that install their own session manager.
func MountAppRoutesWithoutSession(srv *cartridge.Server) {
	cfg := config.GetConfig()
	sessionMgr := srv.Session()

	// Rate limiting only applies in production; in development and test
	// it would interfere with rapid request sequences.
	conditionalRateLimiter := func(limiter fiber.Handler) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if cfg.IsProduction() {
				return limiter(c)
			}
			return c.Next()
		}
	}

	// Public tracking ingestion: 70 requests per minute per IP handles a
	// fast multi-page reading session while capping abuse.
	publicRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(70),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Stricter limit on auth endpoints against brute force
	authRateLimiter := conditionalRateLimiter(cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(10),
		cartridgemiddleware.WithDuration(time.Minute),
	))

	// Public API config (beacon ingestion). CORS runs first so rejected
	// requests still carry CORS headers. The global Sec-Fetch-Site
	// middleware allows cross-site, same-site and same-origin.
	publicAPIConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		WriteConcurrency: false,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	// Tracker script delivery, GET-only
	trackerConfig := &cartridge.RouteConfig{
		EnableCORS:       true,
		CustomMiddleware: []fiber.Handler{publicRateLimiter},
		CORSConfig:       publicCORSConfig,
	}

	// First-run setup flow, no Sec-Fetch-Site since it may be driven by
	// CLI clients
	setupConfig := &cartridge.RouteConfig{
		EnableSecFetchSite: cartridge.Bool(false),
	}

	db := srv.GetDBManager().GetConnection()
	logger := srv.GetLogger()

	adminAPIConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{
			middleware.SetupCheck(db, logger),
			sessionMgr.Middleware(),
		},
	}

	// === HEALTH ===
	srv.Get("/_health", http.HealthIndexAction)
	srv.Head("/_health", http.HealthIndexAction)

	// === PUBLIC TRACKING API ===
	srv.Post("/x/api/v1/track", v1.TrackPublicAPIHandler, publicAPIConfig)
	srv.Get("/x/api/v1/track", v1.GetTrackingStatusHandler, publicAPIConfig)
	srv.Options("/x/api/v1/track", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicAPIConfig)
	srv.Post("/x/api/v1/track/beacon", v1.TrackBeaconHandler, publicAPIConfig)
	srv.Options("/x/api/v1/track/beacon", func(ctx *cartridge.Context) error {
		return ctx.SendStatus(fiber.StatusNoContent)
	}, publicAPIConfig)

	// === TRACKER SCRIPT ===
	srv.Get("/y/api/v1/tracker.js", v1.GetTrackerAction, trackerConfig)

	// === FIRST-RUN SETUP ===
	srv.Post("/setup/user", http.SetupUserAction, setupConfig)

	// === AUTHENTICATION ===
	loginConfig := &cartridge.RouteConfig{
		CustomMiddleware: []fiber.Handler{authRateLimiter},
	}
	srv.Get("/login", http.LoginStatusAction)
	srv.Post("/login", http.ProcessLoginAction, loginConfig)
	srv.Post("/logout", http.LogoutAction)

	// === ADMIN STATS API ===
	srv.Get("/admin/api/stats", http.GetStatsAction, adminAPIConfig)
}
