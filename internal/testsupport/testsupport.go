package testsupport

import (
	"fmt"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/karloscodes/cartridge"
	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"pagetrail/internal/config"
	"pagetrail/internal/settings"
	"pagetrail/internal/tracking"
	"pagetrail/internal/users"

	"github.com/karloscodes/cartridge/cache"
)

// SessionCookieName is the expected cookie name for session cookies in tests.
// This should match the pattern used in routes.go: cfg.AppName + "_session"
const SessionCookieName = "pagetrail_session"

// testDBCache caches test databases by test name to allow multiple calls
// within the same test to share the same database
var testDBCache = make(map[string]*TestDBManager)
var testDBCacheMu sync.Mutex

// TestDBManager wraps cartridge's TestDBManager with pagetrail's interface
type TestDBManager struct {
	*ctestsupport.TestDBManager
}

// NewTestDBManager creates a TestDBManager that implements cartridge.DBManager
func NewTestDBManager(db *gorm.DB) *TestDBManager {
	return &TestDBManager{
		TestDBManager: ctestsupport.NewTestDBManager(db),
	}
}

// Ensure TestDBManager implements cartridge.DBManager
var _ cartridge.DBManager = (*TestDBManager)(nil)

// allModels returns all pagetrail models for migration
func allModels() []any {
	return []any{
		&cache.CacheRecord{},
		&tracking.VisitorSession{},
		&tracking.PageView{},
		&users.User{},
		&settings.Setting{},
	}
}

// SetupTestDB creates a test database manager with all pagetrail models
// migrated. Uses a named in-memory database with cache=shared to allow
// multiple connections to share the same database within a test. Caches
// the manager by root test name so subtests share their parent's database.
func SetupTestDB(t *testing.T) *TestDBManager {
	t.Helper()

	testName := t.Name()

	// Use root test name for caching to handle closure issues where
	// setup functions capture the outer t while t.Run has subtest t
	rootName := testName
	if idx := strings.Index(testName, "/"); idx > 0 {
		rootName = testName[:idx]
	}

	testDBCacheMu.Lock()
	if dbManager, exists := testDBCache[rootName]; exists {
		testDBCacheMu.Unlock()
		return dbManager
	}
	testDBCacheMu.Unlock()

	// Create a unique named in-memory database for each test.
	// cache=shared allows multiple connections to the same database
	sanitizedName := strings.ReplaceAll(rootName, "/", "_")
	dsn := fmt.Sprintf("file:test_%s_%d?mode=memory&cache=shared", sanitizedName, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}

	db.Exec("PRAGMA foreign_keys = ON")
	db.Exec("PRAGMA journal_mode = WAL")

	if err := db.AutoMigrate(allModels()...); err != nil {
		t.Fatalf("testsupport: failed to migrate models: %v", err)
	}

	dbManager := NewTestDBManager(db)

	testDBCacheMu.Lock()
	testDBCache[rootName] = dbManager
	testDBCacheMu.Unlock()

	t.Cleanup(func() {
		testDBCacheMu.Lock()
		delete(testDBCache, rootName)
		testDBCacheMu.Unlock()
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return dbManager
}

// SetupTestDBManager creates a test DB manager plus a logger, asserting
// the test environment first.
func SetupTestDBManager(t *testing.T) (*TestDBManager, *slog.Logger) {
	cfg := config.GetConfig()

	if cfg.Environment != config.Test {
		t.Fatalf("CRITICAL: Tests must run in test environment! Current: %s. Set PAGETRAIL_ENV=test", cfg.Environment)
	}

	return SetupTestDB(t), GetLogger()
}

// CleanAllTables clears all non-system tables in the database
func CleanAllTables(db *gorm.DB) {
	var tableNames []string
	db.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableNames)

	var tables []string
	for _, name := range tableNames {
		if name != "migrations" && name != "schema_migrations" {
			tables = append(tables, name)
		}
	}

	if len(tables) == 0 {
		return
	}

	db.Exec("PRAGMA foreign_keys = OFF")
	defer db.Exec("PRAGMA foreign_keys = ON")

	db.Transaction(func(tx *gorm.DB) error {
		for _, table := range tables {
			tx.Exec("DELETE FROM " + table)
			tx.Exec("DELETE FROM sqlite_sequence WHERE name=?", table)
		}
		return nil
	})
}

// CreateTestUser creates a test user in the database. The password is
// stored as-is, so this is only useful where authentication is bypassed.
func CreateTestUser(db *gorm.DB, email, password string) users.User {
	var user users.User
	if db.Where("email = ?", email).First(&user).Error == nil {
		return user
	}

	user = users.User{
		Email:             email,
		EncryptedPassword: password,
		Role:              users.RoleAdmin,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	db.Create(&user)
	return user
}

// CreateTestUserForAuth creates a user with a properly hashed password
// for auth testing. Role defaults to admin.
func CreateTestUserForAuth(t *testing.T, db *gorm.DB, email, password string, role ...string) *users.User {
	t.Helper()

	userRole := users.RoleAdmin
	if len(role) > 0 {
		userRole = role[0]
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)

	user := &users.User{
		Email:             email,
		EncryptedPassword: string(hashedPassword),
		Role:              userRole,
		CreatedAt:         time.Now().UTC(),
		UpdatedAt:         time.Now().UTC(),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// GetLogger returns a test logger
func GetLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}

// CreateMinimalTestApp creates a test Fiber app with all routes mounted.
// The route mount function is passed in to avoid an import cycle with the
// internal package; tests pass internal.MountAppRoutes.
func CreateMinimalTestApp(t *testing.T, dbManager *TestDBManager, mountRoutes func(*cartridge.Server)) *fiber.App {
	t.Helper()

	appConfig := config.GetConfig()
	appConfig.Environment = config.Test
	appConfig.PublicDirectory = "../../web/public"

	cfg := cartridge.DefaultServerConfig()
	cfg.Config = appConfig
	cfg.Logger = GetLogger()
	cfg.DBManager = dbManager
	cfg.StaticDirectory = appConfig.PublicDirectory
	cfg.StaticPrefix = appConfig.PublicAssetsUrlPrefix
	cfg.TemplatesDirectory = appConfig.PublicDirectory
	// Match production behavior: block requests without a Sec-Fetch-Site header
	cfg.EnableSecFetchSite = true
	cfg.SecFetchSiteAllowedValues = []string{"cross-site", "same-site", "same-origin"}

	srv, err := cartridge.NewServer(cfg)
	require.NoError(t, err)

	mountRoutes(srv)
	return srv.App()
}

// LoginTestUser logs a user in and returns the session cookie value.
// Fetches the CSRF cookie from GET /login first, the way a browser would.
func LoginTestUser(t *testing.T, app *fiber.App, email, password string) string {
	t.Helper()

	req := httptest.NewRequest("GET", "/login", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 Test Browser")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var csrfToken, csrfCookie string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "csrf_" {
			csrfToken = cookie.Value
			csrfCookie = fmt.Sprintf("%s=%s", cookie.Name, cookie.Value)
			break
		}
	}
	require.NotEmpty(t, csrfToken)

	loginData := url.Values{}
	loginData.Add("email", email)
	loginData.Add("password", password)
	loginData.Add("_csrf", csrfToken)

	req = httptest.NewRequest("POST", "/login", strings.NewReader(loginData.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "Mozilla/5.0 Test Browser")
	req.Header.Set("Cookie", csrfCookie)

	resp, err = app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var sessionValue string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == SessionCookieName {
			sessionValue = cookie.Value
			break
		}
	}
	require.NotEmpty(t, sessionValue)

	return sessionValue
}
