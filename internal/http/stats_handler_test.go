package http_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagetrail/internal/testsupport"
	"pagetrail/internal/tracking"
	"pagetrail/internal/users"
)

func seedStatsSession(t *testing.T, dbManager *testsupport.TestDBManager, visitorID string, startedAgo time.Duration) {
	t.Helper()

	now := time.Now().UTC()
	session := tracking.VisitorSession{
		VisitorID:     visitorID,
		SessionID:     fmt.Sprintf("%s-session-%d", visitorID, startedAgo/time.Hour),
		StartTime:     now.Add(-startedAgo),
		PageViews:     2,
		Bounced:       false,
		Duration:      120,
		TrafficSource: "organic",
		Country:       "Germany",
		DeviceType:    "desktop",
		Browser:       "Firefox",
		EntryPage:     "/",
		ExitPage:      "/about",
		IsNewVisitor:  true,
		IsActive:      false,
	}
	require.NoError(t, dbManager.GetConnection().Create(&session).Error)
	require.NoError(t, dbManager.GetConnection().Model(&tracking.VisitorSession{}).
		Where("id = ?", session.ID).
		UpdateColumn("updated_at", session.StartTime).Error)
}

func getStats(t *testing.T, app *fiber.App, query string, sessionValue string) *http.Response {
	t.Helper()

	req := httptest.NewRequest("GET", "/admin/api/stats"+query, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 Test Browser")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	if sessionValue != "" {
		req.Header.Set("Cookie", fmt.Sprintf("%s=%s", testsupport.SessionCookieName, sessionValue))
	}

	resp, err := app.Test(req, 30000)
	require.NoError(t, err)
	return resp
}

func TestGetStats(t *testing.T) {
	t.Run("returns a snapshot for an admin", func(t *testing.T) {
		app, dbManager := newAuthApp(t)
		testsupport.CreateTestUserForAuth(t, dbManager.GetConnection(), "admin@example.com", "secret123")
		seedStatsSession(t, dbManager, "visitor-a", 2*time.Hour)
		seedStatsSession(t, dbManager, "visitor-b", 26*time.Hour)

		sessionValue := testsupport.LoginTestUser(t, app, "admin@example.com", "secret123")

		resp := getStats(t, app, "?range=7d", sessionValue)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		var snapshot map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &snapshot))

		assert.Equal(t, float64(2), snapshot["uniqueVisitors"])
		assert.Equal(t, float64(2), snapshot["totalSessions"])
		assert.Contains(t, snapshot, "bounceRate")
		assert.Contains(t, snapshot, "trafficSources")
		assert.Contains(t, snapshot, "visitorSeries")
		assert.Contains(t, snapshot, "topPages")
	})

	t.Run("allows an editor", func(t *testing.T) {
		app, dbManager := newAuthApp(t)
		testsupport.CreateTestUserForAuth(t, dbManager.GetConnection(), "admin@example.com", "secret123")
		testsupport.CreateTestUserForAuth(t, dbManager.GetConnection(), "editor@example.com", "secret123", users.RoleEditor)

		sessionValue := testsupport.LoginTestUser(t, app, "editor@example.com", "secret123")

		resp := getStats(t, app, "?range=30d", sessionValue)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("forbids a viewer", func(t *testing.T) {
		app, dbManager := newAuthApp(t)
		testsupport.CreateTestUserForAuth(t, dbManager.GetConnection(), "admin@example.com", "secret123")
		testsupport.CreateTestUserForAuth(t, dbManager.GetConnection(), "viewer@example.com", "secret123", users.RoleViewer)

		sessionValue := testsupport.LoginTestUser(t, app, "viewer@example.com", "secret123")

		resp := getStats(t, app, "", sessionValue)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		var respBody map[string]interface{}
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &respBody))
		assert.Equal(t, "FORBIDDEN", respBody["code"])
	})

	t.Run("rejects an unknown range", func(t *testing.T) {
		app, dbManager := newAuthApp(t)
		testsupport.CreateTestUserForAuth(t, dbManager.GetConnection(), "admin@example.com", "secret123")

		sessionValue := testsupport.LoginTestUser(t, app, "admin@example.com", "secret123")

		resp := getStats(t, app, "?range=yesteryear", sessionValue)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("accepts a custom date window", func(t *testing.T) {
		app, dbManager := newAuthApp(t)
		testsupport.CreateTestUserForAuth(t, dbManager.GetConnection(), "admin@example.com", "secret123")
		seedStatsSession(t, dbManager, "visitor-a", 2*time.Hour)

		sessionValue := testsupport.LoginTestUser(t, app, "admin@example.com", "secret123")

		from := time.Now().UTC().AddDate(0, 0, -3).Format("2006-01-02")
		to := time.Now().UTC().Format("2006-01-02")
		resp := getStats(t, app, fmt.Sprintf("?from=%s&to=%s", from, to), sessionValue)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("blocks requests while setup is pending", func(t *testing.T) {
		app, _ := newAuthApp(t)

		resp := getStats(t, app, "", "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		var respBody map[string]interface{}
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &respBody))
		assert.Equal(t, "SETUP_REQUIRED", respBody["code"])
	})

	t.Run("rejects an unauthenticated request", func(t *testing.T) {
		app, dbManager := newAuthApp(t)
		testsupport.CreateTestUserForAuth(t, dbManager.GetConnection(), "admin@example.com", "secret123")

		resp := getStats(t, app, "", "")
		assert.NotEqual(t, http.StatusOK, resp.StatusCode)
	})
}
