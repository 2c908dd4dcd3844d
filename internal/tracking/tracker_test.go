package tracking_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagetrail/internal/testsupport"
	"pagetrail/internal/tracking"
	"pagetrail/internal/visitors"
)

const chromeOnWindows = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

func startTestSession(t *testing.T, dbManager *testsupport.TestDBManager, overrides func(*tracking.StartSessionInput)) *tracking.VisitorSession {
	t.Helper()

	input := &tracking.StartSessionInput{
		VisitorID:    visitors.NewVisitorID(),
		SessionID:    visitors.NewSessionID(),
		IsNewVisitor: true,
		EntryPage:    "/posts/hello-world",
		UserAgent:    chromeOnWindows,
		IPAddress:    "203.0.113.10",
	}
	if overrides != nil {
		overrides(input)
	}

	session, err := tracking.StartSession(dbManager, testsupport.GetLogger(), input)
	require.NoError(t, err)
	return session
}

func TestStartSessionClassifiesDimensions(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)

	session := startTestSession(t, dbManager, func(in *tracking.StartSessionInput) {
		in.Referrer = "https://www.google.com/search?q=pagetrail"
	})

	assert.Equal(t, "desktop", session.DeviceType)
	assert.Equal(t, "Chrome", session.Browser)
	assert.Equal(t, "Windows", session.OperatingSystem)
	assert.Equal(t, "organic", session.TrafficSource)
	assert.Equal(t, "www.google.com", session.Referrer)
	assert.True(t, session.IsActive)
	assert.True(t, session.Bounced)
	assert.Equal(t, 0, session.PageViews)
	assert.Equal(t, "/posts/hello-world", session.EntryPage)
	assert.Equal(t, "/posts/hello-world", session.ExitPage)
}

func TestStartSessionRequiresIdentifiers(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)

	_, err := tracking.StartSession(dbManager, testsupport.GetLogger(), &tracking.StartSessionInput{
		SessionID: visitors.NewSessionID(),
	})
	assert.Error(t, err)

	_, err = tracking.StartSession(dbManager, testsupport.GetLogger(), &tracking.StartSessionInput{
		VisitorID: visitors.NewVisitorID(),
	})
	assert.Error(t, err)
}

func TestStartSessionReplacesActiveSessionWithSameID(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)

	first := startTestSession(t, dbManager, nil)
	second := startTestSession(t, dbManager, func(in *tracking.StartSessionInput) {
		in.VisitorID = first.VisitorID
		in.SessionID = first.SessionID
		in.EntryPage = "/about"
	})
	assert.Equal(t, first.SessionID, second.SessionID)

	var count int64
	err := dbManager.GetConnection().
		Model(&tracking.VisitorSession{}).
		Where("session_id = ? AND is_active = ?", first.SessionID, true).
		Count(&count).Error
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	active, err := tracking.FindActiveSession(dbManager.GetConnection(), first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "/about", active.EntryPage)
	assert.Equal(t, 0, active.PageViews)
}

func TestRecordPageViewFlipsBounceOnSecondView(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)
	session := startTestSession(t, dbManager, nil)

	updated, err := tracking.RecordPageView(dbManager, testsupport.GetLogger(), &tracking.PageViewInput{
		SessionID: session.SessionID,
		Path:      "/posts/hello-world",
		Title:     "Hello World",
		PostSlug:  "hello-world",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.PageViews)
	assert.True(t, updated.Bounced)

	updated, err = tracking.RecordPageView(dbManager, testsupport.GetLogger(), &tracking.PageViewInput{
		SessionID: session.SessionID,
		Path:      "/posts/second-post",
		Title:     "Second Post",
		PostSlug:  "second-post",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.PageViews)
	assert.False(t, updated.Bounced)
	assert.Equal(t, "/posts/second-post", updated.ExitPage)
}

func TestRecordPageViewConcurrentOnOneSession(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)
	session := startTestSession(t, dbManager, nil)

	const views = 8
	errs := make(chan error, views)
	var wg sync.WaitGroup
	for i := 0; i < views; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := tracking.RecordPageView(dbManager, testsupport.GetLogger(), &tracking.PageViewInput{
				SessionID: session.SessionID,
				Path:      fmt.Sprintf("/posts/post-%d", n),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// Every view row lands; the session counters race between the read
	// and the write, so the count may trail the number of views but must
	// stay within them.
	var viewCount int64
	require.NoError(t, dbManager.GetConnection().
		Model(&tracking.PageView{}).
		Where("session_id = ?", session.SessionID).
		Count(&viewCount).Error)
	assert.Equal(t, int64(views), viewCount)

	var stored tracking.VisitorSession
	require.NoError(t, dbManager.GetConnection().
		Where("session_id = ?", session.SessionID).
		First(&stored).Error)
	assert.GreaterOrEqual(t, stored.PageViews, 1)
	assert.LessOrEqual(t, stored.PageViews, views)
}

func TestRecordPageViewSetsInternalReferrer(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)
	session := startTestSession(t, dbManager, nil)

	_, err := tracking.RecordPageView(dbManager, testsupport.GetLogger(), &tracking.PageViewInput{
		SessionID: session.SessionID,
		Path:      "/",
	})
	require.NoError(t, err)

	_, err = tracking.RecordPageView(dbManager, testsupport.GetLogger(), &tracking.PageViewInput{
		SessionID: session.SessionID,
		Path:      "/posts/hello-world",
	})
	require.NoError(t, err)

	var views []tracking.PageView
	err = dbManager.GetConnection().
		Where("session_id = ?", session.SessionID).
		Order("id ASC").
		Find(&views).Error
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Empty(t, views[0].InternalReferrer)
	assert.Equal(t, "/", views[1].InternalReferrer)
}

func TestRecordPageViewWithoutSession(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)

	_, err := tracking.RecordPageView(dbManager, testsupport.GetLogger(), &tracking.PageViewInput{
		SessionID: visitors.NewSessionID(),
		Path:      "/",
	})
	assert.ErrorIs(t, err, tracking.ErrNoActiveSession)
}

func TestRecordPageExitBackfillsLatestView(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)
	session := startTestSession(t, dbManager, nil)

	_, err := tracking.RecordPageView(dbManager, testsupport.GetLogger(), &tracking.PageViewInput{
		SessionID: session.SessionID,
		Path:      "/posts/hello-world",
	})
	require.NoError(t, err)

	err = tracking.RecordPageExit(dbManager, testsupport.GetLogger(), &tracking.PageExitInput{
		SessionID:   session.SessionID,
		Path:        "/posts/hello-world",
		TimeOnPage:  42,
		ScrollDepth: 85,
	})
	require.NoError(t, err)

	var view tracking.PageView
	err = dbManager.GetConnection().
		Where("session_id = ? AND path = ?", session.SessionID, "/posts/hello-world").
		First(&view).Error
	require.NoError(t, err)
	assert.Equal(t, 42, view.TimeOnPage)
	assert.Equal(t, 85, view.ScrollDepth)
}

func TestRecordPageExitClampsScrollDepth(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)
	session := startTestSession(t, dbManager, nil)

	_, err := tracking.RecordPageView(dbManager, testsupport.GetLogger(), &tracking.PageViewInput{
		SessionID: session.SessionID,
		Path:      "/",
	})
	require.NoError(t, err)

	err = tracking.RecordPageExit(dbManager, testsupport.GetLogger(), &tracking.PageExitInput{
		SessionID:   session.SessionID,
		Path:        "/",
		TimeOnPage:  -5,
		ScrollDepth: 180,
	})
	require.NoError(t, err)

	var view tracking.PageView
	err = dbManager.GetConnection().
		Where("session_id = ?", session.SessionID).
		First(&view).Error
	require.NoError(t, err)
	assert.Equal(t, 0, view.TimeOnPage)
	assert.Equal(t, 100, view.ScrollDepth)
}

func TestRecordPageExitWithoutMatchingViewIsSilent(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)
	session := startTestSession(t, dbManager, nil)

	err := tracking.RecordPageExit(dbManager, testsupport.GetLogger(), &tracking.PageExitInput{
		SessionID:  session.SessionID,
		Path:       "/never-viewed",
		TimeOnPage: 10,
	})
	assert.NoError(t, err)
}

func TestEndSessionSetsDurationAndDeactivates(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)
	session := startTestSession(t, dbManager, nil)

	err := tracking.EndSession(dbManager, testsupport.GetLogger(), session.SessionID)
	require.NoError(t, err)

	var stored tracking.VisitorSession
	err = dbManager.GetConnection().
		Where("session_id = ?", session.SessionID).
		First(&stored).Error
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.True(t, stored.EndTime.Valid)
	assert.GreaterOrEqual(t, stored.Duration, 0)

	_, err = tracking.FindActiveSession(dbManager.GetConnection(), session.SessionID)
	assert.ErrorIs(t, err, tracking.ErrNoActiveSession)
}

func TestEndSessionIsIdempotent(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)
	session := startTestSession(t, dbManager, nil)

	require.NoError(t, tracking.EndSession(dbManager, testsupport.GetLogger(), session.SessionID))
	assert.NoError(t, tracking.EndSession(dbManager, testsupport.GetLogger(), session.SessionID))
	assert.NoError(t, tracking.EndSession(dbManager, testsupport.GetLogger(), visitors.NewSessionID()))
}

func TestCloseIdleSessions(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)

	stale := startTestSession(t, dbManager, nil)
	fresh := startTestSession(t, dbManager, nil)

	// Age the first session beyond the timeout.
	staleTime := time.Now().UTC().Add(-2 * time.Hour)
	err := dbManager.GetConnection().
		Model(&tracking.VisitorSession{}).
		Where("session_id = ?", stale.SessionID).
		Updates(map[string]interface{}{
			"start_time": staleTime,
			"updated_at": staleTime,
		}).Error
	require.NoError(t, err)

	closed, err := tracking.CloseIdleSessions(dbManager, testsupport.GetLogger(), 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed)

	_, err = tracking.FindActiveSession(dbManager.GetConnection(), stale.SessionID)
	assert.ErrorIs(t, err, tracking.ErrNoActiveSession)

	_, err = tracking.FindActiveSession(dbManager.GetConnection(), fresh.SessionID)
	assert.NoError(t, err)
}

func TestCountOnlineSessions(t *testing.T) {
	dbManager := testsupport.SetupTestDB(t)

	active := startTestSession(t, dbManager, nil)
	startTestSession(t, dbManager, func(in *tracking.StartSessionInput) {
		// Same visitor, second tab: each open session counts.
		in.VisitorID = active.VisitorID
	})
	startTestSession(t, dbManager, nil)
	ended := startTestSession(t, dbManager, nil)
	require.NoError(t, tracking.EndSession(dbManager, testsupport.GetLogger(), ended.SessionID))

	// Active but silent for longer than the online window.
	stale := startTestSession(t, dbManager, nil)
	staleTime := time.Now().UTC().Add(-10 * time.Minute)
	require.NoError(t, dbManager.GetConnection().
		Model(&tracking.VisitorSession{}).
		Where("session_id = ?", stale.SessionID).
		UpdateColumn("updated_at", staleTime).Error)

	count, err := tracking.CountOnlineSessions(dbManager.GetConnection())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
