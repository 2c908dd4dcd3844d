// Package tracking owns the visitor session and page view records and
// their lifecycle: opening sessions, counting page views, backfilling
// engagement on exit, and closing sessions explicitly or on timeout.
package tracking

import (
	"database/sql"
	"time"
)

// VisitorSession is one visit: everything between a session_start and a
// session_end (or the inactivity timeout). Dimension columns are set once
// at session start from the request's user agent, referrer, and IP.
type VisitorSession struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VisitorID string    `gorm:"index;size:64;not null" json:"visitorId"`
	SessionID string    `gorm:"uniqueIndex;size:36;not null" json:"sessionId"`
	StartTime time.Time `gorm:"index;not null" json:"startTime"`
	EndTime   sql.NullTime `json:"endTime"`

	// Counters maintained on every page view. A session bounces until it
	// records a second page view.
	PageViews int  `gorm:"not null;default:0" json:"pageViews"`
	Bounced   bool `gorm:"not null;default:true" json:"bounced"`
	Duration  int  `gorm:"not null;default:0" json:"duration"` // seconds

	TrafficSource string `gorm:"index;size:16" json:"trafficSource"`
	Referrer      string `json:"referrer"`
	UTMSource     string `gorm:"size:128" json:"utmSource"`
	UTMMedium     string `gorm:"size:128" json:"utmMedium"`
	UTMCampaign   string `gorm:"size:128" json:"utmCampaign"`
	UTMTerm       string `gorm:"size:128" json:"utmTerm"`
	UTMContent    string `gorm:"size:128" json:"utmContent"`

	Country string `gorm:"index;size:64" json:"country"`
	Region  string `gorm:"size:128" json:"region"`
	City    string `gorm:"size:128" json:"city"`

	DeviceType      string `gorm:"index;size:16" json:"deviceType"`
	Browser         string `gorm:"index;size:32" json:"browser"`
	OperatingSystem string `gorm:"size:32" json:"operatingSystem"`

	EntryPage string `gorm:"size:512" json:"entryPage"`
	ExitPage  string `gorm:"size:512" json:"exitPage"`

	IsNewVisitor bool `gorm:"not null;default:false" json:"isNewVisitor"`
	IsActive     bool `gorm:"index;not null;default:true" json:"isActive"`

	CreatedAt time.Time `gorm:"index;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"index;autoUpdateTime" json:"updatedAt"`
}

// PageView is a single page load inside a session. Time on page and
// scroll depth start at zero and are backfilled once by the page_exit
// beacon; a missing beacon leaves them at zero.
type PageView struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	VisitorID        string `gorm:"index;size:64;not null" json:"visitorId"`
	SessionID        string `gorm:"index;size:36;not null" json:"sessionId"`
	VisitorSessionID uint   `gorm:"index" json:"visitorSessionId"`

	Path     string `gorm:"index;size:512;not null" json:"path"`
	Title    string `gorm:"size:512" json:"title"`
	PostSlug string `gorm:"index;size:256" json:"postSlug"`

	// Path of the previous page in the same session, empty for the first view.
	InternalReferrer string `gorm:"size:512" json:"internalReferrer"`

	TimeOnPage  int `gorm:"not null;default:0" json:"timeOnPage"` // seconds
	ScrollDepth int `gorm:"not null;default:0" json:"scrollDepth"` // percent

	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}
