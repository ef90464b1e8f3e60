// api/models/session.go
package models

import (
	"math"
	"time"
)

// PageView records a single page load inside a session.
type PageView struct {
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	Referrer  string    `json:"referrer"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Device    string    `json:"device"`
}

// Session is a logical visit. It is created lazily on the first page view of
// a session id and grows by appending page views and interaction events; it
// is never deleted by this system.
type Session struct {
	SessionID string             `json:"sessionId"`
	StartTime time.Time          `json:"startTime"`
	PageViews []PageView         `json:"pageViews"`
	Events    []InteractionEvent `json:"events"`
}

// GAConfig configures the outbound Google Analytics forwarder. Forwarding is
// suppressed while Enabled is false or either credential is empty.
type GAConfig struct {
	MeasurementID string `json:"measurementId"`
	APISecret     string `json:"apiSecret"`
	Enabled       bool   `json:"enabled"`
}

// Report is the ephemeral aggregate computed over the event store for a date
// range. It is never persisted.
type Report struct {
	TotalClicks    int            `json:"totalClicks"`
	UniqueVisitors int            `json:"uniqueVisitors"`
	Pages          map[string]int `json:"pages"`
	Elements       map[string]int `json:"elements"`
	Sessions       int            `json:"sessions"`
	Conversions    int            `json:"conversions"`
	GAEventsSent   int            `json:"gaEventsSent"`
}

// ConversionRate returns the derived conversion percentage, rounded to the
// nearest integer, or 0 when no sessions exist.
func (r Report) ConversionRate() int {
	if r.Sessions == 0 {
		return 0
	}
	return int(math.Round(float64(r.Conversions) / float64(r.Sessions) * 100))
}
