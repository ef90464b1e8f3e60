// api/store/analytics_store.go
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"sitepulse/api/models"
)

// Forwarder is the outbound delivery path for captured events. Send is
// fire-and-forget: it must return immediately and report nothing back to the
// store. EventsSent exposes the running success counter for reports.
type Forwarder interface {
	Send(eventName string, params map[string]any)
	EventsSent() int
}

// AnalyticsStore is the durable record of interaction events. It keeps two
// overlapping structures: a flat chronological click log for fast flat
// queries, and a per-session index of page views and events. Every click
// appended to the flat log is also appended to its owning session, and both
// structures are written through to the KV substrate on every mutation.
//
// Local persistence always completes before the corresponding forward is
// scheduled, so the local record survives even if the network call never
// happens.
type AnalyticsStore struct {
	mu  sync.Mutex
	kv  KV
	fwd Forwarder

	clicks   []models.InteractionEvent
	sessions map[string]*models.Session

	userID         string
	currentSession string
	scrollRecorded bool

	now func() time.Time
}

// NewAnalyticsStore hydrates the store from the KV substrate. Corrupted
// persisted structures are logged and replaced with empty ones rather than
// failing: losing telemetry is preferable to refusing to start.
func NewAnalyticsStore(kv KV, fwd Forwarder) (*AnalyticsStore, error) {
	identity := NewIdentity(kv)
	userID, err := identity.UserID()
	if err != nil {
		return nil, err
	}
	sessionID, err := identity.SessionID()
	if err != nil {
		return nil, err
	}

	s := &AnalyticsStore{
		kv:             kv,
		fwd:            fwd,
		clicks:         []models.InteractionEvent{},
		sessions:       map[string]*models.Session{},
		userID:         userID,
		currentSession: sessionID,
		now:            time.Now,
	}

	if raw, ok, err := kv.Get(keyClicks); err != nil {
		return nil, fmt.Errorf("failed to load click log: %w", err)
	} else if ok {
		if err := json.Unmarshal([]byte(raw), &s.clicks); err != nil {
			log.Printf("WARNING: corrupted click log in storage, starting empty: %v", err)
			s.clicks = []models.InteractionEvent{}
		}
	}

	if raw, ok, err := kv.Get(keySessions); err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	} else if ok {
		if err := json.Unmarshal([]byte(raw), &s.sessions); err != nil {
			log.Printf("WARNING: corrupted session index in storage, starting empty: %v", err)
			s.sessions = map[string]*models.Session{}
		}
	}

	// Re-arm the scroll latch from the persisted record so the one-scroll-
	// per-session rule holds across restarts.
	if sess, ok := s.sessions[sessionID]; ok {
		for _, ev := range sess.Events {
			if ev.Type == models.EventScroll {
				s.scrollRecorded = true
				break
			}
		}
	}

	log.Printf("Analytics store hydrated: %d clicks, %d sessions, user=%s session=%s",
		len(s.clicks), len(s.sessions), userID, sessionID)
	return s, nil
}

// UserID returns the durable anonymous visitor id assigned to this store.
func (s *AnalyticsStore) UserID() string { return s.userID }

// SessionID returns the current session id.
func (s *AnalyticsStore) SessionID() string { return s.currentSession }

// RecordPageView appends a page view to the current session, creating the
// session record on its first page view, then forwards a page_view event.
func (s *AnalyticsStore) RecordPageView(pageURL, title, referrer, device string) error {
	s.mu.Lock()
	now := s.now()
	view := models.PageView{
		Timestamp: now,
		URL:       pageURL,
		Referrer:  referrer,
		SessionID: s.currentSession,
		UserID:    s.userID,
		Device:    device,
	}

	sess, ok := s.sessions[s.currentSession]
	if !ok {
		sess = &models.Session{
			SessionID: s.currentSession,
			StartTime: now,
			PageViews: []models.PageView{},
			Events:    []models.InteractionEvent{},
		}
		s.sessions[s.currentSession] = sess
	}
	sess.PageViews = append(sess.PageViews, view)

	err := s.persistSessions()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.fwd.Send("page_view", map[string]any{
		"page_title":    title,
		"page_location": pageURL,
		"page_referrer": referrer,
	})
	return nil
}

// RecordClick appends a click event to both the flat click log and the
// owning session's event list, persists both structures, then forwards a
// click event.
func (s *AnalyticsStore) RecordClick(pageURL string, pos models.Position, element, elementID, classes, text string) error {
	s.mu.Lock()
	event, err := models.NewClickEvent(s.meta(pageURL), pos, element, elementID, classes, text)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	event.EventID = uuid.New().String()

	s.clicks = append(s.clicks, event)
	if err := s.persistClicks(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.appendSessionEvent(event)
	err = s.persistSessions()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.fwd.Send("click", map[string]any{
		"element":         event.Element,
		"element_id":      event.ElementID,
		"element_classes": event.Classes,
		"page_path":       pagePath(pageURL),
		"page_location":   pageURL,
	})
	return nil
}

// RecordScroll records the first crossing of the 70% scroll-depth threshold
// for the session. Later crossings are ignored: the latch only resets when a
// new session begins.
func (s *AnalyticsStore) RecordScroll(pageURL string, percent int) error {
	s.mu.Lock()
	if percent <= 70 || s.scrollRecorded {
		s.mu.Unlock()
		return nil
	}

	event, err := models.NewScrollEvent(s.meta(pageURL), percent)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	event.EventID = uuid.New().String()
	s.scrollRecorded = true

	s.appendSessionEvent(event)
	err = s.persistSessions()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.fwd.Send("scroll", map[string]any{
		"scroll_depth":  fmt.Sprintf("%d%%", percent),
		"page_location": pageURL,
	})
	return nil
}

// RecordConversion appends a conversion event to the current session and
// forwards a form_submit event.
func (s *AnalyticsStore) RecordConversion(pageURL, formID string) error {
	s.mu.Lock()
	event, err := models.NewConversionEvent(s.meta(pageURL), formID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	event.EventID = uuid.New().String()

	s.appendSessionEvent(event)
	err = s.persistSessions()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.fwd.Send("form_submit", map[string]any{
		"form_id":       formID,
		"page_location": pageURL,
	})
	return nil
}

// RecordNavigation forwards a navigation event without appending anything to
// the local record. The asymmetry is deliberate: in-page navigation is only
// interesting to the external collector.
func (s *AnalyticsStore) RecordNavigation(pageURL, target string) {
	s.fwd.Send("navigation", map[string]any{
		"menu_item":     target,
		"page_location": pageURL,
	})
}

// meta builds the common event fields for the current session. Callers must
// hold s.mu.
func (s *AnalyticsStore) meta(pageURL string) models.EventMeta {
	return models.EventMeta{
		Timestamp: s.now(),
		URL:       pageURL,
		SessionID: s.currentSession,
		UserID:    s.userID,
	}
}

// appendSessionEvent appends an event to the current session, creating the
// session record if no page view has arrived yet. Callers must hold s.mu.
func (s *AnalyticsStore) appendSessionEvent(event models.InteractionEvent) {
	sess, ok := s.sessions[s.currentSession]
	if !ok {
		sess = &models.Session{
			SessionID: s.currentSession,
			StartTime: s.now(),
			PageViews: []models.PageView{},
			Events:    []models.InteractionEvent{},
		}
		s.sessions[s.currentSession] = sess
	}
	sess.Events = append(sess.Events, event)
}

func (s *AnalyticsStore) persistClicks() error {
	raw, err := json.Marshal(s.clicks)
	if err != nil {
		return fmt.Errorf("failed to serialize click log: %w", err)
	}
	if err := s.kv.Set(keyClicks, string(raw)); err != nil {
		return fmt.Errorf("failed to persist click log: %w", err)
	}
	return nil
}

func (s *AnalyticsStore) persistSessions() error {
	raw, err := json.Marshal(s.sessions)
	if err != nil {
		return fmt.Errorf("failed to serialize sessions: %w", err)
	}
	if err := s.kv.Set(keySessions, string(raw)); err != nil {
		return fmt.Errorf("failed to persist sessions: %w", err)
	}
	return nil
}

// pagePath reduces a full page URL to its path for forwarded click events,
// falling back to the raw string when it does not parse.
func pagePath(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Path == "" {
		return pageURL
	}
	return u.Path
}
