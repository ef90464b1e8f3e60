// api/models/event.go
package models

import (
	"fmt"
	"time"
)

// EventType discriminates the variants of InteractionEvent.
type EventType string

const (
	EventPageView   EventType = "page_view"
	EventClick      EventType = "click"
	EventScroll     EventType = "scroll"
	EventNavigation EventType = "navigation"
	EventConversion EventType = "conversion"
)

// maxClickTextLen caps the captured text snippet of a clicked element.
const maxClickTextLen = 50

// Position is a pixel coordinate on the page, used for click events and for
// heatmap rendering.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// InteractionEvent represents a single recorded interaction. The Type field
// selects which of the variant payload fields are meaningful; events are
// immutable once constructed and should only be built through the typed
// constructors below, which reject missing required fields.
type InteractionEvent struct {
	EventID   string    `json:"eventId"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`

	// click payload
	Position  *Position `json:"position,omitempty"`
	Element   string    `json:"element,omitempty"`
	ElementID string    `json:"elementId,omitempty"`
	Classes   string    `json:"classes,omitempty"`
	Text      string    `json:"text,omitempty"`

	// scroll payload
	ScrollDepth int `json:"scrollDepth,omitempty"`

	// conversion payload
	Form string `json:"form,omitempty"`
}

// EventMeta carries the fields common to every event variant.
type EventMeta struct {
	Timestamp time.Time
	URL       string
	SessionID string
	UserID    string
}

func (m EventMeta) validate() error {
	if m.URL == "" {
		return fmt.Errorf("event is missing a url")
	}
	if m.SessionID == "" {
		return fmt.Errorf("event is missing a session id")
	}
	if m.UserID == "" {
		return fmt.Errorf("event is missing a user id")
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("event is missing a timestamp")
	}
	return nil
}

// NewClickEvent builds a click event from the clicked element's metadata and
// the pointer position. The captured text snippet is truncated to 50
// characters, matching what the page snippet collects.
func NewClickEvent(meta EventMeta, pos Position, element, elementID, classes, text string) (InteractionEvent, error) {
	if err := meta.validate(); err != nil {
		return InteractionEvent{}, err
	}
	if element == "" {
		return InteractionEvent{}, fmt.Errorf("click event is missing the target element tag")
	}
	if len(text) > maxClickTextLen {
		text = text[:maxClickTextLen]
	}
	return InteractionEvent{
		Type:      EventClick,
		Timestamp: meta.Timestamp,
		URL:       meta.URL,
		SessionID: meta.SessionID,
		UserID:    meta.UserID,
		Position:  &Position{X: pos.X, Y: pos.Y},
		Element:   element,
		ElementID: elementID,
		Classes:   classes,
		Text:      text,
	}, nil
}

// NewScrollEvent builds a scroll-depth event. Percent must be in (0,100].
func NewScrollEvent(meta EventMeta, percent int) (InteractionEvent, error) {
	if err := meta.validate(); err != nil {
		return InteractionEvent{}, err
	}
	if percent <= 0 || percent > 100 {
		return InteractionEvent{}, fmt.Errorf("scroll depth %d%% is out of range", percent)
	}
	return InteractionEvent{
		Type:        EventScroll,
		Timestamp:   meta.Timestamp,
		URL:         meta.URL,
		SessionID:   meta.SessionID,
		UserID:      meta.UserID,
		ScrollDepth: percent,
	}, nil
}

// NewConversionEvent builds a conversion event for a submitted form.
func NewConversionEvent(meta EventMeta, formID string) (InteractionEvent, error) {
	if err := meta.validate(); err != nil {
		return InteractionEvent{}, err
	}
	if formID == "" {
		return InteractionEvent{}, fmt.Errorf("conversion event is missing the form id")
	}
	return InteractionEvent{
		Type:      EventConversion,
		Timestamp: meta.Timestamp,
		URL:       meta.URL,
		SessionID: meta.SessionID,
		UserID:    meta.UserID,
		Form:      formID,
	}, nil
}

// ElementKey is the grouping key used by report aggregation: the element tag
// suffixed with "#<id>" when the clicked element carried an id.
func (e InteractionEvent) ElementKey() string {
	if e.ElementID != "" {
		return e.Element + "#" + e.ElementID
	}
	return e.Element
}
