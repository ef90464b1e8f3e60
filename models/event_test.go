package models

import (
	"strings"
	"testing"
	"time"
)

func validMeta() EventMeta {
	return EventMeta{
		Timestamp: time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
		URL:       "https://example.com/",
		SessionID: "session-1",
		UserID:    "user-1",
	}
}

func TestEventConstructorsRejectMissingFields(t *testing.T) {
	t.Parallel()

	t.Run("missing common fields", func(t *testing.T) {
		t.Parallel()

		broken := validMeta()
		broken.SessionID = ""
		if _, err := NewClickEvent(broken, Position{}, "DIV", "", "", ""); err == nil {
			t.Error("click event accepted an empty session id")
		}

		broken = validMeta()
		broken.URL = ""
		if _, err := NewConversionEvent(broken, "feedback-form"); err == nil {
			t.Error("conversion event accepted an empty url")
		}
	})

	t.Run("missing variant fields", func(t *testing.T) {
		t.Parallel()

		if _, err := NewClickEvent(validMeta(), Position{}, "", "", "", ""); err == nil {
			t.Error("click event accepted an empty element tag")
		}
		if _, err := NewConversionEvent(validMeta(), ""); err == nil {
			t.Error("conversion event accepted an empty form id")
		}
		if _, err := NewScrollEvent(validMeta(), 0); err == nil {
			t.Error("scroll event accepted a zero depth")
		}
		if _, err := NewScrollEvent(validMeta(), 140); err == nil {
			t.Error("scroll event accepted a depth above 100")
		}
	})
}

func TestClickEventTruncatesText(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 120)
	event, err := NewClickEvent(validMeta(), Position{X: 1, Y: 2}, "P", "", "", long)
	if err != nil {
		t.Fatalf("failed to build click event: %v", err)
	}
	if len(event.Text) != 50 {
		t.Errorf("text length = %d, want 50", len(event.Text))
	}
}

func TestElementKey(t *testing.T) {
	t.Parallel()

	withID, err := NewClickEvent(validMeta(), Position{}, "BUTTON", "submit-btn", "", "")
	if err != nil {
		t.Fatalf("failed to build click event: %v", err)
	}
	if got := withID.ElementKey(); got != "BUTTON#submit-btn" {
		t.Errorf("element key = %q, want BUTTON#submit-btn", got)
	}

	withoutID, err := NewClickEvent(validMeta(), Position{}, "A", "", "nav-link", "")
	if err != nil {
		t.Fatalf("failed to build click event: %v", err)
	}
	if got := withoutID.ElementKey(); got != "A" {
		t.Errorf("element key = %q, want A", got)
	}
}
