package forwarder

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type memoryKV struct {
	mu sync.Mutex
	m  map[string]string
}

func newMemoryKV() *memoryKV {
	return &memoryKV{m: map[string]string{}}
}

func (kv *memoryKV) Get(key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	v, ok := kv.m[key]
	return v, ok, nil
}

func (kv *memoryKV) Set(key, value string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.m[key] = value
	return nil
}

// countingTransport counts round trips and fails them all, so any unexpected
// network attempt is both counted and harmless.
type countingTransport struct {
	calls atomic.Int64
}

func (t *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return nil, fmt.Errorf("transport disabled in test")
}

// waitFor polls until cond holds or the deadline passes. Send completes on a
// goroutine, so outcome checks have to wait for it.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

func hasEntry(f *GAForwarder, substr string) bool {
	for _, e := range f.Entries() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func TestSendSkippedWhenUnconfigured(t *testing.T) {
	t.Parallel()

	transport := &countingTransport{}
	f, err := New(newMemoryKV(), "user-1", "session-1", &http.Client{Transport: transport})
	if err != nil {
		t.Fatalf("failed to create forwarder: %v", err)
	}

	f.Send("click", map[string]any{"element": "BUTTON"})

	if n := transport.calls.Load(); n != 0 {
		t.Errorf("unconfigured Send made %d network calls, want 0", n)
	}
	if !hasEntry(f, "GA not configured - event not sent: click") {
		t.Errorf("missing not-sent diagnostic, entries: %+v", f.Entries())
	}
	if f.EventsSent() != 0 {
		t.Errorf("eventsSent = %d, want 0", f.EventsSent())
	}
}

func TestSendSkippedWhenCredentialsEmpty(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	kv.m["gaConfig"] = `{"measurementId":"","apiSecret":"","enabled":true}`

	transport := &countingTransport{}
	f, err := New(kv, "user-1", "session-1", &http.Client{Transport: transport})
	if err != nil {
		t.Fatalf("failed to create forwarder: %v", err)
	}

	f.Send("page_view", nil)

	if n := transport.calls.Load(); n != 0 {
		t.Errorf("Send with empty credentials made %d network calls, want 0", n)
	}
	if !hasEntry(f, "GA not configured") {
		t.Errorf("missing not-sent diagnostic, entries: %+v", f.Entries())
	}
}

func TestSendSuccess(t *testing.T) {
	t.Parallel()

	type received struct {
		path    string
		query   string
		payload map[string]any
	}
	var mu sync.Mutex
	var got []received

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)
		mu.Lock()
		got = append(got, received{path: r.URL.Path, query: r.URL.RawQuery, payload: payload})
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f, err := New(newMemoryKV(), "user-42", "session-7", srv.Client())
	if err != nil {
		t.Fatalf("failed to create forwarder: %v", err)
	}
	f.SetEndpoint(srv.URL)
	if err := f.SaveConfig("G-TEST", "s3cret"); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	f.Send("page_view", map[string]any{"page_location": "https://example.com/"})

	waitFor(t, func() bool { return f.EventsSent() == 1 }, "send counter to reach 1")

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("collector received %d requests, want 1", len(got))
	}
	req := got[0]
	if req.path != "/mp/collect" {
		t.Errorf("request path = %q, want /mp/collect", req.path)
	}
	if !strings.Contains(req.query, "measurement_id=G-TEST") || !strings.Contains(req.query, "api_secret=s3cret") {
		t.Errorf("credentials missing from query: %q", req.query)
	}
	if req.payload["client_id"] != "user-42" {
		t.Errorf("client_id = %v, want user-42", req.payload["client_id"])
	}
	events, ok := req.payload["events"].([]any)
	if !ok || len(events) != 1 {
		t.Fatalf("payload events malformed: %v", req.payload["events"])
	}
	event := events[0].(map[string]any)
	if event["name"] != "page_view" {
		t.Errorf("event name = %v, want page_view", event["name"])
	}
	params := event["params"].(map[string]any)
	if params["session_id"] != "session-7" {
		t.Errorf("session_id = %v, want session-7", params["session_id"])
	}
	if params["page_location"] != "https://example.com/" {
		t.Errorf("page_location = %v, want https://example.com/", params["page_location"])
	}

	if !hasEntry(f, "GA event sent: page_view") {
		t.Errorf("missing success diagnostic, entries: %+v", f.Entries())
	}
}

func TestSendCounterOnlyCountsSuccesses(t *testing.T) {
	t.Parallel()

	var status atomic.Int64
	status.Store(http.StatusNoContent)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := int(status.Load())
		w.WriteHeader(code)
		if code != http.StatusNoContent {
			fmt.Fprint(w, "quota exceeded")
		}
	}))
	defer srv.Close()

	f, err := New(newMemoryKV(), "user-1", "session-1", srv.Client())
	if err != nil {
		t.Fatalf("failed to create forwarder: %v", err)
	}
	f.SetEndpoint(srv.URL)
	if err := f.SaveConfig("G-TEST", "s3cret"); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	f.Send("click", nil)
	waitFor(t, func() bool { return f.EventsSent() == 1 }, "first send to succeed")

	status.Store(http.StatusTooManyRequests)
	f.Send("click", nil)
	waitFor(t, func() bool { return hasEntry(f, "GA error: 429") }, "error diagnostic to appear")

	if f.EventsSent() != 1 {
		t.Errorf("eventsSent = %d after an error response, want 1", f.EventsSent())
	}
	if !hasEntry(f, "quota exceeded") {
		t.Errorf("error diagnostic does not include the response body, entries: %+v", f.Entries())
	}
}

func TestSendNetworkFailure(t *testing.T) {
	t.Parallel()

	transport := &countingTransport{}
	f, err := New(newMemoryKV(), "user-1", "session-1", &http.Client{Transport: transport})
	if err != nil {
		t.Fatalf("failed to create forwarder: %v", err)
	}
	if err := f.SaveConfig("G-TEST", "s3cret"); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}

	f.Send("click", nil)
	waitFor(t, func() bool { return hasEntry(f, "GA network error") }, "network-error diagnostic to appear")

	if f.EventsSent() != 0 {
		t.Errorf("eventsSent = %d after a transport failure, want 0", f.EventsSent())
	}
}

func TestSaveConfigPersistsAndEnables(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	f, err := New(kv, "user-1", "session-1", nil)
	if err != nil {
		t.Fatalf("failed to create forwarder: %v", err)
	}
	if f.Config().Enabled {
		t.Fatalf("forwarder enabled before any config was saved")
	}

	if err := f.SaveConfig("G-ABC123", "topsecret"); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	cfg := f.Config()
	if !cfg.Enabled || cfg.MeasurementID != "G-ABC123" || cfg.APISecret != "topsecret" {
		t.Errorf("config after save = %+v", cfg)
	}

	// The saved config must survive a fresh forwarder over the same substrate.
	reopened, err := New(kv, "user-1", "session-1", nil)
	if err != nil {
		t.Fatalf("failed to reopen forwarder: %v", err)
	}
	if got := reopened.Config(); !got.Enabled || got.MeasurementID != "G-ABC123" {
		t.Errorf("persisted config = %+v", got)
	}
}

func TestCorruptConfigDisablesForwarding(t *testing.T) {
	t.Parallel()

	kv := newMemoryKV()
	kv.m["gaConfig"] = "{broken"

	f, err := New(kv, "user-1", "session-1", nil)
	if err != nil {
		t.Fatalf("corrupt config must not be fatal, got: %v", err)
	}
	if f.Config().Enabled {
		t.Errorf("forwarding enabled despite corrupt persisted config")
	}
}

func TestClearLog(t *testing.T) {
	t.Parallel()

	f, err := New(newMemoryKV(), "user-1", "session-1", nil)
	if err != nil {
		t.Fatalf("failed to create forwarder: %v", err)
	}
	f.Send("click", nil) // unconfigured: writes a diagnostic only
	if len(f.Entries()) == 0 {
		t.Fatalf("expected a diagnostic entry before clearing")
	}
	f.ClearLog()
	if got := len(f.Entries()); got != 0 {
		t.Errorf("entries after clear = %d, want 0", got)
	}
}
