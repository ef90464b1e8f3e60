// api/forwarder/forwarder.go
package forwarder

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"sitepulse/api/models"
)

// defaultEndpoint is the Google Analytics Measurement Protocol collector.
const defaultEndpoint = "https://www.google-analytics.com"

// maxLogEntries caps the in-memory diagnostic log.
const maxLogEntries = 200

const configKey = "gaConfig"

// KV is the durable substrate the forwarder persists its configuration in.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// LogEntry is one diagnostic record of a forwarding outcome.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
	Payload any       `json:"payload,omitempty"`
}

// GAForwarder delivers captured events to Google Analytics on a best-effort,
// fire-and-forget basis. Delivery outcomes are recorded in a bounded
// diagnostic log and a success counter; nothing is retried or queued, and no
// outcome is ever reported back to the caller. Telemetry loss is acceptable:
// the local event store is the source of truth.
type GAForwarder struct {
	kv        KV
	userID    string
	sessionID string
	endpoint  string
	client    *http.Client

	sent atomic.Int64

	mu      sync.Mutex
	cfg     models.GAConfig
	entries []LogEntry
}

// New loads the persisted configuration and returns a forwarder for the
// given visitor and session identity. A corrupted persisted config is
// replaced with a disabled one. A nil client falls back to
// http.DefaultClient.
func New(kv KV, userID, sessionID string, client *http.Client) (*GAForwarder, error) {
	if client == nil {
		client = http.DefaultClient
	}
	f := &GAForwarder{
		kv:        kv,
		userID:    userID,
		sessionID: sessionID,
		endpoint:  defaultEndpoint,
		client:    client,
	}

	raw, ok, err := kv.Get(configKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load GA config: %w", err)
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &f.cfg); err != nil {
			log.Printf("WARNING: corrupted GA config in storage, forwarding disabled: %v", err)
			f.cfg = models.GAConfig{}
		}
	}
	return f, nil
}

// SetEndpoint overrides the collector base URL. Intended for self-hosted
// collectors and tests.
func (f *GAForwarder) SetEndpoint(endpoint string) {
	if endpoint != "" {
		f.endpoint = endpoint
	}
}

// Config returns the current configuration.
func (f *GAForwarder) Config() models.GAConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

// SaveConfig stores new collector credentials and enables forwarding.
// Saving always enables: the dashboard has no separate on/off switch.
func (f *GAForwarder) SaveConfig(measurementID, apiSecret string) error {
	cfg := models.GAConfig{MeasurementID: measurementID, APISecret: apiSecret, Enabled: true}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize GA config: %w", err)
	}
	if err := f.kv.Set(configKey, string(raw)); err != nil {
		return fmt.Errorf("failed to persist GA config: %w", err)
	}

	f.mu.Lock()
	f.cfg = cfg
	f.mu.Unlock()
	f.logEvent("Config saved", nil)
	return nil
}

// EventsSent returns the number of events acknowledged by the collector
// since process start.
func (f *GAForwarder) EventsSent() int {
	return int(f.sent.Load())
}

// Entries returns the diagnostic log, newest first.
func (f *GAForwarder) Entries() []LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]LogEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

// ClearLog empties the diagnostic log.
func (f *GAForwarder) ClearLog() {
	f.mu.Lock()
	f.entries = nil
	f.mu.Unlock()
}

// Send forwards one event to the collector and returns immediately. When the
// configuration is absent, disabled, or incomplete, the event is skipped and
// only a diagnostic entry is written; no network attempt is made.
func (f *GAForwarder) Send(eventName string, params map[string]any) {
	f.mu.Lock()
	cfg := f.cfg
	f.mu.Unlock()

	if !cfg.Enabled || cfg.MeasurementID == "" || cfg.APISecret == "" {
		f.logEvent(fmt.Sprintf("GA not configured - event not sent: %s", eventName), params)
		return
	}

	merged := map[string]any{"session_id": f.sessionID}
	for k, v := range params {
		merged[k] = v
	}
	payload := map[string]any{
		"client_id": f.userID,
		"events": []map[string]any{
			{"name": eventName, "params": merged},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		f.logEvent(fmt.Sprintf("GA payload error: %v", err), payload)
		return
	}

	go f.post(eventName, cfg, body, payload)
}

func (f *GAForwarder) post(eventName string, cfg models.GAConfig, body []byte, payload map[string]any) {
	collectURL := fmt.Sprintf("%s/mp/collect?measurement_id=%s&api_secret=%s",
		f.endpoint, url.QueryEscape(cfg.MeasurementID), url.QueryEscape(cfg.APISecret))

	resp, err := f.client.Post(collectURL, "application/json", bytes.NewReader(body))
	if err != nil {
		f.logEvent(fmt.Sprintf("GA network error: %v", err), payload)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(resp.Body)
		f.logEvent(fmt.Sprintf("GA error: %d - %s", resp.StatusCode, string(text)), payload)
		return
	}

	f.sent.Add(1)
	f.logEvent(fmt.Sprintf("GA event sent: %s", eventName), payload)
}

// logEvent records a diagnostic entry, newest first, and mirrors it to the
// process log.
func (f *GAForwarder) logEvent(message string, payload any) {
	entry := LogEntry{Time: time.Now(), Message: message, Payload: payload}

	f.mu.Lock()
	f.entries = append([]LogEntry{entry}, f.entries...)
	if len(f.entries) > maxLogEntries {
		f.entries = f.entries[:maxLogEntries]
	}
	f.mu.Unlock()

	log.Printf("GA forwarder: %s", message)
}
