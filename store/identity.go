// api/store/identity.go
package store

import (
	"fmt"
	"math/rand"
	"time"
)

// Durable key-value store keys. These names are part of the persisted data
// contract and must not change between releases.
const (
	keyClicks   = "analyticsClicks"
	keySessions = "analyticsSessions"
	keySession  = "currentSession"
	keyUserID   = "analyticsUserId"
)

// KV is the durable key-value substrate injected into the store layer.
// Get reports presence through its second return value; Set writes the full
// value through immediately.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// Identity assigns and persists the durable anonymous visitor id and the
// session id. Both are created at most once per store: repeated calls in the
// same durable state return the same values.
type Identity struct {
	kv KV
}

func NewIdentity(kv KV) *Identity {
	return &Identity{kv: kv}
}

// UserID returns the persisted visitor id, generating and persisting
// "user-<random>" on first use. Uniqueness relies on entropy alone; a
// collision across browser profiles is accepted, not mitigated.
func (i *Identity) UserID() (string, error) {
	userID, ok, err := i.kv.Get(keyUserID)
	if err != nil {
		return "", fmt.Errorf("failed to load user id: %w", err)
	}
	if ok && userID != "" {
		return userID, nil
	}
	userID = fmt.Sprintf("user-%d", rand.Intn(1_000_000))
	if err := i.kv.Set(keyUserID, userID); err != nil {
		return "", fmt.Errorf("failed to persist user id: %w", err)
	}
	return userID, nil
}

// SessionID returns the persisted session id, generating and persisting
// "session-<epoch millis>" when none exists. Sessions never expire; the same
// id is reused until the store is cleared externally.
func (i *Identity) SessionID() (string, error) {
	sessionID, ok, err := i.kv.Get(keySession)
	if err != nil {
		return "", fmt.Errorf("failed to load session id: %w", err)
	}
	if ok && sessionID != "" {
		return sessionID, nil
	}
	sessionID = fmt.Sprintf("session-%d", time.Now().UnixMilli())
	if err := i.kv.Set(keySession, sessionID); err != nil {
		return "", fmt.Errorf("failed to persist session id: %w", err)
	}
	return sessionID, nil
}
