// Package domain contains core concepts of the chat system.
// This file defines Participant identities and presence records.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"ai-live-chat/errors"
)

// IdentityKey is the fixed key the identity is persisted under.
const IdentityKey = "chatUser"

// Identity is the disposable author tag of a session.
type Identity struct {
	UserID      string `json:"id"`
	DisplayName string `json:"username"`
}

func (i Identity) IsZero() bool {
	return i.UserID == "" || i.DisplayName == ""
}

func EncodeIdentity(i Identity) ([]byte, error) {
	return json.Marshal(i)
}

func DecodeIdentity(data []byte) (Identity, error) {
	var i Identity
	if err := json.Unmarshal(data, &i); err != nil {
		return Identity{}, fmt.Errorf("%w: identity: %v", errors.ErrInvalidPayload, err)
	}
	if i.IsZero() {
		return Identity{}, fmt.Errorf("%w: identity is incomplete", errors.ErrInvalidPayload)
	}
	return i, nil
}

// PresenceRecord marks a connected session.
type PresenceRecord struct {
	SessionID string
	Online    bool
	JoinedAt  time.Time
	LastSeen  time.Time
}

func NewPresenceRecord(sessionID string, now time.Time) PresenceRecord {
	return PresenceRecord{SessionID: sessionID, Online: true, JoinedAt: now, LastSeen: now}
}

// IsStale reports whether the record was not refreshed within threshold.
// A zero threshold disables staleness.
func (p PresenceRecord) IsStale(now time.Time, threshold time.Duration) bool {
	if threshold <= 0 {
		return false
	}
	return now.Sub(p.LastSeen) > threshold
}

type presenceRecord struct {
	Online   bool  `json:"online"`
	JoinedAt int64 `json:"joinedAt"`
	LastSeen int64 `json:"lastSeen,omitempty"`
}

func EncodePresence(p PresenceRecord) ([]byte, error) {
	return json.Marshal(presenceRecord{
		Online:   p.Online,
		JoinedAt: p.JoinedAt.UnixMilli(),
		LastSeen: p.LastSeen.UnixMilli(),
	})
}

// DecodePresence reads a record. Records written without lastSeen are
// considered seen when they joined.
func DecodePresence(sessionID string, data []byte) (PresenceRecord, error) {
	var r presenceRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return PresenceRecord{}, fmt.Errorf("%w: presence %s: %v", errors.ErrInvalidPayload, sessionID, err)
	}
	lastSeen := r.LastSeen
	if lastSeen == 0 {
		lastSeen = r.JoinedAt
	}
	return PresenceRecord{
		SessionID: sessionID,
		Online:    r.Online,
		JoinedAt:  time.UnixMilli(r.JoinedAt),
		LastSeen:  time.UnixMilli(lastSeen),
	}, nil
}
