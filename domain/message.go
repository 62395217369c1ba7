// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable once built and only their view ages.
package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"ai-live-chat/errors"
)

const (
	MessagesCollection = "messages"
	PresenceCollection = "presence"

	DefaultTTL       = 10 * time.Second
	MaxMessageLength = 500
)

// Message represents an immutable chat event.
type Message struct {
	ID         string // assigned by the store
	Text       string
	AuthorName string
	AuthorID   string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// NewMessage stamps a message at now. A non positive ttl falls back to DefaultTTL
// so ExpiresAt is always after CreatedAt.
func NewMessage(text string, author Identity, now time.Time, ttl time.Duration) Message {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Message{
		Text:       text,
		AuthorName: author.DisplayName,
		AuthorID:   author.UserID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
}

func (m Message) IsLive(now time.Time) bool {
	return now.Before(m.ExpiresAt)
}

// Remaining is the time left before expiry, never negative.
func (m Message) Remaining(now time.Time) time.Duration {
	return max(m.ExpiresAt.Sub(now), 0)
}

// RemainingSeconds rounds up so a message shows 1 until its last instant.
func (m Message) RemainingSeconds(now time.Time) int {
	return int(math.Ceil(m.Remaining(now).Seconds()))
}

// Progress is the share of the lifetime left, between 0 and 1.
func (m Message) Progress(now time.Time) float64 {
	total := m.ExpiresAt.Sub(m.CreatedAt)
	if total <= 0 {
		return 0
	}
	return float64(m.Remaining(now)) / float64(total)
}

// Before is the display order: createdAt, then the store id.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// messageRecord is the stored shape, instants in unix milliseconds.
type messageRecord struct {
	Text      string `json:"text"`
	Username  string `json:"username"`
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
	ExpiresAt int64  `json:"expiresAt"`
}

func EncodeMessage(m Message) ([]byte, error) {
	return json.Marshal(messageRecord{
		Text:      m.Text,
		Username:  m.AuthorName,
		UserID:    m.AuthorID,
		Timestamp: m.CreatedAt.UnixMilli(),
		ExpiresAt: m.ExpiresAt.UnixMilli(),
	})
}

// DecodeMessage rebuilds a message from its stored record. Records without
// a valid lifetime are refused with ErrInvalidPayload.
func DecodeMessage(id string, data []byte) (Message, error) {
	var r messageRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return Message{}, fmt.Errorf("%w: message %s: %v", errors.ErrInvalidPayload, id, err)
	}
	if r.ExpiresAt <= r.Timestamp {
		return Message{}, fmt.Errorf("%w: message %s expires before creation", errors.ErrInvalidPayload, id)
	}
	return Message{
		ID:         id,
		Text:       r.Text,
		AuthorName: r.Username,
		AuthorID:   r.UserID,
		CreatedAt:  time.UnixMilli(r.Timestamp),
		ExpiresAt:  time.UnixMilli(r.ExpiresAt),
	}, nil
}

// LiveSet is the ordered view of live messages at instant At.
type LiveSet struct {
	At       time.Time
	Messages []Message
}

// NewLiveSet keeps what is live at now and sorts it by (CreatedAt, ID).
func NewLiveSet(now time.Time, messages []Message) LiveSet {
	live := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.IsLive(now) {
			live = append(live, m)
		}
	}
	sort.Slice(live, func(i, j int) bool { return live[i].Before(live[j]) })
	return LiveSet{At: now, Messages: live}
}

func (l LiveSet) Len() int { return len(l.Messages) }

func (l LiveSet) Contains(id string) bool {
	for _, m := range l.Messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

// IDs lists message ids in display order.
func (l LiveSet) IDs() []string {
	ids := make([]string, len(l.Messages))
	for i, m := range l.Messages {
		ids[i] = m.ID
	}
	return ids
}
