package main

import (
	"ai-live-chat/domain"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	req := require.New(t)
	now := time.UnixMilli(1_700_000_000_000)

	// Given a message, a presence record and an identity
	msg := domain.NewMessage("hello", domain.Identity{UserID: "u1", DisplayName: "Quokka42"}, now, domain.DefaultTTL)
	msgData, err := domain.EncodeMessage(msg)
	req.NoError(err)
	presenceData, err := domain.EncodePresence(domain.NewPresenceRecord("0f8e2a9c-1111", now))
	req.NoError(err)
	identityData, err := domain.EncodeIdentity(domain.Identity{UserID: "u1", DisplayName: "Quokka42"})
	req.NoError(err)

	// When they are described
	expiresAt := uint64(now.Add(10 * time.Second).Unix())
	msgRow := describe("messages:00000000000000000001", msgData, expiresAt, now)
	presenceRow := describe("presence:0f8e2a9c-1111", presenceData, 0, now)
	identityRow := describe("chatUser", identityData, 0, now)
	brokenRow := describe("messages:00000000000000000002", []byte("{"), 0, now)

	// Then each row names its kind
	req.Equal([]string{"messages:00000000000000000001", "message", "Quokka42", "hello", now.Format("15:04:05"), "10s"}, msgRow)
	req.Equal("presence", presenceRow[1])
	req.Equal("0f8e2a9c", presenceRow[2])
	req.Equal("-", presenceRow[5])
	req.Equal([]string{"chatUser", "identity", "Quokka42", "u1", "", "-"}, identityRow)
	req.Equal("invalid", brokenRow[1])
}
