package main

import (
	"ai-live-chat/compose"
	"ai-live-chat/domain"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/require"
)

func TestRenderer_PrintsOnlyMembershipChanges(t *testing.T) {
	req := require.New(t)
	color.Enable = false
	t.Cleanup(func() { color.Enable = true })

	// Given one live message
	var buf bytes.Buffer
	r := newRenderer(&buf)
	now := time.UnixMilli(1_000_000)
	author := domain.Identity{UserID: "u1", DisplayName: "Quokka42"}
	msg := domain.NewMessage("hello", author, now, domain.DefaultTTL)
	msg.ID = "m1"
	notOwn := func(domain.Message) bool { return false }

	// When the same set is rendered twice a moment apart
	r.liveSet(domain.NewLiveSet(now, []domain.Message{msg}), notOwn)
	r.liveSet(domain.NewLiveSet(now.Add(100*time.Millisecond), []domain.Message{msg}), notOwn)

	// Then it is printed once
	req.Equal(1, strings.Count(buf.String(), "Quokka42: hello"))
	req.Contains(buf.String(), "[10s]")

	// When it expires the empty set is printed
	r.liveSet(domain.NewLiveSet(now.Add(domain.DefaultTTL), nil), notOwn)
	req.Contains(buf.String(), "0 live message(s)")
}

func TestRenderer_ComposeWarning(t *testing.T) {
	req := require.New(t)
	color.Enable = false
	t.Cleanup(func() { color.Enable = true })

	var buf bytes.Buffer
	r := newRenderer(&buf)
	r.composeEvent(compose.Event{Kind: compose.Ticked, Remaining: 10 * time.Second})
	r.composeEvent(compose.Event{Kind: compose.Warned, Remaining: 5 * time.Second})
	r.composeEvent(compose.Event{Kind: compose.Expired})

	req.NotContains(buf.String(), "10s")
	req.Contains(buf.String(), "draft clears in 5s")
	req.Contains(buf.String(), "draft cleared")
}
