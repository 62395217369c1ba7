package main

import (
	"ai-live-chat/compose"
	"ai-live-chat/connection"
	"ai-live-chat/domain"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gookit/color"
)

// renderer prints to the terminal. Live sets arrive every refresh, only a
// change of membership is printed.
type renderer struct {
	mu        sync.Mutex
	out       io.Writer
	lastIDs   string
	lastCount int
}

func newRenderer(out io.Writer) *renderer {
	return &renderer{out: out}
}

func (r *renderer) liveSet(set domain.LiveSet, isOwn func(domain.Message) bool) {
	ids := strings.Join(set.IDs(), ",")
	r.mu.Lock()
	defer r.mu.Unlock()
	if ids == r.lastIDs {
		return
	}
	r.lastIDs = ids

	fmt.Fprintln(r.out, color.FgDarkGray.Sprintf("-- %d live message(s) --", set.Len()))
	for _, msg := range set.Messages {
		line := fmt.Sprintf("[%2ds] %s: %s", msg.RemainingSeconds(set.At), msg.AuthorName, msg.Text)
		if isOwn(msg) {
			line = color.FgGreen.Sprint(line)
		} else {
			line = color.FgCyan.Sprint(line)
		}
		fmt.Fprintln(r.out, line)
	}
}

func (r *renderer) online(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if count == r.lastCount {
		return
	}
	r.lastCount = count
	fmt.Fprintln(r.out, color.FgDarkGray.Sprintf("%d online", count))
}

func (r *renderer) status(change connection.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if change.Connected {
		fmt.Fprintln(r.out, color.FgGreen.Sprint("connected"))
		return
	}
	reason := "disconnected"
	if change.Err != nil {
		reason = fmt.Sprintf("disconnected: %v", change.Err)
	}
	fmt.Fprintln(r.out, color.FgRed.Sprint(reason))
}

func (r *renderer) composeEvent(event compose.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch event.Kind {
	case compose.Warned:
		fmt.Fprintln(r.out, color.FgYellow.Sprintf("draft clears in %ds", int(event.Remaining.Seconds())))
	case compose.Expired:
		fmt.Fprintln(r.out, color.FgRed.Sprint("draft cleared, too slow"))
	}
}

func (r *renderer) info(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, color.FgDarkGray.Sprintf(format, args...))
}

func (r *renderer) warn(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, color.FgYellow.Sprintf(format, args...))
}
