// Package compose drives the typing countdown of a draft.
//
// The engine is Idle until the draft becomes non-empty. It then ticks every
// Config.Tick, warns once the remaining time drops to Config.Warning and
// clears the draft when the countdown reaches zero.
package compose

import (
	"ai-live-chat/contract"
	"sync"
	"time"
	"unicode/utf8"
)

type State int

const (
	Idle State = iota
	Composing
)

func (s State) String() string {
	if s == Composing {
		return "composing"
	}
	return "idle"
}

type EventKind int

const (
	Started EventKind = iota
	Ticked
	Warned
	Expired
	Stopped
)

func (k EventKind) String() string {
	switch k {
	case Started:
		return "started"
	case Ticked:
		return "ticked"
	case Warned:
		return "warned"
	case Expired:
		return "expired"
	default:
		return "stopped"
	}
}

type Event struct {
	Kind      EventKind
	Remaining time.Duration
}

type Config struct {
	Timeout   time.Duration `validate:"gt=0"`
	Warning   time.Duration `validate:"gte=0,ltfield=Timeout"`
	Tick      time.Duration `validate:"gt=0"`
	MaxLength int           `validate:"gt=0"`
}

func DefaultConfig() Config {
	return Config{
		Timeout:   20 * time.Second,
		Warning:   5 * time.Second,
		Tick:      time.Second,
		MaxLength: 500,
	}
}

// Session is a copy of the local compose state.
type Session struct {
	State     State
	Remaining time.Duration
	Draft     string
}

func (s Session) Active() bool { return s.State == Composing }

type Engine struct {
	mu        sync.Mutex
	clock     contract.Clock
	cfg       Config
	state     State
	remaining time.Duration
	draft     string
	handle    contract.Handle
	// generation invalidates ticks of a handle that was already replaced
	generation uint64
	listener   func(Event)
}

// NewEngine builds an idle engine. listener may be nil and is always called
// without the engine lock held.
func NewEngine(clock contract.Clock, cfg Config, listener func(Event)) *Engine {
	return &Engine{
		clock:     clock,
		cfg:       cfg,
		remaining: cfg.Timeout,
		listener:  listener,
	}
}

// SetDraft replaces the draft, truncated to MaxLength runes.
// Going from empty to non-empty starts the countdown; going back to empty
// stops it.
func (e *Engine) SetDraft(text string) string {
	text = truncate(text, e.cfg.MaxLength)

	e.mu.Lock()
	wasEmpty := e.draft == ""
	e.draft = text
	var events []Event
	switch {
	case wasEmpty && text != "" && e.state == Idle:
		events = e.startLocked()
	case text == "" && e.state == Composing:
		events = e.stopLocked()
	}
	e.mu.Unlock()

	e.emit(events)
	return text
}

// Submit hands back the draft and resets the session after a send.
func (e *Engine) Submit() string {
	e.mu.Lock()
	draft := e.draft
	e.draft = ""
	var events []Event
	if e.state == Composing {
		events = e.stopLocked()
	}
	e.mu.Unlock()

	e.emit(events)
	return draft
}

// Close releases the tick handle without emitting anything.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelLocked()
	e.state = Idle
	e.remaining = e.cfg.Timeout
}

func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Session{State: e.state, Remaining: e.remaining, Draft: e.draft}
}

func (e *Engine) startLocked() []Event {
	e.cancelLocked()
	e.state = Composing
	e.remaining = e.cfg.Timeout
	generation := e.generation
	e.handle = e.clock.Every(e.cfg.Tick, func() { e.tick(generation) })
	return []Event{{Kind: Started, Remaining: e.remaining}}
}

func (e *Engine) stopLocked() []Event {
	e.cancelLocked()
	e.state = Idle
	e.remaining = e.cfg.Timeout
	return []Event{{Kind: Stopped, Remaining: e.remaining}}
}

func (e *Engine) cancelLocked() {
	e.generation++
	if e.handle != nil {
		e.handle.Stop()
		e.handle = nil
	}
}

func (e *Engine) tick(generation uint64) {
	e.mu.Lock()
	if generation != e.generation || e.state != Composing {
		e.mu.Unlock()
		return
	}
	e.remaining = max(e.remaining-e.cfg.Tick, 0)
	events := []Event{{Kind: Ticked, Remaining: e.remaining}}
	if e.remaining <= e.cfg.Warning && e.remaining > 0 {
		events = append(events, Event{Kind: Warned, Remaining: e.remaining})
	}
	if e.remaining == 0 {
		// forced reset: the partial draft is lost
		e.draft = ""
		e.cancelLocked()
		e.state = Idle
		e.remaining = e.cfg.Timeout
		events = append(events, Event{Kind: Expired})
	}
	e.mu.Unlock()

	e.emit(events)
}

func (e *Engine) emit(events []Event) {
	if e.listener == nil {
		return
	}
	for _, evt := range events {
		e.listener(evt)
	}
}

func truncate(text string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	return string([]rune(text)[:maxRunes])
}
