package main

import (
	"ai-live-chat/chat"
	"ai-live-chat/clock"
	"ai-live-chat/errors"
	"ai-live-chat/logging"
	"ai-live-chat/repositories"
	"ai-live-chat/store/wsstore"
	"bufio"
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	config, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	color.Enable = config.Colours
	log := logging.NewFileOnly(config.LogLevel, config.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Identity persistence
	identities, closeIdentities, err := openIdentities(config.IdentityPath)
	if err != nil {
		return err
	}
	defer closeIdentities()

	// 3. Relay connection
	store, err := wsstore.Dial(ctx, config.RelayURL, log)
	if err != nil {
		return fmt.Errorf("relay unreachable at %s: %w", config.RelayURL, err)
	}
	defer func() { _ = store.Close() }()

	// 4. Participant
	out := newRenderer(os.Stdout)
	cfg := chat.DefaultConfig()
	cfg.SweepInterval = config.SweepInterval
	session, err := chat.NewSession(chat.Deps{
		Store:      store,
		Clock:      clock.NewSystem(),
		Identities: identities,
		Log:        log,
		OnCompose:  out.composeEvent,
	}, cfg)
	if err != nil {
		return err
	}
	removeListener := session.Status().OnChange(out.status)
	defer removeListener()

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("joining the room failed: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := session.Close(closeCtx); err != nil {
			log.Warn("Leaving failed", "error", err)
		}
	}()

	me := session.Identity()
	out.info("you are %s, type /help for commands", me.DisplayName)
	go watch(ctx, session, out)

	return prompt(ctx, session, out, store.Done(), log)
}

// watch renders the live view until ctx is done.
func watch(ctx context.Context, session *chat.Session, out *renderer) {
	liveSets, counts := session.LiveSets(), session.OnlineCount()
	for {
		select {
		case <-ctx.Done():
			return
		case set, ok := <-liveSets:
			if !ok {
				return
			}
			out.liveSet(set, session.IsOwn)
		case count, ok := <-counts:
			if !ok {
				return
			}
			out.online(count)
		}
	}
}

// prompt reads commands from stdin until quit, EOF, a signal or the relay
// closing the connection.
func prompt(ctx context.Context, session *chat.Session, out *renderer, relayDone <-chan struct{}, log *slog.Logger) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-relayDone:
			return fmt.Errorf("relay connection lost")
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handle(ctx, session, out, parseCommand(line), log); quit {
				return nil
			}
		}
	}
}

func handle(ctx context.Context, session *chat.Session, out *renderer, cmd command, log *slog.Logger) bool {
	switch cmd.kind {
	case cmdSay:
		session.Type(cmd.arg)
		send(ctx, session, out, log)
	case cmdDraft:
		kept := session.Type(cmd.arg)
		out.info("draft: %q", kept)
	case cmdSend:
		send(ctx, session, out, log)
	case cmdNewIdentity:
		out.info("you are now %s", session.ResetIdentity().DisplayName)
	case cmdWho:
		me := session.Identity()
		out.info("%s (%s)", me.DisplayName, me.UserID)
	case cmdHelp:
		out.info("%s", helpText)
	case cmdQuit:
		return true
	default:
		out.warn("unknown command /%s", cmd.arg)
	}
	return false
}

func send(ctx context.Context, session *chat.Session, out *renderer, log *slog.Logger) {
	receipt, err := session.Send(ctx)
	switch {
	case err == nil:
		log.Debug("Message sent", "id", receipt.ID)
	case goerrors.Is(err, errors.ErrCooldown):
		out.warn("slow down, wait %.1fs", receipt.RetryAfter.Seconds())
	case goerrors.Is(err, errors.ErrEmptyMessage):
		out.warn("nothing to send")
	case goerrors.Is(err, errors.ErrMessageTooLong):
		out.warn("message too long")
	case goerrors.Is(err, errors.ErrNotConnected):
		out.warn("not connected, message kept as draft")
	default:
		out.warn("send failed: %v", err)
	}
}

// openIdentities falls back to memory when no path is configured.
func openIdentities(path string) (repositories.IIdentityRepository, func(), error) {
	if path == "" {
		return repositories.NewMemoryIdentityRepository(), func() {}, nil
	}
	db, err := badger.Open(badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, nil, fmt.Errorf("identity database opening failed: %w", err)
	}
	return repositories.NewIdentityRepository(db), func() { _ = db.Close() }, nil
}
