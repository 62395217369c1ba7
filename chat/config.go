package chat

import (
	"ai-live-chat/compose"
	"ai-live-chat/domain"
	"ai-live-chat/lifecycle"
	"ai-live-chat/presence"
	"ai-live-chat/ratelimit"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the product constants. Zero values are not defaults: start
// from DefaultConfig.
type Config struct {
	TTL               time.Duration `validate:"gt=0"`
	Cooldown          time.Duration `validate:"gte=0"`
	ComposeTimeout    time.Duration `validate:"gt=0"`
	ComposeWarning    time.Duration `validate:"gte=0,ltfield=ComposeTimeout"`
	ComposeTick       time.Duration `validate:"gt=0"`
	MaxLength         int           `validate:"gt=0"`
	RefreshInterval   time.Duration `validate:"gt=0"`
	SweepInterval     time.Duration `validate:"gte=0"` // 0 leaves sweeping to the relay
	HeartbeatInterval time.Duration `validate:"gt=0"`
	Staleness         time.Duration `validate:"gtfield=HeartbeatInterval"`
}

func DefaultConfig() Config {
	return Config{
		TTL:               domain.DefaultTTL,
		Cooldown:          ratelimit.DefaultCooldown,
		ComposeTimeout:    20 * time.Second,
		ComposeWarning:    5 * time.Second,
		ComposeTick:       time.Second,
		MaxLength:         domain.MaxMessageLength,
		RefreshInterval:   100 * time.Millisecond,
		SweepInterval:     5 * time.Second,
		HeartbeatInterval: 5 * time.Second,
		Staleness:         15 * time.Second,
	}
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid chat config: %w", err)
	}
	return nil
}

func (c Config) compose() compose.Config {
	return compose.Config{Timeout: c.ComposeTimeout, Warning: c.ComposeWarning, Tick: c.ComposeTick, MaxLength: c.MaxLength}
}

func (c Config) lifecycle() lifecycle.Config {
	return lifecycle.Config{TTL: c.TTL, RefreshInterval: c.RefreshInterval, MaxLength: c.MaxLength}
}

func (c Config) presence() presence.Config {
	return presence.Config{HeartbeatInterval: c.HeartbeatInterval, Staleness: c.Staleness}
}
