package main

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	RelayURL string `envconfig:"RELAY_URL" default:"ws://localhost:8080/ws"`
	// CHAT_IDENTITY_PATH is the badger directory keeping the identity across runs.
	// Empty keeps it in memory for this run only.
	IdentityPath string `envconfig:"CHAT_IDENTITY_PATH" default:"./data/identity"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile      string `envconfig:"LOG_FILE" default:"./logs/chat.log"`
	// CHAT_SWEEP_INTERVAL set to 0 leaves expired messages to the relay sweeper.
	SweepInterval time.Duration `envconfig:"CHAT_SWEEP_INTERVAL" default:"5s"`
	// CHAT_COLOURS enables colorized output
	Colours bool `envconfig:"CHAT_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
