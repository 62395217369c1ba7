package main

import "time"

type Config struct {
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
	LogFile         string        `env:"LOG_FILE"`
	Host            string        `env:"HOST,default=localhost"`
	Port            int           `env:"PORT,default=8080"`
	Store           string        `env:"STORE,default=memory"`
	BadgerFilepath  string        `env:"BADGER_FILEPATH,default=./data/relay"`
	RedisAddr       string        `env:"REDIS_ADDR,default=localhost:6379"`
	RedisPrefix     string        `env:"REDIS_PREFIX,default=chat"`
	MessageTTL      time.Duration `env:"MESSAGE_TTL,default=10s"`
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL,default=5s"`
	MonitorInterval time.Duration `env:"MONITOR_INTERVAL,default=15s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=1s"`
	WritesPerSecond float64       `env:"WRITES_PER_SECOND,default=5"`
	WriteBurst      int           `env:"WRITE_BURST,default=10"`
	TrustProxy      bool          `env:"TRUST_PROXY,default=false"`
}
