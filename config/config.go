package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|prod
	Service   string `yaml:"service"`   // hub-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

type Postgres struct {
	DSN string `yaml:"dsn"`
}

type Auth struct {
	PublicKeyPath string `yaml:"publicKeyPath"`
	Issuer        string `yaml:"issuer"`
	Audience      string `yaml:"audience"`
	ClockSkew     string `yaml:"clockSkew"` // duration, default 30s
}

type Hub struct {
	IdleTimeout     string `yaml:"idleTimeout"`     // duration, default 60s
	PingInterval    string `yaml:"pingInterval"`    // duration, default 15s
	SequenceGrace   string `yaml:"sequenceGrace"`   // duration, default 5m
	SendBuffer      int    `yaml:"sendBuffer"`      // default 64
	MaxMessageBytes int64  `yaml:"maxMessageBytes"` // default 1 MiB
}

type Config struct {
	HTTP     HTTP     `yaml:"http"`
	Logging  Logging  `yaml:"logging"`
	Postgres Postgres `yaml:"postgres"`
	Auth     Auth     `yaml:"auth"`
	Hub      Hub      `yaml:"hub"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if c.Auth.PublicKeyPath == "" {
		return errors.New("auth.publicKeyPath is required")
	}
	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "hub-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	return nil
}

func (c *Auth) ClockSkewOr(def time.Duration) time.Duration {
	return parseDurationOr(def, c.ClockSkew)
}

func (c *Hub) IdleTimeoutOr(def time.Duration) time.Duration {
	return parseDurationOr(def, c.IdleTimeout)
}

func (c *Hub) PingIntervalOr(def time.Duration) time.Duration {
	return parseDurationOr(def, c.PingInterval)
}

func (c *Hub) SequenceGraceOr(def time.Duration) time.Duration {
	return parseDurationOr(def, c.SequenceGrace)
}

// helper для парсинга timeout-ов
func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
