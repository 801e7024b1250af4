package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                 int    `env:"PORT" envDefault:"8080"`
	DatabaseURL          string `env:"DATABASE_URL,required"`
	RedisURL             string `env:"REDIS_URL,required"`
	AmqpURL              string `env:"AMQP_URL,required"`
	AmqpExchange         string `env:"AMQP_EXCHANGE" envDefault:"gateway.events"`
	ChatNetworkURL       string `env:"CHAT_NETWORK_URL,required"`
	EncryptionKey        string `env:"ENCRYPTION_KEY"`
	MaxReconnectAttempts int    `env:"MAX_RECONNECT_ATTEMPTS" envDefault:"5"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.MaxReconnectAttempts < 1 {
		return fmt.Errorf("MAX_RECONNECT_ATTEMPTS must be at least 1")
	}

	if !strings.HasPrefix(c.ChatNetworkURL, "ws://") && !strings.HasPrefix(c.ChatNetworkURL, "wss://") {
		return fmt.Errorf("CHAT_NETWORK_URL must be a ws:// or wss:// URL")
	}

	if isProduction {
		if c.EncryptionKey == "" {
			return fmt.Errorf("ENCRYPTION_KEY is required in production: credentials must be encrypted at rest")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if strings.HasPrefix(c.ChatNetworkURL, "ws://") {
			log.Warn().Msg("CHAT_NETWORK_URL uses ws:// (not TLS) in production: consider using wss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
