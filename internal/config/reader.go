package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

type Reader interface {
	Read() (*Config, error)
}

type EnvReader struct{}

func NewEnvReader() EnvReader {
	return EnvReader{}
}

func (EnvReader) Read() (*Config, error) {
	cfg := new(Config)
	err := cleanenv.ReadEnv(cfg)
	if err != nil {
		return nil, err
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Env {
	case EnvDev, EnvProd, EnvLocal:
	default:
		return fmt.Errorf("unknown env: %s", c.Env)
	}

	switch c.Board.FeedDriver {
	case FeedDriverPostgres, FeedDriverNats:
	default:
		return fmt.Errorf("unknown feed driver: %s", c.Board.FeedDriver)
	}

	if c.Board.FreeTierCeiling < 0 {
		return fmt.Errorf("free tier ceiling must not be negative: %d", c.Board.FreeTierCeiling)
	}
	return nil
}
