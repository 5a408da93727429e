package config

import "time"

const (
	EnvDev   = "dev"
	EnvProd  = "prod"
	EnvLocal = "local"
)

const (
	FeedDriverPostgres = "postgres"
	FeedDriverNats     = "nats"
)

var globalConfig *Config

func Global() *Config {
	return globalConfig
}

func SetGlobal(cfg *Config) {
	globalConfig = cfg
}

type Config struct {
	Env      string `env:"ENV" env-required:"true"`
	Log      LogConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Nats     NatsConfig
	HTTP     HTTPConfig
	JWT      JWTConfig
	Board    BoardConfig
	Billing  BillingConfig
}

// LogConfig enables a rotated log file next to stdout when File is set.
type LogConfig struct {
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" env-default:"100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" env-default:"3"`
	MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" env-default:"28"`
}

type PostgresConfig struct {
	Host           string        `env:"POSTGRES_HOST" env-required:"true"`
	Port           int           `env:"POSTGRES_PORT" env-default:"5432"`
	Username       string        `env:"POSTGRES_USERNAME" env-required:"true"`
	Password       string        `env:"POSTGRES_PASSWORD" env-required:"true"`
	Database       string        `env:"POSTGRES_DATABASE" env-required:"true"`
	SSLMode        string        `env:"POSTGRES_SSL_MODE" env-default:"disable"`
	ConnectTimeout time.Duration `env:"POSTGRES_CONNECT_TIMEOUT" env-default:"10s"`
	PingTimeout    time.Duration `env:"POSTGRES_PING_TIMEOUT" env-default:"10s"`
	// MaxConns excludes the change listener, which takes its connection
	// out of the pool.
	MaxConns       int32         `env:"POSTGRES_MAX_CONNS" env-default:"10"`
	ListenBackoff  time.Duration `env:"POSTGRES_LISTEN_BACKOFF" env-default:"2s"`
	MigrateOnStart bool          `env:"POSTGRES_MIGRATE_ON_START" env-default:"false"`
}

// RedisConfig is optional: with an empty Addr completed task counts
// are not cached.
type RedisConfig struct {
	Addr       string        `env:"REDIS_ADDR"`
	Password   string        `env:"REDIS_PASSWORD"`
	DB         int           `env:"REDIS_DB" env-default:"0"`
	CounterTTL time.Duration `env:"REDIS_COUNTER_TTL" env-default:"5m"`
}

type NatsConfig struct {
	URL  string `env:"NATS_URL" env-default:"nats://127.0.0.1:4222"`
	Name string `env:"NATS_CLIENT_NAME" env-default:"taskboard"`
}

type HTTPConfig struct {
	Host            string        `env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `env:"HTTP_PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"5s"`
	AllowOrigins    []string      `env:"HTTP_ALLOW_ORIGINS" env-separator:"," env-default:"*"`
	StreamHeartbeat time.Duration `env:"HTTP_STREAM_HEARTBEAT" env-default:"30s"`
}

type JWTConfig struct {
	Issuer         string        `env:"JWT_ISSUER" env-default:"taskboard"`
	SigningKey     string        `env:"JWT_SIGNING_KEY" env-required:"true"`
	AccessTokenTTL time.Duration `env:"JWT_ACCESS_TOKEN_TTL" env-default:"24h"`
}

type BoardConfig struct {
	FreeTierCeiling int           `env:"BOARD_FREE_TIER_CEILING" env-default:"10"`
	RequestTimeout  time.Duration `env:"BOARD_REQUEST_TIMEOUT" env-default:"15s"`
	FeedDriver      string        `env:"FEED_DRIVER" env-default:"postgres"`
	// SessionIdleTTL is how long a session without open streams or
	// requests stays in memory. Zero keeps sessions until shutdown.
	SessionIdleTTL time.Duration `env:"BOARD_SESSION_IDLE_TTL" env-default:"30m"`
}

type BillingConfig struct {
	StripeSecretKey string `env:"STRIPE_SECRET_KEY"`
	SiteURL         string `env:"SITE_URL"`
}
