package app

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/adanyl0v/go-taskboard/internal/config"
	"github.com/adanyl0v/go-taskboard/internal/realtime"
)

// MustRunRelay forwards Postgres change notifications to NATS until the
// process is interrupted.
func MustRunRelay() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := globalLogger.With().Str("component", "relay").Logger()
	source := realtime.NewPgSource(logger, globalPostgresPool, config.Global().Postgres.ListenBackoff)
	publisher := realtime.NewNatsPublisher(logger, globalNatsConn)

	globalLogger.Info().
		Str("channel", realtime.Channel).
		Str("subject", realtime.Subject).
		Msg("starting relay")

	err := source.Run(ctx, publisher.Publish)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("relay stopped")
		panic(err)
	}
	globalLogger.Info().Msg("relay stopped")
}
