package app

import (
	"github.com/nats-io/nats.go"

	"github.com/adanyl0v/go-taskboard/internal/config"
)

var globalNatsConn *nats.Conn

func MustConnectNats() {
	cfg := config.Global().Nats

	var err error
	globalNatsConn, err = nats.Connect(
		cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			globalLogger.Warn().
				Err(err).
				Msg("disconnected from nats")
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			globalLogger.Info().
				Str("url", conn.ConnectedUrl()).
				Msg("reconnected to nats")
		}),
	)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Str("url", cfg.URL).
			Msg("failed to connect to nats")
		panic(err)
	}
	globalLogger.Info().
		Str("url", cfg.URL).
		Msg("connected to nats")
}

func DisconnectNats() {
	if globalNatsConn == nil {
		return
	}
	err := globalNatsConn.Drain()
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to drain nats connection")
		globalNatsConn.Close()
		return
	}
	globalLogger.Info().Msg("disconnected from nats")
}
