package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/adanyl0v/go-taskboard/internal/config"
	"github.com/adanyl0v/go-taskboard/internal/realtime"
)

var (
	globalHub  *realtime.Hub
	feedCancel context.CancelFunc
	feedDone   sync.WaitGroup
)

// MustStartFeed creates the in-process hub and starts the configured
// source publishing into it.
func MustStartFeed() {
	cfg := config.Global()

	source, err := newSource(cfg)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to create change source")
		panic(err)
	}

	globalHub = realtime.NewHub()

	var ctx context.Context
	ctx, feedCancel = context.WithCancel(context.Background())
	feedDone.Add(1)
	go func() {
		defer feedDone.Done()
		err := source.Run(ctx, globalHub.Publish)
		if err != nil {
			globalLogger.Error().
				Err(err).
				Msg("change source stopped")
		}
	}()

	globalLogger.Info().
		Str("driver", cfg.Board.FeedDriver).
		Msg("started change feed")
}

func StopFeed() {
	if feedCancel == nil {
		return
	}
	feedCancel()
	feedDone.Wait()
	globalLogger.Info().Msg("stopped change feed")
}

func newSource(cfg *config.Config) (realtime.Source, error) {
	logger := globalLogger.With().Str("component", "feed").Logger()
	switch cfg.Board.FeedDriver {
	case config.FeedDriverPostgres:
		return realtime.NewPgSource(logger, globalPostgresPool, cfg.Postgres.ListenBackoff), nil
	case config.FeedDriverNats:
		if globalNatsConn == nil {
			return nil, fmt.Errorf("feed driver %s requires a nats connection", cfg.Board.FeedDriver)
		}
		return realtime.NewNatsSource(logger, globalNatsConn), nil
	}
	return nil, fmt.Errorf("unknown feed driver: %s", cfg.Board.FeedDriver)
}
