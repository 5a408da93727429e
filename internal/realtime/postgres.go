package realtime

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Channel is the Postgres notification channel the change triggers
// write to.
const Channel = "taskboard_changes"

const closeTimeout = 5 * time.Second

// listenConn is the part of a dedicated connection the listener uses.
// *pgx.Conn implements it.
type listenConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// PgSource listens for trigger notifications on a connection taken out
// of the pool. It reconnects after connection failures and publishes a
// ResyncEvent every time it starts listening, since notifications sent
// while it was away are lost.
type PgSource struct {
	logger       zerolog.Logger
	connect      func(ctx context.Context) (listenConn, error)
	retryBackoff time.Duration
}

func NewPgSource(logger zerolog.Logger, pgPool *pgxpool.Pool, retryBackoff time.Duration) *PgSource {
	return newPgSource(logger, func(ctx context.Context) (listenConn, error) {
		conn, err := pgPool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		// A LISTENing session must never serve pool queries.
		return conn.Hijack(), nil
	}, retryBackoff)
}

func newPgSource(
	logger zerolog.Logger,
	connect func(ctx context.Context) (listenConn, error),
	retryBackoff time.Duration,
) *PgSource {
	if retryBackoff <= 0 {
		retryBackoff = time.Second
	}
	return &PgSource{
		logger:       logger,
		connect:      connect,
		retryBackoff: retryBackoff,
	}
}

func (s *PgSource) Run(ctx context.Context, publish func(Event)) error {
	for {
		err := s.listen(ctx, publish)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Error().
			Err(err).
			Dur("retry_in", s.retryBackoff).
			Msg("postgres listener stopped")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.retryBackoff):
		}
	}
}

func (s *PgSource) listen(ctx context.Context, publish func(Event)) error {
	conn, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := conn.Close(closeCtx); err != nil {
			s.logger.Warn().
				Err(err).
				Msg("failed to close listener connection")
		}
	}()

	_, err = conn.Exec(ctx, "LISTEN "+Channel)
	if err != nil {
		return err
	}
	s.logger.Info().
		Str("channel", Channel).
		Msg("listening for changes")
	publish(ResyncEvent)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		e, err := ParseEvent([]byte(n.Payload))
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("payload", n.Payload).
				Msg("failed to parse notification")
			continue
		}
		s.logger.Trace().
			Str("table", string(e.Table)).
			Str("type", string(e.Type)).
			Str("task_id", e.TaskID()).
			Msg("received change")
		publish(e)
	}
}
