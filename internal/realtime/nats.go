package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Subject is the NATS subject change events are relayed on.
const Subject = "taskboard.changes"

// NatsSource receives relayed change events from NATS.
type NatsSource struct {
	logger zerolog.Logger
	conn   *nats.Conn
}

func NewNatsSource(logger zerolog.Logger, conn *nats.Conn) *NatsSource {
	return &NatsSource{
		logger: logger,
		conn:   conn,
	}
}

func (s *NatsSource) Run(ctx context.Context, publish func(Event)) error {
	sub, err := s.conn.Subscribe(Subject, func(msg *nats.Msg) {
		e, err := ParseEvent(msg.Data)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to parse relayed event")
			return
		}
		publish(e)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", Subject, err)
	}
	s.logger.Info().
		Str("subject", Subject).
		Msg("subscribed to relayed changes")

	// Core NATS does not redeliver what was published while the
	// connection was down.
	reconnected := s.conn.Opts.ReconnectedCB
	s.conn.SetReconnectHandler(func(c *nats.Conn) {
		if reconnected != nil {
			reconnected(c)
		}
		publish(ResyncEvent)
	})
	publish(ResyncEvent)

	<-ctx.Done()

	err = sub.Unsubscribe()
	if err != nil {
		s.logger.Warn().
			Err(err).
			Msg("failed to unsubscribe")
	}
	return nil
}

// NatsPublisher relays events onto NATS.
type NatsPublisher struct {
	logger zerolog.Logger
	conn   *nats.Conn
}

func NewNatsPublisher(logger zerolog.Logger, conn *nats.Conn) *NatsPublisher {
	return &NatsPublisher{
		logger: logger,
		conn:   conn,
	}
}

func (p *NatsPublisher) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		p.logger.Error().
			Err(err).
			Msg("failed to encode event")
		return
	}

	err = p.conn.Publish(Subject, data)
	if err != nil {
		p.logger.Error().
			Err(err).
			Str("task_id", e.TaskID()).
			Msg("failed to publish event")
		return
	}
	p.logger.Debug().
		Str("table", string(e.Table)).
		Str("type", string(e.Type)).
		Str("task_id", e.TaskID()).
		Msg("relayed event")
}
