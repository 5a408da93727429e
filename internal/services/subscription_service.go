package services

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type subscriptionServiceImpl struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool
}

func NewSubscriptionService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
) SubscriptionService {
	return &subscriptionServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

// IsPro reports whether the user has an active or trialing
// subscription whose period has not ended.
func (s *subscriptionServiceImpl) IsPro(ctx context.Context, userID string) (bool, error) {
	const selectActiveSubscriptionQuery = `
SELECT EXISTS (SELECT 1
               FROM subscriptions
               WHERE user_id = $1
                 AND status IN ('active', 'trialing')
                 AND (current_period_end IS NULL OR current_period_end > now()))
`
	var pro bool
	err := s.pgPool.QueryRow(
		ctx,
		selectActiveSubscriptionQuery,
		userID,
	).Scan(&pro)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to select subscription")
		return false, err
	}
	return pro, nil
}

func (s *subscriptionServiceImpl) CountCompletedTasks(ctx context.Context, userID string) (int, error) {
	const countCompletedTasksQuery = `
SELECT count(*)
FROM tasks
WHERE user_id = $1 AND status = 'done'
`
	var count int64
	err := s.pgPool.QueryRow(
		ctx,
		countCompletedTasksQuery,
		userID,
	).Scan(&count)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to count completed tasks")
		return 0, err
	}
	s.logger.Debug().
		Str("user_id", userID).
		Int64("count", count).
		Msg("counted completed tasks")
	return int(count), nil
}
