// Package subscription answers billing tier and completed task count
// questions for board sessions.
package subscription

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-taskboard/internal/services"
)

// Cache stores completed task counts per user.
type Cache interface {
	// Get reports false when there is no cached count.
	Get(ctx context.Context, userID string) (int, bool, error)
	Set(ctx context.Context, userID string, count int) error
}

type Provider struct {
	logger  zerolog.Logger
	service services.SubscriptionService
	cache   Cache
}

// NewProvider returns a Provider. cache may be nil, in which case every
// count goes to the database.
func NewProvider(logger zerolog.Logger, service services.SubscriptionService, cache Cache) *Provider {
	return &Provider{
		logger:  logger,
		service: service,
		cache:   cache,
	}
}

func (p *Provider) IsPro(ctx context.Context, userID string) (bool, error) {
	return p.service.IsPro(ctx, userID)
}

// CompletedCount returns the cached count if there is one. Cache
// failures fall back to the database.
func (p *Provider) CompletedCount(ctx context.Context, userID string) (int, error) {
	if p.cache != nil {
		count, ok, err := p.cache.Get(ctx, userID)
		switch {
		case err != nil:
			p.logger.Warn().
				Err(err).
				Str("user_id", userID).
				Msg("failed to read cached completed count")
		case ok:
			p.logger.Trace().
				Str("user_id", userID).
				Int("count", count).
				Msg("cached completed count")
			return count, nil
		}
	}
	return p.Resync(ctx, userID)
}

// Resync counts the completed tasks in the database and refreshes the
// cache.
func (p *Provider) Resync(ctx context.Context, userID string) (int, error) {
	count, err := p.service.CountCompletedTasks(ctx, userID)
	if err != nil {
		return 0, err
	}

	if p.cache != nil {
		err = p.cache.Set(ctx, userID, count)
		if err != nil {
			p.logger.Warn().
				Err(err).
				Str("user_id", userID).
				Msg("failed to cache completed count")
		}
	}
	return count, nil
}
