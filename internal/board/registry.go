package board

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-taskboard/internal/models"
	"github.com/adanyl0v/go-taskboard/internal/notify"
)

// Registry holds one started and loaded session per signed-in user.
type Registry struct {
	logger       zerolog.Logger
	cfg          Config
	remote       Remote
	subscription Subscription
	feed         Feed
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*registryEntry
}

type registryEntry struct {
	session  *Session
	identity *UserIdentity
	lastUsed time.Time
}

func NewRegistry(
	logger zerolog.Logger,
	cfg Config,
	remote Remote,
	subscription Subscription,
	feed Feed,
) *Registry {
	return &Registry{
		logger:       logger,
		cfg:          cfg,
		remote:       remote,
		subscription: subscription,
		feed:         feed,
		now:          time.Now,
		sessions:     make(map[string]*registryEntry),
	}
}

// Session returns the user's session, creating and loading it on first
// use. A failed initial load is reported through the session's
// notifications and leaves the board empty; the session is still
// returned.
func (r *Registry) Session(ctx context.Context, user *models.User) *Session {
	r.mu.Lock()
	entry, ok := r.sessions[user.ID]
	if ok {
		entry.lastUsed = r.now()
		r.mu.Unlock()
		return entry.session
	}

	identity := NewUserIdentity(user)
	session := NewSession(
		r.logger.With().Str("user_id", user.ID).Logger(),
		r.cfg,
		identity,
		r.remote,
		r.subscription,
		notify.NewDispatcher(),
	)
	r.sessions[user.ID] = &registryEntry{
		session:  session,
		identity: identity,
		lastUsed: r.now(),
	}
	r.mu.Unlock()

	session.Start(r.feed)
	if err := session.Load(ctx); err != nil {
		r.logger.Warn().
			Err(err).
			Str("user_id", user.ID).
			Msg("failed to load session")
	}
	r.logger.Debug().
		Str("user_id", user.ID).
		Msg("opened board session")
	return session
}

// Drop signs the user out and closes their session.
func (r *Registry) Drop(userID string) {
	r.mu.Lock()
	entry, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if ok {
		r.closeEntry(userID, entry)
	}
}

// EvictIdle drops the sessions nobody watched or asked for during the
// last ttl and returns how many it dropped.
func (r *Registry) EvictIdle(ttl time.Duration) int {
	now := r.now()
	idle := make(map[string]*registryEntry)

	r.mu.Lock()
	for id, entry := range r.sessions {
		if entry.session.Watched() {
			entry.lastUsed = now
			continue
		}
		if now.Sub(entry.lastUsed) >= ttl {
			idle[id] = entry
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for id, entry := range idle {
		r.closeEntry(id, entry)
	}
	if len(idle) > 0 {
		r.logger.Info().
			Int("evicted", len(idle)).
			Msg("evicted idle board sessions")
	}
	return len(idle)
}

// RunEviction calls EvictIdle every half ttl until ctx is done. A
// non-positive ttl disables eviction.
func (r *Registry) RunEviction(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	ticker := time.NewTicker(max(ttl/2, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.EvictIdle(ttl)
		}
	}
}

func (r *Registry) closeEntry(userID string, entry *registryEntry) {
	entry.identity.SignOut()
	entry.session.Close()
	r.logger.Debug().
		Str("user_id", userID).
		Msg("closed board session")
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close drops every session.
func (r *Registry) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Drop(id)
	}
}
