// Package board keeps one user's task board in sync with the remote
// store: a local task store, a gateway applying user mutations
// optimistically, and a listener folding in remote change events.
package board

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-taskboard/internal/models"
	"github.com/adanyl0v/go-taskboard/internal/notify"
	"github.com/adanyl0v/go-taskboard/internal/realtime"
	"github.com/adanyl0v/go-taskboard/internal/services"
	"github.com/adanyl0v/go-taskboard/internal/taskstore"
)

// Identity yields the signed-in user, or nil.
type Identity interface {
	CurrentUser() *models.User
}

// Subscription reports the user's billing tier and completed task count.
type Subscription interface {
	IsPro(ctx context.Context, userID string) (bool, error)
	CompletedCount(ctx context.Context, userID string) (int, error)
	// Resync recomputes the completed count from the remote store.
	Resync(ctx context.Context, userID string) (int, error)
}

// Feed delivers realtime change events.
type Feed interface {
	Subscribe(filter realtime.Filter) *realtime.Subscription
}

// Notifier is a notification sink whose lifecycle the session owns.
type Notifier interface {
	notify.Sink
	Start()
	Stop()
	Subscribe(id string, fn func(notify.Notification)) func()
}

// Remote groups the remote store services a session talks to.
type Remote struct {
	Tasks         services.TaskService
	Collaborators services.CollaboratorService
	Profiles      services.ProfileService
}

type Config struct {
	// FreeTierCeiling is the number of completed tasks a user
	// without a paid subscription may have.
	FreeTierCeiling int
	// RequestTimeout bounds every remote request. Zero disables it.
	RequestTimeout time.Duration
}

type Session struct {
	logger       zerolog.Logger
	cfg          Config
	identity     Identity
	remote       Remote
	subscription Subscription
	notifier     Notifier

	store   *taskstore.Store
	tracker *Tracker
	loading atomic.Bool

	watchMu  sync.RWMutex
	watchers map[string]func([]models.Task)

	deletedMu sync.Mutex
	deleted   *deletedTask

	lifecycleMu sync.Mutex
	cancelFeed  func()
	done        chan struct{}
}

func NewSession(
	logger zerolog.Logger,
	cfg Config,
	identity Identity,
	remote Remote,
	subscription Subscription,
	notifier Notifier,
) *Session {
	s := &Session{
		logger:       logger,
		cfg:          cfg,
		identity:     identity,
		remote:       remote,
		subscription: subscription,
		notifier:     notifier,
		store:        taskstore.New(),
		tracker:      NewTracker(),
		watchers:     make(map[string]func([]models.Task)),
	}
	s.store.OnChange(s.broadcast)
	s.loading.Store(true)
	return s
}

// Start begins delivering notifications and, when feed is not nil,
// applying remote change events.
func (s *Session) Start(feed Feed) {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.notifier.Start()
	if feed == nil || s.cancelFeed != nil {
		return
	}

	sub := feed.Subscribe(s.visible)
	s.cancelFeed = sub.Cancel
	s.done = make(chan struct{})
	go s.listen(sub, s.done)
}

// Close stops the listener and the notifier. It is safe to call twice.
func (s *Session) Close() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.cancelFeed != nil {
		s.cancelFeed()
		<-s.done
		s.cancelFeed = nil
	}
	s.notifier.Stop()

	s.watchMu.Lock()
	clear(s.watchers)
	s.watchMu.Unlock()
}

// Load replaces the local store with the tasks visible to the user.
// On failure the store is left empty.
func (s *Session) Load(ctx context.Context) error {
	s.loading.Store(true)
	defer s.loading.Store(false)

	user := s.identity.CurrentUser()
	if user == nil {
		s.store.ReplaceAll(nil)
		s.notifier.Notify(notify.Error("You need to sign in to see your tasks"))
		return ErrAuthRequired
	}

	ctx, cancel := s.remoteContext(ctx)
	defer cancel()

	tasks, err := s.remote.Tasks.ListVisibleTasks(ctx, user.ID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", user.ID).
			Msg("failed to load tasks")
		s.store.ReplaceAll(nil)
		s.notifier.Notify(notify.Error("Failed to load tasks"))
		return remoteFailure(err)
	}

	loaded := make([]models.Task, len(tasks))
	for i, task := range tasks {
		loaded[i] = *task
	}
	s.store.ReplaceAll(loaded)
	s.logger.Debug().
		Str("user_id", user.ID).
		Int("count", len(loaded)).
		Msg("loaded tasks")
	return nil
}

// reload refreshes the store after change events may have been lost.
// Tasks still waiting for their create request are kept. On failure the
// store is left as it was.
func (s *Session) reload(ctx context.Context) error {
	user := s.identity.CurrentUser()
	if user == nil {
		return ErrAuthRequired
	}

	rctx, cancel := s.remoteContext(ctx)
	defer cancel()

	tasks, err := s.remote.Tasks.ListVisibleTasks(rctx, user.ID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", user.ID).
			Msg("failed to reload tasks")
		return remoteFailure(err)
	}

	var loaded []models.Task
	for _, task := range s.store.Tasks() {
		if task.IsTemporary() {
			loaded = append(loaded, task)
		}
	}
	for _, task := range tasks {
		loaded = append(loaded, *task)
	}
	s.store.ReplaceAll(loaded)
	s.resyncCompleted(ctx, user.ID)
	s.logger.Info().
		Str("user_id", user.ID).
		Int("count", len(tasks)).
		Msg("reloaded tasks after missed changes")
	return nil
}

func (s *Session) Loading() bool {
	return s.loading.Load()
}

func (s *Session) Tasks() []models.Task {
	return s.store.Tasks()
}

func (s *Session) Task(id string) (models.Task, bool) {
	return s.store.Get(id)
}

func (s *Session) Columns() []models.Column {
	return s.store.Columns()
}

func (s *Session) PendingMutations() []*Mutation {
	return s.tracker.Pending()
}

func (s *Session) ResolvedMutations() []*Mutation {
	return s.tracker.Resolved()
}

// Subscribe forwards the session's notifications to fn until the
// returned function is called.
func (s *Session) Subscribe(fn func(notify.Notification)) func() {
	return s.notifier.Subscribe(uuid.NewString(), fn)
}

// Watch calls fn with a snapshot of the tasks after every change until
// the returned function is called.
func (s *Session) Watch(fn func([]models.Task)) func() {
	id := uuid.NewString()
	s.watchMu.Lock()
	s.watchers[id] = fn
	s.watchMu.Unlock()

	return func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
}

// Watched reports whether anything is watching the board.
func (s *Session) Watched() bool {
	s.watchMu.RLock()
	defer s.watchMu.RUnlock()
	return len(s.watchers) > 0
}

func (s *Session) broadcast(tasks []models.Task) {
	s.watchMu.RLock()
	defer s.watchMu.RUnlock()

	for _, fn := range s.watchers {
		fn(tasks)
	}
}

func (s *Session) requireUser() (*models.User, error) {
	user := s.identity.CurrentUser()
	if user == nil {
		return nil, ErrAuthRequired
	}
	return user, nil
}

func (s *Session) remoteContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.RequestTimeout)
}

// UserIdentity is an Identity backed by a fixed user that can sign out.
type UserIdentity struct {
	user atomic.Pointer[models.User]
}

func NewUserIdentity(user *models.User) *UserIdentity {
	id := &UserIdentity{}
	id.user.Store(user)
	return id
}

func (i *UserIdentity) CurrentUser() *models.User {
	return i.user.Load()
}

func (i *UserIdentity) SignOut() {
	i.user.Store(nil)
}
