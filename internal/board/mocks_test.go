package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-taskboard/internal/models"
	"github.com/adanyl0v/go-taskboard/internal/notify"
	"github.com/adanyl0v/go-taskboard/internal/services"
)

var errMockRemote = errors.New("mock remote error")

// MockTaskService implements services.TaskService for testing
type MockTaskService struct {
	mu         sync.Mutex
	ListFunc   func(ctx context.Context, userID string) ([]*models.Task, error)
	GetFunc    func(ctx context.Context, taskID string) (*models.Task, error)
	CreateFunc func(ctx context.Context, params services.CreateTaskParams) (*models.Task, error)
	UpdateFunc func(ctx context.Context, params services.UpdateTaskParams) (*models.Task, error)
	DeleteFunc func(ctx context.Context, params services.DeleteTaskParams) error

	Created []services.CreateTaskParams
	Updated []services.UpdateTaskParams
	Deleted []services.DeleteTaskParams
	nextID  int
}

func (m *MockTaskService) ListVisibleTasks(ctx context.Context, userID string) ([]*models.Task, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockTaskService) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, taskID)
	}
	return nil, services.ErrTaskNotFound
}

func (m *MockTaskService) CreateTask(ctx context.Context, params services.CreateTaskParams) (*models.Task, error) {
	m.mu.Lock()
	m.Created = append(m.Created, params)
	m.nextID++
	id := fmt.Sprintf("task-%d", m.nextID)
	m.mu.Unlock()

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	status := params.Status
	if status == "" {
		status = models.StatusTodo
	}
	now := time.Now()
	return &models.Task{
		ID:          id,
		UserID:      params.UserID,
		Title:       params.Title,
		Description: params.Description,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
		DueDate:     params.DueDate,
	}, nil
}

func (m *MockTaskService) UpdateTask(ctx context.Context, params services.UpdateTaskParams) (*models.Task, error) {
	m.mu.Lock()
	m.Updated = append(m.Updated, params)
	m.mu.Unlock()

	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, params)
	}
	return nil, services.ErrTaskNotFound
}

func (m *MockTaskService) DeleteTask(ctx context.Context, params services.DeleteTaskParams) error {
	m.mu.Lock()
	m.Deleted = append(m.Deleted, params)
	m.mu.Unlock()

	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, params)
	}
	return nil
}

// MockCollaboratorService implements services.CollaboratorService for testing
type MockCollaboratorService struct {
	IsCollaboratorFunc func(ctx context.Context, taskID, userID string) (bool, error)
	AddFunc            func(ctx context.Context, params services.AddCollaboratorParams) (*models.TaskCollaborator, error)
	RemoveFunc         func(ctx context.Context, params services.RemoveCollaboratorParams) error
	ListFunc           func(ctx context.Context, taskID, userID string) ([]*models.TaskCollaborator, error)
	IsOwnerFunc        func(ctx context.Context, taskID, userID string) (bool, error)

	AddCalls int
}

func (m *MockCollaboratorService) IsCollaborator(ctx context.Context, taskID, userID string) (bool, error) {
	if m.IsCollaboratorFunc != nil {
		return m.IsCollaboratorFunc(ctx, taskID, userID)
	}
	return false, nil
}

func (m *MockCollaboratorService) AddCollaborator(ctx context.Context, params services.AddCollaboratorParams) (*models.TaskCollaborator, error) {
	m.AddCalls++
	if m.AddFunc != nil {
		return m.AddFunc(ctx, params)
	}
	return &models.TaskCollaborator{
		ID:        "grant-1",
		TaskID:    params.TaskID,
		UserID:    params.UserID,
		AddedBy:   params.AddedBy,
		CreatedAt: time.Now(),
	}, nil
}

func (m *MockCollaboratorService) RemoveCollaborator(ctx context.Context, params services.RemoveCollaboratorParams) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, params)
	}
	return nil
}

func (m *MockCollaboratorService) ListCollaborators(ctx context.Context, taskID, userID string) ([]*models.TaskCollaborator, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, taskID, userID)
	}
	return nil, nil
}

func (m *MockCollaboratorService) IsTaskOwner(ctx context.Context, taskID, userID string) (bool, error) {
	if m.IsOwnerFunc != nil {
		return m.IsOwnerFunc(ctx, taskID, userID)
	}
	return false, nil
}

// MockProfileService implements services.ProfileService for testing
type MockProfileService struct {
	Handles map[string]string
}

func (m *MockProfileService) GetUserIDByHandle(_ context.Context, handle string) (string, error) {
	id, ok := m.Handles[handle]
	if !ok {
		return "", services.ErrUserNotFound
	}
	return id, nil
}

func (m *MockProfileService) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	for handle, id := range m.Handles {
		if id == userID {
			return &models.Profile{UserID: id, Handle: handle}, nil
		}
	}
	return nil, services.ErrUserNotFound
}

// MockSubscription implements Subscription for testing. Completed acts
// as the cached count; ResyncFunc, when set, supplies the recount.
type MockSubscription struct {
	mu         sync.Mutex
	Pro        bool
	Completed  int
	Err        error
	ResyncFunc func(userID string) int

	ResyncCalls int
}

func (m *MockSubscription) IsPro(context.Context, string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Pro, m.Err
}

func (m *MockSubscription) CompletedCount(context.Context, string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Completed, m.Err
}

func (m *MockSubscription) Resync(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResyncCalls++
	if m.Err == nil && m.ResyncFunc != nil {
		m.Completed = m.ResyncFunc(userID)
	}
	return m.Completed, m.Err
}

func (m *MockSubscription) resyncs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ResyncCalls
}

// recordingNotifier keeps every notification it receives
type recordingNotifier struct {
	mu    sync.Mutex
	items []notify.Notification
}

func (r *recordingNotifier) Notify(n notify.Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

func (r *recordingNotifier) Start() {}
func (r *recordingNotifier) Stop()  {}

func (r *recordingNotifier) Subscribe(string, func(notify.Notification)) func() {
	return func() {}
}

func (r *recordingNotifier) last() notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return notify.Notification{}
	}
	return r.items[len(r.items)-1]
}

func (r *recordingNotifier) count(level notify.Level) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.Level == level {
			n++
		}
	}
	return n
}

type fixture struct {
	session       *Session
	identity      *UserIdentity
	tasks         *MockTaskService
	collaborators *MockCollaboratorService
	profiles      *MockProfileService
	subscription  *MockSubscription
	notifier      *recordingNotifier
}

var testUser = &models.User{ID: "user-1", Email: "alice@example.com"}

func newFixture() *fixture {
	f := &fixture{
		identity:      NewUserIdentity(testUser),
		tasks:         &MockTaskService{},
		collaborators: &MockCollaboratorService{},
		profiles:      &MockProfileService{Handles: map[string]string{"alice": "user-1", "bob": "user-2"}},
		subscription:  &MockSubscription{},
		notifier:      &recordingNotifier{},
	}
	f.session = NewSession(
		zerolog.Nop(),
		Config{FreeTierCeiling: 10, RequestTimeout: time.Second},
		f.identity,
		Remote{
			Tasks:         f.tasks,
			Collaborators: f.collaborators,
			Profiles:      f.profiles,
		},
		f.subscription,
		f.notifier,
	)
	return f
}

func newTask(id string, status models.Status) models.Task {
	now := time.Now()
	return models.Task{
		ID:        id,
		UserID:    testUser.ID,
		Title:     "task " + id,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// seed loads tasks into the session through the remote list call.
func (f *fixture) seed(tasks ...models.Task) {
	f.tasks.ListFunc = func(context.Context, string) ([]*models.Task, error) {
		out := make([]*models.Task, len(tasks))
		for i := range tasks {
			task := tasks[i]
			out[i] = &task
		}
		return out, nil
	}
	if err := f.session.Load(context.Background()); err != nil {
		panic(err)
	}
}
