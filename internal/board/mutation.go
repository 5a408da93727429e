package board

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MutationKind string

const (
	MutationCreate  MutationKind = "create"
	MutationUpdate  MutationKind = "update"
	MutationDelete  MutationKind = "delete"
	MutationStatus  MutationKind = "status"
	MutationRestore MutationKind = "restore"
)

type MutationState int

const (
	MutationPending MutationState = iota
	MutationConfirmed
	MutationFailed
)

func (s MutationState) String() string {
	switch s {
	case MutationPending:
		return "pending"
	case MutationConfirmed:
		return "confirmed"
	case MutationFailed:
		return "failed"
	}
	return "unknown"
}

// Mutation tracks one optimistic change from the moment it is applied
// locally until the remote store confirms or rejects it. Rollbacks are
// registered while the change is applied and run, newest first, only
// when the mutation fails.
type Mutation struct {
	ID        string
	Kind      MutationKind
	TaskID    string
	StartedAt time.Time

	mu        sync.Mutex
	state     MutationState
	err       error
	rollbacks []func()
}

func (m *Mutation) State() MutationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Mutation) onFailure(fn func()) {
	m.mu.Lock()
	m.rollbacks = append(m.rollbacks, fn)
	m.mu.Unlock()
}

// keep forgets the registered rollbacks, leaving local state as is
// even if the mutation fails.
func (m *Mutation) keep() {
	m.mu.Lock()
	m.rollbacks = nil
	m.mu.Unlock()
}

func (m *Mutation) confirm() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != MutationPending {
		return false
	}
	m.state = MutationConfirmed
	m.rollbacks = nil
	return true
}

func (m *Mutation) fail(err error) bool {
	m.mu.Lock()
	if m.state != MutationPending {
		m.mu.Unlock()
		return false
	}
	m.state = MutationFailed
	m.err = err
	rollbacks := m.rollbacks
	m.rollbacks = nil
	m.mu.Unlock()

	for i := len(rollbacks) - 1; i >= 0; i-- {
		rollbacks[i]()
	}
	return true
}

const resolvedHistory = 32

// Tracker keeps in-flight mutations and a short history of resolved ones.
type Tracker struct {
	mu       sync.Mutex
	pending  map[string]*Mutation
	resolved []*Mutation
}

func NewTracker() *Tracker {
	return &Tracker{
		pending: make(map[string]*Mutation),
	}
}

func (t *Tracker) Begin(kind MutationKind, taskID string) *Mutation {
	m := &Mutation{
		ID:        uuid.NewString(),
		Kind:      kind,
		TaskID:    taskID,
		StartedAt: time.Now(),
	}

	t.mu.Lock()
	t.pending[m.ID] = m
	t.mu.Unlock()
	return m
}

func (t *Tracker) Confirm(m *Mutation) {
	if m.confirm() {
		t.finish(m)
	}
}

func (t *Tracker) Fail(m *Mutation, err error) {
	if m.fail(err) {
		t.finish(m)
	}
}

func (t *Tracker) finish(m *Mutation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.pending, m.ID)
	t.resolved = append(t.resolved, m)
	if len(t.resolved) > resolvedHistory {
		t.resolved = t.resolved[len(t.resolved)-resolvedHistory:]
	}
}

// Pending returns in-flight mutations, oldest first.
func (t *Tracker) Pending() []*Mutation {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Mutation, 0, len(t.pending))
	for _, m := range t.pending {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b *Mutation) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return out
}

// Resolved returns recently resolved mutations, oldest first.
func (t *Tracker) Resolved() []*Mutation {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Mutation, len(t.resolved))
	copy(out, t.resolved)
	return out
}
