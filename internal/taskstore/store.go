// Package taskstore holds the in-process view of the tasks visible to
// one user. It is the only source presentation reads from.
package taskstore

import (
	"sync"

	"github.com/adanyl0v/go-taskboard/internal/models"
)

// Store is an ordered task collection with at most one entry per id.
// New entries are prepended, so the order follows arrival rather than
// creation time.
type Store struct {
	mu       sync.RWMutex
	tasks    []models.Task
	onChange func([]models.Task)
}

func New() *Store {
	return &Store{}
}

// OnChange registers fn to receive a snapshot after every mutation.
// fn runs outside the store lock.
func (s *Store) OnChange(fn func([]models.Task)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Store) ReplaceAll(tasks []models.Task) {
	s.mu.Lock()
	s.tasks = make([]models.Task, 0, len(tasks))
	seen := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		if _, dup := seen[task.ID]; dup {
			continue
		}
		seen[task.ID] = struct{}{}
		s.tasks = append(s.tasks, task)
	}
	s.unlockAndNotify()
}

// Upsert replaces the entry with the same id in place, or prepends task.
func (s *Store) Upsert(task models.Task) {
	s.mu.Lock()
	if i := s.indexOf(task.ID); i >= 0 {
		s.tasks[i] = task
	} else {
		s.tasks = append([]models.Task{task}, s.tasks...)
	}
	s.unlockAndNotify()
}

// Swap puts task where oldID was. Any other entry already carrying
// task.ID is dropped so ids stay unique. When oldID is absent Swap
// behaves like Upsert.
func (s *Store) Swap(oldID string, task models.Task) {
	s.mu.Lock()
	i := s.indexOf(oldID)
	if i < 0 {
		s.mu.Unlock()
		s.Upsert(task)
		return
	}

	s.tasks[i] = task
	for j := 0; j < len(s.tasks); j++ {
		if j != i && s.tasks[j].ID == task.ID {
			s.tasks = append(s.tasks[:j], s.tasks[j+1:]...)
			break
		}
	}
	s.unlockAndNotify()
}

// Remove deletes the entry with id and reports whether it existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
	s.unlockAndNotify()
	return true
}

// Insert puts task back at position i, clamped to the collection
// bounds. Used to undo a removal. It is a no-op if the id is present.
func (s *Store) Insert(i int, task models.Task) {
	s.mu.Lock()
	if s.indexOf(task.ID) >= 0 {
		s.mu.Unlock()
		return
	}
	i = max(0, min(i, len(s.tasks)))
	s.tasks = append(s.tasks, models.Task{})
	copy(s.tasks[i+1:], s.tasks[i:])
	s.tasks[i] = task
	s.unlockAndNotify()
}

// Patch merges patch into the entry with id.
func (s *Store) Patch(id string, patch models.TaskPatch) (models.Task, bool) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return models.Task{}, false
	}
	s.tasks[i] = patch.Apply(s.tasks[i])
	task := s.tasks[i]
	s.unlockAndNotify()
	return task, true
}

func (s *Store) Get(id string) (models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.tasks[i], true
	}
	return models.Task{}, false
}

// Position returns the index of id, or -1.
func (s *Store) Position(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOf(id)
}

func (s *Store) Tasks() []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot()
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

func (s *Store) Columns() []models.Column {
	return models.GroupByStatus(s.Tasks())
}

func (s *Store) indexOf(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshot() []models.Task {
	out := make([]models.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// unlockAndNotify releases the write lock and then calls the observer
// with the state it saw while still holding it.
func (s *Store) unlockAndNotify() {
	fn := s.onChange
	var snap []models.Task
	if fn != nil {
		snap = s.snapshot()
	}
	s.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}
