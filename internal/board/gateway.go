package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adanyl0v/go-taskboard/internal/models"
	"github.com/adanyl0v/go-taskboard/internal/notify"
	"github.com/adanyl0v/go-taskboard/internal/services"
)

const maxTitleLength = 255

// CreateTask adds a task under a temporary id, asks the remote store to
// create it and swaps in the confirmed task. If the request fails the
// temporary task is removed again.
func (s *Session) CreateTask(ctx context.Context, input models.TaskInput) (*models.Task, error) {
	user, err := s.requireUser()
	if err != nil {
		s.notifier.Notify(notify.Error("You need to sign in to create tasks"))
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if err = validateTitle(title); err != nil {
		s.notifier.Notify(notify.Error(err.Error()))
		return nil, err
	}

	now := time.Now()
	temp := models.Task{
		ID:          models.TempIDPrefix + uuid.NewString(),
		UserID:      user.ID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      models.StatusTodo,
		CreatedAt:   now,
		UpdatedAt:   now,
		DueDate:     input.DueDate,
	}

	m := s.tracker.Begin(MutationCreate, temp.ID)
	s.store.Upsert(temp)
	m.onFailure(func() { s.store.Remove(temp.ID) })

	rctx, cancel := s.remoteContext(ctx)
	defer cancel()

	created, err := s.remote.Tasks.CreateTask(rctx, services.CreateTaskParams{
		UserID:      user.ID,
		Title:       temp.Title,
		Description: temp.Description,
		DueDate:     temp.DueDate,
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("temp_id", temp.ID).
			Msg("failed to create task")
		err = remoteFailure(err)
		s.tracker.Fail(m, err)
		s.notifyFailure("create task", err)
		return nil, err
	}

	s.store.Swap(temp.ID, *created)
	s.tracker.Confirm(m)
	s.logger.Info().
		Str("task_id", created.ID).
		Str("user_id", user.ID).
		Msg("created task")
	s.notifier.Notify(notify.Success("Task created"))
	return created, nil
}

// UpdateTask patches title, description or due date. A failed request
// leaves the optimistic values in place; the next change event or
// reload corrects them.
func (s *Session) UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	user, err := s.requireUser()
	if err != nil {
		s.notifier.Notify(notify.Error("You need to sign in to update tasks"))
		return nil, err
	}

	if patch.Status != nil {
		err = invalidInput("status changes go through ChangeTaskStatus")
		s.notifyFailure("update task", err)
		return nil, err
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if err = validateTitle(title); err != nil {
			s.notifier.Notify(notify.Error(err.Error()))
			return nil, err
		}
		patch.Title = &title
	}

	if patch.Empty() {
		if task, ok := s.store.Get(id); ok {
			return &task, nil
		}
		return nil, notFound("task")
	}

	m := s.tracker.Begin(MutationUpdate, id)
	s.store.Patch(id, patch)
	m.keep()

	rctx, cancel := s.remoteContext(ctx)
	defer cancel()

	updated, err := s.remote.Tasks.UpdateTask(rctx, services.UpdateTaskParams{
		ID:     id,
		UserID: user.ID,
		Patch:  patch,
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", id).
			Msg("failed to update task")
		err = s.mapTaskError(err)
		s.tracker.Fail(m, err)
		s.notifyFailure("update task", err)
		return nil, err
	}

	s.refresh(*updated)
	s.tracker.Confirm(m)
	s.logger.Info().
		Str("task_id", id).
		Str("user_id", user.ID).
		Msg("updated task")
	s.notifier.Notify(notify.Success("Task updated"))
	return updated, nil
}

// DeleteTask removes the task locally and remotely. If the remote
// delete fails the task is put back where it was, unless the remote
// store reports it does not exist.
func (s *Session) DeleteTask(ctx context.Context, id string) error {
	user, err := s.requireUser()
	if err != nil {
		s.notifier.Notify(notify.Error("You need to sign in to delete tasks"))
		return err
	}

	m := s.tracker.Begin(MutationDelete, id)
	pos := s.store.Position(id)
	prior, ok := s.store.Get(id)
	if ok {
		s.store.Remove(id)
		m.onFailure(func() { s.store.Insert(pos, prior) })
	}

	rctx, cancel := s.remoteContext(ctx)
	defer cancel()

	err = s.remote.Tasks.DeleteTask(rctx, services.DeleteTaskParams{
		ID:     id,
		UserID: user.ID,
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", id).
			Msg("failed to delete task")
		if errors.Is(err, services.ErrTaskNotFound) {
			m.keep()
		}
		err = s.mapTaskError(err)
		s.tracker.Fail(m, err)
		s.notifyFailure("delete task", err)
		return err
	}

	s.tracker.Confirm(m)
	if ok {
		s.rememberDeleted(&deletedTask{task: prior, pos: pos})
	}
	if !ok || prior.Status == models.StatusDone {
		s.resyncCompleted(ctx, user.ID)
	}
	s.logger.Info().
		Str("task_id", id).
		Str("user_id", user.ID).
		Msg("deleted task")
	s.notifier.Notify(notify.Success("Task deleted"))
	return nil
}

// deletedTask is what UndoDelete needs to put a task back.
type deletedTask struct {
	task models.Task
	pos  int
}

func (s *Session) rememberDeleted(d *deletedTask) {
	s.deletedMu.Lock()
	s.deleted = d
	s.deletedMu.Unlock()
}

func (s *Session) takeDeleted() *deletedTask {
	s.deletedMu.Lock()
	defer s.deletedMu.Unlock()
	d := s.deleted
	s.deleted = nil
	return d
}

// UndoDelete recreates the most recently deleted task where it was.
// The restored task gets a new id and none of the old grants. If the
// request fails the task can be restored again.
func (s *Session) UndoDelete(ctx context.Context) (*models.Task, error) {
	user, err := s.requireUser()
	if err != nil {
		s.notifier.Notify(notify.Error("You need to sign in to restore tasks"))
		return nil, err
	}

	last := s.takeDeleted()
	if last == nil {
		s.notifier.Notify(notify.Error("There is no deleted task to restore"))
		return nil, notFound("deleted task")
	}
	restoreLater := func() {
		s.deletedMu.Lock()
		if s.deleted == nil {
			s.deleted = last
		}
		s.deletedMu.Unlock()
	}

	if last.task.Status == models.StatusDone {
		err = s.checkCompletedLimit(ctx, user.ID)
		if err != nil {
			restoreLater()
			if errors.Is(err, ErrLimitReached) {
				s.notifier.Notify(notify.Error("You have reached the free plan limit of completed tasks"))
			} else {
				s.notifyFailure("restore task", err)
			}
			return nil, err
		}
	}

	temp := last.task
	temp.ID = models.TempIDPrefix + uuid.NewString()
	temp.UserID = user.ID

	m := s.tracker.Begin(MutationRestore, temp.ID)
	s.store.Insert(last.pos, temp)
	m.onFailure(func() { s.store.Remove(temp.ID) })

	rctx, cancel := s.remoteContext(ctx)
	defer cancel()

	created, err := s.remote.Tasks.CreateTask(rctx, services.CreateTaskParams{
		UserID:      user.ID,
		Title:       temp.Title,
		Description: temp.Description,
		Status:      temp.Status,
		DueDate:     temp.DueDate,
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("deleted_id", last.task.ID).
			Msg("failed to restore task")
		err = remoteFailure(err)
		s.tracker.Fail(m, err)
		restoreLater()
		s.notifyFailure("restore task", err)
		return nil, err
	}

	s.store.Swap(temp.ID, *created)
	s.tracker.Confirm(m)
	if created.Status == models.StatusDone {
		s.resyncCompleted(ctx, user.ID)
	}
	s.logger.Info().
		Str("task_id", created.ID).
		Str("deleted_id", last.task.ID).
		Msg("restored task")
	s.notifier.Notify(notify.Success("Task restored"))
	return created, nil
}

// ChangeTaskStatus moves a task to another column. Moving to done is
// refused once a free-tier user reached the completed task ceiling.
// On failure the status captured before the change is restored.
func (s *Session) ChangeTaskStatus(ctx context.Context, id string, status models.Status) (*models.Task, error) {
	user, err := s.requireUser()
	if err != nil {
		s.notifier.Notify(notify.Error("You need to sign in to change task status"))
		return nil, err
	}

	if !status.Valid() {
		err = invalidInput(fmt.Sprintf("unknown status %q", status))
		s.notifyFailure("change task status", err)
		return nil, err
	}

	current, known := s.store.Get(id)
	if known && current.Status == status {
		return &current, nil
	}

	if status == models.StatusDone {
		err = s.checkCompletedLimit(ctx, user.ID)
		if err != nil {
			if errors.Is(err, ErrLimitReached) {
				s.notifier.Notify(notify.Error("You have reached the free plan limit of completed tasks"))
			} else {
				s.notifyFailure("change task status", err)
			}
			return nil, err
		}
	}

	m := s.tracker.Begin(MutationStatus, id)
	if known {
		prior := current.Status
		s.store.Patch(id, models.TaskPatch{Status: &status})
		m.onFailure(func() {
			s.store.Patch(id, models.TaskPatch{Status: &prior})
		})
	}

	rctx, cancel := s.remoteContext(ctx)
	defer cancel()

	updated, err := s.remote.Tasks.UpdateTask(rctx, services.UpdateTaskParams{
		ID:     id,
		UserID: user.ID,
		Patch:  models.TaskPatch{Status: &status},
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", id).
			Str("status", string(status)).
			Msg("failed to change task status")
		err = s.mapTaskError(err)
		s.tracker.Fail(m, err)
		s.notifyFailure("change task status", err)
		return nil, err
	}

	s.refresh(*updated)
	s.tracker.Confirm(m)
	s.resyncCompleted(ctx, user.ID)

	s.logger.Info().
		Str("task_id", id).
		Str("status", string(status)).
		Msg("changed task status")
	s.notifier.Notify(notify.Success("Task status changed"))
	return updated, nil
}

func (s *Session) checkCompletedLimit(ctx context.Context, userID string) error {
	rctx, cancel := s.remoteContext(ctx)
	defer cancel()

	isPro, err := s.subscription.IsPro(rctx, userID)
	if err != nil {
		return remoteFailure(err)
	}
	if isPro {
		return nil
	}

	count, err := s.subscription.CompletedCount(rctx, userID)
	if err != nil {
		return remoteFailure(err)
	}
	if count >= s.cfg.FreeTierCeiling {
		s.logger.Info().
			Str("user_id", userID).
			Int("completed", count).
			Int("ceiling", s.cfg.FreeTierCeiling).
			Msg("completed task limit reached")
		return ErrLimitReached
	}
	return nil
}

// resyncCompleted recounts the user's completed tasks so the cached
// count used by checkCompletedLimit follows the database.
func (s *Session) resyncCompleted(ctx context.Context, userID string) {
	rctx, cancel := s.remoteContext(ctx)
	defer cancel()

	_, err := s.subscription.Resync(rctx, userID)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("user_id", userID).
			Msg("failed to resync completed task count")
	}
}

// refresh stores the server copy of a task that is still visible.
func (s *Session) refresh(task models.Task) {
	if _, ok := s.store.Get(task.ID); ok {
		s.store.Upsert(task)
	}
}

func (s *Session) mapTaskError(err error) error {
	if errors.Is(err, services.ErrTaskNotFound) {
		return notFound("task")
	}
	return remoteFailure(err)
}

func validateTitle(title string) error {
	if title == "" {
		return invalidInput("title is required")
	}
	if len([]rune(title)) > maxTitleLength {
		return invalidInput(fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}
	return nil
}

// notifyFailure tells the user an action failed, passing the cause
// through.
func (s *Session) notifyFailure(action string, err error) {
	s.notifier.Notify(notify.Error(fmt.Sprintf("Failed to %s: %v", action, err)))
}
