package board

import (
	"context"
	"errors"
	"time"

	"github.com/adanyl0v/go-taskboard/internal/models"
	"github.com/adanyl0v/go-taskboard/internal/realtime"
	"github.com/adanyl0v/go-taskboard/internal/services"
)

// visible is the feed filter: task events for tasks the user owns or
// already sees, and grant events naming the user.
func (s *Session) visible(e realtime.Event) bool {
	user := s.identity.CurrentUser()
	if user == nil {
		return false
	}

	switch e.Table {
	case realtime.TableTasks:
		row := e.Row()
		if row == nil {
			return false
		}
		if row.UserID == user.ID {
			return true
		}
		_, ok := s.store.Get(row.ID)
		return ok
	case realtime.TableCollaborators:
		rec := e.CollaboratorRecord()
		return rec != nil && rec.UserID == user.ID
	}
	return false
}

// reloadRetry is how long the listener waits before reloading again
// after a failed reload.
const reloadRetry = 5 * time.Second

func (s *Session) listen(sub *realtime.Subscription, done chan<- struct{}) {
	defer close(done)
	ctx := context.Background()

	var retry <-chan time.Time
	for {
		select {
		case e, ok := <-sub.Events:
			if !ok {
				return
			}
			s.HandleEvent(ctx, e)
			continue
		case <-sub.Resync:
		case <-retry:
		}

		retry = nil
		if !drain(sub.Events) {
			return
		}
		if err := s.reload(ctx); err != nil && !errors.Is(err, ErrAuthRequired) {
			retry = time.After(reloadRetry)
		}
	}
}

// drain discards the events buffered before a reload, which supersedes
// them. It reports false once events is closed.
func drain(events <-chan realtime.Event) bool {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return false
			}
		default:
			return true
		}
	}
}

// HandleEvent applies one change event to the local store. Every
// branch is idempotent, so duplicated or reordered deliveries converge.
func (s *Session) HandleEvent(ctx context.Context, e realtime.Event) {
	user := s.identity.CurrentUser()
	if user == nil {
		return
	}

	switch e.Table {
	case realtime.TableTasks:
		s.handleTaskEvent(ctx, user, e)
	case realtime.TableCollaborators:
		s.handleCollaboratorEvent(ctx, user, e)
	}
}

func (s *Session) handleTaskEvent(ctx context.Context, user *models.User, e realtime.Event) {
	row := e.Row()
	if row == nil {
		return
	}
	prior, present := s.store.Get(row.ID)
	owned := row.UserID == user.ID
	if owned && completedChanged(e, prior, present) {
		defer s.resyncCompleted(ctx, user.ID)
	}

	switch e.Type {
	case realtime.EventInsert:
		if !owned {
			return
		}
		s.upsertRow(ctx, e, *row)
	case realtime.EventUpdate:
		if !owned && !present {
			return
		}
		s.upsertRow(ctx, e, *row)
	case realtime.EventDelete:
		if !owned && !present {
			return
		}
		if s.store.Remove(row.ID) {
			s.logger.Debug().
				Str("task_id", row.ID).
				Msg("removed task from change event")
		}
	}
}

// completedChanged reports whether e moves a task into or out of done.
func completedChanged(e realtime.Event, prior models.Task, present bool) bool {
	wasDone := present && prior.Status == models.StatusDone
	if !present && e.OldTask != nil {
		wasDone = e.OldTask.Status == string(models.StatusDone)
	}
	isDone := e.Type != realtime.EventDelete && e.Task != nil &&
		e.Task.Status == string(models.StatusDone)
	return wasDone != isDone
}

func (s *Session) upsertRow(ctx context.Context, e realtime.Event, row realtime.TaskRow) {
	if e.Partial {
		s.fetchAndUpsert(ctx, row.ID)
		return
	}

	task, err := row.ToTask()
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", row.ID).
			Msg("failed to translate task row")
		return
	}
	s.store.Upsert(task)
	s.logger.Debug().
		Str("task_id", task.ID).
		Str("event", string(e.Type)).
		Msg("applied change event")
}

func (s *Session) handleCollaboratorEvent(ctx context.Context, user *models.User, e realtime.Event) {
	rec := e.CollaboratorRecord()
	if rec == nil || rec.UserID != user.ID {
		return
	}

	switch e.Type {
	case realtime.EventInsert:
		if _, ok := s.store.Get(rec.TaskID); ok {
			return
		}
		s.fetchAndUpsert(ctx, rec.TaskID)
	case realtime.EventDelete:
		rctx, cancel := s.remoteContext(ctx)
		defer cancel()

		owner, err := s.remote.Collaborators.IsTaskOwner(rctx, rec.TaskID, user.ID)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("task_id", rec.TaskID).
				Msg("failed to check task ownership")
			return
		}
		if !owner && s.store.Remove(rec.TaskID) {
			s.logger.Info().
				Str("task_id", rec.TaskID).
				Str("user_id", user.ID).
				Msg("lost access to task")
		}
	}
}

func (s *Session) fetchAndUpsert(ctx context.Context, taskID string) {
	rctx, cancel := s.remoteContext(ctx)
	defer cancel()

	task, err := s.remote.Tasks.GetTask(rctx, taskID)
	if err != nil {
		if errors.Is(err, services.ErrTaskNotFound) {
			s.store.Remove(taskID)
			return
		}
		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to fetch task")
		return
	}
	s.store.Upsert(*task)
	s.logger.Debug().
		Str("task_id", taskID).
		Msg("fetched task")
}
