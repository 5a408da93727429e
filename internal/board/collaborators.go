package board

import (
	"context"
	"errors"
	"strings"

	"github.com/adanyl0v/go-taskboard/internal/models"
	"github.com/adanyl0v/go-taskboard/internal/notify"
	"github.com/adanyl0v/go-taskboard/internal/services"
)

// AddCollaborator grants the user behind handle access to the task.
// It reports false with ErrNotFound when the handle is unknown and
// ErrAlreadyExists when the user already has access.
func (s *Session) AddCollaborator(ctx context.Context, taskID, handle string) (bool, error) {
	user, err := s.requireUser()
	if err != nil {
		s.notifier.Notify(notify.Error("You need to sign in to share tasks"))
		return false, err
	}

	handle = normalizeHandle(handle)
	if handle == "" {
		err = invalidInput("handle is required")
		s.notifyFailure("add collaborator", err)
		return false, err
	}

	ctx, cancel := s.remoteContext(ctx)
	defer cancel()

	collaboratorID, err := s.remote.Profiles.GetUserIDByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			s.notifier.Notify(notify.Error("User not found"))
			return false, notFound("user")
		}
		s.logger.Error().
			Err(err).
			Str("handle", handle).
			Msg("failed to resolve handle")
		err = remoteFailure(err)
		s.notifyFailure("add collaborator", err)
		return false, err
	}

	owner, err := s.remote.Collaborators.IsTaskOwner(ctx, taskID, collaboratorID)
	if err != nil {
		err = remoteFailure(err)
		s.notifyFailure("add collaborator", err)
		return false, err
	}
	if owner {
		s.notifier.Notify(notify.Error("This user owns the task"))
		return false, alreadyExists("user owns the task")
	}

	exists, err := s.remote.Collaborators.IsCollaborator(ctx, taskID, collaboratorID)
	if err != nil {
		err = remoteFailure(err)
		s.notifyFailure("add collaborator", err)
		return false, err
	}
	if exists {
		s.notifier.Notify(notify.Error("This user is already a collaborator"))
		return false, alreadyExists("already a collaborator")
	}

	grant, err := s.remote.Collaborators.AddCollaborator(ctx, services.AddCollaboratorParams{
		TaskID:  taskID,
		UserID:  collaboratorID,
		AddedBy: user.ID,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCollaboratorExists):
			s.notifier.Notify(notify.Error("This user is already a collaborator"))
			return false, alreadyExists("already a collaborator")
		case errors.Is(err, services.ErrTaskNotFound):
			s.notifier.Notify(notify.Error("Task not found"))
			return false, notFound("task")
		}
		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to add collaborator")
		err = remoteFailure(err)
		s.notifyFailure("add collaborator", err)
		return false, err
	}

	s.logger.Info().
		Str("task_id", taskID).
		Str("grant_id", grant.ID).
		Str("collaborator_id", collaboratorID).
		Msg("added collaborator")
	s.notifier.Notify(notify.Success("Collaborator added"))
	return true, nil
}

// RemoveCollaborator revokes the grant with the given id.
func (s *Session) RemoveCollaborator(ctx context.Context, grantID string) (bool, error) {
	user, err := s.requireUser()
	if err != nil {
		s.notifier.Notify(notify.Error("You need to sign in to manage collaborators"))
		return false, err
	}

	ctx, cancel := s.remoteContext(ctx)
	defer cancel()

	err = s.remote.Collaborators.RemoveCollaborator(ctx, services.RemoveCollaboratorParams{
		ID:          grantID,
		RequestedBy: user.ID,
	})
	if err != nil {
		if errors.Is(err, services.ErrCollaboratorNotFound) {
			s.notifier.Notify(notify.Error("Collaborator not found"))
			return false, notFound("collaborator")
		}
		s.logger.Error().
			Err(err).
			Str("grant_id", grantID).
			Msg("failed to remove collaborator")
		err = remoteFailure(err)
		s.notifyFailure("remove collaborator", err)
		return false, err
	}

	s.logger.Info().
		Str("grant_id", grantID).
		Msg("removed collaborator")
	s.notifier.Notify(notify.Success("Collaborator removed"))
	return true, nil
}

// ListCollaborators returns the grants on a task the user can see.
func (s *Session) ListCollaborators(ctx context.Context, taskID string) ([]models.TaskCollaborator, error) {
	user, err := s.requireUser()
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.remoteContext(ctx)
	defer cancel()

	grants, err := s.remote.Collaborators.ListCollaborators(ctx, taskID, user.ID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to list collaborators")
		err = s.mapTaskError(err)
		s.notifyFailure("load collaborators", err)
		return nil, err
	}

	out := make([]models.TaskCollaborator, len(grants))
	for i, grant := range grants {
		out[i] = *grant
	}
	return out, nil
}

func (s *Session) IsOwner(ctx context.Context, taskID string) (bool, error) {
	user, err := s.requireUser()
	if err != nil {
		return false, err
	}

	ctx, cancel := s.remoteContext(ctx)
	defer cancel()

	owner, err := s.remote.Collaborators.IsTaskOwner(ctx, taskID, user.ID)
	if err != nil {
		return false, remoteFailure(err)
	}
	return owner, nil
}

func normalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	handle = strings.TrimPrefix(handle, "@")
	if strings.Contains(handle, "@") {
		return models.HandleFromEmail(handle)
	}
	return strings.ToLower(handle)
}
