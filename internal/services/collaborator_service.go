package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-taskboard/internal/models"
)

type collaboratorServiceImpl struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool
}

func NewCollaboratorService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
) CollaboratorService {
	return &collaboratorServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

func (s *collaboratorServiceImpl) IsCollaborator(ctx context.Context, taskID, userID string) (bool, error) {
	const selectCollaboratorExistsQuery = `
SELECT EXISTS (SELECT 1
               FROM task_collaborators
               WHERE task_id = $1 AND user_id = $2)
`
	var exists bool
	err := s.pgPool.QueryRow(
		ctx,
		selectCollaboratorExistsQuery,
		taskID,
		userID,
	).Scan(&exists)
	if isMalformedID(err) {
		return false, nil
	}
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to check collaborator")
		return false, err
	}
	return exists, nil
}

func (s *collaboratorServiceImpl) AddCollaborator(ctx context.Context, params AddCollaboratorParams) (*models.TaskCollaborator, error) {
	grant := &models.TaskCollaborator{
		TaskID:    params.TaskID,
		UserID:    params.UserID,
		AddedBy:   params.AddedBy,
		CreatedAt: time.Now(),
	}

	grantUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate grant uuid")
		return nil, err
	}
	grant.ID = grantUUID.String()

	// The select yields no row unless added_by owns the task.
	const insertCollaboratorQuery = `
INSERT INTO task_collaborators (id,
                                task_id,
                                user_id,
                                added_by,
                                created_at)
SELECT $1, t.id, $3, $4, $5
FROM tasks t
WHERE t.id = $2 AND t.user_id = $4
RETURNING id
`
	err = s.pgPool.QueryRow(
		ctx,
		insertCollaboratorQuery,
		grant.ID,
		grant.TaskID,
		grant.UserID,
		grant.AddedBy,
		grant.CreatedAt,
	).Scan(&grant.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			s.logger.Error().
				Str("task_id", grant.TaskID).
				Str("added_by", grant.AddedBy).
				Msg("task not found")
			return nil, ErrTaskNotFound
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				s.logger.Error().
					Str("task_id", grant.TaskID).
					Str("user_id", grant.UserID).
					Msg("user is already a collaborator")
				return nil, ErrCollaboratorExists
			case pgerrcode.ForeignKeyViolation:
				s.logger.Error().
					Str("user_id", grant.UserID).
					Msg("user not found")
				return nil, ErrUserNotFound
			}
		}

		s.logger.Error().
			Err(err).
			Msg("failed to insert collaborator")
		return nil, err
	}

	s.logger.Info().
		Str("grant_id", grant.ID).
		Str("task_id", grant.TaskID).
		Str("user_id", grant.UserID).
		Msg("added collaborator")
	return grant, nil
}

func (s *collaboratorServiceImpl) RemoveCollaborator(ctx context.Context, params RemoveCollaboratorParams) error {
	const deleteCollaboratorQuery = `
DELETE FROM task_collaborators c
USING tasks t
WHERE c.id = $1
  AND t.id = c.task_id
  AND (t.user_id = $2 OR c.user_id = $2)
`
	tag, err := s.pgPool.Exec(
		ctx,
		deleteCollaboratorQuery,
		params.ID,
		params.RequestedBy,
	)
	if err != nil && !isMalformedID(err) {
		s.logger.Error().
			Err(err).
			Str("grant_id", params.ID).
			Msg("failed to delete collaborator")
		return err
	}
	if err != nil || tag.RowsAffected() == 0 {
		s.logger.Error().
			Str("grant_id", params.ID).
			Str("requested_by", params.RequestedBy).
			Msg("collaborator not found")
		return ErrCollaboratorNotFound
	}

	s.logger.Info().
		Str("grant_id", params.ID).
		Msg("removed collaborator")
	return nil
}

func (s *collaboratorServiceImpl) ListCollaborators(ctx context.Context, taskID, userID string) ([]*models.TaskCollaborator, error) {
	const selectTaskVisibleQuery = `
SELECT EXISTS (SELECT 1
               FROM tasks t
               WHERE t.id = $1
                 AND (t.user_id = $2
                      OR EXISTS (SELECT 1
                                 FROM task_collaborators c
                                 WHERE c.task_id = t.id AND c.user_id = $2)))
`
	var visible bool
	err := s.pgPool.QueryRow(ctx, selectTaskVisibleQuery, taskID, userID).Scan(&visible)
	if err != nil && !isMalformedID(err) {
		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to check task visibility")
		return nil, err
	}
	if !visible {
		s.logger.Debug().
			Str("task_id", taskID).
			Str("user_id", userID).
			Msg("task not found")
		return nil, ErrTaskNotFound
	}

	const selectCollaboratorsQuery = `
SELECT c.id,
       c.task_id,
       c.user_id,
       COALESCE(p.handle, ''),
       c.added_by,
       c.created_at
FROM task_collaborators c
LEFT JOIN profiles p ON p.user_id = c.user_id
WHERE c.task_id = $1
ORDER BY c.created_at
`
	rows, err := s.pgPool.Query(ctx, selectCollaboratorsQuery, taskID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to select collaborators")
		return nil, err
	}
	defer rows.Close()

	grants := make([]*models.TaskCollaborator, 0)
	for rows.Next() {
		grant := new(models.TaskCollaborator)
		err = rows.Scan(
			&grant.ID,
			&grant.TaskID,
			&grant.UserID,
			&grant.Handle,
			&grant.AddedBy,
			&grant.CreatedAt,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan collaborator")
			return nil, err
		}
		grants = append(grants, grant)
	}

	err = rows.Err()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}
	s.logger.Debug().
		Str("task_id", taskID).
		Int("count", len(grants)).
		Msg("selected collaborators")
	return grants, nil
}

func (s *collaboratorServiceImpl) IsTaskOwner(ctx context.Context, taskID, userID string) (bool, error) {
	const selectTaskOwnerQuery = `
SELECT EXISTS (SELECT 1
               FROM tasks
               WHERE id = $1 AND user_id = $2)
`
	var owner bool
	err := s.pgPool.QueryRow(
		ctx,
		selectTaskOwnerQuery,
		taskID,
		userID,
	).Scan(&owner)
	if isMalformedID(err) {
		return false, nil
	}
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to check task owner")
		return false, err
	}
	return owner, nil
}
