package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-taskboard/internal/models"
)

const taskColumns = `t.id,
       t.user_id,
       t.title,
       t.description,
       t.status,
       t.created_at,
       t.updated_at,
       t.due_date`

type taskServiceImpl struct {
	logger zerolog.Logger
	pgPool *pgxpool.Pool
}

func NewTaskService(
	logger zerolog.Logger,
	pgPool *pgxpool.Pool,
) TaskService {
	return &taskServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

func (s *taskServiceImpl) ListVisibleTasks(ctx context.Context, userID string) ([]*models.Task, error) {
	const selectVisibleTasksQuery = `
SELECT ` + taskColumns + `
FROM tasks t
WHERE t.user_id = $1
   OR EXISTS (SELECT 1
              FROM task_collaborators c
              WHERE c.task_id = t.id AND c.user_id = $1)
ORDER BY t.created_at DESC
`
	rows, err := s.pgPool.Query(
		ctx,
		selectVisibleTasksQuery,
		userID,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("user_id", userID).
			Msg("failed to select visible tasks")
		return nil, err
	}
	defer rows.Close()

	tasks := make([]*models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan task")
			return nil, err
		}
		tasks = append(tasks, task)
	}

	err = rows.Err()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}
	s.logger.Debug().
		Int("count", len(tasks)).
		Str("user_id", userID).
		Msg("selected visible tasks")
	return tasks, nil
}

func (s *taskServiceImpl) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	const selectTaskByIDQuery = `
SELECT ` + taskColumns + `
FROM tasks t
WHERE t.id = $1
`
	task, err := scanTask(s.pgPool.QueryRow(ctx, selectTaskByIDQuery, taskID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			s.logger.Debug().
				Str("task_id", taskID).
				Msg("task not found")
			return nil, ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Str("task_id", taskID).
			Msg("failed to select task by id")
		return nil, err
	}
	return task, nil
}

func (s *taskServiceImpl) CreateTask(ctx context.Context, params CreateTaskParams) (*models.Task, error) {
	status := models.StatusTodo
	if params.Status != "" {
		if !params.Status.Valid() {
			return nil, ErrInvalidTaskStatus
		}
		status = params.Status
	}

	now := time.Now()
	task := &models.Task{
		UserID:      params.UserID,
		Title:       params.Title,
		Description: params.Description,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
		DueDate:     params.DueDate,
	}

	taskUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate task uuid")
		return nil, err
	}
	task.ID = taskUUID.String()

	const insertTaskQuery = `
INSERT INTO tasks (id,
                   user_id,
                   title,
                   description,
                   status,
                   created_at,
                   updated_at,
                   due_date)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	_, err = s.pgPool.Exec(
		ctx,
		insertTaskQuery,
		task.ID,
		task.UserID,
		task.Title,
		task.Description,
		string(task.Status),
		task.CreatedAt,
		task.UpdatedAt,
		task.DueDate,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to insert task")
		return nil, err
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("user_id", task.UserID).
		Msg("created task")
	return task, nil
}

func (s *taskServiceImpl) UpdateTask(ctx context.Context, params UpdateTaskParams) (*models.Task, error) {
	if params.Patch.Status != nil && !params.Patch.Status.Valid() {
		return nil, ErrInvalidTaskStatus
	}

	query, args := buildUpdateTaskQuery(params, time.Now())
	task, err := scanTask(s.pgPool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isMalformedID(err) {
			s.logger.Error().
				Str("task_id", params.ID).
				Str("user_id", params.UserID).
				Msg("task not found")
			return nil, ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Str("task_id", params.ID).
			Msg("failed to update task")
		return nil, err
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Str("user_id", params.UserID).
		Msg("updated task")
	return task, nil
}

// buildUpdateTaskQuery sets only the fields present in the patch. The
// task owner and its collaborators may update it.
func buildUpdateTaskQuery(params UpdateTaskParams, now time.Time) (string, []any) {
	var (
		set  []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	p := params.Patch
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.ClearDueDate {
		add("due_date", nil)
	} else if p.DueDate != nil {
		add("due_date", *p.DueDate)
	}
	add("updated_at", now)

	args = append(args, params.ID, params.UserID)
	idArg, userArg := len(args)-1, len(args)

	query := fmt.Sprintf(`
UPDATE tasks t
SET %s
WHERE t.id = $%d
  AND (t.user_id = $%d
       OR EXISTS (SELECT 1
                  FROM task_collaborators c
                  WHERE c.task_id = t.id AND c.user_id = $%d))
RETURNING %s
`, strings.Join(set, ",\n    "), idArg, userArg, userArg, taskColumns)
	return query, args
}

func (s *taskServiceImpl) DeleteTask(ctx context.Context, params DeleteTaskParams) error {
	const deleteTaskQuery = `
DELETE FROM tasks
WHERE id = $1 AND user_id = $2
`
	tag, err := s.pgPool.Exec(
		ctx,
		deleteTaskQuery,
		params.ID,
		params.UserID,
	)
	if err != nil && !isMalformedID(err) {
		s.logger.Error().
			Err(err).
			Str("task_id", params.ID).
			Msg("failed to delete task")
		return err
	}
	if err != nil || tag.RowsAffected() == 0 {
		s.logger.Error().
			Str("task_id", params.ID).
			Str("user_id", params.UserID).
			Msg("task not found")
		return ErrTaskNotFound
	}

	s.logger.Info().
		Str("task_id", params.ID).
		Str("user_id", params.UserID).
		Msg("deleted task")
	return nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var (
		task   models.Task
		status string
	)
	err := row.Scan(
		&task.ID,
		&task.UserID,
		&task.Title,
		&task.Description,
		&status,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.DueDate,
	)
	if err != nil {
		return nil, err
	}

	task.Status, err = models.ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", task.ID, err)
	}
	return &task, nil
}
