package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/adanyl0v/go-taskboard/internal/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrUserPasswordMismatch = errors.New("user password mismatch")
	ErrTaskNotFound         = errors.New("task not found")
	ErrInvalidTaskStatus    = errors.New("invalid task status")
	ErrCollaboratorExists   = errors.New("user is already a collaborator")
	ErrCollaboratorNotFound = errors.New("collaborator not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidToken         = errors.New("invalid token")
)

// isMalformedID reports whether Postgres rejected an id that is not a
// uuid. No row can match such an id.
func isMalformedID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}

type AuthService interface {
	// Register a user with the given email and password.
	//
	// It hashes the password, generates a unique ID, creates the
	// user's public profile and issues an access token.
	//
	// It returns ErrUserAlreadyExists if the user
	// with the given email already exists.
	Register(ctx context.Context, params LoginParams) (*LoginResult, error)

	// Login authenticates the user by email and password.
	//
	// It returns ErrUserNotFound if the user with the given
	// email doesn't exist or ErrUserPasswordMismatch if the
	// given password doesn't match the user's password.
	Login(ctx context.Context, params LoginParams) (*LoginResult, error)

	// ParseToken parses the given access token and returns its claims,
	// or an error wrapping ErrInvalidToken (and jwt.ErrTokenExpired
	// when the token is expired).
	ParseToken(token string) (*Claims, error)
}

type TaskService interface {
	// ListVisibleTasks returns the tasks owned by or shared with the
	// user, newest first.
	ListVisibleTasks(ctx context.Context, userID string) ([]*models.Task, error)

	// GetTask returns ErrTaskNotFound if there is no task with the ID.
	GetTask(ctx context.Context, taskID string) (*models.Task, error)

	CreateTask(ctx context.Context, params CreateTaskParams) (*models.Task, error)

	// UpdateTask applies the patch if the user owns the task or
	// collaborates on it, otherwise it returns ErrTaskNotFound.
	UpdateTask(ctx context.Context, params UpdateTaskParams) (*models.Task, error)

	// DeleteTask deletes a task owned by the user. It returns
	// ErrTaskNotFound if there is no such task.
	DeleteTask(ctx context.Context, params DeleteTaskParams) error
}

type CollaboratorService interface {
	IsCollaborator(ctx context.Context, taskID, userID string) (bool, error)

	// AddCollaborator grants access to the task. The grant only
	// succeeds if AddedBy owns the task, otherwise ErrTaskNotFound
	// is returned. A duplicate grant returns ErrCollaboratorExists.
	AddCollaborator(ctx context.Context, params AddCollaboratorParams) (*models.TaskCollaborator, error)

	// RemoveCollaborator revokes a grant. The task owner and the
	// collaborator themself may revoke it; otherwise, or if the grant
	// doesn't exist, ErrCollaboratorNotFound is returned.
	RemoveCollaborator(ctx context.Context, params RemoveCollaboratorParams) error

	// ListCollaborators returns the grants on a task the user owns or
	// collaborates on. Any other task yields ErrTaskNotFound.
	ListCollaborators(ctx context.Context, taskID, userID string) ([]*models.TaskCollaborator, error)

	IsTaskOwner(ctx context.Context, taskID, userID string) (bool, error)
}

type ProfileService interface {
	// GetUserIDByHandle returns ErrUserNotFound if no
	// profile carries the handle.
	GetUserIDByHandle(ctx context.Context, handle string) (string, error)
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

type SubscriptionService interface {
	IsPro(ctx context.Context, userID string) (bool, error)
	CountCompletedTasks(ctx context.Context, userID string) (int, error)
}

type LoginParams struct {
	Email    string
	Password string
}

type LoginResult struct {
	UserID               string
	Email                string
	AccessToken          string
	AccessTokenExpiresAt time.Time
}

type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

type CreateTaskParams struct {
	UserID      string
	Title       string
	Description string
	// Status defaults to todo.
	Status  models.Status
	DueDate *time.Time
}

type UpdateTaskParams struct {
	ID     string
	UserID string
	Patch  models.TaskPatch
}

type DeleteTaskParams struct {
	ID     string
	UserID string
}

type AddCollaboratorParams struct {
	TaskID  string
	UserID  string
	AddedBy string
}

type RemoveCollaboratorParams struct {
	ID          string
	RequestedBy string
}
