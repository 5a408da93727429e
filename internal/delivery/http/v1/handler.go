package v1

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-taskboard/internal/board"
	"github.com/adanyl0v/go-taskboard/internal/models"
	"github.com/adanyl0v/go-taskboard/internal/notify"
	"github.com/adanyl0v/go-taskboard/internal/services"
)

type Handler interface {
	HandleLogin(c *gin.Context)
	HandleRegister(c *gin.Context)
	HandleAuthMiddleware(c *gin.Context)

	HandleGetBoard(c *gin.Context)
	HandleRefreshBoard(c *gin.Context)
	HandleCreateTask(c *gin.Context)
	HandleUpdateTask(c *gin.Context)
	HandleSetTaskStatus(c *gin.Context)
	HandleDeleteTask(c *gin.Context)
	HandleRestoreTask(c *gin.Context)

	HandleListCollaborators(c *gin.Context)
	HandleAddCollaborator(c *gin.Context)
	HandleRemoveCollaborator(c *gin.Context)
	HandleGetOwnership(c *gin.Context)

	HandleStream(c *gin.Context)
}

// Board is the part of a board session the API drives.
type Board interface {
	Loading() bool
	Tasks() []models.Task
	Columns() []models.Column
	PendingMutations() []*board.Mutation
	Load(ctx context.Context) error

	CreateTask(ctx context.Context, input models.TaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
	UndoDelete(ctx context.Context) (*models.Task, error)
	ChangeTaskStatus(ctx context.Context, id string, status models.Status) (*models.Task, error)

	AddCollaborator(ctx context.Context, taskID, handle string) (bool, error)
	RemoveCollaborator(ctx context.Context, grantID string) (bool, error)
	ListCollaborators(ctx context.Context, taskID string) ([]models.TaskCollaborator, error)
	IsOwner(ctx context.Context, taskID string) (bool, error)

	Watch(fn func([]models.Task)) func()
	Subscribe(fn func(notify.Notification)) func()
}

// BoardProvider returns the board session of a signed-in user.
type BoardProvider func(ctx context.Context, user *models.User) Board

type handlerImpl struct {
	logger    zerolog.Logger
	auth      services.AuthService
	boards    BoardProvider
	heartbeat time.Duration
}

func New(
	logger zerolog.Logger,
	authService services.AuthService,
	boards BoardProvider,
	streamHeartbeat time.Duration,
) Handler {
	if streamHeartbeat <= 0 {
		streamHeartbeat = 30 * time.Second
	}
	return &handlerImpl{
		logger:    logger,
		auth:      authService,
		boards:    boards,
		heartbeat: streamHeartbeat,
	}
}

// RegisterRoutes mounts the API on router.
func RegisterRoutes(router gin.IRouter, h Handler) {
	authRouter := router.Group("/auth")
	authRouter.POST("/login", h.HandleLogin)
	authRouter.POST("/register", h.HandleRegister)

	protected := router.Group("", h.HandleAuthMiddleware)
	protected.GET("/stream", h.HandleStream)

	tasksRouter := protected.Group("/tasks")
	tasksRouter.GET("", h.HandleGetBoard)
	tasksRouter.POST("", h.HandleCreateTask)
	tasksRouter.POST("/refresh", h.HandleRefreshBoard)
	tasksRouter.POST("/restore", h.HandleRestoreTask)
	tasksRouter.PATCH("/:id", h.HandleUpdateTask)
	tasksRouter.PATCH("/:id/status", h.HandleSetTaskStatus)
	tasksRouter.DELETE("/:id", h.HandleDeleteTask)
	tasksRouter.GET("/:id/owner", h.HandleGetOwnership)
	tasksRouter.GET("/:id/collaborators", h.HandleListCollaborators)
	tasksRouter.POST("/:id/collaborators", h.HandleAddCollaborator)
	tasksRouter.DELETE("/:id/collaborators/:grant_id", h.HandleRemoveCollaborator)
}
