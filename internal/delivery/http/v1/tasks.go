package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-taskboard/internal/board"
	"github.com/adanyl0v/go-taskboard/internal/models"
)

type taskResponse struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Pending     bool       `json:"pending"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DueDate     *time.Time `json:"due_date"`
}

func newTaskResponse(task models.Task) taskResponse {
	return taskResponse{
		ID:          task.ID,
		UserID:      task.UserID,
		Title:       task.Title,
		Description: task.Description,
		Status:      string(task.Status),
		Pending:     task.IsTemporary(),
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
		DueDate:     task.DueDate,
	}
}

func newTaskResponses(tasks []models.Task) []taskResponse {
	out := make([]taskResponse, len(tasks))
	for i, task := range tasks {
		out[i] = newTaskResponse(task)
	}
	return out
}

type columnResponse struct {
	Status string         `json:"status"`
	Title  string         `json:"title"`
	Tasks  []taskResponse `json:"tasks"`
}

type mutationResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	TaskID    string    `json:"task_id"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"started_at"`
}

type boardResponse struct {
	Loading bool               `json:"loading"`
	Tasks   []taskResponse     `json:"tasks"`
	Columns []columnResponse   `json:"columns"`
	Pending []mutationResponse `json:"pending"`
}

func newBoardResponse(b Board) boardResponse {
	return newBoardSnapshot(b.Loading(), b.Tasks(), b.PendingMutations())
}

func newBoardSnapshot(loading bool, tasks []models.Task, pending []*board.Mutation) boardResponse {
	resp := boardResponse{
		Loading: loading,
		Tasks:   newTaskResponses(tasks),
		Pending: make([]mutationResponse, len(pending)),
	}
	for _, col := range models.GroupByStatus(tasks) {
		resp.Columns = append(resp.Columns, columnResponse{
			Status: string(col.Status),
			Title:  col.Title,
			Tasks:  newTaskResponses(col.Tasks),
		})
	}
	for i, m := range pending {
		resp.Pending[i] = mutationResponse{
			ID:        m.ID,
			Kind:      string(m.Kind),
			TaskID:    m.TaskID,
			State:     m.State().String(),
			StartedAt: m.StartedAt,
		}
	}
	return resp
}

func (h *handlerImpl) HandleGetBoard(c *gin.Context) {
	b, ok := h.boardFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newBoardResponse(b))
}

func (h *handlerImpl) HandleRefreshBoard(c *gin.Context) {
	b, ok := h.boardFromContext(c)
	if !ok {
		return
	}

	err := b.Load(c.Request.Context())
	if err != nil {
		abort(c, newBoardError(err))
		return
	}
	c.JSON(http.StatusOK, newBoardResponse(b))
}

type createTaskRequest struct {
	Title       string     `json:"title" binding:"required,max=255"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

func (h *handlerImpl) HandleCreateTask(c *gin.Context) {
	b, ok := h.boardFromContext(c)
	if !ok {
		return
	}

	var req createTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	input := models.TaskInput{
		Title:   req.Title,
		DueDate: req.DueDate,
	}
	if req.Description != nil {
		input.Description = *req.Description
	}

	task, err := b.CreateTask(c.Request.Context(), input)
	if err != nil {
		abort(c, newBoardError(err))
		return
	}
	c.JSON(http.StatusCreated, newTaskResponse(*task))
}

type updateTaskRequest struct {
	Title        *string    `json:"title,omitempty" binding:"omitempty,max=255"`
	Description  *string    `json:"description,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	ClearDueDate bool       `json:"clear_due_date,omitempty"`
}

func (h *handlerImpl) HandleUpdateTask(c *gin.Context) {
	b, ok := h.boardFromContext(c)
	if !ok {
		return
	}

	var req updateTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	task, err := b.UpdateTask(c.Request.Context(), c.Param("id"), models.TaskPatch{
		Title:        req.Title,
		Description:  req.Description,
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
	})
	if err != nil {
		abort(c, newBoardError(err))
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(*task))
}

type setTaskStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *handlerImpl) HandleSetTaskStatus(c *gin.Context) {
	b, ok := h.boardFromContext(c)
	if !ok {
		return
	}

	var req setTaskStatusRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	status, err := models.ParseStatus(req.Status)
	if err != nil {
		abort(c, newBadRequestError(err.Error()))
		return
	}

	task, err := b.ChangeTaskStatus(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		abort(c, newBoardError(err))
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(*task))
}

func (h *handlerImpl) HandleDeleteTask(c *gin.Context) {
	b, ok := h.boardFromContext(c)
	if !ok {
		return
	}

	err := b.DeleteTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, newBoardError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleRestoreTask undoes the user's last delete.
func (h *handlerImpl) HandleRestoreTask(c *gin.Context) {
	b, ok := h.boardFromContext(c)
	if !ok {
		return
	}

	task, err := b.UndoDelete(c.Request.Context())
	if err != nil {
		abort(c, newBoardError(err))
		return
	}
	c.JSON(http.StatusCreated, newTaskResponse(*task))
}
