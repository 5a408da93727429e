package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-taskboard/internal/models"
)

type collaboratorResponse struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id"`
	Handle    string    `json:"handle"`
	AddedBy   string    `json:"added_by"`
	CreatedAt time.Time `json:"created_at"`
}

func newCollaboratorResponse(grant models.TaskCollaborator) collaboratorResponse {
	return collaboratorResponse{
		ID:        grant.ID,
		TaskID:    grant.TaskID,
		UserID:    grant.UserID,
		Handle:    grant.Handle,
		AddedBy:   grant.AddedBy,
		CreatedAt: grant.CreatedAt,
	}
}

func (h *handlerImpl) HandleListCollaborators(c *gin.Context) {
	b, ok := h.boardFromContext(c)
	if !ok {
		return
	}

	grants, err := b.ListCollaborators(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, newBoardError(err))
		return
	}

	resp := make([]collaboratorResponse, len(grants))
	for i, grant := range grants {
		resp[i] = newCollaboratorResponse(grant)
	}
	c.JSON(http.StatusOK, gin.H{"collaborators": resp})
}

type addCollaboratorRequest struct {
	Handle string `json:"handle" binding:"required,max=255"`
}

func (h *handlerImpl) HandleAddCollaborator(c *gin.Context) {
	b, ok := h.boardFromContext(c)
	if !ok {
		return
	}

	var req addCollaboratorRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to bind json")
		abort(c, newBadRequestError(errInvalidRequestBody.Error()))
		return
	}

	added, err := b.AddCollaborator(c.Request.Context(), c.Param("id"), req.Handle)
	if err != nil {
		abort(c, newBoardError(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"added": added})
}

func (h *handlerImpl) HandleRemoveCollaborator(c *gin.Context) {
	b, ok := h.boardFromContext(c)
	if !ok {
		return
	}

	_, err := b.RemoveCollaborator(c.Request.Context(), c.Param("grant_id"))
	if err != nil {
		abort(c, newBoardError(err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlerImpl) HandleGetOwnership(c *gin.Context) {
	b, ok := h.boardFromContext(c)
	if !ok {
		return
	}

	owner, err := b.IsOwner(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, newBoardError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"owner": owner})
}
