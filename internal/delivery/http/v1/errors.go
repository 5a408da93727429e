package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-taskboard/internal/board"
)

var (
	errInvalidRequestBody = errors.New("invalid request body")
	errUserNotInContext   = errors.New("no user found in context")
)

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func newAPIError(code int, message string) apiError {
	return apiError{
		Code:    code,
		Message: message,
	}
}

func (e apiError) Error() string {
	return e.Message
}

func abort(c *gin.Context, err apiError) {
	c.AbortWithStatusJSON(err.Code, gin.H{"error": err.Message})
}

func newStatusTextError(status int) apiError {
	return newAPIError(status, http.StatusText(status))
}

func newBadRequestError(message string) apiError {
	return newAPIError(http.StatusBadRequest, message)
}

func newUnauthorizedError(message string) apiError {
	return newAPIError(http.StatusUnauthorized, message)
}

func newConflictError(message string) apiError {
	return newAPIError(http.StatusConflict, message)
}

// newBoardError maps a board session error onto a status code. The
// message is passed through.
func newBoardError(err error) apiError {
	switch {
	case errors.Is(err, board.ErrAuthRequired):
		return newUnauthorizedError(err.Error())
	case errors.Is(err, board.ErrLimitReached):
		return newAPIError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, board.ErrNotFound):
		return newAPIError(http.StatusNotFound, err.Error())
	case errors.Is(err, board.ErrAlreadyExists):
		return newConflictError(err.Error())
	case errors.Is(err, board.ErrInvalidInput):
		return newBadRequestError(err.Error())
	case errors.Is(err, board.ErrRemoteFailure):
		return newAPIError(http.StatusBadGateway, err.Error())
	}
	return newStatusTextError(http.StatusInternalServerError)
}
