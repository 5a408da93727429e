package v1

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/adanyl0v/go-taskboard/internal/models"
)

const userCtxKey = "user"

// HandleAuthMiddleware resolves the bearer token to the signed-in user.
func (h *handlerImpl) HandleAuthMiddleware(c *gin.Context) {
	const authHeader = "Authorization"
	header := c.GetHeader(authHeader)
	if header == "" {
		h.logger.Debug().Msg("authorization header required")
		abort(c, newUnauthorizedError("authorization header required"))
		return
	}

	const bearerPrefix = "Bearer"
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != bearerPrefix || parts[1] == "" {
		h.logger.Debug().Msg("invalid authorization header")
		abort(c, newUnauthorizedError("invalid authorization header"))
		return
	}

	claims, err := h.auth.ParseToken(parts[1])
	if err != nil {
		h.logger.Debug().
			Err(err).
			Msg("failed to parse token")
		if errors.Is(err, jwt.ErrTokenExpired) {
			abort(c, newUnauthorizedError("token is expired"))
			return
		}
		abort(c, newUnauthorizedError("invalid token"))
		return
	}

	c.Set(userCtxKey, &models.User{
		ID:    claims.Subject,
		Email: claims.Email,
	})
	c.Next()
}

func getUserFromContext(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(userCtxKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok && user != nil
}

// boardFromContext returns the caller's board, aborting with 401 when
// the middleware did not run.
func (h *handlerImpl) boardFromContext(c *gin.Context) (Board, bool) {
	user, ok := getUserFromContext(c)
	if !ok {
		h.logger.Error().Msg(errUserNotInContext.Error())
		abort(c, newUnauthorizedError(errUserNotInContext.Error()))
		return nil, false
	}
	return h.boards(c.Request.Context(), user), true
}
