package billing

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-taskboard/internal/services"
)

var (
	errMissingToken = errors.New("authentication token not provided")
	errNoEmail      = errors.New("authentication error: user has no email")
)

// TokenParser resolves an access token to its claims.
type TokenParser interface {
	ParseToken(token string) (*services.Claims, error)
}

type Handler struct {
	logger  zerolog.Logger
	tokens  TokenParser
	portal  Portal
	siteURL string
}

func NewHandler(logger zerolog.Logger, tokens TokenParser, portal Portal, siteURL string) *Handler {
	return &Handler{
		logger:  logger,
		tokens:  tokens,
		portal:  portal,
		siteURL: siteURL,
	}
}

type customerPortalRequest struct {
	ReturnURL string `json:"returnUrl"`
}

type customerPortalResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Register mounts the portal endpoint on router.
func (h *Handler) Register(router gin.IRouter) {
	router.OPTIONS("/customer-portal", h.HandlePreflight)
	router.POST("/customer-portal", h.HandleCustomerPortal)
}

func (h *Handler) HandlePreflight(c *gin.Context) {
	setCORSHeaders(c)
	c.Status(http.StatusNoContent)
}

// HandleCustomerPortal answers with the portal URL, or with a 500 and
// the failure message whatever went wrong.
func (h *Handler) HandleCustomerPortal(c *gin.Context) {
	setCORSHeaders(c)

	url, err := h.createSession(c)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to create customer portal session")
		c.JSON(http.StatusInternalServerError, customerPortalResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, customerPortalResponse{
		Success: true,
		URL:     url,
	})
}

func (h *Handler) createSession(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errMissingToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

	claims, err := h.tokens.ParseToken(token)
	if err != nil {
		return "", err
	}
	if claims.Email == "" {
		return "", errNoEmail
	}
	h.logger.Debug().
		Str("user_id", claims.Subject).
		Msg("authenticated portal request")

	// The body is optional; a missing or malformed one is ignored.
	var req customerPortalRequest
	_ = c.ShouldBindJSON(&req)

	returnURL := ResolveReturnURL(req.ReturnURL, h.siteURL, c.GetHeader("Origin"))
	url, err := h.portal.CreateSession(c.Request.Context(), claims.Email, returnURL)
	if err != nil {
		return "", err
	}

	h.logger.Info().
		Str("user_id", claims.Subject).
		Str("return_url", returnURL).
		Msg("created customer portal session")
	return url, nil
}

// ResolveReturnURL picks the first non-empty of the requested URL, the
// configured site URL and the request origin, or DefaultReturnURL.
func ResolveReturnURL(requested, siteURL, origin string) string {
	for _, candidate := range []string{requested, siteURL, origin} {
		if candidate != "" {
			return candidate
		}
	}
	return DefaultReturnURL
}

func setCORSHeaders(c *gin.Context) {
	h := c.Writer.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "*")
	h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	h.Set("Access-Control-Max-Age", "86400")
}
