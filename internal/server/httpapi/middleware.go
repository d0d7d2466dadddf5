package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/logging"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/auth"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/services"
)

// Context keys set by RequireAuth for downstream handlers.
const (
	ctxUserID    = "userID"
	ctxUserEmail = "userEmail"
)

// RequireAuth validates the bearer token and loads the caller's identity
// into the request context.
func RequireAuth(users *services.UserService, secretKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AccessTokenHeaderName)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})
			return
		}

		userID, err := auth.GetUserIDFromToken(token, secretKey)
		if err != nil {
			respondError(c, err)
			return
		}

		user, err := users.GetUser(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unknown user"})
			return
		}

		c.Set(ctxUserID, user.ID)
		c.Set(ctxUserEmail, user.Email)
		c.Next()
	}
}

// RequestLogger logs one line per request with method, path, status and
// duration.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
		)
	}
}
