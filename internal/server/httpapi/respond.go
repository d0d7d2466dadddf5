package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
)

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps domain errors onto HTTP statuses. Not-found and
// access-denied both come back as 404 so a stranger probing file ids cannot
// distinguish "exists but not yours" from "does not exist". Liveness
// failures (expired, revoked, quota) are 403 with a specific code: their
// caller already proved they were once granted access.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrAccessDenied):
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	case errors.Is(err, common.ErrExpired):
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "grant expired"})
	case errors.Is(err, common.ErrRevoked):
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "grant revoked"})
	case errors.Is(err, common.ErrQuotaExceeded):
		c.AbortWithStatusJSON(http.StatusForbidden, errorResponse{Error: "access quota exceeded"})
	case errors.Is(err, common.ErrDuplicateGrant):
		c.AbortWithStatusJSON(http.StatusConflict, errorResponse{Error: "duplicate grant"})
	case errors.Is(err, common.ErrVersionConflict):
		c.AbortWithStatusJSON(http.StatusConflict, errorResponse{Error: "version conflict"})
	case errors.Is(err, common.ErrFileTooLarge):
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, errorResponse{Error: "file too large"})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func respondBadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg})
}
