package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/logging"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/services"
)

type ShareHandler struct {
	ledger *services.LedgerService
	logger logging.Logger
}

func NewShareHandler(ledger *services.LedgerService, logger logging.Logger) *ShareHandler {
	return &ShareHandler{ledger: ledger, logger: logger.With("handler", "shares")}
}

type createShareRequest struct {
	FileID         string     `json:"file_id" binding:"required"`
	RecipientID    string     `json:"recipient_id"`
	RecipientEmail string     `json:"recipient_email"`
	GroupID        string     `json:"group_id"`
	Permissions    []string   `json:"permissions" binding:"required,min=1"`
	ExpiresAt      *time.Time `json:"expires_at"`
	MaxAccessCount *int64     `json:"max_access_count"`
	Password       string     `json:"password"`
}

// grantView is the wire shape of a grant. The password hash never leaves the
// server; permissions render as a list.
type grantView struct {
	ID             string     `json:"id"`
	FileID         string     `json:"file_id"`
	RecipientID    string     `json:"recipient_id,omitempty"`
	RecipientEmail string     `json:"recipient_email,omitempty"`
	GroupID        string     `json:"group_id,omitempty"`
	Permissions    []string   `json:"permissions"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	MaxAccessCount *int64     `json:"max_access_count,omitempty"`
	AccessCount    int64      `json:"access_count"`
	Protected      bool       `json:"protected"`
	Revoked        bool       `json:"revoked"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
}

func viewGrant(g *models.ShareGrant) grantView {
	perms := make([]string, 0, len(g.Permissions))
	for _, p := range g.Permissions.Slice() {
		perms = append(perms, string(p))
	}
	return grantView{
		ID:             g.ID,
		FileID:         g.FileID,
		RecipientID:    g.RecipientID,
		RecipientEmail: g.RecipientEmail,
		GroupID:        g.GroupID,
		Permissions:    perms,
		ExpiresAt:      g.ExpiresAt,
		MaxAccessCount: g.MaxAccessCount,
		AccessCount:    g.AccessCount,
		Protected:      len(g.PasswordHash) > 0,
		Revoked:        g.Revoked,
		CreatedBy:      g.CreatedBy,
		CreatedAt:      g.CreatedAt,
	}
}

func viewGrants(list []*models.ShareGrant) []grantView {
	out := make([]grantView, 0, len(list))
	for _, g := range list {
		out = append(out, viewGrant(g))
	}
	return out
}

func (h *ShareHandler) Create(c *gin.Context) {
	var req createShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	perms := make([]models.Permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		perms = append(perms, models.Permission(p))
	}

	grant, err := h.ledger.CreateGrant(c.Request.Context(), services.CreateGrantParams{
		FileID:         req.FileID,
		CreatorID:      c.GetString(ctxUserID),
		RecipientID:    req.RecipientID,
		RecipientEmail: req.RecipientEmail,
		GroupID:        req.GroupID,
		Permissions:    perms,
		ExpiresAt:      req.ExpiresAt,
		MaxAccessCount: req.MaxAccessCount,
		Password:       req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, viewGrant(grant))
}

func (h *ShareHandler) ListForFile(c *gin.Context) {
	list, err := h.ledger.ListGrantsForFile(c.Request.Context(), c.Param("id"), c.GetString(ctxUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shares": viewGrants(list)})
}

func (h *ShareHandler) ListReceived(c *gin.Context) {
	list, err := h.ledger.ListReceived(c.Request.Context(),
		c.GetString(ctxUserID), c.GetString(ctxUserEmail))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shares": viewGrants(list)})
}

func (h *ShareHandler) Accept(c *gin.Context) {
	h.acknowledge(c, true)
}

func (h *ShareHandler) Reject(c *gin.Context) {
	h.acknowledge(c, false)
}

func (h *ShareHandler) acknowledge(c *gin.Context, accept bool) {
	err := h.ledger.Acknowledge(c.Request.Context(), c.Param("id"),
		c.GetString(ctxUserID), c.GetString(ctxUserEmail), accept)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ShareHandler) Revoke(c *gin.Context) {
	err := h.ledger.Revoke(c.Request.Context(), c.Param("id"), c.GetString(ctxUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
