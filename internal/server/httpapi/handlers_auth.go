package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/logging"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/services"
)

type AuthHandler struct {
	users  *services.UserService
	logger logging.Logger
}

func NewAuthHandler(users *services.UserService, logger logging.Logger) *AuthHandler {
	return &AuthHandler{users: users, logger: logger.With("handler", "auth")}
}

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password" binding:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	Token string   `json:"token"`
	User  userView `json:"user"`
}

type userView struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func viewUser(u *models.User) userView {
	return userView{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	user, token, err := h.users.Register(c.Request.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{Token: token, User: viewUser(user)})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	user, token, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse{Token: token, User: viewUser(user)})
}

type createGroupRequest struct {
	Name string `json:"name" binding:"required"`
}

type addMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *AuthHandler) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	group, err := h.users.CreateGroup(c.Request.Context(), c.GetString(ctxUserID), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, group)
}

func (h *AuthHandler) AddGroupMember(c *gin.Context) {
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	err := h.users.AddGroupMember(c.Request.Context(), c.GetString(ctxUserID), c.Param("id"), req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
