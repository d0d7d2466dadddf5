package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/logging"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/services"
)

type FileHandler struct {
	files  *services.FileService
	ledger *services.LedgerService
	logger logging.Logger
}

func NewFileHandler(files *services.FileService, ledger *services.LedgerService, logger logging.Logger) *FileHandler {
	return &FileHandler{files: files, ledger: ledger, logger: logger.With("handler", "files")}
}

type registerUploadRequest struct {
	DisplayName  string `json:"display_name" binding:"required"`
	OriginalName string `json:"original_name"`
	Size         int64  `json:"size" binding:"required,min=0"`
	MimeType     string `json:"mime_type"`
	Encrypted    bool   `json:"encrypted"`
	KeyRef       string `json:"key_ref"`
}

type uploadResponse struct {
	File   *models.File           `json:"file,omitempty"`
	Upload *models.FileUploadTask `json:"upload"`
}

func (h *FileHandler) RegisterUpload(c *gin.Context) {
	var req registerUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	file, task, err := h.files.RegisterUpload(c.Request.Context(), c.GetString(ctxUserID),
		req.DisplayName, req.OriginalName, req.Size, req.MimeType, req.Encrypted, req.KeyRef)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, uploadResponse{File: file, Upload: task})
}

func (h *FileHandler) CompleteUpload(c *gin.Context) {
	err := h.files.CompleteUpload(c.Request.Context(), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FileHandler) ListOwned(c *gin.Context) {
	list, err := h.files.ListOwned(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": list})
}

func (h *FileHandler) Get(c *gin.Context) {
	file, err := h.files.GetFile(c.Request.Context(),
		c.GetString(ctxUserID), c.GetString(ctxUserEmail), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

type createVersionRequest struct {
	Size       int64  `json:"size" binding:"required,min=0"`
	ChangeNote string `json:"change_note"`
}

type versionResponse struct {
	Version *models.FileVersion    `json:"version"`
	Upload  *models.FileUploadTask `json:"upload"`
}

func (h *FileHandler) CreateVersion(c *gin.Context) {
	var req createVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	version, task, err := h.files.CreateVersion(c.Request.Context(),
		c.GetString(ctxUserID), c.Param("id"), req.Size, req.ChangeNote)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, versionResponse{Version: version, Upload: task})
}

func (h *FileHandler) ListVersions(c *gin.Context) {
	list, err := h.files.ListVersions(c.Request.Context(), c.GetString(ctxUserID), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": list})
}

type downloadRequest struct {
	Password string `json:"password"`
}

type downloadResponse struct {
	FileID     string `json:"file_id"`
	URL        string `json:"url"`
	Size       int64  `json:"size"`
	Encrypted  bool   `json:"encrypted"`
	Capability string `json:"capability"`
}

// Download authorizes and returns a presigned source. POST rather than GET:
// it consumes quota and may carry a grant password.
func (h *FileHandler) Download(c *gin.Context) {
	var req downloadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err.Error())
			return
		}
	}

	src, err := h.files.GetDownloadSource(c.Request.Context(),
		c.GetString(ctxUserID), c.GetString(ctxUserEmail), c.Param("id"), req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, downloadResponse{
		FileID:     src.FileID,
		URL:        src.URL,
		Size:       src.Size,
		Encrypted:  src.Encrypted,
		Capability: src.Capability,
	})
}

func (h *FileHandler) BulkRevokeShares(c *gin.Context) {
	n, err := h.ledger.BulkRevokeForFile(c.Request.Context(), c.Param("id"), c.GetString(ctxUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": n})
}
