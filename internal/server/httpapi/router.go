// Package httpapi exposes the server's JSON API over gin.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/logging"
	sc "github.com/mvogonkachristophe0112/privora12-sub002/internal/server/config"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/services"
)

// NewRouter builds the engine with all routes registered. Everything under
// /api/v1 except auth requires a bearer token.
func NewRouter(users *services.UserService, files *services.FileService,
	ledger *services.LedgerService, config *sc.Config, logger logging.Logger) *gin.Engine {

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestLogger(logger))

	authHandler := NewAuthHandler(users, logger)
	fileHandler := NewFileHandler(files, ledger, logger)
	shareHandler := NewShareHandler(ledger, logger)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api/v1")

	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	authorized := api.Group("")
	authorized.Use(RequireAuth(users, []byte(config.SecretKey)))
	{
		authorized.POST("/groups", authHandler.CreateGroup)
		authorized.POST("/groups/:id/members", authHandler.AddGroupMember)

		authorized.POST("/files", fileHandler.RegisterUpload)
		authorized.GET("/files", fileHandler.ListOwned)
		authorized.GET("/files/:id", fileHandler.Get)
		authorized.POST("/files/:id/complete", fileHandler.CompleteUpload)
		authorized.POST("/files/:id/versions", fileHandler.CreateVersion)
		authorized.GET("/files/:id/versions", fileHandler.ListVersions)
		authorized.POST("/files/:id/download", fileHandler.Download)
		authorized.GET("/files/:id/shares", shareHandler.ListForFile)
		authorized.POST("/files/:id/shares/revoke", fileHandler.BulkRevokeShares)

		authorized.POST("/shares", shareHandler.Create)
		authorized.GET("/shares/received", shareHandler.ListReceived)
		authorized.POST("/shares/:id/accept", shareHandler.Accept)
		authorized.POST("/shares/:id/reject", shareHandler.Reject)
		authorized.DELETE("/shares/:id", shareHandler.Revoke)
	}

	return engine
}
