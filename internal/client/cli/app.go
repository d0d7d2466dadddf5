// Package cli implements the interactive Privora client: a REPL over the
// server API plus the local transfer engine.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/client/api"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/client/config"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/filex"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/logging"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/transfer"
)

// apiClient is the server surface the commands need. The real api.Client
// satisfies it; tests can provide a stub.
type apiClient interface {
	SetToken(token string)
	Register(ctx context.Context, email, displayName, password string) (*api.Session, error)
	Login(ctx context.Context, email, password string) (*api.Session, error)
	RegisterUpload(ctx context.Context, req api.UploadRequest) (*api.File, *api.UploadTask, error)
	CompleteUpload(ctx context.Context, fileID string) error
	ListFiles(ctx context.Context) ([]api.File, error)
	GetFile(ctx context.Context, fileID string) (*api.File, error)
	CreateVersion(ctx context.Context, fileID string, size int64, changeNote string) (*api.FileVersion, *api.UploadTask, error)
	ListVersions(ctx context.Context, fileID string) ([]api.FileVersion, error)
	Download(ctx context.Context, fileID, password string) (*api.DownloadSource, error)
	CreateShare(ctx context.Context, req api.ShareRequest) (*api.Share, error)
	ListSharesForFile(ctx context.Context, fileID string) ([]api.Share, error)
	ListReceivedShares(ctx context.Context) ([]api.Share, error)
	AcceptShare(ctx context.Context, shareID string) error
	RejectShare(ctx context.Context, shareID string) error
	RevokeShare(ctx context.Context, shareID string) error
	BulkRevokeShares(ctx context.Context, fileID string) (int64, error)
	CreateGroup(ctx context.Context, name string) (*api.Group, error)
	AddGroupMember(ctx context.Context, groupID, userID string) error
}

type App struct {
	config      *config.Config
	api         apiClient
	scheduler   *transfer.Scheduler
	downloadDir string
	session     *api.Session
	reader      *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {
	dir, err := filex.EnsureSubDir(c.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("preparing download dir: %w", err)
	}

	// Engine logs go to stderr so they do not interleave with REPL output.
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	app := &App{
		config:      c,
		api:         api.NewClient(c.ServerEndpointAddr),
		downloadDir: dir,
		reader:      bufio.NewReader(os.Stdin),
	}
	app.scheduler = transfer.NewScheduler(transfer.Options{
		MaxActive:  c.MaxActiveTransfers,
		MaxRetries: c.MaxRetries,
		OnProgress: app.onProgress,
	}, logger)

	return app, nil
}

func (a *App) isLoggedIn() bool {
	return a.session != nil
}

// Run starts the REPL and blocks until the user exits or ctx is cancelled.
// Running transfers are shut down on the way out; paused partials stay on
// disk for the next session.
func (a *App) Run(ctx context.Context) {
	printlnFn("Privora CLI (type 'help' for commands)")

	scanner := bufio.NewScanner(os.Stdin)
	runREPL(ctx, a, a.status, scanner)

	a.scheduler.Shutdown()
}

func (a *App) status() string {
	if a.session == nil {
		return "not logged in"
	}
	return a.session.User.Email
}
