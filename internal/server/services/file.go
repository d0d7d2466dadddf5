package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/dbx"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/events"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/logging"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/auth"
	sc "github.com/mvogonkachristophe0112/privora12-sub002/internal/server/config"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/repomanager"
)

// versionRetries bounds the optimistic retry loop around the monotonic
// version allocation. Conflicts only occur under concurrent version
// creation on the same file.
const versionRetries = 3

// DownloadSource is everything a client needs to run one transfer: where to
// fetch, how big, whether to decrypt, and a signed capability proving the
// authorization that produced it.
type DownloadSource struct {
	FileID     string
	URL        string
	Size       int64
	Encrypted  bool
	Capability string
}

// FileService owns file metadata, the append-only version history, and the
// authorize-then-presign download path.
type FileService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	blobs  *BlobStore
	ledger *LedgerService
	sink   events.Sink
	config *sc.Config
	logger logging.Logger
}

func NewFileService(db *sql.DB, repos repomanager.RepositoryManager, blobs *BlobStore,
	ledger *LedgerService, sink events.Sink, config *sc.Config, logger logging.Logger) *FileService {
	return &FileService{
		db:     db,
		repos:  repos,
		blobs:  blobs,
		ledger: ledger,
		sink:   sink,
		config: config,
		logger: logger.With("module", "files"),
	}
}

// RegisterUpload validates the declared size against the configured ceiling
// (a file exactly at the ceiling is accepted), creates the metadata row plus
// version 1, and hands back a presigned PUT URL for the content.
func (s *FileService) RegisterUpload(ctx context.Context, ownerID, displayName, originalName string,
	size int64, mimeType string, encrypted bool, keyRef string) (*models.File, *models.FileUploadTask, error) {

	if size < 0 {
		return nil, nil, fmt.Errorf("%w: negative size", common.ErrInternal)
	}
	if size > s.config.MaxFileSize {
		return nil, nil, fmt.Errorf("%w: %d > %d", common.ErrFileTooLarge, size, s.config.MaxFileSize)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	storageKey, url, err := s.blobs.PresignedPutURL(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("presign error: %w", err)
	}

	file := &models.File{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		DisplayName:  displayName,
		OriginalName: originalName,
		Size:         size,
		MimeType:     mimeType,
		StorageKey:   storageKey,
		Encrypted:    encrypted,
		KeyRef:       keyRef,
		UploadStatus: models.UploadPending,
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Files(tx).Create(ctx, file); err != nil {
			return err
		}
		_, err := s.repos.Versions(tx).CreateNext(ctx, &models.FileVersion{
			ID:         uuid.NewString(),
			FileID:     file.ID,
			Size:       size,
			StorageKey: storageKey,
			ChangeNote: "initial upload",
			CreatedBy:  ownerID,
		})
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("error creating file: %w", err)
	}

	return file, &models.FileUploadTask{FileID: file.ID, URL: url}, nil
}

// CompleteUpload marks the content as stored and emits the uploaded event.
// Owner only.
func (s *FileService) CompleteUpload(ctx context.Context, ownerID, fileID string) error {
	file, err := s.repos.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if file.OwnerID != ownerID {
		return common.ErrAccessDenied
	}

	if err := s.repos.Files(s.db).MarkUploaded(ctx, fileID); err != nil {
		return err
	}

	s.ledger.emit(ctx, events.NewEvent(events.FileUploaded, "files", map[string]any{
		"file_id":  fileID,
		"owner_id": ownerID,
	}))
	return nil
}

// CreateVersion appends a version with the next monotonic number and mirrors
// the new size/location onto the file row. The actor must be the owner or
// hold EDIT. Lost allocation races retry a bounded number of times.
func (s *FileService) CreateVersion(ctx context.Context, actorID, fileID string,
	size int64, changeNote string) (*models.FileVersion, *models.FileUploadTask, error) {

	if size > s.config.MaxFileSize {
		return nil, nil, fmt.Errorf("%w: %d > %d", common.ErrFileTooLarge, size, s.config.MaxFileSize)
	}

	file, err := s.repos.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if file.OwnerID != actorID {
		decision, err := s.ledger.ResolveAccess(ctx, fileID, actorID, "")
		if err != nil {
			return nil, nil, err
		}
		if decision.Kind != DecisionGranted || !decision.Permissions.Has(models.PermissionEdit) {
			return nil, nil, common.ErrAccessDenied
		}
	}

	storageKey, url, err := s.blobs.PresignedPutURL(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("presign error: %w", err)
	}

	version := &models.FileVersion{
		FileID:     fileID,
		Size:       size,
		StorageKey: storageKey,
		ChangeNote: changeNote,
		CreatedBy:  actorID,
	}

	for attempt := 0; attempt < versionRetries; attempt++ {
		version.ID = uuid.NewString()
		err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			allocated, err := s.repos.Versions(tx).CreateNext(ctx, version)
			if err != nil {
				return err
			}
			version.Version = allocated
			return s.repos.Files(tx).UpdateCurrent(ctx, fileID, size, storageKey)
		})
		if !errors.Is(err, common.ErrVersionConflict) {
			break
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("error creating version: %w", err)
	}

	s.ledger.emit(ctx, events.NewEvent(events.FileVersionCreated, "files", map[string]any{
		"file_id":  fileID,
		"version":  version.Version,
		"actor_id": actorID,
	}))
	return version, &models.FileUploadTask{FileID: fileID, URL: url}, nil
}

// ListVersions returns the file's version history, oldest first. The actor
// must be the owner or hold VIEW.
func (s *FileService) ListVersions(ctx context.Context, actorID, fileID string) ([]*models.FileVersion, error) {
	file, err := s.repos.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != actorID {
		decision, err := s.ledger.ResolveAccess(ctx, fileID, actorID, "")
		if err != nil {
			return nil, err
		}
		if decision.Kind != DecisionGranted || !decision.Permissions.Has(models.PermissionView) {
			return nil, common.ErrAccessDenied
		}
	}
	return s.repos.Versions(s.db).ListByFile(ctx, fileID)
}

// GetDownloadSource authorizes the download against the ledger, consumes one
// access from the contributing grant (owners consume nothing), and returns a
// presigned GET URL plus a signed capability.
//
// Authorization failures surface verbatim: the caller needs the specific
// reason (denied vs expired vs quota) to render correct feedback.
func (s *FileService) GetDownloadSource(ctx context.Context, actorID, actorEmail, fileID, password string) (*DownloadSource, error) {
	decision, err := s.ledger.ResolveAccess(ctx, fileID, actorID, actorEmail)
	if err != nil {
		return nil, err
	}

	file, err := s.repos.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	var grantID string
	switch decision.Kind {
	case DecisionOwner:
		// full rights, no quota to consume

	case DecisionGranted:
		if !decision.Permissions.Has(models.PermissionDownload) {
			return nil, common.ErrAccessDenied
		}
		grantID, err = s.consumeDownload(ctx, decision, actorID, password)
		if err != nil {
			return nil, err
		}

	default:
		return nil, common.ErrAccessDenied
	}

	url, err := s.blobs.PresignedGetURL(ctx, file.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("presign error: %w", err)
	}

	permNames := make([]string, 0, len(decision.Permissions))
	for _, p := range decision.Permissions.Slice() {
		permNames = append(permNames, string(p))
	}
	capability, err := auth.GenerateCapability(grantID, fileID, actorID, permNames,
		[]byte(s.config.SecretKey), s.config.CapabilityValidityDuration)
	if err != nil {
		return nil, err
	}

	return &DownloadSource{
		FileID:     fileID,
		URL:        url,
		Size:       file.Size,
		Encrypted:  file.Encrypted,
		Capability: capability,
	}, nil
}

// consumeDownload picks the first contributing grant that confers DOWNLOAD,
// checks its password if it has one, and records the access against it.
func (s *FileService) consumeDownload(ctx context.Context, decision *AccessDecision, actorID, password string) (string, error) {
	grantRepo := s.repos.Grants(s.db)

	var lastErr error
	for _, id := range decision.GrantIDs {
		grant, err := grantRepo.GetByID(ctx, id)
		if err != nil {
			return "", err
		}
		if !grant.Permissions.Has(models.PermissionDownload) {
			continue
		}
		if !s.ledger.VerifyGrantPassword(grant, password) {
			lastErr = common.ErrAccessDenied
			continue
		}
		if _, err := s.ledger.RecordAccess(ctx, id, actorID, models.AccessDownload); err != nil {
			lastErr = err
			continue
		}
		return id, nil
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", common.ErrAccessDenied
}

// GetFile returns metadata when the actor has any access at all.
func (s *FileService) GetFile(ctx context.Context, actorID, actorEmail, fileID string) (*models.File, error) {
	decision, err := s.ledger.ResolveAccess(ctx, fileID, actorID, actorEmail)
	if err != nil {
		return nil, err
	}
	if decision.Kind == DecisionDenied {
		return nil, common.ErrAccessDenied
	}
	return s.repos.Files(s.db).GetByID(ctx, fileID)
}

// ListOwned returns the actor's own files.
func (s *FileService) ListOwned(ctx context.Context, ownerID string) ([]*models.File, error) {
	return s.repos.Files(s.db).ListByOwner(ctx, ownerID)
}
