package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/cryptox"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/dbx"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/events"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/logging"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/repomanager"
)

// DecisionKind classifies the outcome of access resolution.
type DecisionKind int

const (
	DecisionDenied DecisionKind = iota
	DecisionOwner
	DecisionGranted
)

// AccessDecision is the result of resolving a (file, requester) pair.
// Owner carries full rights; Granted carries the union of every live
// matching grant's permissions plus the ids of the grants that contributed.
type AccessDecision struct {
	Kind        DecisionKind
	Permissions models.PermissionSet
	GrantIDs    []string
}

// FullRights is the permission set an owner holds implicitly.
func FullRights() models.PermissionSet {
	return models.NewPermissionSet(models.PermissionView, models.PermissionDownload, models.PermissionEdit)
}

// CreateGrantParams carries the grant-creation boundary's inputs. Exactly
// one of RecipientID, RecipientEmail, GroupID must be set.
type CreateGrantParams struct {
	FileID         string
	CreatorID      string
	RecipientID    string
	RecipientEmail string
	GroupID        string
	Permissions    []models.Permission
	ExpiresAt      *time.Time
	MaxAccessCount *int64
	Password       string
}

// LedgerService is the authoritative record of share grants. It computes
// effective access, consumes access quotas, and owns grant lifecycle
// (create, accept/reject, revoke, identity repair).
type LedgerService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	sink   events.Sink
	logger logging.Logger
	now    func() time.Time
}

func NewLedgerService(db *sql.DB, repos repomanager.RepositoryManager, sink events.Sink, logger logging.Logger) *LedgerService {
	return &LedgerService{
		db:     db,
		repos:  repos,
		sink:   sink,
		logger: logger.With("module", "ledger"),
		now:    time.Now,
	}
}

// emit publishes fire-and-forget: grant operations never block on, or fail
// because of, the notification sink.
func (s *LedgerService) emit(ctx context.Context, event *events.Event) {
	go func() {
		_ = s.sink.Publish(context.WithoutCancel(ctx), event)
	}()
}

// CreateGrant validates the target, rejects duplicates of a still-live grant
// for the same (file, target) pair by the same creator, and persists the
// grant. An email target whose account already exists gets the identity
// attached immediately; otherwise the grant stays identity-pending until
// RepairIdentity runs.
func (s *LedgerService) CreateGrant(ctx context.Context, p CreateGrantParams) (*models.ShareGrant, error) {
	if err := validateTarget(p); err != nil {
		return nil, err
	}
	if len(p.Permissions) == 0 {
		return nil, fmt.Errorf("%w: empty permission set", common.ErrInternal)
	}
	for _, perm := range p.Permissions {
		if !models.ValidPermission(perm) {
			return nil, fmt.Errorf("%w: unknown permission %q", common.ErrInternal, perm)
		}
	}

	fileRepo := s.repos.Files(s.db)
	file, err := fileRepo.GetByID(ctx, p.FileID)
	if err != nil {
		return nil, err
	}

	// Only the owner, or someone the ledger itself granted EDIT, may share.
	if file.OwnerID != p.CreatorID {
		decision, err := s.ResolveAccess(ctx, p.FileID, p.CreatorID, "")
		if err != nil {
			return nil, err
		}
		if decision.Kind != DecisionGranted || !decision.Permissions.Has(models.PermissionEdit) {
			return nil, common.ErrAccessDenied
		}
	}

	grant := &models.ShareGrant{
		ID:             uuid.NewString(),
		FileID:         p.FileID,
		RecipientID:    p.RecipientID,
		RecipientEmail: p.RecipientEmail,
		GroupID:        p.GroupID,
		Permissions:    models.NewPermissionSet(p.Permissions...),
		ExpiresAt:      p.ExpiresAt,
		MaxAccessCount: p.MaxAccessCount,
		CreatedBy:      p.CreatorID,
	}

	switch {
	case p.RecipientID != "":
		if _, err := s.repos.Users(s.db).GetByID(ctx, p.RecipientID); err != nil {
			return nil, err
		}
	case p.GroupID != "":
		if _, err := s.repos.Groups(s.db).GetByID(ctx, p.GroupID); err != nil {
			return nil, err
		}
	case p.RecipientEmail != "":
		// Identity-pending is fine, but attach the identity eagerly when
		// the account already exists.
		user, err := s.repos.Users(s.db).GetByEmail(ctx, p.RecipientEmail)
		if err == nil {
			grant.RecipientID = user.ID
		} else if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	}

	if p.Password != "" {
		grant.PasswordHash = hashGrantPassword(p.Password)
	}

	existing, err := s.repos.Grants(s.db).ListForFile(ctx, p.FileID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, g := range existing {
		if g.CreatedBy == p.CreatorID && sameTarget(g, grant) && g.Live(now) {
			return nil, fmt.Errorf("%w: grant %s", common.ErrDuplicateGrant, g.ID)
		}
	}

	if err := s.repos.Grants(s.db).Create(ctx, grant); err != nil {
		return nil, err
	}

	s.emit(ctx, events.NewEvent(events.ShareCreated, "ledger", map[string]any{
		"grant_id":   grant.ID,
		"file_id":    grant.FileID,
		"created_by": grant.CreatedBy,
	}))
	s.logger.Info(ctx, "grant created", "grant_id", grant.ID, "file_id", grant.FileID)
	return grant, nil
}

// ResolveAccess computes effective access for a (file, requester) pair.
// Owner short-circuits to full rights. Otherwise the permission sets of
// every live grant reachable by the requester (direct identity, email, or
// group membership) are unioned; nothing is consumed or mutated here.
func (s *LedgerService) ResolveAccess(ctx context.Context, fileID, requesterID, requesterEmail string) (*AccessDecision, error) {
	file, err := s.repos.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if requesterID != "" && file.OwnerID == requesterID {
		return &AccessDecision{Kind: DecisionOwner, Permissions: FullRights()}, nil
	}

	matching, err := s.repos.Grants(s.db).ListMatching(ctx, fileID, requesterID, requesterEmail)
	if err != nil {
		return nil, err
	}

	now := s.now()
	perms := models.NewPermissionSet()
	var grantIDs []string
	for _, g := range matching {
		if !g.Live(now) {
			continue
		}
		perms = perms.Union(g.Permissions)
		grantIDs = append(grantIDs, g.ID)
	}

	if len(grantIDs) == 0 {
		return &AccessDecision{Kind: DecisionDenied, Permissions: models.NewPermissionSet()}, nil
	}
	return &AccessDecision{Kind: DecisionGranted, Permissions: perms, GrantIDs: grantIDs}, nil
}

// errNotConsumed signals, inside the RecordAccess transaction, that the
// guarded increment matched no row. It never escapes this package.
var errNotConsumed = errors.New("access not consumed")

// RecordAccess consumes one access against the grant and appends the audit
// event, atomically: the quota increment is a single guarded statement and
// both writes share one transaction. A dead grant yields the specific
// liveness failure (revoked / expired / quota) plus a denied audit row,
// which is written outside the transaction so the rollback cannot erase it.
func (s *LedgerService) RecordAccess(ctx context.Context, grantID, actorID string, kind models.AccessEventKind) (*models.AccessEvent, error) {
	event := &models.AccessEvent{
		ID:      uuid.NewString(),
		GrantID: grantID,
		ActorID: actorID,
		Kind:    kind,
		Result:  models.ResultSuccess,
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		consumed, err := s.repos.Grants(tx).ConsumeAccess(ctx, grantID)
		if err != nil {
			return err
		}
		if !consumed {
			return errNotConsumed
		}
		return s.repos.AccessEvents(tx).Append(ctx, event)
	})
	if errors.Is(err, errNotConsumed) {
		grant, getErr := s.repos.Grants(s.db).GetByID(ctx, grantID)
		if getErr != nil {
			return nil, getErr
		}
		event.Result = models.ResultDenied
		if appendErr := s.repos.AccessEvents(s.db).Append(ctx, event); appendErr != nil {
			s.logger.Error(ctx, "failed to append denied audit event", "grant_id", grantID, "error", appendErr)
		}
		return nil, livenessError(grant, s.now())
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Revoke soft-revokes a grant. Idempotent: revoking an already-revoked grant
// succeeds silently. The row is never deleted (audit requirement).
func (s *LedgerService) Revoke(ctx context.Context, grantID, actorID string) error {
	grantRepo := s.repos.Grants(s.db)

	grant, err := grantRepo.GetByID(ctx, grantID)
	if err != nil {
		return err
	}

	if grant.CreatedBy != actorID {
		file, err := s.repos.Files(s.db).GetByID(ctx, grant.FileID)
		if err != nil {
			return err
		}
		if file.OwnerID != actorID {
			return common.ErrAccessDenied
		}
	}

	if err := grantRepo.Revoke(ctx, grantID); err != nil {
		return err
	}

	s.emit(ctx, events.NewEvent(events.ShareRevoked, "ledger", map[string]any{
		"grant_id": grantID,
		"actor_id": actorID,
	}))
	return nil
}

// BulkRevokeForFile revokes every live grant of a file. Owner only.
func (s *LedgerService) BulkRevokeForFile(ctx context.Context, fileID, actorID string) (int64, error) {
	file, err := s.repos.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return 0, err
	}
	if file.OwnerID != actorID {
		return 0, common.ErrAccessDenied
	}

	n, err := s.repos.Grants(s.db).RevokeAllForFile(ctx, fileID)
	if err != nil {
		return 0, err
	}

	s.emit(ctx, events.NewEvent(events.ShareRevoked, "ledger", map[string]any{
		"file_id":  fileID,
		"actor_id": actorID,
		"count":    n,
		"bulk":     true,
	}))
	return n, nil
}

// RepairIdentity attaches the resolved identity to identity-pending grants
// for the email. Redundant and concurrent calls are safe: the update only
// matches grants whose identity is still unset.
func (s *LedgerService) RepairIdentity(ctx context.Context, email, userID string) (int64, error) {
	n, err := s.repos.Grants(s.db).RepairIdentity(ctx, email, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info(ctx, "repaired identity-pending grants", "email", email, "count", n)
	}
	return n, nil
}

// Acknowledge records the recipient's accept or reject of a grant as an
// audit event and emits the corresponding notification.
func (s *LedgerService) Acknowledge(ctx context.Context, grantID, actorID, actorEmail string, accept bool) error {
	grant, err := s.repos.Grants(s.db).GetByID(ctx, grantID)
	if err != nil {
		return err
	}
	if !grantTargets(grant, actorID, actorEmail) {
		// membership path
		groupIDs, err := s.repos.Groups(s.db).ListGroupIDsForUser(ctx, actorID)
		if err != nil {
			return err
		}
		member := false
		for _, id := range groupIDs {
			if grant.GroupID != "" && id == grant.GroupID {
				member = true
				break
			}
		}
		if !member {
			return common.ErrAccessDenied
		}
	}

	kind := models.AccessAccept
	eventType := events.ShareAccepted
	if !accept {
		kind = models.AccessReject
		eventType = events.ShareRejected
	}

	err = s.repos.AccessEvents(s.db).Append(ctx, &models.AccessEvent{
		ID:      uuid.NewString(),
		GrantID: grantID,
		ActorID: actorID,
		Kind:    kind,
		Result:  models.ResultSuccess,
	})
	if err != nil {
		return err
	}

	s.emit(ctx, events.NewEvent(eventType, "ledger", map[string]any{
		"grant_id": grantID,
		"actor_id": actorID,
	}))
	return nil
}

// ListGrantsForFile returns the file's non-revoked grants. Owner only.
func (s *LedgerService) ListGrantsForFile(ctx context.Context, fileID, actorID string) ([]*models.ShareGrant, error) {
	file, err := s.repos.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.OwnerID != actorID {
		return nil, common.ErrAccessDenied
	}
	return s.repos.Grants(s.db).ListForFile(ctx, fileID)
}

// ListReceived returns grants shared with the user ("shared with me").
func (s *LedgerService) ListReceived(ctx context.Context, userID, email string) ([]*models.ShareGrant, error) {
	return s.repos.Grants(s.db).ListForRecipient(ctx, userID, email)
}

// VerifyGrantPassword checks a password-protected grant's password.
// Grants without a password accept any input.
func (s *LedgerService) VerifyGrantPassword(grant *models.ShareGrant, password string) bool {
	if len(grant.PasswordHash) == 0 {
		return true
	}
	return verifyGrantPassword(grant.PasswordHash, password)
}

const grantPasswordSaltSize = 16

// hashGrantPassword stores salt||argon2id(password, salt) so each grant's
// password hash is independently salted.
func hashGrantPassword(password string) []byte {
	salt := common.GenerateRandByteArray(grantPasswordSaltSize)
	hash := cryptox.DeriveKey([]byte(password), salt)
	return append(salt, hash...)
}

func verifyGrantPassword(stored []byte, password string) bool {
	if len(stored) <= grantPasswordSaltSize {
		return false
	}
	salt := stored[:grantPasswordSaltSize]
	hash := cryptox.DeriveKey([]byte(password), salt)
	return bytes.Equal(stored[grantPasswordSaltSize:], hash)
}

func validateTarget(p CreateGrantParams) error {
	targets := 0
	if p.RecipientID != "" {
		targets++
	}
	if p.RecipientEmail != "" {
		targets++
	}
	if p.GroupID != "" {
		targets++
	}
	if targets != 1 {
		return fmt.Errorf("%w: exactly one grant target required, got %d", common.ErrInternal, targets)
	}
	return nil
}

// sameTarget compares the creation-time targets of two grants. An
// email-created grant keeps matching by email even after identity repair.
func sameTarget(a, b *models.ShareGrant) bool {
	if a.RecipientEmail != "" || b.RecipientEmail != "" {
		return a.RecipientEmail == b.RecipientEmail
	}
	if a.GroupID != "" || b.GroupID != "" {
		return a.GroupID == b.GroupID
	}
	return a.RecipientID == b.RecipientID
}

func grantTargets(g *models.ShareGrant, userID, email string) bool {
	if g.RecipientID != "" && g.RecipientID == userID {
		return true
	}
	if g.RecipientEmail != "" && email != "" && g.RecipientEmail == email {
		return true
	}
	return false
}

// livenessError maps a dead grant to the error naming why it is dead.
func livenessError(g *models.ShareGrant, now time.Time) error {
	switch {
	case g.Revoked:
		return common.ErrRevoked
	case g.ExpiresAt != nil && !now.Before(*g.ExpiresAt):
		return common.ErrExpired
	case g.MaxAccessCount != nil && g.AccessCount >= *g.MaxAccessCount:
		return common.ErrQuotaExceeded
	default:
		return common.ErrAccessDenied
	}
}
