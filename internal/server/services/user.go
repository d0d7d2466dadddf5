package services

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/cryptox"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/logging"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/auth"
	sc "github.com/mvogonkachristophe0112/privora12-sub002/internal/server/config"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/repomanager"
)

const userSaltSize = 16

// UserService handles registration, login, and group membership. Both
// registration and login run identity repair so grants created against the
// email before the account existed become usable immediately.
type UserService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	ledger *LedgerService
	config *sc.Config
	logger logging.Logger
}

func NewUserService(db *sql.DB, repos repomanager.RepositoryManager,
	ledger *LedgerService, config *sc.Config, logger logging.Logger) *UserService {
	return &UserService{
		db:     db,
		repos:  repos,
		ledger: ledger,
		config: config,
		logger: logger.With("module", "users"),
	}
}

// Register creates the account and attaches any identity-pending grants
// targeting the email.
func (s *UserService) Register(ctx context.Context, email, displayName, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", fmt.Errorf("%w: email and password required", common.ErrInternal)
	}

	if _, err := s.repos.Users(s.db).GetByEmail(ctx, email); err == nil {
		return nil, "", fmt.Errorf("%w: email already registered", common.ErrInternal)
	}

	salt := common.GenerateRandByteArray(userSaltSize)
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		Salt:         hex.EncodeToString(salt),
		PasswordHash: cryptox.DeriveKey([]byte(password), salt),
	}

	if err := s.repos.Users(s.db).Create(ctx, user); err != nil {
		return nil, "", err
	}

	if _, err := s.ledger.RepairIdentity(ctx, email, user.ID); err != nil {
		s.logger.Error(ctx, "identity repair failed", "email", email, "error", err)
	}

	token, err := auth.GenerateToken(user.ID, []byte(s.config.SecretKey), s.config.AccessTokenValidityDuration)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, token, nil
}

// Login verifies credentials and issues an access token. Identity repair is
// re-run here as a safety net for grants created while the user existed but
// a previous repair was missed.
func (s *UserService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		return nil, "", common.ErrUnauthorized
	}

	salt, err := hex.DecodeString(user.Salt)
	if err != nil {
		return nil, "", fmt.Errorf("corrupt salt: %w", common.ErrInternal)
	}
	if !bytes.Equal(user.PasswordHash, cryptox.DeriveKey([]byte(password), salt)) {
		return nil, "", common.ErrUnauthorized
	}

	if _, err := s.ledger.RepairIdentity(ctx, email, user.ID); err != nil {
		s.logger.Error(ctx, "identity repair failed", "email", email, "error", err)
	}

	token, err := auth.GenerateToken(user.ID, []byte(s.config.SecretKey), s.config.AccessTokenValidityDuration)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// GetUser fetches a user by id.
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.repos.Users(s.db).GetByID(ctx, id)
}

// CreateGroup creates a group owned by the actor, with the actor as its
// first member.
func (s *UserService) CreateGroup(ctx context.Context, ownerID, name string) (*models.Group, error) {
	group := &models.Group{
		ID:      uuid.NewString(),
		Name:    name,
		OwnerID: ownerID,
	}
	if err := s.repos.Groups(s.db).Create(ctx, group); err != nil {
		return nil, err
	}
	if err := s.repos.Groups(s.db).AddMember(ctx, group.ID, ownerID); err != nil {
		return nil, err
	}
	return group, nil
}

// AddGroupMember adds a user to a group. Group owner only. Idempotent.
func (s *UserService) AddGroupMember(ctx context.Context, actorID, groupID, userID string) error {
	group, err := s.repos.Groups(s.db).GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if group.OwnerID != actorID {
		return common.ErrAccessDenied
	}
	if _, err := s.repos.Users(s.db).GetByID(ctx, userID); err != nil {
		return err
	}
	return s.repos.Groups(s.db).AddMember(ctx, groupID, userID)
}
