package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/dbx"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/events"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/logging"
	sc "github.com/mvogonkachristophe0112/privora12-sub002/internal/server/config"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/accessevents"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/files"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/grants"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/groups"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/users"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/versions"
)

// fakeStore is an in-memory RepositoryManager used to test service logic
// without a database. The transactional helper still runs against a sqlmock
// *sql.DB, so tests queue Begin/Commit expectations via env.expectTx.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	groups   map[string]*models.Group
	members  map[string]map[string]bool
	files    map[string]*models.File
	versions map[string][]*models.FileVersion
	grants   map[string]*models.ShareGrant
	events   []*models.AccessEvent

	// versionConflicts makes the next n CreateNext calls lose the
	// allocation race.
	versionConflicts int

	now func() time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]*models.User{},
		groups:   map[string]*models.Group{},
		members:  map[string]map[string]bool{},
		files:    map[string]*models.File{},
		versions: map[string][]*models.FileVersion{},
		grants:   map[string]*models.ShareGrant{},
		now:      time.Now,
	}
}

func (s *fakeStore) RunMigrations(context.Context, *sql.DB) error  { return nil }
func (s *fakeStore) Users(dbx.DBTX) users.Repository               { return fakeUsers{s} }
func (s *fakeStore) Groups(dbx.DBTX) groups.Repository             { return fakeGroups{s} }
func (s *fakeStore) Files(dbx.DBTX) files.Repository               { return fakeFiles{s} }
func (s *fakeStore) Versions(dbx.DBTX) versions.Repository         { return fakeVersions{s} }
func (s *fakeStore) Grants(dbx.DBTX) grants.Repository             { return fakeGrants{s} }
func (s *fakeStore) AccessEvents(dbx.DBTX) accessevents.Repository { return fakeAccessEvents{s} }

type fakeUsers struct{ s *fakeStore }

func (f fakeUsers) Create(_ context.Context, u *models.User) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.users[u.ID] = u
	return nil
}

func (f fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u, nil
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	for _, u := range f.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, common.ErrNotFound
}

type fakeGroups struct{ s *fakeStore }

func (f fakeGroups) Create(_ context.Context, g *models.Group) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.groups[g.ID] = g
	return nil
}

func (f fakeGroups) GetByID(_ context.Context, id string) (*models.Group, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	g, ok := f.s.groups[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return g, nil
}

func (f fakeGroups) AddMember(_ context.Context, groupID, userID string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.members[groupID] == nil {
		f.s.members[groupID] = map[string]bool{}
	}
	f.s.members[groupID][userID] = true
	return nil
}

func (f fakeGroups) ListGroupIDsForUser(_ context.Context, userID string) ([]string, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []string
	for groupID, members := range f.s.members {
		if members[userID] {
			out = append(out, groupID)
		}
	}
	return out, nil
}

type fakeFiles struct{ s *fakeStore }

func (f fakeFiles) Create(_ context.Context, file *models.File) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.files[file.ID] = file
	return nil
}

func (f fakeFiles) GetByID(_ context.Context, id string) (*models.File, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	file, ok := f.s.files[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return file, nil
}

func (f fakeFiles) ListByOwner(_ context.Context, ownerID string) ([]*models.File, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.File
	for _, file := range f.s.files {
		if file.OwnerID == ownerID {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f fakeFiles) MarkUploaded(_ context.Context, id string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	file, ok := f.s.files[id]
	if !ok {
		return common.ErrNotFound
	}
	file.UploadStatus = models.UploadCompleted
	return nil
}

func (f fakeFiles) UpdateCurrent(_ context.Context, id string, size int64, storageKey string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	file, ok := f.s.files[id]
	if !ok {
		return common.ErrNotFound
	}
	file.Size = size
	file.StorageKey = storageKey
	return nil
}

type fakeVersions struct{ s *fakeStore }

func (f fakeVersions) CreateNext(_ context.Context, v *models.FileVersion) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.versionConflicts > 0 {
		f.s.versionConflicts--
		return 0, common.ErrVersionConflict
	}
	var next int64 = 1
	for _, existing := range f.s.versions[v.FileID] {
		if existing.Version >= next {
			next = existing.Version + 1
		}
	}
	stored := *v
	stored.Version = next
	f.s.versions[v.FileID] = append(f.s.versions[v.FileID], &stored)
	return next, nil
}

func (f fakeVersions) ListByFile(_ context.Context, fileID string) ([]*models.FileVersion, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	return append([]*models.FileVersion(nil), f.s.versions[fileID]...), nil
}

type fakeGrants struct{ s *fakeStore }

func (f fakeGrants) Create(_ context.Context, g *models.ShareGrant) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.grants[g.ID] = g
	return nil
}

func (f fakeGrants) GetByID(_ context.Context, id string) (*models.ShareGrant, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	g, ok := f.s.grants[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return g, nil
}

func (f fakeGrants) ListForFile(_ context.Context, fileID string) ([]*models.ShareGrant, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.ShareGrant
	for _, g := range f.s.grants {
		if g.FileID == fileID && !g.Revoked {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f fakeGrants) ListMatching(_ context.Context, fileID, userID, email string) ([]*models.ShareGrant, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.ShareGrant
	for _, g := range f.s.grants {
		if g.FileID != fileID || g.Revoked {
			continue
		}
		switch {
		case g.RecipientID != "" && g.RecipientID == userID:
			out = append(out, g)
		case g.RecipientEmail != "" && email != "" && g.RecipientEmail == email:
			out = append(out, g)
		case g.GroupID != "" && f.s.members[g.GroupID][userID]:
			out = append(out, g)
		}
	}
	return out, nil
}

func (f fakeGrants) ListForRecipient(_ context.Context, userID, email string) ([]*models.ShareGrant, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.ShareGrant
	for _, g := range f.s.grants {
		if g.Revoked {
			continue
		}
		if (g.RecipientID != "" && g.RecipientID == userID) ||
			(g.RecipientEmail != "" && email != "" && g.RecipientEmail == email) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f fakeGrants) ConsumeAccess(_ context.Context, grantID string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	g, ok := f.s.grants[grantID]
	if !ok || !g.Live(f.s.now()) {
		return false, nil
	}
	g.AccessCount++
	return true, nil
}

func (f fakeGrants) Revoke(_ context.Context, grantID string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if g, ok := f.s.grants[grantID]; ok {
		g.Revoked = true
	}
	return nil
}

func (f fakeGrants) RevokeAllForFile(_ context.Context, fileID string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for _, g := range f.s.grants {
		if g.FileID == fileID && !g.Revoked {
			g.Revoked = true
			n++
		}
	}
	return n, nil
}

func (f fakeGrants) RepairIdentity(_ context.Context, email, userID string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var n int64
	for _, g := range f.s.grants {
		if g.RecipientEmail == email && g.RecipientID == "" {
			g.RecipientID = userID
			n++
		}
	}
	return n, nil
}

type fakeAccessEvents struct{ s *fakeStore }

func (f fakeAccessEvents) Append(_ context.Context, e *models.AccessEvent) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.events = append(f.s.events, e)
	return nil
}

func (f fakeAccessEvents) ListByGrant(_ context.Context, grantID string) ([]*models.AccessEvent, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*models.AccessEvent
	for _, e := range f.s.events {
		if e.GrantID == grantID {
			out = append(out, e)
		}
	}
	return out, nil
}

// memSink captures published events in memory.
type memSink struct {
	mu     sync.Mutex
	events []*events.Event
}

func (s *memSink) Publish(_ context.Context, e *events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

type env struct {
	db      *sql.DB
	mock    sqlmock.Sqlmock
	store   *fakeStore
	sink    *memSink
	cfg     *sc.Config
	ledger  *LedgerService
	fileSvc *FileService
	userSvc *UserService
}

func newTestEnv(t *testing.T) *env {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(false)
	t.Cleanup(func() { _ = db.Close() })

	store := newFakeStore()
	sink := &memSink{}
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	cfg := &sc.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test_secret_key"

	ledger := NewLedgerService(db, store, sink, logger)
	blobs := NewBlobStore(cfg)

	return &env{
		db:      db,
		mock:    mock,
		store:   store,
		sink:    sink,
		cfg:     cfg,
		ledger:  ledger,
		fileSvc: NewFileService(db, store, blobs, ledger, sink, cfg, logger),
		userSvc: NewUserService(db, store, ledger, cfg, logger),
	}
}

// expectTx queues commits committed and rollbacks rolled-back transactions on
// the mock connection. The fake repositories ignore the handle, so these are
// the only driver-level calls the services make.
func (e *env) expectTx(commits, rollbacks int) {
	for i := 0; i < commits; i++ {
		e.mock.ExpectBegin()
		e.mock.ExpectCommit()
	}
	for i := 0; i < rollbacks; i++ {
		e.mock.ExpectBegin()
		e.mock.ExpectRollback()
	}
}

func (e *env) addUser(id, email string) *models.User {
	u := &models.User{ID: id, Email: email, DisplayName: id}
	e.store.users[id] = u
	return u
}

func (e *env) addFile(id, ownerID string) *models.File {
	f := &models.File{
		ID:           id,
		OwnerID:      ownerID,
		DisplayName:  id,
		Size:         100,
		StorageKey:   "users/2026/1/1/" + id,
		UploadStatus: models.UploadCompleted,
	}
	e.store.files[id] = f
	return f
}

func int64Ptr(v int64) *int64 { return &v }
