package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/common"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/models"
)

func TestCreateGrant_ExactlyOneTarget(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addUser("bob", "bob@example.com")
	e.addFile("f1", "owner")

	base := CreateGrantParams{
		FileID:      "f1",
		CreatorID:   "owner",
		Permissions: []models.Permission{models.PermissionView},
	}

	_, err := e.ledger.CreateGrant(context.Background(), base)
	assert.Error(t, err, "no target")

	twoTargets := base
	twoTargets.RecipientID = "bob"
	twoTargets.RecipientEmail = "bob@example.com"
	_, err = e.ledger.CreateGrant(context.Background(), twoTargets)
	assert.Error(t, err, "two targets")

	oneTarget := base
	oneTarget.RecipientID = "bob"
	grant, err := e.ledger.CreateGrant(context.Background(), oneTarget)
	require.NoError(t, err)
	assert.Equal(t, "f1", grant.FileID)
	assert.Equal(t, "bob", grant.RecipientID)
}

func TestCreateGrant_RejectsUnknownPermission(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addUser("bob", "bob@example.com")
	e.addFile("f1", "owner")

	_, err := e.ledger.CreateGrant(context.Background(), CreateGrantParams{
		FileID:      "f1",
		CreatorID:   "owner",
		RecipientID: "bob",
		Permissions: []models.Permission{"ADMIN"},
	})
	assert.Error(t, err)
}

func TestCreateGrant_DuplicateLiveGrant(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addUser("bob", "bob@example.com")
	e.addFile("f1", "owner")

	params := CreateGrantParams{
		FileID:      "f1",
		CreatorID:   "owner",
		RecipientID: "bob",
		Permissions: []models.Permission{models.PermissionView},
	}

	first, err := e.ledger.CreateGrant(context.Background(), params)
	require.NoError(t, err)

	// Even a different permission set duplicates the (creator, file, target)
	// pair while the first grant is live.
	params.Permissions = []models.Permission{models.PermissionDownload}
	_, err = e.ledger.CreateGrant(context.Background(), params)
	assert.ErrorIs(t, err, common.ErrDuplicateGrant)

	// Revoking the first grant frees the pair up again.
	require.NoError(t, e.ledger.Revoke(context.Background(), first.ID, "owner"))
	_, err = e.ledger.CreateGrant(context.Background(), params)
	assert.NoError(t, err)
}

func TestCreateGrant_EagerIdentityAttach(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addUser("bob", "bob@example.com")
	e.addFile("f1", "owner")

	grant, err := e.ledger.CreateGrant(context.Background(), CreateGrantParams{
		FileID:         "f1",
		CreatorID:      "owner",
		RecipientEmail: "bob@example.com",
		Permissions:    []models.Permission{models.PermissionView},
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", grant.RecipientID, "existing account attaches immediately")
	assert.False(t, grant.IdentityPending())

	pending, err := e.ledger.CreateGrant(context.Background(), CreateGrantParams{
		FileID:         "f1",
		CreatorID:      "owner",
		RecipientEmail: "carol@example.com",
		Permissions:    []models.Permission{models.PermissionView},
	})
	require.NoError(t, err)
	assert.True(t, pending.IdentityPending())
}

func TestCreateGrant_NonOwnerNeedsEdit(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addUser("bob", "bob@example.com")
	e.addUser("carol", "carol@example.com")
	e.addFile("f1", "owner")

	params := CreateGrantParams{
		FileID:      "f1",
		CreatorID:   "bob",
		RecipientID: "carol",
		Permissions: []models.Permission{models.PermissionView},
	}
	_, err := e.ledger.CreateGrant(context.Background(), params)
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	_, err = e.ledger.CreateGrant(context.Background(), CreateGrantParams{
		FileID:      "f1",
		CreatorID:   "owner",
		RecipientID: "bob",
		Permissions: []models.Permission{models.PermissionEdit},
	})
	require.NoError(t, err)

	_, err = e.ledger.CreateGrant(context.Background(), params)
	assert.NoError(t, err, "EDIT holders may share")
}

func TestResolveAccess_OwnerHasFullRights(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addFile("f1", "owner")

	decision, err := e.ledger.ResolveAccess(context.Background(), "f1", "owner", "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, DecisionOwner, decision.Kind)
	assert.True(t, decision.Permissions.Has(models.PermissionView))
	assert.True(t, decision.Permissions.Has(models.PermissionDownload))
	assert.True(t, decision.Permissions.Has(models.PermissionEdit))
}

func TestResolveAccess_DeniedByDefault(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addUser("stranger", "stranger@example.com")
	e.addFile("f1", "owner")

	decision, err := e.ledger.ResolveAccess(context.Background(), "f1", "stranger", "stranger@example.com")
	require.NoError(t, err)
	assert.Equal(t, DecisionDenied, decision.Kind)
	assert.Empty(t, decision.Permissions)
}

func TestResolveAccess_UnionsDirectAndGroupGrants(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addUser("bob", "bob@example.com")
	e.addFile("f1", "owner")

	e.store.groups["g1"] = &models.Group{ID: "g1", Name: "team", OwnerID: "owner"}
	e.store.members["g1"] = map[string]bool{"bob": true}

	_, err := e.ledger.CreateGrant(context.Background(), CreateGrantParams{
		FileID:      "f1",
		CreatorID:   "owner",
		RecipientID: "bob",
		Permissions: []models.Permission{models.PermissionView},
	})
	require.NoError(t, err)
	_, err = e.ledger.CreateGrant(context.Background(), CreateGrantParams{
		FileID:      "f1",
		CreatorID:   "owner",
		GroupID:     "g1",
		Permissions: []models.Permission{models.PermissionDownload},
	})
	require.NoError(t, err)

	decision, err := e.ledger.ResolveAccess(context.Background(), "f1", "bob", "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, DecisionGranted, decision.Kind)
	assert.True(t, decision.Permissions.Has(models.PermissionView))
	assert.True(t, decision.Permissions.Has(models.PermissionDownload))
	assert.False(t, decision.Permissions.Has(models.PermissionEdit))
	assert.Len(t, decision.GrantIDs, 2)
}

func TestResolveAccess_ExpiredGrantIgnored(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addUser("bob", "bob@example.com")
	e.addFile("f1", "owner")

	expires := time.Now().Add(time.Hour)
	_, err := e.ledger.CreateGrant(context.Background(), CreateGrantParams{
		FileID:      "f1",
		CreatorID:   "owner",
		RecipientID: "bob",
		Permissions: []models.Permission{models.PermissionDownload},
		ExpiresAt:   &expires,
	})
	require.NoError(t, err)

	// Move the ledger clock past expiry. Boundary: now == expiresAt is dead.
	e.ledger.now = func() time.Time { return expires }

	decision, err := e.ledger.ResolveAccess(context.Background(), "f1", "bob", "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, DecisionDenied, decision.Kind)
}

func TestRecordAccess_QuotaCeiling(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addUser("bob", "bob@example.com")
	e.addFile("f1", "owner")

	grant, err := e.ledger.CreateGrant(context.Background(), CreateGrantParams{
		FileID:         "f1",
		CreatorID:      "owner",
		RecipientID:    "bob",
		Permissions:    []models.Permission{models.PermissionDownload},
		MaxAccessCount: int64Ptr(2),
	})
	require.NoError(t, err)

	e.expectTx(2, 1)

	for i := 0; i < 2; i++ {
		event, err := e.ledger.RecordAccess(context.Background(), grant.ID, "bob", models.AccessDownload)
		require.NoError(t, err)
		assert.Equal(t, models.ResultSuccess, event.Result)
	}

	_, err = e.ledger.RecordAccess(context.Background(), grant.ID, "bob", models.AccessDownload)
	assert.ErrorIs(t, err, common.ErrQuotaExceeded)
	assert.Equal(t, int64(2), e.store.grants[grant.ID].AccessCount, "denied attempt must not consume")

	audit, err := e.store.AccessEvents(nil).ListByGrant(context.Background(), grant.ID)
	require.NoError(t, err)
	require.Len(t, audit, 3)
	assert.Equal(t, models.ResultDenied, audit[2].Result)
}

func TestRecordAccess_RevokedGrant(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addUser("bob", "bob@example.com")
	e.addFile("f1", "owner")

	grant, err := e.ledger.CreateGrant(context.Background(), CreateGrantParams{
		FileID:      "f1",
		CreatorID:   "owner",
		RecipientID: "bob",
		Permissions: []models.Permission{models.PermissionDownload},
	})
	require.NoError(t, err)
	require.NoError(t, e.ledger.Revoke(context.Background(), grant.ID, "owner"))

	e.expectTx(0, 1)
	_, err = e.ledger.RecordAccess(context.Background(), grant.ID, "bob", models.AccessDownload)
	assert.ErrorIs(t, err, common.ErrRevoked)
}

func TestRevoke_Idempotent(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addUser("bob", "bob@example.com")
	e.addFile("f1", "owner")

	grant, err := e.ledger.CreateGrant(context.Background(), CreateGrantParams{
		FileID:      "f1",
		CreatorID:   "owner",
		RecipientID: "bob",
		Permissions: []models.Permission{models.PermissionView},
	})
	require.NoError(t, err)

	require.NoError(t, e.ledger.Revoke(context.Background(), grant.ID, "owner"))
	require.NoError(t, e.ledger.Revoke(context.Background(), grant.ID, "owner"), "second revoke succeeds silently")
	assert.True(t, e.store.grants[grant.ID].Revoked)
}

func TestRevoke_CreatorOrOwnerOnly(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addUser("bob", "bob@example.com")
	e.addFile("f1", "owner")

	grant, err := e.ledger.CreateGrant(context.Background(), CreateGrantParams{
		FileID:      "f1",
		CreatorID:   "owner",
		RecipientID: "bob",
		Permissions: []models.Permission{models.PermissionView},
	})
	require.NoError(t, err)

	err = e.ledger.Revoke(context.Background(), grant.ID, "bob")
	assert.ErrorIs(t, err, common.ErrAccessDenied, "recipients cannot revoke")
}

func TestBulkRevokeForFile(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addUser("bob", "bob@example.com")
	e.addUser("carol", "carol@example.com")
	e.addFile("f1", "owner")

	for _, recipient := range []string{"bob", "carol"} {
		_, err := e.ledger.CreateGrant(context.Background(), CreateGrantParams{
			FileID:      "f1",
			CreatorID:   "owner",
			RecipientID: recipient,
			Permissions: []models.Permission{models.PermissionView},
		})
		require.NoError(t, err)
	}

	_, err := e.ledger.BulkRevokeForFile(context.Background(), "f1", "bob")
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	n, err := e.ledger.BulkRevokeForFile(context.Background(), "f1", "owner")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = e.ledger.BulkRevokeForFile(context.Background(), "f1", "owner")
	require.NoError(t, err)
	assert.Zero(t, n, "already revoked")
}

func TestRepairIdentity_ConcurrentRepairsOnce(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addFile("f1", "owner")

	pending, err := e.ledger.CreateGrant(context.Background(), CreateGrantParams{
		FileID:         "f1",
		CreatorID:      "owner",
		RecipientEmail: "carol@example.com",
		Permissions:    []models.Permission{models.PermissionView},
	})
	require.NoError(t, err)
	require.True(t, pending.IdentityPending())

	var wg sync.WaitGroup
	var mu sync.Mutex
	var total int64
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := e.ledger.RepairIdentity(context.Background(), "carol@example.com", "carol")
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), total, "exactly one call repairs the grant")
	assert.Equal(t, "carol", e.store.grants[pending.ID].RecipientID)
}

func TestAcknowledge(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addUser("bob", "bob@example.com")
	e.addUser("stranger", "stranger@example.com")
	e.addFile("f1", "owner")

	grant, err := e.ledger.CreateGrant(context.Background(), CreateGrantParams{
		FileID:      "f1",
		CreatorID:   "owner",
		RecipientID: "bob",
		Permissions: []models.Permission{models.PermissionView},
	})
	require.NoError(t, err)

	err = e.ledger.Acknowledge(context.Background(), grant.ID, "stranger", "stranger@example.com", true)
	assert.ErrorIs(t, err, common.ErrAccessDenied)

	require.NoError(t, e.ledger.Acknowledge(context.Background(), grant.ID, "bob", "bob@example.com", true))

	audit, err := e.store.AccessEvents(nil).ListByGrant(context.Background(), grant.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, models.AccessAccept, audit[0].Kind)
}

func TestVerifyGrantPassword(t *testing.T) {
	e := newTestEnv(t)
	e.addUser("owner", "owner@example.com")
	e.addUser("bob", "bob@example.com")
	e.addFile("f1", "owner")

	grant, err := e.ledger.CreateGrant(context.Background(), CreateGrantParams{
		FileID:      "f1",
		CreatorID:   "owner",
		RecipientID: "bob",
		Permissions: []models.Permission{models.PermissionDownload},
		Password:    "hunter2",
	})
	require.NoError(t, err)

	assert.True(t, e.ledger.VerifyGrantPassword(grant, "hunter2"))
	assert.False(t, e.ledger.VerifyGrantPassword(grant, "wrong"))

	open := &models.ShareGrant{}
	assert.True(t, e.ledger.VerifyGrantPassword(open, ""), "no password means open")
}
