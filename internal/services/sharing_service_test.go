package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/calebreid/mapweave/internal/database/testutil"
	"github.com/calebreid/mapweave/internal/models"
	"github.com/calebreid/mapweave/internal/permissions"
	"github.com/calebreid/mapweave/pkg/crypto"
	apperrors "github.com/calebreid/mapweave/pkg/errors"
)

type sharingFixture struct {
	db      *gorm.DB
	service *SharingService
	owner   models.User
	invitee models.User
	mapRec  models.Map
}

func newSharingFixture(t *testing.T, opts ...SharingOption) *sharingFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	owner := models.User{Email: "owner@example.com", Password: "x", DisplayName: "Owner", IsActive: true}
	require.NoError(t, db.Create(&owner).Error)
	invitee := models.User{Email: "casey@example.com", Password: "x", DisplayName: "Casey", IsActive: true}
	require.NoError(t, db.Create(&invitee).Error)

	mapRec := models.Map{Name: "Roadmap", CreatorID: owner.ID}
	require.NoError(t, db.Create(&mapRec).Error)

	checker, err := NewAccessEvaluator(db)
	require.NoError(t, err)

	service, err := NewSharingService(db, checker, nil, nil, opts...)
	require.NoError(t, err)

	return &sharingFixture{db: db, service: service, owner: owner, invitee: invitee, mapRec: mapRec}
}

func (f *sharingFixture) invite(t *testing.T, email string, level permissions.Level) *models.MapInvitation {
	t.Helper()
	invitation, token, err := f.service.CreateInvitation(context.Background(), f.owner.ID, f.mapRec.ID, CreateInvitationInput{
		Email:      email,
		Permission: level,
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)
	return invitation
}

func (f *sharingFixture) linkCaps(t *testing.T, userID string) []permissions.Capability {
	t.Helper()
	var links []models.MapPermissionLink
	require.NoError(t, f.db.Where("map_id = ? AND user_id = ?", f.mapRec.ID, userID).Find(&links).Error)
	caps := make([]permissions.Capability, 0, len(links))
	for _, link := range links {
		caps = append(caps, link.Capability)
	}
	return caps
}

func TestCreateInvitationStoresHashNotToken(t *testing.T) {
	fx := newSharingFixture(t)

	invitation, token, err := fx.service.CreateInvitation(context.Background(), fx.owner.ID, fx.mapRec.ID, CreateInvitationInput{
		Email:      "casey@example.com",
		Permission: permissions.LevelEdit,
	})
	require.NoError(t, err)
	require.Equal(t, models.InvitationPending, invitation.Status)
	require.NotEqual(t, token, invitation.TokenHash)
	require.Equal(t, crypto.HashToken(token), invitation.TokenHash)

	found, err := fx.service.InvitationByToken(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, invitation.ID, found.ID)
	require.NotNil(t, found.Map)

	_, err = fx.service.InvitationByToken(context.Background(), "not-a-real-token")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateInvitationNormalizesEmail(t *testing.T) {
	fx := newSharingFixture(t)

	invitation := fx.invite(t, "  Casey@Example.COM ", permissions.LevelView)
	require.Equal(t, "casey@example.com", invitation.InvitedEmail)
}

func TestCreateInvitationRequiresManage(t *testing.T) {
	fx := newSharingFixture(t)

	_, _, err := fx.service.CreateInvitation(context.Background(), fx.invitee.ID, fx.mapRec.ID, CreateInvitationInput{
		Email:      "someone@example.com",
		Permission: permissions.LevelView,
	})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, _, err = fx.service.CreateInvitation(context.Background(), "", fx.mapRec.ID, CreateInvitationInput{
		Email:      "someone@example.com",
		Permission: permissions.LevelView,
	})
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAcceptInvitationCreatesShareAndLinks(t *testing.T) {
	cases := []struct {
		level permissions.Level
		caps  []permissions.Capability
	}{
		{permissions.LevelView, []permissions.Capability{permissions.CapabilityRead}},
		{permissions.LevelEdit, []permissions.Capability{permissions.CapabilityWrite}},
		{permissions.LevelManage, []permissions.Capability{permissions.CapabilityWrite, permissions.CapabilityManage}},
	}

	for _, tc := range cases {
		t.Run(string(tc.level), func(t *testing.T) {
			fx := newSharingFixture(t)
			invitation := fx.invite(t, fx.invitee.Email, tc.level)

			share, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, fx.invitee.Email)
			require.NoError(t, err)
			require.Equal(t, models.ShareActive, share.Status)
			require.Equal(t, tc.level, share.Permission)
			require.Equal(t, fx.owner.ID, share.CreatedBy)
			require.NotNil(t, share.InvitationID)
			require.Equal(t, invitation.ID, *share.InvitationID)

			require.ElementsMatch(t, tc.caps, fx.linkCaps(t, fx.invitee.ID))

			var stored models.MapInvitation
			require.NoError(t, fx.db.First(&stored, "id = ?", invitation.ID).Error)
			require.Equal(t, models.InvitationAccepted, stored.Status)
			require.NotNil(t, stored.InvitedUserID)
			require.Equal(t, fx.invitee.ID, *stored.InvitedUserID)
			require.NotNil(t, stored.RespondedAt)
		})
	}
}

func TestAcceptInvitationMatchesEmailCaseInsensitively(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, "Casey@Example.COM", permissions.LevelView)

	share, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, "casey@example.com")
	require.NoError(t, err)
	require.Equal(t, models.ShareActive, share.Status)
}

func TestAcceptInvitationRejectsWrongIdentity(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelView)

	_, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, "mallory@example.com")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "IDENTITY_MISMATCH", appErr.Code)
	require.Contains(t, appErr.Message, "casey@example.com")
	require.Contains(t, appErr.Message, "mallory@example.com")

	// Nothing was granted.
	require.Empty(t, fx.linkCaps(t, fx.invitee.ID))
	var count int64
	require.NoError(t, fx.db.Model(&models.MapShare{}).Where("map_id = ?", fx.mapRec.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestAcceptInvitationRejectsNonPending(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelView)

	require.NoError(t, fx.service.RevokeInvitation(context.Background(), invitation.ID, fx.owner.ID))

	_, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, fx.invitee.Email)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_STATE", appErr.Code)
}

func TestAcceptInvitationSupersedesExistingShare(t *testing.T) {
	fx := newSharingFixture(t)

	first := fx.invite(t, fx.invitee.Email, permissions.LevelView)
	firstShare, err := fx.service.AcceptInvitation(context.Background(), first.ID, fx.invitee.ID, fx.invitee.Email)
	require.NoError(t, err)

	second := fx.invite(t, fx.invitee.Email, permissions.LevelManage)
	secondShare, err := fx.service.AcceptInvitation(context.Background(), second.ID, fx.invitee.ID, fx.invitee.Email)
	require.NoError(t, err)

	var old models.MapShare
	require.NoError(t, fx.db.First(&old, "id = ?", firstShare.ID).Error)
	require.Equal(t, models.ShareRevoked, old.Status)

	// Links reflect only the new level.
	require.ElementsMatch(t,
		[]permissions.Capability{permissions.CapabilityWrite, permissions.CapabilityManage},
		fx.linkCaps(t, fx.invitee.ID))

	var active int64
	require.NoError(t, fx.db.Model(&models.MapShare{}).
		Where("map_id = ? AND user_id = ? AND status = ?", fx.mapRec.ID, fx.invitee.ID, models.ShareActive).
		Count(&active).Error)
	require.EqualValues(t, 1, active)
	require.Equal(t, models.ShareActive, secondShare.Status)
}

func TestAcceptInvitationRollsBackOnLinkFailure(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelEdit)

	boom := errors.New("link store unavailable")
	require.NoError(t, fx.db.Callback().Create().Before("gorm:create").Register("fail_links", func(tx *gorm.DB) {
		if tx.Statement.Table == "map_permission_links" {
			tx.AddError(boom)
		}
	}))
	t.Cleanup(func() {
		require.NoError(t, fx.db.Callback().Create().Remove("fail_links"))
	})

	_, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, fx.invitee.Email)
	require.ErrorIs(t, err, boom)

	// The whole acceptance rolled back: still pending, no share, no links.
	var stored models.MapInvitation
	require.NoError(t, fx.db.First(&stored, "id = ?", invitation.ID).Error)
	require.Equal(t, models.InvitationPending, stored.Status)

	var shares int64
	require.NoError(t, fx.db.Model(&models.MapShare{}).Where("map_id = ?", fx.mapRec.ID).Count(&shares).Error)
	require.Zero(t, shares)
	require.Empty(t, fx.linkCaps(t, fx.invitee.ID))
}

func TestAcceptInvitationRejectsMapCreator(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.owner.Email, permissions.LevelEdit)

	_, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.owner.ID, fx.owner.Email)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_STATE", appErr.Code)

	// The creator never enters the link store and the invitation stays open.
	var stored models.MapInvitation
	require.NoError(t, fx.db.First(&stored, "id = ?", invitation.ID).Error)
	require.Equal(t, models.InvitationPending, stored.Status)

	var shares int64
	require.NoError(t, fx.db.Model(&models.MapShare{}).Where("map_id = ?", fx.mapRec.ID).Count(&shares).Error)
	require.Zero(t, shares)
	require.Empty(t, fx.linkCaps(t, fx.owner.ID))
}

func TestRevokeShareRollsBackOnUnlinkFailure(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelEdit)
	share, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, fx.invitee.Email)
	require.NoError(t, err)

	boom := errors.New("link store unavailable")
	require.NoError(t, fx.db.Callback().Delete().Before("gorm:delete").Register("fail_unlink", func(tx *gorm.DB) {
		if tx.Statement.Table == "map_permission_links" {
			tx.AddError(boom)
		}
	}))
	t.Cleanup(func() {
		require.NoError(t, fx.db.Callback().Delete().Remove("fail_unlink"))
	})

	require.ErrorIs(t, fx.service.RevokeShare(context.Background(), share.ID, fx.owner.ID), boom)

	// The whole revocation rolled back: share active, invitation accepted,
	// links intact.
	var stored models.MapShare
	require.NoError(t, fx.db.First(&stored, "id = ?", share.ID).Error)
	require.Equal(t, models.ShareActive, stored.Status)

	var storedInvitation models.MapInvitation
	require.NoError(t, fx.db.First(&storedInvitation, "id = ?", invitation.ID).Error)
	require.Equal(t, models.InvitationAccepted, storedInvitation.Status)
	require.ElementsMatch(t,
		[]permissions.Capability{permissions.CapabilityWrite},
		fx.linkCaps(t, fx.invitee.ID))
}

func TestRevokeShareClearsLinksAfterConcurrentUpgrade(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelEdit)
	share, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, fx.invitee.Email)
	require.NoError(t, err)

	// Upgrade the share after RevokeShare has loaded it but before its
	// transaction runs, so the revocation works from a stale permission.
	interleaved := false
	require.NoError(t, fx.db.Callback().Query().After("gorm:query").Register("interleave_upgrade", func(tx *gorm.DB) {
		if interleaved || tx.Statement.Table != "map_shares" {
			return
		}
		interleaved = true
		_, err := fx.service.UpdateSharePermission(context.Background(), share.ID, fx.owner.ID, permissions.LevelManage)
		require.NoError(t, err)
	}))
	t.Cleanup(func() {
		require.NoError(t, fx.db.Callback().Query().Remove("interleave_upgrade"))
	})

	require.NoError(t, fx.service.RevokeShare(context.Background(), share.ID, fx.owner.ID))
	require.True(t, interleaved)

	var stored models.MapShare
	require.NoError(t, fx.db.First(&stored, "id = ?", share.ID).Error)
	require.Equal(t, models.ShareRevoked, stored.Status)
	require.Empty(t, fx.linkCaps(t, fx.invitee.ID))
}

func TestDeclineInvitationGrantsNothing(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelManage)

	require.NoError(t, fx.service.DeclineInvitation(context.Background(), invitation.ID, fx.invitee.ID, fx.invitee.Email))

	var stored models.MapInvitation
	require.NoError(t, fx.db.First(&stored, "id = ?", invitation.ID).Error)
	require.Equal(t, models.InvitationDeclined, stored.Status)
	require.Empty(t, fx.linkCaps(t, fx.invitee.ID))

	// A declined invitation cannot be accepted afterwards.
	_, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, fx.invitee.Email)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_STATE", appErr.Code)
}

func TestDeclineInvitationRejectsWrongIdentity(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelView)

	err := fx.service.DeclineInvitation(context.Background(), invitation.ID, fx.invitee.ID, "other@example.com")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "IDENTITY_MISMATCH", appErr.Code)
}

func TestRevokeInvitationCascadesToShare(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelManage)

	share, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, fx.invitee.Email)
	require.NoError(t, err)
	require.NotEmpty(t, fx.linkCaps(t, fx.invitee.ID))

	require.NoError(t, fx.service.RevokeInvitation(context.Background(), invitation.ID, fx.owner.ID))

	var storedShare models.MapShare
	require.NoError(t, fx.db.First(&storedShare, "id = ?", share.ID).Error)
	require.Equal(t, models.ShareRevoked, storedShare.Status)
	require.NotNil(t, storedShare.RevokedAt)
	require.Empty(t, fx.linkCaps(t, fx.invitee.ID))

	var storedInvitation models.MapInvitation
	require.NoError(t, fx.db.First(&storedInvitation, "id = ?", invitation.ID).Error)
	require.Equal(t, models.InvitationRevoked, storedInvitation.Status)

	// Second revocation is a quiet no-op.
	require.NoError(t, fx.service.RevokeInvitation(context.Background(), invitation.ID, fx.owner.ID))
}

func TestRevokeInvitationRequiresManage(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelView)

	err := fx.service.RevokeInvitation(context.Background(), invitation.ID, fx.invitee.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestUpdateSharePermissionAppliesDelta(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelView)
	share, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, fx.invitee.Email)
	require.NoError(t, err)

	updated, err := fx.service.UpdateSharePermission(context.Background(), share.ID, fx.owner.ID, permissions.LevelManage)
	require.NoError(t, err)
	require.Equal(t, permissions.LevelManage, updated.Permission)
	require.ElementsMatch(t,
		[]permissions.Capability{permissions.CapabilityWrite, permissions.CapabilityManage},
		fx.linkCaps(t, fx.invitee.ID))

	updated, err = fx.service.UpdateSharePermission(context.Background(), share.ID, fx.owner.ID, permissions.LevelEdit)
	require.NoError(t, err)
	require.Equal(t, permissions.LevelEdit, updated.Permission)
	require.ElementsMatch(t,
		[]permissions.Capability{permissions.CapabilityWrite},
		fx.linkCaps(t, fx.invitee.ID))

	updated, err = fx.service.UpdateSharePermission(context.Background(), share.ID, fx.owner.ID, permissions.LevelView)
	require.NoError(t, err)
	require.Equal(t, permissions.LevelView, updated.Permission)
	require.ElementsMatch(t,
		[]permissions.Capability{permissions.CapabilityRead},
		fx.linkCaps(t, fx.invitee.ID))
}

func TestUpdateSharePermissionKeepsSharedLinkRow(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelEdit)
	share, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, fx.invitee.Email)
	require.NoError(t, err)

	var before models.MapPermissionLink
	require.NoError(t, fx.db.Where("map_id = ? AND user_id = ? AND capability = ?",
		fx.mapRec.ID, fx.invitee.ID, permissions.CapabilityWrite).First(&before).Error)

	_, err = fx.service.UpdateSharePermission(context.Background(), share.ID, fx.owner.ID, permissions.LevelManage)
	require.NoError(t, err)

	// The write link both levels carry is the same row, not a replacement.
	var after models.MapPermissionLink
	require.NoError(t, fx.db.Where("map_id = ? AND user_id = ? AND capability = ?",
		fx.mapRec.ID, fx.invitee.ID, permissions.CapabilityWrite).First(&after).Error)
	require.Equal(t, before.ID, after.ID)
}

func TestUpdateSharePermissionSameLevelIsNoOp(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelEdit)
	share, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, fx.invitee.Email)
	require.NoError(t, err)

	updated, err := fx.service.UpdateSharePermission(context.Background(), share.ID, fx.owner.ID, permissions.LevelEdit)
	require.NoError(t, err)
	require.Equal(t, permissions.LevelEdit, updated.Permission)
	require.ElementsMatch(t,
		[]permissions.Capability{permissions.CapabilityWrite},
		fx.linkCaps(t, fx.invitee.ID))
}

func TestUpdateSharePermissionRejectsRevokedShare(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelEdit)
	share, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, fx.invitee.Email)
	require.NoError(t, err)
	require.NoError(t, fx.service.RevokeShare(context.Background(), share.ID, fx.owner.ID))

	_, err = fx.service.UpdateSharePermission(context.Background(), share.ID, fx.owner.ID, permissions.LevelManage)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_STATE", appErr.Code)
}

func TestRevokeShareRemovesLinksAndMarksInvitation(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelManage)
	share, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, fx.invitee.Email)
	require.NoError(t, err)

	require.NoError(t, fx.service.RevokeShare(context.Background(), share.ID, fx.owner.ID))

	require.Empty(t, fx.linkCaps(t, fx.invitee.ID))

	var storedInvitation models.MapInvitation
	require.NoError(t, fx.db.First(&storedInvitation, "id = ?", invitation.ID).Error)
	require.Equal(t, models.InvitationRevoked, storedInvitation.Status)

	// Revoking again is a silent success.
	require.NoError(t, fx.service.RevokeShare(context.Background(), share.ID, fx.owner.ID))
}

func TestDeleteInvitationOnlyWhenRevoked(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelView)

	err := fx.service.DeleteInvitation(context.Background(), invitation.ID, fx.owner.ID)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "INVALID_STATE", appErr.Code)

	require.NoError(t, fx.service.RevokeInvitation(context.Background(), invitation.ID, fx.owner.ID))
	require.NoError(t, fx.service.DeleteInvitation(context.Background(), invitation.ID, fx.owner.ID))

	err = fx.db.First(&models.MapInvitation{}, "id = ?", invitation.ID).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListInvitationsAndShares(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelEdit)
	fx.invite(t, "pending@example.com", permissions.LevelView)

	_, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, fx.invitee.Email)
	require.NoError(t, err)

	invitations, err := fx.service.ListInvitations(context.Background(), fx.owner.ID, fx.mapRec.ID)
	require.NoError(t, err)
	require.Len(t, invitations, 2)

	shares, err := fx.service.ListShares(context.Background(), fx.owner.ID, fx.mapRec.ID)
	require.NoError(t, err)
	require.Len(t, shares, 1)
	require.Equal(t, fx.invitee.ID, shares[0].User.ID)
	require.Equal(t, "Casey", shares[0].User.Name)
	require.Equal(t, permissions.LevelEdit, shares[0].Permission)

	_, err = fx.service.ListShares(context.Background(), fx.invitee.ID, fx.mapRec.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestManageShareHolderCanInvite(t *testing.T) {
	fx := newSharingFixture(t)
	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelManage)
	_, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, fx.invitee.Email)
	require.NoError(t, err)

	// Holding a manage grant is enough to run sharing operations.
	_, token, err := fx.service.CreateInvitation(context.Background(), fx.invitee.ID, fx.mapRec.ID, CreateInvitationInput{
		Email:      "friend@example.com",
		Permission: permissions.LevelView,
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)
}

func TestInviteExpiryDefaultsFromOption(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fx := newSharingFixture(t,
		WithInviteExpiry(48*time.Hour),
		WithSharingClock(func() time.Time { return base }),
	)

	invitation := fx.invite(t, fx.invitee.Email, permissions.LevelView)
	require.NotNil(t, invitation.ExpiresAt)
	require.Equal(t, base.Add(48*time.Hour), invitation.ExpiresAt.UTC())

	// An expired timestamp is advisory; acceptance still follows status.
	past := base.Add(-time.Hour)
	require.NoError(t, fx.db.Model(&models.MapInvitation{}).
		Where("id = ?", invitation.ID).
		Update("expires_at", past).Error)

	var stale models.MapInvitation
	require.NoError(t, fx.db.First(&stale, "id = ?", invitation.ID).Error)
	require.True(t, stale.Expired(base))

	share, err := fx.service.AcceptInvitation(context.Background(), invitation.ID, fx.invitee.ID, fx.invitee.Email)
	require.NoError(t, err)
	require.Equal(t, models.ShareActive, share.Status)
}
