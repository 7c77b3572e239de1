package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/calebreid/mapweave/internal/database/testutil"
	"github.com/calebreid/mapweave/internal/models"
	"github.com/calebreid/mapweave/internal/permissions"
	apperrors "github.com/calebreid/mapweave/pkg/errors"
)

func newMapServiceFixture(t *testing.T) (*gorm.DB, *MapService, *SharingService, models.User, models.User) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	owner := models.User{Email: "owner@example.com", Password: "x", IsActive: true}
	require.NoError(t, db.Create(&owner).Error)
	other := models.User{Email: "other@example.com", Password: "x", IsActive: true}
	require.NoError(t, db.Create(&other).Error)

	checker, err := NewAccessEvaluator(db)
	require.NoError(t, err)
	mapService, err := NewMapService(db, checker, nil)
	require.NoError(t, err)
	sharingService, err := NewSharingService(db, checker, nil, nil)
	require.NoError(t, err)

	return db, mapService, sharingService, owner, other
}

func TestMapCreateAndGet(t *testing.T) {
	_, service, _, owner, other := newMapServiceFixture(t)

	created, err := service.Create(context.Background(), owner.ID, CreateMapInput{
		Name:        "  Architecture ",
		Description: "system overview",
		Metadata:    map[string]any{"layout": "radial"},
	})
	require.NoError(t, err)
	require.Equal(t, "Architecture", created.Name)

	loaded, err := service.Get(context.Background(), owner.ID, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, loaded.ID)

	// A stranger cannot read the map.
	_, err = service.Get(context.Background(), other.ID, created.ID)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestMapCreateRequiresName(t *testing.T) {
	_, service, _, owner, _ := newMapServiceFixture(t)

	_, err := service.Create(context.Background(), owner.ID, CreateMapInput{Name: "   "})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "BAD_REQUEST", appErr.Code)
}

func TestMapListIncludesSharedMaps(t *testing.T) {
	_, service, sharing, owner, other := newMapServiceFixture(t)

	mine, err := service.Create(context.Background(), owner.ID, CreateMapInput{Name: "Mine"})
	require.NoError(t, err)

	theirs, err := service.Create(context.Background(), other.ID, CreateMapInput{Name: "Theirs"})
	require.NoError(t, err)

	// Owner only sees their own map until a share lands.
	maps, err := service.List(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Len(t, maps, 1)
	require.Equal(t, mine.ID, maps[0].ID)

	invitation, _, err := sharing.CreateInvitation(context.Background(), other.ID, theirs.ID, CreateInvitationInput{
		Email:      owner.Email,
		Permission: permissions.LevelView,
	})
	require.NoError(t, err)
	_, err = sharing.AcceptInvitation(context.Background(), invitation.ID, owner.ID, owner.Email)
	require.NoError(t, err)

	maps, err = service.List(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Len(t, maps, 2)
}

func TestMapUpdateNeedsWriteCapability(t *testing.T) {
	_, service, sharing, owner, other := newMapServiceFixture(t)

	record, err := service.Create(context.Background(), owner.ID, CreateMapInput{Name: "Draft"})
	require.NoError(t, err)

	name := "Renamed"
	_, err = service.Update(context.Background(), other.ID, record.ID, UpdateMapInput{Name: &name})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	// A view share still cannot write.
	invitation, _, err := sharing.CreateInvitation(context.Background(), owner.ID, record.ID, CreateInvitationInput{
		Email:      other.Email,
		Permission: permissions.LevelView,
	})
	require.NoError(t, err)
	_, err = sharing.AcceptInvitation(context.Background(), invitation.ID, other.ID, other.Email)
	require.NoError(t, err)

	_, err = service.Update(context.Background(), other.ID, record.ID, UpdateMapInput{Name: &name})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	updated, err := service.Update(context.Background(), owner.ID, record.ID, UpdateMapInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
}

func TestMapDeleteCascadesSharingRecords(t *testing.T) {
	db, service, sharing, owner, other := newMapServiceFixture(t)

	record, err := service.Create(context.Background(), owner.ID, CreateMapInput{Name: "Doomed"})
	require.NoError(t, err)

	invitation, _, err := sharing.CreateInvitation(context.Background(), owner.ID, record.ID, CreateInvitationInput{
		Email:      other.Email,
		Permission: permissions.LevelEdit,
	})
	require.NoError(t, err)
	_, err = sharing.AcceptInvitation(context.Background(), invitation.ID, other.ID, other.Email)
	require.NoError(t, err)

	// Only the creator can delete, even against a manage share.
	require.ErrorIs(t, service.Delete(context.Background(), other.ID, record.ID), apperrors.ErrForbidden)
	require.NoError(t, service.Delete(context.Background(), owner.ID, record.ID))

	for _, model := range []any{&models.MapInvitation{}, &models.MapShare{}, &models.MapPermissionLink{}} {
		var count int64
		require.NoError(t, db.Model(model).Where("map_id = ?", record.ID).Count(&count).Error)
		require.Zero(t, count)
	}
}
