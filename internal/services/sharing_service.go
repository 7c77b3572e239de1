package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/calebreid/mapweave/internal/models"
	"github.com/calebreid/mapweave/internal/permissions"
	"github.com/calebreid/mapweave/pkg/crypto"
	apperrors "github.com/calebreid/mapweave/pkg/errors"
	"github.com/calebreid/mapweave/pkg/logger"
	"github.com/calebreid/mapweave/pkg/mail"
	"github.com/calebreid/mapweave/pkg/metrics"
)

const (
	defaultInviteExpiry     = 14 * 24 * time.Hour
	defaultInviteTokenBytes = 32

	// Token hash collisions are practically impossible; the retry guards
	// against them anyway because the column is unique.
	tokenInsertAttempts = 3
)

// SharingOption customises SharingService behaviour.
type SharingOption func(*SharingService)

// WithShareLinkBaseURL configures the base URL embedded in invitation emails.
func WithShareLinkBaseURL(url string) SharingOption {
	return func(s *SharingService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithInviteExpiry overrides the default invitation lifetime. Zero disables
// implicit expiry; explicit expiries on individual invitations still apply.
func WithInviteExpiry(d time.Duration) SharingOption {
	return func(s *SharingService) {
		if d >= 0 {
			s.expiry = d
		}
	}
}

// WithInviteTokenSize adjusts the random token length in bytes.
func WithInviteTokenSize(size int) SharingOption {
	return func(s *SharingService) {
		if size > 0 {
			s.tokenLength = size
		}
	}
}

// WithSharingClock injects a custom clock primarily for testing.
func WithSharingClock(clock func() time.Time) SharingOption {
	return func(s *SharingService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// SharingService owns every mutation of the invitation ledger, the share
// ledger, and the permission link store. Each public operation runs as one
// database transaction and re-validates its required starting status at
// commit time, so concurrent actors resolve by one side failing cleanly.
type SharingService struct {
	db          *gorm.DB
	checker     CapabilityChecker
	audit       *AuditService
	mailer      mail.Mailer
	baseURL     string
	expiry      time.Duration
	tokenLength int
	now         func() time.Time
}

// NewSharingService constructs a SharingService with the provided dependencies.
// The audit service and mailer are optional.
func NewSharingService(db *gorm.DB, checker CapabilityChecker, audit *AuditService, mailer mail.Mailer, opts ...SharingOption) (*SharingService, error) {
	if db == nil {
		return nil, errors.New("sharing service: db is required")
	}
	if checker == nil {
		return nil, errors.New("sharing service: capability checker is required")
	}

	service := &SharingService{
		db:          db,
		checker:     checker,
		audit:       audit,
		mailer:      mailer,
		expiry:      defaultInviteExpiry,
		tokenLength: defaultInviteTokenBytes,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// CreateInvitationInput describes the payload for inviting an email address.
type CreateInvitationInput struct {
	Email      string
	Permission permissions.Level
	ExpiresAt  *time.Time
}

// CreateInvitation records a pending invitation and returns it together with
// the raw token, which is never stored and never reproducible. Invitations
// grant nothing until accepted, so no permission links are touched here.
// Duplicate pending invitations for the same address are allowed; preventing
// them is a caller concern.
func (s *SharingService) CreateInvitation(ctx context.Context, callerID, mapID string, input CreateInvitationInput) (*models.MapInvitation, string, error) {
	ctx = ensureContext(ctx)

	if err := s.ensureManageAccess(ctx, callerID, mapID); err != nil {
		return nil, "", s.observe("invitation.create", err)
	}

	email := models.NormalizeEmail(input.Email)
	if email == "" {
		return nil, "", s.observe("invitation.create", apperrors.NewBadRequest("invited email is required"))
	}
	if !input.Permission.Valid() {
		return nil, "", s.observe("invitation.create", apperrors.NewBadRequest(fmt.Sprintf("unknown permission level %q", input.Permission)))
	}

	now := s.now().UTC()
	expiresAt := input.ExpiresAt
	if expiresAt == nil && s.expiry > 0 {
		exp := now.Add(s.expiry)
		expiresAt = &exp
	}

	var (
		invitation models.MapInvitation
		token      string
	)
	for attempt := 0; attempt < tokenInsertAttempts; attempt++ {
		raw, err := crypto.GenerateToken(s.tokenLength)
		if err != nil {
			return nil, "", s.observe("invitation.create", fmt.Errorf("sharing service: generate token: %w", err))
		}

		invitation = models.MapInvitation{
			MapID:        mapID,
			InvitedEmail: email,
			Permission:   input.Permission,
			TokenHash:    crypto.HashToken(raw),
			Status:       models.InvitationPending,
			CreatedBy:    callerID,
			ExpiresAt:    expiresAt,
		}

		err = s.db.WithContext(ctx).Create(&invitation).Error
		if err == nil {
			token = raw
			break
		}
		if isUniqueConstraintError(err) && attempt < tokenInsertAttempts-1 {
			continue
		}
		return nil, "", s.observe("invitation.create", fmt.Errorf("sharing service: create invitation: %w", err))
	}

	s.sendInvitationMail(ctx, &invitation, token)
	s.recordSharing(ctx, callerID, "map.invitation.create", mapID, map[string]any{
		"invitation_id": invitation.ID,
		"invited_email": email,
		"permission":    string(input.Permission),
	})

	return &invitation, token, s.observe("invitation.create", nil)
}

// InvitationByToken resolves an invitation from the raw token carried in a
// share link. The token is the sole credential for viewing an invitation.
func (s *SharingService) InvitationByToken(ctx context.Context, token string) (*models.MapInvitation, error) {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperrors.NewBadRequest("token is required")
	}

	var invitation models.MapInvitation
	if err := s.db.WithContext(ctx).
		Preload("Map").
		Where("token_hash = ?", crypto.HashToken(token)).
		First(&invitation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("sharing service: find invitation by token: %w", err)
	}

	return &invitation, nil
}

// AcceptInvitation turns a pending invitation into an active share. The
// ledger updates and the permission link writes commit as one unit; a lost
// race against revocation surfaces as an invalid-state error with no partial
// writes. If the acceptor already holds an active share on the map, that
// share is superseded atomically.
func (s *SharingService) AcceptInvitation(ctx context.Context, invitationID, acceptorID, acceptorEmail string) (*models.MapShare, error) {
	ctx = ensureContext(ctx)

	invitationID = strings.TrimSpace(invitationID)
	if invitationID == "" {
		return nil, apperrors.NewBadRequest("invitation id is required")
	}
	acceptorID = strings.TrimSpace(acceptorID)
	if acceptorID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var share models.MapShare
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invitation, err := loadInvitation(tx, invitationID)
		if err != nil {
			return err
		}

		actual := models.NormalizeEmail(acceptorEmail)
		if invitation.InvitedEmail != actual {
			return apperrors.NewIdentityMismatch(invitation.InvitedEmail, actual)
		}

		now := s.now().UTC()
		res := tx.Model(&models.MapInvitation{}).
			Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
			Updates(map[string]any{
				"status":          models.InvitationAccepted,
				"invited_user_id": acceptorID,
				"responded_at":    now,
			})
		if res.Error != nil {
			return fmt.Errorf("sharing service: accept invitation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.NewInvalidState("invitation is no longer pending")
		}

		var resource models.Map
		if err := tx.Select("id", "creator_id").First(&resource, "id = ?", invitation.MapID).Error; err != nil {
			return fmt.Errorf("sharing service: load map: %w", err)
		}

		// The creator holds every capability implicitly and never appears
		// in the link store.
		if acceptorID == resource.CreatorID {
			return apperrors.NewInvalidState("map creator already has full access")
		}

		if err := s.supersedeActiveShare(tx, invitation.MapID, acceptorID, now); err != nil {
			return err
		}

		share = models.MapShare{
			MapID:        invitation.MapID,
			UserID:       acceptorID,
			Permission:   invitation.Permission,
			Status:       models.ShareActive,
			CreatedBy:    resource.CreatorID,
			InvitationID: &invitation.ID,
			AcceptedAt:   now,
		}
		if err := tx.Create(&share).Error; err != nil {
			return fmt.Errorf("sharing service: create share: %w", err)
		}

		return addLinks(tx, invitation.MapID, acceptorID, invitation.Permission.Links())
	})
	if err != nil {
		return nil, s.observe("invitation.accept", err)
	}

	s.recordSharing(ctx, acceptorID, "map.invitation.accept", share.MapID, map[string]any{
		"invitation_id": invitationID,
		"share_id":      share.ID,
		"permission":    string(share.Permission),
	})

	return &share, s.observe("invitation.accept", nil)
}

// DeclineInvitation marks a pending invitation declined. Declining never
// touches shares or permission links.
func (s *SharingService) DeclineInvitation(ctx context.Context, invitationID, actorID, actorEmail string) error {
	ctx = ensureContext(ctx)

	invitationID = strings.TrimSpace(invitationID)
	if invitationID == "" {
		return apperrors.NewBadRequest("invitation id is required")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return apperrors.ErrUnauthorized
	}

	var mapID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invitation, err := loadInvitation(tx, invitationID)
		if err != nil {
			return err
		}
		mapID = invitation.MapID

		actual := models.NormalizeEmail(actorEmail)
		if invitation.InvitedEmail != actual {
			return apperrors.NewIdentityMismatch(invitation.InvitedEmail, actual)
		}

		res := tx.Model(&models.MapInvitation{}).
			Where("id = ? AND status = ?", invitation.ID, models.InvitationPending).
			Updates(map[string]any{
				"status":          models.InvitationDeclined,
				"invited_user_id": actorID,
				"responded_at":    s.now().UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("sharing service: decline invitation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.NewInvalidState("invitation is no longer pending")
		}
		return nil
	})
	if err != nil {
		return s.observe("invitation.decline", err)
	}

	s.recordSharing(ctx, actorID, "map.invitation.decline", mapID, map[string]any{
		"invitation_id": invitationID,
	})
	return s.observe("invitation.decline", nil)
}

// RevokeInvitation withdraws an invitation regardless of its prior status.
// An active share spawned by the invitation is revoked in the same
// transaction, so a withdrawn invitation can never leave a live grant or a
// dangling permission link behind. Revoking an already-revoked invitation is
// a no-op.
func (s *SharingService) RevokeInvitation(ctx context.Context, invitationID, callerID string) error {
	ctx = ensureContext(ctx)

	invitationID = strings.TrimSpace(invitationID)
	if invitationID == "" {
		return apperrors.NewBadRequest("invitation id is required")
	}

	invitation, err := loadInvitation(s.db.WithContext(ctx), invitationID)
	if err != nil {
		return s.observe("invitation.revoke", err)
	}
	if err := s.ensureManageAccess(ctx, callerID, invitation.MapID); err != nil {
		return s.observe("invitation.revoke", err)
	}
	if invitation.Status == models.InvitationRevoked {
		return s.observe("invitation.revoke", nil)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now().UTC()

		res := tx.Model(&models.MapInvitation{}).
			Where("id = ? AND status <> ?", invitation.ID, models.InvitationRevoked).
			Updates(map[string]any{
				"status":     models.InvitationRevoked,
				"revoked_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("sharing service: revoke invitation: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Lost the race to a concurrent revocation; nothing left to do.
			return nil
		}

		var linked models.MapShare
		err := tx.Where("invitation_id = ? AND status = ?", invitation.ID, models.ShareActive).First(&linked).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("sharing service: load linked share: %w", err)
		}

		return revokeShareRecord(tx, &linked, now)
	})
	if err != nil {
		return s.observe("invitation.revoke", err)
	}

	s.recordSharing(ctx, callerID, "map.invitation.revoke", invitation.MapID, map[string]any{
		"invitation_id": invitationID,
	})
	return s.observe("invitation.revoke", nil)
}

// UpdateSharePermission moves an active share to a new permission level. The
// link store is adjusted by the minimal delta between the two levels, so
// links shared by both levels are never dropped and re-created. Requesting
// the current level is a successful no-op.
func (s *SharingService) UpdateSharePermission(ctx context.Context, shareID, callerID string, newPermission permissions.Level) (*models.MapShare, error) {
	ctx = ensureContext(ctx)

	if !newPermission.Valid() {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown permission level %q", newPermission))
	}

	share, err := loadShare(s.db.WithContext(ctx), shareID)
	if err != nil {
		return nil, s.observe("share.update", err)
	}
	if err := s.ensureManageAccess(ctx, callerID, share.MapID); err != nil {
		return nil, s.observe("share.update", err)
	}
	if share.Status != models.ShareActive {
		return nil, s.observe("share.update", apperrors.NewInvalidState("share is not active"))
	}
	if share.Permission == newPermission {
		return share, s.observe("share.update", nil)
	}

	oldPermission := share.Permission
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.MapShare{}).
			Where("id = ? AND status = ? AND permission = ?", share.ID, models.ShareActive, oldPermission).
			Update("permission", newPermission)
		if res.Error != nil {
			return fmt.Errorf("sharing service: update share permission: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperrors.NewInvalidState("share was modified concurrently")
		}

		add, remove, err := permissions.Delta(oldPermission, newPermission)
		if err != nil {
			return err
		}
		if err := addLinks(tx, share.MapID, share.UserID, add); err != nil {
			return err
		}
		return removeLinks(tx, share.MapID, share.UserID, remove)
	})
	if err != nil {
		return nil, s.observe("share.update", err)
	}

	share.Permission = newPermission
	s.recordSharing(ctx, callerID, "map.share.update", share.MapID, map[string]any{
		"share_id":       share.ID,
		"permission":     string(newPermission),
		"old_permission": string(oldPermission),
	})
	return share, s.observe("share.update", nil)
}

// RevokeShare withdraws an active share: the grant record is closed, its
// permission links removed, and the invitation of record marked revoked so a
// dead grant never appears to originate from a live invitation. Revoking an
// already-revoked share is a silent no-op.
func (s *SharingService) RevokeShare(ctx context.Context, shareID, callerID string) error {
	ctx = ensureContext(ctx)

	share, err := loadShare(s.db.WithContext(ctx), shareID)
	if err != nil {
		return s.observe("share.revoke", err)
	}
	if err := s.ensureManageAccess(ctx, callerID, share.MapID); err != nil {
		return s.observe("share.revoke", err)
	}
	if share.Status == models.ShareRevoked {
		return s.observe("share.revoke", nil)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return revokeShareRecord(tx, share, s.now().UTC())
	})
	if err != nil {
		return s.observe("share.revoke", err)
	}

	s.recordSharing(ctx, callerID, "map.share.revoke", share.MapID, map[string]any{
		"share_id": shareID,
	})
	return s.observe("share.revoke", nil)
}

// DeleteInvitation permanently removes a revoked invitation. Any other
// status is refused so the audit trail of invitations that were ever live
// cannot be destroyed.
func (s *SharingService) DeleteInvitation(ctx context.Context, invitationID, callerID string) error {
	ctx = ensureContext(ctx)

	invitation, err := loadInvitation(s.db.WithContext(ctx), invitationID)
	if err != nil {
		return s.observe("invitation.delete", err)
	}
	if err := s.ensureManageAccess(ctx, callerID, invitation.MapID); err != nil {
		return s.observe("invitation.delete", err)
	}
	if invitation.Status != models.InvitationRevoked {
		return s.observe("invitation.delete", apperrors.NewInvalidState("only revoked invitations can be deleted"))
	}

	res := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", invitation.ID, models.InvitationRevoked).
		Delete(&models.MapInvitation{})
	if res.Error != nil {
		return s.observe("invitation.delete", fmt.Errorf("sharing service: delete invitation: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return s.observe("invitation.delete", apperrors.NewInvalidState("invitation changed concurrently"))
	}

	s.recordSharing(ctx, callerID, "map.invitation.delete", invitation.MapID, map[string]any{
		"invitation_id": invitationID,
	})
	return s.observe("invitation.delete", nil)
}

// ListInvitations returns the invitation ledger for a map, newest first.
func (s *SharingService) ListInvitations(ctx context.Context, callerID, mapID string) ([]models.MapInvitation, error) {
	ctx = ensureContext(ctx)

	if err := s.ensureManageAccess(ctx, callerID, mapID); err != nil {
		return nil, err
	}

	var invitations []models.MapInvitation
	if err := s.db.WithContext(ctx).
		Where("map_id = ?", mapID).
		Order("created_at DESC").
		Find(&invitations).Error; err != nil {
		return nil, fmt.Errorf("sharing service: list invitations: %w", err)
	}
	return invitations, nil
}

// MapShareDTO is a share joined with display information for its holder.
type MapShareDTO struct {
	ID           string            `json:"id"`
	MapID        string            `json:"map_id"`
	User         ShareUser         `json:"user"`
	Permission   permissions.Level `json:"permission"`
	Status       models.ShareStatus `json:"status"`
	InvitationID *string           `json:"invitation_id,omitempty"`
	AcceptedAt   time.Time         `json:"accepted_at"`
	RevokedAt    *time.Time        `json:"revoked_at,omitempty"`
}

// ShareUser identifies the principal holding a share.
type ShareUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ListShares returns the share ledger for a map, active grants first.
func (s *SharingService) ListShares(ctx context.Context, callerID, mapID string) ([]MapShareDTO, error) {
	ctx = ensureContext(ctx)

	if err := s.ensureManageAccess(ctx, callerID, mapID); err != nil {
		return nil, err
	}

	var shares []models.MapShare
	if err := s.db.WithContext(ctx).
		Where("map_id = ?", mapID).
		Order("status ASC, accepted_at DESC").
		Find(&shares).Error; err != nil {
		return nil, fmt.Errorf("sharing service: list shares: %w", err)
	}

	return s.buildShareDTOs(ctx, shares)
}

func (s *SharingService) buildShareDTOs(ctx context.Context, shares []models.MapShare) ([]MapShareDTO, error) {
	if len(shares) == 0 {
		return []MapShareDTO{}, nil
	}

	userIDs := make(map[string]struct{}, len(shares))
	for _, share := range shares {
		userIDs[share.UserID] = struct{}{}
	}
	ids := make([]string, 0, len(userIDs))
	for id := range userIDs {
		ids = append(ids, id)
	}

	var users []models.User
	if err := s.db.WithContext(ctx).
		Select("id", "email", "display_name").
		Where("id IN ?", ids).
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("sharing service: load share users: %w", err)
	}

	byID := make(map[string]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}

	dtos := make([]MapShareDTO, 0, len(shares))
	for _, share := range shares {
		holder := ShareUser{ID: share.UserID}
		if user, ok := byID[share.UserID]; ok {
			holder.Email = user.Email
			holder.Name = user.DisplayName
			if holder.Name == "" {
				holder.Name = user.Email
			}
		}
		dtos = append(dtos, MapShareDTO{
			ID:           share.ID,
			MapID:        share.MapID,
			User:         holder,
			Permission:   share.Permission,
			Status:       share.Status,
			InvitationID: share.InvitationID,
			AcceptedAt:   share.AcceptedAt,
			RevokedAt:    share.RevokedAt,
		})
	}
	return dtos, nil
}

func (s *SharingService) ensureManageAccess(ctx context.Context, userID, mapID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apperrors.ErrUnauthorized
	}
	mapID = strings.TrimSpace(mapID)
	if mapID == "" {
		return apperrors.NewBadRequest("map id is required")
	}

	ok, err := s.checker.HasCapability(ctx, userID, mapID, permissions.CapabilityManage)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrForbidden
	}
	return nil
}

// supersedeActiveShare closes any live share the user already holds on the
// map, keeping the at-most-one-active-share invariant when an invitation is
// accepted by a user who was already granted access.
func (s *SharingService) supersedeActiveShare(tx *gorm.DB, mapID, userID string, now time.Time) error {
	var existing models.MapShare
	err := tx.Where("map_id = ? AND user_id = ? AND status = ?", mapID, userID, models.ShareActive).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("sharing service: load existing share: %w", err)
	}
	return revokeShareRecord(tx, &existing, now)
}

// revokeShareRecord closes a share, removes its permission links, and marks
// the invitation of record revoked. Must run inside a transaction.
func revokeShareRecord(tx *gorm.DB, share *models.MapShare, now time.Time) error {
	res := tx.Model(&models.MapShare{}).
		Where("id = ? AND status = ?", share.ID, models.ShareActive).
		Updates(map[string]any{
			"status":     models.ShareRevoked,
			"revoked_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("sharing service: revoke share: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Another transaction revoked it first; links are already gone.
		return nil
	}

	// The share loaded by the caller may be stale: a concurrent permission
	// update could have changed the link set since. With at most one active
	// share per (map, user), every link for the pair belongs to this share,
	// so drop them all rather than the set implied by the loaded permission.
	if err := removeAllLinks(tx, share.MapID, share.UserID); err != nil {
		return err
	}

	if share.InvitationID != nil {
		if err := tx.Model(&models.MapInvitation{}).
			Where("id = ? AND status <> ?", *share.InvitationID, models.InvitationRevoked).
			Updates(map[string]any{
				"status":     models.InvitationRevoked,
				"revoked_at": now,
			}).Error; err != nil {
			return fmt.Errorf("sharing service: revoke linked invitation: %w", err)
		}
	}

	return nil
}

func addLinks(tx *gorm.DB, mapID, userID string, caps []permissions.Capability) error {
	for _, capability := range caps {
		link := models.MapPermissionLink{
			MapID:      mapID,
			UserID:     userID,
			Capability: capability,
		}
		if err := tx.Create(&link).Error; err != nil {
			return fmt.Errorf("sharing service: add %s link: %w", capability, err)
		}
	}
	return nil
}

func removeLinks(tx *gorm.DB, mapID, userID string, caps []permissions.Capability) error {
	if len(caps) == 0 {
		return nil
	}
	if err := tx.Where("map_id = ? AND user_id = ? AND capability IN ?", mapID, userID, caps).
		Delete(&models.MapPermissionLink{}).Error; err != nil {
		return fmt.Errorf("sharing service: remove links: %w", err)
	}
	return nil
}

func removeAllLinks(tx *gorm.DB, mapID, userID string) error {
	if err := tx.Where("map_id = ? AND user_id = ?", mapID, userID).
		Delete(&models.MapPermissionLink{}).Error; err != nil {
		return fmt.Errorf("sharing service: remove links: %w", err)
	}
	return nil
}

func loadInvitation(db *gorm.DB, id string) (*models.MapInvitation, error) {
	var invitation models.MapInvitation
	if err := db.First(&invitation, "id = ?", strings.TrimSpace(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("sharing service: load invitation: %w", err)
	}
	return &invitation, nil
}

func loadShare(db *gorm.DB, id string) (*models.MapShare, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperrors.NewBadRequest("share id is required")
	}

	var share models.MapShare
	if err := db.First(&share, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("sharing service: load share: %w", err)
	}
	return &share, nil
}

func (s *SharingService) sendInvitationMail(ctx context.Context, invitation *models.MapInvitation, token string) {
	if s.mailer == nil {
		return
	}

	link := token
	if s.baseURL != "" {
		link = fmt.Sprintf("%s/invitations?token=%s", s.baseURL, token)
	}

	message := mail.Message{
		To:      []string{invitation.InvitedEmail},
		Subject: "You've been invited to collaborate on a map",
		Body: fmt.Sprintf("Hello,\n\nYou have been invited to collaborate with %s access. Open the link below to respond:\n%s\n\nIf you did not expect this email, you can ignore it.\n",
			invitation.Permission, link),
	}
	if err := s.mailer.Send(ctx, message); err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		logger.Warn("invitation email delivery failed",
			zap.String("email", invitation.InvitedEmail),
			zap.Error(err))
	}
}

func (s *SharingService) recordSharing(ctx context.Context, actorID, action, mapID string, metadata map[string]any) {
	actor := actorID
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &actor,
		Action:   action,
		Resource: mapID,
		Result:   "success",
		Metadata: metadata,
	})
}

func (s *SharingService) observe(operation string, err error) error {
	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.SharingOperations.WithLabelValues(operation, result).Inc()
	return err
}
