package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/calebreid/mapweave/internal/permissions"
)

// InvitationStatus enumerates the invitation state machine.
type InvitationStatus string

const (
	// InvitationPending marks an invitation awaiting a response.
	InvitationPending InvitationStatus = "pending"
	// InvitationAccepted marks an invitation that spawned a share.
	InvitationAccepted InvitationStatus = "accepted"
	// InvitationDeclined marks an invitation rejected by the invitee.
	InvitationDeclined InvitationStatus = "declined"
	// InvitationRevoked marks an invitation withdrawn by an owner or manager.
	InvitationRevoked InvitationStatus = "revoked"
)

var validInvitationStatuses = map[InvitationStatus]struct{}{
	InvitationPending:  {},
	InvitationAccepted: {},
	InvitationDeclined: {},
	InvitationRevoked:  {},
}

// Valid reports whether the status is a member of the closed enum.
func (s InvitationStatus) Valid() bool {
	_, ok := validInvitationStatuses[s]
	return ok
}

// MapInvitation is a token-bearing offer of access to a map, addressed by
// email. The stored token hash is the sole credential needed to look the
// invitation up via a shared link; the email is the authorization key for
// acceptance.
type MapInvitation struct {
	BaseModel

	MapID         string            `gorm:"type:uuid;not null;index" json:"map_id"`
	InvitedEmail  string            `gorm:"not null;index" json:"invited_email"`
	InvitedUserID *string           `gorm:"type:uuid" json:"invited_user_id,omitempty"`
	Permission    permissions.Level `gorm:"type:text;not null" json:"permission"`
	TokenHash     string            `gorm:"uniqueIndex;not null" json:"-"`
	Status        InvitationStatus  `gorm:"type:text;not null;default:pending;index" json:"status"`
	CreatedBy     string            `gorm:"type:uuid;not null" json:"created_by"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
	RespondedAt   *time.Time        `json:"responded_at,omitempty"`
	RevokedAt     *time.Time        `json:"revoked_at,omitempty"`

	Map *Map `gorm:"foreignKey:MapID" json:"map,omitempty"`
}

// BeforeSave validates enum fields and normalises the invited address.
func (i *MapInvitation) BeforeSave(tx *gorm.DB) error {
	i.MapID = strings.TrimSpace(i.MapID)
	if i.MapID == "" {
		return errors.New("map_invitation: map_id is required")
	}

	i.InvitedEmail = NormalizeEmail(i.InvitedEmail)
	if i.InvitedEmail == "" {
		return errors.New("map_invitation: invited_email is required")
	}

	if !i.Permission.Valid() {
		return fmt.Errorf("map_invitation: invalid permission %q", i.Permission)
	}

	if i.Status == "" {
		i.Status = InvitationPending
	}
	if !i.Status.Valid() {
		return fmt.Errorf("map_invitation: invalid status %q", i.Status)
	}

	i.CreatedBy = strings.TrimSpace(i.CreatedBy)
	if i.CreatedBy == "" {
		return errors.New("map_invitation: created_by is required")
	}

	return nil
}

// Expired reports whether the invitation carries an expiry in the past. The
// field is advisory: callers decide how to surface it, no status transition
// is derived from it.
func (i *MapInvitation) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && i.ExpiresAt.Before(now)
}
