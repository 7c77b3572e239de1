package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/calebreid/mapweave/internal/permissions"
)

// ShareStatus enumerates the share state machine.
type ShareStatus string

const (
	// ShareActive marks a live grant.
	ShareActive ShareStatus = "active"
	// ShareRevoked marks a withdrawn grant kept for audit.
	ShareRevoked ShareStatus = "revoked"
)

var validShareStatuses = map[ShareStatus]struct{}{
	ShareActive:  {},
	ShareRevoked: {},
}

// Valid reports whether the status is a member of the closed enum.
func (s ShareStatus) Valid() bool {
	_, ok := validShareStatuses[s]
	return ok
}

// MapShare is a realized grant on a map. Shares exist only as the result of
// an accepted invitation; at most one share per (map, user) pair is active.
type MapShare struct {
	BaseModel

	MapID        string            `gorm:"type:uuid;not null;index:idx_map_share_user,priority:1" json:"map_id"`
	UserID       string            `gorm:"type:uuid;not null;index:idx_map_share_user,priority:2" json:"user_id"`
	Permission   permissions.Level `gorm:"type:text;not null" json:"permission"`
	Status       ShareStatus       `gorm:"type:text;not null;default:active;index" json:"status"`
	CreatedBy    string            `gorm:"type:uuid;not null" json:"created_by"`
	InvitationID *string           `gorm:"type:uuid;index" json:"invitation_id,omitempty"`
	AcceptedAt   time.Time         `json:"accepted_at"`
	RevokedAt    *time.Time        `json:"revoked_at,omitempty"`

	Map        *Map           `gorm:"foreignKey:MapID" json:"map,omitempty"`
	User       *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Invitation *MapInvitation `gorm:"foreignKey:InvitationID" json:"invitation,omitempty"`
}

// BeforeSave validates enum fields and required references.
func (s *MapShare) BeforeSave(tx *gorm.DB) error {
	s.MapID = strings.TrimSpace(s.MapID)
	if s.MapID == "" {
		return errors.New("map_share: map_id is required")
	}

	s.UserID = strings.TrimSpace(s.UserID)
	if s.UserID == "" {
		return errors.New("map_share: user_id is required")
	}

	if !s.Permission.Valid() {
		return fmt.Errorf("map_share: invalid permission %q", s.Permission)
	}

	if s.Status == "" {
		s.Status = ShareActive
	}
	if !s.Status.Valid() {
		return fmt.Errorf("map_share: invalid status %q", s.Status)
	}

	s.CreatedBy = strings.TrimSpace(s.CreatedBy)
	if s.CreatedBy == "" {
		return errors.New("map_share: created_by is required")
	}

	return nil
}
