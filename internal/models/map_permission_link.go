package models

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/calebreid/mapweave/internal/permissions"
)

// MapPermissionLink is one element of a map's per-capability principal set.
// The tri-set layout (read/write/manage rows instead of one ordered field)
// lets the evaluator answer capability queries with a single indexed lookup.
// Links are written only by the sharing service, inside the same transaction
// as the ledger mutation they mirror.
type MapPermissionLink struct {
	BaseModel

	MapID      string                 `gorm:"type:uuid;not null;uniqueIndex:idx_map_link,priority:1" json:"map_id"`
	UserID     string                 `gorm:"type:uuid;not null;uniqueIndex:idx_map_link,priority:2" json:"user_id"`
	Capability permissions.Capability `gorm:"type:text;not null;uniqueIndex:idx_map_link,priority:3" json:"capability"`
}

// TableName overrides the default table name for GORM.
func (MapPermissionLink) TableName() string {
	return "map_permission_links"
}

// BeforeSave validates link fields.
func (l *MapPermissionLink) BeforeSave(tx *gorm.DB) error {
	l.MapID = strings.TrimSpace(l.MapID)
	if l.MapID == "" {
		return errors.New("map_permission_link: map_id is required")
	}

	l.UserID = strings.TrimSpace(l.UserID)
	if l.UserID == "" {
		return errors.New("map_permission_link: user_id is required")
	}

	if !l.Capability.Valid() {
		return fmt.Errorf("map_permission_link: invalid capability %q", l.Capability)
	}

	return nil
}
