package models

import (
	"errors"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Map represents a collaborative concept map owned by a single user. The
// creator always holds every capability and is never written to the
// permission link sets.
type Map struct {
	BaseModel

	Name        string         `gorm:"not null;index" json:"name"`
	Description string         `json:"description"`
	CreatorID   string         `gorm:"type:uuid;not null;index" json:"creator_id"`
	Metadata    datatypes.JSON `json:"metadata"`

	Creator     *User               `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Invitations []MapInvitation     `gorm:"foreignKey:MapID" json:"invitations,omitempty"`
	Shares      []MapShare          `gorm:"foreignKey:MapID" json:"shares,omitempty"`
	Links       []MapPermissionLink `gorm:"foreignKey:MapID" json:"-"`
}

// BeforeSave validates required fields.
func (m *Map) BeforeSave(tx *gorm.DB) error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return errors.New("map: name is required")
	}
	m.CreatorID = strings.TrimSpace(m.CreatorID)
	if m.CreatorID == "" {
		return errors.New("map: creator_id is required")
	}
	return nil
}

// BeforeDelete removes dependent sharing records so a deleted map never
// leaves dangling invitations, shares, or permission links.
func (m *Map) BeforeDelete(tx *gorm.DB) error {
	if err := tx.Where("map_id = ?", m.ID).Delete(&MapPermissionLink{}).Error; err != nil {
		return err
	}
	if err := tx.Where("map_id = ?", m.ID).Delete(&MapShare{}).Error; err != nil {
		return err
	}
	return tx.Where("map_id = ?", m.ID).Delete(&MapInvitation{}).Error
}
