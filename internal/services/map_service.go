package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/calebreid/mapweave/internal/models"
	"github.com/calebreid/mapweave/internal/permissions"
	apperrors "github.com/calebreid/mapweave/pkg/errors"
)

// CreateMapInput describes the fields needed to create a map.
type CreateMapInput struct {
	Name        string
	Description string
	Metadata    map[string]any
}

// UpdateMapInput enumerates mutable map attributes.
type UpdateMapInput struct {
	Name        *string
	Description *string
	Metadata    map[string]any
}

// MapService orchestrates map lifecycle. Access is decided by the capability
// checker: read to view, write to modify, creator only to delete.
type MapService struct {
	db           *gorm.DB
	checker      CapabilityChecker
	auditService *AuditService
}

// NewMapService constructs a MapService.
func NewMapService(db *gorm.DB, checker CapabilityChecker, auditService *AuditService) (*MapService, error) {
	if db == nil {
		return nil, errors.New("map service: db is required")
	}
	if checker == nil {
		return nil, errors.New("map service: capability checker is required")
	}
	return &MapService{db: db, checker: checker, auditService: auditService}, nil
}

// Create registers a new map owned by the supplied user.
func (s *MapService) Create(ctx context.Context, userID string, input CreateMapInput) (*models.Map, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("map name is required")
	}

	metadata, err := marshalMetadata(input.Metadata)
	if err != nil {
		return nil, err
	}

	record := &models.Map{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		CreatorID:   userID,
		Metadata:    metadata,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, fmt.Errorf("map service: create map: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &record.CreatorID,
		Action:   "map.create",
		Resource: record.ID,
		Result:   "success",
		Metadata: map[string]any{"name": record.Name},
	})

	return record, nil
}

// Get loads a map the user can read.
func (s *MapService) Get(ctx context.Context, userID, mapID string) (*models.Map, error) {
	ctx = ensureContext(ctx)

	if err := s.ensureCapability(ctx, userID, mapID, permissions.CapabilityRead); err != nil {
		return nil, err
	}

	var record models.Map
	if err := s.db.WithContext(ctx).First(&record, "id = ?", mapID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("map service: load map: %w", err)
	}
	return &record, nil
}

// List returns every map the user created or holds an active share on.
func (s *MapService) List(ctx context.Context, userID string) ([]models.Map, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.ErrUnauthorized
	}

	var maps []models.Map
	err := s.db.WithContext(ctx).
		Where("creator_id = ?", userID).
		Or("id IN (?)", s.db.Model(&models.MapShare{}).
			Select("map_id").
			Where("user_id = ? AND status = ?", userID, models.ShareActive)).
		Order("updated_at DESC").
		Find(&maps).Error
	if err != nil {
		return nil, fmt.Errorf("map service: list maps: %w", err)
	}
	return maps, nil
}

// Update persists mutable attributes for a map the user can write.
func (s *MapService) Update(ctx context.Context, userID, mapID string, input UpdateMapInput) (*models.Map, error) {
	ctx = ensureContext(ctx)

	if err := s.ensureCapability(ctx, userID, mapID, permissions.CapabilityWrite); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" {
			updates["name"] = name
		}
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Metadata != nil {
		metadata, err := marshalMetadata(input.Metadata)
		if err != nil {
			return nil, err
		}
		updates["metadata"] = metadata
	}

	var record models.Map
	if err := s.db.WithContext(ctx).First(&record, "id = ?", mapID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("map service: load map: %w", err)
	}

	if len(updates) == 0 {
		return &record, nil
	}

	if err := s.db.WithContext(ctx).Model(&record).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("map service: update map: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &record.CreatorID,
		Action:   "map.update",
		Resource: record.ID,
		Result:   "success",
	})

	return &record, nil
}

// Delete removes a map together with its invitations, shares, and permission
// links. Only the creator can delete.
func (s *MapService) Delete(ctx context.Context, userID, mapID string) error {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apperrors.ErrUnauthorized
	}

	var record models.Map
	if err := s.db.WithContext(ctx).First(&record, "id = ?", strings.TrimSpace(mapID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("map service: load map: %w", err)
	}
	if record.CreatorID != userID {
		return apperrors.ErrForbidden
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Delete(&record).Error
	}); err != nil {
		return fmt.Errorf("map service: delete map: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &userID,
		Action:   "map.delete",
		Resource: record.ID,
		Result:   "success",
		Metadata: map[string]any{"name": record.Name},
	})

	return nil
}

func (s *MapService) ensureCapability(ctx context.Context, userID, mapID string, capability permissions.Capability) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return apperrors.ErrUnauthorized
	}
	ok, err := s.checker.HasCapability(ctx, userID, mapID, capability)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrForbidden
	}
	return nil
}

func marshalMetadata(metadata map[string]any) (datatypes.JSON, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, apperrors.NewBadRequest("metadata must be JSON encodable")
	}
	return datatypes.JSON(encoded), nil
}
