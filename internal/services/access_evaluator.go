package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/calebreid/mapweave/internal/models"
	"github.com/calebreid/mapweave/internal/permissions"
	apperrors "github.com/calebreid/mapweave/pkg/errors"
	"github.com/calebreid/mapweave/pkg/metrics"
)

// CapabilityChecker answers whether a principal holds a capability on a map.
type CapabilityChecker interface {
	HasCapability(ctx context.Context, userID, mapID string, capability permissions.Capability) (bool, error)
}

// AccessEvaluator is the read-only capability oracle consulted before any
// map mutation. It never writes; permission links are mutated only by the
// sharing service.
type AccessEvaluator struct {
	db *gorm.DB
}

// NewAccessEvaluator constructs an evaluator backed by the provided database.
func NewAccessEvaluator(db *gorm.DB) (*AccessEvaluator, error) {
	if db == nil {
		return nil, errors.New("access evaluator: db is required")
	}
	return &AccessEvaluator{db: db}, nil
}

// HasCapability reports whether the user holds the capability on the map.
// The map owner always evaluates true. For everyone else the answer derives
// from link set membership: write and manage links imply read, manage links
// imply write.
func (e *AccessEvaluator) HasCapability(ctx context.Context, userID, mapID string, capability permissions.Capability) (bool, error) {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, errors.New("access evaluator: user id is required")
	}
	mapID = strings.TrimSpace(mapID)
	if mapID == "" {
		return false, errors.New("access evaluator: map id is required")
	}
	if !capability.Valid() {
		return false, fmt.Errorf("access evaluator: invalid capability %q", capability)
	}

	allowed, err := e.hasCapability(ctx, userID, mapID, capability)
	switch {
	case err != nil:
		metrics.CapabilityChecks.WithLabelValues(string(capability), "error").Inc()
	case allowed:
		metrics.CapabilityChecks.WithLabelValues(string(capability), "allow").Inc()
	default:
		metrics.CapabilityChecks.WithLabelValues(string(capability), "deny").Inc()
	}
	return allowed, err
}

func (e *AccessEvaluator) hasCapability(ctx context.Context, userID, mapID string, capability permissions.Capability) (bool, error) {
	var resource models.Map
	if err := e.db.WithContext(ctx).
		Select("id", "creator_id").
		First(&resource, "id = ?", mapID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, apperrors.ErrNotFound
		}
		return false, fmt.Errorf("access evaluator: load map: %w", err)
	}

	if resource.CreatorID == userID {
		return true, nil
	}

	var count int64
	if err := e.db.WithContext(ctx).
		Model(&models.MapPermissionLink{}).
		Where("map_id = ? AND user_id = ? AND capability IN ?", mapID, userID, permissions.Satisfying(capability)).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("access evaluator: count links: %w", err)
	}

	return count > 0, nil
}
