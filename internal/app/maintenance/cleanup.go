package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/calebreid/mapweave/internal/models"
	"github.com/calebreid/mapweave/internal/services"
	"github.com/calebreid/mapweave/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultSharingRetention   = 30 * 24 * time.Hour
	defaultSharingSpec        = "@daily"
	defaultAuditSpec          = "@daily"
)

// Cleaner coordinates background maintenance tasks: purging long-revoked
// invitations and shares, and pruning stale audit logs.
type Cleaner struct {
	db        *gorm.DB
	audit     *services.AuditService
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	enabled   bool
	retention int

	sharingRetention time.Duration
	sharingSchedule  string
	auditSchedule    string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for scheduling and cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithSharingRetention adjusts how long revoked invitations and shares are
// kept before being purged.
func WithSharingRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.sharingRetention = d
		}
	}
}

// WithSharingSchedule overrides the cron specification for sharing record cleanup.
func WithSharingSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sharingSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding cleanup job being skipped.
func NewCleaner(db *gorm.DB, audit *services.AuditService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:               db,
		audit:            audit,
		now:              time.Now,
		retention:        defaultAuditRetentionDays,
		sharingRetention: defaultSharingRetention,
		sharingSchedule:  defaultSharingSpec,
		auditSchedule:    defaultAuditSpec,
		log:              logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.audit != nil || cleaner.db != nil

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.db != nil {
		if _, err := c.cron.AddFunc(c.sharingSchedule, func() {
			ctx := context.Background()
			if _, err := CleanupSharingRecords(ctx, c.db, c.now().Add(-c.sharingRetention)); err != nil {
				c.log.Warn("sharing cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			ctx := context.Background()
			if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.db != nil {
		if _, err := CleanupSharingRecords(ctx, c.db, c.now().Add(-c.sharingRetention)); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// SharingCleanupStats captures the number of records removed per ledger.
type SharingCleanupStats struct {
	Invitations int64
	Shares      int64
}

// CleanupSharingRecords deletes invitations and shares that were revoked
// before the cutoff. Pending, accepted, and active records are never touched;
// revocation timestamps are the sole criterion.
func CleanupSharingRecords(ctx context.Context, db *gorm.DB, cutoff time.Time) (SharingCleanupStats, error) {
	if db == nil {
		return SharingCleanupStats{}, errors.New("cleanup sharing: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stats := SharingCleanupStats{}

	result := db.WithContext(ctx).
		Where("status = ? AND revoked_at < ?", models.InvitationRevoked, cutoff).
		Delete(&models.MapInvitation{})
	if result.Error != nil {
		return stats, fmt.Errorf("cleanup sharing: invitations: %w", result.Error)
	}
	stats.Invitations = result.RowsAffected

	result = db.WithContext(ctx).
		Where("status = ? AND revoked_at < ?", models.ShareRevoked, cutoff).
		Delete(&models.MapShare{})
	if result.Error != nil {
		return stats, fmt.Errorf("cleanup sharing: shares: %w", result.Error)
	}
	stats.Shares = result.RowsAffected

	return stats, nil
}
