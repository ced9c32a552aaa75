package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// StatusCount is one row of the per-buyer usage aggregate.
type StatusCount struct {
	Status PackageStatus `gorm:"column:status"`
	Count  int64         `gorm:"column:count"`
	Bytes  int64         `gorm:"column:bytes"`
}

// Repository is the only write path to packages and their ledger. Methods
// taking a tx participate in the caller's transaction; the row locks they
// acquire are the unit of mutual exclusion shared by the claim engine, the
// status report handler, and the reclaimer.
type Repository interface {
	// LockAvailable selects up to limit available packages with exclusive
	// row locks, skipping rows already locked by concurrent claims.
	LockAvailable(ctx context.Context, tx *gorm.DB, region string, limit int) ([]Package, error)
	// HasActiveForSource reports whether the buyer already holds an active
	// lease covering the same (owner, address) traffic source.
	HasActiveForSource(ctx context.Context, tx *gorm.DB, buyerID, ownerID snowflake.ID, ip string) (bool, error)
	// FindAssignedForUpdate locks the package currently assigned to the
	// buyer under the given UUID, or returns nil.
	FindAssignedForUpdate(ctx context.Context, tx *gorm.DB, buyerID snowflake.ID, uuid string) (*Package, error)
	// FindByUUIDForUpdate locks a package by UUID regardless of assignment.
	FindByUUIDForUpdate(ctx context.Context, tx *gorm.DB, uuid string) (*Package, error)
	// LockStaleAllocated selects allocated packages whose lease started
	// before cutoff, with the same locking discipline as claims.
	LockStaleAllocated(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]Package, error)
	// LockFailed selects failed packages for requeueing.
	LockFailed(ctx context.Context, tx *gorm.DB, limit int) ([]Package, error)

	SavePackage(ctx context.Context, tx *gorm.DB, pkg *Package) error
	InsertPackages(ctx context.Context, tx *gorm.DB, packages []*Package) error
	InsertAllocation(ctx context.Context, tx *gorm.DB, alloc *PackageAllocation) error
	// UpdateOpenAllocation mutates the package's single open ledger entry;
	// a non-nil completedAt closes it.
	UpdateOpenAllocation(ctx context.Context, tx *gorm.DB, packageID snowflake.ID, status AllocationStatus, bytesSent *int64, completedAt *time.Time) error

	UsageByBuyer(ctx context.Context, tx *gorm.DB, buyerID snowflake.ID) ([]StatusCount, error)
	ActiveByBuyer(ctx context.Context, db *gorm.DB, buyerID snowflake.ID) ([]Package, error)
}
