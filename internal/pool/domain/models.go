// Package domain contains persistence models for the package allocation
// engine.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type PackageStatus string

const (
	PackageStatusAvailable  PackageStatus = "available"
	PackageStatusAllocated  PackageStatus = "allocated"
	PackageStatusInProgress PackageStatus = "in_progress"
	PackageStatusCompleted  PackageStatus = "completed"
	PackageStatusFailed     PackageStatus = "failed"
	PackageStatusRevoked    PackageStatus = "revoked"
)

// Active reports whether the package is currently leased to a buyer.
func (s PackageStatus) Active() bool {
	return s == PackageStatusAllocated || s == PackageStatusInProgress
}

// Terminal reports whether the package finished its current cycle.
func (s PackageStatus) Terminal() bool {
	return s == PackageStatusCompleted || s == PackageStatusFailed || s == PackageStatusRevoked
}

var legalTransitions = map[PackageStatus][]PackageStatus{
	PackageStatusAvailable: {PackageStatusAllocated, PackageStatusRevoked},
	PackageStatusAllocated: {PackageStatusInProgress, PackageStatusAvailable, PackageStatusRevoked},
	PackageStatusInProgress: {
		PackageStatusInProgress, // byte progress updates
		PackageStatusCompleted,
		PackageStatusFailed,
		PackageStatusAvailable, // administrative reset
		PackageStatusRevoked,
	},
}

// CanTransition reports whether from -> to is a legal state machine edge.
func CanTransition(from, to PackageStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Package is one unit of shareable traffic capacity tied to a supplier and a
// source network address. Rows are never deleted; administrative retirement
// goes through the revoked status.
type Package struct {
	ID              snowflake.ID   `gorm:"primaryKey"`
	UUID            string         `gorm:"type:text;not null;uniqueIndex"`
	OwnerID         snowflake.ID   `gorm:"not null;index:idx_packages_owner_addr"`
	IP              string         `gorm:"type:text;not null;index:idx_packages_owner_addr"`
	Region          string         `gorm:"type:text;index:idx_packages_status_region"`
	SizeBytes       int64          `gorm:"not null"`
	BytesSent       int64          `gorm:"not null;default:0"`
	Status          PackageStatus  `gorm:"type:text;not null;index:idx_packages_status_buyer;index:idx_packages_status_region"`
	AssignedBuyerID *snowflake.ID  `gorm:"index:idx_packages_status_buyer"`
	AllocatedAt     *time.Time
	CompletedAt     *time.Time
	CreatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Package) TableName() string { return "packages" }

type AllocationStatus string

const (
	AllocationStatusAllocated  AllocationStatus = "allocated"
	AllocationStatusInProgress AllocationStatus = "in_progress"
	AllocationStatusCompleted  AllocationStatus = "completed"
	AllocationStatusFailed     AllocationStatus = "failed"
	// AllocationStatusExpired closes a ledger entry whose lease timed out
	// before the buyer confirmed it.
	AllocationStatusExpired AllocationStatus = "expired"
	AllocationStatusRevoked AllocationStatus = "revoked"
)

// PackageAllocation is one claim-to-resolution ledger entry. Created exactly
// once per successful claim, closed at most once, never deleted. At most one
// entry per package has a null CompletedAt.
type PackageAllocation struct {
	ID          snowflake.ID     `gorm:"primaryKey"`
	PackageID   snowflake.ID     `gorm:"not null;index:idx_allocations_package_open"`
	BuyerID     snowflake.ID     `gorm:"not null;index"`
	Status      AllocationStatus `gorm:"type:text;not null"`
	BytesSent   int64            `gorm:"not null;default:0"`
	AllocatedAt time.Time        `gorm:"not null"`
	CompletedAt *time.Time       `gorm:"index:idx_allocations_package_open"`
}

// TableName sets the database table name.
func (PackageAllocation) TableName() string { return "package_allocations" }
