package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ClaimRequest struct {
	BuyerID  snowflake.ID `json:"buyer_id"`
	MaxCount int          `json:"max_count"`
	Region   string       `json:"region"`
}

type ClaimedPackage struct {
	UUID        string       `json:"uuid"`
	OwnerID     snowflake.ID `json:"owner_id"`
	IP          string       `json:"ip"`
	Region      string       `json:"region"`
	SizeBytes   int64        `json:"size_bytes"`
	AllocatedAt time.Time    `json:"allocated_at"`
}

type ReportStatusRequest struct {
	BuyerID   snowflake.ID  `json:"buyer_id"`
	UUID      string        `json:"uuid"`
	Status    PackageStatus `json:"status"`
	BytesSent *int64        `json:"bytes_sent"`
}

type Usage struct {
	BuyerID        snowflake.ID `json:"buyer_id"`
	TotalAssigned  int64        `json:"total_assigned"`
	Active         int64        `json:"active"`
	Completed      int64        `json:"completed"`
	Failed         int64        `json:"failed"`
	TotalBytesSent int64        `json:"total_bytes_sent"`
}

type ActiveAllocation struct {
	UUID        string        `json:"uuid"`
	OwnerID     snowflake.ID  `json:"owner_id"`
	IP          string        `json:"ip"`
	SizeBytes   int64         `json:"size_bytes"`
	BytesSent   int64         `json:"bytes_sent"`
	Status      PackageStatus `json:"status"`
	AllocatedAt time.Time     `json:"allocated_at"`
}

type NewPackage struct {
	OwnerID   snowflake.ID `json:"owner_id"`
	IP        string       `json:"ip"`
	Region    string       `json:"region"`
	SizeBytes int64        `json:"size_bytes"`
}

type Service interface {
	// Claim atomically leases up to MaxCount available packages to the
	// buyer. An empty result is a valid outcome.
	Claim(ctx context.Context, req ClaimRequest) ([]ClaimedPackage, error)
	// ReportStatus applies a buyer-reported transition to an assigned
	// package and its open ledger entry.
	ReportStatus(ctx context.Context, req ReportStatusRequest) error
	// Usage summarizes the buyer's packages by status in one snapshot.
	Usage(ctx context.Context, buyerID snowflake.ID) (Usage, error)
	// ActiveAllocations lists the buyer's current leases.
	ActiveAllocations(ctx context.Context, buyerID snowflake.ID) ([]ActiveAllocation, error)
	// ReclaimStale returns unconfirmed allocated packages older than ttl to
	// the pool and reports how many were reclaimed.
	ReclaimStale(ctx context.Context, ttl time.Duration) (int, error)
	// Provision bulk-inserts new available packages and returns their UUIDs.
	Provision(ctx context.Context, packages []NewPackage) ([]string, error)
	// Revoke retires a non-terminal package administratively.
	Revoke(ctx context.Context, uuid string) error
}

var (
	ErrInvalidMaxCount   = errors.New("invalid_max_count")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidPackage    = errors.New("invalid_package")
	ErrBytesRegression   = errors.New("bytes_sent_regression")
	ErrPackageNotFound   = errors.New("package_not_found")
	ErrIllegalTransition = errors.New("illegal_status_transition")
	// ErrStoreBusy marks lock-wait timeouts and other transient store
	// failures; callers may retry with the same intent.
	ErrStoreBusy = errors.New("store_busy")
)
