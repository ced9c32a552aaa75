package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/sharenet/packetpool/internal/observability/metrics"
	pooldomain "github.com/sharenet/packetpool/internal/pool/domain"
	"gorm.io/gorm"
)

type repositoryImpl struct{}

func New() pooldomain.Repository {
	return &repositoryImpl{}
}

func (r *repositoryImpl) LockAvailable(ctx context.Context, tx *gorm.DB, region string, limit int) ([]pooldomain.Package, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := `SELECT * FROM packages
		 WHERE status = ?`
	args := []any{pooldomain.PackageStatusAvailable}
	if region != "" {
		query += ` AND region = ?`
		args = append(args, region)
	}
	query += `
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?
		 FOR UPDATE SKIP LOCKED`
	args = append(args, limit)

	var packages []pooldomain.Package
	poolMetrics := obsmetrics.Pool()
	lockStart := time.Now()
	err := tx.WithContext(ctx).Raw(query, args...).Scan(&packages).Error
	poolMetrics.ObserveDBLockWait(obsmetrics.LockResourceAvailablePackages, time.Since(lockStart))
	if err != nil {
		return nil, err
	}
	return packages, nil
}

func (r *repositoryImpl) HasActiveForSource(ctx context.Context, tx *gorm.DB, buyerID, ownerID snowflake.ID, ip string) (bool, error) {
	var count int64
	err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM packages
		 WHERE owner_id = ?
		   AND ip = ?
		   AND assigned_buyer_id = ?
		   AND status IN (?, ?)`,
		ownerID,
		ip,
		buyerID,
		pooldomain.PackageStatusAllocated,
		pooldomain.PackageStatusInProgress,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repositoryImpl) FindAssignedForUpdate(ctx context.Context, tx *gorm.DB, buyerID snowflake.ID, uuid string) (*pooldomain.Package, error) {
	var packages []pooldomain.Package
	poolMetrics := obsmetrics.Pool()
	lockStart := time.Now()
	err := tx.WithContext(ctx).Raw(
		`SELECT * FROM packages
		 WHERE uuid = ? AND assigned_buyer_id = ?
		 LIMIT 1
		 FOR UPDATE`,
		uuid,
		buyerID,
	).Scan(&packages).Error
	poolMetrics.ObserveDBLockWait(obsmetrics.LockResourceAssignedPackage, time.Since(lockStart))
	if err != nil {
		return nil, err
	}
	if len(packages) == 0 {
		return nil, nil
	}
	return &packages[0], nil
}

func (r *repositoryImpl) FindByUUIDForUpdate(ctx context.Context, tx *gorm.DB, uuid string) (*pooldomain.Package, error) {
	var packages []pooldomain.Package
	err := tx.WithContext(ctx).Raw(
		`SELECT * FROM packages
		 WHERE uuid = ?
		 LIMIT 1
		 FOR UPDATE`,
		uuid,
	).Scan(&packages).Error
	if err != nil {
		return nil, err
	}
	if len(packages) == 0 {
		return nil, nil
	}
	return &packages[0], nil
}

func (r *repositoryImpl) LockStaleAllocated(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) ([]pooldomain.Package, error) {
	if limit <= 0 {
		limit = 500
	}
	var packages []pooldomain.Package
	poolMetrics := obsmetrics.Pool()
	lockStart := time.Now()
	err := tx.WithContext(ctx).Raw(
		`SELECT * FROM packages
		 WHERE status = ?
		   AND allocated_at < ?
		 ORDER BY allocated_at ASC
		 LIMIT ?
		 FOR UPDATE SKIP LOCKED`,
		pooldomain.PackageStatusAllocated,
		cutoff,
		limit,
	).Scan(&packages).Error
	poolMetrics.ObserveDBLockWait(obsmetrics.LockResourceStaleAllocations, time.Since(lockStart))
	if err != nil {
		return nil, err
	}
	return packages, nil
}

func (r *repositoryImpl) LockFailed(ctx context.Context, tx *gorm.DB, limit int) ([]pooldomain.Package, error) {
	if limit <= 0 {
		limit = 500
	}
	var packages []pooldomain.Package
	err := tx.WithContext(ctx).Raw(
		`SELECT * FROM packages
		 WHERE status = ?
		 ORDER BY completed_at ASC
		 LIMIT ?
		 FOR UPDATE SKIP LOCKED`,
		pooldomain.PackageStatusFailed,
		limit,
	).Scan(&packages).Error
	if err != nil {
		return nil, err
	}
	return packages, nil
}

func (r *repositoryImpl) SavePackage(ctx context.Context, tx *gorm.DB, pkg *pooldomain.Package) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE packages
		 SET status = ?,
		     assigned_buyer_id = ?,
		     bytes_sent = ?,
		     allocated_at = ?,
		     completed_at = ?,
		     updated_at = ?
		 WHERE id = ?`,
		pkg.Status,
		assignedBuyer(pkg),
		pkg.BytesSent,
		pkg.AllocatedAt,
		pkg.CompletedAt,
		time.Now().UTC(),
		pkg.ID,
	).Error
}

func (r *repositoryImpl) InsertPackages(ctx context.Context, tx *gorm.DB, packages []*pooldomain.Package) error {
	if len(packages) == 0 {
		return nil
	}
	return tx.WithContext(ctx).Create(packages).Error
}

func (r *repositoryImpl) InsertAllocation(ctx context.Context, tx *gorm.DB, alloc *pooldomain.PackageAllocation) error {
	return tx.WithContext(ctx).Create(alloc).Error
}

func (r *repositoryImpl) UpdateOpenAllocation(ctx context.Context, tx *gorm.DB, packageID snowflake.ID, status pooldomain.AllocationStatus, bytesSent *int64, completedAt *time.Time) error {
	assignments := map[string]any{"status": status}
	if bytesSent != nil {
		assignments["bytes_sent"] = *bytesSent
	}
	if completedAt != nil {
		assignments["completed_at"] = *completedAt
	}
	return tx.WithContext(ctx).
		Model(&pooldomain.PackageAllocation{}).
		Where("package_id = ? AND completed_at IS NULL", packageID).
		Updates(assignments).Error
}

func (r *repositoryImpl) UsageByBuyer(ctx context.Context, tx *gorm.DB, buyerID snowflake.ID) ([]pooldomain.StatusCount, error) {
	var rows []pooldomain.StatusCount
	err := tx.WithContext(ctx).Raw(
		`SELECT status, COUNT(id) AS count, COALESCE(SUM(bytes_sent), 0) AS bytes
		 FROM packages
		 WHERE assigned_buyer_id = ?
		 GROUP BY status`,
		buyerID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repositoryImpl) ActiveByBuyer(ctx context.Context, db *gorm.DB, buyerID snowflake.ID) ([]pooldomain.Package, error) {
	var packages []pooldomain.Package
	err := db.WithContext(ctx).
		Where("assigned_buyer_id = ? AND status IN (?, ?)",
			buyerID,
			pooldomain.PackageStatusAllocated,
			pooldomain.PackageStatusInProgress,
		).
		Order("allocated_at ASC").
		Find(&packages).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return packages, nil
}

func assignedBuyer(pkg *pooldomain.Package) any {
	if pkg.AssignedBuyerID == nil {
		return nil
	}
	return *pkg.AssignedBuyerID
}
