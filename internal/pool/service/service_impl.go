package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	auditdomain "github.com/sharenet/packetpool/internal/audit/domain"
	"github.com/sharenet/packetpool/internal/clock"
	"github.com/sharenet/packetpool/internal/config"
	obsmetrics "github.com/sharenet/packetpool/internal/observability/metrics"
	pooldomain "github.com/sharenet/packetpool/internal/pool/domain"
	pkgdb "github.com/sharenet/packetpool/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const reclaimBatchSize = 500

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     pooldomain.Repository
	Config   config.Config
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  pooldomain.Repository
	cfg   config.PoolConfig
	audit auditdomain.Service
}

func NewService(p ServiceParam) pooldomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("pool.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		cfg:   p.Config.Pool,
		audit: p.AuditSvc,
	}
}

// sourceKey identifies one underlying traffic source for the uniqueness rule.
type sourceKey struct {
	ownerID snowflake.ID
	ip      string
}

func (s *Service) Claim(ctx context.Context, req pooldomain.ClaimRequest) ([]pooldomain.ClaimedPackage, error) {
	if req.MaxCount <= 0 || req.MaxCount > s.cfg.MaxClaimBatch {
		return nil, pooldomain.ErrInvalidMaxCount
	}

	poolMetrics := obsmetrics.Pool()
	poolMetrics.IncClaimRequest()

	claimCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWait)
	defer cancel()

	var claimed []pooldomain.ClaimedPackage
	skipped := 0
	err := s.db.WithContext(claimCtx).Transaction(func(tx *gorm.DB) error {
		candidates, err := s.repo.LockAvailable(claimCtx, tx, req.Region, req.MaxCount)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		seen := make(map[sourceKey]struct{}, len(candidates))
		for i := range candidates {
			pkg := candidates[i]
			key := sourceKey{ownerID: pkg.OwnerID, ip: pkg.IP}
			if _, dup := seen[key]; dup {
				skipped++
				continue
			}
			held, err := s.repo.HasActiveForSource(claimCtx, tx, req.BuyerID, pkg.OwnerID, pkg.IP)
			if err != nil {
				return err
			}
			if held {
				// Leave the candidate available for other buyers.
				skipped++
				continue
			}
			seen[key] = struct{}{}

			buyerID := req.BuyerID
			allocatedAt := now
			pkg.Status = pooldomain.PackageStatusAllocated
			pkg.AssignedBuyerID = &buyerID
			pkg.AllocatedAt = &allocatedAt
			if err := s.repo.SavePackage(claimCtx, tx, &pkg); err != nil {
				return err
			}

			if err := s.repo.InsertAllocation(claimCtx, tx, &pooldomain.PackageAllocation{
				ID:          s.genID.Generate(),
				PackageID:   pkg.ID,
				BuyerID:     req.BuyerID,
				Status:      pooldomain.AllocationStatusAllocated,
				AllocatedAt: now,
			}); err != nil {
				return err
			}

			claimed = append(claimed, pooldomain.ClaimedPackage{
				UUID:        pkg.UUID,
				OwnerID:     pkg.OwnerID,
				IP:          pkg.IP,
				Region:      pkg.Region,
				SizeBytes:   pkg.SizeBytes,
				AllocatedAt: allocatedAt,
			})
		}
		return nil
	})
	if err != nil {
		if pkgdb.IsLockContentionErr(err) {
			return nil, pooldomain.ErrStoreBusy
		}
		return nil, err
	}

	poolMetrics.AddClaimOutcome(obsmetrics.ClaimOutcomeClaimed, len(claimed))
	poolMetrics.AddClaimOutcome(obsmetrics.ClaimOutcomeSkipped, skipped)
	if len(claimed) == 0 && skipped == 0 {
		poolMetrics.AddClaimOutcome(obsmetrics.ClaimOutcomeExhausted, 1)
	}

	s.log.Info("claim served",
		zap.Int64("buyer_id", int64(req.BuyerID)),
		zap.Int("requested", req.MaxCount),
		zap.Int("claimed", len(claimed)),
		zap.Int("skipped", skipped),
	)
	return claimed, nil
}

func (s *Service) ReportStatus(ctx context.Context, req pooldomain.ReportStatusRequest) error {
	switch req.Status {
	case pooldomain.PackageStatusInProgress,
		pooldomain.PackageStatusCompleted,
		pooldomain.PackageStatusFailed:
	default:
		return pooldomain.ErrInvalidStatus
	}

	reportCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWait)
	defer cancel()

	err := s.db.WithContext(reportCtx).Transaction(func(tx *gorm.DB) error {
		pkg, err := s.repo.FindAssignedForUpdate(reportCtx, tx, req.BuyerID, req.UUID)
		if err != nil {
			return err
		}
		if pkg == nil {
			return pooldomain.ErrPackageNotFound
		}
		if !pooldomain.CanTransition(pkg.Status, req.Status) {
			return pooldomain.ErrIllegalTransition
		}

		if req.BytesSent != nil {
			if *req.BytesSent < pkg.BytesSent && !s.cfg.ClampByteRegression {
				return pooldomain.ErrBytesRegression
			}
			if *req.BytesSent > pkg.BytesSent {
				pkg.BytesSent = *req.BytesSent
			}
		}

		now := s.clock.Now()
		pkg.Status = req.Status
		var completedAt *time.Time
		if req.Status.Terminal() {
			pkg.CompletedAt = &now
			completedAt = &now
		}
		if err := s.repo.SavePackage(reportCtx, tx, pkg); err != nil {
			return err
		}

		bytes := pkg.BytesSent
		return s.repo.UpdateOpenAllocation(reportCtx, tx, pkg.ID,
			pooldomain.AllocationStatus(req.Status), &bytes, completedAt)
	})
	if err != nil {
		if pkgdb.IsLockContentionErr(err) {
			return pooldomain.ErrStoreBusy
		}
		return err
	}

	obsmetrics.Pool().IncStatusReport(string(req.Status))
	return nil
}

func (s *Service) Usage(ctx context.Context, buyerID snowflake.ID) (pooldomain.Usage, error) {
	usage := pooldomain.Usage{BuyerID: buyerID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.repo.UsageByBuyer(ctx, tx, buyerID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			usage.TotalAssigned += row.Count
			usage.TotalBytesSent += row.Bytes
			switch row.Status {
			case pooldomain.PackageStatusAllocated, pooldomain.PackageStatusInProgress:
				usage.Active += row.Count
			case pooldomain.PackageStatusCompleted:
				usage.Completed += row.Count
			case pooldomain.PackageStatusFailed:
				usage.Failed += row.Count
			}
		}
		return nil
	})
	if err != nil {
		return pooldomain.Usage{}, err
	}
	return usage, nil
}

func (s *Service) ActiveAllocations(ctx context.Context, buyerID snowflake.ID) ([]pooldomain.ActiveAllocation, error) {
	packages, err := s.repo.ActiveByBuyer(ctx, s.db, buyerID)
	if err != nil {
		return nil, err
	}
	allocations := make([]pooldomain.ActiveAllocation, 0, len(packages))
	for _, pkg := range packages {
		var allocatedAt time.Time
		if pkg.AllocatedAt != nil {
			allocatedAt = *pkg.AllocatedAt
		}
		allocations = append(allocations, pooldomain.ActiveAllocation{
			UUID:        pkg.UUID,
			OwnerID:     pkg.OwnerID,
			IP:          pkg.IP,
			SizeBytes:   pkg.SizeBytes,
			BytesSent:   pkg.BytesSent,
			Status:      pkg.Status,
			AllocatedAt: allocatedAt,
		})
	}
	return allocations, nil
}

func (s *Service) ReclaimStale(ctx context.Context, ttl time.Duration) (int, error) {
	now := s.clock.Now()
	cutoff := now.Add(-ttl)

	reclaimed := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stale, err := s.repo.LockStaleAllocated(ctx, tx, cutoff, reclaimBatchSize)
		if err != nil {
			return err
		}
		for i := range stale {
			pkg := stale[i]
			if err := s.returnToPool(ctx, tx, &pkg, pooldomain.AllocationStatusExpired, now); err != nil {
				return err
			}
			reclaimed++
		}

		if s.cfg.RequeueFailed {
			failed, err := s.repo.LockFailed(ctx, tx, reclaimBatchSize)
			if err != nil {
				return err
			}
			for i := range failed {
				pkg := failed[i]
				pkg.Status = pooldomain.PackageStatusAvailable
				pkg.AssignedBuyerID = nil
				pkg.AllocatedAt = nil
				pkg.CompletedAt = nil
				pkg.BytesSent = 0
				if err := s.repo.SavePackage(ctx, tx, &pkg); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if pkgdb.IsLockContentionErr(err) {
			return 0, pooldomain.ErrStoreBusy
		}
		return 0, err
	}

	obsmetrics.Pool().AddReclaimed(reclaimed)
	if reclaimed > 0 {
		s.log.Info("reclaimed stale allocations", zap.Int("count", reclaimed))
	}
	return reclaimed, nil
}

// returnToPool reverts a leased package to available and closes its open
// ledger entry with the given marker.
func (s *Service) returnToPool(ctx context.Context, tx *gorm.DB, pkg *pooldomain.Package, marker pooldomain.AllocationStatus, now time.Time) error {
	bytes := pkg.BytesSent

	pkg.Status = pooldomain.PackageStatusAvailable
	pkg.AssignedBuyerID = nil
	pkg.AllocatedAt = nil
	if s.cfg.ResetBytesOnReclaim {
		pkg.BytesSent = 0
	}
	if err := s.repo.SavePackage(ctx, tx, pkg); err != nil {
		return err
	}
	return s.repo.UpdateOpenAllocation(ctx, tx, pkg.ID, marker, &bytes, &now)
}

func (s *Service) Provision(ctx context.Context, newPackages []pooldomain.NewPackage) ([]string, error) {
	if len(newPackages) == 0 {
		return nil, pooldomain.ErrInvalidPackage
	}

	now := s.clock.Now()
	packages := make([]*pooldomain.Package, 0, len(newPackages))
	uuids := make([]string, 0, len(newPackages))
	for _, np := range newPackages {
		if np.OwnerID == 0 || np.IP == "" || np.SizeBytes <= 0 {
			return nil, pooldomain.ErrInvalidPackage
		}
		id := uuid.NewString()
		packages = append(packages, &pooldomain.Package{
			ID:        s.genID.Generate(),
			UUID:      id,
			OwnerID:   np.OwnerID,
			IP:        np.IP,
			Region:    np.Region,
			SizeBytes: np.SizeBytes,
			Status:    pooldomain.PackageStatusAvailable,
			CreatedAt: now,
			UpdatedAt: now,
		})
		uuids = append(uuids, id)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.InsertPackages(ctx, tx, packages)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "provision_packages", "package", "", map[string]any{"count": len(packages)})
	s.log.Info("provisioned packages", zap.Int("count", len(packages)))
	return uuids, nil
}

func (s *Service) Revoke(ctx context.Context, packageUUID string) error {
	revokeCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWait)
	defer cancel()

	err := s.db.WithContext(revokeCtx).Transaction(func(tx *gorm.DB) error {
		pkg, err := s.repo.FindByUUIDForUpdate(revokeCtx, tx, packageUUID)
		if err != nil {
			return err
		}
		if pkg == nil {
			return pooldomain.ErrPackageNotFound
		}
		if !pooldomain.CanTransition(pkg.Status, pooldomain.PackageStatusRevoked) {
			return pooldomain.ErrIllegalTransition
		}

		now := s.clock.Now()
		hadLease := pkg.Status.Active()
		bytes := pkg.BytesSent
		pkg.Status = pooldomain.PackageStatusRevoked
		pkg.AssignedBuyerID = nil
		if err := s.repo.SavePackage(revokeCtx, tx, pkg); err != nil {
			return err
		}
		if hadLease {
			return s.repo.UpdateOpenAllocation(revokeCtx, tx, pkg.ID,
				pooldomain.AllocationStatusRevoked, &bytes, &now)
		}
		return nil
	})
	if err != nil {
		if pkgdb.IsLockContentionErr(err) {
			return pooldomain.ErrStoreBusy
		}
		return err
	}

	s.recordAudit(ctx, "revoke_package", "package", packageUUID, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, action, entityType, entityID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, action, entityType, entityID, nil, details); err != nil {
		s.log.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}
