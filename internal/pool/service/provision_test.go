package service

import (
	"context"
	"testing"
	"time"

	"github.com/sharenet/packetpool/internal/clock"
	pooldomain "github.com/sharenet/packetpool/internal/pool/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvision_ValidatesInput(t *testing.T) {
	db := newTestDB(t)
	fake := clock.NewFakeClock(time.Now())
	svc := newTestService(t, db, fake, nil)

	cases := []struct {
		name string
		pkgs []pooldomain.NewPackage
	}{
		{"empty batch", nil},
		{"missing owner", []pooldomain.NewPackage{{IP: "10.0.0.1", SizeBytes: 100}}},
		{"missing ip", []pooldomain.NewPackage{{OwnerID: ownerOne, SizeBytes: 100}}},
		{"zero size", []pooldomain.NewPackage{{OwnerID: ownerOne, IP: "10.0.0.1"}}},
		{"negative size", []pooldomain.NewPackage{{OwnerID: ownerOne, IP: "10.0.0.1", SizeBytes: -1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Provision(context.Background(), tc.pkgs)
			assert.ErrorIs(t, err, pooldomain.ErrInvalidPackage)
		})
	}
}

func TestProvision_CreatesAvailablePackages(t *testing.T) {
	db := newTestDB(t)
	fake := clock.NewFakeClock(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, fake, nil)

	uuids := provisionPackages(t, svc,
		pooldomain.NewPackage{OwnerID: ownerOne, IP: "10.0.0.1", Region: "eu", SizeBytes: 500},
		pooldomain.NewPackage{OwnerID: ownerTwo, IP: "10.0.0.2", SizeBytes: 900},
	)
	require.Len(t, uuids, 2)
	assert.NotEqual(t, uuids[0], uuids[1])

	pkg := fetchPackage(t, db, uuids[0])
	assert.Equal(t, pooldomain.PackageStatusAvailable, pkg.Status)
	assert.Equal(t, ownerOne, pkg.OwnerID)
	assert.Equal(t, "eu", pkg.Region)
	assert.Equal(t, int64(500), pkg.SizeBytes)
	assert.Nil(t, pkg.AssignedBuyerID)
	assert.True(t, pkg.CreatedAt.Equal(fake.Now()))
}

func TestRevoke_AvailablePackage(t *testing.T) {
	db := newTestDB(t)
	fake := clock.NewFakeClock(time.Now())
	svc := newTestService(t, db, fake, nil)

	uuids := provisionPackages(t, svc, pooldomain.NewPackage{OwnerID: ownerOne, IP: "10.0.0.1", SizeBytes: 100})
	require.NoError(t, svc.Revoke(context.Background(), uuids[0]))

	pkg := fetchPackage(t, db, uuids[0])
	assert.Equal(t, pooldomain.PackageStatusRevoked, pkg.Status)
	assert.Empty(t, fetchAllocations(t, db, pkg.ID))
}

func TestRevoke_ActiveLeaseClosesLedger(t *testing.T) {
	db := newTestDB(t)
	fake := clock.NewFakeClock(time.Now())
	svc := newTestService(t, db, fake, nil)

	provisionPackages(t, svc, pooldomain.NewPackage{OwnerID: ownerOne, IP: "10.0.0.1", SizeBytes: 100})
	cp := claimOne(t, svc)

	require.NoError(t, svc.Revoke(context.Background(), cp.UUID))

	pkg := fetchPackage(t, db, cp.UUID)
	assert.Equal(t, pooldomain.PackageStatusRevoked, pkg.Status)
	assert.Nil(t, pkg.AssignedBuyerID)

	allocations := fetchAllocations(t, db, pkg.ID)
	require.Len(t, allocations, 1)
	assert.Equal(t, pooldomain.AllocationStatusRevoked, allocations[0].Status)
	require.NotNil(t, allocations[0].CompletedAt)
}

func TestRevoke_TerminalOrUnknownPackage(t *testing.T) {
	db := newTestDB(t)
	fake := clock.NewFakeClock(time.Now())
	svc := newTestService(t, db, fake, nil)

	assert.ErrorIs(t, svc.Revoke(context.Background(), "no-such-package"), pooldomain.ErrPackageNotFound)

	provisionPackages(t, svc, pooldomain.NewPackage{OwnerID: ownerOne, IP: "10.0.0.1", SizeBytes: 100})
	cp := claimOne(t, svc)
	require.NoError(t, svc.ReportStatus(context.Background(), pooldomain.ReportStatusRequest{
		BuyerID: buyerOne, UUID: cp.UUID, Status: pooldomain.PackageStatusInProgress,
	}))
	require.NoError(t, svc.ReportStatus(context.Background(), pooldomain.ReportStatusRequest{
		BuyerID: buyerOne, UUID: cp.UUID, Status: pooldomain.PackageStatusCompleted,
	}))

	assert.ErrorIs(t, svc.Revoke(context.Background(), cp.UUID), pooldomain.ErrIllegalTransition)
}
