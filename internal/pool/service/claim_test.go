package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sharenet/packetpool/internal/clock"
	"github.com/sharenet/packetpool/internal/config"
	pooldomain "github.com/sharenet/packetpool/internal/pool/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	buyerOne = snowflake.ID(9001)
	buyerTwo = snowflake.ID(9002)
	ownerOne = snowflake.ID(101)
	ownerTwo = snowflake.ID(102)
)

func TestClaim_AllocatesAndWritesLedger(t *testing.T) {
	db := newTestDB(t)
	fake := clock.NewFakeClock(time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, fake, nil)

	uuids := provisionPackages(t, svc,
		pooldomain.NewPackage{OwnerID: ownerOne, IP: "10.0.0.1", SizeBytes: 1 << 30},
		pooldomain.NewPackage{OwnerID: ownerTwo, IP: "10.0.0.2", SizeBytes: 1 << 30},
		pooldomain.NewPackage{OwnerID: ownerTwo, IP: "10.0.0.3", SizeBytes: 1 << 30},
	)

	claimed, err := svc.Claim(context.Background(), pooldomain.ClaimRequest{BuyerID: buyerOne, MaxCount: 2})
	require.NoError(t, err)
	require.Len(t, claimed, 2)

	for _, cp := range claimed {
		pkg := fetchPackage(t, db, cp.UUID)
		assert.Equal(t, pooldomain.PackageStatusAllocated, pkg.Status)
		require.NotNil(t, pkg.AssignedBuyerID)
		assert.Equal(t, buyerOne, *pkg.AssignedBuyerID)
		require.NotNil(t, pkg.AllocatedAt)
		assert.True(t, pkg.AllocatedAt.Equal(fake.Now()))

		allocations := fetchAllocations(t, db, pkg.ID)
		require.Len(t, allocations, 1)
		assert.Equal(t, pooldomain.AllocationStatusAllocated, allocations[0].Status)
		assert.Nil(t, allocations[0].CompletedAt)
	}

	// The third package is untouched.
	remaining := 0
	for _, u := range uuids {
		if fetchPackage(t, db, u).Status == pooldomain.PackageStatusAvailable {
			remaining++
		}
	}
	assert.Equal(t, 1, remaining)
}

func TestClaim_MaxCountValidation(t *testing.T) {
	db := newTestDB(t)
	fake := clock.NewFakeClock(time.Now())
	svc := newTestService(t, db, fake, func(cfg *config.PoolConfig) {
		cfg.MaxClaimBatch = 5
	})

	_, err := svc.Claim(context.Background(), pooldomain.ClaimRequest{BuyerID: buyerOne, MaxCount: 6})
	assert.ErrorIs(t, err, pooldomain.ErrInvalidMaxCount)

	_, err = svc.Claim(context.Background(), pooldomain.ClaimRequest{BuyerID: buyerOne, MaxCount: 0})
	assert.ErrorIs(t, err, pooldomain.ErrInvalidMaxCount)
}

func TestClaim_EmptyPoolIsSuccess(t *testing.T) {
	db := newTestDB(t)
	fake := clock.NewFakeClock(time.Now())
	svc := newTestService(t, db, fake, nil)

	claimed, err := svc.Claim(context.Background(), pooldomain.ClaimRequest{BuyerID: buyerOne, MaxCount: 3})
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestClaim_RegionFilter(t *testing.T) {
	db := newTestDB(t)
	fake := clock.NewFakeClock(time.Now())
	svc := newTestService(t, db, fake, nil)

	provisionPackages(t, svc,
		pooldomain.NewPackage{OwnerID: ownerOne, IP: "10.0.0.1", Region: "eu", SizeBytes: 100},
		pooldomain.NewPackage{OwnerID: ownerTwo, IP: "10.0.0.2", Region: "us", SizeBytes: 100},
	)

	claimed, err := svc.Claim(context.Background(), pooldomain.ClaimRequest{BuyerID: buyerOne, MaxCount: 5, Region: "us"})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "us", claimed[0].Region)
	assert.Equal(t, "10.0.0.2", claimed[0].IP)
}

func TestClaim_SkipsDuplicateSourceForBuyer(t *testing.T) {
	db := newTestDB(t)
	fake := clock.NewFakeClock(time.Now())
	svc := newTestService(t, db, fake, nil)

	// Two packages over the same supplier/address pair.
	provisionPackages(t, svc,
		pooldomain.NewPackage{OwnerID: ownerOne, IP: "10.0.0.1", SizeBytes: 100},
		pooldomain.NewPackage{OwnerID: ownerOne, IP: "10.0.0.1", SizeBytes: 100},
	)

	claimed, err := svc.Claim(context.Background(), pooldomain.ClaimRequest{BuyerID: buyerOne, MaxCount: 5})
	require.NoError(t, err)
	require.Len(t, claimed, 1, "same-batch duplicate source must be claimed once")

	// The buyer still holds the active lease, so a follow-up claim skips
	// the remaining duplicate and leaves it for other buyers.
	claimed, err = svc.Claim(context.Background(), pooldomain.ClaimRequest{BuyerID: buyerOne, MaxCount: 5})
	require.NoError(t, err)
	assert.Empty(t, claimed)

	claimed, err = svc.Claim(context.Background(), pooldomain.ClaimRequest{BuyerID: buyerTwo, MaxCount: 5})
	require.NoError(t, err)
	assert.Len(t, claimed, 1, "other buyers are not bound by the first buyer's sources")
}

func TestClaim_DuplicateSourceClaimableAfterTerminal(t *testing.T) {
	db := newTestDB(t)
	fake := clock.NewFakeClock(time.Now())
	svc := newTestService(t, db, fake, nil)

	uuids := provisionPackages(t, svc,
		pooldomain.NewPackage{OwnerID: ownerOne, IP: "10.0.0.1", SizeBytes: 100},
		pooldomain.NewPackage{OwnerID: ownerOne, IP: "10.0.0.1", SizeBytes: 100},
	)

	claimed, err := svc.Claim(context.Background(), pooldomain.ClaimRequest{BuyerID: buyerOne, MaxCount: 1})
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, svc.ReportStatus(context.Background(), pooldomain.ReportStatusRequest{
		BuyerID: buyerOne, UUID: claimed[0].UUID, Status: pooldomain.PackageStatusInProgress,
	}))
	require.NoError(t, svc.ReportStatus(context.Background(), pooldomain.ReportStatusRequest{
		BuyerID: buyerOne, UUID: claimed[0].UUID, Status: pooldomain.PackageStatusCompleted,
	}))

	// Once the first lease is terminal the pair is no longer active.
	claimed, err = svc.Claim(context.Background(), pooldomain.ClaimRequest{BuyerID: buyerOne, MaxCount: 5})
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.NotEqual(t, uuids[0], uuids[1])
}

func TestClaim_DisjointAcrossBuyers(t *testing.T) {
	db := newTestDB(t)
	fake := clock.NewFakeClock(time.Now())
	svc := newTestService(t, db, fake, nil)

	provisionPackages(t, svc,
		pooldomain.NewPackage{OwnerID: ownerOne, IP: "10.0.0.1", SizeBytes: 100},
		pooldomain.NewPackage{OwnerID: ownerOne, IP: "10.0.0.2", SizeBytes: 100},
		pooldomain.NewPackage{OwnerID: ownerTwo, IP: "10.0.0.3", SizeBytes: 100},
	)

	firstSet, err := svc.Claim(context.Background(), pooldomain.ClaimRequest{BuyerID: buyerOne, MaxCount: 2})
	require.NoError(t, err)
	secondSet, err := svc.Claim(context.Background(), pooldomain.ClaimRequest{BuyerID: buyerTwo, MaxCount: 2})
	require.NoError(t, err)

	assert.LessOrEqual(t, len(firstSet)+len(secondSet), 3)
	seen := map[string]bool{}
	for _, cp := range firstSet {
		seen[cp.UUID] = true
	}
	for _, cp := range secondSet {
		assert.False(t, seen[cp.UUID], "package %s claimed twice", cp.UUID)
	}
}
