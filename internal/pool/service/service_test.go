package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/sharenet/packetpool/internal/clock"
	"github.com/sharenet/packetpool/internal/config"
	pooldomain "github.com/sharenet/packetpool/internal/pool/domain"
	poolrepository "github.com/sharenet/packetpool/internal/pool/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testDBSeq int

// newTestDB opens an isolated in-memory database with the FOR UPDATE
// clauses stripped, which sqlite does not support.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testDBSeq++
	dsn := fmt.Sprintf("file:pooltest%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	stripForUpdate := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", stripForUpdate))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripForUpdate))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&pooldomain.Package{}, &pooldomain.PackageAllocation{}))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, fake *clock.FakeClock, mutate func(*config.PoolConfig)) pooldomain.Service {
	t.Helper()

	cfg := config.Config{
		Pool: config.PoolConfig{
			MaxClaimBatch:       10,
			AllocationTTL:       time.Minute,
			ReclaimInterval:     30 * time.Second,
			LockWait:            2 * time.Second,
			ResetBytesOnReclaim: true,
		},
	}
	if mutate != nil {
		mutate(&cfg.Pool)
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParam{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Clock:  fake,
		Repo:   poolrepository.New(),
		Config: cfg,
	})
}

func provisionPackages(t *testing.T, svc pooldomain.Service, packages ...pooldomain.NewPackage) []string {
	t.Helper()
	uuids, err := svc.Provision(context.Background(), packages)
	require.NoError(t, err)
	require.Len(t, uuids, len(packages))
	return uuids
}

func fetchPackage(t *testing.T, db *gorm.DB, uuid string) pooldomain.Package {
	t.Helper()
	var pkg pooldomain.Package
	require.NoError(t, db.Where("uuid = ?", uuid).First(&pkg).Error)
	return pkg
}

func fetchAllocations(t *testing.T, db *gorm.DB, packageID snowflake.ID) []pooldomain.PackageAllocation {
	t.Helper()
	var allocations []pooldomain.PackageAllocation
	require.NoError(t, db.Where("package_id = ?", packageID).Order("allocated_at ASC").Find(&allocations).Error)
	return allocations
}
