package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/sharenet/packetpool/internal/audit/domain"
	"github.com/sharenet/packetpool/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p ServiceParam) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) Record(ctx context.Context, action, entityType, entityID string, buyerID *snowflake.ID, details map[string]any) error {
	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		BuyerID:    buyerID,
		CreatedAt:  s.clock.Now(),
	}
	if details != nil {
		entry.Details = datatypes.JSONMap(details)
	}
	return s.db.WithContext(ctx).Create(&entry).Error
}
