package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog is an append-only trail of administrative actions.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	Action     string            `gorm:"type:text;not null;index:idx_audit_action_created"`
	EntityType string            `gorm:"type:text"`
	EntityID   string            `gorm:"type:text"`
	BuyerID    *snowflake.ID     `gorm:"index"`
	Details    datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt  time.Time         `gorm:"not null;index:idx_audit_action_created"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

type Service interface {
	Record(ctx context.Context, action, entityType, entityID string, buyerID *snowflake.ID, details map[string]any) error
}
