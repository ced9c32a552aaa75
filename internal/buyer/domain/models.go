// Package domain contains the buyer registry models.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Buyer is a consumer entity that claims packages through the API. The
// active flag gates claiming; inactive buyers keep their history.
type Buyer struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	Contact   string       `gorm:"type:text"`
	Region    string       `gorm:"type:text"`
	APIKey    string       `gorm:"type:text;not null;uniqueIndex"`
	IsActive  bool         `gorm:"not null;default:true"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Buyer) TableName() string { return "buyers" }

type CreateBuyerRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Region  string `json:"region"`
}

type BuyerResponse struct {
	ID        snowflake.ID `json:"id"`
	Name      string       `json:"name"`
	Contact   string       `json:"contact"`
	Region    string       `json:"region"`
	APIKey    string       `json:"api_key,omitempty"`
	IsActive  bool         `json:"is_active"`
	CreatedAt time.Time    `json:"created_at"`
}

type Service interface {
	Create(ctx context.Context, req CreateBuyerRequest) (*BuyerResponse, error)
	List(ctx context.Context) ([]BuyerResponse, error)
	SetActive(ctx context.Context, id snowflake.ID, active bool) error
	// FindByAPIKey resolves the buyer behind an API key; inactive buyers
	// fail with ErrBuyerInactive.
	FindByAPIKey(ctx context.Context, key string) (*Buyer, error)
}

var (
	ErrInvalidName   = errors.New("invalid_buyer_name")
	ErrBuyerNotFound = errors.New("buyer_not_found")
	ErrBuyerInactive = errors.New("buyer_inactive")
	ErrInvalidAPIKey = errors.New("invalid_api_key")
)
