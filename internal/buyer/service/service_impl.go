package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/sharenet/packetpool/internal/audit/domain"
	buyerdomain "github.com/sharenet/packetpool/internal/buyer/domain"
	"github.com/sharenet/packetpool/internal/clock"
	"github.com/sharenet/packetpool/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	store repository.Repository[buyerdomain.Buyer]
	audit auditdomain.Service
}

func NewService(p ServiceParam) buyerdomain.Service {
	return &Service{
		log:   p.Log.Named("buyer.service"),
		genID: p.GenID,
		clock: p.Clock,
		store: repository.ProvideStore[buyerdomain.Buyer](p.DB),
		audit: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req buyerdomain.CreateBuyerRequest) (*buyerdomain.BuyerResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, buyerdomain.ErrInvalidName
	}

	key, err := generateAPIKey()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	buyer := &buyerdomain.Buyer{
		ID:        s.genID.Generate(),
		Name:      name,
		Contact:   strings.TrimSpace(req.Contact),
		Region:    strings.TrimSpace(req.Region),
		APIKey:    key,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, buyer); err != nil {
		return nil, err
	}

	if s.audit != nil {
		buyerID := buyer.ID
		if err := s.audit.Record(ctx, "create_buyer", "buyer", buyer.ID.String(), &buyerID, nil); err != nil {
			s.log.Warn("audit record failed", zap.Error(err))
		}
	}

	s.log.Info("buyer created", zap.Int64("buyer_id", int64(buyer.ID)), zap.String("name", buyer.Name))

	// The API key is returned only on creation.
	return &buyerdomain.BuyerResponse{
		ID:        buyer.ID,
		Name:      buyer.Name,
		Contact:   buyer.Contact,
		Region:    buyer.Region,
		APIKey:    buyer.APIKey,
		IsActive:  buyer.IsActive,
		CreatedAt: buyer.CreatedAt,
	}, nil
}

func (s *Service) List(ctx context.Context) ([]buyerdomain.BuyerResponse, error) {
	buyers, err := s.store.Find(ctx, &buyerdomain.Buyer{})
	if err != nil {
		return nil, err
	}
	responses := make([]buyerdomain.BuyerResponse, 0, len(buyers))
	for _, b := range buyers {
		responses = append(responses, buyerdomain.BuyerResponse{
			ID:        b.ID,
			Name:      b.Name,
			Contact:   b.Contact,
			Region:    b.Region,
			IsActive:  b.IsActive,
			CreatedAt: b.CreatedAt,
		})
	}
	return responses, nil
}

func (s *Service) SetActive(ctx context.Context, id snowflake.ID, active bool) error {
	existing, err := s.store.FindOne(ctx, &buyerdomain.Buyer{ID: id})
	if err != nil {
		return err
	}
	if existing == nil {
		return buyerdomain.ErrBuyerNotFound
	}
	return s.store.Update(ctx, int64(id), map[string]any{
		"is_active":  active,
		"updated_at": s.clock.Now(),
	})
}

func (s *Service) FindByAPIKey(ctx context.Context, key string) (*buyerdomain.Buyer, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, buyerdomain.ErrInvalidAPIKey
	}
	buyer, err := s.store.FindOne(ctx, &buyerdomain.Buyer{APIKey: key})
	if err != nil {
		return nil, err
	}
	if buyer == nil {
		return nil, buyerdomain.ErrBuyerNotFound
	}
	if !buyer.IsActive {
		return nil, buyerdomain.ErrBuyerInactive
	}
	return buyer, nil
}

func generateAPIKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
