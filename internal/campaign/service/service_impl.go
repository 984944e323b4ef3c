package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/campaign/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/clock"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	clock clock.Clock
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("campaign.service"),
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) GetCampaign(ctx context.Context, id snowflake.ID) (*domain.Campaign, error) {
	return s.GetCampaignTx(ctx, s.db, id)
}

func (s *Service) GetCampaignTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Campaign, error) {
	if id == 0 {
		return nil, domain.ErrCampaignNotFound
	}
	campaign, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, domain.ErrCampaignNotFound
	}
	return campaign, nil
}

func (s *Service) ResolveFundraiser(ctx context.Context, tx *gorm.DB, id snowflake.ID) (string, error) {
	campaign, err := s.GetCampaignTx(ctx, tx, id)
	if err != nil {
		return "", err
	}
	owner := campaign.FundraiserWalletOwner()
	if owner == "" {
		return "", domain.ErrFundraiserUnresolved
	}
	return owner, nil
}

func (s *Service) IncrementReceived(ctx context.Context, tx *gorm.DB, id snowflake.ID, amount decimal.Decimal) error {
	return s.adjust(ctx, tx, id, amount, 1)
}

func (s *Service) DecrementReceived(ctx context.Context, tx *gorm.DB, id snowflake.ID, amount decimal.Decimal) error {
	return s.adjust(ctx, tx, id, amount.Neg(), -1)
}

func (s *Service) adjust(ctx context.Context, tx *gorm.DB, id snowflake.ID, amount decimal.Decimal, donations int64) error {
	if amount.IsZero() {
		return domain.ErrInvalidAmount
	}
	campaign, err := s.repo.LockByID(ctx, tx, id)
	if err != nil {
		return err
	}
	if campaign == nil {
		return domain.ErrCampaignNotFound
	}
	if err := s.repo.AddReceived(ctx, tx, id, amount, donations, s.clock.Now()); err != nil {
		return err
	}

	s.log.Debug("campaign totals updated",
		zap.String("campaign_id", id.String()),
		zap.String("delta", amount.String()),
	)
	return nil
}
