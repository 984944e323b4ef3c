package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service interface {
	GetCampaign(ctx context.Context, id snowflake.ID) (*Campaign, error)
	// GetCampaignTx reads the campaign through tx without locking it.
	GetCampaignTx(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Campaign, error)
	ResolveFundraiser(ctx context.Context, tx *gorm.DB, id snowflake.ID) (string, error)
	// IncrementReceived adds a settled amount to the campaign totals. Callers hold the
	// payment transaction and wallet locks first.
	IncrementReceived(ctx context.Context, tx *gorm.DB, id snowflake.ID, amount decimal.Decimal) error
	// DecrementReceived reverses a refunded amount.
	DecrementReceived(ctx context.Context, tx *gorm.DB, id snowflake.ID, amount decimal.Decimal) error
}

var (
	ErrCampaignNotFound     = errors.New("campaign_not_found")
	ErrCampaignInactive     = errors.New("campaign_inactive")
	ErrCampaignNotStarted   = errors.New("campaign_not_started")
	ErrCampaignEnded        = errors.New("campaign_ended")
	ErrFundraiserUnresolved = errors.New("fundraiser_unresolved")
	ErrInvalidAmount        = errors.New("invalid_amount")
)
