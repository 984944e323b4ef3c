package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Campaign is the read model of a fundraising campaign. Only the received totals are written
// from this service.
type Campaign struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	FundraiserID   snowflake.ID    `gorm:"not null;index" json:"fundraiser_id"`
	Title          string          `gorm:"type:varchar(255);not null" json:"title"`
	Slug           string          `gorm:"type:varchar(255)" json:"slug"`
	Status         Status          `gorm:"type:varchar(16);not null" json:"status"`
	TargetAmount   decimal.Decimal `gorm:"type:numeric(20,0);not null;default:0" json:"target_amount"`
	ReceivedAmount decimal.Decimal `gorm:"type:numeric(20,0);not null;default:0" json:"received_amount"`
	DonationCount  int64           `gorm:"not null;default:0" json:"donation_count"`
	StartsAt       *time.Time      `json:"starts_at,omitempty"`
	EndsAt         *time.Time      `json:"ends_at,omitempty"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

func (Campaign) TableName() string { return "campaigns" }

// FundraiserWalletOwner is the owner id of the FUNDRAISER wallet that receives this campaign's money.
func (c *Campaign) FundraiserWalletOwner() string {
	if c == nil || c.FundraiserID == 0 {
		return ""
	}
	return c.FundraiserID.String()
}

// AcceptingDonations reports why the campaign cannot take a donation at now, or nil.
func (c *Campaign) AcceptingDonations(now time.Time) error {
	if c.Status != StatusActive {
		return ErrCampaignInactive
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return ErrCampaignNotStarted
	}
	if c.EndsAt != nil && !now.Before(*c.EndsAt) {
		return ErrCampaignEnded
	}
	return nil
}
