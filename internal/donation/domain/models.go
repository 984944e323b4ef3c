package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// AnonymousDonor is stored as the donor id when the donor is not signed in.
const AnonymousDonor = "anonymous"

type Donation struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	CampaignID  snowflake.ID    `gorm:"not null;index" json:"campaign_id"`
	DonorID     string          `gorm:"type:varchar(64);not null" json:"donor_id"`
	DonorName   *string         `gorm:"type:varchar(255)" json:"donor_name,omitempty"`
	Amount      decimal.Decimal `gorm:"type:numeric(20,0);not null" json:"amount"`
	IsAnonymous bool            `gorm:"not null;default:false" json:"is_anonymous"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

func (Donation) TableName() string { return "donations" }

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusSuccess  Status = "SUCCESS"
	StatusFailed   Status = "FAILED"
	StatusRefunded Status = "REFUNDED"
)

// ErrorCodeExpired marks a link closed by the stale-link reaper.
const ErrorCodeExpired = "EXPIRED"

// PaymentTransaction is one settlement attempt against a donation.
type PaymentTransaction struct {
	ID                   snowflake.ID    `gorm:"primaryKey" json:"id"`
	DonationID           snowflake.ID    `gorm:"not null;index" json:"donation_id"`
	Gateway              string          `gorm:"type:varchar(32);not null;uniqueIndex:ux_payment_tx_gateway_order,priority:1" json:"gateway"`
	OrderCode            int64           `gorm:"not null;uniqueIndex:ux_payment_tx_gateway_order,priority:2;index" json:"order_code,string"`
	PaymentLinkID        string          `gorm:"type:varchar(64)" json:"payment_link_id,omitempty"`
	CheckoutURL          string          `json:"checkout_url,omitempty"`
	QRCode               string          `json:"qr_code,omitempty"`
	Description          string          `gorm:"type:varchar(64)" json:"description,omitempty"`
	Amount               decimal.Decimal `gorm:"type:numeric(20,0);not null" json:"amount"`
	ReceivedAmount       decimal.Decimal `gorm:"type:numeric(20,0);not null;default:0" json:"received_amount"`
	Status               Status          `gorm:"type:varchar(16);not null;index:ix_payment_tx_status_created,priority:1" json:"status"`
	ExternalRef          *string         `gorm:"type:varchar(128)" json:"external_ref,omitempty"`
	CounterAccountNumber string          `gorm:"type:varchar(64)" json:"counter_account_number,omitempty"`
	CounterAccountName   string          `gorm:"type:varchar(255)" json:"counter_account_name,omitempty"`
	CounterBankName      string          `gorm:"type:varchar(255)" json:"counter_bank_name,omitempty"`
	ErrorCode            string          `gorm:"type:varchar(32)" json:"error_code,omitempty"`
	ErrorDescription     string          `json:"error_description,omitempty"`
	PaidAt               *time.Time      `json:"paid_at,omitempty"`
	CreatedAt            time.Time       `gorm:"not null;index:ix_payment_tx_status_created,priority:2" json:"created_at"`
	UpdatedAt            time.Time       `gorm:"not null" json:"updated_at"`
}

func (PaymentTransaction) TableName() string { return "payment_transactions" }

// CanTransition encodes the payment state machine. FAILED to SUCCESS is an operator override.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusSuccess || to == StatusFailed
	case StatusFailed:
		return to == StatusSuccess
	case StatusSuccess:
		return to == StatusRefunded
	default:
		return false
	}
}

// Counterparty is the payer's bank data, set only on success.
type Counterparty struct {
	AccountNumber string
	AccountName   string
	BankName      string
}

// Settlement is a confirmed receipt of money for a payment transaction.
type Settlement struct {
	ReceivedAmount decimal.Decimal
	Gateway        string
	Counterparty   Counterparty
	Reference      string
	Description    string
	Metadata       map[string]any
	// AllowFailed lets an operator settle a FAILED transaction.
	AllowFailed bool
}

// StaleQuery pages PENDING transactions created before Before, oldest first.
type StaleQuery struct {
	Gateway string
	Before  time.Time
	After   *StaleCursor
	Limit   int
}

// StaleCursor is the last row of the previous page.
type StaleCursor struct {
	CreatedAt time.Time
	ID        snowflake.ID
}
