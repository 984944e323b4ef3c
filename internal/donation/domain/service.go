package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	walletdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateDonationRequest struct {
	CampaignID string
	Amount     int64
	DonorID    string
	DonorName  string
	Anonymous  bool
}

// CheckoutPayload is what the donor needs to pay: the hosted checkout plus a transfer memo
// for manual bank transfers.
type CheckoutPayload struct {
	PaymentTransactionID snowflake.ID `json:"payment_transaction_id"`
	OrderCode            int64        `json:"order_code,string"`
	PaymentLinkID        string       `json:"payment_link_id"`
	CheckoutURL          string       `json:"checkout_url"`
	QRCode               string       `json:"qr_code"`
	Description          string       `json:"description"`
	Amount               int64        `json:"amount"`
	TransferMemo         string       `json:"transfer_memo,omitempty"`
}

type CreateDonationResult struct {
	DonationID snowflake.ID    `json:"donation_id"`
	Checkout   CheckoutPayload `json:"checkout"`
}

type DonationDetail struct {
	Donation     *Donation             `json:"donation"`
	Transactions []*PaymentTransaction `json:"payment_transactions"`
}

// SettledDonation describes money that arrived with a decodable reference but no prior
// payment request.
type SettledDonation struct {
	CampaignID snowflake.ID
	DonorID    *int64
	Amount     decimal.Decimal
	Gateway    string
	Reference  string
	Memo       string
	Counter    Counterparty
	Metadata   map[string]any
}

type Service interface {
	CreateDonation(ctx context.Context, req CreateDonationRequest) (*CreateDonationResult, error)
	GetDonation(ctx context.Context, id snowflake.ID) (*DonationDetail, error)
	GetPaymentStatus(ctx context.Context, orderCode int64) (*PaymentTransaction, error)

	// LockByOrderCode reads and row-locks the payment transaction inside tx.
	LockByOrderCode(ctx context.Context, tx *gorm.DB, orderCode int64) (*PaymentTransaction, error)
	// SettleTx marks pt SUCCESS with the received amount, credits the fundraiser wallet and
	// updates campaign totals. pt must be locked by tx.
	SettleTx(ctx context.Context, tx *gorm.DB, pt *PaymentTransaction, s Settlement) (*walletdomain.Transaction, error)
	// CreateSettledTx records a donation and its SUCCESS payment transaction in one step and
	// credits the fundraiser. A reference already recorded for the gateway yields the prior
	// transaction with ErrAlreadySettled.
	CreateSettledTx(ctx context.Context, tx *gorm.DB, in SettledDonation) (*PaymentTransaction, *walletdomain.Transaction, error)

	// ListStalePending returns one page of stale PENDING transactions. Pass the last row of a
	// page as q.After to continue past rows the caller chose to leave PENDING.
	ListStalePending(ctx context.Context, q StaleQuery) ([]*PaymentTransaction, error)
	MarkFailedTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, code, description string) (bool, error)

	OverrideFailed(ctx context.Context, id snowflake.ID, operator string) (*PaymentTransaction, error)
	Refund(ctx context.Context, id snowflake.ID, operator, reason string) (*PaymentTransaction, error)
}

var (
	ErrInvalidCampaign     = errors.New("invalid_campaign")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrAmountBelowMinimum  = errors.New("amount_below_minimum")
	ErrAmountAboveMaximum  = errors.New("amount_above_maximum")
	ErrPaymentLinkCreation = errors.New("payment_link_creation_failed")
	ErrDonationNotFound    = errors.New("donation_not_found")
	ErrPaymentNotFound     = errors.New("payment_transaction_not_found")
	ErrInvalidTransition   = errors.New("invalid_status_transition")
	ErrAlreadySettled      = errors.New("payment_already_settled")
)
