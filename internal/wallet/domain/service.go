package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreditRequest describes money entering a wallet. When PaymentTransactionID is set the credit
// is applied at most once per wallet for that payment transaction; otherwise ExternalRef, or an
// external transfer id found in Metadata, plays the same role.
type CreditRequest struct {
	OwnerID              string
	Kind                 WalletKind
	Amount               decimal.Decimal
	Type                 TransactionType
	CampaignID           *snowflake.ID
	PaymentTransactionID *snowflake.ID
	ExternalRef          string
	Gateway              string
	Description          string
	Metadata             map[string]any
}

// DebitRequest describes money leaving a wallet. Amount is positive.
type DebitRequest struct {
	OwnerID              string
	Kind                 WalletKind
	Amount               decimal.Decimal
	Type                 TransactionType
	CampaignID           *snowflake.ID
	PaymentTransactionID *snowflake.ID
	ExternalRef          string
	Gateway              string
	Description          string
	Metadata             map[string]any
}

type ListTransactionsRequest struct {
	OwnerID    string
	Kind       WalletKind
	Type       TransactionType
	CampaignID string
	pagination.Pagination
}

type ListTransactionsResponse struct {
	pagination.PageInfo
	Transactions []*Transaction `json:"transactions"`
}

type Service interface {
	GetWallet(ctx context.Context, ownerID string, kind WalletKind) (*Wallet, error)
	GetWalletByID(ctx context.Context, id snowflake.ID) (*Wallet, error)
	CreateWallet(ctx context.Context, ownerID string, kind WalletKind) (*Wallet, error)

	Credit(ctx context.Context, req CreditRequest) (*Transaction, error)
	// CreditTx applies a credit inside the caller's transaction.
	CreditTx(ctx context.Context, tx *gorm.DB, req CreditRequest) (*Transaction, error)
	Debit(ctx context.Context, req DebitRequest) (*Transaction, error)
	DebitTx(ctx context.Context, tx *gorm.DB, req DebitRequest) (*Transaction, error)

	GetBalance(ctx context.Context, ownerID string, kind WalletKind) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, req ListTransactionsRequest) (*ListTransactionsResponse, error)
	GetStats(ctx context.Context, ownerID string, kind WalletKind) (*Stats, error)
}

var (
	ErrWalletNotFound      = errors.New("wallet_not_found")
	ErrWalletExists        = errors.New("wallet_already_exists")
	ErrInvalidOwner        = errors.New("invalid_owner")
	ErrInvalidKind         = errors.New("invalid_wallet_kind")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidType         = errors.New("invalid_transaction_type")
	ErrInvalidCampaign     = errors.New("invalid_campaign")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
)
