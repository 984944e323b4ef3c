package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type WalletKind string

const (
	WalletKindFundraiser WalletKind = "FUNDRAISER"
	WalletKindAdmin      WalletKind = "ADMIN"
)

func (k WalletKind) Valid() bool {
	return k == WalletKindFundraiser || k == WalletKindAdmin
}

type TransactionType string

const (
	TransactionTypeDonationReceived TransactionType = "DONATION_RECEIVED"
	TransactionTypeIncomingTransfer TransactionType = "INCOMING_TRANSFER"
	TransactionTypeWithdrawal       TransactionType = "WITHDRAWAL"
	TransactionTypeAdminAdjustment  TransactionType = "ADMIN_ADJUSTMENT"
)

// Wallet holds the running balance for one (owner, kind) pair.
type Wallet struct {
	ID        snowflake.ID    `gorm:"primaryKey" json:"id"`
	OwnerID   string          `gorm:"type:varchar(64);not null;uniqueIndex:ux_wallets_owner_kind,priority:1" json:"owner_id"`
	Kind      WalletKind      `gorm:"type:varchar(16);not null;uniqueIndex:ux_wallets_owner_kind,priority:2" json:"kind"`
	Balance   decimal.Decimal `gorm:"type:numeric(20,0);not null;default:0" json:"balance"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time       `gorm:"not null" json:"updated_at"`
}

func (Wallet) TableName() string { return "wallets" }

// Transaction is an immutable ledger entry. Amount is signed: credits are positive and debits
// negative, so BalanceAfter always equals BalanceBefore plus Amount.
type Transaction struct {
	ID                   snowflake.ID    `gorm:"primaryKey" json:"id"`
	WalletID             snowflake.ID    `gorm:"not null;index:ix_wallet_tx_wallet_created,priority:1;uniqueIndex:ux_wallet_tx_payment,priority:1;uniqueIndex:ux_wallet_tx_external,priority:1" json:"wallet_id"`
	CampaignID           *snowflake.ID   `gorm:"index" json:"campaign_id,omitempty"`
	PaymentTransactionID *snowflake.ID   `gorm:"uniqueIndex:ux_wallet_tx_payment,priority:2" json:"payment_transaction_id,omitempty"`
	ExternalRef          *string         `gorm:"type:varchar(128);uniqueIndex:ux_wallet_tx_external,priority:2" json:"external_ref,omitempty"`
	Type                 TransactionType `gorm:"type:varchar(32);not null" json:"type"`
	Amount               decimal.Decimal `gorm:"type:numeric(20,0);not null" json:"amount"`
	BalanceBefore        decimal.Decimal `gorm:"type:numeric(20,0);not null" json:"balance_before"`
	BalanceAfter         decimal.Decimal `gorm:"type:numeric(20,0);not null" json:"balance_after"`
	Gateway              string          `gorm:"type:varchar(32)" json:"gateway,omitempty"`
	Description          string          `json:"description,omitempty"`
	Metadata             datatypes.JSON  `json:"metadata,omitempty"`
	CreatedAt            time.Time       `gorm:"not null;index:ix_wallet_tx_wallet_created,priority:2" json:"created_at"`
}

func (Transaction) TableName() string { return "wallet_transactions" }

// Stats aggregates a wallet's ledger.
type Stats struct {
	WalletID         snowflake.ID    `json:"wallet_id"`
	Balance          decimal.Decimal `json:"balance"`
	TotalCredited    decimal.Decimal `json:"total_credited"`
	TotalDebited     decimal.Decimal `json:"total_debited"`
	EntryCount       int64           `json:"entry_count"`
	DonationCount    int64           `json:"donation_count"`
	UnattributedSum  decimal.Decimal `json:"unattributed_total"`
	LastEntryAt      *time.Time      `json:"last_entry_at,omitempty"`
	LedgerConsistent bool            `json:"ledger_consistent"`
}
