package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	InsertWallet(ctx context.Context, db *gorm.DB, wallet *Wallet) error
	FindWallet(ctx context.Context, db *gorm.DB, ownerID string, kind WalletKind) (*Wallet, error)
	FindWalletByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Wallet, error)
	LockWallet(ctx context.Context, db *gorm.DB, ownerID string, kind WalletKind) (*Wallet, error)
	UpdateBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, balance decimal.Decimal, updatedAt time.Time) error

	InsertTransaction(ctx context.Context, db *gorm.DB, entry *Transaction) error
	FindByPaymentTransaction(ctx context.Context, db *gorm.DB, walletID, paymentTransactionID snowflake.ID) (*Transaction, error)
	FindByExternalRef(ctx context.Context, db *gorm.DB, walletID snowflake.ID, externalRef string) (*Transaction, error)
	ListTransactions(ctx context.Context, db *gorm.DB, walletID snowflake.ID, filter TransactionFilter, cursor *pagination.Cursor, limit int) ([]*Transaction, error)
	Aggregate(ctx context.Context, db *gorm.DB, walletID snowflake.ID) (*Stats, error)
}

type TransactionFilter struct {
	Type       TransactionType
	CampaignID *snowflake.ID
}
