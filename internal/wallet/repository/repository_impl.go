package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/domain"
	pkgdb "github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const walletColumns = `id, owner_id, kind, balance, created_at, updated_at`

const transactionColumns = `id, wallet_id, campaign_id, payment_transaction_id, external_ref, type,
	amount, balance_before, balance_after, gateway, description, metadata, created_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertWallet(ctx context.Context, db *gorm.DB, wallet *domain.Wallet) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO wallets (`+walletColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		wallet.ID,
		wallet.OwnerID,
		wallet.Kind,
		wallet.Balance,
		wallet.CreatedAt,
		wallet.UpdatedAt,
	).Error
}

func (r *repo) FindWallet(ctx context.Context, db *gorm.DB, ownerID string, kind domain.WalletKind) (*domain.Wallet, error) {
	return r.findWallet(ctx, db,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_id = ? AND kind = ?`,
		ownerID, kind,
	)
}

func (r *repo) FindWalletByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Wallet, error) {
	return r.findWallet(ctx, db, `SELECT `+walletColumns+` FROM wallets WHERE id = ?`, id)
}

func (r *repo) LockWallet(ctx context.Context, db *gorm.DB, ownerID string, kind domain.WalletKind) (*domain.Wallet, error) {
	return r.findWallet(ctx, db,
		`SELECT `+walletColumns+` FROM wallets WHERE owner_id = ? AND kind = ?`+pkgdb.ForUpdateSuffix(db),
		ownerID, kind,
	)
}

func (r *repo) findWallet(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := db.WithContext(ctx).Raw(query, args...).Scan(&wallet).Error
	if err != nil {
		return nil, err
	}
	if wallet.ID == 0 {
		return nil, nil
	}
	return &wallet, nil
}

func (r *repo) UpdateBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, balance decimal.Decimal, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE wallets SET balance = ?, updated_at = ? WHERE id = ?`,
		balance,
		updatedAt,
		id,
	).Error
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, entry *domain.Transaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO wallet_transactions (`+transactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.WalletID,
		entry.CampaignID,
		entry.PaymentTransactionID,
		entry.ExternalRef,
		entry.Type,
		entry.Amount,
		entry.BalanceBefore,
		entry.BalanceAfter,
		entry.Gateway,
		entry.Description,
		entry.Metadata,
		entry.CreatedAt,
	).Error
}

func (r *repo) FindByPaymentTransaction(ctx context.Context, db *gorm.DB, walletID, paymentTransactionID snowflake.ID) (*domain.Transaction, error) {
	return r.findTransaction(ctx, db,
		`SELECT `+transactionColumns+` FROM wallet_transactions
		 WHERE wallet_id = ? AND payment_transaction_id = ?`,
		walletID, paymentTransactionID,
	)
}

func (r *repo) FindByExternalRef(ctx context.Context, db *gorm.DB, walletID snowflake.ID, externalRef string) (*domain.Transaction, error) {
	return r.findTransaction(ctx, db,
		`SELECT `+transactionColumns+` FROM wallet_transactions
		 WHERE wallet_id = ? AND external_ref = ?`,
		walletID, externalRef,
	)
}

func (r *repo) findTransaction(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Transaction, error) {
	var entry domain.Transaction
	err := db.WithContext(ctx).Raw(query, args...).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, walletID snowflake.ID, filter domain.TransactionFilter, cursor *pagination.Cursor, limit int) ([]*domain.Transaction, error) {
	var entries []*domain.Transaction
	stmt := db.WithContext(ctx).
		Model(&domain.Transaction{}).
		Where("wallet_id = ?", walletID)
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.CampaignID != nil {
		stmt = stmt.Where("campaign_id = ?", *filter.CampaignID)
	}
	if cursor != nil {
		cursorID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("(created_at < ? OR (created_at = ? AND id < ?))",
			cursor.CreatedAt, cursor.CreatedAt, cursorID)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Limit(limit + 1).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

type aggregateRow struct {
	Balance         decimal.Decimal
	TotalCredited   decimal.Decimal
	TotalDebited    decimal.Decimal
	EntryCount      int64
	DonationCount   int64
	UnattributedSum decimal.Decimal
	LedgerSum       decimal.Decimal
}

func (r *repo) Aggregate(ctx context.Context, db *gorm.DB, walletID snowflake.ID) (*domain.Stats, error) {
	var row aggregateRow
	err := db.WithContext(ctx).Raw(
		`SELECT
			w.balance AS balance,
			COALESCE(SUM(CASE WHEN t.amount > 0 THEN t.amount ELSE 0 END), 0) AS total_credited,
			COALESCE(SUM(CASE WHEN t.amount < 0 THEN -t.amount ELSE 0 END), 0) AS total_debited,
			COUNT(t.id) AS entry_count,
			COALESCE(SUM(CASE WHEN t.type = ? THEN 1 ELSE 0 END), 0) AS donation_count,
			COALESCE(SUM(CASE WHEN t.type = ? THEN t.amount ELSE 0 END), 0) AS unattributed_sum,
			COALESCE(SUM(t.amount), 0) AS ledger_sum
		 FROM wallets w
		 LEFT JOIN wallet_transactions t ON t.wallet_id = w.id
		 WHERE w.id = ?
		 GROUP BY w.id, w.balance`,
		domain.TransactionTypeDonationReceived,
		domain.TransactionTypeIncomingTransfer,
		walletID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}

	var last struct{ CreatedAt time.Time }
	if err := db.WithContext(ctx).Raw(
		`SELECT created_at FROM wallet_transactions WHERE wallet_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		walletID,
	).Scan(&last).Error; err != nil {
		return nil, err
	}

	stats := &domain.Stats{
		WalletID:         walletID,
		Balance:          row.Balance,
		TotalCredited:    row.TotalCredited,
		TotalDebited:     row.TotalDebited,
		EntryCount:       row.EntryCount,
		DonationCount:    row.DonationCount,
		UnattributedSum:  row.UnattributedSum,
		LedgerConsistent: row.LedgerSum.Equal(row.Balance),
	}
	if !last.CreatedAt.IsZero() {
		at := last.CreatedAt
		stats.LastEntryAt = &at
	}
	return stats, nil
}
