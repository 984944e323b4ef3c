package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertDonation(ctx context.Context, db *gorm.DB, donation *Donation) error
	FindDonation(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Donation, error)

	InsertPaymentTransaction(ctx context.Context, db *gorm.DB, pt *PaymentTransaction) error
	FindPaymentTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentTransaction, error)
	LockPaymentTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentTransaction, error)
	FindByOrderCode(ctx context.Context, db *gorm.DB, orderCode int64) (*PaymentTransaction, error)
	LockByOrderCode(ctx context.Context, db *gorm.DB, orderCode int64) (*PaymentTransaction, error)
	FindByExternalRef(ctx context.Context, db *gorm.DB, gateway, ref string) (*PaymentTransaction, error)
	ListByDonation(ctx context.Context, db *gorm.DB, donationID snowflake.ID) ([]*PaymentTransaction, error)
	ListStalePending(ctx context.Context, db *gorm.DB, q StaleQuery) ([]*PaymentTransaction, error)
	UpdatePaymentTransaction(ctx context.Context, db *gorm.DB, pt *PaymentTransaction) error
}
