package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/domain"
	pkgdb "github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db"
	"gorm.io/gorm"
)

const donationColumns = `id, campaign_id, donor_id, donor_name, amount, is_anonymous, created_at`

const paymentColumns = `id, donation_id, gateway, order_code, payment_link_id, checkout_url, qr_code,
	description, amount, received_amount, status, external_ref, counter_account_number,
	counter_account_name, counter_bank_name, error_code, error_description, paid_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertDonation(ctx context.Context, db *gorm.DB, d *domain.Donation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO donations (`+donationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.CampaignID,
		d.DonorID,
		d.DonorName,
		d.Amount,
		d.IsAnonymous,
		d.CreatedAt,
	).Error
}

func (r *repo) FindDonation(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Donation, error) {
	var donation domain.Donation
	err := db.WithContext(ctx).Raw(
		`SELECT `+donationColumns+` FROM donations WHERE id = ?`,
		id,
	).Scan(&donation).Error
	if err != nil {
		return nil, err
	}
	if donation.ID == 0 {
		return nil, nil
	}
	return &donation, nil
}

func (r *repo) InsertPaymentTransaction(ctx context.Context, db *gorm.DB, pt *domain.PaymentTransaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_transactions (`+paymentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pt.ID,
		pt.DonationID,
		pt.Gateway,
		pt.OrderCode,
		pt.PaymentLinkID,
		pt.CheckoutURL,
		pt.QRCode,
		pt.Description,
		pt.Amount,
		pt.ReceivedAmount,
		pt.Status,
		pt.ExternalRef,
		pt.CounterAccountNumber,
		pt.CounterAccountName,
		pt.CounterBankName,
		pt.ErrorCode,
		pt.ErrorDescription,
		pt.PaidAt,
		pt.CreatedAt,
		pt.UpdatedAt,
	).Error
}

func (r *repo) FindPaymentTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PaymentTransaction, error) {
	return r.findPayment(ctx, db, `SELECT `+paymentColumns+` FROM payment_transactions WHERE id = ?`, id)
}

func (r *repo) LockPaymentTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PaymentTransaction, error) {
	return r.findPayment(ctx, db, `SELECT `+paymentColumns+` FROM payment_transactions WHERE id = ?`+pkgdb.ForUpdateSuffix(db), id)
}

func (r *repo) FindByOrderCode(ctx context.Context, db *gorm.DB, orderCode int64) (*domain.PaymentTransaction, error) {
	return r.findPayment(ctx, db,
		`SELECT `+paymentColumns+` FROM payment_transactions WHERE order_code = ? ORDER BY created_at ASC LIMIT 1`,
		orderCode,
	)
}

func (r *repo) LockByOrderCode(ctx context.Context, db *gorm.DB, orderCode int64) (*domain.PaymentTransaction, error) {
	return r.findPayment(ctx, db,
		`SELECT `+paymentColumns+` FROM payment_transactions WHERE order_code = ? ORDER BY created_at ASC LIMIT 1`+pkgdb.ForUpdateSuffix(db),
		orderCode,
	)
}

func (r *repo) FindByExternalRef(ctx context.Context, db *gorm.DB, gateway, ref string) (*domain.PaymentTransaction, error) {
	return r.findPayment(ctx, db,
		`SELECT `+paymentColumns+` FROM payment_transactions WHERE gateway = ? AND external_ref = ? LIMIT 1`,
		gateway,
		ref,
	)
}

func (r *repo) findPayment(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.PaymentTransaction, error) {
	var pt domain.PaymentTransaction
	err := db.WithContext(ctx).Raw(query, args...).Scan(&pt).Error
	if err != nil {
		return nil, err
	}
	if pt.ID == 0 {
		return nil, nil
	}
	return &pt, nil
}

func (r *repo) ListByDonation(ctx context.Context, db *gorm.DB, donationID snowflake.ID) ([]*domain.PaymentTransaction, error) {
	var items []*domain.PaymentTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT `+paymentColumns+` FROM payment_transactions WHERE donation_id = ? ORDER BY created_at ASC, id ASC`,
		donationID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListStalePending(ctx context.Context, db *gorm.DB, q domain.StaleQuery) ([]*domain.PaymentTransaction, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_transactions
		 WHERE status = ? AND gateway = ? AND created_at < ?`
	args := []any{domain.StatusPending, q.Gateway, q.Before}
	if q.After != nil {
		query += ` AND (created_at > ? OR (created_at = ? AND id > ?))`
		args = append(args, q.After.CreatedAt, q.After.CreatedAt, q.After.ID)
	}
	query += ` ORDER BY created_at ASC, id ASC LIMIT ?`
	args = append(args, q.Limit)

	var items []*domain.PaymentTransaction
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpdatePaymentTransaction(ctx context.Context, db *gorm.DB, pt *domain.PaymentTransaction) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_transactions
		 SET status = ?, received_amount = ?, external_ref = ?, counter_account_number = ?,
		     counter_account_name = ?, counter_bank_name = ?, error_code = ?, error_description = ?,
		     paid_at = ?, updated_at = ?
		 WHERE id = ?`,
		pt.Status,
		pt.ReceivedAmount,
		pt.ExternalRef,
		pt.CounterAccountNumber,
		pt.CounterAccountName,
		pt.CounterBankName,
		pt.ErrorCode,
		pt.ErrorDescription,
		pt.PaidAt,
		pt.UpdatedAt,
		pt.ID,
	).Error
}
