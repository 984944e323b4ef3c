package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/campaign/domain"
	pkgdb "github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const campaignColumns = `id, fundraiser_id, title, slug, status, target_amount, received_amount,
	donation_count, starts_at, ends_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, c *domain.Campaign) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO campaigns (`+campaignColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		c.FundraiserID,
		c.Title,
		c.Slug,
		c.Status,
		c.TargetAmount,
		c.ReceivedAmount,
		c.DonationCount,
		c.StartsAt,
		c.EndsAt,
		c.CreatedAt,
		c.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Campaign, error) {
	return r.find(ctx, db, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`, id)
}

func (r *repo) LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Campaign, error) {
	return r.find(ctx, db, `SELECT `+campaignColumns+` FROM campaigns WHERE id = ?`+pkgdb.ForUpdateSuffix(db), id)
}

func (r *repo) find(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.Campaign, error) {
	var campaign domain.Campaign
	err := db.WithContext(ctx).Raw(query, args...).Scan(&campaign).Error
	if err != nil {
		return nil, err
	}
	if campaign.ID == 0 {
		return nil, nil
	}
	return &campaign, nil
}

func (r *repo) AddReceived(ctx context.Context, db *gorm.DB, id snowflake.ID, amount decimal.Decimal, donations int64, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE campaigns
		 SET received_amount = received_amount + ?, donation_count = donation_count + ?, updated_at = ?
		 WHERE id = ?`,
		amount,
		donations,
		updatedAt,
		id,
	).Error
}
