package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, campaign *Campaign) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Campaign, error)
	LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Campaign, error)
	AddReceived(ctx context.Context, db *gorm.DB, id snowflake.ID, amount decimal.Decimal, donations int64, updatedAt time.Time) error
}
