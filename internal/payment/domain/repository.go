package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertEvent reports false when (provider, provider_event_id) is already logged.
	InsertEvent(ctx context.Context, db *gorm.DB, event *WebhookEvent) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*WebhookEvent, error)
	MarkOutcome(ctx context.Context, db *gorm.DB, id snowflake.ID, result Result, processedAt *time.Time) error
	ListEvents(ctx context.Context, db *gorm.DB, filter EventFilter) ([]*WebhookEvent, error)
}

type EventFilter struct {
	Provider string
	Outcome  Outcome
	Limit    int
}
