package domain

import (
	"context"
	"errors"
	"time"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db/pagination"
)

// Entry describes an action to record. Secrets are masked before they are stored.
type Entry struct {
	ActorType  ActorType
	ActorID    string
	ActorRole  string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
	Secrets    map[string]any
	IPAddress  string
	UserAgent  string
}

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	ActorID    string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidAction    = errors.New("invalid_action")
)
