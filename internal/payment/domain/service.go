package domain

import (
	"context"
	"errors"
	"net/http"
)

// Adapter verifies and parses one gateway's webhook bodies.
type Adapter interface {
	Provider() string
	Parse(ctx context.Context, payload []byte, headers http.Header) (Notification, error)
}

// Router applies verified notifications to payments and wallets.
type Router interface {
	HandleBankTransfer(ctx context.Context, event *BankTransferEvent, payload []byte) (*Result, error)
	HandleCheckoutWebhook(ctx context.Context, event *CheckoutEvent, payload []byte) (*Result, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]*WebhookEvent, error)
}

// Service is the webhook ingestion entry point.
type Service interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (*Result, error)
}

var (
	ErrProviderNotFound = errors.New("payment_provider_not_found")
	ErrInvalidProvider  = errors.New("invalid_payment_provider")
	ErrInvalidPayload   = errors.New("invalid_webhook_payload")
	ErrInvalidEvent     = errors.New("invalid_webhook_event")
	ErrUnauthorized     = errors.New("webhook_unauthorized")
	ErrMissingSignature = errors.New("missing_webhook_signature")
	ErrInvalidSignature = errors.New("invalid_webhook_signature")
)
