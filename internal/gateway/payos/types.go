package payos

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Provider is the gateway identifier stored on payment and wallet transactions.
const Provider = "payos"

type LinkStatus string

const (
	LinkStatusPending    LinkStatus = "PENDING"
	LinkStatusProcessing LinkStatus = "PROCESSING"
	LinkStatusPaid       LinkStatus = "PAID"
	LinkStatusCancelled  LinkStatus = "CANCELLED"
	LinkStatusExpired    LinkStatus = "EXPIRED"
	LinkStatusUnderpaid  LinkStatus = "UNDERPAID"
)

// Open reports whether the link can still be paid.
func (s LinkStatus) Open() bool {
	return s == LinkStatusPending || s == LinkStatusProcessing
}

type Item struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type CreateLinkRequest struct {
	OrderCode   int64
	Amount      int64
	Description string
	Items       []Item
	BuyerName   string
	ReturnURL   string
	CancelURL   string
	ExpiredAt   *time.Time
}

type PaymentLink struct {
	PaymentLinkID string     `json:"paymentLinkId"`
	OrderCode     int64      `json:"orderCode"`
	Amount        int64      `json:"amount"`
	Description   string     `json:"description"`
	CheckoutURL   string     `json:"checkoutUrl"`
	QRCode        string     `json:"qrCode"`
	Status        LinkStatus `json:"status"`
}

type LinkInfo struct {
	ID                 string     `json:"id"`
	OrderCode          int64      `json:"orderCode"`
	Amount             int64      `json:"amount"`
	AmountPaid         int64      `json:"amountPaid"`
	AmountRemaining    int64      `json:"amountRemaining"`
	Status             LinkStatus `json:"status"`
	CreatedAt          string     `json:"createdAt"`
	CanceledAt         *string    `json:"canceledAt"`
	CancellationReason *string    `json:"cancellationReason"`
}

// WebhookData is the verified "data" object of a checkout webhook.
type WebhookData struct {
	OrderCode              int64  `json:"orderCode"`
	Amount                 int64  `json:"amount"`
	Description            string `json:"description"`
	AccountNumber          string `json:"accountNumber"`
	Reference              string `json:"reference"`
	TransactionDateTime    string `json:"transactionDateTime"`
	Currency               string `json:"currency"`
	PaymentLinkID          string `json:"paymentLinkId"`
	Code                   string `json:"code"`
	Desc                   string `json:"desc"`
	CounterAccountBankID   string `json:"counterAccountBankId"`
	CounterAccountBankName string `json:"counterAccountBankName"`
	CounterAccountName     string `json:"counterAccountName"`
	CounterAccountNumber   string `json:"counterAccountNumber"`
	VirtualAccountName     string `json:"virtualAccountName"`
	VirtualAccountNumber   string `json:"virtualAccountNumber"`
}

// Gateway is the synchronous checkout-link gateway.
type Gateway interface {
	CreatePaymentLink(ctx context.Context, req CreateLinkRequest) (*PaymentLink, error)
	GetPaymentLink(ctx context.Context, orderCode int64) (*LinkInfo, error)
	CancelPaymentLink(ctx context.Context, orderCode int64, reason string) (*LinkInfo, error)
	VerifyWebhook(body []byte) (*Webhook, error)
}

var (
	ErrMissingCredentials = errors.New("payos_missing_credentials")
	ErrMissingSignature   = errors.New("payos_missing_signature")
	ErrInvalidSignature   = errors.New("payos_invalid_signature")
	ErrInvalidPayload     = errors.New("payos_invalid_payload")
	ErrInvalidRequest     = errors.New("payos_invalid_request")
	ErrDuplicateOrder     = errors.New("payos_duplicate_order")
)

// Error is a non-success answer from the gateway, or a transport failure talking to it.
type Error struct {
	StatusCode int
	Code       string
	Desc       string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payos: %v", e.Err)
	}
	return fmt.Sprintf("payos: status=%d code=%s desc=%s", e.StatusCode, e.Code, e.Desc)
}

func (e *Error) Unwrap() error { return e.Err }

// GatewayFailure marks the error as the gateway's fault for metrics classification.
func (e *Error) GatewayFailure() bool { return true }

// Temporary reports whether a retry may succeed.
func (e *Error) Temporary() bool {
	if e.Err != nil {
		return true
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}
