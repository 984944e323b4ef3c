package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	ProviderSepay = "sepay"
	ProviderPayOS = "payos"
)

const (
	TransferIn  = "in"
	TransferOut = "out"
)

type Outcome string

const (
	OutcomeProcessing        Outcome = "processing"
	OutcomeCredited          Outcome = "credited"
	OutcomePartial           Outcome = "partial"
	OutcomeIgnoredFullAmount Outcome = "ignored_full_amount"
	OutcomeUnattributed      Outcome = "unattributed"
	OutcomeDuplicate         Outcome = "duplicate"
	OutcomeIgnored           Outcome = "ignored"
	OutcomeRejected          Outcome = "rejected"
	OutcomeFailed            Outcome = "failed"
)

// WebhookEvent is the durable log of one inbound gateway notification.
type WebhookEvent struct {
	ID                   snowflake.ID    `json:"id" gorm:"primaryKey"`
	Provider             string          `json:"provider" gorm:"type:varchar(32);not null;uniqueIndex:ux_webhook_events_provider_event,priority:1"`
	ProviderEventID      string          `json:"provider_event_id" gorm:"type:varchar(128);not null;uniqueIndex:ux_webhook_events_provider_event,priority:2"`
	ReferenceCode        string          `json:"reference_code" gorm:"type:varchar(128)"`
	Outcome              Outcome         `json:"outcome" gorm:"type:varchar(32);not null;index"`
	Amount               decimal.Decimal `json:"amount" gorm:"type:numeric(20,0);not null;default:0"`
	OrderCode            *int64          `json:"order_code,omitempty,string"`
	PaymentTransactionID *snowflake.ID   `json:"payment_transaction_id,omitempty"`
	WalletTransactionID  *snowflake.ID   `json:"wallet_transaction_id,omitempty"`
	Detail               string          `json:"detail,omitempty"`
	Payload              datatypes.JSON  `json:"payload" gorm:"not null"`
	ReceivedAt           time.Time       `json:"received_at" gorm:"not null"`
	ProcessedAt          *time.Time      `json:"processed_at"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

// Notification is a verified, gateway-specific webhook body. Each gateway has its own variant.
type Notification interface {
	Provider() string
	EventID() string
}

// BankTransferEvent is the bank-transfer gateway's notification of money moving on the
// receiving account.
type BankTransferEvent struct {
	ID              int64   `json:"id"`
	Gateway         string  `json:"gateway"`
	TransactionDate string  `json:"transactionDate"`
	AccountNumber   string  `json:"accountNumber"`
	Code            *string `json:"code"`
	Content         string  `json:"content"`
	TransferType    string  `json:"transferType"`
	TransferAmount  int64   `json:"transferAmount"`
	Accumulated     int64   `json:"accumulated"`
	SubAccount      *string `json:"subAccount"`
	ReferenceCode   string  `json:"referenceCode"`
	Description     string  `json:"description"`
}

func (e *BankTransferEvent) Provider() string { return ProviderSepay }

func (e *BankTransferEvent) EventID() string { return formatInt(e.ID) }

// Memo is the free text the payer typed, falling back to the bank's full description.
func (e *BankTransferEvent) Memo() string {
	if e.Content != "" {
		return e.Content
	}
	return e.Description
}

// CheckoutEvent is a signature-verified checkout gateway notification.
type CheckoutEvent struct {
	Code                 string
	Desc                 string
	Success              bool
	OrderCode            int64
	Amount               int64
	Description          string
	Reference            string
	TransactionDateTime  string
	PaymentLinkID        string
	AccountNumber        string
	CounterAccountNumber string
	CounterAccountName   string
	CounterBankName      string
}

func (e *CheckoutEvent) Provider() string { return ProviderPayOS }

func (e *CheckoutEvent) EventID() string {
	if e.Reference != "" {
		return formatInt(e.OrderCode) + ":" + e.Reference
	}
	return formatInt(e.OrderCode)
}

// Paid reports whether the gateway says the order was paid.
func (e *CheckoutEvent) Paid() bool {
	return e.Success && e.Code == "00"
}

// Result is what the router did with a notification.
type Result struct {
	Outcome              Outcome
	PaymentTransactionID *snowflake.ID
	WalletTransactionID  *snowflake.ID
	Detail               string
}
