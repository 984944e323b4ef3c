package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/archive"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/clock"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	donationdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/idempotency"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/notify"
	obsmetrics "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/observability/metrics"
	paymentdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/reference"
	walletdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/domain"
	walletservice "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/service"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	errOrderNotFound = errors.New("order_code_not_found")
	errNotPending    = errors.New("payment_not_pending")
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	Repo       paymentdomain.Repository
	Donations  donationdomain.Service
	Wallets    walletdomain.Service
	Guard      *idempotency.Guard
	Archiver   *archive.Archiver   `optional:"true"`
	Dispatcher *notify.Dispatcher  `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	systemOwner string
	repo        paymentdomain.Repository
	donations   donationdomain.Service
	wallets     walletdomain.Service
	guard       *idempotency.Guard
	archiver    *archive.Archiver
	dispatcher  *notify.Dispatcher
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Router {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.router"),
		genID:       p.GenID,
		clock:       p.Clock,
		systemOwner: p.Config.Wallet.SystemOwnerID,
		repo:        p.Repo,
		donations:   p.Donations,
		wallets:     p.Wallets,
		guard:       p.Guard,
		archiver:    p.Archiver,
		dispatcher:  p.Dispatcher,
		obsMetrics:  p.ObsMetrics,
	}
}

// HandleBankTransfer attributes an incoming bank transfer. Money that cannot be matched to a
// campaign lands in the system wallet. Attribution problems never surface as errors; only a
// failure to record the money at all does.
func (s *Service) HandleBankTransfer(ctx context.Context, event *paymentdomain.BankTransferEvent, payload []byte) (*paymentdomain.Result, error) {
	if event == nil {
		return nil, paymentdomain.ErrInvalidEvent
	}
	provider := event.Provider()
	eventID := event.EventID()
	amount := decimal.NewFromInt(event.TransferAmount)
	log := s.log.With(
		zap.String("provider", provider),
		zap.String("event_id", eventID),
		zap.String("reference_code", event.ReferenceCode),
	)

	if event.TransferType != paymentdomain.TransferIn || event.TransferAmount <= 0 {
		log.Info("bank transfer ignored",
			zap.String("transfer_type", event.TransferType),
			zap.Int64("amount", event.TransferAmount),
		)
		result := &paymentdomain.Result{Outcome: paymentdomain.OutcomeRejected, Detail: "outbound or non-positive transfer"}
		s.recordOutcome(ctx, provider, result)
		return result, nil
	}

	key := idempotency.Key(provider, eventID, event.ReferenceCode)
	return s.process(ctx, processInput{
		provider:  provider,
		eventID:   eventID,
		reference: event.ReferenceCode,
		amount:    amount,
		payload:   payload,
		key:       key,
	}, func(ctx context.Context) (*paymentdomain.Result, error) {
		return s.routeBankTransfer(ctx, event, amount, payload, log)
	})
}

func (s *Service) routeBankTransfer(ctx context.Context, event *paymentdomain.BankTransferEvent, amount decimal.Decimal, payload []byte, log *zap.Logger) (*paymentdomain.Result, error) {
	memo := event.Memo()
	provider := event.Provider()
	eventID := event.EventID()
	reason := "no order code or reference in memo"

	if orderCode, ok := reference.ExtractOrderCode(memo); ok {
		result, err := s.matchOrderCode(ctx, event, orderCode, amount)
		if err == nil {
			return result, nil
		}
		log.Warn("order code not attributable, routing to system wallet",
			zap.Int64("order_code", orderCode),
			zap.Error(err),
		)
		reason = "order code " + reference.FormatOrderCode(orderCode) + ": " + err.Error()
	} else if ref, ok := reference.Decode(memo); ok {
		result, err := s.creditReferenced(ctx, event, ref, amount)
		if err == nil {
			return result, nil
		}
		log.Warn("memo reference not attributable, routing to system wallet",
			zap.Int64("campaign_id", ref.CampaignID),
			zap.Error(err),
		)
		reason = "memo reference: " + err.Error()
	}

	return s.creditUnattributed(ctx, provider, eventID, amount, payload, reason)
}

// matchOrderCode returns an error only when the transfer must fall back to the system wallet.
func (s *Service) matchOrderCode(ctx context.Context, event *paymentdomain.BankTransferEvent, orderCode int64, amount decimal.Decimal) (*paymentdomain.Result, error) {
	var result *paymentdomain.Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pt, err := s.donations.LockByOrderCode(ctx, tx, orderCode)
		if err != nil {
			return err
		}
		if pt == nil {
			return errOrderNotFound
		}

		// The checkout gateway settles full and over payments through its own webhook.
		if amount.GreaterThanOrEqual(pt.Amount) {
			result = &paymentdomain.Result{
				Outcome:              paymentdomain.OutcomeIgnoredFullAmount,
				PaymentTransactionID: &pt.ID,
				Detail:               "full amount is settled by the checkout gateway",
			}
			return nil
		}
		if pt.Status != donationdomain.StatusPending {
			return errNotPending
		}

		entry, err := s.donations.SettleTx(ctx, tx, pt, donationdomain.Settlement{
			ReceivedAmount: amount,
			Gateway:        event.Provider(),
			Reference:      event.ReferenceCode,
			Description:    event.Memo(),
			Metadata:       bankMetadata(event),
		})
		if err != nil {
			return err
		}
		result = &paymentdomain.Result{
			Outcome:              paymentdomain.OutcomePartial,
			PaymentTransactionID: &pt.ID,
			WalletTransactionID:  &entry.ID,
			Detail:               "partial payment of " + pt.Amount.String(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Outcome == paymentdomain.OutcomePartial {
		s.log.Info("partial payment settled",
			zap.Int64("order_code", orderCode),
			zap.String("amount", amount.String()),
		)
		s.notifySucceeded(ctx, event.Provider(), orderCode, amount)
	}
	return result, nil
}

func (s *Service) creditReferenced(ctx context.Context, event *paymentdomain.BankTransferEvent, ref reference.Reference, amount decimal.Decimal) (*paymentdomain.Result, error) {
	var result *paymentdomain.Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pt, entry, err := s.donations.CreateSettledTx(ctx, tx, donationdomain.SettledDonation{
			CampaignID: snowflake.ID(ref.CampaignID),
			DonorID:    ref.DonorID,
			Amount:     amount,
			Gateway:    event.Provider(),
			Reference:  event.Provider() + ":" + event.EventID(),
			Memo:       event.Memo(),
			Metadata:   bankMetadata(event),
		})
		if errors.Is(err, donationdomain.ErrAlreadySettled) && pt != nil {
			result = &paymentdomain.Result{
				Outcome:              paymentdomain.OutcomeDuplicate,
				PaymentTransactionID: &pt.ID,
				Detail:               "reference already settled",
			}
			return nil
		}
		if err != nil {
			return err
		}
		result = &paymentdomain.Result{
			Outcome:              paymentdomain.OutcomeCredited,
			PaymentTransactionID: &pt.ID,
			WalletTransactionID:  &entry.ID,
			Detail:               "memo reference",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Outcome == paymentdomain.OutcomeCredited {
		s.notifySucceeded(ctx, event.Provider(), 0, amount)
	}
	return result, nil
}

// HandleCheckoutWebhook settles a PENDING transaction with the amount the checkout gateway
// confirmed. A missing signature is rejected by the adapter before this is reached.
func (s *Service) HandleCheckoutWebhook(ctx context.Context, event *paymentdomain.CheckoutEvent, payload []byte) (*paymentdomain.Result, error) {
	if event == nil {
		return nil, paymentdomain.ErrInvalidEvent
	}
	provider := event.Provider()
	if !event.Paid() || event.Amount <= 0 {
		s.log.Info("checkout webhook ignored",
			zap.Int64("order_code", event.OrderCode),
			zap.String("code", event.Code),
			zap.Bool("success", event.Success),
		)
		result := &paymentdomain.Result{Outcome: paymentdomain.OutcomeIgnored, Detail: "not a successful payment"}
		s.recordOutcome(ctx, provider, result)
		return result, nil
	}

	eventID := event.EventID()
	amount := decimal.NewFromInt(event.Amount)
	orderCode := event.OrderCode
	return s.process(ctx, processInput{
		provider:  provider,
		eventID:   eventID,
		reference: event.Reference,
		amount:    amount,
		orderCode: &orderCode,
		payload:   payload,
		key:       idempotency.Key(provider, reference.FormatOrderCode(orderCode), event.Reference),
	}, func(ctx context.Context) (*paymentdomain.Result, error) {
		result, err := s.settleCheckout(ctx, event, amount)
		if err == nil {
			return result, nil
		}
		s.log.Warn("checkout payment not attributable, routing to system wallet",
			zap.Int64("order_code", orderCode),
			zap.Error(err),
		)
		return s.creditUnattributed(ctx, provider, eventID, amount, payload,
			"order code "+reference.FormatOrderCode(orderCode)+": "+err.Error())
	})
}

func (s *Service) settleCheckout(ctx context.Context, event *paymentdomain.CheckoutEvent, amount decimal.Decimal) (*paymentdomain.Result, error) {
	var result *paymentdomain.Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pt, err := s.donations.LockByOrderCode(ctx, tx, event.OrderCode)
		if err != nil {
			return err
		}
		if pt == nil {
			return errOrderNotFound
		}
		switch pt.Status {
		case donationdomain.StatusSuccess, donationdomain.StatusRefunded:
			result = &paymentdomain.Result{
				Outcome:              paymentdomain.OutcomeDuplicate,
				PaymentTransactionID: &pt.ID,
				Detail:               "payment already " + strings.ToLower(string(pt.Status)),
			}
			return nil
		case donationdomain.StatusFailed:
			return errNotPending
		}

		entry, err := s.donations.SettleTx(ctx, tx, pt, donationdomain.Settlement{
			ReceivedAmount: amount,
			Gateway:        event.Provider(),
			Counterparty: donationdomain.Counterparty{
				AccountNumber: event.CounterAccountNumber,
				AccountName:   event.CounterAccountName,
				BankName:      event.CounterBankName,
			},
			Reference:   event.Reference,
			Description: event.Description,
			Metadata: map[string]any{
				"payment_link_id":       event.PaymentLinkID,
				"transaction_date_time": event.TransactionDateTime,
				"reference":             event.Reference,
			},
		})
		if err != nil {
			return err
		}
		result = &paymentdomain.Result{
			Outcome:              paymentdomain.OutcomeCredited,
			PaymentTransactionID: &pt.ID,
			WalletTransactionID:  &entry.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Outcome == paymentdomain.OutcomeCredited {
		s.notifySucceeded(ctx, event.Provider(), event.OrderCode, amount)
	}
	return result, nil
}

// creditUnattributed books money no campaign could claim into the system wallet, with the raw
// notification kept for manual reconciliation.
func (s *Service) creditUnattributed(ctx context.Context, provider, eventID string, amount decimal.Decimal, payload []byte, reason string) (*paymentdomain.Result, error) {
	metadata := map[string]any{
		walletservice.MetadataExternalRef: provider + ":" + eventID,
		"reason":                          reason,
	}
	if json.Valid(payload) {
		metadata["payload"] = json.RawMessage(payload)
	}

	entry, err := s.wallets.Credit(ctx, walletdomain.CreditRequest{
		OwnerID:     s.systemOwner,
		Kind:        walletdomain.WalletKindAdmin,
		Amount:      amount,
		Type:        walletdomain.TransactionTypeIncomingTransfer,
		Gateway:     provider,
		Description: "unattributed transfer",
		Metadata:    metadata,
	})
	if errors.Is(err, walletdomain.ErrWalletNotFound) {
		s.log.Warn("system wallet missing, unattributed transfer left for manual reconciliation",
			zap.String("provider", provider),
			zap.String("event_id", eventID),
			zap.String("amount", amount.String()),
			zap.String("system_owner", s.systemOwner),
		)
		return &paymentdomain.Result{Outcome: paymentdomain.OutcomeUnattributed, Detail: "system wallet missing; " + reason}, nil
	}
	if err != nil {
		return nil, err
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordUnattributedTransfer(ctx, provider)
	}
	s.dispatcher.Dispatch(ctx, notify.Event{
		Type:  notify.EventUnattributedTransfer,
		Title: "Unattributed transfer received",
		Fields: map[string]string{
			"provider": provider,
			"event_id": eventID,
			"amount":   amount.String(),
			"reason":   reason,
		},
	})
	s.log.Warn("transfer credited to system wallet",
		zap.String("provider", provider),
		zap.String("event_id", eventID),
		zap.String("amount", amount.String()),
		zap.String("reason", reason),
	)
	return &paymentdomain.Result{
		Outcome:             paymentdomain.OutcomeUnattributed,
		WalletTransactionID: &entry.ID,
		Detail:              reason,
	}, nil
}

type processInput struct {
	provider  string
	eventID   string
	reference string
	amount    decimal.Decimal
	orderCode *int64
	payload   []byte
	key       string
}

// process runs route once per notification. The cache guard answers first; the event log
// catches redeliveries the cache missed.
func (s *Service) process(ctx context.Context, in processInput, route func(ctx context.Context) (*paymentdomain.Result, error)) (*paymentdomain.Result, error) {
	if s.guard != nil && s.guard.CheckAndMark(ctx, in.key) {
		return s.duplicate(ctx, in, "idempotency key already marked"), nil
	}

	event, fresh, err := s.openEvent(ctx, in)
	if err != nil {
		s.release(ctx, in.key)
		return nil, err
	}
	if !fresh {
		return s.duplicate(ctx, in, "event already logged"), nil
	}

	result, err := route(ctx)
	if err != nil {
		s.release(ctx, in.key)
		s.closeEvent(ctx, event, &paymentdomain.Result{Outcome: paymentdomain.OutcomeFailed, Detail: err.Error()}, false)
		s.recordOutcome(ctx, in.provider, &paymentdomain.Result{Outcome: paymentdomain.OutcomeFailed})
		s.log.Error("webhook processing failed",
			zap.String("provider", in.provider),
			zap.String("event_id", in.eventID),
			zap.Error(err),
		)
		return nil, err
	}

	s.closeEvent(ctx, event, result, true)
	s.recordOutcome(ctx, in.provider, result)
	s.archiver.StoreAsync(ctx, in.provider, in.eventID, event.ReceivedAt, in.payload)
	return result, nil
}

// openEvent logs the notification. A logged event is reprocessed only if its last attempt failed.
func (s *Service) openEvent(ctx context.Context, in processInput) (*paymentdomain.WebhookEvent, bool, error) {
	payload := datatypes.JSON(in.payload)
	if !json.Valid(in.payload) {
		payload = datatypes.JSON("{}")
	}
	event := &paymentdomain.WebhookEvent{
		ID:              s.genID.Generate(),
		Provider:        in.provider,
		ProviderEventID: in.eventID,
		ReferenceCode:   in.reference,
		Outcome:         paymentdomain.OutcomeProcessing,
		Amount:          in.amount,
		OrderCode:       in.orderCode,
		Payload:         payload,
		ReceivedAt:      s.clock.Now(),
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, event)
	if err != nil {
		return nil, false, err
	}
	if inserted {
		return event, true, nil
	}

	existing, err := s.repo.FindEvent(ctx, s.db, in.provider, in.eventID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil || existing.Outcome != paymentdomain.OutcomeFailed {
		return existing, false, nil
	}
	if err := s.repo.MarkOutcome(ctx, s.db, existing.ID, paymentdomain.Result{Outcome: paymentdomain.OutcomeProcessing}, nil); err != nil {
		return nil, false, err
	}
	return existing, true, nil
}

func (s *Service) closeEvent(ctx context.Context, event *paymentdomain.WebhookEvent, result *paymentdomain.Result, processed bool) {
	var processedAt *time.Time
	if processed {
		now := s.clock.Now()
		processedAt = &now
	}
	if err := s.repo.MarkOutcome(ctx, s.db, event.ID, *result, processedAt); err != nil {
		s.log.Warn("failed to record webhook outcome",
			zap.String("webhook_event_id", event.ID.String()),
			zap.String("outcome", string(result.Outcome)),
			zap.Error(err),
		)
	}
}

func (s *Service) duplicate(ctx context.Context, in processInput, detail string) *paymentdomain.Result {
	s.log.Info("duplicate webhook delivery ignored",
		zap.String("provider", in.provider),
		zap.String("event_id", in.eventID),
		zap.String("detail", detail),
	)
	if s.obsMetrics != nil {
		s.obsMetrics.RecordDuplicateDelivery(ctx, in.provider)
	}
	result := &paymentdomain.Result{Outcome: paymentdomain.OutcomeDuplicate, Detail: detail}
	s.recordOutcome(ctx, in.provider, result)
	return result
}

func (s *Service) release(ctx context.Context, key string) {
	if s.guard != nil {
		s.guard.Release(ctx, key)
	}
}

func (s *Service) recordOutcome(ctx context.Context, provider string, result *paymentdomain.Result) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordWebhookEvent(ctx, provider, string(result.Outcome))
	}
}

func (s *Service) notifySucceeded(ctx context.Context, provider string, orderCode int64, amount decimal.Decimal) {
	fields := map[string]string{
		"provider": provider,
		"amount":   amount.String(),
	}
	if orderCode > 0 {
		fields["order_code"] = reference.FormatOrderCode(orderCode)
	}
	s.dispatcher.Dispatch(ctx, notify.Event{
		Type:   notify.EventDonationSucceeded,
		Title:  "Donation received",
		Fields: fields,
	})
}

func (s *Service) ListEvents(ctx context.Context, filter paymentdomain.EventFilter) ([]*paymentdomain.WebhookEvent, error) {
	return s.repo.ListEvents(ctx, s.db, filter)
}

func bankMetadata(event *paymentdomain.BankTransferEvent) map[string]any {
	metadata := map[string]any{
		"bank":              event.Gateway,
		"receiving_account": event.AccountNumber,
		"reference_code":    event.ReferenceCode,
		"transaction_date":  event.TransactionDate,
		"sepay_id":          strconv.FormatInt(event.ID, 10),
	}
	if event.SubAccount != nil {
		metadata["sub_account"] = *event.SubAccount
	}
	return metadata
}
