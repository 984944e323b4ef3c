package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	campaigndomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/campaign/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/clock"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/gateway/payos"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/notify"
	obsmetrics "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/observability/metrics"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/reference"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/saga"
	walletdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const createDonationSaga = "create_donation"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Clock      clock.Clock
	Campaigns  campaigndomain.Service
	Wallets    walletdomain.Service
	Gateway    payos.Gateway
	Policy     *config.DonationPolicyHolder
	Dispatcher *notify.Dispatcher  `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	clock      clock.Clock
	campaigns  campaigndomain.Service
	wallets    walletdomain.Service
	gateway    payos.Gateway
	policy     *config.DonationPolicyHolder
	dispatcher *notify.Dispatcher
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("donation.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      p.Clock,
		campaigns:  p.Campaigns,
		wallets:    p.Wallets,
		gateway:    p.Gateway,
		policy:     p.Policy,
		dispatcher: p.Dispatcher,
		obsMetrics: p.ObsMetrics,
	}
}

type createState struct {
	donation    *domain.Donation
	campaign    *campaigndomain.Campaign
	orderCode   int64
	description string
	link        *payos.PaymentLink
	payment     *domain.PaymentTransaction
}

func (s *Service) CreateDonation(ctx context.Context, req domain.CreateDonationRequest) (*domain.CreateDonationResult, error) {
	campaignID, err := snowflake.ParseString(strings.TrimSpace(req.CampaignID))
	if err != nil || campaignID == 0 {
		return nil, domain.ErrInvalidCampaign
	}
	if err := s.validateAmount(req.Amount); err != nil {
		return nil, err
	}

	campaign, err := s.campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := campaign.AcceptingDonations(now); err != nil {
		return nil, err
	}

	donorID := strings.TrimSpace(req.DonorID)
	anonymous := req.Anonymous || donorID == "" || donorID == domain.AnonymousDonor
	if donorID == "" {
		donorID = domain.AnonymousDonor
	}

	donation := &domain.Donation{
		ID:          s.genID.Generate(),
		CampaignID:  campaign.ID,
		DonorID:     donorID,
		Amount:      decimal.NewFromInt(req.Amount),
		IsAnonymous: anonymous,
		CreatedAt:   now,
	}
	if name := strings.TrimSpace(req.DonorName); name != "" && !anonymous {
		donation.DonorName = &name
	}
	if err := s.repo.InsertDonation(ctx, s.db, donation); err != nil {
		return nil, err
	}

	state := &createState{
		donation:    donation,
		campaign:    campaign,
		orderCode:   reference.NewOrderCode(now),
		description: "",
	}
	state.description = buildDescription(s.policy.Get().DescriptionPrefix, state.orderCode)

	flow := saga.New(createDonationSaga, s.log, s.onCompensationFailed,
		saga.Step[createState]{
			Name:       "create_payment_link",
			Execute:    s.createPaymentLink,
			Compensate: s.cancelPaymentLink,
		},
		saga.Step[createState]{
			Name:    "persist_payment_transaction",
			Execute: s.persistPending,
		},
	)
	if err := flow.Execute(ctx, state); err != nil {
		return nil, err
	}

	checkout := domain.CheckoutPayload{
		PaymentTransactionID: state.payment.ID,
		OrderCode:            state.orderCode,
		PaymentLinkID:        state.link.PaymentLinkID,
		CheckoutURL:          state.link.CheckoutURL,
		QRCode:               state.link.QRCode,
		Description:          state.description,
		Amount:               req.Amount,
		TransferMemo:         s.transferMemo(campaign.ID, donorID, anonymous),
	}

	s.dispatcher.Dispatch(ctx, notify.Event{
		Type:  notify.EventDonationCreated,
		Title: "New donation pending",
		Fields: map[string]string{
			"campaign":   campaign.Title,
			"amount":     strconv.FormatInt(req.Amount, 10),
			"order_code": reference.FormatOrderCode(state.orderCode),
		},
	})

	s.log.Info("donation created",
		zap.String("donation_id", donation.ID.String()),
		zap.String("campaign_id", campaign.ID.String()),
		zap.Int64("order_code", state.orderCode),
		zap.Int64("amount", req.Amount),
	)
	return &domain.CreateDonationResult{DonationID: donation.ID, Checkout: checkout}, nil
}

func (s *Service) validateAmount(amount int64) error {
	policy := s.policy.Get()
	switch {
	case amount <= 0:
		return domain.ErrInvalidAmount
	case amount < policy.MinAmount:
		return domain.ErrAmountBelowMinimum
	case policy.MaxAmount > 0 && amount > policy.MaxAmount:
		return domain.ErrAmountAboveMaximum
	}
	return nil
}

func (s *Service) createPaymentLink(ctx context.Context, st *createState) error {
	amount := st.donation.Amount.IntPart()
	link, err := s.gateway.CreatePaymentLink(ctx, payos.CreateLinkRequest{
		OrderCode:   st.orderCode,
		Amount:      amount,
		Description: st.description,
		Items: []payos.Item{{
			Name:     itemName(st.campaign.Title),
			Quantity: 1,
			Price:    amount,
		}},
		BuyerName: derefOr(st.donation.DonorName, ""),
	})
	if err != nil {
		s.log.Warn("payment link creation failed",
			zap.Int64("order_code", st.orderCode),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %w", domain.ErrPaymentLinkCreation, err)
	}
	st.link = link
	return nil
}

func (s *Service) cancelPaymentLink(ctx context.Context, st *createState) error {
	_, err := s.gateway.CancelPaymentLink(ctx, st.orderCode, "payment record not saved")
	return err
}

func (s *Service) persistPending(ctx context.Context, st *createState) error {
	now := s.clock.Now()
	pt := &domain.PaymentTransaction{
		ID:             s.genID.Generate(),
		DonationID:     st.donation.ID,
		Gateway:        payos.Provider,
		OrderCode:      st.orderCode,
		PaymentLinkID:  st.link.PaymentLinkID,
		CheckoutURL:    st.link.CheckoutURL,
		QRCode:         st.link.QRCode,
		Description:    st.description,
		Amount:         st.donation.Amount,
		ReceivedAmount: decimal.Zero,
		Status:         domain.StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.InsertPaymentTransaction(ctx, s.db, pt); err != nil {
		return fmt.Errorf("persist payment transaction: %w", err)
	}
	st.payment = pt
	return nil
}

func (s *Service) onCompensationFailed(ctx context.Context, sagaName, step string, err error) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordCompensationFailure(ctx, sagaName, step)
	}
	s.dispatcher.Dispatch(ctx, notify.Event{
		Type:  notify.EventManualIntervention,
		Title: "Manual intervention required",
		Fields: map[string]string{
			"saga":  sagaName,
			"step":  step,
			"error": err.Error(),
		},
	})
}

func (s *Service) transferMemo(campaignID snowflake.ID, donorID string, anonymous bool) string {
	var donor *int64
	if !anonymous {
		if id, err := strconv.ParseInt(donorID, 10, 64); err == nil && id > 0 {
			donor = &id
		}
	}
	memo, err := reference.Encode(int64(campaignID), donor)
	if err != nil {
		s.log.Warn("transfer memo not encodable", zap.String("campaign_id", campaignID.String()), zap.Error(err))
		return ""
	}
	return memo
}

func (s *Service) GetDonation(ctx context.Context, id snowflake.ID) (*domain.DonationDetail, error) {
	donation, err := s.repo.FindDonation(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if donation == nil {
		return nil, domain.ErrDonationNotFound
	}
	items, err := s.repo.ListByDonation(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &domain.DonationDetail{Donation: donation, Transactions: items}, nil
}

func (s *Service) GetPaymentStatus(ctx context.Context, orderCode int64) (*domain.PaymentTransaction, error) {
	pt, err := s.repo.FindByOrderCode(ctx, s.db, orderCode)
	if err != nil {
		return nil, err
	}
	if pt == nil {
		return nil, domain.ErrPaymentNotFound
	}
	return pt, nil
}

func (s *Service) LockByOrderCode(ctx context.Context, tx *gorm.DB, orderCode int64) (*domain.PaymentTransaction, error) {
	return s.repo.LockByOrderCode(ctx, tx, orderCode)
}

func (s *Service) SettleTx(ctx context.Context, tx *gorm.DB, pt *domain.PaymentTransaction, in domain.Settlement) (*walletdomain.Transaction, error) {
	if pt == nil {
		return nil, domain.ErrPaymentNotFound
	}
	switch {
	case pt.Status == domain.StatusSuccess:
		return nil, domain.ErrAlreadySettled
	case pt.Status == domain.StatusFailed && !in.AllowFailed:
		return nil, domain.ErrInvalidTransition
	case !domain.CanTransition(pt.Status, domain.StatusSuccess):
		return nil, domain.ErrInvalidTransition
	}
	if !in.ReceivedAmount.IsPositive() {
		return nil, domain.ErrInvalidAmount
	}

	donation, err := s.repo.FindDonation(ctx, tx, pt.DonationID)
	if err != nil {
		return nil, err
	}
	if donation == nil {
		return nil, domain.ErrDonationNotFound
	}
	owner, err := s.campaigns.ResolveFundraiser(ctx, tx, donation.CampaignID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	pt.Status = domain.StatusSuccess
	pt.ReceivedAmount = in.ReceivedAmount
	pt.CounterAccountNumber = in.Counterparty.AccountNumber
	pt.CounterAccountName = in.Counterparty.AccountName
	pt.CounterBankName = in.Counterparty.BankName
	pt.ErrorCode = ""
	pt.ErrorDescription = ""
	pt.PaidAt = &now
	pt.UpdatedAt = now
	if ref := strings.TrimSpace(in.Reference); ref != "" {
		pt.ExternalRef = &ref
	}
	if err := s.repo.UpdatePaymentTransaction(ctx, tx, pt); err != nil {
		return nil, err
	}

	gateway := in.Gateway
	if gateway == "" {
		gateway = pt.Gateway
	}
	description := in.Description
	if description == "" {
		description = pt.Description
	}
	campaignID := donation.CampaignID
	entry, err := s.wallets.CreditTx(ctx, tx, walletdomain.CreditRequest{
		OwnerID:              owner,
		Kind:                 walletdomain.WalletKindFundraiser,
		Amount:               in.ReceivedAmount,
		Type:                 walletdomain.TransactionTypeDonationReceived,
		CampaignID:           &campaignID,
		PaymentTransactionID: &pt.ID,
		Gateway:              gateway,
		Description:          description,
		Metadata:             in.Metadata,
	})
	if err != nil {
		return nil, err
	}
	if err := s.campaigns.IncrementReceived(ctx, tx, campaignID, in.ReceivedAmount); err != nil {
		return nil, err
	}

	s.log.Info("payment settled",
		zap.String("payment_transaction_id", pt.ID.String()),
		zap.Int64("order_code", pt.OrderCode),
		zap.String("received_amount", in.ReceivedAmount.String()),
		zap.String("gateway", gateway),
	)
	return entry, nil
}

func (s *Service) CreateSettledTx(ctx context.Context, tx *gorm.DB, in domain.SettledDonation) (*domain.PaymentTransaction, *walletdomain.Transaction, error) {
	if !in.Amount.IsPositive() {
		return nil, nil, domain.ErrInvalidAmount
	}
	campaign, err := s.campaigns.GetCampaignTx(ctx, tx, in.CampaignID)
	if err != nil {
		return nil, nil, err
	}
	owner := campaign.FundraiserWalletOwner()
	if owner == "" {
		return nil, nil, campaigndomain.ErrFundraiserUnresolved
	}
	ref := strings.TrimSpace(in.Reference)
	if ref != "" {
		prior, err := s.repo.FindByExternalRef(ctx, tx, in.Gateway, ref)
		if err != nil {
			return nil, nil, err
		}
		if prior != nil {
			return prior, nil, domain.ErrAlreadySettled
		}
	}

	now := s.clock.Now()
	donation := &domain.Donation{
		ID:          s.genID.Generate(),
		CampaignID:  campaign.ID,
		DonorID:     domain.AnonymousDonor,
		Amount:      in.Amount,
		IsAnonymous: true,
		CreatedAt:   now,
	}
	if in.DonorID != nil {
		donation.DonorID = strconv.FormatInt(*in.DonorID, 10)
		donation.IsAnonymous = false
	}
	if err := s.repo.InsertDonation(ctx, tx, donation); err != nil {
		return nil, nil, err
	}

	pt := &domain.PaymentTransaction{
		ID:                   s.genID.Generate(),
		DonationID:           donation.ID,
		Gateway:              in.Gateway,
		OrderCode:            reference.NewOrderCode(now),
		Description:          truncate(strings.TrimSpace(in.Memo), maxMemoLen),
		Amount:               in.Amount,
		ReceivedAmount:       in.Amount,
		Status:               domain.StatusSuccess,
		CounterAccountNumber: in.Counter.AccountNumber,
		CounterAccountName:   in.Counter.AccountName,
		CounterBankName:      in.Counter.BankName,
		PaidAt:               &now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if ref != "" {
		pt.ExternalRef = &ref
	}
	if err := s.repo.InsertPaymentTransaction(ctx, tx, pt); err != nil {
		return nil, nil, err
	}

	campaignID := campaign.ID
	entry, err := s.wallets.CreditTx(ctx, tx, walletdomain.CreditRequest{
		OwnerID:              owner,
		Kind:                 walletdomain.WalletKindFundraiser,
		Amount:               in.Amount,
		Type:                 walletdomain.TransactionTypeDonationReceived,
		CampaignID:           &campaignID,
		PaymentTransactionID: &pt.ID,
		Gateway:              in.Gateway,
		Description:          pt.Description,
		Metadata:             in.Metadata,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := s.campaigns.IncrementReceived(ctx, tx, campaignID, in.Amount); err != nil {
		return nil, nil, err
	}
	return pt, entry, nil
}

func (s *Service) ListStalePending(ctx context.Context, q domain.StaleQuery) ([]*domain.PaymentTransaction, error) {
	if q.Limit <= 0 {
		q.Limit = 100
	}
	return s.repo.ListStalePending(ctx, s.db, q)
}

// MarkFailedTx fails a PENDING transaction. It reports false when the transaction already
// left PENDING.
func (s *Service) MarkFailedTx(ctx context.Context, tx *gorm.DB, id snowflake.ID, code, description string) (bool, error) {
	pt, err := s.repo.LockPaymentTransaction(ctx, tx, id)
	if err != nil {
		return false, err
	}
	if pt == nil {
		return false, domain.ErrPaymentNotFound
	}
	if pt.Status != domain.StatusPending {
		return false, nil
	}

	pt.Status = domain.StatusFailed
	pt.ErrorCode = code
	pt.ErrorDescription = description
	pt.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdatePaymentTransaction(ctx, tx, pt); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) OverrideFailed(ctx context.Context, id snowflake.ID, operator string) (*domain.PaymentTransaction, error) {
	var out *domain.PaymentTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pt, err := s.repo.LockPaymentTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		if pt == nil {
			return domain.ErrPaymentNotFound
		}
		if pt.Status != domain.StatusFailed {
			return domain.ErrInvalidTransition
		}

		amount := pt.ReceivedAmount
		if !amount.IsPositive() {
			amount = pt.Amount
		}
		if _, err := s.SettleTx(ctx, tx, pt, domain.Settlement{
			ReceivedAmount: amount,
			Gateway:        pt.Gateway,
			Counterparty: domain.Counterparty{
				AccountNumber: pt.CounterAccountNumber,
				AccountName:   pt.CounterAccountName,
				BankName:      pt.CounterBankName,
			},
			Description: "manual override",
			Metadata:    map[string]any{"override_by": operator},
			AllowFailed: true,
		}); err != nil {
			return err
		}
		out = pt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Warn("failed payment overridden",
		zap.String("payment_transaction_id", id.String()),
		zap.String("operator", operator),
	)
	return out, nil
}

func (s *Service) Refund(ctx context.Context, id snowflake.ID, operator, reason string) (*domain.PaymentTransaction, error) {
	var out *domain.PaymentTransaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pt, err := s.repo.LockPaymentTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		if pt == nil {
			return domain.ErrPaymentNotFound
		}
		if !domain.CanTransition(pt.Status, domain.StatusRefunded) {
			return domain.ErrInvalidTransition
		}

		donation, err := s.repo.FindDonation(ctx, tx, pt.DonationID)
		if err != nil {
			return err
		}
		if donation == nil {
			return domain.ErrDonationNotFound
		}
		owner, err := s.campaigns.ResolveFundraiser(ctx, tx, donation.CampaignID)
		if err != nil {
			return err
		}

		campaignID := donation.CampaignID
		if _, err := s.wallets.DebitTx(ctx, tx, walletdomain.DebitRequest{
			OwnerID:     owner,
			Kind:        walletdomain.WalletKindFundraiser,
			Amount:      pt.ReceivedAmount,
			Type:        walletdomain.TransactionTypeAdminAdjustment,
			CampaignID:  &campaignID,
			ExternalRef: "refund:" + pt.ID.String(),
			Gateway:     pt.Gateway,
			Description: "refund " + reference.FormatOrderCode(pt.OrderCode),
			Metadata: map[string]any{
				"payment_transaction_id": pt.ID.String(),
				"refunded_by":            operator,
				"reason":                 reason,
			},
		}); err != nil {
			return err
		}
		if err := s.campaigns.DecrementReceived(ctx, tx, campaignID, pt.ReceivedAmount); err != nil {
			return err
		}

		pt.Status = domain.StatusRefunded
		pt.ErrorDescription = reason
		pt.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdatePaymentTransaction(ctx, tx, pt); err != nil {
			return err
		}
		out = pt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Warn("payment refunded",
		zap.String("payment_transaction_id", id.String()),
		zap.String("operator", operator),
		zap.String("reason", reason),
	)
	return out, nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}

// IsValidation reports whether err is a caller mistake rather than a system failure.
func IsValidation(err error) bool {
	return errors.Is(err, domain.ErrInvalidAmount) ||
		errors.Is(err, domain.ErrAmountBelowMinimum) ||
		errors.Is(err, domain.ErrAmountAboveMaximum) ||
		errors.Is(err, domain.ErrInvalidCampaign) ||
		errors.Is(err, campaigndomain.ErrCampaignInactive) ||
		errors.Is(err, campaigndomain.ErrCampaignNotStarted) ||
		errors.Is(err, campaigndomain.ErrCampaignEnded)
}
