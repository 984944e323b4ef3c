package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/clock"
	obsmetrics "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/observability/metrics"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/domain"
	pkgdb "github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db/pagination"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MetadataExternalRef is the metadata key carrying a gateway's own transfer id. Credits
// without a payment transaction are deduplicated on it.
const MetadataExternalRef = "external_transfer_id"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("wallet.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) GetWallet(ctx context.Context, ownerID string, kind domain.WalletKind) (*domain.Wallet, error) {
	ownerID, err := validateOwner(ownerID, kind)
	if err != nil {
		return nil, err
	}

	wallet, err := s.repo.FindWallet(ctx, s.db, ownerID, kind)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, domain.ErrWalletNotFound
	}
	return wallet, nil
}

func (s *Service) GetWalletByID(ctx context.Context, id snowflake.ID) (*domain.Wallet, error) {
	if id == 0 {
		return nil, domain.ErrWalletNotFound
	}
	wallet, err := s.repo.FindWalletByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, domain.ErrWalletNotFound
	}
	return wallet, nil
}

func (s *Service) CreateWallet(ctx context.Context, ownerID string, kind domain.WalletKind) (*domain.Wallet, error) {
	ownerID, err := validateOwner(ownerID, kind)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	wallet := &domain.Wallet{
		ID:        s.genID.Generate(),
		OwnerID:   ownerID,
		Kind:      kind,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindWallet(ctx, tx, ownerID, kind)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrWalletExists
		}
		if err := s.repo.InsertWallet(ctx, tx, wallet); err != nil {
			if pkgdb.IsDuplicateKeyErr(err) {
				return domain.ErrWalletExists
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("wallet created",
		zap.String("wallet_id", wallet.ID.String()),
		zap.String("owner_id", ownerID),
		zap.String("kind", string(kind)),
	)
	return wallet, nil
}

func (s *Service) Credit(ctx context.Context, req domain.CreditRequest) (*domain.Transaction, error) {
	var entry *domain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.CreditTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, req domain.CreditRequest) (*domain.Transaction, error) {
	ownerID, err := validateOwner(req.OwnerID, req.Kind)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() || !req.Amount.IsInteger() {
		return nil, domain.ErrInvalidAmount
	}
	if !validType(req.Type) {
		return nil, domain.ErrInvalidType
	}

	wallet, err := s.repo.LockWallet(ctx, tx, ownerID, req.Kind)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, domain.ErrWalletNotFound
	}

	externalRef := resolveExternalRef(req.ExternalRef, req.Metadata)
	existing, err := s.findPrior(ctx, tx, wallet.ID, req.PaymentTransactionID, externalRef)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		s.log.Info("wallet credit already applied",
			zap.String("wallet_id", wallet.ID.String()),
			zap.String("wallet_transaction_id", existing.ID.String()),
		)
		return existing, nil
	}

	return s.apply(ctx, tx, wallet, entryInput{
		amount:               req.Amount,
		txType:               req.Type,
		campaignID:           req.CampaignID,
		paymentTransactionID: req.PaymentTransactionID,
		externalRef:          externalRef,
		gateway:              req.Gateway,
		description:          req.Description,
		metadata:             req.Metadata,
	})
}

func (s *Service) Debit(ctx context.Context, req domain.DebitRequest) (*domain.Transaction, error) {
	var entry *domain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = s.DebitTx(ctx, tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) DebitTx(ctx context.Context, tx *gorm.DB, req domain.DebitRequest) (*domain.Transaction, error) {
	ownerID, err := validateOwner(req.OwnerID, req.Kind)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() || !req.Amount.IsInteger() {
		return nil, domain.ErrInvalidAmount
	}
	if req.Type == "" {
		req.Type = domain.TransactionTypeWithdrawal
	}
	if !validType(req.Type) {
		return nil, domain.ErrInvalidType
	}

	wallet, err := s.repo.LockWallet(ctx, tx, ownerID, req.Kind)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, domain.ErrWalletNotFound
	}

	externalRef := strings.TrimSpace(req.ExternalRef)
	existing, err := s.findPrior(ctx, tx, wallet.ID, req.PaymentTransactionID, externalRef)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	if wallet.Balance.LessThan(req.Amount) {
		s.log.Warn("debit rejected, insufficient balance",
			zap.String("wallet_id", wallet.ID.String()),
			zap.String("balance", wallet.Balance.String()),
			zap.String("amount", req.Amount.String()),
		)
		return nil, domain.ErrInsufficientBalance
	}

	return s.apply(ctx, tx, wallet, entryInput{
		amount:               req.Amount.Neg(),
		txType:               req.Type,
		campaignID:           req.CampaignID,
		paymentTransactionID: req.PaymentTransactionID,
		externalRef:          externalRef,
		gateway:              req.Gateway,
		description:          req.Description,
		metadata:             req.Metadata,
	})
}

type entryInput struct {
	amount               decimal.Decimal
	txType               domain.TransactionType
	campaignID           *snowflake.ID
	paymentTransactionID *snowflake.ID
	externalRef          string
	gateway              string
	description          string
	metadata             map[string]any
}

// apply appends the entry and moves the balance. The wallet row must already be locked by tx.
func (s *Service) apply(ctx context.Context, tx *gorm.DB, wallet *domain.Wallet, in entryInput) (*domain.Transaction, error) {
	metadata, err := encodeMetadata(in.metadata)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	entry := &domain.Transaction{
		ID:                   s.genID.Generate(),
		WalletID:             wallet.ID,
		CampaignID:           in.campaignID,
		PaymentTransactionID: in.paymentTransactionID,
		Type:                 in.txType,
		Amount:               in.amount,
		BalanceBefore:        wallet.Balance,
		BalanceAfter:         wallet.Balance.Add(in.amount),
		Gateway:              strings.TrimSpace(in.gateway),
		Description:          strings.TrimSpace(in.description),
		Metadata:             metadata,
		CreatedAt:            now,
	}
	if in.externalRef != "" {
		ref := in.externalRef
		entry.ExternalRef = &ref
	}

	if err := s.repo.InsertTransaction(ctx, tx, entry); err != nil {
		return nil, fmt.Errorf("insert wallet transaction: %w", err)
	}
	if err := s.repo.UpdateBalance(ctx, tx, wallet.ID, entry.BalanceAfter, now); err != nil {
		return nil, fmt.Errorf("update wallet balance: %w", err)
	}

	wallet.Balance = entry.BalanceAfter
	wallet.UpdatedAt = now

	if s.obsMetrics != nil {
		s.obsMetrics.RecordWalletEntry(ctx, string(in.txType))
	}
	s.log.Info("wallet entry applied",
		zap.String("wallet_id", wallet.ID.String()),
		zap.String("type", string(in.txType)),
		zap.String("amount", in.amount.String()),
		zap.String("balance_after", entry.BalanceAfter.String()),
	)
	return entry, nil
}

func (s *Service) findPrior(ctx context.Context, tx *gorm.DB, walletID snowflake.ID, paymentTransactionID *snowflake.ID, externalRef string) (*domain.Transaction, error) {
	if paymentTransactionID != nil && *paymentTransactionID != 0 {
		return s.repo.FindByPaymentTransaction(ctx, tx, walletID, *paymentTransactionID)
	}
	if externalRef != "" {
		return s.repo.FindByExternalRef(ctx, tx, walletID, externalRef)
	}
	return nil, nil
}

func (s *Service) GetBalance(ctx context.Context, ownerID string, kind domain.WalletKind) (decimal.Decimal, error) {
	wallet, err := s.GetWallet(ctx, ownerID, kind)
	if err != nil {
		return decimal.Zero, err
	}
	return wallet.Balance, nil
}

func (s *Service) ListTransactions(ctx context.Context, req domain.ListTransactionsRequest) (*domain.ListTransactionsResponse, error) {
	wallet, err := s.GetWallet(ctx, req.OwnerID, req.Kind)
	if err != nil {
		return nil, err
	}

	filter := domain.TransactionFilter{Type: req.Type}
	if req.CampaignID != "" {
		campaignID, err := snowflake.ParseString(strings.TrimSpace(req.CampaignID))
		if err != nil {
			return nil, domain.ErrInvalidCampaign
		}
		filter.CampaignID = &campaignID
	}

	var cursor *pagination.Cursor
	if req.PageToken != "" {
		cursor, err = pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
	}

	limit := req.Limit()
	entries, err := s.repo.ListTransactions(ctx, s.db, wallet.ID, filter, cursor, limit)
	if err != nil {
		return nil, err
	}

	page, info, err := pagination.BuildCursorPage(entries, limit, func(t *domain.Transaction) pagination.Cursor {
		return pagination.Cursor{ID: t.ID.String(), CreatedAt: t.CreatedAt}
	})
	if err != nil {
		return nil, err
	}

	return &domain.ListTransactionsResponse{PageInfo: info, Transactions: page}, nil
}

func (s *Service) GetStats(ctx context.Context, ownerID string, kind domain.WalletKind) (*domain.Stats, error) {
	wallet, err := s.GetWallet(ctx, ownerID, kind)
	if err != nil {
		return nil, err
	}

	stats, err := s.repo.Aggregate(ctx, s.db, wallet.ID)
	if err != nil {
		return nil, err
	}
	if !stats.LedgerConsistent {
		s.log.Error("wallet ledger does not match balance",
			zap.String("wallet_id", wallet.ID.String()),
			zap.String("balance", stats.Balance.String()),
		)
	}
	return stats, nil
}

func validateOwner(ownerID string, kind domain.WalletKind) (string, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return "", domain.ErrInvalidOwner
	}
	if !kind.Valid() {
		return "", domain.ErrInvalidKind
	}
	return ownerID, nil
}

func validType(t domain.TransactionType) bool {
	switch t {
	case domain.TransactionTypeDonationReceived,
		domain.TransactionTypeIncomingTransfer,
		domain.TransactionTypeWithdrawal,
		domain.TransactionTypeAdminAdjustment:
		return true
	default:
		return false
	}
}

func resolveExternalRef(explicit string, metadata map[string]any) string {
	if ref := strings.TrimSpace(explicit); ref != "" {
		return ref
	}
	if metadata == nil {
		return ""
	}
	switch v := metadata[MetadataExternalRef].(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case int64:
		return fmt.Sprintf("%d", v)
	case int:
		return fmt.Sprintf("%d", v)
	case float64:
		return decimal.NewFromFloat(v).String()
	default:
		return ""
	}
}

func encodeMetadata(metadata map[string]any) (datatypes.JSON, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode wallet metadata: %w", err)
	}
	return datatypes.JSON(raw), nil
}
