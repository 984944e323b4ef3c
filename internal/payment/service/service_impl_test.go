package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	donationdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/donationtest"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/idempotency"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/repository"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/service"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/reference"
	walletdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db/dbtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type downStore struct{}

func (downStore) SetIfAbsent(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func (downStore) Delete(context.Context, string) error { return nil }

type fixture struct {
	*donationtest.Env
	router domain.Router
}

func newFixture(t *testing.T, store idempotency.Store) *fixture {
	t.Helper()
	env := donationtest.New(t, &domain.WebhookEvent{})
	return &fixture{Env: env, router: newRouter(env, store)}
}

func newRouter(env *donationtest.Env, store idempotency.Store) domain.Router {
	cfg := config.Config{Wallet: config.WalletConfig{SystemOwnerID: donationtest.SystemOwnerID}}
	if store == nil {
		store = idempotency.NewMemoryStore(env.Clock)
	}
	guard := idempotency.NewGuard(idempotency.Params{Store: store, Config: cfg, Log: zap.NewNop()})

	return service.NewService(service.Params{
		DB:        env.DB,
		Log:       zap.NewNop(),
		GenID:     env.Node,
		Clock:     env.Clock,
		Config:    cfg,
		Repo:      repository.Provide(),
		Donations: env.Donations,
		Wallets:   env.Wallets,
		Guard:     guard,
	})
}

func (f *fixture) pending(t *testing.T, campaignID string, amount int64) int64 {
	t.Helper()
	res, err := f.Donations.CreateDonation(context.Background(), donationdomain.CreateDonationRequest{
		CampaignID: campaignID,
		Amount:     amount,
	})
	require.NoError(t, err)
	return res.Checkout.OrderCode
}

func transfer(id int64, amount int64, content string) (*domain.BankTransferEvent, []byte) {
	event := &domain.BankTransferEvent{
		ID:              id,
		Gateway:         "Vietcombank",
		TransactionDate: "2025-06-01 10:00:00",
		AccountNumber:   "0071000888888",
		Content:         content,
		TransferType:    domain.TransferIn,
		TransferAmount:  amount,
		ReferenceCode:   fmt.Sprintf("MBVCB.%d", id),
		Description:     "BankAPINotify " + content,
	}
	payload, _ := json.Marshal(event)
	return event, payload
}

func checkout(orderCode, amount int64) (*domain.CheckoutEvent, []byte) {
	event := &domain.CheckoutEvent{
		Code:               "00",
		Desc:               "success",
		Success:            true,
		OrderCode:          orderCode,
		Amount:             amount,
		Reference:          fmt.Sprintf("FT%d", orderCode%100000),
		CounterAccountName: "NGUYEN VAN A",
	}
	payload, _ := json.Marshal(map[string]any{"code": "00", "data": map[string]any{"orderCode": orderCode, "amount": amount}})
	return event, payload
}

func (f *fixture) ptStatus(t *testing.T, orderCode int64) *donationdomain.PaymentTransaction {
	t.Helper()
	pt, err := f.Donations.GetPaymentStatus(context.Background(), orderCode)
	require.NoError(t, err)
	return pt
}

func TestDonationLifecycle_CheckoutWebhookCreditsOnce(t *testing.T) {
	f := newFixture(t, nil)
	c := f.SeedCampaign(t, 500, 77)
	ctx := context.Background()
	orderCode := f.pending(t, c.ID.String(), 50000)

	event, payload := checkout(orderCode, 50000)
	res, err := f.router.HandleCheckoutWebhook(ctx, event, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCredited, res.Outcome)

	pt := f.ptStatus(t, orderCode)
	assert.Equal(t, donationdomain.StatusSuccess, pt.Status)
	assert.True(t, pt.ReceivedAmount.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, "NGUYEN VAN A", pt.CounterAccountName)
	assert.True(t, f.Balance(t, "77", walletdomain.WalletKindFundraiser).Equal(decimal.NewFromInt(50000)))

	campaign, err := f.Campaigns.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, campaign.ReceivedAmount.Equal(decimal.NewFromInt(50000)))

	res, err = f.router.HandleCheckoutWebhook(ctx, event, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, res.Outcome)
	assert.True(t, f.Balance(t, "77", walletdomain.WalletKindFundraiser).Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, int64(1), dbtest.Count(t, f.DB, "wallet_transactions"))
}

func TestHandleBankTransfer_FullAmountIsLeftToCheckoutGateway(t *testing.T) {
	f := newFixture(t, nil)
	c := f.SeedCampaign(t, 500, 77)
	f.SeedAdminWallet(t)
	orderCode := f.pending(t, c.ID.String(), 50000)

	for i, amount := range []int64{50000, 70000} {
		event, payload := transfer(int64(100+i), amount, "FoodFund "+reference.FormatOrderCode(orderCode))
		res, err := f.router.HandleBankTransfer(context.Background(), event, payload)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeIgnoredFullAmount, res.Outcome)
	}

	assert.Equal(t, donationdomain.StatusPending, f.ptStatus(t, orderCode).Status)
	assert.Equal(t, int64(0), dbtest.Count(t, f.DB, "wallet_transactions"))
}

func TestHandleBankTransfer_PartialPaymentSettlesActualAmount(t *testing.T) {
	f := newFixture(t, nil)
	c := f.SeedCampaign(t, 500, 77)
	f.SeedAdminWallet(t)
	orderCode := f.pending(t, c.ID.String(), 50000)

	event, payload := transfer(200, 30000, "ung ho FoodFund "+reference.FormatOrderCode(orderCode)+" cam on")
	res, err := f.router.HandleBankTransfer(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomePartial, res.Outcome)
	require.NotNil(t, res.WalletTransactionID)

	pt := f.ptStatus(t, orderCode)
	assert.Equal(t, donationdomain.StatusSuccess, pt.Status)
	assert.True(t, pt.ReceivedAmount.Equal(decimal.NewFromInt(30000)))
	assert.True(t, pt.Amount.Equal(decimal.NewFromInt(50000)))
	assert.True(t, f.Balance(t, "77", walletdomain.WalletKindFundraiser).Equal(decimal.NewFromInt(30000)))
	assert.True(t, f.Balance(t, donationtest.SystemOwnerID, walletdomain.WalletKindAdmin).IsZero())

	// A second partial transfer on a settled order is reviewed by hand.
	event, payload = transfer(201, 10000, "FoodFund "+reference.FormatOrderCode(orderCode))
	res, err = f.router.HandleBankTransfer(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnattributed, res.Outcome)
	assert.True(t, f.Balance(t, "77", walletdomain.WalletKindFundraiser).Equal(decimal.NewFromInt(30000)))
	assert.True(t, f.Balance(t, donationtest.SystemOwnerID, walletdomain.WalletKindAdmin).Equal(decimal.NewFromInt(10000)))
}

func TestHandleBankTransfer_DuplicateDeliveryCreditsOnce(t *testing.T) {
	f := newFixture(t, nil)
	c := f.SeedCampaign(t, 500, 77)
	f.SeedAdminWallet(t)
	orderCode := f.pending(t, c.ID.String(), 50000)

	event, payload := transfer(300, 20000, "FoodFund "+reference.FormatOrderCode(orderCode))
	for i := 0; i < 3; i++ {
		_, err := f.router.HandleBankTransfer(context.Background(), event, payload)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), dbtest.Count(t, f.DB, "wallet_transactions"))
	assert.True(t, f.Balance(t, "77", walletdomain.WalletKindFundraiser).Equal(decimal.NewFromInt(20000)))
}

func TestHandleBankTransfer_CacheDownFallsBackToEventLog(t *testing.T) {
	f := newFixture(t, downStore{})
	f.SeedAdminWallet(t)

	event, payload := transfer(400, 15000, "chuyen tien")
	first, err := f.router.HandleBankTransfer(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnattributed, first.Outcome)

	second, err := f.router.HandleBankTransfer(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, second.Outcome)
	assert.True(t, f.Balance(t, donationtest.SystemOwnerID, walletdomain.WalletKindAdmin).Equal(decimal.NewFromInt(15000)))
}

func TestHandleBankTransfer_NoReferenceGoesToSystemWallet(t *testing.T) {
	f := newFixture(t, nil)
	f.SeedAdminWallet(t)
	ctx := context.Background()

	event, payload := transfer(500, 25000, "chuyen tien ung ho 0071000888888")
	res, err := f.router.HandleBankTransfer(ctx, event, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnattributed, res.Outcome)

	list, err := f.Wallets.ListTransactions(ctx, walletdomain.ListTransactionsRequest{
		OwnerID: donationtest.SystemOwnerID,
		Kind:    walletdomain.WalletKindAdmin,
	})
	require.NoError(t, err)
	require.Len(t, list.Transactions, 1)
	entry := list.Transactions[0]
	assert.Equal(t, walletdomain.TransactionTypeIncomingTransfer, entry.Type)
	assert.Nil(t, entry.PaymentTransactionID)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal(entry.Metadata, &metadata))
	raw, ok := metadata["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(500), raw["id"])

	events, err := f.router.ListEvents(ctx, domain.EventFilter{Outcome: domain.OutcomeUnattributed})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotNil(t, events[0].ProcessedAt)
}

func TestHandleBankTransfer_MissingSystemWalletDoesNotFail(t *testing.T) {
	f := newFixture(t, nil)

	event, payload := transfer(600, 25000, "no code here")
	res, err := f.router.HandleBankTransfer(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnattributed, res.Outcome)
	assert.Nil(t, res.WalletTransactionID)
	assert.Equal(t, int64(0), dbtest.Count(t, f.DB, "wallet_transactions"))
}

func TestHandleBankTransfer_UnknownOrderCodeGoesToSystemWallet(t *testing.T) {
	f := newFixture(t, nil)
	f.SeedAdminWallet(t)

	event, payload := transfer(700, 25000, "FoodFund 1748746800000999")
	res, err := f.router.HandleBankTransfer(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnattributed, res.Outcome)
	assert.Contains(t, res.Detail, "order_code_not_found")
	assert.True(t, f.Balance(t, donationtest.SystemOwnerID, walletdomain.WalletKindAdmin).Equal(decimal.NewFromInt(25000)))
}

func TestHandleBankTransfer_PartialWithUnresolvableCampaignGoesToSystemWallet(t *testing.T) {
	cases := []struct {
		name   string
		mutate string
		detail string
	}{
		{"fundraiser cleared", "UPDATE campaigns SET fundraiser_id = 0 WHERE id = ?", "fundraiser_unresolved"},
		{"campaign deleted", "DELETE FROM campaigns WHERE id = ?", "campaign_not_found"},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, nil)
			c := f.SeedCampaign(t, 500, 77)
			f.SeedAdminWallet(t)
			orderCode := f.pending(t, c.ID.String(), 50000)
			require.NoError(t, f.DB.Exec(tc.mutate, c.ID).Error)

			event, payload := transfer(int64(1000+i), 20000, "FoodFund "+reference.FormatOrderCode(orderCode))
			res, err := f.router.HandleBankTransfer(context.Background(), event, payload)
			require.NoError(t, err)
			assert.Equal(t, domain.OutcomeUnattributed, res.Outcome)
			assert.Contains(t, res.Detail, tc.detail)

			pt := f.ptStatus(t, orderCode)
			assert.Equal(t, donationdomain.StatusPending, pt.Status)
			assert.True(t, pt.ReceivedAmount.IsZero())
			assert.True(t, f.Balance(t, donationtest.SystemOwnerID, walletdomain.WalletKindAdmin).Equal(decimal.NewFromInt(20000)))
			assert.True(t, f.Balance(t, "77", walletdomain.WalletKindFundraiser).IsZero())
			assert.Equal(t, int64(1), dbtest.Count(t, f.DB, "wallet_transactions"))
		})
	}
}

func TestHandleBankTransfer_RejectsOutboundAndNonPositive(t *testing.T) {
	f := newFixture(t, nil)
	f.SeedAdminWallet(t)

	out, payload := transfer(800, 25000, "rut tien")
	out.TransferType = domain.TransferOut
	res, err := f.router.HandleBankTransfer(context.Background(), out, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRejected, res.Outcome)

	zero, payload := transfer(801, 0, "zero")
	res, err = f.router.HandleBankTransfer(context.Background(), zero, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeRejected, res.Outcome)

	assert.Equal(t, int64(0), dbtest.Count(t, f.DB, "wallet_transactions"))
	assert.Equal(t, int64(0), dbtest.Count(t, f.DB, "webhook_events"))
}

func TestHandleBankTransfer_ReferencedMemoCreatesSettledDonation(t *testing.T) {
	f := newFixture(t, nil)
	c := f.SeedCampaign(t, 500, 77)
	f.SeedAdminWallet(t)
	donor := int64(42)
	token, err := reference.Encode(int64(c.ID), &donor)
	require.NoError(t, err)

	event, payload := transfer(900, 35000, "ung ho "+token)
	res, err := f.router.HandleBankTransfer(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeCredited, res.Outcome)
	require.NotNil(t, res.PaymentTransactionID)
	assert.Equal(t, int64(1), dbtest.Count(t, f.DB, "donations"))
	assert.True(t, f.Balance(t, "77", walletdomain.WalletKindFundraiser).Equal(decimal.NewFromInt(35000)))

	// Redelivery to a replica whose cache never saw the key.
	replica := newRouter(f.Env, nil)
	res, err = replica.HandleBankTransfer(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDuplicate, res.Outcome)
	assert.Equal(t, int64(1), dbtest.Count(t, f.DB, "donations"))
}

func TestHandleBankTransfer_ReferenceToUnknownCampaignGoesToSystemWallet(t *testing.T) {
	f := newFixture(t, nil)
	f.SeedAdminWallet(t)
	token, err := reference.Encode(987654, nil)
	require.NoError(t, err)

	event, payload := transfer(950, 12000, token)
	res, err := f.router.HandleBankTransfer(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnattributed, res.Outcome)
	assert.True(t, f.Balance(t, donationtest.SystemOwnerID, walletdomain.WalletKindAdmin).Equal(decimal.NewFromInt(12000)))
}

func TestHandleCheckoutWebhook_FailedPaymentGoesToSystemWallet(t *testing.T) {
	f := newFixture(t, nil)
	c := f.SeedCampaign(t, 500, 77)
	f.SeedAdminWallet(t)
	ctx := context.Background()
	orderCode := f.pending(t, c.ID.String(), 50000)

	pt := f.ptStatus(t, orderCode)
	require.NoError(t, f.DB.Exec("UPDATE payment_transactions SET status = ? WHERE id = ?", donationdomain.StatusFailed, pt.ID).Error)

	event, payload := checkout(orderCode, 50000)
	res, err := f.router.HandleCheckoutWebhook(ctx, event, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnattributed, res.Outcome)
	assert.Equal(t, donationdomain.StatusFailed, f.ptStatus(t, orderCode).Status)
	assert.True(t, f.Balance(t, donationtest.SystemOwnerID, walletdomain.WalletKindAdmin).Equal(decimal.NewFromInt(50000)))
}

func TestHandleCheckoutWebhook_IgnoresUnsuccessfulPayment(t *testing.T) {
	f := newFixture(t, nil)
	event, payload := checkout(1748746800000123, 50000)
	event.Success = false
	event.Code = "01"

	res, err := f.router.HandleCheckoutWebhook(context.Background(), event, payload)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeIgnored, res.Outcome)
}
