// Package donationtest wires the campaign, wallet and donation services over an in-memory
// database for tests that exercise settlement end to end.
package donationtest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	campaigndomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/campaign/domain"
	campaignrepo "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/campaign/repository"
	campaignservice "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/campaign/service"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/clock"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/repository"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/service"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/gateway/payos"
	walletdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/domain"
	walletrepo "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/repository"
	walletservice "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/service"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db/dbtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ChecksumKey   = "test-checksum-key"
	SystemOwnerID = "system"
)

type Env struct {
	DB           *gorm.DB
	Clock        *clock.FakeClock
	Node         *snowflake.Node
	Gateway      *FakeGateway
	Policy       *config.DonationPolicyHolder
	CampaignRepo campaigndomain.Repository
	DonationRepo domain.Repository
	Campaigns    campaigndomain.Service
	Wallets      walletdomain.Service
	Donations    domain.Service
}

// New opens a database with the settlement tables plus extraModels.
func New(t testing.TB, extraModels ...any) *Env {
	t.Helper()

	models := append([]any{
		&campaigndomain.Campaign{},
		&walletdomain.Wallet{},
		&walletdomain.Transaction{},
		&domain.Donation{},
		&domain.PaymentTransaction{},
	}, extraModels...)
	conn := dbtest.Open(t, models...)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	env := &Env{
		DB:           conn,
		Clock:        clk,
		Node:         node,
		Gateway:      NewFakeGateway(),
		Policy:       config.NewStaticDonationPolicyHolder(config.DefaultDonationPolicy()),
		CampaignRepo: campaignrepo.Provide(),
		DonationRepo: repository.Provide(),
	}
	env.Campaigns = campaignservice.NewService(campaignservice.Params{
		DB: conn, Log: log, Repo: env.CampaignRepo, Clock: clk,
	})
	env.Wallets = walletservice.NewService(walletservice.Params{
		DB: conn, Log: log, GenID: node, Repo: walletrepo.Provide(), Clock: clk,
	})
	env.Donations = service.NewService(service.Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Repo:      env.DonationRepo,
		Clock:     clk,
		Campaigns: env.Campaigns,
		Wallets:   env.Wallets,
		Gateway:   env.Gateway,
		Policy:    env.Policy,
	})
	return env
}

// SeedCampaign inserts an active campaign and its fundraiser wallet.
func (e *Env) SeedCampaign(t testing.TB, id, fundraiserID int64) *campaigndomain.Campaign {
	t.Helper()
	ctx := context.Background()
	now := e.Clock.Now()
	c := &campaigndomain.Campaign{
		ID:           snowflake.ID(id),
		FundraiserID: snowflake.ID(fundraiserID),
		Title:        fmt.Sprintf("Bữa cơm số %d", id),
		Status:       campaigndomain.StatusActive,
		TargetAmount: decimal.NewFromInt(10_000_000),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, e.CampaignRepo.Insert(ctx, e.DB, c))
	if _, err := e.Wallets.GetWallet(ctx, c.FundraiserWalletOwner(), walletdomain.WalletKindFundraiser); err != nil {
		_, err = e.Wallets.CreateWallet(ctx, c.FundraiserWalletOwner(), walletdomain.WalletKindFundraiser)
		require.NoError(t, err)
	}
	return c
}

func (e *Env) SeedAdminWallet(t testing.TB) *walletdomain.Wallet {
	t.Helper()
	w, err := e.Wallets.CreateWallet(context.Background(), SystemOwnerID, walletdomain.WalletKindAdmin)
	require.NoError(t, err)
	return w
}

// Balance returns the wallet balance or fails the test.
func (e *Env) Balance(t testing.TB, owner string, kind walletdomain.WalletKind) decimal.Decimal {
	t.Helper()
	balance, err := e.Wallets.GetBalance(context.Background(), owner, kind)
	require.NoError(t, err)
	return balance
}

// FakeGateway is an in-memory checkout gateway. Webhooks are verified with ChecksumKey.
type FakeGateway struct {
	mu        sync.Mutex
	links     map[int64]*payos.LinkInfo
	created   []payos.CreateLinkRequest
	cancelled []int64
	cancelErr map[int64]error

	CreateErr error
	GetErr    error
	CancelErr error
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{links: map[int64]*payos.LinkInfo{}, cancelErr: map[int64]error{}}
}

func (g *FakeGateway) CreatePaymentLink(_ context.Context, req payos.CreateLinkRequest) (*payos.PaymentLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	g.created = append(g.created, req)
	g.links[req.OrderCode] = &payos.LinkInfo{
		ID:              fmt.Sprintf("plink-%d", req.OrderCode),
		OrderCode:       req.OrderCode,
		Amount:          req.Amount,
		AmountRemaining: req.Amount,
		Status:          payos.LinkStatusPending,
	}
	return &payos.PaymentLink{
		PaymentLinkID: fmt.Sprintf("plink-%d", req.OrderCode),
		OrderCode:     req.OrderCode,
		Amount:        req.Amount,
		Description:   req.Description,
		CheckoutURL:   fmt.Sprintf("https://pay.example/web/%d", req.OrderCode),
		QRCode:        "000201",
		Status:        payos.LinkStatusPending,
	}, nil
}

func (g *FakeGateway) GetPaymentLink(_ context.Context, orderCode int64) (*payos.LinkInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.GetErr != nil {
		return nil, g.GetErr
	}
	link, ok := g.links[orderCode]
	if !ok {
		return nil, &payos.Error{StatusCode: 404, Code: "101", Desc: "not found"}
	}
	cp := *link
	return &cp, nil
}

func (g *FakeGateway) CancelPaymentLink(_ context.Context, orderCode int64, _ string) (*payos.LinkInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, orderCode)
	if g.CancelErr != nil {
		return nil, g.CancelErr
	}
	if err := g.cancelErr[orderCode]; err != nil {
		return nil, err
	}
	link, ok := g.links[orderCode]
	if !ok {
		return nil, &payos.Error{StatusCode: 404, Code: "101", Desc: "not found"}
	}
	link.Status = payos.LinkStatusCancelled
	cp := *link
	return &cp, nil
}

func (g *FakeGateway) VerifyWebhook(body []byte) (*payos.Webhook, error) {
	return payos.VerifyWebhook(ChecksumKey, body)
}

// SetStatus overrides the remote status of a link.
func (g *FakeGateway) SetStatus(orderCode int64, status payos.LinkStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if link, ok := g.links[orderCode]; ok {
		link.Status = status
		return
	}
	g.links[orderCode] = &payos.LinkInfo{OrderCode: orderCode, Status: status}
}

// FailCancel makes cancellation of a single link fail with err.
func (g *FakeGateway) FailCancel(orderCode int64, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelErr[orderCode] = err
}

func (g *FakeGateway) Created() []payos.CreateLinkRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payos.CreateLinkRequest(nil), g.created...)
}

func (g *FakeGateway) Cancelled() []int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]int64(nil), g.cancelled...)
}
