package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	apikeyservice "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/apikey/service"
	auditdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/audit/domain"
	auditrepo "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/audit/repository"
	auditservice "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/audit/service"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/authorization"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	donationdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/donationtest"
	paymentdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/providers/pdf"
	signupdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/signup/domain"
	walletdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/wallet/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db/dbtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type paymentMock struct {
	mock.Mock
}

func (m *paymentMock) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (*paymentdomain.Result, error) {
	args := m.Called(provider, string(payload))
	res, _ := args.Get(0).(*paymentdomain.Result)
	return res, args.Error(1)
}

type routerMock struct {
	mock.Mock
}

func (m *routerMock) HandleBankTransfer(ctx context.Context, event *paymentdomain.BankTransferEvent, payload []byte) (*paymentdomain.Result, error) {
	args := m.Called(event)
	res, _ := args.Get(0).(*paymentdomain.Result)
	return res, args.Error(1)
}

func (m *routerMock) HandleCheckoutWebhook(ctx context.Context, event *paymentdomain.CheckoutEvent, payload []byte) (*paymentdomain.Result, error) {
	args := m.Called(event)
	res, _ := args.Get(0).(*paymentdomain.Result)
	return res, args.Error(1)
}

func (m *routerMock) ListEvents(ctx context.Context, filter paymentdomain.EventFilter) ([]*paymentdomain.WebhookEvent, error) {
	args := m.Called(filter)
	events, _ := args.Get(0).([]*paymentdomain.WebhookEvent)
	return events, args.Error(1)
}

type signupMock struct {
	mock.Mock
}

func (m *signupMock) Signup(ctx context.Context, req signupdomain.Request) (*signupdomain.Result, error) {
	args := m.Called(req)
	res, _ := args.Get(0).(*signupdomain.Result)
	return res, args.Error(1)
}

type testServer struct {
	*donationtest.Env
	engine     *gin.Engine
	payments   *paymentMock
	router     *routerMock
	signups    *signupMock
	adminKey   string
	financeKey string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := donationtest.New(t)
	adminKey, adminHash, err := apikeyservice.GenerateKey()
	require.NoError(t, err)
	financeKey, financeHash, err := apikeyservice.GenerateKey()
	require.NoError(t, err)

	cfg := config.Config{
		Environment: "test",
		Wallet:      config.WalletConfig{SystemOwnerID: donationtest.SystemOwnerID},
		Operators: []config.OperatorKey{
			{Name: "lan", Role: authorization.RoleAdmin, Hash: adminHash},
			{Name: "hoa", Role: authorization.RoleFinance, Hash: financeHash},
		},
	}
	enforcer, err := authorization.NewEnforcer(dbtest.Open(t))
	require.NoError(t, err)

	ts := &testServer{
		Env:        env,
		engine:     NewEngine(zap.NewNop(), nil),
		payments:   &paymentMock{},
		router:     &routerMock{},
		signups:    &signupMock{},
		adminKey:   adminKey,
		financeKey: financeKey,
	}
	NewServer(ServerParams{
		Gin:         ts.engine,
		Cfg:         cfg,
		Log:         zap.NewNop(),
		CampaignSvc: env.Campaigns,
		DonationSvc: env.Donations,
		WalletSvc:   env.Wallets,
		PaymentSvc:  ts.payments,
		Router:      ts.router,
		SignupSvc:   ts.signups,
		AuthzSvc:    authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}),
		AuditSvc: auditservice.NewService(auditservice.Params{
			DB:    dbtest.Open(t, &auditdomain.AuditLog{}),
			Log:   zap.NewNop(),
			GenID: env.Node,
			Clock: env.Clock,
			Repo:  auditrepo.Provide(),
		}),
		Operators: apikeyservice.New(apikeyservice.Params{Config: cfg, Log: zap.NewNop()}),
		Receipts:  pdf.New(),
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Header().Get("Content-Type") != "application/pdf" && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	}
	return rec, decoded
}

func bearer(key string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + key}
}

func errorType(body map[string]any) string {
	payload, _ := body["error"].(map[string]any)
	typ, _ := payload["type"].(string)
	return typ
}

func TestCreateDonationAndPollStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.SeedCampaign(t, 500, 77)

	rec, body := ts.do(t, http.MethodPost, "/api/donations", map[string]any{
		"campaign_id": "500",
		"amount":      50000,
		"donor_name":  "Nguyễn Văn A",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := body["data"].(map[string]any)
	checkout := data["checkout"].(map[string]any)
	orderCode := checkout["order_code"].(string)
	assert.Len(t, orderCode, 16)
	assert.NotEmpty(t, checkout["checkout_url"])

	rec, body = ts.do(t, http.MethodGet, "/api/payments/orders/"+orderCode+"/status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := body["data"].(map[string]any)
	assert.Equal(t, string(donationdomain.StatusPending), status["status"])
	assert.Equal(t, orderCode, status["order_code"])
}

func TestCreateDonation_Validation(t *testing.T) {
	ts := newTestServer(t)
	ts.SeedCampaign(t, 500, 77)

	cases := []struct {
		name   string
		body   any
		status int
		typ    string
	}{
		{name: "malformed json", body: "{", status: http.StatusBadRequest, typ: "validation_error"},
		{name: "missing campaign", body: map[string]any{"amount": 50000}, status: http.StatusBadRequest, typ: "validation_error"},
		{name: "below minimum", body: map[string]any{"campaign_id": "500", "amount": 10}, status: http.StatusBadRequest, typ: "validation_error"},
		{name: "unknown campaign", body: map[string]any{"campaign_id": "999", "amount": 50000}, status: http.StatusNotFound, typ: "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := ts.do(t, http.MethodPost, "/api/donations", tc.body, nil)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.typ, errorType(body))
		})
	}
	assert.Empty(t, ts.Gateway.Cancelled())
}

func TestGetPaymentStatus_BadAndUnknownOrderCodes(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/api/payments/orders/abc/status", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := ts.do(t, http.MethodGet, "/api/payments/orders/1234567890123456/status", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorType(body))
}

func TestDonationReceipt_RequiresSettledPayment(t *testing.T) {
	ts := newTestServer(t)
	ts.SeedCampaign(t, 500, 77)
	res, err := ts.Donations.CreateDonation(context.Background(), donationdomain.CreateDonationRequest{CampaignID: "500", Amount: 50000})
	require.NoError(t, err)

	rec, _ := ts.do(t, http.MethodGet, "/api/donations/"+res.DonationID.String()+"/receipt.pdf", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body := ts.do(t, http.MethodGet, "/api/donations/"+res.DonationID.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := body["data"].(map[string]any)
	assert.Len(t, detail["payment_transactions"], 1)
}

func TestWalletReads(t *testing.T) {
	ts := newTestServer(t)
	ts.SeedCampaign(t, 500, 77)
	_, err := ts.Wallets.Credit(context.Background(), walletdomain.CreditRequest{
		OwnerID:     "77",
		Kind:        walletdomain.WalletKindFundraiser,
		Amount:      decimal.NewFromInt(120000),
		Type:        walletdomain.TransactionTypeIncomingTransfer,
		ExternalRef: "FT25152000001",
	})
	require.NoError(t, err)

	rec, body := ts.do(t, http.MethodGet, "/api/wallets/77/balance", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "120000", body["data"].(map[string]any)["balance"])

	rec, body = ts.do(t, http.MethodGet, "/api/wallets/77/transactions?page_size=10", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["data"], 1)
	assert.Equal(t, false, body["page_info"].(map[string]any)["has_more"])

	rec, _ = ts.do(t, http.MethodGet, "/api/wallets/77/stats", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = ts.do(t, http.MethodGet, "/api/wallets/77/balance?kind=savings", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorType(body))

	rec, _ = ts.do(t, http.MethodGet, "/api/wallets/nobody/balance", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/wallets/77/transactions?page_token=***", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBankTransferWebhook_AlwaysAnswersOK(t *testing.T) {
	ts := newTestServer(t)
	ts.payments.On("IngestWebhook", paymentdomain.ProviderSepay, `{"id":1}`).
		Return(&paymentdomain.Result{Outcome: paymentdomain.OutcomeCredited}, nil).Once()
	ts.payments.On("IngestWebhook", paymentdomain.ProviderSepay, `{"id":2}`).
		Return(nil, errors.New("database is locked")).Once()
	ts.payments.On("IngestWebhook", paymentdomain.ProviderSepay, `{"id":3}`).
		Return(nil, paymentdomain.ErrUnauthorized).Once()

	cases := []struct {
		body    string
		success bool
		message string
	}{
		{body: `{"id":1}`, success: true, message: "credited"},
		{body: `{"id":2}`, success: false, message: "processing failed"},
		{body: `{"id":3}`, success: false, message: "unauthorized"},
	}
	for _, tc := range cases {
		rec, body := ts.do(t, http.MethodPost, "/api/webhooks/sepay", tc.body, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, tc.success, body["success"])
		assert.Equal(t, tc.message, body["message"])
	}
	ts.payments.AssertExpectations(t)
}

func TestCheckoutWebhook_RejectsMissingSignature(t *testing.T) {
	ts := newTestServer(t)
	ts.payments.On("IngestWebhook", paymentdomain.ProviderPayOS, `{}`).
		Return(nil, paymentdomain.ErrMissingSignature).Once()
	ts.payments.On("IngestWebhook", paymentdomain.ProviderPayOS, `{"signature":"x"}`).
		Return(nil, paymentdomain.ErrInvalidSignature).Once()
	ts.payments.On("IngestWebhook", paymentdomain.ProviderPayOS, `{"signature":"ok"}`).
		Return(&paymentdomain.Result{Outcome: paymentdomain.OutcomeDuplicate}, nil).Once()

	rec, body := ts.do(t, http.MethodPost, "/api/webhooks/payos", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorType(body))

	rec, _ = ts.do(t, http.MethodPost, "/api/webhooks/payos", `{"signature":"x"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body = ts.do(t, http.MethodPost, "/api/webhooks/payos", `{"signature":"ok"}`, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "duplicate", body["message"])
}

func TestAdminRoutes_RequireOperatorKey(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodGet, "/api/admin/wallets/system", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorType(body))

	rec, _ = ts.do(t, http.MethodGet, "/api/admin/wallets/system", nil, bearer("ffk_live_not-a-real-key"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/api/admin/wallets/system", nil, map[string]string{"Authorization": ts.adminKey})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminWallets(t *testing.T) {
	ts := newTestServer(t)
	ts.SeedAdminWallet(t)
	c := ts.SeedCampaign(t, 500, 77)
	fundraiser, err := ts.Wallets.GetWallet(context.Background(), c.FundraiserWalletOwner(), walletdomain.WalletKindFundraiser)
	require.NoError(t, err)

	rec, body := ts.do(t, http.MethodPost, "/api/admin/wallets", map[string]any{"owner_id": "88"}, bearer(ts.financeKey))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorType(body))

	rec, _ = ts.do(t, http.MethodPost, "/api/admin/wallets", map[string]any{"owner_id": "88"}, bearer(ts.adminKey))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec, body = ts.do(t, http.MethodPost, "/api/admin/wallets", map[string]any{"owner_id": "88"}, bearer(ts.adminKey))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", errorType(body))

	withdrawals := fmt.Sprintf("/api/admin/wallets/%s/withdrawals", fundraiser.ID)
	rec, body = ts.do(t, http.MethodPost, withdrawals, map[string]any{"amount": 1000}, bearer(ts.financeKey))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "insufficient_balance", errorType(body))

	adjustments := fmt.Sprintf("/api/admin/wallets/%s/adjustments", fundraiser.ID)
	rec, _ = ts.do(t, http.MethodPost, adjustments, map[string]any{"amount": 5000, "description": "opening balance"}, bearer(ts.adminKey))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, _ = ts.do(t, http.MethodPost, withdrawals, map[string]any{"amount": 1000, "external_ref": "WD-1"}, bearer(ts.financeKey))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decimal.NewFromInt(4000).Equal(ts.Balance(t, "77", walletdomain.WalletKindFundraiser)))

	rec, _ = ts.do(t, http.MethodPost, adjustments, map[string]any{"amount": 0}, bearer(ts.adminKey))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = ts.do(t, http.MethodGet, "/api/admin/wallets/system", nil, bearer(ts.financeKey))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, donationtest.SystemOwnerID, body["data"].(map[string]any)["owner_id"])

	rec, _ = ts.do(t, http.MethodGet, "/api/admin/audit-logs", nil, bearer(ts.financeKey))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body = ts.do(t, http.MethodGet, "/api/admin/audit-logs?action=wallet.withdraw", nil, bearer(ts.adminKey))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	logs := body["data"].([]any)
	require.Len(t, logs, 1)
	entry := logs[0].(map[string]any)
	assert.Equal(t, "hoa", entry["actor_id"])
	assert.Equal(t, fundraiser.ID.String(), entry["target_id"])
	metadata := entry["metadata"].(map[string]any)
	assert.Equal(t, "-1000", metadata["amount"])
	assert.NotEqual(t, ts.financeKey, metadata["operator_key"])
	assert.Contains(t, metadata["operator_key"], "****")

	rec, _ = ts.do(t, http.MethodGet, "/api/admin/audit-logs?start_at=yesterday", nil, bearer(ts.adminKey))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminPaymentTransitions(t *testing.T) {
	ts := newTestServer(t)
	ts.SeedCampaign(t, 500, 77)
	res, err := ts.Donations.CreateDonation(context.Background(), donationdomain.CreateDonationRequest{CampaignID: "500", Amount: 50000})
	require.NoError(t, err)
	ptID := res.Checkout.PaymentTransactionID.String()

	rec, _ := ts.do(t, http.MethodPost, "/api/admin/payment-transactions/"+ptID+"/override", nil, bearer(ts.financeKey))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/api/admin/payment-transactions/"+ptID+"/refund", map[string]any{"reason": "duplicate"}, bearer(ts.financeKey))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, body := ts.do(t, http.MethodPost, "/api/admin/payment-transactions/"+ptID+"/refund", map[string]any{}, bearer(ts.adminKey))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorType(body))

	rec, _ = ts.do(t, http.MethodPost, "/api/admin/payment-transactions/123/override", nil, bearer(ts.adminKey))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListWebhookEvents(t *testing.T) {
	ts := newTestServer(t)
	ts.router.On("ListEvents", paymentdomain.EventFilter{Provider: "sepay", Outcome: paymentdomain.OutcomeFailed, Limit: 20}).
		Return([]*paymentdomain.WebhookEvent{{Provider: "sepay", ProviderEventID: "42", Outcome: paymentdomain.OutcomeFailed}}, nil).Once()

	rec, body := ts.do(t, http.MethodGet, "/api/admin/webhook-events?provider=SePay&outcome=failed&limit=20", nil, bearer(ts.adminKey))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, body["data"], 1)
	ts.router.AssertExpectations(t)
}

func TestSignup(t *testing.T) {
	ts := newTestServer(t)
	ts.signups.On("Signup", signupdomain.Request{Email: "an@foodfund.vn", Password: "s3cret-pass", Role: "fundraiser"}).
		Return(&signupdomain.Result{Username: "an@foodfund.vn", ExternalID: "sub-1", ProfileID: "p-1", Role: "fundraiser"}, nil).Once()
	ts.signups.On("Signup", signupdomain.Request{Email: "bad"}).
		Return(nil, fmt.Errorf("email: %w", signupdomain.ErrInvalidRequest)).Once()

	rec, body := ts.do(t, http.MethodPost, "/api/signup", map[string]any{
		"email": "an@foodfund.vn", "password": "s3cret-pass", "role": "fundraiser",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "sub-1", body["data"].(map[string]any)["external_id"])

	rec, body = ts.do(t, http.MethodPost, "/api/signup", map[string]any{"email": "bad"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs := body["error"].(map[string]any)["errors"].([]any)
	assert.Equal(t, "invalid_signup_request", errs[0].(map[string]any)["code"])
}

func TestFormatVND(t *testing.T) {
	cases := map[int64]string{
		0:         "0 ₫",
		999:       "999 ₫",
		1000:      "1.000 ₫",
		50000:     "50.000 ₫",
		1250000:   "1.250.000 ₫",
		-25000000: "-25.000.000 ₫",
	}
	for amount, want := range cases {
		assert.Equal(t, want, formatVND(decimal.NewFromInt(amount)))
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		typ    string
	}{
		{err: fmt.Errorf("settle: %w", walletdomain.ErrInsufficientBalance), status: http.StatusUnprocessableEntity, typ: "insufficient_balance"},
		{err: donationdomain.ErrPaymentLinkCreation, status: http.StatusBadGateway, typ: "payment_gateway_error"},
		{err: authorization.ErrForbidden, status: http.StatusForbidden, typ: "forbidden"},
		{err: donationdomain.ErrAmountAboveMaximum, status: http.StatusBadRequest, typ: "validation_error"},
		{err: ErrRateLimited, status: http.StatusTooManyRequests, typ: "rate_limited"},
		{err: errors.New("boom"), status: http.StatusInternalServerError, typ: "internal_error"},
	}
	for _, tc := range cases {
		status, payload := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.typ, payload.Type, tc.err.Error())
	}
}
