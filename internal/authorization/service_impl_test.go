package authorization

import (
	"context"
	"testing"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewEnforcer(dbtest.Open(t))
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorize_RolePolicies(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		role   string
		object string
		action string
		want   error
	}{
		{name: "admin refunds", role: RoleAdmin, object: ObjectPaymentTransaction, action: ActionPaymentRefund},
		{name: "admin adjusts", role: RoleAdmin, object: ObjectWallet, action: ActionWalletAdjust},
		{name: "finance withdraws", role: RoleFinance, object: ObjectWallet, action: ActionWalletWithdraw},
		{name: "finance overrides", role: RoleFinance, object: ObjectPaymentTransaction, action: ActionPaymentOverride},
		{name: "finance cannot refund", role: RoleFinance, object: ObjectPaymentTransaction, action: ActionPaymentRefund, want: ErrForbidden},
		{name: "finance lists webhook events", role: RoleFinance, object: ObjectWebhookEvent, action: ActionWebhookEventView},
		{name: "finance cannot read audit log", role: RoleFinance, object: ObjectAuditLog, action: ActionAuditLogView, want: ErrForbidden},
		{name: "finance cannot create wallets", role: RoleFinance, object: ObjectWallet, action: ActionWalletCreate, want: ErrForbidden},
		{name: "unknown role", role: "donor", object: ObjectWallet, action: ActionWalletCreate, want: ErrInvalidRole},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.Authorize(ctx, "ops-"+tc.role, tc.role, tc.object, tc.action)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAuthorize_RoleChangeReplacesGrouping(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, "minh", RoleAdmin, ObjectPaymentTransaction, ActionPaymentRefund))
	err := svc.Authorize(ctx, "minh", RoleFinance, ObjectPaymentTransaction, ActionPaymentRefund)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAuthorize_RejectsBlankActor(t *testing.T) {
	svc := newTestService(t)
	err := svc.Authorize(context.Background(), " ", RoleAdmin, ObjectWallet, ActionWalletCreate)
	assert.ErrorIs(t, err, ErrInvalidActor)
}
