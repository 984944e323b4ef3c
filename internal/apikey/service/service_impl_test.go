package service

import (
	"context"
	"strings"
	"testing"

	apikeydomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/apikey/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAuthenticate(t *testing.T) {
	adminKey, adminHash, err := GenerateKey()
	require.NoError(t, err)
	financeKey, financeHash, err := GenerateKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(adminKey, apikeydomain.KeyPrefix))

	svc := New(Params{
		Log: zap.NewNop(),
		Config: config.Config{Operators: []config.OperatorKey{
			{Name: "minh", Role: "admin", Hash: adminHash},
			{Name: "thu", Role: "finance", Hash: financeHash},
		}},
	})
	ctx := context.Background()

	op, err := svc.Authenticate(ctx, financeKey)
	require.NoError(t, err)
	assert.Equal(t, &apikeydomain.Operator{Name: "thu", Role: "finance"}, op)

	// second lookup is served from the verified cache
	op, err = svc.Authenticate(ctx, financeKey)
	require.NoError(t, err)
	assert.Equal(t, "thu", op.Name)

	op, err = svc.Authenticate(ctx, adminKey)
	require.NoError(t, err)
	assert.Equal(t, "admin", op.Role)

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, apikeydomain.ErrMissingKey)
	_, err = svc.Authenticate(ctx, "sk_test_123")
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidKey)
	_, err = svc.Authenticate(ctx, apikeydomain.KeyPrefix+"deadbeef")
	assert.ErrorIs(t, err, apikeydomain.ErrInvalidKey)
}
