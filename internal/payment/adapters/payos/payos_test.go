package payos

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/donationtest"
	gateway "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/gateway/payos"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_VerifiesSignature(t *testing.T) {
	a := New(donationtest.NewFakeGateway())
	data := map[string]any{
		"orderCode":          1748746800000123,
		"amount":             50000,
		"description":        "FoodFund 1748746800000123",
		"reference":          "FT25152000001",
		"counterAccountName": "NGUYEN VAN A",
	}
	body, err := json.Marshal(map[string]any{
		"code": "00", "desc": "success", "success": true,
		"data": data, "signature": gateway.DataSignature(donationtest.ChecksumKey, data),
	})
	require.NoError(t, err)

	n, err := a.Parse(context.Background(), body, nil)
	require.NoError(t, err)
	event, ok := n.(*domain.CheckoutEvent)
	require.True(t, ok)
	assert.True(t, event.Paid())
	assert.Equal(t, int64(1748746800000123), event.OrderCode)
	assert.Equal(t, "NGUYEN VAN A", event.CounterAccountName)
	assert.Equal(t, "1748746800000123:FT25152000001", event.EventID())
}

func TestParse_MissingSignature(t *testing.T) {
	a := New(donationtest.NewFakeGateway())
	body := []byte(`{"code":"00","success":true,"data":{"orderCode":1748746800000123,"amount":50000}}`)

	_, err := a.Parse(context.Background(), body, nil)
	assert.ErrorIs(t, err, domain.ErrMissingSignature)
}

func TestParse_InvalidSignature(t *testing.T) {
	a := New(donationtest.NewFakeGateway())
	body := []byte(`{"code":"00","success":true,"signature":"abc","data":{"orderCode":1748746800000123,"amount":50000}}`)

	_, err := a.Parse(context.Background(), body, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}
