package sepay

import (
	"context"
	"net/http"
	"testing"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const body = `{
	"id": 92704,
	"gateway": "Vietcombank",
	"transactionDate": "2025-06-01 10:00:00",
	"accountNumber": "0071000888888",
	"code": null,
	"content": "FoodFund 1748746800000123",
	"transferType": "IN",
	"transferAmount": 50000,
	"accumulated": 19077000,
	"subAccount": null,
	"referenceCode": "MBVCB.3278907687",
	"description": "BankAPINotify FoodFund 1748746800000123"
}`

func headers(v string) http.Header {
	h := http.Header{}
	if v != "" {
		h.Set("Authorization", v)
	}
	return h
}

func TestParse_Authenticated(t *testing.T) {
	a := New("secret-key")

	n, err := a.Parse(context.Background(), []byte(body), headers("Apikey secret-key"))
	require.NoError(t, err)

	event, ok := n.(*domain.BankTransferEvent)
	require.True(t, ok)
	assert.Equal(t, int64(92704), event.ID)
	assert.Equal(t, "92704", event.EventID())
	assert.Equal(t, domain.TransferIn, event.TransferType)
	assert.Equal(t, int64(50000), event.TransferAmount)
	assert.Equal(t, "FoodFund 1748746800000123", event.Memo())
	assert.Nil(t, event.SubAccount)
}

func TestParse_RejectsBadKey(t *testing.T) {
	a := New("secret-key")
	for _, h := range []string{"", "Apikey wrong", "Bearer secret-key", "secret-key"} {
		_, err := a.Parse(context.Background(), []byte(body), headers(h))
		assert.ErrorIs(t, err, domain.ErrUnauthorized, h)
	}

	_, err := New("").Parse(context.Background(), []byte(body), headers("Apikey "))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestParse_RejectsMalformedBody(t *testing.T) {
	a := New("secret-key")

	_, err := a.Parse(context.Background(), []byte("{"), headers("apikey secret-key"))
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	_, err = a.Parse(context.Background(), []byte(`{"transferAmount": 1}`), headers("apikey secret-key"))
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}
