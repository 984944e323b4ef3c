package pdf

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReceipt(t *testing.T) {
	r, err := New().GenerateReceipt(context.Background(), ReceiptData{
		ReceiptNumber: "RC-1740816000000123",
		DonationID:    "1866400000000001",
		CampaignTitle: "Bua com cho em",
		DonorName:     "Anonymous",
		OrderCode:     "1740816000000123",
		Gateway:       "payos",
		DatePaid:      "2025-03-01",
		Amount:        "50,000",
	})
	require.NoError(t, err)

	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(b[:4]))
}

func TestGenerateReceipt_RequiresNumber(t *testing.T) {
	_, err := New().GenerateReceipt(context.Background(), ReceiptData{})
	assert.ErrorIs(t, err, ErrEmptyReceipt)
}

func TestJoinNonEmpty(t *testing.T) {
	assert.Equal(t, "0123 / VCB", joinNonEmpty("0123", "", "VCB"))
	assert.Equal(t, "", joinNonEmpty("", ""))
}
