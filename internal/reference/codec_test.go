package reference

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 { return &v }

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name     string
		campaign int64
		donor    *int64
		length   int
	}{
		{name: "campaign only", campaign: 1876543210987654321, length: campaignLen},
		{name: "campaign and donor", campaign: 1876543210987654321, donor: int64Ptr(1876543210987000001), length: donorTokenLen},
		{name: "small ids", campaign: 7, donor: int64Ptr(42), length: donorTokenLen},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := Encode(tc.campaign, tc.donor)
			require.NoError(t, err)
			assert.Len(t, token, tc.length)
			assert.LessOrEqual(t, len(token), 30)

			ref, ok := Decode("Ung ho " + token + " chuc ban thanh cong")
			require.True(t, ok)
			assert.Equal(t, tc.campaign, ref.CampaignID)
			if tc.donor == nil {
				assert.Nil(t, ref.DonorID)
			} else {
				require.NotNil(t, ref.DonorID)
				assert.Equal(t, *tc.donor, *ref.DonorID)
			}
		})
	}
}

func TestEncodeRejectsInvalidIDs(t *testing.T) {
	_, err := Encode(0, nil)
	assert.ErrorIs(t, err, ErrInvalidCampaignID)

	_, err = Encode(10, int64Ptr(-1))
	assert.ErrorIs(t, err, ErrInvalidDonorID)
}

func TestDecodeToleratesCaseAndPunctuation(t *testing.T) {
	token, err := Encode(123456789, int64Ptr(987654321))
	require.NoError(t, err)

	mangled := strings.ToLower(token[:10]) + "-" + token[10:20] + " " + token[20:]
	ref, ok := Decode("MBVCB.8812." + mangled + ".CT tu 0123")
	require.True(t, ok)
	assert.Equal(t, int64(123456789), ref.CampaignID)
	assert.Equal(t, int64(987654321), *ref.DonorID)
}

func TestDecodeReturnsFalseOnTruncationOrCorruption(t *testing.T) {
	token, err := Encode(123456789, int64Ptr(987654321))
	require.NoError(t, err)

	_, ok := Decode(token[:len(token)-4])
	assert.False(t, ok, "truncated token must not decode")

	corrupted := []byte(token)
	corrupted[10], corrupted[11] = corrupted[11], corrupted[10]
	require.NotEqual(t, token, string(corrupted))
	_, ok = Decode(string(corrupted))
	assert.False(t, ok, "transposed characters must fail the checksum")

	for _, memo := range []string{"", "chuyen tien", "FF", "FFC", "FFD0000000000000"} {
		_, ok := Decode(memo)
		assert.False(t, ok, memo)
	}
}

func TestDecodeSkipsBogusCandidates(t *testing.T) {
	token, err := Encode(55, nil)
	require.NoError(t, err)

	ref, ok := Decode("STAFF COFFEE " + token)
	require.True(t, ok)
	assert.Equal(t, int64(55), ref.CampaignID)
}

func TestOrderCodeGeneration(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
	code := NewOrderCode(now)

	formatted := FormatOrderCode(code)
	assert.Len(t, formatted, OrderCodeLen)
	assert.Equal(t, now.UnixMilli(), code/1000)
	assert.GreaterOrEqual(t, code%1000, int64(0))
	assert.Less(t, code%1000, int64(1000))
}

func TestExtractOrderCode(t *testing.T) {
	cases := []struct {
		memo string
		code int64
		ok   bool
	}{
		{memo: "FoodFund 1772353800000123", code: 1772353800000123, ok: true},
		{memo: "1772353800000123", code: 1772353800000123, ok: true},
		{memo: "CT DEN:0123 MBVCB FoodFund1772353800000123 nop tien", code: 1772353800000123, ok: true},
		{memo: "first 1772353800000123 second 1772353800000999", code: 1772353800000123, ok: true},
		{memo: "acct 97040000123456789012 then 1772353800000456", code: 1772353800000456, ok: true},
		{memo: "short 177235380000012", ok: false},
		{memo: "no code here", ok: false},
		{memo: "", ok: false},
	}

	for _, tc := range cases {
		code, ok := ExtractOrderCode(tc.memo)
		assert.Equal(t, tc.ok, ok, tc.memo)
		assert.Equal(t, tc.code, code, tc.memo)
	}
}
