package service

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestBuildDescription(t *testing.T) {
	code := int64(1748746800000123)

	assert.Equal(t, "FoodFund 1748746800000123", buildDescription("FoodFund", code))
	assert.Equal(t, "1748746800000123", buildDescription("", code))
	assert.Equal(t, "quy bua 1748746800000123", buildDescription("Quỹ bữa cơm", code))
	assert.Len(t, buildDescription("A very long campaign prefix", code), 25)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	memo := "Ủng hộ bữa cơm cho các em nhỏ ở điểm trường vùng cao Hà Giang mùa đông này"

	got := truncate(memo, maxMemoLen)
	assert.True(t, utf8.ValidString(got))
	assert.LessOrEqual(t, len(got), maxMemoLen)
	assert.True(t, strings.HasPrefix(memo, got))

	repeated := strings.Repeat("ữ", 30)
	assert.Equal(t, strings.Repeat("ữ", 21), truncate(repeated, maxMemoLen))
	assert.Equal(t, "abc", truncate("abc", maxMemoLen))
}
