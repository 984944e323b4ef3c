package reference

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"time"
)

// OrderCodeLen is the width of an order code: 13 digits of unix millis plus a 3 digit suffix.
const OrderCodeLen = 16

var orderCodePattern = regexp.MustCompile(`(?:^|\D)(\d{16})(?:\D|$)`)

// NewOrderCode derives an order code from the submission time and a random suffix in [0, 999].
func NewOrderCode(now time.Time) int64 {
	return now.UnixMilli()*1000 + rand.Int64N(1000)
}

// FormatOrderCode renders an order code zero-padded to OrderCodeLen digits.
func FormatOrderCode(code int64) string {
	s := strconv.FormatInt(code, 10)
	for len(s) < OrderCodeLen {
		s = "0" + s
	}
	return s
}

// ExtractOrderCode returns the first standalone 16 digit run in memo. Runs that are part of a
// longer digit sequence, such as bank account numbers, are not order codes.
func ExtractOrderCode(memo string) (int64, bool) {
	match := orderCodePattern.FindStringSubmatch(memo)
	if len(match) < 2 {
		return 0, false
	}
	code, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil || code <= 0 {
		return 0, false
	}
	return code, true
}
