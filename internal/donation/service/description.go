package service

import (
	"strings"
	"unicode/utf8"

	"github.com/gosimple/slug"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/reference"
)

const (
	maxDescriptionLen = 25
	maxItemNameLen    = 50
	maxMemoLen        = 64
)

// buildDescription renders "<prefix> <order code>" within the checkout gateway's 25 character
// limit. The order code is never truncated; the prefix gives way.
func buildDescription(prefix string, orderCode int64) string {
	code := reference.FormatOrderCode(orderCode)
	room := maxDescriptionLen - len(code) - 1
	prefix = foldASCII(prefix)
	if room <= 0 || prefix == "" {
		return code
	}
	if len(prefix) > room {
		prefix = strings.TrimSpace(prefix[:room])
	}
	return prefix + " " + code
}

// foldASCII strips diacritics so banks that reject non-ASCII memos keep the text.
func foldASCII(s string) string {
	s = strings.TrimSpace(s)
	if isPlainASCII(s) {
		return s
	}
	return strings.ReplaceAll(slug.Make(s), "-", " ")
}

func isPlainASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x80 {
			return false
		}
		if !(c == ' ' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func itemName(title string) string {
	name := slug.Make(title)
	if name == "" {
		return "donation"
	}
	if len(name) > maxItemNameLen {
		name = strings.TrimRight(name[:maxItemNameLen], "-")
	}
	return name
}

// truncate caps s at n bytes without splitting a multibyte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
