// Package reference encodes campaign and donor identity into a short bank transfer memo token
// and extracts payment order codes from free-text memos.
//
// Token layout (uppercase base36, no separators):
//
//	FF C <campaign:13> <check:1>              17 chars, campaign only
//	FF D <campaign:13> <donor:13> <check:1>   30 chars, campaign and donor
//
// Identifiers are fixed-width so the token is order-preserving and survives banks that strip
// punctuation or whitespace from the description.
package reference

import (
	"errors"
	"strconv"
	"strings"
)

const (
	tokenPrefix   = "FF"
	kindCampaign  = 'C'
	kindDonor     = 'D'
	idWidth       = 13
	campaignLen   = len(tokenPrefix) + 1 + idWidth + 1
	donorTokenLen = len(tokenPrefix) + 1 + 2*idWidth + 1
	alphabet      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var (
	ErrInvalidCampaignID = errors.New("invalid_campaign_id")
	ErrInvalidDonorID    = errors.New("invalid_donor_id")
)

// Reference is the identity recovered from a memo token.
type Reference struct {
	CampaignID int64
	DonorID    *int64
}

// Encode builds a memo token. A nil donor yields the short campaign-only form.
func Encode(campaignID int64, donorID *int64) (string, error) {
	if campaignID <= 0 {
		return "", ErrInvalidCampaignID
	}
	if donorID != nil && *donorID <= 0 {
		return "", ErrInvalidDonorID
	}

	var b strings.Builder
	b.Grow(donorTokenLen)
	b.WriteString(tokenPrefix)
	if donorID == nil {
		b.WriteByte(kindCampaign)
		b.WriteString(pad(campaignID))
	} else {
		b.WriteByte(kindDonor)
		b.WriteString(pad(campaignID))
		b.WriteString(pad(*donorID))
	}
	b.WriteByte(checksum(b.String()[len(tokenPrefix):]))
	return b.String(), nil
}

// Decode scans memo text for the first well-formed token. It never fails loudly: text that
// holds no token, a truncated token or a corrupted checksum all yield ok=false.
func Decode(memo string) (Reference, bool) {
	text := normalize(memo)
	for i := 0; i+campaignLen <= len(text); i++ {
		if text[i] != 'F' || text[i+1] != 'F' {
			continue
		}
		switch text[i+2] {
		case kindDonor:
			if i+donorTokenLen > len(text) {
				continue
			}
			if ref, ok := decodeDonor(text[i : i+donorTokenLen]); ok {
				return ref, true
			}
		case kindCampaign:
			if ref, ok := decodeCampaign(text[i : i+campaignLen]); ok {
				return ref, true
			}
		}
	}
	return Reference{}, false
}

func decodeCampaign(token string) (Reference, bool) {
	body := token[len(tokenPrefix) : len(token)-1]
	if checksum(body) != token[len(token)-1] {
		return Reference{}, false
	}
	campaignID, ok := unpad(body[1 : 1+idWidth])
	if !ok {
		return Reference{}, false
	}
	return Reference{CampaignID: campaignID}, true
}

func decodeDonor(token string) (Reference, bool) {
	body := token[len(tokenPrefix) : len(token)-1]
	if checksum(body) != token[len(token)-1] {
		return Reference{}, false
	}
	campaignID, ok := unpad(body[1 : 1+idWidth])
	if !ok {
		return Reference{}, false
	}
	donorID, ok := unpad(body[1+idWidth:])
	if !ok {
		return Reference{}, false
	}
	return Reference{CampaignID: campaignID, DonorID: &donorID}, true
}

func pad(id int64) string {
	s := strings.ToUpper(strconv.FormatInt(id, 36))
	if len(s) >= idWidth {
		return s
	}
	return strings.Repeat("0", idWidth-len(s)) + s
}

func unpad(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimLeft(s, "0"), 36, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// checksum is a position-weighted mod-36 sum so swapped adjacent characters are detected.
func checksum(body string) byte {
	sum := 0
	for i := 0; i < len(body); i++ {
		sum += (i + 1) * digitValue(body[i])
	}
	return alphabet[sum%len(alphabet)]
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	default:
		return 0
	}
}

func normalize(memo string) string {
	upper := strings.ToUpper(memo)
	var b strings.Builder
	b.Grow(len(upper))
	for i := 0; i < len(upper); i++ {
		c := upper[i]
		if (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') {
			b.WriteByte(c)
		}
	}
	return b.String()
}
