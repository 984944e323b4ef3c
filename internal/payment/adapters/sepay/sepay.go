// Package sepay parses bank-transfer notifications pushed by SePay.
package sepay

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/payment/domain"
)

const authScheme = "apikey"

type Adapter struct {
	apiKey string
}

func New(apiKey string) *Adapter {
	return &Adapter{apiKey: strings.TrimSpace(apiKey)}
}

func (a *Adapter) Provider() string {
	return domain.ProviderSepay
}

// Parse authenticates the "Authorization: Apikey <key>" header before reading the body.
func (a *Adapter) Parse(_ context.Context, payload []byte, headers http.Header) (domain.Notification, error) {
	if err := a.authenticate(headers.Get("Authorization")); err != nil {
		return nil, err
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	var event domain.BankTransferEvent
	if err := decoder.Decode(&event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if event.ID <= 0 {
		return nil, domain.ErrInvalidEvent
	}
	event.TransferType = strings.ToLower(strings.TrimSpace(event.TransferType))
	return &event, nil
}

func (a *Adapter) authenticate(header string) error {
	if a.apiKey == "" {
		return domain.ErrUnauthorized
	}
	scheme, key, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, authScheme) {
		return domain.ErrUnauthorized
	}
	key = strings.TrimSpace(key)
	if subtle.ConstantTimeCompare([]byte(key), []byte(a.apiKey)) != 1 {
		return domain.ErrUnauthorized
	}
	return nil
}
