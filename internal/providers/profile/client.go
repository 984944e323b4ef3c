// Package profile talks to the user service that owns donor and fundraiser profiles.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured = errors.New("profile_service_not_configured")
	ErrRejected      = errors.New("profile_rejected")
)

type CreateProfileRequest struct {
	ExternalID string `json:"cognitoId"`
	Email      string `json:"email"`
	FullName   string `json:"fullName"`
	Role       string `json:"role"`
}

type createProfileResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	ID      string `json:"id,omitempty"`
}

type Client struct {
	baseURL    string
	http       *http.Client
	maxTries   uint
	log        *zap.Logger
	newBackOff func() backoff.BackOff
}

func New(cfg config.Config, log *zap.Logger) *Client {
	timeout := cfg.Signup.ProfileTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.Signup.ProfileServiceURL), "/"),
		http:     &http.Client{Timeout: timeout},
		maxTries: 3,
		log:      log.Named("profile.client"),
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

// CreateProfile returns the profile id. A response with success=false is ErrRejected and is
// not retried.
func (c *Client) CreateProfile(ctx context.Context, req CreateProfileRequest) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", ErrNotConfigured
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	op := func() (string, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/users", bytes.NewReader(payload))
		if err != nil {
			return "", backoff.Permanent(err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if resp.StatusCode >= 500 {
			return "", fmt.Errorf("profile service: status %d", resp.StatusCode)
		}

		var out createProfileResponse
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", backoff.Permanent(fmt.Errorf("profile service: decode: %w", err))
		}
		if resp.StatusCode >= 300 || !out.Success {
			return "", backoff.Permanent(fmt.Errorf("%w: %s", ErrRejected, out.Error))
		}
		return out.ID, nil
	}

	id, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		c.log.Warn("create profile failed", zap.String("email", req.Email), zap.Error(err))
		return "", err
	}
	return id, nil
}
