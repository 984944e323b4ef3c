package payos

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"go.uber.org/zap"
)

const (
	defaultBaseURL    = "https://api-merchant.payos.vn"
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	successCode       = "00"
	orderExistsCode   = "231"
	maxDescriptionLen = 25
	orphanReason      = "Duplicate create after retry"
)

// Webhook is a checkout notification whose signature has been verified.
type Webhook struct {
	Code    string      `json:"code"`
	Desc    string      `json:"desc"`
	Success bool        `json:"success"`
	Data    WebhookData `json:"data"`
}

type Client struct {
	clientID    string
	apiKey      string
	checksumKey string
	baseURL     string
	returnURL   string
	cancelURL   string
	maxRetries  uint
	http        *http.Client
	log         *zap.Logger
	newBackOff  func() backoff.BackOff
}

// NewClient builds the gateway client once at start. Missing credentials fail here rather than
// on the first payment.
func NewClient(cfg config.Config, log *zap.Logger) (*Client, error) {
	pc := cfg.PayOS
	if pc.ClientID == "" || pc.APIKey == "" || pc.ChecksumKey == "" {
		return nil, ErrMissingCredentials
	}

	baseURL := pc.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := pc.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := pc.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	return &Client{
		clientID:    pc.ClientID,
		apiKey:      pc.APIKey,
		checksumKey: pc.ChecksumKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		returnURL:   pc.ReturnURL,
		cancelURL:   pc.CancelURL,
		maxRetries:  uint(retries),
		http:        &http.Client{Timeout: timeout},
		log:         log.Named("payos.client"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}, nil
}

func (c *Client) CreatePaymentLink(ctx context.Context, req CreateLinkRequest) (*PaymentLink, error) {
	if req.OrderCode <= 0 || req.Amount <= 0 {
		return nil, ErrInvalidRequest
	}
	if len(req.Description) > maxDescriptionLen {
		return nil, fmt.Errorf("%w: description longer than %d", ErrInvalidRequest, maxDescriptionLen)
	}
	if req.ReturnURL == "" {
		req.ReturnURL = c.returnURL
	}
	if req.CancelURL == "" {
		req.CancelURL = c.cancelURL
	}

	body := map[string]any{
		"orderCode":   req.OrderCode,
		"amount":      req.Amount,
		"description": req.Description,
		"returnUrl":   req.ReturnURL,
		"cancelUrl":   req.CancelURL,
		"signature":   paymentRequestSignature(c.checksumKey, req),
	}
	if len(req.Items) > 0 {
		body["items"] = req.Items
	}
	if req.BuyerName != "" {
		body["buyerName"] = req.BuyerName
	}
	if req.ExpiredAt != nil {
		body["expiredAt"] = req.ExpiredAt.Unix()
	}

	var link PaymentLink
	attempts, err := c.doCounted(ctx, http.MethodPost, "/v2/payment-requests", body, &link)
	if err != nil {
		if attempts > 1 && orderExists(err) {
			return nil, c.releaseOrphan(ctx, req.OrderCode, err)
		}
		return nil, err
	}
	c.log.Info("payment link created",
		zap.Int64("order_code", req.OrderCode),
		zap.String("payment_link_id", link.PaymentLinkID),
	)
	return &link, nil
}

func (c *Client) GetPaymentLink(ctx context.Context, orderCode int64) (*LinkInfo, error) {
	var info LinkInfo
	path := "/v2/payment-requests/" + strconv.FormatInt(orderCode, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) CancelPaymentLink(ctx context.Context, orderCode int64, reason string) (*LinkInfo, error) {
	var info LinkInfo
	path := "/v2/payment-requests/" + strconv.FormatInt(orderCode, 10) + "/cancel"
	body := map[string]any{}
	if reason = strings.TrimSpace(reason); reason != "" {
		body["cancellationReason"] = reason
	}
	if err := c.do(ctx, http.MethodPost, path, body, &info); err != nil {
		return nil, err
	}
	c.log.Info("payment link cancelled", zap.Int64("order_code", orderCode), zap.String("reason", reason))
	return &info, nil
}

// releaseOrphan handles a retried create that found its order code taken: an earlier attempt
// reached the gateway but its answer was lost, so nobody holds that link's checkout URL.
// The link is cancelled so it cannot collect money the ledger never hears about.
func (c *Client) releaseOrphan(ctx context.Context, orderCode int64, cause error) error {
	info, err := c.GetPaymentLink(ctx, orderCode)
	if err != nil {
		c.log.Warn("orphaned payment link lookup failed", zap.Int64("order_code", orderCode), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrDuplicateOrder, cause)
	}
	if info.Status.Open() {
		if _, err := c.CancelPaymentLink(ctx, orderCode, orphanReason); err != nil {
			c.log.Warn("orphaned payment link not cancelled", zap.Int64("order_code", orderCode), zap.Error(err))
		}
	}
	c.log.Warn("payment link create retried into an existing order",
		zap.Int64("order_code", orderCode),
		zap.String("remote_status", string(info.Status)),
	)
	return fmt.Errorf("%w: %w", ErrDuplicateOrder, cause)
}

func orderExists(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Code == orderExistsCode
}

type webhookEnvelope struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

// VerifyWebhook checks the signature over the data object before anything else is read.
func (c *Client) VerifyWebhook(body []byte) (*Webhook, error) {
	return VerifyWebhook(c.checksumKey, body)
}

// VerifyWebhook parses a checkout notification signed with checksumKey.
func VerifyWebhook(checksumKey string, body []byte) (*Webhook, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrInvalidPayload
	}
	if strings.TrimSpace(env.Signature) == "" {
		return nil, ErrMissingSignature
	}
	if len(env.Data) == 0 {
		return nil, ErrInvalidPayload
	}
	if err := verifyDataSignature(checksumKey, env.Data, env.Signature); err != nil {
		return nil, err
	}

	var data WebhookData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, ErrInvalidPayload
	}
	return &Webhook{Code: env.Code, Desc: env.Desc, Success: env.Success, Data: data}, nil
}

type envelope struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	_, err := c.doCounted(ctx, method, path, body, out)
	return err
}

// doCounted is do that also reports how many attempts were sent.
func (c *Client) doCounted(ctx context.Context, method, path string, body any, out any) (int, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		payload = b
	}

	attempt := 0
	op := func() (struct{}, error) {
		attempt++
		err := c.once(ctx, method, path, payload, out)
		if err == nil {
			return struct{}{}, nil
		}
		var gwErr *Error
		if errors.As(err, &gwErr) && gwErr.Temporary() {
			c.log.Warn("payos request failed, retrying",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxRetries),
	)
	return attempt, err
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-api-key", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{StatusCode: resp.StatusCode, Err: err}
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return &Error{StatusCode: resp.StatusCode, Code: "decode", Desc: err.Error()}
		}
	}
	if resp.StatusCode >= 300 || env.Code != successCode {
		return &Error{StatusCode: resp.StatusCode, Code: env.Code, Desc: env.Desc}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{StatusCode: resp.StatusCode, Code: "decode", Desc: err.Error()}
	}
	return nil
}
