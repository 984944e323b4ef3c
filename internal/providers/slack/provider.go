package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/notify"
	"go.uber.org/zap"
)

type Provider interface {
	PostMessage(ctx context.Context, channelID string, message string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) PostMessage(ctx context.Context, channelID string, message string) error {
	return nil
}

// WebhookProvider posts to a Slack incoming webhook.
type WebhookProvider struct {
	url  string
	http *http.Client
}

func NewWebhookProvider(url string, timeout time.Duration) *WebhookProvider {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookProvider{url: url, http: &http.Client{Timeout: timeout}}
}

func (p *WebhookProvider) PostMessage(ctx context.Context, channelID string, message string) error {
	body := map[string]string{"text": message}
	if channelID != "" {
		body["channel"] = channelID
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack webhook: status %d", resp.StatusCode)
	}
	return nil
}

// New returns the webhook provider, or a no-op one when no webhook URL is configured.
func New(cfg config.Config, log *zap.Logger) Provider {
	if strings.TrimSpace(cfg.Slack.WebhookURL) == "" {
		log.Info("slack webhook not configured, notifications disabled")
		return &NoOpProvider{}
	}
	return NewWebhookProvider(cfg.Slack.WebhookURL, 0)
}

// Sink adapts a Provider to the notify dispatcher.
type Sink struct {
	provider Provider
	channel  string
}

func NewSink(cfg config.Config, provider Provider) *Sink {
	return &Sink{provider: provider, channel: cfg.Slack.Channel}
}

func (s *Sink) Notify(ctx context.Context, event notify.Event) error {
	return s.provider.PostMessage(ctx, s.channel, Format(event))
}

// Format renders an event as a Slack mrkdwn message with fields in key order.
func Format(event notify.Event) string {
	var b strings.Builder
	title := event.Title
	if title == "" {
		title = event.Type
	}
	b.WriteString("*")
	b.WriteString(title)
	b.WriteString("*")

	keys := make([]string, 0, len(event.Fields))
	for k := range event.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("\n• ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(event.Fields[k])
	}
	return b.String()
}
