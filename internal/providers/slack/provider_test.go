package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSink_PostsFormattedEvent(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Config{Slack: config.SlackConfig{WebhookURL: srv.URL, Channel: "#payments"}}
	sink := NewSink(cfg, New(cfg, zap.NewNop()))

	err := sink.Notify(context.Background(), notify.Event{
		Type:   notify.EventDonationCreated,
		Title:  "New donation",
		Fields: map[string]string{"order_code": "1740816000000123", "amount": "50000"},
	})
	require.NoError(t, err)
	assert.Equal(t, "#payments", got["channel"])
	assert.Equal(t, "*New donation*\n• amount: 50000\n• order_code: 1740816000000123", got["text"])
}

func TestWebhookProvider_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewWebhookProvider(srv.URL, 0).PostMessage(context.Background(), "", "hi")
	assert.Error(t, err)
}

func TestNew_WithoutURLIsNoop(t *testing.T) {
	p := New(config.Config{}, zap.NewNop())
	assert.IsType(t, &NoOpProvider{}, p)
	assert.NoError(t, p.PostMessage(context.Background(), "", "ignored"))
}
