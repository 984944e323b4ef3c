package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/campaign/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/campaign/repository"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/clock"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/db/dbtest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAcceptingDonations(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	cases := []struct {
		name     string
		campaign domain.Campaign
		want     error
	}{
		{"active open window", domain.Campaign{Status: domain.StatusActive, StartsAt: &past, EndsAt: &future}, nil},
		{"active no window", domain.Campaign{Status: domain.StatusActive}, nil},
		{"draft", domain.Campaign{Status: domain.StatusDraft}, domain.ErrCampaignInactive},
		{"not started", domain.Campaign{Status: domain.StatusActive, StartsAt: &future}, domain.ErrCampaignNotStarted},
		{"ended", domain.Campaign{Status: domain.StatusActive, EndsAt: &past}, domain.ErrCampaignEnded},
		{"ends exactly now", domain.Campaign{Status: domain.StatusActive, EndsAt: &now}, domain.ErrCampaignEnded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.campaign.AcceptingDonations(now), tc.want)
		})
	}
}

func TestIncrementReceived(t *testing.T) {
	conn := dbtest.Open(t, &domain.Campaign{})
	repo := repository.Provide()
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	svc := NewService(Params{DB: conn, Log: zap.NewNop(), Repo: repo, Clock: clk})
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, conn, &domain.Campaign{
		ID:           snowflake.ID(500),
		FundraiserID: snowflake.ID(77),
		Title:        "Bữa cơm cho em",
		Status:       domain.StatusActive,
		TargetAmount: decimal.NewFromInt(10_000_000),
		CreatedAt:    clk.Now(),
		UpdatedAt:    clk.Now(),
	}))

	require.NoError(t, svc.IncrementReceived(ctx, conn, 500, decimal.NewFromInt(50000)))
	require.NoError(t, svc.IncrementReceived(ctx, conn, 500, decimal.NewFromInt(20000)))
	require.NoError(t, svc.DecrementReceived(ctx, conn, 500, decimal.NewFromInt(20000)))

	campaign, err := svc.GetCampaign(ctx, 500)
	require.NoError(t, err)
	assert.True(t, campaign.ReceivedAmount.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, int64(1), campaign.DonationCount)

	owner, err := svc.ResolveFundraiser(ctx, conn, 500)
	require.NoError(t, err)
	assert.Equal(t, "77", owner)

	assert.ErrorIs(t, svc.IncrementReceived(ctx, conn, 501, decimal.NewFromInt(1)), domain.ErrCampaignNotFound)
	_, err = svc.ResolveFundraiser(ctx, conn, 501)
	assert.ErrorIs(t, err, domain.ErrCampaignNotFound)
}
