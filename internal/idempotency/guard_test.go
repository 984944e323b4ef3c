package idempotency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/clock"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingStore struct{}

func (failingStore) SetIfAbsent(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func (failingStore) Delete(context.Context, string) error { return errors.New("connection refused") }

func newGuard(store Store) *Guard {
	return NewGuard(Params{Store: store, Config: config.Config{}, Log: zap.NewNop()})
}

func TestKeyFormat(t *testing.T) {
	assert.Equal(t, "sepay:webhook:92704:FT25001", Key(" SePay ", "92704", "FT25001"))
}

func TestCheckAndMarkDetectsDuplicates(t *testing.T) {
	guard := newGuard(NewMemoryStore(nil))
	ctx := context.Background()

	assert.False(t, guard.CheckAndMark(ctx, "sepay:webhook:1:ref"))
	assert.True(t, guard.CheckAndMark(ctx, "sepay:webhook:1:ref"))
	assert.False(t, guard.CheckAndMark(ctx, "sepay:webhook:2:ref"))
}

func TestCheckAndMarkIsAtomicUnderConcurrency(t *testing.T) {
	guard := newGuard(NewMemoryStore(nil))
	var firstSeen atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !guard.CheckAndMark(context.Background(), "sepay:webhook:7:ref") {
				firstSeen.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), firstSeen.Load())
}

func TestCheckAndMarkFailsOpen(t *testing.T) {
	guard := newGuard(failingStore{})
	assert.False(t, guard.CheckAndMark(context.Background(), "k"))
	assert.False(t, guard.CheckAndMark(context.Background(), "k"))
	guard.Release(context.Background(), "k")
}

func TestMarkExpiresAfterTTL(t *testing.T) {
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(fake)
	guard := NewGuard(Params{
		Store:  store,
		Config: config.Config{Idempotency: config.IdempotencyConfig{TTL: time.Hour}},
		Log:    zap.NewNop(),
	})

	ctx := context.Background()
	require.False(t, guard.CheckAndMark(ctx, "k"))
	fake.Advance(59 * time.Minute)
	assert.True(t, guard.CheckAndMark(ctx, "k"))
	fake.Advance(2 * time.Minute)
	assert.False(t, guard.CheckAndMark(ctx, "k"))
}

func TestReleaseAllowsReprocessing(t *testing.T) {
	guard := newGuard(NewMemoryStore(nil))
	ctx := context.Background()

	require.False(t, guard.CheckAndMark(ctx, "k"))
	guard.Release(ctx, "k")
	assert.False(t, guard.CheckAndMark(ctx, "k"))
}

type mockDynamo struct {
	mock.Mock
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.PutItemOutput)
	return out, args.Error(1)
}

func (m *mockDynamo) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*dynamodb.DeleteItemOutput)
	return out, args.Error(1)
}

func TestDynamoStoreConditionalPut(t *testing.T) {
	client := &mockDynamo{}
	store := NewDynamoStore(client, "idem")
	ctx := context.Background()

	client.On("PutItem", ctx, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
		return *in.TableName == "idem" && in.ConditionExpression != nil
	})).Return(&dynamodb.PutItemOutput{}, nil).Once()
	client.On("PutItem", ctx, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{}).Once()

	created, err := store.SetIfAbsent(ctx, "payos:webhook:1:ref", time.Hour)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.SetIfAbsent(ctx, "payos:webhook:1:ref", time.Hour)
	require.NoError(t, err)
	assert.False(t, created)

	client.AssertExpectations(t)
}
