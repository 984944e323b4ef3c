package idempotency

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/clock"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

type storeParams struct {
	fx.In

	Config    config.Config
	Clock     clock.Clock
	Redis     *redis.Client `optional:"true"`
	AWSConfig *aws.Config   `optional:"true"`
}

func provideStore(p storeParams) (Store, error) {
	switch p.Config.Idempotency.Backend {
	case config.IdempotencyBackendMemory:
		return NewMemoryStore(p.Clock), nil
	case config.IdempotencyBackendDynamoDB:
		if p.AWSConfig == nil {
			return nil, fmt.Errorf("idempotency backend %q requires aws config", p.Config.Idempotency.Backend)
		}
		return NewDynamoStore(dynamodb.NewFromConfig(*p.AWSConfig), p.Config.Idempotency.DynamoTable), nil
	case config.IdempotencyBackendRedis, "":
		if p.Redis == nil {
			return nil, fmt.Errorf("idempotency backend redis requires a redis client")
		}
		return NewRedisStore(p.Redis), nil
	default:
		return nil, fmt.Errorf("unsupported idempotency backend %q", p.Config.Idempotency.Backend)
	}
}

var Module = fx.Module("idempotency",
	fx.Provide(provideStore, NewGuard),
)
