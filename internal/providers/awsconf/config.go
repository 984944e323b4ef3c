// Package awsconf loads the shared AWS SDK configuration used by the archive, the DynamoDB
// idempotency store and the Cognito signup step.
package awsconf

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// New loads credentials from the default chain. Endpoint overrides every service endpoint,
// which is how local stacks are targeted.
func New(cfg config.Config, log *zap.Logger) (*aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region := strings.TrimSpace(cfg.AWS.Region); region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, err
	}
	if endpoint := strings.TrimSpace(cfg.AWS.Endpoint); endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(endpoint)
		log.Info("aws endpoint override", zap.String("endpoint", endpoint))
	}
	return &awsCfg, nil
}

// HasEndpointOverride reports whether clients should use path-style addressing.
func HasEndpointOverride(cfg *aws.Config) bool {
	return cfg != nil && cfg.BaseEndpoint != nil && *cfg.BaseEndpoint != ""
}

var Module = fx.Module("aws",
	fx.Provide(New),
)
