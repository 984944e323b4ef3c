package server

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/apikey/domain"
	obsmetrics "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/observability/metrics"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/pkg/log/ctxlogger"
	"go.uber.org/zap"
)

const (
	contextOperatorKey    = "operator"
	contextOperatorSecret = "operator_key"

	rateLimitReasonClientRate = "client-rate"
)

// OperatorKeyRequired authenticates back-office requests with an operator API key sent as
// a bearer token.
func (s *Server) OperatorKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		operator, err := s.operators.Authenticate(c.Request.Context(), parts[1])
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextOperatorKey, operator)
		c.Set(contextOperatorSecret, parts[1])
		c.Next()
	}
}

func (s *Server) authorizeOperator(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		operator, ok := operatorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), operator.Name, operator.Role, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func operatorFromContext(c *gin.Context) (*apikeydomain.Operator, bool) {
	value, ok := c.Get(contextOperatorKey)
	if !ok {
		return nil, false
	}
	operator, ok := value.(*apikeydomain.Operator)
	return operator, ok && operator != nil
}

// DonationRateLimit throttles checkout creation per client IP. A redis failure lets the
// request through.
func (s *Server) DonationRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.donationLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)
		result, err := s.donationLimiter.Allow(ctx, c.ClientIP())
		if err != nil {
			s.logger(ctx).Warn("donation rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			denyRateLimit(c, s.logger(ctx), endpoint, rateLimitReasonClientRate, result.RetryAfter.Seconds(), s.obsMetrics)
			return
		}
		c.Next()
	}
}

func denyRateLimit(c *gin.Context, log *zap.Logger, endpoint, reason string, retryAfter float64, metrics *obsmetrics.Metrics) {
	log.Warn("rate limit exceeded",
		zap.String("reason", reason),
		zap.String("endpoint", endpoint),
	)
	recordRateLimitDenied(c.Request.Context(), endpoint, reason, metrics)

	seconds := int(retryAfter)
	if float64(seconds) < retryAfter || seconds < 1 {
		seconds++
	}
	c.Header("Retry-After", strconv.Itoa(seconds))
	c.Header("X-Rate-Limited-Reason", reason)
	AbortWithError(c, ErrRateLimited)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}

func (s *Server) logger(ctx context.Context) *zap.Logger {
	return ctxlogger.WithContext(ctx, s.log)
}
