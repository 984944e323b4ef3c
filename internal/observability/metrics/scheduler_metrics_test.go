package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

type gatewayErr struct{}

func (gatewayErr) Error() string        { return "payos unavailable" }
func (gatewayErr) GatewayFailure() bool { return true }

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "gateway", err: fmt.Errorf("cancel link: %w", gatewayErr{}), want: SchedulerJobReasonGateway},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIncBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewSchedulerMetrics(registry, Config{ServiceName: "foodfund", Environment: "test"})

	metrics.IncBatchProcessed("stale_link_reaper", ReapOutcomeExpired)
	metrics.IncBatchProcessed("stale_link_reaper", ReapOutcomeExpired)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("stale_link_reaper", ReapOutcomeExpired))
	if got != 2 {
		t.Fatalf("expected processed count 2, got %v", got)
	}
}
