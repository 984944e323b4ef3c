package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-co-op/gocron/v2"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/clock"
	donationdomain "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/donation/domain"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/gateway/payos"
	obsmetrics "github.com/phuoctmse/FoodFund-Microservices-sub001/internal/observability/metrics"
	"github.com/phuoctmse/FoodFund-Microservices-sub001/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobReapStaleLinks = "stale_link_reaper"

	cancelReason = "Payment link expired"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    Config `optional:"true"`
	Donations donationdomain.Service
	Gateway   payos.Gateway
	Locker    *ratelimit.Locker            `optional:"true"`
	Metrics   *obsmetrics.SchedulerMetrics `optional:"true"`
}

type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	donations donationdomain.Service
	gateway   payos.Gateway
	locker    *ratelimit.Locker
	metrics   *obsmetrics.SchedulerMetrics

	cron gocron.Scheduler
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.Donations == nil || p.Gateway == nil {
		return nil, ErrInvalidConfig
	}
	metrics := p.Metrics
	if metrics == nil {
		metrics = obsmetrics.Scheduler()
	}
	return &Scheduler{
		db:        p.DB,
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		donations: p.Donations,
		gateway:   p.Gateway,
		locker:    p.Locker,
		metrics:   metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	s.metrics.IncJobRun(name)

	err := fn(ctx)
	s.metrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft failure; the next run picks up the remainder
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce performs a single reaper pass under the cluster-wide job lock.
func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.withJobLock(parent, JobReapStaleLinks, func(ctx context.Context) error {
		return s.runJob(ctx, JobReapStaleLinks, s.cfg.BatchSize, s.cfg.JobTimeout, s.ReapStaleLinksJob)
	})
}

// Start registers the reaper on its cron schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	cron, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return err
	}
	_, err = cron.NewJob(
		gocron.CronJob(s.cfg.Cron, false),
		gocron.NewTask(func() {
			if err := s.RunOnce(ctx); err != nil {
				s.log.Error("scheduler.job.failed", zap.String("job", JobReapStaleLinks), zap.Error(err))
			}
		}),
		gocron.WithName(JobReapStaleLinks),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = cron.Shutdown()
		return fmt.Errorf("register %s: %w", JobReapStaleLinks, err)
	}
	cron.Start()
	s.cron = cron
	s.log.Info("scheduler started", zap.String("job", JobReapStaleLinks), zap.String("cron", s.cfg.Cron))
	return nil
}

func (s *Scheduler) Stop() error {
	if s.cron == nil {
		return nil
	}
	return s.cron.Shutdown()
}

// ReapStaleLinksJob closes checkout links that stayed PENDING past the stale threshold.
// Every item runs in its own short transaction; one failure does not stop the run.
// The whole stale set is walked page by page, so links left PENDING (paid at the
// gateway, or failed this run) never hide newer ones.
func (s *Scheduler) ReapStaleLinksJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	q := donationdomain.StaleQuery{
		Gateway: payos.Provider,
		Before:  s.clock.Now().Add(-s.cfg.StaleAfter),
		Limit:   s.cfg.BatchSize,
	}

	for {
		items, err := s.donations.ListStalePending(ctx, q)
		if err != nil {
			return err
		}
		for _, pt := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.reapItem(ctx, run, pt)
		}
		if len(items) < q.Limit {
			return nil
		}
		last := items[len(items)-1]
		q.After = &donationdomain.StaleCursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
}

func (s *Scheduler) reapItem(ctx context.Context, run *jobRun, pt *donationdomain.PaymentTransaction) {
	outcome, err := s.reapOne(ctx, pt)
	s.metrics.IncBatchProcessed(JobReapStaleLinks, outcome)
	if err != nil {
		s.metrics.IncJobError(JobReapStaleLinks, err)
		s.logSchedulerError(ctx, run, "scheduler.reap.item_failed", JobReapStaleLinks, err,
			zap.String("payment_transaction_id", pt.ID.String()),
			zap.Int64("order_code", pt.OrderCode),
		)
		return
	}
	run.AddProcessed(1)
	s.logger(ctx).Debug("scheduler.reap.item",
		zap.String("payment_transaction_id", pt.ID.String()),
		zap.Int64("order_code", pt.OrderCode),
		zap.String("outcome", outcome),
	)
}

func (s *Scheduler) reapOne(parent context.Context, pt *donationdomain.PaymentTransaction) (string, error) {
	ctx, cancel := context.WithTimeout(parent, s.cfg.ItemTimeout)
	defer cancel()

	link, err := s.gateway.GetPaymentLink(ctx, pt.OrderCode)
	if err != nil {
		return obsmetrics.ReapOutcomeFailed, fmt.Errorf("get payment link: %w", err)
	}

	var outcome, description string
	switch {
	case link.Status == payos.LinkStatusPaid || link.Status == payos.LinkStatusUnderpaid:
		// money moved at the gateway; the webhook settles it
		return obsmetrics.ReapOutcomeAlreadyPaid, nil
	case link.Status.Open():
		if _, err := s.gateway.CancelPaymentLink(ctx, pt.OrderCode, cancelReason); err != nil {
			return obsmetrics.ReapOutcomeFailed, fmt.Errorf("cancel payment link: %w", err)
		}
		outcome = obsmetrics.ReapOutcomeExpired
		description = cancelReason
	default:
		outcome = obsmetrics.ReapOutcomeClosedRemote
		description = fmt.Sprintf("Payment link %s at gateway", link.Status)
	}

	var updated bool
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = s.donations.MarkFailedTx(ctx, tx, pt.ID, donationdomain.ErrorCodeExpired, description)
		return err
	})
	if err != nil {
		return obsmetrics.ReapOutcomeFailed, fmt.Errorf("mark payment failed: %w", err)
	}
	if !updated {
		return obsmetrics.ReapOutcomeAlreadyPaid, nil
	}
	return outcome, nil
}
