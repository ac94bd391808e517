package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/clientdesk/internal/ledger/domain"
	"github.com/smallbiznis/clientdesk/internal/locker"
	obligationdomain "github.com/smallbiznis/clientdesk/internal/obligation/domain"
	obsmetrics "github.com/smallbiznis/clientdesk/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobGenerateObligations = "generate_obligations"
	JobReconcileStatuses   = "reconcile_statuses"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Generator obligationdomain.Service
	LedgerSvc ledgerdomain.Service
	Locker    *locker.Locker `optional:"true"`
	Config    Config         `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	generator obligationdomain.Service
	ledgerSvc ledgerdomain.Service
	locker    *locker.Locker
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Generator == nil || p.LedgerSvc == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		generator: p.Generator,
		ledgerSvc: p.LedgerSvc,
		locker:    p.Locker,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// A deadline is a soft timeout; the next pass picks up the remainder.
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs one billing pass: obligations are generated first so that
// reconciliation sees every period due so far. When a locker is configured
// and another replica holds the pass, RunOnce returns without running.
func (s *Scheduler) RunOnce(parent context.Context) error {
	release, ok := s.acquire(parent)
	if !ok {
		return nil
	}
	defer release()

	var err error
	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobGenerateObligations, s.GenerateObligationsJob},
		{JobReconcileStatuses, s.ReconcileStatusesJob},
	}
	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
	}
	return err
}

func (s *Scheduler) acquire(ctx context.Context) (func(), bool) {
	noop := func() {}
	if s.locker == nil {
		return noop, true
	}

	token, ok, err := s.locker.TryLock(ctx, s.cfg.LockKey, s.cfg.LockTTL)
	if err != nil {
		// The lock only saves duplicate work, so a broken lock store does
		// not stop the pass.
		obsmetrics.Scheduler().IncRunSkipped(obsmetrics.RunSkippedReasonLockFailure)
		s.log.Warn("scheduler lock unavailable, running without it", zap.Error(err))
		return noop, true
	}
	if !ok {
		obsmetrics.Scheduler().IncRunSkipped(obsmetrics.RunSkippedReasonLockHeld)
		s.log.Info("scheduler pass held by another instance", zap.String("lock_key", s.cfg.LockKey))
		return noop, false
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, s.cfg.LockKey, token); err != nil {
			s.log.Warn("scheduler lock release failed", zap.Error(err))
		}
	}, true
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	if err := s.RunOnce(ctx); err != nil {
		s.log.Warn("scheduler run failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if runLag := time.Since(nextRun); runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// An empty list enables every job.
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(strings.TrimSpace(enabled), jobName) {
			return true
		}
	}
	return false
}

// GenerateObligationsJob materializes upcoming obligations for every
// billable client. Client failures are logged individually and returned
// joined; inserts that succeeded are kept.
func (s *Scheduler) GenerateObligationsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobGenerateObligations)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	result, err := s.generator.Generate(ctx, obligationdomain.GenerateRequest{})
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.AddItemsProcessed(JobGenerateObligations, "inserted", result.Inserted)
	schedMetrics.AddItemsProcessed(JobGenerateObligations, "skipped", result.Skipped)
	schedMetrics.AddItemsProcessed(JobGenerateObligations, "failed", len(result.Failures))
	run.AddProcessed(result.Inserted)

	for _, failure := range result.Failures {
		s.logSchedulerError(ctx, run, "obligation generation failed for client", errors.New(failure.Error),
			zap.String("client_id", failure.ClientID),
			zap.String("reason", failure.Reason),
		)
	}
	if err != nil && len(result.Failures) == 0 {
		s.logSchedulerError(ctx, run, "obligation generation failed", err)
	}
	return err
}

// ReconcileStatusesJob marks pending obligations past their due date as
// overdue.
func (s *Scheduler) ReconcileStatusesJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobReconcileStatuses)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	result, err := s.ledgerSvc.Reconcile(ctx, ledgerdomain.ReconcileRequest{})
	if err != nil {
		s.logSchedulerError(ctx, run, "status reconciliation failed", err)
		return err
	}
	obsmetrics.Scheduler().AddItemsProcessed(JobReconcileStatuses, "overdue", int(result.Updated))
	run.AddProcessed(int(result.Updated))
	return nil
}
