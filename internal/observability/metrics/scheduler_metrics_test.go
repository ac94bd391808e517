package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: SchedulerJobReasonDeadlineExceeded,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SchedulerJobReasonDBLockTimeout,
		},
		{
			name: "serialization_failure",
			err:  fmt.Errorf("reconcile: %w", &pgconn.PgError{Code: "40001"}),
			want: SchedulerJobReasonSerializationFailure,
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: SchedulerJobReasonUniqueViolation,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: SchedulerJobReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestClassifySchedulerErrorType(t *testing.T) {
	if got := ClassifySchedulerErrorType(context.Canceled); got != SchedulerErrorTypeDeadlineExceeded {
		t.Fatalf("expected deadline_exceeded, got %q", got)
	}
	if got := ClassifySchedulerErrorType(gorm.ErrRecordNotFound); got != SchedulerErrorTypeBusinessRule {
		t.Fatalf("expected business_rule, got %q", got)
	}
	if got := ClassifySchedulerErrorType(&pgconn.PgError{Code: "08006"}); got != SchedulerErrorTypeDB {
		t.Fatalf("expected db, got %q", got)
	}
	if !IsSchedulerErrorRetryable(&pgconn.PgError{Code: "08006"}) {
		t.Fatalf("expected db errors to be retryable")
	}
}

func TestAddItemsProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "clientdesk",
		Environment: "test",
	})

	metrics.AddItemsProcessed("generate_obligations", "inserted", 3)
	metrics.AddItemsProcessed("generate_obligations", "inserted", 0)

	got := testutil.ToFloat64(metrics.itemsProcessed.WithLabelValues("generate_obligations", "inserted"))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}

func TestJobCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{ServiceName: "clientdesk", Environment: "test"})

	metrics.IncJobRun("reconcile_statuses")
	metrics.IncJobTimeout("reconcile_statuses")
	metrics.IncJobError("reconcile_statuses", context.DeadlineExceeded)
	metrics.IncRunSkipped(RunSkippedReasonLockHeld)
	metrics.ObserveJobDuration("reconcile_statuses", 150*time.Millisecond)
	metrics.ObserveRunLoopLag(-time.Second)

	if got := testutil.ToFloat64(metrics.jobRuns.WithLabelValues("reconcile_statuses")); got != 1 {
		t.Fatalf("expected 1 run, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.jobErrors.WithLabelValues("reconcile_statuses", SchedulerJobReasonDeadlineExceeded)); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.runsSkipped.WithLabelValues(RunSkippedReasonLockHeld)); got != 1 {
		t.Fatalf("expected 1 skipped run, got %v", got)
	}
}
