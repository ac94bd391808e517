package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clientdesk/internal/billingcycle"
	clientdomain "github.com/smallbiznis/clientdesk/internal/client/domain"
	"github.com/smallbiznis/clientdesk/internal/clock"
	"github.com/smallbiznis/clientdesk/internal/config"
	ledgerdomain "github.com/smallbiznis/clientdesk/internal/ledger/domain"
	"github.com/smallbiznis/clientdesk/internal/obligation/domain"
	obslogger "github.com/smallbiznis/clientdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/clientdesk/internal/observability/metrics"
	"github.com/smallbiznis/clientdesk/pkg/db"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("clientdesk/obligation")

const (
	failureReasonInvalidConfiguration = "invalid_configuration"
	failureReasonStoreUnavailable     = "store_unavailable"
	failureReasonCanceled             = "canceled"
)

var ErrClientNotFound = errors.New("client_not_found")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	ClientRepo clientdomain.Repository
	LedgerRepo ledgerdomain.Repository
	BillingCfg *config.BillingConfigHolder `optional:"true"`
	ObsMetrics *obsmetrics.Metrics         `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	clientRepo clientdomain.Repository
	ledgerRepo ledgerdomain.Repository
	billingCfg *config.BillingConfigHolder
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("obligation.service"),
		genID:      p.GenID,
		clock:      clk,
		clientRepo: p.ClientRepo,
		ledgerRepo: p.LedgerRepo,
		billingCfg: p.BillingCfg,
		obsMetrics: p.ObsMetrics,
	}
}

type clientOutcome struct {
	clientID snowflake.ID
	inserted int
	skipped  int
	reason   string
	err      error
}

// Generate inserts the missing obligations of every billable client (or the
// one named in the request) up to the configured horizon. Existing periods
// are skipped. Inserts are independent, so work done before a failure is
// kept. Per-client failures are collected into the result and joined into
// the returned error.
func (s *Service) Generate(ctx context.Context, req domain.GenerateRequest) (domain.GenerateResult, error) {
	settings := s.billingCfg.Get()
	asOf := s.clock.Now()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}
	asOf = billingcycle.DateOf(asOf)
	horizon := billingcycle.Horizon(asOf, settings.HorizonMonths)

	ctx, span := tracer.Start(ctx, "obligation.generate")
	defer span.End()
	span.SetAttributes(
		attribute.String("as_of", asOf.Format("2006-01-02")),
		attribute.String("horizon", horizon.Format("2006-01-02")),
	)

	result := domain.GenerateResult{
		AsOf:     asOf,
		Horizon:  horizon,
		Failures: []domain.ClientFailure{},
	}

	clients, err := s.loadClients(ctx, req.ClientID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load clients failed")
		return result, err
	}

	workers := settings.GeneratorConcurrency
	if workers < 1 {
		workers = 1
	}
	p := pool.NewWithResults[clientOutcome]().WithMaxGoroutines(workers)
	for _, c := range clients {
		p.Go(func() clientOutcome {
			return s.generateForClient(ctx, c, asOf, horizon)
		})
	}
	outcomes := p.Wait()
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].clientID < outcomes[j].clientID })

	var errs []error
	for _, outcome := range outcomes {
		result.ClientsProcessed++
		result.Inserted += outcome.inserted
		result.Skipped += outcome.skipped
		if outcome.err == nil {
			continue
		}
		errs = append(errs, outcome.err)
		result.Failures = append(result.Failures, domain.ClientFailure{
			ClientID: outcome.clientID.String(),
			Reason:   outcome.reason,
			Error:    outcome.err.Error(),
		})
		s.obsMetrics.RecordGenerationFailure(ctx, outcome.reason)
	}

	span.SetAttributes(
		attribute.Int("clients", result.ClientsProcessed),
		attribute.Int("inserted", result.Inserted),
		attribute.Int("skipped", result.Skipped),
		attribute.Int("failures", len(result.Failures)),
	)

	s.log.Info("obligation generation finished",
		zap.Time("as_of", asOf),
		zap.Time("horizon", horizon),
		zap.Int("clients", result.ClientsProcessed),
		zap.Int("inserted", result.Inserted),
		zap.Int("skipped", result.Skipped),
		zap.Int("failures", len(result.Failures)),
	)

	if len(errs) > 0 {
		span.SetStatus(codes.Error, "client failures")
		return result, errors.Join(errs...)
	}
	return result, nil
}

func (s *Service) loadClients(ctx context.Context, rawID string) ([]clientdomain.Client, error) {
	rawID = strings.TrimSpace(rawID)
	if rawID == "" {
		clients, err := s.clientRepo.ListBillable(ctx, s.db)
		if err != nil {
			return nil, fmt.Errorf("%w: list billable clients: %w", ledgerdomain.ErrStoreUnavailable, err)
		}
		return clients, nil
	}

	id, err := snowflake.ParseString(rawID)
	if err != nil || id == 0 {
		return nil, clientdomain.ErrInvalidID
	}
	client, err := s.clientRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("%w: find client %s: %w", ledgerdomain.ErrStoreUnavailable, id, err)
	}
	if client == nil {
		return nil, ErrClientNotFound
	}
	if !client.Billing.Billable() {
		return []clientdomain.Client{}, nil
	}
	return []clientdomain.Client{*client}, nil
}

func (s *Service) generateForClient(ctx context.Context, c clientdomain.Client, asOf, horizon time.Time) clientOutcome {
	outcome := clientOutcome{clientID: c.ID}
	frequency := string(c.Billing.Frequency)

	periods, err := billingcycle.Calculate(c.Billing, asOf, horizon)
	if err != nil {
		outcome.reason = failureReasonInvalidConfiguration
		outcome.err = fmt.Errorf("client %s: %w", c.ID, err)
		return outcome
	}

	for _, period := range periods {
		if err := ctx.Err(); err != nil {
			outcome.reason = failureReasonCanceled
			outcome.err = fmt.Errorf("client %s: %w", c.ID, err)
			break
		}

		created, err := s.insertPeriod(ctx, c, period)
		if err != nil {
			outcome.reason = failureReasonStoreUnavailable
			outcome.err = fmt.Errorf("client %s period %s: %w: %w", c.ID, period.Key, ledgerdomain.ErrStoreUnavailable, err)
			break
		}
		if created {
			outcome.inserted++
		} else {
			outcome.skipped++
		}
	}

	s.obsMetrics.RecordObligationsGenerated(ctx, frequency, outcome.inserted)
	s.obsMetrics.RecordObligationsSkipped(ctx, frequency, outcome.skipped)
	if outcome.inserted > 0 {
		obslogger.WithClient(obslogger.WithContext(ctx, s.log), c.ID.String()).Debug("obligations generated",
			zap.Int("inserted", outcome.inserted),
			zap.Int("skipped", outcome.skipped),
		)
	}
	return outcome
}

// insertPeriod writes one obligation unless the period already has one. A
// unique violation from a concurrent pass counts as already present.
func (s *Service) insertPeriod(ctx context.Context, c clientdomain.Client, period billingcycle.Period) (bool, error) {
	exists, err := s.ledgerRepo.ExistsForPeriod(ctx, s.db, c.ID, period.Key)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	now := s.clock.Now().UTC()
	key := period.Key
	obligation := ledgerdomain.Obligation{
		ID:             s.genID.Generate(),
		ClientID:       c.ID,
		Amount:         period.Amount,
		DueDate:        period.DueDate,
		Status:         ledgerdomain.StatusPending,
		AutoGenerated:  true,
		CyclePeriodKey: &key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := s.ledgerRepo.InsertIfAbsent(ctx, s.db, &obligation)
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return created, nil
}
