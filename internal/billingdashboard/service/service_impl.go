package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clientdesk/internal/billingcycle"
	dashboard "github.com/smallbiznis/clientdesk/internal/billingdashboard/domain"
	"github.com/smallbiznis/clientdesk/internal/billingdashboard/rollup"
	clientdomain "github.com/smallbiznis/clientdesk/internal/client/domain"
	"github.com/smallbiznis/clientdesk/internal/clock"
	"github.com/smallbiznis/clientdesk/internal/config"
	ledgerdomain "github.com/smallbiznis/clientdesk/internal/ledger/domain"
	taskdomain "github.com/smallbiznis/clientdesk/internal/task/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	LedgerRepo ledgerdomain.Repository
	ClientRepo clientdomain.Repository
	TaskRepo   taskdomain.Repository
	Reconciler ledgerdomain.Service         `optional:"true"`
	BillingCfg *config.BillingConfigHolder `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	ledgerRepo ledgerdomain.Repository
	clientRepo clientdomain.Repository
	taskRepo   taskdomain.Repository
	reconciler ledgerdomain.Service
	billingCfg *config.BillingConfigHolder
}

func NewService(p Params) dashboard.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("billingdashboard.service"),
		clock:      clk,
		ledgerRepo: p.LedgerRepo,
		clientRepo: p.ClientRepo,
		taskRepo:   p.TaskRepo,
		reconciler: p.Reconciler,
		billingCfg: p.BillingCfg,
	}
}

// scope is a resolved report request.
type scope struct {
	month    time.Time
	today    time.Time
	clientID *snowflake.ID
}

func (s *Service) resolve(ctx context.Context, req dashboard.ReportRequest) (scope, error) {
	now := billingcycle.DateOf(s.clock.Now())
	today := now
	if req.AsOf != nil {
		today = billingcycle.DateOf(*req.AsOf)
	}
	sc := scope{today: today, month: billingcycle.MonthStart(today)}

	if raw := strings.TrimSpace(req.Month); raw != "" {
		month, err := rollup.ParseMonth(raw)
		if err != nil {
			return scope{}, err
		}
		sc.month = month
	}
	if raw := strings.TrimSpace(req.ClientID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return scope{}, dashboard.ErrInvalidClient
		}
		sc.clientID = &id
	}

	// Reports read overdue amounts, so statuses are brought up to date first.
	// A future as_of never reconciles past the current date.
	if s.reconciler != nil {
		asOf := sc.today
		if asOf.After(now) {
			asOf = now
		}
		if _, err := s.reconciler.Reconcile(ctx, ledgerdomain.ReconcileRequest{AsOf: &asOf}); err != nil {
			return scope{}, err
		}
	}
	return sc, nil
}

func (s *Service) obligations(ctx context.Context, sc scope, from, to time.Time, status *ledgerdomain.Status) ([]ledgerdomain.Obligation, error) {
	filter := ledgerdomain.ListFilter{ClientID: sc.clientID, Status: status}
	if !from.IsZero() {
		filter.DueFrom = &from
	}
	if !to.IsZero() {
		filter.DueTo = &to
	}
	items, err := s.ledgerRepo.List(ctx, s.db, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: list obligations: %w", ledgerdomain.ErrStoreUnavailable, err)
	}
	return items, nil
}

func (s *Service) clients(ctx context.Context, sc scope) ([]clientdomain.Client, error) {
	if sc.clientID != nil {
		client, err := s.clientRepo.FindByID(ctx, s.db, *sc.clientID)
		if err != nil {
			return nil, fmt.Errorf("%w: find client: %w", ledgerdomain.ErrStoreUnavailable, err)
		}
		if client == nil {
			return nil, dashboard.ErrInvalidClient
		}
		return []clientdomain.Client{*client}, nil
	}
	clients, err := s.clientRepo.ListAll(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: list clients: %w", ledgerdomain.ErrStoreUnavailable, err)
	}
	return clients, nil
}

func (s *Service) Overview(ctx context.Context, req dashboard.ReportRequest) (dashboard.Overview, error) {
	sc, err := s.resolve(ctx, req)
	if err != nil {
		return dashboard.Overview{}, err
	}
	settings := s.billingCfg.Get()
	trendMonths := settings.TrendMonths
	if trendMonths <= 0 {
		trendMonths = rollup.DefaultTrendMonths
	}

	trendStart := sc.month.AddDate(0, -(trendMonths - 1), 0)
	if prev := sc.month.AddDate(0, -1, 0); prev.Before(trendStart) {
		trendStart = prev
	}
	window, err := s.obligations(ctx, sc, trendStart, billingcycle.MonthEnd(sc.month), nil)
	if err != nil {
		return dashboard.Overview{}, err
	}
	upcoming, err := s.upcomingItems(ctx, sc, settings.UpcomingWindowDays)
	if err != nil {
		return dashboard.Overview{}, err
	}
	paid := ledgerdomain.StatusPaid
	paidItems, err := s.obligations(ctx, sc, time.Time{}, time.Time{}, &paid)
	if err != nil {
		return dashboard.Overview{}, err
	}
	clients, err := s.clients(ctx, sc)
	if err != nil {
		return dashboard.Overview{}, err
	}
	stats, err := s.taskRepo.MonthlyStats(ctx, s.db, sc.month, sc.clientID)
	if err != nil {
		return dashboard.Overview{}, fmt.Errorf("%w: task stats: %w", ledgerdomain.ErrStoreUnavailable, err)
	}

	monthly := rollup.Monthly(window, sc.month)
	overview := dashboard.Overview{
		Month:      rollup.MonthKey(sc.month),
		AsOf:       sc.today,
		Payments:   monthly,
		Growth:     rollup.MonthlyGrowth(window, sc.month),
		Upcoming:   rollup.Upcoming(upcoming, clients, sc.today, settings.UpcomingWindowDays),
		TopClients: rollup.TopClients(paidItems, clients, settings.TopClientsLimit),
		Tasks:      rollup.Completion(stats, sc.month),
		Trend:      rollup.Trend(window, sc.month, trendMonths),
		Clients:    rollup.Clients(clients, monthly.Received),
	}

	s.log.Debug("overview computed",
		zap.String("month", overview.Month),
		zap.Int("obligations", len(window)),
		zap.Int("clients", len(clients)),
	)
	return overview, nil
}

func (s *Service) Monthly(ctx context.Context, req dashboard.ReportRequest) (dashboard.MonthlyRollup, error) {
	sc, err := s.resolve(ctx, req)
	if err != nil {
		return dashboard.MonthlyRollup{}, err
	}
	items, err := s.obligations(ctx, sc, sc.month, billingcycle.MonthEnd(sc.month), nil)
	if err != nil {
		return dashboard.MonthlyRollup{}, err
	}
	return rollup.Monthly(items, sc.month), nil
}

func (s *Service) Growth(ctx context.Context, req dashboard.ReportRequest) (dashboard.Growth, error) {
	sc, err := s.resolve(ctx, req)
	if err != nil {
		return dashboard.Growth{}, err
	}
	paid := ledgerdomain.StatusPaid
	items, err := s.obligations(ctx, sc, sc.month.AddDate(0, -1, 0), billingcycle.MonthEnd(sc.month), &paid)
	if err != nil {
		return dashboard.Growth{}, err
	}
	return rollup.MonthlyGrowth(items, sc.month), nil
}

func (s *Service) Upcoming(ctx context.Context, req dashboard.ReportRequest) ([]dashboard.UpcomingObligation, error) {
	sc, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	days := s.billingCfg.Get().UpcomingWindowDays
	items, err := s.upcomingItems(ctx, sc, days)
	if err != nil {
		return nil, err
	}
	clients, err := s.clients(ctx, sc)
	if err != nil {
		return nil, err
	}
	return rollup.Upcoming(items, clients, sc.today, days), nil
}

func (s *Service) upcomingItems(ctx context.Context, sc scope, days int) ([]ledgerdomain.Obligation, error) {
	if days <= 0 {
		days = rollup.DefaultUpcomingDays
	}
	pending := ledgerdomain.StatusPending
	return s.obligations(ctx, sc, sc.today, sc.today.AddDate(0, 0, days), &pending)
}

func (s *Service) TopClients(ctx context.Context, req dashboard.ReportRequest) ([]dashboard.TopClient, error) {
	sc, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	paid := ledgerdomain.StatusPaid
	items, err := s.obligations(ctx, sc, time.Time{}, time.Time{}, &paid)
	if err != nil {
		return nil, err
	}
	clients, err := s.clients(ctx, sc)
	if err != nil {
		return nil, err
	}
	return rollup.TopClients(items, clients, s.billingCfg.Get().TopClientsLimit), nil
}

func (s *Service) Completion(ctx context.Context, req dashboard.ReportRequest) (dashboard.CompletionRate, error) {
	sc, err := s.resolve(ctx, req)
	if err != nil {
		return dashboard.CompletionRate{}, err
	}
	stats, err := s.taskRepo.MonthlyStats(ctx, s.db, sc.month, sc.clientID)
	if err != nil {
		return dashboard.CompletionRate{}, fmt.Errorf("%w: task stats: %w", ledgerdomain.ErrStoreUnavailable, err)
	}
	return rollup.Completion(stats, sc.month), nil
}

func (s *Service) Trend(ctx context.Context, req dashboard.ReportRequest) ([]dashboard.TrendPoint, error) {
	sc, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	months := s.billingCfg.Get().TrendMonths
	if months <= 0 {
		months = rollup.DefaultTrendMonths
	}
	paid := ledgerdomain.StatusPaid
	items, err := s.obligations(ctx, sc, sc.month.AddDate(0, -(months-1), 0), billingcycle.MonthEnd(sc.month), &paid)
	if err != nil {
		return nil, err
	}
	return rollup.Trend(items, sc.month, months), nil
}
