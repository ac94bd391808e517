package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clientdesk/internal/billingcycle"
	clientdomain "github.com/smallbiznis/clientdesk/internal/client/domain"
	"github.com/smallbiznis/clientdesk/internal/clock"
	ledgerdomain "github.com/smallbiznis/clientdesk/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/clientdesk/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("clientdesk/ledger")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       ledgerdomain.Repository
	ClientRepo clientdomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       ledgerdomain.Repository
	clientRepo clientdomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      clk,
		repo:       p.Repo,
		clientRepo: p.ClientRepo,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Create(ctx context.Context, req ledgerdomain.CreateObligationRequest) (ledgerdomain.Obligation, error) {
	clientID, err := snowflake.ParseString(strings.TrimSpace(req.ClientID))
	if err != nil || clientID == 0 {
		return ledgerdomain.Obligation{}, ledgerdomain.ErrInvalidClient
	}
	if !req.Amount.IsPositive() {
		return ledgerdomain.Obligation{}, ledgerdomain.ErrInvalidAmount
	}
	if req.DueDate.IsZero() {
		return ledgerdomain.Obligation{}, ledgerdomain.ErrInvalidDueDate
	}

	status := ledgerdomain.StatusPending
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, err = ledgerdomain.ParseStatus(raw)
		if err != nil {
			return ledgerdomain.Obligation{}, err
		}
	}
	// Overdue is only ever assigned by reconciliation.
	if status == ledgerdomain.StatusOverdue {
		return ledgerdomain.Obligation{}, ledgerdomain.ErrInvalidStatus
	}

	client, err := s.clientRepo.FindByID(ctx, s.db, clientID)
	if err != nil {
		return ledgerdomain.Obligation{}, err
	}
	if client == nil {
		return ledgerdomain.Obligation{}, ledgerdomain.ErrInvalidClient
	}

	now := s.clock.Now().UTC()
	obligation := ledgerdomain.Obligation{
		ID:            s.genID.Generate(),
		ClientID:      clientID,
		Amount:        req.Amount,
		DueDate:       billingcycle.DateOf(req.DueDate),
		Status:        status,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if status == ledgerdomain.StatusPaid {
		obligation.PaidAt = &now
	}

	if err := s.repo.Insert(ctx, s.db, &obligation); err != nil {
		return ledgerdomain.Obligation{}, err
	}

	s.log.Info("obligation created",
		zap.String("obligation_id", obligation.ID.String()),
		zap.String("client_id", clientID.String()),
		zap.String("status", string(status)),
	)
	return obligation, nil
}

func (s *Service) Get(ctx context.Context, id string) (ledgerdomain.Obligation, error) {
	obligationID, err := parseID(id)
	if err != nil {
		return ledgerdomain.Obligation{}, err
	}
	item, err := s.repo.FindByID(ctx, s.db, obligationID)
	if err != nil {
		return ledgerdomain.Obligation{}, err
	}
	if item == nil {
		return ledgerdomain.Obligation{}, ledgerdomain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req ledgerdomain.ListObligationRequest) (ledgerdomain.ListObligationResponse, error) {
	filter := ledgerdomain.ListFilter{
		AutoGenerated: req.AutoGenerated,
	}
	if raw := strings.TrimSpace(req.ClientID); raw != "" {
		clientID, err := snowflake.ParseString(raw)
		if err != nil || clientID == 0 {
			return ledgerdomain.ListObligationResponse{}, ledgerdomain.ErrInvalidClient
		}
		filter.ClientID = &clientID
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, err := ledgerdomain.ParseStatus(raw)
		if err != nil {
			return ledgerdomain.ListObligationResponse{}, err
		}
		filter.Status = &status
	}
	if req.DueFrom != nil {
		from := billingcycle.DateOf(*req.DueFrom)
		filter.DueFrom = &from
	}
	if req.DueTo != nil {
		to := billingcycle.DateOf(*req.DueTo)
		filter.DueTo = &to
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return ledgerdomain.ListObligationResponse{}, err
	}
	if items == nil {
		items = []ledgerdomain.Obligation{}
	}
	return ledgerdomain.ListObligationResponse{Obligations: items}, nil
}

// Update edits amount, notes, payment method or status. The row is re-read
// inside the transaction and only written if its status did not change in
// between, so a concurrent reconciliation cannot be overwritten.
func (s *Service) Update(ctx context.Context, id string, req ledgerdomain.UpdateObligationRequest) (ledgerdomain.Obligation, error) {
	obligationID, err := parseID(id)
	if err != nil {
		return ledgerdomain.Obligation{}, err
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return ledgerdomain.Obligation{}, ledgerdomain.ErrInvalidAmount
	}
	var target *ledgerdomain.Status
	if req.Status != nil {
		status, err := ledgerdomain.ParseStatus(strings.TrimSpace(*req.Status))
		if err != nil {
			return ledgerdomain.Obligation{}, err
		}
		target = &status
	}

	var updated ledgerdomain.Obligation
	var from ledgerdomain.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, obligationID)
		if err != nil {
			return err
		}
		if current == nil {
			return ledgerdomain.ErrNotFound
		}
		from = current.Status

		now := s.clock.Now().UTC()
		fields := map[string]any{"updated_at": now}
		next := *current
		next.UpdatedAt = now

		if target != nil && *target != current.Status {
			if !ledgerdomain.CanTransition(current.Status, *target) {
				return ledgerdomain.ErrInvalidStatus
			}
			fields["status"] = *target
			next.Status = *target
			if *target == ledgerdomain.StatusPaid {
				fields["paid_at"] = now
				next.PaidAt = &now
			}
		}
		if req.Amount != nil {
			fields["amount"] = *req.Amount
			next.Amount = *req.Amount
		}
		if req.PaymentMethod != nil {
			value := strings.TrimSpace(*req.PaymentMethod)
			fields["payment_method"] = value
			next.PaymentMethod = value
		}
		if req.Notes != nil {
			value := strings.TrimSpace(*req.Notes)
			fields["notes"] = value
			next.Notes = value
		}

		ok, err := s.repo.UpdateFields(ctx, tx, obligationID, current.Status, fields)
		if err != nil {
			return err
		}
		if !ok {
			return ledgerdomain.ErrStatusConflict
		}
		updated = next
		return nil
	})
	if err != nil {
		return ledgerdomain.Obligation{}, err
	}

	if from != updated.Status {
		s.obsMetrics.RecordStatusChange(ctx, string(from), string(updated.Status))
		s.log.Info("obligation status changed",
			zap.String("obligation_id", obligationID.String()),
			zap.String("from_status", string(from)),
			zap.String("to_status", string(updated.Status)),
		)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	obligationID, err := parseID(id)
	if err != nil {
		return err
	}
	ok, err := s.repo.Delete(ctx, s.db, obligationID)
	if err != nil {
		return err
	}
	if !ok {
		return ledgerdomain.ErrNotFound
	}
	return nil
}

// Reconcile marks every pending obligation due before the as-of day as
// overdue. It is a single conditional update, safe to repeat and to run
// alongside generation.
func (s *Service) Reconcile(ctx context.Context, req ledgerdomain.ReconcileRequest) (ledgerdomain.ReconcileResult, error) {
	asOf := s.clock.Now()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}
	asOfDay := billingcycle.DateOf(asOf)

	ctx, span := tracer.Start(ctx, "ledger.reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("as_of", asOfDay.Format("2006-01-02")))

	updated, err := s.repo.MarkOverdue(ctx, s.db, asOfDay, s.clock.Now().UTC())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark overdue failed")
		return ledgerdomain.ReconcileResult{}, fmt.Errorf("%w: %w", ledgerdomain.ErrStoreUnavailable, err)
	}
	span.SetAttributes(attribute.Int64("updated", updated))

	s.obsMetrics.RecordOverdueTransitions(ctx, updated)
	if updated > 0 {
		s.log.Info("obligations marked overdue",
			zap.Time("as_of", asOfDay),
			zap.Int64("updated", updated),
		)
	}
	return ledgerdomain.ReconcileResult{AsOf: asOfDay, Updated: updated}, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, ledgerdomain.ErrInvalidID
	}
	return id, nil
}

