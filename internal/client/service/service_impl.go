package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clientdesk/internal/billingcycle"
	"github.com/smallbiznis/clientdesk/internal/client/domain"
	"github.com/smallbiznis/clientdesk/internal/clock"
	ledgerdomain "github.com/smallbiznis/clientdesk/internal/ledger/domain"
	obligationdomain "github.com/smallbiznis/clientdesk/internal/obligation/domain"
	taskdomain "github.com/smallbiznis/clientdesk/internal/task/domain"
	"github.com/smallbiznis/clientdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	LedgerRepo ledgerdomain.Repository
	TaskRepo   taskdomain.Repository
	Generator  obligationdomain.Service `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	ledgerRepo ledgerdomain.Repository
	taskRepo   taskdomain.Repository
	generator  obligationdomain.Service
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("client.service"),
		genID:      p.GenID,
		clock:      clk,
		repo:       p.Repo,
		ledgerRepo: p.LedgerRepo,
		taskRepo:   p.TaskRepo,
		generator:  p.Generator,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateClientRequest) (domain.SaveResult, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.SaveResult{}, domain.ErrInvalidName
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.SaveResult{}, err
	}
	status, err := parseStatus(req.Status)
	if err != nil {
		return domain.SaveResult{}, err
	}

	billing := billingcycle.Configuration{Frequency: billingcycle.FrequencyMonthly, BillingDay: 1, Active: true}
	if req.Billing != nil {
		billing, err = buildConfiguration(*req.Billing)
		if err != nil {
			return domain.SaveResult{}, err
		}
	}

	now := s.clock.Now().UTC()
	client := domain.Client{
		ID:            s.genID.Generate(),
		Name:          name,
		Email:         email,
		Phone:         strings.TrimSpace(req.Phone),
		Website:       strings.TrimSpace(req.Website),
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Status:        status,
		Notes:         strings.TrimSpace(req.Notes),
		Metadata:      datatypes.JSONMap{},
		Billing:       billing,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, &client); err != nil {
		return domain.SaveResult{}, err
	}

	result := domain.SaveResult{Client: client}
	if billing.Billable() {
		result.Generation = s.generateFor(ctx, client.ID, nil)
	}
	return result, nil
}

func (s *Service) List(ctx context.Context, req domain.ListClientRequest) (domain.ListClientResponse, error) {
	filter := domain.ListClientFilter{
		Name: strings.TrimSpace(req.Name),
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status, err := parseStatus(raw)
		if err != nil {
			return domain.ListClientResponse{}, err
		}
		filter.Status = status
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListClientResponse{}, err
	}

	limit := page.Limit()
	pageInfo := pagination.BuildCursorPageInfo(items, limit, func(client *domain.Client) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        client.ID.String(),
			CreatedAt: client.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > limit {
		items = items[:limit]
	}

	clients := make([]domain.Client, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		clients = append(clients, *item)
	}

	resp := domain.ListClientResponse{Clients: clients}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Client, error) {
	clientID, err := s.parseID(id)
	if err != nil {
		return domain.Client{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, clientID)
	if err != nil {
		return domain.Client{}, err
	}
	if item == nil {
		return domain.Client{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateClientRequest) (domain.Client, error) {
	client, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Client{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Client{}, domain.ErrInvalidName
		}
		client.Name = name
	}
	if req.Email != nil {
		email, err := normalizeEmail(*req.Email)
		if err != nil {
			return domain.Client{}, err
		}
		client.Email = email
	}
	if req.Status != nil {
		status, err := parseStatus(*req.Status)
		if err != nil {
			return domain.Client{}, err
		}
		client.Status = status
	}
	if req.Phone != nil {
		client.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Website != nil {
		client.Website = strings.TrimSpace(*req.Website)
	}
	if req.ContactPerson != nil {
		client.ContactPerson = strings.TrimSpace(*req.ContactPerson)
	}
	if req.Notes != nil {
		client.Notes = strings.TrimSpace(*req.Notes)
	}
	client.UpdatedAt = s.clock.Now().UTC()

	ok, err := s.repo.UpdateProfile(ctx, s.db, &client)
	if err != nil {
		return domain.Client{}, err
	}
	if !ok {
		return domain.Client{}, domain.ErrNotFound
	}
	return client, nil
}

// UpdateBilling saves a new billing configuration and immediately runs
// generation for the client so the ledger reflects the change. A failed
// generation pass does not undo the save; it is reported in the result and
// retried by the next scheduled pass.
func (s *Service) UpdateBilling(ctx context.Context, req domain.UpdateBillingRequest) (domain.SaveResult, error) {
	clientID, err := s.parseID(req.ClientID)
	if err != nil {
		return domain.SaveResult{}, err
	}
	cfg, err := buildConfiguration(req.Billing)
	if err != nil {
		return domain.SaveResult{}, err
	}

	now := s.clock.Now().UTC()
	ok, err := s.repo.UpdateBilling(ctx, s.db, clientID, cfg, now)
	if err != nil {
		return domain.SaveResult{}, err
	}
	if !ok {
		return domain.SaveResult{}, domain.ErrNotFound
	}

	client, err := s.repo.FindByID(ctx, s.db, clientID)
	if err != nil {
		return domain.SaveResult{}, err
	}
	if client == nil {
		return domain.SaveResult{}, domain.ErrNotFound
	}

	s.log.Info("billing configuration saved",
		zap.String("client_id", clientID.String()),
		zap.Bool("enabled", cfg.Enabled),
		zap.Bool("active", cfg.Active),
		zap.String("frequency", string(cfg.Frequency)),
	)

	result := domain.SaveResult{Client: *client}
	if cfg.Billable() {
		result.Generation = s.generateFor(ctx, clientID, req.AsOf)
	}
	return result, nil
}

// Delete removes the client with its obligations and task history.
func (s *Service) Delete(ctx context.Context, id string) error {
	clientID, err := s.parseID(id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		removed, err := s.ledgerRepo.DeleteByClient(ctx, tx, clientID)
		if err != nil {
			return err
		}
		if err := s.taskRepo.DeleteByClient(ctx, tx, clientID); err != nil {
			return err
		}
		ok, err := s.repo.Delete(ctx, tx, clientID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotFound
		}
		s.log.Info("client deleted",
			zap.String("client_id", clientID.String()),
			zap.Int64("obligations_removed", removed),
		)
		return nil
	})
}

func (s *Service) generateFor(ctx context.Context, clientID snowflake.ID, asOf *time.Time) *obligationdomain.GenerateResult {
	if s.generator == nil {
		return nil
	}
	result, err := s.generator.Generate(ctx, obligationdomain.GenerateRequest{
		AsOf:     asOf,
		ClientID: clientID.String(),
	})
	if err != nil {
		s.log.Warn("generation after billing save failed",
			zap.String("client_id", clientID.String()),
			zap.Error(err),
		)
	}
	return &result
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func buildConfiguration(in domain.BillingInput) (billingcycle.Configuration, error) {
	active := true
	if in.Active != nil {
		active = *in.Active
	}

	frequency := billingcycle.FrequencyMonthly
	if raw := strings.TrimSpace(in.Frequency); raw != "" {
		parsed, err := billingcycle.ParseFrequency(raw)
		if err != nil {
			return billingcycle.Configuration{}, err
		}
		frequency = parsed
	}

	day := in.BillingDay
	if !in.Enabled && day == 0 {
		day = 1
	}

	return billingcycle.NewConfiguration(in.Enabled, in.Amount, frequency, day, in.StartDate, active)
}

func normalizeEmail(value string) (string, error) {
	email := strings.TrimSpace(value)
	if email != "" && !strings.Contains(email, "@") {
		return "", domain.ErrInvalidEmail
	}
	return email, nil
}

func parseStatus(value string) (domain.Status, error) {
	switch status := domain.Status(strings.ToLower(strings.TrimSpace(value))); status {
	case "":
		return domain.StatusActive, nil
	case domain.StatusActive, domain.StatusInactive:
		return status, nil
	default:
		return "", domain.ErrInvalidStatus
	}
}
