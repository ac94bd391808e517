package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/clientdesk/internal/billingcycle"
	"github.com/smallbiznis/clientdesk/internal/client/domain"
	"github.com/smallbiznis/clientdesk/internal/client/repository"
	"github.com/smallbiznis/clientdesk/internal/clock"
	"github.com/smallbiznis/clientdesk/internal/config"
	ledgerdomain "github.com/smallbiznis/clientdesk/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/clientdesk/internal/ledger/repository"
	obligationservice "github.com/smallbiznis/clientdesk/internal/obligation/service"
	taskdomain "github.com/smallbiznis/clientdesk/internal/task/domain"
	taskrepository "github.com/smallbiznis/clientdesk/internal/task/repository"
	"github.com/smallbiznis/clientdesk/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   domain.Service
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setup(t *testing.T, now time.Time) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&domain.Client{},
		&ledgerdomain.Obligation{},
		&taskdomain.Template{},
		&taskdomain.Completion{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	fake := clock.NewFakeClock(now)

	generator := obligationservice.NewService(obligationservice.Params{
		DB:         conn,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		ClientRepo: repository.Provide(),
		LedgerRepo: ledgerrepository.Provide(),
		BillingCfg: config.NewStaticBillingConfigHolder(config.DefaultBillingConfig()),
	})

	svc := New(Params{
		DB:         conn,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Repo:       repository.Provide(),
		LedgerRepo: ledgerrepository.Provide(),
		TaskRepo:   taskrepository.Provide(),
		Generator:  generator,
	})
	return &fixture{db: conn, node: node, clock: fake, svc: svc}
}

func (f *fixture) countObligations(t *testing.T, clientID snowflake.ID) int {
	t.Helper()
	items, err := ledgerrepository.Provide().List(context.Background(), f.db, ledgerdomain.ListFilter{ClientID: &clientID})
	require.NoError(t, err)
	return len(items)
}

func TestCreateWithBillingGeneratesObligations(t *testing.T) {
	f := setup(t, day(2024, 1, 10))

	res, err := f.svc.Create(context.Background(), domain.CreateClientRequest{
		Name:  "  Acme  ",
		Email: "ops@acme.test",
		Billing: &domain.BillingInput{
			Enabled:    true,
			Amount:     decimal.NewFromInt(1000),
			Frequency:  "monthly",
			BillingDay: 15,
			StartDate:  day(2024, 1, 10),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme", res.Client.Name)
	assert.Equal(t, domain.StatusActive, res.Client.Status)
	assert.True(t, res.Client.Billing.Active)
	require.NotNil(t, res.Generation)
	assert.Equal(t, 3, res.Generation.Inserted)
	assert.Equal(t, 3, f.countObligations(t, res.Client.ID))

	got, err := f.svc.GetByID(context.Background(), res.Client.ID.String())
	require.NoError(t, err)
	assert.True(t, got.Billing.Enabled)
	assert.Equal(t, 15, got.Billing.BillingDay)
	assert.Equal(t, billingcycle.FrequencyMonthly, got.Billing.Frequency)
	assert.True(t, got.Billing.Amount.Equal(decimal.NewFromInt(1000)))
}

func TestCreateWithoutBillingSkipsGeneration(t *testing.T) {
	f := setup(t, day(2024, 1, 10))

	res, err := f.svc.Create(context.Background(), domain.CreateClientRequest{Name: "Globex"})
	require.NoError(t, err)
	assert.Nil(t, res.Generation)
	assert.False(t, res.Client.Billing.Enabled)
	assert.Equal(t, 0, f.countObligations(t, res.Client.ID))
}

func TestCreateValidation(t *testing.T) {
	f := setup(t, day(2024, 1, 10))

	_, err := f.svc.Create(context.Background(), domain.CreateClientRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = f.svc.Create(context.Background(), domain.CreateClientRequest{Name: "Acme", Email: "nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = f.svc.Create(context.Background(), domain.CreateClientRequest{Name: "Acme", Status: "archived"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.Create(context.Background(), domain.CreateClientRequest{
		Name:    "Acme",
		Billing: &domain.BillingInput{Enabled: true, Amount: decimal.NewFromInt(100), BillingDay: 32, StartDate: day(2024, 1, 1)},
	})
	assert.ErrorIs(t, err, billingcycle.ErrInvalidConfiguration)

	_, err = f.svc.Create(context.Background(), domain.CreateClientRequest{
		Name:    "Acme",
		Billing: &domain.BillingInput{Enabled: true, Amount: decimal.NewFromInt(100), Frequency: "weekly", BillingDay: 1, StartDate: day(2024, 1, 1)},
	})
	assert.ErrorIs(t, err, billingcycle.ErrInvalidConfiguration)
}

func TestUpdateBillingRunsGeneration(t *testing.T) {
	f := setup(t, day(2024, 1, 10))
	res, err := f.svc.Create(context.Background(), domain.CreateClientRequest{Name: "Acme"})
	require.NoError(t, err)

	asOf := day(2024, 1, 10)
	saved, err := f.svc.UpdateBilling(context.Background(), domain.UpdateBillingRequest{
		ClientID: res.Client.ID.String(),
		Billing: domain.BillingInput{
			Enabled:    true,
			Amount:     decimal.NewFromInt(5000),
			Frequency:  "quarterly",
			BillingDay: 31,
			StartDate:  day(2024, 1, 1),
		},
		AsOf: &asOf,
	})
	require.NoError(t, err)
	require.NotNil(t, saved.Generation)
	// Jan 31 falls inside the horizon, Apr 30 does not.
	assert.Equal(t, 1, saved.Generation.Inserted)
	assert.Equal(t, billingcycle.FrequencyQuarterly, saved.Client.Billing.Frequency)

	again, err := f.svc.UpdateBilling(context.Background(), domain.UpdateBillingRequest{
		ClientID: res.Client.ID.String(),
		Billing: domain.BillingInput{
			Enabled:    true,
			Amount:     decimal.NewFromInt(5000),
			Frequency:  "quarterly",
			BillingDay: 31,
			StartDate:  day(2024, 1, 1),
		},
		AsOf: &asOf,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Generation.Inserted)
	assert.Equal(t, 1, f.countObligations(t, res.Client.ID))

	paused := false
	off, err := f.svc.UpdateBilling(context.Background(), domain.UpdateBillingRequest{
		ClientID: res.Client.ID.String(),
		Billing: domain.BillingInput{
			Enabled:    true,
			Amount:     decimal.NewFromInt(5000),
			Frequency:  "quarterly",
			BillingDay: 31,
			StartDate:  day(2024, 1, 1),
			Active:     &paused,
		},
	})
	require.NoError(t, err)
	assert.Nil(t, off.Generation)
	assert.False(t, off.Client.Billing.Active)

	_, err = f.svc.UpdateBilling(context.Background(), domain.UpdateBillingRequest{ClientID: f.node.Generate().String()})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateProfile(t *testing.T) {
	f := setup(t, day(2024, 1, 10))
	res, err := f.svc.Create(context.Background(), domain.CreateClientRequest{Name: "Acme"})
	require.NoError(t, err)

	name := "Acme Corp"
	status := "inactive"
	phone := " +62 811 "
	updated, err := f.svc.Update(context.Background(), res.Client.ID.String(), domain.UpdateClientRequest{
		Name:   &name,
		Status: &status,
		Phone:  &phone,
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", updated.Name)
	assert.Equal(t, domain.StatusInactive, updated.Status)
	assert.Equal(t, "+62 811", updated.Phone)

	blank := ""
	_, err = f.svc.Update(context.Background(), res.Client.ID.String(), domain.UpdateClientRequest{Name: &blank})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = f.svc.Update(context.Background(), "abc", domain.UpdateClientRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestDeleteCascades(t *testing.T) {
	f := setup(t, day(2024, 1, 10))
	res, err := f.svc.Create(context.Background(), domain.CreateClientRequest{
		Name: "Acme",
		Billing: &domain.BillingInput{
			Enabled:    true,
			Amount:     decimal.NewFromInt(1000),
			BillingDay: 1,
			StartDate:  day(2024, 1, 1),
		},
	})
	require.NoError(t, err)
	require.Positive(t, f.countObligations(t, res.Client.ID))

	tasks := taskrepository.Provide()
	tpl := taskdomain.Template{ID: f.node.Generate(), ClientID: res.Client.ID, Description: "Audit", Category: taskdomain.CategoryTechnical, Active: true, CreatedAt: f.clock.Now()}
	require.NoError(t, tasks.InsertTemplate(context.Background(), f.db, &tpl))

	require.NoError(t, f.svc.Delete(context.Background(), res.Client.ID.String()))
	assert.Equal(t, 0, f.countObligations(t, res.Client.ID))

	stats, err := tasks.MonthlyStats(context.Background(), f.db, f.clock.Now(), &res.Client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.ActiveTemplateCount)

	_, err = f.svc.GetByID(context.Background(), res.Client.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), res.Client.ID.String()), domain.ErrNotFound)
}

func TestListPaginates(t *testing.T) {
	f := setup(t, day(2024, 1, 10))
	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		_, err := f.svc.Create(context.Background(), domain.CreateClientRequest{Name: name})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	first, err := f.svc.List(context.Background(), domain.ListClientRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Clients, 2)
	assert.Equal(t, "Gamma", first.Clients[0].Name)
	require.True(t, first.HasMore)
	require.NotEmpty(t, first.NextPageToken)

	second, err := f.svc.List(context.Background(), domain.ListClientRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Clients, 1)
	assert.Equal(t, "Alpha", second.Clients[0].Name)
	assert.False(t, second.HasMore)

	filtered, err := f.svc.List(context.Background(), domain.ListClientRequest{Name: "et"})
	require.NoError(t, err)
	require.Len(t, filtered.Clients, 1)
	assert.Equal(t, "Beta", filtered.Clients[0].Name)
}
