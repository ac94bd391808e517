package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	dashboard "github.com/smallbiznis/clientdesk/internal/billingdashboard/domain"
	clientdomain "github.com/smallbiznis/clientdesk/internal/client/domain"
	clientrepository "github.com/smallbiznis/clientdesk/internal/client/repository"
	"github.com/smallbiznis/clientdesk/internal/clock"
	ledgerdomain "github.com/smallbiznis/clientdesk/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/clientdesk/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/clientdesk/internal/ledger/service"
	taskdomain "github.com/smallbiznis/clientdesk/internal/task/domain"
	taskrepository "github.com/smallbiznis/clientdesk/internal/task/repository"
	"github.com/smallbiznis/clientdesk/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	db   *gorm.DB
	node *snowflake.Node
	svc  dashboard.Service
}

func setup(t *testing.T, now time.Time) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&clientdomain.Client{},
		&ledgerdomain.Obligation{},
		&taskdomain.Template{},
		&taskdomain.Completion{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	fake := clock.NewFakeClock(now)

	reconciler := ledgerservice.NewService(ledgerservice.Params{
		DB:         conn,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Repo:       ledgerrepository.Provide(),
		ClientRepo: clientrepository.Provide(),
	})

	svc := NewService(Params{
		DB:         conn,
		Log:        log,
		Clock:      fake,
		LedgerRepo: ledgerrepository.Provide(),
		ClientRepo: clientrepository.Provide(),
		TaskRepo:   taskrepository.Provide(),
		Reconciler: reconciler,
	})
	return &fixture{db: conn, node: node, svc: svc}
}

func (f *fixture) client(t *testing.T, name string, recurring bool) clientdomain.Client {
	t.Helper()
	c := clientdomain.Client{
		ID:        f.node.Generate(),
		Name:      name,
		Status:    clientdomain.StatusActive,
		CreatedAt: day(2024, 1, 1),
		UpdatedAt: day(2024, 1, 1),
	}
	c.Billing.Enabled = recurring
	require.NoError(t, clientrepository.Provide().Insert(context.Background(), f.db, &c))
	return c
}

func (f *fixture) obligation(t *testing.T, clientID snowflake.ID, amount int64, due time.Time, status ledgerdomain.Status) {
	t.Helper()
	o := ledgerdomain.Obligation{
		ID:        f.node.Generate(),
		ClientID:  clientID,
		Amount:    decimal.NewFromInt(amount),
		DueDate:   due,
		Status:    status,
		CreatedAt: day(2024, 1, 1),
		UpdatedAt: day(2024, 1, 1),
	}
	require.NoError(t, ledgerrepository.Provide().Insert(context.Background(), f.db, &o))
}

func TestOverviewReconcilesBeforeReading(t *testing.T) {
	f := setup(t, day(2024, 3, 10))
	acme := f.client(t, "Acme", true)
	globex := f.client(t, "Globex", false)

	f.obligation(t, acme.ID, 40000, day(2024, 3, 1), ledgerdomain.StatusPaid)
	f.obligation(t, acme.ID, 50000, day(2024, 2, 1), ledgerdomain.StatusPaid)
	f.obligation(t, globex.ID, 7000, day(2024, 3, 5), ledgerdomain.StatusPending)
	f.obligation(t, globex.ID, 3000, day(2024, 3, 15), ledgerdomain.StatusPending)

	ov, err := f.svc.Overview(context.Background(), dashboard.ReportRequest{})
	require.NoError(t, err)

	assert.Equal(t, "2024-03", ov.Month)
	assert.True(t, ov.Payments.Received.Equal(decimal.NewFromInt(40000)))
	assert.True(t, ov.Payments.Overdue.Equal(decimal.NewFromInt(7000)), "past due pending should be reconciled to overdue")
	assert.True(t, ov.Payments.Pending.Equal(decimal.NewFromInt(3000)))
	assert.True(t, ov.Payments.ExpectedTotal.Equal(decimal.NewFromInt(43000)))
	assert.Equal(t, int64(-20), ov.Growth.Percent)

	require.Len(t, ov.Upcoming, 1)
	assert.Equal(t, "Globex", ov.Upcoming[0].ClientName)
	assert.Equal(t, 5, ov.Upcoming[0].DaysUntilDue)

	require.Len(t, ov.TopClients, 2)
	assert.Equal(t, "Acme", ov.TopClients[0].Name)
	assert.True(t, ov.TopClients[0].Revenue.Equal(decimal.NewFromInt(90000)))

	require.Len(t, ov.Trend, 6)
	assert.Equal(t, "2024-03", ov.Trend[5].Month)
	assert.Equal(t, int64(2), ov.Clients.Active)
	assert.Equal(t, int64(1), ov.Clients.Recurring)
	assert.Equal(t, int64(0), ov.Tasks.Percent)
}

func TestMonthlyForExplicitMonthAndClient(t *testing.T) {
	f := setup(t, day(2024, 3, 10))
	acme := f.client(t, "Acme", true)
	globex := f.client(t, "Globex", true)
	f.obligation(t, acme.ID, 100, day(2024, 2, 10), ledgerdomain.StatusPaid)
	f.obligation(t, globex.ID, 200, day(2024, 2, 11), ledgerdomain.StatusPaid)

	got, err := f.svc.Monthly(context.Background(), dashboard.ReportRequest{Month: "2024-02", ClientID: acme.ID.String()})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Count)
	assert.True(t, got.Received.Equal(decimal.NewFromInt(100)))

	_, err = f.svc.Monthly(context.Background(), dashboard.ReportRequest{Month: "Feb"})
	assert.ErrorIs(t, err, dashboard.ErrInvalidMonth)

	_, err = f.svc.Monthly(context.Background(), dashboard.ReportRequest{ClientID: "x"})
	assert.ErrorIs(t, err, dashboard.ErrInvalidClient)
}

func TestFutureAsOfDoesNotMarkUndueObligationsOverdue(t *testing.T) {
	f := setup(t, day(2024, 3, 10))
	globex := f.client(t, "Globex", true)
	f.obligation(t, globex.ID, 7000, day(2024, 3, 5), ledgerdomain.StatusPending)
	f.obligation(t, globex.ID, 3000, day(2024, 3, 15), ledgerdomain.StatusPending)

	future := day(2030, 1, 1)
	_, err := f.svc.Monthly(context.Background(), dashboard.ReportRequest{Month: "2024-03", AsOf: &future})
	require.NoError(t, err)

	got, err := f.svc.Monthly(context.Background(), dashboard.ReportRequest{Month: "2024-03"})
	require.NoError(t, err)
	assert.True(t, got.Overdue.Equal(decimal.NewFromInt(7000)))
	assert.True(t, got.Pending.Equal(decimal.NewFromInt(3000)), "obligation due 2024-03-15 must stay pending")

	var pending int64
	require.NoError(t, f.db.Model(&ledgerdomain.Obligation{}).Where("status = ?", ledgerdomain.StatusPending).Count(&pending).Error)
	assert.Equal(t, int64(1), pending)
}

func TestCompletionReadsTaskStats(t *testing.T) {
	f := setup(t, day(2024, 4, 10))
	acme := f.client(t, "Acme", false)
	tasks := taskrepository.Provide()
	tpl := taskdomain.Template{ID: f.node.Generate(), ClientID: acme.ID, Description: "Post", Category: taskdomain.CategoryContent, Active: true, CreatedAt: day(2024, 4, 1)}
	require.NoError(t, tasks.InsertTemplate(context.Background(), f.db, &tpl))
	for d := 1; d <= 15; d++ {
		require.NoError(t, tasks.InsertCompletion(context.Background(), f.db, &taskdomain.Completion{
			ID:             f.node.Generate(),
			TaskTemplateID: tpl.ID,
			ClientID:       acme.ID,
			CompletionDate: day(2024, 4, d),
			CreatedAt:      day(2024, 4, d),
		}))
	}

	got, err := f.svc.Completion(context.Background(), dashboard.ReportRequest{})
	require.NoError(t, err)
	assert.Equal(t, 30, got.DaysInMonth)
	assert.Equal(t, int64(50), got.Percent)
	require.Len(t, got.ByCategory, 1)
	assert.Equal(t, taskdomain.CategoryContent, got.ByCategory[0].Category)
}

func TestTrendAndGrowth(t *testing.T) {
	f := setup(t, day(2024, 3, 10))
	acme := f.client(t, "Acme", true)
	f.obligation(t, acme.ID, 100, day(2023, 12, 5), ledgerdomain.StatusPaid)
	f.obligation(t, acme.ID, 150, day(2024, 2, 5), ledgerdomain.StatusPaid)
	f.obligation(t, acme.ID, 300, day(2024, 3, 5), ledgerdomain.StatusPaid)

	trend, err := f.svc.Trend(context.Background(), dashboard.ReportRequest{})
	require.NoError(t, err)
	require.Len(t, trend, 6)
	assert.True(t, trend[2].Received.Equal(decimal.NewFromInt(100)))

	growth, err := f.svc.Growth(context.Background(), dashboard.ReportRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(100), growth.Percent)
}
