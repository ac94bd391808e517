package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	clientdomain "github.com/smallbiznis/clientdesk/internal/client/domain"
	clientrepository "github.com/smallbiznis/clientdesk/internal/client/repository"
	"github.com/smallbiznis/clientdesk/internal/clock"
	ledgerdomain "github.com/smallbiznis/clientdesk/internal/ledger/domain"
	"github.com/smallbiznis/clientdesk/internal/ledger/repository"
	obsmetrics "github.com/smallbiznis/clientdesk/internal/observability/metrics"
	"github.com/smallbiznis/clientdesk/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setupLedger(t *testing.T, now time.Time) (ledgerdomain.Service, *gorm.DB, *clock.FakeClock, clientdomain.Client) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&clientdomain.Client{}, &ledgerdomain.Obligation{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(now)
	client := clientdomain.Client{
		ID:        node.Generate(),
		Name:      "Acme",
		Status:    clientdomain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, clientrepository.Provide().Insert(context.Background(), conn, &client))

	svc := NewService(Params{
		DB:         conn,
		Log:        zaptest.NewLogger(t),
		GenID:      node,
		Clock:      fake,
		Repo:       repository.Provide(),
		ClientRepo: clientrepository.Provide(),
		ObsMetrics: obsmetrics.NewNoop(),
	})
	return svc, conn, fake, client
}

func createPending(t *testing.T, svc ledgerdomain.Service, clientID snowflake.ID, due time.Time) ledgerdomain.Obligation {
	t.Helper()
	item, err := svc.Create(context.Background(), ledgerdomain.CreateObligationRequest{
		ClientID: clientID.String(),
		Amount:   decimal.NewFromInt(1000),
		DueDate:  due,
	})
	require.NoError(t, err)
	return item
}

func TestReconcileMarksPastDuePendingOverdue(t *testing.T) {
	svc, _, _, client := setupLedger(t, day(2024, 1, 1))
	item := createPending(t, svc, client.ID, day(2024, 1, 1))

	asOf := day(2024, 1, 5)
	result, err := svc.Reconcile(context.Background(), ledgerdomain.ReconcileRequest{AsOf: &asOf})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Updated)

	got, err := svc.Get(context.Background(), item.ID.String())
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.StatusOverdue, got.Status)

	again, err := svc.Reconcile(context.Background(), ledgerdomain.ReconcileRequest{AsOf: &asOf})
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.Updated)
}

func TestReconcileLeavesDueTodayAndPaid(t *testing.T) {
	svc, _, clk, client := setupLedger(t, day(2024, 1, 5))
	dueToday := createPending(t, svc, client.ID, day(2024, 1, 5))

	paid, err := svc.Create(context.Background(), ledgerdomain.CreateObligationRequest{
		ClientID: client.ID.String(),
		Amount:   decimal.NewFromInt(500),
		DueDate:  day(2023, 12, 1),
		Status:   "paid",
	})
	require.NoError(t, err)
	require.NotNil(t, paid.PaidAt)

	clk.Set(day(2024, 1, 5).Add(23 * time.Hour))
	result, err := svc.Reconcile(context.Background(), ledgerdomain.ReconcileRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Updated)

	got, err := svc.Get(context.Background(), dueToday.ID.String())
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.StatusPending, got.Status)

	got, err = svc.Get(context.Background(), paid.ID.String())
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.StatusPaid, got.Status)
}

func TestUpdateStatusIsMonotonic(t *testing.T) {
	svc, _, _, client := setupLedger(t, day(2024, 1, 1))
	item := createPending(t, svc, client.ID, day(2024, 1, 1))

	overdue := "overdue"
	updated, err := svc.Update(context.Background(), item.ID.String(), ledgerdomain.UpdateObligationRequest{Status: &overdue})
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.StatusOverdue, updated.Status)

	pending := "pending"
	_, err = svc.Update(context.Background(), item.ID.String(), ledgerdomain.UpdateObligationRequest{Status: &pending})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidStatus)

	paid := "paid"
	method := " bank transfer "
	updated, err = svc.Update(context.Background(), item.ID.String(), ledgerdomain.UpdateObligationRequest{Status: &paid, PaymentMethod: &method})
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.StatusPaid, updated.Status)
	assert.Equal(t, "bank transfer", updated.PaymentMethod)
	require.NotNil(t, updated.PaidAt)

	_, err = svc.Update(context.Background(), item.ID.String(), ledgerdomain.UpdateObligationRequest{Status: &overdue})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidStatus)

	got, err := svc.Get(context.Background(), item.ID.String())
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.StatusPaid, got.Status)
	assert.Equal(t, "bank transfer", got.PaymentMethod)
}

func TestUpdateAmountAndNotes(t *testing.T) {
	svc, _, _, client := setupLedger(t, day(2024, 1, 1))
	item := createPending(t, svc, client.ID, day(2024, 2, 1))

	amount := decimal.RequireFromString("1250.50")
	notes := "retainer adjusted"
	updated, err := svc.Update(context.Background(), item.ID.String(), ledgerdomain.UpdateObligationRequest{Amount: &amount, Notes: &notes})
	require.NoError(t, err)
	assert.True(t, updated.Amount.Equal(amount))

	got, err := svc.Get(context.Background(), item.ID.String())
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(amount))
	assert.Equal(t, notes, got.Notes)
	assert.Equal(t, ledgerdomain.StatusPending, got.Status)

	zero := decimal.Zero
	_, err = svc.Update(context.Background(), item.ID.String(), ledgerdomain.UpdateObligationRequest{Amount: &zero})
	assert.ErrorIs(t, err, ledgerdomain.ErrInvalidAmount)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, client := setupLedger(t, day(2024, 1, 1))

	cases := []struct {
		name string
		req  ledgerdomain.CreateObligationRequest
		err  error
	}{
		{
			name: "missing client",
			req:  ledgerdomain.CreateObligationRequest{Amount: decimal.NewFromInt(1), DueDate: day(2024, 1, 1)},
			err:  ledgerdomain.ErrInvalidClient,
		},
		{
			name: "unknown client",
			req:  ledgerdomain.CreateObligationRequest{ClientID: "42", Amount: decimal.NewFromInt(1), DueDate: day(2024, 1, 1)},
			err:  ledgerdomain.ErrInvalidClient,
		},
		{
			name: "non positive amount",
			req:  ledgerdomain.CreateObligationRequest{ClientID: client.ID.String(), Amount: decimal.Zero, DueDate: day(2024, 1, 1)},
			err:  ledgerdomain.ErrInvalidAmount,
		},
		{
			name: "missing due date",
			req:  ledgerdomain.CreateObligationRequest{ClientID: client.ID.String(), Amount: decimal.NewFromInt(1)},
			err:  ledgerdomain.ErrInvalidDueDate,
		},
		{
			name: "overdue is not a manual status",
			req:  ledgerdomain.CreateObligationRequest{ClientID: client.ID.String(), Amount: decimal.NewFromInt(1), DueDate: day(2024, 1, 1), Status: "overdue"},
			err:  ledgerdomain.ErrInvalidStatus,
		},
		{
			name: "unknown status",
			req:  ledgerdomain.CreateObligationRequest{ClientID: client.ID.String(), Amount: decimal.NewFromInt(1), DueDate: day(2024, 1, 1), Status: "void"},
			err:  ledgerdomain.ErrInvalidStatus,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestListFiltersAndDelete(t *testing.T) {
	svc, _, _, client := setupLedger(t, day(2024, 1, 1))
	jan := createPending(t, svc, client.ID, day(2024, 1, 10))
	feb := createPending(t, svc, client.ID, day(2024, 2, 10))
	_, err := svc.Create(context.Background(), ledgerdomain.CreateObligationRequest{
		ClientID: client.ID.String(),
		Amount:   decimal.NewFromInt(10),
		DueDate:  day(2024, 2, 20),
		Status:   "paid",
	})
	require.NoError(t, err)

	from, to := day(2024, 2, 1), day(2024, 2, 29)
	resp, err := svc.List(context.Background(), ledgerdomain.ListObligationRequest{DueFrom: &from, DueTo: &to, Status: "pending"})
	require.NoError(t, err)
	require.Len(t, resp.Obligations, 1)
	assert.Equal(t, feb.ID, resp.Obligations[0].ID)

	all, err := svc.List(context.Background(), ledgerdomain.ListObligationRequest{ClientID: client.ID.String()})
	require.NoError(t, err)
	require.Len(t, all.Obligations, 3)
	assert.Equal(t, day(2024, 2, 20), all.Obligations[0].DueDate.UTC())

	require.NoError(t, svc.Delete(context.Background(), jan.ID.String()))
	assert.ErrorIs(t, svc.Delete(context.Background(), jan.ID.String()), ledgerdomain.ErrNotFound)
	_, err = svc.Get(context.Background(), jan.ID.String())
	assert.ErrorIs(t, err, ledgerdomain.ErrNotFound)
}
