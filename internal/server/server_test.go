package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	dashboardservice "github.com/smallbiznis/clientdesk/internal/billingdashboard/service"
	clientrepository "github.com/smallbiznis/clientdesk/internal/client/repository"
	clientservice "github.com/smallbiznis/clientdesk/internal/client/service"
	"github.com/smallbiznis/clientdesk/internal/clock"
	"github.com/smallbiznis/clientdesk/internal/config"
	ledgerdomain "github.com/smallbiznis/clientdesk/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/clientdesk/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/clientdesk/internal/ledger/service"
	"github.com/smallbiznis/clientdesk/internal/migration"
	obligationservice "github.com/smallbiznis/clientdesk/internal/obligation/service"
	"github.com/smallbiznis/clientdesk/internal/observability"
	taskrepository "github.com/smallbiznis/clientdesk/internal/task/repository"
	"github.com/smallbiznis/clientdesk/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *errorPayload   `json:"error"`
}

type testServer struct {
	engine *gin.Engine
	clock  *clock.FakeClock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.Apply(conn, db.TypeSQLite))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	fake := clock.NewFakeClock(time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC))
	billingCfg := config.NewStaticBillingConfigHolder(config.DefaultBillingConfig())

	clientRepo := clientrepository.Provide()
	ledgerRepo := ledgerrepository.Provide()
	taskRepo := taskrepository.Provide()

	generator := obligationservice.NewService(obligationservice.Params{
		DB:         conn,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		ClientRepo: clientRepo,
		LedgerRepo: ledgerRepo,
		BillingCfg: billingCfg,
	})
	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:         conn,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Repo:       ledgerRepo,
		ClientRepo: clientRepo,
	})
	clientSvc := clientservice.New(clientservice.Params{
		DB:         conn,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Repo:       clientRepo,
		LedgerRepo: ledgerRepo,
		TaskRepo:   taskRepo,
		Generator:  generator,
	})
	dashboardSvc := dashboardservice.NewService(dashboardservice.Params{
		DB:         conn,
		Log:        log,
		Clock:      fake,
		LedgerRepo: ledgerRepo,
		ClientRepo: clientRepo,
		TaskRepo:   taskRepo,
		Reconciler: ledgerSvc,
		BillingCfg: billingCfg,
	})

	srv := NewServer(ServerParams{
		Gin:          NewEngine(observability.Config{Environment: "test"}),
		ClientSvc:    clientSvc,
		LedgerSvc:    ledgerSvc,
		Generator:    generator,
		DashboardSvc: dashboardSvc,
	})
	return &testServer{engine: srv.Engine(), clock: fake}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "text/csv; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

type savedClient struct {
	Client struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"client"`
	Generation *struct {
		Inserted int `json:"inserted"`
		Skipped  int `json:"skipped"`
	} `json:"generation"`
}

type obligationView struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`
	Amount   string `json:"amount"`
	DueDate  string `json:"due_date"`
	Status   string `json:"status"`
}

func (ts *testServer) createBilledClient(t *testing.T, name string) savedClient {
	t.Helper()
	w, env := ts.do(t, http.MethodPost, "/api/clients", map[string]any{
		"name": name,
		"billing": map[string]any{
			"enabled":     true,
			"amount":      "1000",
			"frequency":   "monthly",
			"billing_day": 15,
			"start_date":  "2024-01-01",
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var saved savedClient
	require.NoError(t, json.Unmarshal(env.Data, &saved))
	return saved
}

func (ts *testServer) listPayments(t *testing.T, query string) []obligationView {
	t.Helper()
	w, env := ts.do(t, http.MethodGet, "/api/payments"+query, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Obligations []obligationView `json:"obligations"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	return resp.Obligations
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w, _ := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateClientGeneratesObligations(t *testing.T) {
	ts := newTestServer(t)
	saved := ts.createBilledClient(t, "Acme")

	require.NotNil(t, saved.Generation)
	assert.Equal(t, 3, saved.Generation.Inserted)

	items := ts.listPayments(t, "?client_id="+saved.Client.ID)
	require.Len(t, items, 3)
	assert.Equal(t, "2024-03-15", items[0].DueDate[:10])
	assert.Equal(t, "2024-01-15", items[2].DueDate[:10])

	feb := ts.listPayments(t, "?month=2024-02")
	require.Len(t, feb, 1)
	assert.Equal(t, "pending", feb[0].Status)
}

func TestCreateClientValidation(t *testing.T) {
	ts := newTestServer(t)

	w, env := ts.do(t, http.MethodPost, "/api/clients", map[string]any{"name": "  "})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Type)
	require.Len(t, env.Error.Errors, 1)
	assert.Equal(t, "invalid_name", env.Error.Errors[0].Code)

	w, env = ts.do(t, http.MethodPost, "/api/clients", map[string]any{
		"name": "Bad Day",
		"billing": map[string]any{
			"enabled":     true,
			"amount":      "1000",
			"billing_day": 0,
			"start_date":  "2024-01-01",
		},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_configuration", env.Error.Errors[0].Code)
	assert.Equal(t, "billing", env.Error.Errors[0].Field)
}

func TestGetUnknownClientIsNotFound(t *testing.T) {
	ts := newTestServer(t)
	w, env := ts.do(t, http.MethodGet, "/api/clients/123456", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Type)
}

func TestUpdateBillingRegenerates(t *testing.T) {
	ts := newTestServer(t)
	saved := ts.createBilledClient(t, "Acme")

	w, env := ts.do(t, http.MethodPut, "/api/clients/"+saved.Client.ID+"/billing", map[string]any{
		"enabled":     true,
		"amount":      "1000",
		"frequency":   "monthly",
		"billing_day": 15,
		"start_date":  "2024-01-01",
		"as_of":       "2024-02-20",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp savedClient
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.NotNil(t, resp.Generation)
	assert.Equal(t, 2, resp.Generation.Inserted)
	assert.Equal(t, 3, resp.Generation.Skipped)
}

func TestGenerateAndReconcileEndpoints(t *testing.T) {
	ts := newTestServer(t)
	saved := ts.createBilledClient(t, "Acme")

	w, env := ts.do(t, http.MethodPost, "/api/billing/generate", map[string]any{"as_of": "2024-01-10"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var gen struct {
		Inserted int `json:"inserted"`
		Skipped  int `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &gen))
	assert.Equal(t, 0, gen.Inserted)
	assert.Equal(t, 3, gen.Skipped)

	w, env = ts.do(t, http.MethodPost, "/api/billing/reconcile", map[string]any{"as_of": "2024-01-20"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rec struct {
		Updated int64 `json:"updated"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, int64(1), rec.Updated)

	overdue := ts.listPayments(t, "?status=overdue&client_id="+saved.Client.ID)
	require.Len(t, overdue, 1)
	assert.Equal(t, "2024-01-15", overdue[0].DueDate[:10])

	w, _ = ts.do(t, http.MethodPost, "/api/billing/reconcile", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerateRejectsBadAsOf(t *testing.T) {
	ts := newTestServer(t)
	w, env := ts.do(t, http.MethodPost, "/api/billing/generate", map[string]any{"as_of": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_as_of", env.Error.Errors[0].Code)

	w, _ = ts.do(t, http.MethodPost, "/api/billing/generate", map[string]any{"client_id": "987654"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentLifecycle(t *testing.T) {
	ts := newTestServer(t)
	saved := ts.createBilledClient(t, "Acme")

	w, env := ts.do(t, http.MethodPost, "/api/payments", map[string]any{
		"client_id":      saved.Client.ID,
		"amount":         "250.50",
		"due_date":       "2024-01-05",
		"payment_method": "transfer",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created obligationView
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "pending", created.Status)

	w, env = ts.do(t, http.MethodPatch, "/api/payments/"+created.ID, map[string]any{"status": "paid"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var paid obligationView
	require.NoError(t, json.Unmarshal(env.Data, &paid))
	assert.Equal(t, "paid", paid.Status)

	w, env = ts.do(t, http.MethodPatch, "/api/payments/"+created.ID, map[string]any{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_status", env.Error.Errors[0].Code)

	w, _ = ts.do(t, http.MethodDelete, "/api/payments/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = ts.do(t, http.MethodGet, "/api/payments/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreatePaymentValidation(t *testing.T) {
	ts := newTestServer(t)
	saved := ts.createBilledClient(t, "Acme")

	cases := []struct {
		name string
		body map[string]any
		code string
	}{
		{"missing due date", map[string]any{"client_id": saved.Client.ID, "amount": "10"}, "invalid_due_date"},
		{"zero amount", map[string]any{"client_id": saved.Client.ID, "amount": "0", "due_date": "2024-01-05"}, "invalid_amount"},
		{"overdue on create", map[string]any{"client_id": saved.Client.ID, "amount": "10", "due_date": "2024-01-05", "status": "overdue"}, "invalid_status"},
		{"bad client", map[string]any{"client_id": "abc", "amount": "10", "due_date": "2024-01-05"}, "invalid_client"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, env := ts.do(t, http.MethodPost, "/api/payments", tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			require.NotNil(t, env.Error)
			assert.Equal(t, tc.code, env.Error.Errors[0].Code)
		})
	}
}

func TestListPaymentsRejectsBadMonth(t *testing.T) {
	ts := newTestServer(t)
	w, env := ts.do(t, http.MethodGet, "/api/payments?month=2024-13", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_month", env.Error.Errors[0].Code)
}

func TestReportsReconcileBeforeReading(t *testing.T) {
	ts := newTestServer(t)
	ts.createBilledClient(t, "Acme")
	ts.clock.Set(time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC))

	w, env := ts.do(t, http.MethodGet, "/api/reports/monthly?month=2024-01", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var monthly struct {
		Overdue string `json:"overdue"`
		Pending string `json:"pending"`
		Count   int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &monthly))
	assert.Equal(t, "1000", monthly.Overdue)
	assert.Equal(t, "0", monthly.Pending)
	assert.Equal(t, 1, monthly.Count)

	for _, path := range []string{"overview", "growth", "upcoming", "top-clients", "completion", "trend"} {
		w, _ := ts.do(t, http.MethodGet, fmt.Sprintf("/api/reports/%s?month=2024-01", path), nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w, env = ts.do(t, http.MethodGet, "/api/reports/monthly?month=January", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "invalid_month", env.Error.Errors[0].Code)
}

func TestExportReportCSV(t *testing.T) {
	ts := newTestServer(t)
	ts.createBilledClient(t, "Acme")

	w, _ := ts.do(t, http.MethodGet, "/api/reports/export.csv?month=2024-01", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "clientdesk-report-2024-01.csv")
	assert.Contains(t, w.Body.String(), "Analytics Report,2024-01")
	assert.Contains(t, w.Body.String(), "Acme,0.00")
}

func TestDeleteClientCascades(t *testing.T) {
	ts := newTestServer(t)
	saved := ts.createBilledClient(t, "Acme")

	w, _ := ts.do(t, http.MethodDelete, "/api/clients/"+saved.Client.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, ts.listPayments(t, ""))

	w, _ = ts.do(t, http.MethodDelete, "/api/clients/"+saved.Client.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		typ    string
	}{
		{fmt.Errorf("%w: boom", ledgerdomain.ErrStoreUnavailable), http.StatusServiceUnavailable, "service_unavailable"},
		{ledgerdomain.ErrStatusConflict, http.StatusConflict, "conflict"},
		{ledgerdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, payload := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.typ, payload.Type)
	}

	typ, code := classifyErrorForLog(fmt.Errorf("%w: boom", ledgerdomain.ErrStoreUnavailable))
	assert.Equal(t, "service_unavailable", typ)
	assert.Equal(t, "store_unavailable", code)
}
