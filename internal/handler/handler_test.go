package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-compass-api/internal/middleware"
	"github.com/noah-isme/institute-compass-api/internal/models"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
)

const paymentID = "3f6c2a9e-8d41-4b7a-9c1e-5a2f0d7b6e10"

type responseEnvelope struct {
	Data       map[string]interface{} `json:"data"`
	Error      map[string]interface{} `json:"error"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

type fakeFeeSrv struct {
	listFilter models.PaymentFilter
	recordReq  models.PaymentRequest
	actor      *models.Identity
	deletedID  string
	result     *models.PaymentResult
	err        error
}

func (f *fakeFeeSrv) List(_ context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	f.listFilter = filter
	return []models.Payment{}, models.NewPagination(filter.Page, filter.PageSize, 0), f.err
}

func (f *fakeFeeSrv) Export(_ context.Context, filter models.PaymentFilter) ([]byte, error) {
	f.listFilter = filter
	return []byte("payment_id\n"), f.err
}

func (f *fakeFeeSrv) Get(context.Context, string) (*models.Payment, error) {
	return nil, f.err
}

func (f *fakeFeeSrv) Receipt(_ context.Context, id string) ([]byte, string, error) {
	return []byte("%PDF-1.3"), "receipt-" + id + ".pdf", f.err
}

func (f *fakeFeeSrv) RecordPayment(_ context.Context, req models.PaymentRequest, actor *models.Identity) (*models.PaymentResult, error) {
	f.recordReq = req
	f.actor = actor
	return f.result, f.err
}

func (f *fakeFeeSrv) DeletePayment(_ context.Context, id string, actor *models.Identity) (*models.PaymentResult, error) {
	f.deletedID = id
	f.actor = actor
	return f.result, f.err
}

type fakeSettingSrv struct {
	settings []models.Setting
	hit      bool
}

func (f *fakeSettingSrv) List(context.Context) ([]models.Setting, bool, error) {
	return f.settings, f.hit, nil
}

func (f *fakeSettingSrv) Get(context.Context, string) (*models.Setting, error) {
	return nil, appErrors.ErrNotFound
}

func (f *fakeSettingSrv) Upsert(_ context.Context, key string, req models.SettingRequest) (*models.Setting, error) {
	return &models.Setting{Key: key, Value: req.Value}, nil
}

func newTestContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestFeeHandlerCreatePassesActor(t *testing.T) {
	srv := &fakeFeeSrv{result: &models.PaymentResult{
		Payment: &models.Payment{ID: "p-1"},
		Ledger:  &models.LedgerSnapshot{FeeStatus: models.FeeStatusPartial},
	}}
	handler := NewFeeHandler(srv)
	c, rec := newTestContext(http.MethodPost, "/fees", `{"student_id":"9b2f0d4e-3f55-4f0c-9a57-5d0f1b8f8c11","amount":"5000"}`)
	admin := &models.Identity{UserID: "u-admin", Roles: models.NewRoleSet(models.RoleAdmin)}
	c.Set(middleware.ContextUserKey, admin)

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Same(t, admin, srv.actor)
	assert.True(t, srv.recordReq.Amount.Equal(decimal.NewFromInt(5000)))
	envelope := decode(t, rec)
	ledger := envelope.Data["ledger"].(map[string]interface{})
	assert.Equal(t, "partial", ledger["fee_status"])
}

func TestFeeHandlerCreateRejectsMalformedBody(t *testing.T) {
	handler := NewFeeHandler(&fakeFeeSrv{})
	c, rec := newTestContext(http.MethodPost, "/fees", `{"amount":`)

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode(t, rec).Error["code"])
}

func TestFeeHandlerListParsesFilters(t *testing.T) {
	srv := &fakeFeeSrv{}
	handler := NewFeeHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/fees?student_id=s-1&from=2024-01-01&to=2024-03-31&page=2&page_size=500", "")

	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "s-1", srv.listFilter.StudentID)
	require.NotNil(t, srv.listFilter.From)
	assert.Equal(t, "2024-01-01", srv.listFilter.From.String())
	assert.Equal(t, "2024-03-31", srv.listFilter.To.String())
	assert.Equal(t, 2, srv.listFilter.Page)
	assert.Equal(t, 20, srv.listFilter.PageSize)
	assert.Equal(t, float64(2), decode(t, rec).Pagination["page"])
}

func TestFeeHandlerListRejectsBadDate(t *testing.T) {
	handler := NewFeeHandler(&fakeFeeSrv{})
	c, rec := newTestContext(http.MethodGet, "/fees?from=01/02/2024", "")

	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeeHandlerDownloads(t *testing.T) {
	handler := NewFeeHandler(&fakeFeeSrv{})

	c, rec := newTestContext(http.MethodGet, "/fees/"+paymentID+"/receipt", "")
	c.Params = gin.Params{{Key: "id", Value: paymentID}}
	handler.Receipt(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="receipt-`+paymentID+`.pdf"`)

	c, rec = newTestContext(http.MethodGet, "/fees/export", "")
	handler.Export(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "payments-")
}

func TestFeeHandlerMapsServiceErrors(t *testing.T) {
	handler := NewFeeHandler(&fakeFeeSrv{err: appErrors.Clone(appErrors.ErrNotFound, "payment not found")})
	c, rec := newTestContext(http.MethodDelete, "/fees/"+paymentID, "")
	c.Params = gin.Params{{Key: "id", Value: paymentID}}

	handler.Delete(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	envelope := decode(t, rec)
	assert.Equal(t, "NOT_FOUND", envelope.Error["code"])
	assert.Equal(t, "payment not found", envelope.Error["message"])
}

func TestFeeHandlerRejectsMalformedIDs(t *testing.T) {
	srv := &fakeFeeSrv{}
	handler := NewFeeHandler(srv)
	c, rec := newTestContext(http.MethodDelete, "/fees/not-a-uuid", "")
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}

	handler.Delete(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, rec).Error["code"])
	assert.Empty(t, srv.deletedID)

	c, rec = newTestContext(http.MethodGet, "/fees/1;drop/receipt", "")
	c.Params = gin.Params{{Key: "id", Value: "1;drop"}}
	handler.Receipt(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeeHandlerHidesCauseOutsideDebug(t *testing.T) {
	handler := NewFeeHandler(&fakeFeeSrv{err: errors.New("pq: relation missing")})
	c, rec := newTestContext(http.MethodGet, "/fees/"+paymentID, "")
	c.Params = gin.Params{{Key: "id", Value: paymentID}}

	handler.Get(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "relation missing")
}

func TestSettingHandlerListReportsCacheHit(t *testing.T) {
	handler := NewSettingHandler(&fakeSettingSrv{
		settings: []models.Setting{{Key: "hero", Value: types.JSONText(`{"title":"Welcome"}`)}},
		hit:      true,
	})
	c, rec := newTestContext(http.MethodGet, "/settings", "")
	middleware.ResponseMeta()(c)

	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data []map[string]interface{} `json:"data"`
		Meta map[string]interface{}   `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "Welcome", envelope.Data[0]["value"].(map[string]interface{})["title"])
}

func TestSettingHandlerUpsertKeepsRawJSON(t *testing.T) {
	handler := NewSettingHandler(&fakeSettingSrv{})
	c, rec := newTestContext(http.MethodPut, "/settings/stats", `{"value":[1,2,3]}`)
	c.Params = gin.Params{{Key: "key", Value: "stats"}}

	handler.Upsert(c)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decode(t, rec)
	assert.Equal(t, "stats", envelope.Data["key"])
	assert.Equal(t, []interface{}{float64(1), float64(2), float64(3)}, envelope.Data["value"])
}

func TestSettingHandlerGetMissing(t *testing.T) {
	handler := NewSettingHandler(&fakeSettingSrv{})
	c, rec := newTestContext(http.MethodGet, "/settings/none", "")

	handler.Get(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthReportsDatabaseState(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectPing()

	fixed := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	handler := NewMetricsHandler(nil, sqlx.NewDb(db, "sqlmock"), nil)
	handler.now = func() time.Time { return fixed }

	c, rec := newTestContext(http.MethodGet, "/health", "")
	handler.Health(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "connected", body["database"])
	assert.Equal(t, "2024-03-15T10:00:00Z", body["timestamp"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthWithoutDatabase(t *testing.T) {
	handler := NewMetricsHandler(nil, nil, nil)
	c, rec := newTestContext(http.MethodGet, "/health", "")

	handler.Health(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"disconnected"`)

	c, rec = newTestContext(http.MethodGet, "/metrics", "")
	handler.Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakeDashboardSrv struct {
	months  int
	summary *models.DashboardSummary
	hit     bool
	err     error
}

func (f *fakeDashboardSrv) Summary(_ context.Context, months int) (*models.DashboardSummary, bool, error) {
	f.months = months
	return f.summary, f.hit, f.err
}

func TestDashboardHandlerRejectsBadMonths(t *testing.T) {
	handler := NewDashboardHandler(&fakeDashboardSrv{})
	c, rec := newTestContext(http.MethodGet, "/dashboard/summary?months=six", "")

	handler.Summary(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardHandlerSummary(t *testing.T) {
	srv := &fakeDashboardSrv{
		summary: &models.DashboardSummary{Students: models.StudentCounts{Total: 6}},
		hit:     true,
	}
	handler := NewDashboardHandler(srv)
	c, rec := newTestContext(http.MethodGet, "/dashboard/summary?months=12", "")
	middleware.ResponseMeta()(c)

	handler.Summary(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12, srv.months)
	envelope := decode(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, float64(6), envelope.Data["students"].(map[string]interface{})["total"])
}
