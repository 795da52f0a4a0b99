package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/institute-compass-api/internal/handler"
	"github.com/noah-isme/institute-compass-api/internal/models"
	"github.com/noah-isme/institute-compass-api/internal/service"
)

type memUsers struct {
	mu     sync.Mutex
	users  map[string]*models.User
	roles  map[string]models.RoleSet
	audits []*models.AuditLog
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[string]*models.User{}, roles: map[string]models.RoleSet{}}
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (m *memUsers) Roles(_ context.Context, userID string) (models.RoleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.NewRoleSet(m.roles[userID].Slice()...), nil
}

func (m *memUsers) CreateWithRole(_ context.Context, user *models.User, role models.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return &pq.Error{Code: "23505"}
		}
	}
	user.ID = uuid.NewString()
	user.TokenVersion = 1
	user.Roles = models.NewRoleSet(role)
	clone := *user
	m.users[user.ID] = &clone
	m.roles[user.ID] = models.NewRoleSet(role)
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string, updatedAt time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return 0, sql.ErrNoRows
	}
	u.PasswordHash = hash
	u.UpdatedAt = updatedAt
	u.TokenVersion++
	return u.TokenVersion, nil
}

func (m *memUsers) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, log)
	return nil
}

func (m *memUsers) seed(t *testing.T, email, password string, roles ...models.Role) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.users[id] = &models.User{ID: id, Email: email, FullName: "Staff", PasswordHash: string(hash), TokenVersion: 1}
	m.roles[id] = models.NewRoleSet(roles...)
	return id
}

type memLedger struct {
	mu       sync.Mutex
	students map[string]*models.StudentDetail
	payments []*models.Payment
}

func newMemLedger() *memLedger {
	return &memLedger{students: map[string]*models.StudentDetail{}}
}

func (m *memLedger) addStudent(total string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.students[id] = &models.StudentDetail{Student: models.Student{
		ID:               id,
		EnrollmentNumber: "ENR-001",
		FullName:         "Asha Rao",
		TotalFee:         decimal.RequireFromString(total),
		FeeStatus:        models.FeeStatusPending,
		Status:           "active",
	}}
	return id
}

func (m *memLedger) snapshot(s *models.StudentDetail) *models.LedgerSnapshot {
	return &models.LedgerSnapshot{StudentID: s.ID, TotalFee: s.TotalFee, PaidFee: s.PaidFee, FeeStatus: s.FeeStatus, Balance: s.Balance()}
}

func (m *memLedger) RecordPayment(_ context.Context, p *models.Payment) (*models.LedgerSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[p.StudentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *p
	m.payments = append(m.payments, &clone)
	s.PaidFee = s.PaidFee.Add(p.Amount)
	s.FeeStatus = models.NextFeeStatus(s.FeeStatus, s.PaidFee, s.TotalFee)
	return m.snapshot(s), nil
}

func (m *memLedger) DeletePayment(_ context.Context, id string) (*models.Payment, *models.LedgerSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.payments {
		if p.ID != id {
			continue
		}
		m.payments = append(m.payments[:i], m.payments[i+1:]...)
		s := m.students[p.StudentID]
		s.PaidFee = s.PaidFee.Sub(p.Amount)
		s.FeeStatus = models.NextFeeStatus(s.FeeStatus, s.PaidFee, s.TotalFee)
		return p, m.snapshot(s), nil
	}
	return nil, nil, sql.ErrNoRows
}

func (m *memLedger) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	all, err := m.ListAll(ctx, filter)
	return all, len(all), err
}

func (m *memLedger) ListAll(_ context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Payment{}
	for _, p := range m.payments {
		if filter.StudentID == "" || p.StudentID == filter.StudentID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memLedger) FindByID(_ context.Context, id string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ID == id {
			clone := *p
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

type memStudents struct{ ledger *memLedger }

func (s memStudents) FindByID(_ context.Context, id string) (*models.StudentDetail, error) {
	s.ledger.mu.Lock()
	defer s.ledger.mu.Unlock()
	st, ok := s.ledger.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *st
	return &clone, nil
}

type testApp struct {
	router *gin.Engine
	users  *memUsers
	ledger *memLedger
}

func newTestApp(t *testing.T, opts Options) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	users := newMemUsers()
	ledger := newMemLedger()

	metrics := service.NewMetricsService()
	auth := service.NewAuthService(users, nil, nil, metrics, service.AuthConfig{
		Secret:     "router-test-secret-with-enough-bytes",
		Expiry:     time.Hour,
		Issuer:     "institute-compass-test",
		BcryptCost: bcrypt.MinCost,
	})
	fees := service.NewFeeService(ledger, memStudents{ledger}, users, nil, nil, metrics, "")

	handlers := Handlers{
		Auth:        handler.NewAuthHandler(auth),
		Users:       handler.NewUserHandler(service.NewUserService(nil, nil, nil)),
		Students:    handler.NewStudentHandler(service.NewStudentService(nil, nil, nil), fees),
		Fees:        handler.NewFeeHandler(fees),
		Courses:     handler.NewCourseHandler(service.NewCourseService(nil, nil, nil, nil)),
		Batches:     handler.NewBatchHandler(service.NewBatchService(nil, nil, nil, nil)),
		Faculty:     handler.NewFacultyHandler(service.NewFacultyService(nil, nil, nil, nil)),
		Assessments: handler.NewAssessmentHandler(service.NewAssessmentService(nil, nil, nil)),
		Enquiries:   handler.NewEnquiryHandler(service.NewEnquiryService(nil, nil, nil)),
		Settings:    handler.NewSettingHandler(service.NewSettingService(nil, nil, nil, nil)),
		Dashboard:   handler.NewDashboardHandler(service.NewDashboardService(nil, nil, nil)),
		Metrics:     handler.NewMetricsHandler(metrics, nil, nil),
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api"
	}
	router := NewRouter(opts, Dependencies{
		Handlers:      handlers,
		Authenticator: auth,
		Audit:         users,
		Metrics:       metrics,
	})
	return &testApp{router: router, users: users, ledger: ledger}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var envelope map[string]interface{}
	if rec.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	}
	return rec, envelope
}

func (a *testApp) login(t *testing.T, email, password string) string {
	t.Helper()
	rec, envelope := a.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return envelope["data"].(map[string]interface{})["token"].(string)
}

func data(envelope map[string]interface{}) map[string]interface{} {
	return envelope["data"].(map[string]interface{})
}

func TestStudentSessionCannotRecordPayments(t *testing.T) {
	app := newTestApp(t, Options{})

	rec, envelope := app.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "Learner@Example.com", "password": "s3cret!", "full_name": "Lee Learner",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	registered := data(envelope)
	assert.NotEmpty(t, registered["token"])
	assert.Equal(t, []interface{}{"student"}, registered["user"].(map[string]interface{})["roles"])

	rec, _ = app.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "learner@example.com", "password": "other1!"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, envelope = app.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "learner@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", envelope["error"].(map[string]interface{})["code"])

	token := app.login(t, "learner@example.com", "s3cret!")

	rec, envelope = app.do(t, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "learner@example.com", data(envelope)["email"])

	studentID := app.ledger.addStudent("10000")
	rec, envelope = app.do(t, http.MethodPost, "/api/fees", token, map[string]string{"student_id": studentID, "amount": "100"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", envelope["error"].(map[string]interface{})["code"])

	rec, _ = app.do(t, http.MethodGet, "/api/students/"+studentID+"/ledger", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = app.do(t, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPaymentLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t, Options{})
	app.users.seed(t, "admin@example.com", "admin-pass", models.RoleAdmin)
	token := app.login(t, "admin@example.com", "admin-pass")
	studentID := app.ledger.addStudent("10000")

	rec, envelope := app.do(t, http.MethodPost, "/api/fees", token, map[string]string{
		"student_id": studentID, "amount": "5000", "payment_method": "cash",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := data(envelope)
	ledger := result["ledger"].(map[string]interface{})
	assert.Equal(t, "partial", ledger["fee_status"])
	assert.Equal(t, "5000", ledger["paid_fee"])
	assert.Equal(t, "5000", ledger["balance"])
	paymentID := result["payment"].(map[string]interface{})["id"].(string)

	rec, envelope = app.do(t, http.MethodGet, "/api/students/"+studentID+"/ledger", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, data(envelope)["payments"], 1)
	assert.Equal(t, "5000", data(envelope)["balance"])

	rec, _ = app.do(t, http.MethodGet, "/api/fees/"+paymentID+"/receipt", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	rec, envelope = app.do(t, http.MethodDelete, "/api/fees/"+paymentID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pending", data(envelope)["ledger"].(map[string]interface{})["fee_status"])

	rec, _ = app.do(t, http.MethodDelete, "/api/fees/"+paymentID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, envelope = app.do(t, http.MethodDelete, "/api/fees/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", envelope["error"].(map[string]interface{})["code"])

	actions := map[string]int{}
	for _, entry := range app.users.audits {
		actions[entry.Action]++
	}
	assert.Equal(t, 1, actions[models.AuditActionLogin])
	assert.Equal(t, 1, actions[models.AuditActionPaymentCreate])
	assert.Equal(t, 1, actions[models.AuditActionPaymentDelete])
}

func TestConcurrentPaymentsOverHTTP(t *testing.T) {
	app := newTestApp(t, Options{})
	app.users.seed(t, "faculty@example.com", "faculty-pass", models.RoleFaculty)
	token := app.login(t, "faculty@example.com", "faculty-pass")
	studentID := app.ledger.addStudent("1000")

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, _ := app.do(t, http.MethodPost, "/api/fees", token, map[string]string{"student_id": studentID, "amount": "100"})
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated}, codes)
	student, err := memStudents{app.ledger}.FindByID(context.Background(), studentID)
	require.NoError(t, err)
	assert.True(t, student.PaidFee.Equal(decimal.NewFromInt(200)), student.PaidFee.String())
	assert.Equal(t, models.FeeStatusPartial, student.FeeStatus)
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	app := newTestApp(t, Options{})

	rec, _ := app.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"disconnected"`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, envelope := app.do(t, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", envelope["error"].(map[string]interface{})["code"])
}

func TestStaticFallbackServesIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>compass</html>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o600))
	app := newTestApp(t, Options{StaticDir: dir})

	rec, _ := app.do(t, http.MethodGet, "/app.js", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console.log")

	rec, _ = app.do(t, http.MethodGet, "/students/42", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "compass")

	rec, _ = app.do(t, http.MethodGet, "/../../etc/passwd", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "compass")
	assert.NotContains(t, rec.Body.String(), "root:")

	rec, _ = app.do(t, http.MethodGet, "/assets/../app.js", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "console.log")

	rec, _ = app.do(t, http.MethodGet, "/api/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
