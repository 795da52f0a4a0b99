package service

import (
	"bytes"
	"context"
	"database/sql"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-compass-api/internal/models"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
)

// fakeLedger mimics the repository without its row lock: paid_fee is read, then written
// back after a yield, so unserialised callers lose updates.
type fakeLedger struct {
	mu        sync.Mutex
	students  map[string]*models.StudentDetail
	payments  map[string]*models.Payment
	auditLogs []*models.AuditLog
	recordErr error
	panicNext bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{students: map[string]*models.StudentDetail{}, payments: map[string]*models.Payment{}}
}

func (f *fakeLedger) addStudent(total string, userID *string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	f.students[id] = &models.StudentDetail{Student: models.Student{
		ID:               id,
		EnrollmentNumber: "ENR-" + id[:4],
		FullName:         "Asha Rao",
		TotalFee:         decimal.RequireFromString(total),
		FeeStatus:        models.FeeStatusPending,
		UserID:           userID,
	}}
	return id
}

func (f *fakeLedger) paid(id string) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.students[id].PaidFee
}

func (f *fakeLedger) apply(studentID string, delta decimal.Decimal) *models.LedgerSnapshot {
	f.mu.Lock()
	current := f.students[studentID].PaidFee
	f.mu.Unlock()

	runtime.Gosched()

	f.mu.Lock()
	defer f.mu.Unlock()
	st := f.students[studentID]
	st.PaidFee = current.Add(delta)
	if st.PaidFee.IsNegative() {
		st.PaidFee = decimal.Zero
	}
	st.FeeStatus = models.NextFeeStatus(st.FeeStatus, st.PaidFee, st.TotalFee)
	return &models.LedgerSnapshot{StudentID: st.ID, TotalFee: st.TotalFee, PaidFee: st.PaidFee, FeeStatus: st.FeeStatus, Balance: st.Balance()}
}

func (f *fakeLedger) RecordPayment(ctx context.Context, payment *models.Payment) (*models.LedgerSnapshot, error) {
	f.mu.Lock()
	if f.recordErr != nil {
		f.mu.Unlock()
		return nil, f.recordErr
	}
	if f.panicNext {
		f.panicNext = false
		f.mu.Unlock()
		panic("driver crashed")
	}
	if _, ok := f.students[payment.StudentID]; !ok {
		f.mu.Unlock()
		return nil, sql.ErrNoRows
	}
	clone := *payment
	f.payments[payment.ID] = &clone
	f.mu.Unlock()
	return f.apply(payment.StudentID, payment.Amount), nil
}

func (f *fakeLedger) DeletePayment(ctx context.Context, id string) (*models.Payment, *models.LedgerSnapshot, error) {
	f.mu.Lock()
	payment, ok := f.payments[id]
	if ok {
		delete(f.payments, id)
	}
	f.mu.Unlock()
	if !ok {
		return nil, nil, sql.ErrNoRows
	}
	return payment, f.apply(payment.StudentID, payment.Amount.Neg()), nil
}

func (f *fakeLedger) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	items, err := f.ListAll(ctx, filter)
	return items, len(items), err
}

func (f *fakeLedger) ListAll(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if filter.StudentID == "" || p.StudentID == filter.StudentID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeLedger) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *p
	return &clone, nil
}

func (f *fakeLedger) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auditLogs = append(f.auditLogs, log)
	return nil
}

type fakeStudentReader struct{ ledger *fakeLedger }

func (r fakeStudentReader) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	r.ledger.mu.Lock()
	defer r.ledger.mu.Unlock()
	st, ok := r.ledger.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *st
	return &clone, nil
}

func newTestFeeService(ledger *fakeLedger) *FeeService {
	svc := NewFeeService(ledger, fakeStudentReader{ledger}, ledger, nil, nil, nil, "Compass Institute")
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC) }
	return svc
}

var adminIdentity = &models.Identity{UserID: "admin-1", Roles: models.NewRoleSet(models.RoleAdmin)}

func payment(studentID, amount string) models.PaymentRequest {
	return models.PaymentRequest{StudentID: studentID, Amount: decimal.RequireFromString(amount)}
}

func TestFeeServiceLedgerLifecycle(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestFeeService(ledger)
	studentID := ledger.addStudent("10000", nil)

	res, err := svc.RecordPayment(context.Background(), payment(studentID, "5000"), adminIdentity)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPartial, res.Ledger.FeeStatus)
	assert.True(t, res.Ledger.PaidFee.Equal(decimal.NewFromInt(5000)))
	assert.True(t, res.Ledger.Balance.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, "2024-03-15", res.Payment.PaymentDate.String())
	require.NotNil(t, res.Payment.ReceiptNumber)
	assert.Regexp(t, `^RCPT-20240315-[0-9A-F]{8}$`, *res.Payment.ReceiptNumber)
	require.NotNil(t, res.Payment.CreatedBy)
	assert.Equal(t, "admin-1", *res.Payment.CreatedBy)

	second, err := svc.RecordPayment(context.Background(), payment(studentID, "5000"), adminIdentity)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPaid, second.Ledger.FeeStatus)

	deleted, err := svc.DeletePayment(context.Background(), second.Payment.ID, adminIdentity)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPartial, deleted.Ledger.FeeStatus)

	deleted, err = svc.DeletePayment(context.Background(), res.Payment.ID, adminIdentity)
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPending, deleted.Ledger.FeeStatus)
	assert.True(t, deleted.Ledger.PaidFee.IsZero())

	require.Len(t, ledger.auditLogs, 4)
	assert.Equal(t, models.AuditActionPaymentCreate, ledger.auditLogs[0].Action)
	assert.Equal(t, models.AuditActionPaymentDelete, ledger.auditLogs[3].Action)
}

func TestFeeServiceConcurrentPaymentsAreSerialised(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestFeeService(ledger)
	studentID := ledger.addStudent("1000", nil)

	const workers = 40
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordPayment(context.Background(), payment(studentID, "25"), adminIdentity)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.True(t, ledger.paid(studentID).Equal(decimal.NewFromInt(1000)), "paid=%s", ledger.paid(studentID))
	assert.Zero(t, svc.locks.size())
}

func TestFeeServiceTwoParallelPayments(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestFeeService(ledger)
	studentID := ledger.addStudent("500", nil)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordPayment(context.Background(), payment(studentID, "100"), adminIdentity)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.True(t, ledger.paid(studentID).Equal(decimal.NewFromInt(200)))
}

func TestFeeServiceRejectsInvalidPayments(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestFeeService(ledger)
	studentID := ledger.addStudent("1000", nil)

	cases := map[string]models.PaymentRequest{
		"zero amount":       payment(studentID, "0"),
		"negative amount":   payment(studentID, "-10"),
		"fractional cents":  payment(studentID, "10.005"),
		"missing student":   payment("", "10"),
		"malformed student": payment("not-a-uuid", "10"),
		"unknown student":   payment(uuid.NewString(), "10"),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.RecordPayment(context.Background(), req, adminIdentity)
			require.Error(t, err)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
	assert.True(t, ledger.paid(studentID).IsZero())
}

func TestFeeServiceStoreUnavailable(t *testing.T) {
	ledger := newFakeLedger()
	ledger.recordErr = sql.ErrConnDone
	svc := newTestFeeService(ledger)
	studentID := ledger.addStudent("1000", nil)

	_, err := svc.RecordPayment(context.Background(), payment(studentID, "10"), adminIdentity)
	assert.ErrorIs(t, err, appErrors.ErrStoreUnavailable)
}

func TestFeeServiceDeleteUnknownPayment(t *testing.T) {
	svc := newTestFeeService(newFakeLedger())
	_, err := svc.DeletePayment(context.Background(), uuid.NewString(), adminIdentity)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestFeeServiceMalformedIDsAreNotFound(t *testing.T) {
	svc := newTestFeeService(newFakeLedger())

	_, err := svc.DeletePayment(context.Background(), "not-a-uuid", adminIdentity)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = svc.Get(context.Background(), "42")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, _, err = svc.Receipt(context.Background(), "")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	_, err = svc.StudentLedger(context.Background(), "s-1", adminIdentity)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestFeeServiceReleasesLockAfterRepositoryPanic(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestFeeService(ledger)
	studentID := ledger.addStudent("1000", nil)
	ledger.panicNext = true

	assert.Panics(t, func() {
		_, _ = svc.RecordPayment(context.Background(), payment(studentID, "10"), adminIdentity)
	})
	assert.Zero(t, svc.locks.size())

	done := make(chan error, 1)
	go func() {
		_, err := svc.RecordPayment(context.Background(), payment(studentID, "10"), adminIdentity)
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("payment blocked on a lock left by the panicking call")
	}
	assert.True(t, ledger.paid(studentID).Equal(decimal.NewFromInt(10)))
}

func TestFeeServiceStudentLedgerOwnership(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestFeeService(ledger)
	owner := "user-7"
	studentID := ledger.addStudent("1000", &owner)
	_, err := svc.RecordPayment(context.Background(), payment(studentID, "400"), adminIdentity)
	require.NoError(t, err)

	self := &models.Identity{UserID: owner, Roles: models.NewRoleSet(models.RoleStudent)}
	view, err := svc.StudentLedger(context.Background(), studentID, self)
	require.NoError(t, err)
	assert.Len(t, view.Payments, 1)
	assert.True(t, view.Balance.Equal(decimal.NewFromInt(600)))

	stranger := &models.Identity{UserID: "user-8", Roles: models.NewRoleSet(models.RoleStudent)}
	_, err = svc.StudentLedger(context.Background(), studentID, stranger)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.StudentLedger(context.Background(), uuid.NewString(), adminIdentity)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestFeeServiceReceiptAndExport(t *testing.T) {
	ledger := newFakeLedger()
	svc := newTestFeeService(ledger)
	studentID := ledger.addStudent("1000", nil)
	receipt := "=HYPERLINK(\"x\")"
	req := payment(studentID, "250.50")
	req.ReceiptNumber = &receipt
	res, err := svc.RecordPayment(context.Background(), req, adminIdentity)
	require.NoError(t, err)

	pdf, filename, err := svc.Receipt(context.Background(), res.Payment.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Contains(t, filename, ".pdf")

	csv, err := svc.Export(context.Background(), models.PaymentFilter{StudentID: studentID})
	require.NoError(t, err)
	assert.Contains(t, string(csv), "250.50")
	assert.Contains(t, string(csv), `'=HYPERLINK`)
}
