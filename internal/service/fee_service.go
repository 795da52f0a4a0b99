package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-compass-api/internal/models"
	"github.com/noah-isme/institute-compass-api/pkg/database"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
	"github.com/noah-isme/institute-compass-api/pkg/export"
)

// maxPayment keeps amounts inside NUMERIC(12,2).
var maxPayment = decimal.New(1, 10)

type feeRepository interface {
	RecordPayment(ctx context.Context, payment *models.Payment) (*models.LedgerSnapshot, error)
	DeletePayment(ctx context.Context, id string) (*models.Payment, *models.LedgerSnapshot, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	ListAll(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// FeeService records and reverses payments while keeping each student's paid_fee equal
// to the sum of their surviving payments.
type FeeService struct {
	repo      feeRepository
	students  studentReader
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	institute string
	locks     *keyedMutex
	now       func() time.Time
}

// NewFeeService constructs a FeeService.
func NewFeeService(repo feeRepository, students studentReader, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, institute string) *FeeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if institute == "" {
		institute = "Institute Compass"
	}
	return &FeeService{
		repo:      repo,
		students:  students,
		audit:     audit,
		validator: validate,
		logger:    logger,
		metrics:   metrics,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		institute: institute,
		locks:     newKeyedMutex(),
		now:       time.Now,
	}
}

// RecordPayment stores a payment and returns it with the student's updated ledger.
func (s *FeeService) RecordPayment(ctx context.Context, req models.PaymentRequest, actor *models.Identity) (*models.PaymentResult, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid payment payload")
	}
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:            uuid.NewString(),
		StudentID:     req.StudentID,
		Amount:        req.Amount,
		PaymentDate:   models.NewDate(s.now()),
		PaymentMethod: trimmed(req.PaymentMethod),
		ReceiptNumber: trimmed(req.ReceiptNumber),
		Notes:         trimmed(req.Notes),
	}
	if req.PaymentDate != nil && !req.PaymentDate.IsZero() {
		payment.PaymentDate = *req.PaymentDate
	}
	if payment.ReceiptNumber == nil {
		number := s.receiptNumber(payment)
		payment.ReceiptNumber = &number
	}
	if actor != nil {
		payment.CreatedBy = &actor.UserID
	}

	var snapshot *models.LedgerSnapshot
	err := func() (err error) {
		defer s.locks.Lock(payment.StudentID)()
		snapshot, err = s.repo.RecordPayment(ctx, payment)
		return err
	}()
	s.metrics.RecordLedgerOperation("record", payment.Amount.InexactFloat64(), err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || database.IsForeignKeyViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student not found")
		}
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "receipt number already used")
		}
		return nil, storeError(err, "failed to record payment")
	}

	s.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID),
		zap.String("student_id", payment.StudentID),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("fee_status", string(snapshot.FeeStatus)),
	)
	s.record(ctx, actor, models.AuditActionPaymentCreate, payment, snapshot)
	return &models.PaymentResult{Payment: payment, Ledger: snapshot}, nil
}

// DeletePayment reverses a payment and returns the student's updated ledger.
func (s *FeeService) DeletePayment(ctx context.Context, id string, actor *models.Identity) (*models.PaymentResult, error) {
	if !isUUID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, storeError(err, "failed to load payment")
	}

	var (
		payment  *models.Payment
		snapshot *models.LedgerSnapshot
	)
	err = func() (err error) {
		defer s.locks.Lock(existing.StudentID)()
		payment, snapshot, err = s.repo.DeletePayment(ctx, id)
		return err
	}()
	if err != nil {
		s.metrics.RecordLedgerOperation("delete", 0, err)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, storeError(err, "failed to delete payment")
	}
	s.metrics.RecordLedgerOperation("delete", payment.Amount.InexactFloat64(), nil)

	s.logger.Info("payment deleted",
		zap.String("payment_id", payment.ID),
		zap.String("student_id", payment.StudentID),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("fee_status", string(snapshot.FeeStatus)),
	)
	s.record(ctx, actor, models.AuditActionPaymentDelete, payment, snapshot)
	return &models.PaymentResult{Payment: payment, Ledger: snapshot}, nil
}

// List returns a page of payments.
func (s *FeeService) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, *models.Pagination, error) {
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, storeError(err, "failed to list payments")
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	return payments, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one payment.
func (s *FeeService) Get(ctx context.Context, id string) (*models.Payment, error) {
	if !isUUID(id) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
	}
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, storeError(err, "failed to load payment")
	}
	return payment, nil
}

// StudentLedger returns a student's fee position. Non-staff callers only see their own.
func (s *FeeService) StudentLedger(ctx context.Context, studentID string, caller *models.Identity) (*models.StudentLedger, error) {
	if !isUUID(studentID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, storeError(err, "failed to load student")
	}
	if !canSeeStudent(caller, &student.Student) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "access denied")
	}
	payments, err := s.repo.ListAll(ctx, models.PaymentFilter{StudentID: studentID})
	if err != nil {
		return nil, storeError(err, "failed to list payments")
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	return &models.StudentLedger{Student: student, Payments: payments, Balance: student.Balance()}, nil
}

// Receipt renders a PDF acknowledgement for one payment.
func (s *FeeService) Receipt(ctx context.Context, id string) ([]byte, string, error) {
	payment, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	student, err := s.students.FindByID(ctx, payment.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, "", storeError(err, "failed to load student")
	}

	number := payment.ID
	if payment.ReceiptNumber != nil {
		number = *payment.ReceiptNumber
	}
	fields := []export.Field{
		{Label: "Student", Value: student.FullName},
		{Label: "Enrollment No.", Value: student.EnrollmentNumber},
		{Label: "Payment date", Value: payment.PaymentDate.String()},
		{Label: "Amount", Value: payment.Amount.StringFixed(2)},
		{Label: "Method", Value: deref(payment.PaymentMethod, "-")},
	}
	if student.CourseName != nil {
		fields = append(fields, export.Field{Label: "Course", Value: *student.CourseName})
	}
	if payment.Notes != nil {
		fields = append(fields, export.Field{Label: "Notes", Value: *payment.Notes})
	}
	body, err := s.pdf.Receipt(export.Receipt{
		Institute: s.institute,
		Title:     "Fee Receipt",
		Number:    number,
		Fields:    fields,
		Summary: []export.Field{
			{Label: "Total fee", Value: student.TotalFee.StringFixed(2)},
			{Label: "Paid to date", Value: student.PaidFee.StringFixed(2)},
			{Label: "Balance", Value: student.Balance().StringFixed(2)},
			{Label: "Status", Value: string(student.FeeStatus)},
		},
		Footer: "This is a computer generated receipt issued on " + s.now().UTC().Format(models.DateLayout) + ".",
	})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return body, fmt.Sprintf("receipt-%s.pdf", payment.ID), nil
}

// Export renders every matching payment as CSV.
func (s *FeeService) Export(ctx context.Context, filter models.PaymentFilter) ([]byte, error) {
	payments, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, storeError(err, "failed to list payments")
	}
	dataset := export.Dataset{Headers: []string{"payment_id", "receipt_number", "payment_date", "student_id", "student_name", "enrollment_number", "amount", "payment_method", "notes"}}
	for _, p := range payments {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"payment_id":        p.ID,
			"receipt_number":    deref(p.ReceiptNumber, ""),
			"payment_date":      p.PaymentDate.String(),
			"student_id":        p.StudentID,
			"student_name":      deref(p.StudentName, ""),
			"enrollment_number": deref(p.EnrollmentNumber, ""),
			"amount":            p.Amount.StringFixed(2),
			"payment_method":    deref(p.PaymentMethod, ""),
			"notes":             deref(p.Notes, ""),
		})
	}
	body, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return body, nil
}

func (s *FeeService) receiptNumber(p *models.Payment) string {
	return fmt.Sprintf("RCPT-%s-%s", p.PaymentDate.Format("20060102"), strings.ToUpper(p.ID[:8]))
}

func (s *FeeService) record(ctx context.Context, actor *models.Identity, action string, payment *models.Payment, snapshot *models.LedgerSnapshot) {
	if s.audit == nil {
		return
	}
	entry := models.NewAuditLog(action, "fee_payment", models.RequestMeta{}).
		On(payment.ID).
		With(map[string]interface{}{
			"student_id": payment.StudentID,
			"amount":     payment.Amount,
			"paid_fee":   snapshot.PaidFee,
			"fee_status": snapshot.FeeStatus,
		})
	entry.RequestID = requestIDFrom(ctx)
	if actor != nil {
		entry.By(actor.UserID)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record payment audit log", zap.String("payment_id", payment.ID), zap.Error(err))
	}
}

func validateAmount(amount decimal.Decimal) error {
	switch {
	case !amount.IsPositive():
		return appErrors.Clone(appErrors.ErrValidation, "amount must be greater than zero")
	case !amount.Equal(amount.Round(2)):
		return appErrors.Clone(appErrors.ErrValidation, "amount supports at most two decimal places")
	case amount.GreaterThanOrEqual(maxPayment):
		return appErrors.Clone(appErrors.ErrValidation, "amount is too large")
	}
	return nil
}

// canSeeStudent allows staff and the identity linked to the student record.
func canSeeStudent(caller *models.Identity, student *models.Student) bool {
	if caller == nil {
		return false
	}
	if caller.IsStaff() {
		return true
	}
	return student.UserID != nil && *student.UserID == caller.UserID
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	return emptyToNil(*v)
}

func deref(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}
