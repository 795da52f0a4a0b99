package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/institute-compass-api/internal/models"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
)

type fakeDashboardRepo struct {
	breakdown   []models.StudentBreakdownRow
	catalog     models.CatalogCounts
	enquiries   []models.StatusCount
	collections []models.MonthlyCollection
	since       models.Date
	calls       int
	err         error
}

func (f *fakeDashboardRepo) StudentBreakdown(context.Context) ([]models.StudentBreakdownRow, error) {
	f.calls++
	return f.breakdown, f.err
}

func (f *fakeDashboardRepo) CatalogCounts(context.Context) (*models.CatalogCounts, error) {
	counts := f.catalog
	return &counts, nil
}

func (f *fakeDashboardRepo) EnquiryCounts(context.Context) ([]models.StatusCount, error) {
	return f.enquiries, nil
}

func (f *fakeDashboardRepo) MonthlyCollections(_ context.Context, since models.Date) ([]models.MonthlyCollection, error) {
	f.since = since
	return f.collections, nil
}

func seededDashboardRepo() *fakeDashboardRepo {
	d := decimal.RequireFromString
	return &fakeDashboardRepo{
		breakdown: []models.StudentBreakdownRow{
			{Status: "active", FeeStatus: "partial", Count: 3, TotalFee: d("30000"), PaidFee: d("12000"), Outstanding: d("18000")},
			{Status: "active", FeeStatus: "pending", Count: 1, TotalFee: d("10000"), PaidFee: d("0"), Outstanding: d("10000")},
			{Status: "completed", FeeStatus: "paid", Count: 2, TotalFee: d("20000"), PaidFee: d("20000"), Outstanding: d("0")},
		},
		catalog:   models.CatalogCounts{ActiveCourses: 4, ActiveBatches: 9, ActiveFaculty: 12, ActiveTests: 6},
		enquiries: []models.StatusCount{{Status: "new", Count: 5}},
		collections: []models.MonthlyCollection{
			{Month: "2024-01", Amount: d("15000"), Payments: 3},
			{Month: "2024-03", Amount: d("4500.50"), Payments: 1},
		},
	}
}

func TestDashboardSummaryAggregates(t *testing.T) {
	repo := seededDashboardRepo()
	svc := NewDashboardService(repo, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) }

	summary, hit, err := svc.Summary(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, hit)

	assert.Equal(t, 6, summary.Students.Total)
	assert.Equal(t, map[string]int{"active": 4, "completed": 2}, summary.Students.ByStatus)
	assert.Equal(t, 3, summary.Students.ByFeeStatus["partial"])
	assert.Equal(t, "60000", summary.Fees.Billed.String())
	assert.Equal(t, "32000", summary.Fees.Collected.String())
	assert.Equal(t, "28000", summary.Fees.Outstanding.String())
	assert.Equal(t, 12, summary.Catalog.ActiveFaculty)
	assert.Equal(t, 5, summary.Enquiries["new"])

	assert.Equal(t, "2024-01-01", repo.since.String())
	require.Len(t, summary.MonthlyCollections, 3)
	assert.Equal(t, "2024-02", summary.MonthlyCollections[1].Month)
	assert.True(t, summary.MonthlyCollections[1].Amount.IsZero())
	assert.Equal(t, "4500.5", summary.MonthlyCollections[2].Amount.String())
}

func TestDashboardSummaryCachesPerWindow(t *testing.T) {
	repo := seededDashboardRepo()
	cache := NewCacheService(newMemCache(), nil, time.Minute, nil, true)
	svc := NewDashboardService(repo, cache, nil)

	_, hit, err := svc.Summary(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, hit)

	summary, hit, err := svc.Summary(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, summary.MonthlyCollections, defaultDashboardMonths)
	assert.Equal(t, 1, repo.calls)

	_, hit, err = svc.Summary(context.Background(), 12)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, repo.calls)
}

func TestDashboardSummaryValidationAndStoreErrors(t *testing.T) {
	svc := NewDashboardService(seededDashboardRepo(), nil, nil)
	_, _, err := svc.Summary(context.Background(), 25)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, _, err = svc.Summary(context.Background(), -1)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	svc = NewDashboardService(&fakeDashboardRepo{err: sql.ErrConnDone}, nil, nil)
	_, _, err = svc.Summary(context.Background(), 1)
	assert.ErrorIs(t, err, appErrors.ErrStoreUnavailable)
}
