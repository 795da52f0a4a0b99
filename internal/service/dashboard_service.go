package service

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-compass-api/internal/models"
	appErrors "github.com/noah-isme/institute-compass-api/pkg/errors"
)

const (
	defaultDashboardMonths = 6
	maxDashboardMonths     = 24
)

type dashboardRepository interface {
	StudentBreakdown(ctx context.Context) ([]models.StudentBreakdownRow, error)
	CatalogCounts(ctx context.Context) (*models.CatalogCounts, error)
	EnquiryCounts(ctx context.Context) ([]models.StatusCount, error)
	MonthlyCollections(ctx context.Context, since models.Date) ([]models.MonthlyCollection, error)
}

// DashboardService composes the staff dashboard summary. Results are cached for the
// cache TTL, so figures may trail the ledger by that long.
type DashboardService struct {
	repo   dashboardRepository
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(repo dashboardRepository, cache *CacheService, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, cache: cache, logger: logger, now: time.Now}
}

// Summary returns the institute summary with collections for the last months calendar
// months including the current one. months of 0 selects the default.
func (s *DashboardService) Summary(ctx context.Context, months int) (*models.DashboardSummary, bool, error) {
	if months == 0 {
		months = defaultDashboardMonths
	}
	if months < 1 || months > maxDashboardMonths {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "months must be between 1 and 24")
	}
	key := s.cache.Key(CacheGroupDashboard, "summary", strconv.Itoa(months))
	summary, hit, err := Cached(ctx, s.cache, key, func() (*models.DashboardSummary, error) {
		return s.compose(ctx, months)
	})
	if err != nil {
		return nil, false, err
	}
	return summary, hit, nil
}

func (s *DashboardService) compose(ctx context.Context, months int) (*models.DashboardSummary, error) {
	now := s.now().UTC()
	summary := &models.DashboardSummary{
		Students: models.StudentCounts{
			ByStatus:    map[string]int{},
			ByFeeStatus: map[string]int{},
		},
		Fees: models.FeeTotals{
			Billed:      decimal.Zero,
			Collected:   decimal.Zero,
			Outstanding: decimal.Zero,
		},
		Enquiries:   map[string]int{},
		GeneratedAt: now,
	}

	rows, err := s.repo.StudentBreakdown(ctx)
	if err != nil {
		return nil, storeError(err, "failed to summarise students")
	}
	for _, row := range rows {
		summary.Students.Total += row.Count
		summary.Students.ByStatus[row.Status] += row.Count
		summary.Students.ByFeeStatus[row.FeeStatus] += row.Count
		summary.Fees.Billed = summary.Fees.Billed.Add(row.TotalFee)
		summary.Fees.Collected = summary.Fees.Collected.Add(row.PaidFee)
		summary.Fees.Outstanding = summary.Fees.Outstanding.Add(row.Outstanding)
	}

	counts, err := s.repo.CatalogCounts(ctx)
	if err != nil {
		return nil, storeError(err, "failed to count catalog")
	}
	summary.Catalog = *counts

	enquiries, err := s.repo.EnquiryCounts(ctx)
	if err != nil {
		return nil, storeError(err, "failed to count enquiries")
	}
	for _, row := range enquiries {
		summary.Enquiries[row.Status] = row.Count
	}

	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	since := models.NewDate(firstOfMonth.AddDate(0, -(months - 1), 0))
	collected, err := s.repo.MonthlyCollections(ctx, since)
	if err != nil {
		return nil, storeError(err, "failed to summarise collections")
	}
	summary.MonthlyCollections = fillMonths(collected, since.Time, months)
	return summary, nil
}

// fillMonths returns one entry per month from start, zero-filling months without payments.
func fillMonths(rows []models.MonthlyCollection, start time.Time, months int) []models.MonthlyCollection {
	byMonth := make(map[string]models.MonthlyCollection, len(rows))
	for _, row := range rows {
		byMonth[row.Month] = row
	}
	out := make([]models.MonthlyCollection, 0, months)
	for i := 0; i < months; i++ {
		month := start.AddDate(0, i, 0).Format("2006-01")
		row, ok := byMonth[month]
		if !ok {
			row = models.MonthlyCollection{Month: month, Amount: decimal.Zero}
		}
		out = append(out, row)
	}
	return out
}
