package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/yungbote/labtwin-backend/internal/data/repos"
	types "github.com/yungbote/labtwin-backend/internal/domain"
	"github.com/yungbote/labtwin-backend/internal/inference/router"
	"github.com/yungbote/labtwin-backend/internal/platform/apierr"
	"github.com/yungbote/labtwin-backend/internal/platform/logger"
)

const (
	defaultUsageDays = 7
	maxUsageDays     = 90
)

type DailyUsage struct {
	Date          string  `json:"date"`
	Requests      int     `json:"requests"`
	Successes     int     `json:"successes"`
	Hints         int     `json:"hints"`
	TotalTokens   int     `json:"totalTokens"`
	EstimatedCost float64 `json:"estimatedCost"`
}

type UsageSummary struct {
	Days      int                   `json:"days"`
	Since     time.Time             `json:"since"`
	Daily     []DailyUsage          `json:"daily"`
	Providers []repos.ProviderUsage `json:"providers"`
}

type UsageService interface {
	// Summary aggregates AI usage over the last days days (default 7,
	// capped at 90).
	Summary(ctx context.Context, days int) (*UsageSummary, error)
}

type usageService struct {
	db    *gorm.DB
	log   *logger.Logger
	usage repos.AIUsageRepo
	now   func() time.Time
}

func NewUsageService(db *gorm.DB, baseLog *logger.Logger, usageRepo repos.AIUsageRepo) UsageService {
	return &usageService{
		db:    db,
		log:   baseLog.With("service", "UsageService"),
		usage: usageRepo,
		now:   time.Now,
	}
}

func (s *usageService) Summary(ctx context.Context, days int) (*UsageSummary, error) {
	if days <= 0 {
		days = defaultUsageDays
	}
	days = min(days, maxUsageDays)

	today := s.now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))

	rows, err := s.usage.ListSince(ctx, nil, since)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	providers, err := s.usage.SummarizeByProvider(ctx, nil, since)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if providers == nil {
		providers = []repos.ProviderUsage{}
	}

	daily := make([]DailyUsage, days)
	index := make(map[string]int, days)
	for i := range daily {
		d := since.AddDate(0, 0, i).Format(time.DateOnly)
		daily[i].Date = d
		index[d] = i
	}
	for _, r := range rows {
		i, ok := index[r.CreatedAt.UTC().Format(time.DateOnly)]
		if !ok {
			continue
		}
		b := &daily[i]
		b.Requests++
		if r.Success {
			b.Successes++
		}
		if r.RequestType == types.RequestTypeHint && r.Success {
			b.Hints++
		}
		b.TotalTokens += r.TotalTokens
		b.EstimatedCost += r.EstimatedCost
	}

	return &UsageSummary{Days: days, Since: since, Daily: daily, Providers: providers}, nil
}

// StatusService reports provider health for the status endpoint.
type StatusService interface {
	Status(ctx context.Context) router.Status
}

type statusProvider interface {
	Status(ctx context.Context) router.Status
}

type statusService struct {
	router statusProvider
}

func NewStatusService(r statusProvider) StatusService {
	return &statusService{router: r}
}

func (s *statusService) Status(ctx context.Context) router.Status {
	return s.router.Status(ctx)
}
