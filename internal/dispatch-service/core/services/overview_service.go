package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/dto"
	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/mylogger"
)

const maxActivePageSize = 100

var _ ports.IOverviewService = (*OverviewService)(nil)

// OverviewService backs the admin dashboard.
type OverviewService struct {
	mylog    mylogger.Logger
	overview ports.IOverviewRepo
	clock    func() time.Time
}

func NewOverviewService(log mylogger.Logger, overview ports.IOverviewRepo) *OverviewService {
	return &OverviewService{
		mylog:    log,
		overview: overview,
		clock:    time.Now,
	}
}

func (s *OverviewService) SystemOverview(ctx context.Context) (dto.SystemOverview, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := s.clock().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	m, err := s.overview.Metrics(ctx, dayStart)
	if err != nil {
		s.mylog.Action("SystemOverview").Error("failed to get metrics", err)
		return dto.SystemOverview{}, fmt.Errorf("get metrics: %w", err)
	}

	rate := 0.0
	if m.JobsToday > 0 {
		rate = math.Round(float64(m.CancelledToday)/float64(m.JobsToday)*1000) / 1000
	}

	return dto.SystemOverview{
		Timestamp: now.Format(time.RFC3339),
		Jobs: dto.JobMetrics{
			Pending:           m.JobsByStatus[model.JobPending],
			Assigned:          m.JobsByStatus[model.JobAssigned],
			InProgress:        m.JobsByStatus[model.JobInProgress],
			Completed:         m.JobsByStatus[model.JobCompleted],
			Cancelled:         m.JobsByStatus[model.JobCancelled],
			PendingExtensions: m.PendingExtensions,
		},
		Drivers: dto.DriverMetrics{
			Online:           m.OnlineDrivers,
			Busy:             m.BusyDrivers,
			PendingApprovals: m.PendingApprovals,
		},
		Today: dto.TodayMetrics{
			Created:          m.JobsToday,
			Completed:        m.CompletedToday,
			Cancelled:        m.CancelledToday,
			CancellationRate: rate,
			Revenue:          m.RevenueToday,
			Payouts:          m.PayoutsToday,
		},
	}, nil
}

// ActiveJobs lists assigned and in-progress jobs. page starts at 1.
func (s *OverviewService) ActiveJobs(ctx context.Context, page, pageSize int) (dto.ActiveJobs, error) {
	if page < 1 {
		return dto.ActiveJobs{}, myerrors.NewValidation("page", "must be at least 1")
	}
	if pageSize < 1 || pageSize > maxActivePageSize {
		return dto.ActiveJobs{}, myerrors.NewValidation("page_size", fmt.Sprintf("must be in range [1, %d]", maxActivePageSize))
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	total, jobs, err := s.overview.ActiveJobs(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		s.mylog.Action("ActiveJobs").Error("failed to list active jobs", err, "page", page)
		return dto.ActiveJobs{}, fmt.Errorf("list active jobs: %w", err)
	}

	out := dto.ActiveJobs{
		Jobs:       make([]dto.JobResponse, 0, len(jobs)),
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	}
	for _, j := range jobs {
		out.Jobs = append(out.Jobs, dto.NewJobResponse(j))
	}
	return out, nil
}
