package db

import (
	"context"
	"fmt"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/ports"
)

type OverviewRepo struct {
	db *DB
}

func NewOverviewRepo(db *DB) ports.IOverviewRepo {
	return &OverviewRepo{db: db}
}

func (ov *OverviewRepo) Metrics(ctx context.Context, dayStart time.Time) (ports.OverviewMetrics, error) {
	m := ports.OverviewMetrics{JobsByStatus: map[model.JobStatus]int{}}

	// Query 1: jobs by status
	rows, err := ov.db.Pool.Query(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return ports.OverviewMetrics{}, fmt.Errorf("failed to count jobs: %w", err)
	}
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return ports.OverviewMetrics{}, fmt.Errorf("failed to scan job count: %w", err)
		}
		m.JobsByStatus[model.JobStatus(status)] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ports.OverviewMetrics{}, fmt.Errorf("failed to count jobs: %w", err)
	}

	// Query 2: today's jobs and money
	q2 := `
	SELECT
		COUNT(*) FILTER (WHERE created_at >= $1),
		COUNT(*) FILTER (WHERE status = 'cancelled' AND cancelled_at >= $1),
		COUNT(*) FILTER (WHERE status = 'completed' AND completed_at >= $1),
		COALESCE(SUM(billed_total) FILTER (WHERE status = 'completed' AND completed_at >= $1), 0),
		COALESCE(SUM(driver_payout) FILTER (WHERE status = 'completed' AND completed_at >= $1), 0)
	FROM jobs`
	var revenue, payouts int64
	err = ov.db.Pool.QueryRow(ctx, q2, dayStart).Scan(
		&m.JobsToday,
		&m.CancelledToday,
		&m.CompletedToday,
		&revenue,
		&payouts,
	)
	if err != nil {
		return ports.OverviewMetrics{}, fmt.Errorf("failed to get job metrics: %w", err)
	}
	m.RevenueToday, m.PayoutsToday = model.Money(revenue), model.Money(payouts)

	// Query 3: drivers and extensions
	q3 := `
	SELECT
		(SELECT COUNT(*) FROM drivers WHERE is_online AND approval_status = 'approved'),
		(SELECT COUNT(DISTINCT assigned_driver_id) FROM jobs WHERE status IN ('assigned', 'in_progress')),
		(SELECT COUNT(*) FROM drivers WHERE approval_status = 'pending'),
		(SELECT COUNT(*) FROM time_extensions WHERE status = 'pending')`
	err = ov.db.Pool.QueryRow(ctx, q3).Scan(
		&m.OnlineDrivers,
		&m.BusyDrivers,
		&m.PendingApprovals,
		&m.PendingExtensions,
	)
	if err != nil {
		return ports.OverviewMetrics{}, fmt.Errorf("failed to get driver metrics: %w", err)
	}

	return m, nil
}

func (ov *OverviewRepo) ActiveJobs(ctx context.Context, limit, offset int) (int, []model.Job, error) {
	q1 := `SELECT COUNT(*) FROM jobs WHERE status IN ('assigned', 'in_progress')`

	totalCount := 0
	if err := ov.db.Pool.QueryRow(ctx, q1).Scan(&totalCount); err != nil {
		return 0, nil, fmt.Errorf("failed to get total count: %w", err)
	}

	q2 := `SELECT ` + columns("") + `
		FROM jobs
		WHERE status IN ('assigned', 'in_progress')
		ORDER BY scheduled_for, job_id
		LIMIT $1 OFFSET $2`
	jobs, err := (&JobsRepo{db: ov.db}).list(ctx, q2, limit, offset)
	if err != nil {
		return 0, nil, err
	}
	return totalCount, jobs, nil
}
