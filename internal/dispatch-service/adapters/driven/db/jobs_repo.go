package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/dispatch-service/core/ports"

	"github.com/jackc/pgx/v5"
)

var jobColumns = []string{
	"job_id", "service_type",
	"customer_id", "customer_name", "customer_phone", "customer_email",
	"pickup_line1", "pickup_line2", "pickup_city", "pickup_state", "pickup_postal_code", "pickup_lat", "pickup_lng",
	"scheduled_for", "time_window", "volume_tier", "helper_count", "estimated_hours", "notes",
	"pricing_snapshot", "billed_total", "driver_payout", "payout_version", "payment_reference",
	"status", "assigned_driver_id", "tracking_token",
	"created_at", "updated_at", "completed_at", "cancelled_at", "cancel_reason",
}

func columns(table string) string {
	if table == "" {
		return strings.Join(jobColumns, ", ")
	}
	qualified := make([]string, len(jobColumns))
	for i, c := range jobColumns {
		qualified[i] = table + "." + c
	}
	return strings.Join(qualified, ", ")
}

type JobsRepo struct {
	db *DB
}

func NewJobsRepo(db *DB) ports.IJobsRepo {
	return &JobsRepo{
		db: db,
	}
}

func (jr *JobsRepo) Create(ctx context.Context, j model.Job) error {
	q := `INSERT INTO jobs (` + columns("") + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
		$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32)`

	var (
		tier    *string
		helpers *int
		hours   *float64
	)
	if j.ServiceType == model.HaulAway {
		t := string(j.VolumeTier)
		tier = &t
	} else {
		helpers = &j.HelperCount
		hours = &j.EstimatedHours
	}

	_, err := jr.db.Pool.Exec(ctx, q,
		j.ID, string(j.ServiceType),
		j.Customer.ID, j.Customer.Name, j.Customer.Phone, j.Customer.Email,
		j.Pickup.Line1, j.Pickup.Line2, j.Pickup.City, j.Pickup.State, j.Pickup.PostalCode,
		j.Pickup.Location.Latitude, j.Pickup.Location.Longitude,
		j.ScheduledFor, string(j.TimeWindow), tier, helpers, hours, j.Notes,
		j.PricingSnapshot, int64(j.BilledTotal), nullableMoney(j.DriverPayout), nullableText(j.PayoutVersion), nullableText(j.PaymentReference),
		string(j.Status), j.AssignedDriverId, j.TrackingToken,
		j.CreatedAt, j.UpdatedAt, j.CompletedAt, j.CancelledAt, j.CancelReason,
	)
	if err != nil {
		if uniqueViolation(err, "jobs_payment_reference_key") {
			return fmt.Errorf("payment %s: %w", j.PaymentReference, myerrors.ErrDuplicatePayment)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (jr *JobsRepo) Get(ctx context.Context, jobId string) (model.Job, error) {
	q := `SELECT ` + columns("") + ` FROM jobs WHERE job_id = $1`
	j, err := scanJob(jr.db.Pool.QueryRow(ctx, q, jobId))
	if err != nil {
		return model.Job{}, notFound(err, "job", jobId)
	}
	return j, nil
}

func (jr *JobsRepo) GetByTrackingToken(ctx context.Context, token string) (model.Job, error) {
	q := `SELECT ` + columns("") + ` FROM jobs WHERE tracking_token = $1`
	j, err := scanJob(jr.db.Pool.QueryRow(ctx, q, token))
	if err != nil {
		return model.Job{}, notFound(err, "job", token)
	}
	return j, nil
}

func (jr *JobsRepo) GetByPaymentReference(ctx context.Context, ref string) (model.Job, error) {
	q := `SELECT ` + columns("") + ` FROM jobs WHERE payment_reference = $1`
	j, err := scanJob(jr.db.Pool.QueryRow(ctx, q, ref))
	if err != nil {
		return model.Job{}, notFound(err, "payment", ref)
	}
	return j, nil
}

// Claim is the one write that decides job ownership. Zero rows means the job
// is gone, taken or missing; the caller tells those apart.
func (jr *JobsRepo) Claim(ctx context.Context, jobId, driverId string, at time.Time) (model.Job, bool, error) {
	q := `UPDATE jobs
		SET
			assigned_driver_id = $2,
			status = 'assigned',
			updated_at = $3
		WHERE job_id = $1 AND status = 'pending' AND assigned_driver_id IS NULL
		RETURNING ` + columns("")

	j, err := scanJob(jr.db.Pool.QueryRow(ctx, q, jobId, driverId, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Job{}, false, nil
		}
		return model.Job{}, false, fmt.Errorf("claim job: %w", err)
	}
	return j, true, nil
}

func (jr *JobsRepo) Transition(ctx context.Context, t ports.JobTransition) (ports.TransitionResult, bool, error) {
	q := `WITH prev AS (
			SELECT job_id, status, assigned_driver_id FROM jobs WHERE job_id = $1 FOR UPDATE
		)
		UPDATE jobs
		SET
			status = $2,
			assigned_driver_id = CASE WHEN $5::boolean THEN NULL ELSE jobs.assigned_driver_id END,
			updated_at = $6,
			completed_at = COALESCE($7, jobs.completed_at),
			cancelled_at = COALESCE($8, jobs.cancelled_at),
			cancel_reason = CASE WHEN $8::timestamptz IS NULL THEN jobs.cancel_reason ELSE $9 END,
			driver_payout = CASE WHEN $10::int IS NULL THEN jobs.driver_payout
				ELSE (jobs.billed_total * $10::int + 50) / 100 END,
			payout_version = COALESCE($11, jobs.payout_version)
		FROM prev
		WHERE jobs.job_id = prev.job_id
			AND jobs.status = ANY($3)
			AND ($4::text IS NULL OR jobs.assigned_driver_id = $4)
			AND ($12::text IS NULL OR jobs.customer_id = $12)
		RETURNING ` + columns("jobs") + `, prev.status, prev.assigned_driver_id`

	from := make([]string, len(t.From))
	for i, s := range t.From {
		from[i] = string(s)
	}

	var (
		res      ports.TransitionResult
		prevStat string
	)
	row := jr.db.Pool.QueryRow(ctx, q,
		t.JobID, string(t.To), from, t.Driver, t.ClearDriver, t.At,
		t.CompletedAt, t.CancelledAt, t.CancelReason, t.PayoutPercent, nullableText(t.PayoutVersion),
		t.Customer,
	)
	j, err := scanJob(row, &prevStat, &res.PreviousDriver)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ports.TransitionResult{}, false, nil
		}
		return ports.TransitionResult{}, false, fmt.Errorf("transition job: %w", err)
	}
	res.Job = j
	res.PreviousStatus = model.JobStatus(prevStat)
	return res, true, nil
}

// pickupDistanceKm is the great-circle distance from ($2, $3) to the pickup,
// rounded to 10 m.
const pickupDistanceKm = `round((6371 * 2 * asin(least(1, sqrt(
		power(sin(radians(pickup_lat - $2::float8) / 2), 2) +
		cos(radians($2::float8)) * cos(radians(pickup_lat)) * power(sin(radians(pickup_lng - $3::float8) / 2), 2)
	))))::numeric, 2)::float8`

func (jr *JobsRepo) ListAvailable(ctx context.Context, aq ports.AvailableQuery) ([]model.AvailableJob, error) {
	caps := make([]string, len(aq.Capabilities))
	for i, c := range aq.Capabilities {
		caps[i] = string(c)
	}

	if aq.Near == nil {
		q := `SELECT ` + columns("") + `, NULL::float8
			FROM jobs
			WHERE status = 'pending' AND assigned_driver_id IS NULL AND service_type = ANY($1)
			ORDER BY created_at DESC
			LIMIT $2`
		return jr.listAvailable(ctx, q, caps, aq.Limit)
	}

	// radius and ordering run before LIMIT so old nearby jobs are not cut
	q := `SELECT ` + columns("") + `, distance_km FROM (
			SELECT *, ` + pickupDistanceKm + ` AS distance_km
			FROM jobs
			WHERE status = 'pending' AND assigned_driver_id IS NULL AND service_type = ANY($1)
		) nearby
		WHERE $4::float8 <= 0 OR distance_km <= $4::float8
		ORDER BY distance_km, created_at DESC
		LIMIT $5`
	return jr.listAvailable(ctx, q, caps, aq.Near.Latitude, aq.Near.Longitude, aq.RadiusKm, aq.Limit)
}

func (jr *JobsRepo) listAvailable(ctx context.Context, q string, args ...any) ([]model.AvailableJob, error) {
	rows, err := jr.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query available jobs: %w", err)
	}
	defer rows.Close()

	var out []model.AvailableJob
	for rows.Next() {
		var km *float64
		j, err := scanJob(rows, &km)
		if err != nil {
			return nil, fmt.Errorf("scan available job: %w", err)
		}
		out = append(out, model.AvailableJob{Job: j, DistanceKm: km})
	}
	return out, rows.Err()
}

func (jr *JobsRepo) ListActiveByDriver(ctx context.Context, driverId string) ([]model.Job, error) {
	q := `SELECT ` + columns("") + `
		FROM jobs
		WHERE assigned_driver_id = $1 AND status IN ('assigned', 'in_progress')
		ORDER BY scheduled_for`
	return jr.list(ctx, q, driverId)
}

func (jr *JobsRepo) list(ctx context.Context, q string, args ...any) ([]model.Job, error) {
	rows, err := jr.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var out []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// scanJob reads jobColumns in order, then any extra destinations.
func scanJob(row rowScanner, extra ...any) (model.Job, error) {
	var (
		j                          model.Job
		serviceType, window, state string
		tier, payoutVersion, ref   *string
		helpers                    *int
		hours                      *float64
		payout                     *int64
		billed                     int64
	)
	dest := []any{
		&j.ID, &serviceType,
		&j.Customer.ID, &j.Customer.Name, &j.Customer.Phone, &j.Customer.Email,
		&j.Pickup.Line1, &j.Pickup.Line2, &j.Pickup.City, &j.Pickup.State, &j.Pickup.PostalCode,
		&j.Pickup.Location.Latitude, &j.Pickup.Location.Longitude,
		&j.ScheduledFor, &window, &tier, &helpers, &hours, &j.Notes,
		&j.PricingSnapshot, &billed, &payout, &payoutVersion, &ref,
		&state, &j.AssignedDriverId, &j.TrackingToken,
		&j.CreatedAt, &j.UpdatedAt, &j.CompletedAt, &j.CancelledAt, &j.CancelReason,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return model.Job{}, err
	}

	j.ServiceType = model.ServiceType(serviceType)
	j.TimeWindow = model.TimeWindow(window)
	j.Status = model.JobStatus(state)
	j.BilledTotal = model.Money(billed)
	if tier != nil {
		j.VolumeTier = model.VolumeTier(*tier)
	}
	if helpers != nil {
		j.HelperCount = *helpers
	}
	if hours != nil {
		j.EstimatedHours = *hours
	}
	if payout != nil {
		m := model.Money(*payout)
		j.DriverPayout = &m
	}
	if payoutVersion != nil {
		j.PayoutVersion = *payoutVersion
	}
	if ref != nil {
		j.PaymentReference = *ref
	}
	return j, nil
}

func nullableText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableMoney(m *model.Money) *int64 {
	if m == nil {
		return nil
	}
	v := int64(*m)
	return &v
}
