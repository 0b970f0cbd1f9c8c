package ports

import (
	"context"
	"encoding/json"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
)

type IDB interface {
	IsAlive(ctx context.Context) error
	Close() error
}

// JobTransition is one conditional write against a job row. It matches only
// when the row is in one of From and, if set, assigned to Driver and owned by
// Customer.
type JobTransition struct {
	JobID        string
	From         []model.JobStatus
	To           model.JobStatus
	Driver       *string
	Customer     *string
	ClearDriver  bool
	At           time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CancelReason string

	// PayoutPercent, when set, stamps driver_payout from the billed total in
	// the same write.
	PayoutPercent *int
	PayoutVersion string
}

// TransitionResult is the row after a matched transition together with the
// status and driver it had just before.
type TransitionResult struct {
	Job            model.Job
	PreviousStatus model.JobStatus
	PreviousDriver *string
}

// AvailableQuery selects pending unowned jobs of the given service types.
// With Near set, rows come nearest first and a positive RadiusKm drops
// farther pickups before Limit applies; otherwise newest first.
type AvailableQuery struct {
	Capabilities []model.ServiceType
	Near         *model.Location
	RadiusKm     float64
	Limit        int
}

type IJobsRepo interface {
	Create(ctx context.Context, job model.Job) error
	Get(ctx context.Context, jobId string) (model.Job, error)
	GetByTrackingToken(ctx context.Context, token string) (model.Job, error)
	GetByPaymentReference(ctx context.Context, ref string) (model.Job, error)

	// Claim assigns driverId only if the job is still pending and unowned.
	// matched is false when another caller got there first.
	Claim(ctx context.Context, jobId, driverId string, at time.Time) (job model.Job, matched bool, err error)
	Transition(ctx context.Context, t JobTransition) (res TransitionResult, matched bool, err error)

	ListAvailable(ctx context.Context, q AvailableQuery) ([]model.AvailableJob, error)
	ListActiveByDriver(ctx context.Context, driverId string) ([]model.Job, error)
}

type IDriversRepo interface {
	Create(ctx context.Context, driver model.Driver) error
	Get(ctx context.Context, driverId string) (model.Driver, error)
	SetApproval(ctx context.Context, driverId string, status model.ApprovalStatus) (model.Driver, error)
	SetOnline(ctx context.Context, driverId string, online bool, loc *model.Location) (model.Driver, error)
	UpdateLocation(ctx context.Context, driverId string, loc model.Location) (model.Driver, error)
}

type IEventsRepo interface {
	Append(ctx context.Context, channel, eventType string, payload json.RawMessage) (model.Event, error)
	// Read returns events of channel with id > since in ascending order.
	Read(ctx context.Context, channel string, since int64, limit int) ([]model.Event, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

type IExtensionsRepo interface {
	// Create fails with myerrors.ErrExtensionPending if the job already has a pending request.
	Create(ctx context.Context, ext model.TimeExtension) error
	Get(ctx context.Context, extensionId string) (model.TimeExtension, error)
	// Resolve moves a pending request to status and, when approved, adds its
	// cost to the job's billed total in the same transaction.
	Resolve(ctx context.Context, extensionId string, status model.ExtensionStatus, at time.Time) (ext model.TimeExtension, job model.Job, matched bool, err error)
}

// IOverviewRepo answers the admin dashboard queries.
type IOverviewRepo interface {
	Metrics(ctx context.Context, dayStart time.Time) (OverviewMetrics, error)
	ActiveJobs(ctx context.Context, limit, offset int) (int, []model.Job, error)
}

type OverviewMetrics struct {
	JobsByStatus      map[model.JobStatus]int
	JobsToday         int
	CancelledToday    int
	CompletedToday    int
	RevenueToday      model.Money
	PayoutsToday      model.Money
	OnlineDrivers     int
	BusyDrivers       int
	PendingApprovals  int
	PendingExtensions int
}
