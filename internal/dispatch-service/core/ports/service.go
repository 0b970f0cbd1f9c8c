package ports

import (
	"context"
	"encoding/json"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/dto"
	"haul-dispatch/internal/dispatch-service/core/domain/model"
)

type IJobService interface {
	Create(ctx context.Context, actor model.Actor, req dto.CreateJobRequest) (dto.CreateJobResponse, error)
	Get(ctx context.Context, actor model.Actor, jobId string) (dto.JobResponse, error)
	Track(ctx context.Context, req dto.TrackRequest) (dto.TrackResponse, error)

	Claim(ctx context.Context, jobId, driverId string) (dto.JobResponse, error)
	Start(ctx context.Context, jobId, driverId string) (dto.JobResponse, error)
	Complete(ctx context.Context, jobId, driverId string) (dto.JobResponse, error)
	Cancel(ctx context.Context, jobId string, actor model.Actor, reason string) (dto.JobResponse, error)
}

type IMatchingService interface {
	Available(ctx context.Context, driverId string) (dto.AvailableJobsResponse, error)
}

type IFeedService interface {
	Append(ctx context.Context, channel, eventType string, payload json.RawMessage) (model.Event, error)
	Read(ctx context.Context, channel string, since int64) (dto.FeedResponse, error)
	ReadLong(ctx context.Context, channel string, since int64, maxWait time.Duration) (dto.FeedResponse, error)
	Authorize(ctx context.Context, actor model.Actor, channel string) error
}

type IExtensionService interface {
	Request(ctx context.Context, jobId, driverId string, req dto.TimeExtensionRequest) (dto.TimeExtensionResponse, error)
	Resolve(ctx context.Context, extensionId, customerId string, approve bool) (dto.TimeExtensionResponse, error)
}

type IDriverService interface {
	Register(ctx context.Context, req dto.RegisterDriverRequest) (dto.DriverResponse, error)
	SetApproval(ctx context.Context, driverId string, status model.ApprovalStatus) (dto.DriverResponse, error)
	GoOnline(ctx context.Context, driverId string, req dto.PresenceRequest) (dto.DriverResponse, error)
	GoOffline(ctx context.Context, driverId string) (dto.DriverResponse, error)
	UpdateLocation(ctx context.Context, driverId string, req dto.LocationRequest) (dto.DriverResponse, error)
}

type IOverviewService interface {
	SystemOverview(ctx context.Context) (dto.SystemOverview, error)
	ActiveJobs(ctx context.Context, page, pageSize int) (dto.ActiveJobs, error)
}
