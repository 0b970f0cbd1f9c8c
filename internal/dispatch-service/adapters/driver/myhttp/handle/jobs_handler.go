package handle

import (
	"context"
	"net/http"

	"haul-dispatch/internal/dispatch-service/core/domain/dto"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/mylogger"
)

type JobsHandler struct {
	jobService      ports.IJobService
	matchingService ports.IMatchingService
	log             mylogger.Logger
}

func NewJobsHandler(js ports.IJobService, ms ports.IMatchingService, log mylogger.Logger) *JobsHandler {
	return &JobsHandler{
		jobService:      js,
		matchingService: ms,
		log:             log,
	}
}

func (jh *JobsHandler) CreateJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mustActor(w, r)
		if !ok {
			return
		}

		req := dto.CreateJobRequest{}
		if err := decode(r, &req, false); err != nil {
			writeError(w, jh.log, err)
			return
		}

		res, err := jh.jobService.Create(r.Context(), actor, req)
		if err != nil {
			writeError(w, jh.log, err)
			return
		}

		jsonResponse(w, http.StatusCreated, res)
	}
}

func (jh *JobsHandler) GetJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mustActor(w, r)
		if !ok {
			return
		}

		res, err := jh.jobService.Get(r.Context(), actor, r.PathValue("job_id"))
		if err != nil {
			writeError(w, jh.log, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (jh *JobsHandler) Available() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mustActor(w, r)
		if !ok {
			return
		}

		res, err := jh.matchingService.Available(r.Context(), actor.ID)
		if err != nil {
			writeError(w, jh.log, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (jh *JobsHandler) Claim() http.HandlerFunc {
	return jh.driverAction(jh.jobService.Claim)
}

func (jh *JobsHandler) Start() http.HandlerFunc {
	return jh.driverAction(jh.jobService.Start)
}

func (jh *JobsHandler) Complete() http.HandlerFunc {
	return jh.driverAction(jh.jobService.Complete)
}

func (jh *JobsHandler) driverAction(do func(ctx context.Context, jobId, driverId string) (dto.JobResponse, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mustActor(w, r)
		if !ok {
			return
		}

		res, err := do(r.Context(), r.PathValue("job_id"), actor.ID)
		if err != nil {
			writeError(w, jh.log, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (jh *JobsHandler) Cancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mustActor(w, r)
		if !ok {
			return
		}

		req := dto.CancelRequest{}
		if err := decode(r, &req, true); err != nil {
			writeError(w, jh.log, err)
			return
		}

		res, err := jh.jobService.Cancel(r.Context(), r.PathValue("job_id"), actor, req.Reason)
		if err != nil {
			writeError(w, jh.log, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (jh *JobsHandler) Track() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.TrackRequest{}
		if err := decode(r, &req, false); err != nil {
			writeError(w, jh.log, err)
			return
		}

		res, err := jh.jobService.Track(r.Context(), req)
		if err != nil {
			writeError(w, jh.log, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}
