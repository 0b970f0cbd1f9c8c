package handle

import (
	"net/http"

	"haul-dispatch/internal/dispatch-service/core/domain/dto"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/mylogger"
)

type DriverHandler struct {
	driverService ports.IDriverService
	log           mylogger.Logger
}

func NewDriverHandler(ds ports.IDriverService, log mylogger.Logger) *DriverHandler {
	return &DriverHandler{
		driverService: ds,
		log:           log,
	}
}

func (dh *DriverHandler) GoOnline() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mustActor(w, r)
		if !ok {
			return
		}

		req := dto.PresenceRequest{}
		if err := decode(r, &req, true); err != nil {
			writeError(w, dh.log, err)
			return
		}

		res, err := dh.driverService.GoOnline(r.Context(), actor.ID, req)
		if err != nil {
			writeError(w, dh.log, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (dh *DriverHandler) GoOffline() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mustActor(w, r)
		if !ok {
			return
		}

		res, err := dh.driverService.GoOffline(r.Context(), actor.ID)
		if err != nil {
			writeError(w, dh.log, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (dh *DriverHandler) UpdateLocation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mustActor(w, r)
		if !ok {
			return
		}

		req := dto.LocationRequest{}
		if err := decode(r, &req, false); err != nil {
			writeError(w, dh.log, err)
			return
		}

		res, err := dh.driverService.UpdateLocation(r.Context(), actor.ID, req)
		if err != nil {
			writeError(w, dh.log, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (dh *DriverHandler) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.RegisterDriverRequest{}
		if err := decode(r, &req, false); err != nil {
			writeError(w, dh.log, err)
			return
		}

		res, err := dh.driverService.Register(r.Context(), req)
		if err != nil {
			writeError(w, dh.log, err)
			return
		}

		jsonResponse(w, http.StatusCreated, res)
	}
}

func (dh *DriverHandler) SetApproval() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := dto.ApprovalRequest{}
		if err := decode(r, &req, false); err != nil {
			writeError(w, dh.log, err)
			return
		}

		res, err := dh.driverService.SetApproval(r.Context(), r.PathValue("driver_id"), req.Status)
		if err != nil {
			writeError(w, dh.log, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}
