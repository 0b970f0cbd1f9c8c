package handle

import (
	"net/http"

	"haul-dispatch/internal/dispatch-service/core/domain/dto"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/mylogger"
)

type ExtensionHandler struct {
	extensionService ports.IExtensionService
	log              mylogger.Logger
}

func NewExtensionHandler(es ports.IExtensionService, log mylogger.Logger) *ExtensionHandler {
	return &ExtensionHandler{
		extensionService: es,
		log:              log,
	}
}

func (eh *ExtensionHandler) Request() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mustActor(w, r)
		if !ok {
			return
		}

		req := dto.TimeExtensionRequest{}
		if err := decode(r, &req, false); err != nil {
			writeError(w, eh.log, err)
			return
		}

		res, err := eh.extensionService.Request(r.Context(), r.PathValue("job_id"), actor.ID, req)
		if err != nil {
			writeError(w, eh.log, err)
			return
		}

		jsonResponse(w, http.StatusCreated, res)
	}
}

func (eh *ExtensionHandler) Approve() http.HandlerFunc {
	return eh.resolve(true)
}

func (eh *ExtensionHandler) Decline() http.HandlerFunc {
	return eh.resolve(false)
}

func (eh *ExtensionHandler) resolve(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := mustActor(w, r)
		if !ok {
			return
		}

		res, err := eh.extensionService.Resolve(r.Context(), r.PathValue("extension_id"), actor.ID, approve)
		if err != nil {
			writeError(w, eh.log, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}
