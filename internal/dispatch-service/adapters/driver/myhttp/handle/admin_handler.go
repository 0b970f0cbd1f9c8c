package handle

import (
	"net/http"
	"strconv"

	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/mylogger"
)

const defaultPageSize = 20

type AdminHandler struct {
	overviewService ports.IOverviewService
	mylog           mylogger.Logger
}

func NewAdminHandler(mylog mylogger.Logger, overviewService ports.IOverviewService) *AdminHandler {
	return &AdminHandler{
		overviewService: overviewService,
		mylog:           mylog,
	}
}

func (ah *AdminHandler) GetSystemOverview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		overview, err := ah.overviewService.SystemOverview(r.Context())
		if err != nil {
			writeError(w, ah.mylog, err)
			return
		}

		jsonResponse(w, http.StatusOK, overview)
	}
}

func (ah *AdminHandler) GetActiveJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := queryInt(r, "page", 1)
		if err != nil {
			writeError(w, ah.mylog, err)
			return
		}
		pageSize, err := queryInt(r, "page_size", defaultPageSize)
		if err != nil {
			writeError(w, ah.mylog, err)
			return
		}

		active, err := ah.overviewService.ActiveJobs(r.Context(), page, pageSize)
		if err != nil {
			writeError(w, ah.mylog, err)
			return
		}

		jsonResponse(w, http.StatusOK, active)
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, myerrors.NewValidation(key, "must be an integer")
	}
	return v, nil
}
