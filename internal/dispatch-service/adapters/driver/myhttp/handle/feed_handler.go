package handle

import (
	"net/http"
	"strconv"
	"time"

	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/mylogger"
)

type FeedHandler struct {
	feedService ports.IFeedService
	log         mylogger.Logger
}

func NewFeedHandler(fs ports.IFeedService, log mylogger.Logger) *FeedHandler {
	return &FeedHandler{
		feedService: fs,
		log:         log,
	}
}

// Updates returns the events on a channel after the since cursor.
func (fh *FeedHandler) Updates() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel, since, ok := fh.cursor(w, r)
		if !ok {
			return
		}

		res, err := fh.feedService.Read(r.Context(), channel, since)
		if err != nil {
			writeError(w, fh.log, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

// LongUpdates holds the request open until an event arrives or wait seconds pass.
func (fh *FeedHandler) LongUpdates() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel, since, ok := fh.cursor(w, r)
		if !ok {
			return
		}

		var wait time.Duration
		if raw := r.URL.Query().Get("wait"); raw != "" {
			secs, err := strconv.ParseFloat(raw, 64)
			if err != nil || secs < 0 {
				writeError(w, fh.log, myerrors.NewValidation("wait", "must be a non-negative number of seconds"))
				return
			}
			wait = time.Duration(secs * float64(time.Second))
		}

		res, err := fh.feedService.ReadLong(r.Context(), channel, since, wait)
		if err != nil {
			writeError(w, fh.log, err)
			return
		}

		jsonResponse(w, http.StatusOK, res)
	}
}

func (fh *FeedHandler) cursor(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	actor, ok := mustActor(w, r)
	if !ok {
		return "", 0, false
	}

	q := r.URL.Query()
	channel := q.Get("channel")
	var since int64
	if raw := q.Get("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v < 0 {
			writeError(w, fh.log, myerrors.NewValidation("since", "must be a non-negative integer"))
			return "", 0, false
		}
		since = v
	}

	if err := fh.feedService.Authorize(r.Context(), actor, channel); err != nil {
		writeError(w, fh.log, err)
		return "", 0, false
	}
	return channel, since, true
}
