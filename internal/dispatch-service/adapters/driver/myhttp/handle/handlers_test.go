package handle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/dto"
	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/mylogger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJobs struct {
	ports.IJobService
	claimErr error
	cancel   struct {
		jobId  string
		actor  model.Actor
		reason string
	}
}

func (s *stubJobs) Claim(_ context.Context, jobId, driverId string) (dto.JobResponse, error) {
	if s.claimErr != nil {
		return dto.JobResponse{}, s.claimErr
	}
	return dto.JobResponse{JobID: jobId, Status: model.JobAssigned, AssignedDriverId: &driverId}, nil
}

func (s *stubJobs) Cancel(_ context.Context, jobId string, actor model.Actor, reason string) (dto.JobResponse, error) {
	s.cancel.jobId, s.cancel.actor, s.cancel.reason = jobId, actor, reason
	return dto.JobResponse{JobID: jobId, Status: model.JobCancelled}, nil
}

func (s *stubJobs) Track(_ context.Context, req dto.TrackRequest) (dto.TrackResponse, error) {
	if req.TrackingToken != "HD-1" {
		return dto.TrackResponse{}, myerrors.NotFound("job", req.TrackingToken)
	}
	return dto.TrackResponse{Status: model.JobPending}, nil
}

type stubFeed struct {
	ports.IFeedService
	authErr error
	since   int64
	wait    time.Duration
}

func (s *stubFeed) Authorize(context.Context, model.Actor, string) error { return s.authErr }

func (s *stubFeed) Read(_ context.Context, channel string, since int64) (dto.FeedResponse, error) {
	s.since = since
	return dto.NewFeedResponse(channel, since, []model.Event{{ID: since + 1, Channel: channel, Type: "job_update", Payload: json.RawMessage(`{}`)}}), nil
}

func (s *stubFeed) ReadLong(_ context.Context, channel string, since int64, wait time.Duration) (dto.FeedResponse, error) {
	s.since, s.wait = since, wait
	return dto.NewFeedResponse(channel, since, nil), nil
}

type stubDB struct{ err error }

func (d stubDB) IsAlive(context.Context) error { return d.err }
func (d stubDB) Close() error                  { return nil }

func do(t *testing.T, h http.Handler, method, target, body string, actor *model.Actor, pattern string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if actor != nil {
		r = r.WithContext(WithActor(r.Context(), *actor))
	}
	mux := http.NewServeMux()
	mux.Handle(pattern, h)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, r)
	return rec
}

var driver7 = &model.Actor{ID: "7", Role: model.RoleDriver}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{myerrors.NewValidation("x", "y"), http.StatusBadRequest},
		{myerrors.ErrJobNoLongerAvailable, http.StatusConflict},
		{&myerrors.NotEligibleError{DriverID: "d", Reason: "offline"}, http.StatusForbidden},
		{&myerrors.InvalidTransitionError{}, http.StatusConflict},
		{myerrors.NotFound("job", "1"), http.StatusNotFound},
		{fmt.Errorf("x: %w", myerrors.ErrForbidden), http.StatusForbidden},
		{myerrors.ErrExtensionPending, http.StatusConflict},
		{myerrors.ErrDuplicatePayment, http.StatusConflict},
		{myerrors.ErrUnauthorized, http.StatusUnauthorized},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, StatusFor(tc.err), tc.err.Error())
	}
}

func TestCreateQuote(t *testing.T) {
	h := NewQuoteHandler(mylogger.Discard()).CreateQuote()

	rec := do(t, h, http.MethodPost, "/quotes", `{"service_type":"HAUL_AWAY","volume_tier":"QUARTER"}`, nil, "POST /quotes")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":169.00`)

	rec = do(t, h, http.MethodPost, "/quotes", `{"service_type":"LABOR_ONLY","helper_count":2,"estimated_hours":1}`, nil, "POST /quotes")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/quotes", `{`, nil, "POST /quotes")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClaimMapsErrors(t *testing.T) {
	jobs := &stubJobs{}
	h := NewJobsHandler(jobs, nil, mylogger.Discard()).Claim()
	pattern := "POST /jobs/{job_id}/claim"

	rec := do(t, h, http.MethodPost, "/jobs/j1/claim", "", driver7, pattern)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"assigned_driver_id":"7"`)

	jobs.claimErr = myerrors.ErrJobNoLongerAvailable
	rec = do(t, h, http.MethodPost, "/jobs/j1/claim", "", driver7, pattern)
	assert.Equal(t, http.StatusConflict, rec.Code)

	jobs.claimErr = errors.New("connection reset")
	rec = do(t, h, http.MethodPost, "/jobs/j1/claim", "", driver7, pattern)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")

	rec = do(t, h, http.MethodPost, "/jobs/j1/claim", "", nil, pattern)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCancelBodyIsOptional(t *testing.T) {
	jobs := &stubJobs{}
	h := NewJobsHandler(jobs, nil, mylogger.Discard()).Cancel()
	pattern := "POST /jobs/{job_id}/cancel"
	customer := &model.Actor{ID: "c1", Role: model.RoleCustomer}

	rec := do(t, h, http.MethodPost, "/jobs/j9/cancel", "", customer, pattern)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "j9", jobs.cancel.jobId)
	assert.Equal(t, "", jobs.cancel.reason)

	rec = do(t, h, http.MethodPost, "/jobs/j9/cancel", `{"reason":"moved"}`, customer, pattern)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "moved", jobs.cancel.reason)
	assert.Equal(t, *customer, jobs.cancel.actor)
}

func TestTrackIsAnonymous(t *testing.T) {
	h := NewJobsHandler(&stubJobs{}, nil, mylogger.Discard()).Track()

	rec := do(t, h, http.MethodPost, "/orders/track", `{"tracking_token":"HD-1"}`, nil, "POST /orders/track")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/orders/track", `{"tracking_token":"HD-2"}`, nil, "POST /orders/track")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdatesCursor(t *testing.T) {
	feed := &stubFeed{}
	fh := NewFeedHandler(feed, mylogger.Discard())

	rec := do(t, fh.Updates(), http.MethodGet, "/updates?channel=driver:7&since=41", "", driver7, "GET /updates")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(41), feed.since)
	assert.Contains(t, rec.Body.String(), `"lastEventId":42`)

	rec = do(t, fh.Updates(), http.MethodGet, "/updates?channel=driver:7&since=-1", "", driver7, "GET /updates")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	feed.authErr = fmt.Errorf("channel driver:8: %w", myerrors.ErrForbidden)
	rec = do(t, fh.Updates(), http.MethodGet, "/updates?channel=driver:8", "", driver7, "GET /updates")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLongUpdatesIdle(t *testing.T) {
	feed := &stubFeed{}
	fh := NewFeedHandler(feed, mylogger.Discard())

	rec := do(t, fh.LongUpdates(), http.MethodGet, "/updates/long?channel=driver:7&since=100&wait=1.5", "", driver7, "GET /updates/long")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"channel":"driver:7","events":[],"lastEventId":100}`, rec.Body.String())
	assert.Equal(t, 1500*time.Millisecond, feed.wait)

	rec = do(t, fh.LongUpdates(), http.MethodGet, "/updates/long?channel=driver:7&wait=soon", "", driver7, "GET /updates/long")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := do(t, NewHealthHandler(stubDB{}, nil).Health(), http.MethodGet, "/health", "", nil, "GET /health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","db":"ok"}`, rec.Body.String())

	rec = do(t, NewHealthHandler(stubDB{err: errors.New("down")}, nil).Health(), http.MethodGet, "/health", "", nil, "GET /health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
