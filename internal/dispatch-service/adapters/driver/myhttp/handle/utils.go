package handle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/mylogger"
)

type actorKey struct{}

// WithActor stores the authenticated caller on the request context.
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the caller stored by the auth middleware.
func ActorFrom(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(model.Actor)
	return actor, ok
}

func mustActor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		JsonError(w, http.StatusUnauthorized, myerrors.ErrUnauthorized)
	}
	return actor, ok
}

// jsonResponse writes the given data as a JSON-encoded HTTP response.
func jsonResponse(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// JsonError writes an error response as JSON with the specified HTTP status code.
func JsonError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": err.Error(),
		"code":  code,
	})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, myerrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, myerrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, myerrors.ErrNotEligible), errors.Is(err, myerrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, myerrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, myerrors.ErrJobNoLongerAvailable),
		errors.Is(err, myerrors.ErrInvalidTransition),
		errors.Is(err, myerrors.ErrExtensionPending),
		errors.Is(err, myerrors.ErrDuplicatePayment):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError hides internal failures from the caller; everything else is
// reported as is.
func writeError(w http.ResponseWriter, log mylogger.Logger, err error) {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		log.Error("request failed", err)
		JsonError(w, code, errors.New("internal server error"))
		return
	}
	JsonError(w, code, err)
}

// decode reads a JSON body into v. An empty body is accepted when optional.
func decode(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return nil
	}
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return myerrors.NewValidation("body", fmt.Sprintf("malformed JSON: %v", err))
}
