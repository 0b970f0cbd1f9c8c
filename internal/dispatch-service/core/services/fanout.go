package services

import (
	"context"
	"encoding/json"
	"time"

	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/mylogger"
)

const appendTimeout = 5 * time.Second

// fanout appends one payload to several channels after a state write has
// already committed. A failed append is retried once and then only logged:
// the job row stays authoritative.
type fanout struct {
	mylog mylogger.Logger
	feed  ports.IFeedService
}

func (f fanout) publish(ctx context.Context, eventType string, payload any, channels ...string) {
	log := f.mylog.Action("AppendEvents").With("type", eventType)

	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error("cannot encode event payload", err)
		return
	}

	// the caller may already be gone, the events still have to land
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()

	for _, ch := range channels {
		if _, err := f.feed.Append(ctx, ch, eventType, raw); err != nil {
			log.Warn("append failed, retrying", "channel", ch, "error", err.Error())
			if _, err := f.feed.Append(ctx, ch, eventType, raw); err != nil {
				log.Error("event dropped", err, "channel", ch)
			}
		}
	}
}
