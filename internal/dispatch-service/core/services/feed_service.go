package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/dto"
	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/mylogger"
)

type FeedOptions struct {
	PageSize      int
	RetryInterval time.Duration
	// MaxWait is both the default and the ceiling for a long poll.
	MaxWait time.Duration
}

// FeedService appends to and reads from the event log. Nothing here tracks
// connected clients; a reader is just a channel and a cursor.
type FeedService struct {
	mylog    mylogger.Logger
	events   ports.IEventsRepo
	jobs     ports.IJobsRepo
	notifier ports.IFeedNotifier
	broker   ports.IDispatchBroker
	opts     FeedOptions
}

// NewFeedService builds the feed. notifier and broker are optional.
func NewFeedService(
	log mylogger.Logger,
	events ports.IEventsRepo,
	jobs ports.IJobsRepo,
	notifier ports.IFeedNotifier,
	broker ports.IDispatchBroker,
	opts FeedOptions,
) *FeedService {
	if opts.PageSize <= 0 {
		opts.PageSize = 200
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 1200 * time.Millisecond
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 25 * time.Second
	}
	return &FeedService{
		mylog:    log,
		events:   events,
		jobs:     jobs,
		notifier: notifier,
		broker:   broker,
		opts:     opts,
	}
}

func (s *FeedService) Append(ctx context.Context, channel, eventType string, payload json.RawMessage) (model.Event, error) {
	if kind, _ := model.ParseChannel(channel); kind == model.ChannelInvalid {
		return model.Event{}, myerrors.NewValidation("channel", fmt.Sprintf("unknown channel %q", channel))
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	ev, err := s.events.Append(ctx, channel, eventType, payload)
	if err != nil {
		return model.Event{}, err
	}

	log := s.mylog.Action("Append").With("channel", channel, "event_id", ev.ID)
	log.Debug("event appended", "type", eventType)
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, channel, ev.ID); err != nil {
			log.Warn("cannot notify long-poll readers", "error", err.Error())
		}
	}
	if s.broker != nil {
		if err := s.broker.PublishEvent(ctx, ev); err != nil {
			log.Warn("cannot mirror event to broker", "error", err.Error())
		}
	}
	return ev, nil
}

func (s *FeedService) Read(ctx context.Context, channel string, since int64) (dto.FeedResponse, error) {
	if err := validateCursor(channel, since); err != nil {
		return dto.FeedResponse{}, err
	}
	return s.read(ctx, channel, since)
}

// ReadLong waits until channel has events after since, maxWait runs out or
// ctx is done. Running out of time or losing the client is not an error: the
// caller gets an empty page with the cursor unchanged.
func (s *FeedService) ReadLong(ctx context.Context, channel string, since int64, maxWait time.Duration) (dto.FeedResponse, error) {
	if err := validateCursor(channel, since); err != nil {
		return dto.FeedResponse{}, err
	}
	if maxWait <= 0 || maxWait > s.opts.MaxWait {
		maxWait = s.opts.MaxWait
	}
	log := s.mylog.Action("ReadLong").With("channel", channel, "since", since)

	// subscribe before the first read so an append in between still wakes us
	var wake <-chan struct{}
	if s.notifier != nil {
		w, stop, err := s.notifier.Subscribe(ctx, channel)
		if err != nil {
			log.Warn("wake-up subscription failed, polling only", "error", err.Error())
		} else {
			wake = w
			defer stop()
		}
	}

	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	ticker := time.NewTicker(s.opts.RetryInterval)
	defer ticker.Stop()

	empty := dto.NewFeedResponse(channel, since, nil)
	for {
		resp, err := s.read(ctx, channel, since)
		if err != nil {
			if ctx.Err() != nil {
				return empty, nil
			}
			return dto.FeedResponse{}, err
		}
		if len(resp.Events) > 0 {
			return resp, nil
		}

		select {
		case <-ctx.Done():
			log.Debug("reader went away")
			return empty, nil
		case <-deadline.C:
			return empty, nil
		case <-ticker.C:
		case <-wake:
		}
	}
}

func (s *FeedService) read(ctx context.Context, channel string, since int64) (dto.FeedResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	events, err := s.events.Read(ctx, channel, since, s.opts.PageSize)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.mylog.Action("Read").Error("cannot read events", err, "channel", channel, "since", since)
		}
		return dto.FeedResponse{}, err
	}
	return dto.NewFeedResponse(channel, since, events), nil
}

// Authorize decides whether actor may read channel. Admins read anything;
// drivers read their own channel, all_drivers and jobs assigned to them;
// customers read their own channel and their jobs.
func (s *FeedService) Authorize(ctx context.Context, actor model.Actor, channel string) error {
	kind, id := model.ParseChannel(channel)
	if kind == model.ChannelInvalid {
		return myerrors.NewValidation("channel", fmt.Sprintf("unknown channel %q", channel))
	}
	if actor.Role == model.RoleAdmin {
		return nil
	}

	forbidden := fmt.Errorf("channel %s: %w", channel, myerrors.ErrForbidden)
	switch kind {
	case model.ChannelKindDriver:
		if actor.Role == model.RoleDriver && id == actor.ID {
			return nil
		}
	case model.ChannelKindCustomer:
		if actor.Role == model.RoleCustomer && id == actor.ID {
			return nil
		}
	case model.ChannelKindAllDrivers:
		if actor.Role == model.RoleDriver {
			return nil
		}
	case model.ChannelKindJob:
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		job, err := s.jobs.Get(ctx, id)
		if err != nil {
			if errors.Is(err, myerrors.ErrNotFound) {
				return forbidden
			}
			return err
		}
		if canView(job, actor) {
			return nil
		}
	}
	return forbidden
}

func validateCursor(channel string, since int64) error {
	if kind, _ := model.ParseChannel(channel); kind == model.ChannelInvalid {
		return myerrors.NewValidation("channel", fmt.Sprintf("unknown channel %q", channel))
	}
	if since < 0 {
		return myerrors.NewValidation("since", "must not be negative")
	}
	return nil
}
