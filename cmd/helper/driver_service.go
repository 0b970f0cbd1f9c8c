package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"haul-dispatch/internal/dispatch-service/core/domain/dto"
	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/mylogger"
)

// DriverService plays one driver against the dispatch API: it goes online,
// long-polls the offer feed, claims what it sees and works each job to
// completion.
type DriverService struct {
	driverID   string
	httpClient *HTTPClient
	logger     mylogger.Logger

	mu         sync.Mutex
	currentLat float64
	currentLng float64
	busy       bool
}

func NewDriverService(cfg Config, logger mylogger.Logger) *DriverService {
	return &DriverService{
		driverID:   cfg.DriverID,
		httpClient: NewHTTPClient(cfg.BaseURL, cfg.Token),
		logger:     logger.With("driver_id", cfg.DriverID),
		currentLat: cfg.InitialLocation.Latitude,
		currentLng: cfg.InitialLocation.Longitude,
	}
}

func (d *DriverService) Run(ctx context.Context) error {
	if err := d.SetOnline(ctx); err != nil {
		return err
	}
	defer d.SetOffline()

	go d.sendLocations(ctx)

	var since int64
	for ctx.Err() == nil {
		page := dto.FeedResponse{}
		path := fmt.Sprintf(LongUpdatesPath, model.ChannelAllDrivers, since, LongPollWaitSeconds)
		if err := d.httpClient.DoRequest(ctx, http.MethodGet, path, nil, &page); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d.logger.Error("long poll failed", err)
			time.Sleep(RetryDelay)
			continue
		}

		for _, ev := range page.Events {
			d.handleEvent(ctx, ev)
		}
		since = page.LastEventId
	}
	return nil
}

func (d *DriverService) SetOnline(ctx context.Context) error {
	d.mu.Lock()
	req := dto.PresenceRequest{Location: &model.Location{Latitude: d.currentLat, Longitude: d.currentLng}}
	d.mu.Unlock()

	if err := d.httpClient.DoRequest(ctx, http.MethodPost, DriverOnlinePath, req, nil); err != nil {
		return fmt.Errorf("setting driver online: %w", err)
	}
	d.logger.Info("Driver set online successfully")
	return nil
}

// SetOffline runs on shutdown, so it does not use the cancelled run context.
func (d *DriverService) SetOffline() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.httpClient.DoRequest(ctx, http.MethodPost, DriverOfflinePath, nil, nil); err != nil {
		d.logger.Error("Failed to go offline", err)
		return
	}
	d.logger.Info("Driver set offline")
}

func (d *DriverService) handleEvent(ctx context.Context, ev model.Event) {
	if ev.Type != model.EventJobOffer {
		return
	}
	offer := dto.AvailableJob{}
	if err := json.Unmarshal(ev.Payload, &offer); err != nil {
		d.logger.Error("cannot decode job offer", err, "event_id", ev.ID)
		return
	}
	log := d.logger.With("job_id", offer.JobID)

	d.mu.Lock()
	if d.busy {
		d.mu.Unlock()
		log.Debug("busy, skipping offer")
		return
	}
	d.busy = true
	d.mu.Unlock()

	job := dto.JobResponse{}
	err := d.httpClient.DoRequest(ctx, http.MethodPost, fmt.Sprintf(JobClaimPath, offer.JobID), nil, &job)
	if err != nil {
		d.setBusy(false)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
			log.Info("job already taken")
			return
		}
		log.Error("claim failed", err)
		return
	}
	log.Info("claimed job", "total", offer.Total.String())

	go d.processJob(ctx, offer.JobID)
}

func (d *DriverService) processJob(ctx context.Context, jobID string) {
	defer d.setBusy(false)
	log := d.logger.With("job_id", jobID)

	if err := d.httpClient.DoRequest(ctx, http.MethodPost, fmt.Sprintf(JobStartPath, jobID), nil, nil); err != nil {
		log.Error("Failed to start job", err)
		return
	}
	log.Info("job started")

	select {
	case <-ctx.Done():
		return
	case <-time.After(WorkDuration):
	}

	job := dto.JobResponse{}
	if err := d.httpClient.DoRequest(ctx, http.MethodPost, fmt.Sprintf(JobCompletePath, jobID), nil, &job); err != nil {
		log.Error("Failed to complete job", err)
		return
	}
	payout := "n/a"
	if job.DriverPayout != nil {
		payout = job.DriverPayout.String()
	}
	log.Info("job completed", "payout", payout)
}

func (d *DriverService) sendLocations(ctx context.Context) {
	ticker := time.NewTicker(LocationUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		// Simulate small movement
		d.mu.Lock()
		d.currentLat += (rand.Float64() - 0.5) / 1000
		d.currentLng += (rand.Float64() - 0.5) / 1000
		lat, lng := d.currentLat, d.currentLng
		d.mu.Unlock()

		req := dto.LocationRequest{Latitude: &lat, Longitude: &lng}
		if err := d.httpClient.DoRequest(ctx, http.MethodPost, DriverLocationPath, req, nil); err != nil && ctx.Err() == nil {
			d.logger.Warn("location update failed", "error", err.Error())
		}
	}
}

func (d *DriverService) setBusy(busy bool) {
	d.mu.Lock()
	d.busy = busy
	d.mu.Unlock()
}
