package main

import "time"

// Configuration constants for rate limiting
const (
	LocationUpdateInterval = 3 * time.Second
	HTTPRequestDelay       = 200 * time.Millisecond
	LongPollWaitSeconds    = 20
	WorkDuration           = 5 * time.Second
	RetryDelay             = 2 * time.Second
)

// API endpoints
const (
	DriverOnlinePath   = "/drivers/online"
	DriverOfflinePath  = "/drivers/offline"
	DriverLocationPath = "/drivers/location"
	LongUpdatesPath    = "/updates/long?channel=%s&since=%d&wait=%d"
	JobClaimPath       = "/jobs/%s/claim"
	JobStartPath       = "/jobs/%s/start"
	JobCompletePath    = "/jobs/%s/complete"
)

type Config struct {
	BaseURL         string
	DriverID        string
	Token           string
	InitialLocation Location
}

type Location struct {
	Latitude  float64
	Longitude float64
}
