package model

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	ChannelAdmins     = "admins"
	ChannelAllDrivers = "all_drivers"

	channelJobPrefix      = "job:"
	channelDriverPrefix   = "driver:"
	channelCustomerPrefix = "customer:"
)

const (
	EventJobOffer       = "job_offer"
	EventJobUpdate      = "job_update"
	EventJobTaken       = "job_taken"
	EventLocationUpdate = "location_update"
	EventTimeExtension  = "time_extension"
	EventPaymentFailed  = "payment_failed"
)

func JobChannel(id string) string      { return channelJobPrefix + id }
func DriverChannel(id string) string   { return channelDriverPrefix + id }
func CustomerChannel(id string) string { return channelCustomerPrefix + id }

type ChannelKind int

const (
	ChannelInvalid ChannelKind = iota
	ChannelKindJob
	ChannelKindDriver
	ChannelKindCustomer
	ChannelKindAdmins
	ChannelKindAllDrivers
)

// ParseChannel splits a channel name into its audience kind and subject id.
func ParseChannel(channel string) (ChannelKind, string) {
	switch channel {
	case ChannelAdmins:
		return ChannelKindAdmins, ""
	case ChannelAllDrivers:
		return ChannelKindAllDrivers, ""
	}
	prefixes := []struct {
		prefix string
		kind   ChannelKind
	}{
		{channelJobPrefix, ChannelKindJob},
		{channelDriverPrefix, ChannelKindDriver},
		{channelCustomerPrefix, ChannelKindCustomer},
	}
	for _, p := range prefixes {
		if id, ok := strings.CutPrefix(channel, p.prefix); ok {
			if id == "" || len(id) > 128 || strings.ContainsAny(id, ": \t\n") {
				return ChannelInvalid, ""
			}
			return p.kind, id
		}
	}
	return ChannelInvalid, ""
}

// Event is an immutable row of the event log. ID is the per-channel sequence.
type Event struct {
	ID        int64           `json:"id"`
	Channel   string          `json:"channel"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
