// Package events publishes vehicle lifecycle events to subscribers.
package events

import "context"

// Event topic constants
const (
	TopicVehicleEntered       = "parking.vehicle.entered"
	TopicVehicleExited        = "parking.vehicle.exited"
	TopicMonthlyGranted       = "parking.vehicle.monthly_granted"
	TopicVehicleBlacklisted   = "parking.vehicle.blacklisted"
	TopicVehicleUnblacklisted = "parking.vehicle.unblacklisted"
)

// Event types

type VehicleEntered struct {
	Plate string `json:"plate"`
	Time  string `json:"time"`
	Actor string `json:"actor,omitempty"`
}

type VehicleExited struct {
	Plate    string  `json:"plate"`
	Time     string  `json:"time"`
	Fee      float64 `json:"fee"`
	Duration string  `json:"duration"`
	Actor    string  `json:"actor,omitempty"`
}

type MonthlyGranted struct {
	Plate  string `json:"plate"`
	Expiry string `json:"expiry"`
	Actor  string `json:"actor,omitempty"`
}

type BlacklistChanged struct {
	Plate string `json:"plate"`
	Actor string `json:"actor,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
