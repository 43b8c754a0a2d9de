package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the lifecycle state of a delivery.
type DeliveryStatus string

const (
	StatusOpen      DeliveryStatus = "open"
	StatusPickedUp  DeliveryStatus = "picked-up"
	StatusInTransit DeliveryStatus = "in-transit"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
)

// Valid reports whether s is one of the five known statuses.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusPickedUp, StatusInTransit, StatusDelivered, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s ends the delivery lifecycle.
// A package whose active delivery is terminal may receive a new delivery.
func (s DeliveryStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// Delivery is one attempt to move a Package from origin to destination.
// Status transitions are driven by realtime events only; the HTTP update
// endpoint rewrites the package reference and nothing else.
type Delivery struct {
	ID        uuid.UUID `json:"id"`
	PackageID uuid.UUID `json:"package_id"`

	// Package is populated on reads; its ActiveDelivery is never populated
	// in turn.
	Package *Package `json:"package,omitempty"`

	Status DeliveryStatus `json:"status"`

	// Transition timestamps, each written when the matching status is set:
	// pickup_time on picked-up, start_time on in-transit, end_time on
	// delivered or failed. Re-sending a transition overwrites its timestamp.
	PickupTime *time.Time `json:"pickup_time,omitempty"`
	StartTime  *time.Time `json:"start_time,omitempty"`
	EndTime    *time.Time `json:"end_time,omitempty"`

	Location *Geo `json:"location,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
