// Package domain contains the core data types for the parcel tracking API.
// This package has zero external dependencies beyond uuid and is imported by
// every other internal package (repo, service, handler, event).
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Geo is a geographic coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Package represents a shippable item with origin/destination and physical
// attributes. A package points at its active delivery: the in-progress or
// most recent attempt to move it.
type Package struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
	Weight      float64   `json:"weight"`
	Width       float64   `json:"width"`
	Height      float64   `json:"height"`
	Depth       float64   `json:"depth"`

	FromName     string `json:"from_name"`
	FromAddress  string `json:"from_address"`
	FromLocation Geo    `json:"from_location"`
	ToName       string `json:"to_name"`
	ToAddress    string `json:"to_address"`
	ToLocation   Geo    `json:"to_location"`

	// ActiveDeliveryID may point at a delivery that no longer exists:
	// delivery deletion does not clear it. Readers treat an unresolvable
	// pointer as "no active delivery".
	ActiveDeliveryID *uuid.UUID `json:"active_delivery_id,omitempty"`

	// ActiveDelivery is populated on reads; its embedded Package is never
	// populated in turn.
	ActiveDelivery *Delivery `json:"active_delivery,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasActiveDelivery reports whether the package currently has a resolved
// active delivery in a non-terminal status. Packages in this state cannot be
// updated or deleted, and cannot receive a second delivery.
func (p Package) HasActiveDelivery() bool {
	return p.ActiveDelivery != nil && !p.ActiveDelivery.Status.Terminal()
}
