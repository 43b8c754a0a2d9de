// Package event defines the realtime channel message envelope: the two
// inbound event shapes that drive delivery mutations and the outbound
// delivery_updated notification. Decoding is tag-based with explicit
// rejection of unknown tags.
package event

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/parceltrack/backend/internal/domain"
)

// Inbound event tags.
const (
	TypeStatusChanged   = "status_changed"
	TypeLocationChanged = "location_changed"
	TypeDeliveryUpdated = "delivery_updated"
)

// Inbound is a decoded inbound event. The two concrete types are
// StatusChanged and LocationChanged; the reducer matches exhaustively.
type Inbound interface {
	isInbound()
}

// StatusChanged requests a status transition for one delivery.
type StatusChanged struct {
	DeliveryID uuid.UUID
	Status     domain.DeliveryStatus
}

// LocationChanged reports a new location for one delivery.
type LocationChanged struct {
	DeliveryID uuid.UUID
	Location   domain.Geo
}

func (StatusChanged) isInbound()   {}
func (LocationChanged) isInbound() {}

// envelope is the raw wire shape shared by both inbound events.
// Coordinates arrive as strings on this channel (unlike the HTTP payloads,
// which are numeric) and are parsed to float64 at decode time.
type envelope struct {
	Event      string `json:"event"`
	DeliveryID string `json:"delivery_id"`
	Status     string `json:"status"`
	Location   *struct {
		Lat string `json:"lat"`
		Lng string `json:"lng"`
	} `json:"location"`
}

// Decode parses one inbound message. It returns an error for malformed JSON,
// an unknown tag, a bad delivery id, an invalid status, or unparseable
// coordinates. The delivery_updated tag is outbound-only and is rejected
// like any other unhandled tag.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("event.Decode: %w", err)
	}

	switch env.Event {
	case TypeStatusChanged:
		id, err := uuid.Parse(env.DeliveryID)
		if err != nil {
			return nil, fmt.Errorf("event.Decode: delivery_id: %w", err)
		}
		status := domain.DeliveryStatus(env.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("event.Decode: unknown status %q", env.Status)
		}
		return StatusChanged{DeliveryID: id, Status: status}, nil

	case TypeLocationChanged:
		id, err := uuid.Parse(env.DeliveryID)
		if err != nil {
			return nil, fmt.Errorf("event.Decode: delivery_id: %w", err)
		}
		if env.Location == nil {
			return nil, fmt.Errorf("event.Decode: location is required")
		}
		lat, err := strconv.ParseFloat(env.Location.Lat, 64)
		if err != nil {
			return nil, fmt.Errorf("event.Decode: location.lat: %w", err)
		}
		lng, err := strconv.ParseFloat(env.Location.Lng, 64)
		if err != nil {
			return nil, fmt.Errorf("event.Decode: location.lng: %w", err)
		}
		return LocationChanged{DeliveryID: id, Location: domain.Geo{Lat: lat, Lng: lng}}, nil

	default:
		return nil, fmt.Errorf("event.Decode: unhandled event %q", env.Event)
	}
}

// DeliveryUpdated is the outbound broadcast envelope. It wraps the full
// post-mutation delivery record as stored, package populated.
type DeliveryUpdated struct {
	Event    string          `json:"event"`
	Delivery domain.Delivery `json:"delivery_object"`
}

// NewDeliveryUpdated builds the outbound envelope for one updated delivery.
func NewDeliveryUpdated(d domain.Delivery) DeliveryUpdated {
	return DeliveryUpdated{Event: TypeDeliveryUpdated, Delivery: d}
}
