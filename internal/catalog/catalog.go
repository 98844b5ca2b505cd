// Package catalog holds the read-only room and calendar data the reservation core consumes.
package catalog

import (
	"context"
	"errors"
	"time"
)

var ErrRoomNotFound = errors.New("room not found")

type Room struct {
	ID            string  `json:"id"`
	HotelID       string  `json:"hotel_id"`
	Name          string  `json:"name"`
	PricePerNight float64 `json:"price_per_night"`
	Currency      string  `json:"currency"`
	MaxGuests     int     `json:"max_guests"`
	// Zero means the room does not limit the category on its own.
	MaxAdults   int `json:"max_adults,omitempty"`
	MaxChildren int `json:"max_children,omitempty"`
}

func (r Room) Selected() bool {
	return r.ID != ""
}

type RoomReader interface {
	GetRoom(ctx context.Context, id string) (*Room, error)
	ListRooms(ctx context.Context) ([]*Room, error)
}

type BlackoutReader interface {
	// GetBlackouts returns the calendar days on which the hotel takes no check-in or check-out.
	GetBlackouts(ctx context.Context, hotelID string) ([]time.Time, error)
}
