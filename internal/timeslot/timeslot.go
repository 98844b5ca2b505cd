// Package timeslot prices non-standard check-in and check-out times.
package timeslot

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMalformedTime = errors.New("time must be HH:MM")
	ErrUnknownSlot   = errors.New("time slot is not offered")
)

type Slot struct {
	Time  string  `json:"time"`
	Label string  `json:"label"`
	Fee   float64 `json:"fee"`
}

// Table is an ordered, closed list of selectable times; the standard slot has a zero fee.
type Table []Slot

func DefaultCheckIn() Table {
	return Table{
		{Time: "14:00", Label: "Standard check-in", Fee: 0},
		{Time: "12:00", Label: "Early check-in", Fee: 25}, //nolint:gomnd
		{Time: "10:00", Label: "Early check-in", Fee: 50}, //nolint:gomnd
	}
}

func DefaultCheckOut() Table {
	return Table{
		{Time: "12:00", Label: "Standard check-out", Fee: 0},
		{Time: "14:00", Label: "Late check-out", Fee: 25}, //nolint:gomnd
		{Time: "16:00", Label: "Late check-out", Fee: 50}, //nolint:gomnd
	}
}

// Standard returns the first zero-fee slot.
func (t Table) Standard() (Slot, bool) {
	for _, s := range t {
		if s.Fee == 0 {
			return s, true
		}
	}

	return Slot{}, false
}

// FeeFor looks up hhmm by exact match.
func (t Table) FeeFor(hhmm string) (float64, error) {
	if _, err := time.Parse("15:04", hhmm); err != nil || len(hhmm) != len("15:04") {
		return 0, fmt.Errorf("%q: %w", hhmm, ErrMalformedTime)
	}

	for _, s := range t {
		if s.Time == hhmm {
			return s.Fee, nil
		}
	}

	return 0, fmt.Errorf("%q: %w", hhmm, ErrUnknownSlot)
}

// Pricing holds both sides of the stay.
type Pricing struct {
	CheckIn  Table
	CheckOut Table
}

func DefaultPricing() Pricing {
	return Pricing{CheckIn: DefaultCheckIn(), CheckOut: DefaultCheckOut()}
}

// AddOnFees sums the independent check-in and check-out fees. An empty time means the standard
// slot and costs nothing.
func (p Pricing) AddOnFees(checkIn, checkOut string) (float64, error) {
	var total float64

	if checkIn != "" {
		fee, err := p.CheckIn.FeeFor(checkIn)
		if err != nil {
			return 0, fmt.Errorf("check-in time: %w", err)
		}

		total += fee
	}

	if checkOut != "" {
		fee, err := p.CheckOut.FeeFor(checkOut)
		if err != nil {
			return 0, fmt.Errorf("check-out time: %w", err)
		}

		total += fee
	}

	return total, nil
}
