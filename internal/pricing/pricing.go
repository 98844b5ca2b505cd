// Package pricing derives the full price breakdown of a booking from its current inputs.
package pricing

import (
	"errors"
	"fmt"
	"math"

	"github.com/avstrong/staybook/internal/catalog"
)

var ErrComputation = errors.New("pricing invariant violated")

type Rates struct {
	TaxRate        float64
	ServiceFeeRate float64
}

func DefaultRates() Rates {
	return Rates{TaxRate: 0.10, ServiceFeeRate: 0.05} //nolint:gomnd
}

type Input struct {
	Room      catalog.Room
	Nights    int
	Rooms     int
	AddOnFees float64
	Discount  float64
}

// Breakdown amounts share the room's currency and keep full precision; round with Rounded when
// presenting.
type Breakdown struct {
	Currency   string  `json:"currency"`
	Subtotal   float64 `json:"subtotal"`
	Taxes      float64 `json:"taxes"`
	ServiceFee float64 `json:"service_fee"`
	AddOnFees  float64 `json:"add_on_fees"`
	Discount   float64 `json:"discount"`
	Total      float64 `json:"total"`
}

type Calculator struct {
	rates Rates
}

func New(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Compute always derives the whole breakdown from in; it keeps no state between calls.
func (c *Calculator) Compute(in Input) (Breakdown, error) {
	if err := in.check(); err != nil {
		return Breakdown{}, err
	}

	subtotal := in.Room.PricePerNight * float64(in.Nights) * float64(in.Rooms)
	discount := math.Min(in.Discount, subtotal)

	b := Breakdown{
		Currency:   in.Room.Currency,
		Subtotal:   subtotal,
		Taxes:      subtotal * c.rates.TaxRate,
		ServiceFee: subtotal * c.rates.ServiceFeeRate,
		AddOnFees:  in.AddOnFees,
		Discount:   discount,
		Total:      0,
	}

	b.Total = math.Max(0, b.Subtotal+b.Taxes+b.ServiceFee+b.AddOnFees-b.Discount)

	return b, nil
}

// Subtotal is the room cost alone, which is what promotions are evaluated against.
func (c *Calculator) Subtotal(room catalog.Room, nights, rooms int) float64 {
	return room.PricePerNight * float64(nights) * float64(rooms)
}

func (in Input) check() error {
	switch {
	case in.Nights < 0:
		return fmt.Errorf("nights %d: %w", in.Nights, ErrComputation)
	case in.Rooms < 1:
		return fmt.Errorf("rooms %d: %w", in.Rooms, ErrComputation)
	case in.Room.PricePerNight < 0:
		return fmt.Errorf("rate %.2f: %w", in.Room.PricePerNight, ErrComputation)
	case in.AddOnFees < 0:
		return fmt.Errorf("add-on fees %.2f: %w", in.AddOnFees, ErrComputation)
	case in.Discount < 0:
		return fmt.Errorf("discount %.2f: %w", in.Discount, ErrComputation)
	}

	return nil
}

// Round2 rounds half away from zero to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100 //nolint:gomnd
}

func (b Breakdown) Rounded() Breakdown {
	return Breakdown{
		Currency:   b.Currency,
		Subtotal:   Round2(b.Subtotal),
		Taxes:      Round2(b.Taxes),
		ServiceFee: Round2(b.ServiceFee),
		AddOnFees:  Round2(b.AddOnFees),
		Discount:   Round2(b.Discount),
		Total:      Round2(b.Total),
	}
}
