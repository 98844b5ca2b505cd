// Package promo validates promotion codes and computes the discount they grant.
package promo

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("promo code not found")
	ErrExpired      = errors.New("promo code expired")
	ErrBelowMinimum = errors.New("order is below the promo minimum")
	ErrInvalid      = errors.New("promo code is not valid")
	ErrUnknownKind  = errors.New("unknown discount type")
)

type Reason string

const (
	ReasonNone         Reason = ""
	ReasonNotFound     Reason = "not_found"
	ReasonExpired      Reason = "expired"
	ReasonBelowMinimum Reason = "below_minimum"
	ReasonInvalid      Reason = "invalid"
)

// ReasonOf classifies err for presentation. Errors outside the promo taxonomy map to ReasonInvalid.
func ReasonOf(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrExpired):
		return ReasonExpired
	case errors.Is(err, ErrBelowMinimum):
		return ReasonBelowMinimum
	default:
		return ReasonInvalid
	}
}

// Kind is the closed set of discount types. Implementations live in this package only.
type Kind interface {
	Name() string
	raw(value float64, q Quote) float64
}

type percentage struct{}

func (percentage) Name() string { return "percentage" }

func (percentage) raw(value float64, q Quote) float64 {
	return q.Subtotal * value / 100 //nolint:gomnd
}

type fixed struct{}

func (fixed) Name() string { return "fixed" }

func (fixed) raw(value float64, _ Quote) float64 {
	return value
}

// freeNight waives value nights. The nightly cost is subtotal/nights, i.e. the price of one night
// across every booked room, and no more nights than the stay has can be waived.
type freeNight struct{}

func (freeNight) Name() string { return "freeNight" }

func (freeNight) raw(value float64, q Quote) float64 {
	if q.Nights <= 0 {
		return 0
	}

	return q.Subtotal / float64(q.Nights) * math.Min(value, float64(q.Nights))
}

var (
	Percentage Kind = percentage{}
	Fixed      Kind = fixed{}
	FreeNight  Kind = freeNight{}
)

func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{Percentage, Fixed, FreeNight} {
		if strings.EqualFold(s, k.Name()) {
			return k, nil
		}
	}

	if strings.EqualFold(s, "free_night") {
		return FreeNight, nil
	}

	return nil, fmt.Errorf("%q: %w", s, ErrUnknownKind)
}

// Code is a rule record from the promotion catalog.
type Code struct {
	Code        string
	Kind        Kind
	Value       float64
	MinAmount   *float64
	MaxDiscount *float64
	ValidUntil  *time.Time
	IsValid     bool
}

// Normalize trims and upper-cases a user-entered code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Quote is what a discount is computed from.
type Quote struct {
	Subtotal float64
	Nights   int
}

type Applied struct {
	Code     Code
	Discount float64
	// Subtotal the discount was computed from.
	Subtotal float64
}

// Evaluate runs the rule checks and discount computation for an already looked-up code.
// Expiry is checked even for codes marked valid. The discount is always within [0, subtotal] and
// never above MaxDiscount.
func Evaluate(c Code, q Quote, now time.Time) (Applied, error) {
	if !c.IsValid || c.Kind == nil {
		return Applied{}, fmt.Errorf("%s: %w", c.Code, ErrInvalid)
	}

	if c.ValidUntil != nil && c.ValidUntil.Before(now) {
		return Applied{}, fmt.Errorf("%s valid until %s: %w", c.Code, c.ValidUntil.Format(time.DateOnly), ErrExpired)
	}

	if c.MinAmount != nil && q.Subtotal < *c.MinAmount {
		return Applied{}, fmt.Errorf("%s requires %.2f, got %.2f: %w", c.Code, *c.MinAmount, q.Subtotal, ErrBelowMinimum)
	}

	discount := c.Kind.raw(c.Value, q)

	if c.MaxDiscount != nil {
		discount = math.Min(discount, *c.MaxDiscount)
	}

	discount = math.Max(0, math.Min(discount, q.Subtotal))

	return Applied{Code: c, Discount: discount, Subtotal: q.Subtotal}, nil
}
