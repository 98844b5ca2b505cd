// Package stay validates check-in and check-out selections and counts nights.
//
// Every function here is a pure function of its arguments: "today" is passed in by the caller
// and all comparisons are made on calendar days, never on time of day.
package stay

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownRole = errors.New("unknown date role")

const day = 24 * time.Hour

type Role int

const (
	CheckIn Role = iota + 1
	CheckOut
)

func (r Role) String() string {
	switch r {
	case CheckIn:
		return "check_in"
	case CheckOut:
		return "check_out"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "check_in", "checkIn":
		return CheckIn, nil
	case "check_out", "checkOut":
		return CheckOut, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrUnknownRole)
	}
}

type Reason string

const (
	ReasonPast             Reason = "date is in the past"
	ReasonBlackout         Reason = "date is unavailable"
	ReasonCheckInRequired  Reason = "select a check-in date first"
	ReasonCheckOutRequired Reason = "select a check-out date"
	ReasonNotAfterCheckIn  Reason = "check-out must be after check-in"
	ReasonBelowMinimum     Reason = "below minimum stay"
	ReasonExceedsMaximum   Reason = "exceeds maximum stay"
)

type Verdict struct {
	Accepted bool
	Reason   Reason
}

func accept() Verdict {
	//nolint:exhaustruct
	return Verdict{Accepted: true}
}

func reject(reason Reason) Verdict {
	return Verdict{Accepted: false, Reason: reason}
}

type Constraints struct {
	MinStayNights int
	// MaxStayNights <= 0 leaves the stay length unbounded.
	MaxStayNights int
	Blackouts     BlackoutSet
}

// Day truncates t to its calendar date, expressed as midnight UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

type BlackoutSet map[string]struct{}

func NewBlackoutSet(days ...time.Time) BlackoutSet {
	set := make(BlackoutSet, len(days))

	for _, d := range days {
		set[dayKey(d)] = struct{}{}
	}

	return set
}

func (b BlackoutSet) Contains(t time.Time) bool {
	_, ok := b[dayKey(t)]

	return ok
}

func dayKey(t time.Time) string {
	return Day(t).Format(time.DateOnly)
}

type DateRange struct {
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
}

func (r DateRange) Complete() bool {
	return !r.CheckIn.IsZero() && !r.CheckOut.IsZero()
}

// Nights is ceil((checkOut - checkIn) / 1 day), or 0 while either endpoint is missing.
func Nights(r DateRange) int {
	if !r.Complete() {
		return 0
	}

	d := r.CheckOut.Sub(r.CheckIn)
	n := int(d / day)

	if d%day > 0 {
		n++
	}

	return n
}

// Validate decides whether candidate may be stored in the given role next to the current range.
func Validate(candidate time.Time, role Role, current DateRange, c Constraints, now time.Time) Verdict {
	candidate = Day(candidate)

	if candidate.Before(Day(now)) {
		return reject(ReasonPast)
	}

	if c.Blackouts.Contains(candidate) {
		return reject(ReasonBlackout)
	}

	switch role {
	case CheckIn:
		return accept()
	case CheckOut:
		if current.CheckIn.IsZero() {
			return reject(ReasonCheckInRequired)
		}

		return checkLength(Nights(DateRange{CheckIn: Day(current.CheckIn), CheckOut: candidate}), c)
	default:
		return reject(Reason(ErrUnknownRole.Error()))
	}
}

func checkLength(nights int, c Constraints) Verdict {
	if nights <= 0 {
		return reject(ReasonNotAfterCheckIn)
	}

	if nights < c.MinStayNights {
		return reject(ReasonBelowMinimum)
	}

	if c.MaxStayNights > 0 && nights > c.MaxStayNights {
		return reject(ReasonExceedsMaximum)
	}

	return accept()
}

// Select returns the range that results from accepting candidate. A new check-in always clears
// the stored check-out, which then has to be chosen again. A rejected candidate leaves the range
// untouched.
func Select(candidate time.Time, role Role, current DateRange, c Constraints, now time.Time) (DateRange, Verdict) {
	verdict := Validate(candidate, role, current, c, now)
	if !verdict.Accepted {
		return current, verdict
	}

	if role == CheckIn {
		//nolint:exhaustruct
		return DateRange{CheckIn: Day(candidate)}, verdict
	}

	return DateRange{CheckIn: Day(current.CheckIn), CheckOut: Day(candidate)}, verdict
}

// ValidateRange re-checks a complete range, as done before leaving the dates step.
func ValidateRange(r DateRange, c Constraints, now time.Time) Verdict {
	if r.CheckIn.IsZero() {
		return reject(ReasonCheckInRequired)
	}

	if v := Validate(r.CheckIn, CheckIn, r, c, now); !v.Accepted {
		return v
	}

	if r.CheckOut.IsZero() {
		return reject(ReasonCheckOutRequired)
	}

	return Validate(r.CheckOut, CheckOut, r, c, now)
}
