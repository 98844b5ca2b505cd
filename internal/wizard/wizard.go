// Package wizard sequences a booking through Room & Dates, Guest Info, Promotion, Payment and
// Confirmation. It is a reducer: Reduce takes a State and a Command and returns the next State.
package wizard

import (
	"fmt"
	"time"

	"github.com/avstrong/staybook/internal/catalog"
	"github.com/avstrong/staybook/internal/guests"
	"github.com/avstrong/staybook/internal/pricing"
	"github.com/avstrong/staybook/internal/promo"
	"github.com/avstrong/staybook/internal/stay"
	"github.com/avstrong/staybook/internal/timeslot"
)

type Config struct {
	Limits        guests.Limits
	MinStayNights int
	MaxStayNights int
	Slots         timeslot.Pricing
}

func DefaultConfig() Config {
	return Config{
		Limits:        guests.DefaultLimits(),
		MinStayNights: 1,
		MaxStayNights: 30, //nolint:gomnd
		Slots:         timeslot.DefaultPricing(),
	}
}

type Wizard struct {
	conf Config
	calc *pricing.Calculator
	now  func() time.Time
}

func New(conf Config, calc *pricing.Calculator, now func() time.Time) *Wizard {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Wizard{
		conf: conf,
		calc: calc,
		now:  now,
	}
}

// Start opens a booking for room with default guests and standard check-in and check-out times.
func (w *Wizard) Start(room catalog.Room, blackouts stay.BlackoutSet) (State, error) {
	checkIn, _ := w.conf.Slots.CheckIn.Standard()
	checkOut, _ := w.conf.Slots.CheckOut.Standard()

	//nolint:exhaustruct
	s := State{
		Step:         StepRoomAndDates,
		Room:         room,
		Guests:       guests.Default(),
		CheckInTime:  checkIn.Time,
		CheckOutTime: checkOut.Time,
		Promo:        PromoState{Status: PromoNone},
		blackouts:    blackouts,
	}

	return w.reprice(s, w.now())
}

// Now is the wizard clock.
func (w *Wizard) Now() time.Time {
	return w.now()
}

// Reduce applies cmd to s. On error the returned state is s itself: a rejected command never
// leaves partial changes behind.
func (w *Wizard) Reduce(s State, cmd Command) (State, error) {
	return w.ReduceAt(s, cmd, w.now())
}

// ReduceAt is Reduce with the clock fixed at at. Two calls with the same state and instant
// price the stay identically.
func (w *Wizard) ReduceAt(s State, cmd Command, at time.Time) (State, error) {
	if s.Confirmed() {
		return s, ErrConfirmed
	}

	next, err := cmd.apply(w, s, at)
	if err != nil {
		return s, err
	}

	return next, nil
}

func (w *Wizard) constraints(s State) stay.Constraints {
	return stay.Constraints{
		MinStayNights: w.conf.MinStayNights,
		MaxStayNights: w.conf.MaxStayNights,
		Blackouts:     s.blackouts,
	}
}

// reprice derives nights, add-on fees, the promo discount and the price breakdown from scratch.
// A looked-up promo is evaluated again against the new subtotal; if it no longer qualifies its
// discount is dropped and the reason recorded.
func (w *Wizard) reprice(s State, now time.Time) (State, error) {
	s.Nights = stay.Nights(s.Dates)

	fees, err := w.conf.Slots.AddOnFees(s.CheckInTime, s.CheckOutTime)
	if err != nil {
		return s, fmt.Errorf("add-on fees: %w", err)
	}

	// A looked-up code stays on the state after a rule rejection, so it is re-evaluated on every
	// change and comes back once the stay qualifies again.
	if s.Promo.Code != nil && (s.Promo.Status == PromoApplied || s.Promo.Status == PromoRejected) {
		s.Promo = w.evaluatePromo(s, *s.Promo.Code, now)
	}

	price, err := w.calc.Compute(pricing.Input{
		Room:      s.Room,
		Nights:    s.Nights,
		Rooms:     s.Guests.Rooms,
		AddOnFees: fees,
		Discount:  s.Promo.Discount,
	})
	if err != nil {
		return s, fmt.Errorf("compute price: %w", err)
	}

	s.Price = price
	s.CapacityIssue = ""

	if s.Room.Selected() {
		if err := w.checkCapacity(s); err != nil {
			s.CapacityIssue = err.Error()
		}
	}

	return s, nil
}

// evaluatePromo runs the rule checks for code against the current subtotal.
func (w *Wizard) evaluatePromo(s State, code promo.Code, now time.Time) PromoState {
	quote := promo.Quote{Subtotal: w.calc.Subtotal(s.Room, s.Nights, s.Guests.Rooms), Nights: s.Nights}

	applied, err := promo.Evaluate(code, quote, now)
	if err != nil {
		return rejectedPromo(s.Promo, &code, err)
	}

	//nolint:exhaustruct
	return PromoState{
		Status:   PromoApplied,
		Input:    s.Promo.Input,
		Seq:      s.Promo.Seq,
		Code:     &applied.Code,
		Discount: applied.Discount,
	}
}

// rejectedPromo records err on the promo state. code is nil when the lookup itself failed.
func rejectedPromo(prev PromoState, code *promo.Code, err error) PromoState {
	//nolint:exhaustruct
	return PromoState{
		Status:  PromoRejected,
		Input:   prev.Input,
		Seq:     prev.Seq,
		Code:    code,
		Reason:  promo.ReasonOf(err),
		Message: err.Error(),
	}
}

func (w *Wizard) checkCapacity(s State) error {
	if s.Party != nil {
		return guests.CheckPartyCapacity(s.Party, s.Room)
	}

	return guests.CheckCapacity(s.Guests, s.Room)
}

// guard collects everything that must hold before leaving from. Guards are cumulative: leaving a
// later step re-checks the earlier ones, since time may have passed since they were entered.
func (w *Wizard) guard(s State, from Step, now time.Time) *TransitionError {
	te := newTransitionError(from, forward[from])

	if from >= StepRoomAndDates {
		if !s.Room.Selected() {
			te.addError("room", "select a room")
		}

		if v := stay.ValidateRange(s.Dates, w.constraints(s), now); !v.Accepted {
			te.addError("dates", string(v.Reason))
		}
	}

	if from >= StepGuestInfo {
		for field, msg := range s.Guests.Validate(w.conf.Limits) {
			te.addError(field, msg)
		}

		if s.Room.Selected() {
			if err := w.checkCapacity(s); err != nil {
				te.addError("guests", err.Error())
			}
		}
	}

	if from >= StepPromotion && s.Promo.Status == PromoPending {
		te.addError("promo", "promo code lookup in progress")
	}

	if from >= StepPayment {
		switch {
		case s.Payment == nil || s.Payment.Reference == "":
			te.addError("payment", "payment has not been processed")
		case pricing.Round2(s.Payment.Amount) != pricing.Round2(s.Price.Total):
			te.addError("payment", fmt.Sprintf("paid %.2f but total is %.2f", s.Payment.Amount, s.Price.Total))
		}

		if s.Nights <= 0 {
			te.addError("price", "price has not been computed")
		}
	}

	if te.fieldsCount() == 0 {
		return nil
	}

	return te
}

// advance re-prices, checks the guards of the current step and moves one step forward.
func (w *Wizard) advance(s State, now time.Time) (State, error) {
	to, ok := forward[s.Step]
	if !ok {
		return s, newTransitionError(s.Step, s.Step)
	}

	s, err := w.reprice(s, now)
	if err != nil {
		return s, err
	}

	if te := w.guard(s, s.Step, now); te != nil {
		return s, te
	}

	s.Step = to

	return s, nil
}
