package wizard

import (
	"fmt"
	"time"

	"github.com/avstrong/staybook/internal/catalog"
	"github.com/avstrong/staybook/internal/guests"
	"github.com/avstrong/staybook/internal/promo"
	"github.com/avstrong/staybook/internal/stay"
)

// Command is one user or collaborator event. The set is closed to this package.
type Command interface {
	apply(w *Wizard, s State, now time.Time) (State, error)
}

func requireStep(s State, step Step, field string) error {
	if s.Step != step {
		return inputError(field, fmt.Sprintf("can only be changed at step %s, booking is at %s", step, s.Step))
	}

	return nil
}

type SelectRoom struct {
	Room      catalog.Room
	Blackouts stay.BlackoutSet
}

func (c SelectRoom) apply(w *Wizard, s State, now time.Time) (State, error) {
	if err := requireStep(s, StepRoomAndDates, "room"); err != nil {
		return s, err
	}

	if !c.Room.Selected() {
		return s, inputError("room", "select a room")
	}

	s.Room = c.Room
	s.blackouts = c.Blackouts

	return w.reprice(s, now)
}

type SelectDate struct {
	Date time.Time
	Role stay.Role
}

func (c SelectDate) apply(w *Wizard, s State, now time.Time) (State, error) {
	field := c.Role.String()

	if err := requireStep(s, StepRoomAndDates, field); err != nil {
		return s, err
	}

	dates, verdict := stay.Select(c.Date, c.Role, s.Dates, w.constraints(s), now)
	if !verdict.Accepted {
		return s, inputError(field, string(verdict.Reason))
	}

	s.Dates = dates

	return w.reprice(s, now)
}

// AdjustGuests moves a guest category by one. Out-of-bound moves leave the state as it was.
type AdjustGuests struct {
	Category guests.Category
	Delta    int
}

func (c AdjustGuests) apply(w *Wizard, s State, now time.Time) (State, error) {
	if err := requireStep(s, StepGuestInfo, c.Category.String()); err != nil {
		return s, err
	}

	if s.Party != nil {
		if c.Category != guests.Rooms {
			return s, inputError(c.Category.String(), "adjust guests per room")
		}

		cfg, applied := s.Guests.Adjust(guests.Rooms, c.Delta, w.conf.Limits)
		if !applied {
			return s, nil
		}

		s.Party = s.Party.Resize(cfg.Rooms)
		s.Guests = s.Party.Config()

		return w.reprice(s, now)
	}

	cfg, applied := s.Guests.Adjust(c.Category, c.Delta, w.conf.Limits)
	if !applied {
		return s, nil
	}

	s.Guests = cfg

	return w.reprice(s, now)
}

// AdjustRoomGuests edits one room of a multi-room selection. The first use splits the aggregate
// counts over the selected rooms.
type AdjustRoomGuests struct {
	Index    int
	Category guests.Category
	Delta    int
}

func (c AdjustRoomGuests) apply(w *Wizard, s State, now time.Time) (State, error) {
	field := fmt.Sprintf("rooms[%d].%s", c.Index, c.Category)

	if err := requireStep(s, StepGuestInfo, field); err != nil {
		return s, err
	}

	party := s.Party
	if party == nil {
		party = guests.Split(s.Guests)
	}

	if c.Index < 0 || c.Index >= len(party) {
		return s, inputError(field, fmt.Sprintf("room %d is not part of the booking", c.Index+1))
	}

	if c.Category != guests.Adults && c.Category != guests.Children {
		return s, inputError(field, "only adults and children can be set per room")
	}

	party, applied := party.Adjust(c.Index, c.Category, c.Delta, s.Room, w.conf.Limits)
	if !applied && s.Party != nil {
		return s, nil
	}

	s.Party = party
	s.Guests = party.Config()

	return w.reprice(s, now)
}

type SelectTimes struct {
	CheckIn  string
	CheckOut string
}

func (c SelectTimes) apply(w *Wizard, s State, now time.Time) (State, error) {
	if err := requireStep(s, StepGuestInfo, "times"); err != nil {
		return s, err
	}

	ie := newInputError()

	if _, err := w.conf.Slots.CheckIn.FeeFor(c.CheckIn); err != nil {
		ie.addError("check_in_time", err.Error())
	}

	if _, err := w.conf.Slots.CheckOut.FeeFor(c.CheckOut); err != nil {
		ie.addError("check_out_time", err.Error())
	}

	if len(ie.fields) > 0 {
		return s, ie
	}

	s.CheckInTime = c.CheckIn
	s.CheckOutTime = c.CheckOut

	return w.reprice(s, now)
}

// RequestPromo marks a lookup as started. Any discount in effect is withdrawn until the new code
// resolves, and any earlier lookup is superseded.
type RequestPromo struct {
	Code string
}

func (c RequestPromo) apply(w *Wizard, s State, now time.Time) (State, error) {
	if err := requireStep(s, StepPromotion, "promo"); err != nil {
		return s, err
	}

	code := promo.Normalize(c.Code)
	if code == "" {
		return s, inputError("promo", "enter a promo code")
	}

	//nolint:exhaustruct
	s.Promo = PromoState{
		Status: PromoPending,
		Input:  code,
		Seq:    s.Promo.Seq + 1,
	}

	return w.reprice(s, now)
}

// ResolvePromo delivers the result of the lookup numbered Seq. Results for anything but the
// pending lookup are discarded. A rejected code is recorded on the state, not returned as error.
type ResolvePromo struct {
	Seq  uint64
	Code *promo.Code
	Err  error
}

func (c ResolvePromo) apply(w *Wizard, s State, now time.Time) (State, error) {
	if s.Promo.Status != PromoPending || c.Seq != s.Promo.Seq {
		return s, nil
	}

	if c.Err == nil && c.Code == nil {
		c.Err = promo.ErrNotFound
	}

	if c.Err != nil {
		s.Promo = rejectedPromo(s.Promo, nil, c.Err)

		return w.reprice(s, now)
	}

	// reprice evaluates the found code against the current subtotal.
	//nolint:exhaustruct
	s.Promo = PromoState{
		Status: PromoApplied,
		Input:  s.Promo.Input,
		Seq:    s.Promo.Seq,
		Code:   c.Code,
	}

	return w.reprice(s, now)
}

// RemovePromo clears the code and its discount and invalidates any lookup in flight.
type RemovePromo struct{}

func (RemovePromo) apply(w *Wizard, s State, now time.Time) (State, error) {
	if err := requireStep(s, StepPromotion, "promo"); err != nil {
		return s, err
	}

	//nolint:exhaustruct
	s.Promo = PromoState{Status: PromoNone, Seq: s.Promo.Seq + 1}

	return w.reprice(s, now)
}

type Next struct{}

func (Next) apply(w *Wizard, s State, now time.Time) (State, error) {
	return w.advance(s, now)
}

// Back is always allowed and keeps everything entered on later steps. At the first step it does
// nothing.
type Back struct{}

func (Back) apply(w *Wizard, s State, now time.Time) (State, error) {
	if s.Step == StepRoomAndDates {
		return s, nil
	}

	s.Step--

	return w.reprice(s, now)
}

// Skip leaves the promotion step without waiting for a pending lookup, which is abandoned.
type Skip struct{}

func (Skip) apply(w *Wizard, s State, now time.Time) (State, error) {
	if s.Step != StepPromotion {
		return s, newTransitionError(s.Step, forward[s.Step])
	}

	if s.Promo.Status == PromoPending {
		//nolint:exhaustruct
		s.Promo = PromoState{Status: PromoNone, Seq: s.Promo.Seq + 1}
	}

	return w.advance(s, now)
}

// ConfirmPayment records a processed payment and moves to Confirmation.
type ConfirmPayment struct {
	Reference   string
	Amount      float64
	ProcessedAt time.Time
}

func (c ConfirmPayment) apply(w *Wizard, s State, now time.Time) (State, error) {
	if err := requireStep(s, StepPayment, "payment"); err != nil {
		return s, err
	}

	s.Payment = &Payment{
		Reference:   c.Reference,
		Amount:      c.Amount,
		ProcessedAt: c.ProcessedAt,
	}

	return w.advance(s, now)
}
