package wizard

import (
	"errors"
	"fmt"
)

var ErrUnknownStep = errors.New("unknown step")

type Step int

const (
	StepRoomAndDates Step = iota + 1
	StepGuestInfo
	StepPromotion
	StepPayment
	StepConfirmation
)

var stepNames = map[Step]string{
	StepRoomAndDates: "room_and_dates",
	StepGuestInfo:    "guest_info",
	StepPromotion:    "promotion",
	StepPayment:      "payment",
	StepConfirmation: "confirmation",
}

// forward is the transition table: each step has exactly one successor.
var forward = map[Step]Step{
	StepRoomAndDates: StepGuestInfo,
	StepGuestInfo:    StepPromotion,
	StepPromotion:    StepPayment,
	StepPayment:      StepConfirmation,
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}

	return fmt.Sprintf("step(%d)", int(s))
}

func (s Step) MarshalText() ([]byte, error) {
	if _, ok := stepNames[s]; !ok {
		return nil, fmt.Errorf("%d: %w", int(s), ErrUnknownStep)
	}

	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(text []byte) error {
	for step, name := range stepNames {
		if name == string(text) {
			*s = step

			return nil
		}
	}

	return fmt.Errorf("%q: %w", text, ErrUnknownStep)
}
