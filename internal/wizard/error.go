package wizard

import (
	"errors"
	"fmt"
)

var ErrConfirmed = errors.New("booking is confirmed and can no longer change")

// InputError carries field-level messages for input that was not accepted into the state.
type InputError struct {
	fields map[string][]string
}

func newInputError() *InputError {
	return &InputError{
		fields: make(map[string][]string),
	}
}

func inputError(field, msg string) *InputError {
	ie := newInputError()
	ie.addError(field, msg)

	return ie
}

func IsInputError(err error) *InputError {
	if err == nil {
		return nil
	}

	var inputError *InputError

	if errors.As(err, &inputError) {
		return inputError
	}

	return nil
}

func (ie *InputError) addError(field, msg string) {
	ie.fields[field] = append(ie.fields[field], msg)
}

func (ie *InputError) Error() string {
	return fmt.Sprintf("%+v", ie.fields)
}

func (ie *InputError) Fields() map[string][]string {
	return ie.fields
}

// TransitionError reports why the wizard refused to move forward.
type TransitionError struct {
	From   Step
	To     Step
	fields map[string][]string
}

func newTransitionError(from, to Step) *TransitionError {
	return &TransitionError{
		From:   from,
		To:     to,
		fields: make(map[string][]string),
	}
}

func IsTransitionError(err error) *TransitionError {
	if err == nil {
		return nil
	}

	var transitionError *TransitionError

	if errors.As(err, &transitionError) {
		return transitionError
	}

	return nil
}

func (te *TransitionError) addError(field, msg string) {
	te.fields[field] = append(te.fields[field], msg)
}

func (te *TransitionError) fieldsCount() int {
	return len(te.fields)
}

func (te *TransitionError) Error() string {
	return fmt.Sprintf("cannot move from %s to %s: %+v", te.From, te.To, te.fields)
}

func (te *TransitionError) Fields() map[string][]string {
	return te.fields
}
