package booking

import "errors"

var (
	ErrIdempotencyKey     = errors.New("idempotency key not found")
	ErrNextID             = errors.New("get next id from generator")
	ErrRecordNotFound     = errors.New("record not found")
	ErrSessionNotFound    = errors.New("booking session not found")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrKeyReusedElsewhere = errors.New("idempotency key already used for another booking")
	ErrPaymentUnsaved     = errors.New("payment captured but reservation not stored, retry payment")
)
