// Package payment is the hand-off point to the payment collaborator. The simulated gateway here
// authorizes amounts without moving money.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDeclined      = errors.New("payment declined")
	ErrInvalidAmount = errors.New("invalid payment amount")
)

type Request struct {
	SessionID string
	Amount    float64
	Currency  string
	Email     string
}

type Receipt struct {
	Reference   string    `json:"reference"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	ProcessedAt time.Time `json:"processed_at"`
}

type Gateway interface {
	Charge(ctx context.Context, req Request) (*Receipt, error)
}

type SimulatedConfig struct {
	// Amounts above Limit are declined; zero disables the limit.
	Limit   float64
	Latency time.Duration
}

type Simulated struct {
	conf SimulatedConfig
	now  func() time.Time
}

func NewSimulated(conf SimulatedConfig) *Simulated {
	return &Simulated{
		conf: conf,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Simulated) Charge(ctx context.Context, req Request) (*Receipt, error) {
	if req.Amount < 0 {
		return nil, fmt.Errorf("amount %.2f: %w", req.Amount, ErrInvalidAmount)
	}

	if s.conf.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("charge interrupted: %w", ctx.Err())
		case <-time.After(s.conf.Latency):
		}
	}

	if s.conf.Limit > 0 && req.Amount > s.conf.Limit {
		return nil, fmt.Errorf("amount %.2f %s above limit %.2f: %w", req.Amount, req.Currency, s.conf.Limit, ErrDeclined)
	}

	return &Receipt{
		Reference:   "pay_" + uuid.NewString(),
		Amount:      req.Amount,
		Currency:    req.Currency,
		ProcessedAt: s.now(),
	}, nil
}
