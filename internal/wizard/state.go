package wizard

import (
	"time"

	"github.com/avstrong/staybook/internal/catalog"
	"github.com/avstrong/staybook/internal/guests"
	"github.com/avstrong/staybook/internal/pricing"
	"github.com/avstrong/staybook/internal/promo"
	"github.com/avstrong/staybook/internal/stay"
)

type PromoStatus string

const (
	PromoNone     PromoStatus = "none"
	PromoPending  PromoStatus = "pending"
	PromoApplied  PromoStatus = "applied"
	PromoRejected PromoStatus = "rejected"
)

type PromoState struct {
	Status PromoStatus `json:"status"`
	Input  string      `json:"input,omitempty"`
	// Seq identifies the latest lookup; resolutions carrying an older number are dropped.
	Seq      uint64       `json:"seq"`
	Code     *promo.Code  `json:"code,omitempty"`
	Discount float64      `json:"discount"`
	Reason   promo.Reason `json:"reason,omitempty"`
	Message  string       `json:"message,omitempty"`
}

type Payment struct {
	Reference   string    `json:"reference"`
	Amount      float64   `json:"amount"`
	ProcessedAt time.Time `json:"processed_at"`
}

// State is a value: every command yields a new State and never edits the one it was given.
type State struct {
	Step         Step              `json:"step"`
	Room         catalog.Room      `json:"room"`
	Dates        stay.DateRange    `json:"dates"`
	Nights       int               `json:"nights"`
	Guests       guests.Config     `json:"guests"`
	Party        guests.Party      `json:"party,omitempty"`
	CheckInTime  string            `json:"check_in_time"`
	CheckOutTime string            `json:"check_out_time"`
	Promo        PromoState        `json:"promo"`
	Price        pricing.Breakdown `json:"price"`
	// CapacityIssue describes why the current guests do not fit the room; empty when they do.
	CapacityIssue string   `json:"capacity_issue,omitempty"`
	Payment       *Payment `json:"payment,omitempty"`

	blackouts stay.BlackoutSet
}

func (s State) Confirmed() bool {
	return s.Step == StepConfirmation
}
