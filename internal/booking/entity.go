package booking

import (
	"time"

	"github.com/avstrong/staybook/internal/payment"
	"github.com/avstrong/staybook/internal/wizard"
)

// Reservation is a confirmed booking as handed over by the payment step.
type Reservation struct {
	ConfirmationNumber string          `json:"confirmation_number"`
	SessionID          string          `json:"session_id"`
	State              wizard.State    `json:"state"`
	Receipt            payment.Receipt `json:"receipt"`
	CreatedAt          time.Time       `json:"created_at"`
}

type Session struct {
	ID    string       `json:"id"`
	State wizard.State `json:"state"`
}

type PayInput struct {
	SessionID string
	Email     string
}
