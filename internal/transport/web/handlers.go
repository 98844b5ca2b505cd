package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/avstrong/staybook/internal/booking"
	"github.com/avstrong/staybook/internal/catalog"
	"github.com/avstrong/staybook/internal/guests"
	"github.com/avstrong/staybook/internal/pricing"
	"github.com/avstrong/staybook/internal/stay"
	"github.com/avstrong/staybook/internal/wizard"
)

const maxBodyBytes = 1 << 20

type sessionResponse struct {
	ID    string            `json:"id"`
	State wizard.State      `json:"state"`
	Price pricing.Breakdown `json:"price"`
	// Display holds the price strings as shown to the guest.
	Display *pricing.Display `json:"display,omitempty"`
}

type roomRequest struct {
	RoomID string `json:"room_id"`
}

type dateRequest struct {
	Date string `json:"date"`
	Role string `json:"role"`
}

type guestsRequest struct {
	Category string `json:"category"`
	Delta    int    `json:"delta"`
}

type timesRequest struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
}

type promoRequest struct {
	Code string `json:"code"`
}

type paymentRequest struct {
	Email string `json:"email"`
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v) //nolint:wrapcheck
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	return dec.Decode(dst) //nolint:wrapcheck
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		s.l.LogErrorf("Could not encode response: %v", err.Error())
	}
}

func (s *Server) badRequest(w http.ResponseWriter, field, msg string) {
	s.respond(w, http.StatusBadRequest, map[string][]string{field: {msg}})
}

func (s *Server) session(w http.ResponseWriter, status int, out *booking.Session) {
	price := out.State.Price.Rounded()
	state := out.State
	state.Price = price
	resp := sessionResponse{ID: out.ID, State: state, Price: price, Display: nil}

	if price.Currency != "" {
		display, err := price.Display(s.conf.Lang)
		if err != nil {
			s.l.LogWarnf("Could not format price of session %s: %v", out.ID, err)
		} else {
			resp.Display = &display
		}
	}

	s.respond(w, status, resp)
}

// handleErr writes the response for err. InputError and TransitionError carry a field map.
func (s *Server) handleErr(w http.ResponseWriter, err error) {
	if inputErr := wizard.IsInputError(err); inputErr != nil {
		s.respond(w, http.StatusBadRequest, inputErr.Fields())

		return
	}

	if transitionErr := wizard.IsTransitionError(err); transitionErr != nil {
		s.respond(w, http.StatusConflict, map[string]any{
			"from":   transitionErr.From,
			"to":     transitionErr.To,
			"fields": transitionErr.Fields(),
		})

		return
	}

	switch {
	case errors.Is(err, booking.ErrSessionNotFound), errors.Is(err, catalog.ErrRoomNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, wizard.ErrConfirmed), errors.Is(err, booking.ErrKeyReusedElsewhere),
		errors.Is(err, booking.ErrPaymentUnsaved):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, booking.ErrPaymentFailed):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	default:
		s.l.LogErrorf("Request failed: %v", err.Error())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (s *Server) livenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listRoomsHandler(w http.ResponseWriter, r *http.Request) {
	rooms, err := s.bManager.ListRooms(r.Context())
	if err != nil {
		s.handleErr(w, err)

		return
	}

	s.respond(w, http.StatusOK, rooms)
}

func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, "body", err.Error())

		return
	}

	out, err := s.bManager.Start(r.Context(), req.RoomID)
	if err != nil {
		s.handleErr(w, err)

		return
	}

	s.session(w, http.StatusCreated, out)
}

func (s *Server) getHandler(w http.ResponseWriter, r *http.Request) {
	out, err := s.bManager.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleErr(w, err)

		return
	}

	s.session(w, http.StatusOK, out)
}

func (s *Server) discardHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.bManager.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleErr(w, err)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, cmd wizard.Command) {
	out, err := s.bManager.Dispatch(r.Context(), chi.URLParam(r, "id"), cmd)
	if err != nil {
		s.handleErr(w, err)

		return
	}

	s.session(w, http.StatusOK, out)
}

func (s *Server) selectRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, "body", err.Error())

		return
	}

	out, err := s.bManager.SelectRoom(r.Context(), chi.URLParam(r, "id"), req.RoomID)
	if err != nil {
		s.handleErr(w, err)

		return
	}

	s.session(w, http.StatusOK, out)
}

func (s *Server) selectDateHandler(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, "body", err.Error())

		return
	}

	role, err := stay.ParseRole(req.Role)
	if err != nil {
		s.badRequest(w, "role", err.Error())

		return
	}

	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		s.badRequest(w, role.String(), fmt.Sprintf("date must look like %s", time.DateOnly))

		return
	}

	s.dispatch(w, r, wizard.SelectDate{Date: date, Role: role})
}

func (s *Server) adjustGuestsHandler(w http.ResponseWriter, r *http.Request) {
	var req guestsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, "body", err.Error())

		return
	}

	category, err := guests.ParseCategory(req.Category)
	if err != nil {
		s.badRequest(w, "category", err.Error())

		return
	}

	s.dispatch(w, r, wizard.AdjustGuests{Category: category, Delta: req.Delta})
}

func (s *Server) adjustRoomGuestsHandler(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.badRequest(w, "index", "room index must be a number")

		return
	}

	var req guestsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, "body", err.Error())

		return
	}

	category, err := guests.ParseCategory(req.Category)
	if err != nil {
		s.badRequest(w, "category", err.Error())

		return
	}

	s.dispatch(w, r, wizard.AdjustRoomGuests{Index: index, Category: category, Delta: req.Delta})
}

func (s *Server) selectTimesHandler(w http.ResponseWriter, r *http.Request) {
	var req timesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, "body", err.Error())

		return
	}

	s.dispatch(w, r, wizard.SelectTimes{CheckIn: req.CheckIn, CheckOut: req.CheckOut})
}

func (s *Server) requestPromoHandler(w http.ResponseWriter, r *http.Request) {
	var req promoRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.badRequest(w, "body", err.Error())

		return
	}

	out, err := s.bManager.RequestPromo(r.Context(), chi.URLParam(r, "id"), req.Code)
	if err != nil {
		s.handleErr(w, err)

		return
	}

	s.session(w, http.StatusAccepted, out)
}

func (s *Server) removePromoHandler(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, wizard.RemovePromo{})
}

func (s *Server) stepHandler(cmd wizard.Command) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.dispatch(w, r, cmd)
	}
}

func (s *Server) paymentHandler(w http.ResponseWriter, r *http.Request) {
	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		s.badRequest(w, "Idempotency-Key", "header is missing")

		return
	}

	var req paymentRequest

	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.badRequest(w, "body", err.Error())

			return
		}
	}

	ctx := booking.NewContextWithIdempotencyKey(r.Context(), idempotencyKey)

	out, err := s.bManager.Pay(ctx, booking.PayInput{SessionID: chi.URLParam(r, "id"), Email: req.Email})
	if err != nil {
		s.handleErr(w, err)

		return
	}

	s.respond(w, http.StatusCreated, out)
}
