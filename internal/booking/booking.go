// Package booking keeps one wizard state per booking session and connects it to the catalog,
// the promotion lookup and the payment collaborator.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/avstrong/staybook/internal/catalog"
	"github.com/avstrong/staybook/internal/logger"
	"github.com/avstrong/staybook/internal/payment"
	"github.com/avstrong/staybook/internal/pricing"
	"github.com/avstrong/staybook/internal/promo"
	"github.com/avstrong/staybook/internal/stay"
	"github.com/avstrong/staybook/internal/wizard"
)

const tracerName = "github.com/avstrong/staybook/internal/booking"

type idGenerator interface {
	GetID(ctx context.Context) (string, error)
}

type storageReader interface {
	catalog.RoomReader
	catalog.BlackoutReader
	GetReservationByIdempotencyKey(ctx context.Context) (*Reservation, error)
}

type storageWriter interface {
	BeginTransaction(ctx context.Context, level string) (context.Context, error)
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
	SaveReservation(ctx context.Context, reservation *Reservation) error
}

type storage interface {
	storageReader
	storageWriter
}

type promoEngine interface {
	Apply(ctx context.Context, raw string, q promo.Quote) (promo.Applied, error)
}

type Config struct {
	PromoLookupTimeout time.Duration
}

type session struct {
	mu      sync.Mutex
	state   wizard.State
	tracker promo.Tracker
	// unsaved is a paid reservation whose save failed. The next Pay stores it without charging.
	unsaved *Reservation
}

type Manager struct {
	l           *logger.Logger
	conf        Config
	storage     storage
	idGenerator idGenerator
	wizard      *wizard.Wizard
	promos      promoEngine
	payments    payment.Gateway
	tracer      trace.Tracer

	mu       sync.RWMutex
	sessions map[string]*session
	lookups  sync.WaitGroup
}

func New(
	l *logger.Logger,
	conf Config,
	storage storage,
	idGenerator idGenerator,
	w *wizard.Wizard,
	promos promoEngine,
	payments payment.Gateway,
) *Manager {
	//nolint:exhaustruct
	return &Manager{
		l:           l,
		conf:        conf,
		storage:     storage,
		idGenerator: idGenerator,
		wizard:      w,
		promos:      promos,
		payments:    payments,
		tracer:      otel.Tracer(tracerName),
		sessions:    make(map[string]*session),
	}
}

func (m *Manager) startSpan(ctx context.Context, name, sessionID string) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("booking.session_id", sessionID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

func (m *Manager) ListRooms(ctx context.Context) ([]*catalog.Room, error) {
	rooms, err := m.storage.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	return rooms, nil
}

func (m *Manager) loadRoom(ctx context.Context, roomID string) (*catalog.Room, stay.BlackoutSet, error) {
	room, err := m.storage.GetRoom(ctx, roomID)
	if err != nil {
		return nil, nil, fmt.Errorf("get room %q: %w", roomID, err)
	}

	days, err := m.storage.GetBlackouts(ctx, room.HotelID)
	if err != nil {
		return nil, nil, fmt.Errorf("get blackouts of hotel %q: %w", room.HotelID, err)
	}

	return room, stay.NewBlackoutSet(days...), nil
}

// Start opens a new session for roomID.
func (m *Manager) Start(ctx context.Context, roomID string) (_ *Session, err error) {
	id := uuid.NewString()

	ctx, span := m.startSpan(ctx, "booking.Start", id)
	defer func() { endSpan(span, err) }()

	room, blackouts, err := m.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	state, err := m.wizard.Start(*room, blackouts)
	if err != nil {
		return nil, fmt.Errorf("start wizard: %w", err)
	}

	m.mu.Lock()
	m.sessions[id] = &session{state: state} //nolint:exhaustruct
	m.mu.Unlock()

	m.l.LogInfo("Booking session %s started for room %s", id, room.ID)

	return &Session{ID: id, State: state}, nil
}

func (m *Manager) session(id string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}

	return s, nil
}

func (m *Manager) Get(_ context.Context, id string) (*Session, error) {
	s, err := m.session(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return &Session{ID: id, State: s.state}, nil
}

// Dispatch runs cmd against the session state. The stored state only changes when the wizard
// accepts the command; on error the current state is returned alongside it.
func (m *Manager) Dispatch(ctx context.Context, id string, cmd wizard.Command) (_ *Session, err error) {
	ctx, span := m.startSpan(ctx, "booking.Dispatch", id)
	span.SetAttributes(attribute.String("booking.command", fmt.Sprintf("%T", cmd)))

	defer func() { endSpan(span, err) }()

	s, err := m.session(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return m.dispatchLocked(ctx, id, s, cmd)
}

func (m *Manager) dispatchLocked(_ context.Context, id string, s *session, cmd wizard.Command) (*Session, error) {
	if s.unsaved != nil {
		return &Session{ID: id, State: s.state}, ErrPaymentUnsaved
	}

	next, err := m.wizard.Reduce(s.state, cmd)
	if err != nil {
		return &Session{ID: id, State: s.state}, err
	}

	if next.Promo.Status != wizard.PromoPending {
		s.tracker.Cancel()
	}

	s.state = next

	return &Session{ID: id, State: next}, nil
}

// SelectRoom swaps the room of a session that is still choosing room and dates.
func (m *Manager) SelectRoom(ctx context.Context, id, roomID string) (*Session, error) {
	room, blackouts, err := m.loadRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	return m.Dispatch(ctx, id, wizard.SelectRoom{Room: *room, Blackouts: blackouts})
}

// RequestPromo marks the promotion step pending and resolves code in the background. A newer
// request, a removed promo or a skipped step supersedes the lookup; its late answer is dropped.
func (m *Manager) RequestPromo(ctx context.Context, id, code string) (_ *Session, err error) {
	ctx, span := m.startSpan(ctx, "booking.RequestPromo", id)
	defer func() { endSpan(span, err) }()

	s, err := m.session(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := m.dispatchLocked(ctx, id, s, wizard.RequestPromo{Code: code})
	if err != nil {
		return out, err
	}

	seq := out.State.Promo.Seq
	quote := promo.Quote{Subtotal: out.State.Price.Subtotal, Nights: out.State.Nights}
	lookupCtx, trackerSeq := s.tracker.Begin(context.WithoutCancel(ctx))

	m.lookups.Add(1)

	go m.resolvePromo(lookupCtx, id, s, code, quote, seq, trackerSeq)

	return out, nil
}

// resolvePromo applies code against the quote taken when it was requested. The wizard evaluates
// the found code again against the state current at delivery.
//
//nolint:lll
func (m *Manager) resolvePromo(ctx context.Context, id string, s *session, code string, quote promo.Quote, seq, trackerSeq uint64) {
	defer m.lookups.Done()

	ctx, span := m.startSpan(ctx, "booking.resolvePromo", id)
	defer span.End()

	if m.conf.PromoLookupTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, m.conf.PromoLookupTimeout)
		defer cancel()
	}

	applied, err := m.promos.Apply(ctx, code, quote)

	if !s.tracker.Current(trackerSeq) {
		m.l.LogDebugf("Promo lookup %d of session %s superseded, dropping result", seq, id)

		return
	}

	result := wizard.ResolvePromo{Seq: seq, Code: nil, Err: nil}

	switch {
	case applied.Code.Code != "":
		result.Code = &applied.Code
	case errors.Is(err, promo.ErrNotFound):
		result.Err = err
	case err != nil:
		m.l.LogWarnf("Promo lookup for session %s failed: %v", id, err)

		result.Err = err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := m.dispatchLocked(ctx, id, s, result); err != nil {
		m.l.LogDebugf("Promo result for session %s not applied: %v", id, err)
	}
}

// WaitLookups blocks until every background promo lookup has finished.
func (m *Manager) WaitLookups() {
	m.lookups.Wait()
}

// Pay charges the payment collaborator for a session at the payment step and stores the
// confirmed reservation. The idempotency key in ctx makes retries return the stored reservation
// instead of charging twice. The session only moves to Confirmation once the reservation is
// stored; a failed save keeps the paid reservation for the next Pay.
func (m *Manager) Pay(ctx context.Context, input PayInput) (_ *Reservation, err error) {
	ctx, span := m.startSpan(ctx, "booking.Pay", input.SessionID)
	defer func() { endSpan(span, err) }()

	if _, ok := IdempotencyKeyFromContext(ctx); !ok {
		return nil, ErrIdempotencyKey
	}

	existing, err := m.storage.GetReservationByIdempotencyKey(ctx)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return nil, fmt.Errorf("get reservation by idempotency key: %w", err)
	}

	if err == nil {
		if existing.SessionID != input.SessionID {
			return nil, ErrKeyReusedElsewhere
		}

		return existing, nil
	}

	s, err := m.session(input.SessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reservation := s.unsaved
	if reservation == nil {
		if reservation, err = m.charge(ctx, input, s); err != nil {
			return nil, err
		}
	} else {
		m.l.LogInfo("Retrying save of paid reservation %s for session %s", reservation.ConfirmationNumber, input.SessionID)
	}

	if err := m.saveReservation(ctx, reservation); err != nil {
		s.unsaved = reservation

		m.l.LogErrorf("Payment %s captured but reservation %s not stored: %v",
			reservation.Receipt.Reference, reservation.ConfirmationNumber, err)

		return nil, err
	}

	s.unsaved = nil
	s.state = reservation.State
	s.tracker.Cancel()

	m.l.LogInfo("Booking session %s confirmed as %s, paid %.2f %s",
		input.SessionID, reservation.ConfirmationNumber, reservation.Receipt.Amount, reservation.Receipt.Currency)

	return reservation, nil
}

// charge runs the payment step against a fixed instant: the preflight and the final confirmation
// price the stay the same way, so the amount charged is the amount the guard checks.
func (m *Manager) charge(ctx context.Context, input PayInput, s *session) (*Reservation, error) {
	at := m.wizard.Now()

	// The wizard is pure, so the guards can be checked before any money moves.
	pre, err := m.wizard.ReduceAt(s.state, wizard.ConfirmPayment{
		Reference:   "preflight",
		Amount:      pricing.Round2(s.state.Price.Total),
		ProcessedAt: at,
	}, at)
	if err != nil {
		return nil, err
	}

	number, err := m.idGenerator.GetID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNextID, err)
	}

	amount := pricing.Round2(pre.Price.Total)

	receipt, err := m.payments.Charge(ctx, payment.Request{
		SessionID: input.SessionID,
		Amount:    amount,
		Currency:  pre.Price.Currency,
		Email:     input.Email,
	})
	if err != nil {
		return nil, fmt.Errorf("charge %.2f: %w: %w", amount, ErrPaymentFailed, err)
	}

	next, err := m.wizard.ReduceAt(s.state, wizard.ConfirmPayment{
		Reference:   receipt.Reference,
		Amount:      receipt.Amount,
		ProcessedAt: receipt.ProcessedAt,
	}, at)
	if err != nil {
		m.l.LogErrorf("Payment %s captured but session %s was not confirmed: %v", receipt.Reference, input.SessionID, err)

		return nil, fmt.Errorf("confirm payment %s: %w", receipt.Reference, err)
	}

	return &Reservation{
		ConfirmationNumber: number,
		SessionID:          input.SessionID,
		State:              next,
		Receipt:            *receipt,
		CreatedAt:          time.Now().UTC(),
	}, nil
}

func (m *Manager) saveReservation(ctx context.Context, reservation *Reservation) (err error) {
	ctx, err = m.storage.BeginTransaction(ctx, "READ COMMITTED")
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := m.storage.RollbackTransaction(ctx); rbErr != nil {
				m.l.LogErrorf("Could not rollback reservation transaction after panic %v", p)
			}

			m.l.LogInfo("Transaction has been roll backed after panic")

			panic(p)
		}

		if err != nil {
			if rbErr := m.storage.RollbackTransaction(ctx); rbErr != nil {
				m.l.LogErrorf("Could not rollback reservation transaction after error %v", rbErr.Error())
			}

			m.l.LogInfo("Transaction has been roll backed after error")

			return
		}

		if err = m.storage.CommitTransaction(ctx); err != nil {
			m.l.LogErrorf("Could not commit reservation transaction, err %v", err.Error())
			err = fmt.Errorf("commit reservation: %w", err)

			return
		}

		m.l.LogDebugf("Transaction has been committed")
	}()

	if err = m.storage.SaveReservation(ctx, reservation); err != nil {
		return fmt.Errorf("save reservation to storage: %w", err)
	}

	return nil
}

// Discard drops an abandoned session together with any lookup in flight.
func (m *Manager) Discard(_ context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%s: %w", id, ErrSessionNotFound)
	}

	s.tracker.Cancel()

	m.l.LogInfo("Booking session %s discarded", id)

	return nil
}
