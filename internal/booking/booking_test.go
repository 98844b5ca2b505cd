package booking_test

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/avstrong/staybook/internal/booking"
	"github.com/avstrong/staybook/internal/catalog"
	"github.com/avstrong/staybook/internal/guests"
	"github.com/avstrong/staybook/internal/idgen/simple"
	"github.com/avstrong/staybook/internal/logger"
	"github.com/avstrong/staybook/internal/payment"
	"github.com/avstrong/staybook/internal/pricing"
	"github.com/avstrong/staybook/internal/promo"
	"github.com/avstrong/staybook/internal/stay"
	"github.com/avstrong/staybook/internal/storage/memory"
	"github.com/avstrong/staybook/internal/wizard"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func date(month, day int) time.Time {
	return time.Date(2026, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// slowCatalog answers codes listed in hold only once their channel is closed or the lookup is
// cancelled.
type slowCatalog struct {
	promo.Catalog
	hold map[string]chan struct{}
}

func (c *slowCatalog) LookupPromo(ctx context.Context, code string) (*promo.Code, error) {
	if ch, ok := c.hold[code]; ok {
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return c.Catalog.LookupPromo(ctx, code)
}

type countingGateway struct {
	mu       sync.Mutex
	calls    int
	onCharge func()
	next     payment.Gateway
}

func (g *countingGateway) Charge(ctx context.Context, req payment.Request) (*payment.Receipt, error) {
	g.mu.Lock()
	g.calls++
	onCharge := g.onCharge
	g.mu.Unlock()

	if onCharge != nil {
		onCharge()
	}

	return g.next.Charge(ctx, req)
}

var errDiskFull = errors.New("disk full")

// flakyStore fails the next failSaves reservation saves.
type flakyStore struct {
	*memory.DB
	failSaves int
}

func (s *flakyStore) SaveReservation(ctx context.Context, reservation *booking.Reservation) error {
	if s.failSaves > 0 {
		s.failSaves--

		return errDiskFull
	}

	return s.DB.SaveReservation(ctx, reservation)
}

// flakyIDs fails the next failures calls to GetID.
type flakyIDs struct {
	next     *simple.Generator
	failures int
}

func (g *flakyIDs) GetID(ctx context.Context) (string, error) {
	if g.failures > 0 {
		g.failures--

		return "", errDiskFull
	}

	return g.next.GetID(ctx)
}

type clock struct {
	mu sync.Mutex
	at time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.at
}

func (c *clock) set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.at = at
}

type fixture struct {
	manager *booking.Manager
	db      *memory.DB
	store   *flakyStore
	ids     *flakyIDs
	clock   *clock
	gateway *countingGateway
	hold    map[string]chan struct{}
}

func newFixture(t *testing.T, limit float64) *fixture {
	t.Helper()

	l := logger.New(log.New(io.Discard, "", 0))
	db := memory.New(memory.Config{L: l})

	ctx, err := db.BeginTransaction(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}

	//nolint:exhaustruct
	rooms := []*catalog.Room{
		{ID: "std", HotelID: "seaside", Name: "Standard", PricePerNight: 100, Currency: "USD", MaxGuests: 2},
		{ID: "fam", HotelID: "seaside", Name: "Family", PricePerNight: 150, Currency: "USD", MaxGuests: 5},
	}

	//nolint:exhaustruct
	codes := []*promo.Code{
		{Code: "SAVE50", Kind: promo.Fixed, Value: 50, IsValid: true},
		{Code: "PCT10", Kind: promo.Percentage, Value: 10, IsValid: true},
		{Code: "MIN250", Kind: promo.Fixed, Value: 20, MinAmount: ptr(250.0), IsValid: true},
		{Code: "LASTHOUR", Kind: promo.Fixed, Value: 50, ValidUntil: ptr(now.Add(time.Hour)), IsValid: true},
	}

	if err := db.SaveRooms(ctx, rooms); err != nil {
		t.Fatal(err)
	}

	if err := db.SavePromos(ctx, codes); err != nil {
		t.Fatal(err)
	}

	if err := db.SaveBlackouts(ctx, "seaside", []time.Time{date(3, 20)}); err != nil {
		t.Fatal(err)
	}

	if err := db.CommitTransaction(ctx); err != nil {
		t.Fatal(err)
	}

	c := &clock{at: now} //nolint:exhaustruct
	hold := map[string]chan struct{}{}
	engine := promo.NewEngine(l, &slowCatalog{Catalog: db, hold: hold}, c.now)
	w := wizard.New(wizard.DefaultConfig(), pricing.New(pricing.DefaultRates()), c.now)
	gateway := &countingGateway{next: payment.NewSimulated(payment.SimulatedConfig{Limit: limit})} //nolint:exhaustruct
	store := &flakyStore{DB: db, failSaves: 0}
	ids := &flakyIDs{next: simple.New("SB"), failures: 0}

	m := booking.New(l, booking.Config{PromoLookupTimeout: time.Second}, store, ids, w, engine, gateway)

	return &fixture{manager: m, db: db, store: store, ids: ids, clock: c, gateway: gateway, hold: hold}
}

func ptr[T any](v T) *T {
	return &v
}

func must(t *testing.T) func(*booking.Session, error) *booking.Session {
	t.Helper()

	return func(s *booking.Session, err error) *booking.Session {
		t.Helper()

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		return s
	}
}

func mustPay(t *testing.T) func(*booking.Reservation, error) *booking.Reservation {
	t.Helper()

	return func(r *booking.Reservation, err error) *booking.Reservation {
		t.Helper()

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		return r
	}
}

// toPromotion books std for three nights for one adult.
func (f *fixture) toPromotion(t *testing.T) string {
	t.Helper()

	ctx := context.Background()
	s := must(t)(f.manager.Start(ctx, "std"))

	for _, cmd := range []wizard.Command{
		wizard.SelectDate{Date: date(3, 12), Role: stay.CheckIn},
		wizard.SelectDate{Date: date(3, 15), Role: stay.CheckOut},
		wizard.Next{},
		wizard.AdjustGuests{Category: guests.Adults, Delta: -1},
		wizard.Next{},
	} {
		must(t)(f.manager.Dispatch(ctx, s.ID, cmd))
	}

	return s.ID
}

func TestPromoResolvesInBackground(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	id := f.toPromotion(t)

	s := must(t)(f.manager.RequestPromo(ctx, id, "save50"))
	if s.State.Promo.Status != wizard.PromoPending {
		t.Fatalf("status = %s, want pending", s.State.Promo.Status)
	}

	f.manager.WaitLookups()

	s = must(t)(f.manager.Get(ctx, id))
	if s.State.Promo.Status != wizard.PromoApplied || pricing.Round2(s.State.Price.Total) != 295 {
		t.Errorf("promo = %+v total = %v, want applied and 295", s.State.Promo, s.State.Price.Total)
	}
}

func TestUnknownPromoIsRejectedNotFailed(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	id := f.toPromotion(t)

	must(t)(f.manager.RequestPromo(ctx, id, "BOGUS"))
	f.manager.WaitLookups()

	s := must(t)(f.manager.Get(ctx, id))
	if s.State.Promo.Status != wizard.PromoRejected || s.State.Promo.Reason != promo.ReasonNotFound {
		t.Errorf("promo = %+v, want rejected not_found", s.State.Promo)
	}

	if pricing.Round2(s.State.Price.Total) != 345 {
		t.Errorf("total = %v, want 345", s.State.Price.Total)
	}

	s = must(t)(f.manager.Dispatch(ctx, id, wizard.Next{}))
	if s.State.Step != wizard.StepPayment {
		t.Errorf("step = %s, want payment", s.State.Step)
	}
}

func TestLaterPromoRequestWins(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	id := f.toPromotion(t)

	release := make(chan struct{})
	f.hold["SAVE50"] = release

	must(t)(f.manager.RequestPromo(ctx, id, "SAVE50"))
	must(t)(f.manager.RequestPromo(ctx, id, "PCT10"))
	close(release)
	f.manager.WaitLookups()

	s := must(t)(f.manager.Get(ctx, id))
	if s.State.Promo.Status != wizard.PromoApplied || s.State.Promo.Input != "PCT10" {
		t.Fatalf("promo = %+v, want PCT10 applied", s.State.Promo)
	}

	if pricing.Round2(s.State.Promo.Discount) != 30 {
		t.Errorf("discount = %v, want 30", s.State.Promo.Discount)
	}
}

func TestSkipAbandonsPendingLookup(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	id := f.toPromotion(t)

	release := make(chan struct{})
	f.hold["SAVE50"] = release

	must(t)(f.manager.RequestPromo(ctx, id, "SAVE50"))

	if _, err := f.manager.Dispatch(ctx, id, wizard.Next{}); wizard.IsTransitionError(err) == nil {
		t.Fatalf("Next while pending err = %v, want transition error", err)
	}

	s := must(t)(f.manager.Dispatch(ctx, id, wizard.Skip{}))
	close(release)
	f.manager.WaitLookups()

	s = must(t)(f.manager.Get(ctx, s.ID))
	if s.State.Step != wizard.StepPayment || s.State.Promo.Status != wizard.PromoNone {
		t.Errorf("step = %s promo = %s, want payment and none", s.State.Step, s.State.Promo.Status)
	}
}

func (f *fixture) toPayment(t *testing.T) string {
	t.Helper()

	id := f.toPromotion(t)
	must(t)(f.manager.Dispatch(context.Background(), id, wizard.Skip{}))

	return id
}

func TestPayIsIdempotent(t *testing.T) {
	f := newFixture(t, 0)
	id := f.toPayment(t)

	//nolint:exhaustruct
	if _, err := f.manager.Pay(context.Background(), booking.PayInput{SessionID: id}); !errors.Is(err, booking.ErrIdempotencyKey) {
		t.Fatalf("err = %v, want ErrIdempotencyKey", err)
	}

	ctx := booking.NewContextWithIdempotencyKey(context.Background(), "pay-1")
	input := booking.PayInput{SessionID: id, Email: "guest@example.com"}

	first := mustPay(t)(f.manager.Pay(ctx, input))
	if first.ConfirmationNumber != "SB-000001" || first.Receipt.Amount != 345 {
		t.Errorf("reservation = %+v", first)
	}

	if !first.State.Confirmed() {
		t.Errorf("state step = %s, want confirmation", first.State.Step)
	}

	second := mustPay(t)(f.manager.Pay(ctx, input))
	if second.ConfirmationNumber != first.ConfirmationNumber || f.gateway.calls != 1 {
		t.Errorf("retry gave %s with %d charges", second.ConfirmationNumber, f.gateway.calls)
	}

	other := f.toPayment(t)
	if _, err := f.manager.Pay(ctx, booking.PayInput{SessionID: other, Email: ""}); !errors.Is(err, booking.ErrKeyReusedElsewhere) {
		t.Errorf("err = %v, want ErrKeyReusedElsewhere", err)
	}

	s := must(t)(f.manager.Get(context.Background(), id))
	if _, err := f.manager.Dispatch(context.Background(), s.ID, wizard.Back{}); !errors.Is(err, wizard.ErrConfirmed) {
		t.Errorf("err = %v, want ErrConfirmed", err)
	}
}

func TestPayBeforePaymentStepDoesNotCharge(t *testing.T) {
	f := newFixture(t, 0)
	id := f.toPromotion(t)
	ctx := booking.NewContextWithIdempotencyKey(context.Background(), "pay-early")

	//nolint:exhaustruct
	if _, err := f.manager.Pay(ctx, booking.PayInput{SessionID: id}); wizard.IsInputError(err) == nil {
		t.Fatalf("err = %v, want input error", err)
	}

	if f.gateway.calls != 0 {
		t.Errorf("gateway charged %d times", f.gateway.calls)
	}
}

func TestDeclinedPaymentKeepsSessionOpen(t *testing.T) {
	f := newFixture(t, 100)
	id := f.toPayment(t)
	ctx := booking.NewContextWithIdempotencyKey(context.Background(), "pay-2")

	//nolint:exhaustruct
	_, err := f.manager.Pay(ctx, booking.PayInput{SessionID: id})
	if !errors.Is(err, booking.ErrPaymentFailed) || !errors.Is(err, payment.ErrDeclined) {
		t.Fatalf("err = %v, want declined payment", err)
	}

	s := must(t)(f.manager.Get(context.Background(), id))
	if s.State.Step != wizard.StepPayment || s.State.Payment != nil {
		t.Errorf("state = %s payment %+v, want open payment step", s.State.Step, s.State.Payment)
	}
}

func TestSelectRoomAndDiscard(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	s := must(t)(f.manager.Start(ctx, "std"))

	s = must(t)(f.manager.SelectRoom(ctx, s.ID, "fam"))
	if s.State.Room.ID != "fam" {
		t.Errorf("room = %s, want fam", s.State.Room.ID)
	}

	if _, err := f.manager.SelectRoom(ctx, s.ID, "nope"); !errors.Is(err, catalog.ErrRoomNotFound) {
		t.Errorf("err = %v, want ErrRoomNotFound", err)
	}

	if _, err := f.manager.Dispatch(ctx, s.ID, wizard.SelectDate{Date: date(3, 20), Role: stay.CheckIn}); wizard.IsInputError(err) == nil {
		t.Errorf("blackout check-in err = %v, want input error", err)
	}

	if err := f.manager.Discard(ctx, s.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := f.manager.Get(ctx, s.ID); !errors.Is(err, booking.ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}

	if _, err := f.manager.Start(ctx, "nope"); !errors.Is(err, catalog.ErrRoomNotFound) {
		t.Errorf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestPromoComesBackWhenSubtotalRecovers(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	id := f.toPromotion(t)

	must(t)(f.manager.RequestPromo(ctx, id, "min250"))
	f.manager.WaitLookups()

	s := must(t)(f.manager.Get(ctx, id))
	if s.State.Promo.Status != wizard.PromoApplied || pricing.Round2(s.State.Price.Discount) != 20 {
		t.Fatalf("3 nights: promo = %+v", s.State.Promo)
	}

	for _, cmd := range []wizard.Command{
		wizard.Back{},
		wizard.Back{},
		wizard.SelectDate{Date: date(3, 12), Role: stay.CheckIn},
		wizard.SelectDate{Date: date(3, 14), Role: stay.CheckOut},
	} {
		s = must(t)(f.manager.Dispatch(ctx, id, cmd))
	}

	if s.State.Promo.Status != wizard.PromoRejected || s.State.Promo.Reason != promo.ReasonBelowMinimum || s.State.Price.Discount != 0 {
		t.Fatalf("2 nights: promo = %+v discount %v", s.State.Promo, s.State.Price.Discount)
	}

	for _, cmd := range []wizard.Command{
		wizard.SelectDate{Date: date(3, 12), Role: stay.CheckIn},
		wizard.SelectDate{Date: date(3, 15), Role: stay.CheckOut},
		wizard.Next{},
		wizard.Next{},
		wizard.Next{},
	} {
		s = must(t)(f.manager.Dispatch(ctx, id, cmd))
	}

	if s.State.Step != wizard.StepPayment || s.State.Promo.Status != wizard.PromoApplied {
		t.Fatalf("step = %s promo = %+v, want payment with the promo applied", s.State.Step, s.State.Promo)
	}

	payCtx := booking.NewContextWithIdempotencyKey(ctx, "pay-min")

	r := mustPay(t)(f.manager.Pay(payCtx, booking.PayInput{SessionID: id, Email: ""}))
	if r.Receipt.Amount != 325 {
		t.Errorf("charged %v, want 325", r.Receipt.Amount)
	}
}

func TestFailedSaveKeepsPaymentForRetry(t *testing.T) {
	f := newFixture(t, 0)
	id := f.toPayment(t)
	ctx := booking.NewContextWithIdempotencyKey(context.Background(), "pay-3")
	input := booking.PayInput{SessionID: id, Email: "guest@example.com"}

	f.store.failSaves = 1

	if _, err := f.manager.Pay(ctx, input); !errors.Is(err, errDiskFull) {
		t.Fatalf("err = %v, want the storage error", err)
	}

	s := must(t)(f.manager.Get(context.Background(), id))
	if s.State.Step != wizard.StepPayment || s.State.Payment != nil || f.gateway.calls != 1 {
		t.Fatalf("after failed save: step = %s payment = %+v charges = %d", s.State.Step, s.State.Payment, f.gateway.calls)
	}

	if _, err := f.manager.Dispatch(context.Background(), id, wizard.Back{}); !errors.Is(err, booking.ErrPaymentUnsaved) {
		t.Errorf("Back with an unsaved payment err = %v, want ErrPaymentUnsaved", err)
	}

	r := mustPay(t)(f.manager.Pay(ctx, input))
	if !r.State.Confirmed() || r.Receipt.Amount != 345 || f.gateway.calls != 1 {
		t.Fatalf("retry: reservation = %+v, charges = %d", r, f.gateway.calls)
	}

	s = must(t)(f.manager.Get(context.Background(), id))
	if !s.State.Confirmed() || s.State.Payment == nil || s.State.Payment.Reference != r.Receipt.Reference {
		t.Errorf("session after retry = %+v", s.State)
	}

	again := mustPay(t)(f.manager.Pay(ctx, input))
	if again.ConfirmationNumber != r.ConfirmationNumber || f.gateway.calls != 1 {
		t.Errorf("second retry gave %s with %d charges", again.ConfirmationNumber, f.gateway.calls)
	}
}

func TestFailedConfirmationNumberDoesNotCharge(t *testing.T) {
	f := newFixture(t, 0)
	id := f.toPayment(t)
	ctx := booking.NewContextWithIdempotencyKey(context.Background(), "pay-4")
	input := booking.PayInput{SessionID: id, Email: ""}

	f.ids.failures = 1

	if _, err := f.manager.Pay(ctx, input); !errors.Is(err, booking.ErrNextID) {
		t.Fatalf("err = %v, want ErrNextID", err)
	}

	s := must(t)(f.manager.Get(context.Background(), id))
	if s.State.Step != wizard.StepPayment || f.gateway.calls != 0 {
		t.Fatalf("step = %s charges = %d, want payment and none", s.State.Step, f.gateway.calls)
	}

	if r := mustPay(t)(f.manager.Pay(ctx, input)); !r.State.Confirmed() || f.gateway.calls != 1 {
		t.Errorf("retry: reservation = %+v, charges = %d", r, f.gateway.calls)
	}
}

func TestPromoExpiringDuringChargeKeepsAmount(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	id := f.toPromotion(t)

	must(t)(f.manager.RequestPromo(ctx, id, "LASTHOUR"))
	f.manager.WaitLookups()

	s := must(t)(f.manager.Dispatch(ctx, id, wizard.Next{}))
	if s.State.Step != wizard.StepPayment || pricing.Round2(s.State.Price.Total) != 295 {
		t.Fatalf("step = %s total = %v, want payment and 295", s.State.Step, s.State.Price.Total)
	}

	f.gateway.onCharge = func() { f.clock.set(now.Add(2 * time.Hour)) }

	payCtx := booking.NewContextWithIdempotencyKey(ctx, "pay-5")

	r := mustPay(t)(f.manager.Pay(payCtx, booking.PayInput{SessionID: id, Email: ""}))
	if r.Receipt.Amount != 295 || pricing.Round2(r.State.Price.Total) != 295 || r.State.Promo.Status != wizard.PromoApplied {
		t.Errorf("reservation paid %v with total %v and promo %s", r.Receipt.Amount, r.State.Price.Total, r.State.Promo.Status)
	}
}
