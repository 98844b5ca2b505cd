// Package memory keeps the catalog and confirmed reservations in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/avstrong/staybook/internal/booking"
	"github.com/avstrong/staybook/internal/catalog"
	"github.com/avstrong/staybook/internal/logger"
	"github.com/avstrong/staybook/internal/promo"
	"github.com/avstrong/staybook/internal/stay"
)

type Config struct {
	L *logger.Logger
}

type transaction struct {
	id                       string
	roomModifications        map[string]*catalog.Room
	promoModifications       map[string]*promo.Code
	blackoutModifications    map[string][]time.Time
	reservationModifications map[string]*booking.Reservation
	rollbackActions          []func()
}

type DB struct {
	mu                         sync.Mutex
	l                          *logger.Logger
	rooms                      map[string]*catalog.Room
	promos                     map[string]*promo.Code
	blackouts                  map[string][]time.Time
	reservations               map[string]*booking.Reservation
	transactions               map[string]*transaction
	nextTrxID                  int64
	reservationIdempotencyKeys map[string]*booking.Reservation
}

func New(conf Config) *DB {
	//nolint:exhaustruct
	return &DB{
		l:                          conf.L,
		rooms:                      make(map[string]*catalog.Room),
		promos:                     make(map[string]*promo.Code),
		blackouts:                  make(map[string][]time.Time),
		reservations:               make(map[string]*booking.Reservation),
		transactions:               make(map[string]*transaction),
		reservationIdempotencyKeys: make(map[string]*booking.Reservation),
	}
}

func (db *DB) BeginTransaction(ctx context.Context, _ string) (context.Context, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	trxID := fmt.Sprintf("trx-%d", db.nextTrxID)
	db.nextTrxID++

	db.transactions[trxID] = &transaction{
		id:                       trxID,
		roomModifications:        make(map[string]*catalog.Room),
		promoModifications:       make(map[string]*promo.Code),
		blackoutModifications:    make(map[string][]time.Time),
		reservationModifications: make(map[string]*booking.Reservation),
		rollbackActions:          []func(){},
	}

	return withTransactionID(ctx, trxID), nil
}

// transaction must be called with db.mu held.
func (db *DB) transaction(ctx context.Context) (*transaction, error) {
	trxID, ok := transactionIDFromContext(ctx)
	if !ok || trxID == "" {
		return nil, ErrTransactionIDNotFoundInCtx
	}

	trx, exists := db.transactions[trxID]
	if !exists {
		return nil, fmt.Errorf("transaction %s not found: %w", trxID, ErrTransactionNotFound)
	}

	return trx, nil
}

func (db *DB) CommitTransaction(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	if len(trx.reservationModifications) > 0 {
		idempotencyKey, ok := booking.IdempotencyKeyFromContext(ctx)
		if !ok {
			return booking.ErrIdempotencyKey
		}

		for _, reservation := range trx.reservationModifications {
			db.reservations[reservation.ConfirmationNumber] = reservation
			db.reservationIdempotencyKeys[idempotencyKey] = reservation
		}
	}

	for id, room := range trx.roomModifications {
		db.rooms[id] = room
	}

	for code, c := range trx.promoModifications {
		db.promos[code] = c
	}

	for hotelID, days := range trx.blackoutModifications {
		db.blackouts[hotelID] = days
	}

	delete(db.transactions, trx.id)

	return nil
}

func (db *DB) RollbackTransaction(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	for _, action := range trx.rollbackActions {
		action()
	}

	delete(db.transactions, trx.id)

	return nil
}

func (db *DB) SaveRooms(ctx context.Context, rooms []*catalog.Room) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	for _, room := range rooms {
		if _, ok := trx.roomModifications[room.ID]; ok {
			continue
		}

		trx.roomModifications[room.ID] = room

		id := room.ID

		original, exists := db.rooms[id]
		if exists {
			trx.rollbackActions = append(trx.rollbackActions, func() {
				db.rooms[id] = original
			})

			continue
		}

		trx.rollbackActions = append(trx.rollbackActions, func() {
			delete(db.rooms, id)
		})
	}

	return nil
}

// SavePromos stores codes under their normalized form.
func (db *DB) SavePromos(ctx context.Context, codes []*promo.Code) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	for _, c := range codes {
		key := promo.Normalize(c.Code)
		if _, ok := trx.promoModifications[key]; ok {
			continue
		}

		trx.promoModifications[key] = c

		original, exists := db.promos[key]
		if exists {
			trx.rollbackActions = append(trx.rollbackActions, func() {
				db.promos[key] = original
			})

			continue
		}

		trx.rollbackActions = append(trx.rollbackActions, func() {
			delete(db.promos, key)
		})
	}

	return nil
}

func (db *DB) SaveBlackouts(ctx context.Context, hotelID string, days []time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	normalized := make([]time.Time, 0, len(days))
	for _, d := range days {
		normalized = append(normalized, stay.Day(d))
	}

	trx.blackoutModifications[hotelID] = normalized

	original, exists := db.blackouts[hotelID]
	if exists {
		trx.rollbackActions = append(trx.rollbackActions, func() {
			db.blackouts[hotelID] = original
		})

		return nil
	}

	trx.rollbackActions = append(trx.rollbackActions, func() {
		delete(db.blackouts, hotelID)
	})

	return nil
}

func (db *DB) SaveReservation(ctx context.Context, reservation *booking.Reservation) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	trx, err := db.transaction(ctx)
	if err != nil {
		return err
	}

	if _, ok := trx.reservationModifications[reservation.ConfirmationNumber]; ok {
		return nil
	}

	trx.reservationModifications[reservation.ConfirmationNumber] = reservation
	trx.rollbackActions = append(trx.rollbackActions, func() {
		delete(db.reservations, reservation.ConfirmationNumber)
	})

	return nil
}

func (db *DB) GetRoom(_ context.Context, id string) (*catalog.Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	room, ok := db.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, catalog.ErrRoomNotFound)
	}

	cp := *room

	return &cp, nil
}

func (db *DB) ListRooms(_ context.Context) ([]*catalog.Room, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rooms := make([]*catalog.Room, 0, len(db.rooms))

	for _, room := range db.rooms {
		cp := *room
		rooms = append(rooms, &cp)
	}

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })

	return rooms, nil
}

func (db *DB) GetBlackouts(_ context.Context, hotelID string) ([]time.Time, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	days := db.blackouts[hotelID]

	return append([]time.Time(nil), days...), nil
}

func (db *DB) LookupPromo(_ context.Context, code string) (*promo.Code, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.promos[promo.Normalize(code)]
	if !ok {
		return nil, promo.ErrNotFound
	}

	cp := *c

	return &cp, nil
}

func (db *DB) GetReservationByIdempotencyKey(ctx context.Context) (*booking.Reservation, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	key, ok := booking.IdempotencyKeyFromContext(ctx)
	if !ok {
		return nil, booking.ErrIdempotencyKey
	}

	reservation, exists := db.reservationIdempotencyKeys[key]
	if exists {
		return reservation, nil
	}

	return nil, booking.ErrRecordNotFound
}
