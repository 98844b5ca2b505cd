package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avstrong/staybook/internal/booking"
	"github.com/avstrong/staybook/internal/catalog"
	"github.com/avstrong/staybook/internal/logger"
	"github.com/avstrong/staybook/internal/promo"
	"github.com/avstrong/staybook/internal/stay"
)

var (
	ErrTransactionNotFoundInCtx = errors.New("postgres storage: no transaction in context")
	ErrUnknownIsolationLevel    = errors.New("postgres storage: unknown isolation level")
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type trxKey struct{}

type Config struct {
	L    *logger.Logger
	Pool *pgxpool.Pool
}

type DB struct {
	l    *logger.Logger
	pool *pgxpool.Pool
}

func New(conf Config) *DB {
	return &DB{l: conf.L, pool: conf.Pool}
}

func isoLevel(level string) (pgx.TxIsoLevel, error) {
	switch l := pgx.TxIsoLevel(strings.ToLower(level)); l {
	case "":
		return pgx.ReadCommitted, nil
	case pgx.Serializable, pgx.RepeatableRead, pgx.ReadCommitted, pgx.ReadUncommitted:
		return l, nil
	default:
		return "", fmt.Errorf("%q: %w", level, ErrUnknownIsolationLevel)
	}
}

// BeginTransaction opens a transaction with the SQL isolation level named by level; an empty
// level means READ COMMITTED.
func (db *DB) BeginTransaction(ctx context.Context, level string) (context.Context, error) {
	iso, err := isoLevel(level)
	if err != nil {
		return ctx, err
	}

	//nolint:exhaustruct
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return ctx, fmt.Errorf("begin: %w", err)
	}

	return context.WithValue(ctx, trxKey{}, tx), nil
}

func txFromContext(ctx context.Context) (pgx.Tx, error) {
	tx, ok := ctx.Value(trxKey{}).(pgx.Tx)
	if !ok {
		return nil, ErrTransactionNotFoundInCtx
	}

	return tx, nil
}

func (db *DB) CommitTransaction(ctx context.Context) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (db *DB) RollbackTransaction(ctx context.Context) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback: %w", err)
	}

	return nil
}

// q runs reads inside the transaction of ctx when there is one.
func (db *DB) q(ctx context.Context) querier {
	if tx, err := txFromContext(ctx); err == nil {
		return tx
	}

	return db.pool
}

const roomColumns = `id, hotel_id, name, price_per_night, currency, max_guests, max_adults, max_children`

func scanRoom(row pgx.Row) (*catalog.Room, error) {
	var r catalog.Room

	err := row.Scan(&r.ID, &r.HotelID, &r.Name, &r.PricePerNight, &r.Currency, &r.MaxGuests, &r.MaxAdults, &r.MaxChildren)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	return &r, nil
}

func (db *DB) GetRoom(ctx context.Context, id string) (*catalog.Room, error) {
	room, err := scanRoom(db.q(ctx).QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, catalog.ErrRoomNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}

	return room, nil
}

func (db *DB) ListRooms(ctx context.Context) ([]*catalog.Room, error) {
	rows, err := db.q(ctx).Query(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*catalog.Room

	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}

		rooms = append(rooms, room)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	return rooms, nil
}

func (db *DB) GetBlackouts(ctx context.Context, hotelID string) ([]time.Time, error) {
	rows, err := db.q(ctx).Query(ctx, `SELECT day FROM blackout_days WHERE hotel_id = $1 ORDER BY day`, hotelID)
	if err != nil {
		return nil, fmt.Errorf("get blackouts: %w", err)
	}

	days, err := pgx.CollectRows(rows, pgx.RowTo[time.Time])
	if err != nil {
		return nil, fmt.Errorf("scan blackouts: %w", err)
	}

	return days, nil
}

func (db *DB) LookupPromo(ctx context.Context, code string) (*promo.Code, error) {
	var r promo.Record

	err := db.q(ctx).QueryRow(ctx,
		`SELECT code, kind, value, min_amount, max_discount, valid_until, is_valid
		 FROM promo_codes WHERE code = $1`,
		promo.Normalize(code),
	).Scan(&r.Code, &r.Type, &r.Value, &r.MinAmount, &r.MaxDiscount, &r.ValidUntil, &r.IsValid)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, promo.ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("lookup promo: %w", err)
	}

	c, err := r.ToCode()
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (db *DB) SaveRooms(ctx context.Context, rooms []*catalog.Room) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}

	for _, r := range rooms {
		batch.Queue(
			`INSERT INTO rooms (`+roomColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET hotel_id = EXCLUDED.hotel_id, name = EXCLUDED.name,
			 price_per_night = EXCLUDED.price_per_night, currency = EXCLUDED.currency,
			 max_guests = EXCLUDED.max_guests, max_adults = EXCLUDED.max_adults, max_children = EXCLUDED.max_children`,
			r.ID, r.HotelID, r.Name, r.PricePerNight, r.Currency, r.MaxGuests, r.MaxAdults, r.MaxChildren,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save rooms: %w", err)
	}

	return nil
}

func (db *DB) SavePromos(ctx context.Context, codes []*promo.Code) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}

	for _, c := range codes {
		r := c.Record()
		batch.Queue(
			`INSERT INTO promo_codes (code, kind, value, min_amount, max_discount, valid_until, is_valid)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (code) DO UPDATE SET kind = EXCLUDED.kind, value = EXCLUDED.value,
			 min_amount = EXCLUDED.min_amount, max_discount = EXCLUDED.max_discount,
			 valid_until = EXCLUDED.valid_until, is_valid = EXCLUDED.is_valid`,
			promo.Normalize(r.Code), r.Type, r.Value, r.MinAmount, r.MaxDiscount, r.ValidUntil, r.IsValid,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save promos: %w", err)
	}

	return nil
}

// SaveBlackouts replaces the blackout calendar of hotelID.
func (db *DB) SaveBlackouts(ctx context.Context, hotelID string, days []time.Time) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM blackout_days WHERE hotel_id = $1`, hotelID); err != nil {
		return fmt.Errorf("clear blackouts: %w", err)
	}

	rows := make([][]any, 0, len(days))
	for _, d := range days {
		rows = append(rows, []any{hotelID, stay.Day(d)})
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"blackout_days"}, []string{"hotel_id", "day"}, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("save blackouts: %w", err)
	}

	return nil
}

func (db *DB) SaveReservation(ctx context.Context, reservation *booking.Reservation) error {
	tx, err := txFromContext(ctx)
	if err != nil {
		return err
	}

	key, ok := booking.IdempotencyKeyFromContext(ctx)
	if !ok {
		return booking.ErrIdempotencyKey
	}

	state, err := json.Marshal(reservation.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	receipt, err := json.Marshal(reservation.Receipt)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO reservations (confirmation_number, session_id, idempotency_key, state, receipt, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		reservation.ConfirmationNumber, reservation.SessionID, key, state, receipt, reservation.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reservation: %w", err)
	}

	return nil
}

func (db *DB) GetReservationByIdempotencyKey(ctx context.Context) (*booking.Reservation, error) {
	key, ok := booking.IdempotencyKeyFromContext(ctx)
	if !ok {
		return nil, booking.ErrIdempotencyKey
	}

	var (
		r              booking.Reservation
		state, receipt []byte
	)

	err := db.q(ctx).QueryRow(ctx,
		`SELECT confirmation_number, session_id, state, receipt, created_at
		 FROM reservations WHERE idempotency_key = $1`,
		key,
	).Scan(&r.ConfirmationNumber, &r.SessionID, &state, &receipt, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, booking.ErrRecordNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}

	if err := json.Unmarshal(state, &r.State); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}

	if err := json.Unmarshal(receipt, &r.Receipt); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}

	return &r, nil
}
