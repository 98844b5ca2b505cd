// Package migration seeds a storage with the demo catalog: rooms, promo codes and blackout days.
package migration

import (
	"context"
	"fmt"
	"time"

	"github.com/avstrong/staybook/internal/catalog"
	"github.com/avstrong/staybook/internal/logger"
	"github.com/avstrong/staybook/internal/promo"
)

type storage interface {
	BeginTransaction(ctx context.Context, level string) (context.Context, error)
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error
	SaveRooms(ctx context.Context, rooms []*catalog.Room) error
	SavePromos(ctx context.Context, codes []*promo.Code) error
	SaveBlackouts(ctx context.Context, hotelID string, days []time.Time) error
}

const hotelID = "seaside"

func day(from time.Time, offset int) time.Time {
	return time.Date(from.Year(), from.Month(), from.Day()+offset, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}

// Rooms is the demo room list.
func Rooms() []*catalog.Room {
	//nolint:exhaustruct,gomnd
	return []*catalog.Room{
		{ID: "std", HotelID: hotelID, Name: "Standard Room", PricePerNight: 100, Currency: "USD", MaxGuests: 2},
		{ID: "dlx", HotelID: hotelID, Name: "Deluxe Room", PricePerNight: 180, Currency: "USD", MaxGuests: 3, MaxChildren: 1},
		{
			ID: "fam", HotelID: hotelID, Name: "Family Suite", PricePerNight: 250, Currency: "USD",
			MaxGuests: 6, MaxAdults: 4, MaxChildren: 4,
		},
	}
}

// Promos is the demo code list. Expiry dates are relative to now so that the set stays meaningful.
func Promos(now time.Time) []*promo.Code {
	//nolint:exhaustruct,gomnd
	return []*promo.Code{
		{Code: "SAVE50", Kind: promo.Fixed, Value: 50, IsValid: true},
		{Code: "PCT15", Kind: promo.Percentage, Value: 15, MaxDiscount: ptr(40.0), IsValid: true},
		{Code: "STAY3", Kind: promo.FreeNight, Value: 1, MinAmount: ptr(300.0), IsValid: true},
		{Code: "SPRING", Kind: promo.Percentage, Value: 20, ValidUntil: ptr(day(now, -1)), IsValid: true},
		{Code: "RETIRED", Kind: promo.Fixed, Value: 25, IsValid: false},
	}
}

// Blackouts marks every fourteenth day of the coming quarter as closed.
func Blackouts(now time.Time) []time.Time {
	var days []time.Time

	for offset := 14; offset <= 90; offset += 14 { //nolint:gomnd
		days = append(days, day(now, offset))
	}

	return days
}

func Up(ctx context.Context, l *logger.Logger, storage storage, now time.Time) (err error) {
	ctx, err = storage.BeginTransaction(ctx, "")
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := storage.RollbackTransaction(ctx); rbErr != nil {
				l.LogErrorf("Could not rollback migration transaction after panic %v", p)
			}

			l.LogInfo("Migration transaction has been roll backed after panic")

			panic(p)
		}

		if err != nil {
			if rbErr := storage.RollbackTransaction(ctx); rbErr != nil {
				l.LogErrorf("Could not rollback migration transaction after error %v", rbErr.Error())
			}

			l.LogInfo("Migration transaction has been roll backed after error")

			return
		}

		if err = storage.CommitTransaction(ctx); err != nil {
			l.LogErrorf("Could not commit migration transaction, err %v", err.Error())

			return
		}

		l.LogInfo("Migration transaction has been committed")
	}()

	if err = storage.SaveRooms(ctx, Rooms()); err != nil {
		return fmt.Errorf("save rooms to storage: %w", err)
	}

	if err = storage.SavePromos(ctx, Promos(now)); err != nil {
		return fmt.Errorf("save promos to storage: %w", err)
	}

	if err = storage.SaveBlackouts(ctx, hotelID, Blackouts(now)); err != nil {
		return fmt.Errorf("save blackouts to storage: %w", err)
	}

	return nil
}
