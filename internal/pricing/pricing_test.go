package pricing

import (
	"errors"
	"math"
	"strings"
	"testing"

	"golang.org/x/text/language"

	"github.com/avstrong/staybook/internal/catalog"
)

var standard = catalog.Room{ID: "std", Name: "Standard", PricePerNight: 100, Currency: "USD", MaxGuests: 2} //nolint:exhaustruct

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCompute(t *testing.T) {
	calc := New(DefaultRates())

	tests := []struct {
		name string
		in   Input
		want Breakdown
	}{
		{
			name: "three nights no promo",
			in:   Input{Room: standard, Nights: 3, Rooms: 1},
			want: Breakdown{Currency: "USD", Subtotal: 300, Taxes: 30, ServiceFee: 15, Total: 345},
		},
		{
			name: "fixed discount of 50",
			in:   Input{Room: standard, Nights: 3, Rooms: 1, Discount: 50},
			want: Breakdown{Currency: "USD", Subtotal: 300, Taxes: 30, ServiceFee: 15, Discount: 50, Total: 295},
		},
		{
			name: "capped percentage discount of 40",
			in:   Input{Room: standard, Nights: 3, Rooms: 1, Discount: 40},
			want: Breakdown{Currency: "USD", Subtotal: 300, Taxes: 30, ServiceFee: 15, Discount: 40, Total: 305},
		},
		{
			name: "rooms multiply the subtotal and add-ons are added",
			in:   Input{Room: standard, Nights: 2, Rooms: 2, AddOnFees: 25},
			want: Breakdown{Currency: "USD", Subtotal: 400, Taxes: 40, ServiceFee: 20, AddOnFees: 25, Total: 485},
		},
		{
			name: "discount bounded by subtotal",
			in:   Input{Room: standard, Nights: 1, Rooms: 1, Discount: 1000},
			want: Breakdown{Currency: "USD", Subtotal: 100, Taxes: 10, ServiceFee: 5, Discount: 100, Total: 15},
		},
		{
			name: "no nights yet",
			in:   Input{Room: standard, Nights: 0, Rooms: 1, AddOnFees: 25},
			want: Breakdown{Currency: "USD", AddOnFees: 25, Total: 25},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Compute(tt.in)
			if err != nil {
				t.Fatal(err)
			}

			if !equalBreakdown(got, tt.want) {
				t.Fatalf("Compute() = %+v, want %+v", got, tt.want)
			}

			again, _ := calc.Compute(tt.in)
			if again != got {
				t.Fatalf("Compute() not deterministic: %+v vs %+v", got, again)
			}

			if got.Total < 0 {
				t.Fatalf("negative total %v", got.Total)
			}

			sum := got.Subtotal + got.Taxes + got.ServiceFee + got.AddOnFees - got.Discount
			if !almostEqual(got.Total, math.Max(0, sum)) {
				t.Fatalf("total %v does not match components %v", got.Total, sum)
			}
		})
	}
}

func equalBreakdown(a, b Breakdown) bool {
	return a.Currency == b.Currency &&
		almostEqual(a.Subtotal, b.Subtotal) &&
		almostEqual(a.Taxes, b.Taxes) &&
		almostEqual(a.ServiceFee, b.ServiceFee) &&
		almostEqual(a.AddOnFees, b.AddOnFees) &&
		almostEqual(a.Discount, b.Discount) &&
		almostEqual(a.Total, b.Total)
}

func TestComputeRejectsImpossibleInput(t *testing.T) {
	calc := New(DefaultRates())

	for _, in := range []Input{
		{Room: standard, Nights: -1, Rooms: 1},
		{Room: standard, Nights: 1, Rooms: 0},
		{Room: standard, Nights: 1, Rooms: 1, Discount: -5},
		{Room: standard, Nights: 1, Rooms: 1, AddOnFees: -5},
	} {
		if _, err := calc.Compute(in); !errors.Is(err, ErrComputation) {
			t.Errorf("Compute(%+v) err = %v, want ErrComputation", in, err)
		}
	}
}

func TestRoundedKeepsPrecisionUntilPresentation(t *testing.T) {
	room := standard
	room.PricePerNight = 33.333

	b, err := New(DefaultRates()).Compute(Input{Room: room, Nights: 3, Rooms: 1})
	if err != nil {
		t.Fatal(err)
	}

	if almostEqual(b.Subtotal, 100) {
		t.Fatalf("subtotal rounded internally: %v", b.Subtotal)
	}

	r := b.Rounded()
	if r.Subtotal != 100 || r.Taxes != 10 || r.ServiceFee != 5 || r.Total != 115 {
		t.Fatalf("Rounded() = %+v", r)
	}
}

func TestFormat(t *testing.T) {
	s, err := Format(345, "USD", language.English)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasSuffix(s, "345.00") {
		t.Fatalf("Format() = %q", s)
	}

	if _, err := Format(1, "???", language.English); err == nil {
		t.Fatal("Format accepted an invalid currency")
	}

	d, err := Breakdown{Currency: "EUR", Total: 12.345}.Display(language.English)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasSuffix(d.Total, "12.35") && !strings.HasSuffix(d.Total, "12.34") {
		t.Fatalf("Display().Total = %q", d.Total)
	}
}
