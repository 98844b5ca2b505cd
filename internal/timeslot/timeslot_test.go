package timeslot

import (
	"errors"
	"testing"
)

func TestFeeFor(t *testing.T) {
	table := DefaultCheckIn()

	tests := []struct {
		in      string
		want    float64
		wantErr error
	}{
		{"14:00", 0, nil},
		{"12:00", 25, nil},
		{"10:00", 50, nil},
		{"13:00", 0, ErrUnknownSlot},
		{"9:00", 0, ErrMalformedTime},
		{"late", 0, ErrMalformedTime},
	}

	for _, tt := range tests {
		got, err := table.FeeFor(tt.in)
		if !errors.Is(err, tt.wantErr) || got != tt.want {
			t.Errorf("FeeFor(%q) = %v, %v; want %v, %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestAddOnFeesAreIndependentPerSide(t *testing.T) {
	p := DefaultPricing()

	tests := []struct {
		checkIn, checkOut string
		want              float64
	}{
		{"", "", 0},
		{"14:00", "12:00", 0},
		{"10:00", "", 50},
		{"", "16:00", 50},
		{"12:00", "14:00", 50},
		{"10:00", "16:00", 100},
	}

	for _, tt := range tests {
		got, err := p.AddOnFees(tt.checkIn, tt.checkOut)
		if err != nil || got != tt.want {
			t.Errorf("AddOnFees(%q, %q) = %v, %v; want %v", tt.checkIn, tt.checkOut, got, err, tt.want)
		}
	}

	if _, err := p.AddOnFees("16:00", ""); !errors.Is(err, ErrUnknownSlot) {
		t.Errorf("check-out slot accepted as check-in: %v", err)
	}
}

func TestStandard(t *testing.T) {
	s, ok := DefaultCheckOut().Standard()
	if !ok || s.Time != "12:00" {
		t.Fatalf("Standard() = %+v, %v", s, ok)
	}

	if _, ok := (Table{}).Standard(); ok {
		t.Fatal("empty table reported a standard slot")
	}
}
