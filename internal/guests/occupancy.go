package guests

import (
	"fmt"

	"github.com/avstrong/staybook/internal/catalog"
)

// Occupancy is the adult/child pair of one room in a multi-room selection.
type Occupancy struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
}

// Party is the per-room breakdown used by the room picker; each entry is bounded on its own.
type Party []Occupancy

// Resize adds single-adult rooms or drops trailing rooms until the party has n entries.
func (p Party) Resize(n int) Party {
	out := make(Party, 0, n)

	for i := 0; i < n; i++ {
		if i < len(p) {
			out = append(out, p[i])

			continue
		}

		out = append(out, Occupancy{Adults: 1, Children: 0})
	}

	return out
}

func roomBounds(ceiling int, base Bounds) Bounds {
	if ceiling > 0 && ceiling < base.Max {
		base.Max = ceiling
	}

	return base
}

// Adjust moves adults or children of room index by delta. Like Config.Adjust, an out-of-bound move
// returns the party unchanged. Entries are bounded by the room's MaxAdults and MaxChildren.
func (p Party) Adjust(index int, cat Category, delta int, room catalog.Room, l Limits) (_ Party, applied bool) {
	if index < 0 || index >= len(p) || (delta != 1 && delta != -1) {
		return p, false
	}

	entry := p[index]

	var (
		b   Bounds
		cur *int
	)

	switch cat {
	case Adults:
		b, cur = roomBounds(room.MaxAdults, l.Adults), &entry.Adults
	case Children:
		b, cur = roomBounds(room.MaxChildren, l.Children), &entry.Children
	default:
		return p, false
	}

	if !b.contains(*cur + delta) {
		return p, false
	}

	*cur += delta

	out := append(Party(nil), p...)
	out[index] = entry

	return out, true
}

// Config sums the party into the aggregate configuration.
func (p Party) Config() Config {
	c := Config{Adults: 0, Children: 0, Rooms: len(p)}

	for _, o := range p {
		c.Adults += o.Adults
		c.Children += o.Children
	}

	return c
}

// CheckPartyCapacity checks every room on its own and then the aggregate.
func CheckPartyCapacity(p Party, room catalog.Room) error {
	for i, o := range p {
		if o.Adults+o.Children > room.MaxGuests {
			return fmt.Errorf("room %d holds %d guests, up to %d allowed: %w", i+1, o.Adults+o.Children, room.MaxGuests, ErrCapacityExceeded)
		}
	}

	return CheckCapacity(p.Config(), room)
}

// Split spreads an aggregate configuration over its rooms, handing out remainders to the first
// rooms.
func Split(c Config) Party {
	if c.Rooms < 1 {
		return Party{}
	}

	p := make(Party, c.Rooms)

	for i := range p {
		p[i].Adults = c.Adults / c.Rooms
		p[i].Children = c.Children / c.Rooms

		if i < c.Adults%c.Rooms {
			p[i].Adults++
		}

		if i < c.Children%c.Rooms {
			p[i].Children++
		}
	}

	return p
}
