// Package guests keeps adult, child and room counts inside their business bounds and checks them
// against a room's capacity.
package guests

import (
	"errors"
	"fmt"

	"github.com/avstrong/staybook/internal/catalog"
)

var (
	ErrUnknownCategory  = errors.New("unknown guest category")
	ErrCapacityExceeded = errors.New("room capacity exceeded")
	ErrOutOfBounds      = errors.New("guest count out of bounds")
)

type Category int

const (
	Adults Category = iota + 1
	Children
	Rooms
)

func (c Category) String() string {
	switch c {
	case Adults:
		return "adults"
	case Children:
		return "children"
	case Rooms:
		return "rooms"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

func ParseCategory(s string) (Category, error) {
	switch s {
	case "adults":
		return Adults, nil
	case "children":
		return Children, nil
	case "rooms":
		return Rooms, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrUnknownCategory)
	}
}

type Bounds struct {
	Min int
	Max int
}

func (b Bounds) contains(v int) bool {
	return v >= b.Min && v <= b.Max
}

type Limits struct {
	Adults   Bounds
	Children Bounds
	Rooms    Bounds
}

func DefaultLimits() Limits {
	return Limits{
		Adults:   Bounds{Min: 1, Max: 8}, //nolint:gomnd
		Children: Bounds{Min: 0, Max: 4}, //nolint:gomnd
		Rooms:    Bounds{Min: 1, Max: 5}, //nolint:gomnd
	}
}

func (l Limits) of(c Category) (Bounds, bool) {
	switch c {
	case Adults:
		return l.Adults, true
	case Children:
		return l.Children, true
	case Rooms:
		return l.Rooms, true
	default:
		return Bounds{}, false
	}
}

type Config struct {
	Adults   int `json:"adults"`
	Children int `json:"children"`
	Rooms    int `json:"rooms"`
}

func Default() Config {
	return Config{Adults: 2, Children: 0, Rooms: 1} //nolint:gomnd
}

func (c Config) Guests() int {
	return c.Adults + c.Children
}

func (c Config) get(cat Category) int {
	switch cat {
	case Adults:
		return c.Adults
	case Children:
		return c.Children
	case Rooms:
		return c.Rooms
	default:
		return 0
	}
}

func (c Config) set(cat Category, v int) Config {
	switch cat {
	case Adults:
		c.Adults = v
	case Children:
		c.Children = v
	case Rooms:
		c.Rooms = v
	}

	return c
}

// Adjust moves one category by delta (+1 or -1). A move that would leave the category's bounds, or
// any other delta, is a no-op: the unchanged configuration comes back with applied == false.
// Capacity against the selected room is not checked here.
func (c Config) Adjust(cat Category, delta int, l Limits) (_ Config, applied bool) {
	if delta != 1 && delta != -1 {
		return c, false
	}

	b, ok := l.of(cat)
	if !ok {
		return c, false
	}

	next := c.get(cat) + delta
	if !b.contains(next) {
		return c, false
	}

	return c.set(cat, next), true
}

// Validate reports every category that lies outside its bounds.
func (c Config) Validate(l Limits) map[string]string {
	problems := make(map[string]string)

	for _, cat := range []Category{Adults, Children, Rooms} {
		b, _ := l.of(cat)
		if v := c.get(cat); !b.contains(v) {
			problems[cat.String()] = fmt.Sprintf("%s must be between %d and %d", cat, b.Min, b.Max)
		}
	}

	return problems
}

// CheckCapacity enforces adults + children <= room.MaxGuests * rooms, and the optional per-room
// adult and child ceilings scaled by the room count.
func CheckCapacity(c Config, room catalog.Room) error {
	if c.Rooms < 1 {
		return fmt.Errorf("%d rooms: %w", c.Rooms, ErrOutOfBounds)
	}

	if capacity := room.MaxGuests * c.Rooms; c.Guests() > capacity {
		return fmt.Errorf(
			"%d guests do not fit in %d x %q (up to %d): %w",
			c.Guests(), c.Rooms, room.Name, capacity, ErrCapacityExceeded,
		)
	}

	if room.MaxAdults > 0 && c.Adults > room.MaxAdults*c.Rooms {
		return fmt.Errorf("%d adults exceed %d per room: %w", c.Adults, room.MaxAdults, ErrCapacityExceeded)
	}

	if room.MaxChildren > 0 && c.Children > room.MaxChildren*c.Rooms {
		return fmt.Errorf("%d children exceed %d per room: %w", c.Children, room.MaxChildren, ErrCapacityExceeded)
	}

	return nil
}
