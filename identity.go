package main

import (
	"errors"
	"fmt"
	"math/rand"
)

// NumSeats is the fixed player count and NumCenter the face-down card count.
// The starter pool is always NumSeats + NumCenter cards.
const (
	NumSeats  = 6
	NumCenter = 3
)

var (
	// ErrInvalidPool means the role pool handed to Deal is malformed.
	ErrInvalidPool = errors.New("invalid role pool")
	// ErrIllegalAction means a night action targeted a forbidden or
	// out-of-range seat/slot. State is never mutated on rejection.
	ErrIllegalAction = errors.New("illegal night action")
)

// Seat is a fixed player position, numbered 1 through NumSeats.
type Seat int

// Location addresses a card: either a seat or one of the center slots (1-3).
type Location struct {
	Center bool
	Seat   Seat // set when Center is false
	Slot   int  // 1..NumCenter, set when Center is true
}

func SeatLocation(s Seat) Location { return Location{Seat: s} }

func CenterLocation(slot int) Location { return Location{Center: true, Slot: slot} }

func (l Location) String() string {
	if l.Center {
		return fmt.Sprintf("center %d", l.Slot)
	}
	return fmt.Sprintf("seat %d", l.Seat)
}

// IdentityStore tracks two role mappings per seat: the card dealt at setup
// (never mutated) and the card currently in front of the seat (moved by
// swap actions), plus the three center cards. Swaps are true exchanges, so
// the multiset of current cards plus center cards always equals the dealt
// pool.
type IdentityStore struct {
	names    [NumSeats + 1]string // 1-based, index 0 unused
	original [NumSeats + 1]Role
	current  [NumSeats + 1]Role
	center   [NumCenter + 1]Role
	dealt    bool
}

// NewIdentityStore creates a store for the six named seats. Roles are unset
// until Deal is called.
func NewIdentityStore(names [NumSeats]string) *IdentityStore {
	s := &IdentityStore{}
	for i, name := range names {
		s.names[i+1] = name
	}
	return s
}

// Deal shuffles the pool with the given seed, assigns six cards to seats and
// three to the center, and sets current = original. The same seed and pool
// always produce the same assignment.
func (s *IdentityStore) Deal(pool []Role, seed int64) error {
	if len(pool) != NumSeats+NumCenter {
		return fmt.Errorf("%w: got %d cards, want %d", ErrInvalidPool, len(pool), NumSeats+NumCenter)
	}
	for _, r := range pool {
		if !r.Known() {
			return fmt.Errorf("%w: unknown role %q", ErrInvalidPool, r)
		}
	}

	shuffled := make([]Role, len(pool))
	copy(shuffled, pool)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	for seat := Seat(1); seat <= NumSeats; seat++ {
		s.original[seat] = shuffled[seat-1]
		s.current[seat] = shuffled[seat-1]
	}
	for slot := 1; slot <= NumCenter; slot++ {
		s.center[slot] = shuffled[NumSeats+slot-1]
	}
	s.dealt = true
	return nil
}

// Name returns the player name at a seat.
func (s *IdentityStore) Name(seat Seat) string {
	if !validSeat(seat) {
		return ""
	}
	return s.names[seat]
}

// OriginalRole returns the card dealt to a seat at setup.
func (s *IdentityStore) OriginalRole(seat Seat) Role {
	if !validSeat(seat) {
		return ""
	}
	return s.original[seat]
}

// CurrentRole returns the card currently in front of a seat.
func (s *IdentityStore) CurrentRole(seat Seat) Role {
	if !validSeat(seat) {
		return ""
	}
	return s.current[seat]
}

// CenterCard returns the card currently in a center slot (1-3).
func (s *IdentityStore) CenterCard(slot int) Role {
	if !validSlot(slot) {
		return ""
	}
	return s.center[slot]
}

// RoleAt returns the current card at a location.
func (s *IdentityStore) RoleAt(loc Location) Role {
	if loc.Center {
		return s.CenterCard(loc.Slot)
	}
	return s.CurrentRole(loc.Seat)
}

// SwapCurrent exchanges the current cards at two locations. This is the only
// mutation possible after the deal; it moves cards, never copies them.
func (s *IdentityStore) SwapCurrent(a, b Location) error {
	if err := s.checkLocation(a); err != nil {
		return err
	}
	if err := s.checkLocation(b); err != nil {
		return err
	}
	ra, rb := s.slot(a), s.slot(b)
	*ra, *rb = *rb, *ra
	return nil
}

// SeatsWithOriginalRole returns all seats that were dealt the given role,
// in seat order.
func (s *IdentityStore) SeatsWithOriginalRole(role Role) []Seat {
	var seats []Seat
	for seat := Seat(1); seat <= NumSeats; seat++ {
		if s.original[seat] == role {
			seats = append(seats, seat)
		}
	}
	return seats
}

// SeatsWithCurrentRole returns all seats whose current card is the given
// role, in seat order.
func (s *IdentityStore) SeatsWithCurrentRole(role Role) []Seat {
	var seats []Seat
	for seat := Seat(1); seat <= NumSeats; seat++ {
		if s.current[seat] == role {
			seats = append(seats, seat)
		}
	}
	return seats
}

// FinalRoles returns a copy of the current seat mapping, keyed by seat.
func (s *IdentityStore) FinalRoles() map[Seat]Role {
	final := make(map[Seat]Role, NumSeats)
	for seat := Seat(1); seat <= NumSeats; seat++ {
		final[seat] = s.current[seat]
	}
	return final
}

func (s *IdentityStore) slot(loc Location) *Role {
	if loc.Center {
		return &s.center[loc.Slot]
	}
	return &s.current[loc.Seat]
}

func (s *IdentityStore) checkLocation(loc Location) error {
	if loc.Center {
		if !validSlot(loc.Slot) {
			return fmt.Errorf("%w: center slot %d out of range", ErrIllegalAction, loc.Slot)
		}
		return nil
	}
	if !validSeat(loc.Seat) {
		return fmt.Errorf("%w: seat %d out of range", ErrIllegalAction, loc.Seat)
	}
	return nil
}

func validSeat(s Seat) bool { return s >= 1 && s <= NumSeats }
func validSlot(i int) bool  { return i >= 1 && i <= NumCenter }
