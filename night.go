package main

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
)

// Action types recorded in the game log.
const (
	ActionWerewolfWake     = "werewolf_wake" // pack members learn each other
	ActionWerewolfPeek     = "werewolf_peek" // lone wolf views one center card
	ActionMinionLearn      = "minion_learn"
	ActionSeerViewPlayer   = "seer_view_player"
	ActionSeerViewCenter   = "seer_view_center"
	ActionRobberSwap       = "robber_swap"
	ActionRobberSkip       = "robber_skip"
	ActionTroublemakerSwap = "troublemaker_swap"
	ActionDrunkSwap        = "drunk_swap"
	ActionInsomniacCheck   = "insomniac_check"
	ActionDayVote          = "day_vote"
	ActionExecution        = "execution"
)

// Visibility levels for log entries. Night entries stay hidden from players
// until a privileged reveal query after resolution.
const (
	VisibilityPublic       = "public"
	VisibilityActor        = "actor"
	VisibilityTeamWerewolf = "team:werewolf"
	VisibilityResolved     = "resolved"
)

// NightChoiceKind tags the variant of a NightChoice.
type NightChoiceKind string

const (
	ChoiceSkip       NightChoiceKind = "skip"        // lone wolf or robber declines
	ChoicePeekCenter NightChoiceKind = "peek_center" // lone wolf: one center slot
	ChoiceViewSeat   NightChoiceKind = "view_seat"   // seer: one other player
	ChoiceViewCenter NightChoiceKind = "view_center" // seer: two center slots
	ChoiceSwapSeat   NightChoiceKind = "swap_seat"   // robber: swap with one player
	ChoiceSwapOthers NightChoiceKind = "swap_others" // troublemaker: swap two others
	ChoiceSwapCenter NightChoiceKind = "swap_center" // drunk: swap with one slot
)

// NightChoice is a completed decision supplied by a seat's agent. Which
// fields are meaningful depends on Kind.
type NightChoice struct {
	Kind  NightChoiceKind
	Seat  Seat  // view/swap target
	Seat2 Seat  // troublemaker's second target
	Slots []int // center slots: one for peek/drunk, two for seer
}

// NightRequest asks an agent for a decision. RetryNote carries the rejection
// reason when a previous choice was illegal.
type NightRequest struct {
	Seat      Seat
	Role      Role
	RetryNote string
}

// VoteRequest asks an agent for its execution vote.
type VoteRequest struct {
	Seat      Seat
	RetryNote string
}

// ObservedResult is the private outcome returned to the acting seat.
type ObservedResult struct {
	WerewolfSeats []Seat         // pack members, or the minion's scouting
	Revealed      []RevealedRole // cards the actor saw
	Swapped       bool
	Note          string
}

// RevealedRole is one card shown to an actor.
type RevealedRole struct {
	Location Location
	Role     Role
}

func (o ObservedResult) String() string {
	var parts []string
	if len(o.WerewolfSeats) > 0 {
		seats := make([]string, len(o.WerewolfSeats))
		for i, s := range o.WerewolfSeats {
			seats[i] = fmt.Sprintf("seat %d", s)
		}
		parts = append(parts, "werewolves: "+strings.Join(seats, ", "))
	}
	for _, rr := range o.Revealed {
		parts = append(parts, fmt.Sprintf("%s is %s", rr.Location, rr.Role))
	}
	if o.Note != "" {
		parts = append(parts, o.Note)
	}
	return strings.Join(parts, " | ")
}

// NightLogEntry is one record in the append-only night log. Entries are
// appended in action-execution order, never seat order, and never mutated.
// The shared werewolf wake is a single entry listing all pack members.
type NightLogEntry struct {
	Seq        int
	Role       Role
	Actors     []Seat
	ActionType string
	Targets    []Location
	Observed   ObservedResult
	Visibility string
}

// DecisionSupplier is the synchronous contract between the engine and one
// seat's external agent (a human at the terminal or an LLM). The engine
// never awaits or polls: each method is invoked once per required decision
// and must return a completed value.
type DecisionSupplier interface {
	ChooseNightAction(ctx context.Context, req NightRequest) (NightChoice, error)
	ChooseVote(ctx context.Context, req VoteRequest) (Seat, error)
	// ObserveNight delivers the private result of the seat's own action.
	ObserveNight(seat Seat, role Role, result ObservedResult)
}

// maxChoiceRetries bounds how often an agent may resupply after an illegal
// choice before the night fails.
const maxChoiceRetries = 3

// NightResolver executes each actionable role's effect exactly once, in the
// injected order, against the identity store. Roles absent from the six
// dealt seats are skipped without a log entry.
type NightResolver struct {
	store *IdentityStore
	order []Role
	log   []NightLogEntry
}

func NewNightResolver(store *IdentityStore, order []Role) *NightResolver {
	return &NightResolver{store: store, order: order}
}

// Log returns the entries appended so far, in execution order.
func (nr *NightResolver) Log() []NightLogEntry {
	return nr.log
}

// Run walks the night order. Seats act based on the role they were dealt;
// swaps by earlier actors are visible to later ones, which is what makes
// the ordering load-bearing.
func (nr *NightResolver) Run(ctx context.Context, suppliers map[Seat]DecisionSupplier) error {
	for _, role := range nr.order {
		seats := nr.store.SeatsWithOriginalRole(role)
		if len(seats) == 0 {
			continue
		}

		var err error
		switch role {
		case RoleWerewolf:
			err = nr.resolveWerewolves(ctx, seats, suppliers)
		case RoleMinion:
			err = nr.resolveMinion(seats[0], suppliers)
		case RoleSeer:
			err = nr.resolveSeer(ctx, seats[0], suppliers)
		case RoleRobber:
			err = nr.resolveRobber(ctx, seats[0], suppliers)
		case RoleTroublemaker:
			err = nr.resolveTroublemaker(ctx, seats[0], suppliers)
		case RoleDrunk:
			err = nr.resolveDrunk(ctx, seats[0], suppliers)
		case RoleInsomniac:
			err = nr.resolveInsomniac(seats[0], suppliers)
		default:
			continue // role has no night action
		}
		if err != nil {
			return fmt.Errorf("night action for %s: %w", role, err)
		}
	}
	return nil
}

// choose asks the seat's supplier for a decision, re-asking with the
// rejection reason if validate refuses the choice. Validation happens
// before any mutation, so a rejected choice leaves no trace.
func (nr *NightResolver) choose(ctx context.Context, seat Seat, role Role, suppliers map[Seat]DecisionSupplier, validate func(NightChoice) error) (NightChoice, error) {
	supplier := suppliers[seat]
	if supplier == nil {
		return NightChoice{}, fmt.Errorf("no decision supplier for seat %d", seat)
	}

	req := NightRequest{Seat: seat, Role: role}
	for attempt := 0; attempt < maxChoiceRetries; attempt++ {
		choice, err := supplier.ChooseNightAction(ctx, req)
		if err != nil {
			return NightChoice{}, err
		}
		if err := validate(choice); err != nil {
			log.Printf("Seat %d (%s) supplied illegal choice: %v", seat, role, err)
			req.RetryNote = err.Error()
			continue
		}
		return choice, nil
	}
	return NightChoice{}, fmt.Errorf("%w: seat %d (%s) exhausted retries", ErrIllegalAction, seat, role)
}

func (nr *NightResolver) append(entry NightLogEntry) {
	entry.Seq = len(nr.log)
	nr.log = append(nr.log, entry)
}

func (nr *NightResolver) observe(suppliers map[Seat]DecisionSupplier, seat Seat, role Role, result ObservedResult) {
	if s := suppliers[seat]; s != nil {
		s.ObserveNight(seat, role, result)
	}
}

// resolveWerewolves handles both branches: a pack of two or more learns each
// other (one shared log entry), a lone wolf may peek at one center card.
func (nr *NightResolver) resolveWerewolves(ctx context.Context, seats []Seat, suppliers map[Seat]DecisionSupplier) error {
	if len(seats) >= 2 {
		sort.Slice(seats, func(i, j int) bool { return seats[i] < seats[j] })
		nr.append(NightLogEntry{
			Role:       RoleWerewolf,
			Actors:     seats,
			ActionType: ActionWerewolfWake,
			Observed:   ObservedResult{WerewolfSeats: seats},
			Visibility: VisibilityTeamWerewolf,
		})
		for _, seat := range seats {
			var pack []Seat
			for _, other := range seats {
				if other != seat {
					pack = append(pack, other)
				}
			}
			nr.observe(suppliers, seat, RoleWerewolf, ObservedResult{WerewolfSeats: pack})
		}
		log.Printf("Night: werewolf pack %v woke together", seats)
		return nil
	}

	// Lone wolf: may view one center card, or go back to sleep.
	seat := seats[0]
	choice, err := nr.choose(ctx, seat, RoleWerewolf, suppliers, func(c NightChoice) error {
		switch c.Kind {
		case ChoiceSkip:
			return nil
		case ChoicePeekCenter:
			if len(c.Slots) != 1 || !validSlot(c.Slots[0]) {
				return fmt.Errorf("%w: lone wolf must pick exactly one center slot (1-%d)", ErrIllegalAction, NumCenter)
			}
			return nil
		default:
			return fmt.Errorf("%w: lone wolf cannot %s", ErrIllegalAction, c.Kind)
		}
	})
	if err != nil {
		return err
	}

	if choice.Kind == ChoiceSkip {
		result := ObservedResult{Note: "declined to view a center card"}
		nr.append(NightLogEntry{
			Role:       RoleWerewolf,
			Actors:     []Seat{seat},
			ActionType: ActionWerewolfPeek,
			Observed:   result,
			Visibility: VisibilityActor,
		})
		nr.observe(suppliers, seat, RoleWerewolf, result)
		log.Printf("Night: lone wolf at seat %d declined the center peek", seat)
		return nil
	}

	slot := choice.Slots[0]
	result := ObservedResult{Revealed: []RevealedRole{{CenterLocation(slot), nr.store.CenterCard(slot)}}}
	nr.append(NightLogEntry{
		Role:       RoleWerewolf,
		Actors:     []Seat{seat},
		ActionType: ActionWerewolfPeek,
		Targets:    []Location{CenterLocation(slot)},
		Observed:   result,
		Visibility: VisibilityActor,
	})
	nr.observe(suppliers, seat, RoleWerewolf, result)
	log.Printf("Night: lone wolf at seat %d viewed center %d", seat, slot)
	return nil
}

// resolveMinion shows the minion every seat currently holding a werewolf
// card. The set may be empty in a werewolf-less deal.
func (nr *NightResolver) resolveMinion(seat Seat, suppliers map[Seat]DecisionSupplier) error {
	wolves := nr.store.SeatsWithCurrentRole(RoleWerewolf)
	result := ObservedResult{WerewolfSeats: wolves}
	if len(wolves) == 0 {
		result.Note = "no werewolves in play"
	}
	nr.append(NightLogEntry{
		Role:       RoleMinion,
		Actors:     []Seat{seat},
		ActionType: ActionMinionLearn,
		Observed:   result,
		Visibility: VisibilityActor,
	})
	nr.observe(suppliers, seat, RoleMinion, result)
	log.Printf("Night: minion at seat %d learned %d werewolf seat(s)", seat, len(wolves))
	return nil
}

// resolveSeer offers exactly one of two modes: view another seat's current
// card, or view two of the three center cards.
func (nr *NightResolver) resolveSeer(ctx context.Context, seat Seat, suppliers map[Seat]DecisionSupplier) error {
	choice, err := nr.choose(ctx, seat, RoleSeer, suppliers, func(c NightChoice) error {
		switch c.Kind {
		case ChoiceViewSeat:
			if !validSeat(c.Seat) {
				return fmt.Errorf("%w: seat %d out of range", ErrIllegalAction, c.Seat)
			}
			if c.Seat == seat {
				return fmt.Errorf("%w: seer cannot view their own card", ErrIllegalAction)
			}
			return nil
		case ChoiceViewCenter:
			if len(c.Slots) != 2 {
				return fmt.Errorf("%w: seer must view exactly two center cards", ErrIllegalAction)
			}
			if !validSlot(c.Slots[0]) || !validSlot(c.Slots[1]) {
				return fmt.Errorf("%w: center slot out of range", ErrIllegalAction)
			}
			if c.Slots[0] == c.Slots[1] {
				return fmt.Errorf("%w: seer must view two distinct center cards", ErrIllegalAction)
			}
			return nil
		default:
			return fmt.Errorf("%w: seer cannot %s", ErrIllegalAction, c.Kind)
		}
	})
	if err != nil {
		return err
	}

	var entry NightLogEntry
	if choice.Kind == ChoiceViewSeat {
		entry = NightLogEntry{
			Role:       RoleSeer,
			Actors:     []Seat{seat},
			ActionType: ActionSeerViewPlayer,
			Targets:    []Location{SeatLocation(choice.Seat)},
			Observed: ObservedResult{Revealed: []RevealedRole{
				{SeatLocation(choice.Seat), nr.store.CurrentRole(choice.Seat)},
			}},
			Visibility: VisibilityActor,
		}
	} else {
		entry = NightLogEntry{
			Role:       RoleSeer,
			Actors:     []Seat{seat},
			ActionType: ActionSeerViewCenter,
			Targets:    []Location{CenterLocation(choice.Slots[0]), CenterLocation(choice.Slots[1])},
			Observed: ObservedResult{Revealed: []RevealedRole{
				{CenterLocation(choice.Slots[0]), nr.store.CenterCard(choice.Slots[0])},
				{CenterLocation(choice.Slots[1]), nr.store.CenterCard(choice.Slots[1])},
			}},
			Visibility: VisibilityActor,
		}
	}
	nr.append(entry)
	nr.observe(suppliers, seat, RoleSeer, entry.Observed)
	log.Printf("Night: seer at seat %d used %s", seat, entry.ActionType)
	return nil
}

// resolveRobber lets the robber swap with another seat and immediately see
// the stolen card, or skip and stay the robber.
func (nr *NightResolver) resolveRobber(ctx context.Context, seat Seat, suppliers map[Seat]DecisionSupplier) error {
	choice, err := nr.choose(ctx, seat, RoleRobber, suppliers, func(c NightChoice) error {
		switch c.Kind {
		case ChoiceSkip:
			return nil
		case ChoiceSwapSeat:
			if !validSeat(c.Seat) {
				return fmt.Errorf("%w: seat %d out of range", ErrIllegalAction, c.Seat)
			}
			if c.Seat == seat {
				return fmt.Errorf("%w: robber cannot rob their own card", ErrIllegalAction)
			}
			return nil
		default:
			return fmt.Errorf("%w: robber cannot %s", ErrIllegalAction, c.Kind)
		}
	})
	if err != nil {
		return err
	}

	if choice.Kind == ChoiceSkip {
		result := ObservedResult{Note: "no action taken"}
		nr.append(NightLogEntry{
			Role:       RoleRobber,
			Actors:     []Seat{seat},
			ActionType: ActionRobberSkip,
			Observed:   result,
			Visibility: VisibilityActor,
		})
		nr.observe(suppliers, seat, RoleRobber, result)
		log.Printf("Night: robber at seat %d skipped", seat)
		return nil
	}

	if err := nr.store.SwapCurrent(SeatLocation(seat), SeatLocation(choice.Seat)); err != nil {
		return err
	}
	result := ObservedResult{
		Swapped:  true,
		Revealed: []RevealedRole{{SeatLocation(seat), nr.store.CurrentRole(seat)}},
	}
	nr.append(NightLogEntry{
		Role:       RoleRobber,
		Actors:     []Seat{seat},
		ActionType: ActionRobberSwap,
		Targets:    []Location{SeatLocation(choice.Seat)},
		Observed:   result,
		Visibility: VisibilityActor,
	})
	nr.observe(suppliers, seat, RoleRobber, result)
	log.Printf("Night: robber at seat %d swapped with seat %d", seat, choice.Seat)
	return nil
}

// resolveTroublemaker swaps the cards of two other distinct seats. The
// troublemaker learns nothing about either card, and an invalid pair is
// rejected before any card moves.
func (nr *NightResolver) resolveTroublemaker(ctx context.Context, seat Seat, suppliers map[Seat]DecisionSupplier) error {
	choice, err := nr.choose(ctx, seat, RoleTroublemaker, suppliers, func(c NightChoice) error {
		if c.Kind != ChoiceSwapOthers {
			return fmt.Errorf("%w: troublemaker must swap two other players", ErrIllegalAction)
		}
		if !validSeat(c.Seat) || !validSeat(c.Seat2) {
			return fmt.Errorf("%w: target seat out of range", ErrIllegalAction)
		}
		if c.Seat == seat || c.Seat2 == seat {
			return fmt.Errorf("%w: troublemaker cannot pick themselves", ErrIllegalAction)
		}
		if c.Seat == c.Seat2 {
			return fmt.Errorf("%w: troublemaker must pick two distinct seats", ErrIllegalAction)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := nr.store.SwapCurrent(SeatLocation(choice.Seat), SeatLocation(choice.Seat2)); err != nil {
		return err
	}
	result := ObservedResult{Swapped: true, Note: fmt.Sprintf("swapped seat %d and seat %d", choice.Seat, choice.Seat2)}
	nr.append(NightLogEntry{
		Role:       RoleTroublemaker,
		Actors:     []Seat{seat},
		ActionType: ActionTroublemakerSwap,
		Targets:    []Location{SeatLocation(choice.Seat), SeatLocation(choice.Seat2)},
		Observed:   result,
		Visibility: VisibilityActor,
	})
	nr.observe(suppliers, seat, RoleTroublemaker, result)
	log.Printf("Night: troublemaker at seat %d swapped seats %d and %d", seat, choice.Seat, choice.Seat2)
	return nil
}

// resolveDrunk forces a swap with one center slot. The drunk never sees the
// card they end up with.
func (nr *NightResolver) resolveDrunk(ctx context.Context, seat Seat, suppliers map[Seat]DecisionSupplier) error {
	choice, err := nr.choose(ctx, seat, RoleDrunk, suppliers, func(c NightChoice) error {
		if c.Kind != ChoiceSwapCenter {
			return fmt.Errorf("%w: drunk must swap with a center card", ErrIllegalAction)
		}
		if len(c.Slots) != 1 || !validSlot(c.Slots[0]) {
			return fmt.Errorf("%w: drunk must pick exactly one center slot (1-%d)", ErrIllegalAction, NumCenter)
		}
		return nil
	})
	if err != nil {
		return err
	}

	slot := choice.Slots[0]
	if err := nr.store.SwapCurrent(SeatLocation(seat), CenterLocation(slot)); err != nil {
		return err
	}
	result := ObservedResult{Swapped: true, Note: "exchanged with the center, new card unseen"}
	nr.append(NightLogEntry{
		Role:       RoleDrunk,
		Actors:     []Seat{seat},
		ActionType: ActionDrunkSwap,
		Targets:    []Location{CenterLocation(slot)},
		Observed:   result,
		Visibility: VisibilityActor,
	})
	nr.observe(suppliers, seat, RoleDrunk, result)
	log.Printf("Night: drunk at seat %d swapped with center %d", seat, slot)
	return nil
}

// resolveInsomniac is a read-only view of the seat's own card after every
// earlier swap has landed.
func (nr *NightResolver) resolveInsomniac(seat Seat, suppliers map[Seat]DecisionSupplier) error {
	result := ObservedResult{Revealed: []RevealedRole{{SeatLocation(seat), nr.store.CurrentRole(seat)}}}
	nr.append(NightLogEntry{
		Role:       RoleInsomniac,
		Actors:     []Seat{seat},
		ActionType: ActionInsomniacCheck,
		Targets:    []Location{SeatLocation(seat)},
		Observed:   result,
		Visibility: VisibilityActor,
	})
	nr.observe(suppliers, seat, RoleInsomniac, result)
	log.Printf("Night: insomniac at seat %d checked their card", seat)
	return nil
}
