package main

import (
	"errors"
	"fmt"
	"log"
	"sort"
)

// ErrIncompleteVote means the vote record is short a voter, contains a
// self-vote, or references an unknown seat.
var ErrIncompleteVote = errors.New("incomplete vote record")

// VoteRecord maps each voter seat to its target seat. It is collected once
// and immutable after the voting phase closes.
type VoteRecord map[Seat]Seat

// Validate checks that every seat voted exactly once, for a real seat other
// than itself.
func (vr VoteRecord) Validate() error {
	if len(vr) != NumSeats {
		return fmt.Errorf("%w: got %d votes, want %d", ErrIncompleteVote, len(vr), NumSeats)
	}
	for voter, target := range vr {
		if !validSeat(voter) {
			return fmt.Errorf("%w: voter seat %d out of range", ErrIncompleteVote, voter)
		}
		if !validSeat(target) {
			return fmt.Errorf("%w: seat %d voted for out-of-range seat %d", ErrIncompleteVote, voter, target)
		}
		if voter == target {
			return fmt.Errorf("%w: seat %d voted for itself", ErrIncompleteVote, voter)
		}
	}
	return nil
}

// TallyResult holds per-seat vote counts and the execution set before any
// hunter cascade.
type TallyResult struct {
	Counts   map[Seat]int
	Executed []Seat
}

// TallyVotes is a pure function of a complete vote record. A single seat at
// the highest count is executed alone; if all six votes land one each on
// six different seats, no one is executed; any other tie executes every
// seat at the top count.
func TallyVotes(votes VoteRecord) (TallyResult, error) {
	if err := votes.Validate(); err != nil {
		return TallyResult{}, err
	}

	counts := make(map[Seat]int)
	for _, target := range votes {
		counts[target]++
	}

	if len(counts) == NumSeats {
		// Six seats each received exactly one vote: the table declined
		// to execute anyone.
		log.Printf("Vote tally: all seats received one vote each, no execution")
		return TallyResult{Counts: counts}, nil
	}

	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}

	var executed []Seat
	for seat, c := range counts {
		if c == max {
			executed = append(executed, seat)
		}
	}
	sort.Slice(executed, func(i, j int) bool { return executed[i] < executed[j] })

	log.Printf("Vote tally: %d seat(s) executed at %d vote(s)", len(executed), max)
	return TallyResult{Counts: counts, Executed: executed}, nil
}

// applyHunterCascade expands the execution set: every seat that voted for
// an executed hunter is executed too. The expansion is one level only —
// voters for the hunter, not voters for those voters.
func applyHunterCascade(final map[Seat]Role, votes VoteRecord, executed []Seat) []Seat {
	inSet := make(map[Seat]bool, len(executed))
	for _, seat := range executed {
		inSet[seat] = true
	}

	for _, seat := range executed {
		if final[seat] != RoleHunter {
			continue
		}
		for voter, target := range votes {
			if target == seat && !inSet[voter] {
				inSet[voter] = true
				log.Printf("Hunter at seat %d executed: seat %d dies with them", seat, voter)
			}
		}
	}

	expanded := make([]Seat, 0, len(inSet))
	for seat := range inSet {
		expanded = append(expanded, seat)
	}
	sort.Slice(expanded, func(i, j int) bool { return expanded[i] < expanded[j] })
	return expanded
}

// WinOutcome is the terminal result of a game: the winning faction, the
// execution set after any hunter cascade, and every seat on the winning
// side.
type WinOutcome struct {
	Faction  Faction
	Reason   string
	Executed []Seat
	Winners  []Seat
}

// ResolveWinner applies the faction rules to the final (post-swap) seat
// roles and the tallied execution set. The hunter cascade runs first as a
// pure seat-set expansion, then the faction rules in fixed order.
func ResolveWinner(final map[Seat]Role, votes VoteRecord, executed []Seat) WinOutcome {
	executed = applyHunterCascade(final, votes, executed)

	outcome := WinOutcome{Executed: executed}
	outcome.Faction, outcome.Reason = decideFaction(final, executed)

	for seat := Seat(1); seat <= NumSeats; seat++ {
		if final[seat].GetFaction() == outcome.Faction {
			outcome.Winners = append(outcome.Winners, seat)
		}
	}

	log.Printf("Game over: %s faction wins (%s), winners %v", outcome.Faction, outcome.Reason, outcome.Winners)
	return outcome
}

func decideFaction(final map[Seat]Role, executed []Seat) (Faction, string) {
	executedRole := func(role Role) bool {
		for _, seat := range executed {
			if final[seat] == role {
				return true
			}
		}
		return false
	}

	if executedRole(RoleWerewolf) {
		return FactionVillage, "a werewolf was executed"
	}

	if len(executed) == 0 {
		return FactionWerewolf, "no one was executed"
	}

	// Someone died, but no werewolf among them.
	if len(SeatsWith(final, RoleWerewolf)) == 0 {
		minions := SeatsWith(final, RoleMinion)
		switch {
		case len(minions) > 0 && executedRole(RoleMinion):
			return FactionVillage, "no werewolves in play and the minion was executed"
		case len(minions) > 0:
			return FactionWerewolf, "no werewolves in play and the minion survived"
		default:
			return FactionWerewolf, "no werewolf-aligned players, yet someone was executed"
		}
	}

	return FactionWerewolf, "werewolves in play escaped execution"
}

// SeatsWith returns the seats whose final role matches, in seat order.
func SeatsWith(final map[Seat]Role, role Role) []Seat {
	var seats []Seat
	for seat := Seat(1); seat <= NumSeats; seat++ {
		if final[seat] == role {
			seats = append(seats, seat)
		}
	}
	return seats
}
