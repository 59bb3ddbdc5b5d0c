package main

import (
	"errors"
	"testing"
)

// ============================================================================
// Vote Tally Tests
// ============================================================================

func TestVoteRecordValidation(t *testing.T) {
	short := VoteRecord{1: 2, 2: 3}
	if err := short.Validate(); !errors.Is(err, ErrIncompleteVote) {
		t.Errorf("two votes: got %v, want ErrIncompleteVote", err)
	}

	self := VoteRecord{1: 1, 2: 1, 3: 1, 4: 1, 5: 1, 6: 1}
	if err := self.Validate(); !errors.Is(err, ErrIncompleteVote) {
		t.Errorf("self-vote: got %v, want ErrIncompleteVote", err)
	}

	out := VoteRecord{1: 7, 2: 1, 3: 1, 4: 1, 5: 1, 6: 1}
	if err := out.Validate(); !errors.Is(err, ErrIncompleteVote) {
		t.Errorf("out-of-range target: got %v, want ErrIncompleteVote", err)
	}
}

func TestTallyIncompleteVotesRejected(t *testing.T) {
	if _, err := TallyVotes(VoteRecord{1: 2}); !errors.Is(err, ErrIncompleteVote) {
		t.Fatalf("got %v, want ErrIncompleteVote", err)
	}
}

func TestTallyAllOneEachMeansNoExecution(t *testing.T) {
	votes := mustVotes(t, [NumSeats]Seat{2, 3, 4, 5, 6, 1})
	tally, err := TallyVotes(votes)
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	if len(tally.Executed) != 0 {
		t.Errorf("executed %v, want nobody", tally.Executed)
	}
}

func TestTallySinglePlurality(t *testing.T) {
	// Seat 3 draws three votes, the rest scatter.
	votes := mustVotes(t, [NumSeats]Seat{3, 3, 4, 3, 6, 1})
	tally, err := TallyVotes(votes)
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	if len(tally.Executed) != 1 || tally.Executed[0] != 3 {
		t.Errorf("executed %v, want [3]", tally.Executed)
	}
	if tally.Counts[3] != 3 {
		t.Errorf("seat 3 count %d, want 3", tally.Counts[3])
	}
}

func TestTallyTieExecutesAllTiedSeats(t *testing.T) {
	// Seats 2 and 5 get two votes each.
	votes := mustVotes(t, [NumSeats]Seat{2, 5, 2, 5, 1, 3})
	tally, err := TallyVotes(votes)
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	if len(tally.Executed) != 2 || tally.Executed[0] != 2 || tally.Executed[1] != 5 {
		t.Errorf("executed %v, want [2 5]", tally.Executed)
	}
}

func TestTallyThreeWayTie(t *testing.T) {
	// 1, 2 and 3 get two votes each; all three die.
	votes := mustVotes(t, [NumSeats]Seat{2, 3, 1, 1, 2, 3})
	tally, err := TallyVotes(votes)
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	if len(tally.Executed) != 3 {
		t.Errorf("executed %v, want all three tied seats", tally.Executed)
	}
}

// ============================================================================
// Hunter Cascade and Win Resolution Tests
// ============================================================================

func finalRoles(roles [NumSeats]Role) map[Seat]Role {
	final := make(map[Seat]Role, NumSeats)
	for i, r := range roles {
		final[Seat(i+1)] = r
	}
	return final
}

func TestHunterCascadeKillsHisVoters(t *testing.T) {
	final := finalRoles([NumSeats]Role{RoleHunter, RoleWerewolf, RoleVillager, RoleVillager, RoleSeer, RoleMinion})
	// Seats 2, 3 and 4 vote the hunter out.
	votes := mustVotes(t, [NumSeats]Seat{2, 1, 1, 1, 6, 5})
	tally, err := TallyVotes(votes)
	if err != nil {
		t.Fatalf("tally: %v", err)
	}

	outcome := ResolveWinner(final, votes, tally.Executed)
	want := []Seat{1, 2, 3, 4}
	if len(outcome.Executed) != len(want) {
		t.Fatalf("executed %v, want %v", outcome.Executed, want)
	}
	for i, seat := range want {
		if outcome.Executed[i] != seat {
			t.Fatalf("executed %v, want %v", outcome.Executed, want)
		}
	}
	// The werewolf at seat 2 died in the cascade, so the village wins.
	if outcome.Faction != FactionVillage {
		t.Errorf("winner %s, want village after cascade killed the wolf", outcome.Faction)
	}
}

func TestHunterCascadeIsOneLevelOnly(t *testing.T) {
	// Two hunters: executing the first drags in its voters, among them the
	// second hunter, but the second hunter's own voters are spared.
	final := finalRoles([NumSeats]Role{RoleHunter, RoleHunter, RoleVillager, RoleVillager, RoleWerewolf, RoleVillager})
	// 2, 3 vote for 1; 4 votes for 2; others scatter.
	votes := mustVotes(t, [NumSeats]Seat{3, 1, 1, 2, 6, 5})
	tally, err := TallyVotes(votes)
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	if len(tally.Executed) != 1 || tally.Executed[0] != 1 {
		t.Fatalf("executed %v before cascade, want [1]", tally.Executed)
	}

	outcome := ResolveWinner(final, votes, tally.Executed)
	// Seat 2 (voted for 1) joins, but seat 4 (voted for 2) does not.
	want := []Seat{1, 2, 3}
	if len(outcome.Executed) != len(want) {
		t.Fatalf("executed %v, want %v", outcome.Executed, want)
	}
	for i, seat := range want {
		if outcome.Executed[i] != seat {
			t.Fatalf("executed %v, want %v", outcome.Executed, want)
		}
	}
}

func TestNonHunterExecutionHasNoCascade(t *testing.T) {
	final := finalRoles([NumSeats]Role{RoleVillager, RoleWerewolf, RoleVillager, RoleVillager, RoleSeer, RoleMinion})
	votes := mustVotes(t, [NumSeats]Seat{2, 1, 2, 2, 2, 5})
	tally, _ := TallyVotes(votes)

	outcome := ResolveWinner(final, votes, tally.Executed)
	if len(outcome.Executed) != 1 || outcome.Executed[0] != 2 {
		t.Errorf("executed %v, want only the wolf at seat 2", outcome.Executed)
	}
}

func TestWerewolfExecutedVillageWins(t *testing.T) {
	final := finalRoles([NumSeats]Role{RoleWerewolf, RoleSeer, RoleVillager, RoleVillager, RoleMinion, RoleVillager})
	votes := mustVotes(t, [NumSeats]Seat{2, 1, 1, 1, 1, 1})
	tally, _ := TallyVotes(votes)

	outcome := ResolveWinner(final, votes, tally.Executed)
	if outcome.Faction != FactionVillage {
		t.Fatalf("winner %s, want village", outcome.Faction)
	}
	// Winners are the village-aligned seats, minion excluded.
	for _, seat := range outcome.Winners {
		if final[seat].GetFaction() != FactionVillage {
			t.Errorf("seat %d in winners with faction %s", seat, final[seat].GetFaction())
		}
	}
	if len(outcome.Winners) != 4 {
		t.Errorf("winners %v, want the four village seats", outcome.Winners)
	}
}

func TestNoExecutionWerewolvesWin(t *testing.T) {
	final := finalRoles([NumSeats]Role{RoleWerewolf, RoleSeer, RoleVillager, RoleVillager, RoleMinion, RoleVillager})
	votes := mustVotes(t, [NumSeats]Seat{2, 3, 4, 5, 6, 1})
	tally, _ := TallyVotes(votes)

	outcome := ResolveWinner(final, votes, tally.Executed)
	if outcome.Faction != FactionWerewolf {
		t.Fatalf("winner %s, want werewolf with no execution", outcome.Faction)
	}
	// Werewolf and minion share the win.
	if len(outcome.Winners) != 2 {
		t.Errorf("winners %v, want wolf and minion", outcome.Winners)
	}
}

func TestNoExecutionInWerewolflessGameStillWerewolfWin(t *testing.T) {
	// Both wolf cards in the center, no minion: the no-execution rule fires
	// before any werewolf-less special case.
	final := finalRoles([NumSeats]Role{RoleSeer, RoleRobber, RoleTroublemaker, RoleDrunk, RoleInsomniac, RoleVillager})
	votes := mustVotes(t, [NumSeats]Seat{2, 3, 4, 5, 6, 1})
	tally, _ := TallyVotes(votes)

	outcome := ResolveWinner(final, votes, tally.Executed)
	if outcome.Faction != FactionWerewolf {
		t.Fatalf("winner %s, want werewolf", outcome.Faction)
	}
	if len(outcome.Winners) != 0 {
		t.Errorf("winners %v, want none with no werewolf-aligned seats", outcome.Winners)
	}
}

func TestWerewolflessMinionExecutedVillageWins(t *testing.T) {
	final := finalRoles([NumSeats]Role{RoleMinion, RoleSeer, RoleRobber, RoleVillager, RoleVillager, RoleVillager})
	votes := mustVotes(t, [NumSeats]Seat{2, 1, 1, 1, 1, 1})
	tally, _ := TallyVotes(votes)

	outcome := ResolveWinner(final, votes, tally.Executed)
	if outcome.Faction != FactionVillage {
		t.Fatalf("winner %s, want village after executing the minion", outcome.Faction)
	}
}

func TestWerewolflessMinionSurvivesWerewolfWins(t *testing.T) {
	final := finalRoles([NumSeats]Role{RoleMinion, RoleSeer, RoleRobber, RoleVillager, RoleVillager, RoleVillager})
	// The village executes an innocent; the minion walks.
	votes := mustVotes(t, [NumSeats]Seat{2, 4, 2, 2, 2, 1})
	tally, _ := TallyVotes(votes)

	outcome := ResolveWinner(final, votes, tally.Executed)
	if outcome.Faction != FactionWerewolf {
		t.Fatalf("winner %s, want werewolf via surviving minion", outcome.Faction)
	}
	if len(outcome.Winners) != 1 || outcome.Winners[0] != 1 {
		t.Errorf("winners %v, want only the minion", outcome.Winners)
	}
}

func TestWerewolflessInnocentExecutedNobodyWins(t *testing.T) {
	// All village, someone dies anyway. No seat is werewolf-aligned, so
	// nobody shares the werewolf-side result.
	final := finalRoles([NumSeats]Role{RoleSeer, RoleRobber, RoleTroublemaker, RoleDrunk, RoleInsomniac, RoleVillager})
	votes := mustVotes(t, [NumSeats]Seat{3, 3, 4, 3, 6, 1})
	tally, _ := TallyVotes(votes)

	outcome := ResolveWinner(final, votes, tally.Executed)
	if outcome.Faction != FactionWerewolf {
		t.Fatalf("winner %s, want werewolf side", outcome.Faction)
	}
	if len(outcome.Winners) != 0 {
		t.Errorf("winners %v, want empty", outcome.Winners)
	}
}

func TestWolvesEscapeExecution(t *testing.T) {
	final := finalRoles([NumSeats]Role{RoleWerewolf, RoleWerewolf, RoleSeer, RoleVillager, RoleVillager, RoleVillager})
	// The table executes the seer instead.
	votes := mustVotes(t, [NumSeats]Seat{3, 3, 4, 3, 3, 3})
	tally, _ := TallyVotes(votes)

	outcome := ResolveWinner(final, votes, tally.Executed)
	if outcome.Faction != FactionWerewolf {
		t.Fatalf("winner %s, want werewolf", outcome.Faction)
	}
	if len(outcome.Winners) != 2 {
		t.Errorf("winners %v, want both wolves", outcome.Winners)
	}
}

func TestTieExecutingWolfAndVillagerVillageWins(t *testing.T) {
	final := finalRoles([NumSeats]Role{RoleWerewolf, RoleSeer, RoleVillager, RoleVillager, RoleVillager, RoleMinion})
	// Seats 1 and 3 tie; both die, and one of them is a wolf.
	votes := mustVotes(t, [NumSeats]Seat{3, 1, 1, 3, 2, 4})
	tally, err := TallyVotes(votes)
	if err != nil {
		t.Fatalf("tally: %v", err)
	}
	if len(tally.Executed) != 2 {
		t.Fatalf("executed %v, want the two tied seats", tally.Executed)
	}

	outcome := ResolveWinner(final, votes, tally.Executed)
	if outcome.Faction != FactionVillage {
		t.Errorf("winner %s, want village", outcome.Faction)
	}
}
