package main

import (
	"encoding/json"
	"fmt"
	"testing"
)

// ============================================================================
// Audit Store Tests
// ============================================================================

func testStore(t *testing.T) *AuditStore {
	t.Helper()
	// shared-cache named memory DB so the pool's connections see one schema
	store, err := OpenAuditStore(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open audit store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateGameAndRecordDeal(t *testing.T) {
	store := testStore(t)
	id, err := store.CreateGame(42)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if id == "" {
		t.Fatal("empty game id")
	}

	identity := riggedStore(
		[NumSeats]Role{RoleWerewolf, RoleWerewolf, RoleSeer, RoleRobber, RoleMinion, RoleVillager},
		[NumCenter]Role{RoleDrunk, RoleTroublemaker, RoleHunter},
	)
	if err := store.RecordDeal(id, identity); err != nil {
		t.Fatalf("record deal: %v", err)
	}

	var rows []SeatRecord
	if err := store.db.Select(&rows, "SELECT * FROM game_seat WHERE game_id = ? ORDER BY seat", id); err != nil {
		t.Fatalf("load seats: %v", err)
	}
	if len(rows) != NumSeats {
		t.Fatalf("got %d seat rows, want %d", len(rows), NumSeats)
	}
	if rows[0].OriginalRole != string(RoleWerewolf) || rows[0].Name != "Alice" {
		t.Errorf("seat 1 row %+v", rows[0])
	}
	if rows[2].OriginalRole != string(RoleSeer) {
		t.Errorf("seat 3 row %+v", rows[2])
	}
}

func TestNightEntriesGetSequentialSeqs(t *testing.T) {
	store := testStore(t)
	id, _ := store.CreateGame(1)

	entries := []NightLogEntry{
		{Role: RoleWerewolf, Actors: []Seat{1, 2}, ActionType: ActionWerewolfWake, Visibility: VisibilityTeamWerewolf},
		{Role: RoleSeer, Actors: []Seat{3}, ActionType: ActionSeerViewPlayer, Targets: []Location{SeatLocation(1)}, Visibility: VisibilityActor},
		{Role: RoleInsomniac, Actors: []Seat{5}, ActionType: ActionInsomniacCheck, Visibility: VisibilityActor},
	}
	for _, e := range entries {
		if err := store.RecordNightEntry(id, e); err != nil {
			t.Fatalf("record entry: %v", err)
		}
	}

	actions, err := store.RevealActions(id)
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("got %d actions, want 3", len(actions))
	}
	for i, a := range actions {
		if a.Seq != i {
			t.Errorf("action %d has seq %d", i, a.Seq)
		}
		if a.Phase != "night" {
			t.Errorf("action %d phase %q", i, a.Phase)
		}
	}

	var actors []Seat
	if err := json.Unmarshal([]byte(actions[0].Actors), &actors); err != nil {
		t.Fatalf("decode actors: %v", err)
	}
	if len(actors) != 2 || actors[0] != 1 || actors[1] != 2 {
		t.Errorf("pack actors %v, want [1 2]", actors)
	}
}

func TestCanSeeActionVisibilityRules(t *testing.T) {
	actorEntry := ActionRecord{Visibility: VisibilityActor, Actors: "[3]"}
	teamEntry := ActionRecord{Visibility: VisibilityTeamWerewolf, Actors: "[1,2]"}
	voteEntry := ActionRecord{Visibility: VisibilityResolved, Actors: "[4]"}
	publicEntry := ActionRecord{Visibility: VisibilityPublic}

	cases := []struct {
		name     string
		a        ActionRecord
		viewer   Seat
		faction  Faction
		resolved bool
		want     bool
	}{
		{"public always visible", publicEntry, 6, FactionVillage, false, true},
		{"actor sees own entry", actorEntry, 3, FactionVillage, false, true},
		{"other seat blocked from actor entry", actorEntry, 4, FactionVillage, false, false},
		{"wolf sees team entry", teamEntry, 5, FactionWerewolf, false, true},
		{"villager blocked from team entry", teamEntry, 5, FactionVillage, false, false},
		{"vote hidden while open", voteEntry, 4, FactionVillage, false, false},
		{"vote visible once resolved", voteEntry, 4, FactionVillage, true, true},
		{"even non-voter sees resolved vote", voteEntry, 1, FactionVillage, true, true},
	}
	for _, tc := range cases {
		if got := canSeeAction(tc.a, tc.viewer, tc.faction, tc.resolved); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRecordOutcomeUpdatesSeatsAndGame(t *testing.T) {
	store := testStore(t)
	id, _ := store.CreateGame(5)

	identity := riggedStore(
		[NumSeats]Role{RoleWerewolf, RoleSeer, RoleVillager, RoleVillager, RoleMinion, RoleVillager},
		[NumCenter]Role{RoleWerewolf, RoleDrunk, RoleHunter},
	)
	if err := store.RecordDeal(id, identity); err != nil {
		t.Fatalf("record deal: %v", err)
	}

	outcome := WinOutcome{
		Faction:  FactionVillage,
		Reason:   "a werewolf was executed",
		Executed: []Seat{1},
		Winners:  []Seat{2, 3, 4, 6},
	}
	if err := store.RecordOutcome(id, identity, outcome); err != nil {
		t.Fatalf("record outcome: %v", err)
	}

	var game GameRecord
	if err := store.db.Get(&game, "SELECT * FROM game WHERE id = ?", id); err != nil {
		t.Fatalf("load game: %v", err)
	}
	if game.Status != "resolved" || game.Winner != string(FactionVillage) {
		t.Errorf("game row %+v", game)
	}

	var rows []SeatRecord
	if err := store.db.Select(&rows, "SELECT * FROM game_seat WHERE game_id = ? ORDER BY seat", id); err != nil {
		t.Fatalf("load seats: %v", err)
	}
	if !rows[0].Executed || rows[0].Won {
		t.Errorf("executed wolf row %+v", rows[0])
	}
	if rows[1].Executed || !rows[1].Won {
		t.Errorf("seer row %+v", rows[1])
	}
	if rows[4].Won {
		t.Errorf("losing minion row %+v", rows[4])
	}
	if rows[0].FinalRole != string(RoleWerewolf) {
		t.Errorf("seat 1 final role %q", rows[0].FinalRole)
	}

	// The execution record is the public tail of the action log.
	actions, _ := store.RevealActions(id)
	if len(actions) != 1 || actions[0].ActionType != ActionExecution || actions[0].Visibility != VisibilityPublic {
		t.Errorf("actions after outcome: %+v", actions)
	}
}

func TestDescribeEntryLines(t *testing.T) {
	peek := NightLogEntry{
		Role: RoleWerewolf, Actors: []Seat{4}, ActionType: ActionWerewolfPeek,
		Targets: []Location{CenterLocation(2)},
	}
	if got := describeEntry(peek); got != "lone wolf at seat 4 viewed center 2" {
		t.Errorf("peek description %q", got)
	}

	tmSwap := NightLogEntry{
		Role: RoleTroublemaker, Actors: []Seat{2}, ActionType: ActionTroublemakerSwap,
		Targets: []Location{SeatLocation(3), SeatLocation(5)},
	}
	if got := describeEntry(tmSwap); got != "troublemaker at seat 2 swapped seat 3 and seat 5" {
		t.Errorf("swap description %q", got)
	}
}
