package main

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// AuditStore records every deal, night action, vote, and resolution in
// sqlite so a finished game can be audited or replayed. The default DSN is
// in-memory; nothing survives the process unless a file path is configured.
type AuditStore struct {
	db *sqlx.DB
}

// GameRecord is one game in the audit store.
type GameRecord struct {
	ID        string `db:"id"`
	Seed      int64  `db:"seed"`
	Status    string `db:"status"`
	Winner    string `db:"winner"`
	CreatedAt string `db:"created_at"`
}

// SeatRecord is one seat's assignment within a game.
type SeatRecord struct {
	GameID       string `db:"game_id"`
	Seat         int    `db:"seat"`
	Name         string `db:"name"`
	OriginalRole string `db:"original_role"`
	FinalRole    string `db:"final_role"`
	Executed     bool   `db:"executed"`
	Won          bool   `db:"won"`
}

// ActionRecord is one logged action. Actors, Targets and Observed are JSON
// so the row can carry the shared werewolf wake and multi-card views.
type ActionRecord struct {
	GameID      string `db:"game_id"`
	Seq         int    `db:"seq"`
	Phase       string `db:"phase"`
	Role        string `db:"role"`
	Actors      string `db:"actors"`
	ActionType  string `db:"action_type"`
	Targets     string `db:"targets"`
	Observed    string `db:"observed"`
	Visibility  string `db:"visibility"`
	Description string `db:"description"`
}

// OpenAuditStore connects to sqlite and creates the schema.
func OpenAuditStore(dsn string) (*AuditStore, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect audit store: %w", err)
	}
	s := &AuditStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *AuditStore) Close() error {
	return s.db.Close()
}

func (s *AuditStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS game (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'setup',
		winner TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS game_seat (
		game_id TEXT NOT NULL,
		seat INTEGER NOT NULL,
		name TEXT NOT NULL,
		original_role TEXT NOT NULL,
		final_role TEXT NOT NULL DEFAULT '',
		executed INTEGER NOT NULL DEFAULT 0,
		won INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (game_id) REFERENCES game(id),
		UNIQUE(game_id, seat)
	);
	CREATE TABLE IF NOT EXISTS game_action (
		game_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		phase TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT '',
		actors TEXT NOT NULL DEFAULT '[]',
		action_type TEXT NOT NULL,
		targets TEXT NOT NULL DEFAULT '[]',
		observed TEXT NOT NULL DEFAULT '{}',
		visibility TEXT NOT NULL DEFAULT 'public',
		description TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (game_id) REFERENCES game(id),
		UNIQUE(game_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_game_action_lookup ON game_action(game_id, phase, visibility);
	`
	if _, err := s.db.Exec(schema); err != nil {
		log.Printf("initSchema error: %v", err)
		return fmt.Errorf("init audit schema: %w", err)
	}
	return nil
}

// CreateGame inserts a new game row and returns its id.
func (s *AuditStore) CreateGame(seed int64) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		"INSERT INTO game (id, seed, status, created_at) VALUES (?, ?, 'setup', ?)",
		id, seed, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("create game: %w", err)
	}
	return id, nil
}

// SetStatus advances the recorded phase of a game.
func (s *AuditStore) SetStatus(gameID, status string) error {
	_, err := s.db.Exec("UPDATE game SET status = ? WHERE id = ?", status, gameID)
	if err != nil {
		return fmt.Errorf("set game status: %w", err)
	}
	return nil
}

// RecordDeal stores each seat's name and original card.
func (s *AuditStore) RecordDeal(gameID string, store *IdentityStore) error {
	for seat := Seat(1); seat <= NumSeats; seat++ {
		_, err := s.db.Exec(
			"INSERT INTO game_seat (game_id, seat, name, original_role) VALUES (?, ?, ?, ?)",
			gameID, int(seat), store.Name(seat), string(store.OriginalRole(seat)))
		if err != nil {
			return fmt.Errorf("record deal for seat %d: %w", seat, err)
		}
	}
	return nil
}

// nextSeq returns the next free action sequence number for a game.
func (s *AuditStore) nextSeq(gameID string) (int, error) {
	var seq int
	err := s.db.Get(&seq, "SELECT COALESCE(MAX(seq)+1, 0) FROM game_action WHERE game_id = ?", gameID)
	return seq, err
}

// RecordNightEntry appends one night log entry.
func (s *AuditStore) RecordNightEntry(gameID string, e NightLogEntry) error {
	seq, err := s.nextSeq(gameID)
	if err != nil {
		return fmt.Errorf("record night entry: %w", err)
	}
	actors, _ := json.Marshal(e.Actors)
	targets, _ := json.Marshal(e.Targets)
	observed, _ := json.Marshal(e.Observed)

	_, err = s.db.Exec(`
		INSERT INTO game_action (game_id, seq, phase, role, actors, action_type, targets, observed, visibility, description)
		VALUES (?, ?, 'night', ?, ?, ?, ?, ?, ?, ?)`,
		gameID, seq, string(e.Role), string(actors), e.ActionType, string(targets),
		string(observed), e.Visibility, describeEntry(e))
	if err != nil {
		return fmt.Errorf("record night entry: %w", err)
	}
	return nil
}

// RecordVote appends one execution vote. Votes are recorded as resolved:
// hidden while the voting phase is open, public afterwards.
func (s *AuditStore) RecordVote(gameID string, voter, target Seat) error {
	seq, err := s.nextSeq(gameID)
	if err != nil {
		return fmt.Errorf("record vote: %w", err)
	}
	actors, _ := json.Marshal([]Seat{voter})
	targets, _ := json.Marshal([]Location{SeatLocation(target)})
	_, err = s.db.Exec(`
		INSERT INTO game_action (game_id, seq, phase, actors, action_type, targets, visibility, description)
		VALUES (?, ?, 'voting', ?, ?, ?, ?, ?)`,
		gameID, seq, string(actors), ActionDayVote, string(targets), VisibilityResolved,
		fmt.Sprintf("seat %d voted for seat %d", voter, target))
	if err != nil {
		return fmt.Errorf("record vote: %w", err)
	}
	return nil
}

// RecordOutcome stores the final roles, execution set, and winners, and
// marks the game resolved.
func (s *AuditStore) RecordOutcome(gameID string, store *IdentityStore, outcome WinOutcome) error {
	executed := make(map[Seat]bool, len(outcome.Executed))
	for _, seat := range outcome.Executed {
		executed[seat] = true
	}
	winners := make(map[Seat]bool, len(outcome.Winners))
	for _, seat := range outcome.Winners {
		winners[seat] = true
	}

	for seat := Seat(1); seat <= NumSeats; seat++ {
		_, err := s.db.Exec(
			"UPDATE game_seat SET final_role = ?, executed = ?, won = ? WHERE game_id = ? AND seat = ?",
			string(store.CurrentRole(seat)), executed[seat], winners[seat], gameID, int(seat))
		if err != nil {
			return fmt.Errorf("record outcome for seat %d: %w", seat, err)
		}
	}

	seq, err := s.nextSeq(gameID)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	actors, _ := json.Marshal(outcome.Executed)
	_, err = s.db.Exec(`
		INSERT INTO game_action (game_id, seq, phase, actors, action_type, visibility, description)
		VALUES (?, ?, 'resolution', ?, ?, ?, ?)`,
		gameID, seq, string(actors), ActionExecution, VisibilityPublic,
		fmt.Sprintf("executed %v; %s faction wins (%s)", outcome.Executed, outcome.Faction, outcome.Reason))
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}

	_, err = s.db.Exec("UPDATE game SET status = 'resolved', winner = ? WHERE id = ?", string(outcome.Faction), gameID)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// RevealActions is the privileged full-detail query: every action for a
// game in execution order, regardless of visibility.
func (s *AuditStore) RevealActions(gameID string) ([]ActionRecord, error) {
	var actions []ActionRecord
	err := s.db.Select(&actions, `
		SELECT game_id, seq, phase, role, actors, action_type, targets, observed, visibility, description
		FROM game_action
		WHERE game_id = ?
		ORDER BY seq ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("reveal actions: %w", err)
	}
	return actions, nil
}

// canSeeAction applies the visibility rules for an in-game viewer. Resolved
// entries open up once the game is over; actor entries require the viewer
// to be among the actors; team entries go to werewolf-aligned seats.
func canSeeAction(a ActionRecord, viewer Seat, viewerFaction Faction, gameResolved bool) bool {
	switch a.Visibility {
	case VisibilityPublic:
		return true
	case VisibilityResolved:
		return gameResolved
	case VisibilityTeamWerewolf:
		return viewerFaction == FactionWerewolf
	case VisibilityActor:
		var actors []Seat
		if err := json.Unmarshal([]byte(a.Actors), &actors); err != nil {
			return false
		}
		for _, seat := range actors {
			if seat == viewer {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ActionsForSeat returns the actions one seat is allowed to see.
func (s *AuditStore) ActionsForSeat(gameID string, viewer Seat, viewerFaction Faction) ([]ActionRecord, error) {
	all, err := s.RevealActions(gameID)
	if err != nil {
		return nil, err
	}

	var status string
	if err := s.db.Get(&status, "SELECT status FROM game WHERE id = ?", gameID); err != nil {
		return nil, fmt.Errorf("actions for seat: %w", err)
	}
	resolved := status == "resolved"

	var visible []ActionRecord
	for _, a := range all {
		if canSeeAction(a, viewer, viewerFaction, resolved) {
			visible = append(visible, a)
		}
	}
	return visible, nil
}

// describeEntry builds the human-readable history line for a night entry.
func describeEntry(e NightLogEntry) string {
	switch e.ActionType {
	case ActionWerewolfWake:
		return fmt.Sprintf("werewolves %v woke and saw each other", e.Actors)
	case ActionWerewolfPeek:
		if len(e.Targets) == 0 {
			return fmt.Sprintf("lone wolf at seat %d declined the center peek", e.Actors[0])
		}
		return fmt.Sprintf("lone wolf at seat %d viewed %s", e.Actors[0], e.Targets[0])
	case ActionMinionLearn:
		return fmt.Sprintf("minion at seat %d learned the werewolf seats %v", e.Actors[0], e.Observed.WerewolfSeats)
	case ActionSeerViewPlayer, ActionSeerViewCenter:
		return fmt.Sprintf("seer at seat %d viewed %s", e.Actors[0], e.Observed)
	case ActionRobberSwap:
		return fmt.Sprintf("robber at seat %d swapped with %s and saw their new card", e.Actors[0], e.Targets[0])
	case ActionRobberSkip:
		return fmt.Sprintf("robber at seat %d took no action", e.Actors[0])
	case ActionTroublemakerSwap:
		return fmt.Sprintf("troublemaker at seat %d swapped %s and %s", e.Actors[0], e.Targets[0], e.Targets[1])
	case ActionDrunkSwap:
		return fmt.Sprintf("drunk at seat %d swapped with %s unseen", e.Actors[0], e.Targets[0])
	case ActionInsomniacCheck:
		return fmt.Sprintf("insomniac at seat %d checked their final card", e.Actors[0])
	}
	return e.ActionType
}
