package main

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Phase is the session's lifecycle state. Transitions are strictly forward.
type Phase string

const (
	PhaseSetup      Phase = "setup"
	PhaseNight      Phase = "night"
	PhaseDiscussion Phase = "discussion"
	PhaseVoting     Phase = "voting"
	PhaseResolved   Phase = "resolved"
)

// ErrInvalidPhase means an operation was invoked outside its allowed
// session state.
var ErrInvalidPhase = errors.New("operation not allowed in current phase")

// GameSession orchestrates one game from deal to resolution. All mutation
// funnels through its phase-gated methods; collaborators (terminal UI, LLM
// agents, observer feed) only ever supply completed decisions or read
// results.
type GameSession struct {
	identity *IdentityStore
	pool     []Role
	order    []Role
	seed     int64
	phase    Phase

	resolver         *NightResolver
	votes            VoteRecord
	tally            TallyResult
	outcome          *WinOutcome
	discussionRounds int

	audit  *AuditStore // optional
	gameID string
	hub    *Hub // optional observer feed
}

// NewGameSession builds a session for six named players. The role pool and
// night order are injected so alternate sets can be exercised in tests
// without touching shared state.
func NewGameSession(names [NumSeats]string, pool []Role, order []Role, seed int64) *GameSession {
	return &GameSession{
		identity: NewIdentityStore(names),
		pool:     pool,
		order:    order,
		seed:     seed,
		phase:    PhaseSetup,
	}
}

// Phase returns the current lifecycle state.
func (g *GameSession) Phase() Phase {
	return g.phase
}

// GameID returns the audit identifier, empty when no audit store is
// attached.
func (g *GameSession) GameID() string {
	return g.gameID
}

// AttachAudit wires an audit store. Only allowed before the deal.
func (g *GameSession) AttachAudit(store *AuditStore) error {
	if g.phase != PhaseSetup {
		return fmt.Errorf("%w: attach audit during %s", ErrInvalidPhase, g.phase)
	}
	id, err := store.CreateGame(g.seed)
	if err != nil {
		return err
	}
	g.audit = store
	g.gameID = id
	return nil
}

// AttachObserver wires the spectator hub. Only allowed before the deal.
func (g *GameSession) AttachObserver(hub *Hub) error {
	if g.phase != PhaseSetup {
		return fmt.Errorf("%w: attach observer during %s", ErrInvalidPhase, g.phase)
	}
	g.hub = hub
	return nil
}

// Deal shuffles the injected pool with the session seed and assigns cards.
// On success the session moves to the night phase.
func (g *GameSession) Deal() error {
	if g.phase != PhaseSetup {
		return fmt.Errorf("%w: deal during %s", ErrInvalidPhase, g.phase)
	}
	if err := g.identity.Deal(g.pool, g.seed); err != nil {
		return err
	}
	if g.audit != nil {
		if err := g.audit.RecordDeal(g.gameID, g.identity); err != nil {
			return err
		}
	}
	log.Printf("Session: dealt %d cards to %d seats (seed %d)", len(g.pool), NumSeats, g.seed)
	g.transition(PhaseNight)
	return nil
}

// RunNight executes every actionable role's effect in the injected order,
// pulling decisions from the per-seat suppliers. On success the session
// moves to discussion.
func (g *GameSession) RunNight(ctx context.Context, suppliers map[Seat]DecisionSupplier) error {
	if g.phase != PhaseNight {
		return fmt.Errorf("%w: night during %s", ErrInvalidPhase, g.phase)
	}
	g.resolver = NewNightResolver(g.identity, g.order)
	if err := g.resolver.Run(ctx, suppliers); err != nil {
		return err
	}
	if g.audit != nil {
		for _, entry := range g.resolver.Log() {
			if err := g.audit.RecordNightEntry(g.gameID, entry); err != nil {
				return err
			}
		}
	}
	g.transition(PhaseDiscussion)
	return nil
}

// EndDiscussion closes the discussion phase. The discussion itself is
// opaque to the engine; only the round count is kept.
func (g *GameSession) EndDiscussion(rounds int) error {
	if g.phase != PhaseDiscussion {
		return fmt.Errorf("%w: end discussion during %s", ErrInvalidPhase, g.phase)
	}
	g.discussionRounds = rounds
	log.Printf("Session: discussion closed after %d round(s)", rounds)
	g.transition(PhaseVoting)
	return nil
}

// SubmitVotes accepts the completed vote record, tallies it, resolves the
// winner against the final identities, and moves to the terminal state.
// A rejected record or a failed audit write leaves the session untouched
// and still in the voting phase.
func (g *GameSession) SubmitVotes(votes VoteRecord) error {
	if g.phase != PhaseVoting {
		return fmt.Errorf("%w: voting during %s", ErrInvalidPhase, g.phase)
	}

	tally, err := TallyVotes(votes)
	if err != nil {
		return err
	}

	record := make(VoteRecord, len(votes))
	for voter, target := range votes {
		record[voter] = target
	}
	outcome := ResolveWinner(g.identity.FinalRoles(), record, tally.Executed)

	if g.audit != nil {
		for voter := Seat(1); voter <= NumSeats; voter++ {
			if err := g.audit.RecordVote(g.gameID, voter, record[voter]); err != nil {
				return err
			}
		}
		if err := g.audit.RecordOutcome(g.gameID, g.identity, outcome); err != nil {
			return err
		}
	}

	g.votes = record
	g.tally = tally
	g.outcome = &outcome
	g.transition(PhaseResolved)
	if g.hub != nil {
		g.hub.BroadcastEvent(ResultEvent(outcome, g.identity))
	}
	return nil
}

// Name returns the player name at a seat.
func (g *GameSession) Name(seat Seat) string {
	return g.identity.Name(seat)
}

// OriginalRole returns a seat's dealt card. Private to that seat until the
// reveal; the hot-seat UI and agents use it to show each player their own
// card.
func (g *GameSession) OriginalRole(seat Seat) (Role, error) {
	if g.phase == PhaseSetup {
		return "", fmt.Errorf("%w: roles not dealt yet", ErrInvalidPhase)
	}
	return g.identity.OriginalRole(seat), nil
}

// Outcome returns the terminal result. Only valid once resolved.
func (g *GameSession) Outcome() (WinOutcome, error) {
	if g.phase != PhaseResolved {
		return WinOutcome{}, fmt.Errorf("%w: outcome during %s", ErrInvalidPhase, g.phase)
	}
	return *g.outcome, nil
}

// Tally returns the vote counts and pre-cascade execution set. Only valid
// once resolved.
func (g *GameSession) Tally() (TallyResult, error) {
	if g.phase != PhaseResolved {
		return TallyResult{}, fmt.Errorf("%w: tally during %s", ErrInvalidPhase, g.phase)
	}
	return g.tally, nil
}

// FinalRoles returns the post-swap seat mapping. Only valid once resolved.
func (g *GameSession) FinalRoles() (map[Seat]Role, error) {
	if g.phase != PhaseResolved {
		return nil, fmt.Errorf("%w: final roles during %s", ErrInvalidPhase, g.phase)
	}
	return g.identity.FinalRoles(), nil
}

// RevealNightLog is the privileged full-detail query. Only valid once
// resolved; in-game players never see it.
func (g *GameSession) RevealNightLog() ([]NightLogEntry, error) {
	if g.phase != PhaseResolved {
		return nil, fmt.Errorf("%w: reveal during %s", ErrInvalidPhase, g.phase)
	}
	entries := make([]NightLogEntry, len(g.resolver.Log()))
	copy(entries, g.resolver.Log())
	return entries, nil
}

func (g *GameSession) transition(next Phase) {
	log.Printf("Session: phase %s -> %s", g.phase, next)
	g.phase = next
	if g.audit != nil {
		if err := g.audit.SetStatus(g.gameID, string(next)); err != nil {
			logError("transition: SetStatus", err)
		}
	}
	if g.hub != nil {
		g.hub.BroadcastEvent(PhaseEvent(next))
	}
}
