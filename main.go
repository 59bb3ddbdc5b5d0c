package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"
)

func main() {
	fv := registerFlags()
	flag.Parse()
	if err := run(fv); err != nil {
		log.Fatalf("Fatal: %v", err)
	}
}

func run(fv flagValues) error {
	cfg := loadConfig(*fv.configPath)
	fv.applyTo(&cfg)

	logger, err := NewAppLogger(cfg.toLogConfig())
	if err != nil {
		log.Printf("Extended logging disabled: %v", err)
	} else {
		appLogger = logger
	}
	defer CloseAppLogger()

	names, err := parseNames(cfg.Names)
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	log.Printf("Game: seed=%d mode=%s", seed, cfg.Mode)

	session := NewGameSession(names, StarterPool(), DefaultNightOrder, seed)

	store, err := OpenAuditStore(cfg.DB)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer store.Close()
	if err := session.AttachAudit(store); err != nil {
		return err
	}

	if cfg.ObserveAddr != "" {
		hub := startObserverServer(cfg.ObserveAddr)
		defer hub.stop()
		if err := session.AttachObserver(hub); err != nil {
			return err
		}
	}

	if err := session.Deal(); err != nil {
		return fmt.Errorf("deal: %w", err)
	}
	LogDBState("after deal", store)

	ctx := context.Background()
	switch cfg.Mode {
	case "hotseat":
		err = runHotSeat(ctx, session, cfg)
	case "llm":
		err = runAgents(ctx, session, cfg, seed)
	default:
		err = fmt.Errorf("unknown mode %q (want hotseat or llm)", cfg.Mode)
	}
	if err != nil {
		return err
	}
	LogDBState("after resolution", store)
	return nil
}

// parseNames splits the comma-separated name list and requires exactly six
// non-empty entries.
func parseNames(csv string) ([NumSeats]string, error) {
	var names [NumSeats]string
	parts := strings.Split(csv, ",")
	if len(parts) != NumSeats {
		return names, fmt.Errorf("need exactly %d player names, got %d", NumSeats, len(parts))
	}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return names, fmt.Errorf("player name %d is empty", i+1)
		}
		names[i] = p
	}
	return names, nil
}

// runHotSeat plays one game with six humans sharing the terminal.
func runHotSeat(ctx context.Context, session *GameSession, cfg AppConfig) error {
	console := NewConsole()
	fmt.Println("=== One Night: hot-seat mode ===")
	fmt.Println("Six players share this terminal. Cards stay secret between hand-offs.")
	console.pause("")

	if err := ShowInitialRoles(console, session); err != nil {
		return err
	}

	suppliers := make(map[Seat]DecisionSupplier, NumSeats)
	for seat := Seat(1); seat <= NumSeats; seat++ {
		role, err := session.OriginalRole(seat)
		if err != nil {
			return err
		}
		suppliers[seat] = NewConsoleSupplier(console, seat, session.Name(seat), role)
	}

	if err := session.RunNight(ctx, suppliers); err != nil {
		return fmt.Errorf("night: %w", err)
	}

	RunDiscussionTimer(console, cfg.Timer)
	if err := session.EndDiscussion(1); err != nil {
		return err
	}

	votes, err := collectVotes(ctx, suppliers)
	if err != nil {
		return err
	}
	if err := session.SubmitVotes(votes); err != nil {
		return fmt.Errorf("resolve votes: %w", err)
	}
	return PrintResults(session, cfg.Reveal)
}

// runAgents plays one fully automated game between six LLM agents.
func runAgents(ctx context.Context, session *GameSession, cfg AppConfig, seed int64) error {
	llm, err := initAgentModel(cfg)
	if err != nil {
		return fmt.Errorf("agents: %w", err)
	}
	callOpts := buildAgentCallOpts(cfg)
	rng := rand.New(rand.NewSource(seed + 1))

	agents := make(map[Seat]*LLMAgent, NumSeats)
	suppliers := make(map[Seat]DecisionSupplier, NumSeats)
	for seat := Seat(1); seat <= NumSeats; seat++ {
		role, err := session.OriginalRole(seat)
		if err != nil {
			return err
		}
		agent := NewLLMAgent(llm, callOpts, seat, session.Name(seat), role, rng)
		agents[seat] = agent
		suppliers[seat] = agent
	}

	if err := session.RunNight(ctx, suppliers); err != nil {
		return fmt.Errorf("night: %w", err)
	}

	for round := 1; round <= cfg.Rounds; round++ {
		fmt.Printf("\n=== Discussion round %d ===\n", round)
		for seat := Seat(1); seat <= NumSeats; seat++ {
			agent := agents[seat]
			fmt.Printf("%s: ", agent.name)
			speech, err := agent.Speak(ctx, func(chunk string) { fmt.Print(chunk) })
			fmt.Println()
			if err != nil {
				log.Printf("Agent %s: speech failed: %v", agent.name, err)
				continue
			}
			for other, listener := range agents {
				if other != seat {
					listener.HearSpeech(agent.name, speech)
				}
			}
		}
	}
	if err := session.EndDiscussion(cfg.Rounds); err != nil {
		return err
	}

	votes, err := collectVotes(ctx, suppliers)
	if err != nil {
		return err
	}
	if err := session.SubmitVotes(votes); err != nil {
		return fmt.Errorf("resolve votes: %w", err)
	}
	return PrintResults(session, cfg.Reveal)
}

// collectVotes asks every seat for its vote in seat order, re-asking with
// the rejection reason when a supplier returns something out of range.
func collectVotes(ctx context.Context, suppliers map[Seat]DecisionSupplier) (VoteRecord, error) {
	votes := make(VoteRecord, NumSeats)
	for seat := Seat(1); seat <= NumSeats; seat++ {
		supplier := suppliers[seat]
		if supplier == nil {
			return nil, fmt.Errorf("no decision supplier for seat %d", seat)
		}
		req := VoteRequest{Seat: seat}
		for attempt := 0; ; attempt++ {
			target, err := supplier.ChooseVote(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("vote for seat %d: %w", seat, err)
			}
			if !validSeat(target) {
				req.RetryNote = fmt.Sprintf("seat %d is out of range", target)
			} else if target == seat {
				req.RetryNote = "you cannot vote for yourself"
			} else {
				votes[seat] = target
				break
			}
			if attempt+1 >= maxChoiceRetries {
				return nil, fmt.Errorf("%w: seat %d exhausted vote retries", ErrIllegalAction, seat)
			}
			log.Printf("Seat %d supplied illegal vote: %s", seat, req.RetryNote)
		}
	}
	return votes, nil
}
