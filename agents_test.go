package main

import (
	"math/rand"
	"strings"
	"testing"
)

func TestParseNightChoice(t *testing.T) {
	choice, err := parseNightChoice(`{"action":"view_seat","seat":3}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if choice.Kind != ChoiceViewSeat || choice.Seat != 3 {
		t.Errorf("choice %+v", choice)
	}

	// Models wrap JSON in prose; the object still has to come out.
	choice, err = parseNightChoice("I will swap them. {\"action\":\"swap_others\",\"seat\":2,\"seat2\":5} Done.")
	if err != nil {
		t.Fatalf("parse wrapped: %v", err)
	}
	if choice.Kind != ChoiceSwapOthers || choice.Seat != 2 || choice.Seat2 != 5 {
		t.Errorf("wrapped choice %+v", choice)
	}

	choice, err = parseNightChoice(`{"action":"view_center","slots":[1,3]}`)
	if err != nil {
		t.Fatalf("parse slots: %v", err)
	}
	if len(choice.Slots) != 2 || choice.Slots[0] != 1 || choice.Slots[1] != 3 {
		t.Errorf("slots %v", choice.Slots)
	}

	if _, err := parseNightChoice("I refuse to answer."); err == nil {
		t.Error("prose without JSON parsed")
	}
	if _, err := parseNightChoice("{broken"); err == nil {
		t.Error("malformed JSON parsed")
	}
}

func TestNightPromptCarriesRetryNote(t *testing.T) {
	req := NightRequest{Seat: 2, Role: RoleSeer, RetryNote: "seer cannot view their own card"}
	prompt := nightPrompt(req)
	if !strings.Contains(prompt, "seer cannot view their own card") {
		t.Error("retry note missing from prompt")
	}
	if !strings.Contains(prompt, "view_seat") || !strings.Contains(prompt, "view_center") {
		t.Error("seer prompt does not describe both modes")
	}
}

func TestFallbackChoicesAreLegal(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	agent := &LLMAgent{seat: 4, rng: rng}

	for i := 0; i < 50; i++ {
		tm := agent.fallbackChoice(RoleTroublemaker)
		if tm.Kind != ChoiceSwapOthers {
			t.Fatalf("troublemaker fallback kind %s", tm.Kind)
		}
		if tm.Seat == agent.seat || tm.Seat2 == agent.seat {
			t.Fatalf("troublemaker fallback picked own seat: %+v", tm)
		}
		if tm.Seat == tm.Seat2 || !validSeat(tm.Seat) || !validSeat(tm.Seat2) {
			t.Fatalf("troublemaker fallback pair invalid: %+v", tm)
		}

		drunk := agent.fallbackChoice(RoleDrunk)
		if drunk.Kind != ChoiceSwapCenter || len(drunk.Slots) != 1 || !validSlot(drunk.Slots[0]) {
			t.Fatalf("drunk fallback invalid: %+v", drunk)
		}
	}

	if agent.fallbackChoice(RoleWerewolf).Kind != ChoiceSkip {
		t.Error("lone wolf fallback should skip")
	}
	if agent.fallbackChoice(RoleRobber).Kind != ChoiceSkip {
		t.Error("robber fallback should skip")
	}
	seer := agent.fallbackChoice(RoleSeer)
	if seer.Kind != ChoiceViewCenter || len(seer.Slots) != 2 || seer.Slots[0] == seer.Slots[1] {
		t.Errorf("seer fallback invalid: %+v", seer)
	}
}

func TestFallbackVoteNeverSelf(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	agent := &LLMAgent{seat: 1, rng: rng}
	for i := 0; i < 100; i++ {
		v := agent.fallbackVote()
		if !validSeat(v) || v == agent.seat {
			t.Fatalf("fallback vote %d", v)
		}
	}
}

func TestAgentMemoryAccumulates(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	agent := NewLLMAgent(nil, nil, 2, "Bob", RoleSeer, rng)

	if len(agent.memory) != 1 || !strings.Contains(agent.memory[0], "seat 2") {
		t.Fatalf("initial memory %v", agent.memory)
	}

	agent.ObserveNight(2, RoleSeer, ObservedResult{
		Revealed: []RevealedRole{{SeatLocation(4), RoleWerewolf}},
	})
	if len(agent.memory) != 2 || !strings.Contains(agent.memory[1], "seat 4 is werewolf") {
		t.Errorf("memory after observation %v", agent.memory)
	}

	agent.HearSpeech("Alice", "I am the seer.")
	if len(agent.memory) != 3 || !strings.Contains(agent.memory[2], "Alice said") {
		t.Errorf("memory after speech %v", agent.memory)
	}
}
