package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const agentSystemPrompt = `You are playing a seat in a one-night social deduction game with six players and three face-down center cards. You know only your own dealt card and whatever your night action showed you. Cards may have moved during the night, so your current card can differ from the one you were dealt. Werewolves and the minion win by avoiding execution; everyone else wins by executing a werewolf. Answer exactly in the format requested, nothing else.`

// buildAgentCallOpts builds LLM call options from the config.
func buildAgentCallOpts(cfg AppConfig) []llms.CallOption {
	var opts []llms.CallOption
	if cfg.AgentTemperature != "" {
		if f, err := strconv.ParseFloat(cfg.AgentTemperature, 64); err == nil {
			opts = append(opts, llms.WithTemperature(f))
			log.Printf("Agents: temperature=%.2f", f)
		} else {
			log.Printf("Agents: invalid temperature %q: %v", cfg.AgentTemperature, err)
		}
	}
	return opts
}

// initAgentModel sets up the shared LLM client from config. All six agents
// use the same model; their private context lives in each LLMAgent.
func initAgentModel(cfg AppConfig) (llms.Model, error) {
	provider := cfg.AgentProvider
	model := cfg.AgentModel

	switch provider {
	case "ollama":
		llm, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(cfg.AgentOllamaURL))
		if err != nil {
			return nil, fmt.Errorf("init Ollama (%s at %s): %w", model, cfg.AgentOllamaURL, err)
		}
		log.Printf("Agents: Ollama model=%s url=%s", model, cfg.AgentOllamaURL)
		return llm, nil
	case "openai":
		llm, err := openai.New(openai.WithModel(model))
		if err != nil {
			return nil, fmt.Errorf("init OpenAI (%s): %w", model, err)
		}
		log.Printf("Agents: OpenAI model=%s", model)
		return llm, nil
	case "claude":
		llm, err := anthropic.New(anthropic.WithModel(model))
		if err != nil {
			return nil, fmt.Errorf("init Claude (%s): %w", model, err)
		}
		log.Printf("Agents: Claude model=%s", model)
		return llm, nil
	case "gemini":
		llm, err := googleai.New(context.Background(), googleai.WithDefaultModel(model))
		if err != nil {
			return nil, fmt.Errorf("init Gemini (%s): %w", model, err)
		}
		log.Printf("Agents: Gemini model=%s", model)
		return llm, nil
	case "groq":
		llm, err := openai.New(
			openai.WithModel(model),
			openai.WithBaseURL("https://api.groq.com/openai/v1"),
			openai.WithToken(cfg.GroqAPIKey),
		)
		if err != nil {
			return nil, fmt.Errorf("init Groq (%s): %w", model, err)
		}
		log.Printf("Agents: Groq model=%s", model)
		return llm, nil
	case "openai-compatible":
		if cfg.AgentURL == "" {
			return nil, fmt.Errorf("agent_url is required for openai-compatible provider")
		}
		opts := []openai.Option{
			openai.WithModel(model),
			openai.WithBaseURL(cfg.AgentURL),
		}
		if cfg.AgentAPIKey != "" {
			opts = append(opts, openai.WithToken(cfg.AgentAPIKey))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("init openai-compatible (%s at %s): %w", model, cfg.AgentURL, err)
		}
		log.Printf("Agents: openai-compatible model=%s url=%s", model, cfg.AgentURL)
		return llm, nil
	default:
		return nil, fmt.Errorf("unknown agent provider %q", provider)
	}
}

// LLMAgent plays one seat. It tracks only what that seat is entitled to
// know: its dealt card, its own night observation, and the public table
// talk. On a model or parse failure it falls back to a legal default so a
// flaky provider never wedges the game.
type LLMAgent struct {
	llm      llms.Model
	callOpts []llms.CallOption
	seat     Seat
	name     string
	role     Role
	memory   []string // private knowledge lines, in the order acquired
	rng      *rand.Rand
}

func NewLLMAgent(llm llms.Model, callOpts []llms.CallOption, seat Seat, name string, role Role, rng *rand.Rand) *LLMAgent {
	a := &LLMAgent{llm: llm, callOpts: callOpts, seat: seat, name: name, role: role, rng: rng}
	a.remember(fmt.Sprintf("You are %s at seat %d. You were dealt the %s card. %s", name, seat, role, role.Description()))
	return a
}

func (a *LLMAgent) remember(line string) {
	a.memory = append(a.memory, line)
}

// generate runs one completion and returns the full trimmed text. When
// onChunk is non-nil it receives each token as it streams in.
func (a *LLMAgent) generate(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, agentSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman,
			"What you know:\n"+strings.Join(a.memory, "\n")+"\n\n"+prompt),
	}

	var fullText strings.Builder
	opts := append(a.callOpts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
		text := string(chunk)
		fullText.WriteString(text)
		if onChunk != nil {
			onChunk(text)
		}
		return nil
	}))

	_, err := a.llm.GenerateContent(ctx, messages, opts...)
	return strings.TrimSpace(fullText.String()), err
}

// nightChoiceWire is the JSON shape agents answer night prompts with.
type nightChoiceWire struct {
	Action string `json:"action"`
	Seat   int    `json:"seat"`
	Seat2  int    `json:"seat2"`
	Slots  []int  `json:"slots"`
}

// parseNightChoice extracts the first JSON object from the model's reply.
func parseNightChoice(text string) (NightChoice, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return NightChoice{}, fmt.Errorf("no JSON object in reply %q", text)
	}
	var wire nightChoiceWire
	if err := json.Unmarshal([]byte(text[start:end+1]), &wire); err != nil {
		return NightChoice{}, fmt.Errorf("parse reply %q: %w", text, err)
	}
	return NightChoice{
		Kind:  NightChoiceKind(wire.Action),
		Seat:  Seat(wire.Seat),
		Seat2: Seat(wire.Seat2),
		Slots: wire.Slots,
	}, nil
}

// nightPrompt describes the legal options for the given role in the JSON
// shape parseNightChoice expects.
func nightPrompt(req NightRequest) string {
	var b strings.Builder
	if req.RetryNote != "" {
		b.WriteString("Your previous choice was rejected: " + req.RetryNote + "\n")
	}
	b.WriteString("It is your night action. ")
	switch req.Role {
	case RoleWerewolf:
		b.WriteString(`You are the only werewolf at the table. You may view one center card or go back to sleep. Answer with JSON: {"action":"peek_center","slots":[N]} with N 1-3, or {"action":"skip"}.`)
	case RoleSeer:
		b.WriteString(`You may view one other player's current card or two center cards. Answer with JSON: {"action":"view_seat","seat":N} with N 1-6 and not your own seat, or {"action":"view_center","slots":[A,B]} with two distinct slots 1-3.`)
	case RoleRobber:
		b.WriteString(`You may swap your card with another player's and look at your new card, or do nothing. Answer with JSON: {"action":"swap_seat","seat":N} with N 1-6 and not your own seat, or {"action":"skip"}.`)
	case RoleTroublemaker:
		b.WriteString(`You must swap the cards of two other players without looking at them. Answer with JSON: {"action":"swap_others","seat":A,"seat2":B} with two distinct seats 1-6, neither your own.`)
	case RoleDrunk:
		b.WriteString(`You must exchange your card with one center card without looking at it. Answer with JSON: {"action":"swap_center","slots":[N]} with N 1-3.`)
	default:
		b.WriteString(`Answer with JSON: {"action":"skip"}.`)
	}
	return b.String()
}

// fallbackChoice returns a legal default for the role.
func (a *LLMAgent) fallbackChoice(role Role) NightChoice {
	switch role {
	case RoleWerewolf, RoleRobber:
		return NightChoice{Kind: ChoiceSkip}
	case RoleSeer:
		return NightChoice{Kind: ChoiceViewCenter, Slots: []int{1, 2}}
	case RoleTroublemaker:
		seats := a.rng.Perm(NumSeats)
		targets := make([]Seat, 0, 2)
		for _, n := range seats {
			s := Seat(n + 1)
			if s != a.seat {
				targets = append(targets, s)
			}
			if len(targets) == 2 {
				break
			}
		}
		return NightChoice{Kind: ChoiceSwapOthers, Seat: targets[0], Seat2: targets[1]}
	case RoleDrunk:
		return NightChoice{Kind: ChoiceSwapCenter, Slots: []int{a.rng.Intn(NumCenter) + 1}}
	default:
		return NightChoice{Kind: ChoiceSkip}
	}
}

func (a *LLMAgent) ChooseNightAction(ctx context.Context, req NightRequest) (NightChoice, error) {
	reply, err := a.generate(ctx, nightPrompt(req), nil)
	if err != nil {
		log.Printf("Agent %s (seat %d): model error, using fallback: %v", a.name, a.seat, err)
		return a.fallbackChoice(req.Role), nil
	}
	choice, err := parseNightChoice(reply)
	if err != nil {
		log.Printf("Agent %s (seat %d): unparseable reply, using fallback: %v", a.name, a.seat, err)
		return a.fallbackChoice(req.Role), nil
	}
	return choice, nil
}

func (a *LLMAgent) ObserveNight(seat Seat, role Role, result ObservedResult) {
	if s := result.String(); s != "" {
		a.remember("Night result of your " + string(role) + " action: " + s)
	} else {
		a.remember("Your " + string(role) + " action completed with nothing to see.")
	}
}

// HearSpeech feeds one line of public table talk into the agent's memory.
func (a *LLMAgent) HearSpeech(speaker string, text string) {
	a.remember(fmt.Sprintf("%s said: %s", speaker, text))
}

// Speak produces one discussion statement. Tokens stream through onChunk.
func (a *LLMAgent) Speak(ctx context.Context, onChunk func(string)) (string, error) {
	prompt := "It is the day discussion. In one or two sentences, say what you want the table to hear. You may bluff, accuse, or share information. Speak in first person, plain text only."
	text, err := a.generate(ctx, prompt, onChunk)
	if err != nil {
		return "", err
	}
	return text, nil
}

func (a *LLMAgent) ChooseVote(ctx context.Context, req VoteRequest) (Seat, error) {
	prompt := "Voting time. Name the seat number (1-6, not your own) of the player you vote to execute. Answer with the number only."
	if req.RetryNote != "" {
		prompt = "Your previous vote was rejected: " + req.RetryNote + "\n" + prompt
	}
	reply, err := a.generate(ctx, prompt, nil)
	if err != nil {
		log.Printf("Agent %s (seat %d): model error on vote, using fallback: %v", a.name, a.seat, err)
		return a.fallbackVote(), nil
	}
	for _, field := range strings.Fields(strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return ' '
	}, reply)) {
		if n, err := strconv.Atoi(field); err == nil {
			s := Seat(n)
			if validSeat(s) && s != a.seat {
				return s, nil
			}
		}
	}
	log.Printf("Agent %s (seat %d): unparseable vote %q, using fallback", a.name, a.seat, reply)
	return a.fallbackVote(), nil
}

func (a *LLMAgent) fallbackVote() Seat {
	for {
		s := Seat(a.rng.Intn(NumSeats) + 1)
		if s != a.seat {
			return s
		}
	}
}
