package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"
)

// AppConfig holds all configuration.
// Priority (lowest → highest): defaults < env vars < JSON config file < CLI flags.
type AppConfig struct {
	// Game
	Names  string `json:"names"`  // six player names, comma-separated
	Seed   int64  `json:"seed"`   // deal seed; 0 = derive from clock
	Timer  int    `json:"timer"`  // hot-seat discussion length in seconds
	Rounds int    `json:"rounds"` // discussion speech rounds in agent mode
	Reveal bool   `json:"reveal"` // print the night log after resolution
	Mode   string `json:"mode"`   // hotseat | llm

	// Audit store and observer feed
	DB          string `json:"db"`           // sqlite connection string
	ObserveAddr string `json:"observe_addr"` // spectator feed listen address, empty = disabled

	// Logging (extended diagnostics, off by default)
	LogOutputDir string `json:"log_output_dir"`
	LogDB        bool   `json:"log_db"`
	LogWS        bool   `json:"log_ws"`
	LogDebug     bool   `json:"log_debug"`

	// LLM agents
	AgentProvider    string `json:"agent_provider"`    // ollama | openai | claude | gemini | groq | openai-compatible
	AgentModel       string `json:"agent_model"`       // model name
	AgentOllamaURL   string `json:"agent_ollama_url"`  // Ollama server URL
	AgentURL         string `json:"agent_url"`         // base URL for openai-compatible
	AgentAPIKey      string `json:"agent_api_key"`     // API key for openai-compatible
	AgentTemperature string `json:"agent_temperature"` // float 0-1 as string
	GroqAPIKey       string `json:"groq_api_key"`      // API key for groq provider
}

func (cfg AppConfig) toLogConfig() LogConfig {
	return LogConfig{
		OutputDir: cfg.LogOutputDir,
		LogDB:     cfg.LogDB,
		LogWS:     cfg.LogWS,
		Debug:     cfg.LogDebug,
	}
}

func defaultConfig() AppConfig {
	return AppConfig{
		Names:          "P1,P2,P3,P4,P5,P6",
		Timer:          180,
		Rounds:         2,
		Mode:           "hotseat",
		DB:             "file::memory:?cache=shared",
		AgentOllamaURL: "http://localhost:11434",
	}
}

// loadConfig builds a config by layering: defaults → env vars → JSON config file.
// CLI flag overrides are applied separately by flagValues.applyTo after flag.Parse.
func loadConfig(configPath string) AppConfig {
	cfg := defaultConfig()

	// Layer 1: env vars
	envStr := os.Getenv
	envBool := func(key string) (val bool, set bool) {
		v := os.Getenv(key)
		if v == "" {
			return false, false
		}
		return v == "1" || v == "true" || v == "yes", true
	}
	envInt := func(key string) (val int64, set bool) {
		v := os.Getenv(key)
		if v == "" {
			return 0, false
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Printf("Config: invalid %s=%q: %v", key, v, err)
			return 0, false
		}
		return n, true
	}

	if v := envStr("NAMES"); v != "" {
		cfg.Names = v
	}
	if v, ok := envInt("SEED"); ok {
		cfg.Seed = v
	}
	if v, ok := envInt("TIMER"); ok {
		cfg.Timer = int(v)
	}
	if v, ok := envInt("ROUNDS"); ok {
		cfg.Rounds = int(v)
	}
	if v, ok := envBool("REVEAL"); ok {
		cfg.Reveal = v
	}
	if v := envStr("MODE"); v != "" {
		cfg.Mode = v
	}
	if v := envStr("DB"); v != "" {
		cfg.DB = v
	}
	if v := envStr("OBSERVE_ADDR"); v != "" {
		cfg.ObserveAddr = v
	}
	if v := envStr("LOG_OUTPUT_DIR"); v != "" {
		cfg.LogOutputDir = v
	}
	if v, ok := envBool("LOG_DB"); ok {
		cfg.LogDB = v
	}
	if v, ok := envBool("LOG_WS"); ok {
		cfg.LogWS = v
	}
	if v, ok := envBool("LOG_DEBUG"); ok {
		cfg.LogDebug = v
	}
	if v := envStr("AGENT_PROVIDER"); v != "" {
		cfg.AgentProvider = v
	}
	if v := envStr("AGENT_MODEL"); v != "" {
		cfg.AgentModel = v
	}
	if v := envStr("AGENT_OLLAMA_URL"); v != "" {
		cfg.AgentOllamaURL = v
	}
	if v := envStr("AGENT_URL"); v != "" {
		cfg.AgentURL = v
	}
	if v := envStr("AGENT_API_KEY"); v != "" {
		cfg.AgentAPIKey = v
	}
	if v := envStr("AGENT_TEMPERATURE"); v != "" {
		cfg.AgentTemperature = v
	}
	if v := envStr("GROQ_API_KEY"); v != "" {
		cfg.GroqAPIKey = v
	}

	// Layer 2: JSON config file — only fields present in the file override env vars
	if data, err := os.ReadFile(configPath); err == nil {
		var overlay map[string]json.RawMessage
		if err := json.Unmarshal(data, &overlay); err != nil {
			log.Printf("Config: failed to parse %s: %v", configPath, err)
		} else {
			applyJSONOverlay(&cfg, overlay)
			log.Printf("Config: loaded from %s", configPath)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("Config: failed to read %s: %v", configPath, err)
	}

	return cfg
}

// applyJSONOverlay only sets fields that are explicitly present in the JSON map.
func applyJSONOverlay(cfg *AppConfig, m map[string]json.RawMessage) {
	str := func(key string, dst *string) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	int64v := func(key string, dst *int64) {
		if v, ok := m[key]; ok {
			json.Unmarshal(v, dst)
		}
	}
	str("names", &cfg.Names)
	int64v("seed", &cfg.Seed)
	integer("timer", &cfg.Timer)
	integer("rounds", &cfg.Rounds)
	boolean("reveal", &cfg.Reveal)
	str("mode", &cfg.Mode)
	str("db", &cfg.DB)
	str("observe_addr", &cfg.ObserveAddr)
	str("log_output_dir", &cfg.LogOutputDir)
	boolean("log_db", &cfg.LogDB)
	boolean("log_ws", &cfg.LogWS)
	boolean("log_debug", &cfg.LogDebug)
	str("agent_provider", &cfg.AgentProvider)
	str("agent_model", &cfg.AgentModel)
	str("agent_ollama_url", &cfg.AgentOllamaURL)
	str("agent_url", &cfg.AgentURL)
	str("agent_api_key", &cfg.AgentAPIKey)
	str("agent_temperature", &cfg.AgentTemperature)
	str("groq_api_key", &cfg.GroqAPIKey)
}

// flagValues holds pointers to all registered CLI flags.
type flagValues struct {
	configPath       *string
	names            *string
	seed             *int64
	timer            *int
	rounds           *int
	reveal           *bool
	mode             *string
	db               *string
	observeAddr      *string
	logOutputDir     *string
	logDB            *bool
	logWS            *bool
	logDebug         *bool
	agentProvider    *string
	agentModel       *string
	agentOllamaURL   *string
	agentURL         *string
	agentAPIKey      *string
	agentTemperature *string
	groqAPIKey       *string
}

// registerFlags registers all CLI flags and returns pointers to their values.
// Call flag.Parse() after this, then applyTo to layer them over the loaded config.
func registerFlags() flagValues {
	return flagValues{
		configPath:       flag.String("config", "config.json", "path to JSON config file"),
		names:            flag.String("names", "", "six player names, comma-separated"),
		seed:             flag.Int64("seed", 0, "deal seed for reproducible games (0 = random)"),
		timer:            flag.Int("timer", 0, "discussion length in seconds (hotseat mode)"),
		rounds:           flag.Int("rounds", 0, "discussion speech rounds (llm mode)"),
		reveal:           flag.Bool("reveal", false, "print the night log after resolution"),
		mode:             flag.String("mode", "", "game mode: hotseat or llm"),
		db:               flag.String("db", "", "audit database connection string"),
		observeAddr:      flag.String("observe-addr", "", "spectator feed listen address (e.g. :8080)"),
		logOutputDir:     flag.String("log-output-dir", "", "directory for extended log files"),
		logDB:            flag.Bool("log-db", false, "log audit database dumps"),
		logWS:            flag.Bool("log-ws", false, "log observer feed messages"),
		logDebug:         flag.Bool("log-debug", false, "enable debug logging"),
		agentProvider:    flag.String("agent-provider", "", "LLM provider (ollama|openai|claude|gemini|groq|openai-compatible)"),
		agentModel:       flag.String("agent-model", "", "LLM model name"),
		agentOllamaURL:   flag.String("agent-ollama-url", "", "Ollama server URL"),
		agentURL:         flag.String("agent-url", "", "base URL for openai-compatible provider"),
		agentAPIKey:      flag.String("agent-api-key", "", "API key for LLM provider"),
		agentTemperature: flag.String("agent-temperature", "", "sampling temperature 0-1"),
		groqAPIKey:       flag.String("groq-api-key", "", "Groq API key"),
	}
}

// applyTo overlays any CLI flags that were explicitly set onto cfg.
// Flags that were not passed on the command line are ignored (env/JSON values win).
func (fv flagValues) applyTo(cfg *AppConfig) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "names":
			cfg.Names = *fv.names
		case "seed":
			cfg.Seed = *fv.seed
		case "timer":
			cfg.Timer = *fv.timer
		case "rounds":
			cfg.Rounds = *fv.rounds
		case "reveal":
			cfg.Reveal = *fv.reveal
		case "mode":
			cfg.Mode = *fv.mode
		case "db":
			cfg.DB = *fv.db
		case "observe-addr":
			cfg.ObserveAddr = *fv.observeAddr
		case "log-output-dir":
			cfg.LogOutputDir = *fv.logOutputDir
		case "log-db":
			cfg.LogDB = *fv.logDB
		case "log-ws":
			cfg.LogWS = *fv.logWS
		case "log-debug":
			cfg.LogDebug = *fv.logDebug
		case "agent-provider":
			cfg.AgentProvider = *fv.agentProvider
		case "agent-model":
			cfg.AgentModel = *fv.agentModel
		case "agent-ollama-url":
			cfg.AgentOllamaURL = *fv.agentOllamaURL
		case "agent-url":
			cfg.AgentURL = *fv.agentURL
		case "agent-api-key":
			cfg.AgentAPIKey = *fv.agentAPIKey
		case "agent-temperature":
			cfg.AgentTemperature = *fv.agentTemperature
		case "groq-api-key":
			cfg.GroqAPIKey = *fv.groqAPIKey
		}
	})
}
