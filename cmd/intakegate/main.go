package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/chatforms/intakegate/internal/api"
	"github.com/chatforms/intakegate/internal/genai"
	"github.com/chatforms/intakegate/internal/store"
	"github.com/chatforms/intakegate/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for intakegate state data
	DefaultStateDir = "/var/lib/intakegate"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "intakegate.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	suggest := buildSuggestionGenerator(config)

	slog.Info("Bootstrapping intakegate", "api_addr", *flags.apiAddr)
	srv := api.NewServer(st, suggest, api.WithAddr(*flags.apiAddr))
	if err := srv.Run(); err != nil {
		slog.Error("intakegate failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("intakegate exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL string
	StateDir    string
	OpenAIKey   string
	APIAddr     string
	GenAI       bool
}

// Flags holds command line flag values
type Flags struct {
	stateDir *string
	dbDSN    *string
	apiAddr  *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	return Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		StateDir:    util.EnvOrDefault("INTAKEGATE_STATE_DIR", DefaultStateDir),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     util.EnvOrDefault("API_ADDR", api.DefaultAddr),
		GenAI:       util.ParseBoolEnv("GENAI_ENABLED", true),
	}
}

// parseCommandLineFlags parses command line flags, with environment values as defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir: flag.String("state-dir", config.StateDir, "directory for application state (SQLite database)"),
		dbDSN:    flag.String("db-dsn", config.DatabaseURL, "database DSN (postgres:// URL or SQLite file path; empty for in-memory)"),
		apiAddr:  flag.String("api-addr", config.APIAddr, "API server listen address"),
	}
	flag.Parse()
	return flags
}

// buildStore selects a storage backend from the DSN: postgres URLs use
// Postgres, the literal "memory" keeps everything in process, and anything
// else (including empty) uses SQLite under the state directory.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		slog.Info("Using Postgres store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	case dsn == "memory":
		slog.Info("Using in-memory store")
		return store.NewInMemoryStore(), nil
	case dsn != "":
		slog.Info("Using SQLite store", "path", dsn)
		return store.NewSQLiteStore(store.WithDSN(dsn))
	default:
		path := filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Info("Using SQLite store", "path", path)
		return store.NewSQLiteStore(store.WithDSN(path))
	}
}

// buildSuggestionGenerator wires the GenAI client when enabled and an API key
// is configured; the API falls back to canned suggestions without one.
func buildSuggestionGenerator(config Config) api.SuggestionGenerator {
	if !config.GenAI {
		slog.Info("GenAI disabled via GENAI_ENABLED")
		return nil
	}
	if config.OpenAIKey == "" {
		slog.Info("No OPENAI_API_KEY set, using fallback suggestions")
		return nil
	}
	client, err := genai.NewClient()
	if err != nil {
		slog.Warn("GenAI disabled, using fallback suggestions", "reason", err)
		return nil
	}
	slog.Info("GenAI suggestion generation enabled")
	return client
}
