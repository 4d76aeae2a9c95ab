package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/gonkalabs/lethe-go/pkg/lethe"
)

// Output formats understood by the CLI.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Cfg holds all runtime configuration loaded from environment variables.
type Cfg struct {
	// Lethe service base URL, e.g. http://localhost:3001
	BaseURL string

	// GenerateSynthetic is the default for the --synthetic flag.
	GenerateSynthetic bool

	// Logging
	LogLevel slog.Level // LETHE_LOG_LEVEL=debug|info|warn|error

	// OutputFormat is FormatJSON or FormatYAML.
	OutputFormat string
}

// Load reads .env (if present) then environment variables and returns Cfg.
func Load() (*Cfg, error) {
	// Best-effort: load .env from current directory
	_ = godotenv.Load()

	baseURL := strings.TrimSpace(os.Getenv("LETHE_URL"))
	if baseURL == "" {
		baseURL = lethe.DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	level, err := parseLevel(os.Getenv("LETHE_LOG_LEVEL"))
	if err != nil {
		return nil, err
	}

	format := strings.ToLower(strings.TrimSpace(os.Getenv("LETHE_OUTPUT_FORMAT")))
	if format == "" {
		format = FormatJSON
	}
	if err := ValidateFormat(format); err != nil {
		return nil, err
	}

	return &Cfg{
		BaseURL:           baseURL,
		GenerateSynthetic: truthy(os.Getenv("LETHE_SYNTHETIC")),
		LogLevel:          level,
		OutputFormat:      format,
	}, nil
}

// ValidateFormat reports whether format is a known output format.
func ValidateFormat(format string) error {
	switch format {
	case FormatJSON, FormatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want %s or %s)", format, FormatJSON, FormatYAML)
}

func truthy(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "1" || strings.EqualFold(raw, "true")
}

func parseLevel(raw string) (slog.Level, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("LETHE_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}
