// Package server parses server command flags and wires the adventure API.
package server

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/louisbranch/loreweaver/internal/dice"
	"github.com/louisbranch/loreweaver/internal/narrator/directive"
	"github.com/louisbranch/loreweaver/internal/narrator/gemini"
	"github.com/louisbranch/loreweaver/internal/narrator/orchestrate"
	entrypoint "github.com/louisbranch/loreweaver/internal/platform/cmd"
	"github.com/louisbranch/loreweaver/internal/sheets"
	"github.com/louisbranch/loreweaver/internal/storage/sqlite"
	"github.com/louisbranch/loreweaver/internal/web"
)

// Config holds server command configuration.
type Config struct {
	HTTPAddr     string `env:"LOREWEAVER_HTTP_ADDR"      envDefault:":8080"`
	DBPath       string `env:"LOREWEAVER_DB_PATH"        envDefault:"loreweaver.db"`
	GeminiAPIKey string `env:"LOREWEAVER_GEMINI_API_KEY"`
	GeminiModel  string `env:"LOREWEAVER_GEMINI_MODEL"   envDefault:"gemini-2.0-flash"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.GeminiAPIKey, "gemini-api-key", cfg.GeminiAPIKey, "Gemini API key")
	fs.StringVar(&cfg.GeminiModel, "gemini-model", cfg.GeminiModel, "Gemini model name")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run wires storage, the narrator pipeline, and the HTTP API, then serves
// until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(ctx context.Context) error {
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return fmt.Errorf("gemini api key is required")
		}

		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer func() { _ = store.Close() }()

		backend, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return fmt.Errorf("dial gemini: %w", err)
		}

		processor := directive.NewProcessor(sheets.New(store))
		narrate := orchestrate.New(backend, processor)
		roller := dice.NewRoller(nil)

		handler := web.NewHandler(store, store, narrate, backend, roller)
		srv, err := web.NewServer(web.Config{HTTPAddr: cfg.HTTPAddr}, handler)
		if err != nil {
			return fmt.Errorf("build web server: %w", err)
		}
		if err := srv.ListenAndServe(ctx); err != nil {
			return fmt.Errorf("serve web: %w", err)
		}
		return nil
	})
}
