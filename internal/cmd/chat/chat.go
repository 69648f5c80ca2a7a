// Package chat parses chat command flags and runs a terminal adventure
// session against the generative backend, without persistence.
package chat

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/louisbranch/loreweaver/internal/narrator"
	"github.com/louisbranch/loreweaver/internal/narrator/directive"
	"github.com/louisbranch/loreweaver/internal/narrator/gemini"
	"github.com/louisbranch/loreweaver/internal/narrator/orchestrate"
	entrypoint "github.com/louisbranch/loreweaver/internal/platform/cmd"
)

// Config holds chat command configuration.
type Config struct {
	GeminiAPIKey  string `env:"LOREWEAVER_GEMINI_API_KEY"`
	GeminiModel   string `env:"LOREWEAVER_GEMINI_MODEL"    envDefault:"gemini-2.0-flash"`
	GameName      string `env:"LOREWEAVER_GAME_NAME"       envDefault:"Duality"`
	CharacterName string `env:"LOREWEAVER_CHARACTER_NAME"  envDefault:"Adventurer"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.GeminiAPIKey, "gemini-api-key", cfg.GeminiAPIKey, "Gemini API key")
	fs.StringVar(&cfg.GeminiModel, "gemini-model", cfg.GeminiModel, "Gemini model name")
	fs.StringVar(&cfg.GameName, "game", cfg.GameName, "game system name")
	fs.StringVar(&cfg.CharacterName, "character", cfg.CharacterName, "player character name")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// logSheets satisfies the sheet collaborator for sessions without storage:
// updates are logged instead of persisted.
type logSheets struct{}

func (logSheets) UpdateSheet(_ context.Context, characterID string, sheet map[string]json.RawMessage) error {
	encoded, err := json.Marshal(sheet)
	if err != nil {
		return err
	}
	log.Printf("character sheet update for %s: %s", characterID, encoded)
	return nil
}

// Run starts an interactive session on the given reader and writer. The
// session keeps its history in memory and ends when input is exhausted or
// the context ends.
func Run(ctx context.Context, cfg Config, in io.Reader, out io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceChat, func(ctx context.Context) error {
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return fmt.Errorf("gemini api key is required")
		}

		backend, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return fmt.Errorf("dial gemini: %w", err)
		}
		narrate := orchestrate.New(backend, directive.NewProcessor(logSheets{}))

		history := narrator.History{}.Append(
			narrator.RoleUser,
			narrator.BuildInitialPrompt(cfg.GameName, cfg.CharacterName),
		)
		history = exchange(ctx, narrate, history, out)

		scanner := bufio.NewScanner(in)
		fmt.Fprint(out, "> ")
		for scanner.Scan() {
			if err := ctx.Err(); err != nil {
				return err
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				fmt.Fprint(out, "> ")
				continue
			}
			history = history.Append(narrator.RoleUser, line)
			history = exchange(ctx, narrate, history, out)
			fmt.Fprint(out, "> ")
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		return nil
	})
}

// exchange runs one narrator turn and prints the reply. Failed exchanges
// print their fallback message and leave the history unchanged.
func exchange(ctx context.Context, narrate *orchestrate.Orchestrator, history narrator.History, out io.Writer) narrator.History {
	result := narrate.Send(ctx, history, "terminal")
	fmt.Fprintln(out, result.Rendered)
	if !result.Ok() {
		return history
	}
	return history.Append(narrator.RoleModel, result.Raw)
}
