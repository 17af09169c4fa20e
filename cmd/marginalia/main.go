// Command marginalia links AI conversations to PDF highlights.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/marginalia-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driven/llm/anthropic"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driven/llm/ollama"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driven/viewer/sioyek"
	"github.com/custodia-labs/marginalia-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driven"
	"github.com/custodia-labs/marginalia-cli/internal/core/services"
	"github.com/custodia-labs/marginalia-cli/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// MARGINALIA_CONFIG overrides the default ~/.marginalia/config.toml.
	cfg, err := file.Load(os.Getenv("MARGINALIA_CONFIG"))
	if err != nil {
		return err
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("locating home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".marginalia", "data", "annotations.db")
	}

	store, err := sqlite.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening annotation store: %w", err)
	}
	defer store.Close()

	streamer, err := buildStreamer(cfg)
	if err != nil {
		// History lookups work without a model; only new questions fail.
		logger.Warn("Model unavailable: %v", err)
	}
	if streamer != nil {
		defer streamer.Close()
	}

	resolver, err := sioyek.NewResolver(cfg.Database.LocalPath)
	if err != nil {
		return fmt.Errorf("opening viewer database: %w", err)
	}
	defer resolver.Close()

	matchCfg := cfg.MatchConfig()
	historySvc := services.NewHistoryService(
		store.HighlightStore(), store.ConversationStore(), matchCfg)
	askSvc := services.NewAskService(
		store.HighlightStore(), store.ConversationStore(), streamer, historySvc, matchCfg)

	cli.SetServices(cli.Services{
		Ask:      askSvc,
		History:  historySvc,
		Resolver: resolver,
		Viewer:   sioyek.NewControl(cfg.Viewer.Executable),
	})

	return cli.Execute()
}

// buildStreamer picks the answer streamer for the configured provider.
func buildStreamer(cfg *file.Config) (driven.AnswerStreamer, error) {
	switch cfg.Model.Provider {
	case "openai", "":
		// Return a bare nil on error: wrapping the nil *Streamer into the
		// interface would defeat the service's nil-streamer guard.
		s, err := openai.NewStreamer(openai.Config{
			APIKey:  cfg.APIKey(),
			BaseURL: cfg.Model.BaseURL,
			Model:   cfg.Model.Model,
			Timeout: cfg.Timeout(),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "anthropic":
		s, err := anthropic.NewStreamer(anthropic.Config{
			APIKey:  cfg.APIKey(),
			BaseURL: cfg.Model.BaseURL,
			Model:   cfg.Model.Model,
			Timeout: cfg.Timeout(),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "ollama":
		return ollama.NewStreamer(ollama.Config{
			BaseURL: cfg.Model.BaseURL,
			Model:   cfg.Model.Model,
			Timeout: cfg.Timeout(),
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Model.Provider)
	}
}
