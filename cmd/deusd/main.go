// Command deusd runs the Deus Ex world daemon: it loads (or seeds) the
// world, drives the autonomous turn scheduler against the configured
// generative provider, and serves the chronicle over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talgya/deus-ex/internal/api"
	"github.com/talgya/deus-ex/internal/config"
	"github.com/talgya/deus-ex/internal/engine"
	"github.com/talgya/deus-ex/internal/llm"
	"github.com/talgya/deus-ex/internal/store"
	"github.com/talgya/deus-ex/internal/world"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:           "deusd",
		Short:         "Interactive divine world simulator daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), resetCmd())

	if err := root.Execute(); err != nil {
		slog.Error("deusd failed", "error", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the world",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Erase the saved world; the next serve starts from year 1",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("The world has been unmade.")
			return nil
		},
	}
}

func serve() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	snap, err := db.Load(ctx)
	if errors.Is(err, store.ErrNoSave) {
		slog.Info("no saved world, seeding year 1")
		snap = world.Seed()
	} else if err != nil {
		return err
	} else {
		slog.Info("world restored",
			"year", snap.Stats.Year,
			"population", snap.Stats.Population,
			"figures", len(snap.Figures),
			"logs", len(snap.Logs),
		)
	}

	invoker, images := buildProvider(cfg)

	turner := engine.NewTurner(engine.TurnerConfig{
		Invoker:              invoker,
		Images:               images,
		AdvanceYearOnFailure: cfg.AdvanceYearOnFailure,
	})
	portraits := engine.NewPortraits(images)

	schedCfg := engine.DefaultSchedulerConfig()
	schedCfg.SecondsPerYear = cfg.SecondsPerYear
	schedCfg.DecisionTimeout = cfg.DecisionTimeout

	sched := engine.NewScheduler(turner, portraits, db, engine.NoCues{}, schedCfg, snap)

	server := &api.Server{
		Sched:    sched,
		Port:     cfg.Port,
		AdminKey: cfg.AdminKey,
	}
	server.Start()

	sched.Run(ctx)
	return nil
}

// buildProvider constructs the text invoker and, when the provider
// supports it, the image generator. Claude has no image model; portraits
// and illustrations are simply skipped there.
func buildProvider(cfg *config.Config) (llm.Invoker, llm.ImageGenerator) {
	switch cfg.Provider {
	case "claude":
		return llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.TextModel), nil
	default:
		client := llm.NewGeminiClient(cfg.GeminiAPIKey, cfg.TextModel, cfg.ImageModel)
		return client, client
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		return store.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix)
	default:
		return store.OpenSQLite(cfg.DBPath)
	}
}
