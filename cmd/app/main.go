package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/wunjo/internal"
	"github.com/starford/wunjo/internal/backend"
	"github.com/starford/wunjo/internal/mcpserver"
	"github.com/starford/wunjo/internal/optimistic"
	"github.com/starford/wunjo/internal/persist"
	"github.com/starford/wunjo/internal/wellness"
	pkgconfig "github.com/starford/wunjo/pkg/config"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

// serveMCP runs the MCP stdio server over the same snapshot database
// the HTTP server uses, hydrating state before serving.
func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := persist.Open(cfg.Store.SQLitePath)
	if err != nil {
		return fmt.Errorf("open snapshot db: %w", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))

	engine := optimistic.New(backend.NewSimulated(cfg.Backend.Latency),
		optimistic.WithLogger(logger))
	svc := wellness.New(engine,
		wellness.WithPersistence(db),
		wellness.WithLogger(logger),
	)
	svc.Hydrate()

	return mcpserver.New(svc).ServeStdio()
}

func main() {
	cmd := &cli.Command{
		Name:   "wunjo",
		Usage:  "Local-first wellness tracker with optimistic sync, snapshots, and live dashboard events",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "mcp",
				Usage:  "Run the MCP stdio server for LLM integration",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
