// Package main provides the vectorctl CLI for managing the vector index.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/app"
	"github.com/kaleem-ai/vectorsearch/internal/config"
	"github.com/kaleem-ai/vectorsearch/internal/logger"
)

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli holds the flags shared by every command.
type cli struct {
	configPath string
	out        io.Writer
}

func newRootCmd() *cobra.Command {
	c := &cli{out: os.Stdout}

	cmd := &cobra.Command{
		Use:   "vectorctl",
		Short: "Manage the merchant vector index",
		Long: `CLI tool for indexing, removing and querying vectors in Qdrant.

Configuration is read like the server does: defaults, an optional YAML file
(--config or VECTOR_CONFIG) and environment variables such as
EMBEDDING_BASE_URL, QDRANT_URL and GEMINI_API_KEY.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a YAML config file (env: VECTOR_CONFIG)")

	cmd.AddCommand(
		c.newEnsureCmd(),
		c.newIndexCmd(),
		c.newDeleteCmd(),
		c.newSearchCmd(),
		c.newUnifiedCmd(),
		c.newStatusCmd(),
	)
	return cmd
}

// withApp loads configuration, wires the engine and runs fn with it.
func (c *cli) withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	path := c.configPath
	if path == "" {
		path = os.Getenv("VECTOR_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Env, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Closing connections failed", zap.Error(err))
		}
	}()

	return fn(ctx, a)
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
