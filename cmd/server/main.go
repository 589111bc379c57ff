// Package main runs the vector search service: HTTP API, MCP tools and the
// optional index event consumer.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kaleem-ai/vectorsearch/internal/app"
	"github.com/kaleem-ai/vectorsearch/internal/config"
	"github.com/kaleem-ai/vectorsearch/internal/logger"
	mcpserver "github.com/kaleem-ai/vectorsearch/internal/mcp"
	"github.com/kaleem-ai/vectorsearch/internal/metrics"
	"github.com/kaleem-ai/vectorsearch/internal/transport/httpapi"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file if present (local development), ignore if missing (production)
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "vectorsearch",
		Short: "Semantic retrieval service for merchant catalogs and knowledge",
		Long: `Serves product, unified and bot FAQ search over HTTP and MCP.

Modes (server.mode / SERVER_MODE):
  http   HTTP API with MCP at /mcp (default)
  stdio  MCP over stdin/stdout, HTTP API still served in the background

Index events are consumed from Kafka when KAFKA_BROKERS is set.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				configPath = os.Getenv("VECTOR_CONFIG")
			}
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (env: VECTOR_CONFIG)")
	return cmd
}

func run(parent context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Env, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	metrics.Register()

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	log.Info("Starting vector search service",
		zap.String("env", cfg.Env),
		zap.String("mode", cfg.Server.Mode),
		zap.String("qdrant", cfg.Qdrant.URL),
		zap.String("embedding", cfg.Embedding.BaseURL),
		zap.Int("dim", cfg.Embedding.Dim),
	)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.Indexer.EnsureCollections(ctx); err != nil {
		return fmt.Errorf("ensure collections: %w", err)
	}

	mcpSrv, err := mcpserver.NewServer(mcpserver.Config{
		Products: a.Products,
		Unified:  a.Unified,
		BotFAQs:  a.BotFAQs,
		Status:   a.Store,
		Logger:   log.Named("mcp"),
	})
	if err != nil {
		return fmt.Errorf("create MCP server: %w", err)
	}

	api := httpapi.NewServer(httpapi.Deps{
		Products: a.Products,
		Unified:  a.Unified,
		BotFAQs:  a.BotFAQs,
		Health:   a.Store,
		MCP:      mcpSrv.HTTPHandler(false),
	}, log.Named("http"))

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	consumer, err := a.NewConsumer()
	if err != nil {
		return fmt.Errorf("create event consumer: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Error during HTTP shutdown", zap.Error(err))
		}
		return nil
	})

	if consumer != nil {
		g.Go(func() error {
			defer func() { _ = consumer.Close() }()
			return consumer.Run(gctx)
		})
	}

	if cfg.Server.Mode == "stdio" {
		g.Go(func() error {
			log.Info("Starting MCP server (stdio mode)")
			err := mcpSrv.Run(gctx)
			if err != nil && gctx.Err() == nil {
				return fmt.Errorf("mcp stdio: %w", err)
			}
			// client disconnect ends the process
			cancel()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("Service stopped with error", zap.Error(err))
		return err
	}
	log.Info("Service stopped gracefully")
	return nil
}
