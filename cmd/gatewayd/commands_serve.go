package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ruizzmauri/gsv-sub000/internal/blobstore"
	"github.com/ruizzmauri/gsv-sub000/internal/config"
	"github.com/ruizzmauri/gsv-sub000/internal/llm"
	"github.com/ruizzmauri/gsv-sub000/internal/pstore"
	"github.com/ruizzmauri/gsv-sub000/internal/server"
	"github.com/ruizzmauri/gsv-sub000/internal/session"
)

const shutdownTimeout = 10 * time.Second

// llmProviderOrNil avoids the classic typed-nil-in-interface trap: a nil
// *llm.Provider assigned directly to session.LLM would compare non-nil.
func llmProviderOrNil(p *llm.Provider) session.LLM {
	if p == nil {
		return nil
	}
	return p
}

// buildServeCmd creates the "serve" command that starts the gateway,
// mirroring the teacher's cmd/nexus "serve" command shape: load config,
// build collaborators, run until a termination signal.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agent gateway",
		Long: `Start the agent gateway: accept client/node/channel WebSocket peers,
route tool calls, drive session agent loops, and run the heartbeat/cron
scheduler.

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), resolveConfigPath(configPath), debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		log.Warn("no config file loaded, using defaults", "path", configPath, "error", err)
		cfg = config.Default()
	}

	dataDir := cfg.Server.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	kv, err := pstore.OpenSQLiteKV(filepath.Join(dataDir, "gateway.db"))
	if err != nil {
		return fmt.Errorf("open kv store: %w", err)
	}
	defer kv.Close()

	store, err := config.NewStore(kv, cfg)
	if err != nil {
		return fmt.Errorf("build config store: %w", err)
	}

	var blob *blobstore.Store
	if cfg.Blob.Bucket != "" {
		blob, err = blobstore.New(ctx, blobstore.Config{
			Bucket:          cfg.Blob.Bucket,
			Region:          cfg.Blob.Region,
			Endpoint:        cfg.Blob.Endpoint,
			AccessKeyID:     cfg.Blob.AccessKeyID,
			SecretAccessKey: cfg.Blob.SecretAccessKey,
			UsePathStyle:    cfg.Blob.UsePathStyle,
		})
		if err != nil {
			return fmt.Errorf("connect blob store: %w", err)
		}
	} else {
		log.Warn("blob.bucket not configured: transcript archival and media storage are disabled")
	}

	var llmProvider *llm.Provider
	if cfg.APIKeys.Anthropic != "" {
		llmProvider, err = llm.New(llm.Config{
			APIKey:       cfg.APIKeys.Anthropic,
			DefaultModel: cfg.Model.ID,
		})
		if err != nil {
			return fmt.Errorf("configure llm provider: %w", err)
		}
	} else {
		log.Warn("apiKeys.anthropic not set: chat.send will fail until configured")
	}

	srv, err := server.New(ctx, store, server.Deps{
		KV:   kv,
		Blob: blob,
		LLM:  llmProviderOrNil(llmProvider),
		Log:  log,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(runCtx) }()

	select {
	case <-runCtx.Done():
		log.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Stop(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
