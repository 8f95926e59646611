package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mathclub/ideaboard/internal/auth"
	"github.com/mathclub/ideaboard/internal/config"
	httpapp "github.com/mathclub/ideaboard/internal/http"
	"github.com/mathclub/ideaboard/internal/rate"
	"github.com/mathclub/ideaboard/internal/store"
	"github.com/mathclub/ideaboard/internal/store/mongodb"
	"github.com/mathclub/ideaboard/internal/store/postgres"
	"github.com/mathclub/ideaboard/internal/store/sqlite"
)

// Set with -ldflags "-X main.version=..." at build time.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	app := &cli.App{
		Name:    "ideaboard",
		Usage:   "math club ideas and integral problems board",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "url",
				Usage:   "server URL for client commands",
				EnvVars: []string{"IDEABOARD_URL"},
			},
		},
		// With no command, run the server.
		Action: runServer,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server"},
				Usage:   "start the ideaboard server",
				Action:  runServer,
			},
			signinCommand(),
			statusCommand(),
			listCommand(),
			showCommand(),
			postCommand(),
			editCommand(),
			deleteCommand(),
			voteCommand(),
			rateCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.Version, cfg.Commit, cfg.BuildTime = version, commit, buildTime
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	if cfg.UsesDefaultSecret() {
		logger.Warn("IDEABOARD_HASH_SECRET is not set; anyone can sign tokens for any user id")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	defer st.Close()

	authSvc, err := auth.NewService(cfg.HashSecret, cfg.TokenTTL)
	if err != nil {
		return err
	}
	limiter := rate.NewMemory()
	go sweepLimiter(ctx, limiter)

	server, err := httpapp.NewServer(st, authSvc, limiter, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ideaboard listening", "addr", cfg.Addr, "backend", cfg.Backend, "app_id", cfg.AppID, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Backend {
	case "postgres":
		return postgres.Open(ctx, cfg.Postgres.URL)
	case "mongodb":
		return mongodb.Open(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database)
	default:
		return sqlite.Open(cfg.DBPath)
	}
}

func sweepLimiter(ctx context.Context, limiter *rate.MemoryLimiter) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := limiter.Sweep(); n > 0 {
				slog.Debug("rate limiter swept", "buckets", n)
			}
		}
	}
}
