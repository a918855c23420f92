package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookmarkeddit/bookmarkeddit/internal/config"
	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver"
	"github.com/bookmarkeddit/bookmarkeddit/internal/httpserver/deps"
	"github.com/bookmarkeddit/bookmarkeddit/internal/logger"
	"github.com/bookmarkeddit/bookmarkeddit/internal/ratelimit"
	"github.com/bookmarkeddit/bookmarkeddit/internal/reddit"
	"github.com/bookmarkeddit/bookmarkeddit/internal/version"
)

type App struct {
	cfg    *config.Config
	logger logger.Logger
	server *httpserver.Server
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Per-token rate-limit cooldowns; process-local by design, nothing to
	// persist across restarts.
	limiter := ratelimit.New()

	redditClient := reddit.New(reddit.Options{
		AuthURL:      cfg.RedditAuthURL,
		APIURL:       cfg.RedditAPIURL,
		ClientID:     cfg.RedditClientID,
		ClientSecret: cfg.RedditClientSecret,
		UserAgent:    cfg.UserAgent,
		PageLimit:    cfg.PageLimit,
		PageDelay:    cfg.PageDelay,
		Timeout:      cfg.UpstreamTimeout,
		Limiter:      limiter,
		Logger:       loggerClient,
	})

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		Reddit:         redditClient,
		Limiter:        limiter,
		PageLimit:      cfg.PageLimit,
		AllowedOrigins: cfg.AllowedOrigins,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:    cfg,
		logger: loggerClient,
		server: server,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting bookmarkedditd v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("bookmarkedditd %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	a.logger.Info("✅ bookmarkedditd stopped cleanly")
	return nil
}
