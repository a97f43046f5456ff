package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vocautobot/vockanban/internal/config"
	"github.com/vocautobot/vockanban/internal/mockapi"
	"github.com/vocautobot/vockanban/internal/voc/repositoryimpl"
	"github.com/vocautobot/vockanban/pkg/clog"
	"github.com/vocautobot/vockanban/pkg/storage"
)

func main() {
	env, err := config.LoadMockEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr,
			clog.WithLevel(level),
			clog.WithColor(os.Getenv("NO_COLOR") == ""),
			clog.WithLeadKeys(clog.HTTPLeadKeys...),
		)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	// Setup storage
	var store storage.Storage
	switch env.StorageEnv.Type {
	case "s3":
		store, err = storage.NewS3Storage(context.Background(), env.StorageEnv.S3Bucket, env.StorageEnv.S3Prefix, env.StorageEnv.S3Region)
		if err != nil {
			slog.Error("failed to create S3 storage", "error", err)
			os.Exit(1)
		}
	default:
		store, err = storage.NewLocalStorage(env.StorageEnv.BaseDir)
		if err != nil {
			slog.Error("failed to create local storage", "error", err)
			os.Exit(1)
		}
	}
	repo := repositoryimpl.NewYAMLRepository(store)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if env.SeedFile != "" {
		watcher := mockapi.NewSeedWatcher(env.SeedFile, repo)
		if _, err := watcher.Sync(ctx); err != nil {
			slog.Error("failed to import seed file", "path", env.SeedFile, "error", err)
			os.Exit(1)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				slog.Error("seed watcher stopped", "error", err)
			}
		}()
	}

	h := mockapi.NewHandler(repo,
		mockapi.WithToken(env.Token),
		mockapi.WithFailureRate(env.FailureRate),
		mockapi.WithConflictRate(env.ConflictRate),
		mockapi.WithLatency(env.Latency),
	)

	addr := net.JoinHostPort(env.HTTPHost, env.HTTPPort)
	srv := &http.Server{
		Addr:        addr,
		Handler:     h.Router(),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}
	go func() {
		slog.Info("starting mock VOC backend", "addr", addr,
			"failure_rate", env.FailureRate, "conflict_rate", env.ConflictRate, "latency", env.Latency)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
