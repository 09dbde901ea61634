package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dhwaniris/permsync/internal/config"
	"github.com/dhwaniris/permsync/internal/db"
	"github.com/dhwaniris/permsync/internal/directory"
	directoryrepo "github.com/dhwaniris/permsync/internal/directory/repositoryimpl"
	"github.com/dhwaniris/permsync/internal/event"
	"github.com/dhwaniris/permsync/internal/eventbus"
	"github.com/dhwaniris/permsync/internal/grant"
	grantrepo "github.com/dhwaniris/permsync/internal/grant/repositoryimpl"
	"github.com/dhwaniris/permsync/internal/mapping"
	mappingrepo "github.com/dhwaniris/permsync/internal/mapping/repositoryimpl"
	"github.com/dhwaniris/permsync/internal/notify"
	"github.com/dhwaniris/permsync/internal/pushsubscription"
	pushsubrepo "github.com/dhwaniris/permsync/internal/pushsubscription/repositoryimpl"
	"github.com/dhwaniris/permsync/internal/settings"
	settingsrepo "github.com/dhwaniris/permsync/internal/settings/repositoryimpl"
	"github.com/dhwaniris/permsync/pkg/clog"
	"github.com/dhwaniris/permsync/pkg/sentinel"
	"github.com/dhwaniris/permsync/pkg/storage"

	server "github.com/dhwaniris/permsync/internal"
)

func main() {
	// "sentinel" supervises a "run" child and restarts it on binary updates.
	// Both the bare invocation and "run" start the server directly.
	if len(os.Args) > 1 && os.Args[1] == "sentinel" {
		sentinel.Run()
		return
	}

	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level))
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

	// Setup database
	models := append(directoryrepo.Models(), grantrepo.Model(), settingsrepo.Model())
	gormDB, err := db.Open(env.DBEnv.Driver, env.DBEnv.DSN, models...)
	if err != nil {
		slog.Error("failed to open database", "driver", env.DBEnv.Driver, "error", err)
		os.Exit(1)
	}

	// Setup event bus
	bus := eventbus.New()

	// Setup repositories
	mappingRepo := mappingrepo.NewYAMLRepository(store)
	pushSubRepo := pushsubrepo.NewYAMLRepository(store)
	directoryRepo := directoryrepo.NewGormRepository(gormDB)
	grantRepo := grantrepo.NewGormRepository(gormDB)
	settingsRepo := settingsrepo.NewGormRepository(gormDB)

	// Setup grant cache and change notifier
	grantCache := grant.NewCache()
	notifier := notify.NewBusNotifier(bus, grantCache)

	// Setup mapping pipeline
	validator := mapping.NewValidator(settingsRepo)
	reconciler := mapping.NewReconciler(grantRepo)
	mappingService := mapping.NewService(mappingRepo, directoryRepo, validator, reconciler, notifier, bus)

	// Setup servers
	mappingServer := mapping.NewServer(mappingService)
	grantServer := grant.NewServer(grantRepo, grantCache)
	directoryServer := directory.NewServer(directoryRepo)
	settingsServer := settings.NewServer(settingsRepo)
	eventServer := event.NewServer(bus)

	// Setup web push
	vapidEnv := config.VAPIDEnvFromEnv(env)
	pushSender := notify.NewSender(vapidEnv, pushSubRepo)
	pushSubServer := pushsubscription.NewServer(vapidEnv, pushSubRepo)
	pushDispatcher := notify.NewDispatcher(bus, pushSender)

	srv := server.NewServer(
		env,
		mappingServer,
		grantServer,
		directoryServer,
		settingsServer,
		pushSubServer,
		eventServer,
	)

	// Graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	go pushDispatcher.Start(ctx)

	go func() {
		if err := srv.ListenAndServe(ctx); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	// Give active connections time to finish after stream contexts are cancelled.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
