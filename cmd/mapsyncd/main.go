package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/mapsync/internal/adapters/channel"
	"github.com/samirrijal/mapsync/internal/adapters/headless"
	"github.com/samirrijal/mapsync/internal/adapters/http"
	natsadapter "github.com/samirrijal/mapsync/internal/adapters/nats"
	"github.com/samirrijal/mapsync/internal/adapters/offlinestore"
	"github.com/samirrijal/mapsync/internal/adapters/postgres"
	"github.com/samirrijal/mapsync/internal/adapters/valkey"
	"github.com/samirrijal/mapsync/internal/core/ports"
	"github.com/samirrijal/mapsync/internal/core/usecases"
	"github.com/samirrijal/mapsync/internal/pkg/config"
	"github.com/samirrijal/mapsync/internal/pkg/logging"
	"github.com/samirrijal/mapsync/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("mapsyncd")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Region persistence
	var (
		db   *postgres.DB
		repo ports.RegionRepository = offlinestore.NewMemoryRepo()
	)
	if cfg.Offline.Store == config.StorePostgres {
		db, err = postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		repo = postgres.NewRegionRepo(db)
	}

	// Catalog cache
	var (
		cache        *valkey.Cache
		catalogCache ports.CacheService
	)
	if cfg.Valkey.Enabled {
		cache, err = valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer cache.Close()
			catalogCache = cache
		}
	}

	// NATS
	var (
		nc        *nats.Conn
		publisher *natsadapter.Publisher
		taps      ports.TapListener
	)
	if cfg.NATS.Enabled {
		nc, err = natsadapter.Connect(cfg.NATS.URL)
		if err != nil {
			if cfg.Events.Transport == config.TransportNATS {
				log.Fatalf("nats: %v", err)
			}
			slog.Warn("nats unavailable", "error", err)
		} else {
			publisher = natsadapter.NewPublisher(nc)
			defer publisher.Close()
			taps = publisher
		}
	}

	// Tile source
	var fetcher ports.TileFetcher = offlinestore.SyntheticFetcher{Size: 512}
	if cfg.Offline.TileURLTemplate != "" {
		fetcher = offlinestore.NewHTTPFetcher(cfg.Offline.TileURLTemplate, time.Duration(cfg.Offline.FetchTimeout)*time.Second)
	} else {
		slog.Warn("no tile url template configured, downloads use synthetic tiles")
	}

	store := offlinestore.New(repo, fetcher, offlinestore.Options{
		Concurrency:   cfg.Offline.Concurrency,
		RatePerSecond: cfg.Offline.RatePerSecond,
	})

	// Engine
	surface := headless.New()
	stream := usecases.NewEventStream()
	var events ports.EventSink = stream
	if cfg.Events.Transport == config.TransportNATS && publisher != nil {
		events = channel.FanoutSink{publisher, stream}
	}

	catalog := usecases.NewCatalogService(store, surface, catalogCache)
	offline, err := usecases.NewOfflineService(store, channel.NewInstrumentedSink(events), catalog, cfg.Offline.TileLimit)
	if err != nil {
		log.Fatalf("offline service: %v", err)
	}
	defer offline.Close()
	overlays := usecases.NewAnnotationService(surface, taps)

	dispatcher := channel.New(overlays, offline, catalog, channel.Options{
		DefaultPixelRatio: cfg.Offline.PixelRatio,
	})

	if nc != nil {
		cmds := natsadapter.NewCommandServer(nc, dispatcher, "mapsyncd")
		if err := cmds.Start(ctx); err != nil {
			slog.Warn("nats command channel unavailable", "error", err)
		}
	}

	deps := &http.Dependencies{
		Dispatcher: dispatcher,
		Overlays:   overlays,
		Offline:    offline,
		Catalog:    catalog,
		Stream:     stream,
		Surface:    surface,
		NATS:       nc,
		DB:         db,
		Cache:      cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "mapsyncd",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("mapsyncd starting", "addr", addr, "store", cfg.Offline.Store, "events", cfg.Events.Transport)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	if err := overlays.Close(shutdownCtx); err != nil {
		slog.Warn("clear overlays", "error", err)
	}

	slog.Info("server stopped")
}
