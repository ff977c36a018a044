package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stardrift/server/internal/api"
	"github.com/stardrift/server/internal/config"
	"github.com/stardrift/server/internal/content"
	"github.com/stardrift/server/internal/database"
	"github.com/stardrift/server/internal/entitypool"
	"github.com/stardrift/server/internal/events"
	"github.com/stardrift/server/internal/performance"
	"github.com/stardrift/server/internal/seedrand"
	"github.com/stardrift/server/internal/snapshot"
	"github.com/stardrift/server/internal/streaming"
	"github.com/stardrift/server/internal/worldgen"
	"github.com/stardrift/server/internal/worldmap"
)

// main starts the Stardrift world server: deterministic generation,
// chunk streaming around the tracked observer, and the HTTP/WebSocket API.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Generation stack. The catalog defines what a chunk can contain, the
	// seeded random service makes every chunk reproducible.
	catalog, err := loadCatalog(cfg)
	if err != nil {
		log.Fatalf("Failed to load entity catalog: %v", err)
	}
	random := seedrand.NewService(cfg.World.Seed, cfg.World.RandomCacheSize)
	generator := worldgen.NewGenerator(random, catalog)

	pools := entitypool.NewService(catalog)
	catalog.RegisterPools(pools)

	bus := events.NewBus()
	profiler := performance.NewProfiler(cfg.World.Profiling)

	// Snapshot persistence is optional; a missing directory config just
	// disables the file store.
	codec, err := snapshot.NewCodec(cfg.Snapshot.Level)
	if err != nil {
		log.Fatalf("Failed to create snapshot codec: %v", err)
	}
	var store *snapshot.Store
	if cfg.Snapshot.Directory != "" {
		store, err = snapshot.NewStore(cfg.Snapshot.Directory, codec)
		if err != nil {
			log.Fatalf("Failed to open snapshot store: %v", err)
		}
	}

	// Resume from the latest snapshot when one exists: same seed, same
	// observer position. Chunk content regenerates deterministically.
	startPosition := worldmap.Point{}
	if store != nil {
		if latest, err := store.Latest(); err == nil {
			log.Printf("Resuming from snapshot: seed=%d, saved_at=%s", latest.Seed, latest.SavedAt.Format(time.RFC3339))
			random.SetSeed(latest.Seed)
			startPosition = latest.PlayerPosition
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Failed to load latest snapshot, starting fresh: %v", err)
		}
	}

	tracker := streaming.NewTrackedPosition(startPosition)
	manager := streaming.NewManager(streaming.Config{
		ChunkSize:       cfg.World.ChunkSize,
		ActiveRadius:    cfg.World.ActiveRadius,
		PreloadRadius:   cfg.World.PreloadRadius,
		DespawnRadius:   cfg.World.DespawnRadius,
		WorkerCount:     cfg.World.WorkerCount,
		TimeBudget:      cfg.World.TimeBudget,
		EntitiesPerTick: cfg.World.EntitiesPerTick,
		MinLoadInterval: cfg.World.MinLoadInterval,
	}, random, generator, pools, bus, tracker, nil, profiler)
	defer manager.Close()

	// Database is optional in development; auth and position persistence
	// need it, world streaming does not.
	var players *database.PlayerStorage
	var snapshots *database.SnapshotStorage
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Printf("Database unavailable, continuing without persistence: %v", err)
	} else {
		defer db.Close()
		if err := database.Migrate(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		players = database.NewPlayerStorage(db)
		snapshots = database.NewSnapshotStorage(db)
	}

	saveSnapshot := buildSnapshotFunc(manager, random, tracker, store, codec, snapshots)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := cfg.World.TickInterval
	if interval <= 0 {
		interval = streaming.DefaultTickInterval
	}
	go manager.Run(ctx, interval)

	if saveSnapshot != nil && cfg.Snapshot.Interval > 0 {
		go runSnapshotLoop(ctx, cfg.Snapshot.Interval, saveSnapshot)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)

	if players != nil {
		api.SetupAuthRoutes(mux, players, cfg)
	}
	api.SetupWorldRoutes(mux, cfg, manager, random, tracker, players)
	api.SetupAdminRoutes(mux, cfg, manager, random, profiler, players, saveSnapshot)

	wsHandlers := api.NewWebSocketHandlers(cfg, manager, tracker, players, profiler)
	go wsHandlers.GetHub().Run()
	go wsHandlers.ForwardWorldEvents()
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)

	cors := api.NewCORSMiddleware(cfg.Server.AllowedOrigins)
	handler := cors(api.SecurityHeadersMiddleware(mux))

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("Stardrift server starting on %s (seed=%d)", server.Addr, random.Seed())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}

	if profiler.IsEnabled() {
		profiler.LogReport()
	}

	// Save the world state once more on the way down so a restart resumes
	// where the observer left off.
	if saveSnapshot != nil {
		if name, err := saveSnapshot(); err != nil {
			log.Printf("Final snapshot failed: %v", err)
		} else {
			log.Printf("Final snapshot saved: %s", name)
		}
	}
}

// loadCatalog reads the configured catalog file, falling back to the
// built-in defaults when none is configured.
func loadCatalog(cfg *config.Config) (*content.Catalog, error) {
	if cfg.World.CatalogPath == "" {
		return content.Default(), nil
	}
	catalog, err := content.Load(cfg.World.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("loading catalog %s: %w", cfg.World.CatalogPath, err)
	}
	log.Printf("Loaded entity catalog from %s (%d types)", cfg.World.CatalogPath, len(catalog.Types))
	return catalog, nil
}

// buildSnapshotFunc wires snapshot capture to every configured sink. Returns
// nil when neither the file store nor the database is available.
func buildSnapshotFunc(manager *streaming.Manager, random *seedrand.Service,
	tracker *streaming.TrackedPosition, store *snapshot.Store,
	codec *snapshot.Codec, snapshots *database.SnapshotStorage) api.SnapshotFunc {

	if store == nil && snapshots == nil {
		return nil
	}

	return func() (string, error) {
		snap := &snapshot.Snapshot{
			Version:        snapshot.FormatVersion,
			Seed:           random.Seed(),
			SavedAt:        time.Now().UTC(),
			PlayerPosition: tracker.Position(),
			Chunks:         manager.Export(),
		}

		var name string
		if store != nil {
			path, err := store.Save(snap)
			if err != nil {
				return "", err
			}
			name = path
			if err := store.Prune(10); err != nil {
				log.Printf("Snapshot prune failed: %v", err)
			}
		}

		if snapshots != nil {
			data, err := codec.Encode(snap)
			if err != nil {
				return "", err
			}
			id, err := snapshots.Store(snap.Seed, snap.SavedAt, data)
			if err != nil {
				return "", err
			}
			if name == "" {
				name = fmt.Sprintf("db:%d", id)
			}
			if err := snapshots.Prune(10); err != nil {
				log.Printf("Database snapshot prune failed: %v", err)
			}
		}

		return name, nil
	}
}

// runSnapshotLoop saves the world on a fixed interval until ctx is done.
func runSnapshotLoop(ctx context.Context, interval time.Duration, save api.SnapshotFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if name, err := save(); err != nil {
				log.Printf("Periodic snapshot failed: %v", err)
			} else {
				log.Printf("Periodic snapshot saved: %s", name)
			}
		}
	}
}

// healthHandler responds to health check requests.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"stardrift-server"}`)
}
