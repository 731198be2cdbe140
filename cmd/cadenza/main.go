// Command cadenza runs the practice logbook sync daemon: it owns the
// local store, the change queue, the delta sync engine, the trigger
// coalescer, and the real-time push channel.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/cadenza-app/cadenza/internal/config"
	"github.com/cadenza-app/cadenza/internal/logging"
	"github.com/cadenza-app/cadenza/internal/realtime"
	"github.com/cadenza-app/cadenza/internal/storage"
	"github.com/cadenza-app/cadenza/internal/store"
	syncengine "github.com/cadenza-app/cadenza/internal/sync"
	"github.com/cadenza-app/cadenza/internal/sync/queue"
	"github.com/cadenza-app/cadenza/internal/sync/transport"
	"github.com/cadenza-app/cadenza/internal/sync/trigger"
)

func main() {
	godotenv.Load()

	logging.Init(os.Stdout, logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Failed to load config", err)
		os.Exit(1)
	}

	local, err := openStore(cfg)
	if err != nil {
		logging.Error("Failed to open local store", err)
		os.Exit(1)
	}
	defer local.Close()

	stores := store.NewRegistry(
		store.NewLogbookStore(local),
		store.NewRepertoireStore(local),
		store.NewGoalStore(local),
	)
	stores.HydrateAll()

	q := queue.New(local)
	client := transport.NewClient(cfg.ServerURL, cfg.AuthToken)
	engine := syncengine.NewEngine(q, stores, client, syncengine.WithTimeout(cfg.SyncTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One-shot transition from the old full-snapshot sync model; the
	// server answers migrated=false with a reason if nothing is left to
	// convert.
	deviceID := q.Checkpoint().DeviceID
	if migration, err := client.Migrate(ctx, deviceID); err != nil {
		logging.Warn("Snapshot migration check failed",
			map[string]interface{}{"error": err.Error()})
	} else if migration.Migrated {
		logging.Info("Migrated from snapshot sync",
			map[string]interface{}{
				"entries_converted": migration.EntriesConverted,
				"existing_changes":  migration.ExistingChanges,
			})
	}

	triggerCfg := trigger.DefaultConfig()
	triggerCfg.Interval = cfg.SyncInterval
	coalescer := trigger.New(engine, triggerCfg)
	coalescer.Start(ctx)

	var push *realtime.Client
	if cfg.RealtimeURL != "" {
		push = realtime.NewClient(cfg.RealtimeURL, cfg.UserID, cfg.AuthToken, realtime.NewMerger(stores))
		if err := push.Connect(ctx); err != nil {
			// The delta protocol still works without the push channel.
			logging.Warn("Push channel unavailable",
				map[string]interface{}{"error": err.Error()})
		}
	}

	// Initial sync on startup.
	coalescer.NotifyOnline()

	logging.Info("Cadenza running",
		map[string]interface{}{
			"device_id": deviceID,
			"backend":   cfg.Backend,
			"server":    cfg.ServerURL,
		})

	<-ctx.Done()

	coalescer.Stop()
	if push != nil {
		push.Disconnect()
	}
	logging.Info("Shutdown complete")
}

func openStore(cfg *config.Config) (storage.LocalStore, error) {
	if cfg.Backend == "bolt" {
		return storage.OpenBolt(cfg.DataDir)
	}
	return storage.OpenSQLite(cfg.DataDir)
}
