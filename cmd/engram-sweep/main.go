// Command engram-sweep runs memory lifecycle maintenance: decay sweeps and
// expiry cleanup for an owner's memory types.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/engramdev/engram/internal/config"
	"github.com/engramdev/engram/internal/engine"
	"github.com/engramdev/engram/internal/registry"
	"github.com/engramdev/engram/internal/storage"
	"github.com/engramdev/engram/internal/storage/postgres"
	"github.com/engramdev/engram/internal/storage/sqlite"
)

var (
	owner       = flag.String("owner", "", "Owner ID to sweep (required)")
	memTypes    = flag.String("types", "", "Comma-separated memory types to sweep (default: all registered types)")
	active      = flag.Bool("active", false, "Treat the sweep as running during an active session")
	cleanupOnly = flag.Bool("cleanup-only", false, "Skip decay scoring and only delete expired memories")
	interval    = flag.Duration("interval", 0, "Repeat the sweep on this interval instead of exiting")
	typesFile   = flag.String("types-file", "", "Path to the type definition file (overrides config)")
)

func main() {
	flag.Parse()

	if *owner == "" {
		flag.Usage()
		log.Fatal("an -owner is required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	typesPath := cfg.Registry.TypesFile
	if *typesFile != "" {
		typesPath = *typesFile
	}

	reg := registry.New()
	if err := reg.LoadFile(typesPath); err != nil {
		log.Fatalf("Failed to load type definitions from %s: %v", typesPath, err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	manager := engine.NewLifecycleManager(store, engine.NewDecayEngine(store, reg), reg)

	sweepTypes := reg.Types()
	if *memTypes != "" {
		sweepTypes = splitTypes(*memTypes)
	}
	if len(sweepTypes) == 0 {
		log.Fatal("No memory types to sweep")
	}

	ctx := context.Background()

	if *interval <= 0 {
		if err := sweepAll(ctx, manager, sweepTypes); err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
		return
	}

	// Long-running mode picks up type definition edits without a restart.
	if cfg.Registry.Watch {
		watcher := registry.NewWatcher(reg, typesPath)
		if err := watcher.Start(); err != nil {
			log.Fatalf("Failed to watch %s: %v", typesPath, err)
		}
		defer watcher.Stop()
	}

	runPeriodic(ctx, manager, sweepTypes, *interval)
}

func openStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		return postgres.New(cfg.Storage.PostgresDSN, cfg.Embedding.Dimension)
	default:
		return sqlite.New(filepath.Join(cfg.Storage.DataPath, "engram.db"))
	}
}

func splitTypes(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func sweepAll(ctx context.Context, manager *engine.LifecycleManager, memTypes []string) error {
	for _, memType := range memTypes {
		sweep := manager.ForOwner(*owner).WithType(memType).WithActiveSession(*active)

		var (
			result *engine.SweepResult
			err    error
		)
		if *cleanupOnly {
			result, err = sweep.CleanupExpired(ctx)
		} else {
			result, err = sweep.Run(ctx)
		}
		if err != nil {
			return fmt.Errorf("sweep of %s failed: %w", memType, err)
		}

		fmt.Printf("%s: processed=%d reinforced=%d decayed=%d unchanged=%d deleted=%d (%s)\n",
			memType, result.Processed, result.Reinforced, result.Decayed,
			result.Unchanged, result.Deleted, result.Duration.Round(time.Millisecond))
	}
	return nil
}

func runPeriodic(ctx context.Context, manager *engine.LifecycleManager, memTypes []string, every time.Duration) {
	log.Printf("Engram sweep service started (every %s)", every)
	log.Println("Press Ctrl+C to stop")

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		if err := sweepAll(ctx, manager, memTypes); err != nil {
			log.Printf("Sweep error: %v", err)
		}

		select {
		case <-ticker.C:
		case <-sigCh:
			log.Println("Sweep service stopped")
			return
		}
	}
}
