package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/scrypster/keepsake/internal/agent"
	"github.com/scrypster/keepsake/internal/config"
	"github.com/scrypster/keepsake/internal/consolidation"
	"github.com/scrypster/keepsake/internal/contextpack"
	"github.com/scrypster/keepsake/internal/history"
	"github.com/scrypster/keepsake/internal/importer"
	"github.com/scrypster/keepsake/internal/memory"
	"github.com/scrypster/keepsake/internal/notify"
	"github.com/scrypster/keepsake/internal/server"
	"github.com/scrypster/keepsake/internal/services"
	"github.com/scrypster/keepsake/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	settings, err := services.NewSettingsService(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("Failed to open settings: %v", err)
	}
	defer settings.Close()

	managers := store.NewManagers(memory.Options{
		CoreImportanceThreshold: cfg.Memory.CoreImportanceThreshold,
		RelevanceLimit:          cfg.Memory.RelevanceLimit,
		Consolidation: consolidation.Config{
			IntervalHours:           cfg.Memory.ConsolidationIntervalHours,
			ShortTermRetentionHours: cfg.Memory.ShortTermRetentionHours,
			DailySummaryMaxLength:   cfg.Memory.DailySummaryMaxLength,
		},
		DataPath: cfg.Storage.DataPath,
	})
	defer func() {
		if err := managers.SaveAll(); err != nil {
			log.Printf("Failed to save memory snapshots: %v", err)
		}
	}()

	// The record-level backend behind the managers; the temporal-tree variant
	// wraps the managers directly, the SQL variants open their own database.
	var backend store.Backend
	if cfg.Storage.Backend == config.BackendTemporalTree {
		backend = store.NewTreeBackend(managers)
	} else {
		backend, err = store.Open(cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to open store: %v", err)
		}
	}
	defer backend.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Storage.SeedDemoData {
		if err := store.SeedDemo(ctx, backend); err != nil {
			log.Printf("Failed to seed demo data: %v", err)
		}
	}

	hist := history.NewManager(history.Config{
		Strategy:             cfg.History.Strategy,
		WindowBudget:         cfg.History.WindowBudget,
		MaxTurns:             cfg.History.MaxTurns,
		HotTailMessages:      cfg.History.HotTailMessages,
		CompressionThreshold: cfg.History.CompressionThreshold,
		CompressionTarget:    cfg.History.CompressionTarget,
	}, nil)

	assembler := contextpack.NewAssembler(contextpack.Budget{
		Persona:  cfg.Context.PersonaBudget,
		State:    cfg.Context.StateBudget,
		Memory:   cfg.Context.MemoryBudget,
		Tool:     cfg.Context.ToolBudget,
		MaxTotal: cfg.Context.TotalBudget,
	})

	imp := importer.NewService(hist, managers, "default")

	core := agent.New(managers, hist, settings, assembler, nil)

	srv := server.New(*cfg, core, managers, settings, imp)
	core.SetSink(srv.Hub())

	if cfg.Import.WatchDir != "" {
		watcher := notify.NewWatcher(cfg.Import.WatchDir, imp, srv.Hub())
		if err := watcher.Start(); err != nil {
			log.Fatalf("Failed to start transcript watcher: %v", err)
		}
		defer watcher.Stop()
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down gracefully...")
		cancel()
	}()

	if err := srv.Start(ctx, nil); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
