package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/luminaforge/headshotd/internal/api"
	"github.com/luminaforge/headshotd/internal/config"
	"github.com/luminaforge/headshotd/internal/gpu"
	"github.com/luminaforge/headshotd/internal/journal"
	"github.com/luminaforge/headshotd/internal/pipeline"
	"github.com/luminaforge/headshotd/internal/storage"
	"github.com/luminaforge/headshotd/internal/worker"
)

func main() {
	// A .env file is optional; the environment wins either way.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	logger.Info("headshotd: starting",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"bucket", cfg.Bucket,
		"min_free_vram_mb", cfg.MinFreeVRAMMB,
	)

	db, err := journal.NewSQLiteJournal(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open job journal: %v", err)
	}
	defer db.Close()

	guard := gpu.NewGuard(
		gpu.Config{
			StorageEndpoint: cfg.StorageEndpoint,
			StorageKey:      cfg.StorageKey,
			MinFreeVRAMMB:   cfg.MinFreeVRAMMB,
		},
		&gpu.NvidiaSMI{},
		func(_ context.Context) (pipeline.Pipeline, error) {
			return pipeline.NewClient(pipeline.Options{BaseURL: cfg.PipelineURL})
		},
		func(endpoint, key string) (storage.BlobStore, error) {
			return storage.NewMinioStore(endpoint, key)
		},
		logger,
	)

	w := worker.New(worker.Options{
		Guard:           guard,
		Journal:         db,
		Logger:          logger,
		Bucket:          cfg.Bucket,
		GenerationSteps: cfg.GenerationSteps,
		PresignTTL:      cfg.PresignTTL,
		StorageTimeout:  cfg.StorageTimeout,
	})

	srv := api.NewServer(cfg.ListenAddr, w, db, logger)

	if err := srv.Run(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
