// Package gpu owns the lifecycle of the exclusive compute resource:
// acquisition, capacity verification, and post-job reclaim. No other
// package acquires, releases, or mutates the device.
package gpu

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/luminaforge/headshotd/internal/joberr"
	"github.com/luminaforge/headshotd/internal/pipeline"
	"github.com/luminaforge/headshotd/internal/storage"
)

// Handle bundles the collaborators that exist only while the worker holds
// the compute resource. It is owned by the worker state; the guard hands
// it out on a successful acquisition and never keeps a copy.
type Handle struct {
	Pipeline pipeline.Pipeline
	Store    storage.BlobStore
}

// Config carries the settings the guard validates before touching the
// device. Endpoint and Key presence is checked here, not at config load:
// their absence degrades the acquisition, not the process.
type Config struct {
	StorageEndpoint string
	StorageKey      string
	MinFreeVRAMMB   int
}

// PipelineLoader prepares the compute capability. Loading is the
// expensive step and runs only after config, device, and capacity checks
// all pass.
type PipelineLoader func(ctx context.Context) (pipeline.Pipeline, error)

// StoreOpener builds the blob-storage client from validated settings.
type StoreOpener func(endpoint, key string) (storage.BlobStore, error)

// Guard performs all-or-nothing acquisition of the compute resource.
type Guard struct {
	cfg       Config
	device    Device
	loadPipe  PipelineLoader
	openStore StoreOpener
	logger    *slog.Logger
}

// NewGuard creates a resource guard.
func NewGuard(cfg Config, device Device, loadPipe PipelineLoader, openStore StoreOpener, logger *slog.Logger) *Guard {
	return &Guard{
		cfg:       cfg,
		device:    device,
		loadPipe:  loadPipe,
		openStore: openStore,
		logger:    logger,
	}
}

// Acquire runs the acquisition sequence: configuration check, device
// probe, capacity verification, storage client construction, and finally
// the pipeline load. Every failure is a typed initialization_error with
// the sub-reason in details; acquisition is all-or-nothing, so a failure
// at any step leaves nothing half-held.
func (g *Guard) Acquire(ctx context.Context) (h *Handle, err error) {
	defer func() {
		if err != nil {
			acquisitions.WithLabelValues(acquireFailed).Inc()
		} else {
			acquisitions.WithLabelValues(acquireReady).Inc()
		}
	}()
	return g.acquire(ctx)
}

func (g *Guard) acquire(ctx context.Context) (*Handle, error) {
	if g.cfg.StorageEndpoint == "" {
		return nil, initErr(joberr.ReasonEnvVarMissing, "storage endpoint is not configured").
			With("variable", "SUPABASE_URL")
	}
	if g.cfg.StorageKey == "" {
		return nil, initErr(joberr.ReasonEnvVarMissing, "storage credential is not configured").
			With("variable", "SUPABASE_SERVICE_KEY")
	}

	if err := g.device.Probe(ctx); err != nil {
		return nil, initErr(joberr.ReasonCUDAUnavailable, fmt.Sprintf("compute device unavailable: %v", err))
	}

	free, total, err := g.device.MemoryInfo(ctx)
	if err != nil {
		return nil, initErr(joberr.ReasonCUDAUnavailable, fmt.Sprintf("read device memory: %v", err))
	}
	g.logger.Info("device memory", "free_mb", free, "total_mb", total)
	freeVRAM.Set(float64(free))
	if free < g.cfg.MinFreeVRAMMB {
		return nil, initErr(joberr.ReasonInsufficientCapacity,
			fmt.Sprintf("insufficient device memory: %d MiB free, %d MiB required", free, g.cfg.MinFreeVRAMMB)).
			With("available_mb", free).
			With("required_mb", g.cfg.MinFreeVRAMMB)
	}

	store, err := g.openStore(g.cfg.StorageEndpoint, g.cfg.StorageKey)
	if err != nil {
		return nil, initErr(joberr.ReasonStorageInit, fmt.Sprintf("initialize storage client: %v", err))
	}

	pipe, err := g.loadPipeline(ctx)
	if err != nil {
		// The load may have consumed device memory before failing;
		// give it back before reporting upward.
		g.Reclaim(ctx, nil)
		return nil, initErr(joberr.ReasonModelLoading, fmt.Sprintf("load pipeline: %v", err))
	}

	return &Handle{Pipeline: pipe, Store: store}, nil
}

// loadPipeline isolates the loader so a panicking implementation degrades
// to an acquisition failure instead of killing the process.
func (g *Guard) loadPipeline(ctx context.Context) (pipe pipeline.Pipeline, err error) {
	defer func() {
		if r := recover(); r != nil {
			pipe = nil
			err = fmt.Errorf("pipeline loader panic: %v", r)
		}
	}()
	return g.loadPipe(ctx)
}

// Reclaim releases transient device capacity consumed by one job. It is
// idempotent, safe with a nil handle, and never returns an error upward;
// failures are logged and counted.
func (g *Guard) Reclaim(ctx context.Context, h *Handle) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("reclaim panic", "panic", fmt.Sprint(r))
		}
	}()

	reclaims.Inc()

	if h != nil && h.Pipeline != nil {
		if err := h.Pipeline.Reclaim(ctx); err != nil {
			g.logger.Warn("pipeline reclaim failed", "error", err)
		}
	}

	if free, total, err := g.device.MemoryInfo(ctx); err == nil {
		freeVRAM.Set(float64(free))
		g.logger.Debug("device memory after reclaim", "free_mb", free, "total_mb", total)
	}
}

func initErr(reason, message string) *joberr.Error {
	return joberr.New(joberr.KindInitialization, message).With("reason", reason)
}
