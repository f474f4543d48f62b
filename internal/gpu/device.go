package gpu

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Device reports on the exclusive compute device. Implementations must be
// safe to call repeatedly; Probe and MemoryInfo are invoked on every
// acquisition attempt.
type Device interface {
	// Probe reports whether a CUDA-capable device is present and usable.
	Probe(ctx context.Context) error

	// MemoryInfo returns free and total device memory in MiB.
	MemoryInfo(ctx context.Context) (freeMB, totalMB int, err error)
}

// NvidiaSMI queries the device through the nvidia-smi CLI. It avoids a
// cgo dependency on the CUDA toolkit; the binary ships with every NVIDIA
// driver install the worker can run on.
type NvidiaSMI struct {
	// Binary overrides the nvidia-smi path, for tests.
	Binary string
}

func (d *NvidiaSMI) binary() string {
	if d.Binary != "" {
		return d.Binary
	}
	return "nvidia-smi"
}

// Probe checks that nvidia-smi exists and can enumerate at least one GPU.
func (d *NvidiaSMI) Probe(ctx context.Context) error {
	if _, err := exec.LookPath(d.binary()); err != nil {
		return fmt.Errorf("nvidia-smi not found: %w", err)
	}
	out, err := exec.CommandContext(ctx, d.binary(), "-L").Output()
	if err != nil {
		return fmt.Errorf("enumerate devices: %w", err)
	}
	if !strings.Contains(string(out), "GPU") {
		return fmt.Errorf("no CUDA devices reported")
	}
	return nil
}

// MemoryInfo queries free and total memory of the first GPU.
func (d *NvidiaSMI) MemoryInfo(ctx context.Context) (int, int, error) {
	out, err := exec.CommandContext(ctx, d.binary(),
		"--query-gpu=memory.free,memory.total",
		"--format=csv,noheader,nounits",
	).Output()
	if err != nil {
		return 0, 0, fmt.Errorf("query device memory: %w", err)
	}

	// One line per GPU; the worker owns GPU 0.
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	freeStr, totalStr, ok := strings.Cut(line, ",")
	if !ok {
		return 0, 0, fmt.Errorf("unexpected nvidia-smi output %q", line)
	}

	free, err := strconv.Atoi(strings.TrimSpace(freeStr))
	if err != nil {
		return 0, 0, fmt.Errorf("parse free memory %q: %w", freeStr, err)
	}
	total, err := strconv.Atoi(strings.TrimSpace(totalStr))
	if err != nil {
		return 0, 0, fmt.Errorf("parse total memory %q: %w", totalStr, err)
	}
	return free, total, nil
}
