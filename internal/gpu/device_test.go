package gpu

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// fakeSMI writes a stand-in nvidia-smi script that answers -L with the
// given device listing and the memory query with the given csv line.
func fakeSMI(t *testing.T, listing, memoryCSV string) string {
	t.Helper()
	script := "#!/bin/sh\n" +
		"case \"$1\" in\n" +
		"-L) printf '%s\\n' '" + listing + "' ;;\n" +
		"*) printf '%s\\n' '" + memoryCSV + "' ;;\n" +
		"esac\n"
	path := filepath.Join(t.TempDir(), "nvidia-smi")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake nvidia-smi: %v", err)
	}
	return path
}

func TestNvidiaSMIProbe(t *testing.T) {
	d := &NvidiaSMI{Binary: fakeSMI(t, "GPU 0: NVIDIA A40 (UUID: GPU-abc)", "16384, 46068")}
	if err := d.Probe(context.Background()); err != nil {
		t.Fatalf("Probe: %v", err)
	}
}

func TestNvidiaSMIProbeNoDevices(t *testing.T) {
	d := &NvidiaSMI{Binary: fakeSMI(t, "No devices were found", "")}
	if err := d.Probe(context.Background()); err == nil {
		t.Fatal("expected probe failure with no devices listed")
	}
}

func TestNvidiaSMIProbeMissingBinary(t *testing.T) {
	d := &NvidiaSMI{Binary: filepath.Join(t.TempDir(), "missing")}
	if err := d.Probe(context.Background()); err == nil {
		t.Fatal("expected probe failure for missing binary")
	}
}

func TestNvidiaSMIMemoryInfo(t *testing.T) {
	d := &NvidiaSMI{Binary: fakeSMI(t, "GPU 0: NVIDIA A40", "16384, 46068")}

	free, total, err := d.MemoryInfo(context.Background())
	if err != nil {
		t.Fatalf("MemoryInfo: %v", err)
	}
	if free != 16384 || total != 46068 {
		t.Errorf("free/total = %d/%d, want 16384/46068", free, total)
	}
}

func TestNvidiaSMIMemoryInfoBadOutput(t *testing.T) {
	d := &NvidiaSMI{Binary: fakeSMI(t, "GPU 0", "garbage")}
	if _, _, err := d.MemoryInfo(context.Background()); err == nil {
		t.Fatal("expected parse failure for malformed output")
	}
}
