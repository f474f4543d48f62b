package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(envListenAddr, "")
	t.Setenv(envDBPath, "")
	t.Setenv(envLogLevel, "")
	t.Setenv(envBucket, "")
	t.Setenv(envMinFreeVRAMMB, "")
	t.Setenv(envPresignTTLS, "")

	cfg := Load()

	if cfg.ListenAddr != defaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, defaultListenAddr)
	}
	if cfg.DBPath != defaultDBPath {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
	if cfg.Bucket != defaultBucket {
		t.Errorf("Bucket = %q, want %q", cfg.Bucket, defaultBucket)
	}
	if cfg.MinFreeVRAMMB != defaultMinFreeVRAMMB {
		t.Errorf("MinFreeVRAMMB = %d, want %d", cfg.MinFreeVRAMMB, defaultMinFreeVRAMMB)
	}
	if cfg.PresignTTL != time.Hour {
		t.Errorf("PresignTTL = %v, want %v", cfg.PresignTTL, time.Hour)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(envListenAddr, ":9090")
	t.Setenv(envDBPath, "/tmp/test.db")
	t.Setenv(envLogLevel, "debug")
	t.Setenv(EnvStorageEndpoint, "https://project.supabase.co")
	t.Setenv(EnvStorageKey, "service-key")
	t.Setenv(envBucket, "artifacts")
	t.Setenv(envMinFreeVRAMMB, "4096")
	t.Setenv(envGenerationSteps, "12")
	t.Setenv(envStorageTimeoutS, "5")

	cfg := Load()

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.StorageEndpoint != "https://project.supabase.co" {
		t.Errorf("StorageEndpoint = %q, want supabase URL", cfg.StorageEndpoint)
	}
	if cfg.StorageKey != "service-key" {
		t.Errorf("StorageKey = %q, want %q", cfg.StorageKey, "service-key")
	}
	if cfg.Bucket != "artifacts" {
		t.Errorf("Bucket = %q, want %q", cfg.Bucket, "artifacts")
	}
	if cfg.MinFreeVRAMMB != 4096 {
		t.Errorf("MinFreeVRAMMB = %d, want 4096", cfg.MinFreeVRAMMB)
	}
	if cfg.GenerationSteps != 12 {
		t.Errorf("GenerationSteps = %d, want 12", cfg.GenerationSteps)
	}
	if cfg.StorageTimeout != 5*time.Second {
		t.Errorf("StorageTimeout = %v, want 5s", cfg.StorageTimeout)
	}
}

func TestMissingStorageConfigIsNotFatal(t *testing.T) {
	t.Setenv(EnvStorageEndpoint, "")
	t.Setenv(EnvStorageKey, "")

	cfg := Load()

	// Absent storage settings degrade initialization per job; Load
	// itself must succeed so the process can come up and answer.
	if cfg.StorageEndpoint != "" || cfg.StorageKey != "" {
		t.Errorf("expected empty storage settings, got %q / %q", cfg.StorageEndpoint, cfg.StorageKey)
	}
}

func TestGetEnvIntIgnoresGarbage(t *testing.T) {
	t.Setenv(envMinFreeVRAMMB, "not-a-number")

	cfg := Load()
	if cfg.MinFreeVRAMMB != defaultMinFreeVRAMMB {
		t.Errorf("MinFreeVRAMMB = %d, want default %d", cfg.MinFreeVRAMMB, defaultMinFreeVRAMMB)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		got := parseLogLevel(tt.input)
		if got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLoggerOutputsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}

	logger.Info("test message", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("logger output is not valid JSON: %v\noutput: %s", err, buf.String())
	}

	for _, key := range []string{"time", "level", "msg"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("JSON output missing expected key %q", key)
		}
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want %q", entry["msg"], "test message")
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want %q", entry["key"], "value")
	}
}
