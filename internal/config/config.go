package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr      = ":8080"
	defaultDBPath          = "headshotd.db"
	defaultBucket          = "user_uploads"
	defaultPipelineURL     = "http://127.0.0.1:7861"
	defaultMinFreeVRAMMB   = 8192
	defaultGenerationSteps = 28
	defaultPresignTTLS     = 3600
	defaultStorageTimeoutS = 30

	envListenAddr      = "HEADSHOTD_LISTEN_ADDR"
	envDBPath          = "HEADSHOTD_DB_PATH"
	envLogLevel        = "HEADSHOTD_LOG_LEVEL"
	envPipelineURL     = "HEADSHOTD_PIPELINE_URL"
	envMinFreeVRAMMB   = "HEADSHOTD_MIN_FREE_VRAM_MB"
	envGenerationSteps = "HEADSHOTD_GENERATION_STEPS"
	envPresignTTLS     = "HEADSHOTD_PRESIGN_TTL_SECONDS"
	envStorageTimeoutS = "HEADSHOTD_STORAGE_TIMEOUT_SECONDS"

	// Storage credentials keep the names the deployment already uses.
	EnvStorageEndpoint = "SUPABASE_URL"
	EnvStorageKey      = "SUPABASE_SERVICE_KEY"
	envBucket          = "SUPABASE_BUCKET_USER_UPLOADS"
)

// Config holds application configuration loaded from environment variables.
//
// StorageEndpoint and StorageKey may legitimately be empty at load time:
// their absence is a per-acquisition initialization failure, not a
// process-startup failure, so the resource guard checks them rather than
// Load.
type Config struct {
	ListenAddr      string
	DBPath          string
	LogLevel        slog.Level
	StorageEndpoint string
	StorageKey      string
	Bucket          string
	PipelineURL     string
	MinFreeVRAMMB   int
	GenerationSteps int
	PresignTTL      time.Duration
	StorageTimeout  time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		ListenAddr:      getEnv(envListenAddr, defaultListenAddr),
		DBPath:          getEnv(envDBPath, defaultDBPath),
		LogLevel:        parseLogLevel(os.Getenv(envLogLevel)),
		StorageEndpoint: os.Getenv(EnvStorageEndpoint),
		StorageKey:      os.Getenv(EnvStorageKey),
		Bucket:          getEnv(envBucket, defaultBucket),
		PipelineURL:     getEnv(envPipelineURL, defaultPipelineURL),
		MinFreeVRAMMB:   getEnvInt(envMinFreeVRAMMB, defaultMinFreeVRAMMB),
		GenerationSteps: getEnvInt(envGenerationSteps, defaultGenerationSteps),
		PresignTTL:      time.Second * time.Duration(getEnvInt(envPresignTTLS, defaultPresignTTLS)),
		StorageTimeout:  time.Second * time.Duration(getEnvInt(envStorageTimeoutS, defaultStorageTimeoutS)),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
