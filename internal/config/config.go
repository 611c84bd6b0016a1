// Package config loads Porsha's runtime configuration.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the workstation configuration.
type Config struct {
	// EvidenceDir is where acquired images, the task journal and exported
	// reports are written.
	EvidenceDir string
	// LogLevel is the minimum severity emitted by the logger.
	LogLevel string
	// StopGrace is how long a cooperative stop waits before the worker is
	// abandoned.
	StopGrace time.Duration
	// SectorSize is the sector size assumed for images whose volume system
	// does not report one.
	SectorSize uint64
}

// Load reads the configuration from environment variables or defaults.
func Load() *Config {
	return &Config{
		EvidenceDir: getEnv("PORSHA_EVIDENCE_DIR", "./evidence"),
		LogLevel:    getEnv("PORSHA_LOG_LEVEL", "info"),
		StopGrace:   getDuration("PORSHA_STOP_GRACE", 2*time.Second),
		SectorSize:  getUint("PORSHA_SECTOR_SIZE", 512),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getUint(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseUint(value, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}
