package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config captures runtime configuration values used by the queuectl CLI and
// the read-only dashboard server.
type Config struct {
	// DBPath is the SQLite file the Store opens. Defaults to "queue.db" in
	// the working directory.
	DBPath string

	// DashboardAddress is the host:port pair the dashboard HTTP server
	// listens on. Defaults to ":8080".
	DashboardAddress string

	// BusyTimeout is the SQLite busy_timeout applied to every connection,
	// satisfying §4.1's "bounded busy timeout (≥ 30s)" requirement.
	BusyTimeout time.Duration
}

const (
	defaultDBPath           = "queue.db"
	defaultDashboardAddress = ":8080"
	defaultBusyTimeoutSec   = 30

	envDBPath           = "QUEUECTL_DB"
	envDashboardAddress = "QUEUECTL_DASHBOARD_ADDR"
	envBusyTimeoutSec   = "QUEUECTL_BUSY_TIMEOUT_SECONDS"
)

// Load reads configuration from environment variables, applying defaults for
// anything unset.
func Load() (Config, error) {
	cfg := Config{
		DBPath:           firstNonEmpty(os.Getenv(envDBPath), defaultDBPath),
		DashboardAddress: firstNonEmpty(os.Getenv(envDashboardAddress), defaultDashboardAddress),
		BusyTimeout:      time.Duration(defaultBusyTimeoutSec) * time.Second,
	}

	if raw := os.Getenv(envBusyTimeoutSec); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s value %q: %w", envBusyTimeoutSec, raw, err)
		}
		if seconds < defaultBusyTimeoutSec {
			return Config{}, fmt.Errorf("%s must be >= %d", envBusyTimeoutSec, defaultBusyTimeoutSec)
		}
		cfg.BusyTimeout = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
