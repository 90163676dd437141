package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 10 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 6 * time.Hour

// Sensor link
const (
	SensorCallTimeout   = 15 * time.Second
	SensorEnrollTimeout = 60 * time.Second
)

// Delay between the reboot notification and process exit
const RebootDelay = time.Second

const VersionInfo = "1.0"
