package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const (
	DatabaseDriverSQLite   = "sqlite"
	DatabaseDriverPostgres = "postgres"

	SettingsBackendDatabase = "database"
	SettingsBackendFile     = "file"

	ErrorEdgePolicyTransparent = "transparent"
	ErrorEdgePolicyOverwrite   = "overwrite"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseDriver  string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL     string `env:"DATABASE_URL" envDefault:"file:./data/doorbell.db"`
	SettingsBackend string `env:"SETTINGS_BACKEND" envDefault:"database"`
	SettingsFile    string `env:"SETTINGS_FILE" envDefault:"./data/settings.yaml"`
	RedisURL        string `env:"REDIS_URL"`

	SensorPort string `env:"SENSOR_PORT"`
	SensorBaud int    `env:"SENSOR_BAUD" envDefault:"57600"`

	MQTTBrokerURL     string `env:"MQTT_BROKER_URL"`
	MQTTUsername      string `env:"MQTT_USERNAME"`
	MQTTPassword      string `env:"MQTT_PASSWORD"`
	MQTTClientID      string `env:"MQTT_CLIENT_ID" envDefault:"fingerprint-doorbell"`
	HADiscoveryPrefix string `env:"HA_DISCOVERY_PREFIX" envDefault:"homeassistant"`

	DoorbellGPIOPath string `env:"DOORBELL_GPIO_PATH"`
	DoorbellPulseMs  int    `env:"DOORBELL_PULSE_MS" envDefault:"500"`

	SettleDelayMs        int    `env:"SETTLE_DELAY_MS" envDefault:"3000"`
	TickIntervalMs       int    `env:"TICK_INTERVAL_MS" envDefault:"50"`
	MaintenanceTimeoutMs int    `env:"MAINTENANCE_TIMEOUT_MS" envDefault:"5000"`
	ScanErrorEdgePolicy  string `env:"SCAN_ERROR_EDGE_POLICY" envDefault:"transparent"`
	LogBufferSize        int    `env:"LOG_BUFFER_SIZE" envDefault:"5"`

	FingerlistCacheTTLSeconds int    `env:"FINGERLIST_CACHE_TTL_SECONDS" envDefault:"60"`
	DetectionRetentionDays    int    `env:"DETECTION_RETENTION_DAYS" envDefault:"30"`
	WifiSignalIntervalSeconds int    `env:"WIFI_SIGNAL_INTERVAL_SECONDS" envDefault:"300"`
	WirelessInterface         string `env:"WIRELESS_INTERFACE" envDefault:"wlan0"`

	AdminPasswordHash string  `env:"ADMIN_PASSWORD_HASH"`
	VAPIDPublicKey    string  `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey   string  `env:"VAPID_PRIVATE_KEY"`
	VAPIDSubject      string  `env:"VAPID_SUBJECT" envDefault:"mailto:admin@localhost"`
	RateLimitPerSec   float64 `env:"RATE_LIMIT_PER_SEC" envDefault:"5"`
	StaticDir         string  `env:"STATIC_DIR"`
	SecureCookies     bool    `env:"SECURE_COOKIES" envDefault:"false"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

func (c *Config) MaintenanceTimeout() time.Duration {
	return time.Duration(c.MaintenanceTimeoutMs) * time.Millisecond
}

func (c *Config) DoorbellPulse() time.Duration {
	return time.Duration(c.DoorbellPulseMs) * time.Millisecond
}

func (c *Config) FingerlistCacheTTL() time.Duration {
	return time.Duration(c.FingerlistCacheTTLSeconds) * time.Second
}

func (c *Config) WifiSignalInterval() time.Duration {
	return time.Duration(c.WifiSignalIntervalSeconds) * time.Second
}

func (c *Config) DetectionRetention() time.Duration {
	return time.Duration(c.DetectionRetentionDays) * 24 * time.Hour
}

func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case DatabaseDriverSQLite, DatabaseDriverPostgres:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be %q or %q", DatabaseDriverSQLite, DatabaseDriverPostgres)
	}

	switch c.SettingsBackend {
	case SettingsBackendDatabase, SettingsBackendFile:
	default:
		return fmt.Errorf("SETTINGS_BACKEND must be %q or %q", SettingsBackendDatabase, SettingsBackendFile)
	}

	switch c.ScanErrorEdgePolicy {
	case ErrorEdgePolicyTransparent, ErrorEdgePolicyOverwrite:
	default:
		return fmt.Errorf("SCAN_ERROR_EDGE_POLICY must be %q or %q", ErrorEdgePolicyTransparent, ErrorEdgePolicyOverwrite)
	}

	if c.LogBufferSize < 1 {
		return fmt.Errorf("LOG_BUFFER_SIZE must be at least 1")
	}
	if c.TickIntervalMs < 1 {
		return fmt.Errorf("TICK_INTERVAL_MS must be at least 1")
	}

	if c.AdminPasswordHash != "" {
		if !strings.HasPrefix(c.AdminPasswordHash, "$2a$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2b$") &&
			!strings.HasPrefix(c.AdminPasswordHash, "$2y$") {
			return fmt.Errorf("ADMIN_PASSWORD_HASH must be a bcrypt hash (generate with: go run scripts/hash-password.go <password>)")
		}
	} else {
		log.Warn().Msg("ADMIN_PASSWORD_HASH is empty: web API is not password protected")
	}

	if c.SensorPort == "" {
		log.Warn().Msg("SENSOR_PORT is empty: using the simulated fingerprint sensor")
	}
	if c.MQTTBrokerURL == "" {
		log.Warn().Msg("MQTT_BROKER_URL is empty: home automation publishing disabled")
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
