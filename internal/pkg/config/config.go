package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET, required"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT, default=10s"`

	Mongo     MongoConfig
	Redis     RedisConfig
	Telemetry TelemetryConfig
	Alerts    AlertConfig
	Eta       EtaConfig
	AMQP      AMQPConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=schooltrack"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

// TelemetryConfig points at the position feed of the GPS tracking server.
type TelemetryConfig struct {
	URL      string        `env:"TELEMETRY_URL,      required"`
	Username string        `env:"TELEMETRY_USERNAME"`
	Password string        `env:"TELEMETRY_PASSWORD"`
	Interval time.Duration `env:"TELEMETRY_INTERVAL, default=10s"`
	Timeout  time.Duration `env:"TELEMETRY_TIMEOUT,  default=8s"`
}

type AlertConfig struct {
	TickInterval              time.Duration `env:"ALERT_TICK_INTERVAL,         default=10s"`
	GeofenceRefreshInterval   time.Duration `env:"GEOFENCE_REFRESH_INTERVAL,   default=60s"`
	PreferenceRefreshInterval time.Duration `env:"PREFERENCE_REFRESH_INTERVAL, default=60s"`
	SuppressWindow            time.Duration `env:"ALERT_SUPPRESS_WINDOW,       default=30s"`
	// AttendanceTimezone decides which calendar day's attendance is read.
	AttendanceTimezone string `env:"ATTENDANCE_TIMEZONE, default=Asia/Kolkata"`
}

type EtaConfig struct {
	Interval time.Duration `env:"ETA_INTERVAL,  default=10s"`
	Cooldown time.Duration `env:"ETA_COOLDOWN,  default=3h"`
	MinSpeed float64       `env:"ETA_MIN_SPEED, default=5"`
}

// AMQPConfig enables forwarding of persisted batches. Empty URL disables it.
type AMQPConfig struct {
	URL      string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE, default=tracker.alerts"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := Parse(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// Parse reads configuration from l and checks the values envconfig cannot.
func Parse(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if _, err := cfg.Alerts.Location(); err != nil {
		return nil, err
	}
	for name, d := range map[string]time.Duration{
		"ALERT_TICK_INTERVAL": cfg.Alerts.TickInterval,
		"TELEMETRY_INTERVAL":  cfg.Telemetry.Interval,
		"ETA_INTERVAL":        cfg.Eta.Interval,
	} {
		if d <= 0 {
			return nil, fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return &cfg, nil
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves AttendanceTimezone.
func (c AlertConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.AttendanceTimezone)
	if err != nil {
		return nil, fmt.Errorf("ATTENDANCE_TIMEZONE: %w", err)
	}
	return loc, nil
}
