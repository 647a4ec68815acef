// Package config loads the environment-driven configuration surface
// shared by the worker, sync, and aggregator binaries.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the configuration surface of §6: datastore connection,
// message-bus connection, admin credentials, plus the worker-service
// tuning knobs the spec leaves as implementer-chosen constants.
type Config struct {
	// External collaborators (§6 configuration surface).
	DatabaseURL   string `envconfig:"DATABASE_URL" required:"true"`
	RedisURL      string `envconfig:"REDIS_URL" required:"true"`
	QueueURL      string `envconfig:"QUEUE_URL" required:"true"`
	AdminUser     string `envconfig:"ADMIN_USER"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`

	// Worker tuning (§4.1, §9 open question (b) and (c)).
	DefaultRunTime       time.Duration `envconfig:"DEFAULT_RUN_TIME" default:"60s"`
	MaxMessageSize       int           `envconfig:"MAX_MESSAGE_SIZE" default:"262144"`
	QueueConcurrency     int           `envconfig:"QUEUE_CONCURRENCY" default:"1"`
	QueueRetryAttempts   int           `envconfig:"QUEUE_RETRY_ATTEMPTS" default:"3"`
	QueueRetryBaseDelay  time.Duration `envconfig:"QUEUE_RETRY_BASE_DELAY" default:"250ms"`
	QueueRetryMaxDelay   time.Duration `envconfig:"QUEUE_RETRY_MAX_DELAY" default:"2s"`
	ShutdownDrainTimeout time.Duration `envconfig:"SHUTDOWN_DRAIN_TIMEOUT" default:"30s"`

	// Sync tuning.
	LockTTL time.Duration `envconfig:"LOCK_TTL" default:"30s"`

	// Aggregator tuning.
	AggregateBucket time.Duration `envconfig:"AGGREGATE_BUCKET" default:"15m"`

	// Observability.
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	AdminAddr      string `envconfig:"ADMIN_ADDR" default:":8080"`
}

// Load reads Config from the environment, applying defaults and
// failing fast on missing required fields (§7 "Fatal initialization
// errors").
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RunTime returns max(maxRunTime, DefaultRunTime), the per-sub-job
// deadline required by §4.1's contract.
func (c *Config) RunTime(maxRunTime int) time.Duration {
	d := time.Duration(maxRunTime) * time.Second
	if d < c.DefaultRunTime {
		return c.DefaultRunTime
	}
	return d
}
