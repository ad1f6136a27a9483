package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"collections/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	DataService   DataServiceConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Search        SearchConfig
	ErrorTracking ErrorTrackingConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"collections-portal"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
	// DefaultLocale picks translated entity names when the request has no preference.
	DefaultLocale string `envconfig:"DEFAULT_LOCALE" default:"es"`
}

type HTTPConfig struct {
	Port            int           `envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"15s"`
	ShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	// CollectionsPath is where filter navigations redirect to.
	CollectionsPath string   `envconfig:"COLLECTIONS_PATH" default:"/collections"`
	AllowedOrigins  []string `envconfig:"WS_ALLOWED_ORIGINS"`
}

type DataServiceConfig struct {
	BaseURL   string        `envconfig:"DATA_SERVICE_URL" required:"true"`
	APIKey    string        `envconfig:"DATA_SERVICE_API_KEY"`
	Timeout   time.Duration `envconfig:"DATA_SERVICE_TIMEOUT" default:"10s"`
	RateLimit float64       `envconfig:"DATA_SERVICE_RATE_LIMIT" default:"50"` // requests per second
	Burst     int           `envconfig:"DATA_SERVICE_BURST" default:"20"`
	PageSize  int           `envconfig:"DATA_SERVICE_PAGE_SIZE" default:"20"`
}

type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	// Navigation events are off when no brokers are set.
	Brokers []string `envconfig:"KAFKA_BROKERS"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type SearchConfig struct {
	Debounce       time.Duration `envconfig:"SEARCH_DEBOUNCE" default:"300ms"`
	TextDebounce   time.Duration `envconfig:"SEARCH_TEXT_DEBOUNCE" default:"500ms"`
	RequestTimeout time.Duration `envconfig:"SEARCH_REQUEST_TIMEOUT" default:"8s"`
	ResolveTimeout time.Duration `envconfig:"RESOLVE_TIMEOUT" default:"5s"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	Provider    string `envconfig:"ERROR_TRACKING_PROVIDER" default:"sentry"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not exists)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	return &cfg, nil
}
