package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	RouteModeAll   = "all"
	RouteModeAllow = "allow"
	RouteModeDeny  = "deny"
)

type Config struct {
	App      AppConfig
	HTTP     ServerConfig
	MySQL    MySQLConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Log      LogConfig
	Webhooks WebhooksConfig
	Loyalty  LoyaltyConfig
	Channels []ChannelConfig
	Sync     SyncConfig
}

type AppConfig struct {
	ServiceName string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	DedupTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

type LogConfig struct {
	Level string
}

type WebhooksConfig struct {
	Endpoints []WebhookEndpointConfig
}

// WebhookEndpointConfig describes one logical payment-processor endpoint.
// RouteMode and RouteIdentities form the routing predicate: an "allow"
// endpoint only processes events whose payer identity is listed, a "deny"
// endpoint processes everything except listed identities.
type WebhookEndpointConfig struct {
	Key                       string
	Secret                    string
	SignatureToleranceSeconds int64
	RouteMode                 string
	RouteIdentities           []string
}

type LoyaltyConfig struct {
	// PointsRate is points credited per whole currency unit of order total.
	PointsRate float64
}

type ChannelConfig struct {
	ID              string
	BaseURL         string
	APIKey          string
	ShopID          string
	Workers         int
	DefaultLookback time.Duration
	HTTPTimeout     time.Duration
}

type SyncConfig struct {
	Interval         time.Duration
	BatchSize        int32
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RunTimeout       time.Duration
	LogListLimit     int32
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	endpoints, err := loadWebhookEndpoints()
	if err != nil {
		return nil, err
	}

	channels, err := loadChannels()
	if err != nil {
		return nil, err
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "channel-sync-service"),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			DedupTTL: getMinutesEnv("REDIS_DEDUP_TTL_MINUTES", 24*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "channel-sync.events"),
			Enabled: getEnv("KAFKA_BROKERS", "") != "",
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Webhooks: WebhooksConfig{Endpoints: endpoints},
		Loyalty: LoyaltyConfig{
			PointsRate: getFloatEnv("LOYALTY_POINTS_RATE", 1.0),
		},
		Channels: channels,
		Sync: SyncConfig{
			Interval:         getMinutesEnv("SYNC_INTERVAL_MINUTES", 15*time.Minute),
			BatchSize:        int32(getIntEnv("SYNC_BATCH_SIZE", 500)),
			RetryMaxAttempts: getIntEnv("SYNC_RETRY_MAX_ATTEMPTS", 3),
			RetryBaseDelay:   getSecondsEnv("SYNC_RETRY_BASE_DELAY_SECONDS", time.Second),
			RunTimeout:       getMinutesEnv("SYNC_RUN_TIMEOUT_MINUTES", 10*time.Minute),
			LogListLimit:     int32(getIntEnv("SYNC_LOG_LIST_LIMIT", 50)),
		},
	}, nil
}

// loadWebhookEndpoints reads WEBHOOK_ENDPOINTS as a comma-separated list of
// endpoint keys and one WEBHOOK_<KEY>_* block per key.
func loadWebhookEndpoints() ([]WebhookEndpointConfig, error) {
	keys := splitList(getEnv("WEBHOOK_ENDPOINTS", "production"))

	endpoints := make([]WebhookEndpointConfig, 0, len(keys))
	for _, key := range keys {
		prefix := "WEBHOOK_" + envKey(key) + "_"
		secret := os.Getenv(prefix + "SECRET")
		if secret == "" {
			return nil, fmt.Errorf("%sSECRET environment variable is required", prefix)
		}

		mode := strings.ToLower(getEnv(prefix+"ROUTE_MODE", RouteModeAll))
		switch mode {
		case RouteModeAll, RouteModeAllow, RouteModeDeny:
		default:
			return nil, fmt.Errorf("%sROUTE_MODE must be all, allow, or deny", prefix)
		}

		endpoints = append(endpoints, WebhookEndpointConfig{
			Key:                       key,
			Secret:                    secret,
			SignatureToleranceSeconds: int64(getIntEnv(prefix+"SIGNATURE_TOLERANCE_SECONDS", 300)),
			RouteMode:                 mode,
			RouteIdentities:           splitList(getEnv(prefix+"ROUTE_IDENTITIES", "")),
		})
	}

	return endpoints, nil
}

// loadChannels reads SYNC_CHANNELS as a comma-separated list of channel ids
// and one CHANNEL_<ID>_* block per id.
func loadChannels() ([]ChannelConfig, error) {
	ids := splitList(getEnv("SYNC_CHANNELS", ""))

	channels := make([]ChannelConfig, 0, len(ids))
	for _, id := range ids {
		prefix := "CHANNEL_" + envKey(id) + "_"
		baseURL := os.Getenv(prefix + "BASE_URL")
		if baseURL == "" {
			return nil, fmt.Errorf("%sBASE_URL environment variable is required", prefix)
		}

		channels = append(channels, ChannelConfig{
			ID:              id,
			BaseURL:         baseURL,
			APIKey:          getEnv(prefix+"API_KEY", ""),
			ShopID:          getEnv(prefix+"SHOP_ID", ""),
			Workers:         getIntEnv(prefix+"WORKERS", 4),
			DefaultLookback: getMinutesEnv(prefix+"DEFAULT_LOOKBACK_MINUTES", 24*time.Hour),
			HTTPTimeout:     getSecondsEnv(prefix+"HTTP_TIMEOUT_SECONDS", 15*time.Second),
		})
	}

	return channels, nil
}

func (c *Config) Endpoint(key string) (WebhookEndpointConfig, bool) {
	for _, endpoint := range c.Webhooks.Endpoints {
		if endpoint.Key == key {
			return endpoint, true
		}
	}
	return WebhookEndpointConfig{}, false
}

func envKey(key string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(strings.TrimSpace(key)))
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
