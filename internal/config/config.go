package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	OpenAI     OpenAIConfig
	Auth       AuthConfig
	Knowledge  KnowledgeConfig
	Orders     OrdersConfig
	Redis      RedisConfig
	MongoDB    MongoDBConfig
	Kafka      KafkaConfig
	Logging    LoggingConfig

	// Warnings collects values that failed to parse and fell back to defaults.
	// The logger does not exist yet while config loads, so callers log these.
	Warnings []string
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, takes precedence over the fields below
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port              int
	Host              string
	GinMode           string
	AllowedOrigins    string
	EnableDebugRoutes bool
	ShutdownTimeout   int    // seconds
	StoreDriver       string // postgres or memory
}

// OpenAIConfig holds OpenAI-compatible API configuration
type OpenAIConfig struct {
	APIKey          string
	APIBase         string
	ChatModel       string
	ChatTemperature float64
	ChatTopP        float64
	ChatMaxTokens   int
	ChatExtraBody   string // JSON string merged into requests as extra_body

	ExtractionModel       string
	ExtractionTemperature float64
	ExtractionMaxTokens   int
	ExtractionTimeout     int // seconds

	Timeout int // seconds, HTTP client
	Enabled bool
}

// AuthConfig holds JWT verification settings. Tokens are issued elsewhere.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// KnowledgeConfig holds knowledge base settings
type KnowledgeConfig struct {
	Path         string
	MaxResults   int
	HistoryLimit int
}

// OrdersConfig holds order lifecycle settings
type OrdersConfig struct {
	IDPrefix                string
	DeliveryEstimateMinutes int
	MaxIDAttempts           int
}

// RedisConfig holds the order cache connection. Empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	OrderTTL int // seconds
}

// MongoDBConfig holds the audit log connection. Empty URI disables auditing.
type MongoDBConfig struct {
	URI        string
	Database   string
	Collection string
}

// KafkaConfig holds order event settings. Empty Brokers disables Kafka.
type KafkaConfig struct {
	Brokers       string
	OrderTopic    string
	StatusTopic   string
	ConsumerGroup string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from .env, the environment, an optional config
// file and any flags bound on v. A nil v uses a fresh viper instance.
func Load(v *viper.Viper) (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	if v == nil {
		v = viper.New()
	}
	v.AutomaticEnv()

	l := &loader{v: v}
	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                l.getEnv("DATABASE_URL", l.getEnv("POSTGRESQL_URI", l.getEnv("PG_DSN", ""))),
			Host:               l.getEnv("PG_HOST", "localhost"),
			Port:               l.getEnvAsInt("PG_PORT", 5432),
			User:               l.getEnv("PG_USER", "postgres"),
			Password:           l.getEnv("PG_PASSWORD", ""),
			Database:           l.getEnv("PG_DATABASE", "perfbot"),
			SSLMode:            l.getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     l.getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: l.getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		Server: ServerConfig{
			Port:              l.getEnvAsInt("SERVER_PORT", 8080),
			Host:              l.getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:           l.getEnv("GIN_MODE", "release"),
			AllowedOrigins:    l.getEnv("CORS_ALLOWED_ORIGINS", "*"),
			EnableDebugRoutes: l.getEnvAsBool("ENABLE_DEBUG_ROUTES", false),
			ShutdownTimeout:   l.getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT", 10),
			StoreDriver:       strings.ToLower(l.getEnv("STORE_DRIVER", "postgres")),
		},
		OpenAI: OpenAIConfig{
			APIKey:                l.getEnv("OPENAI_API_KEY", ""),
			APIBase:               strings.TrimRight(l.getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"), "/"),
			ChatModel:             l.getEnv("OPENAI_CHAT_MODEL", "gpt-3.5-turbo"),
			ChatTemperature:       l.getEnvAsFloat("OPENAI_CHAT_TEMPERATURE", 0.7),
			ChatTopP:              l.getEnvAsFloat("OPENAI_CHAT_TOP_P", 0),
			ChatMaxTokens:         l.getEnvAsInt("OPENAI_CHAT_MAX_TOKENS", 500),
			ChatExtraBody:         l.getEnv("OPENAI_CHAT_EXTRA_BODY", ""),
			ExtractionModel:       l.getEnv("OPENAI_EXTRACTION_MODEL", ""),
			ExtractionTemperature: l.getEnvAsFloat("OPENAI_EXTRACTION_TEMPERATURE", 0.1),
			ExtractionMaxTokens:   l.getEnvAsInt("OPENAI_EXTRACTION_MAX_TOKENS", 1000),
			ExtractionTimeout:     l.getEnvAsInt("OPENAI_EXTRACTION_TIMEOUT", 15),
			Timeout:               l.getEnvAsInt("OPENAI_TIMEOUT", 30),
			Enabled:               l.getEnv("OPENAI_API_KEY", "") != "",
		},
		Auth: AuthConfig{
			JWTSecret: l.getEnv("JWT_SECRET_KEY", ""),
			Issuer:    l.getEnv("JWT_ISSUER", ""),
		},
		Knowledge: KnowledgeConfig{
			Path:         l.getEnv("KNOWLEDGE_BASE_PATH", "knowledge_base"),
			MaxResults:   l.getEnvAsInt("KNOWLEDGE_MAX_RESULTS", 3),
			HistoryLimit: l.getEnvAsInt("CHAT_HISTORY_LIMIT", 10),
		},
		Orders: OrdersConfig{
			IDPrefix:                l.getEnv("ORDER_ID_PREFIX", "PB"),
			DeliveryEstimateMinutes: l.getEnvAsInt("ORDER_DELIVERY_ESTIMATE_MINUTES", 30),
			MaxIDAttempts:           l.getEnvAsInt("ORDER_MAX_ID_ATTEMPTS", 10),
		},
		Redis: RedisConfig{
			Addr:     l.getEnv("REDIS_ADDR", ""),
			Password: l.getEnv("REDIS_PASSWORD", ""),
			DB:       l.getEnvAsInt("REDIS_DB", 0),
			PoolSize: l.getEnvAsInt("REDIS_POOL_SIZE", 10),
			OrderTTL: l.getEnvAsInt("REDIS_ORDER_TTL", 300),
		},
		MongoDB: MongoDBConfig{
			URI:        l.getEnv("MONGODB_URI", ""),
			Database:   l.getEnv("MONGODB_DATABASE", "perfbot"),
			Collection: l.getEnv("MONGODB_AUDIT_COLLECTION", "audit_logs"),
		},
		Kafka: KafkaConfig{
			Brokers:       l.getEnv("KAFKA_BROKERS", ""),
			OrderTopic:    l.getEnv("KAFKA_ORDER_TOPIC", "perfbot.orders.created"),
			StatusTopic:   l.getEnv("KAFKA_STATUS_TOPIC", "perfbot.orders.status"),
			ConsumerGroup: l.getEnv("KAFKA_CONSUMER_GROUP", "perfbot-order-status"),
		},
		Logging: LoggingConfig{
			Level:  l.getEnv("LOG_LEVEL", "info"),
			Format: l.getEnv("LOG_FORMAT", "json"),
		},
	}
	cfg.Warnings = l.warnings

	return cfg, nil
}

// Validate checks settings that the HTTP server cannot run without
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET_KEY is required")
	}
	if c.Knowledge.MaxResults <= 0 {
		return fmt.Errorf("KNOWLEDGE_MAX_RESULTS must be positive, got %d", c.Knowledge.MaxResults)
	}
	switch c.Server.StoreDriver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.Server.StoreDriver)
	}
	if c.Orders.MaxIDAttempts <= 0 {
		return fmt.Errorf("ORDER_MAX_ID_ATTEMPTS must be positive, got %d", c.Orders.MaxIDAttempts)
	}
	return nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// KafkaBrokerList splits the comma separated broker setting
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.Kafka.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// OrderCacheTTL returns the Redis TTL for cached orders
func (c *Config) OrderCacheTTL() time.Duration {
	return time.Duration(c.Redis.OrderTTL) * time.Second
}

// Helper functions

type loader struct {
	v        *viper.Viper
	warnings []string
}

func (l *loader) getEnv(key, defaultValue string) string {
	value := l.v.GetString(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func (l *loader) getEnvAsInt(key string, defaultValue int) int {
	valueStr := l.v.GetString(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		l.warnings = append(l.warnings, fmt.Sprintf("invalid integer value for %s, using default %d", key, defaultValue))
		return defaultValue
	}
	return value
}

func (l *loader) getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := l.v.GetString(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		l.warnings = append(l.warnings, fmt.Sprintf("invalid float value for %s, using default %f", key, defaultValue))
		return defaultValue
	}
	return value
}

func (l *loader) getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := l.v.GetString(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		l.warnings = append(l.warnings, fmt.Sprintf("invalid boolean value for %s, using default %t", key, defaultValue))
		return defaultValue
	}
	return value
}
