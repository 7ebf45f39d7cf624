package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type AppConfig struct {
	DatabaseURL        string
	RabbitMQURL        string
	RedisSentinelHosts string
	RedisMasterName    string
	RedisUrl           string
	LogLevel           string
	ServiceName        string
	MetricsAddr        string
	OtelEndpoint       string
	Campaign           CampaignConfig
}

// CampaignConfig holds the fuzzing knobs. CLI flags override them.
type CampaignConfig struct {
	OutputDir     string
	Libdesock     string
	CorpusDir     string
	DictPath      string
	Cores         string
	Command       []string
	ExtraBinaries []string
	Timeout       time.Duration
	MaxPackets    int
	MaxTokens     int
	StatsInterval time.Duration
	TemplatesFile string
}

// Telemetry reports whether an OTLP collector is configured.
func (c *AppConfig) Telemetry() bool {
	return c.OtelEndpoint != ""
}

// Redis reports whether any Redis backend is configured.
func (c *AppConfig) Redis() bool {
	return c.RedisUrl != "" || (c.RedisSentinelHosts != "" && c.RedisMasterName != "")
}

func LoadConfig() *AppConfig {
	// use a temporary logger for now
	logger := zap.NewExample().Named("config")

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env file", zap.Error(err))
	}

	config := &AppConfig{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RabbitMQURL:        os.Getenv("RABBITMQ_URL"),
		RedisSentinelHosts: os.Getenv("REDIS_SENTINEL_HOSTS"),
		RedisMasterName:    os.Getenv("REDIS_MASTER"),
		RedisUrl:           os.Getenv("OVERRIDE_REDIS_URL"), // optional, for local dev
		LogLevel:           os.Getenv("LOG_LEVEL"),
		ServiceName:        os.Getenv("SERVICE_NAME"),
		MetricsAddr:        os.Getenv("METRICS_ADDR"),
		OtelEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Campaign: CampaignConfig{
			Cores:         os.Getenv("FUZZ_CORES"),
			Timeout:       parseDuration(os.Getenv("FUZZ_TIMEOUT"), 5*time.Second),
			MaxPackets:    parseInt(os.Getenv("MAX_PACKETS"), 16),
			MaxTokens:     parseInt(os.Getenv("MAX_TOKENS"), 16),
			StatsInterval: parseDuration(os.Getenv("STATS_INTERVAL"), time.Minute),
			TemplatesFile: os.Getenv("TEMPLATES_FILE"),
		},
	}

	if config.LogLevel == "" {
		config.LogLevel = "info" // Set default log level
	}
	if config.ServiceName == "" {
		config.ServiceName = "desockfuzz" // Default service name
	}
	if config.Campaign.Cores == "" {
		config.Campaign.Cores = "0"
	}
	if config.Campaign.MaxPackets <= 0 {
		logger.Warn("MAX_PACKETS must be positive, using default", zap.Int("value", config.Campaign.MaxPackets))
		config.Campaign.MaxPackets = 16
	}
	if config.Campaign.MaxTokens <= 0 {
		logger.Warn("MAX_TOKENS must be positive, using default", zap.Int("value", config.Campaign.MaxTokens))
		config.Campaign.MaxTokens = 16
	}

	return config
}

func parseDuration(val string, defaultVal time.Duration) time.Duration {
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func parseInt(val string, defaultVal int) int {
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}
