package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// 上游平台配置
	APIBaseURL  string
	FeedURL     string
	AccessToken string
	TokenTTL    time.Duration

	// 服务器配置
	Port string

	// 其他配置
	Environment string

	// 实时推送配置
	HandshakeTimeout     time.Duration
	ConnectTimeout       time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int // 0 = 无限重试

	// 批量拉取配置
	BootstrapBatchSize int
	BootstrapStagger   time.Duration
	BootstrapPause     time.Duration

	// Pre-match 拉取配置
	PrematchPageLimit int
	PrematchMaxPages  int
}

func Load() *Config {
	// 本地开发时从 .env 加载 (文件不存在则忽略)
	_ = godotenv.Load()

	return &Config{
		// 上游平台配置
		APIBaseURL:  getEnv("ODDS_API_BASE_URL", "https://api.oddsplatform.example.com/v1"),
		FeedURL:     getEnv("ODDS_FEED_URL", "wss://feed.oddsplatform.example.com/socket"),
		AccessToken: getEnv("ODDS_ACCESS_TOKEN", ""),
		TokenTTL:    getEnvDuration("ODDS_TOKEN_TTL", time.Hour),

		// 服务器配置
		Port: getEnv("PORT", "8080"),

		// 其他配置
		Environment: getEnv("ENVIRONMENT", "development"),

		// 实时推送配置
		HandshakeTimeout:     getEnvDuration("FEED_HANDSHAKE_TIMEOUT", 10*time.Second),
		ConnectTimeout:       getEnvDuration("FEED_CONNECT_TIMEOUT", 10*time.Second),
		ReconnectDelay:       getEnvDuration("FEED_RECONNECT_DELAY", 5*time.Second),
		MaxReconnectAttempts: getEnvInt("FEED_MAX_RECONNECT_ATTEMPTS", 0),

		// 批量拉取配置
		BootstrapBatchSize: getEnvInt("BOOTSTRAP_BATCH_SIZE", 5),
		BootstrapStagger:   getEnvDuration("BOOTSTRAP_STAGGER", 100*time.Millisecond),
		BootstrapPause:     getEnvDuration("BOOTSTRAP_PAUSE", 500*time.Millisecond),

		// Pre-match 拉取配置
		PrematchPageLimit: getEnvInt("PREMATCH_PAGE_LIMIT", 100),
		PrematchMaxPages:  getEnvInt("PREMATCH_MAX_PAGES", 10), // 最多 10 页,避免无限循环
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
