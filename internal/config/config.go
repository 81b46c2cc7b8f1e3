package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config 风险分析服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig

	// 风险分析服务特定配置
	Agents struct {
		// 分析触发方式
		// 选项：polling（轮询近期活跃用户）、events（消费打卡事件流）
		TriggerMode string // "polling" 或 "events"

		// 轮询模式配置
		Polling struct {
			Interval int // 轮询间隔（秒），默认 300 秒
		}

		// Redis Streams 配置（用于接收打卡事件）
		EventStream   string // 事件流名称，如 "checkin:events"
		ConsumerGroup string // 消费者组名称，如 "risk-agents-group"
		ConsumerName  string // 消费者名称，如 "risk-agents-1"
		BatchSize     int    // 批量处理大小，默认 10

		// 基线缓存刷新周期（每月刷新一次基线）
		BaselineCacheTTL time.Duration
		// 分析结果缓存有效期
		AnalysisCacheTTL time.Duration
	}

	// 危机升级通知配置
	Notifier struct {
		Enabled    bool   // 是否启用危机升级通知
		WebhookURL string // 升级通知 Webhook 地址（为空则禁用）
		Timeout    int    // 请求超时（秒）
		RetryCount int    // 失败重试次数
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "recoveryos")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 10)
	cfg.Database.MaxIdle = getEnvInt("DB_MAX_IDLE", 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	// 风险分析服务配置
	cfg.Agents.TriggerMode = getEnv("AGENTS_TRIGGER_MODE", "events")
	cfg.Agents.Polling.Interval = getEnvInt("AGENTS_POLLING_INTERVAL", 300)
	cfg.Agents.EventStream = getEnv("CHECKIN_EVENT_STREAM", "checkin:events")
	cfg.Agents.ConsumerGroup = getEnv("CHECKIN_CONSUMER_GROUP", "risk-agents-group")
	cfg.Agents.ConsumerName = getEnv("CHECKIN_CONSUMER_NAME", "risk-agents-1")
	cfg.Agents.BatchSize = getEnvInt("CHECKIN_BATCH_SIZE", 10)
	cfg.Agents.BaselineCacheTTL = time.Duration(getEnvInt("BASELINE_CACHE_TTL_HOURS", 720)) * time.Hour
	cfg.Agents.AnalysisCacheTTL = time.Duration(getEnvInt("ANALYSIS_CACHE_TTL_HOURS", 24)) * time.Hour

	// 危机升级通知
	cfg.Notifier.Enabled = getEnv("CRISIS_ALERTS_ENABLED", "true") == "true"
	cfg.Notifier.WebhookURL = getEnv("CRISIS_WEBHOOK_URL", "")
	cfg.Notifier.Timeout = getEnvInt("CRISIS_WEBHOOK_TIMEOUT", 10)
	cfg.Notifier.RetryCount = getEnvInt("CRISIS_WEBHOOK_RETRY", 3)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if v, err := strconv.Atoi(value); err == nil && v > 0 {
			return v
		}
	}
	return defaultValue
}
