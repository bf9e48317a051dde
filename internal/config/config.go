package config

import (
	"os"
	"strconv"
)

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MQTTConfig MQTT配置
type MQTTConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// Config 遥测服务配置
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	MQTT     MQTTConfig

	// 遥测引擎特定配置
	Telemetry struct {
		// 历史窗口配置
		History struct {
			Capacity int // 每个指标的历史样本容量，默认 20
		}

		// 报警配置
		Alert struct {
			ExpirySeconds int // warning/danger 报警自动清除窗口（秒），默认 30
		}

		// 阈值配置
		Threshold struct {
			GasBase float64 // 气体阈值校准基准（ppm），默认 300
		}

		// Redis 缓存配置
		Cache struct {
			RealtimeKeyPrefix string // 实时数据缓存键前缀，如 "homesafe:device:"
			RealtimeSuffix    string // 实时数据缓存键后缀，如 ":realtime"
			AlertKeyPrefix    string // 报警数据缓存键前缀，如 "homesafe:device:"
			AlertSuffix       string // 报警数据缓存键后缀，如 ":alerts"
			TTL               int    // 缓存 TTL（秒），默认 60
			RefreshSeconds    int    // 快照定期刷新间隔（秒），默认 5
		}
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	// 从环境变量加载（带默认值）
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = getEnvInt("DB_PORT", 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "homesafe")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "homesafe-telemetry")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = 1

	cfg.Telemetry.History.Capacity = getEnvInt("HISTORY_CAPACITY", 20)
	cfg.Telemetry.Alert.ExpirySeconds = getEnvInt("ALERT_EXPIRY_SECONDS", 30)
	cfg.Telemetry.Threshold.GasBase = getEnvFloat("GAS_BASE_THRESHOLD", 300)

	cfg.Telemetry.Cache.RealtimeKeyPrefix = getEnv("CACHE_REALTIME_PREFIX", "homesafe:device:")
	cfg.Telemetry.Cache.RealtimeSuffix = ":realtime"
	cfg.Telemetry.Cache.AlertKeyPrefix = getEnv("CACHE_ALERT_PREFIX", "homesafe:device:")
	cfg.Telemetry.Cache.AlertSuffix = ":alerts"
	cfg.Telemetry.Cache.TTL = getEnvInt("CACHE_TTL_SECONDS", 60)
	cfg.Telemetry.Cache.RefreshSeconds = getEnvInt("CACHE_REFRESH_SECONDS", 5)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg, nil
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return "host=" + c.Host +
		" port=" + strconv.Itoa(c.Port) +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Database +
		" sslmode=" + c.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
