// internal/config/config.go
package config

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	App         AppConfig
	Cache       CacheConfig
	Scheduler   SchedulerConfig
	Retention   RetentionConfig
	Storage     StorageConfig
	Broker      BrokerConfig
	Alerts      AlertsConfig
	Criticality CriticalityConfig
}

type ServerConfig struct {
	Port           string
	OpsPort        string
	Mode           string
	LogLevel       string
	LogJSON        bool
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Enabled  bool
	Driver   string
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	DataDir      string
	SeedLedger   string
	IngestPrefix string
	ExportLimit  int
}

type CacheConfig struct {
	Enabled         bool
	RedisURL        string
	RedisHost       string
	RedisPort       string
	RedisPassword   string
	RedisDB         int
	QueryTTLSeconds int
}

// SchedulerConfig holds the per-task refresh intervals. A task is
// considered due once its interval has elapsed since its last attempt.
type SchedulerConfig struct {
	Enabled           bool
	Tick              time.Duration
	StockAnalytics    time.Duration
	Reorder           time.Duration
	Summary           time.Duration
	Alerts            time.Duration
	UsageStats        time.Duration
	Cleanup           time.Duration
	WorkerCount       int
	DistributedLock   bool
	LockTTL           time.Duration
	SuspendedTasks    []string
	RefreshOnStartup  bool
	ShutdownGraceSecs int
	AggregationWindow int
	UsageShortWindow  int
	UsageLongWindow   int
}

type RetentionConfig struct {
	SummaryDays int
	AlertDays   int
	LogDays     int
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

type BrokerConfig struct {
	Enabled     bool
	Brokers     []string
	AlertsTopic string
}

type AlertsConfig struct {
	CriticalDays    float64
	SuppressOrdered bool
}

type CriticalityConfig struct {
	File string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults()

		// Read from environment variables
		viper.AutomaticEnv()

		ensureDir(viper.GetString("APP_DATA_DIR"))

		instance = fromViper()
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_OPS_PORT", "9090")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_JSON", false)
	viper.SetDefault("SERVER_READ_TIMEOUT", 15)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	viper.SetDefault("DB_ENABLED", false)
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DATABASE_URL", "")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "intellistock")
	viper.SetDefault("DB_SSLMODE", "disable")

	viper.SetDefault("APP_DATA_DIR", "./data/output")
	viper.SetDefault("APP_SEED_LEDGER", "")
	viper.SetDefault("APP_INGEST_PREFIX", "inbox/")
	viper.SetDefault("APP_EXPORT_LIMIT", 5000)

	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_QUERY_TTL_SECONDS", 60)

	viper.SetDefault("SCHEDULER_ENABLED", true)
	viper.SetDefault("SCHEDULER_TICK", "30s")
	viper.SetDefault("SCHEDULER_STOCK_ANALYTICS_INTERVAL", "5m")
	viper.SetDefault("SCHEDULER_REORDER_INTERVAL", "10m")
	viper.SetDefault("SCHEDULER_SUMMARY_INTERVAL", "10m")
	viper.SetDefault("SCHEDULER_ALERTS_INTERVAL", "10m")
	viper.SetDefault("SCHEDULER_USAGE_STATS_INTERVAL", "15m")
	viper.SetDefault("SCHEDULER_CLEANUP_INTERVAL", "24h")
	viper.SetDefault("SCHEDULER_WORKER_COUNT", 4)
	viper.SetDefault("SCHEDULER_DISTRIBUTED_LOCK", false)
	viper.SetDefault("SCHEDULER_LOCK_TTL", "15m")
	viper.SetDefault("SCHEDULER_SUSPENDED_TASKS", []string{})
	viper.SetDefault("SCHEDULER_REFRESH_ON_STARTUP", true)
	viper.SetDefault("SCHEDULER_SHUTDOWN_GRACE_SECONDS", 10)
	viper.SetDefault("ANALYTICS_AGGREGATION_WINDOW", 7)
	viper.SetDefault("ANALYTICS_USAGE_SHORT_WINDOW", 7)
	viper.SetDefault("ANALYTICS_USAGE_LONG_WINDOW", 30)

	viper.SetDefault("RETENTION_SUMMARY_DAYS", 90)
	viper.SetDefault("RETENTION_ALERT_DAYS", 180)
	viper.SetDefault("RETENTION_LOG_DAYS", 30)

	viper.SetDefault("STORAGE_ENABLED", false)
	viper.SetDefault("STORAGE_ENDPOINT", "")
	viper.SetDefault("STORAGE_ACCESS_KEY", "")
	viper.SetDefault("STORAGE_SECRET_KEY", "")
	viper.SetDefault("STORAGE_BUCKET", "intellistock")
	viper.SetDefault("STORAGE_REGION", "us-east-1")
	viper.SetDefault("STORAGE_USE_SSL", true)
	viper.SetDefault("STORAGE_PREFIX", "archive")

	viper.SetDefault("BROKER_ENABLED", false)
	viper.SetDefault("BROKER_BROKERS", []string{"localhost:9092"})
	viper.SetDefault("BROKER_ALERTS_TOPIC", "intellistock.alerts")

	viper.SetDefault("ALERTS_CRITICAL_DAYS", 3)
	viper.SetDefault("ALERTS_SUPPRESS_ORDERED", false)

	viper.SetDefault("CRITICALITY_CONFIG_FILE", "")
}

func fromViper() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			OpsPort:        viper.GetString("SERVER_OPS_PORT"),
			Mode:           viper.GetString("SERVER_MODE"),
			LogLevel:       viper.GetString("LOG_LEVEL"),
			LogJSON:        viper.GetBool("LOG_JSON"),
			ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Enabled:  viper.GetBool("DB_ENABLED"),
			Driver:   viper.GetString("DB_DRIVER"),
			URL:      viper.GetString("DATABASE_URL"),
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			DBName:   viper.GetString("DB_NAME"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
		},
		App: AppConfig{
			DataDir:      viper.GetString("APP_DATA_DIR"),
			SeedLedger:   viper.GetString("APP_SEED_LEDGER"),
			IngestPrefix: viper.GetString("APP_INGEST_PREFIX"),
			ExportLimit:  viper.GetInt("APP_EXPORT_LIMIT"),
		},
		Cache: CacheConfig{
			Enabled:         viper.GetBool("CACHE_ENABLED"),
			RedisURL:        viper.GetString("REDIS_URL"),
			RedisHost:       viper.GetString("REDIS_HOST"),
			RedisPort:       viper.GetString("REDIS_PORT"),
			RedisPassword:   viper.GetString("REDIS_PASSWORD"),
			RedisDB:         viper.GetInt("REDIS_DB"),
			QueryTTLSeconds: viper.GetInt("CACHE_QUERY_TTL_SECONDS"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           viper.GetBool("SCHEDULER_ENABLED"),
			Tick:              viper.GetDuration("SCHEDULER_TICK"),
			StockAnalytics:    viper.GetDuration("SCHEDULER_STOCK_ANALYTICS_INTERVAL"),
			Reorder:           viper.GetDuration("SCHEDULER_REORDER_INTERVAL"),
			Summary:           viper.GetDuration("SCHEDULER_SUMMARY_INTERVAL"),
			Alerts:            viper.GetDuration("SCHEDULER_ALERTS_INTERVAL"),
			UsageStats:        viper.GetDuration("SCHEDULER_USAGE_STATS_INTERVAL"),
			Cleanup:           viper.GetDuration("SCHEDULER_CLEANUP_INTERVAL"),
			WorkerCount:       viper.GetInt("SCHEDULER_WORKER_COUNT"),
			DistributedLock:   viper.GetBool("SCHEDULER_DISTRIBUTED_LOCK"),
			LockTTL:           viper.GetDuration("SCHEDULER_LOCK_TTL"),
			SuspendedTasks:    viper.GetStringSlice("SCHEDULER_SUSPENDED_TASKS"),
			RefreshOnStartup:  viper.GetBool("SCHEDULER_REFRESH_ON_STARTUP"),
			ShutdownGraceSecs: viper.GetInt("SCHEDULER_SHUTDOWN_GRACE_SECONDS"),
			AggregationWindow: viper.GetInt("ANALYTICS_AGGREGATION_WINDOW"),
			UsageShortWindow:  viper.GetInt("ANALYTICS_USAGE_SHORT_WINDOW"),
			UsageLongWindow:   viper.GetInt("ANALYTICS_USAGE_LONG_WINDOW"),
		},
		Retention: RetentionConfig{
			SummaryDays: viper.GetInt("RETENTION_SUMMARY_DAYS"),
			AlertDays:   viper.GetInt("RETENTION_ALERT_DAYS"),
			LogDays:     viper.GetInt("RETENTION_LOG_DAYS"),
		},
		Storage: StorageConfig{
			Enabled:   viper.GetBool("STORAGE_ENABLED"),
			Endpoint:  viper.GetString("STORAGE_ENDPOINT"),
			AccessKey: viper.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: viper.GetString("STORAGE_SECRET_KEY"),
			Bucket:    viper.GetString("STORAGE_BUCKET"),
			Region:    viper.GetString("STORAGE_REGION"),
			UseSSL:    viper.GetBool("STORAGE_USE_SSL"),
			Prefix:    viper.GetString("STORAGE_PREFIX"),
		},
		Broker: BrokerConfig{
			Enabled:     viper.GetBool("BROKER_ENABLED"),
			Brokers:     viper.GetStringSlice("BROKER_BROKERS"),
			AlertsTopic: viper.GetString("BROKER_ALERTS_TOPIC"),
		},
		Alerts: AlertsConfig{
			CriticalDays:    viper.GetFloat64("ALERTS_CRITICAL_DAYS"),
			SuppressOrdered: viper.GetBool("ALERTS_SUPPRESS_ORDERED"),
		},
		Criticality: CriticalityConfig{
			File: viper.GetString("CRITICALITY_CONFIG_FILE"),
		},
	}
}

func ensureDir(dir string) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
