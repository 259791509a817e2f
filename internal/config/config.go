package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel       string
	MigrationsPath string
	Server         ServerConfig
	Database       DatabaseConfig
	RabbitMQ       RabbitMQConfig
	Webhook        WebhookConfig
	Queue          QueueConfig
	Processor      ProcessorConfig
	Storage        StorageConfig
	Redis          RedisConfig
	Notify         NotifyConfig
}

type ServerConfig struct {
	Port        string
	Host        string
	BodyLimitMB int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RabbitMQConfig struct {
	URL        string
	Host       string
	Port       string
	User       string
	Password   string
	VHost      string
	Exchange   string
	RoutingKey string
}

// WebhookConfig holds the shared secrets the courier presents on every call.
type WebhookConfig struct {
	APIKey              string
	BearerToken         string
	IPAllowlist         []string
	EnforceIPAllowlist  bool
	BlockNonAllowlisted bool
	DedupeLookupTimeout time.Duration
}

type QueueConfig struct {
	MaxSize     int
	MaxAttempts int
	BaseBackoff time.Duration
	JobTimeout  time.Duration
}

type ProcessorConfig struct {
	TxTimeout     time.Duration
	UploadTimeout time.Duration
	MaxImageBytes int
}

type StorageConfig struct {
	GCSBucket       string
	CredentialsJSON string
	FolderPrefix    string
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// Enabled reports whether a Redis fingerprint cache should be used.
func (c RedisConfig) Enabled() bool {
	return c.Address != ""
}

type NotifyConfig struct {
	Sink       string
	BufferSize int
	Timeout    time.Duration
	HTTPURL    string
	HTTPSecret string
}

const (
	NotifySinkLog      = "log"
	NotifySinkRabbitMQ = "rabbitmq"
	NotifySinkHTTP     = "http"
)

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var missing []string
	var invalid []string

	get := func(key string) string {
		val := strings.TrimSpace(os.Getenv(key))
		if val == "" {
			missing = append(missing, key)
		}
		return val
	}
	getDefault := func(key, def string) string {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
		return def
	}
	getInt := func(key string, def int) int {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			invalid = append(invalid, key)
			return def
		}
		return n
	}
	getBool := func(key string, def bool) bool {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return def
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			invalid = append(invalid, key)
			return def
		}
		return b
	}
	getDuration := func(key string, def time.Duration) time.Duration {
		raw := strings.TrimSpace(os.Getenv(key))
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			invalid = append(invalid, key)
			return def
		}
		return d
	}

	config := &Config{
		LogLevel:       getDefault("LOG_LEVEL", "info"),
		MigrationsPath: getDefault("MIGRATIONS_PATH", "file://db/migrations"),
		Server: ServerConfig{
			Port:        getDefault("SERVER_PORT", "8080"),
			Host:        getDefault("SERVER_HOST", "0.0.0.0"),
			BodyLimitMB: getInt("SERVER_BODY_LIMIT_MB", 20),
		},
		Database: DatabaseConfig{
			Host:     get("DB_HOST"),
			Port:     get("DB_PORT"),
			User:     get("DB_USER"),
			Password: get("DB_PASSWORD"),
			DBName:   get("DB_NAME"),
			SSLMode:  get("DB_SSLMODE"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:        os.Getenv("RABBITMQ_URL"),
			Host:       os.Getenv("RABBITMQ_HOST"),
			Port:       getDefault("RABBITMQ_PORT", "5672"),
			User:       os.Getenv("RABBITMQ_USER"),
			Password:   os.Getenv("RABBITMQ_PASSWORD"),
			VHost:      getDefault("RABBITMQ_VHOST", "/"),
			Exchange:   getDefault("RABBITMQ_EXCHANGE", "shipment.events"),
			RoutingKey: getDefault("RABBITMQ_ROUTING_KEY", "shipment.status"),
		},
		Webhook: WebhookConfig{
			APIKey:              get("WEBHOOK_API_KEY"),
			BearerToken:         strings.TrimSpace(os.Getenv("WEBHOOK_BEARER_TOKEN")),
			IPAllowlist:         splitList(os.Getenv("WEBHOOK_IP_ALLOWLIST")),
			EnforceIPAllowlist:  getBool("WEBHOOK_ENFORCE_IP_ALLOWLIST", false),
			BlockNonAllowlisted: getBool("WEBHOOK_BLOCK_NON_ALLOWLISTED", false),
			DedupeLookupTimeout: getDuration("DEDUPE_LOOKUP_TIMEOUT", 150*time.Millisecond),
		},
		Queue: QueueConfig{
			MaxSize:     getInt("QUEUE_MAX_SIZE", 10000),
			MaxAttempts: getInt("QUEUE_MAX_ATTEMPTS", 3),
			BaseBackoff: getDuration("QUEUE_BASE_BACKOFF", time.Second),
			JobTimeout:  getDuration("QUEUE_JOB_TIMEOUT", 10*time.Second),
		},
		Processor: ProcessorConfig{
			TxTimeout:     getDuration("PROCESSOR_TX_TIMEOUT", 5*time.Second),
			UploadTimeout: getDuration("PROCESSOR_UPLOAD_TIMEOUT", 8*time.Second),
			MaxImageBytes: getInt("MAX_IMAGE_BYTES", 10*1024*1024),
		},
		Storage: StorageConfig{
			GCSBucket:       get("GCS_BUCKET"),
			CredentialsJSON: os.Getenv("GCS_CREDENTIALS_JSON"),
			FolderPrefix:    getDefault("GCS_FOLDER_PREFIX", "shipments"),
		},
		Redis: RedisConfig{
			Address:  strings.TrimSpace(os.Getenv("REDIS_ADDRESS")),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
			TTL:      getDuration("DEDUPE_CACHE_TTL", 72*time.Hour),
		},
		Notify: NotifyConfig{
			Sink:       strings.ToLower(getDefault("NOTIFY_SINK", NotifySinkLog)),
			BufferSize: getInt("NOTIFY_BUFFER", 1000),
			Timeout:    getDuration("NOTIFY_TIMEOUT", 3*time.Second),
			HTTPURL:    strings.TrimSpace(os.Getenv("NOTIFY_HTTP_URL")),
			HTTPSecret: os.Getenv("NOTIFY_HTTP_SECRET"),
		},
	}

	switch config.Notify.Sink {
	case NotifySinkLog:
	case NotifySinkHTTP:
		if config.Notify.HTTPURL == "" {
			missing = append(missing, "NOTIFY_HTTP_URL")
		}
	case NotifySinkRabbitMQ:
		if config.RabbitMQ.URL == "" {
			for key, val := range map[string]string{
				"RABBITMQ_HOST":     config.RabbitMQ.Host,
				"RABBITMQ_USER":     config.RabbitMQ.User,
				"RABBITMQ_PASSWORD": config.RabbitMQ.Password,
			} {
				if val == "" {
					missing = append(missing, key)
				}
			}
		}
	default:
		invalid = append(invalid, "NOTIFY_SINK")
	}

	if config.Queue.MaxSize == 0 {
		invalid = append(invalid, "QUEUE_MAX_SIZE")
	}
	if config.Queue.MaxAttempts == 0 {
		invalid = append(invalid, "QUEUE_MAX_ATTEMPTS")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid environment variables: %v", invalid)
	}

	return config, nil
}

// ConnectionString returns a DSN string for GORM
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode)
}

// MigrationURL returns the postgres:// URL golang-migrate expects.
func (c *DatabaseConfig) MigrationURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

func (c *RabbitMQConfig) ConnectionURL() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%s%s",
		c.User, c.Password, c.Host, c.Port, c.VHost)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadDatabase reads only the settings the migrate command needs.
func LoadDatabase() (*DatabaseConfig, string, error) {
	_ = godotenv.Load()

	db := &DatabaseConfig{
		Host:     strings.TrimSpace(os.Getenv("DB_HOST")),
		Port:     strings.TrimSpace(os.Getenv("DB_PORT")),
		User:     strings.TrimSpace(os.Getenv("DB_USER")),
		Password: strings.TrimSpace(os.Getenv("DB_PASSWORD")),
		DBName:   strings.TrimSpace(os.Getenv("DB_NAME")),
		SSLMode:  strings.TrimSpace(os.Getenv("DB_SSLMODE")),
	}
	var missing []string
	for key, val := range map[string]string{
		"DB_HOST": db.Host, "DB_PORT": db.Port, "DB_USER": db.User,
		"DB_PASSWORD": db.Password, "DB_NAME": db.DBName, "DB_SSLMODE": db.SSLMode,
	} {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, "", fmt.Errorf("missing required environment variables: %v", missing)
	}

	path := strings.TrimSpace(os.Getenv("MIGRATIONS_PATH"))
	if path == "" {
		path = "file://db/migrations"
	}
	return db, path, nil
}
