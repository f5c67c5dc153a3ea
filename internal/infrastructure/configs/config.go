package configs

import (
	"fmt"
	"time"

	"github.com/hilthontt/roomdrop/internal/domain"
	"github.com/hilthontt/roomdrop/internal/infrastructure/env"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Registry backends.
const (
	BackendMemory      = "memory"
	BackendObjectStore = "objectstore"
	BackendRedis       = "redis"
)

// Storage drivers.
const (
	DriverMinio = "minio"
	DriverLocal = "local"
)

type Config struct {
	HTTP        HTTPConfig        `koanf:"http"`
	RateLimiter RateLimiterConfig `koanf:"rateLimiter"`
	Registry    RegistryConfig    `koanf:"registry"`
	Storage     StorageConfig     `koanf:"storage"`
	Redis       RedisConfig       `koanf:"redis"`
	Events      EventsConfig      `koanf:"events"`
	Tracing     TracingConfig     `koanf:"tracing"`
	Logger      LoggerConfig      `koanf:"logger"`
}

type HTTPConfig struct {
	Host           string        `koanf:"host"`
	Port           uint16        `koanf:"port"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	AllowedHeaders []string      `koanf:"allowed_headers"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	MaxMemoryMB    int64         `koanf:"max_memory_mb"`
}

type RateLimiterConfig struct {
	Enabled              bool          `koanf:"enabled"`
	RequestsPerTimeFrame int           `koanf:"requestsPerTimeFrame"`
	TimeFrame            time.Duration `koanf:"timeFrame"`
}

type RegistryConfig struct {
	Backend       string        `koanf:"backend"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	RoomPrefix    string        `koanf:"room_prefix"`
}

type StorageConfig struct {
	Driver        string        `koanf:"driver"`
	Endpoint      string        `koanf:"endpoint"`
	AccessKey     string        `koanf:"access_key"`
	SecretKey     string        `koanf:"secret_key"`
	Bucket        string        `koanf:"bucket"`
	Region        string        `koanf:"region"`
	UseSSL        bool          `koanf:"use_ssl"`
	PresignTTL    time.Duration `koanf:"presign_ttl"`
	UploadTimeout time.Duration `koanf:"upload_timeout"`
	LocalPath     string        `koanf:"local_path"`
	PublicBaseURL string        `koanf:"public_base_url"`
}

type RedisConfig struct {
	Addr      string `koanf:"addr"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

type EventsConfig struct {
	Enabled  bool   `koanf:"enabled"`
	AmqpURI  string `koanf:"amqp_uri"`
	Exchange string `koanf:"exchange"`
}

type TracingConfig struct {
	Enabled      bool    `koanf:"enabled"`
	ServiceName  string  `koanf:"service_name"`
	Environment  string  `koanf:"environment"`
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	SampleRatio  float64 `koanf:"sample_ratio"`
}

type LoggerConfig struct {
	FilePath   string `koanf:"file_path"`
	Encoding   string `koanf:"encoding"`
	Level      string `koanf:"level"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load from YAML file if it exists
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// Only return error if file was explicitly provided but failed to load
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Apply defaults and environment variable overrides
	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Registry.Backend {
	case BackendMemory, BackendObjectStore, BackendRedis:
	default:
		return fmt.Errorf("unknown registry backend %q", c.Registry.Backend)
	}

	switch c.Storage.Driver {
	case DriverMinio:
		if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
			return fmt.Errorf("storage driver %q needs an endpoint and a bucket", c.Storage.Driver)
		}
	case DriverLocal:
		if c.Storage.LocalPath == "" {
			return fmt.Errorf("storage driver %q needs local_path", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Registry.Backend == BackendRedis && c.Redis.Addr == "" {
		return fmt.Errorf("registry backend %q needs redis.addr", BackendRedis)
	}
	if c.Events.Enabled && c.Events.AmqpURI == "" {
		return fmt.Errorf("events are enabled but events.amqp_uri is empty")
	}

	return nil
}

func applyDefaults(k *koanf.Koanf) {
	// HTTP defaults
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 8080)
	setDefault(k, "http.read_timeout", 10*time.Minute)
	setDefault(k, "http.write_timeout", 10*time.Minute)
	setDefault(k, "http.request_timeout", 10*time.Minute)
	setDefault(k, "http.max_memory_mb", 32)
	setDefault(k, "http.allowed_origins", []string{"*"})
	setDefault(k, "http.allowed_headers", []string{"Content-Type", "Authorization"})

	// Rate limiter defaults
	setDefault(k, "rateLimiter.enabled", true)
	setDefault(k, "rateLimiter.requestsPerTimeFrame", 60)
	setDefault(k, "rateLimiter.timeFrame", time.Minute)

	// Registry defaults
	setDefault(k, "registry.backend", BackendMemory)
	setDefault(k, "registry.sweep_interval", time.Minute)
	setDefault(k, "registry.room_prefix", domain.DefaultRoomPrefix)

	// Storage defaults
	setDefault(k, "storage.driver", DriverLocal)
	setDefault(k, "storage.bucket", "roomdrop")
	setDefault(k, "storage.region", "us-east-1")
	setDefault(k, "storage.presign_ttl", domain.RoomTTL)
	setDefault(k, "storage.upload_timeout", 5*time.Minute)
	setDefault(k, "storage.local_path", "./uploads")
	setDefault(k, "storage.public_base_url", "http://localhost:8080")

	// Redis defaults
	setDefault(k, "redis.addr", "localhost:6379")
	setDefault(k, "redis.db", 0)
	setDefault(k, "redis.key_prefix", "roomdrop:")

	// Events defaults
	setDefault(k, "events.enabled", false)
	setDefault(k, "events.exchange", "roomdrop.rooms")

	// Tracing defaults
	setDefault(k, "tracing.enabled", false)
	setDefault(k, "tracing.service_name", "roomdrop")
	setDefault(k, "tracing.environment", "development")
	setDefault(k, "tracing.otlp_endpoint", "http://localhost:4318/v1/traces")
	setDefault(k, "tracing.sample_ratio", 1.0)

	// Logger defaults
	setDefault(k, "logger.encoding", "json")
	setDefault(k, "logger.level", "info")
	setDefault(k, "logger.max_size_mb", 20)
	setDefault(k, "logger.max_backups", 5)
}

func applyEnvOverrides(k *koanf.Koanf) {
	// HTTP config from env
	if host := env.GetString("HTTP_HOST", ""); host != "" {
		k.Set("http.host", host)
	}
	if port := env.GetInt("HTTP_PORT", 0); port > 0 {
		k.Set("http.port", port)
	}
	if origins := env.GetCSV("HTTP_ALLOWED_ORIGINS", nil); len(origins) > 0 {
		k.Set("http.allowed_origins", origins)
	}

	// Rate limiter config from env
	if limit := env.GetInt("RATE_LIMIT_REQUESTS_PER_TIME_FRAME", 0); limit > 0 {
		k.Set("rateLimiter.requestsPerTimeFrame", limit)
	}
	if frame := env.GetDuration("RATE_LIMIT_TIME_FRAME", 0); frame > 0 {
		k.Set("rateLimiter.timeFrame", frame)
	}

	// Registry config from env
	if backend := env.GetString("ROOMDROP_REGISTRY_BACKEND", ""); backend != "" {
		k.Set("registry.backend", backend)
	}
	if interval := env.GetDuration("ROOMDROP_SWEEP_INTERVAL", 0); interval > 0 {
		k.Set("registry.sweep_interval", interval)
	}

	// Storage config from env
	if driver := env.GetString("ROOMDROP_STORAGE_DRIVER", ""); driver != "" {
		k.Set("storage.driver", driver)
	}
	if endpoint := env.GetString("MINIO_ENDPOINT", ""); endpoint != "" {
		k.Set("storage.endpoint", endpoint)
	}
	if accessKey := env.GetString("MINIO_ACCESS_KEY", ""); accessKey != "" {
		k.Set("storage.access_key", accessKey)
	}
	if secretKey := env.GetString("MINIO_SECRET_KEY", ""); secretKey != "" {
		k.Set("storage.secret_key", secretKey)
	}
	if bucket := env.GetString("MINIO_BUCKET", ""); bucket != "" {
		k.Set("storage.bucket", bucket)
	}
	if useSSL := env.GetString("MINIO_USE_SSL", ""); useSSL != "" {
		k.Set("storage.use_ssl", env.GetBool("MINIO_USE_SSL", false))
	}
	if localPath := env.GetString("ROOMDROP_LOCAL_PATH", ""); localPath != "" {
		k.Set("storage.local_path", localPath)
	}
	if baseURL := env.GetString("ROOMDROP_PUBLIC_BASE_URL", ""); baseURL != "" {
		k.Set("storage.public_base_url", baseURL)
	}

	// Redis config from env
	if addr := env.GetString("REDIS_ADDR", ""); addr != "" {
		k.Set("redis.addr", addr)
	}
	if password := env.GetString("REDIS_PASSWORD", ""); password != "" {
		k.Set("redis.password", password)
	}

	// Events config from env
	if uri := env.GetString("AMQP_URI", ""); uri != "" {
		k.Set("events.amqp_uri", uri)
		k.Set("events.enabled", true)
	}

	// Tracing config from env
	if enabled := env.GetString("TRACING_ENABLED", ""); enabled != "" {
		k.Set("tracing.enabled", env.GetBool("TRACING_ENABLED", false))
	}
	if endpoint := env.GetString("OTLP_ENDPOINT", ""); endpoint != "" {
		k.Set("tracing.otlp_endpoint", endpoint)
	}
	if environment := env.GetString("ENVIRONMENT", ""); environment != "" {
		k.Set("tracing.environment", environment)
	}

	// Logger config from env
	if level := env.GetString("LOGGER_LEVEL", ""); level != "" {
		k.Set("logger.level", level)
	}
	if encoding := env.GetString("LOGGER_ENCODING", ""); encoding != "" {
		k.Set("logger.encoding", encoding)
	}
	if filePath := env.GetString("LOGGER_FILE_PATH", ""); filePath != "" {
		k.Set("logger.file_path", filePath)
	}
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value any) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
