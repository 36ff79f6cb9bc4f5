package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"gpavault/internal/gpa/models"
	platformstrings "gpavault/pkg/platform/strings"
)

// Store backend names.
const (
	StoreMemory    = "memory"
	StoreMongo     = "mongo"
	StorePostgres  = "postgres"
	StoreRedis     = "redis"
	StoreFirestore = "firestore"
)

// Audit publisher names.
const (
	AuditLog   = "log"
	AuditKafka = "kafka"
	AuditNone  = "none"
)

// Config is the full service configuration.
type Config struct {
	Server    Server          `mapstructure:"server"`
	Store     string          `mapstructure:"store"`
	Policy    string          `mapstructure:"upsert_policy"`
	CacheTTL  time.Duration   `mapstructure:"cache_ttl"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Firestore FirestoreConfig `mapstructure:"firestore"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Log       LogConfig       `mapstructure:"log"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string        `mapstructure:"addr"`
	RoutePrefix    string        `mapstructure:"route_prefix"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MetricsEnabled bool          `mapstructure:"metrics_enabled"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type PostgresConfig struct {
	DSN          string `mapstructure:"dsn"`
	Table        string `mapstructure:"table"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type FirestoreConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	Collection      string `mapstructure:"collection"`
}

type AuditConfig struct {
	Publisher string `mapstructure:"publisher"`
	QueueSize int    `mapstructure:"queue_size"`
}

type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`
	Topic    string   `mapstructure:"topic"`
	ClientID string   `mapstructure:"client_id"`
}

// BreakerConfig guards the store. A zero FailureThreshold disables it.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// setDefaults registers every key so AutomaticEnv can resolve it on Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":5000")
	v.SetDefault("server.route_prefix", "")
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("store", StoreMongo)
	v.SetDefault("upsert_policy", string(models.PolicyMerge))
	v.SetDefault("cache_ttl", time.Duration(0))
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "gpavault")
	v.SetDefault("mongo.collection", "results")
	v.SetDefault("mongo.connect_timeout", 10*time.Second)
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "gpa_records")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.key_prefix", "gpa")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("firestore.project_id", "")
	v.SetDefault("firestore.credentials_file", "")
	v.SetDefault("firestore.collection", "results")
	v.SetDefault("audit.publisher", AuditLog)
	v.SetDefault("audit.queue_size", 1024)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "gpa.audit")
	v.SetDefault("kafka.client_id", "gpavault")
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.cooldown", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from an optional .env file, an optional YAML file
// named by GPA_CONFIG_FILE, and GPA_-prefixed environment variables, in
// increasing order of precedence. PORT and MONGODB_URI are honoured for
// compatibility with existing deployments.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("GPA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("GPA_CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if port := os.Getenv("PORT"); port != "" && os.Getenv("GPA_SERVER_ADDR") == "" {
		v.Set("server.addr", ":"+port)
	}
	if uri := os.Getenv("MONGODB_URI"); uri != "" && os.Getenv("GPA_MONGO_URI") == "" {
		v.Set("mongo.uri", uri)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Kafka.Brokers = platformstrings.SplitList(cfg.Kafka.Brokers)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings and backend prerequisites.
func (c *Config) Validate() error {
	var errs []error
	if _, err := models.ParseUpsertPolicy(c.Policy); err != nil {
		errs = append(errs, err)
	}
	switch c.Store {
	case StoreMemory, StoreMongo:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres store"))
		}
	case StoreRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required for the redis store"))
		}
	case StoreFirestore:
		if c.Firestore.ProjectID == "" {
			errs = append(errs, errors.New("firestore.project_id is required for the firestore store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	switch c.Audit.Publisher {
	case AuditLog, AuditNone:
	case AuditKafka:
		if len(c.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("kafka.brokers is required for the kafka audit publisher"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown audit publisher %q", c.Audit.Publisher))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("cache_ttl must not be negative"))
	}
	if c.Breaker.FailureThreshold < 0 {
		errs = append(errs, errors.New("breaker.failure_threshold must not be negative"))
	}
	return errors.Join(errs...)
}

// UpsertPolicy returns the parsed policy. Call after Validate.
func (c *Config) UpsertPolicy() models.UpsertPolicy {
	policy, _ := models.ParseUpsertPolicy(c.Policy)
	return policy
}
