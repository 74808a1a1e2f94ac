package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppCfg struct {
	Name                string   `mapstructure:"name"`
	Env                 string   `mapstructure:"env"`
	Port                int      `mapstructure:"port"`
	ReadTimeoutSeconds  int      `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `mapstructure:"write_timeout_seconds"`
	IdleTimeoutSeconds  int      `mapstructure:"idle_timeout_seconds"`
	BodyLimitMB         int      `mapstructure:"body_limit_mb"`
	CORSOrigins         []string `mapstructure:"cors_origins"`
}

type LogCfg struct {
	Level string `mapstructure:"level"`
}

type MongoCfg struct {
	// Driver selects the metadata store: mongo or memory.
	Driver         string `mapstructure:"driver"`
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type StorageCfg struct {
	// Driver selects the object store: s3, minio or memory.
	Driver    string `mapstructure:"driver"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	PathStyle bool   `mapstructure:"path_style"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type MediaCfg struct {
	BaseURL                    string `mapstructure:"base_url"`
	Root                       string `mapstructure:"root"`
	MaxUploadMB                int    `mapstructure:"max_upload_mb"`
	PresignTTLSeconds          int    `mapstructure:"presign_ttl_seconds"`
	CompensationTimeoutSeconds int    `mapstructure:"compensation_timeout_seconds"`
}

type BreakerCfg struct {
	MaxFailures     uint32 `mapstructure:"max_failures"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
}

type ReaperCfg struct {
	Workers           int `mapstructure:"workers"`
	QueueSize         int `mapstructure:"queue_size"`
	MaxRetries        int `mapstructure:"max_retries"`
	InitialBackoffMS  int `mapstructure:"initial_backoff_ms"`
	MaxBackoffMS      int `mapstructure:"max_backoff_ms"`
	JobTimeoutSeconds int `mapstructure:"job_timeout_seconds"`
}

type CleanupCfg struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
	GraceMinutes    int  `mapstructure:"grace_minutes"`
	Concurrency     int  `mapstructure:"concurrency"`
	DryRun          bool `mapstructure:"dry_run"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type JwtCfg struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	Secret        string `mapstructure:"secret"`
	Issuer        string `mapstructure:"issuer"`
}

type ConsulCfg struct {
	Addr        string `mapstructure:"addr"`
	ServiceID   string `mapstructure:"service_id"`
	ServiceHost string `mapstructure:"service_host"`
}

type Config struct {
	App     AppCfg     `mapstructure:"app"`
	Log     LogCfg     `mapstructure:"log"`
	Mongo   MongoCfg   `mapstructure:"mongo"`
	Storage StorageCfg `mapstructure:"storage"`
	Media   MediaCfg   `mapstructure:"media"`
	Breaker BreakerCfg `mapstructure:"breaker"`
	Reaper  ReaperCfg  `mapstructure:"reaper"`
	Cleanup CleanupCfg `mapstructure:"cleanup"`
	Redis   RedisCfg   `mapstructure:"redis"`
	Kafka   KafkaCfg   `mapstructure:"kafka"`
	JWT     JwtCfg     `mapstructure:"jwt"`
	Consul  ConsulCfg  `mapstructure:"consul"`

	// Derived
	ReadTimeout         time.Duration `mapstructure:"-"`
	WriteTimeout        time.Duration `mapstructure:"-"`
	IdleTimeout         time.Duration `mapstructure:"-"`
	MongoTimeout        time.Duration `mapstructure:"-"`
	PresignTTL          time.Duration `mapstructure:"-"`
	CompensationTimeout time.Duration `mapstructure:"-"`
	BreakerInterval     time.Duration `mapstructure:"-"`
	BreakerTimeout      time.Duration `mapstructure:"-"`
	ReaperBackoff       time.Duration `mapstructure:"-"`
	ReaperMaxBackoff    time.Duration `mapstructure:"-"`
	ReaperJobTimeout    time.Duration `mapstructure:"-"`
	CleanupInterval     time.Duration `mapstructure:"-"`
	CleanupGrace        time.Duration `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "wall-of-humanity")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 5000)
	v.SetDefault("app.read_timeout_seconds", 15)
	v.SetDefault("app.write_timeout_seconds", 30)
	v.SetDefault("app.idle_timeout_seconds", 60)
	v.SetDefault("app.body_limit_mb", 32)
	v.SetDefault("app.cors_origins", []string{"*"})

	v.SetDefault("log.level", "info")

	v.SetDefault("mongo.driver", "mongo")
	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "wall_of_humanity")
	v.SetDefault("mongo.timeout_seconds", 10)

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.path_style", false)
	v.SetDefault("storage.use_ssl", true)

	v.SetDefault("media.base_url", "http://localhost:5000/api/v1/media")
	v.SetDefault("media.root", "wall-of-humanity")
	v.SetDefault("media.max_upload_mb", 5)
	v.SetDefault("media.presign_ttl_seconds", 900)
	v.SetDefault("media.compensation_timeout_seconds", 10)

	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.interval_seconds", 0)
	v.SetDefault("breaker.timeout_seconds", 30)

	v.SetDefault("reaper.workers", 4)
	v.SetDefault("reaper.queue_size", 1024)
	v.SetDefault("reaper.max_retries", 3)
	v.SetDefault("reaper.initial_backoff_ms", 200)
	v.SetDefault("reaper.max_backoff_ms", 5000)
	v.SetDefault("reaper.job_timeout_seconds", 30)

	v.SetDefault("cleanup.enabled", false)
	v.SetDefault("cleanup.interval_minutes", 60)
	v.SetDefault("cleanup.grace_minutes", 60)
	v.SetDefault("cleanup.concurrency", 4)
	v.SetDefault("cleanup.dry_run", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "humanity:")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "humanity.resources")

	v.SetDefault("jwt.public_key_path", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "")

	v.SetDefault("consul.addr", "")
	v.SetDefault("consul.service_id", "")
	v.SetDefault("consul.service_host", "")
}

// Load reads path (optional) and HUMANITY_* environment overrides, e.g.
// HUMANITY_MONGO_URI for mongo.uri. A .env file in the working directory is
// loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("HUMANITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.derive()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c *Config) derive() {
	c.ReadTimeout = seconds(c.App.ReadTimeoutSeconds)
	c.WriteTimeout = seconds(c.App.WriteTimeoutSeconds)
	c.IdleTimeout = seconds(c.App.IdleTimeoutSeconds)
	c.MongoTimeout = seconds(c.Mongo.TimeoutSeconds)
	c.PresignTTL = seconds(c.Media.PresignTTLSeconds)
	c.CompensationTimeout = seconds(c.Media.CompensationTimeoutSeconds)
	c.BreakerInterval = seconds(c.Breaker.IntervalSeconds)
	c.BreakerTimeout = seconds(c.Breaker.TimeoutSeconds)
	c.ReaperBackoff = time.Duration(c.Reaper.InitialBackoffMS) * time.Millisecond
	c.ReaperMaxBackoff = time.Duration(c.Reaper.MaxBackoffMS) * time.Millisecond
	c.ReaperJobTimeout = seconds(c.Reaper.JobTimeoutSeconds)
	c.CleanupInterval = time.Duration(c.Cleanup.IntervalMinutes) * time.Minute
	c.CleanupGrace = time.Duration(c.Cleanup.GraceMinutes) * time.Minute
}

// MaxUploadBytes is the per-file size limit.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Media.MaxUploadMB) << 20
}

func (c *Config) Validate() error {
	if c.App.Port <= 0 {
		return errors.New("app.port must be positive")
	}
	switch c.Mongo.Driver {
	case "mongo":
		if c.Mongo.URI == "" {
			return errors.New("HUMANITY_MONGO_URI is required")
		}
		if c.Mongo.Database == "" {
			return errors.New("mongo.database is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown mongo.driver %q", c.Mongo.Driver)
	}
	switch c.Storage.Driver {
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket is required for s3")
		}
	case "minio":
		if c.Storage.Bucket == "" || c.Storage.Endpoint == "" {
			return errors.New("storage.bucket and storage.endpoint are required for minio")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Media.BaseURL == "" {
		return errors.New("media.base_url is required")
	}
	u, err := url.Parse(c.Media.BaseURL)
	if err != nil {
		return fmt.Errorf("media.base_url: %w", err)
	}
	root := strings.Trim(c.Media.Root, "/")
	if root == "" {
		root = "wall-of-humanity"
	}
	for _, seg := range strings.Split(u.Path, "/") {
		if seg == root {
			return fmt.Errorf("media.base_url path must not contain the media.root segment %q", root)
		}
	}
	if c.Media.MaxUploadMB <= 0 {
		return errors.New("media.max_upload_mb must be positive")
	}
	if c.JWT.PublicKeyPath == "" && c.JWT.Secret == "" {
		return errors.New("HUMANITY_JWT_PUBLIC_KEY_PATH or HUMANITY_JWT_SECRET is required")
	}
	return nil
}
