package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TXENGINE"

// Config is the full application configuration.
type Config struct {
	Engine EngineConfig `mapstructure:"engine"`
	Output OutputConfig `mapstructure:"output"`
	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
}

type EngineConfig struct {
	// Workers > 1 shards processing by client id.
	Workers int `mapstructure:"workers"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
}

type LogConfig struct {
	Environment string `mapstructure:"environment"`
	Level       string `mapstructure:"level"`
}

type ServerConfig struct {
	Port             int           `mapstructure:"port"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

func (c MySQLConfig) Enabled() bool { return c.Host != "" }

type RedisConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

func (c RedisConfig) Enabled() bool { return c.Host != "" }

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

type KafkaTopicConfig struct {
	Snapshot string `mapstructure:"snapshot"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.workers", 1)
	v.SetDefault("output.format", "csv")
	v.SetDefault("log.environment", "production")
	v.SetDefault("log.level", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.snapshot_interval", time.Minute)
	v.SetDefault("mysql.host", "")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.user", "")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "txengine")
	v.SetDefault("mysql.max_open_conns", 10)
	v.SetDefault("mysql.max_idle_conns", 5)
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.idempotency_ttl", 24*time.Hour)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic.snapshot", "txengine.account.snapshot")
}

// LoadConfig resolves configuration with precedence
// defaults < config file < TXENGINE_* env < flags.
//
// configPath may be empty. Only flags listed in flagKeys are bound; flags
// may be nil.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Server.SnapshotInterval <= 0 {
		return nil, fmt.Errorf("server.snapshot_interval must be positive, got %s", cfg.Server.SnapshotInterval)
	}
	return cfg, nil
}

// flagKeys maps config keys to the command-line flags that override them.
var flagKeys = map[string]string{
	"engine.workers":           "workers",
	"output.format":            "format",
	"log.level":                "log-level",
	"log.environment":          "log-env",
	"server.port":              "port",
	"server.snapshot_interval": "snapshot-interval",
}
