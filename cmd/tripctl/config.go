package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hupe1980/tripdb/codec"
)

// Config is the resolved tripctl configuration. Values come from flags,
// TRIPDB_* environment variables and an optional config file, in that order
// of precedence.
type Config struct {
	Dir       string `mapstructure:"dir"`
	Dataset   string `mapstructure:"dataset"`
	Source    string `mapstructure:"source"`
	Root      string `mapstructure:"root"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access-key"`
	SecretKey string `mapstructure:"secret-key"`
	Insecure  bool   `mapstructure:"insecure"`

	Workers     int    `mapstructure:"workers"`
	Codec       string `mapstructure:"codec"`
	Compression string `mapstructure:"compression"`
	IOLimit     int64  `mapstructure:"io-limit"`
	LogLevel    string `mapstructure:"log-level"`
	LogFormat   string `mapstructure:"log-format"`
	Metrics     bool   `mapstructure:"metrics"`
}

const envPrefix = "TRIPDB"

func registerFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (yaml, json or toml)")
	fs.String("dir", "tmp/tripdb", "index directory")
	fs.String("dataset", "trips.csv", "dataset object name")
	fs.String("source", "local", "dataset source: local, s3 or minio")
	fs.String("root", ".", "root directory of the local source")
	fs.String("bucket", "", "bucket of the s3 or minio source")
	fs.String("prefix", "", "key prefix inside the bucket")
	fs.String("region", "", "aws region")
	fs.String("endpoint", "", "custom s3 endpoint or minio host:port")
	fs.String("access-key", "", "minio access key")
	fs.String("secret-key", "", "minio secret key")
	fs.Bool("insecure", false, "use plain http for minio")
	fs.Int("workers", 1, "scan workers")
	fs.String("codec", "go-json", "record payload codec: go-json, json or row")
	fs.String("compression", "none", "record compression: none, lz4 or zstd")
	fs.Int64("io-limit", 0, "source read limit in bytes per second (0 = unlimited)")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.String("log-format", "text", "log format: text or json")
	fs.Bool("metrics", false, "dump prometheus metrics to stderr on exit")
}

func loadConfig(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Source {
	case "local":
	case "s3", "minio":
		if c.Bucket == "" {
			return fmt.Errorf("source %s requires --bucket", c.Source)
		}
		if c.Source == "minio" && c.Endpoint == "" {
			return errors.New("source minio requires --endpoint")
		}
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}
	if c.Dataset == "" {
		return errors.New("dataset must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if _, ok := codec.ByName(c.Codec); !ok {
		return fmt.Errorf("unknown codec %q", c.Codec)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return l, nil
}
