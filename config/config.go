package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const EnvPrefix = "TDXPORT"

type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	WorkDir    string           `mapstructure:"work_dir"`
	BufferSize int              `mapstructure:"buffer_size"`
	Prefixes   []string         `mapstructure:"prefixes"`
	Gbbq       GbbqConfig       `mapstructure:"gbbq"`
	ClickHouse ClickHouseConfig `mapstructure:"clickhouse"`
	DuckDB     DuckDBConfig     `mapstructure:"duckdb"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	MongoDB    MongoDBConfig    `mapstructure:"mongodb"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"` // 为空时只输出到终端
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type GbbqConfig struct {
	Keys  string `mapstructure:"keys"`  // 密钥表文件
	Plain bool   `mapstructure:"plain"` // gbbq 已解密
}

type ClickHouseConfig struct {
	Client string `mapstructure:"client"`
	DSN    string `mapstructure:"dsn"` // 设置后使用 native 驱动代替 clickhouse-client
}

type DuckDBConfig struct {
	Path string `mapstructure:"path"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type MongoDBConfig struct {
	Import string `mapstructure:"import"`
	URI    string `mapstructure:"uri"`
}

// New 返回带默认值的 viper 实例，环境变量前缀 TDXPORT_
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age", 30)
	v.SetDefault("work_dir", "")
	v.SetDefault("buffer_size", 32<<20)
	v.SetDefault("prefixes", []string{})
	v.SetDefault("gbbq.keys", "")
	v.SetDefault("gbbq.plain", false)
	v.SetDefault("clickhouse.client", "clickhouse-client")
	v.SetDefault("clickhouse.dsn", "")
	v.SetDefault("duckdb.path", "tdxport.duckdb")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("mongodb.import", "mongoimport")
	v.SetDefault("mongodb.uri", "")
	return v
}

// Load 读取配置文件 (可选) 并合并环境变量与已绑定的命令行参数
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer_size must be positive")
	}
	if c.Log.MaxSize < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAge < 0 {
		return fmt.Errorf("log rotation settings must be non-negative")
	}
	return nil
}
