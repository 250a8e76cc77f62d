package config

import (
	"fmt"
	"time"

	"github.com/docker/go-units"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Rembg    RembgConfig    `mapstructure:"rembg"`
	Upload   UploadConfig   `mapstructure:"upload"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type RembgConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type UploadConfig struct {
	// MaxSize 支持人类可读格式，例如 "10MB"
	MaxSize      string   `mapstructure:"max_size"`
	SpoolDir     string   `mapstructure:"spool_dir"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type PipelineConfig struct {
	Background string `mapstructure:"background"`
	Format     string `mapstructure:"format"`
	MaxWidth   int    `mapstructure:"max_width"`
}

type CleanupConfig struct {
	Schedule string        `mapstructure:"schedule"`
	MaxAge   time.Duration `mapstructure:"max_age"`
}

// MaxSizeBytes 解析上传大小限制
func (c *UploadConfig) MaxSizeBytes() int64 {
	size, err := units.FromHumanSize(c.MaxSize)
	if err != nil || size <= 0 {
		return 10 * units.MB
	}
	return size
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置，失败时退回默认值
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		return Default()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("rembg.endpoint", "http://localhost:7000")
	v.SetDefault("rembg.model", "u2net")
	v.SetDefault("rembg.timeout", 60*time.Second)

	v.SetDefault("upload.max_size", "10MB")
	v.SetDefault("upload.spool_dir", "./spool")
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/webp"})

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("pipeline.background", "#FFFFFF")
	v.SetDefault("pipeline.format", "png")
	v.SetDefault("pipeline.max_width", 0)

	v.SetDefault("cleanup.schedule", "@every 1h")
	v.SetDefault("cleanup.max_age", 2*time.Hour)
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Rembg: RembgConfig{
			Endpoint: "http://localhost:7000",
			Model:    "u2net",
			Timeout:  60 * time.Second,
		},
		Upload: UploadConfig{
			MaxSize:      "10MB",
			SpoolDir:     "./spool",
			AllowedTypes: []string{"image/jpeg", "image/png", "image/webp"},
		},
		Redis: RedisConfig{
			Enabled:  true,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			TTL:      24 * time.Hour,
		},
		Pipeline: PipelineConfig{
			Background: "#FFFFFF",
			Format:     "png",
			MaxWidth:   0,
		},
		Cleanup: CleanupConfig{
			Schedule: "@every 1h",
			MaxAge:   2 * time.Hour,
		},
	}
}
