// Package config 负责加载应用配置
// 配置来源优先级：环境变量 > 配置文件 > 默认值
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"github.com/weiwangfds/ditdrive/internal/logger"
)

// EnvPrefix 环境变量前缀，例如 DITDRIVE_AUTH_JWT_SECRET
const EnvPrefix = "DITDRIVE"

// Config 应用总配置
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Retention RetentionConfig `mapstructure:"retention"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Share     ShareConfig     `mapstructure:"share"`
	Seed      SeedConfig      `mapstructure:"seed"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       logger.Config   `mapstructure:"log"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	EnableHTTPS     bool          `mapstructure:"enable_https"`
	EnableHTTP2     bool          `mapstructure:"enable_http2"`
	TLSCertFile     string        `mapstructure:"tls_cert_file"`
	TLSKeyFile      string        `mapstructure:"tls_key_file"`
	EnableSwagger   bool          `mapstructure:"enable_swagger"`
	// MaxUploadSize 单个上传文件的最大字节数，0表示不限制
	MaxUploadSize int64 `mapstructure:"max_upload_size" validate:"gte=0"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver" validate:"required,oneof=sqlite mysql postgres"`
	DSN             string `mapstructure:"dsn" validate:"required"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 秒
	LogLevel        string `mapstructure:"log_level" validate:"oneof=silent error warn info"`
}

// StorageConfig 物理存储配置
type StorageConfig struct {
	// RootPath 存储根目录，所有用户文件都必须位于其下
	RootPath string `mapstructure:"root_path" validate:"required"`
	// TempDir 打包导出时使用的临时目录，为空时使用系统临时目录
	TempDir string `mapstructure:"temp_dir"`
}

// RetentionConfig 回收站保留策略
type RetentionConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Days          int           `mapstructure:"days" validate:"gte=0"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
}

// AuthConfig JWT配置
type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret" validate:"required,min=16"`
	Issuer        string `mapstructure:"issuer" validate:"required"`
	Audience      string `mapstructure:"audience" validate:"required"`
	ExpireMinutes int    `mapstructure:"expire_minutes" validate:"gt=0"`
}

// ShareConfig 分享链接配置
type ShareConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// SeedConfig 初始超级管理员
type SeedConfig struct {
	MasterEmail    string `mapstructure:"master_email" validate:"omitempty,email"`
	MasterPassword string `mapstructure:"master_password"`
}

// RateLimitConfig 匿名接口限流
type RateLimitConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	PerMinute int  `mapstructure:"per_minute" validate:"gte=0"`
}

// RedisConfig 分享令牌缓存
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// Load 加载配置
// 参数:
//   - configPath: 配置文件路径，为空时在工作目录和 ./config 下查找 config.yaml
//
// 返回值:
//   - *Config: 校验通过的配置
//   - error: 读取、解析或校验失败
func Load(configPath string) (*Config, error) {
	// .env 只补充尚未设置的环境变量
	if err := gotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper 设置环境变量映射和配置文件查找路径
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
}

// readConfigFile 读取配置文件
// 未显式指定路径且找不到文件时，仅使用默认值和环境变量
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok && configPath == "" {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// RetentionWindow 返回回收站保留时长
func (c RetentionConfig) RetentionWindow() time.Duration {
	return time.Duration(c.Days) * 24 * time.Hour
}

// TokenTTL 返回JWT有效期
func (c AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.ExpireMinutes) * time.Minute
}
