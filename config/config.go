package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"db"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Log      LogConfig      `mapstructure:"log"`
	Lease    LeaseConfig    `mapstructure:"lease"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port         int        `mapstructure:"port"`
	BaseURL      string     `mapstructure:"base_url"`
	MaxBodyBytes int64      `mapstructure:"max_body_bytes"`
	CORS         CORSConfig `mapstructure:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// DatabaseConfig PostgreSQL 数据库配置
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"sslmode"`
	Timezone        string `mapstructure:"timezone"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 连接最大生命周期（分钟）
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 空闲连接最大存活时间（分钟）
	TxMaxAttempts   int    `mapstructure:"tx_max_attempts"`    // 事务冲突时的最大尝试次数（含首次）
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 缓存配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig JWT 认证配置
// Token 由外部会话服务签发，本服务只负责校验
type AuthConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	Issuer         string        `mapstructure:"issuer"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LeaseConfig 评阅租约配置
type LeaseConfig struct {
	Duration          time.Duration `mapstructure:"duration"`            // 租约有效期，领取与开始评阅时均以此延期
	DefaultBatchSize  int           `mapstructure:"default_batch_size"`  // 请求未指定批量时的默认份数
	MaxBatchSize      int           `mapstructure:"max_batch_size"`      // 单批次份数上限
	ReclaimSchedule   string        `mapstructure:"reclaim_schedule"`    // 过期回收 cron 表达式
	RequestRateLimit  int           `mapstructure:"request_rate_limit"`  // 领取接口限流：窗口内最大请求数
	RequestRateWindow time.Duration `mapstructure:"request_rate_window"` // 领取接口限流窗口
}

// Load 从配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.max_body_bytes", 8<<20) // 批注数据可能较大
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:5173"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "osm_eval")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Kolkata")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)  // 60分钟
	v.SetDefault("db.conn_max_idle_time", 30) // 30分钟
	v.SetDefault("db.tx_max_attempts", 3)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("auth.issuer", "osm-session")
	v.SetDefault("auth.access_token_ttl", "15m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("lease.duration", "24h")
	v.SetDefault("lease.default_batch_size", 10)
	v.SetDefault("lease.max_batch_size", 50)
	v.SetDefault("lease.reclaim_schedule", "@hourly")
	v.SetDefault("lease.request_rate_limit", 30)
	v.SetDefault("lease.request_rate_window", "1m")

	// ── 配置文件 ──
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// ── 环境变量 ──
	v.SetEnvPrefix("OSM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在时仅依赖默认值和环境变量
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// ── 关键配置校验 ──
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Database.TxMaxAttempts <= 0 {
		return fmt.Errorf("配置校验失败: db.tx_max_attempts 必须大于 0")
	}
	if c.Lease.Duration <= 0 {
		return fmt.Errorf("配置校验失败: lease.duration 必须大于 0")
	}
	if c.Lease.DefaultBatchSize <= 0 || c.Lease.MaxBatchSize <= 0 {
		return fmt.Errorf("配置校验失败: lease 批量大小必须大于 0")
	}
	if c.Lease.DefaultBatchSize > c.Lease.MaxBatchSize {
		return fmt.Errorf("配置校验失败: lease.default_batch_size 不能大于 lease.max_batch_size")
	}
	if _, err := cron.ParseStandard(c.Lease.ReclaimSchedule); err != nil {
		return fmt.Errorf("配置校验失败: lease.reclaim_schedule 无效: %w", err)
	}
	return nil
}
