package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"db"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Cron      CronConfig      `mapstructure:"cron"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	COS       COSConfig       `mapstructure:"cos"`
	Dida      DidaConfig      `mapstructure:"dida"`
	CalDAV    CalDAVConfig    `mapstructure:"caldav"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Port      int        `mapstructure:"port"`
	BaseURL   string     `mapstructure:"base_url"` // 对外可访问地址，用于触发动作与回调 URL
	BodyLimit int64      `mapstructure:"body_limit"`
	CORS      CORSConfig `mapstructure:"cors"`
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
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // 分钟
}

// DSN 生成 PostgreSQL 连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode, c.Timezone,
	)
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 会话 Token 校验配置
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"` // 为空时不校验 iss
}

// CronConfig 定时分发配置
type CronConfig struct {
	Secret         string        `mapstructure:"secret"`
	GraceMinutes   int           `mapstructure:"grace_minutes"` // 0 表示精确到分钟匹配
	TriggerTimeout time.Duration `mapstructure:"trigger_timeout"`
}

// GatewayConfig 生成网关配置
// 系统凭证按 ServiceRoleKey → ServiceKey → PublicKey 顺序回退
type GatewayConfig struct {
	URL            string        `mapstructure:"url"`
	ServiceRoleKey string        `mapstructure:"service_role_key"`
	ServiceKey     string        `mapstructure:"service_key"`
	PublicKey      string        `mapstructure:"public_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// COSConfig 对象存储与 CDN 签名配置
type COSConfig struct {
	SecretID   string `mapstructure:"secret_id"`
	SecretKey  string `mapstructure:"secret_key"`
	Bucket     string `mapstructure:"bucket"`
	Region     string `mapstructure:"region"`
	Endpoint   string `mapstructure:"endpoint"`
	CDNDomain  string `mapstructure:"cdn_domain"`
	CDNAuthKey string `mapstructure:"cdn_auth_key"`
	CDNAuthTTL int    `mapstructure:"cdn_auth_ttl"` // 秒
}

// Enabled 是否配置了对象存储
func (c *COSConfig) Enabled() bool {
	return c.SecretID != "" && c.SecretKey != "" && c.Bucket != "" && c.Region != ""
}

// DidaConfig 滴答清单开放平台配置
type DidaConfig struct {
	BaseURL string          `mapstructure:"base_url"`
	Timeout time.Duration   `mapstructure:"timeout"`
	OAuth   DidaOAuthConfig `mapstructure:"oauth"`
}

// DidaOAuthConfig 开放平台 OAuth 授权配置
type DidaOAuthConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	AuthURL      string `mapstructure:"auth_url"`
	TokenURL     string `mapstructure:"token_url"`
	RedirectURL  string `mapstructure:"redirect_url"` // 为空时使用 server.base_url 下的回调地址
	FrontendURL  string `mapstructure:"frontend_url"` // 授权完成后携带 Token 跳转的前端地址
}

// Enabled 是否配置了 OAuth 应用
func (c *DidaOAuthConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// CalDAVConfig 日历服务配置
type CalDAVConfig struct {
	ServerURL    string        `mapstructure:"server_url"`
	Retries      int           `mapstructure:"retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RateLimitConfig 动作接口限流配置
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// Load 从 .env、配置文件与环境变量加载配置
// 优先级：环境变量 > 配置文件 > 默认值
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()

	// ── 默认值 ──
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.body_limit", 8<<20)
	v.SetDefault("server.cors.allow_origins", []string{"http://localhost:3000"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.name", "dida_master")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.timezone", "Asia/Shanghai")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", 60)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cron.grace_minutes", 2)
	v.SetDefault("cron.trigger_timeout", "30s")

	v.SetDefault("gateway.timeout", "60s")

	v.SetDefault("cos.cdn_auth_ttl", 3600)

	v.SetDefault("dida.base_url", "https://api.dida365.com/open/v1")
	v.SetDefault("dida.timeout", "30s")
	v.SetDefault("dida.oauth.auth_url", "https://dida365.com/oauth/authorize")
	v.SetDefault("dida.oauth.token_url", "https://dida365.com/oauth/token")
	v.SetDefault("dida.oauth.frontend_url", "/")

	v.SetDefault("caldav.server_url", "https://caldav.icloud.com/")
	v.SetDefault("caldav.retries", 3)
	v.SetDefault("caldav.retry_backoff", "1s")
	v.SetDefault("caldav.timeout", "30s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("rate_limit.requests", 30)
	v.SetDefault("rate_limit.window", "1m")

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
	v.SetEnvPrefix("DIDA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验关键配置项
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("配置校验失败: server.port 必须在 1-65535 之间")
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("配置校验失败: server.base_url 不能为空")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("配置校验失败: auth.jwt_secret 长度不能少于 16 字符")
	}
	if c.Cron.Secret == "" {
		return fmt.Errorf("配置校验失败: cron.secret 不能为空")
	}
	if c.Cron.GraceMinutes < 0 {
		return fmt.Errorf("配置校验失败: cron.grace_minutes 不能为负数")
	}
	if c.Gateway.URL == "" {
		return fmt.Errorf("配置校验失败: gateway.url 不能为空")
	}
	if c.CalDAV.Retries < 1 {
		return fmt.Errorf("配置校验失败: caldav.retries 至少为 1")
	}
	return nil
}
