package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config 服务端配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Match     MatchConfig     `yaml:"match"`
	Bus       BusConfig       `yaml:"bus"`
	Security  SecurityConfig  `yaml:"security"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig WebSocket 网关配置
type ServerConfig struct {
	Host           string `yaml:"host" env:"THREADROOK_HOST"`
	Port           int    `yaml:"port" env:"THREADROOK_PORT"`
	MaxConnections int    `yaml:"max_connections" env:"THREADROOK_MAX_CONNECTIONS"`
	ShutdownWait   int    `yaml:"shutdown_wait" env:"THREADROOK_SHUTDOWN_WAIT"` // 关闭时等待对局结束（秒）
}

// RedisConfig Redis 配置，启用后总线跨进程广播
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" env:"THREADROOK_REDIS_ENABLED"`
	Addr     string `yaml:"addr" env:"THREADROOK_REDIS_ADDR"`
	Password string `yaml:"password" env:"THREADROOK_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"THREADROOK_REDIS_DB"`
	Channel  string `yaml:"channel" env:"THREADROOK_REDIS_CHANNEL"`
}

// MatchConfig 对局配置，时间单位为滴答
type MatchConfig struct {
	JoinDeadline int `yaml:"join_deadline" env:"THREADROOK_JOIN_DEADLINE"` // 等待对手的滴答数
	ClockTicks   int `yaml:"clock_ticks" env:"THREADROOK_CLOCK_TICKS"`     // 每方用时
	TickInterval int `yaml:"tick_interval_ms" env:"THREADROOK_TICK_INTERVAL_MS"`
	GracePeriod  int `yaml:"grace_period" env:"THREADROOK_GRACE_PERIOD"`   // 结束后保留展示区（秒）
	QueryTimeout int `yaml:"query_timeout" env:"THREADROOK_QUERY_TIMEOUT"` // 是否已在对局中的查询超时（秒）
}

// BusConfig 事件总线配置
type BusConfig struct {
	Backlog int `yaml:"backlog" env:"THREADROOK_BUS_BACKLOG"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	AllowedOrigins []string           `yaml:"allowed_origins" env:"THREADROOK_ALLOWED_ORIGINS" envSeparator:","`
	MessageLimit   MessageLimitConfig `yaml:"message_limit"`
}

// MessageLimitConfig 单连接消息速率限制
type MessageLimitConfig struct {
	MaxPerSecond int `yaml:"max_per_second" env:"THREADROOK_MESSAGE_LIMIT"`
}

// LogConfig 日志配置
type LogConfig struct {
	Dir string `yaml:"dir" env:"THREADROOK_LOG_DIR"`
}

// TelemetryConfig 链路追踪配置，Endpoint 为空时不启用
type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint" env:"THREADROOK_OTEL_ENDPOINT"`
}

// TickIntervalDuration 返回滴答间隔
func (c *MatchConfig) TickIntervalDuration() time.Duration {
	return time.Duration(c.TickInterval) * time.Millisecond
}

// GracePeriodDuration 返回结束后的保留时长
func (c *MatchConfig) GracePeriodDuration() time.Duration {
	return time.Duration(c.GracePeriod) * time.Second
}

// QueryTimeoutDuration 返回查询超时
func (c *MatchConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(c.QueryTimeout) * time.Second
}

// ShutdownWaitDuration 返回关闭时等待对局结束的时长
func (c *ServerConfig) ShutdownWaitDuration() time.Duration {
	return time.Duration(c.ShutdownWait) * time.Second
}

// Load 加载配置文件，环境变量覆盖文件中的值
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv 用环境变量覆盖配置，之后补齐默认值
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return nil
}

// applyDefaults 为空值和非正数设置默认值
func (c *Config) applyDefaults() {
	d := Default()

	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port <= 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Server.MaxConnections <= 0 {
		c.Server.MaxConnections = d.Server.MaxConnections
	}
	if c.Server.ShutdownWait <= 0 {
		c.Server.ShutdownWait = d.Server.ShutdownWait
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = d.Redis.Addr
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = d.Redis.Channel
	}
	if c.Match.JoinDeadline <= 0 {
		c.Match.JoinDeadline = d.Match.JoinDeadline
	}
	if c.Match.ClockTicks <= 0 {
		c.Match.ClockTicks = d.Match.ClockTicks
	}
	if c.Match.TickInterval <= 0 {
		c.Match.TickInterval = d.Match.TickInterval
	}
	if c.Match.GracePeriod <= 0 {
		c.Match.GracePeriod = d.Match.GracePeriod
	}
	if c.Match.QueryTimeout <= 0 {
		c.Match.QueryTimeout = d.Match.QueryTimeout
	}
	if c.Bus.Backlog <= 0 {
		c.Bus.Backlog = d.Bus.Backlog
	}
	if c.Security.MessageLimit.MaxPerSecond <= 0 {
		c.Security.MessageLimit.MaxPerSecond = d.Security.MessageLimit.MaxPerSecond
	}
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           1781,
			MaxConnections: 10000,
			ShutdownWait:   300,
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "threadrook:bus",
		},
		Match: MatchConfig{
			JoinDeadline: 90,
			ClockTicks:   300,
			TickInterval: 1000,
			GracePeriod:  30,
			QueryTimeout: 10,
		},
		Bus: BusConfig{
			Backlog: 10000,
		},
		Security: SecurityConfig{
			MessageLimit: MessageLimitConfig{MaxPerSecond: 20},
		},
	}
}
