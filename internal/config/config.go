package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config 服务配置
type Config struct {
	App          AppConfig          `mapstructure:"app" yaml:"app"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	WebTransport WebTransportConfig `mapstructure:"webtransport" yaml:"webtransport"`
	Room         RoomConfig         `mapstructure:"room" yaml:"room"`
	Worker       WorkerConfig       `mapstructure:"worker" yaml:"worker"`
	NATS         NATSConfig         `mapstructure:"nats" yaml:"nats"`
	Redis        RedisConfig        `mapstructure:"redis" yaml:"redis"`
	Database     DatabaseConfig     `mapstructure:"database" yaml:"database"`
}

type AppConfig struct {
	Name     string `mapstructure:"name" yaml:"name"`
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	NodeID   int64  `mapstructure:"node_id" yaml:"node_id"`
}

// ServerConfig HTTP / WebSocket 监听配置
type ServerConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	StaticDir    string        `mapstructure:"static_dir" yaml:"static_dir"`
	AllowOrigins []string      `mapstructure:"allow_origins" yaml:"allow_origins"`
	ReadLimit    int64         `mapstructure:"read_limit" yaml:"read_limit"`
	SendQueue    int           `mapstructure:"send_queue" yaml:"send_queue"`
	RateLimit    float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst    int           `mapstructure:"rate_burst" yaml:"rate_burst"`
	PingInterval time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`
	PongWait     time.Duration `mapstructure:"pong_wait" yaml:"pong_wait"`
	WriteWait    time.Duration `mapstructure:"write_wait" yaml:"write_wait"`
}

type WebTransportConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	CertFile        string        `mapstructure:"cert_file" yaml:"cert_file"`
	KeyFile         string        `mapstructure:"key_file" yaml:"key_file"`
	MaxIdleTimeout  time.Duration `mapstructure:"max_idle_timeout" yaml:"max_idle_timeout"`
	KeepAlivePeriod time.Duration `mapstructure:"keep_alive_period" yaml:"keep_alive_period"`

	HeartbeatTimeout       time.Duration `mapstructure:"heartbeat_timeout" yaml:"heartbeat_timeout"`
	HeartbeatCheckInterval time.Duration `mapstructure:"heartbeat_check_interval" yaml:"heartbeat_check_interval"`
}

// RoomConfig 房间生命周期配置
type RoomConfig struct {
	SweepInterval   time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	EmptyRoomExpiry time.Duration `mapstructure:"empty_room_expiry" yaml:"empty_room_expiry"`
	CodeAttempts    int           `mapstructure:"code_attempts" yaml:"code_attempts"`
	MaxUsername     int           `mapstructure:"max_username" yaml:"max_username"`
}

type WorkerConfig struct {
	Shards    int `mapstructure:"shards" yaml:"shards"`
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	URL           string        `mapstructure:"url" yaml:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait" yaml:"reconnect_wait"`
	SubjectPrefix string        `mapstructure:"subject_prefix" yaml:"subject_prefix"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
	PoolSize int    `mapstructure:"pool_size" yaml:"pool_size"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	Host            string        `mapstructure:"host" yaml:"host"`
	Port            int           `mapstructure:"port" yaml:"port"`
	Name            string        `mapstructure:"name" yaml:"name"`
	User            string        `mapstructure:"user" yaml:"user"`
	Password        string        `mapstructure:"password" yaml:"password"`
	MaxConns        int32         `mapstructure:"max_conns" yaml:"max_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// DSN 返回 pgx 连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// setDefaults 为每个配置项注册默认值
// AutomaticEnv 只对 viper 已知的键生效，没有默认值的键无法通过环境变量设置
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "cardroom")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.node_id", 1)

	v.SetDefault("server.addr", ":3030")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("server.read_limit", 4096)
	v.SetDefault("server.send_queue", 256)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("server.ping_interval", 25*time.Second)
	v.SetDefault("server.pong_wait", 60*time.Second)
	v.SetDefault("server.write_wait", 10*time.Second)

	v.SetDefault("webtransport.enabled", false)
	v.SetDefault("webtransport.addr", ":4433")
	v.SetDefault("webtransport.cert_file", "")
	v.SetDefault("webtransport.key_file", "")
	v.SetDefault("webtransport.max_idle_timeout", 60*time.Second)
	v.SetDefault("webtransport.keep_alive_period", 20*time.Second)
	v.SetDefault("webtransport.heartbeat_timeout", 90*time.Second)
	v.SetDefault("webtransport.heartbeat_check_interval", 30*time.Second)

	v.SetDefault("room.sweep_interval", 5*time.Minute)
	v.SetDefault("room.empty_room_expiry", 15*time.Minute)
	v.SetDefault("room.code_attempts", 32)
	v.SetDefault("room.max_username", 32)

	v.SetDefault("worker.shards", 16)
	v.SetDefault("worker.queue_size", 1024)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.subject_prefix", "cardroom")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "cardroom")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
}

// Load 从指定路径加载配置，path 为空时只使用默认值和环境变量
// 环境变量前缀 CARDROOM_，例如 CARDROOM_ROOM_SWEEP_INTERVAL=1m；PORT 覆盖监听端口
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("CARDROOM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Room.SweepInterval <= 0 {
		errs = append(errs, errors.New("room.sweep_interval must be positive"))
	}
	if c.Room.EmptyRoomExpiry <= 0 {
		errs = append(errs, errors.New("room.empty_room_expiry must be positive"))
	}
	if c.Room.CodeAttempts <= 0 {
		errs = append(errs, errors.New("room.code_attempts must be positive"))
	}
	if c.Worker.Shards <= 0 || c.Worker.QueueSize <= 0 {
		errs = append(errs, errors.New("worker.shards and worker.queue_size must be positive"))
	}
	if c.Server.SendQueue <= 0 {
		errs = append(errs, errors.New("server.send_queue must be positive"))
	}
	return errors.Join(errs...)
}

// String 以 YAML 输出生效配置，密码字段打码
func (c *Config) String() string {
	masked := *c
	if masked.Redis.Password != "" {
		masked.Redis.Password = "******"
	}
	if masked.Database.Password != "" {
		masked.Database.Password = "******"
	}
	data, err := yaml.Marshal(&masked)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}
