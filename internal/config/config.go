package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// 主配置结构
type Config struct {
	App       App       `yaml:"app"`
	Server    Server    `yaml:"server"`
	Database  DB        `yaml:"database"`
	Cache     Cache     `yaml:"cache"`
	Auth      Auth      `yaml:"auth"`
	RateLimit Limit     `yaml:"rate_limit"`
	Allocator Allocator `yaml:"allocator"`
	Geo       Geo       `yaml:"geo"`
	Recorder  Recorder  `yaml:"recorder"`
	Log       Log       `yaml:"log"`
}

// 应用配置
type App struct {
	Name                  string `yaml:"name"`
	Mode                  string `yaml:"mode"`
	Version               string `yaml:"version"`
	BaseURL               string `yaml:"base_url"`
	DefaultExpirationDays int    `yaml:"default_expiration_days"` // 0 表示不过期
}

// 服务器配置
type Server struct {
	Port            int `yaml:"port"`
	ReadTimeout     int `yaml:"read_timeout"`
	WriteTimeout    int `yaml:"write_timeout"`
	ShutdownTimeout int `yaml:"shutdown_timeout"`
}

// 数据库配置
type DB struct {
	Driver   string `yaml:"driver"` // mysql | postgres | sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
	Path     string `yaml:"path"` // sqlite 文件路径
}

// 缓存配置
type Cache struct {
	LocalTTLSeconds int   `yaml:"local_ttl_seconds"`
	Shards          int   `yaml:"shards"`
	Redis           Redis `yaml:"redis"`
}

// Redis 共享缓存层，Host 为空时不启用
type Redis struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	Namespace  string `yaml:"namespace"`
}

// 认证配置
type Auth struct {
	Secret          string `yaml:"secret"`
	Issuer          string `yaml:"issuer"`
	ExpirationHours int    `yaml:"expiration_hours"`
}

// 限流配置
type Limit struct {
	Enabled   bool     `yaml:"enabled"`
	SkipPaths []string `yaml:"skip_paths"`
	General   Policy   `yaml:"general"`
	Strict    Policy   `yaml:"strict"`
	Redirect  Policy   `yaml:"redirect"`
}

// Policy 一组同时生效的令牌桶窗口
type Policy struct {
	Bandwidths []Bandwidth `yaml:"bandwidths"`
}

// Bandwidth 容量 + 补满周期（秒）
type Bandwidth struct {
	Capacity      int `yaml:"capacity"`
	PeriodSeconds int `yaml:"period_seconds"`
}

// 短码分配配置
type Allocator struct {
	Strategy    string `yaml:"strategy"` // random | sequential
	Length      int    `yaml:"length"`
	MaxAttempts int    `yaml:"max_attempts"`
	NodeID      int64  `yaml:"node_id"`
}

// 地理位置查询配置
type Geo struct {
	Enabled         bool   `yaml:"enabled"`
	APIURL          string `yaml:"api_url"`
	TimeoutMillis   int    `yaml:"timeout_millis"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes"`
}

// 点击记录配置
type Recorder struct {
	Workers            int `yaml:"workers"`
	QueueSize          int `yaml:"queue_size"`
	SinkTimeoutSeconds int `yaml:"sink_timeout_seconds"`
}

// 日志配置
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Default 返回一份可直接运行的默认配置，配置文件中的值会覆盖它
func Default() *Config {
	return &Config{
		App: App{Name: "shortlink-core", Mode: "development", Version: "1.0.0", BaseURL: "http://localhost:8080"},
		Server: Server{
			Port: 8080, ReadTimeout: 10, WriteTimeout: 10, ShutdownTimeout: 10,
		},
		Database: DB{Driver: "mysql", Host: "localhost", Port: 3306, Charset: "utf8mb4", Path: "shortlink.db"},
		Cache:    Cache{LocalTTLSeconds: 600, Shards: 16, Redis: Redis{Port: 6379, TTLSeconds: 3600, Namespace: "shortlink"}},
		Auth:     Auth{Issuer: "shortlink-core", ExpirationHours: 24},
		RateLimit: Limit{
			Enabled:  true,
			General:  Policy{Bandwidths: []Bandwidth{{Capacity: 60, PeriodSeconds: 60}, {Capacity: 1000, PeriodSeconds: 3600}}},
			Strict:   Policy{Bandwidths: []Bandwidth{{Capacity: 10, PeriodSeconds: 60}}},
			Redirect: Policy{Bandwidths: []Bandwidth{{Capacity: 100, PeriodSeconds: 10}}},
		},
		Allocator: Allocator{Strategy: "random", Length: 7, MaxAttempts: 10, NodeID: 1},
		Geo:       Geo{Enabled: true, APIURL: "http://ip-api.com/json/", TimeoutMillis: 2000, CacheTTLMinutes: 1440},
		Recorder:  Recorder{Workers: 4, QueueSize: 1024, SinkTimeoutSeconds: 5},
		Log:       Log{Level: "info", File: "./logs/app.log", MaxSize: 10, MaxBackups: 5, MaxAge: 30},
	}
}

// 加载配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
