package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

type Config struct {
	Env        string    `yaml:"env"`
	BaseURL    string    `yaml:"base_url"`
	Logger     Logger    `yaml:"logger"`
	HTTPServer `yaml:"http_server"`
	Postgres   `yaml:"postgres"`
	Redis      Redis     `yaml:"redis"`
	Cache      Cache     `yaml:"cache"`
	Links      Links     `yaml:"links"`
	Analytics  Analytics `yaml:"analytics"`
	Metrics    Metrics   `yaml:"metrics"`
	RateLimit  RateLimit `yaml:"rate_limit"`
}

type Logger struct {
	Level   string `yaml:"level"`
	JSON    bool   `yaml:"json"`
	Concise bool   `yaml:"concise"`
}

var defaultLogger = Logger{
	Level:   "info",
	Concise: true,
}

type HTTPServer struct {
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	CertFile       string        `yaml:"cert_file"`
	KeyFile        string        `yaml:"key_file"`
	StaticDir      string        `yaml:"static_dir"`
}

var defaultHTTPServer = HTTPServer{
	Port:           8080,
	ReadTimeout:    5 * time.Second,
	WriteTimeout:   10 * time.Second,
	IdleTimeout:    time.Minute,
	MaxHeaderBytes: 1 << 20,
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnectAttempts int           `yaml:"connect_attempts"`
	ConnectDelay    time.Duration `yaml:"connect_delay"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
	ConnectAttempts: 5,
	ConnectDelay:    2 * time.Second,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

// Redis configures the primary lookup cache. An empty Addr runs the cache on its in-memory fallback.
type Redis struct {
	Addr              string        `yaml:"addr"`
	Password          string        `yaml:"password"`
	DB                int           `yaml:"db"`
	DialTimeout       time.Duration `yaml:"dial_timeout"`
	OpTimeout         time.Duration `yaml:"op_timeout"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
}

var defaultRedis = Redis{
	Addr:              "localhost:6379",
	DialTimeout:       2 * time.Second,
	OpTimeout:         200 * time.Millisecond,
	ReconnectInterval: 10 * time.Second,
}

type Cache struct {
	TTL time.Duration `yaml:"ttl"`
}

var defaultCache = Cache{
	TTL: time.Hour,
}

type Links struct {
	GracePeriod    time.Duration `yaml:"grace_period"`
	ExtendOnAccess bool          `yaml:"extend_on_access"`
	MaxAttempts    int           `yaml:"max_attempts"`
	SweepInterval  time.Duration `yaml:"sweep_interval"`
}

var defaultLinks = Links{
	GracePeriod:   5 * time.Minute,
	MaxAttempts:   5,
	SweepInterval: time.Minute,
}

type Analytics struct {
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queue_size"`
	MaxSpill        int           `yaml:"max_spill"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	Timeout         time.Duration `yaml:"timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

var defaultAnalytics = Analytics{
	Workers:         4,
	QueueSize:       1024,
	MaxSpill:        256,
	MaxRetries:      3,
	RetryDelay:      100 * time.Millisecond,
	Timeout:         5 * time.Second,
	ShutdownTimeout: 10 * time.Second,
}

type Metrics struct {
	TopN int `yaml:"top_n"`
}

var defaultMetrics = Metrics{
	TopN: 10,
}

type RateLimit struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

var defaultRateLimit = RateLimit{
	MaxRequests: 100,
	Window:      time.Minute,
}

func Load(path string) (*Config, error) {
	const op = "config.Load"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open config file: %w", op, err)
	}
	defer f.Close()

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	return &cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.BaseURL = "http://localhost:8080"
	cfg.Logger = defaultLogger
	cfg.HTTPServer = defaultHTTPServer
	cfg.Postgres = defaultPostgres
	cfg.Redis = defaultRedis
	cfg.Cache = defaultCache
	cfg.Links = defaultLinks
	cfg.Analytics = defaultAnalytics
	cfg.Metrics = defaultMetrics
	cfg.RateLimit = defaultRateLimit
}
