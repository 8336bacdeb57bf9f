package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"stockwatch/pkg/database"
	"stockwatch/pkg/models"
)

type AuthConfig struct {
	JWTSecret   string        `yaml:"jwtSecret"`
	JWTIssuer   string        `yaml:"jwtIssuer"`
	JWTDuration time.Duration `yaml:"jwtDuration"`
}

type StoreConfig struct {
	Backend     string `yaml:"backend"` // sqlite | redis | memory
	Path        string `yaml:"path"`
	RedisAddr   string `yaml:"redisAddr"`
	RedisDB     int    `yaml:"redisDB"`
	RedisPrefix string `yaml:"redisPrefix"`
}

type FetchConfig struct {
	Timeout           time.Duration `yaml:"timeout"`
	MaxConcurrency    int           `yaml:"maxConcurrency"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Burst             int           `yaml:"burst"`
}

type SchedulerConfig struct {
	// Resolution is how often the periodic registry looks for due tags.
	Resolution time.Duration `yaml:"resolution"`
	// Periodic selects the persistent registry; false forces the timer fallback.
	Periodic bool `yaml:"periodic"`
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | text
}

type Config struct {
	HTTPAddr    string   `yaml:"httpAddr"`
	TCPAddr     string   `yaml:"tcpAddr"`
	UDPAddr     string   `yaml:"udpAddr"`
	ProxyURL    string   `yaml:"proxyURL"`
	CORSOrigins []string `yaml:"corsOrigins"`

	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	NATS      NATSConfig      `yaml:"nats"`
	Log       LogConfig       `yaml:"log"`
	Region    models.Region   `yaml:"region"`

	Defaults DefaultSettings           `yaml:"defaults"`
	Chains   map[models.ChainID]string `yaml:"chains"` // display names
}

// DefaultSettings seeds NotificationSettings when the store has none.
type DefaultSettings struct {
	Enabled             bool `yaml:"enabled"`
	IntervalMinutes     int  `yaml:"intervalMinutes"`
	AllStoresWhenEmpty  bool `yaml:"allStoresWhenEmpty"`
	RegionFilterEnabled bool `yaml:"regionFilterEnabled"`
}

func (d DefaultSettings) Settings() models.NotificationSettings {
	return models.NotificationSettings{
		Enabled:              d.Enabled,
		IntervalMinutes:      d.IntervalMinutes,
		TrackedStoresByChain: map[models.ChainID][]string{},
		AllStoresWhenEmpty:   d.AllStoresWhenEmpty,
		RegionFilterEnabled:  d.RegionFilterEnabled,
	}
}

// costaRicaStores are the stores the region filter keeps by default.
var costaRicaStores = []string{
	"Llorente", "Escazú", "Alajuela", "Cartago", "Zapote",
	"Heredia", "Tres Ríos", "Liberia", "Santa Ana",
}

func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		TCPAddr:     ":7070",
		UDPAddr:     ":9091",
		ProxyURL:    "http://localhost:3001",
		CORSOrigins: []string{"http://localhost:3000"},
		Store: StoreConfig{
			Backend:     "sqlite",
			Path:        database.DefaultConfig().Path,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "stockwatch:",
		},
		Auth: AuthConfig{
			JWTIssuer:   "stockwatch",
			JWTDuration: 24 * time.Hour,
		},
		Fetch: FetchConfig{
			Timeout:           15 * time.Second,
			MaxConcurrency:    8,
			RequestsPerSecond: 10,
			Burst:             5,
		},
		Scheduler: SchedulerConfig{
			Resolution: 15 * time.Second,
			Periodic:   true,
		},
		NATS: NATSConfig{Subject: "stockwatch.availability.changed"},
		Log:  LogConfig{Level: "info", Format: "text"},
		Region: models.Region{
			Locale:     "es-CR",
			StoreNames: costaRicaStores,
		},
		Defaults: DefaultSettings{
			Enabled:            true,
			IntervalMinutes:    60,
			AllStoresWhenEmpty: true,
		},
		Chains: map[models.ChainID]string{
			models.Chain1: "Auto Mercado",
			models.Chain2: "PriceSmart",
		},
	}
}

// LoadConfig layers .env, an optional YAML file and STOCKWATCH_* variables
// over DefaultConfig. An empty path falls back to STOCKWATCH_CONFIG.
func LoadConfig(path string) (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if path == "" {
		path = os.Getenv("STOCKWATCH_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return cfg, fmt.Errorf("config file %s not found", path)
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getenv("STOCKWATCH_HTTP_ADDR", cfg.HTTPAddr)
	cfg.TCPAddr = getenv("STOCKWATCH_TCP_ADDR", cfg.TCPAddr)
	cfg.UDPAddr = getenv("STOCKWATCH_UDP_ADDR", cfg.UDPAddr)
	cfg.ProxyURL = getenv("STOCKWATCH_PROXY_URL", cfg.ProxyURL)
	if v := os.Getenv("STOCKWATCH_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}

	cfg.Store.Backend = getenv("STOCKWATCH_STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = getenv("STOCKWATCH_DB_PATH", cfg.Store.Path)
	cfg.Store.RedisAddr = getenv("STOCKWATCH_REDIS_ADDR", cfg.Store.RedisAddr)

	cfg.Auth.JWTSecret = getenv("STOCKWATCH_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTIssuer = getenv("STOCKWATCH_JWT_ISSUER", cfg.Auth.JWTIssuer)
	if h := atoienv("STOCKWATCH_JWT_TTL_HOURS", 0); h > 0 {
		cfg.Auth.JWTDuration = time.Duration(h) * time.Hour
	}

	cfg.NATS.URL = getenv("STOCKWATCH_NATS_URL", cfg.NATS.URL)
	cfg.Log.Level = getenv("STOCKWATCH_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getenv("STOCKWATCH_LOG_FORMAT", cfg.Log.Format)

	if n := atoienv("STOCKWATCH_FETCH_CONCURRENCY", 0); n > 0 {
		cfg.Fetch.MaxConcurrency = n
	}
}

// Validate rejects configurations the daemon cannot start with.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case "sqlite", "redis", "memory":
	default:
		return &models.ConfigValidationError{Field: "store.backend", Reason: fmt.Sprintf("unknown backend %q", c.Store.Backend)}
	}
	if c.Defaults.IntervalMinutes <= 0 {
		return &models.ConfigValidationError{Field: "defaults.intervalMinutes", Reason: "must be a positive integer"}
	}
	if c.Fetch.MaxConcurrency <= 0 {
		return &models.ConfigValidationError{Field: "fetch.maxConcurrency", Reason: "must be positive"}
	}
	for _, o := range c.CORSOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return &models.ConfigValidationError{Field: "corsOrigins", Reason: fmt.Sprintf("bad origin %q", o)}
		}
	}
	if c.Scheduler.Resolution <= 0 {
		return &models.ConfigValidationError{Field: "scheduler.resolution", Reason: "must be positive"}
	}
	return nil
}

// DisplayName returns the configured chain name, or the id itself.
func (c Config) DisplayName(chain models.ChainID) string {
	if n := c.Chains[chain]; n != "" {
		return n
	}
	return string(chain)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
