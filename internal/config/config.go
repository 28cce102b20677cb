package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/maltedev/price-comparison-scraper/internal/browser"
	"github.com/maltedev/price-comparison-scraper/internal/database"
	"github.com/maltedev/price-comparison-scraper/internal/scraper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Memcache MemcacheConfig
	Cache    CacheConfig
	Browser  BrowserConfig
	Scraper  ScraperConfig
	Registry RegistryConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type DatabaseConfig struct {
	URL         string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int32
	AutoMigrate bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MemcacheConfig struct {
	Servers []string
}

type CacheConfig struct {
	Backend       string
	TTL           time.Duration
	SweepInterval time.Duration
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ExecutablePath string
	ProxyServer    string
	UserAgent      string
	Locale         string
	TimezoneID     string
}

type ScraperConfig struct {
	ScrollWait         time.Duration
	MaxScrolls         int
	StagnantScrolls    int
	SettleWait         time.Duration
	ChallengeWait      time.Duration
	ExtraScrolls       int
	MaxPages           int
	PageDelayMin       time.Duration
	PageDelayMax       time.Duration
	MaxConcurrentRuns  int
	SiteFamiliesFile   string
	DetectorSettleWait time.Duration
}

type RegistryConfig struct {
	Source string
	File   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

const (
	CacheBackendRedis    = "redis"
	CacheBackendMemcache = "memcache"
	CacheBackendPostgres = "postgres"
	CacheBackendMemory   = "memory"
	CacheBackendNone     = "none"

	RegistrySourcePostgres = "postgres"
	RegistrySourceFile     = "file"
)

// LoadDotEnv reads .env files into the environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func Load() (*Config, error) {
	crawl := scraper.DefaultCrawlSettings()
	browserDefaults := browser.DefaultOptions()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 10*time.Minute),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Database: DatabaseConfig{
			URL:         getEnvOrDefault("DATABASE_URL", ""),
			Host:        getEnvOrDefault("DB_HOST", "localhost"),
			Port:        getIntOrDefault("DB_PORT", 5432),
			User:        getEnvOrDefault("DB_USER", "postgres"),
			Password:    getEnvOrDefault("DB_PASSWORD", ""),
			DBName:      getEnvOrDefault("DB_NAME", "price_comparison"),
			SSLMode:     getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns:    int32(getIntOrDefault("DB_MAX_CONNS", 10)),
			AutoMigrate: getBoolOrDefault("DATABASE_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Memcache: MemcacheConfig{
			Servers: getStringSliceOrDefault("MEMCACHE_SERVERS", []string{"localhost:11211"}),
		},
		Cache: CacheConfig{
			Backend:       strings.ToLower(getEnvOrDefault("CACHE_BACKEND", CacheBackendPostgres)),
			TTL:           getDurationOrDefault("CACHE_TTL", 6*time.Hour),
			SweepInterval: getDurationOrDefault("CACHE_SWEEP_INTERVAL", 30*time.Minute),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", browserDefaults.Timeout),
			ExecutablePath: getEnvOrDefault("BROWSER_EXECUTABLE_PATH", ""),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", browserDefaults.UserAgent),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", browserDefaults.Locale),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", browserDefaults.TimezoneID),
		},
		Scraper: ScraperConfig{
			ScrollWait:         getDurationOrDefault("SCRAPER_SCROLL_WAIT", crawl.ScrollWait),
			MaxScrolls:         getIntOrDefault("SCRAPER_MAX_SCROLLS", crawl.MaxScrolls),
			StagnantScrolls:    getIntOrDefault("SCRAPER_STAGNANT_SCROLLS", crawl.StagnantScrolls),
			SettleWait:         getDurationOrDefault("SCRAPER_SETTLE_WAIT", crawl.SettleWait),
			ChallengeWait:      getDurationOrDefault("SCRAPER_CHALLENGE_WAIT", crawl.ChallengeWait),
			ExtraScrolls:       getIntOrDefault("SCRAPER_EXTRA_SCROLLS", crawl.ExtraScrolls),
			MaxPages:           getIntOrDefault("SCRAPER_MAX_PAGES", crawl.MaxPages),
			PageDelayMin:       getDurationOrDefault("SCRAPER_PAGE_DELAY_MIN", crawl.PageDelayMin),
			PageDelayMax:       getDurationOrDefault("SCRAPER_PAGE_DELAY_MAX", crawl.PageDelayMax),
			MaxConcurrentRuns:  getIntOrDefault("SCRAPER_MAX_CONCURRENT_RUNS", 2),
			SiteFamiliesFile:   getEnvOrDefault("SCRAPER_SITE_FAMILIES_FILE", ""),
			DetectorSettleWait: getDurationOrDefault("DETECTOR_SETTLE_WAIT", 3*time.Second),
		},
		Registry: RegistryConfig{
			Source: strings.ToLower(getEnvOrDefault("REGISTRY_SOURCE", RegistrySourcePostgres)),
			File:   getEnvOrDefault("REGISTRY_FILE", "configs/competitors.yml"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendRedis, CacheBackendMemcache, CacheBackendPostgres, CacheBackendMemory, CacheBackendNone:
	default:
		return fmt.Errorf("unknown CACHE_BACKEND %q", c.Cache.Backend)
	}

	switch c.Registry.Source {
	case RegistrySourcePostgres:
	case RegistrySourceFile:
		if c.Registry.File == "" {
			return fmt.Errorf("REGISTRY_FILE is required when REGISTRY_SOURCE=file")
		}
	default:
		return fmt.Errorf("unknown REGISTRY_SOURCE %q", c.Registry.Source)
	}

	if c.Cache.Backend != CacheBackendNone && c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}

	if c.Cache.Backend == CacheBackendMemcache && len(c.Memcache.Servers) == 0 {
		return fmt.Errorf("MEMCACHE_SERVERS is required when CACHE_BACKEND=memcache")
	}

	if c.Scraper.MaxConcurrentRuns < 1 {
		return fmt.Errorf("SCRAPER_MAX_CONCURRENT_RUNS must be at least 1")
	}

	if c.Scraper.PageDelayMin > c.Scraper.PageDelayMax {
		return fmt.Errorf("SCRAPER_PAGE_DELAY_MIN cannot be greater than SCRAPER_PAGE_DELAY_MAX")
	}

	if c.Scraper.ExtraScrolls < 0 {
		return fmt.Errorf("SCRAPER_EXTRA_SCROLLS cannot be negative")
	}

	if c.Scraper.MaxScrolls < 1 || c.Scraper.MaxPages < 1 {
		return fmt.Errorf("SCRAPER_MAX_SCROLLS and SCRAPER_MAX_PAGES must be at least 1")
	}

	if c.Browser.Timeout <= 0 {
		return fmt.Errorf("BROWSER_TIMEOUT must be positive")
	}

	return nil
}

// UsesPostgres reports whether any configured component needs the database.
func (c *Config) UsesPostgres() bool {
	return c.Registry.Source == RegistrySourcePostgres || c.Cache.Backend == CacheBackendPostgres
}

func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		URL:      c.Database.URL,
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: c.Database.Password,
		Database: c.Database.DBName,
		SSLMode:  c.Database.SSLMode,
		MaxConns: c.Database.MaxConns,
	}
}

func (c *Config) BrowserOptions() *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = c.Browser.Headless
	opts.Timeout = c.Browser.Timeout
	opts.ExecutablePath = c.Browser.ExecutablePath
	opts.ProxyServer = c.Browser.ProxyServer
	opts.UserAgent = c.Browser.UserAgent
	opts.Locale = c.Browser.Locale
	opts.TimezoneID = c.Browser.TimezoneID
	return opts
}

func (c *Config) CrawlSettings() scraper.CrawlSettings {
	s := scraper.DefaultCrawlSettings()
	s.ScrollWait = c.Scraper.ScrollWait
	s.MaxScrolls = c.Scraper.MaxScrolls
	s.StagnantScrolls = c.Scraper.StagnantScrolls
	s.SettleWait = c.Scraper.SettleWait
	s.ChallengeWait = c.Scraper.ChallengeWait
	s.ExtraScrolls = c.Scraper.ExtraScrolls
	s.MaxPages = c.Scraper.MaxPages
	s.PageDelayMin = c.Scraper.PageDelayMin
	s.PageDelayMax = c.Scraper.PageDelayMax
	return s
}

// NewLogger builds the process logger from LOG_FORMAT and LOG_LEVEL.
func (c LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Level)}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return defaultValue
}
