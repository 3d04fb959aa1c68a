// Package config
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"scrapemonitor/packages/fetcher"
)

type Config struct {
	// Proxy. Host and port both empty means scraping is off for this deployment.
	ProxyScheme   string
	ProxyHost     string
	ProxyPort     string
	ProxyUsername string
	ProxyPassword string
	ProxyURLParam string

	TargetURLTemplate string
	EgressProbeURL    string

	BaseDelayMs    int
	JitterMs       int
	BlockThreshold int
	IdleInterval   time.Duration
	ErrorBackoff   time.Duration
	FetchTimeout   time.Duration
	EnabledOnStart bool

	DatabaseURL  string
	CatalogQuery string

	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CatalogCacheKey string
	CatalogCacheTTL time.Duration

	AdminAddr string
	LogFile   string
	LogLevel  string
}

func Load() (Config, error) {
	cfg := Config{}

	cfg.ProxyScheme = getEnv("PROXY_SCHEME", "http")
	cfg.ProxyHost = strings.TrimSpace(getEnv("PROXY_HOST", ""))
	cfg.ProxyPort = strings.TrimSpace(getEnv("PROXY_PORT", ""))
	cfg.ProxyUsername = getEnv("PROXY_USERNAME", "")
	cfg.ProxyPassword = getEnv("PROXY_PASSWORD", "")
	cfg.ProxyURLParam = getEnv("PROXY_URL_PARAM", "url")

	cfg.TargetURLTemplate = getEnv("TARGET_URL_TEMPLATE", "https://www.example-shop.com/api/products/{id}")
	cfg.EgressProbeURL = getEnv("EGRESS_PROBE_URL", "https://api.ipify.org?format=json")

	var err error
	if cfg.BaseDelayMs, err = envInt("SCRAPE_BASE_DELAY_MS", 200); err != nil {
		return cfg, err
	}
	if cfg.JitterMs, err = envInt("SCRAPE_JITTER_MS", 75); err != nil {
		return cfg, err
	}
	if cfg.BlockThreshold, err = envInt("SCRAPE_BLOCK_THRESHOLD", 3); err != nil {
		return cfg, err
	}
	if cfg.IdleInterval, err = envDuration("IDLE_INTERVAL", 5*time.Second); err != nil {
		return cfg, err
	}
	if cfg.ErrorBackoff, err = envDuration("ERROR_BACKOFF", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.FetchTimeout, err = envDuration("FETCH_TIMEOUT", 60*time.Second); err != nil {
		return cfg, err
	}
	cfg.EnabledOnStart, _ = strconv.ParseBool(getEnv("SCRAPE_ENABLED_ON_START", "false"))

	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	cfg.CatalogQuery = getEnv("CATALOG_QUERY", "SELECT id FROM products WHERE active ORDER BY id")

	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB, _ = strconv.Atoi(getEnv("REDIS_DB", "0"))
	cfg.CatalogCacheKey = getEnv("CATALOG_CACHE_KEY", "scrape-monitor:targets")
	cfg.CatalogCacheTTL, _ = time.ParseDuration(getEnv("CATALOG_CACHE_TTL", "5m"))

	cfg.AdminAddr = getEnv("ADMIN_ADDR", ":8090")
	cfg.LogFile = getEnv("LOG_FILE", "logs/scrape-monitor.log")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	return cfg, nil
}

// Validate checks what the daemon needs before it can start.
func (c Config) Validate() error {
	var missingVars []string
	if c.DatabaseURL == "" {
		missingVars = append(missingVars, "DATABASE_URL")
	}
	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missingVars, ", "))
	}
	if (c.ProxyHost == "") != (c.ProxyPort == "") {
		slog.Warn("Only one of PROXY_HOST and PROXY_PORT is set; scraping stays off", "proxy_host", c.ProxyHost, "proxy_port", c.ProxyPort)
	}
	if c.BaseDelayMs < 0 {
		return fmt.Errorf("SCRAPE_BASE_DELAY_MS must be >= 0, got %d", c.BaseDelayMs)
	}
	if c.JitterMs < 0 {
		return fmt.Errorf("SCRAPE_JITTER_MS must be >= 0, got %d", c.JitterMs)
	}
	if c.IdleInterval <= 0 {
		return fmt.Errorf("IDLE_INTERVAL must be > 0, got %s", c.IdleInterval)
	}
	if c.BlockThreshold <= 0 {
		slog.Warn("SCRAPE_BLOCK_THRESHOLD <= 0; the breaker will trip on the first block", "value", c.BlockThreshold)
	}
	return nil
}

// ProxyConfigured reports whether the scrape loop should run at all.
func (c Config) ProxyConfigured() bool {
	return c.ProxyHost != "" && c.ProxyPort != ""
}

// FetcherConfig is the proxy client configuration derived from c.
func (c Config) FetcherConfig() fetcher.Config {
	return fetcher.Config{
		ProxyScheme:       c.ProxyScheme,
		ProxyHost:         c.ProxyHost,
		ProxyPort:         c.ProxyPort,
		ProxyUsername:     c.ProxyUsername,
		ProxyPassword:     c.ProxyPassword,
		ProxyURLParam:     c.ProxyURLParam,
		TargetURLTemplate: c.TargetURLTemplate,
		EgressProbeURL:    c.EgressProbeURL,
		Timeout:           c.FetchTimeout,
	}
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	raw := getEnv(key, strconv.Itoa(defaultVal))
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultVal, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	raw := getEnv(key, defaultVal.String())
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return defaultVal, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}
