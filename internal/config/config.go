package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"storefront/internal/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	defaultAPIBaseURL     = "http://localhost:4000/api"
	defaultRequestTimeout = 15 * time.Second
	defaultOTPMaxAttempts = 5
	defaultCacheSize      = 256
	defaultProxyPort      = "8090"
	defaultOutboundRPS    = 10
	defaultWalletPayee    = "shoestopper@upi"
	defaultRecentLimit    = 20
)

type Config struct {
	AppEnv              string
	APIBaseURL          string
	RequestTimeout      time.Duration
	StateFile           string
	OTPMaxAttempts      int
	OfflineCacheSize    int
	ProxyPort           string
	ProxyUpstream       string
	OutboundRPS         float64
	WalletPayee         string
	RecentlyViewedLimit int
	AnonymousCart       bool
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:              os.Getenv("APP_ENV"),
		APIBaseURL:          getenv("API_BASE_URL", defaultAPIBaseURL),
		RequestTimeout:      getDuration("REQUEST_TIMEOUT", defaultRequestTimeout),
		StateFile:           getenv("STATE_FILE", defaultStateFile()),
		OTPMaxAttempts:      getInt("OTP_MAX_ATTEMPTS", defaultOTPMaxAttempts),
		OfflineCacheSize:    getInt("OFFLINE_CACHE_SIZE", defaultCacheSize),
		ProxyPort:           getenv("PROXY_PORT", defaultProxyPort),
		ProxyUpstream:       os.Getenv("PROXY_UPSTREAM"),
		OutboundRPS:         getFloat("OUTBOUND_RPS", defaultOutboundRPS),
		WalletPayee:         getenv("WALLET_PAYEE", defaultWalletPayee),
		RecentlyViewedLimit: getInt("RECENTLY_VIEWED_LIMIT", defaultRecentLimit),
		AnonymousCart:       getBool("ANONYMOUS_CART", false),
	}

	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API_BASE_URL %q", cfg.APIBaseURL)
	}

	if cfg.ProxyUpstream == "" {
		cfg.ProxyUpstream = u.Scheme + "://" + u.Host
	}

	if cfg.StateFile == "" {
		return nil, errors.New("STATE_FILE could not be resolved")
	}

	return cfg, nil
}

func defaultStateFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".storefront", "state.json")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		logger.L().Warn("invalid integer env value, using default",
			zap.String("key", key),
			zap.String("value", raw),
			zap.Int("default", def),
		)
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		logger.L().Warn("invalid numeric env value, using default",
			zap.String("key", key),
			zap.String("value", raw),
			zap.Float64("default", def),
		)
		return def
	}
	return f
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		logger.L().Warn("invalid duration env value, using default",
			zap.String("key", key),
			zap.String("value", raw),
			zap.Duration("default", def),
		)
		return def
	}
	return d
}

func getBool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		logger.L().Warn("invalid boolean env value, using default",
			zap.String("key", key),
			zap.String("value", raw),
			zap.Bool("default", def),
		)
		return def
	}
	return b
}
