package cfg

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"pastebin/svc/util"

	"github.com/pkg/errors"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type Secret struct {
	value []byte
}

func NewSecret(s string) Secret {
	return Secret{value: []byte(s)}
}
func (s Secret) Value() string {
	return string(s.value)
}
func (s Secret) Wipe() {
	util.Wipe(s.value)
}
func (s Secret) String() string {
	return "***REDACTED***"
}

type Cfg struct {
	Port                    string
	BindInterface           string
	Environment             string
	LogLevel                string
	StoreBackend            string
	SaveFile                string
	DatabasePath            string
	DefaultMaxActiveEntries int
	DefaultRetentionDays    int
	AutosaveInterval        time.Duration
	MaxPasteSize            int64
	ContextTimeout          time.Duration
	RedisURL                string
	RedisPassword           Secret
	RedisTimeout            time.Duration
	RateLimit               RateLimitCfg
	TrustedProxies          []string
	PageCacheSize           int
	MetricsUser             string
	MetricsPass             Secret
	ConsoleShutdown         bool
}

type RateLimitCfg struct {
	RPM   int
	Burst int
}

func (c *Cfg) IsProduction() bool { return c.Environment == "production" }

func Load() (*Cfg, error) {
	c := &Cfg{}
	c.Port = getEnv("PORT", "8080")
	c.BindInterface = getEnv("BIND_INTERFACE", "")
	c.Environment = getEnv("ENVIRONMENT", "development")
	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.StoreBackend = strings.ToLower(getEnv("STORE_BACKEND", BackendFile))
	c.SaveFile = getEnv("SAVE_FILE", defaultSaveFile())
	c.DatabasePath = getEnv("DATABASE_PATH", "pastebin.db")
	var err error
	c.DefaultMaxActiveEntries, err = getInt("DEFAULT_MAX_ACTIVE_ENTRIES", 20)
	if err != nil {
		return nil, err
	}
	c.DefaultRetentionDays, err = getInt("DEFAULT_RETENTION_DAYS", 32)
	if err != nil {
		return nil, err
	}
	c.AutosaveInterval, err = getDuration("AUTOSAVE_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	c.MaxPasteSize, err = getInt64("MAX_PASTE_SIZE", 256*1024)
	if err != nil {
		return nil, err
	}
	c.ContextTimeout, err = getDuration("CONTEXT_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	c.RedisURL = getEnv("REDIS_URL", "")
	c.RedisPassword = NewSecret(getEnv("REDIS_PASSWORD", ""))
	c.RedisTimeout, err = getDuration("REDIS_TIMEOUT", 2*time.Second)
	if err != nil {
		return nil, err
	}
	c.RateLimit.RPM, err = getInt("RATE_LIMIT_RPM", 120)
	if err != nil {
		return nil, err
	}
	c.RateLimit.Burst, err = getInt("RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, err
	}
	c.TrustedProxies = getSlice("TRUSTED_PROXIES", []string{})
	c.PageCacheSize, err = getInt("PAGE_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	c.MetricsUser = getEnv("METRICS_USER", "")
	c.MetricsPass = NewSecret(getEnv("METRICS_PASS", ""))
	c.ConsoleShutdown, err = getBool("CONSOLE_SHUTDOWN", true)
	if err != nil {
		return nil, err
	}
	return c, nil
}
func Validate(c *Cfg) error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return errors.New("PORT must be a number")
	}
	if port < 1 || port > 65535 {
		return errors.New("PORT must be between 1 and 65535")
	}

	switch c.StoreBackend {
	case BackendFile:
		if c.SaveFile == "" {
			return errors.New("SAVE_FILE is required for the file backend")
		}
	case BackendSQLite:
		if c.DatabasePath == "" {
			return errors.New("DATABASE_PATH is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q", BackendFile, BackendSQLite)
	}

	if c.DefaultMaxActiveEntries < 0 {
		return errors.New("DEFAULT_MAX_ACTIVE_ENTRIES cannot be negative")
	}
	if c.DefaultRetentionDays < 0 {
		return errors.New("DEFAULT_RETENTION_DAYS cannot be negative")
	}
	if c.AutosaveInterval < 0 {
		return errors.New("AUTOSAVE_INTERVAL cannot be negative")
	}
	if c.AutosaveInterval > 0 && c.AutosaveInterval < time.Second {
		return errors.New("AUTOSAVE_INTERVAL must be at least 1s")
	}

	if c.MaxPasteSize <= 0 {
		return errors.New("MAX_PASTE_SIZE must be positive")
	}
	if c.MaxPasteSize > 10*1024*1024 {
		return errors.New("MAX_PASTE_SIZE cannot exceed 10MB")
	}
	if c.ContextTimeout <= 0 {
		return errors.New("CONTEXT_TIMEOUT must be positive")
	}

	if c.RedisURL != "" {
		if !strings.HasPrefix(c.RedisURL, "redis://") && !strings.HasPrefix(c.RedisURL, "rediss://") {
			return errors.New("REDIS_URL must start with redis:// or rediss://")
		}
	}
	if c.RateLimit.RPM <= 0 {
		return errors.New("RATE_LIMIT_RPM must be positive")
	}
	if c.RateLimit.Burst <= 0 {
		return errors.New("RATE_LIMIT_BURST must be positive")
	}
	if c.PageCacheSize <= 0 {
		return errors.New("PAGE_CACHE_SIZE must be positive")
	}

	for _, proxy := range c.TrustedProxies {
		if strings.Contains(proxy, "/") {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("invalid CIDR in TRUSTED_PROXIES: %s", proxy)
			}
		} else {
			if net.ParseIP(proxy) == nil {
				return fmt.Errorf("invalid IP in TRUSTED_PROXIES: %s", proxy)
			}
		}
	}

	if c.IsProduction() {
		if c.MetricsUser == "" || c.MetricsPass.Value() == "" {
			return errors.New("METRICS_USER and METRICS_PASS are required in production")
		}
	}
	return nil
}
func (c *Cfg) Wipe() {
	c.RedisPassword.Wipe()
	c.MetricsPass.Wipe()
}

func defaultSaveFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pastebin"
	}
	return filepath.Join(home, ".pastebin")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
func getInt(key string, fallback int) (int, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return v, nil
}
func getInt64(key string, fallback int64) (int64, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return v, nil
}
func getBool(key string, fallback bool) (bool, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	return v, nil
}
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return v, nil
}
func getSlice(key string, fallback []string) []string {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
