package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds file and environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via config files or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	TokenTTLHours      int
	RateLimitPerMinute int
	AllowedOrigins     []string
	SiteName           string
	FrontendURL        string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Storage: "gorm" (MySQL/PostgreSQL) or "memory"
	StorageDriver string
	DBDriver      string
	DatabaseURI   string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	// Redis backs token revocation, OAuth state and captcha answers. Empty host disables it.
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// SMTP for outbound notifications
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      bool
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// OAuth providers
	GitHubClientID     string
	GitHubClientSecret string
	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectBase  string
	// Contact intake
	AdminEmail            string
	ContactCaptchaEnabled bool
	// Notification dispatcher
	NotifyWorkers    int
	NotifyQueueSize  int
	NotifyTimeoutSec int
	// Admins
	AdminUsernames []string
}

// TokenTTL returns the session token lifetime.
func (c AppConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// NotifyTimeout bounds a single notification delivery.
func (c AppConfig) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutSec) * time.Second
}

// IsAdmin reports whether username is listed in AdminUsernames.
func (c AppConfig) IsAdmin(username string) bool {
	if username == "" {
		return false
	}
	for _, u := range c.AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), username) {
			return true
		}
	}
	return false
}

// Load builds the configuration once during boot.
// Precedence: config file -> defaults -> environment variable overrides.
// An empty path tries config/config.json then config/config.yaml.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig

	if path == "" {
		for _, candidate := range []string{
			filepath.Join("config", "config.json"),
			filepath.Join("config", "config.yaml"),
			filepath.Join("config", "config.yml"),
		} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}
	if path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return AppConfig{}, err
		}
	}

	applyDefaults(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return AppConfig{}, err
	}

	if cfg.JWTSecret == "" {
		return AppConfig{}, errors.New("JWT_SECRET must be set in config file or environment")
	}
	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// loadConfigFile reads a JSON or YAML file into out. A missing file is ignored.
func loadConfigFile(path string, out *AppConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parse json config %s: %w", path, err)
		}
	}
	applyRaw(raw, out)
	return nil
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]any, key string) int {
	if v, ok := m[key]; ok {
		switch t := v.(type) {
		case float64:
			return int(t)
		case int:
			return t
		case int64:
			return int(t)
		case json.Number:
			i, _ := t.Int64()
			return int(i)
		}
	}
	return 0
}

func getBool(m map[string]any, key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func getStringSlice(m map[string]any, key string) []string {
	if v, ok := m[key]; ok {
		if arr, ok := v.([]any); ok {
			res := make([]string, 0, len(arr))
			for _, it := range arr {
				if s, ok := it.(string); ok {
					res = append(res, s)
				}
			}
			return res
		}
	}
	return nil
}

func section(raw map[string]any, name string) map[string]any {
	if m, ok := raw[name].(map[string]any); ok {
		return m
	}
	return nil
}

// applyRaw maps grouped sections onto cfg.
func applyRaw(raw map[string]any, out *AppConfig) {
	if app := section(raw, "app"); app != nil {
		out.AppPort = getString(app, "AppPort")
		out.JWTSecret = getString(app, "JWTSecret")
		out.TokenTTLHours = getInt(app, "TokenTTLHours")
		out.RateLimitPerMinute = getInt(app, "RateLimitPerMinute")
		out.AllowedOrigins = getStringSlice(app, "AllowedOrigins")
		out.SiteName = getString(app, "SiteName")
		out.FrontendURL = getString(app, "FrontendURL")
		out.GinMode = getString(app, "GinMode")
		out.GinPath = getString(app, "GinPath")
	}
	if db := section(raw, "database"); db != nil {
		out.StorageDriver = getString(db, "StorageDriver")
		out.DBDriver = getString(db, "Driver")
		out.DatabaseURI = getString(db, "DatabaseURI")
		out.DBHost = getString(db, "Host")
		if p := getString(db, "Port"); p != "" {
			out.DBPort = p
		} else if n := getInt(db, "Port"); n != 0 {
			out.DBPort = strconv.Itoa(n)
		}
		out.DBUser = getString(db, "User")
		out.DBPassword = getString(db, "Password")
		out.DBName = getString(db, "Name")
	}
	if rd := section(raw, "redis"); rd != nil {
		out.RedisHost = getString(rd, "Host")
		out.RedisPort = getInt(rd, "Port")
		out.RedisDB = getInt(rd, "DB")
		out.RedisPassword = getString(rd, "Password")
	}
	if smtp := section(raw, "smtp"); smtp != nil {
		out.SMTPHost = getString(smtp, "Host")
		out.SMTPPort = getInt(smtp, "Port")
		out.SMTPUsername = getString(smtp, "Username")
		out.SMTPPassword = getString(smtp, "Password")
		out.SMTPFrom = getString(smtp, "From")
		out.SMTPFromName = getString(smtp, "FromName")
		out.SMTPTLS = getBool(smtp, "TLS")
	}
	if lg := section(raw, "log"); lg != nil {
		out.LogLevel = getString(lg, "Level")
		out.LogPath = getString(lg, "Path")
		out.LogMaxSizeMB = getInt(lg, "MaxSizeMB")
		out.LogMaxBackups = getInt(lg, "MaxBackups")
		out.LogMaxAgeDays = getInt(lg, "MaxAgeDays")
		out.LogCompress = getBool(lg, "Compress")
	}
	if oa := section(raw, "oauth"); oa != nil {
		out.GitHubClientID = getString(oa, "GitHubClientID")
		out.GitHubClientSecret = getString(oa, "GitHubClientSecret")
		out.GoogleClientID = getString(oa, "GoogleClientID")
		out.GoogleClientSecret = getString(oa, "GoogleClientSecret")
		out.OAuthRedirectBase = getString(oa, "RedirectBase")
	}
	if ct := section(raw, "contact"); ct != nil {
		out.AdminEmail = getString(ct, "AdminEmail")
		out.ContactCaptchaEnabled = getBool(ct, "CaptchaEnabled")
	}
	if nt := section(raw, "notify"); nt != nil {
		out.NotifyWorkers = getInt(nt, "Workers")
		out.NotifyQueueSize = getInt(nt, "QueueSize")
		out.NotifyTimeoutSec = getInt(nt, "TimeoutSec")
	}
	if admin := section(raw, "admin"); admin != nil {
		out.AdminUsernames = getStringSlice(admin, "Usernames")
	}
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.TokenTTLHours == 0 {
		c.TokenTTLHours = 7 * 24
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.SiteName == "" {
		c.SiteName = "Web Dev Hub"
	}
	if c.FrontendURL == "" {
		c.FrontendURL = "http://localhost:5173"
	}
	if c.OAuthRedirectBase == "" {
		c.OAuthRedirectBase = "http://localhost:8080"
	}
	if c.StorageDriver == "" {
		c.StorageDriver = "gorm"
	}
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		if c.DBDriver == "postgres" {
			c.DBPort = "5432"
		} else {
			c.DBPort = "3306"
		}
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "webdevhub"
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.NotifyWorkers == 0 {
		c.NotifyWorkers = 4
	}
	if c.NotifyQueueSize == 0 {
		c.NotifyQueueSize = 256
	}
	if c.NotifyTimeoutSec == 0 {
		c.NotifyTimeoutSec = 20
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	var errs []error
	intVar := func(key string, dst *int) {
		if v := getEnv(key, ""); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid integer value %s for %s: %w", v, key, err))
				return
			}
			*dst = i
		}
	}
	strVar := func(key string, dst *string) {
		if v := getEnv(key, ""); v != "" {
			*dst = v
		}
	}
	boolVar := func(key string, dst *bool) {
		if v := getEnv(key, ""); v != "" {
			*dst = v == "true"
		}
	}

	strVar("APP_PORT", &c.AppPort)
	strVar("JWT_SECRET", &c.JWTSecret)
	intVar("TOKEN_TTL_HOURS", &c.TokenTTLHours)
	strVar("GIN_MODE", &c.GinMode)
	strVar("GIN_PATH", &c.GinPath)
	strVar("SITE_NAME", &c.SiteName)
	strVar("FRONTEND_URL", &c.FrontendURL)
	intVar("RATE_LIMIT_PER_MINUTE", &c.RateLimitPerMinute)
	c.AllowedOrigins = readListEnv("CORS_ALLOWED_ORIGINS", c.AllowedOrigins)

	strVar("STORAGE_DRIVER", &c.StorageDriver)
	strVar("DB_DRIVER", &c.DBDriver)
	strVar("DATABASE_URI", &c.DatabaseURI)
	strVar("DB_HOST", &c.DBHost)
	strVar("DB_PORT", &c.DBPort)
	strVar("DB_USER", &c.DBUser)
	strVar("DB_PASSWORD", &c.DBPassword)
	strVar("DB_NAME", &c.DBName)

	strVar("REDIS_HOST", &c.RedisHost)
	intVar("REDIS_PORT", &c.RedisPort)
	intVar("REDIS_DB", &c.RedisDB)
	strVar("REDIS_PASSWORD", &c.RedisPassword)

	strVar("SMTP_HOST", &c.SMTPHost)
	intVar("SMTP_PORT", &c.SMTPPort)
	strVar("SMTP_USERNAME", &c.SMTPUsername)
	strVar("SMTP_PASSWORD", &c.SMTPPassword)
	strVar("SMTP_FROM", &c.SMTPFrom)
	strVar("SMTP_FROM_NAME", &c.SMTPFromName)
	boolVar("SMTP_TLS", &c.SMTPTLS)

	strVar("LOG_LEVEL", &c.LogLevel)
	strVar("LOG_PATH", &c.LogPath)
	intVar("LOG_MAX_SIZE_MB", &c.LogMaxSizeMB)
	intVar("LOG_MAX_BACKUPS", &c.LogMaxBackups)
	intVar("LOG_MAX_AGE_DAYS", &c.LogMaxAgeDays)
	boolVar("LOG_COMPRESS", &c.LogCompress)

	strVar("GITHUB_CLIENT_ID", &c.GitHubClientID)
	strVar("GITHUB_CLIENT_SECRET", &c.GitHubClientSecret)
	strVar("GOOGLE_CLIENT_ID", &c.GoogleClientID)
	strVar("GOOGLE_CLIENT_SECRET", &c.GoogleClientSecret)
	strVar("OAUTH_REDIRECT_BASE_URL", &c.OAuthRedirectBase)

	strVar("ADMIN_EMAIL", &c.AdminEmail)
	boolVar("CONTACT_CAPTCHA_ENABLED", &c.ContactCaptchaEnabled)
	c.AdminUsernames = readListEnv("ADMIN_USERNAMES", c.AdminUsernames)

	intVar("NOTIFY_WORKERS", &c.NotifyWorkers)
	intVar("NOTIFY_QUEUE_SIZE", &c.NotifyQueueSize)
	intVar("NOTIFY_TIMEOUT_SEC", &c.NotifyTimeoutSec)

	return errors.Join(errs...)
}

func readListEnv(key string, defaults []string) []string {
	if raw := os.Getenv(key); raw != "" {
		return splitAndTrim(raw)
	}
	return defaults
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
