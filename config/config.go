package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via config.json or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	RateLimitPerMinute int
	AllowedOrigins     []string
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	// Redis for caching, memo and abuse guards
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
	// Admin capability
	AdminSecretHash        string
	AdminSessionTTLMinutes int
	// Submission hardening
	SubmitCaptchaEnabled bool
	SubmitCooldownSec    int
	SubmitMaxPerIPPerDay int
	ListCacheTTLSeconds  int
	ViewDedupeMinutes    int
	// Media resolution
	MediaVideoBase      string
	MediaImageBase      string
	MediaForms          []string
	MediaProbeTimeoutMs int
	MediaMemoTTLSeconds int
	// Migration and maintenance
	MigrateWorkers           int
	ReconcileIntervalMinutes int
	// Notice bar configuration
	NoticeTitle string
	NoticeHTML  string
}

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// a local .env only fills variables that are not already set
	_ = godotenv.Load()

	// Precedence: config/config.json -> defaults -> environment variable overrides
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Printf("ignoring invalid config/config.json: %v", err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// Set replaces the cached configuration. Zero values are filled with defaults.
func Set(c AppConfig) {
	applyDefaults(&c)
	cfg = c
	loaded = true
}

// loadJSONConfig reads grouped JSON sections into out if the file is present.
// Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var raw map[string]any
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}
	applySections(raw, out)
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
	arr, ok := m[key].([]any)
	if !ok {
		return nil
	}
	res := make([]string, 0, len(arr))
	for _, it := range arr {
		if s, ok := it.(string); ok {
			res = append(res, s)
		}
	}
	return res
}

func applySections(raw map[string]any, out *AppConfig) {
	if app, ok := raw["app"].(map[string]any); ok {
		out.AppPort = getString(app, "AppPort")
		out.JWTSecret = getString(app, "JWTSecret")
		if v := getInt(app, "RateLimitPerMinute"); v != 0 {
			out.RateLimitPerMinute = v
		}
		if list := getStringSlice(app, "AllowedOrigins"); len(list) > 0 {
			out.AllowedOrigins = list
		}
	}

	if g, ok := raw["gin"].(map[string]any); ok {
		if v := getString(g, "Mode"); v != "" {
			out.GinMode = v
		}
		if v := getString(g, "LogPath"); v != "" {
			out.GinPath = v
		}
	}

	if dbs, ok := raw["database"].(map[string]any); ok {
		out.DBDriver = getString(dbs, "Driver")
		out.DatabaseURI = getString(dbs, "DatabaseURI")
		out.DBHost = getString(dbs, "DBHost")
		out.DBPort = getString(dbs, "DBPort")
		out.DBUser = getString(dbs, "DBUser")
		out.DBPassword = getString(dbs, "DBPassword")
		out.DBName = getString(dbs, "DBName")
	}

	if rds, ok := raw["redis"].(map[string]any); ok {
		out.RedisHost = getString(rds, "RedisHost")
		if v := getInt(rds, "RedisPort"); v != 0 {
			out.RedisPort = v
		}
		if v := getInt(rds, "RedisDB"); v != 0 {
			out.RedisDB = v
		}
		out.RedisPassword = getString(rds, "RedisPassword")
	}

	if lg, ok := raw["log"].(map[string]any); ok {
		if v := getString(lg, "Level"); v != "" {
			out.LogLevel = v
		}
		if v := getString(lg, "Path"); v != "" {
			out.LogPath = v
		}
		if v := getString(lg, "GinPath"); v != "" {
			out.GinPath = v
		}
		if v := getInt(lg, "MaxSizeMB"); v != 0 {
			out.LogMaxSizeMB = v
		}
		if v := getInt(lg, "MaxBackups"); v != 0 {
			out.LogMaxBackups = v
		}
		if v := getInt(lg, "MaxAgeDays"); v != 0 {
			out.LogMaxAgeDays = v
		}
		out.LogCompress = getBool(lg, "Compress")
	}

	if adm, ok := raw["admin"].(map[string]any); ok {
		out.AdminSecretHash = getString(adm, "SecretHash")
		if v := getInt(adm, "SessionTTLMinutes"); v != 0 {
			out.AdminSessionTTLMinutes = v
		}
	}

	if sb, ok := raw["submit"].(map[string]any); ok {
		out.SubmitCaptchaEnabled = getBool(sb, "CaptchaEnabled")
		if v := getInt(sb, "CooldownSec"); v != 0 {
			out.SubmitCooldownSec = v
		}
		if v := getInt(sb, "MaxPerIPPerDay"); v != 0 {
			out.SubmitMaxPerIPPerDay = v
		}
		if v := getInt(sb, "ListCacheTTLSeconds"); v != 0 {
			out.ListCacheTTLSeconds = v
		}
		if v := getInt(sb, "ViewDedupeMinutes"); v != 0 {
			out.ViewDedupeMinutes = v
		}
	}

	if md, ok := raw["media"].(map[string]any); ok {
		out.MediaVideoBase = getString(md, "VideoBase")
		out.MediaImageBase = getString(md, "ImageBase")
		if list := getStringSlice(md, "Forms"); len(list) > 0 {
			out.MediaForms = list
		}
		if v := getInt(md, "ProbeTimeoutMs"); v != 0 {
			out.MediaProbeTimeoutMs = v
		}
		if v := getInt(md, "MemoTTLSeconds"); v != 0 {
			out.MediaMemoTTLSeconds = v
		}
	}

	if mg, ok := raw["migrate"].(map[string]any); ok {
		if v := getInt(mg, "Workers"); v != 0 {
			out.MigrateWorkers = v
		}
		if v := getInt(mg, "ReconcileIntervalMinutes"); v != 0 {
			out.ReconcileIntervalMinutes = v
		}
	}

	if nt, ok := raw["notice"].(map[string]any); ok {
		out.NoticeTitle = getString(nt, "Title")
		out.NoticeHTML = getString(nt, "HTML")
	}
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
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
	if c.DBDriver == "" {
		c.DBDriver = "mysql"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		switch c.DBDriver {
		case "postgres":
			c.DBPort = "5432"
		default:
			c.DBPort = "3306"
		}
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "grokshare"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
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
	if c.AdminSessionTTLMinutes == 0 {
		c.AdminSessionTTLMinutes = 12 * 60
	}
	if c.SubmitCooldownSec == 0 {
		c.SubmitCooldownSec = 10
	}
	if c.SubmitMaxPerIPPerDay == 0 {
		c.SubmitMaxPerIPPerDay = 100
	}
	if c.ListCacheTTLSeconds == 0 {
		c.ListCacheTTLSeconds = 60
	}
	if c.ViewDedupeMinutes == 0 {
		c.ViewDedupeMinutes = 30
	}
	if c.MediaVideoBase == "" {
		c.MediaVideoBase = "https://imagine-public.x.ai/imagine-public/share-videos"
	}
	if c.MediaImageBase == "" {
		c.MediaImageBase = "https://imagine-public.x.ai/imagine-public/share-images"
	}
	if len(c.MediaForms) == 0 {
		c.MediaForms = []string{
			"video=" + c.MediaVideoBase + "/{id}.mp4",
			"poster=" + c.MediaVideoBase + "/{id}_thumbnail.jpg",
			"poster=" + c.MediaVideoBase + "/{id}.png",
			"image=" + c.MediaImageBase + "/{id}.jpg",
		}
	}
	if c.MediaProbeTimeoutMs == 0 {
		c.MediaProbeTimeoutMs = 3000
	}
	if c.MediaMemoTTLSeconds == 0 {
		c.MediaMemoTTLSeconds = 24 * 3600
	}
	if c.MigrateWorkers == 0 {
		c.MigrateWorkers = 1
	}
	if c.ReconcileIntervalMinutes == 0 {
		c.ReconcileIntervalMinutes = 30
	}
	if c.NoticeTitle == "" {
		c.NoticeTitle = "Notice"
	}
	if c.NoticeHTML == "" {
		c.NoticeHTML = "Share your Grok Imagine creations. Links only, media stays on the original host."
	}
}

type envBinding struct {
	key   string
	apply func(c *AppConfig, v string)
}

func envString(dst func(*AppConfig) *string) func(*AppConfig, string) {
	return func(c *AppConfig, v string) { *dst(c) = v }
}

func envInt(dst func(*AppConfig) *int) func(*AppConfig, string) {
	return func(c *AppConfig, v string) { *dst(c) = mustParseInt(v) }
}

func envBool(dst func(*AppConfig) *bool) func(*AppConfig, string) {
	return func(c *AppConfig, v string) { *dst(c) = v == "true" }
}

func envList(dst func(*AppConfig) *[]string) func(*AppConfig, string) {
	return func(c *AppConfig, v string) {
		if list := splitAndTrim(v); len(list) > 0 {
			*dst(c) = list
		}
	}
}

var envBindings = []envBinding{
	{"APP_PORT", envString(func(c *AppConfig) *string { return &c.AppPort })},
	{"JWT_SECRET", envString(func(c *AppConfig) *string { return &c.JWTSecret })},
	{"GIN_MODE", envString(func(c *AppConfig) *string { return &c.GinMode })},
	{"GIN_PATH", envString(func(c *AppConfig) *string { return &c.GinPath })},
	{"RATE_LIMIT_PER_MINUTE", envInt(func(c *AppConfig) *int { return &c.RateLimitPerMinute })},
	{"CORS_ALLOWED_ORIGINS", envList(func(c *AppConfig) *[]string { return &c.AllowedOrigins })},

	{"DB_DRIVER", envString(func(c *AppConfig) *string { return &c.DBDriver })},
	{"DATABASE_URI", envString(func(c *AppConfig) *string { return &c.DatabaseURI })},
	{"DB_HOST", envString(func(c *AppConfig) *string { return &c.DBHost })},
	{"DB_PORT", envString(func(c *AppConfig) *string { return &c.DBPort })},
	{"DB_USER", envString(func(c *AppConfig) *string { return &c.DBUser })},
	{"DB_PASSWORD", envString(func(c *AppConfig) *string { return &c.DBPassword })},
	{"DB_NAME", envString(func(c *AppConfig) *string { return &c.DBName })},

	{"REDIS_HOST", envString(func(c *AppConfig) *string { return &c.RedisHost })},
	{"REDIS_PORT", envInt(func(c *AppConfig) *int { return &c.RedisPort })},
	{"REDIS_DB", envInt(func(c *AppConfig) *int { return &c.RedisDB })},
	{"REDIS_PASSWORD", envString(func(c *AppConfig) *string { return &c.RedisPassword })},

	{"LOG_LEVEL", envString(func(c *AppConfig) *string { return &c.LogLevel })},
	{"LOG_PATH", envString(func(c *AppConfig) *string { return &c.LogPath })},
	{"LOG_MAX_SIZE_MB", envInt(func(c *AppConfig) *int { return &c.LogMaxSizeMB })},
	{"LOG_MAX_BACKUPS", envInt(func(c *AppConfig) *int { return &c.LogMaxBackups })},
	{"LOG_MAX_AGE_DAYS", envInt(func(c *AppConfig) *int { return &c.LogMaxAgeDays })},
	{"LOG_COMPRESS", envBool(func(c *AppConfig) *bool { return &c.LogCompress })},

	{"ADMIN_SECRET_HASH", envString(func(c *AppConfig) *string { return &c.AdminSecretHash })},
	{"ADMIN_SESSION_TTL_MINUTES", envInt(func(c *AppConfig) *int { return &c.AdminSessionTTLMinutes })},

	{"SUBMIT_CAPTCHA_ENABLED", envBool(func(c *AppConfig) *bool { return &c.SubmitCaptchaEnabled })},
	{"SUBMIT_COOLDOWN_SEC", envInt(func(c *AppConfig) *int { return &c.SubmitCooldownSec })},
	{"SUBMIT_MAX_PER_IP_PER_DAY", envInt(func(c *AppConfig) *int { return &c.SubmitMaxPerIPPerDay })},
	{"LIST_CACHE_TTL_SECONDS", envInt(func(c *AppConfig) *int { return &c.ListCacheTTLSeconds })},
	{"VIEW_DEDUPE_MINUTES", envInt(func(c *AppConfig) *int { return &c.ViewDedupeMinutes })},

	// MEDIA_FORMS replaces the whole candidate list: "video=https://.../{id}.mp4,poster=..."
	{"MEDIA_FORMS", envList(func(c *AppConfig) *[]string { return &c.MediaForms })},
	{"MEDIA_PROBE_TIMEOUT_MS", envInt(func(c *AppConfig) *int { return &c.MediaProbeTimeoutMs })},
	{"MEDIA_MEMO_TTL_SECONDS", envInt(func(c *AppConfig) *int { return &c.MediaMemoTTLSeconds })},

	{"MIGRATE_WORKERS", envInt(func(c *AppConfig) *int { return &c.MigrateWorkers })},
	{"RECONCILE_INTERVAL_MINUTES", envInt(func(c *AppConfig) *int { return &c.ReconcileIntervalMinutes })},

	{"NOTICE_TITLE", envString(func(c *AppConfig) *string { return &c.NoticeTitle })},
	{"NOTICE_HTML", envString(func(c *AppConfig) *string { return &c.NoticeHTML })},
}

// applyEnvOverrides applies every bound environment variable that is set and non-empty.
func applyEnvOverrides(c *AppConfig) {
	for _, b := range envBindings {
		if v := os.Getenv(b.key); v != "" {
			b.apply(c, v)
		}
	}
}

func mustParseInt(val string) int {
	i, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		log.Fatalf("invalid integer value %s: %v", val, err)
	}
	return i
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
