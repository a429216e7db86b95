package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/phillip/contribution-pipeline-go/broadcast"
	"github.com/phillip/contribution-pipeline-go/services"
	"github.com/phillip/contribution-pipeline-go/store"
	"github.com/phillip/contribution-pipeline-go/utils"
)

// Config carries the environment settings plus the runtime handles built from
// them at startup. Controllers receive it the same way they once received the
// mongo client.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	Auth     AuthConfig
	HTTP     HTTPConfig
	Export   ExportConfig
	Kafka    KafkaConfig
	WhatsApp WhatsAppConfig
	Receipts CloudinaryConfig

	// runtime handles, set by the serve command
	Log      *zerolog.Logger
	DB       store.Store
	Hub      *broadcast.Hub
	Ingestor *services.Ingestor
	Uploader utils.ReceiptUploader
}

type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// StoreConfig selects the storage backend.
type StoreConfig struct {
	Driver     string // mongo or sqlite
	MongoURI   string
	DBName     string
	SQLitePath string
	// SeedCampaign creates an active default campaign on an empty store.
	SeedCampaign bool
}

type AuthConfig struct {
	JWTSecret     string
	AdminUsername string
	AdminPassword string
	TokenTTL      time.Duration
}

type HTTPConfig struct {
	CORSOrigins []string
	Timeout     time.Duration // bound on every outbound call
}

// ExportConfig bounds the retries of each exporter send. One attempt means
// fire once.
type ExportConfig struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

type KafkaConfig struct {
	Brokers []string
}

type WhatsAppConfig struct {
	VerifyToken string
	GraphURL    string
}

// CloudinaryConfig enables receipt uploads when all three credentials are set.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Enabled reports whether receipt uploads are configured.
func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// Load reads environment variables (and a .env file when present), applies
// defaults and reports every invalid or missing value in one error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}
	cfg := &Config{}

	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.Port = ldr.getInt("PORT", 8080, false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Store.Driver = strings.ToLower(ldr.getString("STORE_DRIVER", DriverMongo, false))
	switch cfg.Store.Driver {
	case DriverMongo:
		cfg.Store.MongoURI = ldr.getString("MONGO_URI", "", true)
	case DriverSQLite:
		cfg.Store.SQLitePath = ldr.getString("SQLITE_PATH", "contributions.db", false)
	default:
		ldr.addError(fmt.Sprintf("STORE_DRIVER must be %q or %q", DriverMongo, DriverSQLite))
	}
	cfg.Store.DBName = ldr.getString("DB_NAME", "contributions", false)
	cfg.Store.SeedCampaign = ldr.getBool("SEED_DEFAULT_CAMPAIGN", false, false)

	cfg.Auth.JWTSecret = ldr.getString("JWT_SECRET", "", true)
	cfg.Auth.AdminUsername = ldr.getString("ADMIN_USERNAME", "admin", false)
	cfg.Auth.AdminPassword = ldr.getString("ADMIN_PASSWORD", "", true)
	cfg.Auth.TokenTTL = ldr.getDuration("TOKEN_TTL", 24*time.Hour, false)

	cfg.HTTP.CORSOrigins = ldr.getStringSlice("CORS_ORIGINS", false)
	if len(cfg.HTTP.CORSOrigins) == 0 {
		cfg.HTTP.CORSOrigins = []string{"*"}
	}
	cfg.HTTP.Timeout = ldr.getDuration("HTTP_TIMEOUT", 10*time.Second, false)

	cfg.Export.MaxAttempts = ldr.getInt("EXPORT_MAX_ATTEMPTS", 1, false)
	if cfg.Export.MaxAttempts < 1 {
		ldr.addError("EXPORT_MAX_ATTEMPTS must be at least 1")
	}
	cfg.Export.RetryDelay = ldr.getDuration("EXPORT_RETRY_DELAY", 2*time.Second, false)

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BROKERS", false)

	cfg.WhatsApp.VerifyToken = ldr.getString("WHATSAPP_VERIFY_TOKEN", "", false)
	cfg.WhatsApp.GraphURL = ldr.getString("WHATSAPP_GRAPH_URL", utils.DefaultGraphURL, false)

	cfg.Receipts.CloudName = ldr.getString("CLOUDINARY_CLOUD_NAME", "", false)
	cfg.Receipts.APIKey = ldr.getString("CLOUDINARY_API_KEY", "", false)
	cfg.Receipts.APISecret = ldr.getString("CLOUDINARY_API_SECRET", "", false)
	cfg.Receipts.Folder = ldr.getString("CLOUDINARY_FOLDER", "receipts", false)

	if err := ldr.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.App.Env, "development") || strings.EqualFold(c.App.Env, "dev")
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

// lookup returns the trimmed value of key, recording an error when a required
// key is unset or blank.
func (l *envLoader) lookup(key string, required bool) (string, bool) {
	val, ok := os.LookupEnv(key)
	val = strings.TrimSpace(val)
	if !ok || val == "" {
		if required {
			l.addError(fmt.Sprintf("%s is required", key))
		}
		return "", false
	}
	return val, true
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := l.lookup(key, required); ok {
		return val
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	val, ok := l.lookup(key, required)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid integer", key))
		return def
	}
	return i
}

func (l *envLoader) getBool(key string, def bool, required bool) bool {
	val, ok := l.lookup(key, required)
	if !ok {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		l.addError(fmt.Sprintf("%s must be a valid boolean", key))
		return def
	}
	return parsed
}

func (l *envLoader) getDuration(key string, def time.Duration, required bool) time.Duration {
	val, ok := l.lookup(key, required)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil || d < 0 {
		l.addError(fmt.Sprintf("%s must be a valid duration", key))
		return def
	}
	return d
}

func (l *envLoader) getStringSlice(key string, required bool) []string {
	raw := l.getString(key, "", required)
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
