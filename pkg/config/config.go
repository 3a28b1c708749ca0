package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Matching   MatchingConfig
	Completion CompletionConfig
	Timeslots  TimeslotConfig
	Events     EventsConfig
	Bootstrap  BootstrapConfig
	Export     ExportConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// MatchingConfig tunes the pairing engine.
type MatchingConfig struct {
	CacheEnabled bool
	PreviewTTL   time.Duration
	// MaxLevelGap rejects edges whose level difference exceeds it; 0 disables the cutoff.
	MaxLevelGap int
}

// CompletionConfig drives the periodic completion job.
type CompletionConfig struct {
	Enabled      bool
	Interval     time.Duration
	SimulatedNow string
}

// TimeslotConfig describes the weekly window catalog.
type TimeslotConfig struct {
	Days       []string
	PeriodEnds []string
	Location   string
}

// EventsConfig sizes the post-commit pairing event queue.
type EventsConfig struct {
	Workers int
	Retries int
}

// BootstrapConfig seeds the first administrator on an empty database.
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// ExportConfig locates stored roster snapshots and bounds their download links.
type ExportConfig struct {
	Dir     string
	LinkTTL time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxGap := v.GetInt("MATCHING_MAX_LEVEL_GAP")
	if maxGap < 0 {
		maxGap = 0
	}
	cfg.Matching = MatchingConfig{
		CacheEnabled: v.GetBool("ENABLE_MATCHING_CACHE"),
		PreviewTTL:   parseDuration(v.GetString("MATCHING_PREVIEW_TTL"), 5*time.Minute),
		MaxLevelGap:  maxGap,
	}

	cfg.Completion = CompletionConfig{
		Enabled:      v.GetBool("ENABLE_COMPLETION_SCHEDULER"),
		Interval:     parseDuration(v.GetString("COMPLETION_INTERVAL"), time.Minute),
		SimulatedNow: strings.TrimSpace(v.GetString("COMPLETION_SIMULATED_NOW")),
	}

	cfg.Timeslots = TimeslotConfig{
		Days:       splitAndTrim(v.GetString("TIMESLOT_DAYS")),
		PeriodEnds: splitAndTrim(v.GetString("TIMESLOT_PERIOD_ENDS")),
		Location:   v.GetString("TIMESLOT_LOCATION"),
	}

	cfg.Events = EventsConfig{
		Workers: v.GetInt("EVENT_WORKERS"),
		Retries: v.GetInt("EVENT_RETRIES"),
	}

	cfg.Bootstrap = BootstrapConfig{
		AdminEmail:    strings.TrimSpace(v.GetString("BOOTSTRAP_ADMIN_EMAIL")),
		AdminPassword: v.GetString("BOOTSTRAP_ADMIN_PASSWORD"),
		AdminName:     v.GetString("BOOTSTRAP_ADMIN_NAME"),
	}

	cfg.Export = ExportConfig{
		Dir:     v.GetString("EXPORT_DIR"),
		LinkTTL: parseDuration(v.GetString("EXPORT_LINK_TTL"), 24*time.Hour),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "peer_tutoring")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "peer-tutoring-api")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_MATCHING_CACHE", false)
	v.SetDefault("MATCHING_PREVIEW_TTL", "5m")
	v.SetDefault("MATCHING_MAX_LEVEL_GAP", 0)

	v.SetDefault("ENABLE_COMPLETION_SCHEDULER", true)
	v.SetDefault("COMPLETION_INTERVAL", "60s")
	v.SetDefault("COMPLETION_SIMULATED_NOW", "")

	v.SetDefault("TIMESLOT_DAYS", "0,1,2,3,4")
	v.SetDefault("TIMESLOT_PERIOD_ENDS", "08:45,09:35,10:25,11:15,12:05,13:35,14:25,15:15")
	v.SetDefault("TIMESLOT_LOCATION", "UTC")

	v.SetDefault("EVENT_WORKERS", 1)
	v.SetDefault("EVENT_RETRIES", 3)

	v.SetDefault("BOOTSTRAP_ADMIN_EMAIL", "")
	v.SetDefault("BOOTSTRAP_ADMIN_PASSWORD", "")
	v.SetDefault("BOOTSTRAP_ADMIN_NAME", "Administrator")

	v.SetDefault("EXPORT_DIR", "./exports")
	v.SetDefault("EXPORT_LINK_TTL", "24h")
}

// LoadLocation resolves the configured timeslot zone, falling back to UTC.
func (c TimeslotConfig) LoadLocation() *time.Location {
	if c.Location == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return time.UTC
	}
	return loc
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
