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

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Recognition RecognitionConfig
	Summary     SummaryConfig
	Reports     ReportsConfig
	Meals       MealsConfig
	Roles       RolesConfig
	Tasks       TasksConfig
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
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RecognitionConfig points at the external face-recognition service.
type RecognitionConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SummaryConfig points at the external summary/anomaly text service.
type SummaryConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ReportsConfig tunes rollup caching and export behaviour.
type ReportsConfig struct {
	CacheTTL   time.Duration
	ExportName string
}

// MealsConfig controls the QR meal pass issued for verification.
type MealsConfig struct {
	PassSecret string
	PassSize   int
}

// RolesConfig maps identities to roles for explicit role resolution.
// Format: "email=ROLE,email=ROLE". Identities not listed resolve to none.
type RolesConfig struct {
	Assignments map[string]string
}

// TasksConfig gates the demo task API.
type TasksConfig struct {
	Enabled bool
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

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
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Recognition = RecognitionConfig{
		BaseURL: v.GetString("RECOGNITION_BASE_URL"),
		Timeout: parseDuration(v.GetString("RECOGNITION_TIMEOUT"), 30*time.Second),
	}

	cfg.Summary = SummaryConfig{
		BaseURL: v.GetString("SUMMARY_BASE_URL"),
		Timeout: parseDuration(v.GetString("SUMMARY_TIMEOUT"), 60*time.Second),
	}

	cfg.Reports = ReportsConfig{
		CacheTTL:   parseDuration(v.GetString("REPORTS_CACHE_TTL"), 5*time.Minute),
		ExportName: v.GetString("REPORTS_EXPORT_NAME"),
	}

	passSize := v.GetInt("MEAL_PASS_SIZE")
	if passSize <= 0 {
		passSize = 256
	}
	cfg.Meals = MealsConfig{
		PassSecret: v.GetString("MEAL_PASS_SECRET"),
		PassSize:   passSize,
	}

	cfg.Roles = RolesConfig{Assignments: parseRoleAssignments(v.GetString("ROLE_ASSIGNMENTS"))}

	cfg.Tasks = TasksConfig{Enabled: v.GetBool("ENABLE_TASKS_API")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "absenin")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("RECOGNITION_BASE_URL", "http://localhost:9090")
	v.SetDefault("RECOGNITION_TIMEOUT", "30s")
	v.SetDefault("SUMMARY_BASE_URL", "http://localhost:9091")
	v.SetDefault("SUMMARY_TIMEOUT", "60s")

	v.SetDefault("REPORTS_CACHE_TTL", "5m")
	v.SetDefault("REPORTS_EXPORT_NAME", "attendance-report")

	v.SetDefault("MEAL_PASS_SECRET", "dev_meal_pass_secret")
	v.SetDefault("MEAL_PASS_SIZE", 256)

	v.SetDefault("ROLE_ASSIGNMENTS", "")
	v.SetDefault("ENABLE_TASKS_API", false)
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

func parseRoleAssignments(raw string) map[string]string {
	assignments := map[string]string{}
	for _, pair := range splitAndTrim(raw) {
		idx := strings.Index(pair, "=")
		if idx <= 0 || idx == len(pair)-1 {
			continue
		}
		identity := strings.ToLower(strings.TrimSpace(pair[:idx]))
		role := strings.ToUpper(strings.TrimSpace(pair[idx+1:]))
		assignments[identity] = role
	}
	return assignments
}
