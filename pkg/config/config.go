package config

import (
	"errors"
	"io/fs"
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

	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Scheduler SchedulerConfig
	Inputs    InputsConfig
	Exports   ExportsConfig
}

type DatabaseConfig struct {
	Enabled      bool
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SchedulerConfig holds the default grid and engine options applied when a request leaves them unset.
type SchedulerConfig struct {
	Days            []string
	StartHour       int
	EndHour         int
	RespectCapacity bool
	AnchorDate      string
	BorrowedRoomID  string
	ResultTTL       time.Duration
	CacheTTL        time.Duration
	CacheResults    bool
	PersistRuns     bool
}

// InputsConfig locates the CSV inputs and output directory of the CLI.
type InputsConfig struct {
	CoursesFile      string
	RoomsFile        string
	DepartmentFilter string
	OutDir           string
}

// ExportsConfig configures artifact rendering and signed downloads.
type ExportsConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	WorkerConcurrency int
	WorkerRetries     int
	RenderPDF         bool
	PDFFontFile       string
}

// Load reads .env and the process environment.
func Load() (*Config, error) {
	return LoadFrom(viper.New(), ".env")
}

// LoadFrom builds a Config from v, which callers may have pre-bound to command-line flags.
// A missing file is not an error.
func LoadFrom(v *viper.Viper, file string) (*Config, error) {
	_ = godotenv.Load()

	if file == "" {
		file = ".env"
	}
	v.SetConfigFile(file)
	if strings.HasSuffix(file, ".env") {
		v.SetConfigType("env")
	}
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Enabled:      v.GetBool("ENABLE_DATABASE"),
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
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Scheduler = SchedulerConfig{
		Days:            splitAndTrim(v.GetString("SCHEDULER_DAYS")),
		StartHour:       v.GetInt("SCHEDULER_START_HOUR"),
		EndHour:         v.GetInt("SCHEDULER_END_HOUR"),
		RespectCapacity: v.GetBool("SCHEDULER_RESPECT_CAPACITY"),
		AnchorDate:      v.GetString("SCHEDULER_ANCHOR_DATE"),
		BorrowedRoomID:  v.GetString("SCHEDULER_BORROWED_ROOM_ID"),
		ResultTTL:       parseDuration(v.GetString("SCHEDULER_RESULT_TTL"), 30*time.Minute),
		CacheTTL:        parseDuration(v.GetString("SCHEDULER_CACHE_TTL"), 10*time.Minute),
		CacheResults:    v.GetBool("SCHEDULER_CACHE_RESULTS"),
		PersistRuns:     v.GetBool("SCHEDULER_PERSIST_RUNS"),
	}

	cfg.Inputs = InputsConfig{
		CoursesFile:      v.GetString("COURSES_FILE"),
		RoomsFile:        v.GetString("ROOMS_FILE"),
		DepartmentFilter: v.GetString("DEPARTMENT_FILTER"),
		OutDir:           v.GetString("OUT_DIR"),
	}

	cfg.Exports = ExportsConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
		RenderPDF:         v.GetBool("EXPORTS_RENDER_PDF"),
		PDFFontFile:       v.GetString("EXPORTS_PDF_FONT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("ENABLE_DATABASE", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SCHEDULER_DAYS", "Mon,Tue,Wed,Thu,Fri")
	v.SetDefault("SCHEDULER_START_HOUR", 9)
	v.SetDefault("SCHEDULER_END_HOUR", 21)
	v.SetDefault("SCHEDULER_RESPECT_CAPACITY", false)
	v.SetDefault("SCHEDULER_ANCHOR_DATE", "2025-11-03")
	v.SetDefault("SCHEDULER_BORROWED_ROOM_ID", "외부대여-타강의실1")
	v.SetDefault("SCHEDULER_RESULT_TTL", "30m")
	v.SetDefault("SCHEDULER_CACHE_TTL", "10m")
	v.SetDefault("SCHEDULER_CACHE_RESULTS", true)
	v.SetDefault("SCHEDULER_PERSIST_RUNS", false)

	v.SetDefault("COURSES_FILE", "courses.csv")
	v.SetDefault("ROOMS_FILE", "rooms.csv")
	v.SetDefault("DEPARTMENT_FILTER", "")
	v.SetDefault("OUT_DIR", "out")

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)
	v.SetDefault("EXPORTS_RENDER_PDF", true)
	v.SetDefault("EXPORTS_PDF_FONT", "")
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
