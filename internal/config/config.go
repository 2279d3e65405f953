package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultProtectedFolders are top-level folders used by mobile auto-upload.
// They are never archived as a unit; their contents still are.
var DefaultProtectedFolders = []string{
	"Camera",
	"Photos",
	"Documents",
	"Screenshots",
	"Videos",
	"Downloads",
	"DCIM",
	"Pictures",
	"Images",
	"SofortUpload",
}

type Config struct {
	ServerPort              string
	ServerReadHeaderTimeout time.Duration
	ServerWriteTimeout      time.Duration
	ServerIdleTimeout       time.Duration
	RequestTimeout          time.Duration
	DatabaseURL             string
	DBMaxConns              int32
	DBMinConns              int32
	DBConnectAttempts       int
	DBConnectBackoff        time.Duration
	StorageRoot             string
	JWTSecret               string
	CORSOrigins             []string
	RateLimitRPM            int
	RunRateLimitRPM         int
	LogLevel                string
	LogFormat               string

	ProtectedFolders     []string
	TagPageSize          int
	MoveMaxAttempts      int
	RetryBaseDelay       time.Duration
	SharedRetryBaseDelay time.Duration
	MaxDepth             int
	SchedulerInterval    time.Duration
	SchedulerTick        time.Duration
	ShareCacheSize       int
	ShareCacheTTL        time.Duration
}

// Load reads the environment and validates the settings every command needs.
func Load() (*Config, error) {
	cfg := Read()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Read parses the environment (and a .env file when present) without
// validating it.
func Read() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:              getEnv("SERVER_PORT", "8080"),
		ServerReadHeaderTimeout: getDuration("SERVER_READ_HEADER_TIMEOUT", 10*time.Second),
		ServerWriteTimeout:      getDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		ServerIdleTimeout:       getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		RequestTimeout:          getDuration("REQUEST_TIMEOUT", 30*time.Second),
		DatabaseURL:             strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxConns:              int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:              int32(getInt("DB_MIN_CONNS", 1)),
		DBConnectAttempts:       getInt("DB_CONNECT_ATTEMPTS", 5),
		DBConnectBackoff:        getDuration("DB_CONNECT_BACKOFF", 500*time.Millisecond),
		StorageRoot:             getEnv("STORAGE_ROOT", "./data"),
		JWTSecret:               strings.TrimSpace(os.Getenv("JWT_SECRET")),
		CORSOrigins:             splitCSV(getEnv("CORS_ORIGINS", "*")),
		RateLimitRPM:            getInt("RATE_LIMIT_RPM", 100),
		RunRateLimitRPM:         getInt("RUN_RATE_LIMIT_RPM", 10),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		LogFormat:               getEnv("LOG_FORMAT", "pretty"),

		ProtectedFolders:     MergeProtectedFolders(splitCSV(os.Getenv("ARCHIVE_PROTECTED_FOLDERS"))),
		TagPageSize:          getInt("ARCHIVE_TAG_PAGE_SIZE", 1000),
		MoveMaxAttempts:      getInt("ARCHIVE_MOVE_MAX_ATTEMPTS", 3),
		RetryBaseDelay:       getDuration("ARCHIVE_RETRY_BASE_DELAY", 2*time.Second),
		SharedRetryBaseDelay: getDuration("ARCHIVE_SHARED_RETRY_BASE_DELAY", 5*time.Second),
		MaxDepth:             getInt("ARCHIVE_MAX_DEPTH", 128),
		SchedulerInterval:    getDuration("SCHEDULER_INTERVAL", 24*time.Hour),
		SchedulerTick:        getDuration("SCHEDULER_TICK", time.Minute),
		ShareCacheSize:       getInt("SHARE_CACHE_SIZE", 4096),
		ShareCacheTTL:        getDuration("SHARE_CACHE_TTL", 5*time.Minute),
	}
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if strings.TrimSpace(c.StorageRoot) == "" {
		return fmt.Errorf("STORAGE_ROOT cannot be empty")
	}

	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS out of range")
	}

	if c.DBConnectAttempts <= 0 || c.DBConnectBackoff <= 0 {
		return fmt.Errorf("DB_CONNECT_ATTEMPTS and DB_CONNECT_BACKOFF must be positive")
	}

	if c.TagPageSize <= 0 {
		return fmt.Errorf("ARCHIVE_TAG_PAGE_SIZE must be positive")
	}

	if c.MoveMaxAttempts <= 0 {
		return fmt.Errorf("ARCHIVE_MOVE_MAX_ATTEMPTS must be positive")
	}

	if c.RetryBaseDelay <= 0 || c.SharedRetryBaseDelay <= 0 {
		return fmt.Errorf("archive retry delays must be positive")
	}

	if c.MaxDepth <= 0 {
		return fmt.Errorf("ARCHIVE_MAX_DEPTH must be positive")
	}

	if c.SchedulerInterval <= 0 || c.SchedulerTick <= 0 {
		return fmt.Errorf("SCHEDULER_INTERVAL and SCHEDULER_TICK must be positive")
	}

	if c.ShareCacheSize <= 0 {
		return fmt.Errorf("SHARE_CACHE_SIZE must be positive")
	}

	return nil
}

// ValidateHTTP checks the settings only the API server needs.
func (c *Config) ValidateHTTP() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT cannot be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}

	return nil
}

// MergeProtectedFolders appends configured names to the defaults, dropping
// duplicates and keeping first-seen order.
func MergeProtectedFolders(configured []string) []string {
	seen := make(map[string]struct{}, len(DefaultProtectedFolders)+len(configured))
	out := make([]string, 0, len(DefaultProtectedFolders)+len(configured))
	for _, name := range append(append([]string{}, DefaultProtectedFolders...), configured...) {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}

	return out
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	return v
}

func getInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return v
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}

	return out
}
