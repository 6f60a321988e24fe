package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	EventBus  EventBusConfig
	Auth      AuthConfig
	Seed      SeedConfig
	Geocode   GeocodeConfig
	Directory DirectoryConfig
	Session   SessionConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// RedisConfig holds settings for the document read cache.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	Enabled  bool
	TTL      time.Duration
}

// EventBusConfig holds configuration for KurrentDB (EventStoreDB).
type EventBusConfig struct {
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
	Enabled  bool
}

type AuthConfig struct {
	JWTSecret string
	// AdminDomain is the email domain suffix admins must carry,
	// e.g. "@healthlog.example".
	AdminDomain string
	// AdminGroups is the allow-list of directory groups granting admin.
	AdminGroups []string
}

// SeedConfig points at the first-run seed data sources.
type SeedConfig struct {
	HospitalsURL    string
	AmbulanceURL    string
	FetchTimeout    time.Duration
	LegacyDirectory LegacyDirectoryConfig
}

// LegacyDirectoryConfig holds settings for the legacy NHS hospital
// directory (SQL Server). Optional; the bundled defaults are used when
// it is unreachable.
type LegacyDirectoryConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

type GeocodeConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond int
	Enabled           bool
}

type DirectoryConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// SessionConfig tunes the per-user synchronization facade.
type SessionConfig struct {
	LoadTimeout  time.Duration
	SaveDebounce time.Duration
	IdleExpiry   time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "healthlog"),
			Password: getEnv("DB_PASSWORD", "healthlog"),
			Database: getEnv("DB_NAME", "healthlog"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Username: getEnv("REDIS_USERNAME", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			TTL:      getEnvDuration("REDIS_DOC_TTL", 5*time.Minute),
		},
		EventBus: EventBusConfig{
			Host:     getEnv("KURRENTDB_HOST", "localhost"),
			Port:     getEnvInt("KURRENTDB_PORT", 2113),
			Insecure: getEnvBool("KURRENTDB_INSECURE", true),
			Username: getEnv("KURRENTDB_USERNAME", ""),
			Password: getEnv("KURRENTDB_PASSWORD", ""),
			Enabled:  getEnvBool("KURRENTDB_ENABLED", true),
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			AdminDomain: getEnv("ADMIN_EMAIL_DOMAIN", "@healthlog.example"),
			AdminGroups: getEnvSlice("ADMIN_GROUPS", []string{"healthlog-admins"}),
		},
		Seed: SeedConfig{
			HospitalsURL: getEnv("SEED_HOSPITALS_URL", ""),
			AmbulanceURL: getEnv("SEED_AMBULANCE_URL", ""),
			FetchTimeout: getEnvDuration("SEED_FETCH_TIMEOUT", 10*time.Second),
			LegacyDirectory: LegacyDirectoryConfig{
				Enabled:  getEnvBool("LEGACY_DIR_ENABLED", false),
				Host:     getEnv("LEGACY_DIR_HOST", "localhost"),
				Port:     getEnvInt("LEGACY_DIR_PORT", 1433),
				User:     getEnv("LEGACY_DIR_USER", ""),
				Password: getEnv("LEGACY_DIR_PASSWORD", ""),
				Database: getEnv("LEGACY_DIR_DB", "nhs_directory"),
			},
		},
		Geocode: GeocodeConfig{
			BaseURL:           getEnv("GEOCODE_URL", "https://nominatim.openstreetmap.org"),
			Timeout:           getEnvDuration("GEOCODE_TIMEOUT", 10*time.Second),
			RequestsPerSecond: getEnvInt("GEOCODE_RPS", 1),
			Enabled:           getEnvBool("GEOCODE_ENABLED", true),
		},
		Directory: DirectoryConfig{
			BaseURL: getEnv("DIRECTORY_URL", "http://localhost:8280"),
			APIKey:  getEnv("DIRECTORY_API_KEY", ""),
			Timeout: getEnvDuration("DIRECTORY_TIMEOUT", 10*time.Second),
		},
		Session: SessionConfig{
			LoadTimeout:  getEnvDuration("SESSION_LOAD_TIMEOUT", 10*time.Second),
			SaveDebounce: getEnvDuration("SESSION_SAVE_DEBOUNCE", 500*time.Millisecond),
			IdleExpiry:   getEnvDuration("SESSION_IDLE_EXPIRY", 30*time.Minute),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		fmt.Fprintf(os.Stderr, "invalid duration for %s=%q, using default %s\n", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
