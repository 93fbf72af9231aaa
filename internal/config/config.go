package config

import (
	"errors"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Placeholder secrets, accepted only in development.
const (
	defaultJWTSecret     = "change-me-in-production"
	defaultSessionSecret = "your-secret-key-change-in-production"
)

type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Database   DatabaseConfig
	DynamoDB   DynamoDBConfig
	Storage    StorageConfig
	MailerSend MailerSendConfig
	Auth       AuthConfig
	CORS       CORSConfig
	Tickets    TicketsConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	Env            string
	RequestTimeout time.Duration
}

// StoreConfig selects the persistence backend: "postgres", "sqlite" or "dynamodb".
type StoreConfig struct {
	Backend string
}

type DatabaseConfig struct {
	URL        string // Full database URL
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	SQLitePath string
}

type DynamoDBConfig struct {
	TicketsTable string
	UsersTable   string
	Region       string
	Endpoint     string
}

type StorageConfig struct {
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3PublicURL       string
	S3AccessKeyID     string
	S3SecretAccessKey string
	LocalPath         string
	LocalURL          string
}

type MailerSendConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

type AuthConfig struct {
	JWTSecret        string
	JWTTTL           time.Duration
	SessionSecret    string
	LoginMaxAttempts int
	LoginWindow      time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type TicketsConfig struct {
	// Cutoffs maps a category to a "HH:MM" time of day.
	Cutoffs  map[string]string
	Timezone string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	// Load .env files if they exist (try .env.local first, then .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	config := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Host:           getEnv("HOST", "localhost"),
			Env:            getEnv("ENV", "development"),
			RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(getEnv("STORE_BACKEND", "sqlite")),
		},
		Database: parseDatabaseConfig(),
		DynamoDB: DynamoDBConfig{
			TicketsTable: getEnv("DYNAMODB_TICKETS_TABLE", "assistants"),
			UsersTable:   getEnv("DYNAMODB_USERS_TABLE", "users"),
			Region:       getEnv("AWS_REGION", "us-east-1"),
			Endpoint:     getEnv("DYNAMODB_ENDPOINT", ""),
		},
		Storage: StorageConfig{
			S3Bucket:          getEnv("S3_BUCKET", ""),
			S3Region:          getEnv("S3_REGION", getEnv("AWS_REGION", "us-east-1")),
			S3Endpoint:        getEnv("S3_ENDPOINT", ""),
			S3PublicURL:       getEnv("S3_PUBLIC_URL", ""),
			S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			LocalPath:         getEnv("LOCAL_STORAGE_PATH", "./uploads"),
			LocalURL:          getEnv("LOCAL_STORAGE_URL", "http://localhost:8080"),
		},
		MailerSend: MailerSendConfig{
			APIKey:    getEnv("MAILERSEND_API_KEY", ""),
			FromEmail: getEnv("MAILERSEND_FROM_EMAIL", "tickets@ticketer.local"),
			FromName:  getEnv("MAILERSEND_FROM_NAME", "Ticketer"),
		},
		Auth: AuthConfig{
			JWTSecret:        getEnv("JWT_SECRET", defaultJWTSecret),
			JWTTTL:           getEnvAsDuration("JWT_TTL", 8*time.Hour),
			SessionSecret:    getEnv("SESSION_SECRET", defaultSessionSecret),
			LoginMaxAttempts: getEnvAsInt("LOGIN_MAX_ATTEMPTS", 5),
			LoginWindow:      getEnvAsDuration("LOGIN_WINDOW", 15*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Tickets: TicketsConfig{
			Cutoffs:  parseCutoffs(getEnv("TICKET_CUTOFFS", "discounted-early=23:00")),
			Timezone: getEnv("EVENT_TIMEZONE", "UTC"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", ""),
		},
	}

	if !config.IsDevelopment() {
		if config.Auth.JWTSecret == defaultJWTSecret {
			return nil, errors.New("JWT_SECRET must be set outside development")
		}
		if config.Auth.SessionSecret == defaultSessionSecret {
			return nil, errors.New("SESSION_SECRET must be set outside development")
		}
	}

	return config, nil
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

func parseDatabaseConfig() DatabaseConfig {
	sqlitePath := getEnv("SQLITE_PATH", "ticketer.db")

	// Check if DATABASE_URL is provided
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL != "" {
		config := parseDatabaseURL(databaseURL)
		config.SQLitePath = sqlitePath
		return config
	}

	// Fall back to individual environment variables
	return DatabaseConfig{
		Host:       getEnv("DB_HOST", "localhost"),
		Port:       getEnvAsInt("DB_PORT", 5432),
		User:       getEnv("DB_USER", "postgres"),
		Password:   getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "ticketer"),
		SSLMode:    getEnv("DB_SSLMODE", "disable"),
		SQLitePath: sqlitePath,
	}
}

func parseDatabaseURL(databaseURL string) DatabaseConfig {
	config := DatabaseConfig{
		URL: databaseURL,
	}

	u, err := url.Parse(databaseURL)
	if err != nil {
		// If parsing fails, return the URL as-is
		return config
	}

	config.Host = u.Hostname()
	if u.Port() != "" {
		config.Port, _ = strconv.Atoi(u.Port())
	} else {
		config.Port = 5432
	}

	if u.User != nil {
		config.User = u.User.Username()
		config.Password, _ = u.User.Password()
	}

	config.DBName = strings.TrimPrefix(u.Path, "/")

	config.SSLMode = u.Query().Get("sslmode")
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	return config
}

// parseCutoffs parses "category=HH:MM,category=HH:MM".
func parseCutoffs(value string) map[string]string {
	cutoffs := make(map[string]string)
	for _, pair := range strings.Split(value, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		category, at, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		cutoffs[strings.TrimSpace(category)] = strings.TrimSpace(at)
	}
	return cutoffs
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
