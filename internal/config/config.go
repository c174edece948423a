package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Linking   LinkingConfig
	Transport TransportConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName      string
	SSLMode     string
	AutoMigrate bool
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	PASSWORD string
}

// JWTConfig holds the shared secret used to verify service tokens.
// An empty secret disables service authentication.
type JWTConfig struct {
	Secret       string
	ServiceTTL   time.Duration
	RequiredAuth bool
}

// LinkingConfig holds verification code settings
type LinkingConfig struct {
	CodeTTL       time.Duration
	SweepInterval time.Duration
	SweepBatch    int
	RateLimit     int
	RateWindow    time.Duration
}

// TransportConfig holds realtime transport settings
type TransportConfig struct {
	LinkWorkers       int
	TelemetryWorkers  int
	MaxMessageBytes   int64
	SendQueueSize     int
	MessagesPerSecond float64
	Burst             int
	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	secret := getEnv("JWT_SECRET", "")
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", getEnv("PORT", "3000")),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "nexus"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
		},
		JWT: JWTConfig{
			Secret:       secret,
			ServiceTTL:   getEnvAsDuration("JWT_SERVICE_TTL", 365*24*time.Hour),
			RequiredAuth: secret != "",
		},
		Linking: LinkingConfig{
			CodeTTL:       getEnvAsDuration("LINK_CODE_TTL", 5*time.Minute),
			SweepInterval: getEnvAsDuration("LINK_SWEEP_INTERVAL", 60*time.Second),
			SweepBatch:    getEnvAsInt("LINK_SWEEP_BATCH", 100),
			RateLimit:     getEnvAsInt("LINK_RATE_LIMIT", 3),
			RateWindow:    getEnvAsDuration("LINK_RATE_WINDOW", 30*time.Second),
		},
		Transport: TransportConfig{
			LinkWorkers:       getEnvAsInt("WS_LINK_WORKERS", 64),
			TelemetryWorkers:  getEnvAsInt("WS_TELEMETRY_WORKERS", 32),
			MaxMessageBytes:   int64(getEnvAsInt("WS_MAX_MESSAGE_BYTES", 64*1024)),
			SendQueueSize:     getEnvAsInt("WS_SEND_QUEUE_SIZE", 256),
			MessagesPerSecond: getEnvAsFloat("WS_MESSAGES_PER_SECOND", 50),
			Burst:             getEnvAsInt("WS_BURST", 100),
			PingInterval:      getEnvAsDuration("WS_PING_INTERVAL", 30*time.Second),
			ReadTimeout:       getEnvAsDuration("WS_READ_TIMEOUT", 90*time.Second),
			WriteTimeout:      getEnvAsDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
