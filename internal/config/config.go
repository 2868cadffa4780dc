package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Relay      RelayConfig
	Consumer   ConsumerConfig
	DeadLetter DeadLetterConfig
	S3         S3Config
}

type ServerConfig struct {
	Port        string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RelayConfig tunes the outbox relay workers.
type RelayConfig struct {
	PollInterval  time.Duration
	SweepInterval time.Duration
	BatchSize     int
	MaxRetries    int
	Retention     time.Duration
	LeaseTTL      time.Duration
}

// ConsumerConfig tunes the queue batch consumers.
type ConsumerConfig struct {
	Group            string
	BatchSize        int
	FanOut           int
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
	JitterFactor     float64
	MaxDeliveries    int
	ClaimMinIdle     time.Duration
	BlockTimeout     time.Duration
	FailureThreshold int
	ResetTimeout     time.Duration
}

type DeadLetterConfig struct {
	Retention     time.Duration
	SweepInterval time.Duration
}

type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

// LoadConfig loads configuration from environment variables.
// Defaults can be set here if needed.
func LoadConfig() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "tastetrail"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Relay: RelayConfig{
			PollInterval:  getEnvAsDuration("RELAY_POLL_INTERVAL", 2*time.Second),
			SweepInterval: getEnvAsDuration("RELAY_SWEEP_INTERVAL", time.Hour),
			BatchSize:     getEnvAsInt("RELAY_BATCH_SIZE", 100),
			MaxRetries:    getEnvAsInt("RELAY_MAX_RETRIES", 10),
			Retention:     getEnvAsDuration("RELAY_RETENTION", 72*time.Hour),
			LeaseTTL:      getEnvAsDuration("RELAY_LEASE_TTL", 30*time.Second),
		},
		Consumer: ConsumerConfig{
			Group:            getEnv("CONSUMER_GROUP", "tastetrail-workers"),
			BatchSize:        getEnvAsInt("CONSUMER_BATCH_SIZE", 10),
			FanOut:           getEnvAsInt("CONSUMER_FAN_OUT", 5),
			MaxAttempts:      getEnvAsInt("CONSUMER_MAX_ATTEMPTS", 3),
			BaseDelay:        getEnvAsDuration("CONSUMER_BASE_DELAY", 200*time.Millisecond),
			MaxDelay:         getEnvAsDuration("CONSUMER_MAX_DELAY", 5*time.Second),
			JitterFactor:     getEnvAsFloat("CONSUMER_JITTER_FACTOR", 0.3),
			MaxDeliveries:    getEnvAsInt("CONSUMER_MAX_DELIVERIES", 3),
			ClaimMinIdle:     getEnvAsDuration("CONSUMER_CLAIM_MIN_IDLE", time.Minute),
			BlockTimeout:     getEnvAsDuration("CONSUMER_BLOCK_TIMEOUT", 2*time.Second),
			FailureThreshold: getEnvAsInt("BREAKER_FAILURE_THRESHOLD", 3),
			ResetTimeout:     getEnvAsDuration("BREAKER_RESET_TIMEOUT", 30*time.Second),
		},
		DeadLetter: DeadLetterConfig{
			Retention:     getEnvAsDuration("DLQ_RETENTION", 7*24*time.Hour),
			SweepInterval: getEnvAsDuration("DLQ_SWEEP_INTERVAL", 6*time.Hour),
		},
		S3: S3Config{
			Region:    getEnv("S3_REGION", ""),
			Bucket:    getEnv("S3_BUCKET", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
			Endpoint:  getEnv("S3_ENDPOINT", ""),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
