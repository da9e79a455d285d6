package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"

	BrokerMemory = "memory"
	BrokerRedis  = "redis"
)

type Config struct {
	AppPort       string
	AppMode       string
	LogMode       string
	StorageDriver string
	BrokerDriver  string

	DBHost         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBPort         string
	DBMaxIdleConns int
	DBMaxOpenConns int

	JWTSecret    string
	JWTExpiryMin int

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// InstanceID names this process's broker subscriptions. It must differ
	// between instances sharing a broker.
	InstanceID          string
	StreamPrefix        string
	StreamMaxLen        int
	BrokerBlockMs       int
	BrokerBackoffMaxSec int

	MessageRateLimit     int
	MessageRateWindowSec int
	UserCacheTTLSec      int
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:       getEnv("APP_PORT", "8080"),
		AppMode:       getEnv("APP_MODE", "debug"),
		LogMode:       getEnv("LOG_MODE", "development"),
		StorageDriver: getEnv("STORAGE_DRIVER", StoragePostgres),
		BrokerDriver:  getEnv("BROKER_DRIVER", BrokerRedis),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "empathy_hub"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		JWTSecret:    getEnv("JWT_SECRET", "change-me"),
		JWTExpiryMin: getEnvAsInt("JWT_EXPIRY_MIN", 60),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		InstanceID:          getEnv("INSTANCE_ID", defaultInstanceID()),
		StreamPrefix:        getEnv("STREAM_PREFIX", "empathy"),
		StreamMaxLen:        getEnvAsInt("STREAM_MAX_LEN", 10000),
		BrokerBlockMs:       getEnvAsInt("BROKER_BLOCK_MS", 5000),
		BrokerBackoffMaxSec: getEnvAsInt("BROKER_BACKOFF_MAX_SEC", 30),

		MessageRateLimit:     getEnvAsInt("MESSAGE_RATE_LIMIT", 60),
		MessageRateWindowSec: getEnvAsInt("MESSAGE_RATE_WINDOW_SEC", 60),
		UserCacheTTLSec:      getEnvAsInt("USER_CACHE_TTL_SEC", 30),
	}
}

func defaultInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "instance"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}
