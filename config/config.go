package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AppMode       string
	DBHost        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBPort        string
	JWTSecret     string
	JWTExpiryMin  int
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	S3AccessKey  string
	S3SecretKey  string
	S3PublicBase string

	// Websocket tunables
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	MaxMessageSize int64

	// Per-call budget for hub RPC handlers
	CallTimeout time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:        getEnv("APP_PORT", "8080"),
		AppMode:        getEnv("APP_MODE", "debug"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "campuschat"),
		DBPort:         getEnv("DB_PORT", "5432"),
		JWTSecret:      getEnv("JWT_SECRET", "change-me"),
		JWTExpiryMin:   getEnvAsInt("JWT_EXPIRY_MIN", 60),
		RedisHost:      getEnv("REDIS_HOST", "localhost"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvAsInt("REDIS_DB", 0),
		S3Bucket:       getEnv("S3_BUCKET", "campuschat-uploads"),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3PublicBase:   getEnv("S3_PUBLIC_BASE", ""),
		WriteTimeout:   getEnvAsDuration("WS_WRITE_TIMEOUT", 10*time.Second),
		PongTimeout:    getEnvAsDuration("WS_PONG_TIMEOUT", 60*time.Second),
		MaxMessageSize: int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 512*1024)),
		CallTimeout:    getEnvAsDuration("WS_CALL_TIMEOUT", 5*time.Second),
	}
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
