package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ServiceURLs collects base URLs for the downstream collaborators the
// pipeline calls. Entries are plain base URLs without a trailing slash.
type ServiceURLs struct {
	OCR       string
	FaceMatch string
	Risk      string
	Storage   string
	Audit     string
}

// RedisConfig captures connection tuning for the notification channel.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig describes the task queue topology.
type KafkaConfig struct {
	Brokers         []string
	ProcessTopic    string
	DeadLetterTopic string
	ConsumerGroup   string
}

// Config is the full runtime configuration for both binaries.
type Config struct {
	Addr             string
	PostgresDSN      string
	Redis            RedisConfig
	Kafka            KafkaConfig
	Services         ServiceURLs
	JWTSigningKey    string
	ApproveThreshold int
	ClientTimeout    time.Duration
	UseStubs         bool
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:        envOr("VERITY_ADDR", ":8080"),
		PostgresDSN: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:         strings.Split(envOr("KAFKA_BROKERS", "localhost:9092"), ","),
			ProcessTopic:    envOr("KAFKA_PROCESS_TOPIC", "kyc.process"),
			DeadLetterTopic: envOr("KAFKA_DLQ_TOPIC", "kyc.process.dlq"),
			ConsumerGroup:   envOr("KAFKA_CONSUMER_GROUP", "verity-worker"),
		},
		Services: ServiceURLs{
			OCR:       envOr("OCR_SERVICE_URL", "http://localhost:8101"),
			FaceMatch: envOr("FACEMATCH_SERVICE_URL", "http://localhost:8102"),
			Risk:      envOr("RISK_SERVICE_URL", "http://localhost:8103"),
			Storage:   envOr("STORAGE_SERVICE_URL", "http://localhost:8104"),
			Audit:     envOr("AUDIT_SERVICE_URL", "http://localhost:8105"),
		},
		JWTSigningKey:    envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		ApproveThreshold: envInt("RISK_APPROVE_THRESHOLD", 50),
		ClientTimeout:    envDuration("PROCESS_TIMEOUT", 60*time.Second),
		UseStubs:         os.Getenv("USE_STUBS") == "true",
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
