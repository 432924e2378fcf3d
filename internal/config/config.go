package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded once at startup from the
// environment (optionally seeded from a .env file in development).
type Config struct {
	Environment string

	Server  ServerConfig
	Redis   RedisConfig
	Scylla  ScyllaConfig
	Kafka   KafkaConfig
	SMTP    SMTPConfig
	Auth    AuthConfig
	Hashing HashingConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Port         int
	TLSPort      int
	EnableTLS    bool
	AutoCert     bool
	Domain       string
	CertFile     string
	KeyFile      string
	AutoCertDir  string
	Email        string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Hosts       []string
	Keyspace    string
	Username    string
	Password    string
	Consistency string
	Timeout     time.Duration
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// AuthConfig groups the knobs of the authentication core.
type AuthConfig struct {
	OTPLength           int
	OTPTTL              time.Duration
	OTPMaxAttempts      int
	SessionTTL          time.Duration
	SessionParam        string
	ChallengeKeyBuckets int

	// OTPIssueLimit caps challenge issues per (resource, email) within
	// OTPIssueWindow. Zero disables the cap.
	OTPIssueLimit  int
	OTPIssueWindow time.Duration

	// RedirectHosts, when non-empty, restricts absolute redirect targets to
	// the listed hosts. An empty list leaves redirect policy to the fronting
	// proxy.
	RedirectHosts []string
}

type HashingConfig struct {
	Argon2MemoryCost  int
	Argon2TimeCost    int
	Argon2Parallelism int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig reads configuration from the environment. A missing .env file is
// not an error; explicit environment variables always win.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8080),
			TLSPort:      getEnvInt("SERVER_TLS_PORT", 8443),
			EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
			AutoCert:     getEnvBool("SERVER_AUTO_CERT", false),
			Domain:       getEnv("SERVER_DOMAIN", ""),
			CertFile:     getEnv("SERVER_CERT_FILE", ""),
			KeyFile:      getEnv("SERVER_KEY_FILE", ""),
			AutoCertDir:  getEnv("SERVER_AUTOCERT_DIR", "/var/cache/autocert"),
			Email:        getEnv("SERVER_ACME_EMAIL", ""),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		},
		Scylla: ScyllaConfig{
			Hosts:       splitAndTrim(getEnv("SCYLLA_HOSTS", "localhost:9042")),
			Keyspace:    getEnv("SCYLLA_KEYSPACE", "resource_auth"),
			Username:    getEnv("SCYLLA_USERNAME", ""),
			Password:    getEnv("SCYLLA_PASSWORD", ""),
			Consistency: getEnv("SCYLLA_CONSISTENCY", "quorum"),
			Timeout:     getEnvDuration("SCYLLA_TIMEOUT", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: splitAndTrim(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getEnv("KAFKA_AUTH_EVENTS_TOPIC", "resource-auth-events"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvInt("SMTP_PORT", 587),
			From:     getEnv("SMTP_FROM", "no-reply@localhost"),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
		},
		Auth: AuthConfig{
			OTPLength:           getEnvInt("AUTH_OTP_LENGTH", 8),
			OTPTTL:              getEnvDuration("AUTH_OTP_TTL", 10*time.Minute),
			OTPMaxAttempts:      getEnvInt("AUTH_OTP_MAX_ATTEMPTS", 5),
			SessionTTL:          getEnvDuration("AUTH_SESSION_TTL", 2*time.Hour),
			SessionParam:        getEnv("AUTH_SESSION_REQUEST_PARAM", "p_session_request"),
			ChallengeKeyBuckets: getEnvInt("AUTH_CHALLENGE_KEY_BUCKETS", 16),
			OTPIssueLimit:       getEnvInt("AUTH_OTP_ISSUE_LIMIT", 5),
			OTPIssueWindow:      getEnvDuration("AUTH_OTP_ISSUE_WINDOW", 15*time.Minute),
			RedirectHosts:       splitAndTrim(getEnv("AUTH_REDIRECT_ALLOWED_HOSTS", "")),
		},
		Hashing: HashingConfig{
			Argon2MemoryCost:  getEnvInt("ARGON2_MEMORY_COST", 64*1024),
			Argon2TimeCost:    getEnvInt("ARGON2_TIME_COST", 3),
			Argon2Parallelism: getEnvInt("ARGON2_PARALLELISM", 2),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
