package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	EmailServer ServerConfig
	Scraper     ScraperConfig
	Redis       RedisConfig
	SMTP        SMTPConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type ScraperConfig struct {
	BaseURL        string
	Domain         string
	Currency       string
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration

	// Entries pending longer than ClaimMinIdle are reclaimed every
	// ClaimInterval and moved to DeadLetterStream after MaxDeliveries.
	ClaimInterval    time.Duration
	ClaimMinIdle     time.Duration
	MaxDeliveries    int
	DeadLetterStream string
}

// SMTPConfig holds the relay settings. User and Pass are checked at send
// time, not at load time, so a sender without credentials can still start.
type SMTPConfig struct {
	Host   string
	Port   int
	User   string
	Pass   string
	Sender string
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getIntOrDefault("PORT", 8080),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://localhost:*"}),
		},
		EmailServer: ServerConfig{
			Port:            getIntOrDefault("EMAIL_SENDER_PORT", 8081),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Scraper: ScraperConfig{
			BaseURL:        strings.TrimRight(getEnvOrDefault("CENEO_BASE_URL", "https://www.ceneo.pl"), "/"),
			Domain:         strings.ToLower(getEnvOrDefault("CENEO_DOMAIN", "ceneo.pl")),
			Currency:       getEnvOrDefault("CENEO_CURRENCY", "PLN"),
			Timeout:        getDurationOrDefault("SCRAPER_TIMEOUT", 10*time.Second),
			UserAgent:      getEnvOrDefault("SCRAPER_USER_AGENT", defaultUserAgent),
			AcceptLanguage: getEnvOrDefault("SCRAPER_ACCEPT_LANGUAGE", "pl-PL,pl;q=0.9,en-US;q=0.8,en;q=0.7"),
		},
		Redis: RedisConfig{
			Enabled:  getBoolOrDefault("QUEUE_ENABLED", true),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:email_requests"),
			Group:    getEnvOrDefault("REDIS_GROUP", "email-sender-group"),
			Consumer: getEnvOrDefault("REDIS_CONSUMER", hostnameOrDefault("email-sender-1")),
			Block:    getDurationOrDefault("REDIS_BLOCK", 5*time.Second),

			ClaimInterval:    getDurationOrDefault("REDIS_CLAIM_INTERVAL", 30*time.Second),
			ClaimMinIdle:     getDurationOrDefault("REDIS_CLAIM_MIN_IDLE", time.Minute),
			MaxDeliveries:    getIntOrDefault("REDIS_MAX_DELIVERIES", 5),
			DeadLetterStream: getEnvOrDefault("REDIS_DEAD_LETTER_STREAM", ""),
		},
		SMTP: SMTPConfig{
			Host:   getEnvOrDefault("SMTP_HOST", "smtp-relay.brevo.com"),
			Port:   getIntOrDefault("SMTP_PORT", 587),
			User:   os.Getenv("SMTP_USER"),
			Pass:   os.Getenv("SMTP_PASS"),
			Sender: os.Getenv("SMTP_SENDER"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
			File:   os.Getenv("LOG_FILE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	for _, s := range []ServerConfig{c.Server, c.EmailServer} {
		if s.Port <= 0 || s.Port > 65535 {
			return fmt.Errorf("invalid server port: %d", s.Port)
		}
	}

	u, err := url.Parse(c.Scraper.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("CENEO_BASE_URL must be an absolute URL, got %q", c.Scraper.BaseURL)
	}

	if c.Scraper.Domain == "" {
		return fmt.Errorf("CENEO_DOMAIN is required")
	}

	if c.Scraper.Timeout <= 0 {
		return fmt.Errorf("SCRAPER_TIMEOUT must be positive")
	}

	if c.Redis.Enabled && c.Redis.Stream == "" {
		return fmt.Errorf("REDIS_STREAM is required when the queue is enabled")
	}

	if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
		return fmt.Errorf("invalid SMTP port: %d", c.SMTP.Port)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Logging.Format)
	}

	return nil
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func hostnameOrDefault(defaultValue string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return defaultValue
}
