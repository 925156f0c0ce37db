// internal/config/config.go
package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"chesed/internal/constants"
)

// Config holds all application settings.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	JWTSecret string
	TokenTTL  time.Duration

	TelegramToken string
	AdminChatID   int64

	RedisAddr     string
	RedisPassword string
	RedisChannel  string

	GeocoderURL       string
	GeocoderUserAgent string
	GeocodeOnImport   bool

	DefaultCity    string
	Location       *time.Location
	LogLevel       string
	LogFormat      string
	WebAppDir      string
	PublicURL      string
	AllowedOrigins []string
}

// IsDev reports whether the app runs in development mode.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

// NotificationsEnabled reports whether the Telegram notifier has what it needs.
func (c *Config) NotificationsEnabled() bool {
	return c.TelegramToken != "" && c.AdminChatID != 0
}

// LoadConfig reads the configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("ENV", "prod"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		TelegramToken:     os.Getenv("TELEGRAM_APITOKEN"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisChannel:      getEnv("REDIS_CHANNEL", "chesed:events"),
		GeocoderURL:       getEnv("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent: getEnv("GEOCODER_USER_AGENT", "chesed-deliveries/1.0"),
		DefaultCity:       getEnv("DEFAULT_CITY", constants.DEFAULT_CITY),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		WebAppDir:         getEnv("WEBAPP_DIR", "webapp"),
		PublicURL:         strings.TrimRight(os.Getenv("PUBLIC_URL"), "/"),
		AllowedOrigins:    splitList(getEnv("ALLOWED_ORIGINS", "https://*,http://*")),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	parsedURL, err := url.Parse(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	cfg.DBHost = parsedURL.Hostname()
	cfg.DBPort = parsedURL.Port()
	if cfg.DBPort == "" {
		cfg.DBPort = "5432"
	}
	if parsedURL.User != nil {
		cfg.DBUser = parsedURL.User.Username()
		cfg.DBPassword, _ = parsedURL.User.Password()
	}
	cfg.DBName = strings.TrimPrefix(parsedURL.Path, "/")

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set")
	}
	if len(cfg.JWTSecret) < 16 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}

	cfg.TokenTTL, err = time.ParseDuration(getEnv("TOKEN_TTL", "720h"))
	if err != nil || cfg.TokenTTL <= 0 {
		log.Printf("Warning: invalid TOKEN_TTL (%v), using 720h", err)
		cfg.TokenTTL = 720 * time.Hour
	}

	if v := os.Getenv("ADMIN_CHAT_ID"); v != "" {
		cfg.AdminChatID, err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Printf("Warning: could not parse ADMIN_CHAT_ID: %v. Notifications disabled.", err)
			cfg.AdminChatID = 0
		}
	}
	if !cfg.NotificationsEnabled() {
		log.Println("Warning: TELEGRAM_APITOKEN or ADMIN_CHAT_ID not set, admin notifications are disabled.")
	}

	cfg.GeocodeOnImport, _ = strconv.ParseBool(getEnv("GEOCODE_ON_IMPORT", "false"))

	tz := getEnv("TIMEZONE", "Asia/Jerusalem")
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		log.Printf("Warning: unknown TIMEZONE %q (%v), using local time", tz, err)
		cfg.Location = time.Local
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
