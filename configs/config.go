package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Linkedin struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	APIURL       string
}

type Publish struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

type Config struct {
	Port                 string
	PostgresURI          string
	FrontendURL          string
	SecretKey            string
	CookieName           string
	TokenRefreshSchedule string
	Linkedin             Linkedin
	Publish              Publish
}

func LoadConfig() *Config {
	return &Config{
		Port:                 getEnv("PORT", "3000"),
		PostgresURI:          getEnv("POSTGRES_URI", ""),
		FrontendURL:          getEnv("FRONTEND_URL", "http://localhost:5173"),
		SecretKey:            getEnv("SECRET_KEY", ""),
		CookieName:           getEnv("COOKIE_NAME", "postpilot_session"),
		TokenRefreshSchedule: getEnv("TOKEN_REFRESH_SCHEDULE", "@every 00h10m00s"),
		Linkedin: Linkedin{
			ClientID:     getEnv("LINKEDIN_CLIENT_ID", ""),
			ClientSecret: getEnv("LINKEDIN_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("LINKEDIN_REDIRECT_URI", "http://localhost:3000/auth/linkedin/callback"),
			APIURL:       getEnv("LINKEDIN_API_URL", "https://api.linkedin.com"),
		},
		Publish: Publish{
			Timeout:        getEnvDuration("PUBLISH_TIMEOUT", 20*time.Second),
			MaxRetries:     getEnvInt("PUBLISH_MAX_RETRIES", 0),
			RetryBaseDelay: getEnvDuration("PUBLISH_RETRY_BASE_DELAY", 2*time.Second),
			RetryMaxDelay:  getEnvDuration("PUBLISH_RETRY_MAX_DELAY", 30*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", slog.String("key", key), slog.String("value", value))
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", slog.String("key", key), slog.String("value", value))
		return defaultValue
	}
	return d
}
