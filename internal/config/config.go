package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port               string
	DatabaseURL        string
	SessionTTLHours    int
	RateLimitPerMinute int
	RateLimitBurst     int
	LoginRatePerMinute int
	LoginRateBurst     int
	AdminPassword      string
	CORSAllowOrigin    string
	OTELEndpoint       string
	OTELInsecure       bool
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}

	return Config{
		Port:               port,
		DatabaseURL:        os.Getenv("DB_DSN"),
		SessionTTLHours:    readInt("SESSION_TTL_HOURS", 24),
		RateLimitPerMinute: readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:     readInt("RATE_LIMIT_BURST", 30),
		LoginRatePerMinute: readInt("LOGIN_RATE_LIMIT_PER_MIN", 10),
		LoginRateBurst:     readInt("LOGIN_RATE_LIMIT_BURST", 5),
		AdminPassword:      os.Getenv("ADMIN_PASSWORD"),
		CORSAllowOrigin:    readString("CORS_ALLOW_ORIGIN", "*"),
		OTELEndpoint:       os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTELInsecure:       os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
	}
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readString(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
