package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	JWTSecret   string
	AccessTTL   time.Duration
	CORSOrigins []string

	MetricsUser     string
	MetricsPassword string

	// PendingStore is "postgres" (default), "redis" or "memory".
	PendingStore  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PendingTTL    time.Duration
	SweepInterval time.Duration

	Mpesa MpesaConfig
}

type MpesaConfig struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	ShortCode       string
	Passkey         string
	CallbackURL     string
	TransactionType string
	CountryCode     string
	// ProxyAddr routes gateway calls through a SOCKS5 proxy when set.
	ProxyAddr string
	Timeout   time.Duration
}

func Load() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg := &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		AccessTTL:   getDuration("JWT_ACCESS_TTL", 24*time.Hour),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),

		MetricsUser:     getEnv("METRICS_USER", "metrics"),
		MetricsPassword: os.Getenv("METRICS_PASSWORD"),

		PendingStore:  strings.ToLower(getEnv("PENDING_STORE", "postgres")),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
		PendingTTL:    getDuration("PENDING_TTL", 15*time.Minute),
		SweepInterval: getDuration("SWEEP_INTERVAL", time.Minute),

		Mpesa: MpesaConfig{
			BaseURL:         getEnv("MPESA_BASE_URL", "https://sandbox.safaricom.co.ke"),
			ConsumerKey:     os.Getenv("MPESA_CONSUMER_KEY"),
			ConsumerSecret:  os.Getenv("MPESA_CONSUMER_SECRET"),
			ShortCode:       os.Getenv("MPESA_SHORTCODE"),
			Passkey:         os.Getenv("MPESA_PASSKEY"),
			CallbackURL:     os.Getenv("MPESA_CALLBACK_URL"),
			TransactionType: getEnv("MPESA_TRANSACTION_TYPE", "CustomerPayBillOnline"),
			CountryCode:     getEnv("MPESA_COUNTRY_CODE", "254"),
			ProxyAddr:       os.Getenv("MPESA_PROXY_ADDR"),
			Timeout:         getDuration("MPESA_TIMEOUT", 30*time.Second),
		},
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not an integer, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("Warning: %s=%q is not a valid duration, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
