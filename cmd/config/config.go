package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every secret and tunable the server needs. It is built once
// in main and passed into constructors; nothing reads the environment after
// startup.
type Config struct {
	ServerPort  string
	DatabaseURL string

	JWTSecret     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	OtpTokenTTL   time.Duration
	OtpTTL        time.Duration

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	PresignExpiry  time.Duration

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string

	GitClientID     string
	GitClientSecret string
	GitRedirectURL  string

	StripeAPIKey        string
	StripeWebhookSecret string
	StripeProductName   string
	StripeSuccessURL    string
	StripeCancelURL     string

	AllowedHosts    []string
	RateLimit       int
	RateLimitWindow time.Duration
	PageSize        int

	DigestInterval time.Duration
	DigestBatch    int
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load reads .env when present and builds the Config.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DatabaseURL: getEnv("DB_URL", ""),

		JWTSecret:   getEnv("JWT_SECRET_KEY", ""),
		AccessTTL:   getEnvDuration("ACCESS_TOKEN_DURATION", 2*time.Hour),
		RefreshTTL:  getEnvDuration("REFRESH_TOKEN_DURATION", 168*time.Hour),
		OtpTokenTTL: getEnvDuration("OTP_TOKEN_DURATION", 10*time.Minute),
		OtpTTL:      getEnvDuration("OTP_DURATION", 5*time.Minute),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnv("MINIO_BUCKET_NAME", "snapnet"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		PresignExpiry:  getEnvDuration("PRESIGNED_URL_EXPIRY", time.Hour),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnvInt("SMTP_PORT", 587),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),

		GitClientID:     getEnv("GIT_CLIENT_ID", ""),
		GitClientSecret: getEnv("GIT_CLIENT_SECRET", ""),
		GitRedirectURL:  getEnv("GIT_REDIRECT_URI", ""),

		StripeAPIKey:        getEnv("STRIPE_API_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeProductName:   getEnv("STRIPE_PRODUCT_NAME", "Snapnet Subscription"),
		StripeSuccessURL:    getEnv("STRIPE_SUCCESS_URL", "http://localhost:8080/payment/success/"),
		StripeCancelURL:     getEnv("STRIPE_CANCEL_URL", "http://localhost:8080/payment/cancel/"),

		AllowedHosts:    splitHosts(getEnv("ALLOWED_HOSTS", "")),
		RateLimit:       getEnvInt("RATE_LIMIT", 5),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		PageSize:        getEnvInt("POST_PAGINATION_SIZE", 10),

		DigestInterval: getEnvDuration("DIGEST_INTERVAL", 24*time.Hour),
		DigestBatch:    getEnvInt("DIGEST_BATCH", 5),
	}
}

func splitHosts(hosts string) []string {
	if hosts == "" {
		return nil
	}
	var out []string
	for _, h := range strings.Split(hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}
