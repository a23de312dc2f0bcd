package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultJWTSecret is the signing secret used when JWT_SECRET is unset.
const DefaultJWTSecret = "dev-secret-change-me"

type Config struct {
	Env  string
	Port int

	AppName        string
	AppDescription string

	// storage
	StoreDriver string
	DBURL       string

	// auth
	JWTSecret             string
	AccessTokenTTLMinutes int
	InvitationTTLMinutes  int
	OTPTTLMinutes         int
	BcryptCost            int

	// bootstrap super admin
	SuperAdminEmail    string
	SuperAdminPassword string
	SuperAdminName     string

	// lookup cache
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	LookupCacheTTL time.Duration

	// media
	MediaDriver    string
	MediaDir       string
	MediaBaseURL   string
	S3Bucket       string
	S3Region       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	S3PublicURL    string
	MaxUploadBytes int64

	// tracing
	TracingEnabled bool
	OTLPEndpoint   string

	AllowedOrigins []string
	ActivationURL  string
}

func Load() Config {
	// .env is optional; real env vars always win.
	_ = godotenv.Load()

	appName := getEnv("APP_NAME", "Whitelabel API")

	return Config{
		Env:  getEnv("APP_ENV", "dev"),
		Port: getEnvInt("PORT", 8080),

		AppName:        appName,
		AppDescription: getEnv("APP_DESCRIPTION", fmt.Sprintf("End points for frontend solutions to cater the %s needs", appName)),

		StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		DBURL:       getEnv("DATABASE_URL", buildDBURL()),

		JWTSecret:             getEnv("JWT_SECRET", DefaultJWTSecret),
		AccessTokenTTLMinutes: getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 2880),
		InvitationTTLMinutes:  getEnvInt("INVITATION_TTL_MINUTES", 2880),
		OTPTTLMinutes:         getEnvInt("OTP_TTL_MINUTES", 5),
		BcryptCost:            getEnvInt("BCRYPT_COST", 10),

		SuperAdminEmail:    getEnv("SUPER_ADMIN_EMAIL", ""),
		SuperAdminPassword: getEnv("SUPER_ADMIN_PASSWORD", ""),
		SuperAdminName:     getEnv("SUPER_ADMIN_NAME", "Super Admin"),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		LookupCacheTTL: time.Duration(getEnvInt("LOOKUP_CACHE_TTL_SECONDS", 300)) * time.Second,

		MediaDriver:    getEnv("MEDIA_DRIVER", "local"),
		MediaDir:       getEnv("MEDIA_DIR", "static"),
		MediaBaseURL:   getEnv("MEDIA_BASE_URL", "http://127.0.0.1:8080/static"),
		S3Bucket:       getEnv("S3_BUCKET", "restaurants"),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:     getEnv("S3_ENDPOINT", ""),
		S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
		S3PublicURL:    getEnv("S3_PUBLIC_URL", ""),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 10)) << 20,

		TracingEnabled: getEnv("OTEL_ENABLED", "false") == "true",
		OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		AllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://whitelist.com,http://localhost:3000,http://127.0.0.1:8000")),
		ActivationURL:  getEnv("ACTIVATION_URL", "http://localhost:3000/login/business"),
	}
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) InvitationTTL() time.Duration {
	return time.Duration(c.InvitationTTLMinutes) * time.Minute
}

func (c Config) OTPTTL() time.Duration {
	return time.Duration(c.OTPTTLMinutes) * time.Minute
}

func buildDBURL() string {
	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "foodsafety")
	pass := getEnv("DB_PASSWORD", "foodsafety")
	name := getEnv("DB_NAME", "foodsafety")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// WithTimeout bounds a store call while keeping the parent's cancellation and values
// (request id, trace span).
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, duration)
}

// Validate refuses settings that are only safe on a developer machine.
func (c Config) Validate() error {
	if c.Env != "dev" && c.Env != "test" && c.JWTSecret == DefaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set when APP_ENV=%s", c.Env)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			fmt.Println(err)
			return fallback
		}

		return num
	}
	return fallback
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
