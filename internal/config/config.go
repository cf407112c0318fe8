package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"liaison/internal/config/connections/mongo"
	"liaison/internal/config/connections/postgres"
	"liaison/internal/config/connections/redis"
	"liaison/internal/config/connections/s3"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Settings is the environment-derived configuration. Nothing is dialed
// until Connect.
type Settings struct {
	Port        string
	Environment string
	LogLevel    string
	LogFormat   string

	Store      string
	Migrate    bool
	PolicyPath string

	JWTSecret    string
	JWTIssuer    string
	AdminParties []string
	RateLimitRPS int
	RateBurst    int

	EmailFunctionURL string
	EmailFunctionKey string

	ReminderHorizon time.Duration
	AttachmentTTL   time.Duration

	Postgres postgres.ConnectionInfo
	Mongo    mongo.ConnectionInfo
	S3       s3.ConnectionInfo
	Redis    redis.ConnectionInfo
}

// Load reads .env (when present) and the process environment.
func Load() Settings {
	_ = godotenv.Load()

	return Settings{
		Port:        getenv("SERVER_PORT", "8070"),
		Environment: getenv("APP_ENV", "development"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogFormat:   getenv("LOG_FORMAT", "json"),

		Store:      strings.ToLower(getenv("STORE", StorePostgres)),
		Migrate:    getenv("PG_MIGRATE", "true") == "true",
		PolicyPath: getenv("SCORE_POLICY_PATH", ""),

		JWTSecret:    getenv("JWT_SECRET", ""),
		JWTIssuer:    getenv("JWT_ISSUER", "liaison"),
		AdminParties: splitList(getenv("ADMIN_PARTY_IDS", "")),
		RateLimitRPS: getenvInt("RATE_LIMIT_RPS", 5),
		RateBurst:    getenvInt("RATE_LIMIT_BURST", 10),

		EmailFunctionURL: getenv("EMAIL_FUNCTION_URL", ""),
		EmailFunctionKey: getenv("EMAIL_FUNCTION_KEY", ""),

		ReminderHorizon: getenvDuration("REMINDER_HORIZON", 7*24*time.Hour),
		AttachmentTTL:   getenvDuration("ATTACHMENT_URL_TTL", 7*24*time.Hour),

		Postgres: postgres.ConnectionInfo{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     getenv("PG_PORT", "5432"),
			User:     getenv("PG_USER", "root"),
			Password: getenv("PG_PASSWORD", "hello-world"),
			DB:       getenv("PG_DB", "liaison"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
			MaxConns: int32(getenvInt("PG_MAX_CONNS", 10)),
			AppName:  "liaison",
		},
		Mongo: mongo.ConnectionInfo{
			Scheme:     getenv("MONGO_SCHEME", "mongodb"),
			User:       getenv("MONGO_USER", ""),
			Password:   getenv("MONGO_PASSWORD", ""),
			Host:       getenv("MONGO_HOST", ""),
			Port:       getenv("MONGO_PORT", "27017"),
			DB:         getenv("MONGO_DB", "liaison"),
			AuthSource: getenv("MONGO_AUTH_SOURCE", "admin"),
			AppName:    "liaison",
		},
		S3: s3.ConnectionInfo{
			Endpoint:  getenv("AWS_ENDPOINT", ""),
			AccessKey: getenv("AWS_ACCESS_KEY_ID", "minioadmin"),
			SecretKey: getenv("AWS_SECRET_ACCESS_KEY", "minioadmin"),
			Region:    getenv("AWS_DEFAULT_REGION", "us-east-1"),
			Bucket:    getenv("AWS_BUCKET", "liaison"),
			UseSSL:    getenv("AWS_USE_SSL", "false") == "true",
		},
		Redis: redis.ConnectionInfo{
			Addr:     getenv("REDIS_ADDR", ""),
			Password: getenv("REDIS_PASSWORD", ""),
			DB:       getenvInt("REDIS_DB", 0),
		},
	}
}

func (s Settings) Validate() error {
	var errs []error
	if s.Store != StoreMemory && s.Store != StorePostgres {
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StoreMemory, StorePostgres, s.Store))
	}
	if s.RateLimitRPS <= 0 || s.RateBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	if s.ReminderHorizon < 0 {
		errs = append(errs, errors.New("REMINDER_HORIZON must not be negative"))
	}
	return errors.Join(errs...)
}

// Config holds the live connections. Mongo, S3 and Redis are optional and
// stay nil when their host setting is empty.
type Config struct {
	Settings
	S3       *s3.S3
	Mongo    *mongo.Mongo
	Postgres *postgres.Postgres
	Redis    *redis.Redis
}

// Connect dials every configured backend.
func Connect(ctx context.Context, s Settings, log *zap.Logger) (*Config, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	c := &Config{Settings: s}

	if s.Store == StorePostgres {
		pg, err := postgres.NewConnection(ctx, s.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		c.Postgres = pg
	}

	if s.Mongo.Host != "" {
		mg, err := mongo.NewConnection(ctx, s.Mongo)
		if err != nil {
			c.Close(ctx)
			return nil, fmt.Errorf("mongo connect: %w", err)
		}
		c.Mongo = mg
	} else {
		log.Info("mongo disabled, score audit and import records are not persisted")
	}

	if s.S3.Endpoint != "" {
		s3c, err := s3.NewConnection(s.S3)
		if err != nil {
			c.Close(ctx)
			return nil, fmt.Errorf("s3 connect: %w", err)
		}
		c.S3 = s3c
	} else {
		log.Info("s3 disabled, attachment upload and s3 imports unavailable")
	}

	if s.Redis.Addr != "" {
		rd, err := redis.NewConnection(ctx, s.Redis)
		if err != nil {
			c.Close(ctx)
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		c.Redis = rd
	} else {
		log.Info("redis disabled, notice streaming is process-local")
	}

	return c, nil
}

func (c *Config) CheckConnections(ctx context.Context) error {
	var errs []error

	if c.Store == StorePostgres {
		if c.Postgres == nil || c.Postgres.Pool == nil {
			errs = append(errs, errors.New("postgres not initialized"))
		} else if err := c.Postgres.Pool.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres ping failed: %w", err))
		}
	}

	if c.Mongo != nil {
		if err := c.Mongo.Client.Ping(ctx, nil); err != nil {
			errs = append(errs, fmt.Errorf("mongo ping failed: %w", err))
		}
	}

	if c.S3 != nil {
		if ok, err := c.S3.Client.BucketExists(ctx, c.S3.Bucket); err != nil {
			errs = append(errs, fmt.Errorf("s3 bucket check failed: %w", err))
		} else if !ok {
			errs = append(errs, fmt.Errorf("s3 bucket %q not found", c.S3.Bucket))
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Client.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis ping failed: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) Close(ctx context.Context) {
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	if c.Mongo != nil {
		_ = c.Mongo.Close(ctx)
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvInt(k string, def int) int {
	v, err := strconv.Atoi(getenv(k, ""))
	if err != nil {
		return def
	}
	return v
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(getenv(k, ""))
	if err != nil {
		return def
	}
	return v
}
