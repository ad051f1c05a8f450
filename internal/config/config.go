package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"exchange-hub-go/pkg/logger"
	"github.com/caarlos0/env/v11"
)

type Config struct {
	HTTPPort        string        `env:"HTTP_PORT" envDefault:"8080"`
	Env             string        `env:"ENV" envDefault:"development"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	PermissionsFile string        `env:"PERMISSIONS_FILE"`
	InvitationTTL   time.Duration `env:"INVITATION_TTL" envDefault:"168h"`
	TemplatesFile   string        `env:"NOTIFICATION_TEMPLATES_FILE"`

	DB              DBConfig `envPrefix:"DB_"`
	Supabase        SupabaseConfig
	Redis           RedisConfig           `envPrefix:"REDIS_"`
	Kafka           KafkaConfig           `envPrefix:"KAFKA_"`
	Storage         StorageConfig         `envPrefix:"STORAGE_"`
	PracticePanther PracticePantherConfig `envPrefix:"PP_"`
	EntitySync      EntitySyncConfig      `envPrefix:"ENTITY_SYNC_"`
	Dashboard       DashboardConfig       `envPrefix:"DASHBOARD_"`
}

type DBConfig struct {
	DSN             string        `env:"DSN"`
	Host            string        `env:"HOST" envDefault:"localhost"`
	Port            string        `env:"PORT" envDefault:"5432"`
	User            string        `env:"USER" envDefault:"postgres"`
	Password        string        `env:"PASSWORD" envDefault:"postgres"`
	Name            string        `env:"NAME" envDefault:"exchange_hub"`
	SSLMode         string        `env:"SSLMODE" envDefault:"disable"`
	TimeZone        string        `env:"TIMEZONE" envDefault:"UTC"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"10"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	AutoMigrate     bool          `env:"AUTO_MIGRATE" envDefault:"true"`
}

type SupabaseConfig struct {
	URL            string        `env:"SUPABASE_URL"`
	PublishableKey string        `env:"SUPABASE_PUBLISHABLE_KEY"`
	JWTSecret      string        `env:"SUPABASE_JWT_SECRET"`
	AuthTimeout    time.Duration `env:"SUPABASE_AUTH_TIMEOUT" envDefault:"5s"`
	SkipAuth       bool          `env:"AUTH_SKIP" envDefault:"false"`
	MockUserID     string        `env:"AUTH_MOCK_USER_ID" envDefault:"00000000-0000-0000-0000-000000000001"`
	MockUserEmail  string        `env:"AUTH_MOCK_USER_EMAIL"`
	MockUserName   string        `env:"AUTH_MOCK_USER_NAME"`
}

type RedisConfig struct {
	URL            string        `env:"URL"`
	PermissionsTTL time.Duration `env:"PERMISSIONS_TTL" envDefault:"5m"`
}

type KafkaConfig struct {
	Brokers     []string `env:"BROKERS" envSeparator:","`
	TopicPrefix string   `env:"TOPIC_PREFIX" envDefault:"exchange-hub"`
}

type StorageConfig struct {
	Endpoint        string        `env:"ENDPOINT"`
	AccessKeyID     string        `env:"ACCESS_KEY_ID"`
	SecretAccessKey string        `env:"SECRET_ACCESS_KEY"`
	Bucket          string        `env:"BUCKET" envDefault:"exchange-documents"`
	Region          string        `env:"REGION" envDefault:"us-east-1"`
	UseSSL          bool          `env:"USE_SSL" envDefault:"true"`
	PresignTTL      time.Duration `env:"PRESIGN_TTL" envDefault:"15m"`
	MaxUploadBytes  int64         `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`
}

type PracticePantherConfig struct {
	BaseURL      string        `env:"BASE_URL" envDefault:"https://app.practicepanther.com"`
	ClientID     string        `env:"CLIENT_ID"`
	ClientSecret string        `env:"CLIENT_SECRET"`
	RefreshToken string        `env:"REFRESH_TOKEN"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

type EntitySyncConfig struct {
	Interval      time.Duration `env:"INTERVAL" envDefault:"15m"`
	BatchLimit    int           `env:"BATCH_LIMIT" envDefault:"10"`
	SkipCompleted bool          `env:"SKIP_COMPLETED" envDefault:"true"`
	Rate          float64       `env:"RATE" envDefault:"1"`
	Burst         int           `env:"BURST" envDefault:"1"`
	Concurrency   int           `env:"CONCURRENCY" envDefault:"1"`
}

type DashboardConfig struct {
	WindowDays    int           `env:"WINDOW_DAYS" envDefault:"30"`
	DeadlineLimit int           `env:"DEADLINE_LIMIT" envDefault:"10"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"1m"`
}

func Load(log logger.Logger) (Config, error) {
	if err := loadDotEnv(log); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Supabase.PublishableKey == "" {
		cfg.Supabase.PublishableKey = strings.TrimSpace(os.Getenv("VITE_SUPABASE_PUBLISHABLE_KEY"))
	}
	return cfg, nil
}

func (c DBConfig) GetDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.TimeZone
}

func (c PracticePantherConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

func (c StorageConfig) Enabled() bool {
	return c.Endpoint != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}
