package config

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

//go:embed defaults.yaml
var defaultConfig []byte

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	EventsNone = "none"
	EventsSQS  = "sqs"
	EventsAMQP = "amqp"
)

type Config struct {
	ServerPort string `koanf:"server_port"`
	CORSOrigin string `koanf:"cors_origin"`

	Storage    string `koanf:"storage"`
	DBDriver   string `koanf:"db_driver"` // "pgx" or "postgres" (lib/pq)
	DBHost     string `koanf:"db_host"`
	DBPort     int    `koanf:"db_port"`
	DBUser     string `koanf:"db_user"`
	DBPassword string `koanf:"db_password"`
	DBName     string `koanf:"db_name"`
	DBSslMode  string `koanf:"db_sslmode"`

	JWTSecret          string `koanf:"jwt_secret"`
	JWTExpirationHours int    `koanf:"jwt_expiration_hours"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	AuthRateLimit float64 `koanf:"auth_rate_limit"` // requests per second per client
	AuthRateBurst int     `koanf:"auth_rate_burst"`

	EventsBackend    string `koanf:"events_backend"`
	AWSRegion        string `koanf:"aws_region"`
	SQSEventQueueURL string `koanf:"sqs_event_queue_url"`
	AMQPURL          string `koanf:"amqp_url"`
	AMQPExchange     string `koanf:"amqp_exchange"`

	// Optional admin account ensured at startup, mainly for STORAGE=memory.
	AdminEmail    string `koanf:"admin_email"`
	AdminPassword string `koanf:"admin_password"`
}

// Load reads .env (if present), then layers environment variables over the
// embedded defaults. DB_HOST maps to db_host and so on.
func Load() (*Config, error) {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env file: %v", err)
	}
	return load()
}

func load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load default config: %w", err)
	}
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("config: unknown storage %q", c.Storage)
	}
	switch c.DBDriver {
	case "pgx", "postgres":
	default:
		return fmt.Errorf("config: unknown db driver %q", c.DBDriver)
	}
	switch c.EventsBackend {
	case EventsNone:
	case EventsSQS:
		if c.SQSEventQueueURL == "" {
			return fmt.Errorf("config: SQS_EVENT_QUEUE_URL is required when EVENTS_BACKEND=sqs")
		}
	case EventsAMQP:
		if c.AMQPURL == "" {
			return fmt.Errorf("config: AMQP_URL is required when EVENTS_BACKEND=amqp")
		}
	default:
		return fmt.Errorf("config: unknown events backend %q", c.EventsBackend)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET must not be empty")
	}
	if c.AdminEmail != "" && len(c.AdminPassword) < 8 {
		return fmt.Errorf("config: ADMIN_PASSWORD must be at least 8 characters when ADMIN_EMAIL is set")
	}
	if c.JWTExpirationHours <= 0 {
		return fmt.Errorf("config: JWT_EXPIRATION_HOURS must be positive")
	}
	return nil
}

func (c *Config) JWTExpiration() time.Duration {
	return time.Duration(c.JWTExpirationHours) * time.Hour
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSslMode)
}
