package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config contains application configuration
type Config struct {
	RunAddress  string
	DatabaseURI string
	Environment string
	LogLevel    string

	JWTSecret      string
	AccessTokenTTL time.Duration
	EncryptionKey  string

	Gateway GatewayConfig
	SMTP    SMTPConfig

	RedisAddr     string
	RedisPassword string

	SecureStorageDir         string
	ContractTemplateFilename string
	ContractCity             string

	AutopayCron string

	MaxFailedLogins  int
	LoginLockout     time.Duration
	ResetCodeTTL     time.Duration
	ResetMaxAttempts int
	ResetLockout     time.Duration
	ResetMailPeriod  time.Duration
}

// GatewayConfig holds payment provider credentials
type GatewayConfig struct {
	ShopID        string
	SecretKey     string
	APIURL        string
	ReturnURL     string
	WebhookSecret string
}

// SMTPConfig holds mail delivery settings. Empty Host disables SMTP.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseSSL   bool
}

// NewConfig creates a new configuration from .env, environment variables and flags
func NewConfig() (*Config, error) {
	// A missing .env is fine, the environment may be set by the orchestrator
	_ = godotenv.Load()
	return Parse(flag.CommandLine, os.Args[1:], os.Getenv)
}

// Parse fills a Config from flags, then overrides them with non-empty variables from getenv
func Parse(fs *flag.FlagSet, args []string, getenv func(string) string) (*Config, error) {
	var cfg Config

	// Parse flags
	fs.StringVar(&cfg.RunAddress, "a", ":8080", "Server run address")
	fs.StringVar(&cfg.DatabaseURI, "d", "", "Database URI, empty for the in-memory store")
	fs.StringVar(&cfg.Environment, "env", "prod", "Environment (dev, prod)")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level")
	fs.StringVar(&cfg.AutopayCron, "autopay-cron", "@every 1h", "Autopay worker schedule, empty disables it")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	env := envReader{getenv: getenv}

	// Override with env vars if present
	env.str("RUN_ADDRESS", &cfg.RunAddress)
	env.str("DATABASE_URI", &cfg.DatabaseURI)
	env.str("ENVIRONMENT", &cfg.Environment)
	env.str("LOG_LEVEL", &cfg.LogLevel)
	env.str("AUTOPAY_CRON", &cfg.AutopayCron)

	cfg.JWTSecret = getenv("JWT_SECRET")
	cfg.EncryptionKey = getenv("ENCRYPTION_KEY")
	cfg.AccessTokenTTL = 24 * time.Hour
	env.duration("ACCESS_TOKEN_TTL", &cfg.AccessTokenTTL)

	cfg.Gateway = GatewayConfig{
		ShopID:        getenv("YOOKASSA_SHOP_ID"),
		SecretKey:     getenv("YOOKASSA_SECRET_KEY"),
		APIURL:        "https://api.yookassa.ru/v3",
		ReturnURL:     getenv("YOOKASSA_RETURN_URL"),
		WebhookSecret: getenv("YOOKASSA_WEBHOOK_SECRET"),
	}
	env.str("YOOKASSA_API_URL", &cfg.Gateway.APIURL)

	cfg.SMTP = SMTPConfig{
		Host:     getenv("SMTP_HOST"),
		Port:     587,
		Username: getenv("SMTP_USERNAME"),
		Password: getenv("SMTP_PASSWORD"),
		From:     getenv("EMAIL_FROM"),
	}
	env.integer("SMTP_PORT", &cfg.SMTP.Port)
	env.boolean("SMTP_USE_SSL", &cfg.SMTP.UseSSL)

	cfg.RedisAddr = getenv("REDIS_ADDR")
	cfg.RedisPassword = getenv("REDIS_PASSWORD")

	cfg.SecureStorageDir = "secure_storage"
	cfg.ContractTemplateFilename = "contract_template.docx"
	cfg.ContractCity = "Великий Новгород"
	env.str("SECURE_STORAGE_DIR", &cfg.SecureStorageDir)
	env.str("CONTRACT_TEMPLATE_FILENAME", &cfg.ContractTemplateFilename)
	env.str("CONTRACT_CITY", &cfg.ContractCity)

	// Set defaults for throttling
	cfg.MaxFailedLogins = 3
	cfg.LoginLockout = 20 * time.Second
	cfg.ResetCodeTTL = 15 * time.Minute
	cfg.ResetMaxAttempts = 3
	cfg.ResetLockout = 20 * time.Second
	cfg.ResetMailPeriod = time.Minute
	env.integer("MAX_FAILED_LOGINS", &cfg.MaxFailedLogins)
	env.duration("LOGIN_LOCKOUT", &cfg.LoginLockout)
	env.duration("RESET_CODE_TTL", &cfg.ResetCodeTTL)
	env.integer("RESET_MAX_ATTEMPTS", &cfg.ResetMaxAttempts)
	env.duration("RESET_LOCKOUT", &cfg.ResetLockout)
	env.duration("RESET_MAIL_PERIOD", &cfg.ResetMailPeriod)

	if env.err != nil {
		return nil, env.err
	}
	return &cfg, nil
}

// Validate checks settings required to serve requests
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if c.MaxFailedLogins < 1 || c.ResetMaxAttempts < 1 {
		return fmt.Errorf("attempt limits must be positive")
	}
	return nil
}

type envReader struct {
	getenv func(string) string
	err    error
}

func (e *envReader) str(key string, dst *string) {
	if v := e.getenv(key); v != "" {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v := e.getenv(key)
	if v == "" || e.err != nil {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = n
}

func (e *envReader) boolean(key string, dst *bool) {
	v := e.getenv(key)
	if v == "" || e.err != nil {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v := e.getenv(key)
	if v == "" || e.err != nil {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.err = fmt.Errorf("%s: %w", key, err)
		return
	}
	*dst = d
}
