package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config is built once in main and handed to every component that needs a setting.
type Config struct {
	Port           string
	EndpointPrefix string
	GinMode        string

	StoreDriver string
	DatabaseURL string
	RedisURL    string

	KafkaBrokers []string
	KafkaTopic   string

	ConsulAddress string
	ServiceName   string
	ServiceHost   string

	PrivateKeyPath string
	PublicKeyPath  string
	TokenTTL       time.Duration

	Proof ProofConfig
	Mail  MailConfig

	// AdminEmail and AdminPassword seed the first admin account at startup when both are set.
	AdminEmail    string
	AdminPassword string

	VerifyOrderTotal bool
	ShutdownTimeout  time.Duration
}

type ProofConfig struct {
	LocalRoot  string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Prefix   string
	MaxBytes   int64
}

type MailConfig struct {
	Host       string
	Port       string
	Username   string
	Password   string
	From       string
	AdminEmail string
}

// Enabled reports whether enough SMTP settings exist to send mail.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.AdminEmail != ""
}

// Load reads the configuration from the process environment. Callers load .env first.
func Load() (*Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return def
		}
		return v
	}

	cfg := &Config{
		Port:           get("PORT", "8080"),
		EndpointPrefix: get("SERVICE_ENDPOINT_PREFIX", "/api/v1"),
		GinMode:        get("GIN_MODE", "debug"),
		StoreDriver:    get("STORE_DRIVER", StoreDriverPostgres),
		DatabaseURL:    get("DATABASE_URL", ""),
		RedisURL:       get("REDIS_URL", ""),
		KafkaTopic:     get("KAFKA_TOPIC", "storefront.order-events"),
		ConsulAddress:  get("CONSUL_HTTP_ADDR", ""),
		ServiceName:    get("SERVICE_NAME", "storefront"),
		ServiceHost:    get("SERVICE_HOST", "localhost"),
		PrivateKeyPath: get("JWT_PRIVATE_KEY_PATH", "private.pem"),
		PublicKeyPath:  get("JWT_PUBLIC_KEY_PATH", "pubkey.pem"),
		Proof: ProofConfig{
			LocalRoot:  get("PROOF_LOCAL_ROOT", "uploads"),
			S3Bucket:   get("PROOF_S3_BUCKET", ""),
			S3Region:   get("PROOF_S3_REGION", "us-east-1"),
			S3Endpoint: get("PROOF_S3_ENDPOINT", ""),
			S3Prefix:   get("PROOF_S3_PREFIX", "payment-proofs/"),
		},
		Mail: MailConfig{
			Host:       get("SMTP_HOST", ""),
			Port:       get("SMTP_PORT", "587"),
			Username:   get("SMTP_USERNAME", ""),
			Password:   get("SMTP_PASSWORD", ""),
			From:       get("SMTP_FROM", "no-reply@storefront.local"),
			AdminEmail: get("ADMIN_EMAIL", ""),
		},
		AdminEmail:    get("BOOTSTRAP_ADMIN_EMAIL", ""),
		AdminPassword: get("BOOTSTRAP_ADMIN_PASSWORD", ""),
	}

	for _, b := range strings.Split(getenv("KAFKA_BROKERS"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
		}
	}

	var err error
	if cfg.TokenTTL, err = time.ParseDuration(get("JWT_TTL", "24h")); err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	if cfg.ShutdownTimeout, err = time.ParseDuration(get("SHUTDOWN_TIMEOUT", "10s")); err != nil {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
	}
	if cfg.Proof.MaxBytes, err = strconv.ParseInt(get("PROOF_MAX_BYTES", "5242880"), 10, 64); err != nil || cfg.Proof.MaxBytes <= 0 {
		return nil, fmt.Errorf("invalid PROOF_MAX_BYTES %q", getenv("PROOF_MAX_BYTES"))
	}
	if cfg.VerifyOrderTotal, err = strconv.ParseBool(get("ORDER_VERIFY_TOTAL", "false")); err != nil {
		return nil, fmt.Errorf("invalid ORDER_VERIFY_TOTAL: %w", err)
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
	if !strings.HasPrefix(cfg.EndpointPrefix, "/") {
		return nil, fmt.Errorf("SERVICE_ENDPOINT_PREFIX must start with '/': %q", cfg.EndpointPrefix)
	}

	return cfg, nil
}
