package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the config file read by the service, overridable via CONFIG_PATH.
var ConfigPath = envOr("CONFIG_PATH", "config.yaml")

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port           string   `yaml:"port"`
	LogLevel       string   `yaml:"logLevel"`
	DatabaseURL    string   `yaml:"databaseURL"`
	StoreTimeout   string   `yaml:"storeTimeout"`
	RedisAddr      string   `yaml:"redisAddr"`
	RedisPassword  string   `yaml:"redisPassword"`
	StatsCacheTTL  string   `yaml:"statsCacheTTL"`
	SessionTTL     string   `yaml:"sessionTTL"`
	PasswordCost   int      `yaml:"passwordCost"`
	CORSOrigins    []string `yaml:"corsOrigins"`
	CookieSecure   *bool    `yaml:"cookieSecure"`
	TrustedProxies []string `yaml:"trustedProxies"`

	JWTSecret          string `yaml:"jwtSecret"`
	JWTKeyID           string `yaml:"jwtKeyId"`
	JWTPreviousSecrets string `yaml:"jwtPreviousSecrets"`
	JWTIssuer          string `yaml:"jwtIssuer"`
	JWTLeeway          string `yaml:"jwtLeeway"`

	AMQPURL      string `yaml:"amqpURL"`
	AMQPExchange string `yaml:"amqpExchange"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`
	MediaURLTTL    string `yaml:"mediaURLTTL"`
}

// Load reads config from path (defaults to ConfigPath), applies environment
// overrides, and validates the result.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	overrides := map[string]*string{
		"PORT":                 &cfg.Port,
		"LOG_LEVEL":            &cfg.LogLevel,
		"DATABASE_URL":         &cfg.DatabaseURL,
		"REDIS_ADDR":           &cfg.RedisAddr,
		"REDIS_PASSWORD":       &cfg.RedisPassword,
		"SESSION_TTL":          &cfg.SessionTTL,
		"JWT_SECRET":           &cfg.JWTSecret,
		"JWT_KEY_ID":           &cfg.JWTKeyID,
		"JWT_PREVIOUS_SECRETS": &cfg.JWTPreviousSecrets,
		"JWT_ISSUER":           &cfg.JWTIssuer,
		"AMQP_URL":             &cfg.AMQPURL,
		"MINIO_ENDPOINT":       &cfg.MinioEndpoint,
		"MINIO_ACCESS_KEY":     &cfg.MinioAccessKey,
		"MINIO_SECRET_KEY":     &cfg.MinioSecretKey,
		"MINIO_BUCKET":         &cfg.MinioBucket,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CookieSecure = &b
		}
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitList(v)
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New("config: jwtSecret is required (set JWT_SECRET)")
	}
	if _, err := ParsePreviousSecrets(cfg.JWTPreviousSecrets); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.PasswordCost < 0 {
		return errors.New("config: passwordCost must be >= 0")
	}
	if cfg.MinioEndpoint != "" && cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required when minioEndpoint is set")
	}
	for name, raw := range map[string]string{
		"sessionTTL":    cfg.SessionTTL,
		"storeTimeout":  cfg.StoreTimeout,
		"statsCacheTTL": cfg.StatsCacheTTL,
		"jwtLeeway":     cfg.JWTLeeway,
		"mediaURLTTL":   cfg.MediaURLTTL,
	} {
		if _, err := ParseDuration(name, raw, 0); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// ParseDuration parses an optional duration string, returning def when empty.
func ParseDuration(name, raw string, def time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", name, err)
	}
	if dur < 0 {
		return 0, fmt.Errorf("invalid %s duration: must be >= 0", name)
	}
	return dur, nil
}

// ParseSessionTTL parses the session lifetime, defaulting to 24h.
func ParseSessionTTL(ttlStr string) (time.Duration, error) {
	return ParseDuration("sessionTTL", ttlStr, 24*time.Hour)
}

// SecretKey is a verification-only signing secret.
type SecretKey struct {
	ID     string
	Secret string
}

// ParsePreviousSecrets parses "kid=secret,kid2=secret2".
func ParsePreviousSecrets(raw string) ([]SecretKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out []SecretKey
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kid, secret, ok := strings.Cut(pair, "=")
		kid = strings.TrimSpace(kid)
		secret = strings.TrimSpace(secret)
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("invalid jwtPreviousSecrets entry for key %q", kid)
		}
		out = append(out, SecretKey{ID: kid, Secret: secret})
	}
	return out, nil
}

// SecureCookies reports whether session cookies carry the Secure attribute.
func (c FileConfig) SecureCookies() bool {
	return c.CookieSecure == nil || *c.CookieSecure
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
