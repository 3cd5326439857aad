package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LeventeLantos/zenvia-go/client"
	"github.com/LeventeLantos/zenvia-go/model"
)

type Config struct {
	Zenvia    ZenviaConfig
	Webhook   WebhookConfig
	Server    ServerConfig
	Reconcile ReconcileConfig
	AutoReply AutoReplyConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
}

type ZenviaConfig struct {
	APIToken              string
	BaseURL               string
	MaxConnections        int
	ConnectionTimeout     time.Duration
	ResponseTimeout       time.Duration
	MaxAutoRetries        int
	ConnectionPoolTimeout time.Duration
	StaleConnectionCheck  time.Duration
}

// ClientConfig maps the environment settings onto client.Config. Unset values
// stay zero so the client applies its own defaults.
func (z ZenviaConfig) ClientConfig(logger *slog.Logger) client.Config {
	return client.Config{
		APIToken:              z.APIToken,
		BaseURL:               z.BaseURL,
		MaxConnections:        z.MaxConnections,
		ConnectionTimeout:     z.ConnectionTimeout,
		ResponseTimeout:       z.ResponseTimeout,
		MaxAutoRetries:        z.MaxAutoRetries,
		ConnectionPoolTimeout: z.ConnectionPoolTimeout,
		StaleConnectionCheck:  z.StaleConnectionCheck,
		Logger:                logger,
	}
}

type WebhookConfig struct {
	Path string
	// URL and Channel enable subscription management. Both are optional.
	URL     string
	Channel model.Channel
}

type ServerConfig struct {
	Address string
}

type ReconcileConfig struct {
	// Interval of zero disables periodic reconciliation.
	Interval time.Duration
}

type AutoReplyConfig struct {
	Enabled    bool
	Text       string
	ContentMax int
}

type DatabaseConfig struct {
	Enabled     bool
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type LogConfig struct {
	Level  slog.Level
	Format string
}

// LoadAll reads the configuration from the environment. Every problem found
// is reported, each naming the offending key.
func LoadAll() (*Config, error) {
	var errs []error

	token, err := requireEnv("ZENVIA_API_TOKEN")
	errs = appendErr(errs, err)

	cfg := &Config{
		Zenvia: ZenviaConfig{
			APIToken: token,
			BaseURL:  getEnv("ZENVIA_BASE_URL", ""),
		},
		Webhook: WebhookConfig{
			Path: getEnv("WEBHOOK_PATH", "/"),
			URL:  getEnv("WEBHOOK_URL", ""),
		},
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: getEnv("POSTGRES_URL", ""),
		},
	}
	cfg.Database.Enabled = cfg.Database.PostgresURL != ""

	cfg.Zenvia.MaxConnections, err = getEnvInt("ZENVIA_MAX_CONNECTIONS", 0)
	errs = appendErr(errs, err)
	cfg.Zenvia.ConnectionTimeout, err = getEnvMillis("ZENVIA_CONNECTION_TIMEOUT_MS")
	errs = appendErr(errs, err)
	cfg.Zenvia.ResponseTimeout, err = getEnvMillis("ZENVIA_SOCKET_TIMEOUT_MS")
	errs = appendErr(errs, err)
	cfg.Zenvia.MaxAutoRetries, err = getEnvInt("ZENVIA_MAX_AUTO_RETRIES", 0)
	errs = appendErr(errs, err)
	cfg.Zenvia.ConnectionPoolTimeout, err = getEnvMillis("ZENVIA_CONNECTION_POOL_TIMEOUT_MS")
	errs = appendErr(errs, err)
	cfg.Zenvia.StaleConnectionCheck, err = getEnvMillis("ZENVIA_STALE_CHECK_MS")
	errs = appendErr(errs, err)

	if raw := getEnv("WEBHOOK_CHANNEL", ""); raw != "" {
		ch, err := model.ParseChannel(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid WEBHOOK_CHANNEL: %w", err))
		}
		cfg.Webhook.Channel = ch
	}

	seconds, err := getEnvInt("RECONCILE_INTERVAL_SECONDS", 0)
	errs = appendErr(errs, err)
	cfg.Reconcile.Interval = time.Duration(seconds) * time.Second

	cfg.AutoReply.Text = getEnv("AUTO_REPLY_TEXT", "")
	cfg.AutoReply.Enabled = cfg.AutoReply.Text != ""
	cfg.AutoReply.ContentMax, err = getEnvInt("REPLY_CONTENT_MAX", 160)
	errs = appendErr(errs, err)

	redisCfg, err := loadRedisConfig()
	errs = appendErr(errs, err)
	cfg.Redis = redisCfg

	logCfg, err := loadLogConfig()
	errs = appendErr(errs, err)
	cfg.Log = logCfg

	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	var errs []error
	db, err := getEnvInt("REDIS_DB", 0)
	errs = appendErr(errs, err)
	ttl, err := getEnvInt("REDIS_TTL_SECONDS", 86400)
	errs = appendErr(errs, err)

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, joinErrors(errs)
}

func loadLogConfig() (LogConfig, error) {
	cfg := LogConfig{Level: slog.LevelInfo, Format: "text"}

	if v := getEnv("LOG_LEVEL", ""); v != "" {
		if err := cfg.Level.UnmarshalText([]byte(v)); err != nil {
			return cfg, fmt.Errorf("invalid LOG_LEVEL %q: %w", v, err)
		}
	}

	switch f := strings.ToLower(getEnv("LOG_FORMAT", "text")); f {
	case "text", "json":
		cfg.Format = f
	default:
		return cfg, fmt.Errorf("invalid LOG_FORMAT %q: want text or json", f)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	var errs []error
	if cfg.Zenvia.MaxConnections < 0 {
		errs = append(errs, errors.New("ZENVIA_MAX_CONNECTIONS must be >= 0"))
	}
	if cfg.Zenvia.ConnectionPoolTimeout < 0 {
		errs = append(errs, errors.New("ZENVIA_CONNECTION_POOL_TIMEOUT_MS must be >= 0"))
	}
	if cfg.Reconcile.Interval < 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVAL_SECONDS must be >= 0"))
	}
	if cfg.AutoReply.ContentMax <= 0 {
		errs = append(errs, errors.New("REPLY_CONTENT_MAX must be > 0"))
	}
	if cfg.Redis.Enabled && cfg.Redis.TTL <= 0 {
		errs = append(errs, errors.New("REDIS_TTL_SECONDS must be > 0"))
	}
	if cfg.Webhook.URL != "" && cfg.Webhook.Channel == "" {
		errs = append(errs, errors.New("WEBHOOK_CHANNEL is required when WEBHOOK_URL is set"))
	}
	return joinErrors(errs)
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def, fmt.Errorf("invalid int for env %s: %q", key, v)
	}
	return i, nil
}

// getEnvMillis reads a duration in milliseconds. Unset yields zero.
func getEnvMillis(key string) (time.Duration, error) {
	ms, err := getEnvInt(key, 0)
	return time.Duration(ms) * time.Millisecond, err
}

func appendErr(errs []error, err error) []error {
	if err != nil {
		return append(errs, err)
	}
	return errs
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
