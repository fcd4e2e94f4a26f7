// Package config loads process configuration from config.yaml, a .env
// file and environment variables, in that override order, matching the
// teacher's loadConfig layering. The tunable subset (poll intervals,
// concurrency caps, fee rate, floor-cache TTL) is served through viper
// from an optional tunable.yaml read once at startup; the file is not
// watched, so changing it takes a process restart.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the fully-resolved runtime configuration for the monitor.
type Config struct {
	HTTPAddr string

	MySQLDSN      string
	RedisAddr     string
	RedisPassword string

	PortalsToken string
	TonnelAuth   string
	MrktToken    string
	GetgemsAPIKey string

	TelegramBotToken string

	PinataAPIURL       string
	PinataGatewayURL   string
	PinataAPIKey       string
	PinataSecretAPIKey string

	Dev bool

	Tunable *Tunable
}

// Tunable is the tunable subset, read from viper on each access. The
// viper instance loads tunable.yaml once in Load and does not watch it.
type Tunable struct {
	v *viper.Viper
}

func (t *Tunable) PollInterval(marketplace string) time.Duration {
	key := fmt.Sprintf("poll_interval.%s", marketplace)
	if t.v.IsSet(key) {
		return t.v.GetDuration(key)
	}
	return t.v.GetDuration("poll_interval.default")
}

func (t *Tunable) DispatchWorkerPoolSize() int {
	if n := t.v.GetInt("dispatch_worker_pool_size"); n > 0 {
		return n
	}
	return 10
}

func (t *Tunable) TonnelFeeRate() string {
	if v := t.v.GetString("tonnel_fee_rate"); v != "" {
		return v
	}
	return "0.06"
}

func (t *Tunable) FloorCacheTTL() time.Duration {
	if d := t.v.GetDuration("floor_cache_ttl"); d > 0 {
		return d
	}
	return 300 * time.Second
}

type yamlConfig struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
	Marketplaces struct {
		Portals string `yaml:"portals-token"`
		Tonnel  string `yaml:"tonnel-auth"`
		Mrkt    string `yaml:"mrkt-token"`
		Getgems string `yaml:"getgems-api-key"`
	} `yaml:"marketplaces"`
	Pinata struct {
		APIURL       string `yaml:"api-url"`
		GatewayURL   string `yaml:"gateway-url"`
		APIKey       string `yaml:"api-key"`
		SecretAPIKey string `yaml:"secret-api-key"`
	} `yaml:"pinata"`
	Telegram struct {
		BotToken string `yaml:"bot-token"`
	} `yaml:"telegram"`
	Env string `yaml:"env"`
}

// Load reads config.yaml (if present), then .env (if present) into the
// process environment, then applies environment-variable overrides, and
// finally wires a viper instance over tunable.yaml (or its defaults) for
// the hot-reloadable subset.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional; absence is not an error

	cfg := &Config{}

	if data, err := os.ReadFile("config.yaml"); err == nil {
		var yc yamlConfig
		if err := yaml.Unmarshal(data, &yc); err != nil {
			return nil, fmt.Errorf("parse config.yaml: %w", err)
		}
		cfg.HTTPAddr = yc.Server.Addr
		cfg.MySQLDSN = yc.MySQL.DSN
		cfg.RedisAddr = yc.Redis.Addr
		cfg.RedisPassword = yc.Redis.Password
		cfg.PortalsToken = yc.Marketplaces.Portals
		cfg.TonnelAuth = yc.Marketplaces.Tonnel
		cfg.MrktToken = yc.Marketplaces.Mrkt
		cfg.GetgemsAPIKey = yc.Marketplaces.Getgems
		cfg.PinataAPIURL = yc.Pinata.APIURL
		cfg.PinataGatewayURL = yc.Pinata.GatewayURL
		cfg.PinataAPIKey = yc.Pinata.APIKey
		cfg.PinataSecretAPIKey = yc.Pinata.SecretAPIKey
		cfg.TelegramBotToken = yc.Telegram.BotToken
		cfg.Dev = yc.Env == "dev"
	}

	overrideString(&cfg.HTTPAddr, "HTTP_ADDR")
	overrideString(&cfg.MySQLDSN, "MYSQL_DSN")
	overrideString(&cfg.RedisAddr, "REDIS_ADDR")
	overrideString(&cfg.RedisPassword, "REDIS_PASSWORD")
	overrideString(&cfg.PortalsToken, "PORTALS_AUTH")
	overrideString(&cfg.TonnelAuth, "TONNEL_AUTH")
	overrideString(&cfg.MrktToken, "MRKT_AUTH")
	overrideString(&cfg.GetgemsAPIKey, "GETGEMS_API_KEY")
	overrideString(&cfg.PinataAPIURL, "PINATA_API_URL")
	overrideString(&cfg.PinataGatewayURL, "PINATA_GATEWAY_URL")
	overrideString(&cfg.PinataAPIKey, "PINATA_API_KEY")
	overrideString(&cfg.PinataSecretAPIKey, "PINATA_SECRET_API_KEY")
	overrideString(&cfg.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	if v := os.Getenv("DEV"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Dev = b
		}
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	v := viper.New()
	v.SetConfigName("tunable")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetDefault("poll_interval.default", "1s")
	v.SetDefault("poll_interval.tonnel", "2s")
	v.SetDefault("dispatch_worker_pool_size", 10)
	v.SetDefault("tonnel_fee_rate", "0.06")
	v.SetDefault("floor_cache_ttl", "300s")
	_ = v.ReadInConfig() // tunable.yaml is optional; defaults apply otherwise

	cfg.Tunable = &Tunable{v: v}
	return cfg, nil
}

func overrideString(dst *string, envVar string) {
	if v := os.Getenv(envVar); v != "" {
		*dst = v
	}
}
