package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
		// MetricsAddr expone /metrics en un listener separado; vacío lo
		// sirve en el listener principal.
		MetricsAddr string `yaml:"metrics_addr"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"` // debug | info | warn | error
	} `yaml:"log"`

	Storage struct {
		Driver   string `yaml:"driver"` // postgres | memory
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns        int    `yaml:"max_conns"`
			MinConns        int    `yaml:"min_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Auth struct {
		// NonceShards es la cantidad de actores del ledger de nonces.
		NonceShards int `yaml:"nonce_shards"`
		// NonceRetention: "" o "0" = rechazo permanente de replays.
		NonceRetention string `yaml:"nonce_retention"`
		// AdminKeyHash: hash PHC argon2id de la API key administrativa.
		// Vacío deshabilita la superficie admin.
		AdminKeyHash string `yaml:"admin_key_hash"`
	} `yaml:"auth"`

	Rate struct {
		Origin struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"origin"`
		Credential struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"credential"`
		Operation struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"operation"`

		FailureThreshold int    `yaml:"failure_threshold"`
		FailureWindow    string `yaml:"failure_window"`
		FreezeDuration   string `yaml:"freeze_duration"`
	} `yaml:"rate"`
}

func Load(path string) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		// sin archivo: defaults + overrides de env alcanzan
	default:
		return nil, err
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "agw:"
	}
	if c.Auth.NonceShards == 0 {
		c.Auth.NonceShards = 16
	}
	if c.Rate.Origin.Limit == 0 {
		c.Rate.Origin.Limit = 120
	}
	if c.Rate.Origin.Window == "" {
		c.Rate.Origin.Window = "1m"
	}
	if c.Rate.Credential.Limit == 0 {
		c.Rate.Credential.Limit = 60
	}
	if c.Rate.Credential.Window == "" {
		c.Rate.Credential.Window = "1m"
	}
	if c.Rate.Operation.Limit == 0 {
		c.Rate.Operation.Limit = 10
	}
	if c.Rate.Operation.Window == "" {
		c.Rate.Operation.Window = "1m"
	}
	if c.Rate.FailureThreshold == 0 {
		c.Rate.FailureThreshold = 10
	}
	if c.Rate.FailureWindow == "" {
		c.Rate.FailureWindow = "1h"
	}
	if c.Rate.FreezeDuration == "" {
		c.Rate.FreezeDuration = "15m"
	}

	// validate string durations
	for _, d := range []string{
		c.Storage.Postgres.ConnMaxLifetime,
		c.Auth.NonceRetention,
		c.Rate.Origin.Window,
		c.Rate.Credential.Window,
		c.Rate.Operation.Window,
		c.Rate.FailureWindow,
		c.Rate.FreezeDuration,
	} {
		if d == "" || d == "0" {
			continue
		}
		if _, err := time.ParseDuration(d); err != nil {
			return nil, fmt.Errorf("config: duración inválida %q: %w", d, err)
		}
	}

	// Overrides por env + salvaguarda prod
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("METRICS_ADDR"); ok {
		c.Server.MetricsAddr = v
	}

	// LOG
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = strings.ToLower(v)
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = strings.ToLower(v)
	}
	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Storage.DSN = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = strings.ToLower(v)
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}

	// AUTH
	if v, ok := getEnvStr("ADMIN_KEY_HASH"); ok {
		c.Auth.AdminKeyHash = v
	}
	if v, ok := getEnvInt("NONCE_SHARDS"); ok {
		c.Auth.NonceShards = v
	}
}

// Validate aplica las guardas duras que no admiten default.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("config: storage.driver=postgres requiere dsn (o DATABASE_URL)")
		}
	case "memory":
		// en prod el store en memoria pierde el ledger en cada restart
		if strings.EqualFold(c.App.Env, "prod") {
			return fmt.Errorf("config: storage.driver=memory no permitido en prod")
		}
	default:
		return fmt.Errorf("config: storage.driver desconocido %q", c.Storage.Driver)
	}

	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: cache.kind desconocido %q", c.Cache.Kind)
	}
	if c.Cache.Kind == "redis" && strings.TrimSpace(c.Cache.Redis.Addr) == "" {
		return fmt.Errorf("config: cache.kind=redis requiere addr")
	}
	return nil
}

// Dur parsea una duración ya validada por Load. "" o "0" devuelven 0.
func Dur(s string) time.Duration {
	if s == "" || s == "0" {
		return 0
	}
	d, _ := time.ParseDuration(s)
	return d
}
