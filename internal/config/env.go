package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMySQL  = "mysql"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Env holds all configuration values.
type Env struct {
	AppAddr string `mapstructure:"APP_ADDR"`
	AppEnv  string `mapstructure:"APP_ENV"`
	GinMode string `mapstructure:"GIN_MODE"`

	StoreBackend  string `mapstructure:"STORE_BACKEND"`
	DBHost        string `mapstructure:"DB_HOST"`
	DBPort        int    `mapstructure:"DB_PORT"`
	DBUser        string `mapstructure:"DB_USER"`
	DBPassword    string `mapstructure:"DB_PASSWORD"`
	DBName        string `mapstructure:"DB_NAME"`
	DBAutoMigrate bool   `mapstructure:"DB_AUTO_MIGRATE"`

	SessionBackend string        `mapstructure:"SESSION_BACKEND"`
	SessionTTL     time.Duration `mapstructure:"SESSION_TTL"`
	RedisAddr      string        `mapstructure:"REDIS_ADDR"`
	RedisPassword  string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int           `mapstructure:"REDIS_DB"`

	AdminJWTSecret     string `mapstructure:"ADMIN_JWT_SECRET"`
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	TrustedProxies     string `mapstructure:"TRUSTED_PROXIES"`

	USSDRatePer15m    int           `mapstructure:"USSD_RATE_PER_15M"`
	OpsRatePer15m     int           `mapstructure:"OPS_RATE_PER_15M"`
	PINAttemptsPerMin int           `mapstructure:"PIN_ATTEMPTS_PER_MIN"`
	QueryTimeout      time.Duration `mapstructure:"QUERY_TIMEOUT"`
}

func (e Env) IsProduction() bool {
	return strings.EqualFold(e.AppEnv, "production")
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (e Env) AllowedOrigins() []string {
	out := splitList(e.CORSAllowedOrigins)
	if out == nil {
		return []string{}
	}
	return out
}

// TrustedProxyList splits TRUSTED_PROXIES (IPs or CIDRs) on commas. Nil means
// no proxy is trusted and the socket address is the client IP.
func (e Env) TrustedProxyList() []string {
	return splitList(e.TrustedProxies)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("GIN_MODE", "")
	v.SetDefault("STORE_BACKEND", BackendMySQL)
	v.SetDefault("DB_HOST", "127.0.0.1")
	v.SetDefault("DB_PORT", 3306)
	v.SetDefault("DB_USER", "root")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "bus_ticketing")
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("SESSION_BACKEND", BackendMemory)
	v.SetDefault("SESSION_TTL", 5*time.Minute)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ADMIN_JWT_SECRET", "")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("USSD_RATE_PER_15M", 100)
	v.SetDefault("OPS_RATE_PER_15M", 200)
	v.SetDefault("PIN_ATTEMPTS_PER_MIN", 5)
	v.SetDefault("QUERY_TIMEOUT", 5*time.Second)
}

// LoadEnv reads config.yaml (current dir or ./config) when present, with
// environment variables taking precedence.
func LoadEnv() Env {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	var env Env
	if err := v.Unmarshal(&env); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	env.StoreBackend = strings.ToLower(strings.TrimSpace(env.StoreBackend))
	env.SessionBackend = strings.ToLower(strings.TrimSpace(env.SessionBackend))
	return env
}
