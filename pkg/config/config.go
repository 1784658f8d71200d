package config

import (
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration of the beeswax CLI.
type Config struct {
	ServiceName string
	Env         string // e.g. "dev", "uat", "prod"
	LogLevel    string

	APIRoot  string
	Email    string
	Password string
	Account  string // secrets lookup key when Email/Password are unset

	AWSRegion      string
	SecretCacheTTL time.Duration

	HTTPTimeout    time.Duration
	RateLimitRPS   int // 0 disables the outbound limiter
	RateLimitBurst int
}

// Load reads an optional .env file, then the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServiceName:    GetEnv("SERVICE_NAME", "beeswax"),
		Env:            GetEnv("ENV", "dev"),
		LogLevel:       GetEnv("LOG_LEVEL", "info"),
		APIRoot:        GetEnv("BEESWAX_API_ROOT", "https://stingersbx.api.beeswax.com"),
		Email:          GetEnv("BEESWAX_EMAIL", ""),
		Password:       GetEnv("BEESWAX_PASSWORD", ""),
		Account:        GetEnv("BEESWAX_ACCOUNT", ""),
		AWSRegion:      GetEnv("AWS_REGION", "us-east-1"),
		SecretCacheTTL: GetEnvDuration("SECRETS_CACHE_TTL", 15*time.Minute),
		HTTPTimeout:    GetEnvDuration("HTTP_TIMEOUT", 60*time.Second),
		RateLimitRPS:   GetEnvInt("RATE_LIMIT_RPS", 0),
		RateLimitBurst: GetEnvInt("RATE_LIMIT_BURST", 1),
	}
}

// HasStaticCreds reports whether credentials were given directly.
func (c *Config) HasStaticCreds() bool {
	return c.Email != "" && c.Password != ""
}
