package config

import (
	"errors"
	"strings"
	"time"

	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/spf13/viper"
)

type Config struct {
	DBUrl             string        `mapstructure:"DB_URL"`
	Port              string        `mapstructure:"PORT"`
	PublicBaseURL     string        `mapstructure:"PUBLIC_BASE_URL"`
	TelegramAPIURL    string        `mapstructure:"TELEGRAM_API_URL"`
	WebhookSecret     string        `mapstructure:"WEBHOOK_SECRET"`
	JWTSecret         string        `mapstructure:"JWT_SECRET"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	OTPResendCooldown time.Duration `mapstructure:"OTP_RESEND_COOLDOWN"`
	DefaultLocale     string        `mapstructure:"DEFAULT_LOCALE"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	LogFormat         string        `mapstructure:"LOG_FORMAT"`
	CORSOrigins       string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

var defaults = map[string]any{
	"DB_URL":               "",
	"PORT":                 "8080",
	"PUBLIC_BASE_URL":      "http://localhost:8080",
	"TELEGRAM_API_URL":     "https://api.telegram.org",
	"WEBHOOK_SECRET":       "",
	"JWT_SECRET":           "",
	"REDIS_URL":            "",
	"OTP_RESEND_COOLDOWN":  models.OTPResendCooldown.String(),
	"DEFAULT_LOCALE":       "en",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "json",
	"CORS_ALLOWED_ORIGINS": "",
}

// LoadConfig reads an optional env file followed by the process environment.
// envFile may be empty. The returned bool reports whether the file was read.
func LoadConfig(envFile string) (Config, bool, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	fileLoaded := false
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err == nil {
			fileLoaded = true
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fileLoaded, err
	}
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")
	c.TelegramAPIURL = strings.TrimRight(c.TelegramAPIURL, "/")
	return c, fileLoaded, nil
}

// Validate checks the settings the service cannot start without.
func (c Config) Validate() error {
	if c.DBUrl == "" {
		return errors.New("DB_URL is required")
	}
	if c.OTPResendCooldown < 0 {
		return errors.New("OTP_RESEND_COOLDOWN must not be negative")
	}
	return nil
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS. Empty means any origin.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, strings.TrimRight(o, "/"))
		}
	}
	return origins
}
