package config

import (
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPAddr       string `long:"http-addr" env:"HTTP_ADDR" default:":8080" description:"address the HTTP API listens on"`
	PostgresURL    string `long:"postgres-url" env:"POSTGRES_URL" required:"true" description:"Postgres connection string"`
	RedisAddr      string `long:"redis-addr" env:"REDIS_ADDR" required:"true" description:"Redis address (host:port)"`
	JWTSecret      string `long:"jwt-secret" env:"JWT_SECRET" required:"true" description:"HMAC secret of the identity provider tokens"`
	JaegerEndpoint string `long:"jaeger-endpoint" env:"JAEGER_ENDPOINT" description:"Jaeger collector endpoint, tracing is disabled when empty"`
	LogLevel       string `long:"log-level" env:"LOG_LEVEL" default:"info" description:"logrus level"`

	FeedbackMaxLength int `long:"feedback-max-length" env:"FEEDBACK_MAX_LENGTH" default:"2000" description:"maximum feedback length in characters"`

	OTP  OTP  `group:"OTP" namespace:"otp" env-namespace:"OTP"`
	SMTP SMTP `group:"SMTP" namespace:"smtp" env-namespace:"SMTP"`
}

type OTP struct {
	TTL         time.Duration `long:"ttl" env:"TTL" default:"10m" description:"completion code lifetime, 0 disables expiry"`
	MaxAttempts int           `long:"max-attempts" env:"MAX_ATTEMPTS" default:"5" description:"mismatches before the code is discarded, 0 is unlimited"`
	Digits      int           `long:"digits" env:"DIGITS" default:"6" description:"completion code length"`
	Secret      string        `long:"secret" env:"SECRET" description:"key of the stored code hashes, defaults to the JWT secret"`
}

type SMTP struct {
	Addr     string        `long:"addr" env:"ADDR" description:"SMTP server host:port, codes are only logged when empty"`
	From     string        `long:"from" env:"FROM" default:"no-reply@bookings.local"`
	Username string        `long:"username" env:"USERNAME"`
	Password string        `long:"password" env:"PASSWORD"`
	Timeout  time.Duration `long:"timeout" env:"TIMEOUT" default:"15s" description:"deadline of a single delivery"`
}

func Load(args []string) (Config, error) {
	var cfg Config

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.OTP.Digits < 4 || c.OTP.Digits > 12 {
		return fmt.Errorf("otp digits must be between 4 and 12, got %d", c.OTP.Digits)
	}
	if c.OTP.TTL < 0 {
		return fmt.Errorf("otp ttl can't be negative")
	}
	if c.OTP.MaxAttempts < 0 {
		return fmt.Errorf("otp max attempts can't be negative")
	}
	if c.SMTP.Timeout < 0 {
		return fmt.Errorf("smtp timeout can't be negative")
	}
	if c.FeedbackMaxLength <= 0 {
		return fmt.Errorf("feedback max length must be positive")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	return nil
}

func (c Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
