package identity

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Config is the environment backed configuration for the identity service.
// Durations are in seconds to keep .env files readable.
type Config struct {
	AppID       string `env:"APP_ID" envDefault:"go-identity"`
	Domain      string `env:"DOMAIN" envDefault:"localhost"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	JWT   JWTEnv      `envPrefix:"JWT_"`
	Redis RedisConfig `envPrefix:"REDIS_"`
	Email EmailConfig `envPrefix:"EMAIL_"`
}

type JWTEnv struct {
	PrivateKeyPath string `env:"PRIVATE_KEY_PATH" envDefault:"keys/private.key"`
	PublicKeyPath  string `env:"PUBLIC_KEY_PATH" envDefault:"keys/public.key"`
	AccessTime     int    `env:"ACCESS_TIME" envDefault:"600"`

	ConfirmationSecret string `env:"CONFIRMATION_SECRET,notEmpty"`
	ConfirmationTime   int    `env:"CONFIRMATION_TIME" envDefault:"3600"`

	ResetPasswordSecret string `env:"RESET_PASSWORD_SECRET,notEmpty"`
	ResetPasswordTime   int    `env:"RESET_PASSWORD_TIME" envDefault:"1800"`

	RefreshSecret string `env:"REFRESH_SECRET,notEmpty"`
	RefreshTime   int    `env:"REFRESH_TIME" envDefault:"604800"`
}

type RedisConfig struct {
	URL string `env:"URL" envDefault:"redis://localhost:6379"`
}

// Client builds a redis client from the configured URL.
func (c RedisConfig) Client() (*redis.Client, error) {
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid redis URL")
	}
	return redis.NewClient(opts), nil
}

type EmailConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
}

// Load reads the optional .env file and parses the environment into a
// Config. Missing .env files are fine, missing required variables are not.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to load env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse environment")
	}
	return cfg, nil
}

// TokenConfig reads the RSA key pair from disk and assembles the JWTConfig
// the token service consumes.
func (c *Config) TokenConfig() (JWTConfig, error) {
	privPEM, err := os.ReadFile(c.JWT.PrivateKeyPath)
	if err != nil {
		return JWTConfig{}, goerrors.Wrap(err, goerrors.CategoryInternal,
			fmt.Sprintf("failed to read private key at %s", c.JWT.PrivateKeyPath))
	}
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return JWTConfig{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse RSA private key")
	}

	pubPEM, err := os.ReadFile(c.JWT.PublicKeyPath)
	if err != nil {
		return JWTConfig{}, goerrors.Wrap(err, goerrors.CategoryInternal,
			fmt.Sprintf("failed to read public key at %s", c.JWT.PublicKeyPath))
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return JWTConfig{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse RSA public key")
	}

	return JWTConfig{
		Issuer: c.AppID,
		Domain: c.Domain,
		Access: AccessTokenConfig{
			PrivateKey: priv,
			PublicKey:  pub,
			TTL:        time.Duration(c.JWT.AccessTime) * time.Second,
		},
		Confirmation: SecretTokenConfig{
			Secret: []byte(c.JWT.ConfirmationSecret),
			TTL:    time.Duration(c.JWT.ConfirmationTime) * time.Second,
		},
		ResetPassword: SecretTokenConfig{
			Secret: []byte(c.JWT.ResetPasswordSecret),
			TTL:    time.Duration(c.JWT.ResetPasswordTime) * time.Second,
		},
		Refresh: SecretTokenConfig{
			Secret: []byte(c.JWT.RefreshSecret),
			TTL:    time.Duration(c.JWT.RefreshTime) * time.Second,
		},
	}, nil
}
