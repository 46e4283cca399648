package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"

	"github.com/tsamsiyu/k8schema/internal/errors"
)

type Config struct {
	Server  ServerConfig  `envPrefix:"SERVER_"`
	Kube    KubeConfig    `envPrefix:"KUBE_"`
	Refresh RefreshConfig `envPrefix:"REFRESH_"`
	Logging LoggingConfig `envPrefix:"LOGGING_"`
}

type ServerConfig struct {
	Port            int           `env:"PORT" envDefault:"8000" validate:"min=1,max=65535"`
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s" validate:"gte=0"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s" validate:"gte=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"gt=0"`
	// AllowOrigins enables CORS for the listed origins. Empty disables it.
	AllowOrigins []string `env:"ALLOW_ORIGINS" envSeparator:","`
}

type KubeConfig struct {
	// File is the kubeconfig to read the cluster and credentials from.
	File string `env:"CONFIG,expand" envDefault:"${HOME}/.kube/config" validate:"required"`
	// Context overrides the kubeconfig's current-context when set.
	Context        string        `env:"CONTEXT"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s" validate:"gte=0"`
}

type RefreshConfig struct {
	Interval time.Duration `env:"INTERVAL" envDefault:"3600s" validate:"gt=0"`
}

type LoggingConfig struct {
	Level            string `env:"LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	Format           string `env:"FORMAT" envDefault:"json" validate:"oneof=json console"`
	EnableCaller     bool   `env:"ENABLE_CALLER" envDefault:"true"`
	EnableStacktrace bool   `env:"ENABLE_STACKTRACE" envDefault:"false"`
	Development      bool   `env:"DEVELOPMENT" envDefault:"false"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.NewConfigError("parsing environment", err)
	}
	return cfg, nil
}

// Validate checks the final configuration, after flags have been applied.
func (c *Config) Validate(validate *validator.Validate) error {
	if err := validate.Struct(c); err != nil {
		return errors.NewConfigError("validating configuration", err)
	}
	return nil
}
