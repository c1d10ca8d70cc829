// Package config loads the flat configuration surface exposed to callers
// embedding this module: circuit breaker, retry, timeout, bus, and
// tracing settings, all optional with the documented defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/meridianhq/sagaflow/pkg/bus"
	"github.com/meridianhq/sagaflow/pkg/observability/tracing"
	"github.com/meridianhq/sagaflow/pkg/resilience/breaker"
	"github.com/meridianhq/sagaflow/pkg/resilience/retry"
)

// Config is the root configuration structure, unmarshalled by Viper from
// a config file and/or environment variables.
type Config struct {
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
	Retry          RetryConfig          `mapstructure:"retry"`
	Timeout        TimeoutConfig        `mapstructure:"timeout"`
	Bus            BusConfig            `mapstructure:"bus"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

// CircuitBreakerConfig mirrors the external, count-based configuration
// surface. SamplingDuration is in seconds on the wire; FailureThreshold
// and MinimumThroughput are both counts, so their ratio is dimensionless.
type CircuitBreakerConfig struct {
	FailureThreshold  int           `mapstructure:"failureThreshold"`
	OpenTimeout       time.Duration `mapstructure:"openTimeout"`
	SamplingDuration  int           `mapstructure:"samplingDuration"`
	MinimumThroughput int           `mapstructure:"minimumThroughput"`
}

// ToBreakerConfig derives the internal ratio-based breaker.Config. The
// failure ratio is FailureThreshold/MinimumThroughput, clamped to 1 —
// a count-over-count ratio, not the source's count-over-seconds formula.
func (c CircuitBreakerConfig) ToBreakerConfig() breaker.Config {
	ratio := 1.0
	if c.MinimumThroughput > 0 {
		ratio = float64(c.FailureThreshold) / float64(c.MinimumThroughput)
		if ratio > 1 {
			ratio = 1
		}
	}
	return breaker.Config{
		FailureRatio:      ratio,
		SamplingWindow:    time.Duration(c.SamplingDuration) * time.Second,
		MinimumThroughput: c.MinimumThroughput,
		BreakDuration:     c.OpenTimeout,
	}
}

// RetryConfig mirrors retry.Config on the wire.
type RetryConfig struct {
	MaxAttempts           int           `mapstructure:"maxAttempts"`
	BaseDelay             time.Duration `mapstructure:"baseDelay"`
	UseExponentialBackoff bool          `mapstructure:"useExponentialBackoff"`
	BackoffMultiplier     float64       `mapstructure:"backoffMultiplier"`
	UseJitter             bool          `mapstructure:"useJitter"`
	MaxJitter             time.Duration `mapstructure:"maxJitter"`
}

// ToRetryConfig converts to the internal retry.Config.
func (c RetryConfig) ToRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:           c.MaxAttempts,
		BaseDelay:             c.BaseDelay,
		UseExponentialBackoff: c.UseExponentialBackoff,
		BackoffMultiplier:     c.BackoffMultiplier,
		UseJitter:             c.UseJitter,
		MaxJitter:             c.MaxJitter,
	}
}

// TimeoutConfig is the default per-operation timeout budget.
type TimeoutConfig struct {
	Default time.Duration `mapstructure:"default"`
}

// BusConfig mirrors the bus connection surface.
type BusConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	VirtualHost    string `mapstructure:"virtualHost"`
	Exchange       string `mapstructure:"exchange"`
	ServiceName    string `mapstructure:"serviceName"`
	ConnectionName string `mapstructure:"connectionName"`
}

// URL builds the amqp connection string from the discrete fields above.
func (c BusConfig) URL() string {
	vhost := strings.TrimPrefix(c.VirtualHost, "/")
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s", c.User, c.Password, c.Host, c.Port, vhost)
}

// ToBusConfig converts to the internal bus.Config.
func (c BusConfig) ToBusConfig() bus.Config {
	return bus.Config{
		URL:            c.URL(),
		Exchange:       c.Exchange,
		ServiceName:    c.ServiceName,
		ConnectionName: c.ConnectionName,
	}
}

// TracingConfig mirrors the tracing surface. CollectorEndpoint is not
// part of the documented configuration keys; callers set it directly on
// tracing.Config when wiring an OTLP exporter.
type TracingConfig struct {
	ServiceName    string  `mapstructure:"serviceName"`
	ServiceVersion string  `mapstructure:"serviceVersion"`
	Environment    string  `mapstructure:"environment"`
	SamplingRatio  float64 `mapstructure:"samplingRatio"`
}

// ToTracingConfig converts to the internal tracing.Config, given a
// collector endpoint sourced outside this flat surface.
func (c TracingConfig) ToTracingConfig(collectorEndpoint string) tracing.Config {
	return tracing.Config{
		ServiceName:       c.ServiceName,
		ServiceVersion:    c.ServiceVersion,
		Environment:       c.Environment,
		SamplingRatio:     c.SamplingRatio,
		CollectorEndpoint: collectorEndpoint,
	}
}

// Load reads config.yaml (if present) from ./config or the working
// directory, applies SAGAFLOW_-prefixed environment overrides, and
// returns a validated Config with every key defaulted per the documented
// configuration surface.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: read config file: %w", err)
		}
	}

	v.SetEnvPrefix("SAGAFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("circuitBreaker.failureThreshold", 5)
	v.SetDefault("circuitBreaker.openTimeout", time.Minute)
	v.SetDefault("circuitBreaker.samplingDuration", 10)
	v.SetDefault("circuitBreaker.minimumThroughput", 3)

	v.SetDefault("retry.maxAttempts", 3)
	v.SetDefault("retry.baseDelay", time.Second)
	v.SetDefault("retry.useExponentialBackoff", true)
	v.SetDefault("retry.backoffMultiplier", 2.0)
	v.SetDefault("retry.useJitter", true)
	v.SetDefault("retry.maxJitter", 100*time.Millisecond)

	v.SetDefault("timeout.default", 30*time.Second)

	v.SetDefault("bus.port", 5672)
	v.SetDefault("bus.virtualHost", "/")
	v.SetDefault("bus.exchange", "microservices.events")

	v.SetDefault("tracing.samplingRatio", 1.0)
}

func validate(cfg *Config) error {
	if cfg.CircuitBreaker.MinimumThroughput <= 0 {
		return fmt.Errorf("config: circuitBreaker.minimumThroughput must be positive, got %d", cfg.CircuitBreaker.MinimumThroughput)
	}
	if cfg.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("config: retry.maxAttempts must be positive, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Tracing.SamplingRatio < 0 || cfg.Tracing.SamplingRatio > 1 {
		return fmt.Errorf("config: tracing.samplingRatio must be in [0,1], got %v", cfg.Tracing.SamplingRatio)
	}
	return nil
}
