package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hakimelghazi/matching-core/internal/engine"
)

const EnvPrefix = "MATCHER"

type Config struct {
	Listen struct {
		Network string `mapstructure:"network"`
		Address string `mapstructure:"address"`
	} `mapstructure:"listen"`
	HTTP struct {
		Address string `mapstructure:"address"`
	} `mapstructure:"http"`
	Cancel struct {
		Scope string `mapstructure:"scope"`
	} `mapstructure:"cancel"`
	Output struct {
		Stdout bool `mapstructure:"stdout"`
	} `mapstructure:"output"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Postgres struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"postgres"`
	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`
	MarketData struct {
		ReportInterval time.Duration `mapstructure:"report_interval"`
	} `mapstructure:"marketdata"`
	Shutdown struct {
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"shutdown"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen.network", "tcp")
	v.SetDefault("listen.address", "127.0.0.1:7070")
	v.SetDefault("http.address", "127.0.0.1:8080")
	v.SetDefault("cancel.scope", string(engine.ScopeSession))
	v.SetDefault("output.stdout", true)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "matcher.events")
	v.SetDefault("postgres.url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("marketdata.report_interval", time.Duration(0))
	v.SetDefault("shutdown.timeout", 5*time.Second)
}

// Load reads defaults, the optional file at path and MATCHER_* environment
// overrides, in increasing precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Listen.Network {
	case "tcp", "tcp4", "tcp6", "unix":
	default:
		errs = append(errs, fmt.Errorf("listen.network: unsupported %q", c.Listen.Network))
	}
	if c.Listen.Address == "" {
		errs = append(errs, errors.New("listen.address: required"))
	}
	if _, err := engine.ParseCancelScope(c.Cancel.Scope); err != nil {
		errs = append(errs, fmt.Errorf("cancel.scope: %w", err))
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic: required when brokers are set"))
	}
	if c.Shutdown.Timeout < 0 {
		errs = append(errs, errors.New("shutdown.timeout: must not be negative"))
	}
	return errors.Join(errs...)
}

// CancelScope returns the validated cancel scope.
func (c *Config) CancelScope() engine.CancelScope {
	return engine.CancelScope(c.Cancel.Scope)
}
